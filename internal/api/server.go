package api

import (
	"errors"
	"net/http"

	"github.com/QatreenFatima/ai-book/internal/log"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger    log.Logger
	Store     SessionStore // required
	Retriever Retriever    // required
	Streamer  Streamer     // required
	Ingestor  Ingestor     // optional: nil disables POST /api/ingest

	AdminAPIKey string
	CORSOrigins []string
	TrustProxy  bool // trust X-Real-IP/X-Forwarded-For (behind reverse proxy)
	RateBurst   int  // rate limiter burst size per IP (0 = default 60)

	// Dependency probes for /ready and /api/health.
	PostgresPing PingFunc
	VectorPing   PingFunc
	LLMPing      PingFunc
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates an API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.Retriever == nil || cfg.Streamer == nil {
		return nil, errors.New("retriever and streamer are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	ch := &chatHandler{
		store:     cfg.Store,
		retriever: cfg.Retriever,
		streamer:  cfg.Streamer,
		logger:    logger,
	}
	sh := &sessionHandler{store: cfg.Store, logger: logger}
	hh := &healthHandler{
		postgres: cfg.PostgresPing,
		vectorDB: cfg.VectorPing,
		llm:      cfg.LLMPing,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", hh.aggregate)
	mux.HandleFunc("POST /api/chat", ch.send)
	mux.HandleFunc("GET /api/sessions/{id}/messages", sh.listMessages)

	if cfg.Ingestor != nil {
		ih := &ingestHandler{
			ingestor: cfg.Ingestor,
			adminKey: cfg.AdminAPIKey,
			logger:   logger,
		}
		mux.HandleFunc("POST /api/ingest", ih.run)
	}

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack, outermost first:
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// CORS sits before RateLimit so preflight OPTIONS always carries CORS
	// headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack so rate limiting never
	// starves an orchestrator.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", hh.liveness)
	topMux.HandleFunc("GET /ready", hh.readiness)
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
