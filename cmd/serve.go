package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/QatreenFatima/ai-book/db"
	"github.com/QatreenFatima/ai-book/internal/api"
	"github.com/QatreenFatima/ai-book/internal/config"
	"github.com/QatreenFatima/ai-book/internal/database"
	"github.com/QatreenFatima/ai-book/internal/document"
	"github.com/QatreenFatima/ai-book/internal/embedding"
	"github.com/QatreenFatima/ai-book/internal/ingest"
	"github.com/QatreenFatima/ai-book/internal/rag"
	"github.com/QatreenFatima/ai-book/internal/session"
	"github.com/QatreenFatima/ai-book/internal/token"
	"github.com/QatreenFatima/ai-book/internal/vectordb"
)

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 6 * time.Minute // must cover SSE streams and ingestion runs
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe wires every component and runs the HTTP server until SIGINT or
// SIGTERM.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()
	logger.Info("starting HTTP API server", "version", Version)

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	counter, err := token.NewCounter()
	if err != nil {
		return fmt.Errorf("loading token encoding: %w", err)
	}

	clientCfg := openai.DefaultConfig(cfg.OpenRouterAPIKey)
	clientCfg.BaseURL = cfg.OpenRouterBaseURL
	client := openai.NewClientWithConfig(clientCfg)

	gateway := embedding.NewGateway(client, cfg.EmbeddingModel, logger)
	index := vectordb.New(vectordb.Config{
		URL:        cfg.QdrantURL,
		APIKey:     cfg.QdrantAPIKey,
		Collection: cfg.QdrantCollection,
	}, logger)

	store := session.NewStore(pool, logger)
	retriever := rag.NewRetriever(gateway, index, logger)
	streamer := rag.NewStreamer(client, cfg.ChatModel, logger)
	pipeline := ingest.NewPipeline(cfg.DocsPath, document.NewChunker(counter), gateway, index, logger)

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:       logger,
		Store:        store,
		Retriever:    retriever,
		Streamer:     streamer,
		Ingestor:     pipeline,
		AdminAPIKey:  cfg.AdminAPIKey,
		CORSOrigins:  cfg.CORSOrigins,
		RateBurst:    cfg.RateBurst,
		PostgresPing: pool.Ping,
		VectorPing:   index.Ping,
		LLMPing: func(ctx context.Context) error {
			_, err := client.ListModels(ctx)
			return err
		},
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", cfg.Addr,
		"api", "/api/*",
		"health", "/health, /ready",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}
