package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/QatreenFatima/ai-book/internal/ingest"
	"github.com/QatreenFatima/ai-book/internal/log"
)

// Ingestor runs one ingestion pass over the docs directory.
// Satisfied by ingest.Pipeline.
type Ingestor interface {
	Run(ctx context.Context, reset bool) (*ingest.Summary, error)
}

type ingestHandler struct {
	ingestor Ingestor
	adminKey string
	logger   log.Logger
}

// ingestResponse is the POST /api/ingest success body.
type ingestResponse struct {
	Status         string   `json:"status"`
	FilesProcessed int      `json:"files_processed"`
	ChunksCreated  int      `json:"chunks_created"`
	Errors         []string `json:"errors"`
}

// run handles POST /api/ingest. The collection is always rebuilt from
// scratch so a re-ingest never leaves stale chunks from deleted pages
// behind. Guarded by the X-Admin-Key header; concurrent runs get 409.
func (h *ingestHandler) run(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("X-Admin-Key")
	if subtle.ConstantTimeCompare([]byte(key), []byte(h.adminKey)) != 1 {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid or missing admin API key")
		return
	}

	summary, err := h.ingestor.Run(r.Context(), true)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrBusy):
			writeError(w, http.StatusConflict, "ingestion_running", "an ingestion run is already in progress")
		case errors.Is(err, context.DeadlineExceeded):
			writeError(w, http.StatusGatewayTimeout, "ingestion_timeout", "Ingestion timed out after 5 minutes")
		default:
			h.logger.Error("ingestion failed", "error", err)
			writeError(w, http.StatusInternalServerError, "ingestion_failed", err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		Status:         "completed",
		FilesProcessed: summary.FilesProcessed,
		ChunksCreated:  summary.ChunksCreated,
		Errors:         summary.Errors,
	})
}
