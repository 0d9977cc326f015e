package rag

import (
	"context"
	"fmt"

	"github.com/QatreenFatima/ai-book/internal/log"
	"github.com/QatreenFatima/ai-book/internal/vectordb"
)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 5

// QueryEmbedder embeds a single query string.
// Satisfied by embedding.Gateway.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// Searcher finds the nearest indexed chunks for a query vector.
// Satisfied by vectordb.Client.
type Searcher interface {
	Search(ctx context.Context, vector []float32, topK int) ([]vectordb.SearchResult, error)
}

// Retriever embeds questions and fetches the closest book chunks.
type Retriever struct {
	embedder QueryEmbedder
	index    Searcher
	topK     int
	logger   log.Logger
}

// NewRetriever creates a Retriever with the default top-k.
func NewRetriever(embedder QueryEmbedder, index Searcher, logger log.Logger) *Retriever {
	return &Retriever{
		embedder: embedder,
		index:    index,
		topK:     DefaultTopK,
		logger:   logger,
	}
}

// Retrieve returns the topK most relevant chunks for the question, descending
// by similarity. Any upstream failure wraps ErrRetrievalUnavailable so
// callers can distinguish "search is down" from "nothing matched"; an empty
// result is a valid answer, the model then declines from lack of context.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]vectordb.SearchResult, error) {
	vector, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrievalUnavailable, err)
	}

	results, err := r.index.Search(ctx, vector, r.topK)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrievalUnavailable, err)
	}

	r.logger.Debug("retrieved chunks", "count", len(results))
	return results, nil
}
