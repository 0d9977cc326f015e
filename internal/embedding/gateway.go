// Package embedding converts text into vectors through an OpenAI-compatible
// embeddings endpoint.
package embedding

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/QatreenFatima/ai-book/internal/log"
)

// BatchSize is the number of texts sent per embeddings request. Keeps request
// bodies under the provider's payload limits during bulk ingestion.
const BatchSize = 20

// Gateway embeds texts with a fixed model. Safe for concurrent use.
type Gateway struct {
	client *openai.Client
	model  string
	logger log.Logger
}

// NewGateway wraps an OpenAI-compatible client for the given embedding model.
func NewGateway(client *openai.Client, model string, logger log.Logger) *Gateway {
	return &Gateway{
		client: client,
		model:  model,
		logger: logger,
	}
}

// EmbedTexts embeds texts in batches of BatchSize, preserving input order.
// The result has exactly one vector per input text; a failed batch fails the
// whole call, since a partially embedded corpus is not usable.
func (g *Gateway) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += BatchSize {
		end := min(start+BatchSize, len(texts))

		batch, err := g.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding batch at offset %d: %w", start, err)
		}
		vectors = append(vectors, batch...)

		g.logger.Debug("embedded batch",
			"offset", start,
			"size", end-start,
			"total", len(texts))
	}

	return vectors, nil
}

// EmbedQuery embeds a single query string.
func (g *Gateway) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := g.embedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return vectors[0], nil
}

// DetectDimension probes the model with a short text and reports the vector
// width. Used to size the index collection instead of hard-coding per model.
func (g *Gateway) DetectDimension(ctx context.Context) (int, error) {
	vector, err := g.EmbedQuery(ctx, "dimension probe")
	if err != nil {
		return 0, err
	}
	return len(vector), nil
}

func (g *Gateway) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := g.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(g.model),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings response has %d vectors for %d texts", len(resp.Data), len(texts))
	}

	// Responses carry an index per item; place by index rather than trusting
	// wire order.
	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("embeddings response index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("embeddings response missing vector for input %d", i)
		}
	}
	return vectors, nil
}
