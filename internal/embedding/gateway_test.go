package embedding

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QatreenFatima/ai-book/internal/log"
)

type embeddingsRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

// newEmbeddingsServer fakes an OpenAI-compatible embeddings endpoint. Each
// input gets a one-dimensional vector encoding its batch position so order
// preservation is observable.
func newEmbeddingsServer(t *testing.T, requestCount *atomic.Int64) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/embeddings", r.URL.Path)

		var req embeddingsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		requestCount.Add(1)

		data := make([]openai.Embedding, len(req.Input))
		for i := range req.Input {
			// Reverse wire order on purpose; the gateway must reorder by index.
			j := len(req.Input) - 1 - i
			data[i] = openai.Embedding{
				Index:     j,
				Embedding: []float32{float32(j), float32(len(req.Input[j]))},
			}
		}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(openai.EmbeddingResponse{
			Object: "list",
			Data:   data,
			Model:  openai.EmbeddingModel(req.Model),
		}))
	}))
}

func newTestGateway(t *testing.T, requestCount *atomic.Int64) *Gateway {
	t.Helper()

	srv := newEmbeddingsServer(t, requestCount)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return NewGateway(openai.NewClientWithConfig(cfg), "openai/text-embedding-3-small", log.NewNop())
}

func TestGateway_EmbedTexts_PreservesOrder(t *testing.T) {
	t.Parallel()

	var requests atomic.Int64
	g := newTestGateway(t, &requests)

	texts := []string{"a", "bb", "ccc", "dddd"}
	vectors, err := g.EmbedTexts(t.Context(), texts)
	require.NoError(t, err)

	require.Len(t, vectors, len(texts))
	for i, text := range texts {
		assert.Equal(t, float32(i), vectors[i][0])
		assert.Equal(t, float32(len(text)), vectors[i][1])
	}
	assert.Equal(t, int64(1), requests.Load())
}

func TestGateway_EmbedTexts_Batches(t *testing.T) {
	t.Parallel()

	var requests atomic.Int64
	g := newTestGateway(t, &requests)

	texts := make([]string, BatchSize*2+5)
	for i := range texts {
		texts[i] = "chunk"
	}

	vectors, err := g.EmbedTexts(t.Context(), texts)
	require.NoError(t, err)

	assert.Len(t, vectors, len(texts))
	assert.Equal(t, int64(3), requests.Load())
}

func TestGateway_EmbedTexts_Empty(t *testing.T) {
	t.Parallel()

	var requests atomic.Int64
	g := newTestGateway(t, &requests)

	vectors, err := g.EmbedTexts(t.Context(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Equal(t, int64(0), requests.Load())
}

func TestGateway_EmbedQuery(t *testing.T) {
	t.Parallel()

	var requests atomic.Int64
	g := newTestGateway(t, &requests)

	vector, err := g.EmbedQuery(t.Context(), "what is a servo")
	require.NoError(t, err)
	assert.Len(t, vector, 2)
}

func TestGateway_DetectDimension(t *testing.T) {
	t.Parallel()

	var requests atomic.Int64
	g := newTestGateway(t, &requests)

	dim, err := g.DetectDimension(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, dim)
}

func TestGateway_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	g := NewGateway(openai.NewClientWithConfig(cfg), "openai/text-embedding-3-small", log.NewNop())

	_, err := g.EmbedTexts(t.Context(), []string{"x"})
	require.Error(t, err)
}
