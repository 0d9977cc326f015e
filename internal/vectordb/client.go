// Package vectordb is a minimal REST client for a Qdrant-compatible vector
// index. It covers the three operations ingestion and retrieval need, reset,
// upsert and search, over plain HTTP rather than a generated SDK.
package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/QatreenFatima/ai-book/internal/log"
)

// UpsertBatchSize is the number of points written per upsert request.
const UpsertBatchSize = 100

// Payload is the metadata stored alongside each vector. It is everything
// needed to render a citation without re-reading the source file.
type Payload struct {
	Text         string `json:"text"`
	Source       string `json:"source"`
	SectionTitle string `json:"section_title"`
	PageTitle    string `json:"page_title"`
	ChunkIndex   int    `json:"chunk_index"`
}

// Point is one embedded chunk ready for indexing.
type Point struct {
	Vector  []float32
	Payload Payload
}

// SearchResult is one scored match, highest-similarity first.
type SearchResult struct {
	Payload Payload
	Score   float64
}

// Client talks to one collection on one Qdrant instance. Safe for concurrent
// use; it holds no mutable state beyond the shared http.Client.
type Client struct {
	baseURL    string
	apiKey     string
	collection string
	httpClient *http.Client
	logger     log.Logger
}

// Config configures a Client.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// New creates a Client. A zero Timeout defaults to 30 seconds, sized for
// bulk upserts rather than single queries.
func New(cfg Config, logger log.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Collection returns the collection name the client is bound to.
func (c *Client) Collection() string {
	return c.collection
}

// Reset drops the collection if present and recreates it with the given
// vector dimension and cosine distance. A missing collection on delete is
// not an error.
func (c *Client) Reset(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid vector dimension %d", dimension)
	}

	if err := c.do(ctx, http.MethodDelete, c.collectionURL(), nil, nil); err != nil {
		var apiErr *apiError
		if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
			return fmt.Errorf("dropping collection %s: %w", c.collection, err)
		}
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	if err := c.do(ctx, http.MethodPut, c.collectionURL(), body, nil); err != nil {
		return fmt.Errorf("creating collection %s: %w", c.collection, err)
	}

	c.logger.Info("collection reset", "collection", c.collection, "dimension", dimension)
	return nil
}

// Ensure creates the collection when it does not exist yet and leaves an
// existing one untouched, whatever its dimension.
func (c *Client) Ensure(ctx context.Context, dimension int) error {
	err := c.do(ctx, http.MethodGet, c.collectionURL(), nil, nil)
	if err == nil {
		return nil
	}
	var apiErr *apiError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		return fmt.Errorf("checking collection %s: %w", c.collection, err)
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	if err := c.do(ctx, http.MethodPut, c.collectionURL(), body, nil); err != nil {
		return fmt.Errorf("creating collection %s: %w", c.collection, err)
	}
	return nil
}

// Upsert writes points in batches of UpsertBatchSize, assigning each a fresh
// random UUID. The wait flag makes writes durable before returning so a
// completed ingestion is immediately searchable.
func (c *Client) Upsert(ctx context.Context, points []Point) error {
	for start := 0; start < len(points); start += UpsertBatchSize {
		end := min(start+UpsertBatchSize, len(points))

		batch := make([]map[string]any, 0, end-start)
		for _, p := range points[start:end] {
			batch = append(batch, map[string]any{
				"id":      uuid.NewString(),
				"vector":  p.Vector,
				"payload": p.Payload,
			})
		}

		url := c.collectionURL() + "/points?wait=true"
		if err := c.do(ctx, http.MethodPut, url, map[string]any{"points": batch}, nil); err != nil {
			return fmt.Errorf("upserting points at offset %d: %w", start, err)
		}
	}
	return nil
}

// Search returns the topK most similar points, descending by score.
func (c *Client) Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error) {
	body := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}

	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload Payload `json:"payload"`
		} `json:"result"`
	}
	url := c.collectionURL() + "/points/search"
	if err := c.do(ctx, http.MethodPost, url, body, &resp); err != nil {
		return nil, fmt.Errorf("searching collection %s: %w", c.collection, err)
	}

	results := make([]SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, SearchResult{Payload: r.Payload, Score: r.Score})
	}
	return results, nil
}

// Ping verifies the collection exists and the instance is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.do(ctx, http.MethodGet, c.collectionURL(), nil, nil); err != nil {
		return fmt.Errorf("pinging collection %s: %w", c.collection, err)
	}
	return nil
}

func (c *Client) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
}

// apiError is a non-2xx response from the index.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("qdrant returned %d: %s", e.Status, e.Body)
}

func (c *Client) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &apiError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
