// Package ingest runs the book ingestion pipeline: discover MDX pages,
// chunk them, embed the chunks and write them to the vector index.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/QatreenFatima/ai-book/internal/document"
	"github.com/QatreenFatima/ai-book/internal/log"
	"github.com/QatreenFatima/ai-book/internal/vectordb"
)

// Timeout bounds a full ingestion run. A book-sized corpus finishes well
// under this; hitting it means the embedding endpoint or index is stuck.
const Timeout = 5 * time.Minute

// ErrBusy indicates an ingestion run is already in progress.
var ErrBusy = errors.New("ingestion already running")

// Embedder produces vectors for chunk texts.
// Satisfied by embedding.Gateway.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	DetectDimension(ctx context.Context) (int, error)
}

// Index receives embedded chunks.
// Satisfied by vectordb.Client.
type Index interface {
	Reset(ctx context.Context, dimension int) error
	Ensure(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, points []vectordb.Point) error
}

// Summary reports the outcome of one ingestion run. Errors holds per-file
// failures; a run with errors still indexes every file that succeeded.
type Summary struct {
	FilesProcessed int      `json:"files_processed"`
	ChunksCreated  int      `json:"chunks_created"`
	Errors         []string `json:"errors"`
}

// Pipeline ingests a docs directory into the vector index. At most one run
// executes at a time; concurrent calls fail fast with ErrBusy rather than
// queueing writes against a collection that is being rebuilt.
type Pipeline struct {
	docsPath string
	chunker  *document.Chunker
	embedder Embedder
	index    Index
	logger   log.Logger

	mu sync.Mutex
}

// NewPipeline creates a Pipeline over the given docs directory.
func NewPipeline(docsPath string, chunker *document.Chunker, embedder Embedder, index Index, logger log.Logger) *Pipeline {
	return &Pipeline{
		docsPath: docsPath,
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		logger:   logger,
	}
}

// Run executes one ingestion pass. With reset true the collection is dropped
// and recreated before indexing; otherwise it is created only if missing and
// new points accumulate alongside the old ones.
//
// Files are processed in sorted order and independently: a file that fails to
// embed or upsert is reported in the summary and skipped, the rest still
// land. Only setup failures (no files, dimension probe, collection) abort
// the run.
func (p *Pipeline) Run(ctx context.Context, reset bool) (*Summary, error) {
	if !p.mu.TryLock() {
		return nil, ErrBusy
	}
	defer p.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	files, err := p.discoverFiles()
	if err != nil {
		return nil, err
	}

	dimension, err := p.embedder.DetectDimension(ctx)
	if err != nil {
		return nil, fmt.Errorf("detecting embedding dimension: %w", err)
	}

	if reset {
		err = p.index.Reset(ctx, dimension)
	} else {
		err = p.index.Ensure(ctx, dimension)
	}
	if err != nil {
		return nil, fmt.Errorf("preparing collection: %w", err)
	}

	p.logger.Info("ingestion started",
		"files", len(files),
		"dimension", dimension,
		"reset", reset)

	summary := &Summary{FilesProcessed: len(files), Errors: []string{}}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ingestion aborted: %w", err)
		}

		relative, chunks, err := p.ingestFile(ctx, file)
		if err != nil {
			p.logger.Warn("file skipped", "file", relative, "error", err)
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", relative, err))
			continue
		}

		summary.ChunksCreated += chunks
		p.logger.Info("file ingested", "file", relative, "chunks", chunks)
	}

	p.logger.Info("ingestion finished",
		"files", summary.FilesProcessed,
		"chunks", summary.ChunksCreated,
		"errors", len(summary.Errors))
	return summary, nil
}

// discoverFiles lists the .mdx files under the docs root, sorted by path so
// runs are deterministic.
func (p *Pipeline) discoverFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(p.docsPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".mdx") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning docs directory %s: %w", p.docsPath, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .mdx files found in %s", p.docsPath)
	}

	sort.Strings(files)
	return files, nil
}

// ingestFile processes one page end to end and returns its docs-relative
// path and the number of chunks written.
func (p *Pipeline) ingestFile(ctx context.Context, path string) (string, int, error) {
	relative, err := filepath.Rel(p.docsPath, path)
	if err != nil {
		relative = path
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return relative, 0, fmt.Errorf("reading file: %w", err)
	}

	title, body := document.ParseMDX(string(raw))
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), ".mdx")
	}

	sections := document.SplitSections(body)
	if len(sections) == 0 {
		return relative, 0, errors.New("no sections found")
	}

	chunks := p.chunker.ChunkDocument(sections)
	if len(chunks) == 0 {
		return relative, 0, errors.New("no chunks produced")
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return relative, 0, fmt.Errorf("embedding failed: %w", err)
	}

	points := make([]vectordb.Point, len(chunks))
	for i, chunk := range chunks {
		points[i] = vectordb.Point{
			Vector: vectors[i],
			Payload: vectordb.Payload{
				Text:         chunk.Text,
				Source:       filepath.ToSlash(relative),
				SectionTitle: chunk.SectionTitle,
				PageTitle:    title,
				ChunkIndex:   chunk.Index,
			},
		}
	}

	if err := p.index.Upsert(ctx, points); err != nil {
		return relative, 0, fmt.Errorf("upsert failed: %w", err)
	}

	return relative, len(points), nil
}
