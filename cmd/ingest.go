package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/QatreenFatima/ai-book/internal/config"
	"github.com/QatreenFatima/ai-book/internal/document"
	"github.com/QatreenFatima/ai-book/internal/embedding"
	"github.com/QatreenFatima/ai-book/internal/ingest"
	"github.com/QatreenFatima/ai-book/internal/token"
	"github.com/QatreenFatima/ai-book/internal/vectordb"
)

var (
	ingestReset    bool
	ingestDocsPath string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index the book's MDX pages into the vector database",
	Long: `ingest walks the documentation directory, splits each MDX page into
section-aware chunks, embeds them, and upserts the vectors into Qdrant.

With --reset the collection is dropped and recreated first. Without it the
collection is created only if missing and new points are added to it.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runIngest(cmd.OutOrStdout())
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestReset, "reset", false, "drop and recreate the collection before indexing")
	ingestCmd.Flags().StringVar(&ingestDocsPath, "docs-path", "", "directory to index (overrides the configured docs path)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	if ingestDocsPath != "" {
		cfg.DocsPath = ingestDocsPath
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()

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

	pipeline := ingest.NewPipeline(cfg.DocsPath, document.NewChunker(counter), gateway, index, logger)

	summary, err := pipeline.Run(ctx, ingestReset)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Fprintf(out, "Processed %d files into %d chunks\n", summary.FilesProcessed, summary.ChunksCreated)
	for _, msg := range summary.Errors {
		fmt.Fprintf(out, "  warning: %s\n", msg)
	}
	return nil
}
