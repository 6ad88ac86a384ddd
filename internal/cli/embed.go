package cli

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"crenews/internal/adapter/articlestore"
	"crenews/internal/domain"
	"crenews/internal/usecase"
)

var (
	embedSource    string
	embedLimit     int
	embedBatchSize int
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Embed stored articles into the vector index",
	Long: `Fetch stored articles in batches, generate embeddings and upsert them
into the per-source vector collection. Re-embedding an article overwrites
its point.

The --source flag accepts a tag or a glob over the known tags:

  crenews embed --source credaily
  crenews embed --source 'multi*' --limit 200`,
	RunE: runEmbed,
}

func init() {
	rootCmd.AddCommand(embedCmd)
	embedCmd.Flags().StringVarP(&embedSource, "source", "s", "", "source tag or glob (required)")
	embedCmd.Flags().IntVarP(&embedLimit, "limit", "l", 0, "max articles per source (0 = all)")
	embedCmd.Flags().IntVarP(&embedBatchSize, "batch-size", "b", 0, "articles per batch (default from config)")
	embedCmd.MarkFlagRequired("source")
}

func runEmbed(cmd *cobra.Command, args []string) error {
	sources, err := domain.MatchSources(embedSource)
	if err != nil {
		return fmt.Errorf("invalid --source %q: known tags are %v", embedSource, domain.Sources())
	}

	store, err := articlestore.New(cfg.DatabaseDSN())
	if err != nil {
		return fmt.Errorf("failed to open article store: %w", err)
	}
	defer store.Close()

	embedder, err := newEmbedder()
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	index, err := newVectorIndex()
	if err != nil {
		return fmt.Errorf("failed to open vector index: %w", err)
	}
	defer index.Close()

	batchSize := cfg.Pipeline.BatchSize
	if embedBatchSize > 0 {
		batchSize = embedBatchSize
	}

	var fatal error
	for _, source := range sources {
		fmt.Printf("Embedding %s (model %s, batch size %d)...\n", source, embedder.ModelName(), batchSize)

		bar := newEmbedBar(embedLimit)
		pipeline := usecase.NewPipeline(store, embedder, index, usecase.PipelineOptions{
			BatchSize:  batchSize,
			MaxRetries: cfg.Pipeline.MaxRetries,
			OnBatch: func(p usecase.BatchProgress) {
				bar.Set(p.Processed + p.Failed)
			},
		})

		summary, err := pipeline.Run(cmd.Context(), source, embedLimit)
		bar.Finish()
		fmt.Println()

		printSummary(summary)
		if err != nil {
			fatal = fmt.Errorf("%s: %w", source, err)
			break
		}
	}

	if fatal != nil {
		return fatal
	}
	return nil
}

func newEmbedBar(limit int) *progressbar.ProgressBar {
	total := limit
	if total <= 0 {
		total = -1 // unknown, render as a spinner with counts
	}
	return progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
	)
}

func printSummary(s domain.RunSummary) {
	fmt.Printf("Summary for %s:\n", s.Source)
	fmt.Printf("  Batches:   %d\n", s.Batches)
	fmt.Printf("  Processed: %d\n", s.Processed)
	fmt.Printf("  Failed:    %d\n", s.Failed)
	if len(s.FailedIDs) > 0 {
		fmt.Printf("  Failed article ids: %v\n", s.FailedIDs)
	}
	for _, e := range s.Errors {
		fmt.Printf("  - %s\n", e)
	}
}
