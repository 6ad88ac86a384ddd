package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"crenews/config"
	"crenews/internal/adapter/boltindex"
	"crenews/internal/adapter/embedding"
	"crenews/internal/adapter/memindex"
	"crenews/internal/adapter/qdrant"
	"crenews/internal/port"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
)

var rootCmd = &cobra.Command{
	Use:   "crenews",
	Short: "Embed and search real-estate news articles",
	Long: `crenews turns scraped real-estate news articles into vector embeddings
and serves similarity search over them.

Example usage:
  crenews embed --source credaily          # Embed pending articles
  crenews search -q "rent trends"          # Find similar articles
  crenews import --source credaily a.json  # Load scraped articles`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		// Secrets and connection details may live in a .env next to
		// the scrapers; absence is fine.
		_ = godotenv.Load()

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./crenews.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
}

// newEmbedder builds the embedding client from config. The model name
// "mock" short-circuits to the deterministic embedder for dry runs.
func newEmbedder() (port.Embedder, error) {
	if cfg.Embedding.Model == "mock" {
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	}
	return embedding.NewOpenAIEmbedder(
		cfg.Embedding.BaseURL,
		os.Getenv(cfg.Embedding.APIKeyEnv),
		cfg.Embedding.Model,
		embedding.Options{
			Dimension:  cfg.Embedding.Dimension,
			MaxBatch:   cfg.Embedding.BatchSize,
			MaxChars:   cfg.Embedding.MaxChars,
			MaxRetries: cfg.Embedding.MaxRetries,
		},
	)
}

// newVectorIndex builds the configured vector index backend.
func newVectorIndex() (port.VectorIndex, error) {
	switch cfg.Index.Provider {
	case "qdrant":
		return qdrant.NewClient(cfg.Index.URL, qdrant.Options{
			APIKey:     os.Getenv(cfg.Index.APIKeyEnv),
			BatchSize:  cfg.Index.BatchSize,
			MaxRetries: cfg.Index.MaxRetries,
		})
	case "bolt":
		return boltindex.Open(cfg.Index.Path)
	case "memory":
		return memindex.New(), nil
	default:
		return nil, fmt.Errorf("unsupported index provider: %s", cfg.Index.Provider)
	}
}
