package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"crenews/internal/domain"
	"crenews/internal/usecase"
)

var (
	searchQuery  string
	searchSource string
	searchTopK   int
	searchJSON   bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Find articles similar to a query",
	Long: `Embed the query text and return the closest articles from the
source's collection, ranked by cosine similarity.

Examples:
  crenews search -q "rent trends"
  crenews search -q "office vacancy" --source multihousing -k 10 --json`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "search query (required)")
	searchCmd.Flags().StringVarP(&searchSource, "source", "s", domain.SourceMultifamilyDive, "source tag")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	searchCmd.MarkFlagRequired("query")
}

func runSearch(cmd *cobra.Command, args []string) error {
	embedder, err := newEmbedder()
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	index, err := newVectorIndex()
	if err != nil {
		return fmt.Errorf("failed to open vector index: %w", err)
	}
	defer index.Close()

	topK := cfg.Search.TopK
	if searchTopK > 0 {
		topK = searchTopK
	}

	searcher := usecase.NewSearcher(embedder, index)
	results, err := searcher.Search(cmd.Context(), searchQuery, searchSource, topK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Search results for %q in %s:\n", searchQuery, searchSource)
	for i, r := range results {
		fmt.Printf("\n%d. %s\n", i+1, r.Title)
		fmt.Printf("   Similarity: %.4f\n", r.Similarity)
		if r.Author != "" {
			fmt.Printf("   Author: %s\n", r.Author)
		}
		if r.Date != "" {
			fmt.Printf("   Date: %s\n", r.Date)
		}
		fmt.Printf("   Link: %s\n", r.Link)
		if r.Summary != "" {
			summary := r.Summary
			if len(summary) > 150 {
				summary = summary[:150] + "..."
			}
			fmt.Printf("   Summary: %s\n", summary)
		}
	}
	return nil
}
