package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"crenews/internal/adapter/articlestore"
	"crenews/internal/domain"
)

var importSource string

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Load scraped articles into the relational store",
	Long: `Read a JSON array of scraped articles and upsert them into the
source's table. Rows with a link already present are overwritten.

Example:
  crenews import --source credaily scraped/credaily.json`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVarP(&importSource, "source", "s", "", "source tag (required)")
	importCmd.MarkFlagRequired("source")
}

// importedArticle mirrors the scrapers' JSON output. Categories arrive as
// a list and are stored comma-joined.
type importedArticle struct {
	Title      string   `json:"title"`
	Link       string   `json:"link"`
	Summary    string   `json:"summary"`
	Author     string   `json:"author"`
	Date       string   `json:"date"`
	Categories []string `json:"categories"`
	Content    string   `json:"content"`
}

func runImport(cmd *cobra.Command, args []string) error {
	if !domain.ValidSource(importSource) {
		return fmt.Errorf("invalid --source %q: known tags are %v", importSource, domain.Sources())
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	var imported []importedArticle
	if err := json.Unmarshal(data, &imported); err != nil {
		return fmt.Errorf("failed to parse %s: %w", args[0], err)
	}

	articles := make([]domain.Article, 0, len(imported))
	for _, a := range imported {
		if a.Link == "" {
			continue
		}
		articles = append(articles, domain.Article{
			Title:      a.Title,
			Link:       a.Link,
			Summary:    a.Summary,
			Author:     a.Author,
			Date:       a.Date,
			Categories: strings.Join(a.Categories, ","),
			Content:    a.Content,
			Source:     importSource,
		})
	}

	store, err := articlestore.New(cfg.DatabaseDSN())
	if err != nil {
		return fmt.Errorf("failed to open article store: %w", err)
	}
	defer store.Close()

	written, err := store.Upsert(cmd.Context(), importSource, articles)
	if err != nil {
		return fmt.Errorf("import failed after %d rows: %w", written, err)
	}

	fmt.Printf("Imported %d of %d articles into %s\n", written, len(imported), domain.CollectionName(importSource))
	return nil
}
