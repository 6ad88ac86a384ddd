package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"crenews/internal/domain"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List known article sources",
	RunE:  runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, args []string) error {
	index, err := newVectorIndex()
	if err != nil {
		return fmt.Errorf("failed to open vector index: %w", err)
	}
	defer index.Close()

	for _, source := range domain.Sources() {
		collection := domain.CollectionName(source)
		line := fmt.Sprintf("%-18s collection=%s", source, collection)
		if n, err := index.Count(cmd.Context(), collection); err == nil {
			line += fmt.Sprintf(" points=%d", n)
		}
		fmt.Println(line)
	}
	return nil
}
