package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/docgpt/internal/app"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the vectors of every stored document",
	Long: `Extracts and embeds every stored document again from its original file.
Run after changing the embedding model or dimension.`,
	RunE: runReindex,
}

func runReindex(cmd *cobra.Command, args []string) error {
	application, err := app.New(cmd.Context(), config, logger, app.Options{})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	results, err := application.DocumentService.ReindexAll(cmd.Context())
	for _, result := range results {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d pages\t%d chunks\n", result.DocumentID, result.PageCount, result.ChunkCount)
	}
	if err != nil {
		return fmt.Errorf("reindex finished with failures: %w", err)
	}

	logger.Info().Int("documents", len(results)).Msg("Reindex complete")
	return nil
}
