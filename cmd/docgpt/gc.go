package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/docgpt/internal/app"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Retry pending vector deletions once",
	Long:  `Sweeps the orphaned-vector records left by partially failed document deletions.`,
	RunE:  runGC,
}

func runGC(cmd *cobra.Command, args []string) error {
	application, err := app.New(cmd.Context(), config, logger, app.Options{})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	result, err := application.Collector.SweepOnce(cmd.Context())
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "checked %d, cleaned %d, failed %d\n", result.Checked, result.Cleaned, result.Failed)
	return nil
}
