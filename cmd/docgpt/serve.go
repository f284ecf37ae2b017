package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/docgpt/internal/app"
	"github.com/ternarybob/docgpt/internal/common"
	"github.com/ternarybob/docgpt/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  `Starts the DocGPT server with the document, session and chat APIs and the background vector garbage collector.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	common.PrintBanner(common.GetVersion())

	if len(config.Auth.Tokens) == 0 {
		logger.Warn().Msg("No auth tokens configured; every API request will be rejected")
	}

	application, err := app.New(cmd.Context(), config, logger, app.Options{WithGenerator: true})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	if err := application.StartBackground(); err != nil {
		return fmt.Errorf("failed to start background tasks: %w", err)
	}

	srv := server.New(application)

	errChan := make(chan error, 1)
	common.SafeGo(logger, "http-server", func() {
		errChan <- srv.Start()
	})

	logger.Info().
		Str("url", fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)).
		Msg("Server ready - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info().Msg("Interrupt signal received")
	case err := <-errChan:
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}

	logger.Info().Msg("Server stopped")
	return nil
}
