package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/docgpt/internal/app"
	"github.com/ternarybob/docgpt/internal/common"
)

func main() {
	configPath := flag.String("config", os.Getenv("DOCGPT_CONFIG"), "Configuration file path")
	userID := flag.String("user", os.Getenv("DOCGPT_MCP_USER"), "User whose documents the tools expose")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "A user is required: pass --user or set DOCGPT_MCP_USER")
		os.Exit(1)
	}

	common.LoadDotEnv()
	common.ResolveVersion()

	var paths []string
	if *configPath != "" {
		paths = append(paths, *configPath)
	} else if _, err := os.Stat("docgpt.toml"); err == nil {
		paths = append(paths, "docgpt.toml")
	}

	config, err := common.LoadFromFiles(paths...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Minimal logging to avoid cluttering MCP stdio
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	application, err := app.New(context.Background(), config, logger, app.Options{})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	mcpServer := server.NewMCPServer(
		"docgpt",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)
	registerTools(mcpServer, application.DocumentService, *userID, logger)

	// Start server (blocks on stdio)
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
