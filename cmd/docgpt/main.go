package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/common"
)

var (
	// Command-line flags
	configFiles []string // Multiple --config flags supported
	serverPort  int
	serverHost  string

	// Global state
	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:           "docgpt",
	Short:         "Chat with your PDF documents",
	Long:          `DocGPT indexes uploaded PDF documents and answers questions about them with retrieval-augmented generation.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		common.ResolveVersion()
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return loadConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().StringArrayVarP(&configFiles, "config", "c", nil, "Configuration file path (can be specified multiple times, later files override earlier ones)")
	rootCmd.PersistentFlags().IntVarP(&serverPort, "port", "p", 0, "Server port (overrides config)")
	rootCmd.PersistentFlags().StringVar(&serverHost, "host", "", "Server host (overrides config)")

	rootCmd.AddCommand(serveCmd, reindexCmd, gcCmd, versionCmd)
}

// loadConfig runs the startup sequence shared by every command:
// .env -> defaults -> file1 -> file2 -> ... -> env -> CLI flags, then the logger
func loadConfig() error {
	common.LoadDotEnv()

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		for _, candidate := range []string{"docgpt.toml", "docgpt.yaml", "deployments/local/docgpt.toml"} {
			if _, err := os.Stat(candidate); err == nil {
				configFiles = append(configFiles, candidate)
				break
			}
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		return fmt.Errorf("failed to load configuration %v: %w", configFiles, err)
	}

	common.ApplyFlagOverrides(config, serverPort, serverHost)

	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger = common.InitLogger(config)

	logger.Debug().
		Strs("config_files", configFiles).
		Str("embedding_provider", string(config.Embedding.Provider)).
		Str("vector_provider", string(config.Vector.Provider)).
		Str("llm_provider", string(config.LLM.DefaultProvider)).
		Str("log_level", config.Logging.Level).
		Msg("Resolved configuration (sanitized)")
	return nil
}

func main() {
	common.InstallCrashHandler("")
	defer common.RecoverWithCrashFile()

	if err := rootCmd.Execute(); err != nil {
		if logger != nil {
			logger.Error().Err(err).Msg("Command failed")
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
