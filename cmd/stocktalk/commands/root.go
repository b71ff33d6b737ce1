// Package commands defines all Cobra CLI commands for the stocktalk binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/rowanv/stocktalk/internal/audit"
	"github.com/rowanv/stocktalk/internal/config"
	"github.com/rowanv/stocktalk/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "stocktalk",
		Short: "StockTalk — a conversational assistant for furniture inventory",
		Long: `StockTalk is a local-first AI assistant for furniture store staff and shoppers.

It answers natural language questions about what is in stock, looking items
up by meaning (vector search over item descriptions) with a plain substring
fallback, and keeps per-thread conversation history so follow-up questions
stay in context.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.stocktalk/config.yaml).
See 'stocktalk --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.stocktalk/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewAnswerCmd(),
		NewServeCmd(),
		NewSeedCmd(),
		NewVersionCmd(),
	)

	return root
}
