// Package main implements the omg CLI: a thin driver over the bootstrap,
// reflection, and dedup pipelines.
//
// # File Index
//
//   - main.go          - entry point, rootCmd, global flags, init()
//   - common.go        - workspace/config/gateway wiring shared by every subcommand
//   - cmd_bootstrap.go - bootstrapCmd: ingest markdown sources, optional --watch mode
//   - cmd_observe.go   - observeCmd: session-state trigger + incremental extraction
//   - cmd_reflect.go   - reflectCmd: compression pass, --validate-index diagnostics
//   - cmd_dedup.go     - dedupCmd: literal and semantic merge subcommands
//   - summary.go       - lipgloss-styled result printers for --summary
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"omg/internal/logging"
	"omg/internal/metrics"
)

var (
	verbose   bool
	workspace string
	apiKey    string
	baseURL   string
	model     string
	timeout   time.Duration
	cfgPath   string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "omg",
	Short: "omg - personal knowledge graph curation engine",
	Long: `omg curates a file-backed, wikilinked markdown knowledge graph from
conversational sources: bootstrap ingests raw text, observe/reflect
compress and cluster it over time, and dedup keeps it free of
near-duplicate nodes.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ws, err := resolveWorkspace()
		if err != nil {
			return err
		}
		logger.Info("starting command", zap.String("command", cmd.Name()), zap.String("workspace", ws))
		debug := verbose
		var categories map[logging.Category]bool
		if cfg, cfgErr := loadConfig(ws); cfgErr == nil {
			debug = debug || cfg.Logging.DebugMode
			for name, on := range cfg.Logging.Categories {
				if categories == nil {
					categories = make(map[logging.Category]bool)
				}
				categories[logging.Category(name)] = on
			}
		}
		if err := logging.Initialize(ws, debug, categories); err != nil {
			logger.Warn("file logging init failed", zap.Error(err))
		}
		if err := metrics.Init(ws); err != nil {
			logger.Warn("metrics sink init failed", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Info("command finished", zap.String("command", cmd.Name()))
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func resolveWorkspace() (string, error) {
	if workspace == "" {
		return os.Getwd()
	}
	return filepath.Abs(workspace)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace directory (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "oracle API key (or set OMG_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "https://api.openai.com/v1", "OpenAI-compatible chat completions base URL")
	rootCmd.PersistentFlags().StringVar(&model, "model", "gpt-4o-mini", "oracle model name")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "per-run timeout")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to .omg-config.yaml (default: <workspace>/.omg-config.yaml)")

	rootCmd.AddCommand(bootstrapCmd, observeCmd, reflectCmd, dedupCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
