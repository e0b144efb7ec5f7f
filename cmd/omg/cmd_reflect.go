package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"omg/internal/reflection"
	"omg/internal/store"
)

var (
	reflectCompressionLevel int
	reflectSummary          bool
	reflectValidateIndex    bool
)

var reflectCmd = &cobra.Command{
	Use:   "reflect",
	Short: "Cluster and compress registry entries into reflection nodes",
	RunE:  runReflect,
}

func init() {
	reflectCmd.Flags().IntVar(&reflectCompressionLevel, "compression-level", 1, "compression level to request from the oracle")
	reflectCmd.Flags().BoolVar(&reflectSummary, "summary", true, "print a styled result summary")
	reflectCmd.Flags().BoolVar(&reflectValidateIndex, "validate-index", false, "report dangling wikilinks without mutating the graph, then exit")
}

func runReflect(cmd *cobra.Command, args []string) error {
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}
	gs, err := openStore(ws)
	if err != nil {
		return err
	}

	if reflectValidateIndex {
		logger.Info("validating index links")
		dangling, err := store.ValidateLinks(gs)
		if err != nil {
			logger.Error("index validation failed", zap.Error(err))
			return err
		}
		logger.Info("index validation finished", zap.Int("dangling_links", len(dangling)))
		lines := make([]string, len(dangling))
		for i, d := range dangling {
			lines[i] = d.String()
		}
		printDanglingLinks(lines)
		return nil
	}

	cfg, err := loadConfig(ws)
	if err != nil {
		return err
	}
	gw, err := buildGateway()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Info("reflection starting", zap.Int("compression_level", reflectCompressionLevel))
	result, err := reflection.Run(ctx, gs, gw, cfg.Reflection, reflectCompressionLevel, defaultSystemPrompt)
	if err != nil {
		logger.Error("reflection failed", zap.Error(err))
		return err
	}
	logger.Info("reflection finished", zap.Int("clusters_processed", result.ClustersProcessed))
	if reflectSummary {
		printReflectionSummary(result)
	}
	return nil
}
