package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"omg/internal/dedup"
)

var dedupSummary bool

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Find and merge duplicate nodes",
}

var dedupLiteralCmd = &cobra.Command{
	Use:   "literal",
	Short: "Run the literal (exact/near-exact canonical key) dedup engine",
	RunE:  runDedupLiteral,
}

var dedupSemanticCmd = &cobra.Command{
	Use:   "semantic",
	Short: "Run the semantic (meaning-level) dedup engine",
	RunE:  runDedupSemantic,
}

func init() {
	dedupCmd.PersistentFlags().BoolVar(&dedupSummary, "summary", true, "print a styled result summary")
	dedupCmd.AddCommand(dedupLiteralCmd, dedupSemanticCmd)
}

func runDedupLiteral(cmd *cobra.Command, args []string) error {
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(ws)
	if err != nil {
		return err
	}
	gs, err := openStore(ws)
	if err != nil {
		return err
	}
	gw, err := buildGateway()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Info("literal dedup starting")
	result, err := dedup.RunLiteral(ctx, gs, gw, cfg, defaultSystemPrompt)
	if err != nil {
		logger.Error("literal dedup failed", zap.Error(err))
		return err
	}
	logger.Info("literal dedup finished", zap.Int("merges_executed", result.MergesExecuted))
	if dedupSummary {
		printLiteralSummary(result)
	}
	return nil
}

func runDedupSemantic(cmd *cobra.Command, args []string) error {
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(ws)
	if err != nil {
		return err
	}
	gs, err := openStore(ws)
	if err != nil {
		return err
	}
	gw, err := buildGateway()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Info("semantic dedup starting")
	result, err := dedup.RunSemantic(ctx, gs, gw, cfg, defaultSystemPrompt)
	if err != nil {
		logger.Error("semantic dedup failed", zap.Error(err))
		return err
	}
	logger.Info("semantic dedup finished", zap.Int("merges_executed", result.MergesExecuted))
	if dedupSummary {
		printSemanticSummary(result)
	}
	return nil
}
