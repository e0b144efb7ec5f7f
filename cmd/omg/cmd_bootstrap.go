package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"omg/internal/bootstrap"
	"omg/internal/config"
	"omg/internal/logging"
	"omg/internal/oracle"
	"omg/internal/sessionstore"
	"omg/internal/store"
	"omg/internal/tokenbackoff"
	"omg/internal/watch"
)

var (
	bootstrapForce     bool
	bootstrapSummary   bool
	bootstrapWatch     bool
	bootstrapWatchDir  string
	bootstrapSessionID string
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Ingest workspace markdown sources into the knowledge graph",
	RunE:  runBootstrap,
}

func init() {
	bootstrapCmd.Flags().BoolVarP(&bootstrapForce, "force", "f", false, "clear the prior failure log before running")
	bootstrapCmd.Flags().BoolVar(&bootstrapSummary, "summary", true, "print a styled result summary")
	bootstrapCmd.Flags().BoolVar(&bootstrapWatch, "watch", false, "watch --watch-dir for new transcript files and bootstrap each as it settles")
	bootstrapCmd.Flags().StringVar(&bootstrapWatchDir, "watch-dir", "", "directory to watch (default: <workspace>/transcripts)")
	bootstrapCmd.Flags().StringVar(&bootstrapSessionID, "session", "default", "session key for the near-duplicate source cache")
}

func runBootstrap(cmd *cobra.Command, args []string) error {
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
	ss, err := sessionstore.Open(filepath.Join(ws, ".omg-state", "shingles.db"))
	if err != nil {
		return fmt.Errorf("open sessionstore: %w", err)
	}
	defer ss.Close()

	if bootstrapWatch {
		return runBootstrapWatch(ws, gs, gw, ss, cfg)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sources, err := bootstrap.ReadMarkdownSources(ws)
	if err != nil {
		return fmt.Errorf("read sources: %w", err)
	}

	logger.Info("bootstrap starting", zap.Int("sources", len(sources)), zap.Bool("force", bootstrapForce))
	result, err := bootstrap.Run(ctx, gs, gw, tokenbackoff.RealSleeper, bootstrap.Options{
		Sources:      sources,
		Force:        bootstrapForce,
		SystemPrompt: defaultSystemPrompt,
		Cfg:          cfg,
		SessionStore: ss,
		SessionKey:   bootstrapSessionID,
	})
	if err != nil {
		logger.Error("bootstrap failed", zap.Error(err))
		return err
	}
	logger.Info("bootstrap finished", zap.Int("nodes_written", result.NodesWritten))
	if bootstrapSummary {
		printBootstrapSummary(result)
	}
	return nil
}

// runBootstrapWatch blocks, running one bootstrap pass per settled
// transcript file dropped into --watch-dir, until interrupted with
// SIGINT/SIGTERM.
func runBootstrapWatch(ws string, gs *store.GraphStore, gw *oracle.Gateway, ss *sessionstore.Store, cfg *config.Config) error {
	log := logging.Get(logging.CategoryBootstrap)

	dir := bootstrapWatchDir
	if dir == "" {
		dir = filepath.Join(ws, "transcripts")
	}

	w, err := watch.New(dir, []string{".md", ".txt"})
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handle := func(path string) {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn("watch: read %s failed: %v", path, err)
			return
		}
		rel := filepath.Base(path)
		runCtx, cancel := context.WithTimeout(ctx, timeout)
		result, err := bootstrap.Run(runCtx, gs, gw, tokenbackoff.RealSleeper, bootstrap.Options{
			Sources:      []bootstrap.SourceEntry{{Label: rel, Text: string(data)}},
			SystemPrompt: defaultSystemPrompt,
			Cfg:          cfg,
			SessionStore: ss,
			SessionKey:   bootstrapSessionID,
		})
		cancel()
		if err != nil {
			log.Error("watch: bootstrap run for %s failed: %v", rel, err)
			return
		}
		log.Info("watch: bootstrapped %s (%d nodes written)", rel, result.NodesWritten)
		if bootstrapSummary {
			printBootstrapSummary(result)
		}
	}

	if err := w.Start(ctx, handle); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer w.Stop()

	logger.Info("watch mode started", zap.String("dir", dir))
	fmt.Printf("watching %s for new transcripts (ctrl-c to stop)\n", dir)
	<-ctx.Done()
	return nil
}
