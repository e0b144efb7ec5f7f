package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"omg/internal/config"
	"omg/internal/logging"
	"omg/internal/metrics"
	"omg/internal/observer"
	"omg/internal/oracle"
	"omg/internal/sessionstore"
	"omg/internal/store"
	"omg/internal/tokenbackoff"
)

// Result summarizes one bootstrap run. Pipelines never throw to the host
// (spec.md §7); errors surface through this struct and the failure log.
type Result struct {
	BatchesProcessed int
	BatchesRetried   int
	NodesWritten     int
	QualityWarnings  []string
}

// Options configures a bootstrap run.
type Options struct {
	Sources      []SourceEntry
	Force        bool
	SystemPrompt string
	Cfg          *config.Config

	// SessionStore and SessionKey are optional. When both are set, each
	// source is checked against the shingle cache before chunking and
	// near-duplicates of a previously ingested source are skipped.
	SessionStore *sessionstore.Store
	SessionKey   string
}

type aggregator struct {
	mu     sync.Mutex
	result Result
}

func (a *aggregator) addNodes(n int) {
	a.mu.Lock()
	a.result.NodesWritten += n
	a.mu.Unlock()
}

func (a *aggregator) incProcessed() {
	a.mu.Lock()
	a.result.BatchesProcessed++
	a.mu.Unlock()
}

func (a *aggregator) incRetried() {
	a.mu.Lock()
	a.result.BatchesRetried++
	a.mu.Unlock()
}

// Run executes the full bootstrap pipeline: chunk, batch, rate-limited
// fan-out against the oracle, write accepted operations, and finish with
// a quality report, per spec.md §4.7.
func Run(ctx context.Context, gs *store.GraphStore, gw *oracle.Gateway, sleeper tokenbackoff.Sleeper, opts Options) (Result, error) {
	log := logging.Get(logging.CategoryBootstrap)
	cfg := opts.Cfg
	if cfg == nil {
		cfg = config.Default()
	}
	if sleeper == nil {
		sleeper = tokenbackoff.RealSleeper
	}

	if opts.Force {
		if err := ClearFailureLog(gs.Root()); err != nil {
			log.Warn("force bootstrap: clear failure log failed: %v", err)
		}
	}

	sources := opts.Sources
	if opts.SessionStore != nil && opts.SessionKey != "" {
		sources = filterNearDuplicateSources(ctx, opts.SessionStore, opts.SessionKey, sources, log)
	}

	chunks := ChunkEntries(sources, cfg.Bootstrap.TokenBudgetPerChunk*4)
	if len(chunks) == 0 {
		return Result{}, nil
	}
	batches := BatchChunks(chunks, cfg.Bootstrap.BatchCharBudget)

	agg := &aggregator{}
	claimed := make(map[int]bool)
	var claimMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInt(1, cfg.Bootstrap.MaxConcurrentBatches))

	breaker := tokenbackoff.NewCircuitBreaker()

	for _, batch := range batches {
		batch := batch
		g.Go(func() error {
			claimMu.Lock()
			if claimed[batch.Index] {
				claimMu.Unlock()
				return nil
			}
			claimed[batch.Index] = true
			claimMu.Unlock()

			return processBatch(gctx, gs, gw, sleeper, breaker, cfg, opts.SystemPrompt, batch, agg)
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return agg.result, &oracle.PipelineAbortedError{Reason: "bootstrap run cancelled", Cause: err}
		}
	}

	report := QualityReport(gs)
	agg.mu.Lock()
	agg.result.QualityWarnings = report
	final := agg.result
	agg.mu.Unlock()
	return final, nil
}

func processBatch(ctx context.Context, gs *store.GraphStore, gw *oracle.Gateway, sleeper tokenbackoff.Sleeper, breaker *tokenbackoff.CircuitBreaker, cfg *config.Config, systemPrompt string, batch Batch, agg *aggregator) error {
	log := logging.Get(logging.CategoryBootstrap)
	labels := batchLabels(batch)
	userMsg := renderBatch(batch)

	rateLimitFailures := 0
	unreachableAttempts := 0

	for {
		if breaker.ShouldSkip() {
			metrics.RecordCircuitState("bootstrap", 2)
			return recordOther(gs, batch, labels, "circuit-open", fmt.Errorf("gateway circuit open, skipping batch %d", batch.Index))
		}

		start := time.Now()
		resp, err := gw.Call(ctx, oracle.Params{
			System:    systemPrompt,
			User:      userMsg,
			MaxTokens: 4096,
		})
		if err == nil {
			breaker.RecordSuccess()
			metrics.RecordCircuitState("bootstrap", 0)
			metrics.RecordBatchDuration("success", time.Since(start))
			agg.incProcessed()
			return writeAccepted(gs, cfg, batch, labels, resp.Content, agg)
		}
		metrics.RecordBatchDuration("failure", time.Since(start))

		var rle *oracle.RateLimitError
		var gue *oracle.GatewayUnreachableError
		switch {
		case errors.As(err, &rle):
			rateLimitFailures++
			agg.incRetried()
			metrics.RecordBatchRetry("rate-limit")
			if rateLimitFailures > cfg.Backoff.MaxRateLimitRetries {
				return recordOther(gs, batch, labels, "rate-limit-exhausted", err)
			}
			backoffMs := tokenbackoff.ComputeBackoffMs(rateLimitFailures, cfg.Backoff.ScheduleSeconds)
			log.Warn("batch %d rate limited, backing off %dms", batch.Index, backoffMs)
			sleeper.Sleep(time.Duration(backoffMs) * time.Millisecond)
			continue

		case errors.As(err, &gue):
			breaker.RecordFailure()
			circuitGauge := 0
			if breaker.State() == tokenbackoff.StateOpen {
				circuitGauge = 2
			}
			metrics.RecordCircuitState("bootstrap", circuitGauge)
			unreachableAttempts++
			metrics.RecordBatchRetry("unreachable")
			if unreachableAttempts > cfg.Backoff.MaxUnreachableRetries {
				return recordOther(gs, batch, labels, "unreachable", err)
			}
			agg.incRetried()
			continue

		default:
			return recordOther(gs, batch, labels, "other", err)
		}
	}
}

func writeAccepted(gs *store.GraphStore, cfg *config.Config, batch Batch, labels []string, content string, agg *aggregator) error {
	parsed := observer.Parse(content)
	totalCandidates := len(parsed.Upserts) + parsed.DroppedCount

	if len(parsed.Upserts) == 0 {
		if totalCandidates > 0 {
			return AppendFailure(gs.Root(), FailureEntry{
				BatchIndex: batch.Index, Labels: labels, ErrorType: "zero-operations",
				Error: "oracle returned no accepted operations", Timestamp: nowRFC3339(),
				Diagnostics: map[string]interface{}{
					"totalCandidates": totalCandidates, "accepted": 0, "rejectedReasons": parsed.DroppedCount,
				},
				ChunkCount: len(batch.Chunks),
			})
		}
		return AppendFailure(gs.Root(), FailureEntry{
			BatchIndex: batch.Index, Labels: labels, ErrorType: "parse-empty",
			Error: "oracle response had no parseable observations", Timestamp: nowRFC3339(),
			ChunkCount: len(batch.Chunks),
		})
	}

	summary, err := observer.Apply(gs, parsed, cfg.Reflection)
	if err != nil {
		return err
	}
	agg.addNodes(summary.NodesCreated + summary.NodesUpdated)
	metrics.RecordNodesWritten("bootstrap", "create", summary.NodesCreated)
	metrics.RecordNodesWritten("bootstrap", "update", summary.NodesUpdated)
	return nil
}

func recordOther(gs *store.GraphStore, batch Batch, labels []string, errType string, cause error) error {
	return AppendFailure(gs.Root(), FailureEntry{
		BatchIndex: batch.Index, Labels: labels, ErrorType: errType,
		Error: cause.Error(), Timestamp: nowRFC3339(), ChunkCount: len(batch.Chunks),
	})
}

func batchLabels(b Batch) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range b.Chunks {
		if !seen[c.Source] {
			seen[c.Source] = true
			out = append(out, c.Source)
		}
	}
	return out
}

func renderBatch(b Batch) string {
	var sb strings.Builder
	for _, c := range b.Chunks {
		fmt.Fprintf(&sb, "### source=%s chunk=%d\n%s\n\n", c.Source, c.ChunkIndex, c.Text)
	}
	return sb.String()
}

func nowRFC3339() string { return time.Now().UTC().Format(time.RFC3339) }

func filterNearDuplicateSources(ctx context.Context, ss *sessionstore.Store, sessionKey string, sources []SourceEntry, log *logging.Logger) []SourceEntry {
	kept := make([]SourceEntry, 0, len(sources))
	for _, src := range sources {
		matchedID, dup, err := sessionstore.CheckAndRecord(ctx, ss, sessionKey, src.Label, src.Text)
		if err != nil {
			log.Warn("near-duplicate check failed for %s: %v", src.Label, err)
			kept = append(kept, src)
			continue
		}
		if dup {
			log.Info("skipping %s as a near-duplicate of %s", src.Label, matchedID)
			continue
		}
		kept = append(kept, src)
	}
	return kept
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
