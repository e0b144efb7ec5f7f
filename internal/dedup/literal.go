package dedup

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"omg/internal/config"
	"omg/internal/logging"
	"omg/internal/metrics"
	"omg/internal/model"
	"omg/internal/oracle"
	"omg/internal/store"
)

// LiteralResult summarizes one literal-dedup run.
type LiteralResult struct {
	ClustersSubmitted int
	MergesExecuted    int
	MergeErrors       int
}

type literalResponse struct {
	MergePlans []MergePlan `json:"mergePlans"`
}

func stripJSONFences(raw string) string {
	if idx := strings.Index(raw, "```"); idx >= 0 {
		rest := raw[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		rest = strings.TrimPrefix(rest, "\n")
		if end := strings.LastIndex(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		return rest
	}
	return raw
}

func validPlan(p MergePlan) bool {
	return p.KeepNodeID != "" && len(p.MergeNodeIDs) > 0
}

// RunLiteral drives the three-pass literal dedup: load state and
// registry, build heuristic candidate clusters, make a single oracle
// call over all clusters, and execute the returned merge plans, per
// spec.md §4.9. lastDedupAt advances whenever the oracle call succeeds and
// its response parses as JSON, independent of any individual merge's
// outcome; a failed call or an unparseable response leaves state untouched.
func RunLiteral(ctx context.Context, gs *store.GraphStore, gw *oracle.Gateway, cfg *config.Config, systemPrompt string) (LiteralResult, error) {
	log := logging.Get(logging.CategoryDedup)
	res := LiteralResult{}

	entries, err := gs.GetEntries()
	if err != nil {
		return res, fmt.Errorf("dedup: literal: read registry: %w", err)
	}

	list := make([]model.RegistryEntry, 0, len(entries))
	for _, e := range entries {
		if !e.Archived {
			list = append(list, e)
		}
	}

	clusters := BuildCandidateClusters(list, cfg.Dedup, cfg.Similarity.DedupThreshold, cfg.Dedup.StaleDaysThreshold)
	if len(clusters) == 0 {
		return res, nil
	}
	res.ClustersSubmitted = len(clusters)

	prompt := renderLiteralPrompt(clusters)
	resp, err := gw.Call(ctx, oracle.Params{System: systemPrompt, User: prompt, MaxTokens: 4096})
	if err != nil {
		log.Warn("dedup: literal: oracle call failed: %v", err)
		return res, nil
	}

	var parsed literalResponse
	content := strings.TrimSpace(stripJSONFences(resp.Content))
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		log.Warn("dedup: literal: response schema validation failed: %v", err)
		return res, nil
	}

	state, err := LoadState(gs.Root())
	if err != nil {
		state = &State{}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	state.LastDedupAt = &now
	state.RunsCompleted++

	for _, plan := range parsed.MergePlans {
		if !validPlan(plan) {
			log.Warn("dedup: literal: dropping malformed merge plan")
			continue
		}
		if err := ExecuteMergePlan(gs, plan); err != nil {
			log.Warn("dedup: literal: merge %s failed: %v", plan.KeepNodeID, err)
			res.MergeErrors++
			continue
		}
		res.MergesExecuted++
		state.TotalMerges++
		metrics.RecordMerge("literal")
	}

	if err := SaveState(gs.Root(), state); err != nil {
		log.Warn("dedup: literal: save state failed: %v", err)
	}

	return res, nil
}

func renderLiteralPrompt(clusters []Cluster) string {
	var sb strings.Builder
	sb.WriteString("candidate clusters:\n")
	for i, c := range clusters {
		fmt.Fprintf(&sb, "cluster %d:\n", i)
		for _, e := range c.Entries {
			fmt.Fprintf(&sb, "  id=%s key=%s desc=%s\n", e.ID, e.CanonicalKey, e.Description)
		}
	}
	return sb.String()
}
