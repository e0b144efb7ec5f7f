package dedup

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"omg/internal/config"
	"omg/internal/logging"
	"omg/internal/metrics"
	"omg/internal/model"
	"omg/internal/oracle"
	"omg/internal/similarity"
	"omg/internal/store"
)

// SemanticResult summarizes one semantic-dedup run.
type SemanticResult struct {
	Disabled        bool
	BlocksSubmitted int
	MergesExecuted  int
	MergeErrors     int
}

type semanticSuggestion struct {
	KeepNodeID      string   `json:"keepNodeId"`
	MergeNodeIDs    []string `json:"mergeNodeIds"`
	SimilarityScore float64  `json:"similarityScore"`
	Rationale       string   `json:"rationale"`
}

type semanticResponse struct {
	Suggestions []semanticSuggestion `json:"suggestions"`
}

// BuildSemanticBlocks prefilters candidate pairs per domain at a lower
// threshold than literal dedup, groups connected nodes into blocks
// bounded by size and time window, and caps the number of blocks
// returned, per spec.md §4.9.
func BuildSemanticBlocks(entries []model.RegistryEntry, cfg config.SemanticConfig, prefilterThreshold float64) []Cluster {
	byDomain := make(map[string][]model.RegistryEntry)
	for _, e := range entries {
		if e.Archived {
			continue
		}
		d := similarity.ResolveDomain(e.Links, e.CanonicalKey)
		byDomain[d] = append(byDomain[d], e)
	}

	domains := make([]string, 0, len(byDomain))
	for d := range byDomain {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	window := time.Duration(cfg.TimeWindowDays) * 24 * time.Hour
	var blocks []Cluster

	for _, d := range domains {
		group := byDomain[d]
		sort.Slice(group, func(i, j int) bool { return group[i].Updated < group[j].Updated })

		uf := newUnionFind(len(group))
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				if cfg.TimeWindowDays > 0 {
					gap := parseEntryTime(b).Sub(parseEntryTime(a))
					if gap < 0 {
						gap = -gap
					}
					if gap > window {
						continue
					}
				}
				score := similarity.CombinedSimilarity(a.Description, b.Description, a.CanonicalKey, b.CanonicalKey)
				if score >= prefilterThreshold {
					uf.union(i, j)
				}
			}
		}

		byRoot := make(map[int][]model.RegistryEntry)
		for i, e := range group {
			r := uf.find(i)
			byRoot[r] = append(byRoot[r], e)
		}
		roots := make([]int, 0, len(byRoot))
		for r := range byRoot {
			roots = append(roots, r)
		}
		sort.Ints(roots)

		for _, r := range roots {
			members := byRoot[r]
			if len(members) < 2 {
				continue
			}
			if cfg.MaxBlockSize > 0 && len(members) > cfg.MaxBlockSize {
				members = members[:cfg.MaxBlockSize]
			}
			blocks = append(blocks, Cluster{Entries: members})
			if cfg.MaxBlocksPerRun > 0 && len(blocks) >= cfg.MaxBlocksPerRun {
				return blocks
			}
		}
	}

	return blocks
}

// RunSemantic drives the semantic-dedup engine: prefilter into blocks,
// call the oracle per block with truncated bodies, accept only
// suggestions scoring at or above semanticMergeThreshold with each node
// in at most one accepted suggestion, and execute the resulting merges
// through the shared merge executor, per spec.md §4.9.
func RunSemantic(ctx context.Context, gs *store.GraphStore, gw *oracle.Gateway, cfg *config.Config, systemPrompt string) (SemanticResult, error) {
	log := logging.Get(logging.CategoryDedup)
	if !cfg.Semantic.Enabled {
		return SemanticResult{Disabled: true}, nil
	}
	res := SemanticResult{}

	entries, err := gs.GetEntries()
	if err != nil {
		return res, fmt.Errorf("dedup: semantic: read registry: %w", err)
	}
	list := make([]model.RegistryEntry, 0, len(entries))
	for _, e := range entries {
		if !e.Archived {
			list = append(list, e)
		}
	}

	blocks := BuildSemanticBlocks(list, cfg.Semantic, cfg.Similarity.HeuristicPrefilterThreshold)
	res.BlocksSubmitted = len(blocks)
	if len(blocks) == 0 {
		return res, nil
	}

	claimed := make(map[string]bool)

	for _, block := range blocks {
		packets := make([]semanticPacket, 0, len(block.Entries))
		for _, e := range block.Entries {
			n, err := gs.ReadNode(e.FilePath)
			if err != nil || n == nil {
				continue
			}
			packets = append(packets, semanticPacket{
				ID: n.ID, CanonicalKey: n.CanonicalKey, Description: n.Description,
				Body: truncate(n.Body, cfg.Semantic.MaxBodyCharsPerNode),
			})
		}
		if len(packets) < 2 {
			continue
		}

		prompt := renderSemanticPrompt(packets)
		resp, err := gw.Call(ctx, oracle.Params{System: systemPrompt, User: prompt, MaxTokens: 4096})
		if err != nil {
			log.Warn("dedup: semantic: oracle call failed: %v", err)
			continue
		}

		var parsed semanticResponse
		content := strings.TrimSpace(stripJSONFences(resp.Content))
		if err := json.Unmarshal([]byte(content), &parsed); err != nil {
			log.Warn("dedup: semantic: response schema validation failed: %v", err)
			continue
		}

		for _, s := range parsed.Suggestions {
			if s.KeepNodeID == "" || len(s.MergeNodeIDs) == 0 {
				continue
			}
			if s.SimilarityScore < cfg.Similarity.SemanticMergeThreshold {
				continue
			}
			involved := append([]string{s.KeepNodeID}, s.MergeNodeIDs...)
			conflict := false
			for _, id := range involved {
				if claimed[id] {
					conflict = true
					break
				}
			}
			if conflict {
				log.Debug("dedup: semantic: rejecting suggestion for %s, node already claimed", s.KeepNodeID)
				continue
			}
			for _, id := range involved {
				claimed[id] = true
			}

			plan := MergePlan{KeepNodeID: s.KeepNodeID, MergeNodeIDs: s.MergeNodeIDs}
			if err := ExecuteMergePlan(gs, plan); err != nil {
				log.Warn("dedup: semantic: merge %s failed: %v", s.KeepNodeID, err)
				res.MergeErrors++
				continue
			}
			res.MergesExecuted++
			metrics.RecordMerge("semantic")
		}
	}

	return res, nil
}

type semanticPacket struct {
	ID           string
	CanonicalKey string
	Description  string
	Body         string
}

func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit]
}

func renderSemanticPrompt(packets []semanticPacket) string {
	var sb strings.Builder
	sb.WriteString("semantic dedup candidates:\n")
	for _, p := range packets {
		fmt.Fprintf(&sb, "- id=%s key=%s: %s\n%s\n", p.ID, p.CanonicalKey, p.Description, p.Body)
	}
	return sb.String()
}
