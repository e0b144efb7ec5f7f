package reflection

import (
	"context"
	"fmt"
	"strings"

	"omg/internal/config"
	"omg/internal/logging"
	"omg/internal/metrics"
	"omg/internal/model"
	"omg/internal/oracle"
	"omg/internal/store"
)

// Result summarizes one reflection run across every cluster processed.
type Result struct {
	ClustersProcessed      int
	ClustersSkipped        int
	ReflectionNodesWritten int
	NodesArchived          int
	NodesPatched           int
}

// Run snapshots the registry, clusters non-archived entries by domain
// and time window, anchor-splits any cluster still over budget, and
// drives one oracle pass per cluster at the given compression level,
// per spec.md §4.8.
func Run(ctx context.Context, gs *store.GraphStore, gw *oracle.Gateway, cfg config.ReflectionConfig, compressionLevel int, systemPrompt string) (Result, error) {
	log := logging.Get(logging.CategoryReflection)
	res := Result{}

	entries, err := gs.GetEntries()
	if err != nil {
		return res, fmt.Errorf("reflection: read registry: %w", err)
	}

	regEntries := make([]model.RegistryEntry, 0, len(entries))
	for _, e := range entries {
		if e.Archived {
			continue
		}
		regEntries = append(regEntries, e)
	}

	clusters := ClusterByDomainAndTime(regEntries, cfg)

	var bounded []Cluster
	for _, c := range clusters {
		bounded = append(bounded, AnchorSplit(c, cfg.MaxInputTokensPerCluster)...)
	}

	for _, c := range bounded {
		packets := make([]CompactPacket, 0, len(c.Entries))
		for _, e := range c.Entries {
			n, err := gs.ReadNode(e.FilePath)
			if err != nil || n == nil {
				continue
			}
			packets = append(packets, BuildPacket(n))
		}
		if len(packets) == 0 {
			res.ClustersSkipped++
			metrics.RecordReflectionCluster("skipped")
			continue
		}

		prompt := renderClusterPrompt(c.Domain, compressionLevel, packets)
		resp, err := gw.Call(ctx, oracle.Params{
			System:    systemPrompt,
			User:      prompt,
			MaxTokens: 4096,
		})
		if err != nil {
			log.Warn("reflection: oracle call failed for domain %s: %v", c.Domain, err)
			res.ClustersSkipped++
			metrics.RecordReflectionCluster("skipped")
			continue
		}

		parsed := Parse(resp.Content)
		if len(parsed.ReflectionNodes) == 0 && len(parsed.ArchiveNodes) == 0 && len(parsed.NodeUpdates) == 0 {
			log.Debug("reflection: empty result for domain %s, skipping", c.Domain)
			res.ClustersSkipped++
			metrics.RecordReflectionCluster("skipped")
			continue
		}

		summary, err := Apply(gs, parsed, cfg)
		if err != nil {
			log.Error("reflection: apply failed for domain %s: %v", c.Domain, err)
			res.ClustersSkipped++
			metrics.RecordReflectionCluster("skipped")
			continue
		}
		res.ClustersProcessed++
		res.ReflectionNodesWritten += summary.ReflectionNodesWritten
		res.NodesArchived += summary.NodesArchived
		res.NodesPatched += summary.NodesPatched
		metrics.RecordReflectionCluster("applied")
		metrics.RecordNodesWritten("reflection", "reflection-node", summary.ReflectionNodesWritten)
		metrics.RecordNodesWritten("reflection", "patch", summary.NodesPatched)
	}

	return res, nil
}

func renderClusterPrompt(domain string, compressionLevel int, packets []CompactPacket) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "domain=%s compressionLevel=%d\n\n", domain, compressionLevel)
	for _, p := range packets {
		fmt.Fprintf(&sb, "- id=%s key=%s: %s\n", p.ID, p.CanonicalKey, p.Description)
		for _, l := range p.BodyLines {
			fmt.Fprintf(&sb, "  %s\n", l)
		}
		for _, u := range p.RecentUpdates {
			fmt.Fprintf(&sb, "  %s\n", u)
		}
	}
	return sb.String()
}
