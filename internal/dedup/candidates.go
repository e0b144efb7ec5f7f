package dedup

import (
	"sort"
	"time"

	"omg/internal/config"
	"omg/internal/model"
	"omg/internal/similarity"
)

// Cluster is a group of registry entries the heuristic pass believes
// describe the same underlying fact.
type Cluster struct {
	Entries []model.RegistryEntry
}

// volatileTypes bypass the staleness filter's complement: a pair
// involving a volatile-typed node is dropped once its age gap exceeds
// the stale-days threshold, since short-lived facts and episodes drift
// apart semantically as time passes. Stable types (identity,
// preference, project, decision, ...) are exempt.
var volatileTypes = map[model.NodeType]bool{
	model.TypeFact:    true,
	model.TypeEpisode: true,
}

func bucketKey(e model.RegistryEntry) string {
	prefix := similarity.KeyPrefix(e.CanonicalKey)
	if prefix == "" {
		prefix = "_"
	}
	return prefix + "|" + string(e.Type)
}

func parseEntryTime(e model.RegistryEntry) time.Time {
	t, err := time.Parse(time.RFC3339, e.Updated)
	if err != nil {
		return time.Time{}
	}
	return t
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra != rb {
		uf.parent[ra] = rb
	}
}

// BuildCandidateClusters buckets non-archived entries by key-prefix and
// type, scores all pairs within a bucket (bounded by maxPairsPerBucket)
// against threshold, unions matching pairs, and returns the resulting
// groups of size > 1, capped at maxClusterSize entries and
// maxClustersPerRun clusters, per spec.md §4.9 pass 1.
func BuildCandidateClusters(entries []model.RegistryEntry, cfg config.DedupConfig, threshold float64, staleDaysThreshold int) []Cluster {
	buckets := make(map[string][]model.RegistryEntry)
	for _, e := range entries {
		if e.Archived {
			continue
		}
		buckets[bucketKey(e)] = append(buckets[bucketKey(e)], e)
	}

	bucketKeys := make([]string, 0, len(buckets))
	for k := range buckets {
		bucketKeys = append(bucketKeys, k)
	}
	sort.Strings(bucketKeys)

	var clusters []Cluster

	for _, bk := range bucketKeys {
		group := buckets[bk]
		if len(group) < 2 {
			continue
		}
		uf := newUnionFind(len(group))
		pairsEvaluated := 0

		for i := 0; i < len(group) && pairsEvaluated < cfg.MaxPairsPerBucket; i++ {
			for j := i + 1; j < len(group) && pairsEvaluated < cfg.MaxPairsPerBucket; j++ {
				pairsEvaluated++
				a, b := group[i], group[j]

				if staleDaysThreshold > 0 && (volatileTypes[a.Type] || volatileTypes[b.Type]) {
					gap := parseEntryTime(a).Sub(parseEntryTime(b))
					if gap < 0 {
						gap = -gap
					}
					if gap > time.Duration(staleDaysThreshold)*24*time.Hour {
						continue
					}
				}

				score := similarity.CombinedSimilarity(a.Description, b.Description, a.CanonicalKey, b.CanonicalKey)
				if score >= threshold {
					uf.union(i, j)
				}
			}
		}

		groupsByRoot := make(map[int][]model.RegistryEntry)
		for i, e := range group {
			root := uf.find(i)
			groupsByRoot[root] = append(groupsByRoot[root], e)
		}

		roots := make([]int, 0, len(groupsByRoot))
		for r := range groupsByRoot {
			roots = append(roots, r)
		}
		sort.Ints(roots)

		for _, r := range roots {
			members := groupsByRoot[r]
			if len(members) < 2 {
				continue
			}
			if cfg.MaxClusterSize > 0 && len(members) > cfg.MaxClusterSize {
				members = members[:cfg.MaxClusterSize]
			}
			clusters = append(clusters, Cluster{Entries: members})
			if cfg.MaxClustersPerRun > 0 && len(clusters) >= cfg.MaxClustersPerRun {
				return clusters
			}
		}
	}

	return clusters
}
