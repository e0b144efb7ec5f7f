package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"omg/internal/config"
	"omg/internal/model"
)

func mkEntry(id, key, desc, updated string, typ model.NodeType) model.RegistryEntry {
	return model.RegistryEntry{ID: id, Type: typ, CanonicalKey: key, Description: desc, Updated: updated, Created: updated}
}

func TestBuildCandidateClusters_GroupsSimilarPairs(t *testing.T) {
	entries := []model.RegistryEntry{
		mkEntry("omg/preference/dark-mode", "preferences.dark-mode", "user prefers dark mode in editors", "2026-01-01T00:00:00Z", model.TypePreference),
		mkEntry("omg/preference/dark-theme", "preferences.dark-mode", "user prefers dark mode in editors", "2026-01-02T00:00:00Z", model.TypePreference),
		mkEntry("omg/preference/coffee", "preferences.coffee", "user likes coffee over tea", "2026-01-01T00:00:00Z", model.TypePreference),
	}
	cfg := config.DedupConfig{MaxClusterSize: 8, MaxClustersPerRun: 20, MaxPairsPerBucket: 200}

	clusters := BuildCandidateClusters(entries, cfg, 0.5, 30)
	assert.Len(t, clusters, 1)
	assert.Len(t, clusters[0].Entries, 2)
}

func TestBuildCandidateClusters_StaleVolatileExcluded(t *testing.T) {
	entries := []model.RegistryEntry{
		mkEntry("omg/fact/a", "facts.x", "the user mentioned a fact about travel", "2026-01-01T00:00:00Z", model.TypeFact),
		mkEntry("omg/fact/b", "facts.x", "the user mentioned a fact about travel", "2026-06-01T00:00:00Z", model.TypeFact),
	}
	cfg := config.DedupConfig{MaxClusterSize: 8, MaxClustersPerRun: 20, MaxPairsPerBucket: 200}

	clusters := BuildCandidateClusters(entries, cfg, 0.5, 30)
	assert.Empty(t, clusters, "a 5-month gap between two volatile facts should be filtered as stale")
}

func TestBuildCandidateClusters_NoMatchBelowThreshold(t *testing.T) {
	entries := []model.RegistryEntry{
		mkEntry("omg/preference/a", "preferences.a", "likes tea", "2026-01-01T00:00:00Z", model.TypePreference),
		mkEntry("omg/preference/b", "preferences.b", "dislikes loud music", "2026-01-01T00:00:00Z", model.TypePreference),
	}
	cfg := config.DedupConfig{MaxClusterSize: 8, MaxClustersPerRun: 20, MaxPairsPerBucket: 200}

	clusters := BuildCandidateClusters(entries, cfg, 0.9, 30)
	assert.Empty(t, clusters)
}
