package bootstrap

import (
	"fmt"

	"omg/internal/model"
	"omg/internal/store"
)

// QualityReport inspects the freshly bootstrapped graph and returns
// warnings about a thin or skewed result, per spec.md §4.7. An empty
// slice means nothing looked wrong.
func QualityReport(gs *store.GraphStore) []string {
	entries, err := gs.GetEntries()
	if err != nil {
		return []string{fmt.Sprintf("quality report: could not read registry: %v", err)}
	}

	total := 0
	identityCount := 0
	preferenceCount := 0
	for _, e := range entries {
		if e.Archived {
			continue
		}
		total++
		switch e.Type {
		case model.TypeIdentity:
			identityCount++
		case model.TypePreference:
			preferenceCount++
		}
	}

	var warnings []string
	if total == 0 {
		return []string{"bootstrap produced zero nodes"}
	}
	if identityCount == 0 {
		warnings = append(warnings, "no identity nodes were extracted")
	}
	if preferenceCount == 0 {
		warnings = append(warnings, "no preference nodes were extracted")
	}
	if ratio := float64(identityCount+preferenceCount) / float64(total); ratio < 0.05 {
		warnings = append(warnings, fmt.Sprintf("identity+preference nodes are %.1f%% of the graph, below the 5%% floor", ratio*100))
	}
	return warnings
}
