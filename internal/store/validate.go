package store

import (
	"fmt"
	"sort"
	"strings"
)

// DanglingLink names a registry entry whose Links field references a node
// id that is not present (or is archived) in the registry.
type DanglingLink struct {
	SourceID string
	Target   string
}

func (d DanglingLink) String() string {
	return fmt.Sprintf("%s links to unknown node %q", d.SourceID, d.Target)
}

// ValidateLinks reports every dangling wikilink across the registry without
// mutating anything, per SPEC_FULL.md's index validation mode. Links
// pointing at an "omg/moc-<domain>" MOC file are not registry node ids and
// are never flagged.
func ValidateLinks(gs *GraphStore) ([]DanglingLink, error) {
	entries, err := gs.GetEntries()
	if err != nil {
		return nil, err
	}

	var out []DanglingLink
	for id, e := range entries {
		if e.Archived {
			continue
		}
		for _, link := range e.Links {
			if strings.Contains(link, "omg/moc-") {
				continue
			}
			target, ok := entries[link]
			if !ok || target.Archived {
				out = append(out, DanglingLink{SourceID: id, Target: link})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceID != out[j].SourceID {
			return out[i].SourceID < out[j].SourceID
		}
		return out[i].Target < out[j].Target
	})
	return out, nil
}
