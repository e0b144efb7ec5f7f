package reflection

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"omg/internal/config"
	"omg/internal/logging"
	"omg/internal/model"
	"omg/internal/observer"
	"omg/internal/store"
)

// ApplySummary reports what applying one cluster's reflection result did.
type ApplySummary struct {
	ReflectionNodesWritten int
	NodesArchived          int
	NodesPatched           int
	MocsUpdated            []string
}

var slugSanitizeRe = regexp.MustCompile(`[^a-z0-9.-]+`)

func slugify(s string) string {
	s = strings.ToLower(s)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		s = s[i+1:]
	}
	s = slugSanitizeRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		s = "reflection"
	}
	return s
}

// Apply writes the cluster's new reflection nodes, archives superseded
// nodes, patches targeted node-updates, and regenerates touched MOCs,
// per spec.md §4.8 step 7.
func Apply(gs *store.GraphStore, result Result, cfg config.ReflectionConfig) (ApplySummary, error) {
	log := logging.Get(logging.CategoryReflection)
	summary := ApplySummary{}
	now := time.Now().UTC().Format(time.RFC3339)

	touchedDomains := make(map[string]bool)

	for _, spec := range result.ReflectionNodes {
		id := fmt.Sprintf("omg/reflection/%s", slugify(spec.CanonicalKey))
		n := &model.Node{
			ID:           id,
			Type:         model.TypeReflection,
			Description:  spec.Description,
			Priority:     model.PriorityMedium,
			Created:      now,
			Updated:      now,
			CanonicalKey: spec.CanonicalKey,
			Tags:         spec.Tags,
			Links:        spec.Links,
			Body:         spec.Body,
		}
		if err := gs.WriteNode(n); err != nil {
			log.Error("apply: write reflection node %s failed: %v", id, err)
			return summary, fmt.Errorf("reflection: write node %s: %w", id, err)
		}
		summary.ReflectionNodesWritten++

		for _, h := range spec.MocHints {
			touchedDomains[h] = true
		}
	}

	for _, id := range result.ArchiveNodes {
		if err := gs.Archive(id); err != nil {
			log.Warn("apply: archive %s failed: %v", id, err)
			continue
		}
		summary.NodesArchived++
	}

	if len(result.NodeUpdates) > 0 {
		entries, err := gs.GetEntries()
		if err != nil {
			return summary, fmt.Errorf("reflection: apply: %w", err)
		}
		for _, patch := range result.NodeUpdates {
			entry, ok := entries[patch.ID]
			if !ok {
				log.Warn("apply: node-update for unknown id %s", patch.ID)
				continue
			}
			n, err := gs.ReadNode(entry.FilePath)
			if err != nil || n == nil {
				log.Warn("apply: could not read node %s for patch: %v", patch.ID, err)
				continue
			}
			if patch.Description != "" {
				n.Description = patch.Description
			}
			if len(patch.Tags) > 0 {
				n.Tags = observer.UnionPreserveOrder(n.Tags, patch.Tags)
			}
			if len(patch.Links) > 0 {
				n.Links = observer.UnionPreserveOrder(n.Links, patch.Links)
			}
			n.Updated = now
			if err := gs.WriteNode(n); err != nil {
				log.Error("apply: patch write %s failed: %v", n.ID, err)
				continue
			}
			summary.NodesPatched++
		}
	}

	for _, d := range result.MocUpdates {
		touchedDomains[d] = true
	}
	domains := make([]string, 0, len(touchedDomains))
	for d := range touchedDomains {
		domains = append(domains, d)
	}
	for _, d := range domains {
		if err := observer.RegenerateMoc(gs, d, cfg.HubMinRefs); err != nil {
			log.Error("apply: regenerate moc %s failed: %v", d, err)
			return summary, fmt.Errorf("reflection: regenerate moc %s: %w", d, err)
		}
		summary.MocsUpdated = append(summary.MocsUpdated, d)
	}

	return summary, nil
}
