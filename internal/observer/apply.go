package observer

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"omg/internal/config"
	"omg/internal/logging"
	"omg/internal/model"
	"omg/internal/similarity"
	"omg/internal/store"
)

// ApplySummary reports what an Apply call did, for the caller's result
// struct — pipelines never throw, per spec.md §7.
type ApplySummary struct {
	NodesCreated int
	NodesUpdated int
	MocsUpdated  []string
	NowUpdated   bool
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
		s = "node"
	}
	return s
}

// UnionPreserveOrder merges incoming into existing, keeping existing's
// order and appending any new values not already present.
func UnionPreserveOrder(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, v := range existing {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, v := range incoming {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// Apply writes every upsert in result to the graph store, merging onto an
// existing node when one is found by canonical key or id, then
// regenerates the MOCs named in result.MocUpdates and replaces now.md
// when a now-update is present.
func Apply(gs *store.GraphStore, result ParseResult, cfg config.ReflectionConfig) (ApplySummary, error) {
	log := logging.Get(logging.CategoryObserver)
	summary := ApplySummary{}
	now := time.Now().UTC().Format(time.RFC3339)
	date := now[:10]

	entries, err := gs.GetEntries()
	if err != nil {
		return summary, fmt.Errorf("observer: apply: %w", err)
	}

	touchedDomains := make(map[string]bool)

	for _, op := range result.Upserts {
		existingID := ""
		for id, e := range entries {
			if e.CanonicalKey == op.CanonicalKey || id == op.CanonicalKey {
				existingID = id
				break
			}
		}

		var n *model.Node
		if existingID != "" {
			entry := entries[existingID]
			n, _ = gs.ReadNode(entry.FilePath)
		}

		if n == nil {
			id := fmt.Sprintf("omg/%s/%s", op.Type, slugify(op.CanonicalKey))
			n = &model.Node{
				ID: id, Type: op.Type, Description: op.Description, Priority: op.Priority,
				Created: now, Updated: now, CanonicalKey: op.CanonicalKey,
				Tags: op.Tags, Links: op.Links, Body: op.Body,
			}
			summary.NodesCreated++
		} else {
			n.Tags = UnionPreserveOrder(n.Tags, op.Tags)
			n.Links = UnionPreserveOrder(n.Links, op.Links)
			n.Description = op.Description
			n.Priority = op.Priority
			n.Updated = now
			if strings.TrimSpace(op.Body) != "" {
				n.Body = appendUpdatesEntry(n.Body, date, op.Body)
			}
			summary.NodesUpdated++
		}

		if err := gs.WriteNode(n); err != nil {
			log.Error("apply: write node %s failed: %v", n.ID, err)
			return summary, fmt.Errorf("observer: write node %s: %w", n.ID, err)
		}

		touchedDomains[similarity.ResolveDomain(n.Links, n.CanonicalKey)] = true
	}

	for _, hint := range result.MocUpdates {
		touchedDomains[hint] = true
	}

	domains := make([]string, 0, len(touchedDomains))
	for d := range touchedDomains {
		domains = append(domains, d)
	}
	for _, d := range domains {
		if err := RegenerateMoc(gs, d, cfg.HubMinRefs); err != nil {
			log.Error("apply: regenerate moc %s failed: %v", d, err)
			return summary, fmt.Errorf("observer: regenerate moc %s: %w", d, err)
		}
		summary.MocsUpdated = append(summary.MocsUpdated, d)
	}

	if result.NowUpdate != nil && strings.TrimSpace(*result.NowUpdate) != "" {
		if err := store.WriteNowFile(gs, *result.NowUpdate); err != nil {
			return summary, fmt.Errorf("observer: write now.md: %w", err)
		}
		summary.NowUpdated = true
	}

	return summary, nil
}

func appendUpdatesEntry(body, date, entry string) string {
	const header = "## Updates"
	var sb strings.Builder
	sb.WriteString(body)
	if !strings.Contains(body, header) {
		if body != "" && !strings.HasSuffix(body, "\n") {
			sb.WriteString("\n")
		}
		sb.WriteString("\n" + header + "\n")
	} else if !strings.HasSuffix(body, "\n") {
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "- %s: %s\n", date, entry)
	return sb.String()
}
