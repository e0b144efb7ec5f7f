package dedup

import (
	"fmt"
	"strings"
	"time"

	"omg/internal/logging"
	"omg/internal/observer"
	"omg/internal/store"
)

// Patch is the oracle-issued set of edits to apply to a merge's keeper
// node.
type Patch struct {
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Links       []string `json:"links,omitempty"`
	BodyAppend  string   `json:"bodyAppend,omitempty"`
}

// MergePlan designates one keeper node, the loser nodes to archive, the
// canonical keys to preserve as aliases, any detected conflicts, and the
// patch to apply to the keeper, per the GLOSSARY's "Merge plan" entry.
type MergePlan struct {
	KeepNodeID   string   `json:"keepNodeId"`
	MergeNodeIDs []string `json:"mergeNodeIds"`
	AliasKeys    []string `json:"aliasKeys,omitempty"`
	Conflicts    []string `json:"conflicts,omitempty"`
	Patch        Patch    `json:"patch"`
}

// ExecuteMergePlan applies one merge plan: patches the keeper (union of
// tags/links, a dated body-append block, recorded alias keys), archives
// every loser, and appends one audit entry. Individual merge errors are
// the caller's concern to continue past. The steps are not atomic: the
// keeper is written before any loser is archived, a loser that fails to
// archive is logged and skipped, and an audit-append error is returned
// after the keeper and losers have already been changed.
func ExecuteMergePlan(gs *store.GraphStore, plan MergePlan) error {
	log := logging.Get(logging.CategoryDedup)
	now := time.Now().UTC().Format(time.RFC3339)
	date := now[:10]

	entries, err := gs.GetEntries()
	if err != nil {
		return fmt.Errorf("dedup: merge: read registry: %w", err)
	}
	keeperEntry, ok := entries[plan.KeepNodeID]
	if !ok {
		return fmt.Errorf("dedup: merge: unknown keep node %s", plan.KeepNodeID)
	}
	keeper, err := gs.ReadNode(keeperEntry.FilePath)
	if err != nil || keeper == nil {
		return fmt.Errorf("dedup: merge: could not read keep node %s: %w", plan.KeepNodeID, err)
	}

	keeper.Tags = observer.UnionPreserveOrder(keeper.Tags, plan.Patch.Tags)
	keeper.Links = observer.UnionPreserveOrder(keeper.Links, plan.Patch.Links)
	keeper.AliasKeys = observer.UnionPreserveOrder(keeper.AliasKeys, plan.AliasKeys)
	if plan.Patch.Description != "" {
		keeper.Description = plan.Patch.Description
	}
	if strings.TrimSpace(plan.Patch.BodyAppend) != "" {
		keeper.Body = appendMergeBlock(keeper.Body, date, plan.Patch.BodyAppend)
	}
	keeper.Updated = now

	if err := gs.WriteNode(keeper); err != nil {
		return fmt.Errorf("dedup: merge: write keeper %s: %w", plan.KeepNodeID, err)
	}

	for _, loserID := range plan.MergeNodeIDs {
		if err := gs.Archive(loserID); err != nil {
			log.Warn("dedup: merge: archive loser %s failed: %v", loserID, err)
		}
	}

	return AppendAudit(gs.Root(), AuditEntry{
		Timestamp: now, KeepNodeID: plan.KeepNodeID, MergedNodeIDs: plan.MergeNodeIDs,
		AliasKeys: plan.AliasKeys, Conflicts: plan.Conflicts, Patch: plan.Patch,
	})
}

func appendMergeBlock(body, date, entry string) string {
	const header = "## Merged"
	var sb strings.Builder
	sb.WriteString(body)
	if !strings.HasSuffix(body, "\n") && body != "" {
		sb.WriteString("\n")
	}
	sb.WriteString("\n" + header + " " + date + "\n")
	sb.WriteString(entry)
	if !strings.HasSuffix(entry, "\n") {
		sb.WriteString("\n")
	}
	return sb.String()
}
