package dedup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omg/internal/model"
)

func TestExecuteMergePlan_PatchesKeeperAndArchivesLosers(t *testing.T) {
	gs := newTestStore(t)

	keeper := &model.Node{ID: "omg/preference/keep", Type: model.TypePreference, Description: "old description",
		Priority: model.PriorityMedium, Created: "2026-01-01T00:00:00Z", Updated: "2026-01-01T00:00:00Z",
		CanonicalKey: "preferences.keep", Tags: []string{"existing"}, Links: []string{"omg/project/alpha"}, Body: "body text"}
	loser := &model.Node{ID: "omg/preference/lose", Type: model.TypePreference, Description: "dup",
		Priority: model.PriorityMedium, Created: "2026-01-02T00:00:00Z", Updated: "2026-01-02T00:00:00Z",
		CanonicalKey: "preferences.keep"}
	require.NoError(t, gs.WriteNode(keeper))
	require.NoError(t, gs.WriteNode(loser))

	plan := MergePlan{
		KeepNodeID:   "omg/preference/keep",
		MergeNodeIDs: []string{"omg/preference/lose"},
		AliasKeys:    []string{"preferences.lose"},
		Patch: Patch{
			Description: "merged description",
			Tags:        []string{"new-tag"},
			Links:       []string{"omg/project/beta"},
			BodyAppend:  "merged in omg/preference/lose",
		},
	}
	require.NoError(t, ExecuteMergePlan(gs, plan))

	entries, err := gs.GetEntries()
	require.NoError(t, err)
	assert.True(t, entries["omg/preference/lose"].Archived)

	keeperEntry := entries["omg/preference/keep"]
	updated, err := gs.ReadNode(keeperEntry.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "merged description", updated.Description)
	assert.ElementsMatch(t, []string{"existing", "new-tag"}, updated.Tags)
	assert.ElementsMatch(t, []string{"omg/project/alpha", "omg/project/beta"}, updated.Links)
	assert.ElementsMatch(t, []string{"preferences.lose"}, updated.AliasKeys)
	assert.True(t, strings.Contains(updated.Body, "## Merged"))
	assert.True(t, strings.Contains(updated.Body, "merged in omg/preference/lose"))

	audit, err := ReadAudit(gs.Root())
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, "omg/preference/keep", audit[0].KeepNodeID)
	assert.Equal(t, []string{"omg/preference/lose"}, audit[0].MergedNodeIDs)
	assert.Equal(t, []string{"preferences.lose"}, audit[0].AliasKeys)
}

func TestExecuteMergePlan_UnknownKeepNodeFails(t *testing.T) {
	gs := newTestStore(t)
	err := ExecuteMergePlan(gs, MergePlan{KeepNodeID: "omg/preference/missing", MergeNodeIDs: []string{"omg/preference/x"}})
	assert.Error(t, err)
}
