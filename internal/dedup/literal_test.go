package dedup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omg/internal/config"
	"omg/internal/model"
	"omg/internal/oracle"
	"omg/internal/store"
)

func newTestStore(t *testing.T) *store.GraphStore {
	t.Helper()
	workspace := t.TempDir()
	root, err := store.ScaffoldIfNeeded(workspace)
	require.NoError(t, err)
	gs, err := store.NewGraphStore(root)
	require.NoError(t, err)
	return gs
}

func TestRunLiteral_NoClustersSkipsOracleAndState(t *testing.T) {
	gs := newTestStore(t)
	called := false
	gw := oracle.NewGateway("test-model", func(ctx context.Context, p oracle.Params) (oracle.Response, error) {
		called = true
		return oracle.Response{}, nil
	})

	res, err := RunLiteral(context.Background(), gs, gw, config.Default(), "system")
	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, 0, res.ClustersSubmitted)

	state, err := LoadState(gs.Root())
	require.NoError(t, err)
	assert.Nil(t, state.LastDedupAt)
}

func TestRunLiteral_ExecutesMergePlanAndAdvancesState(t *testing.T) {
	gs := newTestStore(t)

	a := &model.Node{ID: "omg/preference/dark-mode", Type: model.TypePreference, Description: "dark mode preference",
		Priority: model.PriorityMedium, Created: "2026-01-01T00:00:00Z", Updated: "2026-01-01T00:00:00Z", CanonicalKey: "preferences.dark-mode"}
	b := &model.Node{ID: "omg/preference/dark-mode-2", Type: model.TypePreference, Description: "dark mode preference",
		Priority: model.PriorityMedium, Created: "2026-01-02T00:00:00Z", Updated: "2026-01-02T00:00:00Z", CanonicalKey: "preferences.dark-mode"}
	require.NoError(t, gs.WriteNode(a))
	require.NoError(t, gs.WriteNode(b))

	gw := oracle.NewGateway("test-model", func(ctx context.Context, p oracle.Params) (oracle.Response, error) {
		return oracle.Response{Content: `{"mergePlans":[{"keepNodeId":"omg/preference/dark-mode","mergeNodeIds":["omg/preference/dark-mode-2"],"aliasKeys":["preferences.dark-mode-2"]}]}`}, nil
	})

	cfg := config.Default()
	cfg.Similarity.DedupThreshold = 0.5
	res, err := RunLiteral(context.Background(), gs, gw, cfg, "system")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ClustersSubmitted)
	assert.Equal(t, 1, res.MergesExecuted)

	entries, err := gs.GetEntries()
	require.NoError(t, err)
	assert.True(t, entries["omg/preference/dark-mode-2"].Archived)

	state, err := LoadState(gs.Root())
	require.NoError(t, err)
	require.NotNil(t, state.LastDedupAt)
	assert.Equal(t, 1, state.RunsCompleted)
	assert.Equal(t, 1, state.TotalMerges)

	audit, err := ReadAudit(gs.Root())
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, "omg/preference/dark-mode", audit[0].KeepNodeID)
}

func TestRunLiteral_MalformedResponseDoesNotAdvanceState(t *testing.T) {
	gs := newTestStore(t)
	a := &model.Node{ID: "omg/preference/a", Type: model.TypePreference, Description: "likes dark mode",
		Priority: model.PriorityMedium, Created: "2026-01-01T00:00:00Z", Updated: "2026-01-01T00:00:00Z", CanonicalKey: "preferences.dark-mode"}
	b := &model.Node{ID: "omg/preference/b", Type: model.TypePreference, Description: "likes dark mode",
		Priority: model.PriorityMedium, Created: "2026-01-02T00:00:00Z", Updated: "2026-01-02T00:00:00Z", CanonicalKey: "preferences.dark-mode"}
	require.NoError(t, gs.WriteNode(a))
	require.NoError(t, gs.WriteNode(b))

	gw := oracle.NewGateway("test-model", func(ctx context.Context, p oracle.Params) (oracle.Response, error) {
		return oracle.Response{Content: "not json at all"}, nil
	})

	cfg := config.Default()
	cfg.Similarity.DedupThreshold = 0.5
	_, err := RunLiteral(context.Background(), gs, gw, cfg, "system")
	require.NoError(t, err)

	state, err := LoadState(gs.Root())
	require.NoError(t, err)
	assert.Nil(t, state.LastDedupAt)
}
