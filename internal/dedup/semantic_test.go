package dedup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omg/internal/config"
	"omg/internal/model"
	"omg/internal/oracle"
)

func TestRunSemantic_DisabledShortCircuits(t *testing.T) {
	gs := newTestStore(t)
	called := false
	gw := oracle.NewGateway("test-model", func(ctx context.Context, p oracle.Params) (oracle.Response, error) {
		called = true
		return oracle.Response{}, nil
	})

	cfg := config.Default()
	cfg.Semantic.Enabled = false
	res, err := RunSemantic(context.Background(), gs, gw, cfg, "system")
	require.NoError(t, err)
	assert.True(t, res.Disabled)
	assert.False(t, called)
}

func TestRunSemantic_BelowThresholdRejectsSuggestion(t *testing.T) {
	gs := newTestStore(t)

	a := &model.Node{ID: "omg/project/alpha", Type: model.TypeProject, Description: "rewriting the ingestion pipeline",
		Priority: model.PriorityMedium, Created: "2026-01-01T00:00:00Z", Updated: "2026-01-01T00:00:00Z", CanonicalKey: "projects.alpha"}
	b := &model.Node{ID: "omg/project/alpha-v2", Type: model.TypeProject, Description: "rewriting the data ingestion pipeline",
		Priority: model.PriorityMedium, Created: "2026-01-02T00:00:00Z", Updated: "2026-01-02T00:00:00Z", CanonicalKey: "projects.alpha"}
	require.NoError(t, gs.WriteNode(a))
	require.NoError(t, gs.WriteNode(b))

	gw := oracle.NewGateway("test-model", func(ctx context.Context, p oracle.Params) (oracle.Response, error) {
		return oracle.Response{Content: `{"suggestions":[{"keepNodeId":"omg/project/alpha","mergeNodeIds":["omg/project/alpha-v2"],"similarityScore":70,"rationale":"similar scope"}]}`}, nil
	})

	cfg := config.Default()
	cfg.Similarity.HeuristicPrefilterThreshold = 0.1
	cfg.Similarity.SemanticMergeThreshold = 90
	res, err := RunSemantic(context.Background(), gs, gw, cfg, "system")
	require.NoError(t, err)
	assert.Equal(t, 0, res.MergesExecuted)

	entries, err := gs.GetEntries()
	require.NoError(t, err)
	assert.False(t, entries["omg/project/alpha-v2"].Archived)

	audit, err := ReadAudit(gs.Root())
	require.NoError(t, err)
	assert.Empty(t, audit)
}

func TestRunSemantic_AtThresholdExecutesMerge(t *testing.T) {
	gs := newTestStore(t)

	a := &model.Node{ID: "omg/project/alpha", Type: model.TypeProject, Description: "rewriting the ingestion pipeline",
		Priority: model.PriorityMedium, Created: "2026-01-01T00:00:00Z", Updated: "2026-01-01T00:00:00Z", CanonicalKey: "projects.alpha"}
	b := &model.Node{ID: "omg/project/alpha-v2", Type: model.TypeProject, Description: "rewriting the data ingestion pipeline",
		Priority: model.PriorityMedium, Created: "2026-01-02T00:00:00Z", Updated: "2026-01-02T00:00:00Z", CanonicalKey: "projects.alpha"}
	require.NoError(t, gs.WriteNode(a))
	require.NoError(t, gs.WriteNode(b))

	gw := oracle.NewGateway("test-model", func(ctx context.Context, p oracle.Params) (oracle.Response, error) {
		return oracle.Response{Content: `{"suggestions":[{"keepNodeId":"omg/project/alpha","mergeNodeIds":["omg/project/alpha-v2"],"similarityScore":95,"rationale":"same project"}]}`}, nil
	})

	cfg := config.Default()
	cfg.Similarity.HeuristicPrefilterThreshold = 0.1
	cfg.Similarity.SemanticMergeThreshold = 90
	res, err := RunSemantic(context.Background(), gs, gw, cfg, "system")
	require.NoError(t, err)
	assert.Equal(t, 1, res.MergesExecuted)

	entries, err := gs.GetEntries()
	require.NoError(t, err)
	assert.True(t, entries["omg/project/alpha-v2"].Archived)
}

func TestRunSemantic_ClaimedNodeRejectsSecondSuggestion(t *testing.T) {
	gs := newTestStore(t)

	a := &model.Node{ID: "omg/project/a", Type: model.TypeProject, Description: "rewriting the ingestion pipeline",
		Priority: model.PriorityMedium, Created: "2026-01-01T00:00:00Z", Updated: "2026-01-01T00:00:00Z", CanonicalKey: "projects.a"}
	b := &model.Node{ID: "omg/project/b", Type: model.TypeProject, Description: "rewriting the data ingestion pipeline",
		Priority: model.PriorityMedium, Created: "2026-01-02T00:00:00Z", Updated: "2026-01-02T00:00:00Z", CanonicalKey: "projects.a"}
	c := &model.Node{ID: "omg/project/c", Type: model.TypeProject, Description: "rewrote the ingestion pipeline again",
		Priority: model.PriorityMedium, Created: "2026-01-03T00:00:00Z", Updated: "2026-01-03T00:00:00Z", CanonicalKey: "projects.a"}
	require.NoError(t, gs.WriteNode(a))
	require.NoError(t, gs.WriteNode(b))
	require.NoError(t, gs.WriteNode(c))

	gw := oracle.NewGateway("test-model", func(ctx context.Context, p oracle.Params) (oracle.Response, error) {
		return oracle.Response{Content: `{"suggestions":[
			{"keepNodeId":"omg/project/a","mergeNodeIds":["omg/project/b"],"similarityScore":95,"rationale":"dup"},
			{"keepNodeId":"omg/project/a","mergeNodeIds":["omg/project/c"],"similarityScore":95,"rationale":"dup again"}
		]}`}, nil
	})

	cfg := config.Default()
	cfg.Semantic.MaxBlockSize = 10
	cfg.Similarity.HeuristicPrefilterThreshold = 0.1
	cfg.Similarity.SemanticMergeThreshold = 90
	res, err := RunSemantic(context.Background(), gs, gw, cfg, "system")
	require.NoError(t, err)
	assert.Equal(t, 1, res.MergesExecuted)

	entries, err := gs.GetEntries()
	require.NoError(t, err)
	assert.True(t, entries["omg/project/b"].Archived)
	assert.False(t, entries["omg/project/c"].Archived)
}
