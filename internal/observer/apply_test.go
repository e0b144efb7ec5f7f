package observer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omg/internal/config"
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

func TestApply_CreatesNewNode(t *testing.T) {
	gs := newTestStore(t)
	result := Parse(sampleXML)

	summary, err := Apply(gs, result, config.ReflectionConfig{HubMinRefs: 5})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.NodesCreated)
	assert.True(t, summary.NowUpdated)
	assert.Contains(t, summary.MocsUpdated, "identity")

	entries, err := gs.GetEntries()
	require.NoError(t, err)
	assert.Contains(t, entries, "omg/identity/name")
}

func TestApply_MergesOntoExistingNodeByCanonicalKey(t *testing.T) {
	gs := newTestStore(t)
	result := Parse(sampleXML)
	_, err := Apply(gs, result, config.ReflectionConfig{})
	require.NoError(t, err)

	const secondPass = `<observations>
<operation type="identity" priority="medium">
<canonical-key>identity.name</canonical-key>
<description>user's given name, confirmed</description>
<content>Confirmed again in a later session.</content>
</operation>
</observations>`

	summary, err := Apply(gs, Parse(secondPass), config.ReflectionConfig{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.NodesUpdated)
	assert.Equal(t, 0, summary.NodesCreated)

	entries, _ := gs.GetEntries()
	n, err := gs.ReadNode(entries["omg/identity/name"].FilePath)
	require.NoError(t, err)
	assert.Equal(t, "user's given name, confirmed", n.Description)
	assert.Contains(t, n.Body, "## Updates")
	assert.Contains(t, n.Body, "Confirmed again in a later session.")
}
