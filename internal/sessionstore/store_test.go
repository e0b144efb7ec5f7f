package sessionstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndBestMatch_FindsExactOverlap(t *testing.T) {
	store := newTestDB(t)
	ctx := context.Background()

	shingles := Fingerprint("the quick brown fox jumps over the lazy dog repeatedly")
	require.NoError(t, store.RecordFingerprints(ctx, "session-a", "source-1", shingles))

	id, ratio, err := store.BestMatch(ctx, "session-a", shingles)
	require.NoError(t, err)
	assert.Equal(t, "source-1", id)
	assert.Equal(t, 1.0, ratio)
}

func TestBestMatch_NoPriorSourcesReturnsEmpty(t *testing.T) {
	store := newTestDB(t)
	ctx := context.Background()

	shingles := Fingerprint("the quick brown fox jumps over the lazy dog")
	id, ratio, err := store.BestMatch(ctx, "session-a", shingles)
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Zero(t, ratio)
}

func TestBestMatch_IsolatedBySessionKey(t *testing.T) {
	store := newTestDB(t)
	ctx := context.Background()

	shingles := Fingerprint("the quick brown fox jumps over the lazy dog repeatedly")
	require.NoError(t, store.RecordFingerprints(ctx, "session-a", "source-1", shingles))

	id, ratio, err := store.BestMatch(ctx, "session-b", shingles)
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Zero(t, ratio)
}

func TestCheckAndRecord_FlagsNearDuplicate(t *testing.T) {
	store := newTestDB(t)
	ctx := context.Background()
	text := "the quick brown fox jumps over the lazy dog in the morning light"

	_, dup, err := CheckAndRecord(ctx, store, "session-a", "source-1", text)
	require.NoError(t, err)
	assert.False(t, dup)

	matchedID, dup, err := CheckAndRecord(ctx, store, "session-a", "source-2", text)
	require.NoError(t, err)
	assert.Equal(t, "source-1", matchedID)
	assert.True(t, dup)
}

func TestCheckAndRecord_DistinctTextIsNotDuplicate(t *testing.T) {
	store := newTestDB(t)
	ctx := context.Background()

	_, _, err := CheckAndRecord(ctx, store, "session-a", "source-1", "the quick brown fox jumps over the lazy dog")
	require.NoError(t, err)

	_, dup, err := CheckAndRecord(ctx, store, "session-a", "source-2", "a completely unrelated sentence about deep space travel plans for next year")
	require.NoError(t, err)
	assert.False(t, dup)
}
