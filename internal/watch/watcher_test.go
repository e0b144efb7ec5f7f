package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_HandlesNewMatchingFile(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, []string{".md"})
	require.NoError(t, err)
	w.debounceDur = 10 * time.Millisecond

	var mu sync.Mutex
	var seen []string
	require.NoError(t, w.Start(context.Background(), func(path string) {
		mu.Lock()
		seen = append(seen, path)
		mu.Unlock()
	}))
	defer w.Stop()

	target := filepath.Join(dir, "session-1.md")
	require.NoError(t, os.WriteFile(target, []byte("hello"), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1 && seen[0] == target
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoresNonMatchingExtension(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, []string{".md"})
	require.NoError(t, err)
	w.debounceDur = 10 * time.Millisecond

	var mu sync.Mutex
	var seen []string
	require.NoError(t, w.Start(context.Background(), func(path string) {
		mu.Lock()
		seen = append(seen, path)
		mu.Unlock()
	}))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644))
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, seen)
}
