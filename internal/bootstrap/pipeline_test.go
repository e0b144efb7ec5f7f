package bootstrap

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omg/internal/config"
	"omg/internal/oracle"
	"omg/internal/sessionstore"
	"omg/internal/store"
)

type noopSleeper struct{ calls int32 }

func (s *noopSleeper) Sleep(time.Duration) { atomic.AddInt32(&s.calls, 1) }

func newTestStore(t *testing.T) *store.GraphStore {
	t.Helper()
	workspace := t.TempDir()
	root, err := store.ScaffoldIfNeeded(workspace)
	require.NoError(t, err)
	gs, err := store.NewGraphStore(root)
	require.NoError(t, err)
	return gs
}

const acceptedXML = `<observations>
<operation type="identity" priority="high">
<canonical-key>identity.name</canonical-key>
<description>user's given name</description>
<content>Extracted during bootstrap.</content>
</operation>
</observations>`

func TestRun_SuccessWritesNodeAndReportsQuality(t *testing.T) {
	gs := newTestStore(t)
	gw := oracle.NewGateway("test-model", func(ctx context.Context, p oracle.Params) (oracle.Response, error) {
		return oracle.Response{Content: acceptedXML}, nil
	})

	result, err := Run(context.Background(), gs, gw, &noopSleeper{}, Options{
		Sources: []SourceEntry{{Label: "journal.md", Text: "I am called Ava and I like tea."}},
		Cfg:     config.Default(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.BatchesProcessed)
	assert.Equal(t, 1, result.NodesWritten)
	assert.Contains(t, result.QualityWarnings, "no preference nodes were extracted")
}

func TestRun_NoSourcesReturnsEmptyResult(t *testing.T) {
	gs := newTestStore(t)
	gw := oracle.NewGateway("test-model", func(ctx context.Context, p oracle.Params) (oracle.Response, error) {
		t.Fatal("generate should never be called with no sources")
		return oracle.Response{}, nil
	})

	result, err := Run(context.Background(), gs, gw, &noopSleeper{}, Options{
		Sources: nil,
		Cfg:     config.Default(),
	})
	require.NoError(t, err)
	assert.Equal(t, Result{}, result)
}

func TestRun_RateLimitThenSuccessRetriesAndSleeps(t *testing.T) {
	gs := newTestStore(t)
	var attempts int32
	gw := oracle.NewGateway("test-model", func(ctx context.Context, p oracle.Params) (oracle.Response, error) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			return oracle.Response{}, fmt.Errorf("429 rate limit exceeded")
		}
		return oracle.Response{Content: acceptedXML}, nil
	})
	sleeper := &noopSleeper{}

	result, err := Run(context.Background(), gs, gw, sleeper, Options{
		Sources: []SourceEntry{{Label: "a.md", Text: "My name is Ava."}},
		Cfg:     config.Default(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.BatchesProcessed)
	assert.Equal(t, 1, result.BatchesRetried)
	assert.EqualValues(t, 1, sleeper.calls)
}

func TestRun_ParseEmptyResponseIsLoggedAsFailure(t *testing.T) {
	gs := newTestStore(t)
	gw := oracle.NewGateway("test-model", func(ctx context.Context, p oracle.Params) (oracle.Response, error) {
		return oracle.Response{Content: "no observations here"}, nil
	})

	result, err := Run(context.Background(), gs, gw, &noopSleeper{}, Options{
		Sources: []SourceEntry{{Label: "a.md", Text: "some unremarkable text"}},
		Cfg:     config.Default(),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.NodesWritten)

	failures, err := ReadFailureLog(gs.Root())
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "parse-empty", failures[0].ErrorType)
}

func TestRun_ForceClearsPriorFailureLog(t *testing.T) {
	gs := newTestStore(t)
	require.NoError(t, AppendFailure(gs.Root(), FailureEntry{BatchIndex: 0, ErrorType: "other", Error: "stale"}))

	gw := oracle.NewGateway("test-model", func(ctx context.Context, p oracle.Params) (oracle.Response, error) {
		return oracle.Response{Content: acceptedXML}, nil
	})

	_, err := Run(context.Background(), gs, gw, &noopSleeper{}, Options{
		Sources: []SourceEntry{{Label: "a.md", Text: "Call me Ava."}},
		Force:   true,
		Cfg:     config.Default(),
	})
	require.NoError(t, err)

	failures, err := ReadFailureLog(gs.Root())
	require.NoError(t, err)
	assert.Empty(t, failures)
}

func TestRun_SkipsNearDuplicateSource(t *testing.T) {
	gs := newTestStore(t)
	ss, err := sessionstore.Open(t.TempDir() + "/cache.db")
	require.NoError(t, err)
	defer ss.Close()

	var calls int32
	gw := oracle.NewGateway("test-model", func(ctx context.Context, p oracle.Params) (oracle.Response, error) {
		atomic.AddInt32(&calls, 1)
		return oracle.Response{Content: acceptedXML}, nil
	})
	text := "the quick brown fox jumps over the lazy dog in the city park every morning"

	_, err = Run(context.Background(), gs, gw, &noopSleeper{}, Options{
		Sources:      []SourceEntry{{Label: "a.md", Text: text}},
		Cfg:          config.Default(),
		SessionStore: ss,
		SessionKey:   "session-1",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls)

	result, err := Run(context.Background(), gs, gw, &noopSleeper{}, Options{
		Sources:      []SourceEntry{{Label: "b.md", Text: text}},
		Cfg:          config.Default(),
		SessionStore: ss,
		SessionKey:   "session-1",
	})
	require.NoError(t, err)
	assert.Equal(t, Result{}, result)
	assert.EqualValues(t, 1, calls, "oracle should not be called again for a near-duplicate source")
}

func TestRun_UnreachableExhaustsRetriesAndLogsFailure(t *testing.T) {
	gs := newTestStore(t)
	gw := oracle.NewGateway("test-model", func(ctx context.Context, p oracle.Params) (oracle.Response, error) {
		return oracle.Response{}, fmt.Errorf("fetch failed: connection error")
	})

	cfg := config.Default()
	cfg.Backoff.MaxUnreachableRetries = 1

	result, err := Run(context.Background(), gs, gw, &noopSleeper{}, Options{
		Sources: []SourceEntry{{Label: "a.md", Text: "some text"}},
		Cfg:     cfg,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.BatchesProcessed)

	failures, err := ReadFailureLog(gs.Root())
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "unreachable", failures[0].ErrorType)
}
