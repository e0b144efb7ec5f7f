package metrics

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordNodesWritten_AppendsToSink(t *testing.T) {
	Reset()
	dir := t.TempDir()
	require.NoError(t, Init(dir))

	RecordNodesWritten("bootstrap", "upsert", 3)

	data, err := os.ReadFile(filepath.Join(dir, ".metrics.jsonl"))
	require.NoError(t, err)
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 1)

	var e event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &e))
	assert.Equal(t, "nodes_written", e.Kind)
	assert.Equal(t, "bootstrap", e.Pipeline)
	assert.Equal(t, "upsert", e.Label)
	assert.Equal(t, float64(3), e.Value)
	assert.NotEmpty(t, e.Timestamp)
}

func TestRecordNodesWritten_ZeroIsNoOp(t *testing.T) {
	Reset()
	dir := t.TempDir()
	require.NoError(t, Init(dir))

	RecordNodesWritten("bootstrap", "upsert", 0)

	_, err := os.ReadFile(filepath.Join(dir, ".metrics.jsonl"))
	assert.True(t, os.IsNotExist(err))
}

func TestRecordWithoutInit_DoesNotPanic(t *testing.T) {
	Reset()
	assert.NotPanics(t, func() {
		RecordMerge("literal")
		RecordCircuitState("bootstrap", 2)
	})
}
