package bootstrap

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FailureEntry is one line of the append-only bootstrap failure log.
type FailureEntry struct {
	BatchIndex  int                    `json:"batchIndex"`
	Labels      []string               `json:"labels"`
	ErrorType   string                 `json:"errorType"`
	Error       string                 `json:"error"`
	Timestamp   string                 `json:"timestamp"`
	Diagnostics map[string]interface{} `json:"diagnostics,omitempty"`
	ChunkCount  int                    `json:"chunkCount"`
}

func failureLogPath(omgRoot string) string {
	return filepath.Join(omgRoot, ".bootstrap-failures.jsonl")
}

// AppendFailure appends one JSON line to the failure log.
func AppendFailure(omgRoot string, entry FailureEntry) error {
	path := failureLogPath(omgRoot)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("bootstrap: open failure log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("bootstrap: marshal failure entry: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("bootstrap: write failure entry: %w", err)
	}
	return nil
}

// ClearFailureLog truncates the failure log, used by a forced bootstrap run.
func ClearFailureLog(omgRoot string) error {
	return os.WriteFile(failureLogPath(omgRoot), nil, 0o644)
}

// ReadFailureLog returns every recorded failure entry, or an empty slice
// if the log does not exist.
func ReadFailureLog(omgRoot string) ([]FailureEntry, error) {
	path := failureLogPath(omgRoot)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("bootstrap: open failure log: %w", err)
	}
	defer f.Close()

	var entries []FailureEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		var e FailureEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err == nil {
			entries = append(entries, e)
		}
	}
	return entries, scanner.Err()
}
