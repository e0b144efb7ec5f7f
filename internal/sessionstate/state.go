// Package sessionstate tracks, per session, how many tokens have
// accumulated since the last observation/reflection and decides when a
// pipeline should trigger, per spec.md §4.6.
package sessionstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// State is the persisted per-session record.
type State struct {
	LastObservedAtMs           int64    `json:"lastObservedAtMs"`
	PendingMessageTokens       int      `json:"pendingMessageTokens"`
	TotalObservationTokens     int      `json:"totalObservationTokens"`
	LastReflectionTotalTokens  int      `json:"lastReflectionTotalTokens"`
	ObservationBoundaryMessageIndex int `json:"observationBoundaryMessageIndex"`
	NodeCount                  int      `json:"nodeCount"`
	LastObservationNodeIds     []string `json:"lastObservationNodeIds,omitempty"`
	RecentSourceFingerprints   []string `json:"recentSourceFingerprints,omitempty"`
}

// Message is the minimal shape pipelines need from a conversational
// message to accumulate tokens.
type Message struct {
	Content string
}

func statePath(workspaceDir, sessionKey string) (string, error) {
	if sessionKey == "" || strings.Contains(sessionKey, "..") || strings.ContainsAny(sessionKey, "/\\") {
		return "", fmt.Errorf("sessionstate: invalid sessionKey %q", sessionKey)
	}
	return filepath.Join(workspaceDir, ".omg-state", sessionKey+".json"), nil
}

// Load reads persisted state for a session, returning a zero-value State
// (not an error) if none exists yet.
func Load(workspaceDir, sessionKey string) (*State, error) {
	path, err := statePath(workspaceDir, sessionKey)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{}, nil
		}
		return nil, fmt.Errorf("sessionstate: read %s: %w", path, err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return &State{}, nil
	}
	return &s, nil
}

// Save atomically persists state for a session.
func Save(workspaceDir, sessionKey string, s *State) error {
	path, err := statePath(workspaceDir, sessionKey)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("sessionstate: mkdir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("sessionstate: marshal: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("sessionstate: write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("sessionstate: rename: %w", err)
	}
	return nil
}
