package sessionstate

import (
	"time"

	"omg/internal/config"
	"omg/internal/logging"
	"omg/internal/tokenbackoff"
)

// AccumulateTokens replaces (never adds to) PendingMessageTokens with the
// sum of estimated tokens over messages[state.ObservationBoundaryMessageIndex:].
// Calling it twice with the same inputs is idempotent.
func AccumulateTokens(messages []Message, s *State) {
	if s.ObservationBoundaryMessageIndex < 0 || s.ObservationBoundaryMessageIndex > len(messages) {
		s.PendingMessageTokens = 0
		return
	}
	total := 0
	for _, m := range messages[s.ObservationBoundaryMessageIndex:] {
		total += tokenbackoff.EstimateTokens(m.Content)
	}
	s.PendingMessageTokens = total
}

// ShouldTriggerObservation decides whether the observation loop should
// run extraction now, based on the configured trigger mode.
func ShouldTriggerObservation(s *State, cfg config.TriggerConfig) bool {
	switch cfg.Mode {
	case config.TriggerEveryTurn:
		return true
	case config.TriggerThreshold:
		return s.PendingMessageTokens >= cfg.MessageTokenThreshold
	case config.TriggerManual:
		return false
	default:
		return false
	}
}

// ShouldTriggerReflection is monotone in the DELTA since the last
// reflection, not in the cumulative total: with a fixed
// LastReflectionTotalTokens, it becomes true once TotalObservationTokens
// crosses LastReflectionTotalTokens + threshold, and stays true until a
// reflection run advances the baseline — it does not re-fire every turn
// past the threshold.
func ShouldTriggerReflection(s *State, cfg config.TriggerConfig) bool {
	delta := s.TotalObservationTokens - s.LastReflectionTotalTokens
	return delta >= cfg.ObservationTokenThreshold
}

// ObserveFunc performs one observation pass; errors are logged by the
// caller, never thrown to the host.
type ObserveFunc func(messages []Message, s *State) error

// BeforeCompaction bypasses the normal trigger and forces an observation:
// load state, observe, save state. All errors are logged; none are
// returned to the caller, per spec.md §4.6.
func BeforeCompaction(workspaceDir, sessionKey string, messages []Message, observe ObserveFunc) {
	log := logging.Get(logging.CategorySession)

	s, err := Load(workspaceDir, sessionKey)
	if err != nil {
		log.Error("beforeCompaction: load state failed: %v", err)
		return
	}

	AccumulateTokens(messages, s)
	if err := observe(messages, s); err != nil {
		log.Error("beforeCompaction: observe failed: %v", err)
		return
	}
	s.LastObservedAtMs = time.Now().UnixMilli()

	if err := Save(workspaceDir, sessionKey, s); err != nil {
		log.Error("beforeCompaction: save state failed: %v", err)
	}
}
