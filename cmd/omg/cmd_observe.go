package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"omg/internal/bootstrap"
	"omg/internal/reflection"
	"omg/internal/sessionstate"
	"omg/internal/tokenbackoff"
)

var (
	observeTranscript string
	observeSession    string
	observeSummary    bool
)

var observeCmd = &cobra.Command{
	Use:   "observe",
	Short: "Feed a session transcript through the observation/reflection trigger",
	Long: `Reads --transcript as one message per line, accumulates pending tokens
against session state, and runs a bootstrap extraction pass when the
configured trigger fires. If that pass crosses the reflection delta
threshold, a reflection pass runs immediately after.`,
	RunE: runObserve,
}

func init() {
	observeCmd.Flags().StringVar(&observeTranscript, "transcript", "", "path to a transcript file, one message per line (required)")
	observeCmd.Flags().StringVar(&observeSession, "session", "default", "session key under which trigger state is tracked")
	observeCmd.Flags().BoolVar(&observeSummary, "summary", true, "print a styled result summary")
	observeCmd.MarkFlagRequired("transcript")
}

func readTranscriptMessages(path string) ([]sessionstate.Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var messages []sessionstate.Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		messages = append(messages, sessionstate.Message{Content: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

func runObserve(cmd *cobra.Command, args []string) error {
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(ws)
	if err != nil {
		return err
	}

	messages, err := readTranscriptMessages(observeTranscript)
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}

	s, err := sessionstate.Load(ws, observeSession)
	if err != nil {
		return fmt.Errorf("load session state: %w", err)
	}
	sessionstate.AccumulateTokens(messages, s)

	if !sessionstate.ShouldTriggerObservation(s, cfg.Trigger) {
		logger.Debug("observation trigger not met", zap.Int("pending_tokens", s.PendingMessageTokens))
		fmt.Printf("trigger not met (pending=%d)\n", s.PendingMessageTokens)
		return sessionstate.Save(ws, observeSession, s)
	}

	gs, err := openStore(ws)
	if err != nil {
		return err
	}
	gw, err := buildGateway()
	if err != nil {
		return err
	}

	pending := messages[s.ObservationBoundaryMessageIndex:]
	var sb strings.Builder
	for _, m := range pending {
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Info("observation triggered", zap.String("session", observeSession), zap.Int("pending_messages", len(pending)))
	result, err := bootstrap.Run(ctx, gs, gw, tokenbackoff.RealSleeper, bootstrap.Options{
		Sources:      []bootstrap.SourceEntry{{Label: "session:" + observeSession, Text: sb.String()}},
		SystemPrompt: defaultSystemPrompt,
		Cfg:          cfg,
	})
	if err != nil {
		logger.Error("observation bootstrap failed", zap.Error(err))
		return err
	}
	if observeSummary {
		printBootstrapSummary(result)
	}

	s.TotalObservationTokens += s.PendingMessageTokens
	s.PendingMessageTokens = 0
	s.ObservationBoundaryMessageIndex = len(messages)
	s.NodeCount += result.NodesWritten
	s.LastObservedAtMs = time.Now().UnixMilli()

	if sessionstate.ShouldTriggerReflection(s, cfg.Trigger) {
		logger.Info("reflection triggered", zap.String("session", observeSession))
		refResult, err := reflection.Run(ctx, gs, gw, cfg.Reflection, cfg.Reflection.CompressionLevel, defaultSystemPrompt)
		if err != nil {
			logger.Error("observation reflection failed", zap.Error(err))
			return err
		}
		if observeSummary {
			printReflectionSummary(refResult)
		}
		s.LastReflectionTotalTokens = s.TotalObservationTokens
	}

	return sessionstate.Save(ws, observeSession, s)
}
