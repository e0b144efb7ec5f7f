// Package config loads and validates the tunables shared by every omg
// pipeline: token thresholds, backoff schedule, similarity thresholds,
// clustering windows, concurrency caps, and trigger mode.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TriggerMode controls when the observation loop runs extraction.
type TriggerMode string

const (
	TriggerEveryTurn  TriggerMode = "every-turn"
	TriggerThreshold  TriggerMode = "threshold"
	TriggerManual     TriggerMode = "manual"
)

// Config is the root configuration object, loaded from YAML.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Trigger    TriggerConfig    `yaml:"trigger"`
	Backoff    BackoffConfig    `yaml:"backoff"`
	Similarity SimilarityConfig `yaml:"similarity"`
	Bootstrap  BootstrapConfig  `yaml:"bootstrap"`
	Reflection ReflectionConfig `yaml:"reflection"`
	Dedup      DedupConfig      `yaml:"dedup"`
	Semantic   SemanticConfig   `yaml:"semantic_dedup"`
}

type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
}

type TriggerConfig struct {
	Mode                     TriggerMode `yaml:"mode"`
	MessageTokenThreshold    int         `yaml:"message_token_threshold"`
	ObservationTokenThreshold int        `yaml:"observation_token_threshold"`
}

type BackoffConfig struct {
	ScheduleSeconds   []int `yaml:"schedule_seconds"`
	MaxRateLimitRetries int `yaml:"max_rate_limit_retries"`
	MaxUnreachableRetries int `yaml:"max_unreachable_retries"`
}

type SimilarityConfig struct {
	DedupThreshold            float64 `yaml:"dedup_threshold"`
	HeuristicPrefilterThreshold float64 `yaml:"heuristic_prefilter_threshold"`
	SemanticMergeThreshold     float64 `yaml:"semantic_merge_threshold"`
}

type BootstrapConfig struct {
	TokenBudgetPerChunk int `yaml:"token_budget_per_chunk"`
	BatchCharBudget     int `yaml:"batch_char_budget"`
	MaxConcurrentBatches int `yaml:"max_concurrent_batches"`
}

type ReflectionConfig struct {
	WindowSpanDays         int `yaml:"window_span_days"`
	MaxInputTokensPerCluster int `yaml:"max_input_tokens_per_cluster"`
	MaxNodesPerCluster     int `yaml:"max_nodes_per_cluster"`
	CompressionLevel       int `yaml:"compression_level"`
	HubMinRefs             int `yaml:"hub_min_refs"`
}

type DedupConfig struct {
	MaxClusterSize      int `yaml:"max_cluster_size"`
	MaxClustersPerRun    int `yaml:"max_clusters_per_run"`
	MaxPairsPerBucket    int `yaml:"max_pairs_per_bucket"`
	StaleDaysThreshold   int `yaml:"stale_days_threshold"`
}

type SemanticConfig struct {
	Enabled            bool `yaml:"enabled"`
	MaxBlockSize       int  `yaml:"max_block_size"`
	TimeWindowDays     int  `yaml:"time_window_days"`
	MaxBlocksPerRun    int  `yaml:"max_blocks_per_run"`
	MaxBodyCharsPerNode int `yaml:"max_body_chars_per_node"`
}

// ValidationError names the offending config field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: invalid field %q: %s", e.Field, e.Msg)
}

// Default returns the documented defaults for every tunable.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{DebugMode: false},
		Trigger: TriggerConfig{
			Mode:                      TriggerThreshold,
			MessageTokenThreshold:     1500,
			ObservationTokenThreshold: 8000,
		},
		Backoff: BackoffConfig{
			ScheduleSeconds:       []int{15, 30, 60, 120, 300},
			MaxRateLimitRetries:   5,
			MaxUnreachableRetries: 3,
		},
		Similarity: SimilarityConfig{
			DedupThreshold:              0.82,
			HeuristicPrefilterThreshold: 0.6,
			SemanticMergeThreshold:      90,
		},
		Bootstrap: BootstrapConfig{
			TokenBudgetPerChunk:  6000,
			BatchCharBudget:      24000,
			MaxConcurrentBatches: 3,
		},
		Reflection: ReflectionConfig{
			WindowSpanDays:           7,
			MaxInputTokensPerCluster: 4000,
			MaxNodesPerCluster:       12,
			CompressionLevel:         1,
			HubMinRefs:               5,
		},
		Dedup: DedupConfig{
			MaxClusterSize:    8,
			MaxClustersPerRun: 20,
			MaxPairsPerBucket: 200,
			StaleDaysThreshold: 30,
		},
		Semantic: SemanticConfig{
			Enabled:             true,
			MaxBlockSize:        10,
			TimeWindowDays:      14,
			MaxBlocksPerRun:     10,
			MaxBodyCharsPerNode: 1200,
		},
	}
}

// Load reads YAML config from path, filling unspecified fields with
// defaults. A missing file is not an error; Default() is returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks tunables that would otherwise misbehave silently.
func (c *Config) Validate() error {
	switch c.Trigger.Mode {
	case TriggerEveryTurn, TriggerThreshold, TriggerManual:
	default:
		return &ValidationError{Field: "trigger.mode", Msg: "must be every-turn, threshold, or manual"}
	}
	if len(c.Backoff.ScheduleSeconds) == 0 {
		return &ValidationError{Field: "backoff.schedule_seconds", Msg: "must not be empty"}
	}
	if c.Similarity.DedupThreshold < 0 || c.Similarity.DedupThreshold > 1 {
		return &ValidationError{Field: "similarity.dedup_threshold", Msg: "must be in [0,1]"}
	}
	if c.Bootstrap.TokenBudgetPerChunk <= 0 {
		return &ValidationError{Field: "bootstrap.token_budget_per_chunk", Msg: "must be positive"}
	}
	if c.Reflection.WindowSpanDays <= 0 {
		return &ValidationError{Field: "reflection.window_span_days", Msg: "must be positive"}
	}
	return nil
}
