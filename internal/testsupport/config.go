// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"zeus/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Intervals are tightened so control loops settle quickly under test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Platform.APIKey = "test"
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.ErrorRetryInterval = 1
	cfg.Workflow.HeartbeatInterval = 1
	cfg.Workflow.HeartbeatTimeout = 5
	cfg.Autoscale.Interval = 1
	cfg.Outputs.BaseURL = "https://artifacts.test/subtitles"
	cfg.Outputs.Formats = []string{"srt", "vtt"}

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithPasses overrides the default number of transcription passes.
func WithPasses(passes int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Transcription.DefaultPasses = passes
	}
}
