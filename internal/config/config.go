package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Platform contains configuration for the execution platform that runs
// transcription work units and hosts the GPU node pool.
type Platform struct {
	BaseURL             string `toml:"base_url"`
	APIKey              string `toml:"api_key"`
	Namespace           string `toml:"namespace"`
	NodePool            string `toml:"node_pool"`
	RequestTimeout      int    `toml:"request_timeout"`
	PollInterval        int    `toml:"poll_interval"`
	DispatchRetries     int    `toml:"dispatch_retries"`
	RetryBaseDelayMilli int    `toml:"retry_base_delay_ms"`
	RetryMaxDelayMilli  int    `toml:"retry_max_delay_ms"`
}

// Transcription contains defaults for multi-pass transcription work units.
type Transcription struct {
	DefaultModel    string  `toml:"default_model"`
	DefaultPasses   int     `toml:"default_passes"`
	PassTimeout     int     `toml:"pass_timeout"`
	TemperatureStep float64 `toml:"temperature_step"`
}

// Consolidation contains thresholds for merging multi-pass transcripts.
type Consolidation struct {
	// OverlapThreshold is the fraction of the shorter segment's duration two
	// segments must overlap by to fall into the same bucket.
	OverlapThreshold  float64 `toml:"overlap_threshold"`
	MinSegmentSeconds float64 `toml:"min_segment_seconds"`
	MergeGapSeconds   float64 `toml:"merge_gap_seconds"`
}

// Compliance contains default thresholds for accessibility validation.
// Individual profiles may override these per level.
type Compliance struct {
	DefaultLevel      string  `toml:"default_level"`
	TargetWPM         int     `toml:"target_wpm"`
	MinSegmentSeconds float64 `toml:"min_segment_seconds"`
	MaxSegmentSeconds float64 `toml:"max_segment_seconds"`
	MaxSegmentChars   int     `toml:"max_segment_chars"`
	IssuePenalty      int     `toml:"issue_penalty"`
	WarningPenalty    int     `toml:"warning_penalty"`
}

// Autoscale contains configuration for the cluster capacity controller.
type Autoscale struct {
	Enabled         bool `toml:"enabled"`
	JobsPerNode     int  `toml:"jobs_per_node"`
	MinNodes        int  `toml:"min_nodes"`
	MaxNodes        int  `toml:"max_nodes"`
	Interval        int  `toml:"interval"`
	CooldownSeconds int  `toml:"cooldown_seconds"`
}

// Workflow contains configuration for scheduler timing and concurrency.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	MaxConcurrentJobs  int `toml:"max_concurrent_jobs"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
}

// Outputs contains configuration for registering completed artifacts.
type Outputs struct {
	// BaseURL is the location prefix under which the export collaborator
	// publishes subtitle artifacts, e.g. a blob container URL.
	BaseURL string   `toml:"base_url"`
	Formats []string `toml:"formats"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Zeus.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and API bind address
//   - Platform: execution platform endpoint, credentials, retry policy
//   - Transcription: whisper model and pass defaults
//   - Consolidation: multi-pass merge thresholds
//   - Compliance: accessibility rule defaults
//   - Autoscale: capacity controller bounds and hysteresis
//   - Workflow: scheduler polling intervals and concurrency
//   - Outputs: artifact registration locations
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Platform      Platform      `toml:"platform"`
	Transcription Transcription `toml:"transcription"`
	Consolidation Consolidation `toml:"consolidation"`
	Compliance    Compliance    `toml:"compliance"`
	Autoscale     Autoscale     `toml:"autoscale"`
	Workflow      Workflow      `toml:"workflow"`
	Outputs       Outputs       `toml:"outputs"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/zeus/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("zeus.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
