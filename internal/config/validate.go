package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePlatform(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateConsolidation(); err != nil {
		return err
	}
	if err := c.validateCompliance(); err != nil {
		return err
	}
	if err := c.validateAutoscale(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePlatform() error {
	if strings.TrimSpace(c.Platform.BaseURL) == "" {
		return errors.New("platform.base_url must be set")
	}
	if err := ensurePositiveMap(map[string]int{
		"platform.request_timeout":  c.Platform.RequestTimeout,
		"platform.poll_interval":    c.Platform.PollInterval,
		"platform.dispatch_retries": c.Platform.DispatchRetries,
	}); err != nil {
		return err
	}
	if c.Platform.RetryBaseDelayMilli <= 0 {
		return errors.New("platform.retry_base_delay_ms must be positive")
	}
	if c.Platform.RetryMaxDelayMilli < c.Platform.RetryBaseDelayMilli {
		return errors.New("platform.retry_max_delay_ms must be >= platform.retry_base_delay_ms")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	if c.Transcription.DefaultPasses < 1 || c.Transcription.DefaultPasses > 10 {
		return errors.New("transcription.default_passes must be between 1 and 10")
	}
	if c.Transcription.PassTimeout <= 0 {
		return errors.New("transcription.pass_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateConsolidation() error {
	if c.Consolidation.OverlapThreshold <= 0 || c.Consolidation.OverlapThreshold > 1 {
		return errors.New("consolidation.overlap_threshold must be between 0 and 1")
	}
	if c.Consolidation.MinSegmentSeconds <= 0 {
		return errors.New("consolidation.min_segment_seconds must be positive")
	}
	if c.Consolidation.MergeGapSeconds < 0 {
		return errors.New("consolidation.merge_gap_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateCompliance() error {
	switch c.Compliance.DefaultLevel {
	case "wcag_aa", "eaa", "section_508":
	default:
		return fmt.Errorf("compliance.default_level %q is not a known profile", c.Compliance.DefaultLevel)
	}
	if c.Compliance.TargetWPM <= 0 {
		return errors.New("compliance.target_wpm must be positive")
	}
	if c.Compliance.MinSegmentSeconds <= 0 {
		return errors.New("compliance.min_segment_seconds must be positive")
	}
	if c.Compliance.MaxSegmentSeconds <= c.Compliance.MinSegmentSeconds {
		return errors.New("compliance.max_segment_seconds must be greater than compliance.min_segment_seconds")
	}
	if c.Compliance.MaxSegmentChars <= 0 {
		return errors.New("compliance.max_segment_chars must be positive")
	}
	if c.Compliance.IssuePenalty < 0 || c.Compliance.WarningPenalty < 0 {
		return errors.New("compliance penalties must be >= 0")
	}
	if c.Compliance.WarningPenalty > c.Compliance.IssuePenalty {
		return errors.New("compliance.warning_penalty must not exceed compliance.issue_penalty")
	}
	return nil
}

func (c *Config) validateAutoscale() error {
	if !c.Autoscale.Enabled {
		return nil
	}
	if err := ensurePositiveMap(map[string]int{
		"autoscale.jobs_per_node":    c.Autoscale.JobsPerNode,
		"autoscale.min_nodes":        c.Autoscale.MinNodes,
		"autoscale.interval":         c.Autoscale.Interval,
		"autoscale.cooldown_seconds": c.Autoscale.CooldownSeconds,
	}); err != nil {
		return err
	}
	if c.Autoscale.MaxNodes < c.Autoscale.MinNodes {
		return errors.New("autoscale.max_nodes must be >= autoscale.min_nodes")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"workflow.max_concurrent_jobs":  c.Workflow.MaxConcurrentJobs,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for name, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}
