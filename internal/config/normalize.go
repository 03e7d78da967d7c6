package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePlatform()
	c.normalizeTranscription()
	c.normalizeCompliance()
	c.normalizeOutputs()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizePlatform() {
	if c.Platform.APIKey == "" {
		if value, ok := os.LookupEnv("ZEUS_PLATFORM_API_KEY"); ok {
			c.Platform.APIKey = value
		}
	}
	c.Platform.BaseURL = strings.TrimRight(strings.TrimSpace(c.Platform.BaseURL), "/")
	if c.Platform.BaseURL == "" {
		c.Platform.BaseURL = defaultPlatformBaseURL
	}
	c.Platform.Namespace = strings.TrimSpace(c.Platform.Namespace)
	if c.Platform.Namespace == "" {
		c.Platform.Namespace = defaultNamespace
	}
	c.Platform.NodePool = strings.TrimSpace(c.Platform.NodePool)
	if c.Platform.NodePool == "" {
		c.Platform.NodePool = defaultNodePool
	}
}

func (c *Config) normalizeTranscription() {
	c.Transcription.DefaultModel = strings.TrimSpace(c.Transcription.DefaultModel)
	if c.Transcription.DefaultModel == "" {
		c.Transcription.DefaultModel = defaultWhisperModel
	}
	if c.Transcription.DefaultPasses <= 0 {
		c.Transcription.DefaultPasses = defaultNumPasses
	}
	if c.Transcription.TemperatureStep <= 0 {
		c.Transcription.TemperatureStep = defaultTemperatureStep
	}
}

func (c *Config) normalizeCompliance() {
	c.Compliance.DefaultLevel = strings.ToLower(strings.TrimSpace(c.Compliance.DefaultLevel))
	if c.Compliance.DefaultLevel == "" {
		c.Compliance.DefaultLevel = defaultLevel
	}
}

func (c *Config) normalizeOutputs() {
	c.Outputs.BaseURL = strings.TrimRight(strings.TrimSpace(c.Outputs.BaseURL), "/")
	if len(c.Outputs.Formats) == 0 {
		c.Outputs.Formats = []string{"srt", "vtt", "json"}
	}
	for i, format := range c.Outputs.Formats {
		c.Outputs.Formats[i] = strings.ToLower(strings.TrimSpace(format))
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
