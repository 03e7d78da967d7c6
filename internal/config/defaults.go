package config

const (
	defaultDataDir         = "~/.local/share/zeus"
	defaultLogDir          = "~/.local/share/zeus/logs"
	defaultAPIBind         = "127.0.0.1:7823"
	defaultPlatformBaseURL = "http://127.0.0.1:8181"
	defaultNamespace       = "zeus-processing"
	defaultNodePool        = "gpupool"
	defaultRequestTimeout  = 300
	defaultPollInterval    = 5
	defaultDispatchRetries = 5
	defaultRetryBaseDelay  = 1000
	defaultRetryMaxDelay   = 30000
	defaultWhisperModel    = "large-v3"
	defaultNumPasses       = 5
	defaultPassTimeout     = 1800
	defaultTemperatureStep = 0.2
	defaultOverlap         = 0.5
	defaultMinSegment      = 0.5
	defaultMergeGap        = 0.2
	defaultLevel           = "eaa"
	defaultTargetWPM       = 160
	defaultMinDuration     = 1.0
	defaultMaxDuration     = 7.0
	defaultMaxChars        = 80
	defaultIssuePenalty    = 10
	defaultWarningPenalty  = 2
	defaultJobsPerNode     = 3
	defaultMinNodes        = 1
	defaultMaxNodes        = 10
	defaultScaleInterval   = 30
	defaultCooldown        = 300
	defaultQueuePoll       = 5
	defaultErrorRetry      = 10
	defaultMaxConcurrent   = 4
	defaultHeartbeat       = 15
	defaultHeartbeatDead   = 120
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Platform: Platform{
			BaseURL:             defaultPlatformBaseURL,
			Namespace:           defaultNamespace,
			NodePool:            defaultNodePool,
			RequestTimeout:      defaultRequestTimeout,
			PollInterval:        defaultPollInterval,
			DispatchRetries:     defaultDispatchRetries,
			RetryBaseDelayMilli: defaultRetryBaseDelay,
			RetryMaxDelayMilli:  defaultRetryMaxDelay,
		},
		Transcription: Transcription{
			DefaultModel:    defaultWhisperModel,
			DefaultPasses:   defaultNumPasses,
			PassTimeout:     defaultPassTimeout,
			TemperatureStep: defaultTemperatureStep,
		},
		Consolidation: Consolidation{
			OverlapThreshold:  defaultOverlap,
			MinSegmentSeconds: defaultMinSegment,
			MergeGapSeconds:   defaultMergeGap,
		},
		Compliance: Compliance{
			DefaultLevel:      defaultLevel,
			TargetWPM:         defaultTargetWPM,
			MinSegmentSeconds: defaultMinDuration,
			MaxSegmentSeconds: defaultMaxDuration,
			MaxSegmentChars:   defaultMaxChars,
			IssuePenalty:      defaultIssuePenalty,
			WarningPenalty:    defaultWarningPenalty,
		},
		Autoscale: Autoscale{
			Enabled:         true,
			JobsPerNode:     defaultJobsPerNode,
			MinNodes:        defaultMinNodes,
			MaxNodes:        defaultMaxNodes,
			Interval:        defaultScaleInterval,
			CooldownSeconds: defaultCooldown,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePoll,
			ErrorRetryInterval: defaultErrorRetry,
			MaxConcurrentJobs:  defaultMaxConcurrent,
			HeartbeatInterval:  defaultHeartbeat,
			HeartbeatTimeout:   defaultHeartbeatDead,
		},
		Outputs: Outputs{
			Formats: []string{"srt", "vtt", "json"},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
