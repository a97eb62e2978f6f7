package config

const (
	defaultUploadDir = "~/.local/share/stlforge/uploads"
	defaultOutputDir = "~/.local/share/stlforge/outputs"
	defaultWorkDir   = "~/.local/share/stlforge/work"
	defaultLogDir    = "~/.local/share/stlforge/logs"

	defaultSlicerBinary         = "/usr/local/Slicer/Slicer"
	defaultSlicerTimeoutSeconds = 600
	defaultMarkerPollIntervalMs = 500
	defaultMarkerMaxWaitSeconds = 10
	defaultVirtualDisplay       = "auto"

	defaultThresholdMin        = 10
	defaultThresholdMax        = 1000
	defaultThresholdDefault    = 100
	defaultSmoothingIterations = 15
	defaultDecimation          = 0.75
	defaultMinSlices           = 10

	defaultJobTimeoutSeconds    = 900
	defaultMaxConcurrentJobs    = 3
	defaultStatusPollIntervalMs = 500

	defaultRetentionMaxAgeHours   = 24
	defaultSweepIntervalMinutes   = 60
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogRetentionDays       = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			UploadDir: defaultUploadDir,
			OutputDir: defaultOutputDir,
			WorkDir:   defaultWorkDir,
			LogDir:    defaultLogDir,
		},
		Slicer: Slicer{
			Binary:             defaultSlicerBinary,
			TimeoutSeconds:     defaultSlicerTimeoutSeconds,
			MarkerPollInterval: defaultMarkerPollIntervalMs,
			MarkerMaxWait:      defaultMarkerMaxWaitSeconds,
			VirtualDisplay:     defaultVirtualDisplay,
		},
		Conversion: Conversion{
			ThresholdMin:        defaultThresholdMin,
			ThresholdMax:        defaultThresholdMax,
			ThresholdDefault:    defaultThresholdDefault,
			SmoothingIterations: defaultSmoothingIterations,
			DecimationDefault:   defaultDecimation,
			MinSlices:           defaultMinSlices,
		},
		Workflow: Workflow{
			JobTimeoutSeconds:  defaultJobTimeoutSeconds,
			MaxConcurrentJobs:  defaultMaxConcurrentJobs,
			StatusPollInterval: defaultStatusPollIntervalMs,
		},
		Retention: Retention{
			Enabled:              true,
			MaxAgeHours:          defaultRetentionMaxAgeHours,
			SweepIntervalMinutes: defaultSweepIntervalMinutes,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
