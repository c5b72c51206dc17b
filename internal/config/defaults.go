package config

const (
	defaultVideoURL             = "http://localhost:8000/api/video"
	defaultAuthURL              = "http://localhost:8000/api/auth"
	defaultAssetBase            = "http://localhost:8000"
	defaultAPITimeoutSeconds    = 600
	defaultUserAgent            = "reelcraft/0.1.0"
	defaultRetryMaxAttempts     = 3
	defaultRetryBaseDelayMS     = 500
	defaultRetryBackoffFactor   = 1.6
	defaultStateDir             = "~/.local/share/reelcraft"
	defaultLogDir               = "~/.local/share/reelcraft/logs"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultNotifyRequestTimeout = 10
	defaultBridgeBind           = "127.0.0.1:7488"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		API: API{
			VideoURL:       defaultVideoURL,
			AuthURL:        defaultAuthURL,
			AssetBase:      defaultAssetBase,
			TimeoutSeconds: defaultAPITimeoutSeconds,
			UserAgent:      defaultUserAgent,
		},
		Retry: Retry{
			MaxAttempts:   defaultRetryMaxAttempts,
			BaseDelayMS:   defaultRetryBaseDelayMS,
			BackoffFactor: defaultRetryBackoffFactor,
		},
		Session: Session{
			Path: defaultSessionPath(),
		},
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			RenderReady:    true,
			StageFailures:  true,
			Gallery:        true,
		},
		Bridge: Bridge{
			Bind: defaultBridgeBind,
		},
	}
}
