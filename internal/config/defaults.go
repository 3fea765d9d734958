package config

const (
	defaultConfigPath     = "~/.config/streamclean/config.toml"
	defaultBaseURL        = "http://localhost:8000/api"
	defaultRequestTimeout = 30
	defaultEventsTimeout  = 10
	defaultStateDir       = "~/.local/share/streamclean"
	defaultLogDir         = "~/.local/share/streamclean/logs"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultNotifyTimeout  = 10

	// EnvBaseURL overrides server.base_url when the file leaves it unset.
	EnvBaseURL = "STREAMCLEAN_API_URL"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			BaseURL:        defaultBaseURL,
			RequestTimeout: defaultRequestTimeout,
			EventsTimeout:  defaultEventsTimeout,
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
			RequestTimeout: defaultNotifyTimeout,
		},
	}
}
