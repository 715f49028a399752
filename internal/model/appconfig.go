package model

// DefaultEndpoint is where the optimization service is expected when no
// configuration says otherwise.
const DefaultEndpoint = "http://localhost:8080/optimize"

// AppConfig holds application-wide preferences and connection settings.
type AppConfig struct {
	// Optimization service
	Endpoint              string `json:"endpoint"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"` // 0 = no timeout

	// Circuit breaker around the outbound call
	BreakerFailureThreshold int `json:"breaker_failure_threshold"` // 0 disables the breaker
	BreakerSuccessThreshold int `json:"breaker_success_threshold"`
	BreakerTimeoutSeconds   int `json:"breaker_timeout_seconds"`

	// Logging and metrics
	LogLevel    string `json:"log_level"` // "debug", "info", "warn", "error"
	LogPretty   bool   `json:"log_pretty"`
	MetricsAddr string `json:"metrics_addr"` // e.g. "127.0.0.1:9464"; empty = not served

	// Application preferences
	RecentExports []string `json:"recent_exports"`
	Theme         string   `json:"theme"` // "light", "dark", "system"
}

// DefaultAppConfig returns an AppConfig populated with sensible defaults.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Endpoint:                DefaultEndpoint,
		RequestTimeoutSeconds:   0,
		BreakerFailureThreshold: 5,
		BreakerSuccessThreshold: 2,
		BreakerTimeoutSeconds:   30,
		LogLevel:                "info",
		LogPretty:               false,
		MetricsAddr:             "",
		RecentExports:           []string{},
		Theme:                   "system",
	}
}

// maxRecentExports caps the RecentExports list.
const maxRecentExports = 10

// AddRecentExport records path as the most recent export, dropping any
// earlier occurrence and trimming the list to its cap.
func (c *AppConfig) AddRecentExport(path string) {
	list := []string{path}
	for _, p := range c.RecentExports {
		if p != path {
			list = append(list, p)
		}
	}
	if len(list) > maxRecentExports {
		list = list[:maxRecentExports]
	}
	c.RecentExports = list
}
