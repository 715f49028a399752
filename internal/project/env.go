package project

import (
	"os"
	"strconv"
	"time"

	"github.com/piwi3910/slabcut-remote/internal/model"
)

// ApplyEnv overrides config values from SLABCUT_* environment variables.
// Unset or unparsable variables leave the value alone.
func ApplyEnv(config model.AppConfig) model.AppConfig {
	config.Endpoint = getEnv("SLABCUT_ENDPOINT", config.Endpoint)
	config.RequestTimeoutSeconds = getEnvSeconds("SLABCUT_REQUEST_TIMEOUT", config.RequestTimeoutSeconds)
	config.LogLevel = getEnv("SLABCUT_LOG_LEVEL", config.LogLevel)
	config.LogPretty = getEnvBool("SLABCUT_LOG_PRETTY", config.LogPretty)
	config.MetricsAddr = getEnv("SLABCUT_METRICS_ADDR", config.MetricsAddr)
	config.BreakerFailureThreshold = getEnvInt("SLABCUT_BREAKER_FAILURE_THRESHOLD", config.BreakerFailureThreshold)
	config.BreakerSuccessThreshold = getEnvInt("SLABCUT_BREAKER_SUCCESS_THRESHOLD", config.BreakerSuccessThreshold)
	config.BreakerTimeoutSeconds = getEnvSeconds("SLABCUT_BREAKER_TIMEOUT", config.BreakerTimeoutSeconds)
	return config
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvSeconds accepts a Go duration ("90s", "2m") or a bare number of seconds.
func getEnvSeconds(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	if i, err := strconv.Atoi(v); err == nil && i >= 0 {
		return i
	}
	if d, err := time.ParseDuration(v); err == nil && d >= 0 {
		return int(d / time.Second)
	}
	return defaultValue
}
