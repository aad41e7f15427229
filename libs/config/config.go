// Package config reads process configuration from the environment. Every
// accessor takes a fallback so a bare environment still yields a runnable
// process; only RequiredString can refuse to start the service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

func String(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func RequiredString(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

// Int returns the parsed value, or fallback when the variable is unset,
// unparsable or negative.
func Int(key string, fallback int) int {
	v, err := strconv.Atoi(String(key, ""))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

// Duration parses values like "90s" or "2m", falling back on any error.
func Duration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(String(key, ""))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func Port(key, fallback string) (string, error) {
	v := String(key, fallback)
	p, err := strconv.Atoi(v)
	if err != nil || p < 1 || p > 65535 {
		return "", fmt.Errorf("%s must be a valid TCP port (got %q)", key, v)
	}
	return v, nil
}
