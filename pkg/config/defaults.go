package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Default values for configuration.
const (
	DefaultThresholdRatio     = 0.8
	DefaultAliasMergeGap      = 7 * time.Minute
	DefaultReconnectTolerance = 2 * time.Second
	DefaultWebhookTimeout     = 10 * time.Second
)

// DefaultExcludeNames lists display names that are never students.
var DefaultExcludeNames = []string{
	`^\s*meeting analytics from read\s*$`,
	`^\s*ta\s*$`,
	`^\s*saboor'?s fathom notetaker\s*$`,
}

// Environment variable names.
const (
	EnvThresholdRatio = "ATTENDLOG_THRESHOLD_RATIO"
	EnvRoundingMode   = "ATTENDLOG_ROUNDING_MODE"
	EnvDatabaseURL    = "ATTENDLOG_DB_URL"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ThresholdRatio:     DefaultThresholdRatio,
		RoundingMode:       string(RoundingNone),
		Exemptions:         Exemptions{},
		ExcludeNames:       append([]string(nil), DefaultExcludeNames...),
		AliasMergeGap:      DefaultAliasMergeGap,
		ReconnectTolerance: DefaultReconnectTolerance,
	}
}

// LoadDotEnv loads environment variables from .env style files. Files that
// do not exist are skipped; variables already set are not overwritten.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
func (c *Config) applyEnvironmentOverrides() {
	if v := os.Getenv(EnvThresholdRatio); v != "" {
		if ratio, err := strconv.ParseFloat(v, 64); err == nil {
			c.ThresholdRatio = ratio
		}
	}
	if mode := os.Getenv(EnvRoundingMode); mode != "" {
		c.RoundingMode = mode
	}
	if dsn := os.Getenv(EnvDatabaseURL); dsn != "" {
		c.Archive.DSN = dsn
	}
}
