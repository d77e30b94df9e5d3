package config

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and validates a configuration file.
func Load(_ context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided config path is expected
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvironmentOverrides()

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path, or the defaults with environment overrides when
// path is empty.
func LoadOrDefault(ctx context.Context, path string) (*Config, error) {
	if path != "" {
		return Load(ctx, path)
	}

	cfg := DefaultConfig()
	cfg.applyEnvironmentOverrides()
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Validate checks a configuration for errors, fills defaults, and compiles
// the exclusion patterns. An unrecognized rounding mode is not an error here.
func Validate(cfg *Config) error {
	if cfg.ThresholdRatio <= 0 || cfg.ThresholdRatio > 1 || math.IsNaN(cfg.ThresholdRatio) {
		return fmt.Errorf("threshold_ratio: must be in (0, 1], got %v", cfg.ThresholdRatio)
	}

	nonNegative := []struct {
		field string
		value float64
	}{
		{"buffer_minutes", cfg.BufferMinutes},
		{"break_minutes", cfg.BreakMinutes},
		{"override_total_minutes", cfg.OverrideTotalMinutes},
		{"penalty_tolerance_minutes", cfg.PenaltyToleranceMinutes},
	}
	for _, f := range nonNegative {
		if f.value < 0 || math.IsNaN(f.value) {
			return fmt.Errorf("%s: must be >= 0, got %v", f.field, f.value)
		}
	}

	if cfg.AliasMergeGap < 0 {
		return errors.New("alias_merge_gap: must be >= 0")
	}
	if cfg.ReconnectTolerance < 0 {
		return errors.New("reconnect_tolerance: must be >= 0")
	}

	cfg.compiledExcludes = nil
	for i, pat := range cfg.ExcludeNames {
		re, err := regexp.Compile("(?i)" + pat)
		if err != nil {
			return fmt.Errorf("exclude_names[%d]: invalid pattern: %w", i, err)
		}
		cfg.compiledExcludes = append(cfg.compiledExcludes, re)
	}

	if cfg.Exemptions == nil {
		cfg.Exemptions = Exemptions{}
	}

	// Webhooks are optional, but validate if present
	for i := range cfg.Webhooks {
		if err := validateWebhook(&cfg.Webhooks[i]); err != nil {
			name := cfg.Webhooks[i].Name
			if name == "" {
				name = cfg.Webhooks[i].URL
			}
			return fmt.Errorf("webhooks[%d] (%s): %w", i, name, err)
		}
	}

	cfg.Archive.DSN = expandEnvVar(strings.TrimSpace(cfg.Archive.DSN))

	return nil
}

func validateWebhook(wh *WebhookConfig) error {
	if wh.URL == "" {
		return errors.New("url is required")
	}

	u, err := url.Parse(wh.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}

	wh.Token = expandEnvVar(wh.Token)

	if wh.Trigger != "" {
		switch wh.Trigger {
		case WebhookTriggerOnIssues, WebhookTriggerAlways, WebhookTriggerNever:
		default:
			return fmt.Errorf("invalid trigger %q (must be on_issues, always, or never)", wh.Trigger)
		}
	} else {
		wh.Trigger = WebhookTriggerOnIssues
	}

	if wh.Timeout <= 0 {
		wh.Timeout = DefaultWebhookTimeout
	}

	return nil
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	if s == "" {
		return s
	}

	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		varName := s[2 : len(s)-1]
		return os.Getenv(varName)
	}

	if strings.HasPrefix(s, "$") && !strings.HasPrefix(s, "${") {
		varName := s[1:]
		return os.Getenv(varName)
	}

	return s
}
