// Package config provides configuration loading and validation for attendlog.
package config

import (
	"fmt"
	"regexp"
	"time"
)

// Config is the root configuration structure loaded from YAML.
type Config struct {
	// ThresholdRatio is the share of the adjusted class length a student
	// must attend to be present.
	ThresholdRatio float64 `yaml:"threshold_ratio" json:"threshold_ratio"`

	// BufferMinutes is subtracted from the raw threshold as leniency.
	BufferMinutes float64 `yaml:"buffer_minutes" json:"buffer_minutes"`

	// BreakMinutes is subtracted from the total class length.
	BreakMinutes float64 `yaml:"break_minutes" json:"break_minutes"`

	// OverrideTotalMinutes replaces the computed class length when > 0.
	OverrideTotalMinutes float64 `yaml:"override_total_minutes,omitempty" json:"override_total_minutes,omitempty"`

	// PenaltyToleranceMinutes is how many minutes may be attended under a
	// name without an ID before the naming penalty applies.
	PenaltyToleranceMinutes float64 `yaml:"penalty_tolerance_minutes" json:"penalty_tolerance_minutes"`

	// RoundingMode is one of none, ceil_attendance, ceil_both. Unknown
	// values are tolerated here and treated as none by the engine.
	RoundingMode string `yaml:"rounding_mode" json:"rounding_mode"`

	// Exemptions maps an identity key to the checks waived for it.
	Exemptions Exemptions `yaml:"exemptions,omitempty" json:"exemptions,omitempty"`

	// ExcludeNames are case-insensitive patterns; matching display names
	// are dropped before resolution.
	ExcludeNames []string `yaml:"exclude_names" json:"exclude_names"`

	// AliasMergeGap is the time-window tolerance for merging a name-only
	// key into one of several ID keys with the same name.
	AliasMergeGap time.Duration `yaml:"alias_merge_gap" json:"alias_merge_gap"`

	// ReconnectTolerance is the slack before a later session counts as a reconnect.
	ReconnectTolerance time.Duration `yaml:"reconnect_tolerance" json:"reconnect_tolerance"`

	Webhooks []WebhookConfig `yaml:"webhooks,omitempty" json:"-"`
	Archive  ArchiveConfig   `yaml:"archive,omitempty" json:"-"`

	// compiledExcludes is populated during validation.
	compiledExcludes []*regexp.Regexp
}

// CompiledExcludes returns the compiled exclusion patterns.
func (c *Config) CompiledExcludes() []*regexp.Regexp {
	return c.compiledExcludes
}

// RoundingMode controls how minutes are rounded before the threshold comparison.
type RoundingMode string

const (
	// RoundingNone compares raw minutes.
	RoundingNone RoundingMode = "none"
	// RoundingCeilAttendance rounds attended minutes up.
	RoundingCeilAttendance RoundingMode = "ceil_attendance"
	// RoundingCeilBoth rounds attended minutes and the threshold up.
	RoundingCeilBoth RoundingMode = "ceil_both"
)

// Label returns the human-readable description used in reports.
func (m RoundingMode) Label() string {
	switch m {
	case RoundingCeilAttendance:
		return "Ceil attendance only"
	case RoundingCeilBoth:
		return "Ceil attendance & threshold"
	default:
		return "None"
	}
}

// ConfigError reports an unrecognized configuration value.
type ConfigError struct {
	Field string
	Value string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: unrecognized value %q", e.Field, e.Value)
}

// ParseRoundingMode maps a string to a RoundingMode. An empty string is
// none; anything unrecognized returns RoundingNone with a *ConfigError.
func ParseRoundingMode(s string) (RoundingMode, error) {
	switch RoundingMode(s) {
	case "", RoundingNone:
		return RoundingNone, nil
	case RoundingCeilAttendance, RoundingCeilBoth:
		return RoundingMode(s), nil
	default:
		return RoundingNone, &ConfigError{Field: "rounding_mode", Value: s}
	}
}

// Exemption waives checks for one student.
type Exemption struct {
	// Naming waives the naming penalty.
	Naming bool `yaml:"naming" json:"naming"`
	// Overlap hides the dual-device issue tag.
	Overlap bool `yaml:"overlap" json:"overlap"`
	// Reconnect hides the reconnect issue tag.
	Reconnect bool `yaml:"reconnect" json:"reconnect"`
}

// Exemptions maps identity keys ("ID:10001", "NAME:jane doe") to exemptions.
type Exemptions map[string]Exemption

// For returns the exemption for a key. Keys written with the legacy
// "ERP:" prefix are accepted for ID keys.
func (e Exemptions) For(key string) Exemption {
	if ex, ok := e[key]; ok {
		return ex
	}
	if len(key) > 3 && key[:3] == "ID:" {
		return e["ERP:"+key[3:]]
	}
	return Exemption{}
}

// WebhookTrigger determines when a webhook fires.
type WebhookTrigger string

const (
	// WebhookTriggerOnIssues fires only when a student is not present (default).
	WebhookTriggerOnIssues WebhookTrigger = "on_issues"
	// WebhookTriggerAlways fires after every run.
	WebhookTriggerAlways WebhookTrigger = "always"
	// WebhookTriggerNever disables the webhook.
	WebhookTriggerNever WebhookTrigger = "never"
)

// WebhookConfig defines a webhook endpoint for sending attendance reports.
type WebhookConfig struct {
	// Name is an optional identifier for the webhook.
	Name string `yaml:"name,omitempty"`

	// URL is the webhook endpoint (required).
	URL string `yaml:"url"`

	// Token is an optional bearer token for authentication.
	Token string `yaml:"token,omitempty"`

	// Trigger determines when the webhook fires.
	// Defaults to "on_issues" if not specified.
	Trigger WebhookTrigger `yaml:"trigger,omitempty"`

	// Timeout is the HTTP request timeout.
	// Defaults to 10s if not specified.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// ArchiveConfig configures the optional Postgres run archive.
type ArchiveConfig struct {
	// DSN is a Postgres connection string. Empty disables archiving.
	DSN string `yaml:"dsn,omitempty"`
}
