package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Params is a per-run overlay of decision options, supplied as JSON by the
// CLI (--params-json) or the HTTP form. Nil fields leave the config as is.
type Params struct {
	ThresholdRatio          *float64
	BufferMinutes           *float64
	BreakMinutes            *float64
	OverrideTotalMinutes    *float64
	PenaltyToleranceMinutes *float64
	RoundingMode            *string
}

// DecodeParams parses a params object. Numbers may be JSON numbers or
// numeric strings; empty strings and nulls count as absent. Empty input
// decodes to an empty Params.
func DecodeParams(data []byte) (Params, error) {
	var p Params
	if len(bytes.TrimSpace(data)) == 0 {
		return p, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return p, fmt.Errorf("parsing params: %w", err)
	}

	fields := []struct {
		name string
		dst  **float64
	}{
		{"threshold_ratio", &p.ThresholdRatio},
		{"buffer_minutes", &p.BufferMinutes},
		{"break_minutes", &p.BreakMinutes},
		{"override_total_minutes", &p.OverrideTotalMinutes},
		{"penalty_tolerance_minutes", &p.PenaltyToleranceMinutes},
	}
	for _, f := range fields {
		v, ok, err := flexFloat(raw[f.name])
		if err != nil {
			return p, fmt.Errorf("parsing params: %s: %w", f.name, err)
		}
		if ok {
			*f.dst = &v
		}
	}

	if msg, ok := raw["rounding_mode"]; ok {
		var s *string
		if err := json.Unmarshal(msg, &s); err != nil {
			return p, fmt.Errorf("parsing params: rounding_mode: %w", err)
		}
		if s != nil && *s != "" {
			p.RoundingMode = s
		}
	}

	return p, nil
}

// flexFloat accepts a JSON number, a numeric string, "" or null.
func flexFloat(msg json.RawMessage) (float64, bool, error) {
	if len(msg) == 0 || string(msg) == "null" {
		return 0, false, nil
	}

	var n float64
	if err := json.Unmarshal(msg, &n); err == nil {
		return n, true, nil
	}

	var s string
	if err := json.Unmarshal(msg, &s); err != nil {
		return 0, false, fmt.Errorf("expected number, got %s", msg)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("expected number, got %q", s)
	}
	return n, true, nil
}

// Apply overlays the params onto a copy of the config and validates it.
// A zero threshold ratio keeps the configured one.
func (c *Config) Apply(p Params) (*Config, error) {
	out := *c
	out.ExcludeNames = append([]string(nil), c.ExcludeNames...)
	out.Webhooks = append([]WebhookConfig(nil), c.Webhooks...)
	out.Exemptions = make(Exemptions, len(c.Exemptions))
	for k, v := range c.Exemptions {
		out.Exemptions[k] = v
	}
	out.compiledExcludes = nil

	if p.ThresholdRatio != nil && *p.ThresholdRatio != 0 {
		out.ThresholdRatio = *p.ThresholdRatio
	}
	if p.BufferMinutes != nil {
		out.BufferMinutes = *p.BufferMinutes
	}
	if p.BreakMinutes != nil {
		out.BreakMinutes = *p.BreakMinutes
	}
	if p.OverrideTotalMinutes != nil {
		out.OverrideTotalMinutes = *p.OverrideTotalMinutes
	}
	if p.PenaltyToleranceMinutes != nil {
		out.PenaltyToleranceMinutes = *p.PenaltyToleranceMinutes
	}
	if p.RoundingMode != nil {
		out.RoundingMode = *p.RoundingMode
	}

	if err := Validate(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DecodeExemptions parses an exemptions object keyed by identity key.
// Empty input decodes to an empty map.
func DecodeExemptions(data []byte) (Exemptions, error) {
	ex := Exemptions{}
	if len(bytes.TrimSpace(data)) == 0 {
		return ex, nil
	}
	if err := json.Unmarshal(data, &ex); err != nil {
		return Exemptions{}, fmt.Errorf("parsing exemptions: %w", err)
	}
	return ex, nil
}

// WithExemptions returns a copy of the config with extra exemptions merged
// over the configured ones.
func (c *Config) WithExemptions(extra Exemptions) *Config {
	out := *c
	out.Exemptions = make(Exemptions, len(c.Exemptions)+len(extra))
	for k, v := range c.Exemptions {
		out.Exemptions[k] = v
	}
	for k, v := range extra {
		out.Exemptions[k] = v
	}
	return &out
}
