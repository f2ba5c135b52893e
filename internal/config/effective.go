package config

import (
	"fmt"
)

type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// BuildEffectiveConfig applies raw on top of DefaultConfig.
func BuildEffectiveConfig(raw RawConfig) (*Config, error) {
	cfg := DefaultConfig()

	if raw.Notifications != nil {
		cfg.Notifications = append([]string{}, (*raw.Notifications)...)
	}
	if raw.IgnoreApps != nil {
		cfg.IgnoreApps = append([]string{}, (*raw.IgnoreApps)...)
	}
	if raw.RescanInterval != nil {
		cfg.RescanInterval = *raw.RescanInterval
	}
	if raw.Throttle != nil {
		cfg.Throttle.MoveResizePerSecond = derefFloat(raw.Throttle.MoveResizePerSecond, cfg.Throttle.MoveResizePerSecond)
		cfg.Throttle.Burst = derefInt(raw.Throttle.Burst, cfg.Throttle.Burst)
	}
	if raw.LogLevel != nil {
		cfg.LogLevel = *raw.LogLevel
	}
	if raw.IPC != nil && raw.IPC.Enabled != nil {
		cfg.IPC.Enabled = *raw.IPC.Enabled
	}
	if raw.Metrics != nil {
		if raw.Metrics.Enabled != nil {
			cfg.Metrics.Enabled = *raw.Metrics.Enabled
		}
		if raw.Metrics.Listen != nil {
			cfg.Metrics.Listen = *raw.Metrics.Listen
		}
	}
	if raw.HistorySize != nil {
		cfg.HistorySize = *raw.HistorySize
	}
	if raw.PromptForTrust != nil {
		cfg.PromptForTrust = *raw.PromptForTrust
	}

	return cfg, nil
}

func derefInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func derefFloat(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
