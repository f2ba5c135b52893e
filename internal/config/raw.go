package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// IncludeList supports either:
//
//	include: "/path/to/file.yaml"
//
// or:
//
//	include:
//	  - "/path/to/file.yaml"
//	  - "/path/to/dir"
type IncludeList []string

func (l *IncludeList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		// Not present.
		*l = nil
		return nil
	case yaml.ScalarNode:
		if value.Tag != "!!str" {
			return fmt.Errorf("include must be a string or list of strings")
		}
		*l = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode || item.Tag != "!!str" {
				return fmt.Errorf("include entries must be strings")
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("include must be a string or list of strings")
	}
}

type RawThrottle struct {
	MoveResizePerSecond *float64 `yaml:"move_resize_per_second"`
	Burst               *int     `yaml:"burst"`
}

type RawIPC struct {
	Enabled *bool `yaml:"enabled"`
}

type RawMetrics struct {
	Enabled *bool   `yaml:"enabled"`
	Listen  *string `yaml:"listen"`
}

type RawConfig struct {
	Include        IncludeList    `yaml:"include"`
	Notifications  *[]string      `yaml:"notifications"`
	IgnoreApps     *[]string      `yaml:"ignore_apps"`
	RescanInterval *time.Duration `yaml:"rescan_interval"`
	Throttle       *RawThrottle   `yaml:"throttle"`
	LogLevel       *string        `yaml:"log_level"`
	IPC            *RawIPC        `yaml:"ipc"`
	Metrics        *RawMetrics    `yaml:"metrics"`
	HistorySize    *int           `yaml:"history_size"`
	PromptForTrust *bool          `yaml:"prompt_for_trust"`
}

func (c RawConfig) merge(overlay RawConfig) RawConfig {
	out := c

	if overlay.Notifications != nil {
		out.Notifications = overlay.Notifications
	}
	if overlay.IgnoreApps != nil {
		out.IgnoreApps = overlay.IgnoreApps
	}
	if overlay.RescanInterval != nil {
		out.RescanInterval = overlay.RescanInterval
	}
	if overlay.Throttle != nil {
		base := RawThrottle{}
		if out.Throttle != nil {
			base = *out.Throttle
		}
		merged := mergeRawThrottle(base, *overlay.Throttle)
		out.Throttle = &merged
	}
	if overlay.LogLevel != nil {
		out.LogLevel = overlay.LogLevel
	}
	if overlay.IPC != nil {
		base := RawIPC{}
		if out.IPC != nil {
			base = *out.IPC
		}
		if overlay.IPC.Enabled != nil {
			base.Enabled = overlay.IPC.Enabled
		}
		out.IPC = &base
	}
	if overlay.Metrics != nil {
		base := RawMetrics{}
		if out.Metrics != nil {
			base = *out.Metrics
		}
		merged := mergeRawMetrics(base, *overlay.Metrics)
		out.Metrics = &merged
	}
	if overlay.HistorySize != nil {
		out.HistorySize = overlay.HistorySize
	}
	if overlay.PromptForTrust != nil {
		out.PromptForTrust = overlay.PromptForTrust
	}

	return out
}

func mergeRawThrottle(base RawThrottle, overlay RawThrottle) RawThrottle {
	out := base
	if overlay.MoveResizePerSecond != nil {
		out.MoveResizePerSecond = overlay.MoveResizePerSecond
	}
	if overlay.Burst != nil {
		out.Burst = overlay.Burst
	}
	return out
}

func mergeRawMetrics(base RawMetrics, overlay RawMetrics) RawMetrics {
	out := base
	if overlay.Enabled != nil {
		out.Enabled = overlay.Enabled
	}
	if overlay.Listen != nil {
		out.Listen = overlay.Listen
	}
	return out
}
