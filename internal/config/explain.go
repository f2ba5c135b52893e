package config

import (
	"fmt"
	"strings"
)

// Explain returns the effective value at the given YAML-like path and its source.
//
// Supported paths:
//
//	notifications
//	ignore_apps
//	rescan_interval
//	throttle.move_resize_per_second
//	throttle.burst
//	log_level
//	ipc.enabled
//	metrics.enabled
//	metrics.listen
//	history_size
//	prompt_for_trust
func Explain(res *LoadResult, path string) (any, Source, error) {
	if res == nil || res.Config == nil {
		return nil, Source{}, fmt.Errorf("no config loaded")
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, Source{}, fmt.Errorf("path is empty")
	}

	value, err := lookupValue(res.Config, path)
	if err != nil {
		return nil, Source{}, err
	}

	if src, ok := res.Sources[path]; ok {
		return value, src, nil
	}
	return value, Source{Kind: SourceDefault, Name: "defaults"}, nil
}

func lookupValue(cfg *Config, path string) (any, error) {
	switch path {
	case "notifications":
		return cfg.Notifications, nil
	case "ignore_apps":
		return cfg.IgnoreApps, nil
	case "rescan_interval":
		return cfg.RescanInterval.String(), nil
	case "throttle":
		return cfg.Throttle, nil
	case "throttle.move_resize_per_second":
		return cfg.Throttle.MoveResizePerSecond, nil
	case "throttle.burst":
		return cfg.Throttle.Burst, nil
	case "log_level":
		return cfg.LogLevel, nil
	case "ipc", "ipc.enabled":
		return cfg.IPC.Enabled, nil
	case "metrics":
		return cfg.Metrics, nil
	case "metrics.enabled":
		return cfg.Metrics.Enabled, nil
	case "metrics.listen":
		return cfg.Metrics.Listen, nil
	case "history_size":
		return cfg.HistorySize, nil
	case "prompt_for_trust":
		return cfg.PromptForTrust, nil
	default:
		return nil, fmt.Errorf("unknown path %q", path)
	}
}
