package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Explain returns the effective value at the given YAML-like path and its source.
//
// Supported paths include:
//
//	log_level
//	socket_path
//	display_source
//	screens
//	screens.<index>.width
//	output
//	framebuffer_device
//	render.fps
//	render.skip_clear_threshold
//	id_allocation
//	reconcile_interval_seconds
func Explain(res *LoadResult, path string) (any, Source, error) {
	if res == nil || res.Config == nil {
		return nil, Source{}, fmt.Errorf("no config loaded")
	}
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
	parts := strings.Split(path, ".")
	leaf := func(v any) (any, error) {
		if len(parts) != 1 {
			return nil, fmt.Errorf("unknown path: %s", path)
		}
		return v, nil
	}

	switch parts[0] {
	case "log_level":
		return leaf(cfg.LogLevel)
	case "socket_path":
		return leaf(cfg.SocketPath)
	case "display_source":
		return leaf(cfg.DisplaySource)
	case "output":
		return leaf(cfg.Output)
	case "framebuffer_device":
		return leaf(cfg.FramebufferDevice)
	case "id_allocation":
		return leaf(cfg.IDAllocation)
	case "reconcile_interval_seconds":
		return leaf(cfg.ReconcileIntervalSeconds)
	case "screens":
		return lookupScreen(cfg.Screens, parts[1:], path)
	case "render":
		if len(parts) == 1 {
			return cfg.Render, nil
		}
		if len(parts) != 2 {
			return nil, fmt.Errorf("unknown path: %s", path)
		}
		switch parts[1] {
		case "fps":
			return cfg.Render.FPS, nil
		case "batch_limit":
			return cfg.Render.BatchLimit, nil
		case "multitexture":
			return cfg.Render.Multitexture, nil
		case "skip_clear":
			return cfg.Render.SkipClear, nil
		case "skip_clear_threshold":
			return cfg.Render.SkipClearThreshold, nil
		case "background":
			return cfg.Render.Background, nil
		}
	}
	return nil, fmt.Errorf("unknown path: %s", path)
}

func lookupScreen(screens []ScreenConfig, parts []string, path string) (any, error) {
	if len(parts) == 0 {
		return screens, nil
	}
	i, err := strconv.Atoi(parts[0])
	if err != nil || i < 0 || i >= len(screens) {
		return nil, fmt.Errorf("unknown path: %s", path)
	}
	s := screens[i]
	if len(parts) == 1 {
		return s, nil
	}
	if len(parts) != 2 {
		return nil, fmt.Errorf("unknown path: %s", path)
	}
	switch parts[1] {
	case "id":
		return s.ID, nil
	case "name":
		return s.Name, nil
	case "width":
		return s.Width, nil
	case "height":
		return s.Height, nil
	}
	return nil, fmt.Errorf("unknown path: %s", path)
}
