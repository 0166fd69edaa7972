package config

import (
	"fmt"

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

type RawRenderConfig struct {
	FPS                *int     `yaml:"fps"`
	BatchLimit         *int     `yaml:"batch_limit"`
	Multitexture       *string  `yaml:"multitexture"`
	SkipClear          *string  `yaml:"skip_clear"`
	SkipClearThreshold *float64 `yaml:"skip_clear_threshold"`
	Background         *string  `yaml:"background"`
}

// RawConfig is one config file as written: unset fields stay nil so files
// can be layered.
type RawConfig struct {
	Include                  IncludeList      `yaml:"include"`
	LogLevel                 *string          `yaml:"log_level"`
	SocketPath               *string          `yaml:"socket_path"`
	DisplaySource            *DisplaySource   `yaml:"display_source"`
	Screens                  []ScreenConfig   `yaml:"screens"`
	ReplaceScreens           bool             `yaml:"replace_screens"`
	Output                   *OutputKind      `yaml:"output"`
	FramebufferDevice        *string          `yaml:"framebuffer_device"`
	Render                   *RawRenderConfig `yaml:"render"`
	IDAllocation             *IDAllocation    `yaml:"id_allocation"`
	ReconcileIntervalSeconds *int             `yaml:"reconcile_interval_seconds"`
}

// merge overlays the fields set in overlay. Screens are left alone: the
// loader merges them by id.
func (c RawConfig) merge(overlay RawConfig) RawConfig {
	out := c

	if overlay.LogLevel != nil {
		out.LogLevel = overlay.LogLevel
	}
	if overlay.SocketPath != nil {
		out.SocketPath = overlay.SocketPath
	}
	if overlay.DisplaySource != nil {
		out.DisplaySource = overlay.DisplaySource
	}
	if overlay.Output != nil {
		out.Output = overlay.Output
	}
	if overlay.FramebufferDevice != nil {
		out.FramebufferDevice = overlay.FramebufferDevice
	}
	if overlay.Render != nil {
		var base RawRenderConfig
		if out.Render != nil {
			base = *out.Render
		}
		merged := mergeRawRender(base, *overlay.Render)
		out.Render = &merged
	}
	if overlay.IDAllocation != nil {
		out.IDAllocation = overlay.IDAllocation
	}
	if overlay.ReconcileIntervalSeconds != nil {
		out.ReconcileIntervalSeconds = overlay.ReconcileIntervalSeconds
	}
	return out
}

func mergeRawRender(base RawRenderConfig, overlay RawRenderConfig) RawRenderConfig {
	out := base
	if overlay.FPS != nil {
		out.FPS = overlay.FPS
	}
	if overlay.BatchLimit != nil {
		out.BatchLimit = overlay.BatchLimit
	}
	if overlay.Multitexture != nil {
		out.Multitexture = overlay.Multitexture
	}
	if overlay.SkipClear != nil {
		out.SkipClear = overlay.SkipClear
	}
	if overlay.SkipClearThreshold != nil {
		out.SkipClearThreshold = overlay.SkipClearThreshold
	}
	if overlay.Background != nil {
		out.Background = overlay.Background
	}
	return out
}
