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
		return fmt.Sprintf("%s: %s: %v", e.Source.Position(), e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// BuildEffectiveConfig applies raw over the defaults.
func BuildEffectiveConfig(raw RawConfig) *Config {
	cfg := DefaultConfig()

	if raw.LogLevel != nil {
		cfg.LogLevel = *raw.LogLevel
	}
	if raw.SocketPath != nil {
		cfg.SocketPath = *raw.SocketPath
	}
	if raw.DisplaySource != nil {
		cfg.DisplaySource = *raw.DisplaySource
	}
	if raw.Screens != nil {
		cfg.Screens = append([]ScreenConfig(nil), raw.Screens...)
	}
	if raw.Output != nil {
		cfg.Output = *raw.Output
	}
	if raw.FramebufferDevice != nil {
		cfg.FramebufferDevice = *raw.FramebufferDevice
	}
	if r := raw.Render; r != nil {
		cfg.Render.FPS = derefInt(r.FPS, cfg.Render.FPS)
		cfg.Render.BatchLimit = derefInt(r.BatchLimit, cfg.Render.BatchLimit)
		if r.Multitexture != nil {
			cfg.Render.Multitexture = *r.Multitexture
		}
		if r.SkipClear != nil {
			cfg.Render.SkipClear = *r.SkipClear
		}
		if r.SkipClearThreshold != nil {
			cfg.Render.SkipClearThreshold = *r.SkipClearThreshold
		}
		if r.Background != nil {
			cfg.Render.Background = *r.Background
		}
	}
	if raw.IDAllocation != nil {
		cfg.IDAllocation = *raw.IDAllocation
	}
	cfg.ReconcileIntervalSeconds = derefInt(raw.ReconcileIntervalSeconds, cfg.ReconcileIntervalSeconds)
	return cfg
}

func derefInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
