package config

import (
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/1broseidon/ivicomp/internal/compose"
	"github.com/1broseidon/ivicomp/internal/scene"
	"gopkg.in/yaml.v3"
)

// DisplaySource selects where the screen list comes from.
type DisplaySource string

const (
	DisplaySourceStatic DisplaySource = "static" // Screens listed in the config.
	DisplaySourceX11    DisplaySource = "x11"    // One screen per RandR monitor.
)

// OutputKind selects where composited frames are presented.
type OutputKind string

const (
	OutputHeadless    OutputKind = "headless"
	OutputFramebuffer OutputKind = "framebuffer"
	OutputX11         OutputKind = "x11"
)

// IDAllocation names how the scene generates object IDs.
type IDAllocation string

const (
	IDAllocationLowestFree IDAllocation = "lowest_free"
	IDAllocationMonotonic  IDAllocation = "monotonic"
)

const (
	DefaultFPS                = 60
	DefaultScreenWidth        = 800
	DefaultScreenHeight       = 480
	DefaultBackground         = "#000000"
	DefaultFramebufferDevice  = "/dev/fb0"
	DefaultReconcileInterval  = 10
	DefaultSkipClearThreshold = 0.9
)

// ScreenConfig describes one statically configured screen.
type ScreenConfig struct {
	ID     uint32 `yaml:"id"`
	Name   string `yaml:"name,omitempty"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// RenderConfig tunes the render thread and composition engine.
type RenderConfig struct {
	FPS                int     `yaml:"fps"`
	BatchLimit         int     `yaml:"batch_limit"`          // Most surfaces per multi-texture draw (2-4)
	Multitexture       string  `yaml:"multitexture"`         // heuristic, force_on, force_off, toggle
	SkipClear          string  `yaml:"skip_clear"`           // heuristic, force_on, force_off, toggle
	SkipClearThreshold float64 `yaml:"skip_clear_threshold"` // Coverage ratio (0-1) above which clearing is skipped
	Background         string  `yaml:"background"`           // #rrggbb
}

// Config represents the compositor configuration.
type Config struct {
	LogLevel                 string         `yaml:"log_level"`
	SocketPath               string         `yaml:"socket_path,omitempty"`
	DisplaySource            DisplaySource  `yaml:"display_source"`
	Screens                  []ScreenConfig `yaml:"screens"`
	Output                   OutputKind     `yaml:"output"`
	FramebufferDevice        string         `yaml:"framebuffer_device"`
	Render                   RenderConfig   `yaml:"render"`
	IDAllocation             IDAllocation   `yaml:"id_allocation"`
	ReconcileIntervalSeconds int            `yaml:"reconcile_interval_seconds"` // 0 disables reconciliation
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:      "info",
		DisplaySource: DisplaySourceStatic,
		Screens: []ScreenConfig{
			{ID: 0, Name: "main", Width: DefaultScreenWidth, Height: DefaultScreenHeight},
		},
		Output:            OutputHeadless,
		FramebufferDevice: DefaultFramebufferDevice,
		Render: RenderConfig{
			FPS:                DefaultFPS,
			BatchLimit:         compose.MaxBatch,
			Multitexture:       compose.Heuristic.String(),
			SkipClear:          compose.Heuristic.String(),
			SkipClearThreshold: DefaultSkipClearThreshold,
			Background:         DefaultBackground,
		},
		IDAllocation:             IDAllocationLowestFree,
		ReconcileIntervalSeconds: DefaultReconcileInterval,
	}
}

// Save writes the configuration to the standard location.
//
// Note: this marshals the effective config and will not preserve comments or
// include structure from the original YAML.
func (c *Config) Save() error {
	path, err := DefaultConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the configuration to path.
func (c *Config) SaveTo(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := parseLogLevel(c.LogLevel); err != nil {
		return &ValidationError{Path: "log_level", Err: err}
	}

	switch c.DisplaySource {
	case DisplaySourceStatic:
		if len(c.Screens) == 0 {
			return &ValidationError{Path: "screens", Err: fmt.Errorf("at least one screen is required for display_source %q", c.DisplaySource)}
		}
	case DisplaySourceX11:
	default:
		return &ValidationError{Path: "display_source", Err: fmt.Errorf("must be one of static, x11 (got %q)", c.DisplaySource)}
	}

	seen := make(map[uint32]struct{}, len(c.Screens))
	for i, s := range c.Screens {
		path := fmt.Sprintf("screens.%d", i)
		if _, dup := seen[s.ID]; dup {
			return &ValidationError{Path: path + ".id", Err: fmt.Errorf("duplicate screen id %d", s.ID)}
		}
		seen[s.ID] = struct{}{}
		if verr := validateScreen(s, path); verr != nil {
			return verr
		}
	}

	switch c.Output {
	case OutputHeadless, OutputX11:
	case OutputFramebuffer:
		if strings.TrimSpace(c.FramebufferDevice) == "" {
			return &ValidationError{Path: "framebuffer_device", Err: fmt.Errorf("must be set for output %q", c.Output)}
		}
	default:
		return &ValidationError{Path: "output", Err: fmt.Errorf("must be one of headless, framebuffer, x11 (got %q)", c.Output)}
	}

	if c.Render.FPS < 1 || c.Render.FPS > 240 {
		return &ValidationError{Path: "render.fps", Err: fmt.Errorf("must be between 1 and 240 (got %d)", c.Render.FPS)}
	}
	if c.Render.BatchLimit < 2 || c.Render.BatchLimit > compose.MaxBatch {
		return &ValidationError{Path: "render.batch_limit", Err: fmt.Errorf("must be between 2 and %d (got %d)", compose.MaxBatch, c.Render.BatchLimit)}
	}
	if _, err := compose.ParseOptimizationMode(c.Render.Multitexture); err != nil {
		return &ValidationError{Path: "render.multitexture", Err: err}
	}
	if _, err := compose.ParseOptimizationMode(c.Render.SkipClear); err != nil {
		return &ValidationError{Path: "render.skip_clear", Err: err}
	}
	if c.Render.SkipClearThreshold < 0 || c.Render.SkipClearThreshold > 1 {
		return &ValidationError{Path: "render.skip_clear_threshold", Err: fmt.Errorf("must be between 0 and 1 (got %g)", c.Render.SkipClearThreshold)}
	}
	if _, err := ParseColor(c.Render.Background); err != nil {
		return &ValidationError{Path: "render.background", Err: err}
	}

	switch c.IDAllocation {
	case IDAllocationLowestFree, IDAllocationMonotonic:
	default:
		return &ValidationError{Path: "id_allocation", Err: fmt.Errorf("must be one of lowest_free, monotonic (got %q)", c.IDAllocation)}
	}
	if c.ReconcileIntervalSeconds < 0 {
		return &ValidationError{Path: "reconcile_interval_seconds", Err: fmt.Errorf("must be >= 0 (got %d)", c.ReconcileIntervalSeconds)}
	}
	return nil
}

// validateScreen checks one screen entry found at path.
func validateScreen(s ScreenConfig, path string) *ValidationError {
	if scene.ID(s.ID) == scene.InvalidID {
		return &ValidationError{Path: path + ".id", Err: fmt.Errorf("id %d is reserved", s.ID)}
	}
	if s.Width <= 0 || s.Height <= 0 {
		return &ValidationError{Path: path, Err: fmt.Errorf("width and height must be > 0 (got %dx%d)", s.Width, s.Height)}
	}
	return nil
}

// SceneScreens converts the static screen list.
func (c *Config) SceneScreens() []scene.ScreenConfig {
	out := make([]scene.ScreenConfig, 0, len(c.Screens))
	for _, s := range c.Screens {
		name := s.Name
		if name == "" {
			name = fmt.Sprintf("screen-%d", s.ID)
		}
		out = append(out, scene.ScreenConfig{ID: scene.ID(s.ID), Name: name, Width: s.Width, Height: s.Height})
	}
	return out
}

// ComposeOptions returns the engine options of the render section.
func (c *Config) ComposeOptions() (compose.Options, error) {
	multi, err := compose.ParseOptimizationMode(c.Render.Multitexture)
	if err != nil {
		return compose.Options{}, err
	}
	skip, err := compose.ParseOptimizationMode(c.Render.SkipClear)
	if err != nil {
		return compose.Options{}, err
	}
	return compose.Options{
		BatchLimit:         c.Render.BatchLimit,
		Multitexture:       multi,
		SkipClear:          skip,
		SkipClearThreshold: c.Render.SkipClearThreshold,
	}, nil
}

// SceneOptions returns the scene options implied by the config.
func (c *Config) SceneOptions() []scene.Option {
	if c.IDAllocation == IDAllocationMonotonic {
		return []scene.Option{scene.WithIDAllocation(scene.AllocateMonotonic)}
	}
	return []scene.Option{scene.WithIDAllocation(scene.AllocateLowestFree)}
}

// BackgroundColor returns the parsed render background, black if invalid.
func (c *Config) BackgroundColor() color.RGBA {
	bg, err := ParseColor(c.Render.Background)
	if err != nil {
		return color.RGBA{A: 0xff}
	}
	return bg
}

// SlogLevel returns the configured log level, info if invalid.
func (c *Config) SlogLevel() slog.Level {
	lvl, err := parseLogLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// ReconcileInterval returns the reconciler period, zero when disabled.
func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileIntervalSeconds) * time.Second
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("must be one of debug, info, warning, error (got %q)", s)
	}
}

// ParseColor parses an opaque "#rrggbb" color.
func ParseColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q: want #rrggbb", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
