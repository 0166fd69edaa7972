// Package platform discovers the displays the compositor drives.
package platform

import (
	"fmt"
	"sort"

	"github.com/1broseidon/ivicomp/internal/geometry"
	"github.com/1broseidon/ivicomp/internal/scene"
)

// Display describes a physical display and where it sits on the desktop.
type Display struct {
	ID      scene.ID
	Name    string
	Bounds  geometry.Rect
	Primary bool
}

// Backend abstracts display discovery across platforms.
type Backend interface {
	Displays() ([]Display, error)
}

// StaticBackend reports a fixed display list, typically from the config
// file.
type StaticBackend struct {
	displays []Display
}

var _ Backend = (*StaticBackend)(nil)

// NewStaticBackend lays screens out left to right.
func NewStaticBackend(screens []scene.ScreenConfig) *StaticBackend {
	b := &StaticBackend{displays: make([]Display, 0, len(screens))}
	x := 0
	for i, s := range screens {
		b.displays = append(b.displays, Display{
			ID:      s.ID,
			Name:    s.Name,
			Bounds:  geometry.Rect{X: x, Width: s.Width, Height: s.Height},
			Primary: i == 0,
		})
		x += s.Width
	}
	return b
}

func (b *StaticBackend) Displays() ([]Display, error) {
	if len(b.displays) == 0 {
		return nil, fmt.Errorf("no screens configured")
	}
	return append([]Display(nil), b.displays...), nil
}

// Screens converts displays into scene screens ordered by ID.
func Screens(displays []Display) []scene.ScreenConfig {
	screens := make([]scene.ScreenConfig, 0, len(displays))
	for _, d := range displays {
		screens = append(screens, scene.ScreenConfig{
			ID:     d.ID,
			Name:   d.Name,
			Width:  d.Bounds.Width,
			Height: d.Bounds.Height,
		})
	}
	sort.Slice(screens, func(i, j int) bool { return screens[i].ID < screens[j].ID })
	return screens
}
