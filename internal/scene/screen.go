package scene

import (
	"slices"

	"github.com/1broseidon/ivicomp/internal/geometry"
)

// ScreenConfig describes an output when the scene is created.
type ScreenConfig struct {
	ID     ID
	Name   string
	Width  int
	Height int
}

// Screen is one output and its back-to-front layer render order. Layers that
// are in no screen's render order are never composited.
type Screen struct {
	id          ID
	name        string
	width       int
	height      int
	renderOrder []ID
	forced      bool
}

func (s *Screen) ID() ID       { return s.id }
func (s *Screen) Name() string { return s.name }
func (s *Screen) Width() int   { return s.width }
func (s *Screen) Height() int  { return s.height }

// Bounds returns the screen rectangle with its origin at 0,0.
func (s *Screen) Bounds() geometry.Rect {
	return geometry.Rect{Width: s.width, Height: s.height}
}

// RenderOrder returns the layer IDs composited on this screen, back to front.
func (s *Screen) RenderOrder() []ID { return slices.Clone(s.renderOrder) }

// ForceComposition makes the next frame of this screen redraw everything
// regardless of per-object dirty flags.
func (s *Screen) ForceComposition() { s.forced = true }

// TakeForcedComposition reports and clears a pending forced composition.
func (s *Screen) TakeForcedComposition() bool {
	forced := s.forced
	s.forced = false
	return forced
}
