package compose

import (
	"fmt"
	"strings"

	"github.com/1broseidon/ivicomp/internal/geometry"
)

// OptimizationMode controls an optional rendering shortcut.
type OptimizationMode int

const (
	// Heuristic uses the shortcut when it is expected to pay off.
	Heuristic OptimizationMode = iota
	// ForceOn uses the shortcut whenever it is legal.
	ForceOn
	// ForceOff never uses the shortcut.
	ForceOff
	// Toggle alternates every frame, for debugging visual differences.
	Toggle
)

var modeNames = map[OptimizationMode]string{
	Heuristic: "heuristic",
	ForceOn:   "force_on",
	ForceOff:  "force_off",
	Toggle:    "toggle",
}

func (m OptimizationMode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("OptimizationMode(%d)", int(m))
}

// ParseOptimizationMode resolves a mode name.
func ParseOptimizationMode(s string) (OptimizationMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Heuristic, nil
	}
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return Heuristic, fmt.Errorf("invalid optimization mode %q: must be heuristic, force_on, force_off, or toggle", s)
}

// decide applies the mode to a heuristic verdict. frame drives Toggle.
func (m OptimizationMode) decide(heuristic bool, frame uint64) bool {
	switch m {
	case ForceOn:
		return true
	case ForceOff:
		return false
	case Toggle:
		return frame%2 == 0
	default:
		return heuristic
	}
}

// canMultitexture reports whether the items may be combined into one draw.
// Rotated content and chroma keys need per-surface programs.
func canMultitexture(items []*Item) bool {
	for _, it := range items {
		if it.Orientation != 0 || it.ChromaKey.Enabled {
			return false
		}
	}
	return true
}

// coverageRatio returns how much of screen the rects cover, in [0, 1].
func coverageRatio(screen geometry.Rect, rects []geometry.Rect) float64 {
	if screen.Empty() || len(rects) == 0 {
		return 0
	}
	covered := 0
	for _, r := range ComputeRegions(screen, rects, false) {
		covered += r.Rect.Area()
	}
	return float64(covered) / float64(screen.Area())
}
