package geometry

import "fmt"

// Rect describes a rectangular region in pixel coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Right returns the first column past the rectangle.
func (r Rect) Right() int { return r.X + r.Width }

// Bottom returns the first row past the rectangle.
func (r Rect) Bottom() int { return r.Y + r.Height }

// Empty reports whether the rectangle covers no pixels.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Area returns the number of pixels covered by the rectangle.
func (r Rect) Area() int {
	if r.Empty() {
		return 0
	}
	return r.Width * r.Height
}

// Intersect returns the overlap of r and o. The result is the zero Rect
// when they do not overlap.
func (r Rect) Intersect(o Rect) Rect {
	x0 := max(r.X, o.X)
	y0 := max(r.Y, o.Y)
	x1 := min(r.Right(), o.Right())
	y1 := min(r.Bottom(), o.Bottom())
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Float converts r to fractional coordinates.
func (r Rect) Float() FRect {
	return FRect{X: float64(r.X), Y: float64(r.Y), Width: float64(r.Width), Height: float64(r.Height)}
}

func (r Rect) String() string {
	return fmt.Sprintf("%d,%d %dx%d", r.X, r.Y, r.Width, r.Height)
}

// FRect is a rectangle with fractional coordinates. Surface rectangles are
// carried as FRect while layer cropping and scaling are applied so that
// repeated transforms do not accumulate rounding error.
type FRect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Round snaps r to the pixel grid. Edges are rounded independently so that
// two rectangles sharing an edge still share it after rounding.
func (r FRect) Round() Rect {
	x0 := roundHalfUp(r.X)
	y0 := roundHalfUp(r.Y)
	x1 := roundHalfUp(r.X + r.Width)
	y1 := roundHalfUp(r.Y + r.Height)
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

func (r FRect) String() string {
	return fmt.Sprintf("%.2f,%.2f %.2fx%.2f", r.X, r.Y, r.Width, r.Height)
}

func roundHalfUp(v float64) int {
	if v < 0 {
		return -int(-v + 0.5)
	}
	return int(v + 0.5)
}
