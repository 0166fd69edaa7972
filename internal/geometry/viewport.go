// Package geometry maps surface rectangles through the layer viewport.
//
// A surface is placed on its layer by its destination rectangle, expressed in
// the layer's coordinate space. The layer exposes only its source rectangle of
// that space, and scales it onto the screen at its own destination rectangle.
// Per surface and per frame the functions here are applied in a fixed order:
//
//	ApplyLayerSource -> ApplyLayerDestination -> TextureCoordinates
//
// Swapping the steps produces wrong cropping for scaled layers.
package geometry

// IsFullyCropped reports whether a surface placed at surfaceDestination lies
// completely outside the layer's visible source window. Intervals are
// half-open, so a surface that only touches an edge of the window is cropped.
func IsFullyCropped(surfaceDestination, layerSource Rect) bool {
	switch {
	case surfaceDestination.X >= layerSource.Right():
		return true
	case surfaceDestination.Y >= layerSource.Bottom():
		return true
	case surfaceDestination.Right() <= layerSource.X:
		return true
	case surfaceDestination.Bottom() <= layerSource.Y:
		return true
	}
	return surfaceDestination.Empty() || layerSource.Empty()
}

// ApplyLayerSource clips surfaceDestination to the layer source window and
// moves it into window-relative coordinates. Whatever was clipped from an edge
// of the destination is clipped from the same edge of surfaceSource, scaled by
// the surface's source/destination ratio, so the visible part of the content
// keeps its scale.
func ApplyLayerSource(layerSource FRect, surfaceSource, surfaceDestination *FRect) {
	inverseScaleX := ratio(surfaceSource.Width, surfaceDestination.Width)
	inverseScaleY := ratio(surfaceSource.Height, surfaceDestination.Height)

	// left
	crop := layerSource.X - surfaceDestination.X
	if crop > 0 {
		surfaceDestination.X = 0
		surfaceDestination.Width -= crop
		surfaceSource.X += crop * inverseScaleX
		surfaceSource.Width -= crop * inverseScaleX
	} else {
		surfaceDestination.X -= layerSource.X
	}

	// right
	crop = surfaceDestination.X + surfaceDestination.Width - layerSource.Width
	if crop > 0 {
		surfaceDestination.Width -= crop
		surfaceSource.Width -= crop * inverseScaleX
	}

	// top
	crop = layerSource.Y - surfaceDestination.Y
	if crop > 0 {
		surfaceDestination.Y = 0
		surfaceDestination.Height -= crop
		surfaceSource.Y += crop * inverseScaleY
		surfaceSource.Height -= crop * inverseScaleY
	} else {
		surfaceDestination.Y -= layerSource.Y
	}

	// bottom
	crop = surfaceDestination.Y + surfaceDestination.Height - layerSource.Height
	if crop > 0 {
		surfaceDestination.Height -= crop
		surfaceSource.Height -= crop * inverseScaleY
	}
}

// ApplyLayerDestination scales a rectangle expressed relative to the layer
// source window onto the screen, by layerDestination.size / layerSource.size,
// and then offsets it by the layer destination origin.
func ApplyLayerDestination(layerDestination, layerSource FRect, regionToScale *FRect) {
	scaleX := ratio(layerDestination.Width, layerSource.Width)
	scaleY := ratio(layerDestination.Height, layerSource.Height)

	regionToScale.X = regionToScale.X*scaleX + layerDestination.X
	regionToScale.Y = regionToScale.Y*scaleY + layerDestination.Y
	regionToScale.Width *= scaleX
	regionToScale.Height *= scaleY
}

// TextureCoordinates converts a pixel rectangle of a buffer into normalized
// coordinates {u0, v0, u1, v1}. Offsets and extents are divided by the full
// buffer size, not by the size of any cropped window.
func TextureCoordinates(rect FRect, originalWidth, originalHeight float64) [4]float64 {
	if originalWidth <= 0 || originalHeight <= 0 {
		return [4]float64{}
	}
	return [4]float64{
		rect.X / originalWidth,
		rect.Y / originalHeight,
		(rect.X + rect.Width) / originalWidth,
		(rect.Y + rect.Height) / originalHeight,
	}
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
