package scene

// Surface is a leaf of the scene backed by a client supplied pixel buffer.
type Surface struct {
	Object

	pixelFormat    PixelFormat
	originalWidth  int
	originalHeight int
	content        any
	damaged        bool
	layerID        ID

	frameCounter  uint64
	drawCounter   uint64
	updateCounter uint64

	// Platform belongs to the active graphics backend, which keeps its
	// per-surface binding state here. The scene never reads it.
	Platform any
}

func newSurface(id ID, creatorPID int) *Surface {
	return &Surface{
		Object:  newObject(id, TypeSurface, creatorPID),
		layerID: InvalidID,
	}
}

func (s *Surface) PixelFormat() PixelFormat { return s.pixelFormat }

// OriginalSourceWidth is the width of the producer's buffer before cropping.
func (s *Surface) OriginalSourceWidth() int { return s.originalWidth }

// OriginalSourceHeight is the height of the producer's buffer before cropping.
func (s *Surface) OriginalSourceHeight() int { return s.originalHeight }

// ContainingLayerID returns InvalidID while the surface is not on a layer.
func (s *Surface) ContainingLayerID() ID { return s.layerID }

// NativeContent returns the opaque content handle, or nil.
func (s *Surface) NativeContent() any { return s.content }

// HasNativeContent is independent of visibility: a surface can be visible
// with nothing to show, or hidden with content attached.
func (s *Surface) HasNativeContent() bool { return s.content != nil }

func (s *Surface) Damaged() bool { return s.damaged }

func (s *Surface) FrameCounter() uint64  { return s.frameCounter }
func (s *Surface) DrawCounter() uint64   { return s.drawCounter }
func (s *Surface) UpdateCounter() uint64 { return s.updateCounter }

// SetNativeContent attaches or replaces the surface content. The same
// surface may be handed between content producers.
func (s *Surface) SetNativeContent(content any, width, height int, format PixelFormat) bool {
	if content == nil {
		return s.RemoveNativeContent()
	}
	s.content = content
	s.originalWidth = width
	s.originalHeight = height
	s.pixelFormat = format
	s.damaged = true
	s.updateCounter++
	return s.markChanged()
}

// RemoveNativeContent detaches the content. It reports false when there was
// none.
func (s *Surface) RemoveNativeContent() bool {
	if s.content == nil {
		return false
	}
	s.content = nil
	s.damaged = false
	return s.markChanged()
}

// Damage records that the content pixels changed since the last frame.
func (s *Surface) Damage() {
	s.damaged = true
	s.updateCounter++
}

// ClearDamage is called by the compositor after the surface was drawn.
func (s *Surface) ClearDamage() { s.damaged = false }

// CountDraw records one draw call for the surface. A draw that consumed new
// content also counts as a frame.
func (s *Surface) CountDraw(newFrame bool) {
	s.drawCounter++
	if newFrame {
		s.frameCounter++
	}
}

// Renderable reports whether the surface contributes pixels: visible,
// not fully transparent, with content attached.
func (s *Surface) Renderable() bool {
	return s.visible && s.opacity > 0 && s.content != nil
}

// Dirty reports whether the surface needs to be recomposited.
func (s *Surface) Dirty() bool {
	if s.renderPropertyChanged {
		return true
	}
	return s.damaged && s.Renderable()
}
