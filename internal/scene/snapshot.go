package scene

import "github.com/1broseidon/ivicomp/internal/geometry"

// LayerInfo is a copy of a layer's properties, safe to use without the lock.
type LayerInfo struct {
	ID           ID
	CreatorPID   int
	Opacity      float64
	Orientation  Orientation
	Visible      bool
	Source       geometry.Rect
	Destination  geometry.Rect
	ChromaKey    ChromaKey
	Type         LayerType
	Capabilities Capability
	ScreenID     ID
	Surfaces     []ID
}

// SurfaceInfo is a copy of a surface's properties.
type SurfaceInfo struct {
	ID             ID
	CreatorPID     int
	Opacity        float64
	Orientation    Orientation
	Visible        bool
	Source         geometry.Rect
	Destination    geometry.Rect
	ChromaKey      ChromaKey
	PixelFormat    PixelFormat
	OriginalWidth  int
	OriginalHeight int
	HasContent     bool
	LayerID        ID
	FrameCounter   uint64
	DrawCounter    uint64
	UpdateCounter  uint64
}

// ScreenInfo is a copy of a screen and its render order.
type ScreenInfo struct {
	ID          ID
	Name        string
	Width       int
	Height      int
	RenderOrder []ID
}

// Info copies the layer's properties.
func (l *Layer) Info() LayerInfo {
	return LayerInfo{
		ID:           l.id,
		CreatorPID:   l.creatorPID,
		Opacity:      l.opacity,
		Orientation:  l.orientation,
		Visible:      l.visible,
		Source:       l.source,
		Destination:  l.destination,
		ChromaKey:    l.chromaKey,
		Type:         l.layerType,
		Capabilities: l.capabilities,
		ScreenID:     l.screenID,
		Surfaces:     l.SurfaceIDs(),
	}
}

// Info copies the surface's properties.
func (s *Surface) Info() SurfaceInfo {
	return SurfaceInfo{
		ID:             s.id,
		CreatorPID:     s.creatorPID,
		Opacity:        s.opacity,
		Orientation:    s.orientation,
		Visible:        s.visible,
		Source:         s.source,
		Destination:    s.destination,
		ChromaKey:      s.chromaKey,
		PixelFormat:    s.pixelFormat,
		OriginalWidth:  s.originalWidth,
		OriginalHeight: s.originalHeight,
		HasContent:     s.content != nil,
		LayerID:        s.layerID,
		FrameCounter:   s.frameCounter,
		DrawCounter:    s.drawCounter,
		UpdateCounter:  s.updateCounter,
	}
}

// Info copies the screen.
func (s *Screen) Info() ScreenInfo {
	return ScreenInfo{
		ID:          s.id,
		Name:        s.name,
		Width:       s.width,
		Height:      s.height,
		RenderOrder: s.RenderOrder(),
	}
}

// LayerIDs returns every layer ID in ascending order.
func (s *Scene) LayerIDs() (ids []ID) {
	s.Do(func(tx *Tx) { ids = tx.LayerIDs() })
	return ids
}

// SurfaceIDs returns every surface ID in ascending order.
func (s *Scene) SurfaceIDs() (ids []ID) {
	s.Do(func(tx *Tx) { ids = tx.SurfaceIDs() })
	return ids
}

// LayerIDsOfScreen returns a copy of a screen's render order.
func (s *Scene) LayerIDsOfScreen(screenID ID) (ids []ID, ok bool) {
	s.Do(func(tx *Tx) { ids, ok = tx.LayerIDsOfScreen(screenID) })
	return ids, ok
}

// Layer returns a snapshot of one layer.
func (s *Scene) Layer(id ID) (info LayerInfo, ok bool) {
	s.Do(func(tx *Tx) {
		if l := tx.Layer(id); l != nil {
			info, ok = l.Info(), true
		}
	})
	return info, ok
}

// Surface returns a snapshot of one surface.
func (s *Scene) Surface(id ID) (info SurfaceInfo, ok bool) {
	s.Do(func(tx *Tx) {
		if sf := tx.Surface(id); sf != nil {
			info, ok = sf.Info(), true
		}
	})
	return info, ok
}

// Layers returns snapshots of all layers ordered by ID.
func (s *Scene) Layers() (infos []LayerInfo) {
	s.Do(func(tx *Tx) {
		for _, l := range tx.AllLayers() {
			infos = append(infos, l.Info())
		}
	})
	return infos
}

// Surfaces returns snapshots of all surfaces ordered by ID.
func (s *Scene) Surfaces() (infos []SurfaceInfo) {
	s.Do(func(tx *Tx) {
		for _, sf := range tx.AllSurfaces() {
			infos = append(infos, sf.Info())
		}
	})
	return infos
}

// Screens returns snapshots of all screens.
func (s *Scene) Screens() (infos []ScreenInfo) {
	s.Do(func(tx *Tx) {
		for _, sc := range tx.Screens() {
			infos = append(infos, sc.Info())
		}
	})
	return infos
}

// IsLayerInCurrentRenderOrder reports whether any screen composites id.
func (s *Scene) IsLayerInCurrentRenderOrder(id ID) (in bool) {
	s.Do(func(tx *Tx) { in = tx.IsLayerInCurrentRenderOrder(id) })
	return in
}

// CreatorPIDs returns the distinct creator processes of all objects.
func (s *Scene) CreatorPIDs() []int {
	seen := make(map[int]struct{})
	var pids []int
	s.Do(func(tx *Tx) {
		add := func(pid int) {
			if pid <= 0 {
				return
			}
			if _, ok := seen[pid]; ok {
				return
			}
			seen[pid] = struct{}{}
			pids = append(pids, pid)
		}
		for _, l := range tx.s.layers {
			add(l.creatorPID)
		}
		for _, sf := range tx.s.surfaces {
			add(sf.creatorPID)
		}
	})
	return pids
}
