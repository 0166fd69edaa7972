// Package scene holds the compositor's object graph: screens, layers and
// surfaces.
//
// All storage is owned by the Scene and indexed by ID. Layers refer to their
// surfaces by ID and surfaces record their containing layer by ID, so no
// object holds a pointer to another and destruction order does not matter.
//
// The Scene has one coarse lock. Structural access only happens through a
// *Tx, which exists only inside Do, so every traversal holds the lock for its
// whole duration. Callers outside the lock use the snapshot methods, which
// copy what they return.
package scene

import (
	"errors"
	"slices"
	"sync"
)

var (
	// ErrNotFound reports an ID that is not in the scene.
	ErrNotFound = errors.New("object not found")
	// ErrAlreadyContained reports a surface that is already on a layer.
	ErrAlreadyContained = errors.New("surface already belongs to a layer")
	// ErrIDInUse reports a requested ID that belongs to another kind of object.
	ErrIDInUse = errors.New("id already used by another object")
)

// IDAllocation selects how IDs are generated when a caller asks for one.
type IDAllocation int

const (
	// AllocateLowestFree picks the smallest unused ID.
	AllocateLowestFree IDAllocation = iota
	// AllocateMonotonic never hands out the same generated ID twice.
	AllocateMonotonic
)

// firstGeneratedID is where generated IDs start. Zero stays available for
// clients that assign IDs themselves.
const firstGeneratedID ID = 1

// Option configures a Scene.
type Option func(*Scene)

// WithIDAllocation sets the ID generation strategy.
func WithIDAllocation(a IDAllocation) Option {
	return func(s *Scene) { s.allocation = a }
}

// Scene is the registry of every layer, surface and screen of the process.
type Scene struct {
	mu         sync.Mutex
	layers     map[ID]*Layer
	surfaces   map[ID]*Surface
	screens    []*Screen
	allocation IDAllocation
	nextID     ID
}

// New creates a scene with the given screens.
func New(screens []ScreenConfig, opts ...Option) *Scene {
	s := &Scene{
		layers:   make(map[ID]*Layer),
		surfaces: make(map[ID]*Surface),
		nextID:   firstGeneratedID,
	}
	for _, cfg := range screens {
		s.screens = append(s.screens, &Screen{
			id:     cfg.ID,
			name:   cfg.Name,
			width:  cfg.Width,
			height: cfg.Height,
		})
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tx is exclusive access to the scene. It is only valid inside the Do call
// that produced it, and objects obtained from it must not be kept after Do
// returns.
type Tx struct {
	s *Scene
}

// Do runs fn with the scene locked. The lock is not reentrant: fn must not
// call Do or any snapshot method of the same scene.
func (s *Scene) Do(fn func(tx *Tx)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&Tx{s: s})
}

func (tx *Tx) idUsed(id ID) bool {
	if _, ok := tx.s.layers[id]; ok {
		return true
	}
	_, ok := tx.s.surfaces[id]
	return ok
}

func (tx *Tx) generateID() ID {
	s := tx.s
	switch s.allocation {
	case AllocateMonotonic:
		for tx.idUsed(s.nextID) || s.nextID == InvalidID {
			s.nextID++
		}
		id := s.nextID
		s.nextID++
		return id
	default:
		id := firstGeneratedID
		for tx.idUsed(id) {
			id++
		}
		return id
	}
}

// CreateLayer creates a layer with the given ID, or a generated one when id
// is InvalidID. Creating an ID that already names a layer returns that layer
// unchanged. It returns nil when the ID belongs to a surface.
func (tx *Tx) CreateLayer(id ID, creatorPID int) *Layer {
	if id == InvalidID {
		id = tx.generateID()
	}
	if l, ok := tx.s.layers[id]; ok {
		return l
	}
	if _, ok := tx.s.surfaces[id]; ok {
		return nil
	}
	l := newLayer(id, creatorPID)
	tx.s.layers[id] = l
	return l
}

// CreateSurface mirrors CreateLayer for surfaces.
func (tx *Tx) CreateSurface(id ID, creatorPID int) *Surface {
	if id == InvalidID {
		id = tx.generateID()
	}
	if s, ok := tx.s.surfaces[id]; ok {
		return s
	}
	if _, ok := tx.s.layers[id]; ok {
		return nil
	}
	s := newSurface(id, creatorPID)
	tx.s.surfaces[id] = s
	return s
}

// Layer returns nil when id is not a layer.
func (tx *Tx) Layer(id ID) *Layer { return tx.s.layers[id] }

// Surface returns nil when id is not a surface.
func (tx *Tx) Surface(id ID) *Surface { return tx.s.surfaces[id] }

// Screen returns nil when id is not a screen.
func (tx *Tx) Screen(id ID) *Screen {
	for _, sc := range tx.s.screens {
		if sc.id == id {
			return sc
		}
	}
	return nil
}

// Screens returns every screen in configuration order.
func (tx *Tx) Screens() []*Screen { return slices.Clone(tx.s.screens) }

// RemoveLayer detaches every surface of l, takes l out of every render
// order and deletes it. It reports whether l was in any render order, in
// which case the caller owes the affected screens a redraw.
func (tx *Tx) RemoveLayer(l *Layer) bool {
	if l == nil || tx.s.layers[l.id] != l {
		return false
	}
	for _, sid := range l.surfaces {
		if s := tx.s.surfaces[sid]; s != nil {
			s.layerID = InvalidID
		}
	}
	l.surfaces = nil

	wasRendered := false
	for _, sc := range tx.s.screens {
		if i := slices.Index(sc.renderOrder, l.id); i >= 0 {
			sc.renderOrder = slices.Delete(sc.renderOrder, i, i+1)
			sc.ForceComposition()
			wasRendered = true
		}
	}
	delete(tx.s.layers, l.id)
	return wasRendered
}

// RemoveSurface detaches s from its layer and deletes it. It reports whether
// the surface was in the scene.
func (tx *Tx) RemoveSurface(s *Surface) bool {
	if s == nil || tx.s.surfaces[s.id] != s {
		return false
	}
	if l := tx.s.layers[s.layerID]; l != nil {
		l.RemoveSurface(s)
	}
	s.layerID = InvalidID
	delete(tx.s.surfaces, s.id)
	return true
}

// RemoveAllSurfaces detaches every surface of l. It reports false when l
// was already empty.
func (tx *Tx) RemoveAllSurfaces(l *Layer) bool {
	if l == nil || len(l.surfaces) == 0 {
		return false
	}
	for _, sid := range l.surfaces {
		if s := tx.s.surfaces[sid]; s != nil {
			s.layerID = InvalidID
		}
	}
	l.surfaces = nil
	return l.markChanged()
}

// LayerSurfaces resolves the surfaces of l, back to front.
func (tx *Tx) LayerSurfaces(l *Layer) []*Surface {
	if l == nil {
		return nil
	}
	out := make([]*Surface, 0, len(l.surfaces))
	for _, sid := range l.surfaces {
		if s := tx.s.surfaces[sid]; s != nil {
			out = append(out, s)
		}
	}
	return out
}

// SetRenderOrder replaces the render order of sc. Layers that drop out of
// it no longer record sc as their screen.
func (tx *Tx) SetRenderOrder(sc *Screen, layers []*Layer) {
	for _, id := range sc.renderOrder {
		if l := tx.s.layers[id]; l != nil && l.screenID == sc.id {
			l.screenID = InvalidID
		}
	}
	sc.renderOrder = sc.renderOrder[:0]
	for _, l := range layers {
		sc.renderOrder = append(sc.renderOrder, l.id)
		l.screenID = sc.id
	}
}

// RenderOrderLayers resolves the render order of sc, back to front.
func (tx *Tx) RenderOrderLayers(sc *Screen) []*Layer {
	out := make([]*Layer, 0, len(sc.renderOrder))
	for _, id := range sc.renderOrder {
		if l := tx.s.layers[id]; l != nil {
			out = append(out, l)
		}
	}
	return out
}

// IsLayerInCurrentRenderOrder reports whether any screen composites id.
func (tx *Tx) IsLayerInCurrentRenderOrder(id ID) bool {
	for _, sc := range tx.s.screens {
		if slices.Contains(sc.renderOrder, id) {
			return true
		}
	}
	return false
}

// LayerIDs returns every layer ID in ascending order.
func (tx *Tx) LayerIDs() []ID { return sortedKeys(tx.s.layers) }

// SurfaceIDs returns every surface ID in ascending order.
func (tx *Tx) SurfaceIDs() []ID { return sortedKeys(tx.s.surfaces) }

// LayerIDsOfScreen returns the render order of a screen. ok is false for an
// unknown screen.
func (tx *Tx) LayerIDsOfScreen(screenID ID) (ids []ID, ok bool) {
	sc := tx.Screen(screenID)
	if sc == nil {
		return nil, false
	}
	return sc.RenderOrder(), true
}

// AllLayers returns every layer ordered by ID.
func (tx *Tx) AllLayers() []*Layer {
	out := make([]*Layer, 0, len(tx.s.layers))
	for _, id := range tx.LayerIDs() {
		out = append(out, tx.s.layers[id])
	}
	return out
}

// AllSurfaces returns every surface ordered by ID.
func (tx *Tx) AllSurfaces() []*Surface {
	out := make([]*Surface, 0, len(tx.s.surfaces))
	for _, id := range tx.SurfaceIDs() {
		out = append(out, tx.s.surfaces[id])
	}
	return out
}

func sortedKeys[V any](m map[ID]V) []ID {
	ids := make([]ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
