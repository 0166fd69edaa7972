package scene

import "slices"

// Layer is an ordered, positioned group of surfaces. It refers to its
// surfaces by ID only; the surfaces themselves live in the Scene and record
// their containing layer. Removing a surface from a layer never destroys it.
type Layer struct {
	Object

	layerType    LayerType
	capabilities Capability
	screenID     ID
	surfaces     []ID
}

func newLayer(id ID, creatorPID int) *Layer {
	return &Layer{
		Object:       newObject(id, TypeLayer, creatorPID),
		layerType:    LayerTypeSoftware2D,
		capabilities: CapabilitiesAll,
		screenID:     InvalidID,
	}
}

func (l *Layer) LayerType() LayerType { return l.layerType }

func (l *Layer) Capabilities() Capability { return l.capabilities }

// ContainingScreenID is the screen whose render order last took the layer.
func (l *Layer) ContainingScreenID() ID { return l.screenID }

// SurfaceIDs returns the surfaces of the layer, back to front.
func (l *Layer) SurfaceIDs() []ID { return slices.Clone(l.surfaces) }

func (l *Layer) SurfaceCount() int { return len(l.surfaces) }

func (l *Layer) SetLayerType(t LayerType) bool {
	if l.layerType == t {
		return false
	}
	l.layerType = t
	return l.markChanged()
}

func (l *Layer) SetCapabilities(c Capability) bool {
	if l.capabilities == c {
		return false
	}
	l.capabilities = c
	return true
}

// AddSurface appends s on top of the layer. It fails without changing
// anything when s already belongs to a layer, including this one.
func (l *Layer) AddSurface(s *Surface) bool {
	if s == nil || s.layerID != InvalidID {
		return false
	}
	l.surfaces = append(l.surfaces, s.id)
	s.layerID = l.id
	return l.markChanged()
}

// RemoveSurface detaches s. It is a no-op when s is not on this layer.
func (l *Layer) RemoveSurface(s *Surface) bool {
	if s == nil || s.layerID != l.id {
		return false
	}
	i := slices.Index(l.surfaces, s.id)
	if i < 0 {
		return false
	}
	l.surfaces = slices.Delete(l.surfaces, i, i+1)
	s.layerID = InvalidID
	return l.markChanged()
}

// ContainsSurface reports whether the surface ID is on this layer.
func (l *Layer) ContainsSurface(id ID) bool {
	return slices.Contains(l.surfaces, id)
}
