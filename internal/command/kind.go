package command

import "fmt"

// Kind identifies a command type.
type Kind int

const (
	KindLayerCreate Kind = iota
	KindLayerRemove
	KindLayerSetSourceRectangle
	KindLayerSetDestinationRectangle
	KindLayerSetPosition
	KindLayerSetDimension
	KindLayerSetOpacity
	KindLayerSetOrientation
	KindLayerSetVisibility
	KindLayerSetChromaKey
	KindLayerSetType
	KindLayerSetRenderOrder
	KindLayerAddSurface
	KindLayerRemoveSurface
	KindLayerAddNotification
	KindLayerRemoveNotification
	KindSurfaceCreate
	KindSurfaceRemove
	KindSurfaceSetNativeContent
	KindSurfaceRemoveNativeContent
	KindSurfaceDamage
	KindSurfaceSetSourceRectangle
	KindSurfaceSetDestinationRectangle
	KindSurfaceSetPosition
	KindSurfaceSetDimension
	KindSurfaceSetOpacity
	KindSurfaceSetOrientation
	KindSurfaceSetVisibility
	KindSurfaceSetChromaKey
	KindSurfaceAddNotification
	KindSurfaceRemoveNotification
	KindScreenSetRenderOrder
	kindCount
)

var kindNames = [kindCount]string{
	KindLayerCreate:                    "layer.create",
	KindLayerRemove:                    "layer.remove",
	KindLayerSetSourceRectangle:        "layer.set_source",
	KindLayerSetDestinationRectangle:   "layer.set_destination",
	KindLayerSetPosition:               "layer.set_position",
	KindLayerSetDimension:              "layer.set_dimension",
	KindLayerSetOpacity:                "layer.set_opacity",
	KindLayerSetOrientation:            "layer.set_orientation",
	KindLayerSetVisibility:             "layer.set_visibility",
	KindLayerSetChromaKey:              "layer.set_chroma_key",
	KindLayerSetType:                   "layer.set_type",
	KindLayerSetRenderOrder:            "layer.set_render_order",
	KindLayerAddSurface:                "layer.add_surface",
	KindLayerRemoveSurface:             "layer.remove_surface",
	KindLayerAddNotification:           "layer.add_notification",
	KindLayerRemoveNotification:        "layer.remove_notification",
	KindSurfaceCreate:                  "surface.create",
	KindSurfaceRemove:                  "surface.remove",
	KindSurfaceSetNativeContent:        "surface.set_content",
	KindSurfaceRemoveNativeContent:     "surface.remove_content",
	KindSurfaceDamage:                  "surface.damage",
	KindSurfaceSetSourceRectangle:      "surface.set_source",
	KindSurfaceSetDestinationRectangle: "surface.set_destination",
	KindSurfaceSetPosition:             "surface.set_position",
	KindSurfaceSetDimension:            "surface.set_dimension",
	KindSurfaceSetOpacity:              "surface.set_opacity",
	KindSurfaceSetOrientation:          "surface.set_orientation",
	KindSurfaceSetVisibility:           "surface.set_visibility",
	KindSurfaceSetChromaKey:            "surface.set_chroma_key",
	KindSurfaceAddNotification:         "surface.add_notification",
	KindSurfaceRemoveNotification:      "surface.remove_notification",
	KindScreenSetRenderOrder:           "screen.set_render_order",
}

func (k Kind) String() string {
	if k >= 0 && k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Kinds returns every command kind.
func Kinds() []Kind {
	out := make([]Kind, kindCount)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

// ParseKind resolves a kind by its String form.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown command %q", s)
}
