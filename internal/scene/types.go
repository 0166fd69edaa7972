package scene

import (
	"fmt"
	"math"
	"strings"
)

// ID identifies a layer, surface or screen. Layer and surface IDs share one
// namespace, so no layer ever has the same ID as a surface.
type ID uint32

// InvalidID marks an unset ID, such as the containing layer of a surface that
// is not attached to any layer.
const InvalidID ID = math.MaxUint32

// ObjectType distinguishes the two kinds of graphical objects.
type ObjectType int

const (
	TypeLayer ObjectType = iota
	TypeSurface
)

func (t ObjectType) String() string {
	switch t {
	case TypeLayer:
		return "layer"
	case TypeSurface:
		return "surface"
	default:
		return fmt.Sprintf("ObjectType(%d)", int(t))
	}
}

// Orientation is a rotation in 90 degree steps.
type Orientation int

const (
	Zero Orientation = iota
	Ninety
	OneEighty
	TwoSeventy
)

// Degrees returns the rotation angle.
func (o Orientation) Degrees() int { return int(o) * 90 }

func (o Orientation) String() string {
	return fmt.Sprintf("%d", o.Degrees())
}

// ParseOrientation accepts an angle in degrees (0, 90, 180, 270).
func ParseOrientation(degrees int) (Orientation, error) {
	switch degrees {
	case 0:
		return Zero, nil
	case 90:
		return Ninety, nil
	case 180:
		return OneEighty, nil
	case 270:
		return TwoSeventy, nil
	default:
		return Zero, fmt.Errorf("invalid orientation %d: must be one of 0, 90, 180, 270", degrees)
	}
}

// ChromaKey describes a color that is composited as fully transparent.
type ChromaKey struct {
	Enabled bool
	R       uint8
	G       uint8
	B       uint8
}

// PixelFormat is the layout of a surface's native content.
type PixelFormat int

const (
	PixelFormatUnknown PixelFormat = iota
	PixelFormatR8
	PixelFormatRGB888
	PixelFormatRGBA8888
	PixelFormatRGB565
	PixelFormatRGBA5551
	PixelFormatRGBA6661
	PixelFormatRGBA4444
)

var pixelFormatNames = map[PixelFormat]string{
	PixelFormatUnknown:  "UNKNOWN",
	PixelFormatR8:       "R_8",
	PixelFormatRGB888:   "RGB_888",
	PixelFormatRGBA8888: "RGBA_8888",
	PixelFormatRGB565:   "RGB_565",
	PixelFormatRGBA5551: "RGBA_5551",
	PixelFormatRGBA6661: "RGBA_6661",
	PixelFormatRGBA4444: "RGBA_4444",
}

func (f PixelFormat) String() string {
	if name, ok := pixelFormatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("PixelFormat(%d)", int(f))
}

// HasAlphaChannel reports whether content in this format carries per-pixel alpha.
func (f PixelFormat) HasAlphaChannel() bool {
	switch f {
	case PixelFormatRGBA8888, PixelFormatRGBA5551, PixelFormatRGBA6661, PixelFormatRGBA4444:
		return true
	default:
		return false
	}
}

// ParsePixelFormat resolves a format name such as "RGBA_8888".
func ParsePixelFormat(name string) (PixelFormat, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for f, n := range pixelFormatNames {
		if n == name {
			return f, nil
		}
	}
	return PixelFormatUnknown, fmt.Errorf("unknown pixel format %q", name)
}

// LayerType selects how a layer is composited.
type LayerType int

const (
	LayerTypeSoftware2D LayerType = iota
	LayerTypeSoftware2_5D
	LayerTypeHardware
)

func (t LayerType) String() string {
	switch t {
	case LayerTypeSoftware2D:
		return "software-2d"
	case LayerTypeSoftware2_5D:
		return "software-2.5d"
	case LayerTypeHardware:
		return "hardware"
	default:
		return fmt.Sprintf("LayerType(%d)", int(t))
	}
}

// ParseLayerType resolves a layer type name.
func ParseLayerType(name string) (LayerType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "software-2d", "2d", "":
		return LayerTypeSoftware2D, nil
	case "software-2.5d", "2.5d":
		return LayerTypeSoftware2_5D, nil
	case "hardware":
		return LayerTypeHardware, nil
	default:
		return LayerTypeSoftware2D, fmt.Errorf("unknown layer type %q", name)
	}
}

// Capability is a bitmask of optional features a layer supports.
type Capability uint32

const (
	CapabilityPosition Capability = 1 << iota
	CapabilityDimension
	CapabilityOpacity
	CapabilityRotation
	CapabilityChromaKey
)

// CapabilitiesAll is the capability set of a software composited layer.
const CapabilitiesAll = CapabilityPosition | CapabilityDimension | CapabilityOpacity | CapabilityRotation | CapabilityChromaKey

// NotificationMask selects which property changes a client is told about.
type NotificationMask uint32

const (
	NotifyVisibility NotificationMask = 1 << iota
	NotifyOpacity
	NotifyOrientation
	NotifySourceRect
	NotifyDestinationRect
	NotifyContentAvailable
	NotifyContentRemoved
	NotifyConfigured
)

var notificationNames = []struct {
	mask NotificationMask
	name string
}{
	{NotifyVisibility, "visibility"},
	{NotifyOpacity, "opacity"},
	{NotifyOrientation, "orientation"},
	{NotifySourceRect, "source_rect"},
	{NotifyDestinationRect, "destination_rect"},
	{NotifyContentAvailable, "content_available"},
	{NotifyContentRemoved, "content_removed"},
	{NotifyConfigured, "configured"},
}

// Names lists the flags set in m.
func (m NotificationMask) Names() []string {
	var names []string
	for _, n := range notificationNames {
		if m&n.mask != 0 {
			names = append(names, n.name)
		}
	}
	return names
}

func (m NotificationMask) String() string {
	names := m.Names()
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// ClientHandle is an opaque reference to a client that wants property change
// notifications. The transport layer decides what the value means.
type ClientHandle uint64
