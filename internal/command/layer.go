package command

import (
	"fmt"

	"github.com/1broseidon/ivicomp/internal/geometry"
	"github.com/1broseidon/ivicomp/internal/scene"
)

// layerProperty runs set on the layer, failing when it does not exist.
func layerProperty(ex Executor, id scene.ID, mask scene.NotificationMask, set func(*scene.Layer) bool) ExecutionResult {
	l := ex.Scene().Layer(id)
	if l == nil {
		return ExecutionFailed
	}
	return changed(ex, &l.Object, mask, set(l))
}

// LayerCreate creates a layer. With LayerID set to scene.InvalidID an ID is
// generated; CreatedID holds the outcome after Execute. Creating an existing
// layer succeeds and leaves it untouched.
type LayerCreate struct {
	Base
	LayerID   scene.ID
	Width     int
	Height    int
	CreatedID scene.ID
}

func (c *LayerCreate) Kind() Kind { return KindLayerCreate }

func (c *LayerCreate) Execute(ex Executor) ExecutionResult {
	if c.Width < 0 || c.Height < 0 {
		return ExecutionFailed
	}
	tx := ex.Scene()
	existed := c.LayerID != scene.InvalidID && tx.Layer(c.LayerID) != nil
	l := tx.CreateLayer(c.LayerID, c.PID)
	if l == nil {
		return ExecutionFailed
	}
	c.CreatedID = l.ID()
	if !existed {
		full := geometry.Rect{Width: c.Width, Height: c.Height}
		l.SetSourceRegion(full)
		l.SetDestinationRegion(full)
	}
	return ExecutionSuccess
}

func (c *LayerCreate) String() string {
	return fmt.Sprintf("%s id=%d %dx%d", c.Kind(), c.LayerID, c.Width, c.Height)
}

// LayerRemove destroys a layer. Its surfaces survive, detached.
type LayerRemove struct {
	Base
	LayerID scene.ID
}

func (c *LayerRemove) Kind() Kind { return KindLayerRemove }

func (c *LayerRemove) Execute(ex Executor) ExecutionResult {
	tx := ex.Scene()
	l := tx.Layer(c.LayerID)
	if l == nil {
		return ExecutionFailed
	}
	if tx.RemoveLayer(l) {
		return ExecutionSuccessRedraw
	}
	return ExecutionSuccess
}

func (c *LayerRemove) String() string { return fmt.Sprintf("%s id=%d", c.Kind(), c.LayerID) }

type LayerSetSourceRectangle struct {
	Base
	LayerID scene.ID
	Rect    geometry.Rect
}

func (c *LayerSetSourceRectangle) Kind() Kind { return KindLayerSetSourceRectangle }

func (c *LayerSetSourceRectangle) Execute(ex Executor) ExecutionResult {
	if c.Rect.Width < 0 || c.Rect.Height < 0 {
		return ExecutionFailed
	}
	return layerProperty(ex, c.LayerID, scene.NotifySourceRect, func(l *scene.Layer) bool {
		return l.SetSourceRegion(c.Rect)
	})
}

func (c *LayerSetSourceRectangle) String() string {
	return fmt.Sprintf("%s id=%d %s", c.Kind(), c.LayerID, c.Rect)
}

type LayerSetDestinationRectangle struct {
	Base
	LayerID scene.ID
	Rect    geometry.Rect
}

func (c *LayerSetDestinationRectangle) Kind() Kind { return KindLayerSetDestinationRectangle }

func (c *LayerSetDestinationRectangle) Execute(ex Executor) ExecutionResult {
	if c.Rect.Width < 0 || c.Rect.Height < 0 {
		return ExecutionFailed
	}
	return layerProperty(ex, c.LayerID, scene.NotifyDestinationRect, func(l *scene.Layer) bool {
		return l.SetDestinationRegion(c.Rect)
	})
}

func (c *LayerSetDestinationRectangle) String() string {
	return fmt.Sprintf("%s id=%d %s", c.Kind(), c.LayerID, c.Rect)
}

type LayerSetPosition struct {
	Base
	LayerID scene.ID
	X, Y    int
}

func (c *LayerSetPosition) Kind() Kind { return KindLayerSetPosition }

func (c *LayerSetPosition) Execute(ex Executor) ExecutionResult {
	return layerProperty(ex, c.LayerID, scene.NotifyDestinationRect, func(l *scene.Layer) bool {
		return l.SetPosition(c.X, c.Y)
	})
}

func (c *LayerSetPosition) String() string {
	return fmt.Sprintf("%s id=%d %d,%d", c.Kind(), c.LayerID, c.X, c.Y)
}

type LayerSetDimension struct {
	Base
	LayerID       scene.ID
	Width, Height int
}

func (c *LayerSetDimension) Kind() Kind { return KindLayerSetDimension }

func (c *LayerSetDimension) Execute(ex Executor) ExecutionResult {
	if c.Width < 0 || c.Height < 0 {
		return ExecutionFailed
	}
	return layerProperty(ex, c.LayerID, scene.NotifyDestinationRect, func(l *scene.Layer) bool {
		return l.SetDimension(c.Width, c.Height)
	})
}

func (c *LayerSetDimension) String() string {
	return fmt.Sprintf("%s id=%d %dx%d", c.Kind(), c.LayerID, c.Width, c.Height)
}

type LayerSetOpacity struct {
	Base
	LayerID scene.ID
	Opacity float64
}

func (c *LayerSetOpacity) Kind() Kind { return KindLayerSetOpacity }

func (c *LayerSetOpacity) Execute(ex Executor) ExecutionResult {
	return layerProperty(ex, c.LayerID, scene.NotifyOpacity, func(l *scene.Layer) bool {
		return l.SetOpacity(c.Opacity)
	})
}

func (c *LayerSetOpacity) String() string {
	return fmt.Sprintf("%s id=%d %.3f", c.Kind(), c.LayerID, c.Opacity)
}

type LayerSetOrientation struct {
	Base
	LayerID     scene.ID
	Orientation scene.Orientation
}

func (c *LayerSetOrientation) Kind() Kind { return KindLayerSetOrientation }

func (c *LayerSetOrientation) Execute(ex Executor) ExecutionResult {
	return layerProperty(ex, c.LayerID, scene.NotifyOrientation, func(l *scene.Layer) bool {
		return l.SetOrientation(c.Orientation)
	})
}

func (c *LayerSetOrientation) String() string {
	return fmt.Sprintf("%s id=%d %s", c.Kind(), c.LayerID, c.Orientation)
}

type LayerSetVisibility struct {
	Base
	LayerID scene.ID
	Visible bool
}

func (c *LayerSetVisibility) Kind() Kind { return KindLayerSetVisibility }

func (c *LayerSetVisibility) Execute(ex Executor) ExecutionResult {
	return layerProperty(ex, c.LayerID, scene.NotifyVisibility, func(l *scene.Layer) bool {
		return l.SetVisibility(c.Visible)
	})
}

func (c *LayerSetVisibility) String() string {
	return fmt.Sprintf("%s id=%d %t", c.Kind(), c.LayerID, c.Visible)
}

type LayerSetChromaKey struct {
	Base
	LayerID scene.ID
	Key     scene.ChromaKey
}

func (c *LayerSetChromaKey) Kind() Kind { return KindLayerSetChromaKey }

func (c *LayerSetChromaKey) Execute(ex Executor) ExecutionResult {
	return layerProperty(ex, c.LayerID, 0, func(l *scene.Layer) bool {
		return l.SetChromaKey(c.Key)
	})
}

func (c *LayerSetChromaKey) String() string {
	return fmt.Sprintf("%s id=%d %+v", c.Kind(), c.LayerID, c.Key)
}

type LayerSetType struct {
	Base
	LayerID   scene.ID
	LayerType scene.LayerType
}

func (c *LayerSetType) Kind() Kind { return KindLayerSetType }

func (c *LayerSetType) Execute(ex Executor) ExecutionResult {
	return layerProperty(ex, c.LayerID, 0, func(l *scene.Layer) bool {
		return l.SetLayerType(c.LayerType)
	})
}

func (c *LayerSetType) String() string {
	return fmt.Sprintf("%s id=%d %s", c.Kind(), c.LayerID, c.LayerType)
}

// LayerSetRenderOrder replaces the surfaces of a layer. IDs that do not name
// a surface, or name one held by another layer, are skipped. A list with
// duplicates is rejected before anything changes.
type LayerSetRenderOrder struct {
	Base
	LayerID    scene.ID
	SurfaceIDs []scene.ID
}

func (c *LayerSetRenderOrder) Kind() Kind { return KindLayerSetRenderOrder }

func (c *LayerSetRenderOrder) Execute(ex Executor) ExecutionResult {
	if hasDuplicates(c.SurfaceIDs) {
		return ExecutionFailed
	}
	tx := ex.Scene()
	l := tx.Layer(c.LayerID)
	if l == nil {
		return ExecutionFailed
	}
	tx.RemoveAllSurfaces(l)
	for _, id := range c.SurfaceIDs {
		if s := tx.Surface(id); s != nil {
			l.AddSurface(s)
		}
	}
	return ExecutionSuccessRedraw
}

func (c *LayerSetRenderOrder) String() string {
	return fmt.Sprintf("%s id=%d %v", c.Kind(), c.LayerID, c.SurfaceIDs)
}

// LayerAddSurface puts a surface on top of a layer. Adding a surface that is
// already on the same layer succeeds without change; one held by another
// layer fails.
type LayerAddSurface struct {
	Base
	LayerID   scene.ID
	SurfaceID scene.ID
}

func (c *LayerAddSurface) Kind() Kind { return KindLayerAddSurface }

func (c *LayerAddSurface) Execute(ex Executor) ExecutionResult {
	tx := ex.Scene()
	l, s := tx.Layer(c.LayerID), tx.Surface(c.SurfaceID)
	if l == nil || s == nil {
		return ExecutionFailed
	}
	if s.ContainingLayerID() == l.ID() {
		return ExecutionSuccess
	}
	if !l.AddSurface(s) {
		return ExecutionFailed
	}
	return ExecutionSuccessRedraw
}

func (c *LayerAddSurface) String() string {
	return fmt.Sprintf("%s layer=%d surface=%d", c.Kind(), c.LayerID, c.SurfaceID)
}

type LayerRemoveSurface struct {
	Base
	LayerID   scene.ID
	SurfaceID scene.ID
}

func (c *LayerRemoveSurface) Kind() Kind { return KindLayerRemoveSurface }

func (c *LayerRemoveSurface) Execute(ex Executor) ExecutionResult {
	tx := ex.Scene()
	l, s := tx.Layer(c.LayerID), tx.Surface(c.SurfaceID)
	if l == nil || s == nil || !l.RemoveSurface(s) {
		return ExecutionFailed
	}
	return ExecutionSuccessRedraw
}

func (c *LayerRemoveSurface) String() string {
	return fmt.Sprintf("%s layer=%d surface=%d", c.Kind(), c.LayerID, c.SurfaceID)
}

type LayerAddNotification struct {
	Base
	LayerID scene.ID
	Client  scene.ClientHandle
}

func (c *LayerAddNotification) Kind() Kind { return KindLayerAddNotification }

func (c *LayerAddNotification) Execute(ex Executor) ExecutionResult {
	l := ex.Scene().Layer(c.LayerID)
	if l == nil {
		return ExecutionFailed
	}
	l.AddNotificationClient(c.Client)
	return ExecutionSuccess
}

func (c *LayerAddNotification) String() string {
	return fmt.Sprintf("%s id=%d client=%d", c.Kind(), c.LayerID, c.Client)
}

type LayerRemoveNotification struct {
	Base
	LayerID scene.ID
	Client  scene.ClientHandle
}

func (c *LayerRemoveNotification) Kind() Kind { return KindLayerRemoveNotification }

func (c *LayerRemoveNotification) Execute(ex Executor) ExecutionResult {
	l := ex.Scene().Layer(c.LayerID)
	if l == nil {
		return ExecutionFailed
	}
	l.RemoveNotificationClient(c.Client)
	return ExecutionSuccess
}

func (c *LayerRemoveNotification) String() string {
	return fmt.Sprintf("%s id=%d client=%d", c.Kind(), c.LayerID, c.Client)
}
