package command

import (
	"fmt"

	"github.com/1broseidon/ivicomp/internal/geometry"
	"github.com/1broseidon/ivicomp/internal/scene"
)

func surfaceProperty(ex Executor, id scene.ID, mask scene.NotificationMask, set func(*scene.Surface) bool) ExecutionResult {
	s := ex.Scene().Surface(id)
	if s == nil {
		return ExecutionFailed
	}
	return changed(ex, &s.Object, mask, set(s))
}

// rendered reports whether the surface sits on a layer that some screen
// composites.
func rendered(tx *scene.Tx, s *scene.Surface) bool {
	id := s.ContainingLayerID()
	return id != scene.InvalidID && tx.IsLayerInCurrentRenderOrder(id)
}

// SurfaceCreate creates a surface. See LayerCreate for ID handling.
type SurfaceCreate struct {
	Base
	SurfaceID scene.ID
	CreatedID scene.ID
}

func (c *SurfaceCreate) Kind() Kind { return KindSurfaceCreate }

func (c *SurfaceCreate) Execute(ex Executor) ExecutionResult {
	s := ex.Scene().CreateSurface(c.SurfaceID, c.PID)
	if s == nil {
		return ExecutionFailed
	}
	c.CreatedID = s.ID()
	return ExecutionSuccess
}

func (c *SurfaceCreate) String() string { return fmt.Sprintf("%s id=%d", c.Kind(), c.SurfaceID) }

type SurfaceRemove struct {
	Base
	SurfaceID scene.ID
}

func (c *SurfaceRemove) Kind() Kind { return KindSurfaceRemove }

func (c *SurfaceRemove) Execute(ex Executor) ExecutionResult {
	tx := ex.Scene()
	s := tx.Surface(c.SurfaceID)
	if s == nil {
		return ExecutionFailed
	}
	wasRendered := rendered(tx, s)
	tx.RemoveSurface(s)
	if wasRendered {
		return ExecutionSuccessRedraw
	}
	return ExecutionSuccess
}

func (c *SurfaceRemove) String() string { return fmt.Sprintf("%s id=%d", c.Kind(), c.SurfaceID) }

// SurfaceSetNativeContent attaches a pixel buffer. The first buffer of a
// surface whose regions were never set also configures both regions to the
// full buffer.
type SurfaceSetNativeContent struct {
	Base
	SurfaceID   scene.ID
	Content     any
	Width       int
	Height      int
	PixelFormat scene.PixelFormat
}

func (c *SurfaceSetNativeContent) Kind() Kind { return KindSurfaceSetNativeContent }

func (c *SurfaceSetNativeContent) Execute(ex Executor) ExecutionResult {
	if c.Content == nil || c.Width <= 0 || c.Height <= 0 {
		return ExecutionFailed
	}
	s := ex.Scene().Surface(c.SurfaceID)
	if s == nil {
		return ExecutionFailed
	}
	mask := scene.NotifyContentAvailable
	if s.SourceRegion().Empty() && s.DestinationRegion().Empty() {
		full := geometry.Rect{Width: c.Width, Height: c.Height}
		s.SetSourceRegion(full)
		s.SetDestinationRegion(full)
		mask |= scene.NotifyConfigured
	}
	return changed(ex, &s.Object, mask, s.SetNativeContent(c.Content, c.Width, c.Height, c.PixelFormat))
}

func (c *SurfaceSetNativeContent) String() string {
	return fmt.Sprintf("%s id=%d %dx%d %s", c.Kind(), c.SurfaceID, c.Width, c.Height, c.PixelFormat)
}

type SurfaceRemoveNativeContent struct {
	Base
	SurfaceID scene.ID
}

func (c *SurfaceRemoveNativeContent) Kind() Kind { return KindSurfaceRemoveNativeContent }

func (c *SurfaceRemoveNativeContent) Execute(ex Executor) ExecutionResult {
	return surfaceProperty(ex, c.SurfaceID, scene.NotifyContentRemoved, func(s *scene.Surface) bool {
		return s.RemoveNativeContent()
	})
}

func (c *SurfaceRemoveNativeContent) String() string {
	return fmt.Sprintf("%s id=%d", c.Kind(), c.SurfaceID)
}

// SurfaceDamage reports new pixels in an attached buffer. It does not force a
// full composition; the damaged surface makes its screen dirty on its own.
type SurfaceDamage struct {
	Base
	SurfaceID scene.ID
}

func (c *SurfaceDamage) Kind() Kind { return KindSurfaceDamage }

func (c *SurfaceDamage) Execute(ex Executor) ExecutionResult {
	s := ex.Scene().Surface(c.SurfaceID)
	if s == nil || !s.HasNativeContent() {
		return ExecutionFailed
	}
	s.Damage()
	return ExecutionSuccess
}

func (c *SurfaceDamage) String() string { return fmt.Sprintf("%s id=%d", c.Kind(), c.SurfaceID) }

type SurfaceSetSourceRectangle struct {
	Base
	SurfaceID scene.ID
	Rect      geometry.Rect
}

func (c *SurfaceSetSourceRectangle) Kind() Kind { return KindSurfaceSetSourceRectangle }

func (c *SurfaceSetSourceRectangle) Execute(ex Executor) ExecutionResult {
	if c.Rect.Width < 0 || c.Rect.Height < 0 {
		return ExecutionFailed
	}
	return surfaceProperty(ex, c.SurfaceID, scene.NotifySourceRect, func(s *scene.Surface) bool {
		return s.SetSourceRegion(c.Rect)
	})
}

func (c *SurfaceSetSourceRectangle) String() string {
	return fmt.Sprintf("%s id=%d %s", c.Kind(), c.SurfaceID, c.Rect)
}

type SurfaceSetDestinationRectangle struct {
	Base
	SurfaceID scene.ID
	Rect      geometry.Rect
}

func (c *SurfaceSetDestinationRectangle) Kind() Kind { return KindSurfaceSetDestinationRectangle }

func (c *SurfaceSetDestinationRectangle) Execute(ex Executor) ExecutionResult {
	if c.Rect.Width < 0 || c.Rect.Height < 0 {
		return ExecutionFailed
	}
	return surfaceProperty(ex, c.SurfaceID, scene.NotifyDestinationRect, func(s *scene.Surface) bool {
		return s.SetDestinationRegion(c.Rect)
	})
}

func (c *SurfaceSetDestinationRectangle) String() string {
	return fmt.Sprintf("%s id=%d %s", c.Kind(), c.SurfaceID, c.Rect)
}

type SurfaceSetPosition struct {
	Base
	SurfaceID scene.ID
	X, Y      int
}

func (c *SurfaceSetPosition) Kind() Kind { return KindSurfaceSetPosition }

func (c *SurfaceSetPosition) Execute(ex Executor) ExecutionResult {
	return surfaceProperty(ex, c.SurfaceID, scene.NotifyDestinationRect, func(s *scene.Surface) bool {
		return s.SetPosition(c.X, c.Y)
	})
}

func (c *SurfaceSetPosition) String() string {
	return fmt.Sprintf("%s id=%d %d,%d", c.Kind(), c.SurfaceID, c.X, c.Y)
}

type SurfaceSetDimension struct {
	Base
	SurfaceID     scene.ID
	Width, Height int
}

func (c *SurfaceSetDimension) Kind() Kind { return KindSurfaceSetDimension }

func (c *SurfaceSetDimension) Execute(ex Executor) ExecutionResult {
	if c.Width < 0 || c.Height < 0 {
		return ExecutionFailed
	}
	return surfaceProperty(ex, c.SurfaceID, scene.NotifyDestinationRect, func(s *scene.Surface) bool {
		return s.SetDimension(c.Width, c.Height)
	})
}

func (c *SurfaceSetDimension) String() string {
	return fmt.Sprintf("%s id=%d %dx%d", c.Kind(), c.SurfaceID, c.Width, c.Height)
}

type SurfaceSetOpacity struct {
	Base
	SurfaceID scene.ID
	Opacity   float64
}

func (c *SurfaceSetOpacity) Kind() Kind { return KindSurfaceSetOpacity }

func (c *SurfaceSetOpacity) Execute(ex Executor) ExecutionResult {
	return surfaceProperty(ex, c.SurfaceID, scene.NotifyOpacity, func(s *scene.Surface) bool {
		return s.SetOpacity(c.Opacity)
	})
}

func (c *SurfaceSetOpacity) String() string {
	return fmt.Sprintf("%s id=%d %.3f", c.Kind(), c.SurfaceID, c.Opacity)
}

type SurfaceSetOrientation struct {
	Base
	SurfaceID   scene.ID
	Orientation scene.Orientation
}

func (c *SurfaceSetOrientation) Kind() Kind { return KindSurfaceSetOrientation }

func (c *SurfaceSetOrientation) Execute(ex Executor) ExecutionResult {
	return surfaceProperty(ex, c.SurfaceID, scene.NotifyOrientation, func(s *scene.Surface) bool {
		return s.SetOrientation(c.Orientation)
	})
}

func (c *SurfaceSetOrientation) String() string {
	return fmt.Sprintf("%s id=%d %s", c.Kind(), c.SurfaceID, c.Orientation)
}

type SurfaceSetVisibility struct {
	Base
	SurfaceID scene.ID
	Visible   bool
}

func (c *SurfaceSetVisibility) Kind() Kind { return KindSurfaceSetVisibility }

func (c *SurfaceSetVisibility) Execute(ex Executor) ExecutionResult {
	return surfaceProperty(ex, c.SurfaceID, scene.NotifyVisibility, func(s *scene.Surface) bool {
		return s.SetVisibility(c.Visible)
	})
}

func (c *SurfaceSetVisibility) String() string {
	return fmt.Sprintf("%s id=%d %t", c.Kind(), c.SurfaceID, c.Visible)
}

type SurfaceSetChromaKey struct {
	Base
	SurfaceID scene.ID
	Key       scene.ChromaKey
}

func (c *SurfaceSetChromaKey) Kind() Kind { return KindSurfaceSetChromaKey }

func (c *SurfaceSetChromaKey) Execute(ex Executor) ExecutionResult {
	return surfaceProperty(ex, c.SurfaceID, 0, func(s *scene.Surface) bool {
		return s.SetChromaKey(c.Key)
	})
}

func (c *SurfaceSetChromaKey) String() string {
	return fmt.Sprintf("%s id=%d %+v", c.Kind(), c.SurfaceID, c.Key)
}

type SurfaceAddNotification struct {
	Base
	SurfaceID scene.ID
	Client    scene.ClientHandle
}

func (c *SurfaceAddNotification) Kind() Kind { return KindSurfaceAddNotification }

func (c *SurfaceAddNotification) Execute(ex Executor) ExecutionResult {
	s := ex.Scene().Surface(c.SurfaceID)
	if s == nil {
		return ExecutionFailed
	}
	s.AddNotificationClient(c.Client)
	return ExecutionSuccess
}

func (c *SurfaceAddNotification) String() string {
	return fmt.Sprintf("%s id=%d client=%d", c.Kind(), c.SurfaceID, c.Client)
}

type SurfaceRemoveNotification struct {
	Base
	SurfaceID scene.ID
	Client    scene.ClientHandle
}

func (c *SurfaceRemoveNotification) Kind() Kind { return KindSurfaceRemoveNotification }

func (c *SurfaceRemoveNotification) Execute(ex Executor) ExecutionResult {
	s := ex.Scene().Surface(c.SurfaceID)
	if s == nil {
		return ExecutionFailed
	}
	s.RemoveNotificationClient(c.Client)
	return ExecutionSuccess
}

func (c *SurfaceRemoveNotification) String() string {
	return fmt.Sprintf("%s id=%d client=%d", c.Kind(), c.SurfaceID, c.Client)
}
