package scene

import (
	"slices"

	"github.com/1broseidon/ivicomp/internal/geometry"
)

// Object holds the attributes shared by layers and surfaces.
//
// Every setter reports whether the value actually changed. A change also marks
// the object as needing a redraw; setting a value to what it already was
// leaves the dirty flag alone.
type Object struct {
	id          ID
	objectType  ObjectType
	creatorPID  int
	opacity     float64
	orientation Orientation
	visible     bool
	source      geometry.Rect
	destination geometry.Rect
	chromaKey   ChromaKey

	renderPropertyChanged bool
	clients               map[ClientHandle]struct{}
}

func newObject(id ID, objectType ObjectType, creatorPID int) Object {
	return Object{
		id:         id,
		objectType: objectType,
		creatorPID: creatorPID,
		opacity:    1.0,
	}
}

func (o *Object) ID() ID { return o.id }

func (o *Object) Type() ObjectType { return o.objectType }

// CreatorPID is the process that created the object.
func (o *Object) CreatorPID() int { return o.creatorPID }

func (o *Object) Opacity() float64 { return o.opacity }

func (o *Object) Orientation() Orientation { return o.orientation }

func (o *Object) Visible() bool { return o.visible }

// SourceRegion is the visible part of the object's own content.
func (o *Object) SourceRegion() geometry.Rect { return o.source }

// DestinationRegion places the object in the coordinate space of whatever
// contains it: the layer for a surface, the screen for a layer.
func (o *Object) DestinationRegion() geometry.Rect { return o.destination }

func (o *Object) ChromaKey() ChromaKey { return o.chromaKey }

func (o *Object) RenderPropertyChanged() bool { return o.renderPropertyChanged }

func (o *Object) Position() (x, y int) { return o.destination.X, o.destination.Y }

func (o *Object) Dimension() (width, height int) {
	return o.destination.Width, o.destination.Height
}

func (o *Object) markChanged() bool {
	o.renderPropertyChanged = true
	return true
}

// ClearRenderPropertyChanged is called by the compositor once a frame has
// observed the change.
func (o *Object) ClearRenderPropertyChanged() { o.renderPropertyChanged = false }

// SetOpacity clamps opacity to [0, 1].
func (o *Object) SetOpacity(opacity float64) bool {
	opacity = min(max(opacity, 0), 1)
	if o.opacity == opacity {
		return false
	}
	o.opacity = opacity
	return o.markChanged()
}

func (o *Object) SetOrientation(orientation Orientation) bool {
	if o.orientation == orientation {
		return false
	}
	o.orientation = orientation
	return o.markChanged()
}

func (o *Object) SetVisibility(visible bool) bool {
	if o.visible == visible {
		return false
	}
	o.visible = visible
	return o.markChanged()
}

func (o *Object) SetSourceRegion(r geometry.Rect) bool {
	if o.source == r {
		return false
	}
	o.source = r
	return o.markChanged()
}

func (o *Object) SetDestinationRegion(r geometry.Rect) bool {
	if o.destination == r {
		return false
	}
	o.destination = r
	return o.markChanged()
}

// SetPosition moves the destination region without resizing it.
func (o *Object) SetPosition(x, y int) bool {
	r := o.destination
	r.X, r.Y = x, y
	return o.SetDestinationRegion(r)
}

// SetDimension resizes the destination region in place.
func (o *Object) SetDimension(width, height int) bool {
	r := o.destination
	r.Width, r.Height = width, height
	return o.SetDestinationRegion(r)
}

func (o *Object) SetChromaKey(key ChromaKey) bool {
	if !key.Enabled {
		key = ChromaKey{}
	}
	if o.chromaKey == key {
		return false
	}
	o.chromaKey = key
	return o.markChanged()
}

// AddNotificationClient registers a client for property change
// notifications. Notification registration never affects rendering.
func (o *Object) AddNotificationClient(client ClientHandle) bool {
	if o.clients == nil {
		o.clients = make(map[ClientHandle]struct{})
	}
	if _, ok := o.clients[client]; ok {
		return false
	}
	o.clients[client] = struct{}{}
	return true
}

func (o *Object) RemoveNotificationClient(client ClientHandle) bool {
	if _, ok := o.clients[client]; !ok {
		return false
	}
	delete(o.clients, client)
	return true
}

// NotificationClients returns the registered clients in ascending order.
func (o *Object) NotificationClients() []ClientHandle {
	clients := make([]ClientHandle, 0, len(o.clients))
	for c := range o.clients {
		clients = append(clients, c)
	}
	slices.Sort(clients)
	return clients
}
