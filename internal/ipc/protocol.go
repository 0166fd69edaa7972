package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/1broseidon/ivicomp/internal/command"
	"github.com/1broseidon/ivicomp/internal/geometry"
	"github.com/1broseidon/ivicomp/internal/scene"
)

// CommandType names a request. Scene mutations use the command kind names
// ("layer.create", "surface.set_opacity", ...); queries use the constants
// below.
type CommandType string

const (
	CommandGetStatus    CommandType = "GET_STATUS"
	CommandGetScreens   CommandType = "GET_SCREENS"
	CommandListLayers   CommandType = "LIST_LAYERS"
	CommandListSurfaces CommandType = "LIST_SURFACES"
	CommandGetLayer     CommandType = "GET_LAYER"
	CommandGetSurface   CommandType = "GET_SURFACE"
	CommandWatch        CommandType = "WATCH"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
	// Async queues a mutation for the next frame instead of waiting for it.
	Async bool `json:"async,omitempty"`
	// OwnerPID attributes created objects to another process. Unset means
	// the connecting process; 0 means no owner, so the objects outlive
	// every client.
	OwnerPID *int `json:"owner_pid,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	UptimeSeconds    int64  `json:"uptime_seconds"`
	DaemonRunning    bool   `json:"daemon_running"`
	Screens          int    `json:"screens"`
	Layers           int    `json:"layers"`
	Surfaces         int    `json:"surfaces"`
	CommandsExecuted uint64 `json:"commands_executed"`
	CommandsFailed   uint64 `json:"commands_failed"`
	CommandsQueued   int    `json:"commands_queued"`
	Frames           uint64 `json:"frames"`
	ScreensComposed  uint64 `json:"screens_composed"`
	Watchers         int    `json:"watchers"`
	Buffers          int    `json:"buffers"`
}

type RectData struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type ChromaKeyData struct {
	Enabled bool  `json:"enabled"`
	R       uint8 `json:"r"`
	G       uint8 `json:"g"`
	B       uint8 `json:"b"`
}

type ScreenData struct {
	ID          uint32   `json:"id"`
	Name        string   `json:"name"`
	Width       int      `json:"width"`
	Height      int      `json:"height"`
	RenderOrder []uint32 `json:"render_order"`
}

type LayerData struct {
	ID          uint32        `json:"id"`
	CreatorPID  int           `json:"creator_pid"`
	Visible     bool          `json:"visible"`
	Opacity     float64       `json:"opacity"`
	Orientation int           `json:"orientation"`
	Source      RectData      `json:"source"`
	Destination RectData      `json:"destination"`
	ChromaKey   ChromaKeyData `json:"chroma_key"`
	Type        string        `json:"type"`
	Surfaces    []uint32      `json:"surfaces"`
	Rendered    bool          `json:"rendered"`
}

type SurfaceData struct {
	ID             uint32        `json:"id"`
	CreatorPID     int           `json:"creator_pid"`
	Visible        bool          `json:"visible"`
	Opacity        float64       `json:"opacity"`
	Orientation    int           `json:"orientation"`
	Source         RectData      `json:"source"`
	Destination    RectData      `json:"destination"`
	ChromaKey      ChromaKeyData `json:"chroma_key"`
	PixelFormat    string        `json:"pixel_format"`
	OriginalWidth  int           `json:"original_width"`
	OriginalHeight int           `json:"original_height"`
	HasContent     bool          `json:"has_content"`
	LayerID        *uint32       `json:"layer_id,omitempty"`
	FrameCounter   uint64        `json:"frame_counter"`
	DrawCounter    uint64        `json:"draw_counter"`
	UpdateCounter  uint64        `json:"update_counter"`
}

type ScreensData struct {
	Screens []ScreenData `json:"screens"`
}

type LayersData struct {
	Layers []LayerData `json:"layers"`
}

type SurfacesData struct {
	Surfaces []SurfaceData `json:"surfaces"`
}

// ExecuteData is returned for every successful mutation.
type ExecuteData struct {
	Result string `json:"result"`
	// ID is the object a create request made or found.
	ID *uint32 `json:"id,omitempty"`
}

// WatchData is the first line of a WATCH stream. Pass Client to the
// add_notification commands to subscribe to an object.
type WatchData struct {
	Client uint64 `json:"client"`
}

// Event is a property change streamed to a watcher.
type Event struct {
	ObjectType string   `json:"object_type"`
	ObjectID   uint32   `json:"object_id"`
	Changes    []string `json:"changes"`
}

// IDPayload targets one object.
type IDPayload struct {
	ID uint32 `json:"id"`
}

// CreatePayload creates a layer or surface. A missing ID asks the daemon to
// generate one; width and height size layers.
type CreatePayload struct {
	ID     *uint32 `json:"id,omitempty"`
	Width  int     `json:"width,omitempty"`
	Height int     `json:"height,omitempty"`
}

type RectPayload struct {
	ID     uint32 `json:"id"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type OpacityPayload struct {
	ID      uint32  `json:"id"`
	Opacity float64 `json:"opacity"`
}

type OrientationPayload struct {
	ID      uint32 `json:"id"`
	Degrees int    `json:"degrees"`
}

type VisibilityPayload struct {
	ID      uint32 `json:"id"`
	Visible bool   `json:"visible"`
}

type ChromaKeyPayload struct {
	ID      uint32 `json:"id"`
	Enabled bool   `json:"enabled"`
	R       uint8  `json:"r"`
	G       uint8  `json:"g"`
	B       uint8  `json:"b"`
}

type LayerTypePayload struct {
	ID   uint32 `json:"id"`
	Type string `json:"type"`
}

// RenderOrderPayload sets the surfaces of a layer or the layers of a
// screen, bottom first.
type RenderOrderPayload struct {
	ID  uint32   `json:"id"`
	IDs []uint32 `json:"ids"`
}

type MembershipPayload struct {
	LayerID   uint32 `json:"layer_id"`
	SurfaceID uint32 `json:"surface_id"`
}

// ContentPayload attaches a shared-memory buffer file as surface content.
// Stride 0 means tightly packed rows.
type ContentPayload struct {
	ID     uint32 `json:"id"`
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Stride int    `json:"stride,omitempty"`
	Format string `json:"format"`
}

type NotificationPayload struct {
	ID     uint32 `json:"id"`
	Client uint64 `json:"client"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data any) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

func rectData(r geometry.Rect) RectData {
	return RectData{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

func chromaKeyData(k scene.ChromaKey) ChromaKeyData {
	return ChromaKeyData{Enabled: k.Enabled, R: k.R, G: k.G, B: k.B}
}

func idList(ids []scene.ID) []uint32 {
	out := make([]uint32, len(ids))
	for i, id := range ids {
		out[i] = uint32(id)
	}
	return out
}

func sceneIDs(ids []uint32) []scene.ID {
	out := make([]scene.ID, len(ids))
	for i, id := range ids {
		out[i] = scene.ID(id)
	}
	return out
}

// NewScreenData converts a screen snapshot.
func NewScreenData(info scene.ScreenInfo) ScreenData {
	return ScreenData{
		ID:          uint32(info.ID),
		Name:        info.Name,
		Width:       info.Width,
		Height:      info.Height,
		RenderOrder: idList(info.RenderOrder),
	}
}

// NewLayerData converts a layer snapshot.
func NewLayerData(info scene.LayerInfo, rendered bool) LayerData {
	return LayerData{
		ID:          uint32(info.ID),
		CreatorPID:  info.CreatorPID,
		Visible:     info.Visible,
		Opacity:     info.Opacity,
		Orientation: info.Orientation.Degrees(),
		Source:      rectData(info.Source),
		Destination: rectData(info.Destination),
		ChromaKey:   chromaKeyData(info.ChromaKey),
		Type:        info.Type.String(),
		Surfaces:    idList(info.Surfaces),
		Rendered:    rendered,
	}
}

// NewSurfaceData converts a surface snapshot.
func NewSurfaceData(info scene.SurfaceInfo) SurfaceData {
	d := SurfaceData{
		ID:             uint32(info.ID),
		CreatorPID:     info.CreatorPID,
		Visible:        info.Visible,
		Opacity:        info.Opacity,
		Orientation:    info.Orientation.Degrees(),
		Source:         rectData(info.Source),
		Destination:    rectData(info.Destination),
		ChromaKey:      chromaKeyData(info.ChromaKey),
		PixelFormat:    info.PixelFormat.String(),
		OriginalWidth:  info.OriginalWidth,
		OriginalHeight: info.OriginalHeight,
		HasContent:     info.HasContent,
		FrameCounter:   info.FrameCounter,
		DrawCounter:    info.DrawCounter,
		UpdateCounter:  info.UpdateCounter,
	}
	if info.LayerID != scene.InvalidID {
		id := uint32(info.LayerID)
		d.LayerID = &id
	}
	return d
}

// NewEvent converts a queued notification for one watcher.
func NewEvent(n command.Notification) Event {
	return Event{
		ObjectType: n.ObjectType.String(),
		ObjectID:   uint32(n.ObjectID),
		Changes:    n.Mask.Names(),
	}
}
