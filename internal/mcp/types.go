package mcp

// IDInput is the input for tools addressing one layer or surface.
type IDInput struct {
	ID uint32 `json:"id" jsonschema:"required,Layer or surface id"`
}

// EmptyInput is the input for tools without arguments.
type EmptyInput struct{}

// ExecuteInput is the input for the execute_command tool.
type ExecuteInput struct {
	Command string         `json:"command" jsonschema:"required,Command kind such as layer.create or surface.set_opacity"`
	Payload map[string]any `json:"payload" jsonschema:"required,Command payload, e.g. {\"id\": 5, \"opacity\": 0.5}"`
	Async   bool           `json:"async,omitempty" jsonschema:"Queue the command and apply it before the next frame instead of running it immediately"`
}

// SetVisibilityInput is the input for the set_visibility tool.
type SetVisibilityInput struct {
	Object  string `json:"object" jsonschema:"required,Either layer or surface"`
	ID      uint32 `json:"id" jsonschema:"required,Layer or surface id"`
	Visible bool   `json:"visible" jsonschema:"required,Whether the object is drawn"`
	Async   bool   `json:"async,omitempty" jsonschema:"Queue the change until the next frame"`
}

// SetOpacityInput is the input for the set_opacity tool.
type SetOpacityInput struct {
	Object  string  `json:"object" jsonschema:"required,Either layer or surface"`
	ID      uint32  `json:"id" jsonschema:"required,Layer or surface id"`
	Opacity float64 `json:"opacity" jsonschema:"required,Opacity from 0 (transparent) to 1 (opaque)"`
	Async   bool    `json:"async,omitempty" jsonschema:"Queue the change until the next frame"`
}

// SetScreenRenderOrderInput is the input for the set_screen_render_order
// tool.
type SetScreenRenderOrderInput struct {
	ScreenID uint32   `json:"screen_id" jsonschema:"required,Screen id"`
	LayerIDs []uint32 `json:"layer_ids" jsonschema:"required,Layers to show, bottom first"`
}

// AttachImageInput is the input for the attach_image tool.
type AttachImageInput struct {
	SurfaceID uint32 `json:"surface_id" jsonschema:"required,Surface to receive the image"`
	Path      string `json:"path" jsonschema:"required,Path to a PNG file readable by this server"`
}

// AttachImageOutput is the output for the attach_image tool.
type AttachImageOutput struct {
	SurfaceID uint32 `json:"surface_id"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}
