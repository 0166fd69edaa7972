// Package mcp exposes the compositor scene to MCP clients over stdio. Every
// tool goes through the daemon's IPC socket.
package mcp

import (
	"context"
	"io"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/ivicomp/internal/command"
	"github.com/1broseidon/ivicomp/internal/ipc"
)

const (
	ServerName    = "ivicomp"
	ServerVersion = "0.1.0"
)

// Daemon is the part of the IPC client the tools use.
type Daemon interface {
	GetStatus() (*ipc.StatusData, error)
	GetScreens() (*ipc.ScreensData, error)
	ListLayers() (*ipc.LayersData, error)
	ListSurfaces() (*ipc.SurfacesData, error)
	GetLayer(id uint32) (*ipc.LayerData, error)
	GetSurface(id uint32) (*ipc.SurfaceData, error)
	Execute(kind command.Kind, payload any, opts ipc.ExecOptions) (*ipc.ExecuteData, error)
}

// Server is the MCP server for scene inspection and control.
type Server struct {
	mcpServer *mcpsdk.Server
	daemon    Daemon
	bufferDir string
	logger    *slog.Logger
}

// Options configures a Server. BufferDir is where attach_image writes
// pixel buffers; empty means the runtime buffer directory.
type Options struct {
	BufferDir string
	Logger    *slog.Logger
}

// NewServer creates a new MCP server talking to daemon.
func NewServer(daemon Daemon, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		daemon:    daemon,
		bufferDir: opts.BufferDir,
		logger:    logger,
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_status",
		Description: "Report compositor health: object counts, executed and failed commands, frames rendered and attached buffers.",
	}, s.handleGetStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_screens",
		Description: "List the physical screens with their resolution and current layer render order (bottom first).",
	}, s.handleListScreens)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_layers",
		Description: "List every layer with its properties, member surfaces and whether it is in a screen's render order.",
	}, s.handleListLayers)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_surfaces",
		Description: "List every surface with its properties, content size and owning layer.",
	}, s.handleListSurfaces)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_layer",
		Description: "Get one layer by id.",
	}, s.handleGetLayer)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_surface",
		Description: "Get one surface by id.",
	}, s.handleGetSurface)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "execute_command",
		Description: "Run any scene command by kind (for example layer.create, surface.set_destination, layer.set_render_order) with a JSON payload. Objects created here belong to this server and are removed when it exits.",
	}, s.handleExecute)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_visibility",
		Description: "Show or hide a layer or surface.",
	}, s.handleSetVisibility)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_opacity",
		Description: "Set the opacity of a layer or surface between 0 and 1.",
	}, s.handleSetOpacity)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_screen_render_order",
		Description: "Replace the layers shown on a screen, bottom first. Unknown layer ids are skipped.",
	}, s.handleSetScreenRenderOrder)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "attach_image",
		Description: "Load a PNG file and attach it as the content of a surface. A surface without regions is sized to the image.",
	}, s.handleAttachImage)
}
