package mcp

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/ivicomp/internal/command"
	"github.com/1broseidon/ivicomp/internal/ipc"
	"github.com/1broseidon/ivicomp/internal/runtimepath"
	"github.com/1broseidon/ivicomp/internal/shm"
)

func (s *Server) handleGetStatus(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, ipc.StatusData, error) {
	status, err := s.daemon.GetStatus()
	if err != nil {
		return nil, ipc.StatusData{}, err
	}
	return nil, *status, nil
}

func (s *Server) handleListScreens(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, ipc.ScreensData, error) {
	screens, err := s.daemon.GetScreens()
	if err != nil {
		return nil, ipc.ScreensData{}, err
	}
	return nil, *screens, nil
}

func (s *Server) handleListLayers(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, ipc.LayersData, error) {
	layers, err := s.daemon.ListLayers()
	if err != nil {
		return nil, ipc.LayersData{}, err
	}
	return nil, *layers, nil
}

func (s *Server) handleListSurfaces(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, ipc.SurfacesData, error) {
	surfaces, err := s.daemon.ListSurfaces()
	if err != nil {
		return nil, ipc.SurfacesData{}, err
	}
	return nil, *surfaces, nil
}

func (s *Server) handleGetLayer(_ context.Context, _ *mcpsdk.CallToolRequest, args IDInput) (*mcpsdk.CallToolResult, ipc.LayerData, error) {
	layer, err := s.daemon.GetLayer(args.ID)
	if err != nil {
		return nil, ipc.LayerData{}, err
	}
	return nil, *layer, nil
}

func (s *Server) handleGetSurface(_ context.Context, _ *mcpsdk.CallToolRequest, args IDInput) (*mcpsdk.CallToolResult, ipc.SurfaceData, error) {
	surface, err := s.daemon.GetSurface(args.ID)
	if err != nil {
		return nil, ipc.SurfaceData{}, err
	}
	return nil, *surface, nil
}

func (s *Server) handleExecute(_ context.Context, _ *mcpsdk.CallToolRequest, args ExecuteInput) (*mcpsdk.CallToolResult, ipc.ExecuteData, error) {
	kind, err := command.ParseKind(strings.TrimSpace(args.Command))
	if err != nil {
		return nil, ipc.ExecuteData{}, err
	}
	if kind == command.KindSurfaceSetNativeContent {
		return nil, ipc.ExecuteData{}, fmt.Errorf("use attach_image to set surface content")
	}
	payload := args.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	return s.execute(kind, payload, args.Async)
}

func (s *Server) handleSetVisibility(_ context.Context, _ *mcpsdk.CallToolRequest, args SetVisibilityInput) (*mcpsdk.CallToolResult, ipc.ExecuteData, error) {
	kind, err := objectKind(args.Object, command.KindLayerSetVisibility, command.KindSurfaceSetVisibility)
	if err != nil {
		return nil, ipc.ExecuteData{}, err
	}
	return s.execute(kind, ipc.VisibilityPayload{ID: args.ID, Visible: args.Visible}, args.Async)
}

func (s *Server) handleSetOpacity(_ context.Context, _ *mcpsdk.CallToolRequest, args SetOpacityInput) (*mcpsdk.CallToolResult, ipc.ExecuteData, error) {
	kind, err := objectKind(args.Object, command.KindLayerSetOpacity, command.KindSurfaceSetOpacity)
	if err != nil {
		return nil, ipc.ExecuteData{}, err
	}
	return s.execute(kind, ipc.OpacityPayload{ID: args.ID, Opacity: args.Opacity}, args.Async)
}

func (s *Server) handleSetScreenRenderOrder(_ context.Context, _ *mcpsdk.CallToolRequest, args SetScreenRenderOrderInput) (*mcpsdk.CallToolResult, ipc.ExecuteData, error) {
	ids := args.LayerIDs
	if ids == nil {
		ids = []uint32{}
	}
	return s.execute(command.KindScreenSetRenderOrder, ipc.RenderOrderPayload{ID: args.ScreenID, IDs: ids}, false)
}

func (s *Server) handleAttachImage(_ context.Context, _ *mcpsdk.CallToolRequest, args AttachImageInput) (*mcpsdk.CallToolResult, AttachImageOutput, error) {
	f, err := os.Open(args.Path)
	if err != nil {
		return nil, AttachImageOutput{}, err
	}
	img, err := png.Decode(f)
	f.Close()
	if err != nil {
		return nil, AttachImageOutput{}, fmt.Errorf("failed to decode %s: %w", args.Path, err)
	}

	dir := s.bufferDir
	if dir == "" {
		if dir, err = runtimepath.BufferDir(); err != nil {
			return nil, AttachImageOutput{}, err
		}
	}
	path, err := shm.Create(dir, strings.TrimSuffix(filepath.Base(args.Path), filepath.Ext(args.Path)), img)
	if err != nil {
		return nil, AttachImageOutput{}, fmt.Errorf("failed to write buffer: %w", err)
	}
	// The daemon keeps its own mapping; the file is not needed afterwards.
	defer os.Remove(path)

	out := AttachImageOutput{
		SurfaceID: args.SurfaceID,
		Width:     img.Bounds().Dx(),
		Height:    img.Bounds().Dy(),
	}
	_, err = s.daemon.Execute(command.KindSurfaceSetNativeContent, ipc.ContentPayload{
		ID:     args.SurfaceID,
		Path:   path,
		Width:  out.Width,
		Height: out.Height,
		Format: "RGBA_8888",
	}, ipc.ExecOptions{})
	if err != nil {
		return nil, AttachImageOutput{}, err
	}
	s.logger.Info("image attached", "surface", args.SurfaceID, "source", args.Path, "width", out.Width, "height", out.Height)
	return nil, out, nil
}

func (s *Server) execute(kind command.Kind, payload any, async bool) (*mcpsdk.CallToolResult, ipc.ExecuteData, error) {
	res, err := s.daemon.Execute(kind, payload, ipc.ExecOptions{Async: async})
	if err != nil {
		s.logger.Warn("command failed", "command", kind, "error", err)
		return nil, ipc.ExecuteData{}, err
	}
	s.logger.Debug("command executed", "command", kind, "result", res.Result)
	return nil, *res, nil
}

// objectKind picks the layer or surface variant of a command.
func objectKind(object string, layer, surface command.Kind) (command.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(object)) {
	case "layer":
		return layer, nil
	case "surface":
		return surface, nil
	default:
		return 0, fmt.Errorf("object must be layer or surface, got %q", object)
	}
}
