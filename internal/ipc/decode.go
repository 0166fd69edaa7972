package ipc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/1broseidon/ivicomp/internal/command"
	"github.com/1broseidon/ivicomp/internal/geometry"
	"github.com/1broseidon/ivicomp/internal/scene"
)

// decodePayload strictly decodes a request payload into out.
func decodePayload(payload json.RawMessage, out any) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		return fmt.Errorf("payload is required")
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

func createID(id *uint32) scene.ID {
	if id == nil {
		return scene.InvalidID
	}
	return scene.ID(*id)
}

func rect(p RectPayload) geometry.Rect {
	return geometry.Rect{X: p.X, Y: p.Y, Width: p.Width, Height: p.Height}
}

func chromaKey(p ChromaKeyPayload) scene.ChromaKey {
	return scene.ChromaKey{Enabled: p.Enabled, R: p.R, G: p.G, B: p.B}
}

// DecodeCommand builds the command of the given kind from a request
// payload. surface.set_content is not decoded here: it needs a buffer
// opened by the server.
func DecodeCommand(kind command.Kind, payload json.RawMessage, base command.Base) (command.Command, error) {
	switch kind {
	case command.KindLayerCreate:
		var p CreatePayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		return &command.LayerCreate{Base: base, LayerID: createID(p.ID), Width: p.Width, Height: p.Height}, nil
	case command.KindSurfaceCreate:
		var p CreatePayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		return &command.SurfaceCreate{Base: base, SurfaceID: createID(p.ID)}, nil

	case command.KindLayerRemove, command.KindSurfaceRemove, command.KindSurfaceRemoveNativeContent, command.KindSurfaceDamage:
		var p IDPayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		id := scene.ID(p.ID)
		switch kind {
		case command.KindLayerRemove:
			return &command.LayerRemove{Base: base, LayerID: id}, nil
		case command.KindSurfaceRemove:
			return &command.SurfaceRemove{Base: base, SurfaceID: id}, nil
		case command.KindSurfaceRemoveNativeContent:
			return &command.SurfaceRemoveNativeContent{Base: base, SurfaceID: id}, nil
		default:
			return &command.SurfaceDamage{Base: base, SurfaceID: id}, nil
		}

	case command.KindLayerSetSourceRectangle, command.KindLayerSetDestinationRectangle,
		command.KindLayerSetPosition, command.KindLayerSetDimension,
		command.KindSurfaceSetSourceRectangle, command.KindSurfaceSetDestinationRectangle,
		command.KindSurfaceSetPosition, command.KindSurfaceSetDimension:
		var p RectPayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		return decodeGeometry(kind, p, base), nil

	case command.KindLayerSetOpacity, command.KindSurfaceSetOpacity:
		var p OpacityPayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		if p.Opacity < 0 || p.Opacity > 1 {
			return nil, fmt.Errorf("opacity must be between 0 and 1 (got %g)", p.Opacity)
		}
		if kind == command.KindLayerSetOpacity {
			return &command.LayerSetOpacity{Base: base, LayerID: scene.ID(p.ID), Opacity: p.Opacity}, nil
		}
		return &command.SurfaceSetOpacity{Base: base, SurfaceID: scene.ID(p.ID), Opacity: p.Opacity}, nil

	case command.KindLayerSetOrientation, command.KindSurfaceSetOrientation:
		var p OrientationPayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		o, err := scene.ParseOrientation(p.Degrees)
		if err != nil {
			return nil, err
		}
		if kind == command.KindLayerSetOrientation {
			return &command.LayerSetOrientation{Base: base, LayerID: scene.ID(p.ID), Orientation: o}, nil
		}
		return &command.SurfaceSetOrientation{Base: base, SurfaceID: scene.ID(p.ID), Orientation: o}, nil

	case command.KindLayerSetVisibility, command.KindSurfaceSetVisibility:
		var p VisibilityPayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		if kind == command.KindLayerSetVisibility {
			return &command.LayerSetVisibility{Base: base, LayerID: scene.ID(p.ID), Visible: p.Visible}, nil
		}
		return &command.SurfaceSetVisibility{Base: base, SurfaceID: scene.ID(p.ID), Visible: p.Visible}, nil

	case command.KindLayerSetChromaKey, command.KindSurfaceSetChromaKey:
		var p ChromaKeyPayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		if kind == command.KindLayerSetChromaKey {
			return &command.LayerSetChromaKey{Base: base, LayerID: scene.ID(p.ID), Key: chromaKey(p)}, nil
		}
		return &command.SurfaceSetChromaKey{Base: base, SurfaceID: scene.ID(p.ID), Key: chromaKey(p)}, nil

	case command.KindLayerSetType:
		var p LayerTypePayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		t, err := scene.ParseLayerType(p.Type)
		if err != nil {
			return nil, err
		}
		return &command.LayerSetType{Base: base, LayerID: scene.ID(p.ID), LayerType: t}, nil

	case command.KindLayerSetRenderOrder, command.KindScreenSetRenderOrder:
		var p RenderOrderPayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		if kind == command.KindLayerSetRenderOrder {
			return &command.LayerSetRenderOrder{Base: base, LayerID: scene.ID(p.ID), SurfaceIDs: sceneIDs(p.IDs)}, nil
		}
		return &command.ScreenSetRenderOrder{Base: base, ScreenID: scene.ID(p.ID), LayerIDs: sceneIDs(p.IDs)}, nil

	case command.KindLayerAddSurface, command.KindLayerRemoveSurface:
		var p MembershipPayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		if kind == command.KindLayerAddSurface {
			return &command.LayerAddSurface{Base: base, LayerID: scene.ID(p.LayerID), SurfaceID: scene.ID(p.SurfaceID)}, nil
		}
		return &command.LayerRemoveSurface{Base: base, LayerID: scene.ID(p.LayerID), SurfaceID: scene.ID(p.SurfaceID)}, nil

	case command.KindLayerAddNotification, command.KindLayerRemoveNotification,
		command.KindSurfaceAddNotification, command.KindSurfaceRemoveNotification:
		var p NotificationPayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		id, client := scene.ID(p.ID), scene.ClientHandle(p.Client)
		switch kind {
		case command.KindLayerAddNotification:
			return &command.LayerAddNotification{Base: base, LayerID: id, Client: client}, nil
		case command.KindLayerRemoveNotification:
			return &command.LayerRemoveNotification{Base: base, LayerID: id, Client: client}, nil
		case command.KindSurfaceAddNotification:
			return &command.SurfaceAddNotification{Base: base, SurfaceID: id, Client: client}, nil
		default:
			return &command.SurfaceRemoveNotification{Base: base, SurfaceID: id, Client: client}, nil
		}

	case command.KindSurfaceSetNativeContent:
		return nil, fmt.Errorf("%s needs a buffer and is handled by the server", kind)
	}
	return nil, fmt.Errorf("unknown command kind %s", kind)
}

func decodeGeometry(kind command.Kind, p RectPayload, base command.Base) command.Command {
	id := scene.ID(p.ID)
	switch kind {
	case command.KindLayerSetSourceRectangle:
		return &command.LayerSetSourceRectangle{Base: base, LayerID: id, Rect: rect(p)}
	case command.KindLayerSetDestinationRectangle:
		return &command.LayerSetDestinationRectangle{Base: base, LayerID: id, Rect: rect(p)}
	case command.KindLayerSetPosition:
		return &command.LayerSetPosition{Base: base, LayerID: id, X: p.X, Y: p.Y}
	case command.KindLayerSetDimension:
		return &command.LayerSetDimension{Base: base, LayerID: id, Width: p.Width, Height: p.Height}
	case command.KindSurfaceSetSourceRectangle:
		return &command.SurfaceSetSourceRectangle{Base: base, SurfaceID: id, Rect: rect(p)}
	case command.KindSurfaceSetDestinationRectangle:
		return &command.SurfaceSetDestinationRectangle{Base: base, SurfaceID: id, Rect: rect(p)}
	case command.KindSurfaceSetPosition:
		return &command.SurfaceSetPosition{Base: base, SurfaceID: id, X: p.X, Y: p.Y}
	default:
		return &command.SurfaceSetDimension{Base: base, SurfaceID: id, Width: p.Width, Height: p.Height}
	}
}
