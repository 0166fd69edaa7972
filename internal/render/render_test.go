package render

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/1broseidon/ivicomp/internal/command"
	"github.com/1broseidon/ivicomp/internal/compose"
	"github.com/1broseidon/ivicomp/internal/geometry"
	"github.com/1broseidon/ivicomp/internal/scene"
)

var (
	red   = color.RGBA{R: 0xff, A: 0xff}
	blue  = color.RGBA{B: 0xff, A: 0xff}
	black = color.RGBA{A: 0xff}
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

type harness struct {
	scene    *scene.Scene
	disp     *command.Dispatcher
	loop     *Loop
	headless *Headless
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	screens := []scene.ScreenConfig{{ID: 0, Name: "test", Width: 40, Height: 20}}
	sc := scene.New(screens)
	headless := NewHeadless()
	backend := NewSoftware(screens, headless, black)
	engine, err := compose.NewEngine(backend, compose.DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	h := &harness{scene: sc, headless: headless}
	h.disp = command.NewDispatcher(sc, nil, nil)
	h.loop = NewLoop(sc, engine, LoopConfig{FPS: 30, BeforeFrame: h.disp.Flush})
	return h
}

func (h *harness) run(t *testing.T, cmds ...command.Command) {
	t.Helper()
	for _, c := range cmds {
		if res := h.disp.Dispatch(c); !res.Succeeded() {
			t.Fatalf("%s: %s", c, res)
		}
	}
}

func (h *harness) frame(t *testing.T) *image.RGBA {
	t.Helper()
	h.loop.Frame()
	img, ok := h.headless.Frame(0)
	if !ok {
		t.Fatalf("no frame presented")
	}
	return img
}

func (h *harness) twoSurfaceScene(t *testing.T) {
	t.Helper()
	p := command.Sync(1)
	h.run(t,
		&command.LayerCreate{Base: p, LayerID: 1, Width: 40, Height: 20},
		&command.LayerSetVisibility{Base: p, LayerID: 1, Visible: true},
		&command.SurfaceCreate{Base: p, SurfaceID: 10},
		&command.SurfaceSetNativeContent{Base: p, SurfaceID: 10, Content: solid(20, 20, red), Width: 20, Height: 20, PixelFormat: scene.PixelFormatRGBA8888},
		&command.SurfaceSetVisibility{Base: p, SurfaceID: 10, Visible: true},
		&command.SurfaceCreate{Base: p, SurfaceID: 11},
		&command.SurfaceSetNativeContent{Base: p, SurfaceID: 11, Content: solid(20, 20, blue), Width: 20, Height: 20, PixelFormat: scene.PixelFormatRGBA8888},
		&command.SurfaceSetPosition{Base: p, SurfaceID: 11, X: 20, Y: 0},
		&command.SurfaceSetVisibility{Base: p, SurfaceID: 11, Visible: true},
		&command.LayerSetRenderOrder{Base: p, LayerID: 1, SurfaceIDs: []scene.ID{10, 11}},
		&command.ScreenSetRenderOrder{Base: p, ScreenID: 0, LayerIDs: []scene.ID{1}},
	)
}

func TestSoftware_ComposesSurfaces(t *testing.T) {
	h := newHarness(t)
	h.twoSurfaceScene(t)
	img := h.frame(t)
	if got := img.RGBAAt(5, 5); got != red {
		t.Fatalf("expected red on the left, got %v", got)
	}
	if got := img.RGBAAt(35, 15); got != blue {
		t.Fatalf("expected blue on the right, got %v", got)
	}
}

func TestSoftware_LayerCropping(t *testing.T) {
	h := newHarness(t)
	h.twoSurfaceScene(t)
	// Show only the right half of the layer, stretched over the screen.
	h.run(t, &command.LayerSetSourceRectangle{Base: command.Sync(1), LayerID: 1, Rect: geometry.Rect{X: 20, Width: 20, Height: 20}})
	img := h.frame(t)
	if got := img.RGBAAt(5, 5); got != blue {
		t.Fatalf("expected blue after cropping, got %v", got)
	}
}

func TestSoftware_OpacityBlends(t *testing.T) {
	h := newHarness(t)
	h.twoSurfaceScene(t)
	h.run(t, &command.SurfaceSetOpacity{Base: command.Sync(1), SurfaceID: 10, Opacity: 0.5})
	img := h.frame(t)
	got := img.RGBAAt(5, 5)
	if got.R < 0x70 || got.R > 0x90 || got.G != 0 || got.B != 0 {
		t.Fatalf("expected half red over black, got %v", got)
	}
}

func TestSoftware_ChromaKey(t *testing.T) {
	h := newHarness(t)
	h.twoSurfaceScene(t)
	h.run(t,
		&command.SurfaceSetPosition{Base: command.Sync(1), SurfaceID: 11, X: 0, Y: 0},
		&command.SurfaceSetChromaKey{Base: command.Sync(1), SurfaceID: 11, Key: scene.ChromaKey{Enabled: true, B: 0xff}},
	)
	img := h.frame(t)
	if got := img.RGBAAt(5, 5); got != red {
		t.Fatalf("expected keyed-out blue to show red, got %v", got)
	}
}

func TestSoftware_HiddenSurfaceClears(t *testing.T) {
	h := newHarness(t)
	h.twoSurfaceScene(t)
	h.frame(t)
	h.run(t, &command.SurfaceSetVisibility{Base: command.Sync(1), SurfaceID: 11, Visible: false})
	img := h.frame(t)
	if got := img.RGBAAt(35, 15); got != black {
		t.Fatalf("expected background where the hidden surface was, got %v", got)
	}
}

func TestSoftware_Rotation(t *testing.T) {
	h := newHarness(t)
	p := command.Sync(1)
	src := solid(20, 10, red)
	// Top half of the source is blue.
	draw.Draw(src, image.Rect(0, 0, 20, 5), &image.Uniform{C: blue}, image.Point{}, draw.Src)
	h.run(t,
		&command.LayerCreate{Base: p, LayerID: 1, Width: 40, Height: 20},
		&command.LayerSetVisibility{Base: p, LayerID: 1, Visible: true},
		&command.SurfaceCreate{Base: p, SurfaceID: 10},
		&command.SurfaceSetNativeContent{Base: p, SurfaceID: 10, Content: src, Width: 20, Height: 10, PixelFormat: scene.PixelFormatRGBA8888},
		&command.SurfaceSetDestinationRectangle{Base: p, SurfaceID: 10, Rect: geometry.Rect{Width: 10, Height: 20}},
		&command.SurfaceSetOrientation{Base: p, SurfaceID: 10, Orientation: scene.Ninety},
		&command.SurfaceSetVisibility{Base: p, SurfaceID: 10, Visible: true},
		&command.LayerAddSurface{Base: p, LayerID: 1, SurfaceID: 10},
		&command.ScreenSetRenderOrder{Base: p, ScreenID: 0, LayerIDs: []scene.ID{1}},
	)
	img := h.frame(t)
	// Turned clockwise, the top of the source ends up on the right.
	if got := img.RGBAAt(8, 10); got != blue {
		t.Fatalf("expected blue on the right edge, got %v", got)
	}
	if got := img.RGBAAt(1, 10); got != red {
		t.Fatalf("expected red on the left edge, got %v", got)
	}
}

func TestLoop_AsyncCommandsAppliedBeforeFrame(t *testing.T) {
	h := newHarness(t)
	h.twoSurfaceScene(t)
	h.frame(t)
	h.disp.Dispatch(&command.SurfaceSetVisibility{Base: command.Async(1), SurfaceID: 10, Visible: false})
	img := h.frame(t)
	if got := img.RGBAAt(5, 5); got != black {
		t.Fatalf("expected queued hide applied, got %v", got)
	}
	if ticks, _ := h.loop.Frames(); ticks != 2 {
		t.Fatalf("expected two frames, got %d", ticks)
	}
}

func TestSoftware_UnboundContentAbortsDraw(t *testing.T) {
	b := NewSoftware([]scene.ScreenConfig{{ID: 0, Width: 4, Height: 4}}, nil, black)
	sc := scene.New(nil)
	sc.Do(func(tx *scene.Tx) {
		s := tx.CreateSurface(1, 0)
		s.SetNativeContent("not an image", 4, 4, scene.PixelFormatRGBA8888)
		if b.BindSurfaceTexture(s) {
			t.Fatalf("expected bind to fail for unknown content")
		}
	})
}
