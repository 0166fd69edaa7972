package compose

import (
	"errors"
	"fmt"
	"testing"

	"github.com/1broseidon/ivicomp/internal/geometry"
	"github.com/1broseidon/ivicomp/internal/scene"
)

type fakeBackend struct {
	width, height int
	failBind      map[scene.ID]bool
	rejectKeys    func(ShaderKey) bool

	bound    map[scene.ID]int
	shader   *Shader
	quads    []Quad
	draws    [][]Quad
	keys     []ShaderKey
	clears   []geometry.Rect
	presents int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		width:    800,
		height:   480,
		failBind: make(map[scene.ID]bool),
		bound:    make(map[scene.ID]int),
	}
}

func (b *fakeBackend) CompileShader(key ShaderKey) (*Shader, error) {
	if b.rejectKeys != nil && b.rejectKeys(key) {
		return nil, errors.New("unsupported")
	}
	return &Shader{Key: key, Handle: key.String()}, nil
}

func (b *fakeBackend) BeginScreen(scene.ID) (int, int, error) { return b.width, b.height, nil }
func (b *fakeBackend) EndScreen(scene.ID) error                 { b.presents++; return nil }

func (b *fakeBackend) BindSurfaceTexture(s *scene.Surface) bool {
	if b.failBind[s.ID()] {
		return false
	}
	b.bound[s.ID()]++
	return true
}

func (b *fakeBackend) UnbindSurfaceTexture(s *scene.Surface) bool {
	b.bound[s.ID()]--
	return true
}

func (b *fakeBackend) UseShader(p *Shader) error {
	b.shader = p
	return nil
}

func (b *fakeBackend) LoadUniforms(quads []Quad) error {
	b.quads = quads
	return nil
}

func (b *fakeBackend) Draw(geometry.Rect) error {
	b.draws = append(b.draws, b.quads)
	b.keys = append(b.keys, b.shader.Key)
	return nil
}

func (b *fakeBackend) Clear(r geometry.Rect) error {
	b.clears = append(b.clears, r)
	return nil
}

// buildScene puts two half-screen surfaces on one full-screen layer.
func buildScene(format scene.PixelFormat) *scene.Scene {
	sc := scene.New([]scene.ScreenConfig{{ID: 0, Name: "main", Width: 800, Height: 480}})
	sc.Do(func(tx *scene.Tx) {
		l := tx.CreateLayer(1, 0)
		full := geometry.Rect{Width: 800, Height: 480}
		l.SetSourceRegion(full)
		l.SetDestinationRegion(full)
		l.SetVisibility(true)
		for i, x := range []int{0, 400} {
			s := tx.CreateSurface(scene.ID(10+i), 0)
			s.SetNativeContent(fmt.Sprintf("buf%d", i), 400, 480, format)
			s.SetSourceRegion(geometry.Rect{Width: 400, Height: 480})
			s.SetDestinationRegion(geometry.Rect{X: x, Width: 400, Height: 480})
			s.SetVisibility(true)
			l.AddSurface(s)
		}
		tx.SetRenderOrder(tx.Screen(0), []*scene.Layer{l})
	})
	return sc
}

func newTestEngine(t *testing.T, b *fakeBackend, opts Options) *Engine {
	t.Helper()
	e, err := NewEngine(b, opts, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestFrame_DrawsAndCleansScene(t *testing.T) {
	sc := buildScene(scene.PixelFormatRGB888)
	b := newFakeBackend()
	e := newTestEngine(t, b, DefaultOptions())

	var n int
	sc.Do(func(tx *scene.Tx) {
		var err error
		n, err = e.Frame(tx, false)
		if err != nil {
			t.Fatalf("Frame: %v", err)
		}
	})
	if n != 1 || b.presents != 1 {
		t.Fatalf("expected one composed screen, got %d (presents %d)", n, b.presents)
	}
	if len(b.draws) != 2 {
		t.Fatalf("expected two draws, got %d", len(b.draws))
	}
	// Full coverage by the first layer skips the full-screen clear, and
	// opaque surfaces need no per-region clear.
	if len(b.clears) != 0 {
		t.Fatalf("expected no clears, got %v", b.clears)
	}
	for id, n := range b.bound {
		if n != 0 {
			t.Fatalf("surface %d left bound (%d)", id, n)
		}
	}

	sc.Do(func(tx *scene.Tx) {
		s := tx.Surface(10)
		if s.Dirty() || s.Damaged() {
			t.Fatalf("expected surface clean after frame")
		}
		if s.DrawCounter() != 1 || s.FrameCounter() != 1 {
			t.Fatalf("unexpected counters draw=%d frame=%d", s.DrawCounter(), s.FrameCounter())
		}
		if NeedsRedraw(tx, tx.Screen(0)) {
			t.Fatalf("expected nothing to redraw")
		}
		if n, _ := e.Frame(tx, false); n != 0 {
			t.Fatalf("expected clean scene to skip composition")
		}
		tx.Surface(11).Damage()
		if !NeedsRedraw(tx, tx.Screen(0)) {
			t.Fatalf("expected damage to need a redraw")
		}
	})
}

func TestFrame_OverlapIsBatched(t *testing.T) {
	sc := buildScene(scene.PixelFormatRGBA8888)
	sc.Do(func(tx *scene.Tx) {
		tx.Surface(11).SetDestinationRegion(geometry.Rect{X: 200, Width: 400, Height: 480})
	})
	b := newFakeBackend()
	e := newTestEngine(t, b, DefaultOptions())
	sc.Do(func(tx *scene.Tx) { e.Frame(tx, false) })

	batched := 0
	for i, quads := range b.draws {
		if len(quads) == 2 {
			batched++
			if b.keys[i].Count() != 2 || !b.keys[i].Blend() {
				t.Fatalf("unexpected batch key %s", b.keys[i])
			}
			if quads[0].Item.Surface.ID() != 10 || quads[1].Item.Surface.ID() != 11 {
				t.Fatalf("expected back-to-front quads")
			}
		}
	}
	if batched != 1 || e.Stats().BatchedDraws != 1 {
		t.Fatalf("expected one batched draw, got %d", batched)
	}
}

func TestFrame_ForceOffNeverBatches(t *testing.T) {
	sc := buildScene(scene.PixelFormatRGBA8888)
	sc.Do(func(tx *scene.Tx) {
		tx.Surface(11).SetDestinationRegion(geometry.Rect{X: 200, Width: 400, Height: 480})
	})
	b := newFakeBackend()
	opts := DefaultOptions()
	opts.Multitexture = ForceOff
	e := newTestEngine(t, b, opts)
	sc.Do(func(tx *scene.Tx) { e.Frame(tx, false) })
	for _, quads := range b.draws {
		if len(quads) != 1 {
			t.Fatalf("expected single-surface draws only")
		}
	}
	if len(b.draws) != 4 {
		t.Fatalf("expected four draws (two in the overlap), got %d", len(b.draws))
	}
}

func TestFrame_RotatedLayerDisablesBatching(t *testing.T) {
	sc := buildScene(scene.PixelFormatRGBA8888)
	sc.Do(func(tx *scene.Tx) {
		tx.Surface(11).SetDestinationRegion(geometry.Rect{X: 200, Width: 400, Height: 480})
		tx.Layer(1).SetOrientation(scene.Ninety)
	})
	b := newFakeBackend()
	e := newTestEngine(t, b, DefaultOptions())
	sc.Do(func(tx *scene.Tx) { e.Frame(tx, false) })
	if e.Stats().BatchedDraws != 0 {
		t.Fatalf("rotated content must not be batched")
	}
}

func TestFrame_BindFailureAbortsRegion(t *testing.T) {
	sc := buildScene(scene.PixelFormatRGBA8888)
	sc.Do(func(tx *scene.Tx) {
		tx.Surface(11).SetDestinationRegion(geometry.Rect{X: 200, Width: 400, Height: 480})
	})
	b := newFakeBackend()
	b.failBind[10] = true
	opts := DefaultOptions()
	opts.Multitexture = ForceOff
	e := newTestEngine(t, b, opts)

	sc.Do(func(tx *scene.Tx) {
		if _, err := e.Frame(tx, false); err != nil {
			t.Fatalf("bind failures must not fail the frame: %v", err)
		}
		// The scene stays consistent and is still marked clean.
		if tx.Surface(10).ContainingLayerID() != 1 || tx.Surface(10).Dirty() {
			t.Fatalf("unexpected scene state after failed draw")
		}
	})
	// Regions: [0,200) has surface 10 only, [200,400) has 10 and 11,
	// [400,600) has 11 only. Only the last one can be drawn.
	if len(b.draws) != 1 || b.draws[0][0].Item.Surface.ID() != 11 {
		t.Fatalf("expected only the region without surface 10 drawn, got %d draws", len(b.draws))
	}
	if e.Stats().BindFailures != 2 {
		t.Fatalf("expected two bind failures, got %d", e.Stats().BindFailures)
	}
	for id, n := range b.bound {
		if n != 0 {
			t.Fatalf("surface %d left bound (%d)", id, n)
		}
	}
}

func TestFrame_MissingShaderFallsBack(t *testing.T) {
	sc := buildScene(scene.PixelFormatRGBA8888)
	sc.Do(func(tx *scene.Tx) {
		tx.Surface(11).SetDestinationRegion(geometry.Rect{X: 200, Width: 400, Height: 480})
	})
	b := newFakeBackend()
	b.rejectKeys = func(k ShaderKey) bool { return k.Count() == 2 && k != default2Key }
	e := newTestEngine(t, b, DefaultOptions())
	sc.Do(func(tx *scene.Tx) { e.Frame(tx, false) })

	if e.Stats().ShaderFallbacks == 0 {
		t.Fatalf("expected a logged fallback")
	}
	found := false
	for i, quads := range b.draws {
		if len(quads) == 2 {
			found = true
			if b.keys[i] != default2Key {
				t.Fatalf("expected default 2-surface shader, got %s", b.keys[i])
			}
		}
	}
	if !found {
		t.Fatalf("region must still be drawn")
	}
}

func TestFrame_LowCoverageClearsScreen(t *testing.T) {
	sc := buildScene(scene.PixelFormatRGB888)
	sc.Do(func(tx *scene.Tx) {
		tx.Surface(11).SetVisibility(false)
	})
	b := newFakeBackend()
	e := newTestEngine(t, b, DefaultOptions())
	sc.Do(func(tx *scene.Tx) { e.Frame(tx, false) })
	if len(b.clears) != 1 || b.clears[0] != (geometry.Rect{Width: 800, Height: 480}) {
		t.Fatalf("expected one full-screen clear, got %v", b.clears)
	}

	b2 := newFakeBackend()
	opts := DefaultOptions()
	opts.SkipClear = ForceOn
	e2 := newTestEngine(t, b2, opts)
	sc.Do(func(tx *scene.Tx) { e2.Frame(tx, true) })
	if len(b2.clears) != 1 || b2.clears[0] != (geometry.Rect{X: 400, Width: 400, Height: 480}) {
		t.Fatalf("expected only the background cell cleared, got %v", b2.clears)
	}
}

func TestFrame_ForcedScreen(t *testing.T) {
	sc := buildScene(scene.PixelFormatRGB888)
	b := newFakeBackend()
	e := newTestEngine(t, b, DefaultOptions())
	sc.Do(func(tx *scene.Tx) {
		e.Frame(tx, false)
		tx.Screen(0).ForceComposition()
		if n, _ := e.Frame(tx, false); n != 1 {
			t.Fatalf("expected forced screen to be composed")
		}
		if n, _ := e.Frame(tx, false); n != 0 {
			t.Fatalf("force must be consumed")
		}
	})
}

func TestNewEngine_NoDefaultShaderFails(t *testing.T) {
	b := newFakeBackend()
	b.rejectKeys = func(ShaderKey) bool { return true }
	if _, err := NewEngine(b, DefaultOptions(), nil); err == nil {
		t.Fatalf("expected error without default shaders")
	}
}

func TestShaderKey_Packing(t *testing.T) {
	k := NewShaderKey(true, SurfaceFlags{Alpha: true}, SurfaceFlags{Transparent: true, ChromaKey: true})
	if k.Count() != 2 || !k.Blend() {
		t.Fatalf("unexpected header %s", k)
	}
	if k != ShaderKey(2|1<<3|1<<5|1<<7|1<<9) {
		t.Fatalf("unexpected bits %b", k)
	}
	if k.Surface(0) != (SurfaceFlags{Alpha: true}) || k.Surface(1) != (SurfaceFlags{Transparent: true, ChromaKey: true}) {
		t.Fatalf("unexpected flags %s", k)
	}
	if len(PrecomputedKeys(1)) != 17 {
		t.Fatalf("expected clear plus 16 single-surface keys, got %d", len(PrecomputedKeys(1)))
	}
	if len(PrecomputedKeys(2)) != 17+32 {
		t.Fatalf("unexpected key count for batch limit 2: %d", len(PrecomputedKeys(2)))
	}
}

func TestSubTexCoords(t *testing.T) {
	tex := [4]float64{0, 0, 1, 1}
	dest := geometry.Rect{Width: 100, Height: 100}
	left := geometry.Rect{Width: 50, Height: 100}
	if got := SubTexCoords(tex, dest, left, scene.Zero); got != [4]float64{0, 0, 0.5, 1} {
		t.Fatalf("unexpected coords %v", got)
	}
	if got := SubTexCoords(tex, dest, left, scene.OneEighty); got != [4]float64{0.5, 0, 1, 1} {
		t.Fatalf("unexpected rotated coords %v", got)
	}
	// The left half of a quarter-turned image is the bottom of the source.
	if got := SubTexCoords(tex, dest, left, scene.Ninety); got != [4]float64{0, 0.5, 1, 1} {
		t.Fatalf("unexpected 90 degree coords %v", got)
	}
}

func TestParseOptimizationMode(t *testing.T) {
	for _, m := range []OptimizationMode{Heuristic, ForceOn, ForceOff, Toggle} {
		got, err := ParseOptimizationMode(m.String())
		if err != nil || got != m {
			t.Fatalf("round trip %s: %v %v", m, got, err)
		}
	}
	if _, err := ParseOptimizationMode("sometimes"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNeedsRedraw_IgnoresDamageOnHiddenLayer(t *testing.T) {
	sc := buildScene(scene.PixelFormatRGBA8888)
	e := newTestEngine(t, newFakeBackend(), DefaultOptions())
	sc.Do(func(tx *scene.Tx) {
		e.Frame(tx, false)
		tx.Layer(1).SetVisibility(false)
		if !NeedsRedraw(tx, tx.Screen(0)) {
			t.Fatalf("expected hiding the layer to need a redraw")
		}
		if n, _ := e.Frame(tx, false); n != 1 {
			t.Fatalf("expected the screen recomposed once, got %d", n)
		}

		tx.Surface(11).Damage()
		if NeedsRedraw(tx, tx.Screen(0)) {
			t.Fatalf("expected damage on a hidden layer not to need a redraw")
		}
		tx.Layer(1).SetVisibility(true)
		if !NeedsRedraw(tx, tx.Screen(0)) {
			t.Fatalf("expected showing the layer to need a redraw")
		}
	})
}
