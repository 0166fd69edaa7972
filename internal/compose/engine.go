// Package compose turns the scene into draw calls once per frame.
//
// For every screen that needs a redraw the Engine resolves the visible
// surfaces through the viewport pipeline, partitions the screen into
// regions with ComputeRegions, and draws each region either as one
// multi-texture batch or one surface at a time.
package compose

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/1broseidon/ivicomp/internal/geometry"
	"github.com/1broseidon/ivicomp/internal/scene"
)

// Backend is the graphics capability the engine draws through.
type Backend interface {
	ShaderCompiler

	// BeginScreen selects the render target of a screen and returns its
	// size in pixels.
	BeginScreen(screenID scene.ID) (width, height int, err error)
	// EndScreen presents what was drawn since BeginScreen.
	EndScreen(screenID scene.ID) error

	BindSurfaceTexture(s *scene.Surface) bool
	UnbindSurfaceTexture(s *scene.Surface) bool
	UseShader(p *Shader) error
	LoadUniforms(quads []Quad) error
	// Draw renders the loaded quads with the current shader, limited to r.
	Draw(r geometry.Rect) error
	// Clear fills r with the background.
	Clear(r geometry.Rect) error
}

// Item is one visible surface after the viewport pipeline, in screen
// coordinates.
type Item struct {
	Surface *scene.Surface
	Layer   *scene.Layer
	// Destination is the full on-screen rectangle, possibly extending past
	// the screen.
	Destination geometry.Rect
	// TexCoords maps Destination to the surface buffer as u0, v0, u1, v1.
	TexCoords   [4]float64
	Opacity     float64
	Orientation scene.Orientation
	ChromaKey   scene.ChromaKey
	Flags       SurfaceFlags
}

// Quad is the part of an item that falls into one region.
type Quad struct {
	Item        *Item
	Destination geometry.Rect
	TexCoords   [4]float64
}

// Options tune the engine.
type Options struct {
	// BatchLimit is the most surfaces one multi-texture draw combines.
	BatchLimit         int
	Multitexture       OptimizationMode
	SkipClear          OptimizationMode
	SkipClearThreshold float64
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		BatchLimit:         MaxBatch,
		Multitexture:       Heuristic,
		SkipClear:          Heuristic,
		SkipClearThreshold: 0.9,
	}
}

// Stats counts what the engine did.
type Stats struct {
	Frames          uint64
	ScreensComposed uint64
	Regions         uint64
	Draws           uint64
	BatchedDraws    uint64
	BindFailures    uint64
	ShaderFallbacks int
}

// Engine composites a scene through a Backend. It is not safe for
// concurrent use; one render goroutine owns it.
type Engine struct {
	backend Backend
	shaders *ShaderCache
	opts    Options
	logger  *slog.Logger

	frame uint64
	stats Stats
	drawn map[*scene.Surface]struct{}
}

// NewEngine compiles the shader cache and returns an engine.
func NewEngine(b Backend, opts Options, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.BatchLimit < 1 || opts.BatchLimit > MaxBatch {
		return nil, fmt.Errorf("batch limit %d out of range 1..%d", opts.BatchLimit, MaxBatch)
	}
	shaders, err := NewShaderCache(b, opts.BatchLimit, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("shader cache ready", "programs", shaders.Len(), "batch_limit", opts.BatchLimit)
	return &Engine{
		backend: b,
		shaders: shaders,
		opts:    opts,
		logger:  logger,
		drawn:   make(map[*scene.Surface]struct{}),
	}, nil
}

// Stats returns the engine counters.
func (e *Engine) Stats() Stats {
	st := e.stats
	st.ShaderFallbacks = e.shaders.Fallbacks()
	return st
}

// NeedsRedraw reports whether anything composited on sc is dirty. It does
// not consider forced composition.
func NeedsRedraw(tx *scene.Tx, sc *scene.Screen) bool {
	for _, l := range tx.RenderOrderLayers(sc) {
		if l.RenderPropertyChanged() {
			return true
		}
		// Content changes on a hidden layer show up once it is shown,
		// which is itself a render property change.
		if !l.Visible() {
			continue
		}
		for _, s := range tx.LayerSurfaces(l) {
			if s.Dirty() {
				return true
			}
		}
	}
	return false
}

// Frame composites every screen that is dirty or forced, or every screen
// when force is set, and then marks what it drew as clean. It returns the
// number of screens composed. tx must stay valid for the whole call.
func (e *Engine) Frame(tx *scene.Tx, force bool) (int, error) {
	e.frame++
	e.stats.Frames++

	var (
		composed []*scene.Screen
		errs     []error
	)
	for _, sc := range tx.Screens() {
		forced := sc.TakeForcedComposition() || force
		if !forced && !NeedsRedraw(tx, sc) {
			continue
		}
		if err := e.composeScreen(tx, sc); err != nil {
			errs = append(errs, fmt.Errorf("screen %d: %w", sc.ID(), err))
			continue
		}
		composed = append(composed, sc)
	}

	for _, sc := range composed {
		for _, l := range tx.RenderOrderLayers(sc) {
			l.ClearRenderPropertyChanged()
			for _, s := range tx.LayerSurfaces(l) {
				if _, ok := e.drawn[s]; ok {
					s.CountDraw(s.Damaged())
				}
				s.ClearRenderPropertyChanged()
				s.ClearDamage()
			}
		}
	}
	clear(e.drawn)
	e.stats.ScreensComposed += uint64(len(composed))
	return len(composed), errors.Join(errs...)
}

// Collect resolves the visible surfaces of sc, back to front, in screen
// coordinates. Surfaces cropped away entirely are skipped.
func Collect(tx *scene.Tx, sc *scene.Screen, screen geometry.Rect) []*Item {
	var items []*Item
	for _, l := range tx.RenderOrderLayers(sc) {
		if !l.Visible() || l.Opacity() <= 0 {
			continue
		}
		lsrc := l.SourceRegion()
		ldst := l.DestinationRegion().Float()
		for _, s := range tx.LayerSurfaces(l) {
			if !s.Renderable() {
				continue
			}
			sdst := s.DestinationRegion()
			if geometry.IsFullyCropped(sdst, lsrc) {
				continue
			}
			src := s.SourceRegion().Float()
			dst := sdst.Float()
			geometry.ApplyLayerSource(lsrc.Float(), &src, &dst)
			geometry.ApplyLayerDestination(ldst, lsrc.Float(), &dst)
			onScreen := dst.Round()
			if onScreen.Intersect(screen).Empty() {
				continue
			}

			key := s.ChromaKey()
			if !key.Enabled {
				key = l.ChromaKey()
			}
			opacity := l.Opacity() * s.Opacity()
			items = append(items, &Item{
				Surface:     s,
				Layer:       l,
				Destination: onScreen,
				TexCoords:   geometry.TextureCoordinates(src, float64(s.OriginalSourceWidth()), float64(s.OriginalSourceHeight())),
				Opacity:     opacity,
				Orientation: (l.Orientation() + s.Orientation()) % 4,
				ChromaKey:   key,
				Flags: SurfaceFlags{
					Transparent: opacity < 1,
					Alpha:       s.PixelFormat().HasAlphaChannel(),
					ChromaKey:   key.Enabled,
				},
			})
		}
	}
	return items
}

func (e *Engine) composeScreen(tx *scene.Tx, sc *scene.Screen) error {
	w, h, err := e.backend.BeginScreen(sc.ID())
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	screen := geometry.Rect{Width: w, Height: h}
	items := Collect(tx, sc, screen)
	rects := make([]geometry.Rect, len(items))
	for i, it := range items {
		rects[i] = it.Destination
	}

	skipClear := e.useSkipClear(screen, items)
	if !skipClear {
		e.clear(screen)
	}
	regions := ComputeRegions(screen, rects, skipClear)
	for _, r := range regions {
		e.drawRegion(r, items, skipClear)
	}
	e.stats.Regions += uint64(len(regions))

	if err := e.backend.EndScreen(sc.ID()); err != nil {
		return fmt.Errorf("present: %w", err)
	}
	return nil
}

// useSkipClear decides whether the screen is cleared region by region
// instead of all at once.
func (e *Engine) useSkipClear(screen geometry.Rect, items []*Item) bool {
	var first []geometry.Rect
	for _, it := range items {
		if it.Layer != items[0].Layer {
			break
		}
		first = append(first, it.Destination)
	}
	heuristic := len(first) > 0 && coverageRatio(screen, first) >= e.opts.SkipClearThreshold
	return e.opts.SkipClear.decide(heuristic, e.frame)
}

func (e *Engine) clear(r geometry.Rect) {
	p, _ := e.shaders.Lookup(defaultClearKey)
	if err := e.backend.UseShader(p); err != nil {
		e.logger.Error("use clear shader", "error", err)
		return
	}
	if err := e.backend.Clear(r); err != nil {
		e.logger.Error("clear", "rect", r.String(), "error", err)
	}
}

func (e *Engine) drawRegion(r Region, all []*Item, clearedPerRegion bool) {
	if len(r.Items) == 0 {
		if clearedPerRegion {
			e.clear(r.Rect)
		}
		return
	}
	items := make([]*Item, len(r.Items))
	for i, idx := range r.Items {
		items[i] = all[idx]
	}
	// The bottom surface blends with the background, which must exist.
	if clearedPerRegion && items[0].Flags.NeedsBlend() {
		e.clear(r.Rect)
	}

	batch := len(items) <= e.opts.BatchLimit && canMultitexture(items) &&
		e.opts.Multitexture.decide(len(items) >= 2, e.frame)
	if batch && e.drawBatch(r.Rect, items) {
		return
	}
	for _, it := range items {
		if !e.drawSingle(r.Rect, it) {
			return
		}
	}
}

// drawBatch draws items in one call. It returns false when the caller
// should draw the items one by one instead; a bind failure returns true
// because the region is abandoned.
func (e *Engine) drawBatch(rect geometry.Rect, items []*Item) bool {
	blend := false
	flags := make([]SurfaceFlags, len(items))
	for i, it := range items {
		flags[i] = it.Flags
		blend = blend || it.Flags.Transparent || it.Flags.Alpha
	}
	p, exact := e.shaders.Lookup(NewShaderKey(blend, flags...))
	if !exact && p.Key.Count() != len(items) {
		return false
	}

	for i, it := range items {
		if !e.backend.BindSurfaceTexture(it.Surface) {
			e.stats.BindFailures++
			e.logger.Error("bind surface texture failed, region aborted",
				"surface", it.Surface.ID(), "region", rect.String())
			for _, bound := range items[:i] {
				e.backend.UnbindSurfaceTexture(bound.Surface)
			}
			return true
		}
	}
	defer func() {
		for _, it := range items {
			e.backend.UnbindSurfaceTexture(it.Surface)
		}
	}()

	quads := make([]Quad, len(items))
	for i, it := range items {
		quads[i] = quadFor(it, rect)
	}
	if err := e.draw(p, quads, rect); err != nil {
		e.logger.Error("batched draw failed", "region", rect.String(), "error", err)
		return true
	}
	e.stats.BatchedDraws++
	for _, it := range items {
		e.drawn[it.Surface] = struct{}{}
	}
	return true
}

// drawSingle draws one surface. It returns false when the rest of the
// region must be abandoned.
func (e *Engine) drawSingle(rect geometry.Rect, it *Item) bool {
	if !e.backend.BindSurfaceTexture(it.Surface) {
		e.stats.BindFailures++
		e.logger.Error("bind surface texture failed, region aborted",
			"surface", it.Surface.ID(), "region", rect.String())
		return false
	}
	defer e.backend.UnbindSurfaceTexture(it.Surface)

	p, _ := e.shaders.Lookup(NewShaderKey(it.Flags.NeedsBlend(), it.Flags))
	if err := e.draw(p, []Quad{quadFor(it, rect)}, rect); err != nil {
		e.logger.Error("draw failed", "surface", it.Surface.ID(), "region", rect.String(), "error", err)
		return false
	}
	e.drawn[it.Surface] = struct{}{}
	return true
}

func (e *Engine) draw(p *Shader, quads []Quad, rect geometry.Rect) error {
	if err := e.backend.UseShader(p); err != nil {
		return err
	}
	if err := e.backend.LoadUniforms(quads); err != nil {
		return err
	}
	if err := e.backend.Draw(rect); err != nil {
		return err
	}
	e.stats.Draws++
	return nil
}

func quadFor(it *Item, rect geometry.Rect) Quad {
	return Quad{
		Item:        it,
		Destination: rect.Intersect(it.Destination),
		TexCoords:   SubTexCoords(it.TexCoords, it.Destination, rect, it.Orientation),
	}
}

// SubTexCoords returns the texture coordinates of the part of dest covered
// by part, for content shown at orientation o (clockwise).
func SubTexCoords(tex [4]float64, dest, part geometry.Rect, o scene.Orientation) [4]float64 {
	part = part.Intersect(dest)
	if dest.Empty() || part.Empty() {
		return tex
	}
	fx0 := float64(part.X-dest.X) / float64(dest.Width)
	fx1 := float64(part.Right()-dest.X) / float64(dest.Width)
	fy0 := float64(part.Y-dest.Y) / float64(dest.Height)
	fy1 := float64(part.Bottom()-dest.Y) / float64(dest.Height)

	var u0, v0, u1, v1 float64
	switch o {
	case scene.Ninety:
		u0, u1, v0, v1 = fy0, fy1, 1-fx1, 1-fx0
	case scene.OneEighty:
		u0, u1, v0, v1 = 1-fx1, 1-fx0, 1-fy1, 1-fy0
	case scene.TwoSeventy:
		u0, u1, v0, v1 = 1-fy1, 1-fy0, fx0, fx1
	default:
		u0, u1, v0, v1 = fx0, fx1, fy0, fy1
	}
	du, dv := tex[2]-tex[0], tex[3]-tex[1]
	return [4]float64{tex[0] + u0*du, tex[1] + v0*dv, tex[0] + u1*du, tex[1] + v1*dv}
}
