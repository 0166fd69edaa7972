package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/1broseidon/ivicomp/internal/compose"
	"github.com/1broseidon/ivicomp/internal/geometry"
	"github.com/1broseidon/ivicomp/internal/scene"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// ImageSource is native content that can produce its pixels on demand, such
// as a mapped shared-memory buffer.
type ImageSource interface {
	Image() image.Image
}

func contentImage(content any) (image.Image, bool) {
	switch c := content.(type) {
	case image.Image:
		return c, true
	case ImageSource:
		img := c.Image()
		return img, img != nil
	default:
		return nil, false
	}
}

// binding is what the software backend keeps in Surface.Platform.
type binding struct {
	img image.Image

	keyed      *image.RGBA
	keyedFor   scene.ChromaKey
	keyedCount uint64
}

// Software composites into in-memory RGBA canvases, one per screen, and
// hands finished frames to an Output.
type Software struct {
	canvases     map[scene.ID]*image.RGBA
	output       Output
	background   color.RGBA
	interpolator xdraw.Transformer

	current *image.RGBA
	shader  *compose.Shader
	quads   []compose.Quad
}

// NewSoftware creates canvases for the screens. A nil output discards
// frames.
func NewSoftware(screens []scene.ScreenConfig, output Output, background color.RGBA) *Software {
	if output == nil {
		output = NewHeadless()
	}
	s := &Software{
		canvases:     make(map[scene.ID]*image.RGBA, len(screens)),
		output:       output,
		background:   background,
		interpolator: xdraw.ApproxBiLinear,
	}
	for _, sc := range screens {
		s.canvases[sc.ID] = image.NewRGBA(image.Rect(0, 0, sc.Width, sc.Height))
	}
	return s
}

// CompileShader accepts every key; the software path interprets the key at
// draw time.
func (s *Software) CompileShader(key compose.ShaderKey) (*compose.Shader, error) {
	return &compose.Shader{Key: key, Handle: key.String()}, nil
}

func (s *Software) BeginScreen(id scene.ID) (int, int, error) {
	c, ok := s.canvases[id]
	if !ok {
		return 0, 0, fmt.Errorf("no canvas for screen %d", id)
	}
	s.current = c
	b := c.Bounds()
	return b.Dx(), b.Dy(), nil
}

func (s *Software) EndScreen(id scene.ID) error {
	c := s.current
	s.current, s.shader, s.quads = nil, nil, nil
	if c == nil {
		return fmt.Errorf("screen %d was not begun", id)
	}
	return s.output.Present(id, c)
}

func (s *Software) BindSurfaceTexture(sf *scene.Surface) bool {
	img, ok := contentImage(sf.NativeContent())
	if !ok || img.Bounds().Empty() {
		return false
	}
	b, _ := sf.Platform.(*binding)
	if b == nil {
		b = &binding{}
		sf.Platform = b
	}
	b.img = img
	return true
}

// UnbindSurfaceTexture keeps the binding cached on the surface.
func (s *Software) UnbindSurfaceTexture(sf *scene.Surface) bool {
	_, ok := sf.Platform.(*binding)
	return ok
}

func (s *Software) UseShader(p *compose.Shader) error {
	if p == nil {
		return fmt.Errorf("nil shader")
	}
	s.shader = p
	return nil
}

func (s *Software) LoadUniforms(quads []compose.Quad) error {
	s.quads = quads
	return nil
}

func (s *Software) Clear(r geometry.Rect) error {
	if s.current == nil {
		return fmt.Errorf("no screen begun")
	}
	draw.Draw(s.current, toImageRect(r), &image.Uniform{C: s.background}, image.Point{}, draw.Src)
	return nil
}

func (s *Software) Draw(r geometry.Rect) error {
	if s.current == nil || s.shader == nil {
		return fmt.Errorf("draw without screen or shader")
	}
	dst, ok := s.current.SubImage(toImageRect(r)).(*image.RGBA)
	if !ok {
		return fmt.Errorf("clip canvas to %s", r)
	}
	for i, q := range s.quads {
		b, ok := q.Item.Surface.Platform.(*binding)
		if !ok || b.img == nil {
			return fmt.Errorf("surface %d not bound", q.Item.Surface.ID())
		}
		op := draw.Over
		if i == 0 && !s.shader.Key.Blend() {
			op = draw.Src
		}
		s.drawQuad(dst, q, b, op)
	}
	return nil
}

func (s *Software) drawQuad(dst *image.RGBA, q compose.Quad, b *binding, op draw.Op) {
	it := q.Item
	src := b.img
	bounds := src.Bounds()
	if it.ChromaKey.Enabled {
		src = b.keyedImage(it.Surface, it.ChromaKey)
		op = draw.Over
	}

	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	full := geometry.FRect{
		X:      float64(bounds.Min.X) + it.TexCoords[0]*w,
		Y:      float64(bounds.Min.Y) + it.TexCoords[1]*h,
		Width:  (it.TexCoords[2] - it.TexCoords[0]) * w,
		Height: (it.TexCoords[3] - it.TexCoords[1]) * h,
	}
	if full.Width <= 0 || full.Height <= 0 {
		return
	}
	sr := image.Rect(
		int(math.Floor(float64(bounds.Min.X)+q.TexCoords[0]*w)),
		int(math.Floor(float64(bounds.Min.Y)+q.TexCoords[1]*h)),
		int(math.Ceil(float64(bounds.Min.X)+q.TexCoords[2]*w)),
		int(math.Ceil(float64(bounds.Min.Y)+q.TexCoords[3]*h)),
	).Intersect(bounds)

	var opts *xdraw.Options
	if it.Opacity < 1 {
		opts = &xdraw.Options{SrcMask: image.NewUniform(color.Alpha{A: uint8(math.Round(it.Opacity * 255))})}
		op = draw.Over
	}
	clip, ok := dst.SubImage(toImageRect(q.Destination)).(*image.RGBA)
	if !ok {
		return
	}
	s.interpolator.Transform(clip, sourceToDest(full, it.Destination.Float(), it.Orientation), src, sr, op, opts)
}

// sourceToDest maps source pixel space onto the destination rectangle,
// rotating clockwise by o.
func sourceToDest(sr, dr geometry.FRect, o scene.Orientation) f64.Aff3 {
	x0, y0, sw, sh := sr.X, sr.Y, sr.Width, sr.Height
	switch o {
	case scene.Ninety:
		return f64.Aff3{0, -dr.Width / sh, dr.X + (y0+sh)*dr.Width/sh, dr.Height / sw, 0, dr.Y - x0*dr.Height/sw}
	case scene.OneEighty:
		return f64.Aff3{-dr.Width / sw, 0, dr.X + (x0+sw)*dr.Width/sw, 0, -dr.Height / sh, dr.Y + (y0+sh)*dr.Height/sh}
	case scene.TwoSeventy:
		return f64.Aff3{0, dr.Width / sh, dr.X - y0*dr.Width/sh, -dr.Height / sw, 0, dr.Y + (x0+sw)*dr.Height/sw}
	default:
		return f64.Aff3{dr.Width / sw, 0, dr.X - x0*dr.Width/sw, 0, dr.Height / sh, dr.Y - y0*dr.Height/sh}
	}
}

// keyedImage returns the bound image with the chroma key color made
// transparent, rebuilt only when the content or key changed.
func (b *binding) keyedImage(sf *scene.Surface, key scene.ChromaKey) image.Image {
	if b.keyed != nil && b.keyedFor == key && b.keyedCount == sf.UpdateCounter() {
		return b.keyed
	}
	bounds := b.img.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, b.img, bounds.Min, draw.Src)
	for i := 0; i+3 < len(out.Pix); i += 4 {
		p := out.Pix[i : i+4 : i+4]
		if p[3] == 0xff && p[0] == key.R && p[1] == key.G && p[2] == key.B {
			p[0], p[1], p[2], p[3] = 0, 0, 0, 0
		}
	}
	b.keyed, b.keyedFor, b.keyedCount = out, key, sf.UpdateCounter()
	return out
}

func toImageRect(r geometry.Rect) image.Rectangle {
	return image.Rect(r.X, r.Y, r.Right(), r.Bottom())
}
