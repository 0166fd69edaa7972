package shm

import (
	"image"
	"image/color"

	"github.com/1broseidon/ivicomp/internal/scene"
)

// newImage wraps pix without copying. Formats the image package knows are
// returned as their standard types.
func newImage(pix []byte, r image.Rectangle, stride int, f scene.PixelFormat) image.Image {
	switch f {
	case scene.PixelFormatRGBA8888:
		return &image.NRGBA{Pix: pix, Stride: stride, Rect: r}
	case scene.PixelFormatR8:
		return &image.Gray{Pix: pix, Stride: stride, Rect: r}
	}
	p := &packed{pix: pix, stride: stride, rect: r, bpp: BytesPerPixel(f)}
	switch f {
	case scene.PixelFormatRGB888:
		p.decode = decodeRGB888
	case scene.PixelFormatRGB565:
		p.decode = decodeRGB565
	case scene.PixelFormatRGBA5551:
		p.decode = decodeRGBA5551
	case scene.PixelFormatRGBA4444:
		p.decode = decodeRGBA4444
	case scene.PixelFormatRGBA6661:
		p.decode = decodeRGBA6661
	}
	return p
}

// packed is a read-only image over pixels the image package has no type
// for. Multi-byte pixels are little endian.
type packed struct {
	pix    []byte
	stride int
	rect   image.Rectangle
	bpp    int
	decode func([]byte) color.NRGBA
}

func (p *packed) Bounds() image.Rectangle { return p.rect }

func (p *packed) ColorModel() color.Model { return color.NRGBAModel }

func (p *packed) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(p.rect)) {
		return color.NRGBA{}
	}
	i := (y-p.rect.Min.Y)*p.stride + (x-p.rect.Min.X)*p.bpp
	return p.decode(p.pix[i : i+p.bpp : i+p.bpp])
}

// expand scales an n-bit channel to 8 bits.
func expand(v uint32, bits uint) uint8 {
	top := uint32(1)<<bits - 1
	return uint8(v * 255 / top)
}

func decodeRGB888(s []byte) color.NRGBA {
	return color.NRGBA{R: s[0], G: s[1], B: s[2], A: 0xff}
}

func decodeRGB565(s []byte) color.NRGBA {
	v := uint32(s[0]) | uint32(s[1])<<8
	return color.NRGBA{R: expand(v>>11, 5), G: expand(v>>5&0x3f, 6), B: expand(v&0x1f, 5), A: 0xff}
}

func decodeRGBA5551(s []byte) color.NRGBA {
	v := uint32(s[0]) | uint32(s[1])<<8
	return color.NRGBA{R: expand(v>>11, 5), G: expand(v>>6&0x1f, 5), B: expand(v>>1&0x1f, 5), A: expand(v&1, 1)}
}

func decodeRGBA4444(s []byte) color.NRGBA {
	v := uint32(s[0]) | uint32(s[1])<<8
	return color.NRGBA{R: expand(v>>12, 4), G: expand(v>>8&0xf, 4), B: expand(v>>4&0xf, 4), A: expand(v&0xf, 4)}
}

func decodeRGBA6661(s []byte) color.NRGBA {
	v := uint32(s[0]) | uint32(s[1])<<8 | uint32(s[2])<<16
	return color.NRGBA{R: expand(v>>18, 6), G: expand(v>>12&0x3f, 6), B: expand(v>>6&0x3f, 6), A: expand(v&0x3f, 6)}
}
