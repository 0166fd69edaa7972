package render

import (
	"image"
	"image/draw"
	"sync"

	"github.com/1broseidon/ivicomp/internal/scene"
	fb "github.com/gonutz/framebuffer"
	xdraw "golang.org/x/image/draw"
)

// Output receives finished frames. Present is called on the render
// goroutine; frame must not be retained after it returns.
type Output interface {
	Present(screenID scene.ID, frame *image.RGBA) error
	Close() error
}

// Headless keeps a copy of the last frame of every screen.
type Headless struct {
	mu      sync.Mutex
	frames  map[scene.ID]*image.RGBA
	present uint64
}

func NewHeadless() *Headless {
	return &Headless{frames: make(map[scene.ID]*image.RGBA)}
}

func (h *Headless) Present(id scene.ID, frame *image.RGBA) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	dst, ok := h.frames[id]
	if !ok || dst.Bounds() != frame.Bounds() {
		dst = image.NewRGBA(frame.Bounds())
		h.frames[id] = dst
	}
	copy(dst.Pix, frame.Pix)
	h.present++
	return nil
}

// Frame returns a copy of the last frame presented for a screen.
func (h *Headless) Frame(id scene.ID) (*image.RGBA, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.frames[id]
	if !ok {
		return nil, false
	}
	out := image.NewRGBA(f.Bounds())
	copy(out.Pix, f.Pix)
	return out, true
}

// Presented returns the number of frames presented so far.
func (h *Headless) Presented() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.present
}

func (h *Headless) Close() error { return nil }

// Framebuffer shows one screen on a Linux framebuffer device. Frames are
// scaled to the device resolution.
type Framebuffer struct {
	dev      *fb.Device
	screenID scene.ID
}

// OpenFramebuffer opens path (usually /dev/fb0) for screenID.
func OpenFramebuffer(path string, screenID scene.ID) (*Framebuffer, error) {
	dev, err := fb.Open(path)
	if err != nil {
		return nil, err
	}
	return &Framebuffer{dev: dev, screenID: screenID}, nil
}

func (f *Framebuffer) Present(id scene.ID, frame *image.RGBA) error {
	if id != f.screenID {
		return nil
	}
	if frame.Bounds().Size() == f.dev.Bounds().Size() {
		draw.Draw(f.dev, f.dev.Bounds(), frame, frame.Bounds().Min, draw.Src)
		return nil
	}
	xdraw.NearestNeighbor.Scale(f.dev, f.dev.Bounds(), frame, frame.Bounds(), draw.Src, nil)
	return nil
}

func (f *Framebuffer) Close() error {
	f.dev.Close()
	return nil
}
