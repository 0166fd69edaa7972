package x11

import (
	"fmt"
	"image"
	"sync"

	"github.com/1broseidon/ivicomp/internal/scene"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xgraphics"
	"github.com/BurntSushi/xgbutil/xwindow"
)

// Placement positions the window of one screen on the X display.
type Placement struct {
	X, Y       int
	Fullscreen bool
}

// Output shows every screen in its own X window. It satisfies the render
// package's Output interface.
type Output struct {
	conn *Connection

	mu      sync.Mutex
	windows map[scene.ID]*screenWindow
}

type screenWindow struct {
	win    *xwindow.Window
	img    *xgraphics.Image
	closed bool
}

// NewOutput creates and maps one window per screen. Screens missing from
// placements open at the origin.
func NewOutput(conn *Connection, screens []scene.ScreenConfig, placements map[scene.ID]Placement) (*Output, error) {
	o := &Output{conn: conn, windows: make(map[scene.ID]*screenWindow, len(screens))}
	for _, s := range screens {
		sw, err := o.createWindow(s, placements[s.ID])
		if err != nil {
			o.Close()
			return nil, fmt.Errorf("screen %d: %w", s.ID, err)
		}
		o.windows[s.ID] = sw
	}
	return o, nil
}

func (o *Output) createWindow(s scene.ScreenConfig, p Placement) (*screenWindow, error) {
	xu := o.conn.XUtil
	win, err := xwindow.Generate(xu)
	if err != nil {
		return nil, fmt.Errorf("failed to generate window id: %w", err)
	}
	if err := win.CreateChecked(o.conn.Root, p.X, p.Y, s.Width, s.Height,
		xproto.CwBackPixel|xproto.CwEventMask, 0, xproto.EventMaskExposure); err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	sw := &screenWindow{win: win}
	win.WMGracefulClose(func(w *xwindow.Window) {
		o.mu.Lock()
		sw.closed = true
		o.mu.Unlock()
		xevent.Detach(w.X, w.Id)
		w.Destroy()
	})

	title := fmt.Sprintf("ivicomp: %s", s.Name)
	_ = ewmh.WmNameSet(xu, win.Id, title)
	_ = icccm.WmNameSet(xu, win.Id, title)
	_ = icccm.WmStateSet(xu, win.Id, &icccm.WmState{State: icccm.StateNormal})
	// The compositor owns the window size.
	_ = icccm.WmNormalHintsSet(xu, win.Id, &icccm.NormalHints{
		Flags:     icccm.SizeHintPMinSize | icccm.SizeHintPMaxSize,
		MinWidth:  uint(s.Width),
		MinHeight: uint(s.Height),
		MaxWidth:  uint(s.Width),
		MaxHeight: uint(s.Height),
	})

	img := xgraphics.New(xu, image.Rect(0, 0, s.Width, s.Height))
	if err := img.XSurfaceSet(win.Id); err != nil {
		win.Destroy()
		return nil, fmt.Errorf("failed to create pixmap: %w", err)
	}
	sw.img = img

	// Repaint the last frame when the window is exposed.
	xevent.ExposeFun(func(_ *xgbutil.XUtil, ev xevent.ExposeEvent) {
		o.mu.Lock()
		defer o.mu.Unlock()
		if !sw.closed && ev.Count == 0 {
			sw.img.XPaint(win.Id)
		}
	}).Connect(xu, win.Id)

	win.Map()
	if p.Fullscreen {
		_ = ewmh.WmStateReq(xu, win.Id, ewmh.StateAdd, "_NET_WM_STATE_FULLSCREEN")
	}
	return sw, nil
}

// Present copies frame into the screen's pixmap and paints it.
func (o *Output) Present(id scene.ID, frame *image.RGBA) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	sw, ok := o.windows[id]
	if !ok || sw.closed {
		return nil
	}

	b := sw.img.Rect.Intersect(frame.Bounds())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		src := frame.Pix[frame.PixOffset(b.Min.X, y):frame.PixOffset(b.Max.X, y)]
		dst := sw.img.Pix[sw.img.PixOffset(b.Min.X, y):]
		for i := 0; i+3 < len(src); i += 4 {
			dst[i], dst[i+1], dst[i+2], dst[i+3] = src[i+2], src[i+1], src[i], src[i+3]
		}
	}
	if err := sw.img.XDrawChecked(); err != nil {
		return fmt.Errorf("screen %d: %w", id, err)
	}
	sw.img.XPaint(sw.win.Id)
	return nil
}

// Close destroys every window.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, sw := range o.windows {
		if sw.img != nil {
			sw.img.Destroy()
		}
		if !sw.closed {
			xevent.Detach(o.conn.XUtil, sw.win.Id)
			sw.win.Destroy()
		}
		delete(o.windows, id)
	}
	return nil
}
