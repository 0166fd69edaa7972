//go:build linux

package platform

import (
	"fmt"

	"github.com/1broseidon/ivicomp/internal/geometry"
	"github.com/1broseidon/ivicomp/internal/scene"
	"github.com/1broseidon/ivicomp/internal/x11"
)

// X11Backend reports one display per active RandR monitor.
type X11Backend struct {
	conn *x11.Connection
}

var _ Backend = (*X11Backend)(nil)

// NewX11Backend creates a backend over an existing X11 connection.
func NewX11Backend(conn *x11.Connection) *X11Backend {
	return &X11Backend{conn: conn}
}

// Connection returns the underlying X11 connection.
func (b *X11Backend) Connection() *x11.Connection {
	return b.conn
}

// Displays numbers monitors from 0 with the primary monitor first.
func (b *X11Backend) Displays() ([]Display, error) {
	if b == nil || b.conn == nil {
		return nil, fmt.Errorf("x11 connection not available")
	}
	monitors, err := b.conn.GetMonitors()
	if err != nil {
		return nil, err
	}
	if len(monitors) == 0 {
		return nil, fmt.Errorf("no active monitors")
	}

	displays := make([]Display, 0, len(monitors))
	for i, m := range monitors {
		displays = append(displays, Display{
			ID:      scene.ID(i),
			Name:    m.Name,
			Bounds:  geometry.Rect{X: m.X, Y: m.Y, Width: m.Width, Height: m.Height},
			Primary: m.Primary,
		})
	}
	return displays, nil
}
