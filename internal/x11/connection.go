package x11

import (
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xevent"
)

// Connection manages the X11 connection and core X resources
type Connection struct {
	XUtil *xgbutil.XUtil
	Root  xproto.Window
}

// NewConnection connects to the X server named by $DISPLAY.
func NewConnection() (*Connection, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, err
	}
	return &Connection{
		XUtil: xu,
		Root:  xu.RootWin(),
	}, nil
}

// EventLoop runs the X11 event loop until Quit is called (blocking).
func (c *Connection) EventLoop() {
	xevent.Main(c.XUtil)
}

// Quit stops EventLoop.
func (c *Connection) Quit() {
	xevent.Quit(c.XUtil)
}

// Close cleanly disconnects from the X11 server
func (c *Connection) Close() {
	c.XUtil.Conn().Close()
}
