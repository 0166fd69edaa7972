package x11

import (
	"fmt"
	"sort"

	"github.com/BurntSushi/xgb/randr"
)

// Monitor represents a physical display
type Monitor struct {
	ID      int
	Name    string
	X       int
	Y       int
	Width   int
	Height  int
	Primary bool
}

// GetMonitors retrieves all active monitors using XRandR, primary first.
func (c *Connection) GetMonitors() ([]Monitor, error) {
	conn := c.XUtil.Conn()
	if err := randr.Init(conn); err != nil {
		return nil, fmt.Errorf("randr init failed: %w", err)
	}

	resources, err := randr.GetScreenResources(conn, c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	var primary randr.Output
	if reply, err := randr.GetOutputPrimary(conn, c.Root).Reply(); err == nil {
		primary = reply.Output
	}

	var monitors []Monitor
	for i, crtc := range resources.Crtcs {
		info, err := randr.GetCrtcInfo(conn, crtc, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}
		// Disabled CRTC.
		if info.Width == 0 || info.Height == 0 || len(info.Outputs) == 0 {
			continue
		}

		name := fmt.Sprintf("Monitor%d", i)
		if out, err := randr.GetOutputInfo(conn, info.Outputs[0], resources.ConfigTimestamp).Reply(); err == nil {
			name = string(out.Name)
		}

		isPrimary := false
		for _, o := range info.Outputs {
			if o == primary {
				isPrimary = true
			}
		}

		monitors = append(monitors, Monitor{
			ID:      i,
			Name:    name,
			X:       int(info.X),
			Y:       int(info.Y),
			Width:   int(info.Width),
			Height:  int(info.Height),
			Primary: isPrimary,
		})
	}

	sort.SliceStable(monitors, func(i, j int) bool {
		if monitors[i].Primary != monitors[j].Primary {
			return monitors[i].Primary
		}
		return monitors[i].ID < monitors[j].ID
	})
	return monitors, nil
}
