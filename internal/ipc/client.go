package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/1broseidon/ivicomp/internal/command"
	"github.com/1broseidon/ivicomp/internal/runtimepath"
)

// Client handles IPC communication with the daemon
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a client for the default socket.
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		// Keep constructor non-failing; sendRequest surfaces connection errors.
		socketPath = ""
	}
	return NewClientWithSocket(socketPath)
}

// NewClientWithSocket creates a client for socketPath.
func NewClientWithSocket(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

func (c *Client) dial() (net.Conn, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	return conn, nil
}

func writeRequest(conn net.Conn, req *Request) error {
	reqData, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	return nil
}

func readResponse(reader *bufio.Reader) (*Response, error) {
	respData, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Status == "ERROR" {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}
	return &resp, nil
}

// sendRequest sends a request and waits for a response
func (c *Client) sendRequest(req *Request) (*Response, error) {
	conn, err := c.dial()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))
	if err := writeRequest(conn, req); err != nil {
		return nil, err
	}
	return readResponse(bufio.NewReader(conn))
}

func (c *Client) query(cmd CommandType, payload any, out any) error {
	req := &Request{Command: cmd}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		req.Payload = raw
	}
	resp, err := c.sendRequest(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to parse %s data: %w", cmd, err)
	}
	return nil
}

// GetStatus retrieves daemon status
func (c *Client) GetStatus() (*StatusData, error) {
	var status StatusData
	if err := c.query(CommandGetStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetScreens lists the screens and their render orders.
func (c *Client) GetScreens() (*ScreensData, error) {
	var data ScreensData
	if err := c.query(CommandGetScreens, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// ListLayers lists every layer.
func (c *Client) ListLayers() (*LayersData, error) {
	var data LayersData
	if err := c.query(CommandListLayers, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// ListSurfaces lists every surface.
func (c *Client) ListSurfaces() (*SurfacesData, error) {
	var data SurfacesData
	if err := c.query(CommandListSurfaces, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetLayer returns one layer's properties.
func (c *Client) GetLayer(id uint32) (*LayerData, error) {
	var data LayerData
	if err := c.query(CommandGetLayer, IDPayload{ID: id}, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetSurface returns one surface's properties.
func (c *Client) GetSurface(id uint32) (*SurfaceData, error) {
	var data SurfaceData
	if err := c.query(CommandGetSurface, IDPayload{ID: id}, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// ExecOptions modify how a mutation is executed.
type ExecOptions struct {
	Async    bool
	OwnerPID *int
}

// Execute sends a mutation of the given kind. payload is one of the
// *Payload types of this package.
func (c *Client) Execute(kind command.Kind, payload any, opts ExecOptions) (*ExecuteData, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}
	resp, err := c.sendRequest(&Request{
		Command:  CommandType(kind.String()),
		Payload:  raw,
		Async:    opts.Async,
		OwnerPID: opts.OwnerPID,
	})
	if err != nil {
		return nil, err
	}
	var data ExecuteData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse %s result: %w", kind, err)
	}
	return &data, nil
}

// Watch opens a notification stream. ready is called with the client handle
// to subscribe with; events are passed to fn until ctx is done or the
// daemon closes the stream.
func (c *Client) Watch(ctx context.Context, ready func(client uint64) error, fn func(Event)) error {
	conn, err := c.dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))
	if err := writeRequest(conn, &Request{Command: CommandWatch}); err != nil {
		return err
	}
	reader := bufio.NewReader(conn)
	resp, err := readResponse(reader)
	if err != nil {
		return err
	}
	var data WatchData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return fmt.Errorf("failed to parse watch data: %w", err)
	}
	conn.SetDeadline(time.Time{})

	if ready != nil {
		if err := ready(data.Client); err != nil {
			return err
		}
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("watch stream closed: %w", err)
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return fmt.Errorf("failed to parse event: %w", err)
		}
		fn(ev)
	}
}

// Ping checks if the daemon is responding
func (c *Client) Ping() error {
	_, err := c.GetStatus()
	return err
}
