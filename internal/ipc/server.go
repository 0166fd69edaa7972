package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/1broseidon/ivicomp/internal/command"
	"github.com/1broseidon/ivicomp/internal/runtimepath"
	"github.com/1broseidon/ivicomp/internal/scene"
	"github.com/1broseidon/ivicomp/internal/shm"
)

const (
	bufferPruneInterval = 5 * time.Second
	watcherQueueSize    = 64
)

// FrameCounter reports render progress for GET_STATUS.
type FrameCounter interface {
	Frames() (ticks, composed uint64)
}

// ServerConfig configures a Server. SocketPath defaults to the runtime
// directory socket; Frames and Logger may be nil.
type ServerConfig struct {
	SocketPath string
	Dispatcher *command.Dispatcher
	Frames     FrameCounter
	Logger     *slog.Logger
}

// Server handles IPC requests from clients
type Server struct {
	socketPath string
	listener   net.Listener
	disp       *command.Dispatcher
	frames     FrameCounter
	logger     *slog.Logger
	startTime  time.Time

	// contentMu serializes buffer attachment with pruning.
	contentMu sync.Mutex
	buffersMu sync.Mutex
	buffers   []*shm.Buffer

	watchMu    sync.Mutex
	watchers   map[scene.ClientHandle]*watcher
	nextClient scene.ClientHandle

	done         chan struct{}
	shuttingDown bool
	shutdownMu   sync.Mutex
}

type watcher struct {
	events chan Event
}

// NewServer creates a new IPC server
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("ipc server needs a dispatcher")
	}
	socketPath := cfg.SocketPath
	if socketPath == "" {
		p, err := runtimepath.SocketPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve IPC socket path: %w", err)
		}
		socketPath = p
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Server{
		socketPath: socketPath,
		disp:       cfg.Dispatcher,
		frames:     cfg.Frames,
		logger:     logger,
		startTime:  time.Now(),
		watchers:   make(map[scene.ClientHandle]*watcher),
		nextClient: 1,
		done:       make(chan struct{}),
	}, nil
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string { return s.socketPath }

// Start begins listening for IPC connections
func (s *Server) Start() error {
	// Refuse to steal the socket of a live daemon.
	if conn, err := net.DialTimeout("unix", s.socketPath, 200*time.Millisecond); err == nil {
		conn.Close()
		return fmt.Errorf("a daemon is already listening on %s", s.socketPath)
	}
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.logger.Info("IPC server listening", "socket", s.socketPath)
	go s.acceptLoop()
	return nil
}

// Run delivers client notifications and releases unused buffers until ctx
// is done, then stops the server.
func (s *Server) Run(ctx context.Context) error {
	ticker := time.NewTicker(bufferPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return nil
		case <-s.disp.NotificationsReady():
			s.deliver(s.disp.TakeNotifications())
		case <-ticker.C:
			s.contentMu.Lock()
			s.pruneBuffers()
			s.contentMu.Unlock()
		}
	}
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			stopping := s.shuttingDown
			s.shutdownMu.Unlock()
			if stopping || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("IPC accept error", "error", err)
			continue
		}
		go s.handleConnection(conn)
	}
}

// handleConnection serves one request, or a WATCH stream.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		s.logger.Warn("IPC read error", "error", err)
		return
	}

	req, err := ParseRequest(data)
	if err != nil {
		writeResponse(conn, NewErrorResponse(fmt.Sprintf("Invalid request: %v", err)))
		return
	}

	if req.Command == CommandWatch {
		s.serveWatch(conn, reader)
		return
	}

	resp := s.handleRequest(req, peerPID(conn))
	if err := writeResponse(conn, resp); err != nil {
		s.logger.Warn("failed to send response", "command", req.Command, "error", err)
	}
}

func writeResponse(w io.Writer, resp *Response) error {
	data, err := resp.Marshal()
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// handleRequest answers one request from a process with the given pid.
func (s *Server) handleRequest(req *Request, pid int) *Response {
	switch req.Command {
	case CommandGetStatus:
		return s.handleGetStatus()
	case CommandGetScreens:
		return s.handleGetScreens()
	case CommandListLayers:
		return s.handleListLayers()
	case CommandListSurfaces:
		return s.handleListSurfaces()
	case CommandGetLayer:
		return s.handleGetLayer(req.Payload)
	case CommandGetSurface:
		return s.handleGetSurface(req.Payload)
	}

	kind, err := command.ParseKind(string(req.Command))
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
	if req.OwnerPID != nil {
		pid = *req.OwnerPID
	}
	base := command.Sync(pid)
	if req.Async {
		base = command.Async(pid)
	}
	return s.handleMutation(kind, req.Payload, base)
}

func (s *Server) handleMutation(kind command.Kind, payload json.RawMessage, base command.Base) *Response {
	var (
		cmd command.Command
		err error
	)
	switch kind {
	case command.KindSurfaceSetNativeContent, command.KindSurfaceRemoveNativeContent, command.KindSurfaceRemove:
		// Buffers change hands here: run synchronously and release what
		// the scene no longer references.
		s.contentMu.Lock()
		defer s.contentMu.Unlock()
		defer s.pruneBuffers()
		base.Type = command.Synchronous
	}
	if kind == command.KindSurfaceSetNativeContent {
		cmd, err = s.openContent(payload, base)
	} else {
		cmd, err = DecodeCommand(kind, payload, base)
	}
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("%s: %v", kind, err))
	}

	res := s.disp.Dispatch(cmd)
	if !res.Succeeded() {
		if reason := s.failureReason(cmd); reason != nil {
			return NewErrorResponse(fmt.Sprintf("%s: command failed: %v", cmd, reason))
		}
		return NewErrorResponse(fmt.Sprintf("%s: command failed", cmd))
	}

	data := ExecuteData{Result: res.String()}
	if cmd.ExecutionType() == command.Asynchronous {
		data.Result = "queued"
	} else {
		switch c := cmd.(type) {
		case *command.LayerCreate:
			id := uint32(c.CreatedID)
			data.ID = &id
		case *command.SurfaceCreate:
			id := uint32(c.CreatedID)
			data.ID = &id
		}
	}
	resp, _ := NewOKResponse(data)
	return resp
}

// failureReason explains a failed membership or content change, or returns
// nil when the cause is not known.
func (s *Server) failureReason(cmd command.Command) error {
	sc := s.disp.Scene()
	switch c := cmd.(type) {
	case *command.LayerAddSurface:
		if _, ok := sc.Layer(c.LayerID); !ok {
			return fmt.Errorf("layer %d: %w", c.LayerID, scene.ErrNotFound)
		}
		info, ok := sc.Surface(c.SurfaceID)
		if !ok {
			return fmt.Errorf("surface %d: %w", c.SurfaceID, scene.ErrNotFound)
		}
		if info.LayerID != scene.InvalidID {
			return fmt.Errorf("surface %d: %w %d", c.SurfaceID, scene.ErrAlreadyContained, info.LayerID)
		}
	case *command.SurfaceSetNativeContent:
		if _, ok := sc.Surface(c.SurfaceID); !ok {
			return fmt.Errorf("surface %d: %w", c.SurfaceID, scene.ErrNotFound)
		}
	}
	return nil
}

// openContent maps the client's buffer and wraps it in a command. The
// buffer is tracked until no surface uses it.
func (s *Server) openContent(payload json.RawMessage, base command.Base) (command.Command, error) {
	var p ContentPayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}
	format, err := scene.ParsePixelFormat(p.Format)
	if err != nil {
		return nil, err
	}
	buf, err := shm.Open(p.Path, p.Width, p.Height, p.Stride, format)
	if err != nil {
		return nil, err
	}

	s.buffersMu.Lock()
	s.buffers = append(s.buffers, buf)
	s.buffersMu.Unlock()

	return &command.SurfaceSetNativeContent{
		Base:        base,
		SurfaceID:   scene.ID(p.ID),
		Content:     buf,
		Width:       p.Width,
		Height:      p.Height,
		PixelFormat: format,
	}, nil
}

// pruneBuffers unmaps buffers no surface references. contentMu must be
// held.
func (s *Server) pruneBuffers() {
	inUse := make(map[*shm.Buffer]bool)
	s.disp.Scene().Do(func(tx *scene.Tx) {
		for _, sf := range tx.AllSurfaces() {
			if b, ok := sf.NativeContent().(*shm.Buffer); ok {
				inUse[b] = true
			}
		}
	})

	s.buffersMu.Lock()
	defer s.buffersMu.Unlock()
	kept := s.buffers[:0]
	for _, b := range s.buffers {
		if inUse[b] {
			kept = append(kept, b)
			continue
		}
		if err := b.Close(); err != nil {
			s.logger.Warn("failed to unmap buffer", "path", b.Path, "error", err)
		}
		s.logger.Debug("buffer released", "path", b.Path)
	}
	clear(s.buffers[len(kept):])
	s.buffers = kept
}

// CloseBuffers unmaps every tracked buffer. Call it only once nothing
// renders the scene any more.
func (s *Server) CloseBuffers() {
	s.buffersMu.Lock()
	defer s.buffersMu.Unlock()
	for _, b := range s.buffers {
		b.Close()
	}
	s.buffers = nil
}

func (s *Server) handleGetStatus() *Response {
	stats := s.disp.Stats()
	sc := s.disp.Scene()
	status := StatusData{
		UptimeSeconds:    int64(time.Since(s.startTime).Seconds()),
		DaemonRunning:    true,
		Screens:          len(sc.Screens()),
		Layers:           len(sc.LayerIDs()),
		Surfaces:         len(sc.SurfaceIDs()),
		CommandsExecuted: stats.Executed,
		CommandsFailed:   stats.Failed,
		CommandsQueued:   stats.Queued,
	}
	if s.frames != nil {
		status.Frames, status.ScreensComposed = s.frames.Frames()
	}
	s.watchMu.Lock()
	status.Watchers = len(s.watchers)
	s.watchMu.Unlock()
	s.buffersMu.Lock()
	status.Buffers = len(s.buffers)
	s.buffersMu.Unlock()

	resp, _ := NewOKResponse(status)
	return resp
}

func (s *Server) handleGetScreens() *Response {
	infos := s.disp.Scene().Screens()
	data := ScreensData{Screens: make([]ScreenData, 0, len(infos))}
	for _, info := range infos {
		data.Screens = append(data.Screens, NewScreenData(info))
	}
	resp, _ := NewOKResponse(data)
	return resp
}

func (s *Server) handleListLayers() *Response {
	sc := s.disp.Scene()
	infos := sc.Layers()
	data := LayersData{Layers: make([]LayerData, 0, len(infos))}
	for _, info := range infos {
		data.Layers = append(data.Layers, NewLayerData(info, sc.IsLayerInCurrentRenderOrder(info.ID)))
	}
	resp, _ := NewOKResponse(data)
	return resp
}

func (s *Server) handleListSurfaces() *Response {
	infos := s.disp.Scene().Surfaces()
	data := SurfacesData{Surfaces: make([]SurfaceData, 0, len(infos))}
	for _, info := range infos {
		data.Surfaces = append(data.Surfaces, NewSurfaceData(info))
	}
	resp, _ := NewOKResponse(data)
	return resp
}

func (s *Server) handleGetLayer(payload json.RawMessage) *Response {
	var p IDPayload
	if err := decodePayload(payload, &p); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid layer payload: %v", err))
	}
	sc := s.disp.Scene()
	info, ok := sc.Layer(scene.ID(p.ID))
	if !ok {
		return NewErrorResponse(fmt.Sprintf("layer %d: %v", p.ID, scene.ErrNotFound))
	}
	resp, _ := NewOKResponse(NewLayerData(info, sc.IsLayerInCurrentRenderOrder(info.ID)))
	return resp
}

func (s *Server) handleGetSurface(payload json.RawMessage) *Response {
	var p IDPayload
	if err := decodePayload(payload, &p); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid surface payload: %v", err))
	}
	info, ok := s.disp.Scene().Surface(scene.ID(p.ID))
	if !ok {
		return NewErrorResponse(fmt.Sprintf("surface %d: %v", p.ID, scene.ErrNotFound))
	}
	resp, _ := NewOKResponse(NewSurfaceData(info))
	return resp
}

// serveWatch streams events to a watcher until it disconnects or the server
// stops.
func (s *Server) serveWatch(conn net.Conn, reader *bufio.Reader) {
	s.watchMu.Lock()
	client := s.nextClient
	s.nextClient++
	w := &watcher{events: make(chan Event, watcherQueueSize)}
	s.watchers[client] = w
	s.watchMu.Unlock()

	defer func() {
		s.watchMu.Lock()
		delete(s.watchers, client)
		s.watchMu.Unlock()
		s.logger.Debug("watcher disconnected", "client", client)
	}()

	resp, _ := NewOKResponse(WatchData{Client: uint64(client)})
	if err := writeResponse(conn, resp); err != nil {
		return
	}
	s.logger.Debug("watcher connected", "client", client)

	// Anything the client sends, or EOF, ends the stream.
	gone := make(chan struct{})
	go func() {
		io.Copy(io.Discard, reader)
		close(gone)
	}()

	enc := json.NewEncoder(conn)
	for {
		select {
		case <-gone:
			return
		case <-s.done:
			return
		case ev := <-w.events:
			if err := enc.Encode(ev); err != nil {
				return
			}
		}
	}
}

// deliver routes notifications to the watchers they name.
func (s *Server) deliver(notes []command.Notification) {
	if len(notes) == 0 {
		return
	}
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for _, n := range notes {
		ev := NewEvent(n)
		for _, client := range n.Clients {
			w, ok := s.watchers[client]
			if !ok {
				continue
			}
			select {
			case w.events <- ev:
			default:
				s.logger.Warn("watcher queue full, dropping notification", "client", client, "notification", n.String())
			}
		}
	}
}

// Stop gracefully shuts down the IPC server
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	if s.shuttingDown {
		s.shutdownMu.Unlock()
		return
	}
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	close(s.done)
	if s.listener != nil {
		s.listener.Close()
	}
	os.Remove(s.socketPath)
}
