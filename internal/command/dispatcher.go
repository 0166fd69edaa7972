package command

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/1broseidon/ivicomp/internal/scene"
)

// Redrawer is told when executed commands need a new frame.
type Redrawer interface {
	// Redraw asks for a frame that recomposites every screen.
	Redraw()
	// Wake asks for a frame that recomposites only dirty screens.
	Wake()
}

// Stats counts dispatched commands.
type Stats struct {
	Executed uint64
	Failed   uint64
	Queued   int
}

// Dispatcher runs commands in dispatch order, one at a time, each with the
// scene locked.
//
// Synchronous commands run on the caller's goroutine after every
// asynchronous command dispatched before them. Asynchronous commands wait in
// a queue until Flush is called, either by Run or by the render loop before
// a frame.
type Dispatcher struct {
	scene  *scene.Scene
	redraw Redrawer
	logger *slog.Logger

	execMu sync.Mutex // serializes execution

	queueMu sync.Mutex
	queue   []Command
	wake    chan struct{}

	notifyMu      sync.Mutex
	notifications []Notification
	notifyReady   chan struct{}

	statsMu sync.Mutex
	stats   Stats
}

// NewDispatcher creates a dispatcher over sc. redraw and logger may be nil.
func NewDispatcher(sc *scene.Scene, redraw Redrawer, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{
		scene:       sc,
		redraw:      redraw,
		logger:      logger,
		wake:        make(chan struct{}, 1),
		notifyReady: make(chan struct{}, 1),
	}
}

// Scene returns the scene the dispatcher mutates.
func (d *Dispatcher) Scene() *scene.Scene { return d.scene }

// Dispatch executes or queues cmd. An asynchronous command reports
// ExecutionSuccess once queued; its real outcome is only logged.
func (d *Dispatcher) Dispatch(cmd Command) ExecutionResult {
	if cmd.ExecutionType() == Asynchronous {
		d.queueMu.Lock()
		d.queue = append(d.queue, cmd)
		d.queueMu.Unlock()
		signal(d.wake)
		return ExecutionSuccess
	}

	d.execMu.Lock()
	defer d.execMu.Unlock()
	d.flushLocked()
	return d.execute(cmd)
}

// Flush executes every queued asynchronous command.
func (d *Dispatcher) Flush() {
	d.execMu.Lock()
	defer d.execMu.Unlock()
	d.flushLocked()
}

// Run flushes the queue whenever commands arrive until ctx is done. It is
// for embedders without a render loop; with one, call Flush before each
// frame instead so queued commands land between frames.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.Flush()
			return nil
		case <-d.wake:
			d.Flush()
		}
	}
}

func (d *Dispatcher) flushLocked() {
	d.queueMu.Lock()
	pending := d.queue
	d.queue = nil
	d.queueMu.Unlock()

	for _, cmd := range pending {
		d.execute(cmd)
	}
}

// execution is the Executor handed to a running command.
type execution struct {
	tx    *scene.Tx
	notes []Notification
}

func (e *execution) Scene() *scene.Tx { return e.tx }

func (e *execution) AddClientNotification(obj *scene.Object, mask scene.NotificationMask) {
	clients := obj.NotificationClients()
	if len(clients) == 0 {
		return
	}
	e.notes = append(e.notes, Notification{
		ObjectType: obj.Type(),
		ObjectID:   obj.ID(),
		Mask:       mask,
		Clients:    clients,
	})
}

func (d *Dispatcher) execute(cmd Command) ExecutionResult {
	var (
		res ExecutionResult
		ex  execution
	)
	d.scene.Do(func(tx *scene.Tx) {
		ex.tx = tx
		res = cmd.Execute(&ex)
		ex.tx = nil
	})

	d.statsMu.Lock()
	if res.Succeeded() {
		d.stats.Executed++
	} else {
		d.stats.Failed++
	}
	d.statsMu.Unlock()

	if res.Succeeded() {
		d.logger.Debug("command executed", "command", cmd.String(), "pid", cmd.SenderPID(), "result", res.String())
	} else {
		d.logger.Warn("command failed", "command", cmd.String(), "pid", cmd.SenderPID(), "type", cmd.ExecutionType().String())
	}

	if len(ex.notes) > 0 {
		d.notifyMu.Lock()
		d.notifications = append(d.notifications, ex.notes...)
		d.notifyMu.Unlock()
		signal(d.notifyReady)
	}

	if d.redraw != nil {
		switch {
		case res.NeedsRedraw():
			d.redraw.Redraw()
		case res.Succeeded():
			d.redraw.Wake()
		}
	}
	return res
}

// NotificationsReady fires after commands queued client notifications.
func (d *Dispatcher) NotificationsReady() <-chan struct{} { return d.notifyReady }

// TakeNotifications returns and clears the queued client notifications.
func (d *Dispatcher) TakeNotifications() []Notification {
	d.notifyMu.Lock()
	defer d.notifyMu.Unlock()
	notes := d.notifications
	d.notifications = nil
	return notes
}

// Stats returns the execution counters.
func (d *Dispatcher) Stats() Stats {
	d.queueMu.Lock()
	queued := len(d.queue)
	d.queueMu.Unlock()

	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	st := d.stats
	st.Queued = queued
	return st
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
