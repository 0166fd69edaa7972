// Package render runs the render thread: it owns the composition engine,
// wakes on redraw requests or a frame timer, and composites the scene with
// the software backend into one or more outputs.
package render

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/1broseidon/ivicomp/internal/compose"
	"github.com/1broseidon/ivicomp/internal/scene"
)

// LoopConfig holds configuration for the render loop.
type LoopConfig struct {
	FPS int
	// BeforeFrame runs on the render goroutine before the scene is locked
	// for a frame, typically to apply queued asynchronous commands.
	BeforeFrame func()
	Logger      *slog.Logger
}

// Loop drives the engine. It implements command.Redrawer.
type Loop struct {
	scene       *scene.Scene
	engine      *compose.Engine
	interval    time.Duration
	beforeFrame func()
	logger      *slog.Logger

	wake      chan struct{}
	force     atomic.Bool
	lastFrame time.Time
	frames    atomic.Uint64
	composed  atomic.Uint64
}

// NewLoop creates a render loop for sc.
func NewLoop(sc *scene.Scene, engine *compose.Engine, cfg LoopConfig) *Loop {
	fps := cfg.FPS
	if fps <= 0 {
		fps = 60
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	l := &Loop{
		scene:       sc,
		engine:      engine,
		interval:    time.Second / time.Duration(fps),
		beforeFrame: cfg.BeforeFrame,
		logger:      logger,
		wake:        make(chan struct{}, 1),
	}
	l.force.Store(true)
	return l
}

// Redraw makes the next frame recomposite every screen.
func (l *Loop) Redraw() {
	l.force.Store(true)
	l.Wake()
}

// Wake asks for a frame as soon as the frame interval allows.
func (l *Loop) Wake() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Frames returns how many frame ticks ran and how many screens were
// composed in total.
func (l *Loop) Frames() (ticks, composed uint64) {
	return l.frames.Load(), l.composed.Load()
}

// Run renders until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Info("render loop started", "interval", l.interval)
	l.Frame()
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("render loop stopped")
			return nil
		case <-ticker.C:
			l.Frame()
		case <-l.wake:
			// Wakes inside the frame interval wait for the ticker.
			if time.Since(l.lastFrame) >= l.interval {
				l.Frame()
			}
		}
	}
}

// Frame runs one frame synchronously.
func (l *Loop) Frame() {
	defer func() {
		if err := recover(); err != nil {
			l.logger.Error("render panic recovered", "error", err)
		}
	}()

	if l.beforeFrame != nil {
		l.beforeFrame()
	}
	force := l.force.Swap(false)
	l.lastFrame = time.Now()
	l.frames.Add(1)

	var (
		n   int
		err error
	)
	l.scene.Do(func(tx *scene.Tx) {
		n, err = l.engine.Frame(tx, force)
	})
	l.composed.Add(uint64(n))
	if err != nil {
		l.logger.Error("frame failed", "error", err)
		return
	}
	if n > 0 {
		l.logger.Debug("frame composed", "screens", n, "forced", force, "took", time.Since(l.lastFrame))
	}
}
