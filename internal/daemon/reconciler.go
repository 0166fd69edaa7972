package daemon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sys/unix"
)

// ProcessChecker reports whether a process is still running.
type ProcessChecker func(pid int) bool

// ReconcilerConfig holds configuration for the reconciler.
type ReconcilerConfig struct {
	Interval time.Duration
	Logger   *slog.Logger
	// Alive defaults to probing the pid with signal 0.
	Alive ProcessChecker
}

// Reconciler periodically removes scene objects left behind by clients
// that exited without cleaning up.
type Reconciler struct {
	interval time.Duration
	sync     *StateSynchronizer
	alive    ProcessChecker
	logger   *slog.Logger
}

// NewReconciler creates a new reconciler with the given configuration.
func NewReconciler(cfg ReconcilerConfig, sync *StateSynchronizer) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	alive := cfg.Alive
	if alive == nil {
		alive = ProcessAlive
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Reconciler{
		interval: interval,
		sync:     sync,
		alive:    alive,
		logger:   logger,
	}
}

// ProcessAlive probes pid with signal 0. A process we may not signal still
// exists.
func ProcessAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// Run starts the reconciliation loop. Blocks until context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			r.reconcile()
		}
	}
}

// reconcile performs a single reconciliation pass.
func (r *Reconciler) reconcile() (layers, surfaces int) {
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error("reconciler panic recovered", "error", err)
		}
	}()

	for _, pid := range r.sync.disp.Scene().CreatorPIDs() {
		if r.alive(pid) {
			continue
		}
		r.logger.Info("reconciler: creator gone", "pid", pid)
		l, s := r.sync.HandleClientExited(pid)
		layers += l
		surfaces += s
	}
	return layers, surfaces
}

// ReconcileNow triggers an immediate reconciliation pass and returns how
// many layers and surfaces it removed.
func (r *Reconciler) ReconcileNow() (layers, surfaces int) {
	return r.reconcile()
}
