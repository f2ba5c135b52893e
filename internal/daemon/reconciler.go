package daemon

import (
	"context"
	"log/slog"
	"time"
)

// Rescanner re-synchronises watched applications with the running set.
type Rescanner interface {
	Rescan() error
}

// ReconcilerConfig holds configuration for the reconciler.
type ReconcilerConfig struct {
	Interval time.Duration
	// Flush persists state after each pass. Optional.
	Flush  func() error
	Logger *slog.Logger
}

// Reconciler periodically rescans running applications so those that
// launched without a notification, or rejected observers at launch, are
// picked up, and those that exited are forgotten.
type Reconciler struct {
	interval  time.Duration
	rescanner Rescanner
	flush     func() error
	logger    *slog.Logger
	reset     chan time.Duration
}

// NewReconciler creates a new reconciler with the given configuration.
func NewReconciler(cfg ReconcilerConfig, rescanner Rescanner) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Reconciler{
		interval:  interval,
		rescanner: rescanner,
		flush:     cfg.Flush,
		logger:    logger,
		reset:     make(chan time.Duration, 1),
	}
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
		case interval := <-r.reset:
			ticker.Reset(interval)
			r.logger.Info("reconciler interval changed", "interval", interval)
		case <-ticker.C:
			r.reconcile()
		}
	}
}

// SetInterval changes the pass interval of a running reconciler.
func (r *Reconciler) SetInterval(interval time.Duration) {
	if interval <= 0 {
		return
	}
	select {
	case <-r.reset:
	default:
	}
	select {
	case r.reset <- interval:
	default:
	}
}

// reconcile performs a single reconciliation pass.
func (r *Reconciler) reconcile() {
	// Recover from panics to prevent crashing the daemon
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error("reconciler panic recovered", "error", err)
		}
	}()

	if err := r.rescanner.Rescan(); err != nil {
		r.logger.Error("reconciler: rescan failed", "error", err)
	}

	if r.flush != nil {
		if err := r.flush(); err != nil {
			r.logger.Warn("reconciler: flush failed", "error", err)
		}
	}
}

// ReconcileNow triggers an immediate reconciliation pass.
func (r *Reconciler) ReconcileNow() {
	r.reconcile()
}
