// Package daemon runs the window watcher together with its control socket,
// event history, periodic rescans and metrics endpoint.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/1broseidon/axwatch/internal/config"
	"github.com/1broseidon/axwatch/internal/history"
	"github.com/1broseidon/axwatch/internal/ipc"
	"github.com/1broseidon/axwatch/internal/metrics"
	"github.com/1broseidon/axwatch/internal/notify"
	"github.com/1broseidon/axwatch/internal/platform"
	"github.com/1broseidon/axwatch/internal/ratelimit"
	"github.com/1broseidon/axwatch/internal/runtimepath"
	"github.com/1broseidon/axwatch/internal/watcher"
)

// Options configures a Daemon. Zero values select the standard locations
// and the platform backend.
type Options struct {
	ConfigPath  string
	Backend     platform.Backend
	SocketPath  string
	HistoryPath string
	Logger      *slog.Logger
}

// Daemon owns the long-running watcher and everything serving it.
type Daemon struct {
	configPath  string
	socketPath  string
	historyPath string

	backend     platform.Backend
	ownsBackend bool
	center      *notify.Center
	level       *slog.LevelVar
	logger      *slog.Logger

	history    *history.Ring
	metrics    *metrics.Metrics
	recorder   *Recorder
	watcher    *watcher.Watcher
	reconciler *Reconciler
	service    *ipc.Service

	mu  sync.Mutex
	cfg *config.Config
}

// New loads the configuration and assembles a daemon. It does not start
// anything.
func New(opts Options) (*Daemon, error) {
	configPath := opts.ConfigPath
	if configPath == "" {
		path, err := config.DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		configPath = path
	}
	res, err := config.LoadFromPath(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg := res.Config

	level := new(slog.LevelVar)
	level.Set(cfg.SlogLevel())
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	d := &Daemon{
		configPath:  configPath,
		socketPath:  opts.SocketPath,
		historyPath: opts.HistoryPath,
		backend:     opts.Backend,
		center:      notify.NewCenter(),
		level:       level,
		logger:      logger,
		history:     history.New(cfg.HistorySize),
		cfg:         cfg,
	}

	if d.backend == nil {
		if !platform.Trusted(cfg.PromptForTrust) {
			return nil, fmt.Errorf("grant accessibility access in System Settings > Privacy & Security: %w", platform.ErrNotTrusted)
		}
		backend, err := platform.New()
		if err != nil {
			return nil, err
		}
		d.backend = backend
		d.ownsBackend = true
	}

	if d.socketPath == "" && cfg.IPC.Enabled {
		if d.socketPath, err = runtimepath.SocketPath(); err != nil {
			return nil, fmt.Errorf("failed to resolve IPC socket path: %w", err)
		}
	}
	if d.historyPath == "" {
		if d.historyPath, err = runtimepath.HistoryPath(); err != nil {
			logger.Warn("event history will not persist", "error", err)
		}
	}
	if d.historyPath != "" {
		if err := d.history.Load(d.historyPath); err != nil {
			logger.Warn("failed to load event history", "path", d.historyPath, "error", err)
		}
	}

	wcfg, err := d.watcherConfig(cfg)
	if err != nil {
		return nil, err
	}

	d.metrics = metrics.New(metrics.Sources{
		WatchedApplications: func() float64 { return float64(d.watcher.Stats().Applications) },
		Throttled:           func() float64 { return float64(d.watcher.Stats().Throttled) },
		DroppedEvents:       func() float64 { return float64(platform.DroppedEvents(d.backend)) },
		HistoryRecords:      func() float64 { return float64(d.history.Len()) },
	})
	d.recorder = NewRecorder(d.history, d.metrics, logger)
	d.watcher = watcher.New(d.backend, d.recorder, wcfg)
	d.recorder.SetLookup(d.watcher.Application)

	d.service = ipc.NewService(ipc.ServiceConfig{
		Backend: d.backend,
		Watcher: d.watcher,
		History: d.history,
		Metrics: d.metrics,
		Reload:  d.Reload,
	})
	d.reconciler = NewReconciler(ReconcilerConfig{
		Interval: cfg.RescanInterval,
		Flush:    d.saveHistory,
		Logger:   logger,
	}, d.watcher)

	return d, nil
}

// Run serves until ctx is cancelled or the backend event loop fails.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if d.ownsBackend {
		defer d.backend.Disconnect()
	}

	stopCounting := d.recorder.CountEvents(d.center)
	defer stopCounting()

	cfg := d.Config()
	if cfg.IPC.Enabled {
		server := ipc.NewServerAt(d.socketPath, d.service)
		if err := server.Start(); err != nil {
			return err
		}
		defer server.Stop()
	}

	var wg sync.WaitGroup
	if cfg.Metrics.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.metrics.Serve(ctx, cfg.Metrics.Listen, d.logger); err != nil {
				d.logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.reconciler.Run(ctx)
	}()

	d.logger.Info("axwatch daemon started",
		"config", d.configPath,
		"ipc", cfg.IPC.Enabled,
		"metrics", cfg.Metrics.Enabled,
		"notifications", len(d.watcher.Notifications()))

	err := d.watcher.WatchWindows(ctx)
	cancel()
	wg.Wait()

	if serr := d.saveHistory(); serr != nil {
		d.logger.Warn("failed to save event history", "error", serr)
	}
	d.logger.Info("axwatch daemon stopped")
	return err
}

// Reload re-reads the configuration file and applies it to the running
// watcher. IPC and metrics listener settings take effect on restart.
func (d *Daemon) Reload() error {
	res, err := config.LoadFromPath(d.configPath)
	if err != nil {
		return fmt.Errorf("config reload failed: %w", err)
	}
	cfg := res.Config

	wcfg, err := d.watcherConfig(cfg)
	if err != nil {
		return err
	}
	if err := d.watcher.Reconfigure(wcfg); err != nil {
		return fmt.Errorf("failed to apply configuration: %w", err)
	}
	d.history.Resize(cfg.HistorySize)
	d.level.Set(cfg.SlogLevel())
	d.reconciler.SetInterval(cfg.RescanInterval)

	d.mu.Lock()
	prev := d.cfg
	d.cfg = cfg
	d.mu.Unlock()

	if prev.IPC != cfg.IPC || prev.Metrics != cfg.Metrics {
		d.logger.Warn("ipc and metrics settings changed; restart the daemon to apply them")
	}
	d.logger.Info("config reloaded", "files", len(res.Files))
	return nil
}

// Config returns the configuration currently applied.
func (d *Daemon) Config() *config.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// Service returns the command service backing the control socket.
func (d *Daemon) Service() *ipc.Service {
	return d.service
}

// SocketPath returns the control socket path, empty when IPC is disabled.
func (d *Daemon) SocketPath() string {
	return d.socketPath
}

func (d *Daemon) watcherConfig(cfg *config.Config) (watcher.Config, error) {
	notifications, err := cfg.WatchedNotifications()
	if err != nil {
		return watcher.Config{}, err
	}
	return watcher.Config{
		Notifications: notifications,
		IgnoreApps:    cfg.IgnoreApps,
		Limiter:       ratelimit.New(cfg.Throttle.MoveResizePerSecond, cfg.Throttle.Burst, 0),
		Center:        d.center,
		Logger:        d.logger,
	}, nil
}

func (d *Daemon) saveHistory() error {
	if d.historyPath == "" {
		return nil
	}
	return d.history.Save(d.historyPath)
}
