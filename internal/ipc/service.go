package ipc

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/1broseidon/axwatch/internal/ax"
	"github.com/1broseidon/axwatch/internal/history"
	"github.com/1broseidon/axwatch/internal/metrics"
	"github.com/1broseidon/axwatch/internal/platform"
	"github.com/1broseidon/axwatch/internal/watcher"
)

const defaultEventsLimit = 50

// ServiceConfig wires a Service. Only Backend is required.
type ServiceConfig struct {
	Backend platform.Backend
	Watcher *watcher.Watcher
	History *history.Ring
	Metrics *metrics.Metrics
	// Reload re-reads the configuration and applies it.
	Reload func() error
}

// Service executes IPC commands against the accessibility backend. The
// server calls it for socket requests; in-process callers may use it
// directly.
type Service struct {
	backend platform.Backend
	watcher *watcher.Watcher
	history *history.Ring
	metrics *metrics.Metrics
	reload  func() error
	started time.Time
}

// NewService creates a service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		backend: cfg.Backend,
		watcher: cfg.Watcher,
		history: cfg.History,
		metrics: cfg.Metrics,
		reload:  cfg.Reload,
		started: time.Now(),
	}
}

// Status reports daemon state.
func (s *Service) Status() (*StatusData, error) {
	status := &StatusData{
		DaemonRunning: true,
		Backend:       runtime.GOOS,
		UptimeSeconds: uptime(s.started),
		Dropped:       platform.DroppedEvents(s.backend),
	}
	if s.watcher != nil {
		stats := s.watcher.Stats()
		status.Applications = stats.Applications
		status.Events = stats.Events
		status.Callbacks = stats.Callbacks
		status.Throttled = stats.Throttled
		status.Notifications = s.watcher.Notifications()
	}
	if s.history != nil {
		status.HistorySize = s.history.Len()
	}
	return status, nil
}

// Reload re-reads the configuration.
func (s *Service) Reload() error {
	if s.reload == nil {
		return fmt.Errorf("reload not supported")
	}
	return s.reload()
}

// ListApps returns every running application ordered by pid.
func (s *Service) ListApps() ([]AppData, error) {
	apps, err := ax.RunningApplications(s.backend)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	out := make([]AppData, 0, len(apps))
	for _, app := range apps {
		out = append(out, s.appData(s.application(app)))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out, nil
}

// ListWindows returns the windows of pid, or of every application when
// pid is zero.
func (s *Service) ListWindows(p ListWindowsPayload) ([]WindowData, error) {
	var apps []*ax.Application
	if p.PID != 0 {
		app, err := s.app(p.PID)
		if err != nil {
			return nil, err
		}
		apps = []*ax.Application{app}
	} else {
		running, err := ax.RunningApplications(s.backend)
		if err != nil {
			return nil, fmt.Errorf("failed to list applications: %w", err)
		}
		for _, app := range running {
			apps = append(apps, s.application(app))
		}
	}

	displays, _ := s.backend.Displays()
	var out []WindowData
	for _, app := range apps {
		var (
			windows []*ax.Window
			err     error
		)
		if p.VisibleOnly {
			windows, err = app.VisibleWindows()
		} else {
			windows, err = app.Windows()
		}
		if err != nil {
			if p.PID != 0 {
				return nil, err
			}
			continue
		}
		focused := s.focusedRef(app)
		for _, w := range windows {
			data, err := windowData(app, w, focused, displays)
			if err != nil {
				continue
			}
			out = append(out, data)
		}
	}
	return out, nil
}

// Focused returns the active application and its focused window.
func (s *Service) Focused() (*FocusedData, error) {
	app, err := ax.FocusedApplication(s.backend)
	if err != nil {
		return nil, fmt.Errorf("no focused application: %w", err)
	}
	app = s.application(app)
	data := &FocusedData{App: s.appData(app)}

	w, err := app.FocusedWindow()
	if err != nil {
		return data, nil
	}
	displays, _ := s.backend.Displays()
	if wd, err := windowData(app, w, w.Ref(), displays); err == nil {
		data.Window = &wd
	}
	return data, nil
}

// MoveWindow moves the target window to (x, y).
func (s *Service) MoveWindow(p MoveWindowPayload) (*WindowData, error) {
	return s.withWindow("move", p.WindowTarget, func(w *ax.Window) error {
		return w.Move(p.X, p.Y)
	})
}

// ResizeWindow resizes the target window.
func (s *Service) ResizeWindow(p ResizeWindowPayload) (*WindowData, error) {
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("width and height must be > 0")
	}
	return s.withWindow("resize", p.WindowTarget, func(w *ax.Window) error {
		return w.Resize(p.Width, p.Height)
	})
}

// SetFrame moves and resizes the target window.
func (s *Service) SetFrame(p SetFramePayload) (*WindowData, error) {
	return s.withWindow("set_frame", p.WindowTarget, func(w *ax.Window) error {
		return w.SetFrame(p.Frame)
	})
}

// MinimizeWindow minimizes the target window.
func (s *Service) MinimizeWindow(t WindowTarget) (*WindowData, error) {
	return s.withWindow("minimize", t, (*ax.Window).Minimize)
}

// UnminimizeWindow restores the target window.
func (s *Service) UnminimizeWindow(t WindowTarget) (*WindowData, error) {
	return s.withWindow("unminimize", t, (*ax.Window).Unminimize)
}

// FocusWindow raises and focuses the target window.
func (s *Service) FocusWindow(t WindowTarget) (*WindowData, error) {
	return s.withWindow("focus", t, (*ax.Window).Focus)
}

// HideApp hides the application.
func (s *Service) HideApp(pid platform.PID) (*AppData, error) {
	return s.withApp("hide", pid, (*ax.Application).Hide)
}

// UnhideApp shows the application.
func (s *Service) UnhideApp(pid platform.PID) (*AppData, error) {
	return s.withApp("unhide", pid, (*ax.Application).Unhide)
}

// RecentEvents returns dispatched events newer than p.After.
func (s *Service) RecentEvents(p RecentEventsPayload) (*EventsData, error) {
	if s.history == nil {
		return &EventsData{Events: []history.Record{}}, nil
	}
	limit := p.Limit
	if limit <= 0 {
		limit = defaultEventsLimit
	}
	return &EventsData{Events: s.history.Since(p.After, limit)}, nil
}

// ResolveWindow returns the window selected by t.
func (s *Service) ResolveWindow(t WindowTarget) (*ax.Application, *ax.Window, error) {
	var (
		app *ax.Application
		err error
	)
	if t.PID == 0 {
		app, err = ax.FocusedApplication(s.backend)
		if err != nil {
			return nil, nil, fmt.Errorf("no focused application: %w", err)
		}
		app = s.application(app)
	} else {
		app, err = s.app(t.PID)
		if err != nil {
			return nil, nil, err
		}
	}

	if t.WindowID == 0 {
		w, err := watcher.KeyWindowForApplication(app)
		if err != nil {
			return nil, nil, err
		}
		return app, w, nil
	}

	element := ax.NewElement(s.backend, platform.Ref{PID: app.PID(), ID: t.WindowID}, ax.RoleWindow)
	w, err := app.AsWindow(element)
	if err != nil {
		return nil, nil, fmt.Errorf("window %d of pid %d: %w", t.WindowID, app.PID(), err)
	}
	return app, w, nil
}

func (s *Service) withWindow(name string, t WindowTarget, action func(*ax.Window) error) (*WindowData, error) {
	app, w, err := s.ResolveWindow(t)
	if err == nil {
		err = action(w)
	}
	s.metrics.ObserveAction(name, err)
	if err != nil {
		return nil, err
	}
	displays, _ := s.backend.Displays()
	data, err := windowData(app, w, s.focusedRef(app), displays)
	if err != nil {
		// Report the last known state when the window can no longer be queried.
		if errors.Is(err, platform.ErrNotFound) {
			snap := w.Snapshot()
			return &WindowData{PID: app.PID(), WindowID: w.Ref().ID, Title: snap.Title, Frame: snap.Bounds}, nil
		}
		return nil, err
	}
	return &data, nil
}

func (s *Service) withApp(name string, pid platform.PID, action func(*ax.Application) error) (*AppData, error) {
	app, err := s.app(pid)
	if err == nil {
		err = action(app)
	}
	s.metrics.ObserveAction(name, err)
	if err != nil {
		return nil, err
	}
	data := s.appData(app)
	return &data, nil
}

// app returns the watcher's Application for pid so cached windows are
// shared, falling back to a fresh one.
func (s *Service) app(pid platform.PID) (*ax.Application, error) {
	if s.watcher != nil {
		if app, ok := s.watcher.Application(pid); ok {
			return app, nil
		}
	}
	return ax.NewApplication(s.backend, pid)
}

func (s *Service) application(app *ax.Application) *ax.Application {
	if s.watcher != nil {
		if watched, ok := s.watcher.Application(app.PID()); ok {
			return watched
		}
	}
	return app
}

func (s *Service) appData(app *ax.Application) AppData {
	data := AppData{PID: app.PID(), Name: app.Title(), BundleID: app.BundleID()}
	if info, err := app.Info(); err == nil {
		data.Hidden = info.Hidden
		data.Active = info.Active
	}
	if windows, err := app.Windows(); err == nil {
		data.Windows = len(windows)
	}
	if s.watcher != nil {
		_, data.Watched = s.watcher.Application(app.PID())
	}
	return data
}

func (s *Service) focusedRef(app *ax.Application) platform.Ref {
	ref, err := s.backend.FocusedWindow(app.PID())
	if err != nil {
		return platform.Ref{}
	}
	return ref
}

func windowData(app *ax.Application, w *ax.Window, focused platform.Ref, displays []platform.Display) (WindowData, error) {
	info, err := w.Info()
	if err != nil {
		return WindowData{}, err
	}
	data := WindowData{
		PID:       app.PID(),
		WindowID:  info.Ref.ID,
		App:       app.Title(),
		Title:     info.Title,
		Role:      info.Role,
		Subrole:   info.Subrole,
		Frame:     info.Bounds,
		Minimized: info.Minimized,
		Main:      info.Main,
		Focused:   focused == info.Ref,
	}
	cx, cy := info.Bounds.Center()
	if d, ok := platform.DisplayAt(displays, cx, cy); ok {
		data.Display = d.Name
	}
	return data, nil
}
