// Package watcher turns accessibility notifications from every running
// application into window lifecycle callbacks.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/1broseidon/axwatch/internal/ax"
	"github.com/1broseidon/axwatch/internal/notify"
	"github.com/1broseidon/axwatch/internal/platform"
	"github.com/1broseidon/axwatch/internal/ratelimit"
)

// ErrAlreadyWatching is returned by WatchWindows when the watcher is already
// running.
var ErrAlreadyWatching = errors.New("watcher already running")

// DefaultNotifications is the set observed on every application when the
// config does not name one.
var DefaultNotifications = []platform.Notification{
	platform.NotificationFocusedWindowChanged,
	platform.NotificationWindowCreated,
	platform.NotificationApplicationActivated,
	platform.NotificationWindowMiniaturized,
	platform.NotificationWindowDeminiaturized,
	platform.NotificationWindowMoved,
	platform.NotificationWindowResized,
	platform.NotificationUIElementDestroyed,
}

// cacheNotifications are observed on every watched application whatever the
// configured set is, so window caches drop when windows come and go.
var cacheNotifications = []platform.Notification{
	platform.NotificationWindowCreated,
	platform.NotificationUIElementDestroyed,
}

// Config holds watcher settings.
type Config struct {
	Notifications []platform.Notification
	IgnoreApps    []string
	// Limiter throttles moved/resized callbacks per window. Nil disables it.
	Limiter *ratelimit.Limiter
	Center  *notify.Center
	Logger  *slog.Logger
}

// Stats counts events seen by the watcher.
type Stats struct {
	Applications int    `json:"applications"`
	Events       uint64 `json:"events"`
	Callbacks    uint64 `json:"callbacks"`
	Throttled    uint64 `json:"throttled"`
}

// Watcher observes window notifications on all running applications.
type Watcher struct {
	backend platform.Backend
	handler Handler
	center  *notify.Center
	logger  *slog.Logger
	now     func() time.Time

	events    atomic.Uint64
	callbacks atomic.Uint64
	throttled atomic.Uint64

	mu            sync.Mutex
	notifications []platform.Notification
	ignore        map[string]struct{}
	limiter       *ratelimit.Limiter
	apps          map[platform.PID]*ax.Application
	watching      bool
}

// New creates a watcher delivering callbacks to handler.
func New(backend platform.Backend, handler Handler, cfg Config) *Watcher {
	if handler == nil {
		handler = NopHandler{}
	}
	center := cfg.Center
	if center == nil {
		center = notify.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{
		backend: backend,
		handler: handler,
		center:  center,
		logger:  logger,
		now:     time.Now,
		apps:    make(map[platform.PID]*ax.Application),
	}
	w.applyConfig(cfg)
	return w
}

func (w *Watcher) applyConfig(cfg Config) {
	notifications := cfg.Notifications
	if len(notifications) == 0 {
		notifications = DefaultNotifications
	}
	w.notifications = append([]platform.Notification(nil), notifications...)
	w.ignore = make(map[string]struct{}, len(cfg.IgnoreApps))
	for _, name := range cfg.IgnoreApps {
		w.ignore[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}
	w.limiter = cfg.Limiter
}

// Reconfigure replaces the watched notification set, ignore list and
// limiter, then re-observes every running application.
func (w *Watcher) Reconfigure(cfg Config) error {
	w.mu.Lock()
	w.applyConfig(cfg)
	apps := w.apps
	w.apps = make(map[platform.PID]*ax.Application)
	w.mu.Unlock()

	for _, app := range apps {
		app.UnobserveAll()
	}
	return w.Rescan()
}

// WatchWindows runs the backend event loop and dispatches notifications
// until ctx is cancelled.
func (w *Watcher) WatchWindows(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return ErrAlreadyWatching
	}
	w.watching = true
	w.mu.Unlock()

	token := w.center.AddObserver(ax.EventNotification, w.handleNotification)
	defer func() {
		w.center.RemoveObserver(token)
		w.forgetAll()
		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	}()

	runErr := make(chan error, 1)
	go func() {
		runErr <- w.backend.Run(ctx)
	}()

	if err := w.Rescan(); err != nil {
		w.logger.Warn("initial scan failed", "error", err)
	}
	w.logger.Info("watching windows", "applications", w.Stats().Applications)

	events := w.backend.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-runErr:
			if ctx.Err() != nil {
				return nil
			}
			if err == nil {
				err = errors.New("event loop exited")
			}
			return fmt.Errorf("backend: %w", err)
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			w.handleEvent(ev)
		}
	}
}

// Rescan observes running applications not yet watched and forgets those
// that are gone.
func (w *Watcher) Rescan() error {
	infos, err := w.backend.RunningApplications()
	if err != nil {
		return fmt.Errorf("list applications: %w", err)
	}

	running := make(map[platform.PID]bool, len(infos))
	for _, info := range infos {
		running[info.PID] = true
		if w.watched(info.PID) {
			continue
		}
		w.watchApplication(info)
	}

	w.mu.Lock()
	var gone []platform.PID
	for pid := range w.apps {
		if !running[pid] {
			gone = append(gone, pid)
		}
	}
	w.mu.Unlock()

	for _, pid := range gone {
		w.forgetApplication(pid)
	}
	return nil
}

// Applications returns the watched applications ordered by pid.
func (w *Watcher) Applications() []*ax.Application {
	w.mu.Lock()
	apps := make([]*ax.Application, 0, len(w.apps))
	for _, app := range w.apps {
		apps = append(apps, app)
	}
	w.mu.Unlock()
	sort.Slice(apps, func(i, j int) bool { return apps[i].PID() < apps[j].PID() })
	return apps
}

// Application returns the watched application for pid.
func (w *Watcher) Application(pid platform.PID) (*ax.Application, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	app, ok := w.apps[pid]
	return app, ok
}

// Notifications returns the observed notification set.
func (w *Watcher) Notifications() []platform.Notification {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]platform.Notification(nil), w.notifications...)
}

// Stats returns event counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	n := len(w.apps)
	w.mu.Unlock()
	return Stats{
		Applications: n,
		Events:       w.events.Load(),
		Callbacks:    w.callbacks.Load(),
		Throttled:    w.throttled.Load(),
	}
}

func (w *Watcher) watched(pid platform.PID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.apps[pid]
	return ok
}

func (w *Watcher) ignored(info platform.AppInfo) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.ignore) == 0 {
		return false
	}
	if _, ok := w.ignore[strings.ToLower(info.Name)]; ok {
		return true
	}
	_, ok := w.ignore[strings.ToLower(info.BundleID)]
	return ok
}

// watchApplication observes the notification set on info's application.
// Applications that accept none of the observers are skipped so a later
// Rescan retries them; freshly launched processes often reject observers
// until their accessibility tree exists. It returns the newly watched
// application, or nil.
func (w *Watcher) watchApplication(info platform.AppInfo) *ax.Application {
	if w.ignored(info) {
		return nil
	}
	app := ax.ApplicationFromInfo(w.backend, info, ax.WithCenter(w.center))

	observed := 0
	for _, n := range w.Notifications() {
		if app.ObserveNotification(n, &app.Element) {
			observed++
		}
	}
	for _, n := range cacheNotifications {
		if app.Observing(n, &app.Element) {
			continue
		}
		if app.ObserveNotificationFunc(n, &app.Element, func(*ax.Element) {}) {
			observed++
		}
	}
	if observed == 0 {
		w.logger.Debug("application not observable yet", "pid", info.PID, "name", info.Name)
		return nil
	}

	w.mu.Lock()
	if _, exists := w.apps[info.PID]; exists {
		w.mu.Unlock()
		return nil
	}
	w.apps[info.PID] = app
	w.mu.Unlock()

	w.logger.Debug("watching application", "pid", info.PID, "name", info.Name, "notifications", observed)
	return app
}

// announceWindows dispatches a window-created notification for every window
// app already has. Windows a launching application opens before its
// observers are registered produce no event of their own.
func (w *Watcher) announceWindows(app *ax.Application) {
	if !slices.Contains(w.Notifications(), platform.NotificationWindowCreated) {
		return
	}
	app.DropWindowsCache()
	windows, err := app.Windows()
	if err != nil {
		w.logger.Debug("list launched windows", "pid", app.PID(), "error", err)
		return
	}
	for _, win := range windows {
		app.Dispatch(platform.Event{
			Notification: platform.NotificationWindowCreated,
			Ref:          win.Ref(),
			Time:         w.now(),
		})
	}
}

func (w *Watcher) forgetApplication(pid platform.PID) {
	w.mu.Lock()
	app, ok := w.apps[pid]
	delete(w.apps, pid)
	w.mu.Unlock()
	if !ok {
		return
	}
	app.UnobserveAll()
	w.logger.Debug("forgot application", "pid", pid)
}

func (w *Watcher) forgetAll() {
	w.mu.Lock()
	apps := w.apps
	w.apps = make(map[platform.PID]*ax.Application)
	w.mu.Unlock()
	for _, app := range apps {
		app.UnobserveAll()
	}
}

func (w *Watcher) handleEvent(ev platform.Event) {
	defer func() {
		if err := recover(); err != nil {
			w.logger.Error("watcher panic recovered", "notification", ev.Notification, "ref", ev.Ref.String(), "error", err)
		}
	}()

	w.events.Add(1)

	switch ev.Notification {
	case platform.NotificationApplicationLaunched:
		info, err := w.backend.Application(ev.Ref.PID)
		if err != nil {
			w.logger.Debug("launched application vanished", "pid", ev.Ref.PID, "error", err)
			return
		}
		if w.watched(info.PID) {
			return
		}
		if app := w.watchApplication(info); app != nil {
			w.announceWindows(app)
		}
		return
	case platform.NotificationApplicationTerminated:
		w.forgetApplication(ev.Ref.PID)
		return
	}

	app, ok := w.Application(ev.Ref.PID)
	if !ok {
		return
	}
	switch ev.Notification {
	case platform.NotificationWindowCreated:
		app.DropWindowsCache()
	case platform.NotificationUIElementDestroyed:
		app.DropWindowsCache()
		w.forgetLimits(ev.Ref)
	}
	app.Dispatch(ev)
}

// handleNotification converts a notification posted by an application's
// default handler into a Handler callback.
func (w *Watcher) handleNotification(n notify.Notification) {
	data, ok := ax.DataFrom(n)
	if !ok {
		return
	}
	app, ok := w.Application(data.Element.PID())
	if !ok {
		return
	}

	if data.Notification == platform.NotificationApplicationActivated {
		w.callbacks.Add(1)
		w.handler.OnApplicationActivated(data.Element)
		return
	}

	var callback func(*ax.Window)
	switch data.Notification {
	case platform.NotificationFocusedWindowChanged:
		callback = w.handler.OnFocusedWindowChanged
	case platform.NotificationWindowCreated:
		callback = w.handler.OnWindowCreated
	case platform.NotificationWindowMiniaturized:
		callback = w.handler.OnWindowMinimised
	case platform.NotificationWindowDeminiaturized:
		callback = w.handler.OnWindowUnminimised
	case platform.NotificationWindowMoved:
		callback = w.handler.OnWindowMoved
	case platform.NotificationWindowResized:
		callback = w.handler.OnWindowResized
	default:
		return
	}

	if data.Notification == platform.NotificationWindowMoved || data.Notification == platform.NotificationWindowResized {
		if !w.allow(data.Element.Ref(), data.Notification) {
			w.throttled.Add(1)
			return
		}
	}

	window, err := app.AsWindow(data.Element)
	if err != nil {
		w.logger.Debug("notification without window", "notification", data.Notification, "element", data.Element.String(), "error", err)
		return
	}
	w.callbacks.Add(1)
	callback(window)
}

func (w *Watcher) allow(ref platform.Ref, n platform.Notification) bool {
	w.mu.Lock()
	limiter := w.limiter
	w.mu.Unlock()
	return limiter.Allow(limitKey(ref, n), w.now())
}

func (w *Watcher) forgetLimits(ref platform.Ref) {
	w.mu.Lock()
	limiter := w.limiter
	w.mu.Unlock()
	limiter.Forget(limitKey(ref, platform.NotificationWindowMoved))
	limiter.Forget(limitKey(ref, platform.NotificationWindowResized))
}

func limitKey(ref platform.Ref, n platform.Notification) string {
	return ref.String() + "|" + string(n)
}

// KeyWindowForApplication returns the window that receives keyboard input
// for app: its focused window, else its main window, else its first visible
// window.
func KeyWindowForApplication(app *ax.Application) (*ax.Window, error) {
	if w, err := app.FocusedWindow(); err == nil {
		return w, nil
	}
	if w, err := app.MainWindow(); err == nil {
		return w, nil
	}
	visible, err := app.VisibleWindows()
	if err != nil {
		return nil, err
	}
	if len(visible) == 0 {
		return nil, fmt.Errorf("application %d has no key window: %w", app.PID(), platform.ErrNotFound)
	}
	return visible[0], nil
}
