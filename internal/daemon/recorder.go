package daemon

import (
	"log/slog"
	"sync"

	"github.com/1broseidon/axwatch/internal/ax"
	"github.com/1broseidon/axwatch/internal/history"
	"github.com/1broseidon/axwatch/internal/metrics"
	"github.com/1broseidon/axwatch/internal/notify"
	"github.com/1broseidon/axwatch/internal/platform"
	"github.com/1broseidon/axwatch/internal/watcher"
)

// AppLookup resolves a pid to a watched application.
type AppLookup func(pid platform.PID) (*ax.Application, bool)

// Recorder handles watcher callbacks by appending them to the event
// history, counting them and logging them at debug level.
type Recorder struct {
	history *history.Ring
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu     sync.RWMutex
	lookup AppLookup
}

var _ watcher.Handler = (*Recorder)(nil)

// NewRecorder creates a recorder. history and m may be nil.
func NewRecorder(h *history.Ring, m *metrics.Metrics, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{history: h, metrics: m, logger: logger}
}

// SetLookup sets the function used to name the application of a window.
func (r *Recorder) SetLookup(lookup AppLookup) {
	r.mu.Lock()
	r.lookup = lookup
	r.mu.Unlock()
}

// CountEvents counts every accessibility notification reposted on center
// until the returned func is called.
func (r *Recorder) CountEvents(center *notify.Center) func() {
	token := center.AddObserver(ax.EventNotification, func(n notify.Notification) {
		if data, ok := ax.DataFrom(n); ok {
			r.metrics.ObserveEvent(data.Notification)
		}
	})
	return func() { center.RemoveObserver(token) }
}

func (r *Recorder) OnFocusedWindowChanged(w *ax.Window) {
	r.window("focused_window_changed", platform.NotificationFocusedWindowChanged, w)
}

func (r *Recorder) OnWindowCreated(w *ax.Window) {
	r.window("window_created", platform.NotificationWindowCreated, w)
}

func (r *Recorder) OnWindowMinimised(w *ax.Window) {
	r.window("window_minimised", platform.NotificationWindowMiniaturized, w)
}

func (r *Recorder) OnWindowUnminimised(w *ax.Window) {
	r.window("window_unminimised", platform.NotificationWindowDeminiaturized, w)
}

func (r *Recorder) OnWindowMoved(w *ax.Window) {
	r.window("window_moved", platform.NotificationWindowMoved, w)
}

func (r *Recorder) OnWindowResized(w *ax.Window) {
	r.window("window_resized", platform.NotificationWindowResized, w)
}

func (r *Recorder) OnApplicationActivated(e *ax.Element) {
	r.metrics.ObserveCallback("application_activated")
	rec := history.Record{
		Notification: platform.NotificationApplicationActivated,
		PID:          e.PID(),
		App:          r.appName(e.PID()),
	}
	r.add(rec)
	r.logger.Debug("application activated", "pid", rec.PID, "app", rec.App)
}

func (r *Recorder) window(callback string, n platform.Notification, w *ax.Window) {
	r.metrics.ObserveCallback(callback)

	info, err := w.Info()
	if err != nil {
		info = w.Snapshot()
	}
	frame := info.Bounds
	rec := history.Record{
		Notification: n,
		PID:          w.PID(),
		WindowID:     w.Ref().ID,
		App:          r.appName(w.PID()),
		Title:        info.Title,
		Frame:        &frame,
	}
	r.add(rec)
	r.logger.Debug(callback,
		"pid", rec.PID,
		"window_id", rec.WindowID,
		"app", rec.App,
		"title", rec.Title,
		"frame", frame.String())
}

func (r *Recorder) add(rec history.Record) {
	if r.history == nil {
		return
	}
	r.history.Add(rec)
}

func (r *Recorder) appName(pid platform.PID) string {
	r.mu.RLock()
	lookup := r.lookup
	r.mu.RUnlock()
	if lookup == nil {
		return ""
	}
	if app, ok := lookup(pid); ok {
		return app.Title()
	}
	return ""
}
