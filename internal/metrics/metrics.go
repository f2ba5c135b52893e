// Package metrics exposes daemon counters in the Prometheus text format.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/1broseidon/axwatch/internal/platform"
)

const namespace = "axwatch"

// Metrics holds the daemon's collectors on a private registry.
type Metrics struct {
	registry  *prometheus.Registry
	events    *prometheus.CounterVec
	callbacks *prometheus.CounterVec
	actions   *prometheus.CounterVec
}

// Sources supplies values sampled at scrape time. Nil funcs are skipped.
type Sources struct {
	WatchedApplications func() float64
	Throttled           func() float64
	DroppedEvents       func() float64
	HistoryRecords      func() float64
}

// New creates the collectors and registers them.
func New(src Sources) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Accessibility events received, by notification.",
		}, []string{"notification"}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callbacks_total",
			Help:      "Window watcher callbacks delivered, by callback.",
		}, []string{"callback"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Window actions requested over IPC or MCP, by action and result.",
		}, []string{"action", "result"}),
	}
	m.registry.MustRegister(m.events, m.callbacks, m.actions)

	if src.WatchedApplications != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watched_applications",
			Help:      "Applications currently observed.",
		}, src.WatchedApplications))
	}
	if src.Throttled != nil {
		m.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "throttled_total",
			Help:      "Move and resize callbacks dropped by the rate limiter.",
		}, src.Throttled))
	}
	if src.DroppedEvents != nil {
		m.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_events_total",
			Help:      "Backend events discarded because the watcher fell behind.",
		}, src.DroppedEvents))
	}
	if src.HistoryRecords != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_records",
			Help:      "Events held in the recent-events history.",
		}, src.HistoryRecords))
	}
	return m
}

// ObserveEvent counts a received notification.
func (m *Metrics) ObserveEvent(n platform.Notification) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(string(n)).Inc()
}

// ObserveCallback counts a delivered watcher callback.
func (m *Metrics) ObserveCallback(name string) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(name).Inc()
}

// ObserveAction counts a window action and whether it failed.
func (m *Metrics) ObserveAction(action string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.actions.WithLabelValues(action, result).Inc()
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve listens on addr and serves /metrics until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
