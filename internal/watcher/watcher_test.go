package watcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/1broseidon/axwatch/internal/ax"
	"github.com/1broseidon/axwatch/internal/notify"
	"github.com/1broseidon/axwatch/internal/platform"
	"github.com/1broseidon/axwatch/internal/platform/platformtest"
	"github.com/1broseidon/axwatch/internal/ratelimit"
)

type callback struct {
	name string
	ref  platform.Ref
}

func recordingHandler(ch chan<- callback) Funcs {
	send := func(name string) func(*ax.Window) {
		return func(w *ax.Window) { ch <- callback{name: name, ref: w.Ref()} }
	}
	return Funcs{
		FocusedWindowChanged: send("focused"),
		WindowCreated:        send("created"),
		ApplicationActivated: func(e *ax.Element) { ch <- callback{name: "activated", ref: e.Ref()} },
		WindowMinimised:      send("minimised"),
		WindowUnminimised:    send("unminimised"),
		WindowMoved:          send("moved"),
		WindowResized:        send("resized"),
	}
}

func testConfig() Config {
	return Config{
		Center: notify.NewCenter(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func expectCallback(t *testing.T, ch <-chan callback, want callback) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("expected %+v, got %+v", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s callback", want.name)
	}
}

func expectNoCallback(t *testing.T, ch <-chan callback) {
	t.Helper()
	select {
	case got := <-ch:
		t.Fatalf("unexpected callback %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func startWatcher(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.WatchWindows(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("WatchWindows returned %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Errorf("WatchWindows did not stop")
		}
	})
}

func TestWatcher_DispatchesCallbacks(t *testing.T) {
	b := platformtest.New()
	b.AddApp(10, "Editor")
	win := b.AddWindow(10, "doc", platform.Rect{Width: 200, Height: 100})

	ch := make(chan callback, 16)
	w := New(b, recordingHandler(ch), testConfig())
	startWatcher(t, w)
	waitFor(t, "subscription", func() bool { return b.Observed(win, platform.NotificationWindowMoved) })

	tests := []struct {
		n    platform.Notification
		ref  platform.Ref
		want string
	}{
		{platform.NotificationFocusedWindowChanged, win, "focused"},
		{platform.NotificationWindowMiniaturized, win, "minimised"},
		{platform.NotificationWindowDeminiaturized, win, "unminimised"},
		{platform.NotificationWindowMoved, win, "moved"},
		{platform.NotificationWindowResized, win, "resized"},
		{platform.NotificationApplicationActivated, platform.AppRef(10), "activated"},
	}
	for _, tt := range tests {
		if !b.Emit(tt.n, tt.ref) {
			t.Fatalf("%s not subscribed", tt.n)
		}
		expectCallback(t, ch, callback{name: tt.want, ref: tt.ref})
	}

	if b.Emit(platform.NotificationTitleChanged, win) {
		t.Fatalf("expected title changes to be unobserved by default")
	}
}

func TestWatcher_WindowCreatedDropsCache(t *testing.T) {
	b := platformtest.New()
	b.AddApp(10, "Editor")
	b.AddWindow(10, "first", platform.Rect{Width: 200, Height: 100})

	ch := make(chan callback, 16)
	w := New(b, recordingHandler(ch), testConfig())
	startWatcher(t, w)
	waitFor(t, "application", func() bool { _, ok := w.Application(10); return ok })

	app, _ := w.Application(10)
	if ws, err := app.Windows(); err != nil || len(ws) != 1 {
		t.Fatalf("expected 1 cached window, got %d (%v)", len(ws), err)
	}

	second := b.AddWindow(10, "second", platform.Rect{Width: 200, Height: 100})
	b.Emit(platform.NotificationWindowCreated, second)
	expectCallback(t, ch, callback{name: "created", ref: second})

	if ws, err := app.Windows(); err != nil || len(ws) != 2 {
		t.Fatalf("expected cache refreshed to 2 windows, got %d (%v)", len(ws), err)
	}
}

func TestWatcher_CacheDropsWithoutCreatedInConfig(t *testing.T) {
	b := platformtest.New()
	b.AddApp(10, "Editor")
	first := b.AddWindow(10, "first", platform.Rect{Width: 200, Height: 100})

	cfg := testConfig()
	cfg.Notifications = []platform.Notification{platform.NotificationWindowMoved}
	ch := make(chan callback, 16)
	w := New(b, recordingHandler(ch), cfg)
	startWatcher(t, w)
	waitFor(t, "application", func() bool { _, ok := w.Application(10); return ok })

	app, _ := w.Application(10)
	if ws, err := app.Windows(); err != nil || len(ws) != 1 {
		t.Fatalf("expected 1 cached window, got %d (%v)", len(ws), err)
	}

	second := b.AddWindow(10, "second", platform.Rect{Width: 200, Height: 100})
	if !b.Emit(platform.NotificationWindowCreated, second) {
		t.Fatalf("expected window-created to be observed for cache upkeep")
	}
	waitFor(t, "cache refresh", func() bool {
		ws, err := app.Windows()
		return err == nil && len(ws) == 2
	})

	b.RemoveWindow(first)
	if !b.Emit(platform.NotificationUIElementDestroyed, first) {
		t.Fatalf("expected element-destroyed to be observed for cache upkeep")
	}
	waitFor(t, "cache drop", func() bool {
		ws, err := app.Windows()
		return err == nil && len(ws) == 1
	})

	b.Emit(platform.NotificationWindowMoved, second)
	expectCallback(t, ch, callback{name: "moved", ref: second})
	expectNoCallback(t, ch)
}

func TestWatcher_LaunchedWithoutCreatedInConfig(t *testing.T) {
	b := platformtest.New()
	cfg := testConfig()
	cfg.Notifications = []platform.Notification{platform.NotificationWindowMoved}
	ch := make(chan callback, 16)
	w := New(b, recordingHandler(ch), cfg)
	startWatcher(t, w)

	b.AddApp(20, "Late")
	win := b.AddWindow(20, "late", platform.Rect{Width: 200, Height: 100})
	b.Emit(platform.NotificationApplicationLaunched, platform.AppRef(20))
	waitFor(t, "launched app", func() bool { return b.Observed(win, platform.NotificationWindowMoved) })
	expectNoCallback(t, ch)
}

func TestWatcher_LaunchAndTerminate(t *testing.T) {
	b := platformtest.New()
	ch := make(chan callback, 16)
	w := New(b, recordingHandler(ch), testConfig())
	startWatcher(t, w)

	b.AddApp(20, "Late")
	win := b.AddWindow(20, "late", platform.Rect{Width: 200, Height: 100})
	b.Emit(platform.NotificationApplicationLaunched, platform.AppRef(20))
	expectCallback(t, ch, callback{name: "created", ref: win})
	waitFor(t, "launched app", func() bool { return b.Observed(win, platform.NotificationWindowResized) })

	b.Emit(platform.NotificationWindowResized, win)
	expectCallback(t, ch, callback{name: "resized", ref: win})

	b.RemoveApp(20)
	b.Emit(platform.NotificationApplicationTerminated, platform.AppRef(20))
	waitFor(t, "terminated app", func() bool { _, ok := w.Application(20); return !ok })
}

func TestWatcher_ThrottlesMoves(t *testing.T) {
	b := platformtest.New()
	b.AddApp(10, "Editor")
	win := b.AddWindow(10, "doc", platform.Rect{Width: 200, Height: 100})

	cfg := testConfig()
	cfg.Limiter = ratelimit.New(1, 1, time.Minute)
	ch := make(chan callback, 16)
	w := New(b, recordingHandler(ch), cfg)
	fixed := time.Unix(1000, 0)
	w.now = func() time.Time { return fixed }
	startWatcher(t, w)
	waitFor(t, "subscription", func() bool { return b.Observed(win, platform.NotificationWindowMoved) })

	b.Emit(platform.NotificationWindowMoved, win)
	expectCallback(t, ch, callback{name: "moved", ref: win})
	b.Emit(platform.NotificationWindowMoved, win)
	expectNoCallback(t, ch)

	b.Emit(platform.NotificationWindowResized, win)
	expectCallback(t, ch, callback{name: "resized", ref: win})

	waitFor(t, "throttle count", func() bool { return w.Stats().Throttled == 1 })
}

func TestWatcher_RescanIgnoresAndForgets(t *testing.T) {
	b := platformtest.New()
	b.AddApp(1, "Dock")
	b.AddApp(2, "Editor")
	b.AddApp(3, "Browser")

	cfg := testConfig()
	cfg.IgnoreApps = []string{"dock", "com.example.Browser"}
	w := New(b, nil, cfg)
	if err := w.Rescan(); err != nil {
		t.Fatalf("Rescan: %v", err)
	}
	apps := w.Applications()
	if len(apps) != 1 || apps[0].PID() != 2 {
		t.Fatalf("expected only pid 2 watched, got %v", apps)
	}

	b.RemoveApp(2)
	if err := w.Rescan(); err != nil {
		t.Fatalf("Rescan: %v", err)
	}
	if len(w.Applications()) != 0 {
		t.Fatalf("expected exited application to be forgotten")
	}
}

func TestWatcher_UnobservableApplicationRetried(t *testing.T) {
	b := platformtest.New()
	b.AddApp(5, "Slow")
	b.SetObserveError(platform.ErrNotTrusted)

	w := New(b, nil, testConfig())
	if err := w.Rescan(); err != nil {
		t.Fatalf("Rescan: %v", err)
	}
	if _, ok := w.Application(5); ok {
		t.Fatalf("expected application rejecting observers to be skipped")
	}

	b.SetObserveError(nil)
	if err := w.Rescan(); err != nil {
		t.Fatalf("Rescan: %v", err)
	}
	if _, ok := w.Application(5); !ok {
		t.Fatalf("expected application to be watched on retry")
	}
}

func TestWatcher_Reconfigure(t *testing.T) {
	b := platformtest.New()
	b.AddApp(10, "Editor")
	win := b.AddWindow(10, "doc", platform.Rect{Width: 200, Height: 100})

	w := New(b, nil, testConfig())
	if err := w.Rescan(); err != nil {
		t.Fatalf("Rescan: %v", err)
	}
	if !b.Observed(win, platform.NotificationWindowMoved) {
		t.Fatalf("expected default set observed")
	}

	cfg := testConfig()
	cfg.Notifications = []platform.Notification{platform.NotificationTitleChanged}
	if err := w.Reconfigure(cfg); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}
	if b.Observed(win, platform.NotificationWindowMoved) {
		t.Fatalf("expected old subscriptions removed")
	}
	if !b.Observed(win, platform.NotificationTitleChanged) {
		t.Fatalf("expected new notification observed")
	}
}

func TestWatcher_SecondWatchFails(t *testing.T) {
	b := platformtest.New()
	w := New(b, nil, testConfig())
	startWatcher(t, w)
	waitFor(t, "watching", func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.watching
	})
	if err := w.WatchWindows(context.Background()); !errors.Is(err, ErrAlreadyWatching) {
		t.Fatalf("expected ErrAlreadyWatching, got %v", err)
	}
}

func TestKeyWindowForApplication(t *testing.T) {
	b := platformtest.New()
	b.AddApp(10, "Editor")

	app, err := ax.NewApplication(b, 10)
	if err != nil {
		t.Fatalf("NewApplication: %v", err)
	}
	if _, err := KeyWindowForApplication(app); !errors.Is(err, platform.ErrNotFound) {
		t.Fatalf("expected ErrNotFound without windows, got %v", err)
	}

	main := b.AddWindow(10, "main", platform.Rect{Width: 200, Height: 100})
	other := b.AddWindow(10, "other", platform.Rect{Width: 200, Height: 100})
	app.DropWindowsCache()

	w, err := KeyWindowForApplication(app)
	if err != nil || w.Ref() != main {
		t.Fatalf("expected main window fallback, got %v (%v)", w, err)
	}

	b.SetFocused(10, other.ID)
	w, err = KeyWindowForApplication(app)
	if err != nil || w.Ref() != other {
		t.Fatalf("expected focused window, got %v (%v)", w, err)
	}
}
