package ax

import (
	"errors"
	"testing"

	"github.com/1broseidon/axwatch/internal/notify"
	"github.com/1broseidon/axwatch/internal/platform"
	"github.com/1broseidon/axwatch/internal/platform/platformtest"
)

func newFakeApp(t *testing.T) (*platformtest.Backend, *Application, *notify.Center) {
	t.Helper()
	b := platformtest.New()
	b.AddApp(10, "Editor")
	center := notify.NewCenter()
	app, err := NewApplication(b, 10, WithCenter(center))
	if err != nil {
		t.Fatalf("NewApplication: %v", err)
	}
	return b, app, center
}

func TestNewApplication_UnknownPID(t *testing.T) {
	b := platformtest.New()
	_, err := NewApplication(b, 99)
	if !errors.Is(err, platform.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestApplication_WindowsCached(t *testing.T) {
	b, app, _ := newFakeApp(t)
	b.AddWindow(10, "one", platform.Rect{Width: 100, Height: 100})

	first, err := app.Windows()
	if err != nil {
		t.Fatalf("Windows: %v", err)
	}
	b.AddWindow(10, "two", platform.Rect{Width: 100, Height: 100})
	second, err := app.Windows()
	if err != nil {
		t.Fatalf("Windows: %v", err)
	}

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected cached single window, got %d then %d", len(first), len(second))
	}
	if first[0] != second[0] {
		t.Fatalf("expected the same *Window from the cache")
	}
	if b.WindowsCalls() != 1 {
		t.Fatalf("expected 1 backend Windows call, got %d", b.WindowsCalls())
	}

	app.DropWindowsCache()
	third, err := app.Windows()
	if err != nil {
		t.Fatalf("Windows: %v", err)
	}
	if len(third) != 2 {
		t.Fatalf("expected 2 windows after dropping cache, got %d", len(third))
	}
	if b.WindowsCalls() != 2 {
		t.Fatalf("expected re-enumeration, got %d calls", b.WindowsCalls())
	}
}

func TestApplication_VisibleWindows(t *testing.T) {
	b, app, _ := newFakeApp(t)
	b.AddWindow(10, "shown", platform.Rect{Width: 100, Height: 100})
	hidden := b.AddWindow(10, "minimized", platform.Rect{Width: 100, Height: 100})
	if err := b.SetMinimized(hidden, true); err != nil {
		t.Fatalf("SetMinimized: %v", err)
	}

	visible, err := app.VisibleWindows()
	if err != nil {
		t.Fatalf("VisibleWindows: %v", err)
	}
	if len(visible) != 1 || visible[0].Title() != "shown" {
		t.Fatalf("expected only the unminimized window, got %d", len(visible))
	}

	if err := app.Hide(); err != nil {
		t.Fatalf("Hide: %v", err)
	}
	visible, err = app.VisibleWindows()
	if err != nil {
		t.Fatalf("VisibleWindows: %v", err)
	}
	if len(visible) != 0 {
		t.Fatalf("expected no visible windows for hidden app, got %d", len(visible))
	}
	if !app.IsHidden() {
		t.Fatalf("expected app to report hidden")
	}
	if err := app.Unhide(); err != nil {
		t.Fatalf("Unhide: %v", err)
	}
	if app.IsHidden() {
		t.Fatalf("expected app to be shown again")
	}
}

func TestApplication_FocusedAndMainWindow(t *testing.T) {
	b, app, _ := newFakeApp(t)
	main := b.AddWindow(10, "main", platform.Rect{Width: 100, Height: 100})
	other := b.AddWindow(10, "other", platform.Rect{Width: 100, Height: 100})

	if _, err := app.FocusedWindow(); !errors.Is(err, platform.ErrNotFound) {
		t.Fatalf("expected ErrNotFound with no focus, got %v", err)
	}

	b.SetFocused(10, other.ID)
	w, err := app.FocusedWindow()
	if err != nil {
		t.Fatalf("FocusedWindow: %v", err)
	}
	if w.Ref() != other {
		t.Fatalf("expected focused %s, got %s", other, w.Ref())
	}

	m, err := app.MainWindow()
	if err != nil {
		t.Fatalf("MainWindow: %v", err)
	}
	if m.Ref() != main {
		t.Fatalf("expected main %s, got %s", main, m.Ref())
	}
}

func TestApplication_ObserveNotificationPostsToCenter(t *testing.T) {
	b, app, center := newFakeApp(t)
	win := b.AddWindow(10, "doc", platform.Rect{Width: 100, Height: 100})

	var got []NotificationData
	center.AddObserver(EventNotification, func(n notify.Notification) {
		data, ok := DataFrom(n)
		if !ok {
			t.Errorf("notification without data: %+v", n)
			return
		}
		got = append(got, data)
	})

	if !app.ObserveNotification(platform.NotificationWindowMoved, &app.Element) {
		t.Fatalf("expected ObserveNotification to succeed")
	}
	if !b.Observed(win, platform.NotificationWindowMoved) {
		t.Fatalf("expected backend subscription")
	}

	if !app.Dispatch(platform.Event{Notification: platform.NotificationWindowMoved, Ref: win}) {
		t.Fatalf("expected Dispatch to run the app-level handler")
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 posted notification, got %d", len(got))
	}
	if got[0].Notification != platform.NotificationWindowMoved || got[0].Element.Ref() != win {
		t.Fatalf("unexpected data: %+v", got[0])
	}
}

func TestApplication_DispatchPrefersElementHandler(t *testing.T) {
	b, app, _ := newFakeApp(t)
	win := b.AddWindow(10, "doc", platform.Rect{Width: 100, Height: 100})
	windows, err := app.Windows()
	if err != nil {
		t.Fatalf("Windows: %v", err)
	}

	var appCalls, winCalls int
	var seen *Element
	app.ObserveNotificationFunc(platform.NotificationWindowResized, &app.Element, func(*Element) { appCalls++ })
	app.ObserveNotificationFunc(platform.NotificationWindowResized, &windows[0].Element, func(e *Element) {
		winCalls++
		seen = e
	})

	app.Dispatch(platform.Event{Notification: platform.NotificationWindowResized, Ref: win})
	if winCalls != 1 || appCalls != 0 {
		t.Fatalf("expected element handler only, got win=%d app=%d", winCalls, appCalls)
	}
	if seen != &windows[0].Element {
		t.Fatalf("expected handler to receive the cached window element")
	}

	if app.Dispatch(platform.Event{Notification: platform.NotificationWindowResized, Ref: platform.Ref{PID: 11, ID: 1}}) {
		t.Fatalf("expected events of other processes to be ignored")
	}
	if app.Dispatch(platform.Event{Notification: platform.NotificationTitleChanged, Ref: win}) {
		t.Fatalf("expected unobserved notification not to dispatch")
	}
}

func TestApplication_ObserveRejectsForeignAndFailures(t *testing.T) {
	b, app, _ := newFakeApp(t)
	b.AddApp(11, "Other")

	foreign := NewElement(b, platform.AppRef(11), RoleApplication)
	if app.ObserveNotification(platform.NotificationWindowCreated, foreign) {
		t.Fatalf("expected foreign element to be rejected")
	}
	if app.ObserveNotification(platform.NotificationWindowCreated, nil) {
		t.Fatalf("expected nil element to be rejected")
	}

	b.SetObserveError(platform.ErrNotTrusted)
	if app.ObserveNotification(platform.NotificationWindowCreated, &app.Element) {
		t.Fatalf("expected backend failure to report false")
	}
	if app.Observing(platform.NotificationWindowCreated, &app.Element) {
		t.Fatalf("expected no handler registered after failure")
	}
}

func TestApplication_UnobserveNotification(t *testing.T) {
	b, app, _ := newFakeApp(t)
	win := b.AddWindow(10, "doc", platform.Rect{Width: 100, Height: 100})

	calls := 0
	app.ObserveNotificationFunc(platform.NotificationWindowMiniaturized, &app.Element, func(*Element) { calls++ })
	app.UnobserveNotification(platform.NotificationWindowMiniaturized, &app.Element)

	if b.Observed(win, platform.NotificationWindowMiniaturized) {
		t.Fatalf("expected backend subscription removed")
	}
	if app.Dispatch(platform.Event{Notification: platform.NotificationWindowMiniaturized, Ref: win}) {
		t.Fatalf("expected no handler after unobserve")
	}
	if calls != 0 {
		t.Fatalf("expected handler not called, got %d", calls)
	}

	// Never observed: no-op.
	app.UnobserveNotification(platform.NotificationWindowMoved, &app.Element)
}

func TestApplication_NilElement(t *testing.T) {
	_, app, _ := newFakeApp(t)
	if app.Observing(platform.NotificationWindowMoved, nil) {
		t.Fatalf("expected nil element to be unobserved")
	}
	if app.ObserveNotification(platform.NotificationWindowMoved, nil) {
		t.Fatalf("expected observing a nil element to fail")
	}
	app.UnobserveNotification(platform.NotificationWindowMoved, nil)
}

func TestApplication_UnobserveAll(t *testing.T) {
	b, app, _ := newFakeApp(t)
	app.ObserveNotification(platform.NotificationWindowMoved, &app.Element)
	app.ObserveNotification(platform.NotificationWindowResized, &app.Element)
	if b.Subscriptions() != 2 {
		t.Fatalf("expected 2 subscriptions, got %d", b.Subscriptions())
	}
	app.UnobserveAll()
	if b.Subscriptions() != 0 {
		t.Fatalf("expected subscriptions cleared, got %d", b.Subscriptions())
	}
}

func TestRunningAndFocusedApplication(t *testing.T) {
	b := platformtest.New()
	b.AddApp(3, "Three")
	b.AddApp(1, "One")

	apps, err := RunningApplications(b)
	if err != nil {
		t.Fatalf("RunningApplications: %v", err)
	}
	if len(apps) != 2 || apps[0].PID() != 1 || apps[1].Title() != "Three" {
		t.Fatalf("unexpected applications: %v", apps)
	}

	if _, err := FocusedApplication(b); !errors.Is(err, platform.ErrNotFound) {
		t.Fatalf("expected ErrNotFound with nothing focused, got %v", err)
	}
	b.SetFocused(3, 0)
	app, err := FocusedApplication(b)
	if err != nil {
		t.Fatalf("FocusedApplication: %v", err)
	}
	if app.PID() != 3 || app.BundleID() != "com.example.Three" {
		t.Fatalf("unexpected focused app %s", app)
	}
}

func TestApplication_KillInvalidPID(t *testing.T) {
	b := platformtest.New()
	app := ApplicationFromInfo(b, platform.AppInfo{PID: 0, Name: "ghost"})
	if err := app.Kill(); err == nil {
		t.Fatalf("expected error for pid 0")
	}
}
