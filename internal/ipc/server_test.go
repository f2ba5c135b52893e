package ipc

import (
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/1broseidon/axwatch/internal/history"
	"github.com/1broseidon/axwatch/internal/platform"
	"github.com/1broseidon/axwatch/internal/platform/platformtest"
)

func startTestServer(t *testing.T, svc *Service) *Client {
	t.Helper()
	path := filepath.Join(t.TempDir(), "axwatch.sock")
	srv := NewServerAt(path, svc)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(srv.Stop)
	return NewClientAt(path)
}

func fakeDesktop() (*platformtest.Backend, platform.Ref, platform.Ref) {
	b := platformtest.New()
	b.AddApp(10, "Editor")
	b.AddApp(20, "Browser")
	doc := b.AddWindow(10, "doc", platform.Rect{X: 10, Y: 10, Width: 400, Height: 300})
	page := b.AddWindow(20, "page", platform.Rect{X: 100, Y: 100, Width: 800, Height: 600})
	b.SetFocused(20, page.ID)
	return b, doc, page
}

func TestServer_StatusAndLists(t *testing.T) {
	b, _, page := fakeDesktop()
	b.SetDropped(3)
	ring := history.New(8)
	ring.Add(history.Record{Notification: platform.NotificationWindowMoved, PID: 10})
	client := startTestServer(t, NewService(ServiceConfig{Backend: b, History: ring}))

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.DaemonRunning || status.HistorySize != 1 || status.Dropped != 3 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if err := client.Ping(); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	apps, err := client.ListApps()
	if err != nil {
		t.Fatalf("ListApps: %v", err)
	}
	if len(apps) != 2 || apps[0].Name != "Editor" || !apps[1].Active || apps[1].Windows != 1 {
		t.Fatalf("unexpected apps: %+v", apps)
	}

	all, err := client.ListWindows(ListWindowsPayload{})
	if err != nil {
		t.Fatalf("ListWindows: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(all))
	}

	only, err := client.ListWindows(ListWindowsPayload{PID: 20})
	if err != nil {
		t.Fatalf("ListWindows(pid): %v", err)
	}
	if len(only) != 1 || only[0].Ref() != page || !only[0].Focused || only[0].Display != "fake-0" {
		t.Fatalf("unexpected windows: %+v", only)
	}

	focused, err := client.Focused()
	if err != nil {
		t.Fatalf("Focused: %v", err)
	}
	if focused.App.PID != 20 || focused.Window == nil || focused.Window.Title != "page" {
		t.Fatalf("unexpected focused: %+v", focused)
	}
}

func TestServer_WindowActions(t *testing.T) {
	b, doc, _ := fakeDesktop()
	client := startTestServer(t, NewService(ServiceConfig{Backend: b}))
	target := WindowTarget{PID: doc.PID, WindowID: doc.ID}

	moved, err := client.MoveWindow(MoveWindowPayload{WindowTarget: target, X: 50, Y: 60})
	if err != nil {
		t.Fatalf("MoveWindow: %v", err)
	}
	if moved.Frame != (platform.Rect{X: 50, Y: 60, Width: 400, Height: 300}) {
		t.Fatalf("unexpected frame after move: %+v", moved.Frame)
	}

	resized, err := client.ResizeWindow(ResizeWindowPayload{WindowTarget: target, Width: 640, Height: 480})
	if err != nil {
		t.Fatalf("ResizeWindow: %v", err)
	}
	if resized.Frame.Width != 640 || resized.Frame.X != 50 {
		t.Fatalf("unexpected frame after resize: %+v", resized.Frame)
	}

	frame := platform.Rect{X: 0, Y: 25, Width: 960, Height: 1055}
	set, err := client.SetFrame(SetFramePayload{WindowTarget: target, Frame: frame})
	if err != nil {
		t.Fatalf("SetFrame: %v", err)
	}
	if set.Frame != frame {
		t.Fatalf("unexpected frame: %+v", set.Frame)
	}

	minimized, err := client.MinimizeWindow(target)
	if err != nil {
		t.Fatalf("MinimizeWindow: %v", err)
	}
	if !minimized.Minimized {
		t.Fatalf("expected minimized window")
	}
	if _, err := client.UnminimizeWindow(target); err != nil {
		t.Fatalf("UnminimizeWindow: %v", err)
	}

	focused, err := client.FocusWindow(target)
	if err != nil {
		t.Fatalf("FocusWindow: %v", err)
	}
	if !focused.Focused {
		t.Fatalf("expected window to be focused")
	}
	if pid, _ := b.FocusedApplication(); pid != doc.PID {
		t.Fatalf("expected pid %d frontmost, got %d", doc.PID, pid)
	}
}

func TestServer_DefaultTargetIsFocusedKeyWindow(t *testing.T) {
	b, _, page := fakeDesktop()
	client := startTestServer(t, NewService(ServiceConfig{Backend: b}))

	moved, err := client.MoveWindow(MoveWindowPayload{X: 5, Y: 6})
	if err != nil {
		t.Fatalf("MoveWindow: %v", err)
	}
	if moved.Ref() != page {
		t.Fatalf("expected focused window %s to move, got %s", page, moved.Ref())
	}
}

func TestServer_HideUnhide(t *testing.T) {
	b, _, _ := fakeDesktop()
	client := startTestServer(t, NewService(ServiceConfig{Backend: b}))

	app, err := client.HideApp(10)
	if err != nil {
		t.Fatalf("HideApp: %v", err)
	}
	if !app.Hidden {
		t.Fatalf("expected hidden app")
	}
	visible, err := client.ListWindows(ListWindowsPayload{PID: 10, VisibleOnly: true})
	if err != nil {
		t.Fatalf("ListWindows: %v", err)
	}
	if len(visible) != 0 {
		t.Fatalf("expected no visible windows for hidden app, got %d", len(visible))
	}
	app, err = client.UnhideApp(10)
	if err != nil || app.Hidden {
		t.Fatalf("UnhideApp: %+v %v", app, err)
	}

	if _, err := client.HideApp(0); err == nil || !strings.Contains(err.Error(), "pid is required") {
		t.Fatalf("expected pid validation error, got %v", err)
	}
}

func TestServer_Errors(t *testing.T) {
	b, _, _ := fakeDesktop()
	client := startTestServer(t, NewService(ServiceConfig{Backend: b}))

	if _, err := client.MoveWindow(MoveWindowPayload{WindowTarget: WindowTarget{PID: 99}}); err == nil {
		t.Fatalf("expected error for unknown pid")
	}
	if _, err := client.FocusWindow(WindowTarget{PID: 10, WindowID: 9999}); err == nil {
		t.Fatalf("expected error for unknown window")
	}
	if _, err := client.ResizeWindow(ResizeWindowPayload{Width: 0, Height: 10}); err == nil {
		t.Fatalf("expected error for zero width")
	}
	if err := client.Reload(); err == nil || !strings.Contains(err.Error(), "reload not supported") {
		t.Fatalf("expected reload error, got %v", err)
	}
	if err := client.call("BOGUS", nil, nil); err == nil || !strings.Contains(err.Error(), "Unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestServer_ReloadAndRecentEvents(t *testing.T) {
	b, _, _ := fakeDesktop()
	ring := history.New(8)
	first := ring.Add(history.Record{Notification: platform.NotificationWindowMoved, PID: 10})
	ring.Add(history.Record{Notification: platform.NotificationWindowResized, PID: 10})

	var reloads atomic.Int32
	client := startTestServer(t, NewService(ServiceConfig{
		Backend: b,
		History: ring,
		Reload: func() error {
			if reloads.Add(1) > 1 {
				return errors.New("bad config")
			}
			return nil
		},
	}))

	if err := client.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if err := client.Reload(); err == nil || !strings.Contains(err.Error(), "bad config") {
		t.Fatalf("expected reload failure, got %v", err)
	}

	events, err := client.RecentEvents(RecentEventsPayload{After: first.ID})
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(events.Events) != 1 || events.Events[0].Notification != platform.NotificationWindowResized {
		t.Fatalf("unexpected events: %+v", events.Events)
	}
}

func TestClient_NoDaemon(t *testing.T) {
	client := NewClientAt(filepath.Join(t.TempDir(), "missing.sock"))
	err := client.Ping()
	if err == nil || !strings.Contains(err.Error(), "is the daemon running?") {
		t.Fatalf("expected connection error, got %v", err)
	}
}
