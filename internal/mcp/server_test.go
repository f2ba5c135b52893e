package mcp

import (
	"context"
	"strings"
	"testing"

	"github.com/1broseidon/axwatch/internal/history"
	"github.com/1broseidon/axwatch/internal/ipc"
	"github.com/1broseidon/axwatch/internal/platform"
	"github.com/1broseidon/axwatch/internal/platform/platformtest"
)

func newTestServer(t *testing.T) (*Server, *platformtest.Backend, platform.Ref) {
	t.Helper()
	b := platformtest.New()
	b.AddApp(10, "Editor")
	b.AddApp(20, "Browser")
	b.AddWindow(10, "doc", platform.Rect{X: 10, Y: 10, Width: 400, Height: 300})
	page := b.AddWindow(20, "page", platform.Rect{X: 100, Y: 100, Width: 800, Height: 600})
	b.SetFocused(20, page.ID)

	ring := history.New(8)
	ring.Add(history.Record{
		Notification: platform.NotificationWindowMoved,
		PID:          20,
		WindowID:     page.ID,
		App:          "Browser",
		Frame:        &platform.Rect{X: 1, Y: 2, Width: 3, Height: 4},
	})

	svc := ipc.NewService(ipc.ServiceConfig{Backend: b, History: ring})
	return NewServer(svc), b, page
}

func TestNewServer_RegistersTools(t *testing.T) {
	s, _, _ := newTestServer(t)
	if s.mcpServer == nil {
		t.Fatalf("expected MCP server")
	}
}

func TestHandleListApplicationsAndWindows(t *testing.T) {
	s, _, page := newTestServer(t)
	ctx := context.Background()

	_, apps, err := s.handleListApplications(ctx, nil, ListApplicationsInput{})
	if err != nil {
		t.Fatalf("list_applications: %v", err)
	}
	if len(apps.Applications) != 2 || apps.Applications[0].Name != "Editor" {
		t.Fatalf("unexpected applications: %+v", apps.Applications)
	}

	_, windows, err := s.handleListWindows(ctx, nil, ListWindowsInput{PID: 20})
	if err != nil {
		t.Fatalf("list_windows: %v", err)
	}
	if len(windows.Windows) != 1 || windows.Windows[0].Ref() != page || !windows.Windows[0].Focused {
		t.Fatalf("unexpected windows: %+v", windows.Windows)
	}

	if _, _, err := s.handleListWindows(ctx, nil, ListWindowsInput{PID: -1}); err == nil {
		t.Fatalf("expected negative pid to be rejected")
	}

	_, focused, err := s.handleFocusedWindow(ctx, nil, FocusedWindowInput{})
	if err != nil {
		t.Fatalf("focused_window: %v", err)
	}
	if focused.Application.PID != 20 || focused.Window == nil || focused.Window.Title != "page" {
		t.Fatalf("unexpected focused: %+v", focused)
	}
}

func TestHandleWindowActions(t *testing.T) {
	s, b, page := newTestServer(t)
	ctx := context.Background()

	_, moved, err := s.handleMoveWindow(ctx, nil, MoveWindowInput{X: 40, Y: 50})
	if err != nil {
		t.Fatalf("move_window: %v", err)
	}
	if moved.Window.Ref() != page || moved.Window.Frame.X != 40 || moved.Window.Frame.Y != 50 {
		t.Fatalf("unexpected move result: %+v", moved.Window)
	}

	_, resized, err := s.handleResizeWindow(ctx, nil, ResizeWindowInput{PID: 20, WindowID: uint64(page.ID), Width: 640, Height: 480})
	if err != nil {
		t.Fatalf("resize_window: %v", err)
	}
	if resized.Window.Frame != (platform.Rect{X: 40, Y: 50, Width: 640, Height: 480}) {
		t.Fatalf("unexpected resize result: %+v", resized.Window.Frame)
	}

	_, framed, err := s.handleSetWindowFrame(ctx, nil, SetWindowFrameInput{PID: 20, X: 0, Y: 0, Width: 100, Height: 100})
	if err != nil {
		t.Fatalf("set_window_frame: %v", err)
	}
	if framed.Window.Frame != (platform.Rect{Width: 100, Height: 100}) {
		t.Fatalf("unexpected frame: %+v", framed.Window.Frame)
	}

	if _, _, err := s.handleMinimizeWindow(ctx, nil, WindowInput{PID: 20}); err != nil {
		t.Fatalf("minimize_window: %v", err)
	}
	info, _ := b.Window(page)
	if !info.Minimized {
		t.Fatalf("expected page minimized")
	}
	if _, _, err := s.handleUnminimizeWindow(ctx, nil, WindowInput{PID: 20, WindowID: uint64(page.ID)}); err != nil {
		t.Fatalf("unminimize_window: %v", err)
	}
	if _, _, err := s.handleFocusWindow(ctx, nil, WindowInput{PID: 20, WindowID: uint64(page.ID)}); err != nil {
		t.Fatalf("focus_window: %v", err)
	}
}

func TestHandleWindowActions_InvalidInput(t *testing.T) {
	s, _, _ := newTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
		want string
	}{
		{"window without pid", func() error {
			_, _, err := s.handleFocusWindow(ctx, nil, WindowInput{WindowID: 5})
			return err
		}, "window_id requires pid"},
		{"zero size", func() error {
			_, _, err := s.handleResizeWindow(ctx, nil, ResizeWindowInput{Width: 0, Height: 10})
			return err
		}, "must be > 0"},
		{"unknown window", func() error {
			_, _, err := s.handleMinimizeWindow(ctx, nil, WindowInput{PID: 20, WindowID: 999})
			return err
		}, "window 999"},
		{"hide without pid", func() error {
			_, _, err := s.handleHideApplication(ctx, nil, ApplicationInput{})
			return err
		}, "pid must be > 0"},
		{"negative limit", func() error {
			_, _, err := s.handleRecentEvents(ctx, nil, RecentEventsInput{Limit: -1})
			return err
		}, "limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestHandleHideAndUnhideApplication(t *testing.T) {
	s, _, _ := newTestServer(t)
	ctx := context.Background()

	_, hidden, err := s.handleHideApplication(ctx, nil, ApplicationInput{PID: 10})
	if err != nil {
		t.Fatalf("hide_application: %v", err)
	}
	if !hidden.Application.Hidden {
		t.Fatalf("expected Editor hidden")
	}
	_, shown, err := s.handleUnhideApplication(ctx, nil, ApplicationInput{PID: 10})
	if err != nil {
		t.Fatalf("unhide_application: %v", err)
	}
	if shown.Application.Hidden {
		t.Fatalf("expected Editor shown")
	}
}

func TestHandleRecentEventsAndStatus(t *testing.T) {
	s, _, page := newTestServer(t)
	ctx := context.Background()

	_, events, err := s.handleRecentEvents(ctx, nil, RecentEventsInput{})
	if err != nil {
		t.Fatalf("recent_events: %v", err)
	}
	if len(events.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events.Events))
	}
	ev := events.Events[0]
	if ev.ID == "" || ev.Time == "" || ev.WindowID != uint64(page.ID) || ev.Frame != "3x4+1+2" {
		t.Fatalf("unexpected event: %+v", ev)
	}

	_, none, err := s.handleRecentEvents(ctx, nil, RecentEventsInput{After: ev.ID})
	if err != nil {
		t.Fatalf("recent_events after: %v", err)
	}
	if len(none.Events) != 0 {
		t.Fatalf("expected no newer events, got %+v", none.Events)
	}

	_, status, err := s.handleStatus(ctx, nil, StatusInput{})
	if err != nil {
		t.Fatalf("daemon_status: %v", err)
	}
	if status.HistorySize != 1 || status.Notifications == nil {
		t.Fatalf("unexpected status: %+v", status)
	}
}
