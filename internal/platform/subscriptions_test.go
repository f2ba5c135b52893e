package platform

import "testing"

func TestSubscriptions_ApplicationCoversOwnedElements(t *testing.T) {
	s := NewSubscriptions()
	app := AppRef(42)
	win := Ref{PID: 42, ID: 7}

	if s.Wants(win, NotificationWindowMoved) {
		t.Fatalf("expected no delivery before subscribing")
	}
	if !s.Add(app, NotificationWindowMoved) {
		t.Fatalf("expected first Add to report true")
	}
	if s.Add(app, NotificationWindowMoved) {
		t.Fatalf("expected duplicate Add to report false")
	}
	if !s.Wants(win, NotificationWindowMoved) {
		t.Fatalf("expected app subscription to cover window")
	}
	if s.Wants(Ref{PID: 43, ID: 7}, NotificationWindowMoved) {
		t.Fatalf("expected other process to be filtered")
	}
	if s.Wants(win, NotificationWindowResized) {
		t.Fatalf("expected other notification to be filtered")
	}
}

func TestSubscriptions_ElementOnly(t *testing.T) {
	s := NewSubscriptions()
	win := Ref{PID: 1, ID: 2}
	s.Add(win, NotificationWindowResized)

	if !s.Wants(win, NotificationWindowResized) {
		t.Fatalf("expected element subscription to match")
	}
	if s.Wants(Ref{PID: 1, ID: 3}, NotificationWindowResized) {
		t.Fatalf("expected sibling window to be filtered")
	}
	if !s.Remove(win, NotificationWindowResized) {
		t.Fatalf("expected Remove to report existing subscription")
	}
	if s.Remove(win, NotificationWindowResized) {
		t.Fatalf("expected second Remove to report false")
	}
}

func TestSubscriptions_WorkspaceAlwaysDelivered(t *testing.T) {
	s := NewSubscriptions()
	if !s.Wants(AppRef(9), NotificationApplicationLaunched) {
		t.Fatalf("expected launch notification without subscription")
	}
	if !s.Wants(AppRef(9), NotificationApplicationTerminated) {
		t.Fatalf("expected terminate notification without subscription")
	}
}

func TestSubscriptions_RemoveApplication(t *testing.T) {
	s := NewSubscriptions()
	s.Add(AppRef(5), NotificationWindowCreated)
	s.Add(Ref{PID: 5, ID: 1}, NotificationWindowMoved)
	s.Add(AppRef(6), NotificationWindowCreated)

	s.RemoveApplication(5)
	if s.Len() != 1 {
		t.Fatalf("expected 1 remaining subscription, got %d", s.Len())
	}
	if !s.Wants(Ref{PID: 6, ID: 2}, NotificationWindowCreated) {
		t.Fatalf("expected pid 6 subscription to survive")
	}
}

func TestParseNotification(t *testing.T) {
	tests := []struct {
		input string
		want  Notification
	}{
		{"AXWindowMoved", NotificationWindowMoved},
		{"WindowMoved", NotificationWindowMoved},
		{"window-moved", NotificationWindowMoved},
		{"window_resized", NotificationWindowResized},
		{" axfocusedwindowchanged ", NotificationFocusedWindowChanged},
		{"ApplicationActivated", NotificationApplicationActivated},
	}
	for _, tt := range tests {
		got, err := ParseNotification(tt.input)
		if err != nil {
			t.Errorf("ParseNotification(%q) error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseNotification(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}

	if _, err := ParseNotification("nope"); err == nil {
		t.Errorf("expected error for unknown notification")
	}
	if _, err := ParseNotification("ApplicationLaunched"); err == nil {
		t.Errorf("expected workspace notification to be rejected")
	}
}

func TestRectAndDisplayAt(t *testing.T) {
	displays := []Display{
		{ID: 0, Bounds: Rect{X: 0, Y: 0, Width: 100, Height: 100}},
		{ID: 1, Bounds: Rect{X: 100, Y: 0, Width: 100, Height: 100}},
	}
	r := Rect{X: 120, Y: 10, Width: 40, Height: 20}
	cx, cy := r.Center()
	d, ok := DisplayAt(displays, cx, cy)
	if !ok || d.ID != 1 {
		t.Fatalf("expected display 1, got %+v ok=%v", d, ok)
	}
	if _, ok := DisplayAt(displays, 500, 500); ok {
		t.Fatalf("expected no display for off-screen point")
	}
	if r.Contains(160, 10) {
		t.Fatalf("expected right edge to be exclusive")
	}
}
