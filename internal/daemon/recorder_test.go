package daemon

import (
	"testing"

	"github.com/1broseidon/axwatch/internal/ax"
	"github.com/1broseidon/axwatch/internal/history"
	"github.com/1broseidon/axwatch/internal/notify"
	"github.com/1broseidon/axwatch/internal/platform"
	"github.com/1broseidon/axwatch/internal/platform/platformtest"
)

func TestRecorder_WindowCallbacks(t *testing.T) {
	b := platformtest.New()
	b.AddApp(10, "Editor")
	ref := b.AddWindow(10, "doc", platform.Rect{X: 1, Y: 2, Width: 300, Height: 200})

	app, err := ax.NewApplication(b, 10)
	if err != nil {
		t.Fatalf("NewApplication: %v", err)
	}
	w, err := ax.WindowForRef(b, ref)
	if err != nil {
		t.Fatalf("WindowForRef: %v", err)
	}

	ring := history.New(8)
	r := NewRecorder(ring, nil, discardLogger())
	r.SetLookup(func(pid platform.PID) (*ax.Application, bool) {
		return app, pid == 10
	})

	tests := []struct {
		call func(*ax.Window)
		want platform.Notification
	}{
		{r.OnFocusedWindowChanged, platform.NotificationFocusedWindowChanged},
		{r.OnWindowCreated, platform.NotificationWindowCreated},
		{r.OnWindowMinimised, platform.NotificationWindowMiniaturized},
		{r.OnWindowUnminimised, platform.NotificationWindowDeminiaturized},
		{r.OnWindowMoved, platform.NotificationWindowMoved},
		{r.OnWindowResized, platform.NotificationWindowResized},
	}
	for _, tt := range tests {
		tt.call(w)
	}

	records := ring.Recent(0)
	if len(records) != len(tests) {
		t.Fatalf("expected %d records, got %d", len(tests), len(records))
	}
	for i, tt := range tests {
		rec := records[i]
		if rec.Notification != tt.want {
			t.Errorf("record %d: expected %s, got %s", i, tt.want, rec.Notification)
		}
		if rec.App != "Editor" || rec.Title != "doc" || rec.WindowID != ref.ID {
			t.Errorf("record %d: unexpected %+v", i, rec)
		}
		if rec.Frame == nil || *rec.Frame != (platform.Rect{X: 1, Y: 2, Width: 300, Height: 200}) {
			t.Errorf("record %d: unexpected frame %v", i, rec.Frame)
		}
	}
}

func TestRecorder_ClosedWindowUsesSnapshot(t *testing.T) {
	b := platformtest.New()
	b.AddApp(10, "Editor")
	ref := b.AddWindow(10, "doc", platform.Rect{Width: 300, Height: 200})
	w, err := ax.WindowForRef(b, ref)
	if err != nil {
		t.Fatalf("WindowForRef: %v", err)
	}
	b.RemoveWindow(ref)

	ring := history.New(8)
	NewRecorder(ring, nil, discardLogger()).OnWindowCreated(w)

	records := ring.Recent(0)
	if len(records) != 1 || records[0].Title != "doc" || records[0].App != "" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestRecorder_ApplicationActivated(t *testing.T) {
	b := platformtest.New()
	b.AddApp(10, "Editor")
	ring := history.New(8)
	r := NewRecorder(ring, nil, discardLogger())

	r.OnApplicationActivated(ax.NewElement(b, platform.AppRef(10), ax.RoleApplication))

	records := ring.Recent(0)
	if len(records) != 1 || records[0].PID != 10 || records[0].Frame != nil {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestRecorder_CountEventsStops(t *testing.T) {
	center := notify.NewCenter()
	r := NewRecorder(nil, nil, discardLogger())
	stop := r.CountEvents(center)
	if center.Observers(ax.EventNotification) != 1 {
		t.Fatalf("expected observer registered")
	}
	stop()
	if center.Observers(ax.EventNotification) != 0 {
		t.Fatalf("expected observer removed")
	}
}
