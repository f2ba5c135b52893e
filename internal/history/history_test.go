package history

import (
	"path/filepath"
	"testing"

	"github.com/1broseidon/axwatch/internal/platform"
)

func TestRing_EvictsOldest(t *testing.T) {
	r := New(3)
	var ids []string
	for i := 0; i < 5; i++ {
		rec := r.Add(Record{Notification: platform.NotificationWindowMoved, PID: platform.PID(i)})
		if rec.ID == "" || rec.Time.IsZero() {
			t.Fatalf("expected ID and time to be assigned: %+v", rec)
		}
		ids = append(ids, rec.ID)
	}

	got := r.Recent(0)
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	if got[0].PID != 2 || got[2].PID != 4 {
		t.Fatalf("expected pids 2..4 oldest first, got %d..%d", got[0].PID, got[2].PID)
	}

	if last := r.Recent(1); len(last) != 1 || last[0].ID != ids[4] {
		t.Fatalf("unexpected Recent(1): %+v", last)
	}
}

func TestRing_Since(t *testing.T) {
	r := New(10)
	a := r.Add(Record{PID: 1})
	r.Add(Record{PID: 2})
	r.Add(Record{PID: 3})

	got := r.Since(a.ID, 0)
	if len(got) != 2 || got[0].PID != 2 {
		t.Fatalf("unexpected Since: %+v", got)
	}
	if got := r.Since("evicted", 2); len(got) != 2 || got[1].PID != 3 {
		t.Fatalf("expected unknown ID to fall back to newest records, got %+v", got)
	}
	last := r.Recent(1)[0]
	if got := r.Since(last.ID, 0); len(got) != 0 {
		t.Fatalf("expected nothing after newest, got %+v", got)
	}
}

func TestRing_ZeroSizeAndResize(t *testing.T) {
	r := New(0)
	r.Add(Record{PID: 1})
	if r.Len() != 0 {
		t.Fatalf("expected zero-size ring to keep nothing")
	}

	r = New(5)
	for i := 0; i < 5; i++ {
		r.Add(Record{PID: platform.PID(i)})
	}
	r.Resize(2)
	got := r.Recent(0)
	if len(got) != 2 || got[0].PID != 3 {
		t.Fatalf("expected newest 2 records after shrink, got %+v", got)
	}
}

func TestRing_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	r := New(4)
	frame := platform.Rect{X: 1, Y: 2, Width: 3, Height: 4}
	saved := r.Add(Record{Notification: platform.NotificationWindowResized, PID: 7, WindowID: 9, Frame: &frame})
	if err := r.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := New(4)
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := loaded.Recent(0)
	if len(got) != 1 || got[0].ID != saved.ID || got[0].Frame == nil || *got[0].Frame != frame {
		t.Fatalf("unexpected loaded history: %+v", got)
	}

	if err := New(1).Load(filepath.Join(t.TempDir(), "missing.json")); err != nil {
		t.Fatalf("expected missing file to be ignored, got %v", err)
	}
}
