package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/1broseidon/axwatch/internal/platform"
	"github.com/1broseidon/axwatch/internal/platform/platformtest"
)

// lineWriter forwards each write to a channel.
type lineWriter chan string

func (w lineWriter) Write(p []byte) (int, error) {
	w <- string(p)
	return len(p), nil
}

func TestFindApplication(t *testing.T) {
	b := platformtest.New()
	b.AddApp(10, "Finder")
	b.AddApp(20, "Editor")

	app, err := findApplication(b, "finder", 0)
	if err != nil || app.PID() != 10 {
		t.Fatalf("findApplication by name = %v, %v", app, err)
	}
	app, err = findApplication(b, "", 20)
	if err != nil || app.PID() != 20 {
		t.Fatalf("findApplication by pid = %v, %v", app, err)
	}
	if _, err := findApplication(b, "Safari", 0); !errors.Is(err, platform.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestObserveApplication_PrintsAndUnobserves(t *testing.T) {
	b := platformtest.New()
	b.AddApp(10, "Finder")
	win := b.AddWindow(10, "Home", platform.Rect{Width: 100, Height: 100})

	app, err := findApplication(b, "Finder", 0)
	if err != nil {
		t.Fatalf("findApplication: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	out := make(lineWriter, 4)
	done := make(chan error, 1)
	go func() {
		done <- observeApplication(ctx, b, app, []platform.Notification{platform.NotificationWindowMoved}, out)
	}()

	deadline := time.Now().Add(3 * time.Second)
	for !b.Observed(win, platform.NotificationWindowMoved) {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for observation")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if b.Emit(platform.NotificationWindowResized, win) {
		t.Fatalf("resized should not be observed")
	}
	if !b.Emit(platform.NotificationWindowMoved, win) {
		t.Fatalf("expected moved to be delivered")
	}

	select {
	case line := <-out:
		if !strings.Contains(line, "received "+string(platform.NotificationWindowMoved)) {
			t.Fatalf("unexpected line %q", line)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for output")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("observeApplication: %v", err)
	}
	if b.Subscriptions() != 0 {
		t.Fatalf("expected observers released, %d left", b.Subscriptions())
	}
}

func TestObserveApplication_ObserveFailure(t *testing.T) {
	b := platformtest.New()
	b.AddApp(10, "Finder")
	b.SetObserveError(platform.ErrNotTrusted)

	app, err := findApplication(b, "", 10)
	if err != nil {
		t.Fatalf("findApplication: %v", err)
	}
	err = observeApplication(context.Background(), b, app, []platform.Notification{platform.NotificationWindowMoved}, make(lineWriter, 1))
	if err == nil || !strings.Contains(err.Error(), "failed to observe") {
		t.Fatalf("expected observe failure, got %v", err)
	}
}

func TestStringListFlag(t *testing.T) {
	var l stringList
	_ = l.Set("window_moved, window_resized")
	_ = l.Set("title_changed")
	if got := l.String(); got != "window_moved,window_resized,title_changed" {
		t.Fatalf("stringList = %q", got)
	}
}
