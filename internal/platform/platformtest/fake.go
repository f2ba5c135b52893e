// Package platformtest provides an in-memory platform.Backend for tests.
package platformtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/1broseidon/axwatch/internal/platform"
)

// Backend is a scriptable fake accessibility backend.
type Backend struct {
	mu          sync.Mutex
	apps        map[platform.PID]*platform.AppInfo
	windows     map[platform.PID][]platform.WindowInfo
	focusedApp  platform.PID
	focusedWin  map[platform.PID]platform.ElementID
	displays    []platform.Display
	subs        *platform.Subscriptions
	events      chan platform.Event
	observeErr  error
	windowCalls int
	nextID      platform.ElementID
	dropped     uint64
}

var _ platform.Backend = (*Backend)(nil)

// New returns an empty fake backend with a single 1920x1080 display.
func New() *Backend {
	return &Backend{
		apps:       make(map[platform.PID]*platform.AppInfo),
		windows:    make(map[platform.PID][]platform.WindowInfo),
		focusedWin: make(map[platform.PID]platform.ElementID),
		displays: []platform.Display{{
			ID:     0,
			Name:   "fake-0",
			Bounds: platform.Rect{Width: 1920, Height: 1080},
			Usable: platform.Rect{Y: 25, Width: 1920, Height: 1055},
		}},
		subs:   platform.NewSubscriptions(),
		events: make(chan platform.Event, 64),
		nextID: 100,
	}
}

// AddApp registers a running application.
func (b *Backend) AddApp(pid platform.PID, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.apps[pid] = &platform.AppInfo{PID: pid, Name: name, BundleID: "com.example." + name}
}

// SetDropped sets the count reported by Dropped.
func (b *Backend) SetDropped(n uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dropped = n
}

// Dropped returns the count set by SetDropped.
func (b *Backend) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// RemoveApp removes an application and its windows.
func (b *Backend) RemoveApp(pid platform.PID) {
	b.mu.Lock()
	delete(b.apps, pid)
	delete(b.windows, pid)
	delete(b.focusedWin, pid)
	if b.focusedApp == pid {
		b.focusedApp = 0
	}
	b.mu.Unlock()
	b.subs.RemoveApplication(pid)
}

// AddWindow adds a window to pid and returns its reference.
func (b *Backend) AddWindow(pid platform.PID, title string, bounds platform.Rect) platform.Ref {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	ref := platform.Ref{PID: pid, ID: b.nextID}
	b.windows[pid] = append(b.windows[pid], platform.WindowInfo{
		Ref:    ref,
		Title:  title,
		Role:   "AXWindow",
		Bounds: bounds,
		Main:   len(b.windows[pid]) == 0,
	})
	return ref
}

// RemoveWindow removes a window.
func (b *Backend) RemoveWindow(ref platform.Ref) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ws := b.windows[ref.PID]
	for i, w := range ws {
		if w.Ref == ref {
			b.windows[ref.PID] = append(ws[:i:i], ws[i+1:]...)
			break
		}
	}
	if b.focusedWin[ref.PID] == ref.ID {
		delete(b.focusedWin, ref.PID)
	}
}

// SetFocused marks pid as the frontmost application and win as its focused window.
func (b *Backend) SetFocused(pid platform.PID, win platform.ElementID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.focusedApp = pid
	for p, app := range b.apps {
		app.Active = p == pid
	}
	if win != 0 {
		b.focusedWin[pid] = win
	}
}

// SetObserveError makes every later Observe call fail with err.
func (b *Backend) SetObserveError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observeErr = err
}

// WindowsCalls returns how many times Windows was called.
func (b *Backend) WindowsCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.windowCalls
}

// Observed reports whether (ref, n) is currently subscribed, directly or
// through the owning application.
func (b *Backend) Observed(ref platform.Ref, n platform.Notification) bool {
	return b.subs.Wants(ref, n)
}

// Subscriptions returns the number of active subscriptions.
func (b *Backend) Subscriptions() int {
	return b.subs.Len()
}

// Emit delivers an event if it is subscribed and reports whether it was sent.
func (b *Backend) Emit(n platform.Notification, ref platform.Ref) bool {
	if !b.subs.Wants(ref, n) {
		return false
	}
	b.events <- platform.Event{Notification: n, Ref: ref, Time: time.Now()}
	return true
}

func (b *Backend) RunningApplications() ([]platform.AppInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	apps := make([]platform.AppInfo, 0, len(b.apps))
	for _, app := range b.apps {
		apps = append(apps, *app)
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].PID < apps[j].PID })
	return apps, nil
}

func (b *Backend) Application(pid platform.PID) (platform.AppInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	app, ok := b.apps[pid]
	if !ok {
		return platform.AppInfo{}, fmt.Errorf("application %d: %w", pid, platform.ErrNotFound)
	}
	return *app, nil
}

func (b *Backend) FocusedApplication() (platform.PID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.focusedApp == 0 {
		return 0, platform.ErrNotFound
	}
	return b.focusedApp, nil
}

func (b *Backend) Windows(pid platform.PID) ([]platform.WindowInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.windowCalls++
	if _, ok := b.apps[pid]; !ok {
		return nil, fmt.Errorf("application %d: %w", pid, platform.ErrNotFound)
	}
	return append([]platform.WindowInfo(nil), b.windows[pid]...), nil
}

func (b *Backend) Window(ref platform.Ref) (platform.WindowInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.findLocked(ref)
	if !ok {
		return platform.WindowInfo{}, fmt.Errorf("window %s: %w", ref, platform.ErrNotFound)
	}
	return *w, nil
}

func (b *Backend) FocusedWindow(pid platform.PID) (platform.Ref, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.focusedWin[pid]
	if !ok {
		return platform.Ref{}, platform.ErrNotFound
	}
	return platform.Ref{PID: pid, ID: id}, nil
}

func (b *Backend) SetFrame(ref platform.Ref, bounds platform.Rect) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.findLocked(ref)
	if !ok {
		return platform.ErrNotFound
	}
	w.Bounds = bounds
	return nil
}

func (b *Backend) SetMinimized(ref platform.Ref, minimized bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.findLocked(ref)
	if !ok {
		return platform.ErrNotFound
	}
	w.Minimized = minimized
	return nil
}

func (b *Backend) Focus(ref platform.Ref) error {
	b.mu.Lock()
	if _, ok := b.findLocked(ref); !ok {
		b.mu.Unlock()
		return platform.ErrNotFound
	}
	b.mu.Unlock()
	b.SetFocused(ref.PID, ref.ID)
	return nil
}

func (b *Backend) CloseWindow(ref platform.Ref) error {
	if _, err := b.Window(ref); err != nil {
		return err
	}
	b.RemoveWindow(ref)
	return nil
}

func (b *Backend) SetHidden(pid platform.PID, hidden bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	app, ok := b.apps[pid]
	if !ok {
		return platform.ErrNotFound
	}
	app.Hidden = hidden
	return nil
}

func (b *Backend) Displays() ([]platform.Display, error) {
	return append([]platform.Display(nil), b.displays...), nil
}

func (b *Backend) Observe(ref platform.Ref, n platform.Notification) error {
	b.mu.Lock()
	err := b.observeErr
	_, appOK := b.apps[ref.PID]
	b.mu.Unlock()
	if err != nil {
		return err
	}
	if !appOK {
		return platform.ErrNotFound
	}
	b.subs.Add(ref, n)
	return nil
}

func (b *Backend) Unobserve(ref platform.Ref, n platform.Notification) error {
	b.subs.Remove(ref, n)
	return nil
}

func (b *Backend) Events() <-chan platform.Event {
	return b.events
}

func (b *Backend) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (b *Backend) Disconnect() {}

func (b *Backend) findLocked(ref platform.Ref) (*platform.WindowInfo, bool) {
	ws := b.windows[ref.PID]
	for i := range ws {
		if ws[i].Ref == ref {
			return &ws[i], true
		}
	}
	return nil, false
}
