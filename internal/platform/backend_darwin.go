//go:build darwin && cgo

package platform

/*
#include <stdint.h>
#include <stdlib.h>

typedef struct {
	int pid;
	char *name;
	char *bundleID;
	int hidden;
	int active;
} AXWAppInfo;

typedef struct {
	uint32_t id;
	char *title;
	char *role;
	char *subrole;
	double x, y, w, h;
	int minimized;
	int main;
} AXWWindowInfo;

typedef struct {
	uint32_t id;
	char *name;
	double bx, by, bw, bh;
	double ux, uy, uw, uh;
} AXWDisplay;

int axw_trusted(int prompt);
int axw_running_apps(AXWAppInfo **out);
void axw_free_apps(AXWAppInfo *apps, int n);
int axw_frontmost_pid(void);
int axw_set_hidden(int pid, int hidden);
int axw_windows(int pid, AXWWindowInfo **out);
int axw_window(int pid, uint32_t wid, AXWWindowInfo *out);
void axw_free_window(AXWWindowInfo *w);
void axw_free_windows(AXWWindowInfo *windows, int n);
uint32_t axw_focused_window(int pid);
int axw_set_frame(int pid, uint32_t wid, double x, double y, double w, double h);
int axw_set_minimized(int pid, uint32_t wid, int minimized);
int axw_focus(int pid, uint32_t wid);
int axw_close(int pid, uint32_t wid);
int axw_displays(AXWDisplay **out);
void axw_free_displays(AXWDisplay *displays, int n);
void axw_init(void);
void axw_run_loop_start(void);
void axw_wait_ready(void);
void axw_run_loop_stop(void);
int axw_observe(int pid, uint32_t wid, const char *notification);
int axw_unobserve(int pid, uint32_t wid, const char *notification);
void axw_forget(int pid);
*/
import "C"

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"
)

const (
	eventBufferSize = 256
	appPollInterval = time.Second

	axErrorSuccess          = 0
	axErrorAPIDisabled      = -25211
	axErrorInvalidUIElement = -25202
	axErrorNotImplemented   = -25208
	axErrorCannotComplete   = -25204
)

// activeDarwin receives callbacks from the AXObserver run loop. Only one
// backend can own the run loop at a time.
var activeDarwin atomic.Pointer[DarwinBackend]

//export goAXObserverCallback
func goAXObserverCallback(pid C.int, wid C.uint32_t, notification *C.char) {
	b := activeDarwin.Load()
	if b == nil {
		return
	}
	ref := Ref{PID: PID(pid), ID: ElementID(wid)}
	b.emit(Notification(C.GoString(notification)), ref)
}

// DarwinBackend drives the macOS Accessibility API.
type DarwinBackend struct {
	subs   *Subscriptions
	events chan Event

	mu      sync.Mutex
	running map[PID]bool

	startOnce sync.Once
	dropped   atomic.Uint64
}

var (
	_ Backend     = (*DarwinBackend)(nil)
	_ DropCounter = (*DarwinBackend)(nil)
)

// New opens the backend for the current platform.
func New() (Backend, error) {
	return NewDarwinBackend()
}

// Trusted reports whether the process has accessibility permission. With
// prompt set, macOS shows the System Settings dialog when it doesn't.
func Trusted(prompt bool) bool {
	p := C.int(0)
	if prompt {
		p = 1
	}
	return C.axw_trusted(p) != 0
}

// NewDarwinBackend starts the observer run loop on a dedicated OS thread.
func NewDarwinBackend() (*DarwinBackend, error) {
	if !Trusted(false) {
		return nil, ErrNotTrusted
	}
	b := &DarwinBackend{
		subs:    NewSubscriptions(),
		events:  make(chan Event, eventBufferSize),
		running: make(map[PID]bool),
	}
	if !activeDarwin.CompareAndSwap(nil, b) {
		return nil, fmt.Errorf("an accessibility backend is already active")
	}

	C.axw_init()
	b.startOnce.Do(func() {
		go func() {
			runtime.LockOSThread()
			C.axw_run_loop_start()
		}()
		C.axw_wait_ready()
	})
	return b, nil
}

// Disconnect stops the observer run loop.
func (b *DarwinBackend) Disconnect() {
	C.axw_run_loop_stop()
	activeDarwin.CompareAndSwap(b, nil)
}

// Dropped returns the number of events discarded because the channel was full.
func (b *DarwinBackend) Dropped() uint64 {
	return b.dropped.Load()
}

// RunningApplications lists regular (Dock-visible) applications.
func (b *DarwinBackend) RunningApplications() ([]AppInfo, error) {
	var raw *C.AXWAppInfo
	n := int(C.axw_running_apps(&raw))
	defer C.axw_free_apps(raw, C.int(n))

	items := unsafe.Slice(raw, n)
	apps := make([]AppInfo, 0, n)
	for _, it := range items {
		apps = append(apps, AppInfo{
			PID:      PID(it.pid),
			Name:     C.GoString(it.name),
			BundleID: C.GoString(it.bundleID),
			Hidden:   it.hidden != 0,
			Active:   it.active != 0,
		})
	}
	sort.Slice(apps, func(i, j int) bool {
		return apps[i].PID < apps[j].PID
	})
	return apps, nil
}

// Application returns the running application with the given pid.
func (b *DarwinBackend) Application(pid PID) (AppInfo, error) {
	apps, err := b.RunningApplications()
	if err != nil {
		return AppInfo{}, err
	}
	for _, app := range apps {
		if app.PID == pid {
			return app, nil
		}
	}
	return AppInfo{}, fmt.Errorf("application %d: %w", pid, ErrNotFound)
}

// FocusedApplication returns the frontmost application.
func (b *DarwinBackend) FocusedApplication() (PID, error) {
	pid := PID(C.axw_frontmost_pid())
	if pid == 0 {
		return 0, fmt.Errorf("no frontmost application: %w", ErrNotFound)
	}
	return pid, nil
}

// Windows returns the kAXWindowsAttribute of the application.
func (b *DarwinBackend) Windows(pid PID) ([]WindowInfo, error) {
	var raw *C.AXWWindowInfo
	n := int(C.axw_windows(C.int(pid), &raw))
	if n < 0 {
		return nil, fmt.Errorf("application %d: %w", pid, ErrNotFound)
	}
	defer C.axw_free_windows(raw, C.int(n))

	windows := make([]WindowInfo, 0, n)
	for _, w := range unsafe.Slice(raw, n) {
		if w.id == 0 {
			continue
		}
		windows = append(windows, windowFromC(pid, &w))
	}
	return windows, nil
}

// Window returns a fresh snapshot of the window ref.
func (b *DarwinBackend) Window(ref Ref) (WindowInfo, error) {
	if ref.IsApplication() {
		return WindowInfo{}, fmt.Errorf("%s is not a window: %w", ref, ErrNotFound)
	}
	var w C.AXWWindowInfo
	if C.axw_window(C.int(ref.PID), C.uint32_t(ref.ID), &w) != 0 {
		return WindowInfo{}, fmt.Errorf("window %s: %w", ref, ErrNotFound)
	}
	defer C.axw_free_window(&w)
	return windowFromC(ref.PID, &w), nil
}

// FocusedWindow returns the application's kAXFocusedWindowAttribute.
func (b *DarwinBackend) FocusedWindow(pid PID) (Ref, error) {
	wid := ElementID(C.axw_focused_window(C.int(pid)))
	if wid == 0 {
		return Ref{}, fmt.Errorf("application %d has no focused window: %w", pid, ErrNotFound)
	}
	return Ref{PID: pid, ID: wid}, nil
}

// SetFrame moves and resizes a window.
func (b *DarwinBackend) SetFrame(ref Ref, bounds Rect) error {
	code := C.axw_set_frame(C.int(ref.PID), C.uint32_t(ref.ID),
		C.double(bounds.X), C.double(bounds.Y), C.double(bounds.Width), C.double(bounds.Height))
	return axError("set frame", ref, int(code))
}

// SetMinimized sets kAXMinimizedAttribute.
func (b *DarwinBackend) SetMinimized(ref Ref, minimized bool) error {
	m := C.int(0)
	if minimized {
		m = 1
	}
	return axError("set minimized", ref, int(C.axw_set_minimized(C.int(ref.PID), C.uint32_t(ref.ID), m)))
}

// Focus raises the window and makes its application frontmost.
func (b *DarwinBackend) Focus(ref Ref) error {
	return axError("focus", ref, int(C.axw_focus(C.int(ref.PID), C.uint32_t(ref.ID))))
}

// CloseWindow presses the window's close button.
func (b *DarwinBackend) CloseWindow(ref Ref) error {
	return axError("close", ref, int(C.axw_close(C.int(ref.PID), C.uint32_t(ref.ID))))
}

// SetHidden hides or unhides the application through NSRunningApplication.
func (b *DarwinBackend) SetHidden(pid PID, hidden bool) error {
	h := C.int(0)
	if hidden {
		h = 1
	}
	switch C.axw_set_hidden(C.int(pid), h) {
	case 0:
		return nil
	case -1:
		return fmt.Errorf("application %d: %w", pid, ErrNotFound)
	default:
		return fmt.Errorf("application %d refused hide=%v", pid, hidden)
	}
}

// Displays returns NSScreen frames converted to top-left coordinates.
func (b *DarwinBackend) Displays() ([]Display, error) {
	var raw *C.AXWDisplay
	n := int(C.axw_displays(&raw))
	defer C.axw_free_displays(raw, C.int(n))

	displays := make([]Display, 0, n)
	for _, d := range unsafe.Slice(raw, n) {
		displays = append(displays, Display{
			ID:     int(d.id),
			Name:   C.GoString(d.name),
			Bounds: Rect{X: int(d.bx), Y: int(d.by), Width: int(d.bw), Height: int(d.bh)},
			Usable: Rect{X: int(d.ux), Y: int(d.uy), Width: int(d.uw), Height: int(d.uh)},
		})
	}
	return displays, nil
}

// Observe registers n with the application's AXObserver.
func (b *DarwinBackend) Observe(ref Ref, n Notification) error {
	if !isAXNotification(n) {
		return fmt.Errorf("%s: %w", n, ErrUnsupportedNotification)
	}
	name := C.CString(string(n))
	defer C.free(unsafe.Pointer(name))
	if err := axError("observe "+string(n), ref, int(C.axw_observe(C.int(ref.PID), C.uint32_t(ref.ID), name))); err != nil {
		return err
	}
	b.subs.Add(ref, n)
	return nil
}

// Unobserve removes n from the application's AXObserver.
func (b *DarwinBackend) Unobserve(ref Ref, n Notification) error {
	if !b.subs.Remove(ref, n) {
		return nil
	}
	name := C.CString(string(n))
	defer C.free(unsafe.Pointer(name))
	return axError("unobserve "+string(n), ref, int(C.axw_unobserve(C.int(ref.PID), C.uint32_t(ref.ID), name)))
}

// Events returns the channel observed notifications are delivered on.
func (b *DarwinBackend) Events() <-chan Event {
	return b.events
}

// Run polls NSWorkspace for launched and terminated applications until ctx
// is cancelled. AX notifications arrive independently on the observer thread.
func (b *DarwinBackend) Run(ctx context.Context) error {
	b.pollApplications(false)

	ticker := time.NewTicker(appPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			b.pollApplications(true)
		}
	}
}

func (b *DarwinBackend) pollApplications(notify bool) {
	apps, err := b.RunningApplications()
	if err != nil {
		return
	}
	current := make(map[PID]bool, len(apps))
	for _, app := range apps {
		current[app.PID] = true
	}

	b.mu.Lock()
	var launched, terminated []PID
	for pid := range current {
		if !b.running[pid] {
			launched = append(launched, pid)
		}
	}
	for pid := range b.running {
		if !current[pid] {
			terminated = append(terminated, pid)
		}
	}
	b.running = current
	b.mu.Unlock()

	for _, pid := range terminated {
		C.axw_forget(C.int(pid))
		b.subs.RemoveApplication(pid)
		if notify {
			b.emit(NotificationApplicationTerminated, AppRef(pid))
		}
	}
	if notify {
		for _, pid := range launched {
			b.emit(NotificationApplicationLaunched, AppRef(pid))
		}
	}
}

func (b *DarwinBackend) emit(n Notification, ref Ref) {
	if !b.subs.Wants(ref, n) {
		return
	}
	select {
	case b.events <- Event{Notification: n, Ref: ref, Time: time.Now()}:
	default:
		b.dropped.Add(1)
	}
}

func windowFromC(pid PID, w *C.AXWWindowInfo) WindowInfo {
	return WindowInfo{
		Ref:     Ref{PID: pid, ID: ElementID(w.id)},
		Title:   C.GoString(w.title),
		Role:    C.GoString(w.role),
		Subrole: C.GoString(w.subrole),
		Bounds: Rect{
			X:      int(w.x),
			Y:      int(w.y),
			Width:  int(w.w),
			Height: int(w.h),
		},
		Minimized: w.minimized != 0,
		Main:      w.main != 0,
	}
}

func axError(op string, ref Ref, code int) error {
	switch code {
	case axErrorSuccess:
		return nil
	case axErrorInvalidUIElement:
		return fmt.Errorf("%s %s: %w", op, ref, ErrNotFound)
	case axErrorAPIDisabled:
		return fmt.Errorf("%s %s: %w", op, ref, ErrNotTrusted)
	case axErrorNotImplemented:
		return fmt.Errorf("%s %s: %w", op, ref, ErrUnsupportedNotification)
	default:
		return fmt.Errorf("%s %s: AXError %d", op, ref, code)
	}
}
