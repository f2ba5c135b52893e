//go:build linux

package platform

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/1broseidon/axwatch/internal/x11"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xprop"
	"github.com/BurntSushi/xgbutil/xwindow"
)

const eventBufferSize = 256

// trackedWindow is the last state seen for a managed client window. X11 only
// reports that something changed, so notifications are derived by diffing.
type trackedWindow struct {
	pid      PID
	geometry x11.Geometry
	hidden   bool
	title    string
}

// LinuxBackend maps EWMH state and X events onto accessibility notifications.
type LinuxBackend struct {
	conn   *x11.Connection
	subs   *Subscriptions
	events chan Event

	mu          sync.Mutex
	windows     map[xproto.Window]*trackedWindow
	active      xproto.Window
	activePID   PID
	lastFocused map[PID]xproto.Window
	hiddenApps  map[PID]bool

	dropped atomic.Uint64
}

var (
	_ Backend     = (*LinuxBackend)(nil)
	_ DropCounter = (*LinuxBackend)(nil)
)

// New opens the backend for the current platform.
func New() (Backend, error) {
	return NewLinuxBackendFromDisplay()
}

// Trusted reports whether the process may use the accessibility layer. X11
// has no permission model, so this is always true.
func Trusted(prompt bool) bool {
	return true
}

// NewLinuxBackend creates a Linux platform backend from an existing X11 connection.
func NewLinuxBackend(conn *x11.Connection) *LinuxBackend {
	return &LinuxBackend{
		conn:        conn,
		subs:        NewSubscriptions(),
		events:      make(chan Event, eventBufferSize),
		windows:     make(map[xproto.Window]*trackedWindow),
		lastFocused: make(map[PID]xproto.Window),
		hiddenApps:  make(map[PID]bool),
	}
}

// NewLinuxBackendFromDisplay creates a new Linux backend by opening a fresh X11 connection.
func NewLinuxBackendFromDisplay() (*LinuxBackend, error) {
	conn, err := x11.NewConnection()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	return NewLinuxBackend(conn), nil
}

// Disconnect closes the underlying X11 connection.
func (b *LinuxBackend) Disconnect() {
	if b != nil && b.conn != nil {
		b.conn.Close()
	}
}

// Dropped returns the number of events discarded because the channel was full.
func (b *LinuxBackend) Dropped() uint64 {
	return b.dropped.Load()
}

// RunningApplications groups managed client windows by _NET_WM_PID.
func (b *LinuxBackend) RunningApplications() ([]AppInfo, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}

	clients, err := conn.ClientList()
	if err != nil {
		return nil, err
	}

	activePID := PID(0)
	if active, err := conn.GetActiveWindow(); err == nil && active != 0 {
		activePID = PID(conn.WindowPID(active))
	}

	apps := make(map[PID]*AppInfo)
	for _, win := range clients {
		if !conn.IsNormalWindow(win) {
			continue
		}
		pid := PID(conn.WindowPID(win))
		if pid == 0 {
			continue
		}
		hidden := conn.IsHidden(win)
		app, ok := apps[pid]
		if !ok {
			app = &AppInfo{
				PID:      pid,
				Name:     conn.WindowClass(win),
				BundleID: conn.WindowInstance(win),
				Hidden:   true,
				Active:   pid == activePID,
			}
			apps[pid] = app
		}
		if !hidden {
			app.Hidden = false
		}
	}

	infos := make([]AppInfo, 0, len(apps))
	for _, app := range apps {
		infos = append(infos, *app)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].PID < infos[j].PID
	})
	return infos, nil
}

// Application returns the running application with the given pid.
func (b *LinuxBackend) Application(pid PID) (AppInfo, error) {
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

// FocusedApplication returns the owner of _NET_ACTIVE_WINDOW.
func (b *LinuxBackend) FocusedApplication() (PID, error) {
	conn, err := b.connection()
	if err != nil {
		return 0, err
	}
	active, err := conn.GetActiveWindow()
	if err != nil {
		return 0, err
	}
	if active == 0 {
		return 0, fmt.Errorf("no active window: %w", ErrNotFound)
	}
	pid := PID(conn.WindowPID(active))
	if pid == 0 {
		return 0, fmt.Errorf("active window has no pid: %w", ErrNotFound)
	}
	return pid, nil
}

// Windows lists the normal windows owned by pid in client-list order.
func (b *LinuxBackend) Windows(pid PID) ([]WindowInfo, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}

	clients, err := conn.ClientList()
	if err != nil {
		return nil, err
	}

	main := b.mainWindow(pid)
	var windows []WindowInfo
	for _, win := range clients {
		if !conn.IsNormalWindow(win) || PID(conn.WindowPID(win)) != pid {
			continue
		}
		info, err := b.windowInfo(pid, win)
		if err != nil {
			continue
		}
		if main == 0 {
			main = win
		}
		info.Main = win == main
		windows = append(windows, info)
	}
	return windows, nil
}

// Window returns a fresh snapshot of the window ref.
func (b *LinuxBackend) Window(ref Ref) (WindowInfo, error) {
	win, err := b.resolve(ref)
	if err != nil {
		return WindowInfo{}, err
	}
	info, err := b.windowInfo(ref.PID, win)
	if err != nil {
		return WindowInfo{}, fmt.Errorf("window %s: %w", ref, ErrNotFound)
	}
	info.Main = b.mainWindow(ref.PID) == win
	return info, nil
}

// FocusedWindow returns the active window when pid is focused, otherwise the
// window of pid that was focused most recently.
func (b *LinuxBackend) FocusedWindow(pid PID) (Ref, error) {
	conn, err := b.connection()
	if err != nil {
		return Ref{}, err
	}
	if active, err := conn.GetActiveWindow(); err == nil && active != 0 && PID(conn.WindowPID(active)) == pid {
		return Ref{PID: pid, ID: ElementID(active)}, nil
	}
	if win := b.mainWindow(pid); win != 0 {
		if _, err := b.resolve(Ref{PID: pid, ID: ElementID(win)}); err == nil {
			return Ref{PID: pid, ID: ElementID(win)}, nil
		}
	}
	return Ref{}, fmt.Errorf("application %d has no focused window: %w", pid, ErrNotFound)
}

// SetFrame moves and resizes a window.
func (b *LinuxBackend) SetFrame(ref Ref, bounds Rect) error {
	win, err := b.resolve(ref)
	if err != nil {
		return err
	}
	return b.conn.MoveResizeWindow(win, bounds.X, bounds.Y, bounds.Width, bounds.Height)
}

// SetMinimized iconifies or restores a window.
func (b *LinuxBackend) SetMinimized(ref Ref, minimized bool) error {
	win, err := b.resolve(ref)
	if err != nil {
		return err
	}
	if minimized {
		return b.conn.Minimize(win)
	}
	return b.conn.Unminimize(win)
}

// Focus activates and raises a window.
func (b *LinuxBackend) Focus(ref Ref) error {
	win, err := b.resolve(ref)
	if err != nil {
		return err
	}
	return b.conn.FocusWindow(win)
}

// CloseWindow requests graceful window close.
func (b *LinuxBackend) CloseWindow(ref Ref) error {
	win, err := b.resolve(ref)
	if err != nil {
		return err
	}
	return b.conn.CloseWindow(win)
}

// SetHidden iconifies or restores every window of the application. X11 has
// no application-level hide.
func (b *LinuxBackend) SetHidden(pid PID, hidden bool) error {
	windows, err := b.Windows(pid)
	if err != nil {
		return err
	}
	if len(windows) == 0 {
		return fmt.Errorf("application %d: %w", pid, ErrNotFound)
	}
	for _, w := range windows {
		if w.Minimized == hidden {
			continue
		}
		if err := b.SetMinimized(w.Ref, hidden); err != nil {
			return err
		}
	}
	return nil
}

// Displays returns all active displays.
func (b *LinuxBackend) Displays() ([]Display, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}

	monitors, err := conn.GetMonitors()
	if err != nil {
		return nil, err
	}

	displays := make([]Display, 0, len(monitors))
	for _, m := range monitors {
		usable := conn.UsableArea(m)
		displays = append(displays, Display{
			ID:     m.ID,
			Name:   m.Name,
			Bounds: Rect{X: m.X, Y: m.Y, Width: m.Width, Height: m.Height},
			Usable: Rect{X: usable.X, Y: usable.Y, Width: usable.Width, Height: usable.Height},
		})
	}

	sort.Slice(displays, func(i, j int) bool {
		return displays[i].ID < displays[j].ID
	})
	return displays, nil
}

// Observe subscribes to n for ref.
func (b *LinuxBackend) Observe(ref Ref, n Notification) error {
	if !isAXNotification(n) {
		return fmt.Errorf("%s: %w", n, ErrUnsupportedNotification)
	}
	if !ref.IsApplication() {
		if _, err := b.resolve(ref); err != nil {
			return err
		}
	}
	b.subs.Add(ref, n)
	return nil
}

// Unobserve drops the subscription to n for ref.
func (b *LinuxBackend) Unobserve(ref Ref, n Notification) error {
	b.subs.Remove(ref, n)
	return nil
}

// Events returns the channel observed notifications are delivered on.
func (b *LinuxBackend) Events() <-chan Event {
	return b.events
}

// Run snapshots the current window state, selects the X events needed to
// derive notifications and runs the xevent loop until ctx is cancelled.
func (b *LinuxBackend) Run(ctx context.Context) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}

	if err := xwindow.New(conn.XUtil, conn.Root).Listen(xproto.EventMaskPropertyChange); err != nil {
		return fmt.Errorf("failed to select root events: %w", err)
	}
	xevent.PropertyNotifyFun(func(xu *xgbutil.XUtil, ev xevent.PropertyNotifyEvent) {
		b.handleRootProperty(ev)
	}).Connect(conn.XUtil, conn.Root)

	b.mu.Lock()
	if active, err := conn.GetActiveWindow(); err == nil {
		b.active = active
		b.activePID = PID(conn.WindowPID(active))
		if b.activePID != 0 {
			b.lastFocused[b.activePID] = active
		}
	}
	b.mu.Unlock()

	clients, err := conn.ClientList()
	if err != nil {
		return fmt.Errorf("failed to read client list: %w", err)
	}
	for _, win := range clients {
		b.track(win)
	}

	done := make(chan struct{})
	go func() {
		conn.EventLoop()
		close(done)
	}()

	select {
	case <-ctx.Done():
		// xevent.Main only checks for quit between events.
		conn.Quit()
		return nil
	case <-done:
		return fmt.Errorf("x11 event loop exited")
	}
}

func (b *LinuxBackend) track(win xproto.Window) *trackedWindow {
	conn := b.conn
	if !conn.IsNormalWindow(win) {
		return nil
	}
	pid := PID(conn.WindowPID(win))
	if pid == 0 {
		return nil
	}
	geom, err := conn.WindowGeometry(win)
	if err != nil {
		return nil
	}

	tw := &trackedWindow{
		pid:      pid,
		geometry: geom,
		hidden:   conn.IsHidden(win),
		title:    conn.WindowTitle(win),
	}

	b.mu.Lock()
	b.windows[win] = tw
	b.mu.Unlock()

	if err := xwindow.New(conn.XUtil, win).Listen(xproto.EventMaskStructureNotify, xproto.EventMaskPropertyChange); err != nil {
		return tw
	}
	xevent.ConfigureNotifyFun(func(xu *xgbutil.XUtil, ev xevent.ConfigureNotifyEvent) {
		b.handleConfigure(win)
	}).Connect(conn.XUtil, win)
	xevent.PropertyNotifyFun(func(xu *xgbutil.XUtil, ev xevent.PropertyNotifyEvent) {
		b.handleClientProperty(win, ev)
	}).Connect(conn.XUtil, win)

	return tw
}

func (b *LinuxBackend) handleRootProperty(ev xevent.PropertyNotifyEvent) {
	name, err := xprop.AtomName(b.conn.XUtil, ev.Atom)
	if err != nil {
		return
	}
	switch name {
	case "_NET_ACTIVE_WINDOW":
		b.handleActiveWindowChanged()
	case "_NET_CLIENT_LIST":
		b.handleClientListChanged()
	}
}

func (b *LinuxBackend) handleActiveWindowChanged() {
	active, err := b.conn.GetActiveWindow()
	if err != nil {
		return
	}
	pid := PID(b.conn.WindowPID(active))

	b.mu.Lock()
	prev, prevPID := b.active, b.activePID
	b.active, b.activePID = active, pid
	if pid != 0 && active != 0 {
		b.lastFocused[pid] = active
	}
	b.mu.Unlock()

	b.emitAll(activationEvents(prev, prevPID, active, pid))
}

func (b *LinuxBackend) handleClientListChanged() {
	clients, err := b.conn.ClientList()
	if err != nil {
		return
	}
	current := make(map[xproto.Window]bool, len(clients))
	for _, win := range clients {
		current[win] = true
	}

	b.mu.Lock()
	before := b.trackedPIDsLocked()
	for win := range b.windows {
		if !current[win] {
			delete(b.windows, win)
		}
	}
	b.mu.Unlock()

	for _, win := range clients {
		if _, ok := before[win]; !ok {
			b.track(win)
		}
	}

	b.mu.Lock()
	after := b.trackedPIDsLocked()
	b.mu.Unlock()

	for _, ev := range clientListEvents(before, after) {
		if ev.n == NotificationUIElementDestroyed {
			xevent.Detach(b.conn.XUtil, xproto.Window(ev.ref.ID))
		}
		b.emit(ev.n, ev.ref)
		if ev.n == NotificationApplicationTerminated {
			b.mu.Lock()
			delete(b.lastFocused, ev.ref.PID)
			delete(b.hiddenApps, ev.ref.PID)
			b.mu.Unlock()
			b.subs.RemoveApplication(ev.ref.PID)
		}
	}
}

func (b *LinuxBackend) trackedPIDsLocked() map[xproto.Window]PID {
	pids := make(map[xproto.Window]PID, len(b.windows))
	for win, tw := range b.windows {
		pids[win] = tw.pid
	}
	return pids
}

func (b *LinuxBackend) handleConfigure(win xproto.Window) {
	geom, err := b.conn.WindowGeometry(win)
	if err != nil {
		return
	}

	b.mu.Lock()
	tw, ok := b.windows[win]
	if !ok {
		b.mu.Unlock()
		return
	}
	prev := tw.geometry
	tw.geometry = geom
	pid := tw.pid
	b.mu.Unlock()

	b.emitAll(geometryEvents(windowRef(pid, win), prev, geom))
}

func (b *LinuxBackend) handleClientProperty(win xproto.Window, ev xevent.PropertyNotifyEvent) {
	name, err := xprop.AtomName(b.conn.XUtil, ev.Atom)
	if err != nil {
		return
	}

	switch name {
	case "_NET_WM_STATE":
		hidden := b.conn.IsHidden(win)
		b.mu.Lock()
		tw, ok := b.windows[win]
		if !ok {
			b.mu.Unlock()
			return
		}
		was := tw.hidden
		tw.hidden = hidden
		pid := tw.pid
		b.mu.Unlock()

		if e, ok := minimizeEvent(windowRef(pid, win), was, hidden); ok {
			b.emit(e.n, e.ref)
			b.updateApplicationHidden(pid)
		}
	case "_NET_WM_NAME", "WM_NAME":
		title := b.conn.WindowTitle(win)
		b.mu.Lock()
		tw, ok := b.windows[win]
		if !ok || tw.title == title {
			b.mu.Unlock()
			return
		}
		tw.title = title
		pid := tw.pid
		b.mu.Unlock()
		b.emit(NotificationTitleChanged, windowRef(pid, win))
	}
}

func (b *LinuxBackend) updateApplicationHidden(pid PID) {
	b.mu.Lock()
	allHidden := true
	for _, tw := range b.windows {
		if tw.pid == pid && !tw.hidden {
			allHidden = false
			break
		}
	}
	was := b.hiddenApps[pid]
	b.hiddenApps[pid] = allHidden
	b.mu.Unlock()

	if e, ok := appHiddenEvent(pid, was, allHidden); ok {
		b.emit(e.n, e.ref)
	}
}

func (b *LinuxBackend) emitAll(events []windowEvent) {
	for _, e := range events {
		b.emit(e.n, e.ref)
	}
}

func (b *LinuxBackend) emit(n Notification, ref Ref) {
	if !b.subs.Wants(ref, n) {
		return
	}
	select {
	case b.events <- Event{Notification: n, Ref: ref, Time: time.Now()}:
	default:
		b.dropped.Add(1)
	}
}

func (b *LinuxBackend) mainWindow(pid PID) xproto.Window {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastFocused[pid]
}

// resolve checks that ref names a live client window owned by ref.PID.
func (b *LinuxBackend) resolve(ref Ref) (xproto.Window, error) {
	conn, err := b.connection()
	if err != nil {
		return 0, err
	}
	if ref.IsApplication() {
		return 0, fmt.Errorf("%s is not a window: %w", ref, ErrNotFound)
	}
	win := xproto.Window(ref.ID)
	clients, err := conn.ClientList()
	if err != nil {
		return 0, err
	}
	for _, c := range clients {
		if c == win {
			if PID(conn.WindowPID(win)) != ref.PID {
				return 0, fmt.Errorf("window %s not owned by %d: %w", ref, ref.PID, ErrNotFound)
			}
			return win, nil
		}
	}
	return 0, fmt.Errorf("window %s: %w", ref, ErrNotFound)
}

func (b *LinuxBackend) windowInfo(pid PID, win xproto.Window) (WindowInfo, error) {
	conn := b.conn
	geom, err := conn.WindowGeometry(win)
	if err != nil {
		return WindowInfo{}, err
	}
	return WindowInfo{
		Ref:       Ref{PID: pid, ID: ElementID(win)},
		Title:     conn.WindowTitle(win),
		Role:      "AXWindow",
		Subrole:   conn.WindowSubrole(win),
		Bounds:    Rect{X: geom.X, Y: geom.Y, Width: geom.Width, Height: geom.Height},
		Minimized: conn.IsHidden(win),
	}, nil
}

func (b *LinuxBackend) connection() (*x11.Connection, error) {
	if b == nil || b.conn == nil {
		return nil, fmt.Errorf("x11 backend connection is nil")
	}
	return b.conn, nil
}
