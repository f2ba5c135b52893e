package ax

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/1broseidon/axwatch/internal/notify"
	"github.com/1broseidon/axwatch/internal/platform"
)

// ErrNotOwned is returned when an element passed to an Application belongs
// to another process.
var ErrNotOwned = errors.New("element not owned by application")

type handlerKey struct {
	n   platform.Notification
	ref platform.Ref
}

// Option configures an Application.
type Option func(*Application)

// WithCenter sets the center default handlers post to. notify.Default() is
// used otherwise.
func WithCenter(c *notify.Center) Option {
	return func(a *Application) {
		a.center = c
	}
}

// Application is the accessibility root element of a running process.
type Application struct {
	Element

	info   platform.AppInfo
	center *notify.Center

	mu       sync.Mutex
	windows  []*Window
	cached   bool
	handlers map[handlerKey]Handler
}

// NewApplication wraps the running process pid. It fails with
// platform.ErrNotFound when no accessibility element can be constructed.
func NewApplication(b platform.Backend, pid platform.PID, opts ...Option) (*Application, error) {
	info, err := b.Application(pid)
	if err != nil {
		return nil, fmt.Errorf("application for pid %d: %w", pid, err)
	}
	return ApplicationFromInfo(b, info, opts...), nil
}

// ApplicationForPID is an alias of NewApplication.
func ApplicationForPID(b platform.Backend, pid platform.PID, opts ...Option) (*Application, error) {
	return NewApplication(b, pid, opts...)
}

// ApplicationFromInfo wraps an already enumerated running application.
func ApplicationFromInfo(b platform.Backend, info platform.AppInfo, opts ...Option) *Application {
	a := &Application{
		Element:  Element{backend: b, ref: platform.AppRef(info.PID), role: RoleApplication},
		info:     info,
		center:   notify.Default(),
		handlers: make(map[handlerKey]Handler),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RunningApplications returns an Application for every running application.
func RunningApplications(b platform.Backend, opts ...Option) ([]*Application, error) {
	infos, err := b.RunningApplications()
	if err != nil {
		return nil, err
	}
	apps := make([]*Application, 0, len(infos))
	for _, info := range infos {
		apps = append(apps, ApplicationFromInfo(b, info, opts...))
	}
	return apps, nil
}

// FocusedApplication returns the currently active application.
func FocusedApplication(b platform.Backend, opts ...Option) (*Application, error) {
	pid, err := b.FocusedApplication()
	if err != nil {
		return nil, err
	}
	return NewApplication(b, pid, opts...)
}

// Info returns the current running-application record.
func (a *Application) Info() (platform.AppInfo, error) {
	info, err := a.backend.Application(a.PID())
	if err != nil {
		return platform.AppInfo{}, err
	}
	a.mu.Lock()
	a.info = info
	a.mu.Unlock()
	return info, nil
}

// Title returns the application's name, or "" if it has exited.
func (a *Application) Title() string {
	info, err := a.Info()
	if err != nil {
		a.mu.Lock()
		defer a.mu.Unlock()
		return a.info.Name
	}
	return info.Name
}

// BundleID returns the application's bundle identifier (WM_CLASS instance on X11).
func (a *Application) BundleID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.info.BundleID
}

// IsHidden reports whether the application is hidden.
func (a *Application) IsHidden() bool {
	info, err := a.Info()
	if err != nil {
		return false
	}
	return info.Hidden
}

// Hide hides the application.
func (a *Application) Hide() error {
	return a.backend.SetHidden(a.PID(), true)
}

// Unhide unhides the application.
func (a *Application) Unhide() error {
	return a.backend.SetHidden(a.PID(), false)
}

// Kill sends the application SIGTERM.
func (a *Application) Kill() error {
	return a.signal(unix.SIGTERM)
}

// Kill9 sends the application SIGKILL.
func (a *Application) Kill9() error {
	return a.signal(unix.SIGKILL)
}

func (a *Application) signal(sig unix.Signal) error {
	if a.PID() <= 0 {
		return fmt.Errorf("invalid pid %d", a.PID())
	}
	if err := unix.Kill(int(a.PID()), sig); err != nil {
		return fmt.Errorf("signal %v to %d: %w", sig, a.PID(), err)
	}
	return nil
}

// Windows returns the application's windows. The list is fetched on first
// use and cached until DropWindowsCache is called.
func (a *Application) Windows() ([]*Window, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cached {
		return append([]*Window(nil), a.windows...), nil
	}

	infos, err := a.backend.Windows(a.PID())
	if err != nil {
		return nil, err
	}
	windows := make([]*Window, 0, len(infos))
	for _, info := range infos {
		windows = append(windows, newWindow(a.backend, info))
	}
	a.windows = windows
	a.cached = true
	return append([]*Window(nil), windows...), nil
}

// DropWindowsCache discards cached windows so the next Windows call reflects
// the application's current state.
func (a *Application) DropWindowsCache() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.windows = nil
	a.cached = false
}

// VisibleWindows returns the windows that are neither minimized nor hidden
// along with their application.
func (a *Application) VisibleWindows() ([]*Window, error) {
	if a.IsHidden() {
		return nil, nil
	}
	windows, err := a.Windows()
	if err != nil {
		return nil, err
	}
	visible := make([]*Window, 0, len(windows))
	for _, w := range windows {
		minimized, err := w.IsMinimized()
		if err != nil || minimized {
			continue
		}
		visible = append(visible, w)
	}
	return visible, nil
}

// FocusedWindow returns the application's focused window.
func (a *Application) FocusedWindow() (*Window, error) {
	ref, err := a.backend.FocusedWindow(a.PID())
	if err != nil {
		return nil, err
	}
	return a.window(ref)
}

// MainWindow returns the application's main window.
func (a *Application) MainWindow() (*Window, error) {
	windows, err := a.Windows()
	if err != nil {
		return nil, err
	}
	for _, w := range windows {
		if w.IsMain() {
			return w, nil
		}
	}
	return nil, fmt.Errorf("application %d has no main window: %w", a.PID(), platform.ErrNotFound)
}

// window returns the cached Window for ref, or fetches it.
func (a *Application) window(ref platform.Ref) (*Window, error) {
	a.mu.Lock()
	for _, w := range a.windows {
		if w.ref == ref {
			a.mu.Unlock()
			return w, nil
		}
	}
	a.mu.Unlock()

	info, err := a.backend.Window(ref)
	if err != nil {
		return nil, err
	}
	return newWindow(a.backend, info), nil
}

// Owns reports whether element is the application or belongs to it.
func (a *Application) Owns(element *Element) bool {
	return element != nil && element.PID() == a.PID()
}

// ObserveNotification registers the default handler for n on element. The
// handler reposts the event on the application's center under
// EventNotification with EventNotificationData holding a NotificationData.
// It reports whether adding the observer succeeded.
func (a *Application) ObserveNotification(n platform.Notification, element *Element) bool {
	return a.ObserveNotificationFunc(n, element, PostHandler(a.center, n))
}

// ObserveNotificationFunc registers handler for n on element, replacing any
// handler already registered for the pair. element must be the application
// or owned by it.
func (a *Application) ObserveNotificationFunc(n platform.Notification, element *Element, handler Handler) bool {
	return a.observe(n, element, handler) == nil
}

func (a *Application) observe(n platform.Notification, element *Element, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("nil handler")
	}
	if !a.Owns(element) {
		return fmt.Errorf("%s: %w", element, ErrNotOwned)
	}
	if err := a.backend.Observe(element.Ref(), n); err != nil {
		return err
	}
	a.mu.Lock()
	a.handlers[handlerKey{n: n, ref: element.Ref()}] = handler
	a.mu.Unlock()
	return nil
}

// UnobserveNotification unregisters the handler for n on element and
// releases it. Pairs that were never observed are ignored.
func (a *Application) UnobserveNotification(n platform.Notification, element *Element) {
	if element == nil {
		return
	}
	key := handlerKey{n: n, ref: element.Ref()}
	a.mu.Lock()
	_, ok := a.handlers[key]
	delete(a.handlers, key)
	a.mu.Unlock()
	if ok {
		_ = a.backend.Unobserve(element.Ref(), n)
	}
}

// UnobserveAll drops every handler registered on the application.
func (a *Application) UnobserveAll() {
	a.mu.Lock()
	keys := make([]handlerKey, 0, len(a.handlers))
	for k := range a.handlers {
		keys = append(keys, k)
	}
	a.handlers = make(map[handlerKey]Handler)
	a.mu.Unlock()

	for _, k := range keys {
		_ = a.backend.Unobserve(k.ref, k.n)
	}
}

// Observing reports whether a handler is registered for n on element.
func (a *Application) Observing(n platform.Notification, element *Element) bool {
	if element == nil {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.handlers[handlerKey{n: n, ref: element.Ref()}]
	return ok
}

// Dispatch routes a backend event to the handler registered for the exact
// element, falling back to the application-level handler. It reports whether
// a handler ran.
func (a *Application) Dispatch(ev platform.Event) bool {
	if ev.Ref.PID != a.PID() {
		return false
	}
	a.mu.Lock()
	handler, ok := a.handlers[handlerKey{n: ev.Notification, ref: ev.Ref}]
	if !ok {
		handler, ok = a.handlers[handlerKey{n: ev.Notification, ref: a.ref}]
	}
	a.mu.Unlock()
	if !ok {
		return false
	}

	handler(a.elementFor(ev.Ref))
	return true
}

// elementFor returns the element an event refers to. Windows are looked up
// in the cache first so handlers see the same *Window instances as Windows.
func (a *Application) elementFor(ref platform.Ref) *Element {
	if ref.IsApplication() {
		return &a.Element
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, w := range a.windows {
		if w.ref == ref {
			return &w.Element
		}
	}
	return NewElement(a.backend, ref, RoleWindow)
}

// AsWindow returns the Window for element, using the cache where possible.
func (a *Application) AsWindow(element *Element) (*Window, error) {
	if element == nil || element.IsApplication() {
		return nil, fmt.Errorf("%s is not a window: %w", element, platform.ErrNotFound)
	}
	if !a.Owns(element) {
		return nil, fmt.Errorf("%s: %w", element, ErrNotOwned)
	}
	return a.window(element.Ref())
}
