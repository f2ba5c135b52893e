package platform

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnsupported is returned when no backend exists for the current platform.
	ErrUnsupported = errors.New("accessibility backend not supported on this platform")
	// ErrNotFound is returned when an application or window no longer exists.
	ErrNotFound = errors.New("accessibility element not found")
	// ErrNotTrusted is returned when the process lacks accessibility permission.
	ErrNotTrusted = errors.New("process is not trusted for accessibility")
	// ErrUnsupportedNotification is returned when a backend cannot deliver a notification kind.
	ErrUnsupportedNotification = errors.New("notification not supported by backend")
)

// PID is a process identifier.
type PID int

// ElementID is an opaque per-process handle of a native accessibility element.
type ElementID uint64

// AppElement is the element ID reserved for an application's root element.
const AppElement ElementID = 0

// Ref identifies an accessibility element across processes.
type Ref struct {
	PID PID
	ID  ElementID
}

// AppRef returns the reference to the root element of the application pid.
func AppRef(pid PID) Ref {
	return Ref{PID: pid, ID: AppElement}
}

// IsApplication reports whether r refers to an application root element.
func (r Ref) IsApplication() bool {
	return r.ID == AppElement
}

// Application returns the reference of the application owning r.
func (r Ref) Application() Ref {
	return AppRef(r.PID)
}

func (r Ref) String() string {
	if r.IsApplication() {
		return fmt.Sprintf("app:%d", r.PID)
	}
	return fmt.Sprintf("%d/%d", r.PID, r.ID)
}

// Rect describes a rectangular region in global screen coordinates with a
// top-left origin.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the centre point of r.
func (r Rect) Center() (int, int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Contains reports whether the point lies inside r.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// String formats r as an X geometry string, WxH+X+Y.
func (r Rect) String() string {
	return fmt.Sprintf("%dx%d%+d%+d", r.Width, r.Height, r.X, r.Y)
}

// Display describes a physical display and its usable work area.
type Display struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Bounds Rect   `json:"bounds"`
	Usable Rect   `json:"usable"`
}

// DisplayAt returns the display containing the point, if any.
func DisplayAt(displays []Display, x, y int) (Display, bool) {
	for _, d := range displays {
		if d.Bounds.Contains(x, y) {
			return d, true
		}
	}
	return Display{}, false
}

// AppInfo describes a running application.
type AppInfo struct {
	PID      PID    `json:"pid"`
	Name     string `json:"name"`
	BundleID string `json:"bundle_id,omitempty"`
	Hidden   bool   `json:"hidden"`
	Active   bool   `json:"active"`
}

// WindowInfo is a snapshot of a window element's attributes.
type WindowInfo struct {
	Ref       Ref    `json:"-"`
	Title     string `json:"title"`
	Role      string `json:"role"`
	Subrole   string `json:"subrole,omitempty"`
	Bounds    Rect   `json:"bounds"`
	Minimized bool   `json:"minimized"`
	Main      bool   `json:"main"`
}

// Event is a raw notification delivered by a backend for an observed element.
type Event struct {
	Notification Notification
	Ref          Ref
	Time         time.Time
}

// Backend abstracts the accessibility layer of a window system.
type Backend interface {
	RunningApplications() ([]AppInfo, error)
	Application(pid PID) (AppInfo, error)
	FocusedApplication() (PID, error)

	Windows(pid PID) ([]WindowInfo, error)
	Window(ref Ref) (WindowInfo, error)
	FocusedWindow(pid PID) (Ref, error)

	SetFrame(ref Ref, bounds Rect) error
	SetMinimized(ref Ref, minimized bool) error
	Focus(ref Ref) error
	CloseWindow(ref Ref) error
	SetHidden(pid PID, hidden bool) error

	Displays() ([]Display, error)

	// Observe subscribes to n for the element ref. Observing the application
	// root covers every element owned by that application.
	Observe(ref Ref, n Notification) error
	Unobserve(ref Ref, n Notification) error

	// Events returns the channel observed notifications are delivered on.
	Events() <-chan Event
	// Run pumps native events until ctx is cancelled.
	Run(ctx context.Context) error
	Disconnect()
}

// DropCounter is implemented by backends that discard events when the
// consumer falls behind.
type DropCounter interface {
	Dropped() uint64
}

// DroppedEvents returns b's discarded event count, or 0 when b does not
// report one.
func DroppedEvents(b Backend) uint64 {
	if dc, ok := b.(DropCounter); ok {
		return dc.Dropped()
	}
	return 0
}
