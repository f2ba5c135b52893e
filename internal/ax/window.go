package ax

import (
	"fmt"
	"sync"

	"github.com/1broseidon/axwatch/internal/platform"
)

// Window is the accessibility element of a single window.
type Window struct {
	Element

	mu   sync.Mutex
	info platform.WindowInfo
}

func newWindow(b platform.Backend, info platform.WindowInfo) *Window {
	role := info.Role
	if role == "" {
		role = RoleWindow
	}
	return &Window{
		Element: Element{backend: b, ref: info.Ref, role: role},
		info:    info,
	}
}

// WindowForRef fetches the window ref from the backend.
func WindowForRef(b platform.Backend, ref platform.Ref) (*Window, error) {
	info, err := b.Window(ref)
	if err != nil {
		return nil, err
	}
	return newWindow(b, info), nil
}

// Info queries the backend and refreshes the window's snapshot.
func (w *Window) Info() (platform.WindowInfo, error) {
	info, err := w.backend.Window(w.ref)
	if err != nil {
		return platform.WindowInfo{}, err
	}
	w.mu.Lock()
	w.info = info
	w.mu.Unlock()
	return info, nil
}

// Snapshot returns the attributes last read from the backend.
func (w *Window) Snapshot() platform.WindowInfo {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.info
}

// Title returns the window title, falling back to the last snapshot when
// the window can't be queried.
func (w *Window) Title() string {
	info, err := w.Info()
	if err != nil {
		return w.Snapshot().Title
	}
	return info.Title
}

// Subrole returns the accessibility subrole from the last snapshot.
func (w *Window) Subrole() string {
	return w.Snapshot().Subrole
}

// IsMain reports whether the window was the application's main window when
// last queried.
func (w *Window) IsMain() bool {
	return w.Snapshot().Main
}

// Frame returns the window's current frame.
func (w *Window) Frame() (platform.Rect, error) {
	info, err := w.Info()
	if err != nil {
		return platform.Rect{}, err
	}
	return info.Bounds, nil
}

// SetFrame moves and resizes the window.
func (w *Window) SetFrame(frame platform.Rect) error {
	if frame.Width <= 0 || frame.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", frame.Width, frame.Height)
	}
	if err := w.backend.SetFrame(w.ref, frame); err != nil {
		return err
	}
	w.mu.Lock()
	w.info.Bounds = frame
	w.mu.Unlock()
	return nil
}

// Move sets the window's origin and keeps its size.
func (w *Window) Move(x, y int) error {
	frame, err := w.Frame()
	if err != nil {
		return err
	}
	frame.X, frame.Y = x, y
	return w.SetFrame(frame)
}

// Resize sets the window's size and keeps its origin.
func (w *Window) Resize(width, height int) error {
	frame, err := w.Frame()
	if err != nil {
		return err
	}
	frame.Width, frame.Height = width, height
	return w.SetFrame(frame)
}

// IsMinimized reports whether the window is minimized.
func (w *Window) IsMinimized() (bool, error) {
	info, err := w.Info()
	if err != nil {
		return false, err
	}
	return info.Minimized, nil
}

// Minimize minimizes the window.
func (w *Window) Minimize() error {
	return w.setMinimized(true)
}

// Unminimize restores a minimized window.
func (w *Window) Unminimize() error {
	return w.setMinimized(false)
}

func (w *Window) setMinimized(minimized bool) error {
	if err := w.backend.SetMinimized(w.ref, minimized); err != nil {
		return err
	}
	w.mu.Lock()
	w.info.Minimized = minimized
	w.mu.Unlock()
	return nil
}

// Focus raises the window and activates its application.
func (w *Window) Focus() error {
	return w.backend.Focus(w.ref)
}

// Close asks the window to close.
func (w *Window) Close() error {
	return w.backend.CloseWindow(w.ref)
}

// Application returns the application owning the window.
func (w *Window) Application(opts ...Option) (*Application, error) {
	return NewApplication(w.backend, w.PID(), opts...)
}

// Screen returns the display containing the window's centre, or the first
// display when the window is entirely off-screen.
func (w *Window) Screen() (platform.Display, error) {
	frame, err := w.Frame()
	if err != nil {
		return platform.Display{}, err
	}
	displays, err := w.backend.Displays()
	if err != nil {
		return platform.Display{}, err
	}
	if len(displays) == 0 {
		return platform.Display{}, fmt.Errorf("no displays: %w", platform.ErrNotFound)
	}
	cx, cy := frame.Center()
	if d, ok := platform.DisplayAt(displays, cx, cy); ok {
		return d, nil
	}
	return displays[0], nil
}
