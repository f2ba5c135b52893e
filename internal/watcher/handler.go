package watcher

import "github.com/1broseidon/axwatch/internal/ax"

// Handler receives window lifecycle callbacks. Callbacks run synchronously
// on the goroutine running WatchWindows.
type Handler interface {
	OnFocusedWindowChanged(window *ax.Window)
	OnWindowCreated(window *ax.Window)
	OnApplicationActivated(element *ax.Element)
	OnWindowMinimised(window *ax.Window)
	OnWindowUnminimised(window *ax.Window)
	OnWindowMoved(window *ax.Window)
	OnWindowResized(window *ax.Window)
}

// NopHandler implements Handler with empty callbacks. Embed it to override
// only some of them.
type NopHandler struct{}

func (NopHandler) OnFocusedWindowChanged(*ax.Window)  {}
func (NopHandler) OnWindowCreated(*ax.Window)         {}
func (NopHandler) OnApplicationActivated(*ax.Element) {}
func (NopHandler) OnWindowMinimised(*ax.Window)       {}
func (NopHandler) OnWindowUnminimised(*ax.Window)     {}
func (NopHandler) OnWindowMoved(*ax.Window)           {}
func (NopHandler) OnWindowResized(*ax.Window)         {}

// Funcs adapts optional closures to Handler. Nil fields are skipped.
type Funcs struct {
	FocusedWindowChanged func(*ax.Window)
	WindowCreated        func(*ax.Window)
	ApplicationActivated func(*ax.Element)
	WindowMinimised      func(*ax.Window)
	WindowUnminimised    func(*ax.Window)
	WindowMoved          func(*ax.Window)
	WindowResized        func(*ax.Window)
}

var _ Handler = Funcs{}

func (f Funcs) OnFocusedWindowChanged(w *ax.Window) {
	if f.FocusedWindowChanged != nil {
		f.FocusedWindowChanged(w)
	}
}

func (f Funcs) OnWindowCreated(w *ax.Window) {
	if f.WindowCreated != nil {
		f.WindowCreated(w)
	}
}

func (f Funcs) OnApplicationActivated(e *ax.Element) {
	if f.ApplicationActivated != nil {
		f.ApplicationActivated(e)
	}
}

func (f Funcs) OnWindowMinimised(w *ax.Window) {
	if f.WindowMinimised != nil {
		f.WindowMinimised(w)
	}
}

func (f Funcs) OnWindowUnminimised(w *ax.Window) {
	if f.WindowUnminimised != nil {
		f.WindowUnminimised(w)
	}
}

func (f Funcs) OnWindowMoved(w *ax.Window) {
	if f.WindowMoved != nil {
		f.WindowMoved(w)
	}
}

func (f Funcs) OnWindowResized(w *ax.Window) {
	if f.WindowResized != nil {
		f.WindowResized(w)
	}
}
