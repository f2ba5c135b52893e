package mcp

import "github.com/1broseidon/axwatch/internal/ipc"

// StatusInput is the input for the daemon_status tool.
type StatusInput struct{}

// StatusOutput is the output for the daemon_status tool.
type StatusOutput struct {
	Backend       string   `json:"backend"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	Applications  int      `json:"applications"`
	Events        uint64   `json:"events"`
	Callbacks     uint64   `json:"callbacks"`
	Throttled     uint64   `json:"throttled"`
	Dropped       uint64   `json:"dropped"`
	HistorySize   int      `json:"history_size"`
	Notifications []string `json:"notifications"`
}

// ListApplicationsInput is the input for the list_applications tool.
type ListApplicationsInput struct{}

// ListApplicationsOutput is the output for the list_applications tool.
type ListApplicationsOutput struct {
	Applications []ipc.AppData `json:"applications"`
}

// ListWindowsInput is the input for the list_windows tool.
type ListWindowsInput struct {
	PID         int  `json:"pid,omitempty" jsonschema:"Process id of the application (default: all applications)"`
	VisibleOnly bool `json:"visible_only,omitempty" jsonschema:"Skip minimized windows and hidden applications"`
}

// ListWindowsOutput is the output for the list_windows tool.
type ListWindowsOutput struct {
	Windows []ipc.WindowData `json:"windows"`
}

// FocusedWindowInput is the input for the focused_window tool.
type FocusedWindowInput struct{}

// FocusedWindowOutput is the output for the focused_window tool.
type FocusedWindowOutput struct {
	Application ipc.AppData     `json:"application"`
	Window      *ipc.WindowData `json:"window,omitempty"`
}

// WindowInput selects a window for the minimize_window, unminimize_window
// and focus_window tools.
type WindowInput struct {
	PID      int    `json:"pid,omitempty" jsonschema:"Process id of the owning application (default: active application)"`
	WindowID uint64 `json:"window_id,omitempty" jsonschema:"Window id from list_windows (default: the application's key window)"`
}

// MoveWindowInput is the input for the move_window tool.
type MoveWindowInput struct {
	PID      int    `json:"pid,omitempty" jsonschema:"Process id of the owning application (default: active application)"`
	WindowID uint64 `json:"window_id,omitempty" jsonschema:"Window id from list_windows (default: the application's key window)"`
	X        int    `json:"x" jsonschema:"required,Left edge in global screen coordinates"`
	Y        int    `json:"y" jsonschema:"required,Top edge in global screen coordinates"`
}

// ResizeWindowInput is the input for the resize_window tool.
type ResizeWindowInput struct {
	PID      int    `json:"pid,omitempty" jsonschema:"Process id of the owning application (default: active application)"`
	WindowID uint64 `json:"window_id,omitempty" jsonschema:"Window id from list_windows (default: the application's key window)"`
	Width    int    `json:"width" jsonschema:"required,New width in pixels"`
	Height   int    `json:"height" jsonschema:"required,New height in pixels"`
}

// SetWindowFrameInput is the input for the set_window_frame tool.
type SetWindowFrameInput struct {
	PID      int    `json:"pid,omitempty" jsonschema:"Process id of the owning application (default: active application)"`
	WindowID uint64 `json:"window_id,omitempty" jsonschema:"Window id from list_windows (default: the application's key window)"`
	X        int    `json:"x" jsonschema:"required,Left edge in global screen coordinates"`
	Y        int    `json:"y" jsonschema:"required,Top edge in global screen coordinates"`
	Width    int    `json:"width" jsonschema:"required,New width in pixels"`
	Height   int    `json:"height" jsonschema:"required,New height in pixels"`
}

// WindowOutput is the window state after an action.
type WindowOutput struct {
	Window ipc.WindowData `json:"window"`
}

// ApplicationInput selects an application.
type ApplicationInput struct {
	PID int `json:"pid" jsonschema:"required,Process id of the application"`
}

// ApplicationOutput is the application state after an action.
type ApplicationOutput struct {
	Application ipc.AppData `json:"application"`
}

// RecentEventsInput is the input for the recent_events tool.
type RecentEventsInput struct {
	After string `json:"after,omitempty" jsonschema:"Return only events recorded after the event with this id"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of events (default: 50)"`
}

// EventInfo describes one recorded window event.
type EventInfo struct {
	ID           string `json:"id"`
	Time         string `json:"time"`
	Notification string `json:"notification"`
	PID          int    `json:"pid"`
	WindowID     uint64 `json:"window_id,omitempty"`
	App          string `json:"app,omitempty"`
	Title        string `json:"title,omitempty"`
	Frame        string `json:"frame,omitempty"`
}

// RecentEventsOutput is the output for the recent_events tool.
type RecentEventsOutput struct {
	Events []EventInfo `json:"events"`
}
