package ipc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/1broseidon/axwatch/internal/history"
	"github.com/1broseidon/axwatch/internal/platform"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandReload           CommandType = "RELOAD"
	CommandGetStatus        CommandType = "GET_STATUS"
	CommandListApps         CommandType = "LIST_APPS"
	CommandListWindows      CommandType = "LIST_WINDOWS"
	CommandFocused          CommandType = "FOCUSED"
	CommandMoveWindow       CommandType = "MOVE_WINDOW"
	CommandResizeWindow     CommandType = "RESIZE_WINDOW"
	CommandSetFrame         CommandType = "SET_FRAME"
	CommandMinimizeWindow   CommandType = "MINIMIZE_WINDOW"
	CommandUnminimizeWindow CommandType = "UNMINIMIZE_WINDOW"
	CommandFocusWindow      CommandType = "FOCUS_WINDOW"
	CommandHideApp          CommandType = "HIDE_APP"
	CommandUnhideApp        CommandType = "UNHIDE_APP"
	CommandRecentEvents     CommandType = "RECENT_EVENTS"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	DaemonRunning bool                    `json:"daemon_running"`
	Backend       string                  `json:"backend"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	Applications  int                     `json:"applications"`
	Events        uint64                  `json:"events"`
	Callbacks     uint64                  `json:"callbacks"`
	Throttled     uint64                  `json:"throttled"`
	Dropped       uint64                  `json:"dropped"`
	HistorySize   int                     `json:"history_size"`
	Notifications []platform.Notification `json:"notifications,omitempty"`
}

// AppData describes one running application.
type AppData struct {
	PID      platform.PID `json:"pid"`
	Name     string       `json:"name"`
	BundleID string       `json:"bundle_id,omitempty"`
	Hidden   bool         `json:"hidden"`
	Active   bool         `json:"active"`
	Windows  int          `json:"windows"`
	Watched  bool         `json:"watched"`
}

// WindowData describes one window.
type WindowData struct {
	PID       platform.PID       `json:"pid"`
	WindowID  platform.ElementID `json:"window_id"`
	App       string             `json:"app,omitempty"`
	Title     string             `json:"title"`
	Role      string             `json:"role,omitempty"`
	Subrole   string             `json:"subrole,omitempty"`
	Frame     platform.Rect      `json:"frame"`
	Minimized bool               `json:"minimized"`
	Main      bool               `json:"main"`
	Focused   bool               `json:"focused"`
	Display   string             `json:"display,omitempty"`
}

// Ref returns the window's element reference.
func (w WindowData) Ref() platform.Ref {
	return platform.Ref{PID: w.PID, ID: w.WindowID}
}

// FocusedData represents the data returned by FOCUSED.
type FocusedData struct {
	App    AppData     `json:"app"`
	Window *WindowData `json:"window,omitempty"`
}

// WindowTarget selects a window. A zero PID means the focused application; a
// zero WindowID means the application's key window.
type WindowTarget struct {
	PID      platform.PID       `json:"pid,omitempty"`
	WindowID platform.ElementID `json:"window_id,omitempty"`
}

// ListWindowsPayload represents the payload for LIST_WINDOWS. A zero PID
// lists the windows of every application.
type ListWindowsPayload struct {
	PID         platform.PID `json:"pid,omitempty"`
	VisibleOnly bool         `json:"visible_only,omitempty"`
}

// MoveWindowPayload represents the payload for MOVE_WINDOW.
type MoveWindowPayload struct {
	WindowTarget
	X int `json:"x"`
	Y int `json:"y"`
}

// ResizeWindowPayload represents the payload for RESIZE_WINDOW.
type ResizeWindowPayload struct {
	WindowTarget
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SetFramePayload represents the payload for SET_FRAME.
type SetFramePayload struct {
	WindowTarget
	Frame platform.Rect `json:"frame"`
}

// AppPayload represents the payload for HIDE_APP and UNHIDE_APP.
type AppPayload struct {
	PID platform.PID `json:"pid"`
}

// RecentEventsPayload represents the payload for RECENT_EVENTS.
type RecentEventsPayload struct {
	After string `json:"after,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// EventsData represents the data returned by RECENT_EVENTS.
type EventsData struct {
	Events []history.Record `json:"events"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

func uptime(since time.Time) int64 {
	return int64(time.Since(since).Seconds())
}
