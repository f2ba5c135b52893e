package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/axwatch/internal/ipc"
	"github.com/1broseidon/axwatch/internal/platform"
)

const (
	ServerName    = "axwatch"
	ServerVersion = "0.1.0"
)

// Controller executes window commands. *ipc.Service runs them in-process;
// *ipc.Client forwards them to a running daemon.
type Controller interface {
	Status() (*ipc.StatusData, error)
	ListApps() ([]ipc.AppData, error)
	ListWindows(p ipc.ListWindowsPayload) ([]ipc.WindowData, error)
	Focused() (*ipc.FocusedData, error)
	MoveWindow(p ipc.MoveWindowPayload) (*ipc.WindowData, error)
	ResizeWindow(p ipc.ResizeWindowPayload) (*ipc.WindowData, error)
	SetFrame(p ipc.SetFramePayload) (*ipc.WindowData, error)
	MinimizeWindow(t ipc.WindowTarget) (*ipc.WindowData, error)
	UnminimizeWindow(t ipc.WindowTarget) (*ipc.WindowData, error)
	FocusWindow(t ipc.WindowTarget) (*ipc.WindowData, error)
	HideApp(pid platform.PID) (*ipc.AppData, error)
	UnhideApp(pid platform.PID) (*ipc.AppData, error)
	RecentEvents(p ipc.RecentEventsPayload) (*ipc.EventsData, error)
}

var (
	_ Controller = (*ipc.Service)(nil)
	_ Controller = (*ipc.Client)(nil)
)

// Server is the MCP server exposing window inspection and control tools.
type Server struct {
	mcpServer *mcpsdk.Server
	ctl       Controller
}

// NewServer creates an MCP server backed by ctl.
func NewServer(ctl Controller) *Server {
	s := &Server{ctl: ctl}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "daemon_status",
		Description: "Report watcher state: observed applications, event and callback counters, and the notification set.",
	}, s.handleStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_applications",
		Description: "List running applications with pid, name, bundle identifier, hidden/active state and window count.",
	}, s.handleListApplications)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_windows",
		Description: "List windows with title, frame, display and state. Pass pid to restrict to one application and visible_only to skip minimized windows and hidden applications.",
	}, s.handleListWindows)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "focused_window",
		Description: "Return the active application and its focused window.",
	}, s.handleFocusedWindow)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "move_window",
		Description: "Move a window so its top-left corner is at (x, y) in global screen coordinates. Omit pid for the active application and window_id for its key window.",
	}, s.handleMoveWindow)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "resize_window",
		Description: "Resize a window. Omit pid for the active application and window_id for its key window.",
	}, s.handleResizeWindow)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_window_frame",
		Description: "Move and resize a window in one step. Omit pid for the active application and window_id for its key window.",
	}, s.handleSetWindowFrame)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "minimize_window",
		Description: "Minimize a window to the dock or taskbar.",
	}, s.handleMinimizeWindow)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "unminimize_window",
		Description: "Restore a minimized window.",
	}, s.handleUnminimizeWindow)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "focus_window",
		Description: "Raise a window and give it keyboard focus, activating its application.",
	}, s.handleFocusWindow)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "hide_application",
		Description: "Hide every window of an application.",
	}, s.handleHideApplication)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "unhide_application",
		Description: "Show a hidden application again.",
	}, s.handleUnhideApplication)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "recent_events",
		Description: "Return window events recorded by the daemon, oldest first. Pass the id of the last event seen as after to poll for newer ones.",
	}, s.handleRecentEvents)
}
