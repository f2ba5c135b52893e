package mcp

import (
	"context"
	"fmt"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/axwatch/internal/ipc"
	"github.com/1broseidon/axwatch/internal/platform"
)

func (s *Server) handleStatus(_ context.Context, _ *mcpsdk.CallToolRequest, _ StatusInput) (*mcpsdk.CallToolResult, StatusOutput, error) {
	status, err := s.ctl.Status()
	if err != nil {
		return nil, StatusOutput{}, err
	}
	out := StatusOutput{
		Backend:       status.Backend,
		UptimeSeconds: status.UptimeSeconds,
		Applications:  status.Applications,
		Events:        status.Events,
		Callbacks:     status.Callbacks,
		Throttled:     status.Throttled,
		Dropped:       status.Dropped,
		HistorySize:   status.HistorySize,
		Notifications: make([]string, 0, len(status.Notifications)),
	}
	for _, n := range status.Notifications {
		out.Notifications = append(out.Notifications, string(n))
	}
	return nil, out, nil
}

func (s *Server) handleListApplications(_ context.Context, _ *mcpsdk.CallToolRequest, _ ListApplicationsInput) (*mcpsdk.CallToolResult, ListApplicationsOutput, error) {
	apps, err := s.ctl.ListApps()
	if err != nil {
		return nil, ListApplicationsOutput{}, err
	}
	if apps == nil {
		apps = []ipc.AppData{}
	}
	return nil, ListApplicationsOutput{Applications: apps}, nil
}

func (s *Server) handleListWindows(_ context.Context, _ *mcpsdk.CallToolRequest, args ListWindowsInput) (*mcpsdk.CallToolResult, ListWindowsOutput, error) {
	if args.PID < 0 {
		return nil, ListWindowsOutput{}, fmt.Errorf("pid must be >= 0")
	}
	windows, err := s.ctl.ListWindows(ipc.ListWindowsPayload{
		PID:         platform.PID(args.PID),
		VisibleOnly: args.VisibleOnly,
	})
	if err != nil {
		return nil, ListWindowsOutput{}, err
	}
	if windows == nil {
		windows = []ipc.WindowData{}
	}
	return nil, ListWindowsOutput{Windows: windows}, nil
}

func (s *Server) handleFocusedWindow(_ context.Context, _ *mcpsdk.CallToolRequest, _ FocusedWindowInput) (*mcpsdk.CallToolResult, FocusedWindowOutput, error) {
	focused, err := s.ctl.Focused()
	if err != nil {
		return nil, FocusedWindowOutput{}, err
	}
	return nil, FocusedWindowOutput{Application: focused.App, Window: focused.Window}, nil
}

func (s *Server) handleMoveWindow(_ context.Context, _ *mcpsdk.CallToolRequest, args MoveWindowInput) (*mcpsdk.CallToolResult, WindowOutput, error) {
	target, err := windowTarget(args.PID, args.WindowID)
	if err != nil {
		return nil, WindowOutput{}, err
	}
	return windowResult(s.ctl.MoveWindow(ipc.MoveWindowPayload{WindowTarget: target, X: args.X, Y: args.Y}))
}

func (s *Server) handleResizeWindow(_ context.Context, _ *mcpsdk.CallToolRequest, args ResizeWindowInput) (*mcpsdk.CallToolResult, WindowOutput, error) {
	target, err := windowTarget(args.PID, args.WindowID)
	if err != nil {
		return nil, WindowOutput{}, err
	}
	if args.Width <= 0 || args.Height <= 0 {
		return nil, WindowOutput{}, fmt.Errorf("width and height must be > 0")
	}
	return windowResult(s.ctl.ResizeWindow(ipc.ResizeWindowPayload{WindowTarget: target, Width: args.Width, Height: args.Height}))
}

func (s *Server) handleSetWindowFrame(_ context.Context, _ *mcpsdk.CallToolRequest, args SetWindowFrameInput) (*mcpsdk.CallToolResult, WindowOutput, error) {
	target, err := windowTarget(args.PID, args.WindowID)
	if err != nil {
		return nil, WindowOutput{}, err
	}
	if args.Width <= 0 || args.Height <= 0 {
		return nil, WindowOutput{}, fmt.Errorf("width and height must be > 0")
	}
	return windowResult(s.ctl.SetFrame(ipc.SetFramePayload{
		WindowTarget: target,
		Frame:        platform.Rect{X: args.X, Y: args.Y, Width: args.Width, Height: args.Height},
	}))
}

func (s *Server) handleMinimizeWindow(_ context.Context, _ *mcpsdk.CallToolRequest, args WindowInput) (*mcpsdk.CallToolResult, WindowOutput, error) {
	target, err := windowTarget(args.PID, args.WindowID)
	if err != nil {
		return nil, WindowOutput{}, err
	}
	return windowResult(s.ctl.MinimizeWindow(target))
}

func (s *Server) handleUnminimizeWindow(_ context.Context, _ *mcpsdk.CallToolRequest, args WindowInput) (*mcpsdk.CallToolResult, WindowOutput, error) {
	target, err := windowTarget(args.PID, args.WindowID)
	if err != nil {
		return nil, WindowOutput{}, err
	}
	return windowResult(s.ctl.UnminimizeWindow(target))
}

func (s *Server) handleFocusWindow(_ context.Context, _ *mcpsdk.CallToolRequest, args WindowInput) (*mcpsdk.CallToolResult, WindowOutput, error) {
	target, err := windowTarget(args.PID, args.WindowID)
	if err != nil {
		return nil, WindowOutput{}, err
	}
	return windowResult(s.ctl.FocusWindow(target))
}

func (s *Server) handleHideApplication(_ context.Context, _ *mcpsdk.CallToolRequest, args ApplicationInput) (*mcpsdk.CallToolResult, ApplicationOutput, error) {
	if args.PID <= 0 {
		return nil, ApplicationOutput{}, fmt.Errorf("pid must be > 0")
	}
	return appResult(s.ctl.HideApp(platform.PID(args.PID)))
}

func (s *Server) handleUnhideApplication(_ context.Context, _ *mcpsdk.CallToolRequest, args ApplicationInput) (*mcpsdk.CallToolResult, ApplicationOutput, error) {
	if args.PID <= 0 {
		return nil, ApplicationOutput{}, fmt.Errorf("pid must be > 0")
	}
	return appResult(s.ctl.UnhideApp(platform.PID(args.PID)))
}

func (s *Server) handleRecentEvents(_ context.Context, _ *mcpsdk.CallToolRequest, args RecentEventsInput) (*mcpsdk.CallToolResult, RecentEventsOutput, error) {
	if args.Limit < 0 {
		return nil, RecentEventsOutput{}, fmt.Errorf("limit must be >= 0")
	}
	data, err := s.ctl.RecentEvents(ipc.RecentEventsPayload{After: args.After, Limit: args.Limit})
	if err != nil {
		return nil, RecentEventsOutput{}, err
	}

	events := make([]EventInfo, 0, len(data.Events))
	for _, rec := range data.Events {
		info := EventInfo{
			ID:           rec.ID,
			Time:         rec.Time.Format(time.RFC3339Nano),
			Notification: string(rec.Notification),
			PID:          int(rec.PID),
			WindowID:     uint64(rec.WindowID),
			App:          rec.App,
			Title:        rec.Title,
		}
		if rec.Frame != nil {
			info.Frame = rec.Frame.String()
		}
		events = append(events, info)
	}
	return nil, RecentEventsOutput{Events: events}, nil
}

func windowTarget(pid int, windowID uint64) (ipc.WindowTarget, error) {
	if pid < 0 {
		return ipc.WindowTarget{}, fmt.Errorf("pid must be >= 0")
	}
	if windowID != 0 && pid == 0 {
		return ipc.WindowTarget{}, fmt.Errorf("window_id requires pid")
	}
	return ipc.WindowTarget{PID: platform.PID(pid), WindowID: platform.ElementID(windowID)}, nil
}

func windowResult(data *ipc.WindowData, err error) (*mcpsdk.CallToolResult, WindowOutput, error) {
	if err != nil {
		return nil, WindowOutput{}, err
	}
	return nil, WindowOutput{Window: *data}, nil
}

func appResult(data *ipc.AppData, err error) (*mcpsdk.CallToolResult, ApplicationOutput, error) {
	if err != nil {
		return nil, ApplicationOutput{}, err
	}
	return nil, ApplicationOutput{Application: *data}, nil
}
