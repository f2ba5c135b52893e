package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/1broseidon/axwatch/internal/platform"
	"github.com/1broseidon/axwatch/internal/runtimepath"
)

// Client handles IPC communication with the daemon
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new IPC client
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		// Keep constructor non-failing; sendRequest surfaces connection errors.
		socketPath = ""
	}
	return NewClientAt(socketPath)
}

// NewClientAt creates a client for the daemon listening on socketPath
func NewClientAt(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

// sendRequest sends a request and waits for a response
func (c *Client) sendRequest(req *Request) (*Response, error) {
	// Connect to socket
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	defer conn.Close()

	// Set deadline
	conn.SetDeadline(time.Now().Add(c.timeout))

	// Marshal request
	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Send request
	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	// Read response
	reader := bufio.NewReader(conn)
	respData, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// Parse response
	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// Check for error response
	if resp.Status == "ERROR" {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}

	return &resp, nil
}

// call sends command with payload and decodes the response data into out.
func (c *Client) call(command CommandType, payload any, out any) error {
	req := &Request{Command: command}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", command, err)
		}
		req.Payload = data
	}

	resp, err := c.sendRequest(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to parse %s data: %w", command, err)
	}
	return nil
}

// Reload sends a RELOAD command to the daemon
func (c *Client) Reload() error {
	return c.call(CommandReload, nil, nil)
}

// Status retrieves daemon status
func (c *Client) Status() (*StatusData, error) {
	var status StatusData
	if err := c.call(CommandGetStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ListApps retrieves running applications
func (c *Client) ListApps() ([]AppData, error) {
	var apps []AppData
	if err := c.call(CommandListApps, nil, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

// ListWindows retrieves windows, optionally restricted to one application
func (c *Client) ListWindows(p ListWindowsPayload) ([]WindowData, error) {
	var windows []WindowData
	if err := c.call(CommandListWindows, p, &windows); err != nil {
		return nil, err
	}
	return windows, nil
}

// Focused retrieves the focused application and window
func (c *Client) Focused() (*FocusedData, error) {
	var data FocusedData
	if err := c.call(CommandFocused, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// MoveWindow moves a window
func (c *Client) MoveWindow(p MoveWindowPayload) (*WindowData, error) {
	return c.windowCall(CommandMoveWindow, p)
}

// ResizeWindow resizes a window
func (c *Client) ResizeWindow(p ResizeWindowPayload) (*WindowData, error) {
	return c.windowCall(CommandResizeWindow, p)
}

// SetFrame moves and resizes a window
func (c *Client) SetFrame(p SetFramePayload) (*WindowData, error) {
	return c.windowCall(CommandSetFrame, p)
}

// MinimizeWindow minimizes a window
func (c *Client) MinimizeWindow(t WindowTarget) (*WindowData, error) {
	return c.windowCall(CommandMinimizeWindow, t)
}

// UnminimizeWindow restores a window
func (c *Client) UnminimizeWindow(t WindowTarget) (*WindowData, error) {
	return c.windowCall(CommandUnminimizeWindow, t)
}

// FocusWindow focuses a window
func (c *Client) FocusWindow(t WindowTarget) (*WindowData, error) {
	return c.windowCall(CommandFocusWindow, t)
}

// HideApp hides an application
func (c *Client) HideApp(pid platform.PID) (*AppData, error) {
	return c.appCall(CommandHideApp, pid)
}

// UnhideApp shows an application
func (c *Client) UnhideApp(pid platform.PID) (*AppData, error) {
	return c.appCall(CommandUnhideApp, pid)
}

// RecentEvents retrieves events dispatched after p.After
func (c *Client) RecentEvents(p RecentEventsPayload) (*EventsData, error) {
	var data EventsData
	if err := c.call(CommandRecentEvents, p, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Ping checks if the daemon is responding
func (c *Client) Ping() error {
	_, err := c.Status()
	return err
}

func (c *Client) windowCall(command CommandType, payload any) (*WindowData, error) {
	var data WindowData
	if err := c.call(command, payload, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (c *Client) appCall(command CommandType, pid platform.PID) (*AppData, error) {
	var data AppData
	if err := c.call(command, AppPayload{PID: pid}, &data); err != nil {
		return nil, err
	}
	return &data, nil
}
