package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/1broseidon/axwatch/internal/history"
	"github.com/1broseidon/axwatch/internal/ipc"
	"github.com/1broseidon/axwatch/internal/mcp"
	"github.com/1broseidon/axwatch/internal/platform"
)

// daemonClient returns a client for a running daemon.
func daemonClient() (*ipc.Client, error) {
	client := ipc.NewClient()
	if err := client.Ping(); err != nil {
		return nil, fmt.Errorf("daemon not running (start it with 'axwatch daemon'): %w", err)
	}
	return client, nil
}

// openController returns the daemon client when the daemon answers, and an
// in-process service over the platform backend otherwise. live reports
// which one it is.
func openController(configPath string) (ctl mcp.Controller, live bool, closeFn func(), err error) {
	client := ipc.NewClient()
	if client.Ping() == nil {
		return client, true, func() {}, nil
	}

	res, err := loadConfig(configPath)
	if err != nil {
		return nil, false, nil, err
	}
	if !platform.Trusted(res.Config.PromptForTrust) {
		return nil, false, nil, fmt.Errorf("grant accessibility access in System Settings > Privacy & Security: %w", platform.ErrNotTrusted)
	}
	backend, err := platform.New()
	if err != nil {
		return nil, false, nil, err
	}
	svc := ipc.NewService(ipc.ServiceConfig{Backend: backend})
	return svc, false, backend.Disconnect, nil
}

func printJSON(v any) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func parseCommand(fs *flag.FlagSet, args []string) (ok bool, code int) {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return false, 0
		}
		return false, 2
	}
	return true, 0
}

func newFlagSet(name, usage, description string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: axwatch "+usage)
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, description)
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
	}
	return fs
}

// targetFlags registers --pid and --window on fs.
type targetFlags struct {
	pid    *int
	window *uint64
}

func addTargetFlags(fs *flag.FlagSet) targetFlags {
	return targetFlags{
		pid:    fs.Int("pid", 0, "Application pid (default: the active application)"),
		window: fs.Uint64("window", 0, "Window id within --pid (default: the application's focused window)"),
	}
}

func (f targetFlags) target() (ipc.WindowTarget, error) {
	if *f.pid < 0 {
		return ipc.WindowTarget{}, fmt.Errorf("--pid must be >= 0")
	}
	if *f.window != 0 && *f.pid == 0 {
		return ipc.WindowTarget{}, fmt.Errorf("--window requires --pid")
	}
	return ipc.WindowTarget{PID: platform.PID(*f.pid), WindowID: platform.ElementID(*f.window)}, nil
}

func parseInts(args []string, names ...string) ([]int, error) {
	if len(args) != len(names) {
		return nil, fmt.Errorf("expected %s", strings.Join(names, " "))
	}
	out := make([]int, len(args))
	for i, arg := range args {
		v, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q", names[i], arg)
		}
		out[i] = v
	}
	return out, nil
}

func printWindow(w ipc.WindowData) {
	flags := []string{}
	if w.Focused {
		flags = append(flags, "focused")
	}
	if w.Main {
		flags = append(flags, "main")
	}
	if w.Minimized {
		flags = append(flags, "minimized")
	}
	fmt.Printf("%-7d %-10d %-22s %-20s %-16s %s\n",
		w.PID, w.WindowID, w.Frame, truncate(w.App, 20), strings.Join(flags, ","), w.Title)
}

func printApp(a ipc.AppData) {
	flags := []string{}
	if a.Active {
		flags = append(flags, "active")
	}
	if a.Hidden {
		flags = append(flags, "hidden")
	}
	if a.Watched {
		flags = append(flags, "watched")
	}
	fmt.Printf("%-7d %-7d %-24s %-20s %s\n", a.PID, a.Windows, truncate(a.Name, 24), strings.Join(flags, ","), a.BundleID)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func runApps(args []string) int {
	fs := newFlagSet("apps", "apps [--json]", "List running applications.")
	jsonOut := fs.Bool("json", false, "Output JSON")
	if ok, code := parseCommand(fs, args); !ok {
		return code
	}

	ctl, _, closeFn, err := openController("")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closeFn()

	apps, err := ctl.ListApps()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *jsonOut {
		return printJSON(apps)
	}
	fmt.Printf("%-7s %-7s %-24s %-20s %s\n", "PID", "WINDOWS", "NAME", "STATE", "BUNDLE")
	for _, app := range apps {
		printApp(app)
	}
	return 0
}

func runWindows(args []string) int {
	fs := newFlagSet("windows", "windows [--pid PID] [--visible] [--json]", "List windows of one or every application.")
	pid := fs.Int("pid", 0, "Only list windows of this application")
	visible := fs.Bool("visible", false, "Skip minimized windows")
	jsonOut := fs.Bool("json", false, "Output JSON")
	if ok, code := parseCommand(fs, args); !ok {
		return code
	}
	if *pid < 0 {
		fmt.Fprintln(os.Stderr, "--pid must be >= 0")
		return 2
	}

	ctl, _, closeFn, err := openController("")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closeFn()

	windows, err := ctl.ListWindows(ipc.ListWindowsPayload{PID: platform.PID(*pid), VisibleOnly: *visible})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *jsonOut {
		if windows == nil {
			windows = []ipc.WindowData{}
		}
		return printJSON(windows)
	}
	fmt.Printf("%-7s %-10s %-22s %-20s %-16s %s\n", "PID", "WINDOW", "FRAME", "APP", "STATE", "TITLE")
	for _, w := range windows {
		printWindow(w)
	}
	return 0
}

func runFocused(args []string) int {
	fs := newFlagSet("focused", "focused [--json]", "Show the active application and its focused window.")
	jsonOut := fs.Bool("json", false, "Output JSON")
	if ok, code := parseCommand(fs, args); !ok {
		return code
	}

	ctl, _, closeFn, err := openController("")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closeFn()

	focused, err := ctl.Focused()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *jsonOut {
		return printJSON(focused)
	}
	fmt.Printf("application: %s (pid %d)\n", focused.App.Name, focused.App.PID)
	if focused.Window == nil {
		fmt.Println("window:      (none)")
		return 0
	}
	fmt.Printf("window:      %d %q\n", focused.Window.WindowID, focused.Window.Title)
	fmt.Printf("frame:       %s\n", focused.Window.Frame)
	return 0
}

// runGeometry parses a window target plus len(names) integers and applies
// action.
func runGeometry(name, usage, description string, names []string, args []string, action func(mcp.Controller, ipc.WindowTarget, []int) (*ipc.WindowData, error)) int {
	fs := newFlagSet(name, usage, description)
	tf := addTargetFlags(fs)
	if ok, code := parseCommand(fs, args); !ok {
		return code
	}
	target, err := tf.target()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	values, err := parseInts(fs.Args(), names...)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fs.Usage()
		return 2
	}

	ctl, _, closeFn, err := openController("")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closeFn()

	w, err := action(ctl, target, values)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	printWindow(*w)
	return 0
}

func runMove(args []string) int {
	return runGeometry("move", "move [--pid PID] [--window ID] X Y", "Move a window's top-left corner to X,Y.",
		[]string{"X", "Y"}, args,
		func(ctl mcp.Controller, t ipc.WindowTarget, v []int) (*ipc.WindowData, error) {
			return ctl.MoveWindow(ipc.MoveWindowPayload{WindowTarget: t, X: v[0], Y: v[1]})
		})
}

func runResize(args []string) int {
	return runGeometry("resize", "resize [--pid PID] [--window ID] WIDTH HEIGHT", "Resize a window.",
		[]string{"WIDTH", "HEIGHT"}, args,
		func(ctl mcp.Controller, t ipc.WindowTarget, v []int) (*ipc.WindowData, error) {
			return ctl.ResizeWindow(ipc.ResizeWindowPayload{WindowTarget: t, Width: v[0], Height: v[1]})
		})
}

func runFrame(args []string) int {
	return runGeometry("frame", "frame [--pid PID] [--window ID] X Y WIDTH HEIGHT", "Move and resize a window in one step.",
		[]string{"X", "Y", "WIDTH", "HEIGHT"}, args,
		func(ctl mcp.Controller, t ipc.WindowTarget, v []int) (*ipc.WindowData, error) {
			return ctl.SetFrame(ipc.SetFramePayload{
				WindowTarget: t,
				Frame:        platform.Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]},
			})
		})
}

func runWindowAction(name string, args []string) int {
	descriptions := map[string]string{
		"minimize":   "Minimize a window.",
		"unminimize": "Restore a minimized window.",
		"focus":      "Activate a window's application and raise the window.",
	}
	return runGeometry(name, name+" [--pid PID] [--window ID]", descriptions[name], nil, args,
		func(ctl mcp.Controller, t ipc.WindowTarget, _ []int) (*ipc.WindowData, error) {
			switch name {
			case "minimize":
				return ctl.MinimizeWindow(t)
			case "unminimize":
				return ctl.UnminimizeWindow(t)
			default:
				return ctl.FocusWindow(t)
			}
		})
}

func runAppAction(name string, args []string) int {
	fs := newFlagSet(name, name+" PID", map[string]string{
		"hide":   "Hide an application's windows.",
		"unhide": "Show a hidden application.",
	}[name])
	if ok, code := parseCommand(fs, args); !ok {
		return code
	}
	values, err := parseInts(fs.Args(), "PID")
	if err != nil || values[0] <= 0 {
		fmt.Fprintln(os.Stderr, "expected a positive PID")
		fs.Usage()
		return 2
	}

	ctl, _, closeFn, err := openController("")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closeFn()

	var app *ipc.AppData
	if name == "hide" {
		app, err = ctl.HideApp(platform.PID(values[0]))
	} else {
		app, err = ctl.UnhideApp(platform.PID(values[0]))
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	printApp(*app)
	return 0
}

var (
	eventTimeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	eventNameStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Bold(true)
	eventFrameStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

func formatEventLine(rec history.Record) string {
	var b strings.Builder
	b.WriteString(eventTimeStyle.Render(rec.Time.Format("15:04:05.000")))
	b.WriteString(" ")
	b.WriteString(eventNameStyle.Render(fmt.Sprintf("%-28s", rec.Notification)))
	fmt.Fprintf(&b, " pid=%d", rec.PID)
	if rec.App != "" {
		fmt.Fprintf(&b, " app=%q", rec.App)
	}
	if rec.WindowID != 0 {
		fmt.Fprintf(&b, " window=%d", rec.WindowID)
	}
	if rec.Title != "" {
		fmt.Fprintf(&b, " title=%q", rec.Title)
	}
	if rec.Frame != nil {
		b.WriteString(" ")
		b.WriteString(eventFrameStyle.Render(rec.Frame.String()))
	}
	return b.String()
}

func runEvents(args []string) int {
	fs := newFlagSet("events", "events [--follow] [--limit N] [--json]",
		"Show window events recorded by the daemon. Output is JSON lines when stdout is not a terminal.")
	follow := fs.Bool("follow", false, "Keep printing new events")
	limit := fs.Int("limit", 50, "Number of recent events to show first (0 = all kept)")
	interval := fs.Duration("interval", 500*time.Millisecond, "Poll interval for --follow")
	jsonOut := fs.Bool("json", false, "Force JSON lines output")
	if ok, code := parseCommand(fs, args); !ok {
		return code
	}
	if *limit < 0 || *interval <= 0 {
		fmt.Fprintln(os.Stderr, "--limit must be >= 0 and --interval > 0")
		return 2
	}

	client, err := daemonClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	jsonLines := *jsonOut || !term.IsTerminal(int(os.Stdout.Fd()))
	enc := json.NewEncoder(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		after     string
		afterTime time.Time
	)
	n := *limit
	for {
		data, err := client.RecentEvents(ipc.RecentEventsPayload{After: after, Limit: n})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		for _, rec := range data.Events {
			// A restarted daemon may no longer hold after and resend older records.
			if after != "" && !rec.Time.After(afterTime) {
				continue
			}
			if jsonLines {
				if err := enc.Encode(rec); err != nil {
					return 1
				}
			} else {
				fmt.Println(formatEventLine(rec))
			}
			after, afterTime = rec.ID, rec.Time
		}
		if !*follow {
			return 0
		}
		n = 0

		select {
		case <-ctx.Done():
			return 0
		case <-time.After(*interval):
		}
	}
}
