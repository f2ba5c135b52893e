package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/1broseidon/axwatch/internal/config"
	"github.com/1broseidon/axwatch/internal/daemon"
	"github.com/1broseidon/axwatch/internal/platform"
	"github.com/1broseidon/axwatch/internal/tui"
	"gopkg.in/yaml.v3"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "daemon":
		os.Exit(runDaemon(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "apps":
		os.Exit(runApps(os.Args[2:]))
	case "windows":
		os.Exit(runWindows(os.Args[2:]))
	case "focused":
		os.Exit(runFocused(os.Args[2:]))
	case "move":
		os.Exit(runMove(os.Args[2:]))
	case "resize":
		os.Exit(runResize(os.Args[2:]))
	case "frame":
		os.Exit(runFrame(os.Args[2:]))
	case "minimize", "unminimize", "focus":
		os.Exit(runWindowAction(os.Args[1], os.Args[2:]))
	case "hide", "unhide":
		os.Exit(runAppAction(os.Args[1], os.Args[2:]))
	case "events":
		os.Exit(runEvents(os.Args[2:]))
	case "observe":
		os.Exit(runObserve(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "tui":
		os.Exit(runTUI(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "trust":
		os.Exit(runTrust(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: axwatch <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon              Start the axwatch daemon (foreground)")
	fmt.Fprintln(w, "  status              Show daemon status")
	fmt.Fprintln(w, "  trust               Check (or request) accessibility permission")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  apps                List running applications")
	fmt.Fprintln(w, "  windows             List windows")
	fmt.Fprintln(w, "  focused             Show the focused application and window")
	fmt.Fprintln(w, "  events              Show recent window events")
	fmt.Fprintln(w, "  observe             Print notifications of one application (no daemon)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  move X Y            Move a window")
	fmt.Fprintln(w, "  resize W H          Resize a window")
	fmt.Fprintln(w, "  frame X Y W H       Set a window's frame")
	fmt.Fprintln(w, "  minimize            Minimize a window")
	fmt.Fprintln(w, "  unminimize          Restore a minimized window")
	fmt.Fprintln(w, "  focus               Raise and focus a window")
	fmt.Fprintln(w, "  hide PID            Hide an application")
	fmt.Fprintln(w, "  unhide PID          Show a hidden application")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "  config explain      Explain a config value")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  tui                 Open interactive TUI")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Window commands act on the focused window unless --pid/--window select one.")
	fmt.Fprintln(w, "They go through the daemon when it is running and talk to the desktop directly otherwise.")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'axwatch <command> --help' for command-specific options.")
}

func runDaemon(args []string) int {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: axwatch daemon [--path PATH]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Watch window events in the foreground. SIGHUP reloads the configuration.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
	}
	path := fs.String("path", "", "Config file path (default: ~/.config/axwatch/config.yaml)")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "daemon takes no arguments")
		fs.Usage()
		return 2
	}

	d, err := daemon.New(daemon.Options{ConfigPath: *path})
	if err != nil {
		log.Fatalf("Failed to start daemon: %v", err)
	}
	cfg := d.Config()
	log.Printf("Configuration loaded (notifications: %d, rescan: %s)", len(cfg.Notifications), cfg.RescanInterval)
	if socket := d.SocketPath(); socket != "" {
		log.Printf("IPC socket: %s", socket)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigCh:
				switch sig {
				case syscall.SIGHUP:
					log.Println("Received SIGHUP, reloading config...")
					if err := d.Reload(); err != nil {
						log.Printf("Config reload failed: %v", err)
						continue
					}
					log.Println("Config reloaded successfully")
				default:
					log.Println("Shutting down axwatch daemon...")
					cancel()
					return
				}
			}
		}
	}()

	log.Println("axwatch daemon started")
	if err := d.Run(ctx); err != nil {
		log.Printf("Daemon stopped: %v", err)
		return 1
	}
	return 0
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: axwatch status [--json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show daemon status via IPC.")
	}
	jsonOut := fs.Bool("json", false, "Output JSON")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "status takes no arguments")
		fs.Usage()
		return 2
	}

	client, err := daemonClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	status, err := client.Status()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *jsonOut {
		return printJSON(status)
	}
	fmt.Printf("daemon_running: %v\n", status.DaemonRunning)
	fmt.Printf("backend:        %s\n", status.Backend)
	fmt.Printf("uptime_seconds: %d\n", status.UptimeSeconds)
	fmt.Printf("applications:   %d\n", status.Applications)
	fmt.Printf("events:         %d\n", status.Events)
	fmt.Printf("callbacks:      %d\n", status.Callbacks)
	fmt.Printf("throttled:      %d\n", status.Throttled)
	fmt.Printf("dropped:        %d\n", status.Dropped)
	fmt.Printf("history_size:   %d\n", status.HistorySize)
	for _, n := range status.Notifications {
		fmt.Printf("- %s\n", n)
	}
	return 0
}

func runTrust(args []string) int {
	fs := flag.NewFlagSet("trust", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: axwatch trust [--prompt]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Report whether axwatch may use the accessibility API. Exits 1 when it may not.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
	}
	prompt := fs.Bool("prompt", false, "Ask the system to show the permission prompt")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	if platform.Trusted(*prompt) {
		fmt.Println("trusted: true")
		return 0
	}
	fmt.Println("trusted: false")
	fmt.Fprintln(os.Stderr, "Grant access in System Settings > Privacy & Security > Accessibility.")
	return 1
}

func runConfig(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  axwatch config validate [--path PATH]")
		fmt.Fprintln(os.Stderr, "  axwatch config print [--path PATH] [--effective|--defaults]")
		fmt.Fprintln(os.Stderr, "  axwatch config explain [--path PATH] <yaml.path>")
		return 2
	}

	switch args[0] {
	case "validate":
		fs := flag.NewFlagSet("validate", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/axwatch/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		if _, err := loadConfig(*path); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println("config: ok")
		return 0

	case "print":
		fs := flag.NewFlagSet("print", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/axwatch/config.yaml)")
		printDefaults := fs.Bool("defaults", false, "Print built-in defaults (no files)")
		printEffective := fs.Bool("effective", false, "Print effective config (default)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		cfg := config.DefaultConfig()
		if !*printDefaults {
			_ = printEffective // default
			res, err := loadConfig(*path)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			for _, file := range res.Files {
				fmt.Printf("# file: %s\n", file)
			}
			cfg = res.Config
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Print(string(data))
		return 0

	case "explain":
		fs := flag.NewFlagSet("explain", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/axwatch/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "explain requires <yaml.path>")
			return 2
		}
		queryPath := fs.Arg(0)

		res, err := loadConfig(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}

		value, src, err := config.Explain(res, queryPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}

		out, err := yaml.Marshal(value)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}

		fmt.Printf("path: %s\n", queryPath)
		fmt.Printf("source: %s\n", formatSource(src))
		fmt.Printf("value:\n%s", string(out))
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args[0])
		return 2
	}
}

func loadConfig(path string) (*config.LoadResult, error) {
	if path == "" {
		return config.LoadWithSources()
	}
	return config.LoadFromPath(path)
}

func formatSource(src config.Source) string {
	switch src.Kind {
	case config.SourceFile:
		if src.File == "" {
			return "file"
		}
		if src.Line > 0 {
			return fmt.Sprintf("file:%s:%d:%d", src.File, src.Line, src.Column)
		}
		return "file:" + src.File
	case config.SourceDefault:
		if src.Name != "" {
			return "default:" + src.Name
		}
		return "default"
	default:
		return string(src.Kind)
	}
}

func runTUI(args []string) int {
	fs := flag.NewFlagSet("tui", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/axwatch/config.yaml)")

	if len(args) > 0 && (args[0] == "help" || args[0] == "-h" || args[0] == "--help") {
		fmt.Fprintln(os.Stderr, "Usage: axwatch tui [--path PATH]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Interactive TUI for browsing and controlling windows.")
		fmt.Fprintln(os.Stderr, "Works without the daemon, but the Events tab then stays empty.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Keybindings:")
		fmt.Fprintln(os.Stderr, "  tab, 1-4   Switch tabs")
		fmt.Fprintln(os.Stderr, "  j/k, ↑/↓   Navigate")
		fmt.Fprintln(os.Stderr, "  Enter, f   Focus selected window")
		fmt.Fprintln(os.Stderr, "  m / u      Minimize / restore selected window")
		fmt.Fprintln(os.Stderr, "  h / s      Hide / show selected application")
		fmt.Fprintln(os.Stderr, "  p / c      Pause / clear the event log")
		fmt.Fprintln(os.Stderr, "  e          Edit settings (saved and reloaded into the daemon)")
		fmt.Fprintln(os.Stderr, "  ctrl+r     Refresh")
		fmt.Fprintln(os.Stderr, "  q, Ctrl+C  Quit")
		return 0
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctl, live, closeFn, err := openController(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closeFn()

	if err := tui.Run(ctl, *path, live); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
