package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/1broseidon/axwatch/internal/ax"
	"github.com/1broseidon/axwatch/internal/platform"
)

// stringList is a repeatable string flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}

func runObserve(args []string) int {
	fs := newFlagSet("observe", "observe (--app NAME | --pid PID) [--notification NAME]...",
		"Observe notifications on a single application directly, without the daemon.\n"+
			"Prints one line per notification until interrupted.")
	name := fs.String("app", "", "Application name or bundle id")
	pid := fs.Int("pid", 0, "Application pid")
	var names stringList
	fs.Var(&names, "notification", "Notification to observe (repeatable, default: window_moved)")
	if ok, code := parseCommand(fs, args); !ok {
		return code
	}
	if (*name == "") == (*pid <= 0) {
		fmt.Fprintln(os.Stderr, "exactly one of --app or --pid is required")
		fs.Usage()
		return 2
	}
	if len(names) == 0 {
		names = stringList{string(platform.NotificationWindowMoved)}
	}
	notifications := make([]platform.Notification, 0, len(names))
	for _, n := range names {
		parsed, err := platform.ParseNotification(n)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		notifications = append(notifications, parsed)
	}

	if !platform.Trusted(true) {
		fmt.Fprintln(os.Stderr, "needs accessibility permission (see 'axwatch trust')")
		return 1
	}
	backend, err := platform.New()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer backend.Disconnect()

	app, err := findApplication(backend, *name, platform.PID(*pid))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "registered for %s\n", app)
	if err := observeApplication(ctx, backend, app, notifications, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// findApplication resolves pid, or the most recently listed application
// whose name or bundle id matches name.
func findApplication(b platform.Backend, name string, pid platform.PID) (*ax.Application, error) {
	if pid > 0 {
		return ax.NewApplication(b, pid)
	}
	apps, err := ax.RunningApplications(b)
	if err != nil {
		return nil, err
	}
	var found *ax.Application
	for _, app := range apps {
		if strings.EqualFold(app.Title(), name) || strings.EqualFold(app.BundleID(), name) {
			found = app
		}
	}
	if found == nil {
		return nil, fmt.Errorf("application %q: %w", name, platform.ErrNotFound)
	}
	return found, nil
}

// observeApplication registers a printing handler for every notification on
// app and dispatches backend events to it until ctx is cancelled.
func observeApplication(ctx context.Context, b platform.Backend, app *ax.Application, notifications []platform.Notification, out io.Writer) error {
	defer app.UnobserveAll()
	for _, n := range notifications {
		ok := app.ObserveNotificationFunc(n, &app.Element, func(element *ax.Element) {
			fmt.Fprintf(out, "%s received %s\n", element, n)
		})
		if !ok {
			return fmt.Errorf("failed to observe %s on %s", n, app)
		}
	}

	runErr := make(chan error, 1)
	go func() {
		runErr <- b.Run(ctx)
	}()

	events := b.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-runErr:
			if ctx.Err() != nil {
				return nil
			}
			if err == nil {
				err = errors.New("event loop exited")
			}
			return fmt.Errorf("backend: %w", err)
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			app.Dispatch(ev)
		}
	}
}
