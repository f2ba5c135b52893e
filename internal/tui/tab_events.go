package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/axwatch/internal/history"
	"github.com/1broseidon/axwatch/internal/ipc"
)

const maxEventRows = 500

// EventsTab tails the daemon's event history.
type EventsTab struct {
	ctl    Controller
	events []history.Record
	lastID   string
	lastTime time.Time
	paused   bool

	statusText string

	width  int
	height int
}

// NewEventsTab creates a new EventsTab sub-model.
func NewEventsTab(ctl Controller) EventsTab {
	et := EventsTab{ctl: ctl}
	et.poll()
	return et
}

// Update handles messages for the events tab.
func (et EventsTab) Update(msg tea.Msg) (EventsTab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		et.width = msg.Width
		et.height = msg.Height

	case refreshMsg:
		if !et.paused {
			et.poll()
		}

	case clearStatusMsg:
		et.statusText = ""

	case tea.KeyMsg:
		switch msg.String() {
		case "p", " ":
			et.paused = !et.paused
			if et.paused {
				et.statusText = "paused"
			} else {
				et.statusText = "resumed"
				et.poll()
			}
			return et, clearStatusAfter()
		case "c":
			et.events = nil
			et.statusText = "cleared"
			return et, clearStatusAfter()
		}
	}
	return et, nil
}

// poll appends records newer than the last one seen. When the last ID is no
// longer in the history the daemon returns its newest records, so records
// not after the last timestamp are skipped.
func (et *EventsTab) poll() {
	data, err := et.ctl.RecentEvents(ipc.RecentEventsPayload{After: et.lastID, Limit: maxEventRows})
	if err != nil {
		et.statusText = fmt.Sprintf("error: %v", err)
		return
	}
	for _, rec := range data.Events {
		if et.lastID != "" && !rec.Time.After(et.lastTime) {
			continue
		}
		et.events = append(et.events, rec)
		et.lastID, et.lastTime = rec.ID, rec.Time
	}
	if len(et.events) > maxEventRows {
		et.events = et.events[len(et.events)-maxEventRows:]
	}
}

func formatEvent(rec history.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %-28s pid=%-6d", rec.Time.Format("15:04:05.000"), rec.Notification, rec.PID)
	if rec.App != "" {
		fmt.Fprintf(&b, " %s", rec.App)
	}
	if rec.WindowID != 0 {
		fmt.Fprintf(&b, " window=%d", rec.WindowID)
	}
	if rec.Title != "" {
		fmt.Fprintf(&b, " %q", rec.Title)
	}
	if rec.Frame != nil {
		fmt.Fprintf(&b, " %s", rec.Frame)
	}
	return b.String()
}

// View implements tea.Model.
func (et EventsTab) View() string {
	if et.width == 0 || et.height == 0 {
		return ""
	}

	rows := et.height - 2
	if rows < 1 {
		rows = 1
	}

	var body string
	if len(et.events) == 0 {
		body = lipgloss.NewStyle().
			Width(et.width).
			Height(rows).
			Foreground(lipgloss.Color("241")).
			Align(lipgloss.Center, lipgloss.Center).
			Render("No events recorded yet")
	} else {
		start := 0
		if len(et.events) > rows {
			start = len(et.events) - rows
		}
		lines := make([]string, 0, rows)
		for _, rec := range et.events[start:] {
			lines = append(lines, formatEvent(rec))
		}
		body = lipgloss.NewStyle().
			Width(et.width).
			Height(rows).
			MaxWidth(et.width).
			PaddingLeft(1).
			Render(strings.Join(lines, "\n"))
	}

	status := renderTabStatus(et.statusText, "p:pause  c:clear", et.width)
	return lipgloss.JoinVertical(lipgloss.Left, body, status)
}
