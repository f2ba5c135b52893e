package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/axwatch/internal/ipc"
	"github.com/1broseidon/axwatch/internal/platform"
)

// appItem implements list.Item for the application list.
type appItem struct {
	data ipc.AppData
}

func (i appItem) Title() string {
	prefix := "  "
	if i.data.Active {
		prefix = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("● ")
	}
	return prefix + displayOrDefault(i.data.Name, fmt.Sprintf("pid %d", i.data.PID))
}

func (i appItem) Description() string {
	parts := []string{fmt.Sprintf("pid %d", i.data.PID), fmt.Sprintf("%d windows", i.data.Windows)}
	if i.data.BundleID != "" {
		parts = append(parts, i.data.BundleID)
	}
	if i.data.Hidden {
		parts = append(parts, "hidden")
	}
	if i.data.Watched {
		parts = append(parts, "watched")
	}
	return strings.Join(parts, " | ")
}

func (i appItem) FilterValue() string { return i.data.Name }

// AppsTab lists running applications and hides or shows the selected one.
type AppsTab struct {
	list list.Model
	ctl  Controller

	statusText string

	width  int
	height int
	ready  bool
}

// NewAppsTab creates a new AppsTab sub-model.
func NewAppsTab(ctl Controller) AppsTab {
	delegate := list.NewDefaultDelegate()
	l := list.New(nil, delegate, 0, 0)
	l.Title = "Applications"
	l.Styles.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("62")).
		Padding(0, 1)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	at := AppsTab{list: l, ctl: ctl}
	at.refresh()
	return at
}

// Update handles messages for the applications tab.
func (at AppsTab) Update(msg tea.Msg) (AppsTab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		at.width = msg.Width
		at.height = msg.Height
		listHeight := at.height - 2
		if listHeight < 1 {
			listHeight = 1
		}
		at.list.SetSize(at.width, listHeight)
		at.ready = true
		return at, nil

	case statusMsg:
		at.statusText = msg.text
		return at, clearStatusAfter()

	case clearStatusMsg:
		at.statusText = ""
		return at, nil

	case refreshMsg:
		at.refresh()
		return at, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "h":
			return at.act("hidden", at.ctl.HideApp)
		case "s":
			return at.act("shown", at.ctl.UnhideApp)
		case "r":
			at.refresh()
			return at, nil
		}
	}

	var cmd tea.Cmd
	at.list, cmd = at.list.Update(msg)
	return at, cmd
}

func (at AppsTab) act(verb string, action func(platform.PID) (*ipc.AppData, error)) (AppsTab, tea.Cmd) {
	item, ok := at.list.SelectedItem().(appItem)
	if !ok {
		return at, nil
	}
	if _, err := action(item.data.PID); err != nil {
		at.statusText = fmt.Sprintf("error: %v", err)
	} else {
		at.statusText = fmt.Sprintf("%s: %s", verb, item.data.Name)
	}
	at.refresh()
	return at, clearStatusAfter()
}

func (at *AppsTab) refresh() {
	apps, err := at.ctl.ListApps()
	if err != nil {
		at.statusText = fmt.Sprintf("error: %v", err)
		return
	}
	items := make([]list.Item, 0, len(apps))
	for _, app := range apps {
		items = append(items, appItem{data: app})
	}
	at.list.SetItems(items)
}

// View implements tea.Model.
func (at AppsTab) View() string {
	if !at.ready || at.width == 0 || at.height == 0 {
		return ""
	}
	listView := lipgloss.NewStyle().
		Width(at.width).
		Height(at.height - 2).
		Render(at.list.View())
	status := renderTabStatus(at.statusText, "h:hide  s:show  r:refresh", at.width)
	return lipgloss.JoinVertical(lipgloss.Left, listView, status)
}
