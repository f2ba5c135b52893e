package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/axwatch/internal/ipc"
)

// windowItem implements list.Item for the window list.
type windowItem struct {
	data ipc.WindowData
}

func (i windowItem) Title() string {
	prefix := "  "
	if i.data.Focused {
		prefix = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("● ")
	}
	return prefix + displayOrDefault(i.data.Title, "(untitled)")
}

func (i windowItem) Description() string {
	parts := []string{i.data.App, i.data.Frame.String()}
	if i.data.Minimized {
		parts = append(parts, "minimized")
	}
	if i.data.Display != "" {
		parts = append(parts, i.data.Display)
	}
	return strings.Join(parts, " | ")
}

func (i windowItem) FilterValue() string { return i.data.App + " " + i.data.Title }

// WindowsTab lists windows of every application and acts on the selected one.
type WindowsTab struct {
	list list.Model
	ctl  Controller

	statusText string

	width  int
	height int
	ready  bool
}

// NewWindowsTab creates a new WindowsTab sub-model.
func NewWindowsTab(ctl Controller) WindowsTab {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.Color("15")).
		BorderForeground(lipgloss.Color("62"))
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(lipgloss.Color("250")).
		BorderForeground(lipgloss.Color("62"))

	l := list.New(nil, delegate, 0, 0)
	l.Title = "Windows"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	wt := WindowsTab{list: l, ctl: ctl}
	wt.refresh()
	return wt
}

// Update handles messages for the windows tab.
func (wt WindowsTab) Update(msg tea.Msg) (WindowsTab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		wt.width = msg.Width
		wt.height = msg.Height
		listHeight := wt.height - 2
		if listHeight < 1 {
			listHeight = 1
		}
		wt.list.SetSize(wt.width, listHeight)
		wt.ready = true
		return wt, nil

	case statusMsg:
		wt.statusText = msg.text
		return wt, clearStatusAfter()

	case clearStatusMsg:
		wt.statusText = ""
		return wt, nil

	case refreshMsg:
		wt.refresh()
		return wt, nil

	case tea.KeyMsg:
		// Handled before the list so its paging keys do not swallow them.
		switch msg.String() {
		case "enter", "f":
			return wt.act("focused", wt.ctl.FocusWindow)
		case "m":
			return wt.act("minimized", wt.ctl.MinimizeWindow)
		case "u":
			return wt.act("restored", wt.ctl.UnminimizeWindow)
		case "r":
			wt.refresh()
			return wt, nil
		}
	}

	var cmd tea.Cmd
	wt.list, cmd = wt.list.Update(msg)
	return wt, cmd
}

func (wt WindowsTab) selected() (ipc.WindowData, bool) {
	item, ok := wt.list.SelectedItem().(windowItem)
	if !ok {
		return ipc.WindowData{}, false
	}
	return item.data, true
}

func (wt WindowsTab) act(verb string, action func(ipc.WindowTarget) (*ipc.WindowData, error)) (WindowsTab, tea.Cmd) {
	data, ok := wt.selected()
	if !ok {
		return wt, nil
	}
	if _, err := action(ipc.WindowTarget{PID: data.PID, WindowID: data.WindowID}); err != nil {
		wt.statusText = fmt.Sprintf("error: %v", err)
	} else {
		wt.statusText = fmt.Sprintf("%s: %s", verb, displayOrDefault(data.Title, data.App))
	}
	wt.refresh()
	return wt, clearStatusAfter()
}

func (wt *WindowsTab) refresh() {
	windows, err := wt.ctl.ListWindows(ipc.ListWindowsPayload{})
	if err != nil {
		wt.statusText = fmt.Sprintf("error: %v", err)
		return
	}
	items := make([]list.Item, 0, len(windows))
	for _, w := range windows {
		items = append(items, windowItem{data: w})
	}
	wt.list.SetItems(items)
}

// View implements tea.Model.
func (wt WindowsTab) View() string {
	if !wt.ready || wt.width == 0 || wt.height == 0 {
		return ""
	}
	listView := lipgloss.NewStyle().
		Width(wt.width).
		Height(wt.height - 2).
		Render(wt.list.View())
	status := renderTabStatus(wt.statusText, "enter/f:focus  m:minimize  u:restore  r:refresh", wt.width)
	return lipgloss.JoinVertical(lipgloss.Left, listView, status)
}
