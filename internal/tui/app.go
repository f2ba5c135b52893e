// Package tui implements the interactive axwatch terminal interface.
package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/axwatch/internal/config"
	"github.com/1broseidon/axwatch/internal/ipc"
	"github.com/1broseidon/axwatch/internal/platform"
)

const refreshInterval = 2 * time.Second

// Controller is the subset of window operations the TUI drives. Both the
// in-process service and the daemon client satisfy it.
type Controller interface {
	Status() (*ipc.StatusData, error)
	ListApps() ([]ipc.AppData, error)
	ListWindows(p ipc.ListWindowsPayload) ([]ipc.WindowData, error)
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

// reloader is implemented by controllers that can reach a running daemon.
type reloader interface {
	Reload() error
}

// model is the root bubbletea model for the TUI.
type model struct {
	ctl  Controller
	live bool

	status *ipc.StatusData

	// Tab navigation
	activeTab Tab

	// Sub-models
	windowsTab  WindowsTab
	appsTab     AppsTab
	eventsTab   EventsTab
	settingsTab SettingsTab

	// Terminal dimensions
	width  int
	height int
}

func newModel(ctl Controller, configPath string, live bool) model {
	m := model{
		ctl:       ctl,
		live:      live,
		activeTab: TabWindows,
	}

	if configPath == "" {
		configPath, _ = config.DefaultConfigPath()
	}
	var cfg *config.Config
	if res, err := config.LoadFromPath(configPath); err == nil {
		cfg = res.Config
	}

	var reload func() error
	if r, ok := ctl.(reloader); ok && live {
		reload = r.Reload
	}

	m.refreshStatus()
	m.windowsTab = NewWindowsTab(ctl)
	m.appsTab = NewAppsTab(ctl)
	m.eventsTab = NewEventsTab(ctl)
	m.settingsTab = NewSettingsTab(cfg, configPath, reload)
	return m
}

func (m *model) refreshStatus() {
	if !m.live {
		return
	}
	status, err := m.ctl.Status()
	if err != nil {
		m.status = nil
		return
	}
	m.status = status
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// contentHeight returns the height available for tab content.
func (m model) contentHeight() int {
	// status bar (1) + tab bar (2 with margin) + help bar (1)
	h := m.height - 4
	if h < 1 {
		h = 1
	}
	return h
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return tick()
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		subMsg := tea.WindowSizeMsg{Width: m.width, Height: m.contentHeight()}
		m.windowsTab, _ = m.windowsTab.Update(subMsg)
		m.appsTab, _ = m.appsTab.Update(subMsg)
		m.eventsTab, _ = m.eventsTab.Update(subMsg)
		m.settingsTab, _ = m.settingsTab.Update(subMsg)
		return m, nil

	case tickMsg:
		m = m.refreshAll()
		return m, tick()

	case refreshMsg:
		m = m.refreshAll()
		return m, nil

	case clearStatusMsg:
		m.windowsTab, _ = m.windowsTab.Update(msg)
		m.appsTab, _ = m.appsTab.Update(msg)
		m.eventsTab, _ = m.eventsTab.Update(msg)
		m.settingsTab, _ = m.settingsTab.Update(msg)
		return m, nil

	case tea.KeyMsg:
		// The settings form consumes keys; only ctrl+c escapes to quit.
		if m.activeTab == TabSettings && m.settingsTab.Editing() {
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			break
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			m.activeTab = (m.activeTab + 1) % tabCount
			return m, nil
		case "shift+tab":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
			return m, nil
		case "1", "2", "3", "4":
			m.activeTab = Tab(msg.String()[0] - '1')
			return m, nil
		case "ctrl+r":
			m = m.refreshAll()
			return m, nil
		}
	}

	// Delegate to active tab's sub-model
	var cmd tea.Cmd
	switch m.activeTab {
	case TabWindows:
		m.windowsTab, cmd = m.windowsTab.Update(msg)
	case TabApplications:
		m.appsTab, cmd = m.appsTab.Update(msg)
	case TabEvents:
		m.eventsTab, cmd = m.eventsTab.Update(msg)
	case TabSettings:
		m.settingsTab, cmd = m.settingsTab.Update(msg)
	}
	return m, cmd
}

func (m model) refreshAll() model {
	m.refreshStatus()
	m.windowsTab, _ = m.windowsTab.Update(refreshMsg{})
	m.appsTab, _ = m.appsTab.Update(refreshMsg{})
	m.eventsTab, _ = m.eventsTab.Update(refreshMsg{})
	return m
}

// View implements tea.Model.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	statusBar := renderStatusBar(m.live, m.status, m.width)
	tabBar := renderTabBar(m.activeTab, m.width)
	helpBar := renderHelpBar(m.width)

	var content string
	switch m.activeTab {
	case TabWindows:
		content = m.windowsTab.View()
	case TabApplications:
		content = m.appsTab.View()
	case TabEvents:
		content = m.eventsTab.View()
	case TabSettings:
		content = m.settingsTab.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		statusBar,
		tabBar,
		content,
		helpBar,
	)
}

// Run starts the TUI. live reports whether ctl talks to a running daemon.
func Run(ctl Controller, configPath string, live bool) error {
	p := tea.NewProgram(newModel(ctl, configPath, live), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
