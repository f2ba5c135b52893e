package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/axwatch/internal/config"
)

// SettingsTab shows the effective configuration and edits the runtime keys.
type SettingsTab struct {
	cfg        *config.Config
	configPath string
	// reload asks a running daemon to re-read its config; nil without one.
	reload func() error

	statusText string

	width  int
	height int

	editing bool
	form    *huh.Form

	// Form-bound values (strings for huh, converted on submit)
	fLogLevel       string
	fRescanInterval string
	fHistorySize    string
	fThrottleRate   string
	fThrottleBurst  string
	fIgnoreApps     string
}

// NewSettingsTab creates a SettingsTab for the config at configPath.
func NewSettingsTab(cfg *config.Config, configPath string, reload func() error) SettingsTab {
	return SettingsTab{cfg: cfg, configPath: configPath, reload: reload}
}

// Editing reports whether the edit form is open. The root model stops
// handling global keys while it is.
func (s SettingsTab) Editing() bool {
	return s.editing
}

// Update handles messages for the settings tab.
func (s SettingsTab) Update(msg tea.Msg) (SettingsTab, tea.Cmd) {
	if s.editing {
		return s.updateEditing(msg)
	}
	return s.updateDisplay(msg)
}

func (s SettingsTab) updateDisplay(msg tea.Msg) (SettingsTab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "e" {
			s.startEditing()
			return s, s.form.Init()
		}
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
	case clearStatusMsg:
		s.statusText = ""
	}
	return s, nil
}

func (s SettingsTab) updateEditing(msg tea.Msg) (SettingsTab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "esc" {
			s.editing = false
			s.form = nil
			return s, nil
		}
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State == huh.StateCompleted {
		s.editing = false
		s.form = nil
		if err := s.applyForm(); err != nil {
			s.statusText = fmt.Sprintf("error: %v", err)
		}
		return s, clearStatusAfter()
	}

	return s, cmd
}

func (s *SettingsTab) startEditing() {
	cfg := s.cfg
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	s.fLogLevel = strings.ToLower(cfg.LogLevel)
	if s.fLogLevel == "warning" {
		s.fLogLevel = "warn"
	}
	s.fRescanInterval = cfg.RescanInterval.String()
	s.fHistorySize = strconv.Itoa(cfg.HistorySize)
	s.fThrottleRate = strconv.FormatFloat(cfg.Throttle.MoveResizePerSecond, 'f', -1, 64)
	s.fThrottleBurst = strconv.Itoa(cfg.Throttle.Burst)
	s.fIgnoreApps = strings.Join(cfg.IgnoreApps, ", ")

	w := s.width - 4
	if w < 40 {
		w = 40
	}

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("log_level").
				Title("Log Level").
				Options(
					huh.NewOption("debug", "debug"),
					huh.NewOption("info", "info"),
					huh.NewOption("warn", "warn"),
					huh.NewOption("error", "error"),
				).
				Value(&s.fLogLevel),

			huh.NewInput().
				Key("rescan_interval").
				Title("Rescan Interval").
				Description("How often running applications are re-scanned (>= 1s)").
				Validate(validateDuration).
				Value(&s.fRescanInterval),

			huh.NewInput().
				Key("history_size").
				Title("History Size").
				Description("Events kept for the events command").
				Validate(validateNonNegativeInt).
				Value(&s.fHistorySize),
		),
		huh.NewGroup(
			huh.NewInput().
				Key("throttle_rate").
				Title("Move/Resize Rate").
				Description("Callbacks per second per window; 0 disables throttling").
				Validate(validateNonNegativeFloat).
				Value(&s.fThrottleRate),

			huh.NewInput().
				Key("throttle_burst").
				Title("Move/Resize Burst").
				Validate(validateNonNegativeInt).
				Value(&s.fThrottleBurst),

			huh.NewInput().
				Key("ignore_apps").
				Title("Ignored Applications").
				Description("Comma-separated application names").
				Value(&s.fIgnoreApps),
		),
	).WithWidth(w).WithShowHelp(true).WithShowErrors(true)

	s.editing = true
}

func validateDuration(v string) error {
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return err
	}
	if d < time.Second {
		return fmt.Errorf("must be >= 1s")
	}
	return nil
}

func validateNonNegativeInt(v string) error {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("not a number")
	}
	if n < 0 {
		return fmt.Errorf("must be >= 0")
	}
	return nil
}

func validateNonNegativeFloat(v string) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fmt.Errorf("not a number")
	}
	if f < 0 {
		return fmt.Errorf("must be >= 0")
	}
	return nil
}

// applyForm copies the form values into a copy of the config, saves it and
// asks the daemon to reload.
func (s *SettingsTab) applyForm() error {
	base := s.cfg
	if base == nil {
		base = config.DefaultConfig()
	}
	next := *base

	next.LogLevel = s.fLogLevel
	if d, err := time.ParseDuration(strings.TrimSpace(s.fRescanInterval)); err == nil {
		next.RescanInterval = d
	}
	if v, err := strconv.Atoi(strings.TrimSpace(s.fHistorySize)); err == nil {
		next.HistorySize = v
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(s.fThrottleRate), 64); err == nil {
		next.Throttle.MoveResizePerSecond = v
	}
	if v, err := strconv.Atoi(strings.TrimSpace(s.fThrottleBurst)); err == nil {
		next.Throttle.Burst = v
	}
	next.IgnoreApps = splitList(s.fIgnoreApps)

	if err := next.Save(s.configPath); err != nil {
		return err
	}
	s.cfg = &next

	if s.reload == nil {
		s.statusText = "saved"
		return nil
	}
	if err := s.reload(); err != nil {
		return fmt.Errorf("saved, but reload failed: %w", err)
	}
	s.statusText = "saved and reloaded"
	return nil
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// View implements tea.Model.
func (s SettingsTab) View() string {
	if s.editing && s.form != nil {
		return s.viewEditing()
	}
	return s.viewDisplay()
}

func (s SettingsTab) viewDisplay() string {
	cfg := s.cfg
	if cfg == nil {
		style := lipgloss.NewStyle().
			Width(s.width).
			Height(s.height).
			Foreground(lipgloss.Color("241")).
			Align(lipgloss.Center, lipgloss.Center)
		return style.Render("No config loaded")
	}

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250")).
		Width(22).
		Align(lipgloss.Right).
		PaddingRight(2)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("15")).
		Bold(true)

	dimStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	row := func(label, value string) string {
		return labelStyle.Render(label) + valueStyle.Render(value)
	}

	throttle := "off"
	if cfg.Throttle.MoveResizePerSecond > 0 {
		throttle = fmt.Sprintf("%g/s burst %d", cfg.Throttle.MoveResizePerSecond, cfg.Throttle.Burst)
	}
	metrics := "off"
	if cfg.Metrics.Enabled {
		metrics = cfg.Metrics.Listen
	}

	lines := []string{
		"",
		row("Config File", displayOrDefault(s.configPath, "(default)")),
		"",
		row("Notifications", strings.Join(cfg.Notifications, ", ")),
		row("Ignored Apps", displayOrDefault(strings.Join(cfg.IgnoreApps, ", "), "(none)")),
		row("Rescan Interval", cfg.RescanInterval.String()),
		row("Move/Resize Throttle", throttle),
		row("History Size", strconv.Itoa(cfg.HistorySize)),
		row("Log Level", cfg.LogLevel),
		"",
		row("IPC Socket", strconv.FormatBool(cfg.IPC.Enabled)),
		row("Metrics", metrics),
		row("Prompt For Trust", strconv.FormatBool(cfg.PromptForTrust)),
		"",
		dimStyle.Render("  Press 'e' to edit settings"),
	}
	if s.statusText != "" {
		color := lipgloss.Color("42")
		if strings.HasPrefix(s.statusText, "error") {
			color = lipgloss.Color("196")
		}
		lines = append(lines, "", lipgloss.NewStyle().Foreground(color).Render("  "+s.statusText))
	}

	contentStyle := lipgloss.NewStyle().
		Width(s.width).
		Height(s.height).
		Padding(1, 2)

	return contentStyle.Render(strings.Join(lines, "\n"))
}

func (s SettingsTab) viewEditing() string {
	header := lipgloss.NewStyle().
		Foreground(lipgloss.Color("62")).
		Bold(true).
		Render("Editing Settings") +
		lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Render("  (esc to cancel)")

	content := header + "\n\n" + s.form.View()

	style := lipgloss.NewStyle().
		Width(s.width).
		Height(s.height).
		Padding(1, 2)

	return style.Render(content)
}
