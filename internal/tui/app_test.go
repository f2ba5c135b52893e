package tui

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/1broseidon/axwatch/internal/config"
	"github.com/1broseidon/axwatch/internal/history"
	"github.com/1broseidon/axwatch/internal/ipc"
	"github.com/1broseidon/axwatch/internal/platform"
	"github.com/1broseidon/axwatch/internal/platform/platformtest"
)

type testDesktop struct {
	backend *platformtest.Backend
	ring    *history.Ring
	svc     *ipc.Service
	doc     platform.Ref
	page    platform.Ref
}

func newTestDesktop(t *testing.T) *testDesktop {
	t.Helper()
	b := platformtest.New()
	b.AddApp(10, "Editor")
	b.AddApp(20, "Browser")
	doc := b.AddWindow(10, "doc", platform.Rect{X: 10, Y: 10, Width: 400, Height: 300})
	page := b.AddWindow(20, "page", platform.Rect{X: 100, Y: 100, Width: 800, Height: 600})
	b.SetFocused(20, page.ID)

	ring := history.New(16)
	ring.Add(history.Record{Notification: platform.NotificationWindowCreated, PID: 10, WindowID: doc.ID, App: "Editor", Title: "doc"})

	return &testDesktop{
		backend: b,
		ring:    ring,
		svc:     ipc.NewService(ipc.ServiceConfig{Backend: b, History: ring}),
		doc:     doc,
		page:    page,
	}
}

func sized(t *testing.T, m model) model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(model)
}

func send(t *testing.T, m model, msg tea.Msg) model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(model)
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestModel_TabNavigation(t *testing.T) {
	d := newTestDesktop(t)
	m := sized(t, newModel(d.svc, filepath.Join(t.TempDir(), "config.yaml"), false))

	tests := []struct {
		name string
		msg  tea.KeyMsg
		want Tab
	}{
		{"tab", tea.KeyMsg{Type: tea.KeyTab}, TabApplications},
		{"tab again", tea.KeyMsg{Type: tea.KeyTab}, TabEvents},
		{"shift+tab", tea.KeyMsg{Type: tea.KeyShiftTab}, TabApplications},
		{"jump to 4", runeKey('4'), TabSettings},
		{"wrap", tea.KeyMsg{Type: tea.KeyTab}, TabWindows},
		{"jump to 3", runeKey('3'), TabEvents},
	}
	for _, tt := range tests {
		m = send(t, m, tt.msg)
		if m.activeTab != tt.want {
			t.Fatalf("%s: active tab = %v, want %v", tt.name, m.activeTab, tt.want)
		}
	}

	view := m.View()
	for _, want := range []string{"1:Windows", "4:Settings", "daemon not running"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q", want)
		}
	}

	_, cmd := m.Update(runeKey('q'))
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}

func TestModel_WindowActions(t *testing.T) {
	d := newTestDesktop(t)
	m := sized(t, newModel(d.svc, "", false))

	if items := m.windowsTab.list.Items(); len(items) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(items))
	}

	m = send(t, m, runeKey('m'))
	info, _ := d.backend.Window(d.doc)
	if !info.Minimized {
		t.Fatalf("expected doc minimized")
	}
	if !strings.HasPrefix(m.windowsTab.statusText, "minimized") {
		t.Fatalf("unexpected status %q", m.windowsTab.statusText)
	}

	m = send(t, m, runeKey('u'))
	info, _ = d.backend.Window(d.doc)
	if info.Minimized {
		t.Fatalf("expected doc restored")
	}

	m = send(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if !strings.Contains(m.windowsTab.statusText, "page") {
		t.Fatalf("expected page focused, status %q", m.windowsTab.statusText)
	}
}

func TestModel_HideAndShowApplication(t *testing.T) {
	d := newTestDesktop(t)
	m := sized(t, newModel(d.svc, "", false))
	m = send(t, m, runeKey('2'))

	m = send(t, m, runeKey('h'))
	app, _ := d.backend.Application(10)
	if !app.Hidden {
		t.Fatalf("expected Editor hidden")
	}
	item := m.appsTab.list.SelectedItem().(appItem)
	if !item.data.Hidden {
		t.Fatalf("expected list refreshed after hide")
	}

	m = send(t, m, runeKey('s'))
	app, _ = d.backend.Application(10)
	if app.Hidden {
		t.Fatalf("expected Editor shown")
	}
	if m.appsTab.statusText != "shown: Editor" {
		t.Fatalf("unexpected status %q", m.appsTab.statusText)
	}
}

func TestModel_EventsFollowHistory(t *testing.T) {
	d := newTestDesktop(t)
	m := sized(t, newModel(d.svc, "", false))

	if len(m.eventsTab.events) != 1 {
		t.Fatalf("expected 1 initial event, got %d", len(m.eventsTab.events))
	}

	d.ring.Add(history.Record{Notification: platform.NotificationWindowMoved, PID: 20, WindowID: d.page.ID, Frame: &platform.Rect{X: 1, Y: 2, Width: 3, Height: 4}})
	m = send(t, m, tickMsg(time.Now()))
	if len(m.eventsTab.events) != 2 {
		t.Fatalf("expected 2 events after tick, got %d", len(m.eventsTab.events))
	}
	if got := formatEvent(m.eventsTab.events[1]); !strings.Contains(got, "3x4+1+2") {
		t.Fatalf("unexpected event line %q", got)
	}

	m = send(t, m, runeKey('3'))
	m = send(t, m, runeKey('p'))
	d.ring.Add(history.Record{Notification: platform.NotificationWindowResized, PID: 20})
	m = send(t, m, refreshMsg{})
	if len(m.eventsTab.events) != 2 {
		t.Fatalf("expected no new events while paused, got %d", len(m.eventsTab.events))
	}
	m = send(t, m, runeKey('p'))
	if len(m.eventsTab.events) != 3 {
		t.Fatalf("expected resume to poll, got %d", len(m.eventsTab.events))
	}

	m = send(t, m, runeKey('c'))
	if len(m.eventsTab.events) != 0 {
		t.Fatalf("expected cleared events")
	}
}

func TestSettingsTab_ApplyFormSavesAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	reloads := 0
	s := NewSettingsTab(config.DefaultConfig(), path, func() error {
		reloads++
		return nil
	})
	s.width, s.height = 100, 30

	s.startEditing()
	if !s.Editing() {
		t.Fatalf("expected editing")
	}
	if s.fRescanInterval != "10s" || s.fLogLevel != "info" {
		t.Fatalf("unexpected form defaults: %q %q", s.fRescanInterval, s.fLogLevel)
	}

	s.fLogLevel = "debug"
	s.fRescanInterval = "30s"
	s.fHistorySize = "64"
	s.fIgnoreApps = "Dock, , Finder"
	if err := s.applyForm(); err != nil {
		t.Fatalf("applyForm: %v", err)
	}
	if reloads != 1 || s.statusText != "saved and reloaded" {
		t.Fatalf("expected reload, got %d %q", reloads, s.statusText)
	}

	res, err := config.LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	cfg := res.Config
	if cfg.LogLevel != "debug" || cfg.RescanInterval != 30*time.Second || cfg.HistorySize != 64 {
		t.Fatalf("unexpected saved config: %+v", cfg)
	}
	if len(cfg.IgnoreApps) != 2 || cfg.IgnoreApps[1] != "Finder" {
		t.Fatalf("unexpected ignore_apps: %v", cfg.IgnoreApps)
	}
}

func TestSettingsTab_ApplyFormErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	s := NewSettingsTab(config.DefaultConfig(), path, func() error { return errors.New("daemon gone") })
	s.startEditing()
	err := s.applyForm()
	if err == nil || !strings.Contains(err.Error(), "reload failed") {
		t.Fatalf("expected reload error, got %v", err)
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Fatalf("expected config saved before reload: %v", statErr)
	}

	s = NewSettingsTab(config.DefaultConfig(), path, nil)
	s.startEditing()
	s.fLogLevel = "loud"
	if err := s.applyForm(); err == nil {
		t.Fatalf("expected invalid log level to be rejected")
	}
}

func TestSettingsTab_EditingCapturesKeys(t *testing.T) {
	d := newTestDesktop(t)
	m := sized(t, newModel(d.svc, filepath.Join(t.TempDir(), "config.yaml"), false))
	m = send(t, m, runeKey('4'))
	m = send(t, m, runeKey('e'))
	if !m.settingsTab.Editing() {
		t.Fatalf("expected settings form open")
	}

	m = send(t, m, runeKey('1'))
	if m.activeTab != TabSettings {
		t.Fatalf("expected keys captured by the form, active tab %v", m.activeTab)
	}

	m = send(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.settingsTab.Editing() {
		t.Fatalf("expected esc to close the form")
	}
}

func TestValidators(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(string) error
		in      string
		wantErr bool
	}{
		{"duration ok", validateDuration, "2s", false},
		{"duration too short", validateDuration, "500ms", true},
		{"duration garbage", validateDuration, "soon", true},
		{"int ok", validateNonNegativeInt, " 0 ", false},
		{"int negative", validateNonNegativeInt, "-1", true},
		{"float ok", validateNonNegativeFloat, "2.5", false},
		{"float garbage", validateNonNegativeFloat, "x", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(tt.in); (err != nil) != tt.wantErr {
				t.Fatalf("got err %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEventsTab_SkipsSeenRecordsWhenLastIDIsGone(t *testing.T) {
	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	b := platformtest.New()

	first := history.New(8)
	a := first.Add(history.Record{Notification: platform.NotificationWindowMoved, PID: 10, Time: base})
	first.Add(history.Record{Notification: platform.NotificationWindowResized, PID: 10, Time: base.Add(time.Second)})
	et := NewEventsTab(ipc.NewService(ipc.ServiceConfig{Backend: b, History: first}))
	if len(et.events) != 2 {
		t.Fatalf("expected 2 initial events, got %d", len(et.events))
	}

	// A restarted daemon that lost the newest record still holds older ones.
	second := history.New(8)
	second.Add(a)
	second.Add(history.Record{Notification: platform.NotificationWindowCreated, PID: 10, Time: base.Add(2 * time.Second)})
	et.ctl = ipc.NewService(ipc.ServiceConfig{Backend: b, History: second})

	et.poll()
	if len(et.events) != 3 {
		t.Fatalf("expected 1 new event appended, got %d events", len(et.events))
	}
	if et.events[2].Notification != platform.NotificationWindowCreated {
		t.Fatalf("unexpected last event %+v", et.events[2])
	}

	et.poll()
	if len(et.events) != 3 {
		t.Fatalf("expected no duplicates on repeated poll, got %d", len(et.events))
	}
}
