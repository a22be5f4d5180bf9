package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/unigw/unigw/internal/console"
	"github.com/unigw/unigw/internal/panel"
)

func newTestModel(t *testing.T) Model {
	t.Helper()
	client, err := console.NewClient("http://127.0.0.1:9")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return NewModel(client, console.NewGate(client), nil)
}

func TestNextEditableSkipsReadOnlyFields(t *testing.T) {
	fields := []panel.Field{
		{Name: "name", ReadOnly: true},
		{Name: "provider_type"},
		{Name: "base_url"},
	}
	if got := nextEditable(fields, -1, 1); got != 1 {
		t.Fatalf("first editable = %d, want 1", got)
	}
	if got := nextEditable(fields, 2, 1); got != 1 {
		t.Fatalf("wrap skipping read-only = %d, want 1", got)
	}
	if got := nextEditable(fields, 1, -1); got != 2 {
		t.Fatalf("backwards wrap = %d, want 2", got)
	}

	locked := []panel.Field{{Name: "key", ReadOnly: true}}
	if got := nextEditable(locked, 0, 1); got != 0 {
		t.Fatalf("all read-only should stay put, got %d", got)
	}
}

func TestNextTabCycles(t *testing.T) {
	if got := nextTab(panel.TabGroups, 1); got != panel.TabDashboard {
		t.Fatalf("forward wrap = %v", got)
	}
	if got := nextTab(panel.TabDashboard, -1); got != panel.TabGroups {
		t.Fatalf("backward wrap = %v", got)
	}
	if got := nextTab(panel.TabKeys, 1); got != panel.TabModels {
		t.Fatalf("step = %v", got)
	}
}

func TestShortenAndCell(t *testing.T) {
	if got := shorten("abcdef", 4); got != "abc…" {
		t.Fatalf("shorten = %q", got)
	}
	if got := shorten("abc", 4); got != "abc" {
		t.Fatalf("shorten short string = %q", got)
	}
	if got := shorten("ünïcødé", 3); got != "ün…" {
		t.Fatalf("shorten runes = %q", got)
	}
	if got := cell("ab", 4); got != "ab    " {
		t.Fatalf("cell = %q", got)
	}
}

func TestChartBarBounds(t *testing.T) {
	if got := chartBar(0); strings.Contains(got, "█") {
		t.Fatalf("zero fraction should draw nothing, got %q", got)
	}
	if got := chartBar(1); strings.Count(got, "█") != chartBarWidth {
		t.Fatalf("full fraction should fill the bar, got %q", got)
	}
	if got := chartBar(0.001); strings.Count(got, "█") != 1 {
		t.Fatalf("tiny fraction should still show one mark, got %q", got)
	}
}

func TestTrimLastRune(t *testing.T) {
	if got := trimLastRune("abé"); got != "ab" {
		t.Fatalf("trimLastRune = %q", got)
	}
	if got := trimLastRune(""); got != "" {
		t.Fatalf("trimLastRune empty = %q", got)
	}
}

func TestLockedViewMasksInput(t *testing.T) {
	m := newTestModel(t)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("ab")})
	m = next.(Model)
	screen := m.View()
	if !strings.Contains(screen, "••") {
		t.Fatalf("masked input missing from lock screen:\n%s", screen)
	}
	if strings.Contains(screen, "ab") {
		t.Fatalf("raw key leaked into the lock screen:\n%s", screen)
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(Model)
	if m.keyInput != "" {
		t.Fatalf("esc should clear the input, got %q", m.keyInput)
	}
}

func TestLockedEnterStartsLogin(t *testing.T) {
	m := newTestModel(t)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if cmd != nil || m.loggingIn {
		t.Fatal("empty input should not attempt a login")
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("secret")})
	m = next.(Model)
	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if cmd == nil || !m.loggingIn {
		t.Fatal("enter with input should start a login")
	}
}

func TestCtrlCQuitsEverywhere(t *testing.T) {
	m := newTestModel(t)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = next.(Model)
	if cmd == nil || !m.quitting {
		t.Fatal("ctrl+c should quit from the lock screen")
	}
	if m.View() != "" {
		t.Fatal("quitting view should be empty")
	}
}

func TestWindowSizeTracked(t *testing.T) {
	m := newTestModel(t)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(Model)
	if m.width != 120 || m.height != 40 {
		t.Fatalf("size = %dx%d", m.width, m.height)
	}
}

func TestFailedLoginShowsError(t *testing.T) {
	m := newTestModel(t)
	m.loggingIn = true

	next, _ := m.Update(loginMsg{err: console.ErrUnauthorized})
	m = next.(Model)
	if m.loggingIn {
		t.Fatal("login attempt should be over")
	}
	if m.loginErr == "" {
		t.Fatal("login error should be surfaced")
	}
	if !strings.Contains(m.View(), m.loginErr) {
		t.Fatal("lock screen should show the login error")
	}
}
