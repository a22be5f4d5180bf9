package tui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/unigw/unigw/internal/panel"
	"github.com/unigw/unigw/internal/view"
)

// Fixed column widths per table, in runes.
const (
	colProviderName = 24
	colProviderType = 22
	colProviderURL  = 40
	colProviderKey  = 20

	colKeyName  = 20
	colKeyValue = 26
	colKeyUsage = 16
	colKeyRate  = 10
	colKeyState = 8

	colModelAlias    = 24
	colModelUpstream = 40
	colModelOwner    = 20

	colGroupName     = 20
	colGroupStrategy = 14
	colGroupMembers  = 52

	chartBarWidth = 30
)

// View renders the whole screen for the current state.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.gate.Unlocked() {
		return m.renderLock()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderNotice())
	b.WriteString("\n")

	if m.ctrl.Modal().State != panel.ModalClosed {
		b.WriteString(m.renderModal())
	} else {
		b.WriteString(m.renderTab())
	}

	if confirm := m.ctrl.Confirm(); confirm.Active {
		b.WriteString("\n")
		b.WriteString(m.renderConfirm(confirm))
		b.WriteString("\n")
	}
	if popup := m.ctrl.Popup(); popup.Visible {
		b.WriteString("\n")
		b.WriteString(m.renderPopup(popup))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.styles.help.Render(m.helpLine()))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderLock() string {
	var b strings.Builder
	b.WriteString(m.styles.boxTitle.Render("unigw console"))
	b.WriteString("\n")
	b.WriteString(m.styles.dim.Render(m.client.BaseURL()))
	b.WriteString("\n\n")

	masked := strings.Repeat("•", utf8.RuneCountInString(m.keyInput))
	prompt := "master key: " + masked
	if m.loggingIn {
		prompt = "master key: " + masked + "  (connecting)"
	} else {
		prompt += "▌"
	}
	b.WriteString(m.styles.row.Render(prompt))
	b.WriteString("\n")
	if m.loginErr != "" {
		b.WriteString(m.styles.errText.Render(m.loginErr))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.styles.help.Render("enter unlock · esc clear · ctrl+c quit"))

	box := m.styles.box.Render(b.String())
	if m.width > 0 && m.height > 0 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
	}
	return box
}

func (m Model) renderHeader() string {
	parts := make([]string, 0, len(panel.Tabs)+1)
	parts = append(parts, m.styles.title.Render("unigw"))
	for i, tab := range panel.Tabs {
		label := fmt.Sprintf("%d %s", i+1, tab.String())
		if tab == m.ctrl.ActiveTab() {
			parts = append(parts, m.styles.tabActive.Render(label))
		} else {
			parts = append(parts, m.styles.tabInactive.Render(label))
		}
	}
	return strings.Join(parts, "  ")
}

// renderNotice fills the single line between header and content with the
// search prompt, a load error or the loading marker.
func (m Model) renderNotice() string {
	switch {
	case m.searching:
		return m.styles.row.Render("/" + m.searchInput + "▌")
	case m.status != "":
		return m.styles.errText.Render(m.status)
	case m.loading:
		return m.styles.dim.Render("loading…")
	case m.searchInput != "":
		return m.styles.dim.Render("filter: " + m.searchInput)
	}
	return ""
}

func (m Model) renderTab() string {
	switch m.ctrl.ActiveTab() {
	case panel.TabDashboard:
		return m.renderDashboard()
	case panel.TabProviders:
		return m.renderProviders()
	case panel.TabKeys:
		return m.renderKeys()
	case panel.TabModels:
		return m.renderModels()
	default:
		return m.renderGroups()
	}
}

func (m Model) renderDashboard() string {
	stats, ok := m.ctrl.Stats()
	if !ok {
		return m.styles.dim.Render("Waiting for the first sample…")
	}
	board := view.Dashboard(stats)

	var b strings.Builder
	counters := make([]string, 0, len(board.Counters))
	for _, counter := range board.Counters {
		counters = append(counters, m.styles.dim.Render(counter.Label+" ")+m.styles.title.Render(counter.Value))
	}
	b.WriteString(strings.Join(counters, "   "))
	b.WriteString("\n\n")

	b.WriteString(m.styles.tableHead.Render("TOP MODELS"))
	b.WriteString("\n")
	if len(board.Chart.Rows) == 0 {
		b.WriteString(m.styles.dim.Render(board.Chart.Empty))
		b.WriteString("\n")
	}
	for _, row := range board.Chart.Rows {
		line := fmt.Sprintf("%s %s %d", cell(row.Label, colModelAlias), chartBar(row.Fraction), row.Count)
		b.WriteString(m.styles.row.Render(line))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(m.styles.tableHead.Render("  " + cell("TIME", colKeyRate) + cell("MODEL", colProviderName+8) + cell("STATUS", colKeyState) + "LATENCY"))
	b.WriteString("\n")
	if len(board.Feed.Rows) == 0 {
		b.WriteString(m.styles.dim.Render(board.Feed.Empty))
		b.WriteString("\n")
	}
	for i, row := range board.Feed.Rows {
		line := cell(row.Time, colKeyRate) + cell(row.Model, colProviderName+8) + m.feedStatus(row) + cell(row.Latency, 8)
		b.WriteString(m.listLine(i, line))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) feedStatus(row view.FeedRow) string {
	text := cell(row.Status, colKeyState)
	switch row.Class {
	case view.ClassSuccess:
		return m.styles.good.Render(text)
	case view.ClassFail:
		return m.styles.bad.Render(text)
	default:
		return m.styles.dim.Render(text)
	}
}

func chartBar(fraction float64) string {
	filled := int(fraction*float64(chartBarWidth) + 0.5)
	if fraction > 0 && filled == 0 {
		filled = 1
	}
	if filled > chartBarWidth {
		filled = chartBarWidth
	}
	return strings.Repeat("█", filled) + strings.Repeat(" ", chartBarWidth-filled)
}

func (m Model) renderProviders() string {
	list := view.Providers(m.ctrl.Providers().VisiblePage())

	var b strings.Builder
	b.WriteString(m.styles.tableHead.Render("  " + cell("NAME", colProviderName) + cell("TYPE", colProviderType) + cell("BASE URL", colProviderURL) + "KEY"))
	b.WriteString("\n")
	if len(list.Rows) == 0 {
		b.WriteString(m.styles.dim.Render(list.Empty))
		b.WriteString("\n")
	}
	for i, row := range list.Rows {
		line := cell(row.Name, colProviderName) + cell(row.Type, colProviderType) + cell(row.BaseURL, colProviderURL) + shorten(row.Secret, colProviderKey)
		b.WriteString(m.listLine(i, line))
		b.WriteString("\n")
	}
	b.WriteString(m.renderPager())
	return b.String()
}

func (m Model) renderKeys() string {
	list := view.Keys(m.ctrl.Keys().VisiblePage())

	var b strings.Builder
	b.WriteString(m.styles.tableHead.Render("  " + cell("NAME", colKeyName) + cell("KEY", colKeyValue) + cell("USAGE", colKeyUsage) + cell("RATE", colKeyRate) + "STATE"))
	b.WriteString("\n")
	if len(list.Rows) == 0 {
		b.WriteString(m.styles.dim.Render(list.Empty))
		b.WriteString("\n")
	}
	for i, row := range list.Rows {
		display := cell(row.Display, colKeyValue)
		if row.Master {
			display = m.styles.badge.Render(display)
		}
		state := m.styles.good.Render("active")
		if !row.Active {
			state = m.styles.bad.Render("off")
		}
		line := cell(row.Name, colKeyName) + display + cell(row.Usage, colKeyUsage) + cell(row.RateLimit, colKeyRate) + state
		b.WriteString(m.listLine(i, line))
		b.WriteString("\n")
	}
	b.WriteString(m.renderPager())
	return b.String()
}

func (m Model) renderModels() string {
	list := view.Models(m.ctrl.Models().VisiblePage())

	var b strings.Builder
	b.WriteString(m.styles.tableHead.Render("  " + cell("ALIAS", colModelAlias) + cell("UPSTREAM", colModelUpstream) + "OWNER"))
	b.WriteString("\n")
	if len(list.Rows) == 0 {
		b.WriteString(m.styles.dim.Render(list.Empty))
		b.WriteString("\n")
	}
	for i, row := range list.Rows {
		owner := cell(row.Owner, colModelOwner)
		if row.GroupRef {
			owner = m.styles.badge.Render(owner)
		}
		line := cell(row.Alias, colModelAlias) + cell(row.Upstream, colModelUpstream) + owner
		b.WriteString(m.listLine(i, line))
		b.WriteString("\n")
	}
	b.WriteString(m.renderPager())
	return b.String()
}

func (m Model) renderGroups() string {
	list := view.Groups(m.ctrl.Groups().VisiblePage())

	var b strings.Builder
	b.WriteString(m.styles.tableHead.Render("  " + cell("NAME", colGroupName) + cell("STRATEGY", colGroupStrategy) + "MEMBERS"))
	b.WriteString("\n")
	if len(list.Rows) == 0 {
		b.WriteString(m.styles.dim.Render(list.Empty))
		b.WriteString("\n")
	}
	for i, row := range list.Rows {
		line := cell(row.Name, colGroupName) + cell(row.Strategy, colGroupStrategy) + shorten(row.Members, colGroupMembers)
		b.WriteString(m.listLine(i, line))
		b.WriteString("\n")
	}
	b.WriteString(m.renderPager())
	return b.String()
}

// listLine prefixes the cursor marker and applies the row style.
func (m Model) listLine(index int, line string) string {
	if index == m.cursor {
		return m.styles.cursorRow.Render("▸ " + line)
	}
	return "  " + m.styles.row.Render(line)
}

func (m Model) renderPager() string {
	pager := m.ctrl.ActivePager()
	if !pager.Visible {
		return ""
	}
	prev := m.styles.dim.Render("‹ prev")
	if pager.PrevEnabled {
		prev = m.styles.row.Render("‹ prev")
	}
	next := m.styles.dim.Render("next ›")
	if pager.NextEnabled {
		next = m.styles.row.Render("next ›")
	}
	return "\n" + prev + "  " + m.styles.dim.Render(pager.Label) + "  " + next + "\n"
}

func (m Model) renderModal() string {
	modal := m.ctrl.Modal()

	var b strings.Builder
	b.WriteString(m.styles.boxTitle.Render(modal.Title))
	b.WriteString("\n\n")

	for i, field := range modal.Fields {
		marker := "  "
		if modal.State == panel.ModalEditable && i == m.fieldIdx {
			marker = "▸ "
		}
		value := field.Value
		if modal.State == panel.ModalEditable && i == m.fieldIdx {
			value += "▌"
		}
		line := marker + cell(field.Label, 14) + value
		switch {
		case modal.State == panel.ModalEditable && field.ReadOnly:
			b.WriteString(m.styles.dim.Render(line))
		case modal.State == panel.ModalEditable && i == m.fieldIdx:
			b.WriteString(m.styles.cursorRow.Render(line))
		default:
			b.WriteString(m.styles.row.Render(line))
		}
		b.WriteString("\n")
	}

	if modal.Kind == panel.ModalGroup && modal.State == panel.ModalReadOnly {
		b.WriteString("\n")
		b.WriteString(m.styles.tableHead.Render("MEMBERS"))
		b.WriteString("\n")
		if len(modal.Members) == 0 {
			b.WriteString(m.styles.dim.Render("no members"))
			b.WriteString("\n")
		}
		for i, member := range modal.Members {
			line := fmt.Sprintf("%d. %s → %s (weight %d)", i+1, member.ProviderName, member.TargetModel, member.Weight)
			b.WriteString(m.styles.row.Render(line))
			b.WriteString("\n")
		}
	}

	if modal.Err != "" {
		b.WriteString("\n")
		b.WriteString(m.styles.errText.Render(modal.Err))
		b.WriteString("\n")
	}
	return m.styles.box.Render(b.String()) + "\n"
}

func (m Model) renderConfirm(confirm panel.Confirm) string {
	if confirm.Err != "" {
		return m.styles.errText.Render(confirm.Err)
	}
	return m.styles.warn.Render(confirm.Label)
}

func (m Model) renderPopup(popup panel.Popup) string {
	body := m.styles.boxTitle.Render(popup.Title) + "\n\n" + m.styles.row.Render(popup.Body)
	return m.styles.box.Render(body)
}

func (m Model) helpLine() string {
	if popup := m.ctrl.Popup(); popup.Visible {
		return "any key to dismiss"
	}
	if confirm := m.ctrl.Confirm(); confirm.Active {
		if confirm.Err != "" {
			return "any key to continue"
		}
		return "y confirm · n cancel"
	}
	modal := m.ctrl.Modal()
	switch modal.State {
	case panel.ModalEditable:
		return "enter save · esc cancel · tab next field"
	case panel.ModalReadOnly:
		if modal.Kind == panel.ModalGroup {
			return "e edit · a add member · 1-9 remove member · esc back"
		}
		return "e edit · esc back"
	}
	if m.searching {
		return "type to filter · enter done · esc clear"
	}
	switch m.ctrl.ActiveTab() {
	case panel.TabDashboard:
		return "1-5 tabs · j/k move · enter detail · r reload · t theme · L lock · q quit"
	case panel.TabModels:
		return "1-5 tabs · / search · enter inspect · r reload · t theme · L lock · q quit"
	default:
		return "1-5 tabs · / search · enter open · n new · d delete · r reload · t theme · L lock · q quit"
	}
}

// cell truncates to the column width and pads with spaces, leaving a two
// space gutter before the next column.
func cell(s string, width int) string {
	s = shorten(s, width)
	if gap := width - utf8.RuneCountInString(s); gap > 0 {
		s += strings.Repeat(" ", gap)
	}
	return s + "  "
}

// shorten cuts a string to width runes, marking the cut with an ellipsis.
func shorten(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(runes[:width-1]) + "…"
}
