// Package tui renders the admin console as a full-screen terminal
// program: a lock screen in front of the session gate, one tab per
// resource collection and the modal, confirmation and popup overlays of
// the interaction controller. All remote calls run as commands; their
// results feed back into the single event loop.
package tui

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/unigw/unigw/internal/console"
	"github.com/unigw/unigw/internal/panel"
	"github.com/unigw/unigw/internal/view"
)

const (
	requestTimeout = 10 * time.Second
	statsInterval  = 3 * time.Second
	popupLifetime  = 3 * time.Second
)

// Model is the bubbletea model of the console.
type Model struct {
	client   *console.Client
	gate     *console.Gate
	settings *console.Settings
	ctrl     *panel.Controller

	styles uiStyles
	theme  string

	width  int
	height int

	keyInput  string
	loginErr  string
	loggingIn bool

	searchInput string
	searching   bool

	cursor   int
	fieldIdx int

	loading  bool
	polling  bool
	status   string
	quitting bool
}

// NewModel builds the program model. The gate decides which surface
// renders; everything else hangs off the controller.
func NewModel(client *console.Client, gate *console.Gate, settings *console.Settings) Model {
	theme := console.ThemeDark
	if settings != nil {
		theme = settings.Theme()
	}
	return Model{
		client:   client,
		gate:     gate,
		settings: settings,
		ctrl:     panel.NewController(),
		theme:    theme,
		styles:   buildStyles(theme),
	}
}

// Run starts the console program in the alternate screen and blocks
// until it exits.
func Run(client *console.Client, gate *console.Gate, settings *console.Settings) error {
	_, err := tea.NewProgram(NewModel(client, gate, settings), tea.WithAltScreen()).Run()
	return err
}

// Messages carried back from commands.
type (
	loginMsg  struct{ err error }
	logoutMsg struct{}

	statsMsg struct {
		stats console.Stats
		err   error
	}
	providersMsg struct {
		rows    []console.Provider
		refresh bool
		err     error
	}
	keysMsg struct {
		rows    []console.AccessKey
		refresh bool
		err     error
	}
	modelsMsg struct {
		rows    []console.Model
		refresh bool
		err     error
	}
	groupsMsg struct {
		rows    []console.Group
		refresh bool
		err     error
	}

	saveMsg struct {
		result json.RawMessage
		err    error
	}
	deleteMsg struct {
		tab panel.Tab
		err error
	}

	statsTickMsg time.Time
	popupTickMsg struct{ gen int }
)

// Init waits for the first login; the lock screen drives everything
// before that.
func (m Model) Init() tea.Cmd { return nil }

func (m Model) loginCmd(masterKey string) tea.Cmd {
	gate := m.gate
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return loginMsg{err: gate.Unlock(ctx, masterKey)}
	}
}

func (m Model) logoutCmd() tea.Cmd {
	gate := m.gate
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		gate.Lock(ctx)
		return logoutMsg{}
	}
}

// loadCmd fetches one tab's dataset. The refresh flag decides whether
// the collection keeps its search and page when the rows arrive.
func (m Model) loadCmd(tab panel.Tab, refresh bool) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		switch tab {
		case panel.TabDashboard:
			stats, err := client.Stats(ctx)
			return statsMsg{stats: stats, err: err}
		case panel.TabProviders:
			rows, err := client.Providers(ctx)
			return providersMsg{rows: rows, refresh: refresh, err: err}
		case panel.TabKeys:
			rows, err := client.Keys(ctx)
			return keysMsg{rows: rows, refresh: refresh, err: err}
		case panel.TabModels:
			rows, err := client.Models(ctx)
			return modelsMsg{rows: rows, refresh: refresh, err: err}
		default:
			rows, err := client.Groups(ctx)
			return groupsMsg{rows: rows, refresh: refresh, err: err}
		}
	}
}

func (m Model) callCmd(req panel.Request) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		result, err := client.Call(ctx, req.Method, req.Path, requestBody(req))
		return saveMsg{result: result, err: err}
	}
}

func (m Model) deleteCmd(req panel.Request, tab panel.Tab) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		_, err := client.Call(ctx, req.Method, req.Path, requestBody(req))
		return deleteMsg{tab: tab, err: err}
	}
}

// requestBody keeps a nil map from marshaling as a JSON null body.
func requestBody(req panel.Request) any {
	if req.Body == nil {
		return nil
	}
	return req.Body
}

func statsTickCmd() tea.Cmd {
	return tea.Tick(statsInterval, func(t time.Time) tea.Msg { return statsTickMsg(t) })
}

func popupTickCmd(gen int) tea.Cmd {
	return tea.Tick(popupLifetime, func(time.Time) tea.Msg { return popupTickMsg{gen: gen} })
}

// enterTab activates a surface and starts its load. The groups tab also
// refreshes providers because the member form resolves them by name.
func (m *Model) enterTab(tab panel.Tab) tea.Cmd {
	m.ctrl.SwitchTab(tab)
	m.cursor = 0
	m.searchInput = ""
	m.searching = false
	m.status = ""

	if tab == panel.TabDashboard {
		_, hasStats := m.ctrl.Stats()
		m.loading = !hasStats
		if m.polling {
			return nil
		}
		m.polling = true
		return m.loadCmd(tab, false)
	}

	m.loading = true
	if tab == panel.TabGroups {
		return tea.Batch(m.loadCmd(tab, false), m.loadCmd(panel.TabProviders, true))
	}
	return m.loadCmd(tab, false)
}

// Update routes messages into the controller and schedules follow-up
// commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case loginMsg:
		m.loggingIn = false
		if msg.err != nil {
			m.loginErr = msg.err.Error()
			return m, nil
		}
		m.loginErr = ""
		m.keyInput = ""
		return m, m.enterTab(panel.TabDashboard)

	case logoutMsg:
		// Explicit logout resets the whole client state; the next login
		// re-derives everything from the server. The polling flag stays
		// as is: a scheduled tick dies on its own once it sees the
		// locked gate.
		m.ctrl = panel.NewController()
		m.cursor = 0
		m.searching = false
		m.searchInput = ""
		m.keyInput = ""
		m.status = ""
		m.loading = false
		return m, nil

	case statsMsg:
		if msg.err == nil {
			m.ctrl.ApplyStats(msg.stats)
		}
		if m.ctrl.ActiveTab() == panel.TabDashboard {
			m.loading = false
			m.status = loadStatus(msg.err)
			m.cursor = clampInt(m.cursor, 0, maxInt(0, m.visibleRowCount()-1))
		}
		if m.gate.Unlocked() && m.ctrl.ActiveTab() == panel.TabDashboard {
			return m, statsTickCmd()
		}
		m.polling = false
		return m, nil

	case statsTickMsg:
		if m.gate.Unlocked() && m.ctrl.ActiveTab() == panel.TabDashboard {
			return m, m.loadCmd(panel.TabDashboard, false)
		}
		m.polling = false
		return m, nil

	case providersMsg:
		if msg.err == nil {
			m.ctrl.ApplyProviders(msg.rows, msg.refresh)
		}
		return m.afterLoad(panel.TabProviders, msg.err), nil

	case keysMsg:
		if msg.err == nil {
			m.ctrl.ApplyKeys(msg.rows, msg.refresh)
		}
		return m.afterLoad(panel.TabKeys, msg.err), nil

	case modelsMsg:
		if msg.err == nil {
			m.ctrl.ApplyModels(msg.rows, msg.refresh)
		}
		return m.afterLoad(panel.TabModels, msg.err), nil

	case groupsMsg:
		if msg.err == nil {
			m.ctrl.ApplyGroups(msg.rows, msg.refresh)
		}
		return m.afterLoad(panel.TabGroups, msg.err), nil

	case saveMsg:
		if msg.err != nil {
			if !errors.Is(msg.err, console.ErrUnauthorized) {
				m.ctrl.SaveFailed(msg.err)
			}
			return m, nil
		}
		tab := m.ctrl.SaveSucceeded(msg.result)
		cmd := m.loadCmd(tab, true)
		if tab == panel.TabGroups {
			cmd = tea.Batch(cmd, m.loadCmd(panel.TabProviders, true))
		}
		return m, cmd

	case deleteMsg:
		if errors.Is(msg.err, console.ErrUnauthorized) {
			m.ctrl.DismissConfirm()
			return m, nil
		}
		m.ctrl.ConfirmResult(msg.err)
		if msg.err == nil {
			return m, m.loadCmd(msg.tab, true)
		}
		return m, nil

	case popupTickMsg:
		m.ctrl.ExpirePopup(msg.gen)
		return m, nil
	}
	return m, nil
}

// afterLoad clears the loading state when the arriving rows belong to
// the surface on screen.
func (m Model) afterLoad(tab panel.Tab, err error) Model {
	if m.ctrl.ActiveTab() != tab {
		return m
	}
	m.loading = false
	m.status = loadStatus(err)
	m.cursor = clampInt(m.cursor, 0, maxInt(0, m.visibleRowCount()-1))
	return m
}

func loadStatus(err error) string {
	if err == nil || errors.Is(err, console.ErrUnauthorized) {
		return ""
	}
	return "load failed: " + err.Error()
}

func (m Model) visibleRowCount() int {
	switch m.ctrl.ActiveTab() {
	case panel.TabDashboard:
		if stats, ok := m.ctrl.Stats(); ok {
			return len(stats.LiveRequests)
		}
	case panel.TabProviders:
		return len(m.ctrl.Providers().VisiblePage())
	case panel.TabKeys:
		return len(m.ctrl.Keys().VisiblePage())
	case panel.TabModels:
		return len(m.ctrl.Models().VisiblePage())
	case panel.TabGroups:
		return len(m.ctrl.Groups().VisiblePage())
	}
	return 0
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.quitting = true
		return m, tea.Quit
	}

	if !m.gate.Unlocked() {
		return m.handleLockedKey(msg)
	}
	if popup := m.ctrl.Popup(); popup.Visible {
		m.ctrl.DismissPopup()
		return m, nil
	}
	if m.ctrl.Confirm().Active {
		return m.handleConfirmKey(msg)
	}
	if m.ctrl.Modal().State != panel.ModalClosed {
		return m.handleModalKey(msg)
	}
	if m.searching {
		return m.handleSearchKey(msg)
	}
	return m.handleListKey(msg)
}

func (m Model) handleLockedKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		if m.loggingIn || m.keyInput == "" {
			return m, nil
		}
		m.loggingIn = true
		m.loginErr = ""
		return m, m.loginCmd(m.keyInput)
	case tea.KeyEsc:
		m.keyInput = ""
		m.loginErr = ""
		return m, nil
	case tea.KeyBackspace:
		m.keyInput = trimLastRune(m.keyInput)
		return m, nil
	case tea.KeyRunes:
		m.keyInput += string(msg.Runes)
		return m, nil
	case tea.KeySpace:
		m.keyInput += " "
		return m, nil
	}
	return m, nil
}

func (m Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	confirm := m.ctrl.Confirm()
	if confirm.Err != "" {
		m.ctrl.DismissConfirm()
		return m, nil
	}
	switch msg.String() {
	case "y", "Y", "enter":
		req, ok := m.ctrl.DeleteRequest()
		if !ok {
			return m, nil
		}
		return m, m.deleteCmd(req, confirm.Tab)
	case "esc", "n", "N", "q":
		m.ctrl.DismissConfirm()
	}
	return m, nil
}

func (m Model) handleModalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	modal := m.ctrl.Modal()

	if modal.State == panel.ModalReadOnly {
		switch msg.String() {
		case "e":
			if m.ctrl.BeginEdit() {
				m.fieldIdx = nextEditable(m.ctrl.Modal().Fields, -1, 1)
			}
		case "a":
			if modal.Kind == panel.ModalGroup {
				if group, ok := m.groupByID(modal.GroupID); ok {
					m.ctrl.OpenAddMember(group)
					m.fieldIdx = 0
				}
			}
		case "1", "2", "3", "4", "5", "6", "7", "8", "9":
			if modal.Kind == panel.ModalGroup {
				idx := int(msg.String()[0] - '1')
				if group, ok := m.groupByID(modal.GroupID); ok && idx < len(group.Members) {
					m.ctrl.AskDeleteMember(group, group.Members[idx])
				}
			}
		case "esc", "q":
			m.ctrl.CloseModal()
		}
		return m, nil
	}

	// Editable: field navigation and text input.
	switch msg.Type {
	case tea.KeyEsc:
		m.ctrl.Cancel()
		return m, nil
	case tea.KeyEnter:
		req, ok := m.ctrl.SaveRequest()
		if !ok {
			return m, nil
		}
		return m, m.callCmd(req)
	case tea.KeyTab, tea.KeyDown:
		m.fieldIdx = nextEditable(modal.Fields, m.fieldIdx, 1)
		return m, nil
	case tea.KeyShiftTab, tea.KeyUp:
		m.fieldIdx = nextEditable(modal.Fields, m.fieldIdx, -1)
		return m, nil
	case tea.KeyBackspace:
		if m.fieldIdx < len(modal.Fields) {
			m.ctrl.SetField(m.fieldIdx, trimLastRune(modal.Fields[m.fieldIdx].Value))
		}
		return m, nil
	case tea.KeyRunes:
		if m.fieldIdx < len(modal.Fields) {
			m.ctrl.SetField(m.fieldIdx, modal.Fields[m.fieldIdx].Value+string(msg.Runes))
		}
		return m, nil
	case tea.KeySpace:
		if m.fieldIdx < len(modal.Fields) {
			m.ctrl.SetField(m.fieldIdx, modal.Fields[m.fieldIdx].Value+" ")
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.searching = false
		m.searchInput = ""
		m.ctrl.Search("")
		m.cursor = 0
		return m, nil
	case tea.KeyEnter:
		m.searching = false
		return m, nil
	case tea.KeyBackspace:
		m.searchInput = trimLastRune(m.searchInput)
	case tea.KeyRunes:
		m.searchInput += string(msg.Runes)
	case tea.KeySpace:
		m.searchInput += " "
	default:
		return m, nil
	}
	m.ctrl.Search(m.searchInput)
	m.cursor = 0
	return m, nil
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	tab := m.ctrl.ActiveTab()

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "1":
		return m, m.enterTab(panel.TabDashboard)
	case "2":
		return m, m.enterTab(panel.TabProviders)
	case "3":
		return m, m.enterTab(panel.TabKeys)
	case "4":
		return m, m.enterTab(panel.TabModels)
	case "5":
		return m, m.enterTab(panel.TabGroups)
	case "tab":
		return m, m.enterTab(nextTab(tab, 1))
	case "shift+tab":
		return m, m.enterTab(nextTab(tab, -1))
	case "/":
		if tab != panel.TabDashboard {
			m.searching = true
			m.searchInput = ""
			m.ctrl.Search("")
			m.cursor = 0
		}
		return m, nil
	case "up", "k":
		m.cursor = clampInt(m.cursor-1, 0, maxInt(0, m.visibleRowCount()-1))
		return m, nil
	case "down", "j":
		m.cursor = clampInt(m.cursor+1, 0, maxInt(0, m.visibleRowCount()-1))
		return m, nil
	case "left", "h", "[":
		m.ctrl.ChangePage(-1)
		m.cursor = clampInt(m.cursor, 0, maxInt(0, m.visibleRowCount()-1))
		return m, nil
	case "right", "l", "]":
		m.ctrl.ChangePage(1)
		m.cursor = clampInt(m.cursor, 0, maxInt(0, m.visibleRowCount()-1))
		return m, nil
	case "enter":
		cmd := m.openDetail()
		m.fieldIdx = 0
		return m, cmd
	case "n":
		if m.ctrl.OpenCreate(tab) {
			m.fieldIdx = 0
		}
		return m, nil
	case "d":
		m.askDelete()
		return m, nil
	case "r":
		m.loading = true
		if tab == panel.TabDashboard {
			if m.polling {
				return m, nil
			}
			m.polling = true
		}
		return m, m.loadCmd(tab, true)
	case "t":
		return m.toggleTheme()
	case "L":
		return m, m.logoutCmd()
	}
	return m, nil
}

func (m *Model) openDetail() tea.Cmd {
	switch m.ctrl.ActiveTab() {
	case panel.TabDashboard:
		if row, ok := m.selectedFeedRow(); ok {
			body := row.Model + "\n" + row.Time + " · status " + row.Status + " · " + row.Latency
			gen := m.ctrl.ShowPopup("Request", body)
			return popupTickCmd(gen)
		}
	case panel.TabProviders:
		if item, ok := m.selectedProvider(); ok {
			m.ctrl.OpenProviderDetail(item)
		}
	case panel.TabKeys:
		if item, ok := m.selectedKey(); ok {
			m.ctrl.OpenKeyDetail(item)
		}
	case panel.TabModels:
		if item, ok := m.selectedModel(); ok {
			m.ctrl.ShowStickyPopup("Model", item.ID+"\n\nowned by "+item.OwnedBy)
		}
	case panel.TabGroups:
		if item, ok := m.selectedGroup(); ok {
			m.ctrl.OpenGroupDetail(item)
		}
	}
	return nil
}

func (m *Model) askDelete() {
	switch m.ctrl.ActiveTab() {
	case panel.TabProviders:
		if item, ok := m.selectedProvider(); ok {
			m.ctrl.AskDeleteProvider(item)
		}
	case panel.TabKeys:
		if item, ok := m.selectedKey(); ok {
			m.ctrl.AskDeleteKey(item)
		}
	case panel.TabGroups:
		if item, ok := m.selectedGroup(); ok {
			m.ctrl.AskDeleteGroup(item)
		}
	}
}

func (m Model) toggleTheme() (tea.Model, tea.Cmd) {
	if m.theme == console.ThemeDark {
		m.theme = console.ThemeLight
	} else {
		m.theme = console.ThemeDark
	}
	m.styles = buildStyles(m.theme)

	body := "Using the " + m.theme + " theme."
	if m.settings != nil {
		if errSave := m.settings.SaveTheme(m.theme); errSave != nil {
			body = "Theme switched, saving failed: " + errSave.Error()
		}
	}
	gen := m.ctrl.ShowPopup("Theme", body)
	return m, popupTickCmd(gen)
}

// selectedFeedRow addresses the live feed in display order, oldest
// first, the same order renderDashboard draws.
func (m Model) selectedFeedRow() (view.FeedRow, bool) {
	stats, ok := m.ctrl.Stats()
	if !ok {
		return view.FeedRow{}, false
	}
	rows := view.Dashboard(stats).Feed.Rows
	if m.cursor < 0 || m.cursor >= len(rows) {
		return view.FeedRow{}, false
	}
	return rows[m.cursor], true
}

func (m Model) selectedProvider() (console.Provider, bool) {
	rows := m.ctrl.Providers().VisiblePage()
	if m.cursor < 0 || m.cursor >= len(rows) {
		return console.Provider{}, false
	}
	return rows[m.cursor], true
}

func (m Model) selectedKey() (console.AccessKey, bool) {
	rows := m.ctrl.Keys().VisiblePage()
	if m.cursor < 0 || m.cursor >= len(rows) {
		return console.AccessKey{}, false
	}
	return rows[m.cursor], true
}

func (m Model) selectedModel() (console.Model, bool) {
	rows := m.ctrl.Models().VisiblePage()
	if m.cursor < 0 || m.cursor >= len(rows) {
		return console.Model{}, false
	}
	return rows[m.cursor], true
}

func (m Model) selectedGroup() (console.Group, bool) {
	rows := m.ctrl.Groups().VisiblePage()
	if m.cursor < 0 || m.cursor >= len(rows) {
		return console.Group{}, false
	}
	return rows[m.cursor], true
}

func (m Model) groupByID(id uint64) (console.Group, bool) {
	for _, group := range m.ctrl.Groups().Data() {
		if group.ID == id {
			return group, true
		}
	}
	return console.Group{}, false
}

func nextTab(tab panel.Tab, dir int) panel.Tab {
	for i, candidate := range panel.Tabs {
		if candidate == tab {
			next := (i + dir + len(panel.Tabs)) % len(panel.Tabs)
			return panel.Tabs[next]
		}
	}
	return panel.TabDashboard
}

// nextEditable walks the field list cyclically, skipping read-only
// fields. With nothing editable it stays put.
func nextEditable(fields []panel.Field, from, dir int) int {
	if len(fields) == 0 {
		return 0
	}
	idx := from
	for i := 0; i < len(fields); i++ {
		idx = (idx + dir + len(fields)) % len(fields)
		if !fields[idx].ReadOnly {
			return idx
		}
	}
	return maxInt(from, 0)
}

func trimLastRune(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	return string(runes[:len(runes)-1])
}

func clampInt(v, low, high int) int {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
