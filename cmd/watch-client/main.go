package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"stockwatch/internal/config"
	"stockwatch/internal/domain"
	"stockwatch/internal/termchart"
	"stockwatch/internal/util"
	"stockwatch/internal/watch"
	"stockwatch/pkg/watchlist"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("4"))
	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("8"))
	symbolStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	activeStyle   = lipgloss.NewStyle().Bold(true).Reverse(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	upStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	downStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	promptStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
)

// How long a notification stays in the status line.
const notificationTTL = 4 * time.Second

type tickMsg time.Time

type reloadedMsg struct{ err error }

type actionDoneMsg struct {
	kind watch.ActionKind
	err  error
}

type notifyMsg watch.Notification

type hiddenMsg watch.HiddenEvent

// clearNoticeMsg expires the notification shown at the carried time.
type clearNoticeMsg time.Time

// repaintMsg redraws while a period switch is in flight so the card shows
// its loading state.
type repaintMsg struct{}

func repaintCmd() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(time.Time) tea.Msg { return repaintMsg{} })
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func waitNotify(ch <-chan watch.Notification) tea.Cmd {
	return func() tea.Msg { return notifyMsg(<-ch) }
}

func clearNoticeCmd(at time.Time) tea.Cmd {
	return tea.Tick(notificationTTL, func(time.Time) tea.Msg { return clearNoticeMsg(at) })
}

func waitHidden(ch <-chan watch.HiddenEvent) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return nil
		}
		return hiddenMsg(e)
	}
}

// Add-form fields, in tab order.
const (
	fieldSymbol = iota
	fieldPrice
	fieldDate
	fieldNotes
	fieldCount
)

type model struct {
	ctx     context.Context
	mgr     *watch.Manager
	log     *slog.Logger
	refresh time.Duration
	baseURL string

	notifyCh <-chan watch.Notification
	hiddenCh <-chan watch.HiddenEvent

	cards      []watch.CardView
	selCard    int
	selNotice  int
	loading    bool
	lastLoaded time.Time

	notice   watch.Notification
	noticeAt time.Time

	confirm *watch.Action
	prompt  string

	adding bool
	inputs []textinput.Model
	focus  int

	viewport viewport.Model
	ready    bool
	width    int
	height   int
}

func newInputs() []textinput.Model {
	inputs := make([]textinput.Model, fieldCount)
	placeholders := [fieldCount]string{"Symbol (e.g. AAPL)", "Price noticed (blank = current)", "Date YYYY-MM-DD (blank = today)", "Notes"}
	for i := range inputs {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.Prompt = "  "
		inputs[i] = ti
	}
	inputs[fieldSymbol].CharLimit = 10
	inputs[fieldPrice].CharLimit = 16
	inputs[fieldDate].CharLimit = 10
	return inputs
}

func initialModel(ctx context.Context, mgr *watch.Manager, notifyCh <-chan watch.Notification, hiddenCh <-chan watch.HiddenEvent, cfg *config.Config, log *slog.Logger) model {
	return model{
		ctx:      ctx,
		mgr:      mgr,
		log:      log,
		refresh:  cfg.Client.AutoRefresh,
		baseURL:  cfg.Client.BaseURL,
		notifyCh: notifyCh,
		hiddenCh: hiddenCh,
		loading:  true,
		inputs:   newInputs(),
	}
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.reloadCmd(),
		waitNotify(m.notifyCh),
		waitHidden(m.hiddenCh),
	}
	if m.refresh > 0 {
		cmds = append(cmds, tickCmd(m.refresh))
	}
	return tea.Batch(cmds...)
}

func (m model) reloadCmd() tea.Cmd {
	mgr, ctx := m.mgr, m.ctx
	return func() tea.Msg { return reloadedMsg{err: mgr.Reload(ctx)} }
}

func (m model) dispatchCmd(a watch.Action) tea.Cmd {
	mgr, ctx := m.mgr, m.ctx
	return func() tea.Msg { return actionDoneMsg{kind: a.Kind, err: mgr.Dispatch(ctx, a)} }
}

func (m model) addCmd(f watch.AddForm) tea.Cmd {
	mgr, ctx := m.mgr, m.ctx
	return func() tea.Msg {
		_, err := mgr.AddNotice(ctx, f)
		return reloadedMsg{err: err}
	}
}

func (m model) priceCmd(symbol string) tea.Cmd {
	mgr, ctx := m.mgr, m.ctx
	return func() tea.Msg {
		_, _ = mgr.FetchPrice(ctx, symbol)
		return nil
	}
}

func (m *model) selected() (watch.CardView, bool) {
	if m.selCard < 0 || m.selCard >= len(m.cards) {
		return watch.CardView{}, false
	}
	return m.cards[m.selCard], true
}

func (m *model) selectedNotice() (watch.NoticeView, bool) {
	c, ok := m.selected()
	if !ok || m.selNotice < 0 || m.selNotice >= len(c.Notices) {
		return watch.NoticeView{}, false
	}
	return c.Notices[m.selNotice], true
}

// syncCards re-renders from the manager and clamps the selection.
func (m *model) syncCards() {
	prev, had := m.selected()
	m.cards = m.mgr.Cards()
	if had {
		for i, c := range m.cards {
			if c.ID == prev.ID {
				m.selCard = i
				break
			}
		}
	}
	if m.selCard >= len(m.cards) {
		m.selCard = len(m.cards) - 1
	}
	if m.selCard < 0 {
		m.selCard = 0
	}
	if c, ok := m.selected(); !ok || m.selNotice >= len(c.Notices) {
		m.selNotice = 0
	}
	if m.ready {
		m.viewport.SetContent(m.renderContent())
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.confirm != nil {
			return m.updateConfirm(msg)
		}
		if m.adding {
			return m.updateForm(msg)
		}
		return m.updateKeys(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := m.height - 3 // header, status, footer
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.MouseWheelEnabled = true
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.viewport.SetContent(m.renderContent())
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.reloadCmd(), tickCmd(m.refresh))

	case reloadedMsg:
		m.loading = false
		if msg.err == nil {
			m.lastLoaded = time.Now()
		}
		m.syncCards()
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			m.log.Warn("action failed", "action", msg.kind, "error", msg.err)
		}
		m.syncCards()
		return m, nil

	case notifyMsg:
		m.notice = watch.Notification(msg)
		m.noticeAt = time.Now()
		return m, tea.Batch(waitNotify(m.notifyCh), clearNoticeCmd(m.noticeAt))

	case clearNoticeMsg:
		// A newer notification keeps its own timer.
		if m.noticeAt.Equal(time.Time(msg)) {
			m.notice = watch.Notification{}
		}
		return m, nil

	case repaintMsg:
		m.syncCards()
		return m, nil

	case hiddenMsg:
		m.log.Debug("hidden set changed", "type", msg.Type, "ids", msg.IDs)
		m.syncCards()
		return m, waitHidden(m.hiddenCh)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.selCard > 0 {
			m.selCard--
			m.selNotice = 0
		}
		m.viewport.SetContent(m.renderContent())
		m.ensureVisible()
		return m, nil

	case "down", "j":
		if m.selCard < len(m.cards)-1 {
			m.selCard++
			m.selNotice = 0
		}
		m.viewport.SetContent(m.renderContent())
		m.ensureVisible()
		return m, nil

	case "left", "right":
		if c, ok := m.selected(); ok && len(c.Notices) > 0 {
			if key == "left" && m.selNotice > 0 {
				m.selNotice--
			}
			if key == "right" && m.selNotice < len(c.Notices)-1 {
				m.selNotice++
			}
			m.viewport.SetContent(m.renderContent())
		}
		return m, nil

	case "1", "2", "3", "4":
		c, ok := m.selected()
		if !ok {
			return m, nil
		}
		p := domain.Periods[int(key[0]-'1')]
		a := watch.Action{Kind: watch.ActionPeriod, CardID: c.ID, Period: p}
		return m, tea.Batch(m.dispatchCmd(a), repaintCmd())

	case "h":
		n, ok := m.selectedNotice()
		if !ok {
			return m, nil
		}
		return m, m.dispatchCmd(watch.Action{Kind: watch.ActionHide, NoticeID: n.ID})

	case "s":
		c, ok := m.selected()
		if !ok || c.HiddenCount == 0 {
			return m, nil
		}
		return m, m.dispatchCmd(watch.Action{Kind: watch.ActionShowHidden, CardID: c.ID})

	case "d":
		c, ok := m.selected()
		if !ok {
			return m, nil
		}
		a := watch.Action{Kind: watch.ActionRemove, CardID: c.ID, Confirm: watch.AlwaysConfirm}
		m.confirm, m.prompt = &a, fmt.Sprintf("Remove %s and all its notices? (y/n)", c.Symbol)
		return m, nil

	case "x":
		n, ok := m.selectedNotice()
		if !ok {
			return m, nil
		}
		a := watch.Action{Kind: watch.ActionDeleteNotice, NoticeID: n.ID, Confirm: watch.AlwaysConfirm}
		m.confirm, m.prompt = &a, "Delete this stock? (y/n)"
		return m, nil

	case "r":
		m.loading = true
		return m, m.reloadCmd()

	case "a":
		m.adding = true
		m.focus = fieldSymbol
		m.inputs = newInputs()
		return m, m.inputs[fieldSymbol].Focus()

	case "p":
		c, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, m.priceCmd(c.Symbol)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		a := *m.confirm
		m.confirm, m.prompt = nil, ""
		return m, m.dispatchCmd(a)
	case "n", "N", "esc", "ctrl+c":
		m.confirm, m.prompt = nil, ""
	}
	return m, nil
}

func (m model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+c":
		m.adding = false
		return m, nil
	case "tab", "down":
		cmd := m.focusField((m.focus + 1) % fieldCount)
		return m, cmd
	case "shift+tab", "up":
		cmd := m.focusField((m.focus + fieldCount - 1) % fieldCount)
		return m, cmd
	case "ctrl+p":
		return m, m.priceCmd(m.inputs[fieldSymbol].Value())
	case "enter":
		f := watch.AddForm{
			Symbol: m.inputs[fieldSymbol].Value(),
			Price:  m.inputs[fieldPrice].Value(),
			Date:   m.inputs[fieldDate].Value(),
			Notes:  m.inputs[fieldNotes].Value(),
		}
		m.adding = false
		return m, m.addCmd(f)
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *model) focusField(i int) tea.Cmd {
	m.inputs[m.focus].Blur()
	m.focus = i
	return m.inputs[i].Focus()
}

// cardHeight is the number of lines a rendered card occupies.
func (m *model) cardHeight(c watch.CardView) int {
	h := 3 + len(c.Notices) // title, chart caption line, spacer
	if st, ok := m.mgr.Charts().Status(c.ID); ok && st.State == watch.ChartRendered {
		h += m.chartLines(st)
	} else {
		h++
	}
	if c.HiddenCount > 0 {
		h++
	}
	return h
}

func (m *model) chartLines(st watch.ChartStatus) int {
	return strings.Count(st.Chart.View(m.width-4), "\n") + 1
}

// ensureVisible scrolls the viewport so the selected card is in view.
func (m *model) ensureVisible() {
	line := 0
	for i := 0; i < m.selCard && i < len(m.cards); i++ {
		line += m.cardHeight(m.cards[i])
	}
	if line < m.viewport.YOffset {
		m.viewport.SetYOffset(line)
	} else if line >= m.viewport.YOffset+m.viewport.Height {
		m.viewport.SetYOffset(line - m.viewport.Height + 4)
	}
}

func (m model) View() string {
	if !m.ready {
		return "Loading..."
	}

	hidden := m.mgr.Store().Hidden().Len()
	status := "ready"
	if m.loading {
		status = "loading..."
	} else if !m.lastLoaded.IsZero() {
		status = "updated " + m.lastLoaded.Format("15:04:05")
	}
	headerText := fmt.Sprintf(" stockwatch  %s    symbols: %d    hidden: %d    %s ",
		m.baseURL, len(m.cards), hidden, status)
	headerBar := headerStyle.Render(padOrTrunc(headerText, m.width))

	statusLine := ""
	switch {
	case m.confirm != nil:
		statusLine = promptStyle.Render(" " + m.prompt)
	case m.notice.Message != "" && time.Since(m.noticeAt) < notificationTTL:
		style := dimStyle
		switch m.notice.Level {
		case watch.LevelSuccess:
			style = successStyle
		case watch.LevelError:
			style = errorStyle
		}
		statusLine = style.Render(" " + m.notice.Message)
	}

	footerLeft := " q quit  up/dn card  left/right notice  1-4 period  h hide  s show  x delete  d remove  a add  p price  r refresh"
	if m.adding {
		footerLeft = " tab next field  enter save  ctrl+p fetch price  esc cancel"
	}
	pct := m.viewport.ScrollPercent() * 100
	footerRight := fmt.Sprintf("%.0f%% ", pct)
	gap := m.width - len(footerLeft) - len(footerRight)
	if gap < 0 {
		gap = 0
	}
	footerBar := footerStyle.Render(padOrTrunc(footerLeft+strings.Repeat(" ", gap)+footerRight, m.width))

	body := m.viewport.View()
	if m.adding {
		body = m.renderForm()
	}
	return headerBar + "\n" + body + "\n" + statusLine + "\n" + footerBar
}

func (m model) renderForm() string {
	var b strings.Builder
	b.WriteString(symbolStyle.Render("  Add a stock"))
	b.WriteString("\n\n")
	labels := [fieldCount]string{"Symbol", "Price", "Date", "Notes"}
	for i, in := range m.inputs {
		label := dimStyle.Render(fmt.Sprintf("  %-7s", labels[i]))
		if i == m.focus {
			label = selectedStyle.Render(fmt.Sprintf("> %-7s", labels[i]))
		}
		b.WriteString(label + in.View() + "\n")
	}
	lines := strings.Count(b.String(), "\n")
	for ; lines < m.viewport.Height; lines++ {
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (m model) renderContent() string {
	var b strings.Builder
	if len(m.cards) == 0 {
		if m.loading {
			b.WriteString(dimStyle.Render("  Loading..."))
		} else {
			b.WriteString(dimStyle.Render("  No stocks tracked yet. Press a to add one."))
		}
		return b.String()
	}
	for i, c := range m.cards {
		m.renderCard(&b, c, i == m.selCard)
	}
	return b.String()
}

func (m model) renderCard(b *strings.Builder, c watch.CardView, selected bool) {
	marker := "  "
	sym := symbolStyle.Render(c.Symbol)
	if selected {
		marker = selectedStyle.Render("> ")
		sym = selectedStyle.Render(c.Symbol)
	}

	var periods []string
	for _, p := range c.Periods {
		label := " " + p.Label + " "
		if p.Active {
			label = activeStyle.Render(label)
		} else {
			label = dimStyle.Render(label)
		}
		periods = append(periods, label)
	}
	b.WriteString(fmt.Sprintf("%s%-8s %12s   %s\n", marker, sym, c.Price, strings.Join(periods, " ")))

	st, _ := m.mgr.Charts().Status(c.ID)
	switch st.State {
	case watch.ChartRendered:
		b.WriteString(indent(st.Chart.View(m.width-4), "    "))
		b.WriteString("\n")
	case watch.ChartLoading:
		b.WriteString(dimStyle.Render("    loading chart...") + "\n")
	case watch.ChartFailed:
		b.WriteString(errorStyle.Render("    chart unavailable: "+watchlist.UserMessage(st.Err)) + "\n")
	default:
		b.WriteString(dimStyle.Render("    no chart data") + "\n")
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("    %s  %d points", st.Period, st.Points)) + "\n")

	for j, n := range c.Notices {
		style := dimStyle
		switch n.Trend {
		case "up":
			style = upStyle
		case "down":
			style = downStyle
		}
		row := fmt.Sprintf("    %s  %-14s  noticed %-10s  %s", n.Date, n.Age, n.PriceNoticed, style.Render(n.Change))
		if n.Notes != "" {
			row += "  " + dimStyle.Render(n.Notes)
		}
		if selected && j == m.selNotice {
			row = selectedStyle.Render("  *") + row[3:]
		}
		b.WriteString(row + "\n")
	}
	if c.HiddenCount > 0 {
		b.WriteString(dimStyle.Render("    "+c.ShowHiddenLabel+" (s)") + "\n")
	}
	b.WriteString("\n")
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// padOrTrunc pads s with spaces to width, or truncates if longer.
func padOrTrunc(s string, width int) string {
	if width <= 0 {
		return ""
	}
	n := len(s)
	if n >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-n)
}

func main() {
	cfgPath := flag.String("config", config.Path(), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI, so logs always go to a file.
	logPath := cfg.Logging.File
	if logPath == "" {
		logPath = filepath.Join(os.TempDir(), fmt.Sprintf("watch-client-%s.log", time.Now().Format("2006-01-02")))
	}
	logFile, err := util.RotatingFile(logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format, logFile)
	util.SetDefault(logger)

	client := watchlist.NewClient(cfg.Client.BaseURL, cfg.Client.Timeout)
	hidden := watch.NewHiddenStore(filepath.Join(cfg.Client.StateDir, "hidden.json"), logger)

	notifyCh := make(chan watch.Notification, 16)
	mgr, err := watch.NewManager(watch.Options{
		API:    client,
		Store:  watch.NewStore(hidden),
		Charts: termchart.NewFactory(cfg.Client.ChartHeight),
		Notify: watch.NotifyFunc(func(n watch.Notification) {
			select {
			case notifyCh <- n:
			default:
				logger.Warn("notification dropped", "message", n.Message)
			}
		}),
		Log: logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer mgr.Close()

	_, hiddenCh := hidden.Subscribe(8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("watch-client starting", "server", cfg.Client.BaseURL, "state_dir", cfg.Client.StateDir)

	p := tea.NewProgram(
		initialModel(ctx, mgr, notifyCh, hiddenCh, cfg, logger),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
