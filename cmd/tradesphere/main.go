package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tradesphere/internal/authstore"
	"tradesphere/internal/config"
	"tradesphere/internal/domain"
	"tradesphere/internal/gateway"
	"tradesphere/internal/marketcache"
	"tradesphere/internal/session"
	"tradesphere/internal/trade"
	"tradesphere/internal/util"
)

// Styles.
var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerBarStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	footerBarStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	tabActiveStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6"))
	tabIdleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statValueStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	symbolStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	priceStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	gainStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	recoveryStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("3"))
	colHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	cursorRowBG    = lipgloss.Color("236")
)

// Screens and tabs.
const (
	screenAuth = iota
	screenMain
)

const (
	modeLogin = iota
	modeRegister
)

const (
	tabDashboard = iota
	tabTrading
	tabTransactions
	tabCount
)

var tabNames = [tabCount]string{"Dashboard", "Trading", "Transactions"}

// Messages.
type tickMsg time.Time

type authResultMsg struct {
	user *domain.UserProfile
	err  error
}

type refreshDoneMsg struct{ err error }

type transactionsMsg struct {
	txs []domain.Transaction
	err error
}

type recoveryStatusMsg struct {
	status *domain.RecoveryStatus
	err    error
}

type recoveryClaimMsg struct {
	amount float64
	err    error
}

type tradeResultMsg struct {
	side   domain.Side
	symbol string
	err    error
}

type forcedLogoutMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForcedLogout blocks on the session signal and converts a delivery into
// a message. The command is re-armed after each delivery; a closed signal
// ends the chain.
func waitForcedLogout(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return forcedLogoutMsg{}
	}
}

// Model.
type model struct {
	cfg    *config.Config
	logger *slog.Logger

	appCtx     context.Context
	appCancel  context.CancelFunc
	gw         *gateway.Client
	ctrl       *session.Controller
	sig        *session.Signal
	forcedCh   <-chan struct{}
	cache      *marketcache.Cache
	executor   *trade.Executor
	recovery   *trade.Recovery
	pollCancel context.CancelFunc

	screen   int
	authMode int
	inputs   []textinput.Model // 0=username, 1=password
	focusIdx int
	authBusy bool
	authErr  string
	notice   string

	tab          int
	cursor       int
	qtyInput     textinput.Model
	tradeBusy    bool
	tradeNotice  string
	tradeErr     string
	transactions []domain.Transaction
	recStatus    *domain.RecoveryStatus
	claimBusy    bool

	width, height int
}

func initialModel(cfg *config.Config, logger *slog.Logger, appCtx context.Context, appCancel context.CancelFunc,
	gw *gateway.Client, ctrl *session.Controller, sig *session.Signal, forcedCh <-chan struct{}) model {

	username := textinput.New()
	username.Placeholder = "username"
	username.CharLimit = 64
	username.Width = 28
	username.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.CharLimit = 64
	password.Width = 28

	qty := textinput.New()
	qty.Placeholder = "quantity"
	qty.CharLimit = 9
	qty.Width = 12
	qty.Validate = func(s string) error {
		for _, r := range s {
			if r < '0' || r > '9' {
				return errors.New("digits only")
			}
		}
		return nil
	}

	m := model{
		cfg:       cfg,
		logger:    logger,
		appCtx:    appCtx,
		appCancel: appCancel,
		gw:        gw,
		ctrl:      ctrl,
		sig:       sig,
		forcedCh:  forcedCh,
		screen:    screenAuth,
		inputs:    []textinput.Model{username, password},
		qtyInput:  qty,
	}
	return m
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(), textinput.Blink, waitForcedLogout(m.forcedCh)}
	// A restored session skips the sign-in screen entirely.
	if m.ctrl.State() == session.SignedIn {
		// enterSession mutated the model in main before Run; only the
		// initial data loads remain.
		cmds = append(cmds, m.refreshCmd(true), m.loadTransactionsCmd(), m.recoveryStatusCmd())
	}
	return tea.Batch(cmds...)
}

// enterSession wires the per-user data layer after sign-in and starts the
// background poller.
func (m *model) enterSession(user *domain.UserProfile) {
	m.cache = marketcache.New(m.gw, user.UserID, m.cfg.FreshnessWindow(), m.logger)
	m.executor = trade.NewExecutor(m.gw, m.cache, m.ctrl, user.UserID, m.logger)
	m.recovery = trade.NewRecovery(m.gw, m.cache, m.ctrl, user.UserID, m.logger)

	pollCtx, cancel := context.WithCancel(m.appCtx)
	m.pollCancel = cancel
	go m.cache.Poll(pollCtx, m.cfg.PollInterval())

	m.screen = screenMain
	m.tab = tabDashboard
	m.cursor = 0
	m.authErr = ""
	m.qtyInput.SetValue("")
	m.qtyInput.Focus()
}

// leaveSession tears down the per-user data layer and returns to the
// sign-in screen.
func (m *model) leaveSession() {
	if m.pollCancel != nil {
		m.pollCancel()
		m.pollCancel = nil
	}
	if m.cache != nil {
		m.cache.Reset()
	}
	m.cache = nil
	m.executor = nil
	m.recovery = nil
	m.transactions = nil
	m.recStatus = nil
	m.tradeNotice = ""
	m.tradeErr = ""
	m.claimBusy = false
	m.tradeBusy = false

	m.screen = screenAuth
	m.authMode = modeLogin
	m.focusIdx = 0
	for i := range m.inputs {
		m.inputs[i].SetValue("")
		m.inputs[i].Blur()
	}
	m.inputs[0].Focus()
}

// Commands.

func (m *model) authCmd() tea.Cmd {
	username := strings.TrimSpace(m.inputs[0].Value())
	password := m.inputs[1].Value()
	mode := m.authMode
	ctrl := m.ctrl
	ctx := m.appCtx
	return func() tea.Msg {
		var user *domain.UserProfile
		var err error
		if mode == modeRegister {
			user, err = ctrl.Register(ctx, username, password)
		} else {
			user, err = ctrl.Login(ctx, username, password)
		}
		return authResultMsg{user: user, err: err}
	}
}

func (m *model) refreshCmd(force bool) tea.Cmd {
	cache := m.cache
	ctx := m.appCtx
	return func() tea.Msg {
		return refreshDoneMsg{err: cache.Refresh(ctx, force)}
	}
}

func (m *model) loadTransactionsCmd() tea.Cmd {
	gw := m.gw
	ctx := m.appCtx
	return func() tea.Msg {
		txs, err := gw.Transactions(ctx)
		return transactionsMsg{txs: txs, err: err}
	}
}

func (m *model) recoveryStatusCmd() tea.Cmd {
	rec := m.recovery
	ctx := m.appCtx
	return func() tea.Msg {
		status, err := rec.Status(ctx)
		return recoveryStatusMsg{status: status, err: err}
	}
}

func (m *model) claimCmd() tea.Cmd {
	rec := m.recovery
	ctx := m.appCtx
	return func() tea.Msg {
		amount, err := rec.Claim(ctx)
		return recoveryClaimMsg{amount: amount, err: err}
	}
}

func (m *model) tradeCmd(side domain.Side, stock domain.StockQuote, quantity int64) tea.Cmd {
	ex := m.executor
	ctx := m.appCtx
	return func() tea.Msg {
		_, err := ex.Execute(ctx, side, stock, quantity)
		return tradeResultMsg{side: side, symbol: stock.Symbol, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		// Periodic re-render picks up the refresh indicator and poller
		// results without any per-update plumbing.
		return m, tickCmd()

	case authResultMsg:
		m.authBusy = false
		if msg.err != nil {
			m.authErr = msg.err.Error()
			m.logger.Warn("sign-in failed", "error", msg.err)
			return m, nil
		}
		m.logger.Info("signed in", "user_id", msg.user.UserID, "username", msg.user.Username)
		m.enterSession(msg.user)
		return m, tea.Batch(m.refreshCmd(true), m.loadTransactionsCmd(), m.recoveryStatusCmd())

	case refreshDoneMsg:
		if msg.err != nil {
			m.logger.Warn("refresh cycle", "error", msg.err)
		}
		return m, nil

	case transactionsMsg:
		if msg.err != nil {
			m.logger.Warn("loading transactions", "error", msg.err)
		} else {
			m.transactions = msg.txs
		}
		return m, nil

	case recoveryStatusMsg:
		if msg.err != nil {
			m.logger.Warn("loading recovery status", "error", msg.err)
		} else {
			m.recStatus = msg.status
		}
		return m, nil

	case recoveryClaimMsg:
		m.claimBusy = false
		if msg.err != nil {
			m.tradeErr = msg.err.Error()
			m.logger.Warn("recovery claim failed", "error", msg.err)
			return m, nil
		}
		m.tradeErr = ""
		m.notice = fmt.Sprintf("Recovered $%s", formatMoney(msg.amount))
		m.logger.Info("recovery claimed", "amount", msg.amount)
		return m, tea.Batch(m.recoveryStatusCmd(), m.loadTransactionsCmd())

	case tradeResultMsg:
		m.tradeBusy = false
		if msg.err != nil {
			m.tradeErr = msg.err.Error()
			return m, nil
		}
		m.tradeErr = ""
		m.tradeNotice = fmt.Sprintf("%s %s filled", msg.side, msg.symbol)
		m.qtyInput.SetValue("")
		return m, m.loadTransactionsCmd()

	case forcedLogoutMsg:
		m.logger.Warn("session expired, returning to sign-in")
		m.leaveSession()
		m.authErr = "Session expired. Please sign in again."
		return m, waitForcedLogout(m.forcedCh)
	}

	return m.updateInputs(msg)
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.appCancel()
		return m, tea.Quit
	}

	if m.screen == screenAuth {
		return m.handleAuthKey(msg)
	}
	return m.handleMainKey(msg)
}

func (m model) handleAuthKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "shift+tab", "up", "down":
		if msg.String() == "shift+tab" || msg.String() == "up" {
			m.focusIdx--
		} else {
			m.focusIdx++
		}
		if m.focusIdx >= len(m.inputs) {
			m.focusIdx = 0
		}
		if m.focusIdx < 0 {
			m.focusIdx = len(m.inputs) - 1
		}
		var cmds []tea.Cmd
		for i := range m.inputs {
			if i == m.focusIdx {
				cmds = append(cmds, m.inputs[i].Focus())
			} else {
				m.inputs[i].Blur()
			}
		}
		return m, tea.Batch(cmds...)

	case "ctrl+r":
		if m.authMode == modeLogin {
			m.authMode = modeRegister
		} else {
			m.authMode = modeLogin
		}
		m.authErr = ""
		return m, nil

	case "enter":
		if m.authBusy {
			return m, nil
		}
		if strings.TrimSpace(m.inputs[0].Value()) == "" || m.inputs[1].Value() == "" {
			m.authErr = "Username and password are required."
			return m, nil
		}
		m.authBusy = true
		m.authErr = ""
		return m, m.authCmd()
	}

	return m.updateInputs(msg)
}

func (m model) handleMainKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "left", "right":
		if msg.String() == "left" {
			m.tab = (m.tab + tabCount - 1) % tabCount
		} else {
			m.tab = (m.tab + 1) % tabCount
		}
		m.cursor = 0
		m.tradeErr = ""
		m.notice = ""
		var cmds []tea.Cmd
		if m.tab == tabDashboard {
			cmds = append(cmds, m.recoveryStatusCmd())
		}
		if m.tab == tabTransactions {
			cmds = append(cmds, m.loadTransactionsCmd())
		}
		return m, tea.Batch(cmds...)

	case "ctrl+r":
		return m, m.refreshCmd(true)

	case "ctrl+o":
		m.logger.Info("signing out")
		m.ctrl.Logout()
		m.leaveSession()
		return m, nil
	}

	switch m.tab {
	case tabDashboard:
		if msg.String() == "c" && m.recStatus != nil && m.recStatus.CanRecover && !m.claimBusy {
			m.claimBusy = true
			m.notice = ""
			return m, m.claimCmd()
		}
		if msg.String() == "q" {
			m.appCancel()
			return m, tea.Quit
		}

	case tabTrading:
		stocks := m.cache.Stocks()
		switch msg.String() {
		case "up":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down":
			if m.cursor < len(stocks)-1 {
				m.cursor++
			}
			return m, nil
		case "b", "s":
			if m.tradeBusy || m.cursor >= len(stocks) {
				return m, nil
			}
			qty, err := strconv.ParseInt(m.qtyInput.Value(), 10, 64)
			if err != nil || qty <= 0 {
				m.tradeErr = "Enter a positive quantity first."
				return m, nil
			}
			side := domain.SideBuy
			if msg.String() == "s" {
				side = domain.SideSell
			}
			m.tradeBusy = true
			m.tradeErr = ""
			m.tradeNotice = ""
			return m, m.tradeCmd(side, stocks[m.cursor], qty)
		}

	case tabTransactions:
		if msg.String() == "q" {
			m.appCancel()
			return m, tea.Quit
		}
	}

	return m.updateInputs(msg)
}

// updateInputs routes remaining messages to whichever text input is active.
func (m model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd
	if m.screen == screenAuth {
		for i := range m.inputs {
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
	} else if m.tab == tabTrading {
		m.qtyInput, cmd = m.qtyInput.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// View.

func (m model) View() string {
	if m.screen == screenAuth {
		return m.viewAuth()
	}
	return m.viewMain()
}

func (m model) viewAuth() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString("  " + titleStyle.Render("TradeSphere"))
	b.WriteString("\n\n")

	modeLabel := "Sign in"
	if m.authMode == modeRegister {
		modeLabel = "Create account"
	}
	b.WriteString("  " + statValueStyle.Render(modeLabel))
	b.WriteString("\n\n")
	b.WriteString("  " + m.inputs[0].View() + "\n")
	b.WriteString("  " + m.inputs[1].View() + "\n\n")

	switch {
	case m.authBusy:
		b.WriteString("  " + dimStyle.Render("Working..."))
	case m.authErr != "":
		b.WriteString("  " + errStyle.Render(m.authErr))
	}
	b.WriteString("\n\n")
	b.WriteString("  " + dimStyle.Render("tab fields  enter submit  ctrl+r login/register  ctrl+c quit"))
	b.WriteString("\n")
	return b.String()
}

func (m model) viewMain() string {
	width := m.width
	if width <= 0 {
		width = 100
	}

	user := m.ctrl.CurrentUser()
	username := ""
	if user != nil {
		username = user.Username
	}

	refreshTag := ""
	if m.cache != nil && m.cache.Refreshing() {
		refreshTag = "  refreshing..."
	}
	header := fmt.Sprintf(" TradeSphere  %s  $%s%s ", username, formatMoney(m.ctrl.Balance()), refreshTag)
	headerBar := headerBarStyle.Render(padOrTrunc(header, width))

	var tabs []string
	for i, name := range tabNames {
		label := " " + name + " "
		if i == m.tab {
			tabs = append(tabs, tabActiveStyle.Render(label))
		} else {
			tabs = append(tabs, tabIdleStyle.Render(label))
		}
	}
	tabBar := strings.Join(tabs, " ")

	var body string
	switch m.tab {
	case tabDashboard:
		body = m.renderDashboard()
	case tabTrading:
		body = m.renderTrading()
	case tabTransactions:
		body = m.renderTransactions()
	}

	footerText := " left/right tabs  ctrl+r refresh  ctrl+o sign out  ctrl+c quit"
	if m.tab == tabTrading {
		footerText = " up/dn select  type quantity  b buy  s sell  left/right tabs  ctrl+o sign out"
	}
	footerBar := footerBarStyle.Render(padOrTrunc(footerText, width))

	return headerBar + "\n" + tabBar + "\n\n" + body + "\n" + footerBar
}

func (m model) renderDashboard() string {
	var b strings.Builder

	balance := m.ctrl.Balance()
	portfolioValue := 0.0
	if m.cache != nil {
		portfolioValue = m.cache.TotalValue()
	}
	writeStat(&b, "Cash balance", "$"+formatMoney(balance))
	writeStat(&b, "Portfolio value", "$"+formatMoney(portfolioValue))
	writeStat(&b, "Total assets", "$"+formatMoney(balance+portfolioValue))
	b.WriteString("\n")

	if m.recStatus != nil {
		switch {
		case m.claimBusy:
			b.WriteString("  " + dimStyle.Render("Claiming recovery grant..."))
			b.WriteString("\n\n")
		case m.recStatus.CanRecover:
			b.WriteString("  " + recoveryStyle.Render(" Balance recovery available — press c to claim "))
			b.WriteString("\n\n")
		default:
			b.WriteString("  " + dimStyle.Render(fmt.Sprintf(
				"Next balance recovery in %dh %dm", m.recStatus.HoursLeft, m.recStatus.MinutesLeft)))
			b.WriteString("\n\n")
		}
	}
	if m.notice != "" {
		b.WriteString("  " + noticeStyle.Render(m.notice))
		b.WriteString("\n\n")
	}
	if m.tradeErr != "" {
		b.WriteString("  " + errStyle.Render(m.tradeErr))
		b.WriteString("\n\n")
	}

	var holdings []domain.Holding
	if m.cache != nil {
		holdings = m.cache.Portfolio()
	}
	if len(holdings) == 0 {
		b.WriteString("  " + dimStyle.Render("No holdings yet."))
		b.WriteString("\n")
	} else {
		b.WriteString(colHeaderStyle.Render(fmt.Sprintf(
			"  %-8s %-24s %10s %12s %14s", "Symbol", "Name", "Qty", "Price", "Value")))
		b.WriteString("\n")
		for _, h := range holdings {
			b.WriteString(symbolStyle.Render(fmt.Sprintf("  %-8s", h.Symbol)))
			b.WriteString(fmt.Sprintf(" %-24s", truncate(h.Name, 24)))
			b.WriteString(dimStyle.Render(fmt.Sprintf(" %10d", h.Quantity)))
			b.WriteString(priceStyle.Render(fmt.Sprintf(" %12s", formatMoney(h.Price))))
			b.WriteString(priceStyle.Render(fmt.Sprintf(" %14s", formatMoney(h.CurrentValue))))
			b.WriteString("\n")
		}
	}

	if m.cache != nil {
		if err := m.cache.Err(); err != nil {
			b.WriteString("\n  " + dimStyle.Render("last refresh failed: "+err.Error()))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m model) renderTrading() string {
	var b strings.Builder

	stocks := m.cache.Stocks()
	if len(stocks) == 0 {
		b.WriteString("  " + dimStyle.Render("No market data yet."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(colHeaderStyle.Render(fmt.Sprintf(
		"  %-8s %-24s %12s %10s", "Symbol", "Name", "Price", "Owned")))
	b.WriteString("\n")
	for i, s := range stocks {
		owned := m.cache.OwnedQuantity(s.StockID)
		row := fmt.Sprintf("  %-8s %-24s %12s %10d", s.Symbol, truncate(s.Name, 24), formatMoney(s.Price), owned)
		if i == m.cursor {
			b.WriteString(lipgloss.NewStyle().Background(cursorRowBG).Render(row))
		} else {
			b.WriteString(row)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString("  " + m.qtyInput.View())
	b.WriteString("\n")

	if qty, err := strconv.ParseInt(m.qtyInput.Value(), 10, 64); err == nil && qty > 0 && m.cursor < len(stocks) {
		sel := stocks[m.cursor]
		cost := sel.Price * float64(qty)
		line := fmt.Sprintf("  %d x %s = $%s", qty, sel.Symbol, formatMoney(cost))
		if cost > m.ctrl.Balance() {
			line += "  " + lossStyle.Render("(insufficient funds to buy)")
		}
		if qty > m.cache.OwnedQuantity(sel.StockID) {
			line += "  " + dimStyle.Render("(more than owned)")
		}
		b.WriteString(dimStyle.Render(line))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case m.tradeBusy:
		b.WriteString("  " + dimStyle.Render("Placing order..."))
		b.WriteString("\n")
	case m.tradeErr != "":
		b.WriteString("  " + errStyle.Render(m.tradeErr))
		b.WriteString("\n")
	case m.tradeNotice != "":
		b.WriteString("  " + gainStyle.Render(m.tradeNotice))
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) renderTransactions() string {
	var b strings.Builder

	if len(m.transactions) == 0 {
		b.WriteString("  " + dimStyle.Render("No transactions yet."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(colHeaderStyle.Render(fmt.Sprintf(
		"  %-5s %-8s %-24s %8s %12s  %-20s", "Type", "Symbol", "Name", "Qty", "Price", "Time")))
	b.WriteString("\n")
	for _, tx := range m.transactions {
		typeStyle := gainStyle
		if tx.Type == domain.SideSell {
			typeStyle = lossStyle
		}
		b.WriteString(typeStyle.Render(fmt.Sprintf("  %-5s", tx.Type)))
		b.WriteString(symbolStyle.Render(fmt.Sprintf(" %-8s", tx.Symbol)))
		b.WriteString(fmt.Sprintf(" %-24s", truncate(tx.Name, 24)))
		b.WriteString(dimStyle.Render(fmt.Sprintf(" %8d", tx.Quantity)))
		b.WriteString(priceStyle.Render(fmt.Sprintf(" %12s", formatMoney(tx.PriceAtTransaction))))
		b.WriteString(dimStyle.Render("  " + tx.Timestamp))
		b.WriteString("\n")
	}
	return b.String()
}

func writeStat(b *strings.Builder, label, value string) {
	b.WriteString("  " + statLabelStyle.Render(fmt.Sprintf("%-18s", label)))
	b.WriteString(statValueStyle.Render(value))
	b.WriteString("\n")
}

func formatMoney(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// padOrTrunc pads s with spaces to width, or truncates if longer.
func padOrTrunc(s string, width int) string {
	n := len(s)
	if n >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-n)
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	wait := flag.Bool("wait", false, "wait for the server to become reachable before starting")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	logPath := fmt.Sprintf("/tmp/tradesphere-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := util.NewLoggerTo(logFile, cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *wait {
		fmt.Fprint(os.Stderr, "waiting for server...")
		probe := &http.Client{Timeout: 2 * time.Second}
		err := util.Retry(ctx, 10, time.Second, func() error {
			resp, err := probe.Get(cfg.Server.BaseURL + "/stocks")
			if err != nil {
				return err
			}
			resp.Body.Close()
			return nil
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nserver unreachable at %s: %v\n", cfg.Server.BaseURL, err)
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, " ok")
	}

	if dir := filepath.Dir(cfg.Storage.CredentialsPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "creating credentials directory: %v\n", err)
			os.Exit(1)
		}
	}
	creds, err := authstore.Open(cfg.Storage.CredentialsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening credential store: %v\n", err)
		os.Exit(1)
	}
	defer creds.Close()

	sig := session.NewSignal()
	defer sig.Close()

	gw := gateway.New(cfg.Server.BaseURL, creds, cfg.Timeout(), sig.Publish, logger)
	ctrl := session.NewController(creds, gw, logger)

	go ctrl.Watch(ctx, sig)
	_, forcedCh := sig.Subscribe(1)

	m := initialModel(cfg, logger, ctx, cancel, gw, ctrl, sig, forcedCh)
	if state := ctrl.Restore(); state == session.SignedIn {
		user := ctrl.CurrentUser()
		logger.Info("session restored", "user_id", user.UserID, "username", user.Username)
		m.enterSession(user)
	} else {
		logger.Info("no restorable session")
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
