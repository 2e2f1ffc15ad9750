package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"stockwatch/internal/domain"
)

// API is the subset of the watchlist HTTP client the manager needs.
// *watchlist.Client satisfies it.
type API interface {
	HistorySource
	ListStocks(ctx context.Context) ([]domain.TrackedSymbol, error)
	AddStock(ctx context.Context, n domain.NewNotice) (int64, error)
	GetPrice(ctx context.Context, symbol string) (float64, error)
	DeleteNotice(ctx context.Context, id int64) error
	DeleteSymbol(ctx context.Context, symbol string) error
}

// Options configures a Manager.
type Options struct {
	API      API
	Store    *Store       // nil means an in-memory store
	Charts   ChartFactory // required
	Confirm  Confirmer    // nil declines every prompt
	Notify   Notifier     // nil logs notifications
	Log      *slog.Logger
	Now      func() time.Time
	Parallel int // concurrent history fetches during a reload; default 4
}

// Manager owns the watchlist UI state: the snapshot, the hidden set, the
// selected period per card and the chart registry. Construct one at startup
// and Close it on shutdown.
type Manager struct {
	api       API
	store     *Store
	charts    *ChartManager
	confirmer Confirmer
	notify    Notifier
	log       *slog.Logger
	now       func() time.Time
	parallel  int

	// reloadMu makes dispose, swap and re-attach one step so overlapping
	// reloads cannot leave charts for cards of an older snapshot.
	reloadMu sync.Mutex

	mu      sync.Mutex
	periods map[CardID]domain.Period
}

// NewManager wires a Manager from opts.
func NewManager(opts Options) (*Manager, error) {
	if opts.API == nil {
		return nil, errors.New("watch: API is required")
	}
	if opts.Charts == nil {
		return nil, errors.New("watch: chart factory is required")
	}
	m := &Manager{
		api:       opts.API,
		store:     opts.Store,
		confirmer: opts.Confirm,
		notify:    opts.Notify,
		log:       opts.Log,
		now:       opts.Now,
		parallel:  opts.Parallel,
		periods:   make(map[CardID]domain.Period),
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	if m.store == nil {
		m.store = NewStore(nil)
	}
	if m.confirmer == nil {
		m.confirmer = ConfirmFunc(func(string) bool { return false })
	}
	if m.notify == nil {
		m.notify = logNotifier{log: m.log}
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.parallel <= 0 {
		m.parallel = 4
	}
	m.charts = NewChartManager(opts.Charts, opts.API, m.log)
	return m, nil
}

// Store returns the state store.
func (m *Manager) Store() *Store { return m.store }

// Charts returns the chart registry.
func (m *Manager) Charts() *ChartManager { return m.charts }

// Reload fetches the watchlist and rebuilds every card. On failure the
// previous snapshot and charts are kept and the error is reported.
func (m *Manager) Reload(ctx context.Context) error {
	groups, err := m.api.ListStocks(ctx)
	if err != nil {
		m.notifyErr("Error loading stocks", err)
		return err
	}

	m.reloadMu.Lock()
	m.charts.DisposeAll()
	m.store.ReplaceAll(groups)
	m.mu.Lock()
	m.periods = make(map[CardID]domain.Period, len(groups))
	m.mu.Unlock()
	pending := m.charts.Prepare(groups)
	m.reloadMu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	// Cards without bundled chart data fall back to one history fetch each.
	// Failures stay on the card as ChartFailed.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.parallel)
	for _, ts := range pending {
		g.Go(func() error {
			_ = m.charts.SwitchPeriod(gctx, CardIDFor(ts.Symbol), ts.Symbol, domain.DefaultPeriod)
			return nil
		})
	}
	_ = g.Wait()
	m.log.Debug("reload complete", "cards", len(groups), "fetched", len(pending))
	return nil
}

// Cards renders the current snapshot.
func (m *Manager) Cards() []CardView {
	return Render(RenderInput{
		Groups:  m.store.Snapshot(),
		Hidden:  m.store.Hidden(),
		Periods: m.Periods(),
		Now:     m.now(),
	})
}

// Periods returns a copy of the selected period per card.
func (m *Manager) Periods() map[CardID]domain.Period {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[CardID]domain.Period, len(m.periods))
	for k, v := range m.periods {
		out[k] = v
	}
	return out
}

func (m *Manager) setPeriod(id CardID, p domain.Period) {
	m.mu.Lock()
	m.periods[id] = p
	m.mu.Unlock()
}

// AddForm holds the raw add-notice inputs. Blank Price and Date default to
// the fetched current price and today.
type AddForm struct {
	Symbol string
	Date   string
	Price  string
	Notes  string
}

// AddNotice validates the symbol against the price endpoint and then creates
// the notice. A failed price lookup aborts before anything is posted.
func (m *Manager) AddNotice(ctx context.Context, f AddForm) (int64, error) {
	sym := domain.NormalizeSymbol(f.Symbol)
	if sym == "" {
		err := errors.New("symbol is required")
		m.notify.Notify(Notification{Level: LevelError, Message: "Enter a stock symbol first"})
		return 0, err
	}

	current, err := m.api.GetPrice(ctx, sym)
	if err != nil {
		m.notifyErr("Could not fetch price for "+sym, err)
		return 0, fmt.Errorf("validating %s: %w", sym, err)
	}

	n := domain.NewNotice{
		Symbol:       sym,
		DateNoticed:  strings.TrimSpace(f.Date),
		PriceNoticed: current,
		Notes:        strings.TrimSpace(f.Notes),
	}
	if n.DateNoticed == "" {
		n.DateNoticed = m.now().Format(domain.DateLayout)
	} else if _, err := time.Parse(domain.DateLayout, n.DateNoticed); err != nil {
		m.notify.Notify(Notification{Level: LevelError, Message: "Date must be YYYY-MM-DD"})
		return 0, fmt.Errorf("parsing date %q: %w", n.DateNoticed, err)
	}
	if s := strings.TrimSpace(f.Price); s != "" {
		p, err := strconv.ParseFloat(strings.TrimPrefix(s, "$"), 64)
		if err != nil || p <= 0 {
			m.notify.Notify(Notification{Level: LevelError, Message: "Price must be a positive number"})
			return 0, fmt.Errorf("parsing price %q: invalid", s)
		}
		n.PriceNoticed = p
	}

	id, err := m.api.AddStock(ctx, n)
	if err != nil {
		m.notifyErr("Failed to add stock", err)
		return 0, err
	}
	m.notify.Notify(Notification{Level: LevelSuccess, Message: sym + " added successfully"})
	return id, m.Reload(ctx)
}

// FetchPrice looks up the current price for symbol and reports it.
func (m *Manager) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	sym := domain.NormalizeSymbol(symbol)
	if sym == "" {
		m.notify.Notify(Notification{Level: LevelError, Message: "Enter a stock symbol first"})
		return 0, errors.New("symbol is required")
	}
	p, err := m.api.GetPrice(ctx, sym)
	if err != nil {
		m.notifyErr("Could not fetch price for "+sym, err)
		return 0, err
	}
	m.notify.Notify(Notification{Level: LevelSuccess, Message: fmt.Sprintf("%s: $%.2f", sym, p)})
	return p, nil
}

// Close releases every chart and hidden-set subscriber.
func (m *Manager) Close() {
	m.charts.DisposeAll()
	m.store.Hidden().Close()
}
