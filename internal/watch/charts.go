package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"stockwatch/internal/domain"
)

// ErrUnknownCard is returned for actions on a card that is not rendered.
var ErrUnknownCard = errors.New("watch: unknown card")

// CardID identifies a rendered card and its chart region.
type CardID string

// CardIDFor derives the card identity for a symbol.
func CardIDFor(symbol string) CardID {
	return CardID("chart-" + domain.NormalizeSymbol(symbol))
}

// ChartState is the lifecycle state of one card's chart region.
type ChartState int

const (
	ChartLoading ChartState = iota
	ChartRendered
	ChartEmpty
	ChartFailed
)

func (s ChartState) String() string {
	switch s {
	case ChartLoading:
		return "loading"
	case ChartRendered:
		return "rendered"
	case ChartEmpty:
		return "empty"
	case ChartFailed:
		return "failed"
	default:
		return fmt.Sprintf("ChartState(%d)", int(s))
	}
}

// Trend describes the direction of a series from first to last point.
type Trend int

const (
	TrendUp Trend = iota
	TrendDown
)

func (t Trend) String() string {
	if t == TrendDown {
		return "down"
	}
	return "up"
}

// TrendOf returns TrendUp when the last price is at or above the first.
func TrendOf(series []domain.PricePoint) Trend {
	if len(series) == 0 || series[len(series)-1].Price >= series[0].Price {
		return TrendUp
	}
	return TrendDown
}

// Chart is a live chart instance bound to one card.
type Chart interface {
	// View renders the chart at the given width.
	View(width int) string
	// Dispose releases the chart. It is called exactly once.
	Dispose()
}

// ChartFactory constructs a chart for a non-empty series.
type ChartFactory func(id CardID, series []domain.PricePoint, trend Trend) Chart

// HistorySource fetches a price history window.
type HistorySource interface {
	GetHistory(ctx context.Context, symbol string, period domain.Period) ([]domain.PricePoint, error)
}

// ChartStatus is a read-only view of a card's chart region.
type ChartStatus struct {
	State  ChartState
	Period domain.Period
	Trend  Trend
	Points int
	Chart  Chart // nil unless State == ChartRendered
	Err    error // set when State == ChartFailed
}

type chartSlot struct {
	mu     sync.Mutex
	handle Chart
	status ChartStatus
}

// ChartManager owns at most one live chart per card. Every attach first
// disposes the card's previous handle; a full reload disposes all of them.
type ChartManager struct {
	mu      sync.RWMutex
	slots   map[CardID]*chartSlot
	factory ChartFactory
	history HistorySource
	log     *slog.Logger
}

// NewChartManager creates an empty registry.
func NewChartManager(factory ChartFactory, history HistorySource, log *slog.Logger) *ChartManager {
	if log == nil {
		log = slog.Default()
	}
	return &ChartManager{
		slots:   make(map[CardID]*chartSlot),
		factory: factory,
		history: history,
		log:     log,
	}
}

// slot returns the slot for id, creating it when create is set.
func (m *ChartManager) slot(id CardID, create bool) *chartSlot {
	m.mu.RLock()
	s, ok := m.slots[id]
	m.mu.RUnlock()
	if ok || !create {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok = m.slots[id]; !ok {
		s = &chartSlot{status: ChartStatus{State: ChartLoading, Period: domain.DefaultPeriod}}
		m.slots[id] = s
	}
	return s
}

// Attach binds series to the card. A non-empty series replaces any existing
// chart with a new one; an empty series releases the stale chart and leaves
// the "no data" placeholder. The factory is never called for empty data.
func (m *ChartManager) Attach(id CardID, series []domain.PricePoint) ChartState {
	return m.attach(m.slot(id, true), id, series)
}

func (m *ChartManager) attach(s *chartSlot, id CardID, series []domain.PricePoint) ChartState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil {
		s.handle.Dispose()
		s.handle = nil
	}

	s.status.Err = nil
	s.status.Points = len(series)
	if len(series) == 0 {
		s.status.State = ChartEmpty
		s.status.Chart = nil
		return ChartEmpty
	}

	trend := TrendOf(series)
	s.handle = m.factory(id, series, trend)
	s.status.State = ChartRendered
	s.status.Trend = trend
	s.status.Chart = s.handle
	return ChartRendered
}

// SwitchPeriod marks the card loading, fetches symbol's history for period
// and attaches the result. A failed fetch releases the card's chart, leaves
// it in ChartFailed and returns the error; it is never retried. Only cards
// registered by Prepare or Attach can switch; responses for cards removed in
// the meantime are dropped.
func (m *ChartManager) SwitchPeriod(ctx context.Context, id CardID, symbol string, period domain.Period) error {
	s := m.slot(id, false)
	if s == nil {
		return fmt.Errorf("%w: %s", ErrUnknownCard, id)
	}
	s.mu.Lock()
	s.status.State = ChartLoading
	s.status.Period = period
	s.status.Err = nil
	s.mu.Unlock()

	series, err := m.history.GetHistory(ctx, symbol, period)

	// A reload may have replaced the slot while the request was in flight.
	s = m.slot(id, false)
	if s == nil {
		m.log.Debug("dropping history for removed card", "card", id, "period", period)
		return err
	}

	if err != nil {
		s.mu.Lock()
		if s.handle != nil {
			s.handle.Dispose()
			s.handle = nil
		}
		s.status = ChartStatus{State: ChartFailed, Period: period, Err: err}
		s.mu.Unlock()
		m.log.Warn("loading history", "symbol", symbol, "period", period, "error", err)
		return err
	}

	s.mu.Lock()
	s.status.Period = period
	s.mu.Unlock()
	m.attach(s, id, series)
	return nil
}

// Status returns the chart status for id.
func (m *ChartManager) Status(id CardID) (ChartStatus, bool) {
	s := m.slot(id, false)
	if s == nil {
		return ChartStatus{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, true
}

// Live returns the number of chart handles not yet disposed.
func (m *ChartManager) Live() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.slots {
		s.mu.Lock()
		if s.handle != nil {
			n++
		}
		s.mu.Unlock()
	}
	return n
}

// DisposeAll releases every chart and forgets every card.
func (m *ChartManager) DisposeAll() {
	m.mu.Lock()
	old := m.slots
	m.slots = make(map[CardID]*chartSlot)
	m.mu.Unlock()

	for _, s := range old {
		s.mu.Lock()
		if s.handle != nil {
			s.handle.Dispose()
			s.handle = nil
		}
		s.status.Chart = nil
		s.mu.Unlock()
	}
}

// Prepare registers a card for every group, attaching bundled chart data
// where the server supplied it. It returns the cards whose bundled data is
// missing and still need a history fetch.
func (m *ChartManager) Prepare(groups []domain.TrackedSymbol) []domain.TrackedSymbol {
	var pending []domain.TrackedSymbol
	for _, g := range groups {
		id := CardIDFor(g.Symbol)
		s := m.slot(id, true)
		if len(g.ChartData) > 0 {
			m.attach(s, id, g.ChartData)
			continue
		}
		pending = append(pending, g)
	}
	return pending
}
