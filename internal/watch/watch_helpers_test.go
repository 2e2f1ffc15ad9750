package watch

import (
	"context"
	"sync"
	"sync/atomic"

	"stockwatch/internal/domain"
	"stockwatch/pkg/watchlist"
)

type fakeChart struct {
	id       CardID
	series   []domain.PricePoint
	trend    Trend
	disposed atomic.Int32
}

func (c *fakeChart) View(int) string { return string(c.id) }
func (c *fakeChart) Dispose()        { c.disposed.Add(1) }

// chartRecorder is a ChartFactory that remembers every chart it built.
type chartRecorder struct {
	mu   sync.Mutex
	made []*fakeChart
}

func (r *chartRecorder) factory(id CardID, series []domain.PricePoint, trend Trend) Chart {
	c := &fakeChart{id: id, series: series, trend: trend}
	r.mu.Lock()
	r.made = append(r.made, c)
	r.mu.Unlock()
	return c
}

func (r *chartRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.made)
}

// undisposed counts charts not yet disposed and fails on double dispose.
func (r *chartRecorder) undisposed() (live, doubled int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.made {
		switch c.disposed.Load() {
		case 0:
			live++
		case 1:
		default:
			doubled++
		}
	}
	return live, doubled
}

// fakeAPI serves a fixed payload and records mutating calls.
type fakeAPI struct {
	mu       sync.Mutex
	groups   []domain.TrackedSymbol
	listErr  error
	prices   map[string]float64
	priceErr error
	history  func(ctx context.Context, symbol string, p domain.Period) ([]domain.PricePoint, error)

	lists     int
	posted    []domain.NewNotice
	delSymbol []string
	delNotice []int64
}

func (f *fakeAPI) ListStocks(context.Context) ([]domain.TrackedSymbol, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	// Fresh copies so each reload gets its own snapshot.
	out := make([]domain.TrackedSymbol, len(f.groups))
	for i, g := range f.groups {
		g.Entries = append([]domain.Notice(nil), g.Entries...)
		out[i] = g
	}
	return out, nil
}

func (f *fakeAPI) AddStock(_ context.Context, n domain.NewNotice) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posted = append(f.posted, n)
	return int64(100 + len(f.posted)), nil
}

func (f *fakeAPI) GetPrice(_ context.Context, symbol string) (float64, error) {
	if f.priceErr != nil {
		return 0, f.priceErr
	}
	p, ok := f.prices[symbol]
	if !ok {
		return 0, &watchlist.APIError{Op: "get price", Status: 404,
			Message: "Could not fetch price. Check the symbol and try again."}
	}
	return p, nil
}

func (f *fakeAPI) GetHistory(ctx context.Context, symbol string, p domain.Period) ([]domain.PricePoint, error) {
	if f.history == nil {
		return nil, nil
	}
	return f.history(ctx, symbol, p)
}

func (f *fakeAPI) DeleteNotice(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delNotice = append(f.delNotice, id)
	return nil
}

func (f *fakeAPI) DeleteSymbol(_ context.Context, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delSymbol = append(f.delSymbol, symbol)
	return nil
}

// notes collects notifications.
type notes struct {
	mu  sync.Mutex
	got []Notification
}

func (n *notes) Notify(x Notification) {
	n.mu.Lock()
	n.got = append(n.got, x)
	n.mu.Unlock()
}

func (n *notes) last() Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.got) == 0 {
		return Notification{}
	}
	return n.got[len(n.got)-1]
}

func ptr(f float64) *float64 { return &f }

func aaplPayload() []domain.TrackedSymbol {
	return []domain.TrackedSymbol{{
		Symbol:       "AAPL",
		CurrentPrice: ptr(150),
		ChartData: []domain.PricePoint{
			{Date: "2024-01-01", Price: 140},
			{Date: "2024-02-01", Price: 150},
		},
		Entries: []domain.Notice{{ID: 1, Symbol: "AAPL", DateNoticed: "2024-01-01", PriceNoticed: 140,
			Change: ptr(10), ChangePercent: ptr(7.14)}},
	}}
}
