package quotes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"stockwatch/internal/config"
	"stockwatch/internal/domain"
)

const chartJSON = `{"chart":{"result":[{"meta":{"regularMarketPrice":%s},
	"timestamp":[1704153600,1704240000,1704326400],
	"indicators":{"quote":[{"close":[185.5,null,184.25]}]}}],"error":null}}`

func newTestYahoo(t *testing.T, h http.HandlerFunc) *Yahoo {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewYahoo(config.Quotes{YahooURL: srv.URL, RatePerMin: 60000, Retries: 1}, slog.Default())
}

func TestYahooPriceAndHistory(t *testing.T) {
	var ranges []string
	y := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v8/finance/chart/AAPL") {
			t.Errorf("path = %s", r.URL.Path)
		}
		ranges = append(ranges, r.URL.Query().Get("range"))
		fmt.Fprintf(w, chartJSON, "187.5")
	})
	ctx := context.Background()

	p, err := y.Price(ctx, "aapl")
	if err != nil || p != 187.5 {
		t.Fatalf("Price = %v, %v", p, err)
	}

	pts, err := y.History(ctx, "AAPL", domain.Period1Y)
	if err != nil {
		t.Fatal(err)
	}
	if len(pts) != 2 || pts[0].Date != "2024-01-02" || pts[1].Price != 184.25 {
		t.Errorf("history = %+v", pts)
	}
	if len(ranges) != 2 || ranges[0] != "1d" || ranges[1] != "1y" {
		t.Errorf("ranges = %v", ranges)
	}
}

func TestYahooPriceFallsBackToClose(t *testing.T) {
	y := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, chartJSON, "0")
	})
	p, err := y.Price(context.Background(), "AAPL")
	if err != nil || p != 184.25 {
		t.Fatalf("Price = %v, %v; want last close", p, err)
	}
}

func TestYahooNotFoundNotRetried(t *testing.T) {
	var calls atomic.Int32
	y := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := y.Price(context.Background(), "XYZ")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestYahooServerErrorRetried(t *testing.T) {
	var calls atomic.Int32
	y := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprintf(w, chartJSON, "10")
	})
	p, err := y.Price(context.Background(), "AAPL")
	if err != nil || p != 10 {
		t.Fatalf("Price = %v, %v", p, err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

// stubProvider counts calls and returns canned data.
type stubProvider struct {
	prices    atomic.Int32
	histories atomic.Int32
	err       error
	pts       []domain.PricePoint
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Price(context.Context, string) (float64, error) {
	s.prices.Add(1)
	if s.err != nil {
		return 0, s.err
	}
	return 42, nil
}

func (s *stubProvider) History(context.Context, string, domain.Period) ([]domain.PricePoint, error) {
	s.histories.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.pts, nil
}

func TestCacheTTL(t *testing.T) {
	stub := &stubProvider{pts: []domain.PricePoint{{Date: "2024-01-02", Price: 1}}}
	c := NewCache(stub, time.Minute)
	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.Price(ctx, "aapl"); err != nil {
			t.Fatal(err)
		}
		if _, err := c.History(ctx, "AAPL", domain.Period1M); err != nil {
			t.Fatal(err)
		}
	}
	if stub.prices.Load() != 1 || stub.histories.Load() != 1 {
		t.Errorf("upstream calls = %d/%d, want 1/1", stub.prices.Load(), stub.histories.Load())
	}

	// Different period is a different key.
	c.History(ctx, "AAPL", domain.Period3M)
	if stub.histories.Load() != 2 {
		t.Errorf("histories = %d, want 2", stub.histories.Load())
	}

	now = now.Add(2 * time.Minute)
	c.Price(ctx, "AAPL")
	if stub.prices.Load() != 2 {
		t.Errorf("prices after expiry = %d, want 2", stub.prices.Load())
	}

	c.Invalidate("aapl")
	c.History(ctx, "AAPL", domain.Period1M)
	if stub.histories.Load() != 3 {
		t.Errorf("histories after invalidate = %d, want 3", stub.histories.Load())
	}
}

func TestCacheDoesNotCacheErrors(t *testing.T) {
	stub := &stubProvider{err: ErrNotFound}
	c := NewCache(stub, time.Minute)
	ctx := context.Background()
	c.Price(ctx, "XYZ")
	c.Price(ctx, "XYZ")
	if stub.prices.Load() != 2 {
		t.Errorf("prices = %d, want 2", stub.prices.Load())
	}
}

type memArchive struct {
	saved map[string][]domain.PricePoint
}

func (m *memArchive) Save(_ context.Context, symbol string, pts []domain.PricePoint) error {
	m.saved[symbol] = append(m.saved[symbol], pts...)
	return nil
}

func (m *memArchive) Load(_ context.Context, symbol string, start, end time.Time) ([]domain.PricePoint, error) {
	return m.saved[symbol], nil
}

func TestArchivedFallback(t *testing.T) {
	stub := &stubProvider{pts: []domain.PricePoint{{Date: "2024-01-02", Price: 185}}}
	arch := &memArchive{saved: map[string][]domain.PricePoint{}}
	a := WithArchive(stub, arch, slog.Default())
	ctx := context.Background()

	if _, err := a.History(ctx, "aapl", domain.Period1M); err != nil {
		t.Fatal(err)
	}
	if len(arch.saved["AAPL"]) != 1 {
		t.Fatalf("archive = %+v", arch.saved)
	}

	stub.err = errors.New("upstream down")
	pts, err := a.History(ctx, "AAPL", domain.Period1M)
	if err != nil || len(pts) != 1 || pts[0].Price != 185 {
		t.Errorf("fallback = %+v, %v", pts, err)
	}

	if _, err := a.History(ctx, "MSFT", domain.Period1M); err == nil {
		t.Error("expected upstream error when archive is empty")
	}
}

func TestNewSelectsProvider(t *testing.T) {
	cfg := config.Default()
	p, err := New(cfg, nil, nil)
	if err != nil || p.Name() != "yahoo" {
		t.Fatalf("New(yahoo) = %v, %v", p, err)
	}

	cfg.Quotes.Provider = "alpaca"
	if _, err := New(cfg, nil, nil); err == nil {
		t.Error("expected error for alpaca without credentials")
	}
	cfg.Alpaca.APIKey, cfg.Alpaca.APISecret = "k", "s"
	if p, err := New(cfg, nil, nil); err != nil || p.Name() != "alpaca" {
		t.Errorf("New(alpaca) = %v, %v", p, err)
	}

	cfg.Quotes.Provider = "bloomberg"
	if _, err := New(cfg, nil, nil); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestCacheSkipsArchivedFallback(t *testing.T) {
	stub := &stubProvider{pts: []domain.PricePoint{{Date: "2024-01-02", Price: 185}}}
	arch := &memArchive{saved: map[string][]domain.PricePoint{}}
	c := NewCache(WithArchive(stub, arch, slog.Default()), time.Hour)
	ctx := context.Background()

	if _, err := c.History(ctx, "AAPL", domain.Period1M); err != nil {
		t.Fatal(err)
	}
	c.Invalidate("AAPL")

	stub.err = errors.New("upstream down")
	for i := 0; i < 2; i++ {
		pts, err := c.History(ctx, "AAPL", domain.Period1M)
		if err != nil || len(pts) != 1 || pts[0].Price != 185 {
			t.Fatalf("fallback %d = %+v, %v", i, pts, err)
		}
	}
	if got := stub.histories.Load(); got != 3 {
		t.Errorf("upstream calls = %d, want 3", got)
	}

	// Once upstream recovers the fresh series is served and cached.
	stub.err = nil
	stub.pts = []domain.PricePoint{{Date: "2024-01-03", Price: 190}}
	for i := 0; i < 2; i++ {
		pts, err := c.History(ctx, "AAPL", domain.Period1M)
		if err != nil || len(pts) != 1 || pts[0].Price != 190 {
			t.Fatalf("recovered %d = %+v, %v", i, pts, err)
		}
	}
	if got := stub.histories.Load(); got != 4 {
		t.Errorf("upstream calls = %d, want 4", got)
	}
}

func TestAlpacaNotFound(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("invalid symbol: ZZZZ"), true},
		{errors.New("Not Found"), true},
		{fmt.Errorf("request: %w", errors.New("no trade found for XYZ")), true},
		{errors.New("too many requests"), false},
		{errors.New("internal server error"), false},
	} {
		if got := alpacaNotFound(tc.err); got != tc.want {
			t.Errorf("alpacaNotFound(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
