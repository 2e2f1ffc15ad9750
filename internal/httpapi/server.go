package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"stockwatch/internal/domain"
	"stockwatch/internal/quotes"
	"stockwatch/internal/store"
)

// Server serves the watchlist HTTP API.
type Server struct {
	notices store.NoticeStore
	quotes  quotes.Provider
	workers int
	log     *slog.Logger
}

// NewServer creates a new watchlist HTTP server. workers bounds the number
// of symbols whose quotes are fetched concurrently when listing.
func NewServer(notices store.NoticeStore, q quotes.Provider, workers int, log *slog.Logger) *Server {
	if workers <= 0 {
		workers = 8
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{notices: notices, quotes: q, workers: workers, log: log}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/stocks", s.handleListStocks)
	mux.HandleFunc("POST /api/stocks", s.handleAddStock)
	mux.HandleFunc("DELETE /api/stocks/{id}", s.handleDeleteNotice)
	mux.HandleFunc("DELETE /api/stocks/symbol/{symbol}", s.handleDeleteSymbol)
	mux.HandleFunc("GET /api/price/{symbol}", s.handlePrice)
	mux.HandleFunc("GET /api/history/{symbol}", s.handleHistory)
}

// Handler returns an http.Handler with CORS and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(s.logMiddleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(start),
			"request_id", id,
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// round2 rounds to cents.
func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

func roundSeries(pts []domain.PricePoint) []domain.PricePoint {
	out := make([]domain.PricePoint, len(pts))
	for i, p := range pts {
		out[i] = domain.PricePoint{Date: p.Date, Price: round2(p.Price)}
	}
	return out
}

// change returns the absolute and percent change from noticed to current,
// rounded to two places.
func change(noticed, current float64) (float64, float64) {
	n := decimal.NewFromFloat(noticed)
	diff := decimal.NewFromFloat(current).Sub(n)
	pct := diff.Div(n).Mul(decimal.NewFromInt(100))
	c, _ := diff.Round(2).Float64()
	p, _ := pct.Round(2).Float64()
	return c, p
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

// handleListStocks returns every tracked symbol with its notices, current
// price and one month of chart data. Quotes are fetched concurrently; an
// upstream failure leaves that symbol with a null price and empty chart.
func (s *Server) handleListStocks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	notices, err := s.notices.ListNotices(ctx)
	if err != nil {
		s.log.Error("listing notices", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Group by symbol, preserving newest-first notice order.
	var groups []*GroupJSON
	index := make(map[string]*GroupJSON)
	for _, n := range notices {
		g, ok := index[n.Symbol]
		if !ok {
			g = &GroupJSON{Symbol: n.Symbol, ChartData: []domain.PricePoint{}, Entries: []EntryJSON{}}
			index[n.Symbol] = g
			groups = append(groups, g)
		}
		g.Entries = append(g.Entries, EntryJSON{
			ID:           n.ID,
			DateNoticed:  n.DateNoticed,
			PriceNoticed: n.PriceNoticed,
			Notes:        n.Notes,
		})
	}

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(s.workers)
	for _, g := range groups {
		eg.Go(func() error {
			s.fillQuotes(ectx, g)
			return nil
		})
	}
	_ = eg.Wait()

	// Newest notice first.
	sort.SliceStable(groups, func(i, j int) bool {
		return firstDate(groups[i]) > firstDate(groups[j])
	})

	out := make([]GroupJSON, len(groups))
	for i, g := range groups {
		out[i] = *g
	}
	writeJSON(w, http.StatusOK, out)
}

func firstDate(g *GroupJSON) string {
	if len(g.Entries) == 0 {
		return ""
	}
	return g.Entries[0].DateNoticed
}

func (s *Server) fillQuotes(ctx context.Context, g *GroupJSON) {
	price, err := s.quotes.Price(ctx, g.Symbol)
	if err != nil {
		s.log.Warn("fetching price", "symbol", g.Symbol, "error", err)
	} else {
		p := round2(price)
		g.CurrentPrice = &p
		for i := range g.Entries {
			e := &g.Entries[i]
			if e.PriceNoticed == 0 {
				continue
			}
			c, pct := change(e.PriceNoticed, p)
			e.Change, e.ChangePercent = &c, &pct
		}
	}

	hist, err := s.quotes.History(ctx, g.Symbol, domain.Period1M)
	if err != nil {
		s.log.Warn("fetching history", "symbol", g.Symbol, "error", err)
		return
	}
	g.ChartData = roundSeries(hist)
}

func (s *Server) handleAddStock(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	n, err := validate(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.notices.AddNotice(r.Context(), n)
	if err != nil {
		s.log.Error("adding notice", "symbol", n.Symbol, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Info("notice added", "id", id, "symbol", n.Symbol, "price", n.PriceNoticed)
	writeJSON(w, http.StatusCreated, CreatedJSON{ID: id, Message: "Stock added successfully"})
}

var errMissingFields = errors.New("Missing required fields")

// validate checks required fields, the date format and the price.
func validate(req createRequest) (domain.NewNotice, error) {
	n := domain.NewNotice{
		Symbol:      domain.NormalizeSymbol(req.Symbol),
		DateNoticed: strings.TrimSpace(req.DateNoticed),
		Notes:       req.Notes,
	}
	if n.Symbol == "" || n.DateNoticed == "" || req.PriceNoticed == nil {
		return n, errMissingFields
	}
	if _, err := time.Parse(domain.DateLayout, n.DateNoticed); err != nil {
		return n, fmt.Errorf("Invalid data: date_noticed must be YYYY-MM-DD")
	}

	switch v := req.PriceNoticed.(type) {
	case float64:
		n.PriceNoticed = v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return n, fmt.Errorf("Invalid data: could not convert price_noticed %q to float", v)
		}
		n.PriceNoticed = f
	default:
		return n, fmt.Errorf("Invalid data: price_noticed must be a number")
	}
	return n, nil
}

func (s *Server) handleDeleteNotice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id")
		return
	}
	n, err := s.notices.GetNotice(r.Context(), id)
	if err == nil {
		err = s.notices.DeleteNotice(r.Context(), id)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Stock not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Info("notice deleted", "id", id, "symbol", n.Symbol)
	writeJSON(w, http.StatusOK, MessageJSON{Message: "Stock deleted successfully"})
}

func (s *Server) handleDeleteSymbol(w http.ResponseWriter, r *http.Request) {
	symbol := domain.NormalizeSymbol(r.PathValue("symbol"))
	n, err := s.notices.DeleteSymbol(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Stock not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.invalidate(symbol)
	s.log.Info("symbol removed", "symbol", symbol, "notices", n)
	writeJSON(w, http.StatusOK, MessageJSON{Message: fmt.Sprintf("Deleted %d entries for %s", n, symbol)})
}

// invalidate drops cached quotes for symbol when the provider caches.
func (s *Server) invalidate(symbol string) {
	if c, ok := s.quotes.(interface{ Invalidate(string) }); ok {
		c.Invalidate(symbol)
	}
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	symbol := domain.NormalizeSymbol(r.PathValue("symbol"))
	price, err := s.quotes.Price(r.Context(), symbol)
	if err != nil || price <= 0 {
		if err != nil && !errors.Is(err, quotes.ErrNotFound) {
			s.log.Warn("fetching price", "symbol", symbol, "error", err)
		}
		writeError(w, http.StatusNotFound, "Could not fetch price. Check the symbol and try again.")
		return
	}
	writeJSON(w, http.StatusOK, PriceJSON{Symbol: symbol, Price: round2(price)})
}

// handleHistory returns daily closes. Unknown periods fall back to 3mo; an
// unknown symbol yields an empty series.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	symbol := domain.NormalizeSymbol(r.PathValue("symbol"))
	period := domain.ParsePeriod(r.URL.Query().Get("period"))

	pts, err := s.quotes.History(r.Context(), symbol, period)
	switch {
	case errors.Is(err, quotes.ErrNotFound):
		pts = nil
	case err != nil:
		s.log.Warn("fetching history", "symbol", symbol, "period", period, "error", err)
		writeError(w, http.StatusBadGateway, "Could not fetch history for "+symbol)
		return
	}
	writeJSON(w, http.StatusOK, HistoryJSON{Symbol: symbol, Period: period, Data: roundSeries(pts)})
}
