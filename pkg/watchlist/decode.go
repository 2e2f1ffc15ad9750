package watchlist

import (
	"sort"

	"stockwatch/internal/domain"
)

// wireItem covers both response shapes of GET /api/stocks: the grouped form
// (symbol, current_price, chart_data, entries) and the older flat form where
// each element is a single notice carrying its own price snapshot.
type wireItem struct {
	Symbol       string              `json:"symbol"`
	CurrentPrice *float64            `json:"current_price"`
	ChartData    []domain.PricePoint `json:"chart_data"`
	Entries      []domain.Notice     `json:"entries"`

	ID            *int64   `json:"id"`
	DateNoticed   string   `json:"date_noticed"`
	PriceNoticed  float64  `json:"price_noticed"`
	Notes         string   `json:"notes"`
	Change        *float64 `json:"change"`
	ChangePercent *float64 `json:"change_percent"`

	Price1D *domain.PricePoint `json:"price_1d"`
	Price1W *domain.PricePoint `json:"price_1wk"`
	Price1M *domain.PricePoint `json:"price_1mo"`
	Price3M *domain.PricePoint `json:"price_3mo"`
}

func (w wireItem) flat() bool {
	return w.Entries == nil && w.ID != nil
}

// groupItems converts the decoded response into tracked symbols. Grouped
// items pass through; flat items are grouped by symbol in first-seen order.
func groupItems(items []wireItem) []domain.TrackedSymbol {
	out := make([]domain.TrackedSymbol, 0, len(items))
	index := make(map[string]int)

	for _, it := range items {
		if !it.flat() {
			entries := it.Entries
			if entries == nil {
				entries = []domain.Notice{}
			}
			for i := range entries {
				if entries[i].Symbol == "" {
					entries[i].Symbol = it.Symbol
				}
			}
			out = append(out, domain.TrackedSymbol{
				Symbol:       it.Symbol,
				CurrentPrice: it.CurrentPrice,
				ChartData:    it.ChartData,
				Entries:      entries,
			})
			continue
		}

		i, ok := index[it.Symbol]
		if !ok {
			i = len(out)
			index[it.Symbol] = i
			out = append(out, domain.TrackedSymbol{
				Symbol:       it.Symbol,
				CurrentPrice: it.CurrentPrice,
				ChartData:    flatSeries(it),
				Entries:      []domain.Notice{},
			})
		}
		out[i].Entries = append(out[i].Entries, domain.Notice{
			ID:            *it.ID,
			Symbol:        it.Symbol,
			DateNoticed:   it.DateNoticed,
			PriceNoticed:  it.PriceNoticed,
			Notes:         it.Notes,
			Change:        it.Change,
			ChangePercent: it.ChangePercent,
		})
	}
	return out
}

// flatSeries builds a sparse chart series from the snapshot prices of a flat
// item, oldest first.
func flatSeries(it wireItem) []domain.PricePoint {
	var pts []domain.PricePoint
	for _, p := range []*domain.PricePoint{it.Price3M, it.Price1M, it.Price1W, it.Price1D} {
		if p != nil && p.Price > 0 && p.Date != "" {
			pts = append(pts, *p)
		}
	}
	if len(pts) == 0 {
		return nil
	}
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Date < pts[j].Date })
	return pts
}
