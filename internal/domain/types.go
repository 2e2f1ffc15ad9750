// Package domain defines the core watchlist types shared by the client, the
// server and the terminal UI.
package domain

import (
	"strings"
	"time"
)

// DateLayout is the wire format for every date in the watchlist API.
const DateLayout = "2006-01-02"

// Notice records that a symbol was noticed at a price on a date.
type Notice struct {
	ID            int64    `json:"id"`
	Symbol        string   `json:"symbol,omitempty"`
	DateNoticed   string   `json:"date_noticed"`
	PriceNoticed  float64  `json:"price_noticed"`
	Notes         string   `json:"notes,omitempty"`
	Change        *float64 `json:"change,omitempty"`
	ChangePercent *float64 `json:"change_percent,omitempty"`
}

// PricePoint is a single daily close.
type PricePoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// TrackedSymbol aggregates every notice for one ticker together with its
// cached current price and chart series.
type TrackedSymbol struct {
	Symbol       string       `json:"symbol"`
	CurrentPrice *float64     `json:"current_price"`
	ChartData    []PricePoint `json:"chart_data,omitempty"`
	Entries      []Notice     `json:"entries"`
}

// NoticeIDs returns the ids of every entry in order.
func (t TrackedSymbol) NoticeIDs() []int64 {
	ids := make([]int64, 0, len(t.Entries))
	for _, e := range t.Entries {
		ids = append(ids, e.ID)
	}
	return ids
}

// NewNotice is the body of a create request.
type NewNotice struct {
	Symbol       string  `json:"symbol"`
	DateNoticed  string  `json:"date_noticed"`
	PriceNoticed float64 `json:"price_noticed"`
	Notes        string  `json:"notes"`
}

// NormalizeSymbol upper-cases and trims a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ---------------------------------------------------------------------------
// Periods
// ---------------------------------------------------------------------------

// Period selects the length of a price history window.
type Period string

const (
	Period1M Period = "1mo"
	Period3M Period = "3mo"
	Period6M Period = "6mo"
	Period1Y Period = "1yr"
)

// DefaultPeriod is the chart window a card shows before any switch.
const DefaultPeriod = Period1M

// Periods lists the selectable windows in display order.
var Periods = []Period{Period1M, Period3M, Period6M, Period1Y}

// Valid reports whether p is one of the known windows.
func (p Period) Valid() bool {
	switch p {
	case Period1M, Period3M, Period6M, Period1Y:
		return true
	}
	return false
}

// Days returns the number of calendar days covered by the window.
// Unknown periods fall back to three months.
func (p Period) Days() int {
	switch p {
	case Period1M:
		return 31
	case Period6M:
		return 183
	case Period1Y:
		return 365
	default:
		return 92
	}
}

// Label returns the selector caption.
func (p Period) Label() string {
	switch p {
	case Period1M:
		return "1M"
	case Period3M:
		return "3M"
	case Period6M:
		return "6M"
	case Period1Y:
		return "1Y"
	default:
		return string(p)
	}
}

// Start returns the first day of the window ending at end.
func (p Period) Start(end time.Time) time.Time {
	return end.AddDate(0, 0, -p.Days())
}

// ParsePeriod maps a query value onto a Period, falling back to three months
// for anything unrecognised.
func ParsePeriod(s string) Period {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	if p.Valid() {
		return p
	}
	return Period3M
}
