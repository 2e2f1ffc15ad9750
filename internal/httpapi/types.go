// Package httpapi serves the watchlist REST API: tracked notices grouped by
// symbol, current prices and daily price history.
package httpapi

import (
	"stockwatch/internal/domain"
)

// EntryJSON is one notice inside a group.
type EntryJSON struct {
	ID            int64    `json:"id"`
	DateNoticed   string   `json:"date_noticed"`
	PriceNoticed  float64  `json:"price_noticed"`
	Notes         string   `json:"notes"`
	Change        *float64 `json:"change,omitempty"`
	ChangePercent *float64 `json:"change_percent,omitempty"`
}

// GroupJSON is one tracked symbol in GET /api/stocks.
type GroupJSON struct {
	Symbol       string              `json:"symbol"`
	CurrentPrice *float64            `json:"current_price"`
	ChartData    []domain.PricePoint `json:"chart_data"`
	Entries      []EntryJSON         `json:"entries"`
}

// PriceJSON is the body of GET /api/price/{symbol}.
type PriceJSON struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// HistoryJSON is the body of GET /api/history/{symbol}.
type HistoryJSON struct {
	Symbol string              `json:"symbol"`
	Period domain.Period       `json:"period"`
	Data   []domain.PricePoint `json:"data"`
}

// CreatedJSON is the body of a successful POST /api/stocks.
type CreatedJSON struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

// MessageJSON is a plain acknowledgement.
type MessageJSON struct {
	Message string `json:"message"`
}

// createRequest accepts price_noticed as a number or a numeric string.
type createRequest struct {
	Symbol       string `json:"symbol"`
	DateNoticed  string `json:"date_noticed"`
	PriceNoticed any    `json:"price_noticed"`
	Notes        string `json:"notes"`
}
