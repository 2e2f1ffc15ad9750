// Package quotes fetches current prices and daily price history from an
// upstream market-data source.
package quotes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"stockwatch/internal/config"
	"stockwatch/internal/domain"
)

// ErrNotFound is returned when the upstream knows nothing about a symbol.
var ErrNotFound = errors.New("quotes: symbol not found")

// Provider is an upstream source of prices.
type Provider interface {
	Name() string
	// Price returns the latest traded price for symbol.
	Price(ctx context.Context, symbol string) (float64, error)
	// History returns daily closes for symbol over period, oldest first.
	History(ctx context.Context, symbol string, period domain.Period) ([]domain.PricePoint, error)
}

// New builds the provider selected by cfg.Quotes.Provider, wrapped in a TTL
// cache. archive may be nil.
func New(cfg *config.Config, archive Archive, log *slog.Logger) (Provider, error) {
	if log == nil {
		log = slog.Default()
	}

	var p Provider
	switch strings.ToLower(cfg.Quotes.Provider) {
	case "alpaca":
		if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
			return nil, errors.New("alpaca provider requires APCA_API_KEY_ID and APCA_API_SECRET_KEY")
		}
		p = NewAlpaca(cfg.Alpaca, cfg.Quotes.Retries, log)
	case "yahoo", "":
		p = NewYahoo(cfg.Quotes, log)
	default:
		return nil, fmt.Errorf("unknown quote provider %q", cfg.Quotes.Provider)
	}

	if archive != nil {
		p = WithArchive(p, archive, log)
	}
	return NewCache(p, cfg.Quotes.CacheTTL), nil
}
