package quotes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"stockwatch/internal/config"
	"stockwatch/internal/domain"
	"stockwatch/internal/util"
)

var _ Provider = (*Alpaca)(nil)

// Alpaca reads prices from the Alpaca market-data API.
type Alpaca struct {
	client  *marketdata.Client
	feed    string
	retries int
	log     *slog.Logger
}

// NewAlpaca creates an Alpaca provider from credentials.
func NewAlpaca(cfg config.Alpaca, retries int, log *slog.Logger) *Alpaca {
	opts := marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}
	if cfg.DataURL != "" {
		opts.BaseURL = cfg.DataURL
	}
	feed := cfg.Feed
	if feed == "" {
		feed = "iex"
	}
	return &Alpaca{
		client:  marketdata.NewClient(opts),
		feed:    feed,
		retries: retries,
		log:     log.With("provider", "alpaca"),
	}
}

// Name returns the provider identifier.
func (a *Alpaca) Name() string { return "alpaca" }

// Price returns the latest trade price.
func (a *Alpaca) Price(ctx context.Context, symbol string) (float64, error) {
	symbol = domain.NormalizeSymbol(symbol)
	var price float64
	err := util.Retry(ctx, a.retries+1, 500*time.Millisecond, func() error {
		if ctx.Err() != nil {
			return util.Permanent(ctx.Err())
		}
		trade, err := a.client.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{
			Feed: marketdata.Feed(a.feed),
		})
		if alpacaNotFound(err) {
			return util.Permanent(fmt.Errorf("%s: %w (%v)", symbol, ErrNotFound, err))
		}
		if err != nil {
			return fmt.Errorf("GetLatestTrade %s: %w", symbol, err)
		}
		if trade == nil || trade.Price <= 0 {
			return util.Permanent(fmt.Errorf("%s: %w", symbol, ErrNotFound))
		}
		price = trade.Price
		return nil
	})
	return price, err
}

// History returns daily closing prices over period.
func (a *Alpaca) History(ctx context.Context, symbol string, period domain.Period) ([]domain.PricePoint, error) {
	symbol = domain.NormalizeSymbol(symbol)
	end := time.Now()
	start := period.Start(end)

	var bars []marketdata.Bar
	err := util.Retry(ctx, a.retries+1, 500*time.Millisecond, func() error {
		if ctx.Err() != nil {
			return util.Permanent(ctx.Err())
		}
		var err error
		bars, err = a.client.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame: marketdata.OneDay,
			Start:     start,
			End:       end,
			Feed:      marketdata.Feed(a.feed),
		})
		if alpacaNotFound(err) {
			return util.Permanent(fmt.Errorf("%s: %w (%v)", symbol, ErrNotFound, err))
		}
		if err != nil {
			return fmt.Errorf("GetBars %s: %w", symbol, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Unknown symbols come back as an empty bar set.
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrNotFound)
	}

	pts := make([]domain.PricePoint, 0, len(bars))
	for _, b := range bars {
		pts = append(pts, domain.PricePoint{
			Date:  b.Timestamp.UTC().Format(domain.DateLayout),
			Price: b.Close,
		})
	}
	a.log.Debug("fetched bars", "symbol", symbol, "period", period, "bars", len(pts))
	return pts, nil
}

// alpacaNotFound reports whether err is Alpaca rejecting the symbol itself.
func alpacaNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"invalid symbol", "not found", "no trade"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
