package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stockwatch/internal/config"
	"stockwatch/internal/domain"
	"stockwatch/internal/util"
)

var _ Provider = (*Yahoo)(nil)

// Yahoo reads prices from the Yahoo Finance v8 chart endpoint. Requests are
// paced by a shared rate limiter.
type Yahoo struct {
	baseURL    string
	httpClient *http.Client
	limiter    *util.RateLimiter
	retries    int
	log        *slog.Logger
}

// NewYahoo creates a Yahoo provider.
func NewYahoo(cfg config.Quotes, log *slog.Logger) *Yahoo {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	rate := cfg.RatePerMin
	if rate <= 0 {
		rate = 120
	}
	base := cfg.YahooURL
	if base == "" {
		base = "https://query2.finance.yahoo.com"
	}
	return &Yahoo{
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    util.NewRateLimiter(rate, cfg.Workers),
		retries:    cfg.Retries,
		log:        log.With("provider", "yahoo"),
	}
}

// Name returns the provider identifier.
func (y *Yahoo) Name() string { return "yahoo" }

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Price returns the regular market price, falling back to the last non-null
// close of the day.
func (y *Yahoo) Price(ctx context.Context, symbol string) (float64, error) {
	symbol = domain.NormalizeSymbol(symbol)
	raw, err := y.chart(ctx, symbol, "1d", "1d")
	if err != nil {
		return 0, err
	}
	r := raw.Chart.Result[0]
	price := r.Meta.RegularMarketPrice
	if price <= 0 && len(r.Indicators.Quote) > 0 {
		closes := r.Indicators.Quote[0].Close
		for i := len(closes) - 1; i >= 0; i-- {
			if closes[i] != nil && *closes[i] > 0 {
				price = *closes[i]
				break
			}
		}
	}
	if price <= 0 {
		return 0, fmt.Errorf("%s: %w", symbol, ErrNotFound)
	}
	return price, nil
}

// History returns daily closes for period. Null closes are skipped.
func (y *Yahoo) History(ctx context.Context, symbol string, period domain.Period) ([]domain.PricePoint, error) {
	symbol = domain.NormalizeSymbol(symbol)
	raw, err := y.chart(ctx, symbol, yahooRange(period), "1d")
	if err != nil {
		return nil, err
	}
	r := raw.Chart.Result[0]
	if len(r.Indicators.Quote) == 0 {
		return []domain.PricePoint{}, nil
	}
	closes := r.Indicators.Quote[0].Close

	pts := make([]domain.PricePoint, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		pts = append(pts, domain.PricePoint{
			Date:  time.Unix(ts, 0).UTC().Format(domain.DateLayout),
			Price: *closes[i],
		})
	}
	return pts, nil
}

func yahooRange(p domain.Period) string {
	if p == domain.Period1Y {
		return "1y"
	}
	return string(p)
}

// chart performs one paced, retried request against the chart endpoint.
func (y *Yahoo) chart(ctx context.Context, symbol, rng, interval string) (*chartResponse, error) {
	if symbol == "" {
		return nil, ErrNotFound
	}
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=%s",
		y.baseURL, url.PathEscape(symbol), rng, interval)

	var raw chartResponse
	err := util.Retry(ctx, y.retries+1, 500*time.Millisecond, func() error {
		if err := y.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return util.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("User-Agent", "stockwatch/1.0")

		resp, err := y.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("making request: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return util.Permanent(fmt.Errorf("%s: %w", symbol, ErrNotFound))
		case resp.StatusCode != http.StatusOK:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			err := fmt.Errorf("yahoo http %d: %s", resp.StatusCode, body)
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return util.Permanent(err)
			}
			return err
		}

		raw = chartResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
			return util.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if raw.Chart.Error != nil || len(raw.Chart.Result) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrNotFound)
	}
	return &raw, nil
}
