package quotes

import (
	"context"
	"log/slog"
	"time"

	"stockwatch/internal/domain"
)

// Archive stores daily closes locally.
type Archive interface {
	Save(ctx context.Context, symbol string, pts []domain.PricePoint) error
	Load(ctx context.Context, symbol string, start, end time.Time) ([]domain.PricePoint, error)
}

var _ Provider = (*Archived)(nil)

// Archived writes every fetched history into an Archive and serves from it
// when the upstream fails.
type Archived struct {
	Provider
	archive Archive
	log     *slog.Logger
	now     func() time.Time
}

// WithArchive wraps p with archive fallback.
func WithArchive(p Provider, a Archive, log *slog.Logger) *Archived {
	return &Archived{Provider: p, archive: a, log: log, now: time.Now}
}

// History fetches upstream, archiving the result. On upstream failure the
// archived window is returned if it has any points; otherwise the upstream
// error is.
func (a *Archived) History(ctx context.Context, symbol string, period domain.Period) ([]domain.PricePoint, error) {
	pts, _, err := a.history(ctx, symbol, period)
	return pts, err
}

// history is History that also reports whether the points came from the
// archive rather than upstream.
func (a *Archived) history(ctx context.Context, symbol string, period domain.Period) ([]domain.PricePoint, bool, error) {
	symbol = domain.NormalizeSymbol(symbol)
	pts, err := a.Provider.History(ctx, symbol, period)
	if err == nil {
		if len(pts) > 0 {
			if serr := a.archive.Save(ctx, symbol, pts); serr != nil {
				a.log.Warn("archiving history", "symbol", symbol, "error", serr)
			}
		}
		return pts, false, nil
	}

	end := a.now()
	cached, lerr := a.archive.Load(ctx, symbol, period.Start(end), end)
	if lerr != nil || len(cached) == 0 {
		return nil, false, err
	}
	a.log.Info("serving archived history", "symbol", symbol, "period", period, "points", len(cached), "upstream_error", err)
	return cached, true, nil
}
