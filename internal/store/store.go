// Package store defines storage interfaces for the watchlist server: tracked
// notices in SQLite and archived daily closes in Parquet.
package store

import (
	"context"
	"errors"
	"time"

	"stockwatch/internal/domain"
)

// ErrNotFound is returned when a notice or symbol does not exist.
var ErrNotFound = errors.New("not found")

// NoticeStore persists tracked notices.
type NoticeStore interface {
	// AddNotice inserts a notice and returns its id.
	AddNotice(ctx context.Context, n domain.NewNotice) (int64, error)

	// ListNotices returns every notice, newest first.
	ListNotices(ctx context.Context) ([]domain.Notice, error)

	// GetNotice returns one notice by id.
	GetNotice(ctx context.Context, id int64) (*domain.Notice, error)

	// DeleteNotice removes one notice. ErrNotFound if it did not exist.
	DeleteNotice(ctx context.Context, id int64) error

	// DeleteSymbol removes every notice for symbol and returns how many were
	// removed. ErrNotFound if there were none.
	DeleteSymbol(ctx context.Context, symbol string) (int64, error)
}

// HistoryStore archives daily closes.
type HistoryStore interface {
	// Save merges points into the archive, replacing existing dates.
	Save(ctx context.Context, symbol string, pts []domain.PricePoint) error

	// Load returns archived points for symbol within [start, end], oldest first.
	Load(ctx context.Context, symbol string, start, end time.Time) ([]domain.PricePoint, error)

	// ListSymbols returns every archived symbol.
	ListSymbols(ctx context.Context) ([]string, error)
}
