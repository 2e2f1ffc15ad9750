package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stockwatch/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ NoticeStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS tracked_stocks (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol        TEXT NOT NULL,
	date_noticed  TEXT NOT NULL,
	price_noticed REAL NOT NULL,
	notes         TEXT,
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tracked_stocks_symbol ON tracked_stocks(symbol);
`

// SQLiteStore implements NoticeStore backed by a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// schema if needed and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single connection also keeps :memory: shared.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// AddNotice inserts a notice. The symbol is stored upper-cased.
func (s *SQLiteStore) AddNotice(ctx context.Context, n domain.NewNotice) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tracked_stocks (symbol, date_noticed, price_noticed, notes, created_at) VALUES (?, ?, ?, ?, ?)`,
		domain.NormalizeSymbol(n.Symbol), n.DateNoticed, n.PriceNoticed, n.Notes,
		s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("inserting notice: %w", err)
	}
	return res.LastInsertId()
}

// ListNotices returns every notice, newest first.
func (s *SQLiteStore) ListNotices(ctx context.Context) ([]domain.Notice, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, symbol, date_noticed, price_noticed, COALESCE(notes, '') FROM tracked_stocks ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing notices: %w", err)
	}
	defer rows.Close()

	var out []domain.Notice
	for rows.Next() {
		var n domain.Notice
		if err := rows.Scan(&n.ID, &n.Symbol, &n.DateNoticed, &n.PriceNoticed, &n.Notes); err != nil {
			return nil, fmt.Errorf("scanning notice: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// GetNotice returns one notice by id.
func (s *SQLiteStore) GetNotice(ctx context.Context, id int64) (*domain.Notice, error) {
	var n domain.Notice
	err := s.db.QueryRowContext(ctx,
		`SELECT id, symbol, date_noticed, price_noticed, COALESCE(notes, '') FROM tracked_stocks WHERE id = ?`, id).
		Scan(&n.ID, &n.Symbol, &n.DateNoticed, &n.PriceNoticed, &n.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting notice %d: %w", id, err)
	}
	return &n, nil
}

// DeleteNotice removes one notice.
func (s *SQLiteStore) DeleteNotice(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tracked_stocks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting notice %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSymbol removes every notice for symbol.
func (s *SQLiteStore) DeleteSymbol(ctx context.Context, symbol string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tracked_stocks WHERE symbol = ?`, domain.NormalizeSymbol(symbol))
	if err != nil {
		return 0, fmt.Errorf("deleting %s: %w", symbol, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return 0, ErrNotFound
	}
	return n, nil
}
