package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"

	"stockwatch/internal/domain"
)

// Compile-time interface check.
var _ HistoryStore = (*ParquetStore)(nil)

// ParquetStore implements HistoryStore using Parquet files on disk.
type ParquetStore struct {
	DataDir string

	// Guards read-merge-write of a single year file.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir, locks: make(map[string]*sync.Mutex)}
}

// CloseRecord is the Parquet schema for one archived daily close.
type CloseRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms, UTC midnight
	Close     float64 `parquet:"close"`
}

// Save writes points to Parquet files organized by symbol and year:
//
//	<DataDir>/history/<SYMBOL>/<YYYY>.parquet
//
// Existing records for the same date are replaced.
func (s *ParquetStore) Save(_ context.Context, symbol string, pts []domain.PricePoint) error {
	if len(pts) == 0 {
		return nil
	}
	symbol = domain.NormalizeSymbol(symbol)

	groups := make(map[int][]CloseRecord)
	for _, p := range pts {
		t, err := time.Parse(domain.DateLayout, p.Date)
		if err != nil {
			return fmt.Errorf("parsing date %q: %w", p.Date, err)
		}
		groups[t.Year()] = append(groups[t.Year()], CloseRecord{
			Symbol:    symbol,
			Timestamp: t.UnixMilli(),
			Close:     p.Price,
		})
	}

	for year, records := range groups {
		path := s.yearPath(symbol, year)
		lock := s.lockFor(path)
		lock.Lock()
		// Read existing records to merge.
		existing, _ := readParquetFile[CloseRecord](path)
		err := writeParquetFile(path, mergeCloseRecords(existing, records))
		lock.Unlock()
		if err != nil {
			return fmt.Errorf("writing history for %s/%d: %w", symbol, year, err)
		}
	}
	return nil
}

// Load reads archived closes for symbol within [start, end].
func (s *ParquetStore) Load(_ context.Context, symbol string, start, end time.Time) ([]domain.PricePoint, error) {
	symbol = domain.NormalizeSymbol(symbol)
	from := dayStart(start)
	var out []domain.PricePoint
	for year := start.Year(); year <= end.Year(); year++ {
		records, err := readParquetFile[CloseRecord](s.yearPath(symbol, year))
		if err != nil {
			// No file for this year.
			continue
		}
		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp).UTC()
			if ts.Before(from) || ts.After(end) {
				continue
			}
			out = append(out, domain.PricePoint{Date: ts.Format(domain.DateLayout), Price: r.Close})
		}
	}
	return out, nil
}

// ListSymbols lists all symbols with archived history.
func (s *ParquetStore) ListSymbols(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.DataDir, "history"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// yearPath returns the filesystem path for one symbol-year file.
func (s *ParquetStore) yearPath(symbol string, year int) string {
	return filepath.Join(s.DataDir, "history", domain.NormalizeSymbol(symbol), strconv.Itoa(year)+".parquet")
}

func (s *ParquetStore) lockFor(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[path]
	if !ok {
		l = &sync.Mutex{}
		s.locks[path] = l
	}
	return l
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeCloseRecords deduplicates records by timestamp, preferring incoming
// records over existing ones. Results are sorted by timestamp.
func mergeCloseRecords(existing, incoming []CloseRecord) []CloseRecord {
	seen := make(map[int64]CloseRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, r := range incoming {
		seen[r.Timestamp] = r
	}

	merged := make([]CloseRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
