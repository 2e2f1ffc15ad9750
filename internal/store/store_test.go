package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"stockwatch/internal/domain"
)

func TestParquetStorePath(t *testing.T) {
	ps := NewParquetStore("/data")

	got := ps.yearPath("aapl", 2024)
	want := filepath.Join("/data", "history", "AAPL", "2024.parquet")
	if got != want {
		t.Errorf("yearPath mismatch:\n  got  %s\n  want %s", got, want)
	}
	if !strings.Contains(got, "AAPL") {
		t.Errorf("yearPath should contain upper-cased symbol: %s", got)
	}
}

func TestParquetStoreSaveLoad(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	pts := []domain.PricePoint{
		{Date: "2023-12-29", Price: 192.5},
		{Date: "2024-01-02", Price: 185.5},
		{Date: "2024-01-03", Price: 184.25},
	}
	if err := ps.Save(ctx, "AAPL", pts); err != nil {
		t.Fatalf("Save: %v", err)
	}

	start := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	got, err := ps.Load(ctx, "aapl", start, end)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Load returned %d points, want 3", len(got))
	}
	if got[0].Date != "2023-12-29" || got[2].Price != 184.25 {
		t.Errorf("Load = %+v", got)
	}

	// Window excludes the previous year.
	got, _ = ps.Load(ctx, "AAPL", time.Date(2024, 1, 3, 15, 0, 0, 0, time.UTC), end)
	if len(got) != 1 || got[0].Date != "2024-01-03" {
		t.Errorf("windowed Load = %+v", got)
	}
}

func TestParquetStoreMerge(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	if err := ps.Save(ctx, "MSFT", []domain.PricePoint{
		{Date: "2024-03-01", Price: 403},
		{Date: "2024-03-04", Price: 407},
	}); err != nil {
		t.Fatalf("Save (first): %v", err)
	}
	// Overlapping date replaces, new date is appended.
	if err := ps.Save(ctx, "MSFT", []domain.PricePoint{
		{Date: "2024-03-04", Price: 408},
		{Date: "2024-03-05", Price: 410},
	}); err != nil {
		t.Fatalf("Save (second): %v", err)
	}

	got, err := ps.Load(ctx, "MSFT", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Load returned %d points after merge, want 3", len(got))
	}
	if got[1].Price != 408 {
		t.Errorf("merged close = %v, want 408", got[1].Price)
	}
}

func TestParquetStoreRejectsBadDate(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	if err := ps.Save(context.Background(), "AAPL", []domain.PricePoint{{Date: "yesterday", Price: 1}}); err == nil {
		t.Error("expected error for unparseable date")
	}
}

func TestParquetStoreListSymbols(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	syms, err := ps.ListSymbols(ctx)
	if err != nil || syms != nil {
		t.Fatalf("empty ListSymbols = %v, %v", syms, err)
	}

	for _, s := range []string{"googl", "AAPL"} {
		if err := ps.Save(ctx, s, []domain.PricePoint{{Date: "2024-01-02", Price: 1}}); err != nil {
			t.Fatal(err)
		}
	}
	syms, err = ps.ListSymbols(ctx)
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(syms) != 2 || syms[0] != "AAPL" || syms[1] != "GOOGL" {
		t.Errorf("ListSymbols = %v, want [AAPL GOOGL]", syms)
	}
}

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "db", "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() {
		if cerr := s.Close(); cerr != nil {
			t.Errorf("Close() returned error: %v", cerr)
		}
	})
	return s
}

func TestSQLiteStoreCRUD(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { clock = clock.Add(time.Second); return clock }

	id1, err := s.AddNotice(ctx, domain.NewNotice{Symbol: "aapl", DateNoticed: "2024-01-01", PriceNoticed: 140, Notes: "earnings"})
	if err != nil {
		t.Fatalf("AddNotice: %v", err)
	}
	id2, _ := s.AddNotice(ctx, domain.NewNotice{Symbol: "MSFT", DateNoticed: "2024-01-05", PriceNoticed: 370})
	id3, _ := s.AddNotice(ctx, domain.NewNotice{Symbol: "AAPL", DateNoticed: "2024-02-01", PriceNoticed: 150})

	list, err := s.ListNotices(ctx)
	if err != nil {
		t.Fatalf("ListNotices: %v", err)
	}
	if len(list) != 3 || list[0].ID != id3 || list[1].ID != id2 || list[2].ID != id1 {
		t.Fatalf("ListNotices order = %+v, want newest first", list)
	}
	if list[2].Symbol != "AAPL" || list[2].Notes != "earnings" {
		t.Errorf("first notice = %+v", list[2])
	}

	n, err := s.GetNotice(ctx, id2)
	if err != nil || n.Symbol != "MSFT" || n.PriceNoticed != 370 {
		t.Errorf("GetNotice = %+v, %v", n, err)
	}
	if _, err := s.GetNotice(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetNotice(999) err = %v, want ErrNotFound", err)
	}

	if err := s.DeleteNotice(ctx, id2); err != nil {
		t.Fatalf("DeleteNotice: %v", err)
	}
	if err := s.DeleteNotice(ctx, id2); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteNotice err = %v, want ErrNotFound", err)
	}

	removed, err := s.DeleteSymbol(ctx, "aapl")
	if err != nil || removed != 2 {
		t.Fatalf("DeleteSymbol = %d, %v", removed, err)
	}
	if _, err := s.DeleteSymbol(ctx, "AAPL"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteSymbol on empty err = %v, want ErrNotFound", err)
	}
	if list, _ := s.ListNotices(ctx); len(list) != 0 {
		t.Errorf("ListNotices after deletes = %+v", list)
	}
}
