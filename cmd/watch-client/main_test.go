package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"stockwatch/internal/domain"
	"stockwatch/internal/termchart"
	"stockwatch/internal/watch"
)

type stubAPI struct {
	groups []domain.TrackedSymbol
}

func (a *stubAPI) ListStocks(context.Context) ([]domain.TrackedSymbol, error) { return a.groups, nil }
func (a *stubAPI) AddStock(context.Context, domain.NewNotice) (int64, error)  { return 0, nil }
func (a *stubAPI) GetPrice(context.Context, string) (float64, error)          { return 0, nil }
func (a *stubAPI) DeleteNotice(context.Context, int64) error                  { return nil }
func (a *stubAPI) DeleteSymbol(context.Context, string) error                 { return nil }
func (a *stubAPI) GetHistory(context.Context, string, domain.Period) ([]domain.PricePoint, error) {
	return nil, nil
}

func newTestModel(t *testing.T) (model, *watch.HiddenStore) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	hidden := watch.NewHiddenStore(filepath.Join(t.TempDir(), "hidden.json"), log)
	api := &stubAPI{groups: []domain.TrackedSymbol{{
		Symbol: "AAPL",
		Entries: []domain.Notice{
			{ID: 1, Symbol: "AAPL", DateNoticed: "2024-01-01", PriceNoticed: 140},
			{ID: 2, Symbol: "AAPL", DateNoticed: "2024-02-01", PriceNoticed: 150},
		},
	}}}
	mgr, err := watch.NewManager(watch.Options{
		API:    api,
		Store:  watch.NewStore(hidden),
		Charts: termchart.NewFactory(4),
		Log:    log,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(mgr.Close)
	if err := mgr.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	m := model{ctx: context.Background(), mgr: mgr, log: log}
	m.syncCards()
	return m, hidden
}

func TestHiddenEventRefreshesCards(t *testing.T) {
	m, hidden := newTestModel(t)
	if got := len(m.cards[0].Notices); got != 2 {
		t.Fatalf("notices = %d, want 2", got)
	}

	// Another process hides a notice; the event alone must update the cards.
	if err := hidden.Hide(1); err != nil {
		t.Fatal(err)
	}
	next, cmd := m.Update(hiddenMsg(watch.HiddenEvent{Type: "hide", IDs: []int64{1}}))
	if cmd == nil {
		t.Error("hidden subscription not re-armed")
	}
	card := next.(model).cards[0]
	if len(card.Notices) != 1 || card.HiddenCount != 1 {
		t.Errorf("card = %d notices, %d hidden; want 1, 1", len(card.Notices), card.HiddenCount)
	}
}

func TestNotificationExpiresWhileIdle(t *testing.T) {
	m, _ := newTestModel(t)
	m.notifyCh = make(chan watch.Notification)

	next, cmd := m.Update(notifyMsg{Level: watch.LevelSuccess, Message: "Added AAPL"})
	if cmd == nil {
		t.Fatal("no command scheduled after a notification")
	}
	m = next.(model)
	shownAt := m.noticeAt

	// A clear for an older notification leaves the current one alone.
	next, _ = m.Update(clearNoticeMsg(shownAt.Add(-time.Second)))
	if next.(model).notice.Message != "Added AAPL" {
		t.Fatal("stale clear removed the current notification")
	}

	next, _ = next.(model).Update(clearNoticeMsg(shownAt))
	if msg := next.(model).notice.Message; msg != "" {
		t.Errorf("notice = %q after expiry, want empty", msg)
	}
}
