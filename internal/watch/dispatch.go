package watch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stockwatch/internal/domain"
	"stockwatch/pkg/watchlist"
)

// ActionKind selects what Dispatch does.
type ActionKind int

const (
	ActionPeriod ActionKind = iota
	ActionHide
	ActionShowHidden
	ActionRemove
	ActionDeleteNotice
	ActionRefresh
)

func (k ActionKind) String() string {
	switch k {
	case ActionPeriod:
		return "period"
	case ActionHide:
		return "hide"
	case ActionShowHidden:
		return "show-hidden"
	case ActionRemove:
		return "remove"
	case ActionDeleteNotice:
		return "delete-notice"
	case ActionRefresh:
		return "refresh"
	default:
		return fmt.Sprintf("ActionKind(%d)", int(k))
	}
}

// Action is a single user interaction on the card list.
type Action struct {
	Kind     ActionKind
	CardID   CardID
	Symbol   string
	NoticeID int64
	Period   domain.Period

	// Confirm overrides the manager's confirmer for this action.
	Confirm Confirmer
}

// Symbol returns the ticker a card id was derived from.
func (id CardID) Symbol() string {
	return strings.TrimPrefix(string(id), "chart-")
}

func (a Action) target() (CardID, string) {
	sym := domain.NormalizeSymbol(a.Symbol)
	id := a.CardID
	if sym == "" {
		sym = id.Symbol()
	}
	if id == "" {
		id = CardIDFor(sym)
	}
	return id, sym
}

// Dispatch performs a. Local mutations (hide, show hidden) and remote ones
// (remove, delete notice) are both followed by a full reload; a period switch
// only touches its own card. Failures are reported through the notifier and
// returned.
func (m *Manager) Dispatch(ctx context.Context, a Action) error {
	id, sym := a.target()
	m.log.Debug("dispatch", "action", a.Kind, "card", id, "notice", a.NoticeID)

	switch a.Kind {
	case ActionPeriod:
		p := a.Period
		if !p.Valid() {
			return fmt.Errorf("unknown period %q", a.Period)
		}
		if _, ok := m.store.Lookup(sym); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCard, id)
		}
		m.setPeriod(id, p)
		return m.charts.SwitchPeriod(ctx, id, sym, p)

	case ActionHide:
		if err := m.store.Hide(a.NoticeID); err != nil {
			m.notifyErr("Could not save hidden notices", err)
			return err
		}
		return m.Reload(ctx)

	case ActionShowHidden:
		if _, err := m.store.UnhideSymbol(sym); err != nil {
			m.notifyErr("Could not save hidden notices", err)
			return err
		}
		return m.Reload(ctx)

	case ActionRemove:
		if !m.confirm(a, fmt.Sprintf("Remove %s and all its notices?", sym)) {
			return nil
		}
		if err := m.api.DeleteSymbol(ctx, sym); err != nil {
			m.notifyErr("Error deleting stock", err)
			return err
		}
		m.notify.Notify(Notification{Level: LevelSuccess, Message: sym + " removed"})
		return m.Reload(ctx)

	case ActionDeleteNotice:
		if !m.confirm(a, "Delete this stock?") {
			return nil
		}
		if err := m.api.DeleteNotice(ctx, a.NoticeID); err != nil {
			m.notifyErr("Error deleting stock", err)
			return err
		}
		m.notify.Notify(Notification{Level: LevelSuccess, Message: "Stock deleted"})
		return m.Reload(ctx)

	case ActionRefresh:
		return m.Reload(ctx)
	}
	return fmt.Errorf("unknown action %v", a.Kind)
}

func (m *Manager) confirm(a Action, prompt string) bool {
	c := a.Confirm
	if c == nil {
		c = m.confirmer
	}
	return c.Confirm(prompt)
}

// notifyErr reports err, preferring the server's own message when it sent one.
func (m *Manager) notifyErr(fallback string, err error) {
	msg := fallback + ": " + watchlist.UserMessage(err)
	var apiErr *watchlist.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		msg = apiErr.Message
	}
	m.notify.Notify(Notification{Level: LevelError, Message: msg})
}
