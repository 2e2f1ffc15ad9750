// Package watch holds the client-side watchlist state: the last fetched
// snapshot, the hidden-notice set, the chart handle registry, and the action
// dispatcher that ties them to the HTTP API.
package watch

import (
	"sync"

	"stockwatch/internal/domain"
)

// Store keeps the last snapshot returned by the server alongside the hidden
// set. Snapshot swaps are atomic with respect to readers.
type Store struct {
	mu     sync.RWMutex
	groups []domain.TrackedSymbol
	hidden *HiddenStore
}

// NewStore creates a Store with an empty snapshot.
func NewStore(hidden *HiddenStore) *Store {
	if hidden == nil {
		hidden = NewHiddenStore("", nil)
	}
	return &Store{hidden: hidden}
}

// ReplaceAll swaps in a new snapshot.
func (s *Store) ReplaceAll(groups []domain.TrackedSymbol) {
	s.mu.Lock()
	s.groups = groups
	s.mu.Unlock()
}

// Snapshot returns the current snapshot. Callers must not mutate it.
func (s *Store) Snapshot() []domain.TrackedSymbol {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.groups
}

// Lookup returns the cached group for symbol.
func (s *Store) Lookup(symbol string) (domain.TrackedSymbol, bool) {
	symbol = domain.NormalizeSymbol(symbol)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.groups {
		if domain.NormalizeSymbol(g.Symbol) == symbol {
			return g, true
		}
	}
	return domain.TrackedSymbol{}, false
}

// Hidden exposes the hidden set.
func (s *Store) Hidden() *HiddenStore { return s.hidden }

// IsHidden reports whether a notice is suppressed.
func (s *Store) IsHidden(id int64) bool { return s.hidden.IsHidden(id) }

// Hide suppresses a notice and persists the hidden set.
func (s *Store) Hide(id int64) error { return s.hidden.Hide(id) }

// UnhideAll restores the given ids and persists the hidden set.
func (s *Store) UnhideAll(ids []int64) (int, error) { return s.hidden.UnhideAll(ids) }

// UnhideSymbol restores exactly the ids of symbol's currently cached entries.
// Hidden ids belonging to other symbols are left alone.
func (s *Store) UnhideSymbol(symbol string) (int, error) {
	entries := s.Entries(symbol)
	if len(entries) == 0 {
		return 0, nil
	}
	return s.hidden.UnhideAll(domain.TrackedSymbol{Entries: entries}.NoticeIDs())
}

// Entries returns the cached entries for symbol, or nil when it is unknown.
func (s *Store) Entries(symbol string) []domain.Notice {
	g, ok := s.Lookup(symbol)
	if !ok {
		return nil
	}
	return g.Entries
}
