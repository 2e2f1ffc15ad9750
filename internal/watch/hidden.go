package watch

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// HiddenEvent is published to subscribers after every HiddenStore mutation.
type HiddenEvent struct {
	Type string  // "hide" or "unhide"
	IDs  []int64 // ids whose membership changed
}

// HiddenStore is the set of notice ids the user chose to suppress. It only
// affects presentation and is written to disk after every change.
type HiddenStore struct {
	mu       sync.RWMutex
	ids      map[int64]struct{}
	filePath string
	log      *slog.Logger

	subsMu    sync.Mutex
	nextSubID int
	subs      map[int]chan HiddenEvent
}

// NewHiddenStore creates a HiddenStore, loading persisted ids from filePath.
// An empty filePath keeps the set in memory only.
func NewHiddenStore(filePath string, log *slog.Logger) *HiddenStore {
	if log == nil {
		log = slog.Default()
	}
	s := &HiddenStore{
		ids:      make(map[int64]struct{}),
		filePath: filePath,
		log:      log,
		subs:     make(map[int]chan HiddenEvent),
	}
	s.load()
	return s
}

// IsHidden reports whether id is suppressed.
func (s *HiddenStore) IsHidden(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of hidden ids.
func (s *HiddenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// IDs returns the hidden ids in ascending order.
func (s *HiddenStore) IDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked()
}

// Hide adds id to the set and persists it before returning.
func (s *HiddenStore) Hide(id int64) error {
	s.mu.Lock()
	if _, ok := s.ids[id]; ok {
		s.mu.Unlock()
		return nil
	}
	s.ids[id] = struct{}{}
	err := s.flush()
	s.mu.Unlock()

	s.broadcast(HiddenEvent{Type: "hide", IDs: []int64{id}})
	return err
}

// UnhideAll removes every id in ids from the set and persists the result.
// It returns how many ids were actually hidden before the call.
func (s *HiddenStore) UnhideAll(ids []int64) (int, error) {
	s.mu.Lock()
	var removed []int64
	for _, id := range ids {
		if _, ok := s.ids[id]; ok {
			delete(s.ids, id)
			removed = append(removed, id)
		}
	}
	if len(removed) == 0 {
		s.mu.Unlock()
		return 0, nil
	}
	err := s.flush()
	s.mu.Unlock()

	s.broadcast(HiddenEvent{Type: "unhide", IDs: removed})
	return len(removed), err
}

// Subscribe returns a channel that receives events. bufSize controls the
// channel buffer; slow consumers will have events dropped.
func (s *HiddenStore) Subscribe(bufSize int) (int, <-chan HiddenEvent) {
	ch := make(chan HiddenEvent, bufSize)
	s.subsMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = ch
	s.subsMu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *HiddenStore) Unsubscribe(id int) {
	s.subsMu.Lock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
	s.subsMu.Unlock()
}

// Close unsubscribes every remaining subscriber.
func (s *HiddenStore) Close() {
	s.subsMu.Lock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.subsMu.Unlock()
}

func (s *HiddenStore) broadcast(e HiddenEvent) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// load reads the JSON file into memory. A missing or corrupt file leaves the
// set empty.
func (s *HiddenStore) load() {
	if s.filePath == "" {
		return
	}
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return
	}
	var loaded []int64
	if err := json.Unmarshal(data, &loaded); err != nil {
		s.log.Warn("loading hidden notices file", "path", s.filePath, "error", err)
		return
	}
	for _, id := range loaded {
		s.ids[id] = struct{}{}
	}
	s.log.Info("loaded hidden notices", "count", len(s.ids))
}

// flush writes the set to disk. Must be called with mu held.
func (s *HiddenStore) flush() error {
	if s.filePath == "" {
		return nil
	}
	data, err := json.Marshal(s.sortedLocked())
	if err != nil {
		return fmt.Errorf("marshalling hidden notices: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}
	if err := os.WriteFile(s.filePath, data, 0o644); err != nil {
		s.log.Error("writing hidden notices file", "path", s.filePath, "error", err)
		return fmt.Errorf("writing hidden notices: %w", err)
	}
	return nil
}

func (s *HiddenStore) sortedLocked() []int64 {
	out := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
