package watch

import (
	"os"
	"path/filepath"
	"testing"

	"stockwatch/internal/domain"
)

func TestHiddenStorePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "hidden.json")

	s := NewHiddenStore(path, nil)
	for _, id := range []int64{5, 2, 5} {
		if err := s.Hide(id); err != nil {
			t.Fatal(err)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[2,5]" {
		t.Errorf("file = %s, want [2,5]", data)
	}

	reloaded := NewHiddenStore(path, nil)
	if reloaded.Len() != 2 || !reloaded.IsHidden(2) || !reloaded.IsHidden(5) {
		t.Errorf("reloaded ids = %v", reloaded.IDs())
	}

	n, err := reloaded.UnhideAll([]int64{5, 7})
	if err != nil || n != 1 {
		t.Fatalf("UnhideAll = %d, %v", n, err)
	}
	if got := NewHiddenStore(path, nil).IDs(); len(got) != 1 || got[0] != 2 {
		t.Errorf("after unhide ids = %v", got)
	}
}

func TestHiddenStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hidden.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewHiddenStore(path, nil)
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestHiddenStoreSubscribe(t *testing.T) {
	s := NewHiddenStore("", nil)
	id, ch := s.Subscribe(4)

	s.Hide(1)
	s.UnhideAll([]int64{1})
	s.UnhideAll([]int64{1}) // no change, no event

	if e := <-ch; e.Type != "hide" || len(e.IDs) != 1 || e.IDs[0] != 1 {
		t.Errorf("first event = %+v", e)
	}
	if e := <-ch; e.Type != "unhide" {
		t.Errorf("second event = %+v", e)
	}
	select {
	case e := <-ch:
		t.Errorf("unexpected event %+v", e)
	default:
	}

	s.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Error("channel should be closed")
	}
}

func TestStoreEntriesAndUnhideSymbol(t *testing.T) {
	s := NewStore(NewHiddenStore(filepath.Join(t.TempDir(), "hidden.json"), nil))
	s.ReplaceAll(append(aaplPayload(), domain.TrackedSymbol{
		Symbol:  "MSFT",
		Entries: []domain.Notice{{ID: 4, Symbol: "MSFT"}, {ID: 5, Symbol: "MSFT"}},
	}))

	if got := s.Entries("msft"); len(got) != 2 || got[0].ID != 4 {
		t.Errorf("Entries(msft) = %+v", got)
	}
	if got := s.Entries("NVDA"); got != nil {
		t.Errorf("Entries(NVDA) = %+v, want nil", got)
	}

	for _, id := range []int64{1, 4, 5} {
		if err := s.Hide(id); err != nil {
			t.Fatal(err)
		}
	}
	n, err := s.UnhideSymbol("MSFT")
	if err != nil || n != 2 {
		t.Fatalf("UnhideSymbol = %d, %v", n, err)
	}
	if !s.IsHidden(1) || s.IsHidden(4) || s.IsHidden(5) {
		t.Errorf("hidden after unhide = %v, want [1]", s.Hidden().IDs())
	}
	if n, _ := s.UnhideSymbol("NVDA"); n != 0 {
		t.Errorf("UnhideSymbol(NVDA) = %d, want 0", n)
	}
}
