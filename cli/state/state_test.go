package state

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return &Store{Path: filepath.Join(t.TempDir(), "nested", FileName)}
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	st, err := newStore(t).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(st.Recent) != 0 || st.Version != FormatVersion {
		t.Errorf("state = %+v", st)
	}
}

func TestRemember_NewestFirstPerDashboard(t *testing.T) {
	s := newStore(t)
	at := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	for _, sub := range []Submission{
		{ID: "a", Dashboard: "http://one", Entrypoint: "echo a", SubmittedAt: at},
		{ID: "b", Dashboard: "http://two", Entrypoint: "echo b", SubmittedAt: at.Add(time.Minute)},
		{ID: "c", Dashboard: "http://one", Entrypoint: "echo c", SubmittedAt: at.Add(2 * time.Minute)},
	} {
		if err := s.Remember(sub); err != nil {
			t.Fatalf("Remember: %v", err)
		}
	}

	last, ok, err := s.Last("http://one")
	if err != nil || !ok {
		t.Fatalf("Last = %v, %v", ok, err)
	}
	if last.ID != "c" || !last.SubmittedAt.Equal(at.Add(2*time.Minute)) {
		t.Errorf("last = %+v", last)
	}

	last, ok, _ = s.Last("http://two")
	if !ok || last.ID != "b" {
		t.Errorf("last = %+v", last)
	}

	if _, ok, _ := s.Last("http://three"); ok {
		t.Error("unexpected submission for unknown dashboard")
	}
}

func TestRemember_DeduplicatesAndCaps(t *testing.T) {
	s := newStore(t)
	for i := range MaxRecent + 5 {
		if err := s.Remember(Submission{ID: fmt.Sprintf("job-%d", i), Dashboard: "d"}); err != nil {
			t.Fatalf("Remember: %v", err)
		}
	}
	if err := s.Remember(Submission{ID: "job-10", Dashboard: "d"}); err != nil {
		t.Fatalf("Remember: %v", err)
	}

	st, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(st.Recent) != MaxRecent {
		t.Fatalf("len = %d, want %d", len(st.Recent), MaxRecent)
	}
	if st.Recent[0].ID != "job-10" {
		t.Errorf("newest = %s", st.Recent[0].ID)
	}
	seen := map[string]bool{}
	for _, sub := range st.Recent {
		if seen[sub.ID] {
			t.Errorf("duplicate %s", sub.ID)
		}
		seen[sub.ID] = true
	}
}

func TestLoad_RejectsOtherVersions(t *testing.T) {
	s := newStore(t)
	data, err := msgpack.Marshal(State{Version: 99})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.Path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(); err == nil {
		t.Error("expected version error")
	}
}

func TestLoad_CorruptFile(t *testing.T) {
	s := newStore(t)
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.Path, []byte{0xc1, 0x00}, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(); err == nil {
		t.Error("expected decode error")
	}
}
