package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu      sync.Mutex
	changed []string
	removed []string
}

func (r *recorder) onChange(path string) {
	r.mu.Lock()
	r.changed = append(r.changed, filepath.Base(path))
	r.mu.Unlock()
}

func (r *recorder) onRemove(path string) {
	r.mu.Lock()
	r.removed = append(r.removed, filepath.Base(path))
	r.mu.Unlock()
}

func (r *recorder) snapshot() (changed, removed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.changed...), append([]string(nil), r.removed...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWatcher_DebouncesWritesToMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := New(dir, MatchNames("benchdata.xlsx"), rec.onChange, rec.onRemove, WithDebounce(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "BenchData.xlsx")
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte{byte(i)}, 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "other.xlsx"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		changed, _ := rec.snapshot()
		return len(changed) > 0
	})
	time.Sleep(300 * time.Millisecond)
	changed, _ := rec.snapshot()
	if len(changed) != 1 || changed[0] != "BenchData.xlsx" {
		t.Errorf("changed = %v, want one debounced BenchData.xlsx", changed)
	}
}

func TestWatcher_ReportsRemoval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tags.csv")
	if err := os.WriteFile(path, []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	w := New(dir, MatchExtensions(".csv"), rec.onChange, rec.onRemove)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		_, removed := rec.snapshot()
		return len(removed) == 1 && removed[0] == "tags.csv"
	})
}

func TestWatcher_SyncReportsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.xlsx", "b.json", "ignore.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.xlsx"), 0755); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	w := New(dir, MatchExtensions("xlsx", ".json"), rec.onChange, nil)
	w.Sync()

	changed, _ := rec.snapshot()
	if len(changed) != 2 || changed[0] != "a.xlsx" || changed[1] != "b.json" {
		t.Errorf("changed = %v", changed)
	}
}

func TestWatcher_StartCreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "assets", "tabs")
	w := New(dir, nil, nil, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("directory should exist after Start: %v", err)
	}
	// Second Start and double Stop are harmless.
	if err := w.Start(context.Background()); err != nil {
		t.Error(err)
	}
	w.Stop()
}

func TestMatchers(t *testing.T) {
	tests := []struct {
		m    Matcher
		name string
		want bool
	}{
		{MatchExtensions(".txt"), "b.TXT", true},
		{MatchExtensions("txt"), "b.md", false},
		{MatchExtensions(), "anything", true},
		{MatchNames("assets/TAGMaster.xlsx"), "tagmaster.xlsx", true},
		{MatchNames("TAGMaster.xlsx"), "benchdata.xlsx", false},
	}
	for _, tt := range tests {
		if got := tt.m(tt.name); got != tt.want {
			t.Errorf("match(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
