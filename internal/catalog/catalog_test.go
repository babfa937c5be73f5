package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/accionlabs/intelhub/internal/config"
	"github.com/accionlabs/intelhub/internal/watcher"
)

func testConfig(dir string) *config.TabsConfig {
	return &config.TabsConfig{
		Directory: dir,
		Items: []config.TabConfig{
			{Name: "RMG", File: "bench.csv", Description: "bench", SuggestedQuestions: []string{"Who?"}},
			{Name: "Recruitment", File: "openings.json", Description: "openings"},
		},
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestCatalog_LoadAllAndGet(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bench.csv"), "name,status\nAsha,Bench\nBen,ATG\n")
	c := New(testConfig(dir), 0, zap.NewNop())
	c.LoadAll()

	tabs := c.Tabs()
	if len(tabs) != 2 || tabs[0].Name != "RMG" || tabs[1].Name != "Recruitment" {
		t.Fatalf("tabs = %+v", tabs)
	}
	if !tabs[0].Ready || tabs[0].Rows != 2 {
		t.Errorf("RMG = %+v", tabs[0])
	}
	if tabs[1].Ready || tabs[1].Error == "" {
		t.Errorf("Recruitment should report its missing file: %+v", tabs[1])
	}

	e, err := c.Get("rmg")
	if err != nil {
		t.Fatal(err)
	}
	if e.Dataset.Len() != 2 || e.Config.Description != "bench" {
		t.Errorf("entry = %+v", e)
	}
	if _, err := c.Get("Recruitment"); !errors.Is(err, ErrTabNotReady) {
		t.Errorf("err = %v, want ErrTabNotReady", err)
	}
	if _, err := c.Get("Finance"); !errors.Is(err, ErrUnknownTab) {
		t.Errorf("err = %v, want ErrUnknownTab", err)
	}
}

func TestCatalog_ReloadAndClear(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "openings.json")
	c := New(testConfig(dir), 0, zap.NewNop())

	writeFile(t, path, `[{"title":"SRE"}]`)
	if !c.Reload(path) {
		t.Fatal("Reload should recognise a tab file")
	}
	if e, err := c.Get("Recruitment"); err != nil || e.Dataset.Len() != 1 {
		t.Fatalf("after reload: %+v, %v", e, err)
	}

	writeFile(t, path, `not json`)
	c.Reload(path)
	if _, err := c.Get("Recruitment"); !errors.Is(err, ErrTabNotReady) {
		t.Errorf("broken file: err = %v", err)
	}

	writeFile(t, path, `[{"title":"SRE"},{"title":"PM"}]`)
	c.Reload(path)
	c.Clear(path)
	if _, err := c.Get("Recruitment"); !errors.Is(err, ErrTabNotReady) {
		t.Errorf("cleared tab: err = %v", err)
	}
	if c.Reload(filepath.Join(dir, "unrelated.csv")) {
		t.Error("Reload should ignore files no tab uses")
	}
}

func TestCatalog_WatchReloadsChangedFiles(t *testing.T) {
	dir := t.TempDir()
	c := New(testConfig(dir), 0, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w, err := c.Watch(ctx, watcher.WithDebounce(50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	writeFile(t, filepath.Join(dir, "bench.csv"), "name\nAsha\n")
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if e, err := c.Get("RMG"); err == nil && e.Dataset.Len() == 1 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("tab was not reloaded after its file was written")
}
