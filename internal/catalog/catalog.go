// Package catalog holds the static operations tabs and the datasets parsed from their data files.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/accionlabs/intelhub/internal/config"
	"github.com/accionlabs/intelhub/internal/dataset"
	"github.com/accionlabs/intelhub/internal/models"
	"github.com/accionlabs/intelhub/internal/watcher"
)

var (
	ErrUnknownTab  = errors.New("unknown tab")
	ErrTabNotReady = errors.New("tab data is not loaded")
)

// Entry is a tab's configuration and its current dataset.
type Entry struct {
	Config  config.TabConfig
	Dataset *models.Dataset
}

type tabState struct {
	cfg  config.TabConfig
	path string
	data *models.Dataset
	err  error
}

// Catalog is safe for concurrent use. Reload and Clear are driven by a watcher.
type Catalog struct {
	dir      string
	maxBytes int64
	logger   *zap.Logger

	mu   sync.RWMutex
	tabs []*tabState
}

// New creates a catalog for the configured tabs. Nothing is parsed until LoadAll.
func New(cfg *config.TabsConfig, maxBytes int64, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Catalog{dir: cfg.Directory, maxBytes: maxBytes, logger: logger}
	for _, t := range cfg.Items {
		c.tabs = append(c.tabs, &tabState{cfg: t, path: filepath.Clean(cfg.TabFilePath(t))})
	}
	return c
}

// LoadAll parses every tab's data file. Failures are recorded per tab and logged.
func (c *Catalog) LoadAll() {
	c.mu.RLock()
	paths := make([]string, 0, len(c.tabs))
	for _, t := range c.tabs {
		paths = append(paths, t.path)
	}
	c.mu.RUnlock()
	for _, p := range paths {
		c.Reload(p)
	}
}

// Reload re-parses path for every tab backed by it. It reports whether any tab uses path.
func (c *Catalog) Reload(path string) bool {
	path = filepath.Clean(path)
	if !c.uses(path) {
		return false
	}
	ds, err := dataset.ParseFile(path, c.maxBytes)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.tabs {
		if !samePath(t.path, path) {
			continue
		}
		if err != nil {
			t.err = err
			t.data = nil
			c.logger.Warn("tab data failed to load", zap.String("tab", t.cfg.Name), zap.String("path", path), zap.Error(err))
			continue
		}
		t.err = nil
		t.data = ds
		c.logger.Info("tab data loaded", zap.String("tab", t.cfg.Name), zap.Int("rows", ds.Len()))
	}
	return true
}

// Clear drops the dataset of every tab backed by path.
func (c *Catalog) Clear(path string) {
	path = filepath.Clean(path)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.tabs {
		if samePath(t.path, path) {
			t.data = nil
			t.err = fmt.Errorf("data file %s was removed", filepath.Base(path))
			c.logger.Info("tab data cleared", zap.String("tab", t.cfg.Name))
		}
	}
}

// Tabs lists the tabs in configured order with their load status.
func (c *Catalog) Tabs() []models.Tab {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Tab, 0, len(c.tabs))
	for _, t := range c.tabs {
		tab := models.Tab{
			Name:               t.cfg.Name,
			Description:        t.cfg.Description,
			Welcome:            t.cfg.Welcome,
			SuggestedQuestions: t.cfg.SuggestedQuestions,
			Rows:               t.data.Len(),
			Ready:              t.data != nil,
		}
		if t.err != nil {
			tab.Error = t.err.Error()
		}
		out = append(out, tab)
	}
	return out
}

// Get returns the named tab (case-insensitive) and its dataset.
func (c *Catalog) Get(name string) (Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.tabs {
		if !strings.EqualFold(t.cfg.Name, name) {
			continue
		}
		if t.data == nil {
			if t.err != nil {
				return Entry{Config: t.cfg}, fmt.Errorf("%w: %v", ErrTabNotReady, t.err)
			}
			return Entry{Config: t.cfg}, ErrTabNotReady
		}
		return Entry{Config: t.cfg, Dataset: t.data}, nil
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrUnknownTab, name)
}

// Watch starts a watcher over the tabs directory that reloads or clears tabs as their files change.
// The watcher stops when ctx is cancelled.
func (c *Catalog) Watch(ctx context.Context, opts ...watcher.Option) (*watcher.Watcher, error) {
	c.mu.RLock()
	names := make([]string, 0, len(c.tabs))
	for _, t := range c.tabs {
		if filepath.Dir(t.path) == filepath.Clean(c.dir) {
			names = append(names, filepath.Base(t.path))
		}
	}
	c.mu.RUnlock()

	w := watcher.New(c.dir, watcher.MatchNames(names...),
		func(path string) { c.Reload(path) },
		c.Clear,
		append([]watcher.Option{watcher.WithLogger(c.logger)}, opts...)...)
	if err := w.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", c.dir, err)
	}
	return w, nil
}

func (c *Catalog) uses(path string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.tabs {
		if samePath(t.path, path) {
			return true
		}
	}
	return false
}

// samePath compares cleaned paths, ignoring case in the file name the way MatchNames does.
func samePath(a, b string) bool {
	return filepath.Dir(a) == filepath.Dir(b) && strings.EqualFold(filepath.Base(a), filepath.Base(b))
}
