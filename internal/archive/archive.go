// Package archive persists digests under company and month keys.
// It never returns storage errors: failures are logged and degrade to no-ops or empty results.
package archive

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/accionlabs/intelhub/internal/models"
	"github.com/accionlabs/intelhub/internal/storage"
)

// KeyPrefix starts every digest key.
const KeyPrefix = "digest-"

const monthLayout = "2006-01"

// Entry is a stored digest with its key.
type Entry struct {
	Key    string
	Digest *models.Digest
}

// Archive saves and loads digests through a storage.KV.
type Archive struct {
	kv     storage.KV
	logger *zap.Logger
	now    func() time.Time
}

// Option configures an Archive.
type Option func(*Archive)

// WithClock overrides the clock that decides the current month.
func WithClock(now func() time.Time) Option {
	return func(a *Archive) { a.now = now }
}

// New creates an archive over kv.
func New(kv storage.KV, logger *zap.Logger, opts ...Option) *Archive {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Archive{kv: kv, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Key returns the storage key of company's digest for the current month.
func (a *Archive) Key(company string) string {
	return KeyPrefix + models.FileSlug(company, "_") + "-" + a.now().Format(monthLayout)
}

// Save writes d under its company and current-month key, replacing any digest already there.
// It reports whether the write succeeded.
func (a *Archive) Save(ctx context.Context, d *models.Digest) bool {
	key := a.Key(d.CompanyName)
	data, err := json.Marshal(d)
	if err != nil {
		a.logger.Error("failed to encode digest", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := a.kv.Set(ctx, key, string(data)); err != nil {
		a.logger.Error("failed to save digest", zap.String("key", key), zap.Error(err))
		return false
	}
	a.logger.Debug("digest saved", zap.String("key", key), zap.String("id", d.ID))
	return true
}

// LoadCurrentMonth returns this month's digests, newest first.
func (a *Archive) LoadCurrentMonth(ctx context.Context) []*models.Digest {
	suffix := "-" + a.now().Format(monthLayout)
	entries := a.load(ctx, func(key string) bool { return strings.HasSuffix(key, suffix) })
	out := make([]*models.Digest, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Digest)
	}
	return out
}

// All returns every stored digest, newest first.
func (a *Archive) All(ctx context.Context) []Entry {
	return a.load(ctx, func(string) bool { return true })
}

// Find returns the stored digest with the given ID.
func (a *Archive) Find(ctx context.Context, id string) (*models.Digest, bool) {
	for _, e := range a.All(ctx) {
		if e.Digest.ID == id {
			return e.Digest, true
		}
	}
	return nil, false
}

// CountCurrentMonth returns how many digests are stored for this month.
func (a *Archive) CountCurrentMonth(ctx context.Context) int {
	keys, err := a.kv.Keys(ctx, KeyPrefix)
	if err != nil {
		a.logger.Error("failed to list digest keys", zap.Error(err))
		return 0
	}
	suffix := "-" + a.now().Format(monthLayout)
	n := 0
	for _, k := range keys {
		if strings.HasSuffix(k, suffix) {
			n++
		}
	}
	return n
}

func (a *Archive) load(ctx context.Context, keep func(key string) bool) []Entry {
	keys, err := a.kv.Keys(ctx, KeyPrefix)
	if err != nil {
		a.logger.Error("failed to list digest keys", zap.Error(err))
		return []Entry{}
	}

	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		if !keep(key) {
			continue
		}
		raw, err := a.kv.Get(ctx, key)
		if err != nil {
			a.logger.Warn("failed to read digest", zap.String("key", key), zap.Error(err))
			continue
		}
		var d models.Digest
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			a.logger.Warn("skipping unreadable digest", zap.String("key", key), zap.Error(err))
			continue
		}
		entries = append(entries, Entry{Key: key, Digest: &d})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Digest.Timestamp() > entries[j].Digest.Timestamp()
	})
	return entries
}
