package archive

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/accionlabs/intelhub/internal/models"
	"github.com/accionlabs/intelhub/internal/storage"
)

func newArchive(t *testing.T, now *time.Time) (*Archive, *storage.SQLiteStorage) {
	t.Helper()
	kv, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kv.Close() })
	return New(kv, zap.NewNop(), WithClock(func() time.Time { return *now })), kv
}

func digestAt(company string, at time.Time) *models.Digest {
	return &models.Digest{
		ID:          models.DigestID(company, at),
		CompanyName: company,
		GeneratedAt: at,
		Overview:    "overview of " + company,
	}
}

func TestArchive_Key(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	a, _ := newArchive(t, &now)
	if got := a.Key("Acme  Corp Inc"); got != "digest-Acme_Corp_Inc-2025-03" {
		t.Errorf("Key = %q", got)
	}
}

func TestArchive_SameCompanyOverwrites(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	a, kv := newArchive(t, &now)
	ctx := context.Background()

	first := digestAt("Acme Corp", now)
	second := digestAt("Acme Corp", now.Add(time.Hour))
	second.Overview = "newer"
	if !a.Save(ctx, first) || !a.Save(ctx, second) {
		t.Fatal("Save failed")
	}

	if n, _ := kv.Count(ctx, KeyPrefix); n != 1 {
		t.Fatalf("stored records = %d, want 1", n)
	}
	got := a.LoadCurrentMonth(ctx)
	if len(got) != 1 || got[0].Overview != "newer" {
		t.Errorf("loaded = %+v", got)
	}
}

func TestArchive_TwoCompaniesNewestFirst(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	a, _ := newArchive(t, &now)
	ctx := context.Background()

	older := digestAt("Beta", now)
	newer := digestAt("Acme Corp", now.Add(time.Minute))
	a.Save(ctx, older)
	a.Save(ctx, newer)

	got := a.LoadCurrentMonth(ctx)
	if len(got) != 2 {
		t.Fatalf("loaded %d digests, want 2", len(got))
	}
	if got[0].ID != newer.ID || got[1].ID != older.ID {
		t.Errorf("order = %s, %s", got[0].ID, got[1].ID)
	}
	if a.CountCurrentMonth(ctx) != 2 {
		t.Errorf("CountCurrentMonth = %d", a.CountCurrentMonth(ctx))
	}
}

func TestArchive_OnlyCurrentMonth(t *testing.T) {
	now := time.Date(2025, 2, 27, 0, 0, 0, 0, time.UTC)
	a, kv := newArchive(t, &now)
	ctx := context.Background()

	a.Save(ctx, digestAt("Acme", now))
	now = time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	a.Save(ctx, digestAt("Acme", now))
	// Unreadable record under a current-month key is skipped.
	_ = kv.Set(ctx, "digest-Broken-2025-03", "{not json")
	_ = kv.Set(ctx, "unrelated-2025-03", "{}")

	got := a.LoadCurrentMonth(ctx)
	if len(got) != 1 || !got[0].GeneratedAt.Equal(now) {
		t.Errorf("current month = %+v", got)
	}
	if all := a.All(ctx); len(all) != 2 {
		t.Errorf("All = %d entries, want 2", len(all))
	}
}

func TestArchive_Find(t *testing.T) {
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	a, _ := newArchive(t, &now)
	ctx := context.Background()
	d := digestAt("Acme", now)
	a.Save(ctx, d)

	got, ok := a.Find(ctx, d.ID)
	if !ok || got.CompanyName != "Acme" {
		t.Errorf("Find = %+v, %v", got, ok)
	}
	if _, ok := a.Find(ctx, "nope-1"); ok {
		t.Error("Find should miss unknown IDs")
	}
}

type brokenKV struct{}

var errUnavailable = errors.New("storage unavailable")

func (brokenKV) Get(context.Context, string) (string, error) { return "", errUnavailable }
func (brokenKV) Set(context.Context, string, string) error { return errUnavailable }
func (brokenKV) Keys(context.Context, string) ([]string, error) { return nil, errUnavailable }
func (brokenKV) Delete(context.Context, string) error { return errUnavailable }
func (brokenKV) Count(context.Context, string) (int64, error) { return 0, errUnavailable }
func (brokenKV) Close() error { return nil }

func TestArchive_DegradesOnStorageFailure(t *testing.T) {
	a := New(brokenKV{}, zap.NewNop())
	ctx := context.Background()

	if a.Save(ctx, digestAt("Acme", time.Now())) {
		t.Error("Save should report failure")
	}
	if got := a.LoadCurrentMonth(ctx); got == nil || len(got) != 0 {
		t.Errorf("LoadCurrentMonth = %#v, want empty", got)
	}
	if got := a.All(ctx); len(got) != 0 {
		t.Errorf("All = %v", got)
	}
	if a.CountCurrentMonth(ctx) != 0 {
		t.Error("count should be 0")
	}
}
