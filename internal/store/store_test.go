package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadhunt-engine/internal/domain"
)

var t0 = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func newSQLite(t *testing.T) Repository {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "leads.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLiteRepository(db)
}

func repos(t *testing.T) map[string]Repository {
	return map[string]Repository{
		"memory": NewMemoryRepository(),
		"sqlite": newSQLite(t),
	}
}

func lead(key, source string, posted time.Time) domain.Lead {
	return domain.Lead{
		Title: "Kitchen remodel " + key, Source: source, Location: "Bethesda, MD",
		PostedAt: posted, Category: "Kitchen", ContactMethod: domain.ContactEmail,
		Status: domain.StatusNew, DedupeKey: key, FirstSeenAt: posted, LastSeenAt: posted,
		SeenCount: 1, StatusChangedAt: posted,
	}
}

// keepEarliest is a minimal merge for exercising the repository contract.
func keepEarliest(existing, incoming domain.Lead) domain.Lead {
	if incoming.PostedAt.Before(existing.PostedAt) {
		existing.PostedAt = incoming.PostedAt
	}
	existing.SeenCount++
	return existing
}

func TestUpsertInsertsThenMerges(t *testing.T) {
	for name, r := range repos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first, created, err := r.Upsert(ctx, lead("k1", "classifieds", t0.Add(10*time.Minute)), keepEarliest)
			require.NoError(t, err)
			assert.True(t, created)
			assert.NotZero(t, first.ID)

			dup := lead("k1", "neighborhood-network", t0)
			dup.Status = domain.StatusDismissed
			merged, created, err := r.Upsert(ctx, dup, keepEarliest)
			require.NoError(t, err)
			assert.False(t, created)
			assert.Equal(t, first.ID, merged.ID)
			assert.True(t, t0.Equal(merged.PostedAt))
			assert.Equal(t, 2, merged.SeenCount)
			assert.Equal(t, domain.StatusNew, merged.Status)

			got, err := r.Get(ctx, first.ID)
			require.NoError(t, err)
			assert.Equal(t, "classifieds", got.Source)
			assert.True(t, t0.Equal(got.PostedAt))

			all, err := r.List(ctx, Filter{})
			require.NoError(t, err)
			assert.Len(t, all, 1)
		})
	}
}

func TestConcurrentUpsertsKeepOneRecordPerKey(t *testing.T) {
	for name, r := range repos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					key := fmt.Sprintf("k%d", i%4)
					_, _, err := r.Upsert(ctx, lead(key, "classifieds", t0), keepEarliest)
					assert.NoError(t, err)
				}(i)
			}
			wg.Wait()

			all, err := r.List(ctx, Filter{})
			require.NoError(t, err)
			require.Len(t, all, 4)
			total := 0
			for _, l := range all {
				total += l.SeenCount
			}
			assert.Equal(t, 20, total)
		})
	}
}

func TestListFilters(t *testing.T) {
	for name, r := range repos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a, _, err := r.Upsert(ctx, lead("a", "classifieds", t0), nil)
			require.NoError(t, err)
			b := lead("b", "website", t0)
			b.Category = "Deck"
			b, _, err = r.Upsert(ctx, b, nil)
			require.NoError(t, err)
			_, err = r.SetSaved(ctx, b.ID, true)
			require.NoError(t, err)
			_, _, err = r.SetStatus(ctx, a.ID, domain.StatusContacted, "", t0, nil)
			require.NoError(t, err)

			got, err := r.List(ctx, Filter{Source: "website"})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "website", got[0].Source)

			got, err = r.List(ctx, Filter{Category: "Kitchen", Status: domain.StatusContacted})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, a.ID, got[0].ID)

			got, err = r.List(ctx, Filter{Category: "Kitchen", Status: domain.StatusNew})
			require.NoError(t, err)
			assert.Empty(t, got)

			got, err = r.List(ctx, Filter{SavedOnly: true})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, b.ID, got[0].ID)
		})
	}
}

func TestSetStatus(t *testing.T) {
	errBlocked := errors.New("blocked")

	for name, r := range repos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l, _, err := r.Upsert(ctx, lead("s", "classifieds", t0), nil)
			require.NoError(t, err)

			ch, changed, err := r.SetStatus(ctx, l.ID, domain.StatusQuoted, "sent estimate", t0.Add(time.Hour), nil)
			require.NoError(t, err)
			assert.True(t, changed)
			assert.Equal(t, domain.StatusNew, ch.From)

			_, changed, err = r.SetStatus(ctx, l.ID, domain.StatusQuoted, "", t0.Add(2*time.Hour), nil)
			require.NoError(t, err)
			assert.False(t, changed)

			_, _, err = r.SetStatus(ctx, l.ID, domain.Status("archived"), "", t0, nil)
			require.ErrorIs(t, err, domain.ErrInvalidStatus)

			_, _, err = r.SetStatus(ctx, l.ID, domain.StatusWon, "", t0, func(from, to domain.Status) error {
				return errBlocked
			})
			require.ErrorIs(t, err, errBlocked)

			_, _, err = r.SetStatus(ctx, 9999, domain.StatusWon, "", t0, nil)
			require.ErrorIs(t, err, ErrNotFound)

			got, err := r.Get(ctx, l.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.StatusQuoted, got.Status)
			assert.True(t, t0.Add(time.Hour).Equal(got.StatusChangedAt))

			hist, err := r.History(ctx, l.ID)
			require.NoError(t, err)
			require.Len(t, hist, 1)
			assert.Equal(t, "sent estimate", hist[0].Reason)
			assert.Equal(t, domain.StatusQuoted, hist[0].To)
		})
	}
}

func TestUnknownIDs(t *testing.T) {
	for name, r := range repos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := r.Get(ctx, 42)
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = r.SetSaved(ctx, 42, true)
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = r.History(ctx, 42)
			assert.ErrorIs(t, err, ErrNotFound)

			all, err := r.List(ctx, Filter{})
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestLastUpdated(t *testing.T) {
	for name, r := range repos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			got, err := r.LastUpdated(ctx)
			require.NoError(t, err)
			assert.True(t, got.IsZero())

			require.NoError(t, r.SetLastUpdated(ctx, t0))
			require.NoError(t, r.SetLastUpdated(ctx, t0.Add(time.Minute)))
			got, err = r.LastUpdated(ctx)
			require.NoError(t, err)
			assert.True(t, t0.Add(time.Minute).Equal(got))
		})
	}
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.db")
	ctx := context.Background()

	db, err := Open(path)
	require.NoError(t, err)
	r := NewSQLiteRepository(db)
	l, _, err := r.Upsert(ctx, lead("persist", "classifieds", t0), nil)
	require.NoError(t, err)
	require.NoError(t, r.SetLastUpdated(ctx, t0))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	r = NewSQLiteRepository(db)

	got, err := r.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "persist", got.DedupeKey)
	last, err := r.LastUpdated(ctx)
	require.NoError(t, err)
	assert.True(t, t0.Equal(last))
}

func TestLockDataDir(t *testing.T) {
	dir := t.TempDir()
	fl, err := LockDataDir(dir)
	require.NoError(t, err)
	defer fl.Unlock()

	_, err = LockDataDir(dir)
	require.Error(t, err)
}
