package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadhunt-engine/internal/config"
	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/scrape/types"
	"leadhunt-engine/internal/store"
)

var testNow = time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

type fakeAdapter struct {
	kind  string
	fetch func(ctx context.Context, src domain.Source) (types.ScrapeResult, error)
}

func (f fakeAdapter) Kind() string { return f.kind }

func (f fakeAdapter) Fetch(ctx context.Context, src domain.Source) (types.ScrapeResult, error) {
	return f.fetch(ctx, src)
}

func static(kind string, postings ...domain.RawPosting) fakeAdapter {
	return fakeAdapter{kind: kind, fetch: func(_ context.Context, src domain.Source) (types.ScrapeResult, error) {
		return types.ScrapeResult{Source: src.Name, Postings: postings}, nil
	}}
}

type recorder struct {
	mu     sync.Mutex
	events []domain.LeadEvent
}

func (r *recorder) Notify(_ context.Context, ev domain.LeadEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) count(typ string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func at(d time.Duration) *time.Time {
	t := testNow.Add(-d)
	return &t
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte("app:\n  adapter_timeout_seconds: 5\n"))
	require.NoError(t, err)
	return cfg
}

// stalled never returns until its context gives up.
type stalled struct{ calls atomic.Int32 }

func (s *stalled) Notify(ctx context.Context, _ domain.LeadEvent) error {
	s.calls.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func newRunner(t *testing.T, repo store.Repository, sources []domain.Source, n *recorder, adapters ...types.Adapter) *Runner {
	t.Helper()
	cfg := testConfig(t)
	opts := Options{
		Sources:  sources,
		Registry: types.NewRegistry(adapters...),
		Config:   func() config.Config { return cfg },
		Now:      func() time.Time { return testNow },
	}
	if n != nil {
		opts.Notifier = n
	}
	return NewRunner(repo, opts)
}

func TestRunIsIdempotent(t *testing.T) {
	repo := store.NewMemoryRepository()
	n := &recorder{}
	r := newRunner(t, repo,
		[]domain.Source{{Name: "classifieds", Kind: "rss", Enabled: true}}, n,
		static("rss",
			domain.RawPosting{Title: "Deck repair needed", Location: "Arlington, VA", PostedAt: at(2 * time.Hour)},
			domain.RawPosting{Title: "Paint two bedrooms", Location: "Takoma Park, MD", PostedAt: at(30 * time.Hour)},
		))

	sum, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Added)
	assert.Equal(t, 0, sum.Merged)

	sum, err = r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Added)
	assert.Equal(t, 2, sum.Merged)

	leads, err := repo.List(context.Background(), store.Filter{})
	require.NoError(t, err)
	require.Len(t, leads, 2)
	for _, l := range leads {
		assert.Equal(t, 2, l.SeenCount)
	}

	last, err := repo.LastUpdated(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testNow, last)

	r.Wait()
	assert.Equal(t, 2, n.count(domain.EventLeadCreated))
	assert.Equal(t, 2, n.count(domain.EventIngestStarted))
	assert.Equal(t, 2, n.count(domain.EventIngestDone))
}

func TestRunCollapsesDuplicatesAcrossSources(t *testing.T) {
	repo := store.NewMemoryRepository()
	r := newRunner(t, repo,
		[]domain.Source{
			{Name: "classifieds", Kind: "rss", Enabled: true},
			{Name: "neighborhood", Kind: "html", Enabled: true},
		}, nil,
		static("rss", domain.RawPosting{
			Title: "Looking for kitchen remodel", Location: "Bethesda, MD",
			PostedAt: at(2 * time.Hour),
		}),
		static("html", domain.RawPosting{
			Title: "Looking for kitchen remodel contractor", Location: "bethesda md",
			Description: "Budget: $20,000 - $30,000", PostedAt: at(110 * time.Minute),
		}),
	)

	sum, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Added)
	assert.Equal(t, 1, sum.Merged)

	leads, err := repo.List(context.Background(), store.Filter{})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	l := leads[0]
	assert.Equal(t, domain.Category("Kitchen"), l.Category)
	assert.Equal(t, 2, l.SeenCount)
	assert.Equal(t, testNow.Add(-2*time.Hour), l.PostedAt)
	assert.Equal(t, "$20,000 - $30,000", l.BudgetRange)
}

func TestBrokenSourcesDoNotBlockOthers(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	repo := store.NewMemoryRepository()
	r := newRunner(t, repo,
		[]domain.Source{
			{Name: "good", Kind: "rss", Enabled: true},
			{Name: "broken", Kind: "html", Enabled: true},
			{Name: "stuck", Kind: "imap", Enabled: true, TimeoutSeconds: 1},
			{Name: "panicky", Kind: "panic", Enabled: true},
			{Name: "off", Kind: "html", Enabled: false},
		}, nil,
		static("rss", domain.RawPosting{Title: "Roof leak repair", Location: "Silver Spring, MD", PostedAt: at(time.Hour)}),
		fakeAdapter{kind: "html", fetch: func(context.Context, domain.Source) (types.ScrapeResult, error) {
			return types.ScrapeResult{}, errors.New("board is down")
		}},
		// ignores its context entirely
		fakeAdapter{kind: "imap", fetch: func(context.Context, domain.Source) (types.ScrapeResult, error) {
			<-release
			return types.ScrapeResult{}, nil
		}},
		fakeAdapter{kind: "panic", fetch: func(context.Context, domain.Source) (types.ScrapeResult, error) {
			panic("bad adapter")
		}},
	)

	sum, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Added)
	require.Len(t, sum.Sources, 4)

	byName := map[string]types.SourceStatus{}
	for _, s := range sum.Sources {
		byName[s.Name] = s
	}
	assert.Equal(t, 1, byName["good"].Fetched)
	assert.Empty(t, byName["good"].Error)
	assert.Contains(t, byName["broken"].Error, "board is down")
	assert.Contains(t, byName["stuck"].Error, "timed out")
	assert.Contains(t, byName["panicky"].Error, "panic")

	st := r.Status()
	assert.False(t, st.Running)
	assert.Empty(t, st.LastError)
	assert.Equal(t, 1, st.LastAdded)
}

func TestRunFailsWhenEverySourceFails(t *testing.T) {
	repo := store.NewMemoryRepository()
	r := newRunner(t, repo, []domain.Source{{Name: "mystery", Kind: "carrier-pigeon", Enabled: true}}, nil)

	_, err := r.Run(context.Background())
	require.ErrorIs(t, err, ErrAllSourcesFailed)

	st := r.Status()
	assert.Equal(t, ErrAllSourcesFailed.Error(), st.LastError)
	require.Len(t, st.Sources, 1)
	assert.Contains(t, st.Sources[0].Error, "no adapter")
}

func TestRunWithNoSourcesSucceeds(t *testing.T) {
	r := newRunner(t, store.NewMemoryRepository(), nil, nil)
	sum, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.Added)
}

func TestFinalizeRunsAfterStore(t *testing.T) {
	repo := store.NewMemoryRepository()
	var stored int
	var finalized atomic.Int32

	a := fakeAdapter{kind: "imap", fetch: func(_ context.Context, src domain.Source) (types.ScrapeResult, error) {
		return types.ScrapeResult{
			Source:   src.Name,
			Postings: []domain.RawPosting{{Title: "Bathroom vanity install", Location: "Wheaton, MD", PostedAt: at(time.Hour)}},
			Finalize: func(ctx context.Context) error {
				leads, err := repo.List(ctx, store.Filter{})
				stored = len(leads)
				finalized.Add(1)
				return err
			},
		}, nil
	}}
	r := newRunner(t, repo, []domain.Source{{Name: "inbox", Kind: "imap", Enabled: true}}, nil, a)

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), finalized.Load())
	assert.Equal(t, 1, stored)
}

func TestDroppedPostingsSkipFinalize(t *testing.T) {
	var finalized atomic.Int32
	a := fakeAdapter{kind: "rss", fetch: func(_ context.Context, src domain.Source) (types.ScrapeResult, error) {
		return types.ScrapeResult{
			Postings: []domain.RawPosting{
				{Title: "Gutter cleaning", Location: "Bowie, MD", PostedAt: at(time.Hour)},
				{Title: "Fence repair", Location: "Bowie, MD", PostedAt: at(time.Hour)},
			},
			Finalize: func(context.Context) error { finalized.Add(1); return nil },
		}, nil
	}}
	repo := &failingRepo{Repository: store.NewMemoryRepository(), failTitle: "Fence repair"}
	r := newRunner(t, repo, []domain.Source{{Name: "feed", Kind: "rss", Enabled: true}}, nil, a)

	sum, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Added)
	assert.Equal(t, 1, sum.Dropped)
	assert.Zero(t, finalized.Load())
}

type failingRepo struct {
	store.Repository
	failTitle string
}

func (f *failingRepo) Upsert(ctx context.Context, l domain.Lead, merge store.MergeFunc) (domain.Lead, bool, error) {
	if l.Title == f.failTitle {
		return domain.Lead{}, false, errors.New("disk full")
	}
	return f.Repository.Upsert(ctx, l, merge)
}

func TestConcurrentRunsShareOneFetch(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	a := fakeAdapter{kind: "rss", fetch: func(_ context.Context, src domain.Source) (types.ScrapeResult, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return types.ScrapeResult{Source: src.Name}, nil
	}}
	r := newRunner(t, store.NewMemoryRepository(), []domain.Source{{Name: "feed", Kind: "rss", Enabled: true}}, nil, a)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = r.Run(context.Background())
	}()
	<-started
	assert.True(t, r.Status().Running)

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = r.Run(context.Background())
	}()
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestCallerCancellationDoesNotReachAdapters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := fakeAdapter{kind: "rss", fetch: func(ctx context.Context, src domain.Source) (types.ScrapeResult, error) {
		if err := ctx.Err(); err != nil {
			return types.ScrapeResult{}, err
		}
		return types.ScrapeResult{Postings: []domain.RawPosting{{Title: "Basement finishing", Location: "Laurel, MD", PostedAt: at(time.Hour)}}}, nil
	}}
	r := newRunner(t, store.NewMemoryRepository(), []domain.Source{{Name: "feed", Kind: "rss", Enabled: true}}, nil, a)

	sum, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Added)
}

func TestStalledNotifierDoesNotHoldTheRun(t *testing.T) {
	n := &stalled{}
	cfg := testConfig(t)
	r := NewRunner(store.NewMemoryRepository(), Options{
		Sources:       []domain.Source{{Name: "feed", Kind: "rss", Enabled: true}},
		Registry:      types.NewRegistry(static("rss", domain.RawPosting{Title: "Porch railing repair", Location: "Hyattsville, MD", PostedAt: at(time.Hour)})),
		Config:        func() config.Config { return cfg },
		Notifier:      n,
		Now:           func() time.Time { return testNow },
		NotifyTimeout: time.Hour,
	})

	done := make(chan Summary, 1)
	go func() {
		sum, err := r.Run(context.Background())
		assert.NoError(t, err)
		done <- sum
	}()

	select {
	case sum := <-done:
		assert.Equal(t, 1, sum.Added)
	case <-time.After(5 * time.Second):
		t.Fatal("run blocked on the notifier")
	}
	assert.False(t, r.Status().Running)

	// a second run is not parked behind the first one's notifications
	go func() {
		sum, err := r.Run(context.Background())
		assert.NoError(t, err)
		done <- sum
	}()
	select {
	case sum := <-done:
		assert.Equal(t, 1, sum.Merged)
	case <-time.After(5 * time.Second):
		t.Fatal("second run blocked")
	}
	assert.Eventually(t, func() bool { return n.calls.Load() == 5 }, time.Second, 10*time.Millisecond)
}

func TestNotificationsGiveUpAfterTimeout(t *testing.T) {
	n := &stalled{}
	cfg := testConfig(t)
	r := NewRunner(store.NewMemoryRepository(), Options{
		Config:        func() config.Config { return cfg },
		Notifier:      n,
		NotifyTimeout: 20 * time.Millisecond,
	})

	_, err := r.Run(context.Background())
	require.NoError(t, err)

	waited := make(chan struct{})
	go func() {
		r.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(5 * time.Second):
		t.Fatal("notifications outlived their timeout")
	}
	assert.Equal(t, int32(2), n.calls.Load())
}

func TestMergedLeadIsScoredOnStoredFields(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t, store.NewMemoryRepository(), nil, nil)
	pipe, err := NewPipeline(testConfig(t))
	require.NoError(t, err)
	src := domain.Source{Name: "feed", Kind: "rss", Enabled: true}

	_, created, err := r.ingestOne(ctx, pipe, domain.RawPosting{
		Title: "Deck staining", Location: "Rockville, MD",
		Budget: "$800 - $1,200", PostedAt: at(time.Hour),
	}, src, testNow)
	require.NoError(t, err)
	require.True(t, created)

	second := domain.RawPosting{Title: "Deck staining", Location: "Rockville, MD", PostedAt: at(50 * time.Minute)}
	cand, err := pipe.Candidate(second, src, testNow)
	require.NoError(t, err)

	merged, created, err := r.ingestOne(ctx, pipe, second, src, testNow)
	require.NoError(t, err)
	require.False(t, created)
	assert.Equal(t, "$800 - $1,200", merged.BudgetRange)
	assert.Equal(t, pipe.scorer.Score(merged, testNow), merged.Score)
	assert.Greater(t, merged.Score, cand.Score)
}
