package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/store"
)

type fakeNotifier struct {
	mu     sync.Mutex
	events []domain.LeadEvent
	err    error
	panic  bool
}

func (f *fakeNotifier) Notify(_ context.Context, ev domain.LeadEvent) error {
	if f.panic {
		panic("boom")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.err
}

func (f *fakeNotifier) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

var now = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T, reopen bool) (*Controller, *fakeNotifier, domain.Lead) {
	t.Helper()
	repo := store.NewMemoryRepository()
	l, _, err := repo.Upsert(context.Background(), domain.Lead{
		Title: "Deck", Source: "classifieds", Location: "Bethesda", PostedAt: now,
		Category: "Deck", ContactMethod: "email", Status: domain.StatusNew, DedupeKey: "k",
	}, nil)
	require.NoError(t, err)

	n := &fakeNotifier{}
	c := New(repo, n, Options{
		AllowTerminalReopen: func() bool { return reopen },
		Now:                 func() time.Time { return now },
	})
	return c, n, l
}

func TestTransitionForward(t *testing.T) {
	c, n, l := setup(t, false)
	ctx := context.Background()

	got, changed, err := c.Transition(ctx, l.ID, " Contacted ", "")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.StatusContacted, got.Status)
	assert.Equal(t, now, got.StatusChangedAt)

	got, changed, err = c.Transition(ctx, l.ID, "won", "signed")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.StatusWon, got.Status)

	c.Wait()
	assert.Equal(t, []string{domain.EventLeadStatus, domain.EventLeadStatus}, n.types())
}

func TestTransitionSameStatusIsNoop(t *testing.T) {
	c, n, l := setup(t, false)
	_, changed, err := c.Transition(context.Background(), l.ID, "new", "")
	require.NoError(t, err)
	assert.False(t, changed)
	c.Wait()
	assert.Empty(t, n.types())
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	c, _, l := setup(t, false)
	_, _, err := c.Transition(context.Background(), l.ID, "archived", "")
	require.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestTransitionUnknownLead(t *testing.T) {
	c, _, _ := setup(t, false)
	_, _, err := c.Transition(context.Background(), 404, "won", "")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestTerminalReopen(t *testing.T) {
	ctx := context.Background()

	c, _, l := setup(t, false)
	_, _, err := c.Dismiss(ctx, l.ID, "too far")
	require.NoError(t, err)
	_, _, err = c.Transition(ctx, l.ID, "new", "")
	require.ErrorIs(t, err, ErrTerminalStatus)

	c, _, l = setup(t, true)
	_, _, err = c.Transition(ctx, l.ID, "lost", "")
	require.NoError(t, err)
	got, changed, err := c.Transition(ctx, l.ID, "new", "customer came back")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.StatusNew, got.Status)
}

func TestSaveDoesNotTouchStatus(t *testing.T) {
	c, n, l := setup(t, false)
	got, err := c.Save(context.Background(), l.ID, true)
	require.NoError(t, err)
	assert.True(t, got.Saved)
	assert.Equal(t, domain.StatusNew, got.Status)
	c.Wait()
	assert.Equal(t, []string{domain.EventLeadSaved}, n.types())
}

func TestRespondMovesNewToContacted(t *testing.T) {
	c, n, l := setup(t, false)
	ctx := context.Background()

	got, err := c.Respond(ctx, l.ID, "Happy to take a look Tuesday")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusContacted, got.Status)

	_, _, err = c.Transition(ctx, l.ID, "quoted", "")
	require.NoError(t, err)
	got, err = c.Respond(ctx, l.ID, "Following up")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQuoted, got.Status)

	c.Wait()
	assert.ElementsMatch(t, []string{
		domain.EventLeadStatus, domain.EventLeadResponse, domain.EventLeadStatus, domain.EventLeadResponse,
	}, n.types())
}

func TestNotifierFailuresDoNotFailTransitions(t *testing.T) {
	c, n, l := setup(t, false)
	n.err = errors.New("broker down")
	_, _, err := c.Transition(context.Background(), l.ID, "contacted", "")
	require.NoError(t, err)
	c.Wait()

	n.panic = true
	_, _, err = c.Transition(context.Background(), l.ID, "quoted", "")
	require.NoError(t, err)
	c.Wait()
}

// racingRepo lands another status change just before the controller's own.
type racingRepo struct {
	*store.MemoryRepository
	first domain.Status
	once  sync.Once
}

func (r *racingRepo) SetStatus(ctx context.Context, id int64, to domain.Status, reason string, at time.Time, guard store.TransitionGuard) (domain.StatusChange, bool, error) {
	r.once.Do(func() {
		_, _, _ = r.MemoryRepository.SetStatus(ctx, id, r.first, "other tab", at, nil)
	})
	return r.MemoryRepository.SetStatus(ctx, id, to, reason, at, guard)
}

func TestRespondLeavesConcurrentTransitionAlone(t *testing.T) {
	for _, first := range []domain.Status{domain.StatusQuoted, domain.StatusDismissed} {
		t.Run(string(first), func(t *testing.T) {
			repo := &racingRepo{MemoryRepository: store.NewMemoryRepository(), first: first}
			l, _, err := repo.Upsert(context.Background(), domain.Lead{
				Title: "Fence", Source: "classifieds", Location: "Wheaton", PostedAt: now,
				Category: "Fence", Status: domain.StatusNew, DedupeKey: "fence",
			}, nil)
			require.NoError(t, err)

			n := &fakeNotifier{}
			c := New(repo, n, Options{Now: func() time.Time { return now }})

			got, err := c.Respond(context.Background(), l.ID, "Can come by Friday")
			require.NoError(t, err)
			assert.Equal(t, first, got.Status)

			stored, err := repo.Get(context.Background(), l.ID)
			require.NoError(t, err)
			assert.Equal(t, first, stored.Status)

			hist, err := repo.History(context.Background(), l.ID)
			require.NoError(t, err)
			require.Len(t, hist, 1)
			assert.Equal(t, "other tab", hist[0].Reason)

			c.Wait()
			assert.Equal(t, []string{domain.EventLeadResponse}, n.types())
		})
	}
}
