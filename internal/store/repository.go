package store

import (
	"context"
	"errors"
	"time"

	"leadhunt-engine/internal/domain"
)

var ErrNotFound = errors.New("lead not found")

// Filter is a conjunction; zero fields do not restrict.
type Filter struct {
	Source    string
	Category  domain.Category
	Status    domain.Status
	SavedOnly bool
}

func (f Filter) Match(l domain.Lead) bool {
	if f.Source != "" && l.Source != f.Source {
		return false
	}
	if f.Category != "" && l.Category != f.Category {
		return false
	}
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if f.SavedOnly && !l.Saved {
		return false
	}
	return true
}

// MergeFunc combines a stored lead with a new posting sharing its dedupe key.
type MergeFunc func(existing, incoming domain.Lead) domain.Lead

// TransitionGuard vets a status change against the current status. It runs
// inside the same atomic section as the write.
type TransitionGuard func(from, to domain.Status) error

type Repository interface {
	// Upsert inserts l or merges it into the lead with the same DedupeKey.
	Upsert(ctx context.Context, l domain.Lead, merge MergeFunc) (lead domain.Lead, created bool, err error)
	Get(ctx context.Context, id int64) (domain.Lead, error)
	List(ctx context.Context, f Filter) ([]domain.Lead, error)
	// SetStatus returns changed=false when the lead already has the status.
	SetStatus(ctx context.Context, id int64, to domain.Status, reason string, at time.Time, guard TransitionGuard) (ch domain.StatusChange, changed bool, err error)
	SetSaved(ctx context.Context, id int64, saved bool) (domain.Lead, error)
	History(ctx context.Context, id int64) ([]domain.StatusChange, error)
	LastUpdated(ctx context.Context) (time.Time, error)
	SetLastUpdated(ctx context.Context, t time.Time) error
}

func checkStatus(from, to domain.Status, guard TransitionGuard) error {
	if !to.Valid() {
		return domain.ErrInvalidStatus
	}
	if guard != nil {
		return guard(from, to)
	}
	return nil
}
