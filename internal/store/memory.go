package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"leadhunt-engine/internal/domain"
)

// MemoryRepository keeps leads in process memory. Used by tests and by the
// engine when run with --memory.
type MemoryRepository struct {
	mu          sync.RWMutex
	nextID      int64
	leads       map[int64]domain.Lead
	byKey       map[string]int64
	history     map[int64][]domain.StatusChange
	lastUpdated time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		leads:   map[int64]domain.Lead{},
		byKey:   map[string]int64{},
		history: map[int64][]domain.StatusChange{},
	}
}

func (m *MemoryRepository) Upsert(_ context.Context, l domain.Lead, merge MergeFunc) (domain.Lead, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byKey[l.DedupeKey]; ok && l.DedupeKey != "" {
		out := m.leads[id]
		if merge != nil {
			out = merge(out, l)
		}
		out.ID, out.DedupeKey = id, l.DedupeKey
		m.leads[id] = out
		return out, false, nil
	}

	m.nextID++
	l.ID = m.nextID
	m.leads[l.ID] = l
	if l.DedupeKey != "" {
		m.byKey[l.DedupeKey] = l.ID
	}
	return l, true, nil
}

func (m *MemoryRepository) Get(_ context.Context, id int64) (domain.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.leads[id]
	if !ok {
		return domain.Lead{}, ErrNotFound
	}
	return l, nil
}

func (m *MemoryRepository) List(_ context.Context, f Filter) ([]domain.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Lead, 0, len(m.leads))
	for _, l := range m.leads {
		if f.Match(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRepository) SetStatus(_ context.Context, id int64, to domain.Status, reason string, at time.Time, guard TransitionGuard) (domain.StatusChange, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.leads[id]
	if !ok {
		return domain.StatusChange{}, false, ErrNotFound
	}
	ch := domain.StatusChange{LeadID: id, From: l.Status, To: to, Reason: reason, At: at.UTC()}
	if err := checkStatus(l.Status, to, guard); err != nil {
		return ch, false, err
	}
	if l.Status == to {
		return ch, false, nil
	}
	l.Status = to
	l.StatusChangedAt = ch.At
	m.leads[id] = l
	m.history[id] = append(m.history[id], ch)
	return ch, true, nil
}

func (m *MemoryRepository) SetSaved(_ context.Context, id int64, saved bool) (domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok {
		return domain.Lead{}, ErrNotFound
	}
	l.Saved = saved
	m.leads[id] = l
	return l, nil
}

func (m *MemoryRepository) History(_ context.Context, id int64) ([]domain.StatusChange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.leads[id]; !ok {
		return nil, ErrNotFound
	}
	return append([]domain.StatusChange(nil), m.history[id]...), nil
}

func (m *MemoryRepository) LastUpdated(context.Context) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastUpdated, nil
}

func (m *MemoryRepository) SetLastUpdated(_ context.Context, t time.Time) error {
	m.mu.Lock()
	m.lastUpdated = t.UTC()
	m.mu.Unlock()
	return nil
}
