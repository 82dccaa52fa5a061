// Package query serves filtered, ranked views of the lead repository.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadhunt-engine/internal/config"
	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/rank"
	"leadhunt-engine/internal/servicearea"
	"leadhunt-engine/internal/store"
)

var ErrInvalidFilter = errors.New("invalid filter")

type Request struct {
	Source    string // name, "" or "all"
	Category  string
	Status    string
	Area      string // in, out, all
	SavedOnly bool
}

type Result struct {
	Leads       []domain.Lead
	Sources     []domain.Source
	LastUpdated time.Time
}

type Service struct {
	repo    store.Repository
	sources []domain.Source
	cfg     func() config.Config
	now     func() time.Time
}

// New takes the startup source list and a getter for the live config, so
// scoring and service-area tuning apply without a restart.
func New(repo store.Repository, sources []domain.Source, cfg func() config.Config, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, sources: sources, cfg: cfg, now: now}
}

func unrestricted(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, "all")
}

func (s *Service) filter(req Request, cfg config.Config) (store.Filter, error) {
	var f store.Filter
	if !unrestricted(req.Source) {
		f.Source = strings.TrimSpace(req.Source)
	}
	if !unrestricted(req.Category) {
		f.Category = canonicalCategory(cfg, req.Category)
	}
	if !unrestricted(req.Status) {
		st, err := domain.ParseStatus(req.Status)
		if err != nil {
			return f, err
		}
		f.Status = st
	}
	f.SavedOnly = req.SavedOnly
	return f, nil
}

// canonicalCategory maps "kitchen" to the taxonomy's "Kitchen".
func canonicalCategory(cfg config.Config, raw string) domain.Category {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, string(domain.CategoryGeneral)) {
		return domain.CategoryGeneral
	}
	for _, r := range cfg.Taxonomy {
		if strings.EqualFold(r.Category, raw) {
			return domain.Category(r.Category)
		}
	}
	return domain.Category(raw)
}

// Leads returns matching leads scored against the current time and sorted.
func (s *Service) Leads(ctx context.Context, req Request) (Result, error) {
	cfg := s.cfg()
	f, err := s.filter(req, cfg)
	if err != nil {
		return Result{}, err
	}

	area := strings.ToLower(strings.TrimSpace(req.Area))
	switch area {
	case "", "all", "in", "out":
	default:
		return Result{}, fmt.Errorf("%w: area %q", ErrInvalidFilter, req.Area)
	}

	leads, err := s.repo.List(ctx, f)
	if err != nil {
		return Result{}, fmt.Errorf("list leads: %w", err)
	}

	sa := servicearea.New(cfg.ServiceArea)
	sa.Apply(leads)
	if area == "in" || area == "out" {
		want := area == "in"
		kept := leads[:0]
		for _, l := range leads {
			if l.InServiceArea == want {
				kept = append(kept, l)
			}
		}
		leads = kept
	}

	rank.ScoreAll(rank.NewYAMLScorer(cfg.Scoring), leads, s.now())
	rank.Sort(leads)

	last, err := s.repo.LastUpdated(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("last updated: %w", err)
	}
	return Result{Leads: leads, Sources: s.sources, LastUpdated: last}, nil
}

// Lead returns one lead with its score and service-area flag filled in.
func (s *Service) Lead(ctx context.Context, id int64) (domain.Lead, error) {
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Lead{}, err
	}
	cfg := s.cfg()
	l.InServiceArea = servicearea.New(cfg.ServiceArea).Contains(l)
	l.Score = rank.NewYAMLScorer(cfg.Scoring).Score(l, s.now())
	return l, nil
}

func (s *Service) History(ctx context.Context, id int64) ([]domain.StatusChange, error) {
	return s.repo.History(ctx, id)
}

func (s *Service) Sources() []domain.Source {
	return s.sources
}
