package ingest

import (
	"fmt"
	"time"

	"leadhunt-engine/internal/categorize"
	"leadhunt-engine/internal/config"
	"leadhunt-engine/internal/dedupe"
	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/normalize"
	"leadhunt-engine/internal/rank"
)

// Pipeline is the per-posting stage: normalize, categorize, fingerprint.
// Built from one config snapshot so a run never mixes tunings.
type Pipeline struct {
	norm   *normalize.Normalizer
	cat    *categorize.Categorizer
	dd     *dedupe.Deduper
	scorer rank.Scorer
}

func NewPipeline(cfg config.Config) (*Pipeline, error) {
	dd, err := dedupe.New(cfg.Dedupe)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		norm:   normalize.New("US"),
		cat:    categorize.New(cfg.Taxonomy),
		dd:     dd,
		scorer: rank.NewYAMLScorer(cfg.Scoring),
	}, nil
}

// Candidate returns the lead a raw posting becomes before it meets the
// repository.
func (p *Pipeline) Candidate(raw domain.RawPosting, src domain.Source, now time.Time) (domain.Lead, error) {
	l, err := p.norm.Normalize(raw, src, now)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("normalize: %w", err)
	}
	l = p.cat.Apply(l)
	l = p.dd.Apply(l)
	l.Score = p.scorer.Score(l, now)
	return l, nil
}
