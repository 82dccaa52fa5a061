package rank

import (
	"sort"
	"strings"
	"time"

	"leadhunt-engine/internal/config"
	"leadhunt-engine/internal/domain"
)

// YAMLScorer applies the weights from the scoring section of config.yml.
type YAMLScorer struct {
	base      int
	budget    int
	tiers     []config.RecencyTier
	highBonus int
	high      map[string]bool
}

func NewYAMLScorer(cfg config.Scoring) YAMLScorer {
	tiers := append([]config.RecencyTier(nil), cfg.Recency...)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].WithinHours < tiers[j].WithinHours })

	high := map[string]bool{}
	for _, c := range cfg.HighValueCategories {
		high[strings.ToLower(strings.TrimSpace(c))] = true
	}
	return YAMLScorer{
		base:      cfg.Base,
		budget:    cfg.BudgetBonus,
		tiers:     tiers,
		highBonus: cfg.HighValueBonus,
		high:      high,
	}
}

func (s YAMLScorer) Score(l domain.Lead, now time.Time) int {
	score := s.base

	if strings.TrimSpace(l.BudgetRange) != "" {
		score += s.budget
	}

	age := now.Sub(l.PostedAt)
	if age < 0 {
		age = 0
	}
	for _, t := range s.tiers {
		if age <= time.Duration(t.WithinHours)*time.Hour {
			score += t.Bonus
			break
		}
	}

	if s.high[strings.ToLower(string(l.Category))] {
		score += s.highBonus
	}
	return score
}
