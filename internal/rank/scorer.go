package rank

import (
	"sort"
	"time"

	"leadhunt-engine/internal/domain"
)

type Scorer interface {
	Score(l domain.Lead, now time.Time) int
}

// ScoreAll sets Score on every lead for the given instant.
func ScoreAll(s Scorer, leads []domain.Lead, now time.Time) {
	for i := range leads {
		leads[i].Score = s.Score(leads[i], now)
	}
}

// Sort orders by score desc, then newer postedAt, then id.
func Sort(leads []domain.Lead) {
	sort.SliceStable(leads, func(i, j int) bool {
		a, b := leads[i], leads[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.PostedAt.Equal(b.PostedAt) {
			return a.PostedAt.After(b.PostedAt)
		}
		return a.ID < b.ID
	})
}
