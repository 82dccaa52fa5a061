// Package dedupe fingerprints leads and merges duplicate postings.
package dedupe

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	"leadhunt-engine/internal/config"
	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/scrape/util"
)

type Deduper struct {
	stop map[string]bool
	loc  *time.Location
}

func New(cfg config.Dedupe) (*Deduper, error) {
	tz := cfg.TimeZone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("dedupe time zone %q: %w", tz, err)
	}
	stop := make(map[string]bool, len(cfg.Stopwords))
	for _, w := range cfg.Stopwords {
		if w = util.Fold(strings.TrimSpace(w)); w != "" {
			stop[w] = true
		}
	}
	return &Deduper{stop: stop, loc: loc}, nil
}

// Key fingerprints the source-independent parts of a lead: the set of
// meaningful title words, the location, and the calendar day it was posted.
func (d *Deduper) Key(l domain.Lead) string {
	parts := []string{
		d.titleKey(l.Title),
		strings.Join(util.Tokens(l.Location), " "),
		l.PostedAt.In(d.loc).Format("2006-01-02"),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func (d *Deduper) Apply(l domain.Lead) domain.Lead {
	l.DedupeKey = d.Key(l)
	return l
}

func (d *Deduper) titleKey(title string) string {
	seen := map[string]bool{}
	var words []string
	for _, w := range util.Tokens(title) {
		if d.stop[w] || seen[w] {
			continue
		}
		seen[w] = true
		words = append(words, w)
	}
	// a title made only of stopwords still needs to tell leads apart
	if len(words) == 0 {
		words = util.Tokens(title)
	}
	sort.Strings(words)
	return strings.Join(words, " ")
}

// Merge folds incoming into existing. Identity and lifecycle fields of
// existing always survive.
func Merge(existing, incoming domain.Lead) domain.Lead {
	out := existing

	if incoming.PostedAt.Before(out.PostedAt) {
		out.PostedAt = incoming.PostedAt
	}
	out.BudgetRange = MoreSpecificBudget(existing.BudgetRange, incoming.BudgetRange)
	if len(incoming.Description) > len(out.Description) {
		out.Description = incoming.Description
	}
	if out.SourceURL == "" {
		out.SourceURL = incoming.SourceURL
	}
	if !incoming.FirstSeenAt.IsZero() && (out.FirstSeenAt.IsZero() || incoming.FirstSeenAt.Before(out.FirstSeenAt)) {
		out.FirstSeenAt = incoming.FirstSeenAt
	}
	if incoming.LastSeenAt.After(out.LastSeenAt) {
		out.LastSeenAt = incoming.LastSeenAt
	}
	n := incoming.SeenCount
	if n < 1 {
		n = 1
	}
	out.SeenCount += n
	return out
}

var amountRe = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?\s?[kK]?`)

// MoreSpecificBudget prefers a non-empty value, then the one naming more
// amounts (a range beats a single figure). Ties keep a.
func MoreSpecificBudget(a, b string) string {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	if len(amountRe.FindAllString(b, -1)) > len(amountRe.FindAllString(a, -1)) {
		return b
	}
	return a
}
