// Package normalize turns adapter postings into candidate leads.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/scrape/util"
)

const (
	untitled        = "Untitled request"
	unknownLocation = "Unknown"
	titleFromDesc   = 80
)

// Normalizer is safe for concurrent use. It holds no state beyond the
// validator cache, so identical input always yields an identical lead.
type Normalizer struct {
	Region   string // default phone region, e.g. "US"
	validate *validator.Validate
}

func New(region string) *Normalizer {
	if region == "" {
		region = "US"
	}
	return &Normalizer{
		Region:   region,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Normalize fills every canonical field of a lead from raw. Missing or
// malformed values are defaulted; an error is returned only when the result
// still fails validation (for example a source without a name).
func (n *Normalizer) Normalize(raw domain.RawPosting, src domain.Source, now time.Time) (domain.Lead, error) {
	now = now.UTC()

	desc := strings.TrimSpace(raw.Description)
	title := util.CleanText(raw.Title)
	if title == "" {
		if d := util.CleanText(desc); d != "" {
			title = util.Truncate(d, titleFromDesc)
		} else {
			title = untitled
		}
	}

	loc := util.NormalizeLocation(raw.Location)
	if loc == "" {
		loc = util.NormalizeLocation(util.ExtractLabeledValue(desc, "location", "city", "address", "zip"))
	}
	if loc == "" {
		loc = unknownLocation
	}

	budget := util.CleanText(raw.Budget)
	if budget == "" {
		budget = ExtractBudget(title, desc)
	}

	l := domain.Lead{
		Title:           title,
		Description:     desc,
		Source:          src.Name,
		SourceURL:       util.CanonicalizeURL(raw.URL),
		Location:        loc,
		PostedAt:        PostedAt(raw, now),
		BudgetRange:     budget,
		Category:        domain.CategoryGeneral,
		ContactMethod:   n.contactMethod(raw, src, title+"\n"+desc),
		Status:          domain.StatusNew,
		FirstSeenAt:     now,
		LastSeenAt:      now,
		SeenCount:       1,
		StatusChangedAt: now,
	}

	if err := n.validate.Struct(l); err != nil {
		return domain.Lead{}, fmt.Errorf("normalize %q: %w", src.Name, err)
	}
	return l, nil
}
