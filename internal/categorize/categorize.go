package categorize

import (
	"strings"

	"leadhunt-engine/internal/config"
	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/scrape/util"
)

type rule struct {
	category domain.Category
	needles  []string
}

// Categorizer assigns the first taxonomy category with a keyword hit.
type Categorizer struct {
	rules []rule
}

func New(taxonomy []config.CategoryRule) *Categorizer {
	c := &Categorizer{}
	for _, r := range taxonomy {
		name := strings.TrimSpace(r.Category)
		if name == "" {
			continue
		}
		var needles []string
		for _, k := range r.Keywords {
			if k = util.Fold(strings.TrimSpace(k)); k != "" {
				needles = append(needles, k)
			}
		}
		c.rules = append(c.rules, rule{category: domain.Category(name), needles: needles})
	}
	return c
}

// Categorize matches keywords as substrings of the folded title and
// description. Taxonomy order breaks ties; no hit means General.
func (c *Categorizer) Categorize(title, description string) domain.Category {
	text := util.Fold(title + " " + description)
	for _, r := range c.rules {
		for _, n := range r.needles {
			if strings.Contains(text, n) {
				return r.category
			}
		}
	}
	return domain.CategoryGeneral
}

func (c *Categorizer) Apply(l domain.Lead) domain.Lead {
	l.Category = c.Categorize(l.Title, l.Description)
	return l
}

// Categories lists the taxonomy in order, followed by General.
func (c *Categorizer) Categories() []domain.Category {
	out := make([]domain.Category, 0, len(c.rules)+1)
	for _, r := range c.rules {
		out = append(out, r.category)
	}
	return append(out, domain.CategoryGeneral)
}
