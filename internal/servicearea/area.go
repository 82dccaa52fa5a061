// Package servicearea decides whether a lead's location is one the
// business serves.
package servicearea

import (
	"regexp"
	"strings"

	"leadhunt-engine/internal/config"
	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/scrape/util"
)

var postalRe = regexp.MustCompile(`\b\d{5}\b`)

type Area struct {
	postal  map[string]bool
	places  []string
	blocked []string
}

func New(cfg config.ServiceArea) *Area {
	a := &Area{postal: map[string]bool{}}
	for _, p := range cfg.PostalCodes {
		if p = strings.TrimSpace(p); p != "" {
			a.postal[p] = true
		}
	}
	a.places = foldAll(cfg.Places)
	a.blocked = foldAll(cfg.Blocked)
	return a
}

// Empty reports whether no coverage is configured; every lead is then in area.
func (a *Area) Empty() bool {
	return len(a.postal) == 0 && len(a.places) == 0
}

// Contains checks the lead's location (and, failing that, its text) against
// the coverage lists. Blocked places always lose.
func (a *Area) Contains(l domain.Lead) bool {
	loc := " " + strings.Join(util.Tokens(l.Location), " ") + " "
	text := " " + strings.Join(util.Tokens(l.Title+" "+l.Description), " ") + " "

	for _, b := range a.blocked {
		if strings.Contains(loc, b) {
			return false
		}
	}
	if a.Empty() {
		return true
	}

	for _, zip := range postalRe.FindAllString(l.Location+" "+l.Description, -1) {
		if a.postal[zip] {
			return true
		}
	}
	for _, p := range a.places {
		if strings.Contains(loc, p) {
			return true
		}
	}
	// unknown location: fall back to place names mentioned in the text
	if l.Location == "" || strings.EqualFold(l.Location, "unknown") {
		for _, p := range a.places {
			if strings.Contains(text, p) {
				return true
			}
		}
	}
	return false
}

// Apply stamps InServiceArea on every lead.
func (a *Area) Apply(leads []domain.Lead) {
	for i := range leads {
		leads[i].InServiceArea = a.Contains(leads[i])
	}
}

// foldAll pads each entry with spaces so matching is whole-word.
func foldAll(xs []string) []string {
	var out []string
	for _, x := range xs {
		if t := strings.Join(util.Tokens(x), " "); t != "" {
			out = append(out, " "+t+" ")
		}
	}
	return out
}
