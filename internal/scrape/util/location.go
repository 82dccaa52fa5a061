package util

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var locationSelectors = []string{
	".location",
	".post-location",
	".neighborhood",
	"[data-testid='location']",
	"[itemprop='addressLocality']",
}

// FindLocation looks for a location inside one listing element, first via the
// given selector, then via common class names, then via "Location:" labels.
func FindLocation(sel *goquery.Selection, selector string) string {
	if selector != "" {
		if t := CleanText(sel.Find(selector).First().Text()); t != "" {
			return NormalizeLocation(t)
		}
	}
	for _, s := range locationSelectors {
		if t := CleanText(sel.Find(s).First().Text()); t != "" {
			return NormalizeLocation(t)
		}
	}
	if loc := ExtractLabeledValue(sel.Text(), "location", "locations", "city", "address"); loc != "" {
		return NormalizeLocation(loc)
	}
	return ""
}

// ExtractLabeledValue returns the text after the first "<label>:" found in s,
// cut at the end of the line.
func ExtractLabeledValue(s string, labels ...string) string {
	low := strings.ToLower(s)

	for _, lab := range labels {
		lab = strings.ToLower(lab) + ":"
		i := strings.Index(low, lab)
		// label must start a line or follow whitespace
		for i > 0 && !isSpace(low[i-1]) {
			next := strings.Index(low[i+len(lab):], lab)
			if next < 0 {
				i = -1
				break
			}
			i += len(lab) + next
		}
		if i < 0 {
			continue
		}
		rest := s[i+len(lab):]
		for _, cut := range []string{"\n", "\r", " | "} {
			if j := strings.Index(rest, cut); j >= 0 {
				rest = rest[:j]
			}
		}
		rest = CleanText(rest)
		if rest != "" && len(rest) <= 200 {
			return rest
		}
	}
	return ""
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\r' || b == '\t'
}
