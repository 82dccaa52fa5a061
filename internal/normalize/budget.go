package normalize

import (
	"regexp"
	"strings"

	"leadhunt-engine/internal/scrape/util"
)

const amount = `\$\s?\d[\d,]*(?:\.\d{1,2})?\s?[kK]?`

var (
	dollarRangeRe = regexp.MustCompile(amount + `(?:\s*(?:-|–|to)\s*(?:\$\s?)?\d[\d,]*(?:\.\d{1,2})?\s?[kK]?)?`)
	underRe       = regexp.MustCompile(`(?i)\b(?:under|up to|below|max(?:imum)?)\s+` + amount)
)

// ExtractBudget finds a budget hint in the posting text: a "Budget:" line
// first, then "under $X" style caps, then any dollar amount or range.
func ExtractBudget(title, desc string) string {
	if v := util.ExtractLabeledValue(desc, "budget", "price range", "price"); v != "" {
		return trimBudget(v)
	}
	text := title + "\n" + desc
	if m := underRe.FindString(text); m != "" {
		return trimBudget(m)
	}
	if m := dollarRangeRe.FindString(text); m != "" {
		return trimBudget(m)
	}
	return ""
}

func trimBudget(s string) string {
	s = util.CleanText(s)
	s = strings.TrimRight(s, ".,;")
	if len([]rune(s)) > 60 {
		s = util.Truncate(s, 60)
	}
	return s
}
