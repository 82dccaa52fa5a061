package rss

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

func stripTags(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	var lines []string
	for _, ln := range strings.Split(doc.Text(), "\n") {
		if ln = strings.Join(strings.Fields(ln), " "); ln != "" {
			lines = append(lines, ln)
		}
	}
	return strings.Join(lines, "\n")
}
