// Package rss reads classifieds search feeds (RSS or Atom).
package rss

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/scrape/types"
	"leadhunt-engine/internal/scrape/util"
)

// classified titles often end in "(Bethesda)"
var trailingPlaceRe = regexp.MustCompile(`\(([^()]{2,60})\)\s*$`)

type Adapter struct {
	hc      *http.Client
	limiter *util.HostLimiter
	parser  *gofeed.Parser
}

func New(hc *http.Client, limiter *util.HostLimiter) *Adapter {
	if hc == nil {
		hc = &http.Client{Timeout: 20 * time.Second}
	}
	return &Adapter{hc: hc, limiter: limiter, parser: gofeed.NewParser()}
}

func (a *Adapter) Kind() string { return "rss" }

func (a *Adapter) Fetch(ctx context.Context, src domain.Source) (types.ScrapeResult, error) {
	res := types.ScrapeResult{Source: src.Name}

	body, err := util.Get(ctx, a.hc, a.limiter, src.BaseURL)
	if err != nil {
		return res, fmt.Errorf("rss get feed: %w", err)
	}
	feed, err := a.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return res, fmt.Errorf("rss parse feed: %w", err)
	}

	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		p, ok := toPosting(item, src.BaseURL)
		if !ok {
			continue
		}
		if !util.MatchesKeywords(src.Keywords, p.Title, p.Description) {
			continue
		}
		res.Postings = append(res.Postings, p)
		if src.MaxResults > 0 && len(res.Postings) >= src.MaxResults {
			break
		}
	}
	return res, nil
}

func toPosting(item *gofeed.Item, base string) (domain.RawPosting, bool) {
	title := util.CleanText(item.Title)
	desc := htmlToText(cmp.Or(item.Description, item.Content))
	if title == "" && desc == "" {
		return domain.RawPosting{}, false
	}

	p := domain.RawPosting{
		Title:       title,
		Description: desc,
		URL:         util.ResolveURL(base, item.Link),
		ExternalID:  cmp.Or(item.GUID, item.Link),
		PostedAt:    cmp.Or(item.PublishedParsed, item.UpdatedParsed),
	}
	if p.PostedAt == nil {
		p.PostedText = cmp.Or(item.Published, item.Updated)
	}

	if loc := util.ExtractLabeledValue(desc, "location", "city"); loc != "" {
		p.Location = loc
	} else if m := trailingPlaceRe.FindStringSubmatch(title); m != nil {
		p.Location = m[1]
		p.Title = strings.TrimSpace(strings.TrimSuffix(title, m[0]))
	}
	return p, true
}

// htmlToText flattens feed HTML, keeping line breaks so labeled fields stay
// on their own lines.
func htmlToText(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	r := strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n", "</p>", "\n", "</li>", "\n")
	return strings.TrimSpace(stripTags(r.Replace(s)))
}
