// Package board scrapes HTML listing pages such as neighborhood-network
// boards. Every site differs, so the CSS selectors come from the source's
// config.
package board

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/scrape/types"
	"leadhunt-engine/internal/scrape/util"
)

// Selector keys understood in source.selectors.
const (
	SelItem        = "item"
	SelTitle       = "title"
	SelDescription = "description"
	SelLocation    = "location"
	SelPosted      = "posted"
	SelLink        = "link"
	SelBudget      = "budget"
	SelContact     = "contact"
)

type Adapter struct {
	hc      *http.Client
	limiter *util.HostLimiter
}

func New(hc *http.Client, limiter *util.HostLimiter) *Adapter {
	if hc == nil {
		hc = &http.Client{Timeout: 20 * time.Second}
	}
	return &Adapter{hc: hc, limiter: limiter}
}

func (a *Adapter) Kind() string { return "html" }

func (a *Adapter) Fetch(ctx context.Context, src domain.Source) (types.ScrapeResult, error) {
	res := types.ScrapeResult{Source: src.Name}
	sel := src.Selectors
	if strings.TrimSpace(sel[SelItem]) == "" {
		return res, errors.New("board: selectors.item is required")
	}

	body, err := util.Get(ctx, a.hc, a.limiter, src.BaseURL)
	if err != nil {
		return res, fmt.Errorf("board get page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return res, fmt.Errorf("board parse html: %w", err)
	}

	seen := map[string]bool{}
	doc.Find(sel[SelItem]).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		p, ok := posting(s, sel, src.BaseURL)
		if !ok {
			return true
		}
		key := p.URL
		if key == "" {
			key = p.Title + "|" + p.Location
		}
		if seen[key] {
			return true
		}
		seen[key] = true

		if !util.MatchesKeywords(src.Keywords, p.Title, p.Description) {
			return true
		}
		res.Postings = append(res.Postings, p)
		return src.MaxResults <= 0 || len(res.Postings) < src.MaxResults
	})
	return res, nil
}

func posting(s *goquery.Selection, sel map[string]string, base string) (domain.RawPosting, bool) {
	text := func(key string) string {
		if q := sel[key]; q != "" {
			return util.CleanText(s.Find(q).First().Text())
		}
		return ""
	}

	title := text(SelTitle)
	if title == "" {
		title = util.CleanText(s.Find("h1, h2, h3, h4, a").First().Text())
	}
	desc := text(SelDescription)
	if title == "" && desc == "" {
		return domain.RawPosting{}, false
	}

	p := domain.RawPosting{
		Title:         title,
		Description:   desc,
		Location:      util.FindLocation(s, sel[SelLocation]),
		Budget:        text(SelBudget),
		ContactMethod: strings.ToLower(text(SelContact)),
	}

	linkSel := s.Find("a[href]").First()
	if q := sel[SelLink]; q != "" {
		linkSel = s.Find(q).First()
	}
	if href, ok := linkSel.Attr("href"); ok {
		p.URL = util.ResolveURL(base, href)
		p.ExternalID = p.URL
	}

	if q := sel[SelPosted]; q != "" {
		ps := s.Find(q).First()
		if dt, ok := ps.Attr("datetime"); ok && strings.TrimSpace(dt) != "" {
			p.PostedText = strings.TrimSpace(dt)
		} else {
			p.PostedText = util.CleanText(ps.Text())
		}
	}
	return p, true
}
