package board

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/scrape/util"
)

const page = `<html><body>
<div class="post">
  <h3 class="subject"><a href="/p/101">Need deck stained</a></h3>
  <div class="body">About 300 sq ft, cedar.</div>
  <span class="hood">Takoma Park</span>
  <time datetime="2025-06-10T08:00:00Z">2 hours ago</time>
  <span class="price">$1,200</span>
</div>
<div class="post">
  <h3 class="subject"><a href="/p/102">Gutter cleaning</a></h3>
  <div class="body">Location: Kensington, MD</div>
  <time>3 hours ago</time>
</div>
<div class="post">
  <h3 class="subject"><a href="/p/101">Need deck stained</a></h3>
</div>
<div class="post"></div>
</body></html>`

func source(url string) domain.Source {
	return domain.Source{
		Name: "neighborhood-network", Kind: "html", BaseURL: url,
		Selectors: map[string]string{
			SelItem: ".post", SelTitle: ".subject", SelDescription: ".body",
			SelLocation: ".hood", SelPosted: "time", SelBudget: ".price",
		},
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	a := New(srv.Client(), util.NewHostLimiter(100, 10))
	res, err := a.Fetch(context.Background(), source(srv.URL+"/board"))
	require.NoError(t, err)
	require.Len(t, res.Postings, 2)

	p := res.Postings[0]
	assert.Equal(t, "Need deck stained", p.Title)
	assert.Equal(t, "About 300 sq ft, cedar.", p.Description)
	assert.Equal(t, "Takoma Park", p.Location)
	assert.Equal(t, "2025-06-10T08:00:00Z", p.PostedText)
	assert.Equal(t, "$1,200", p.Budget)
	assert.Equal(t, srv.URL+"/p/101", p.URL)

	p = res.Postings[1]
	assert.Equal(t, "Kensington, MD", p.Location)
	assert.Equal(t, "3 hours ago", p.PostedText)
	assert.Empty(t, p.Budget)
}

func TestFetchKeywordsAndCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	src := source(srv.URL)
	src.Keywords = []string{"gutter"}
	res, err := New(nil, nil).Fetch(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, res.Postings, 1)
	assert.Equal(t, "Gutter cleaning", res.Postings[0].Title)

	src.Keywords = nil
	src.MaxResults = 1
	res, err = New(nil, nil).Fetch(context.Background(), src)
	require.NoError(t, err)
	assert.Len(t, res.Postings, 1)
}

func TestFetchRequiresItemSelector(t *testing.T) {
	_, err := New(nil, nil).Fetch(context.Background(), domain.Source{Name: "x", BaseURL: "http://127.0.0.1:1"})
	require.Error(t, err)
}
