package rss

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

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>services wanted</title>
  <item>
    <title>Kitchen remodel help wanted (Bethesda)</title>
    <link>https://example.org/post/1?utm_source=rss</link>
    <guid>post-1</guid>
    <description><![CDATA[<p>Gut and redo our kitchen.</p><p>Budget: $20k</p>]]></description>
    <pubDate>Tue, 10 Jun 2025 09:00:00 +0000</pubDate>
  </item>
  <item>
    <title>Bathroom tile</title>
    <link>/post/2</link>
    <description>Location: Silver Spring, MD
Regrout the shower</description>
  </item>
  <item>
    <title>Free couch</title>
    <link>/post/3</link>
    <description>curb alert</description>
  </item>
  <item>
    <title></title>
    <description></description>
  </item>
</channel>
</rss>`

func serve(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchParsesItems(t *testing.T) {
	srv := serve(t, feedXML, http.StatusOK)
	a := New(srv.Client(), util.NewHostLimiter(100, 10))

	res, err := a.Fetch(context.Background(), domain.Source{Name: "classifieds", Kind: "rss", BaseURL: srv.URL + "/feed"})
	require.NoError(t, err)
	assert.Equal(t, "classifieds", res.Source)
	require.Len(t, res.Postings, 3)

	first := res.Postings[0]
	assert.Equal(t, "Kitchen remodel help wanted", first.Title)
	assert.Equal(t, "Bethesda", first.Location)
	assert.Contains(t, first.Description, "Budget: $20k")
	assert.Equal(t, "post-1", first.ExternalID)
	require.NotNil(t, first.PostedAt)
	assert.Equal(t, 9, first.PostedAt.UTC().Hour())

	second := res.Postings[1]
	assert.Equal(t, "Silver Spring, MD", second.Location)
	assert.Equal(t, srv.URL+"/post/2", second.URL)
	assert.Nil(t, second.PostedAt)
}

func TestFetchAppliesKeywordsAndCap(t *testing.T) {
	srv := serve(t, feedXML, http.StatusOK)
	a := New(srv.Client(), nil)

	res, err := a.Fetch(context.Background(), domain.Source{
		Name: "classifieds", BaseURL: srv.URL, Keywords: []string{"kitchen", "shower"}, MaxResults: 1,
	})
	require.NoError(t, err)
	require.Len(t, res.Postings, 1)
	assert.Equal(t, "Kitchen remodel help wanted", res.Postings[0].Title)
}

func TestFetchFailures(t *testing.T) {
	a := New(nil, nil)

	srv := serve(t, "oops", http.StatusBadGateway)
	_, err := a.Fetch(context.Background(), domain.Source{Name: "x", BaseURL: srv.URL})
	require.Error(t, err)

	srv = serve(t, "not a feed", http.StatusOK)
	_, err = a.Fetch(context.Background(), domain.Source{Name: "x", BaseURL: srv.URL})
	require.Error(t, err)
}
