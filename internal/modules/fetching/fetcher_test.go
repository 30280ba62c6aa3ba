package fetching

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peterbitar/wealthyrabbit/internal/modules/sources"
)

const testFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>Test Wire</title>
<item><title>Apple reports record quarterly results</title><link>https://example.com/a?utm=1</link><description>Numbers beat expectations.</description><pubDate>Mon, 02 Jan 2006 15:04:05 -0700</pubDate></item>
<item><title>Fed holds interest rates steady</title><link>https://example.com/b</link><description>No change this meeting.</description></item>
</channel></rss>`

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://example.com/a", NormalizeURL("HTTPS://Example.com/A?utm_source=x"))
	assert.Equal(t, "https://example.com/a", NormalizeURL("https://example.com/a#frag"))
	assert.Equal(t, "https://example.com/a", NormalizeURL("https://example.com/a/"))
	// Idempotent.
	assert.Equal(t, NormalizeURL("https://example.com/a"), NormalizeURL(NormalizeURL("https://example.com/a?q=1")))
}

func TestDedupeByURL(t *testing.T) {
	articles := []RawArticle{
		{URL: "https://example.com/a?x=1", Title: "first"},
		{URL: "https://EXAMPLE.com/a", Title: "dup of first"},
		{URL: "https://example.com/b", Title: "second"},
	}

	out := dedupeByURL(articles)
	require.Len(t, out, 2)
	assert.Equal(t, "first", out[0].Title)
	assert.Equal(t, "second", out[1].Title)
}

func TestFetchTopStoriesFromFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, testFeedXML)
	}))
	defer srv.Close()

	registry := sources.NewRegistryWith(sources.Source{
		Name: "Test Wire", Layer: 1, Tier: 1, Quality: 1.0,
		Kind: sources.KindRSS, FeedURL: srv.URL,
	})

	f := NewFetcher(registry, nil, zerolog.Nop())
	articles, err := f.FetchAll(context.Background(), nil, 10)
	require.NoError(t, err)
	require.Len(t, articles, 2)

	assert.Equal(t, "Apple reports record quarterly results", articles[0].Title)
	assert.Equal(t, "Test Wire", articles[0].Source)
	assert.Equal(t, 1, articles[0].SourceLayer)
	assert.False(t, articles[0].IsHoldingsNews)
	assert.NotEmpty(t, articles[0].ID)
}

func TestHoldingsNewsMarkedAndFirst(t *testing.T) {
	searchHits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		if r.URL.Query().Get("q") != "" {
			searchHits++
			fmt.Fprint(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>s</title>
<item><title>AAPL ships a new thing</title><link>https://example.com/search-hit</link></item>
</channel></rss>`)
			return
		}
		fmt.Fprint(w, testFeedXML)
	}))
	defer srv.Close()

	registry := sources.NewRegistryWith(sources.Source{
		Name: "Test Wire", Layer: 1, Tier: 1, Quality: 1.0,
		Kind: sources.KindRSS, FeedURL: srv.URL, SearchURL: srv.URL + "?q=%s",
	})

	f := NewFetcher(registry, nil, zerolog.Nop())
	articles, err := f.FetchAll(context.Background(), []string{"AAPL"}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, articles)

	assert.Equal(t, 1, searchHits)
	assert.True(t, articles[0].IsHoldingsNews, "holdings news must lead the result")
	assert.Equal(t, "AAPL ships a new thing", articles[0].Title)
	assert.Equal(t, []string{"AAPL"}, articles[0].InitialTickers)
}

func TestFailedSourceContributesNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	registry := sources.NewRegistryWith(
		sources.Source{Name: "Broken", Layer: 1, Tier: 1, Quality: 1.0, Kind: sources.KindRSS, FeedURL: srv.URL},
	)

	f := NewFetcher(registry, nil, zerolog.Nop())
	articles, err := f.FetchAll(context.Background(), nil, 10)

	require.NoError(t, err, "a failed source must not abort the batch")
	assert.Empty(t, articles)
}

func TestLimitCapsResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testFeedXML)
	}))
	defer srv.Close()

	registry := sources.NewRegistryWith(sources.Source{
		Name: "Test Wire", Layer: 1, Tier: 1, Quality: 1.0,
		Kind: sources.KindRSS, FeedURL: srv.URL,
	})

	f := NewFetcher(registry, nil, zerolog.Nop())
	articles, err := f.FetchAll(context.Background(), nil, 1)
	require.NoError(t, err)
	assert.Len(t, articles, 1)
}

func TestAPISearchDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `[{"headline":"NVDA datacenter demand grows","summary":"s","url":"https://example.com/api1","datetime":%d,"related":"NVDA,TSM"}]`, time.Now().Unix())
	}))
	defer srv.Close()

	registry := sources.NewRegistryWith(sources.Source{
		Name: "Test API", Layer: 3, Tier: 3, Quality: 0.6,
		Kind: sources.KindAPI, SearchURL: srv.URL + "?symbol=%s",
	})

	f := NewFetcher(registry, nil, zerolog.Nop())
	articles := f.FetchSymbolNews(context.Background(), "NVDA")
	require.Len(t, articles, 1)

	assert.Equal(t, "NVDA datacenter demand grows", articles[0].Title)
	assert.Equal(t, []string{"NVDA", "TSM"}, articles[0].InitialTickers)
	assert.True(t, articles[0].IsHoldingsNews)
	assert.NotEmpty(t, articles[0].PublishedAt)
}

func TestCancelledContextReturnsError(t *testing.T) {
	registry := sources.NewRegistryWith()
	f := NewFetcher(registry, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.FetchAll(ctx, nil, 10)
	assert.Error(t, err)
}
