// Package fetching implements the multi-layer article fetcher.
//
// A fetch runs two phases: a holdings-first search pass across every source
// that supports keyword search, then a top-stories pass over the L1/L2 feeds
// with L3 as a fallback when the feeds run thin. Sources are fetched in
// parallel with per-source timeouts; a failed source contributes zero items
// and never aborts the batch.
package fetching

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/peterbitar/wealthyrabbit/internal/modules/sources"
)

const (
	rssTimeout = 20 * time.Second
	apiTimeout = 30 * time.Second

	// topStoriesFloor is the minimum number of top-stories items L1+L2 must
	// produce before L3 is skipped.
	topStoriesFloor = 30

	// perHostConcurrency bounds simultaneous fetches.
	perHostConcurrency = 4
)

// Fetcher produces deduplicated RawArticles across all source layers.
type Fetcher struct {
	registry   *sources.Registry
	httpClient *http.Client
	apiKeys    map[string]string // source name -> API key (L3)
	clock      func() time.Time
	log        zerolog.Logger
}

// NewFetcher creates a fetcher over the given source registry.
func NewFetcher(registry *sources.Registry, apiKeys map[string]string, log zerolog.Logger) *Fetcher {
	return &Fetcher{
		registry:   registry,
		httpClient: &http.Client{Timeout: apiTimeout},
		apiKeys:    apiKeys,
		clock:      time.Now,
		log:        log.With().Str("component", "fetcher").Logger(),
	}
}

// FetchAll runs the holdings-first pass then the top-stories pass and returns
// up to limit articles, holdings news first, deduplicated by normalized URL.
//
// Per-source errors are logged and swallowed; if every source fails the
// result is empty, not an error. The only error returned is context
// cancellation.
func (f *Fetcher) FetchAll(ctx context.Context, holdings []string, limit int) ([]RawArticle, error) {
	if limit <= 0 {
		return nil, nil
	}

	holdingsNews := f.fetchHoldingsNews(ctx, holdings)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	topStories := f.fetchTopStories(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := dedupeByURL(append(holdingsNews, topStories...))
	if len(merged) > limit {
		merged = merged[:limit]
	}

	f.log.Info().
		Int("holdings_news", len(holdingsNews)).
		Int("top_stories", len(topStories)).
		Int("returned", len(merged)).
		Msg("Fetch completed")

	return merged, nil
}

// FetchSymbolNews runs only the search pass for one symbol. Used by the news
// monitor for per-symbol headline scans.
func (f *Fetcher) FetchSymbolNews(ctx context.Context, symbol string) []RawArticle {
	return dedupeByURL(f.fetchHoldingsNews(ctx, []string{symbol}))
}

// fetchHoldingsNews is phase A: one keyword-scoped search per symbol against
// every source that supports it.
func (f *Fetcher) fetchHoldingsNews(ctx context.Context, holdings []string) []RawArticle {
	var (
		mu      sync.Mutex
		results []RawArticle
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(perHostConcurrency)

	for _, symbol := range holdings {
		for _, src := range f.registry.All() {
			if !src.SupportsSearch() {
				continue
			}
			symbol, src := symbol, src
			g.Go(func() error {
				articles, err := f.fetchSearch(gctx, src, symbol)
				if err != nil {
					f.logSourceError(src, err)
					return nil // a failed source never aborts the batch
				}
				mu.Lock()
				results = append(results, articles...)
				mu.Unlock()
				return nil
			})
		}
	}

	_ = g.Wait()
	return results
}

// fetchTopStories is phase B: every L1/L2 feed's latest items, with L3
// searches as fallback only when the feeds run below the floor.
func (f *Fetcher) fetchTopStories(ctx context.Context) []RawArticle {
	var (
		mu      sync.Mutex
		results []RawArticle
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(perHostConcurrency)

	for _, layer := range []int{1, 2} {
		for _, src := range f.registry.Layer(layer) {
			if src.FeedURL == "" {
				continue
			}
			src := src
			g.Go(func() error {
				articles, err := f.fetchFeed(gctx, src)
				if err != nil {
					f.logSourceError(src, err)
					return nil
				}
				mu.Lock()
				results = append(results, articles...)
				mu.Unlock()
				return nil
			})
		}
	}
	_ = g.Wait()

	if len(results) >= topStoriesFloor {
		return results
	}

	// L1+L2 ran thin; pull general market items from the supplemental APIs.
	for _, src := range f.registry.Layer(3) {
		articles, err := f.fetchSearch(ctx, src, "SPY")
		if err != nil {
			f.logSourceError(src, err)
			continue
		}
		for i := range articles {
			articles[i].IsHoldingsNews = false
		}
		results = append(results, articles...)
	}

	return results
}

// fetchFeed pulls the latest items from an RSS/Atom feed.
func (f *Fetcher) fetchFeed(ctx context.Context, src sources.Source) ([]RawArticle, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, rssTimeout)
	defer cancel()

	parser := gofeed.NewParser()
	parser.Client = f.httpClient

	feed, err := parser.ParseURLWithContext(src.FeedURL, fetchCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", src.Name, err)
	}

	return f.feedItemsToArticles(src, feed, false, nil), nil
}

// fetchSearch runs a keyword search against one source. RSS sources use a
// filtered feed URL; API sources use their JSON search endpoint.
func (f *Fetcher) fetchSearch(ctx context.Context, src sources.Source, symbol string) ([]RawArticle, error) {
	switch src.Kind {
	case sources.KindAPI:
		return f.fetchAPISearch(ctx, src, symbol)
	default:
		fetchCtx, cancel := context.WithTimeout(ctx, rssTimeout)
		defer cancel()

		parser := gofeed.NewParser()
		parser.Client = f.httpClient

		searchURL := fmt.Sprintf(src.SearchURL, url.QueryEscape(symbol))
		feed, err := parser.ParseURLWithContext(searchURL, fetchCtx)
		if err != nil {
			return nil, fmt.Errorf("failed to search %s for %s: %w", src.Name, symbol, err)
		}

		return f.feedItemsToArticles(src, feed, true, []string{symbol}), nil
	}
}

// apiArticle mirrors the supplemental providers' JSON item shape.
type apiArticle struct {
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
	Datetime int64  `json:"datetime"`
	Related  string `json:"related"`
}

func (f *Fetcher) fetchAPISearch(ctx context.Context, src sources.Source, symbol string) ([]RawArticle, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()

	endpoint := fmt.Sprintf(src.SearchURL, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request for %s: %w", src.Name, err)
	}
	if key := f.apiKeys[src.Name]; key != "" {
		req.Header.Set("X-Api-Key", key)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed for %s: %w", src.Name, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		// Permission/quota failures carry a provider hint so the operator can
		// tell a bad key from a throttle.
		return nil, fmt.Errorf("source %s denied request (status %d): check API key and plan quota", src.Name, resp.StatusCode)
	default:
		return nil, fmt.Errorf("source %s returned status %d", src.Name, resp.StatusCode)
	}

	var items []apiArticle
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", src.Name, err)
	}

	now := f.clock()
	articles := make([]RawArticle, 0, len(items))
	for _, item := range items {
		if item.Headline == "" || item.URL == "" {
			continue // malformed records are dropped, the rest survive
		}
		published := ""
		if item.Datetime > 0 {
			published = time.Unix(item.Datetime, 0).UTC().Format(time.RFC3339)
		}
		tickers := []string{symbol}
		if item.Related != "" {
			for _, t := range strings.Split(item.Related, ",") {
				if t = strings.TrimSpace(t); t != "" && !strings.EqualFold(t, symbol) {
					tickers = append(tickers, strings.ToUpper(t))
				}
			}
		}
		articles = append(articles, RawArticle{
			ID:             uuid.NewString(),
			Source:         src.Name,
			SourceLayer:    src.Layer,
			Title:          item.Headline,
			Description:    item.Summary,
			PublishedAt:    published,
			URL:            item.URL,
			InitialTickers: tickers,
			FetchTime:      now,
			IsHoldingsNews: true,
			SourceTag:      "api-search",
		})
	}

	return articles, nil
}

func (f *Fetcher) feedItemsToArticles(src sources.Source, feed *gofeed.Feed, holdingsNews bool, tickers []string) []RawArticle {
	now := f.clock()
	articles := make([]RawArticle, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil || item.Title == "" || item.Link == "" {
			continue
		}
		articles = append(articles, RawArticle{
			ID:             uuid.NewString(),
			Source:         src.Name,
			SourceLayer:    src.Layer,
			Title:          item.Title,
			RawBody:        item.Content,
			Description:    item.Description,
			PublishedAt:    item.Published,
			URL:            item.Link,
			InitialTickers: tickers,
			FetchTime:      now,
			IsHoldingsNews: holdingsNews,
			SourceTag:      "rss",
		})
	}
	return articles
}

func (f *Fetcher) logSourceError(src sources.Source, err error) {
	f.log.Warn().
		Err(err).
		Str("source", src.Name).
		Int("layer", src.Layer).
		Msg("Source fetch failed, continuing without it")
}

// NormalizeURL lowercases a URL and strips its query string and fragment.
// Used for exact-duplicate detection here and in the clustering stage.
func NormalizeURL(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSuffix(s, "/")
}

// dedupeByURL drops repeat normalized URLs, preserving first-seen order.
func dedupeByURL(articles []RawArticle) []RawArticle {
	seen := make(map[string]bool, len(articles))
	out := make([]RawArticle, 0, len(articles))
	for _, a := range articles {
		key := NormalizeURL(a.URL)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out
}
