// Package sources holds the static catalog of news sources.
//
// Sources are split into three layers: L1 wire feeds, L2 aggregators and L3
// supplemental APIs. Each carries a quality score in [0,1] used by the
// cleaning and clustering stages, and a tier (1 best) used by the news
// monitor's sensitivity gating.
package sources

import "sort"

// Kind describes how a source is fetched.
type Kind string

const (
	// KindRSS sources expose RSS/Atom feeds; search is a keyword-filtered feed URL.
	KindRSS Kind = "rss"
	// KindAPI sources expose a JSON search endpoint.
	KindAPI Kind = "api"
)

// Source is one declared news source. Static configuration, no state.
type Source struct {
	Name      string
	Layer     int     // 1 wire, 2 aggregator, 3 supplemental
	Tier      int     // 1..3, news-alert quality tier
	Quality   float64 // [0,1]
	Kind      Kind
	FeedURL   string // top-stories feed (RSS kinds)
	SearchURL string // keyword search template, %s is the query; empty if unsupported
}

// SupportsSearch reports whether the source can serve holdings-targeted queries.
func (s Source) SupportsSearch() bool {
	return s.SearchURL != ""
}

// Registry is the static source catalog.
type Registry struct {
	byName map[string]Source
	all    []Source
}

// NewRegistry returns the default catalog.
func NewRegistry() *Registry {
	return newRegistry(defaultSources)
}

// NewRegistryWith returns a registry over an explicit source list
// (source-list overrides, tests).
func NewRegistryWith(list ...Source) *Registry {
	return newRegistry(list)
}

func newRegistry(list []Source) *Registry {
	r := &Registry{byName: make(map[string]Source, len(list))}
	for _, s := range list {
		r.byName[s.Name] = s
		r.all = append(r.all, s)
	}
	return r
}

// Layers returns the sources grouped by layer, each group in declaration order.
func (r *Registry) Layers() map[int][]Source {
	out := make(map[int][]Source, 3)
	for _, s := range r.all {
		out[s.Layer] = append(out[s.Layer], s)
	}
	return out
}

// Layer returns the sources of one layer in declaration order.
func (r *Registry) Layer(n int) []Source {
	var out []Source
	for _, s := range r.all {
		if s.Layer == n {
			out = append(out, s)
		}
	}
	return out
}

// All returns every source, ordered by layer then declaration order.
func (r *Registry) All() []Source {
	out := make([]Source, len(r.all))
	copy(out, r.all)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Layer < out[j].Layer })
	return out
}

// Quality returns the registered quality score for a source name, 0 if unknown.
func (r *Registry) Quality(name string) float64 {
	if s, ok := r.byName[name]; ok {
		return s.Quality
	}
	return 0
}

// Tier returns the news-alert tier for a source name, 0 if unknown.
func (r *Registry) Tier(name string) int {
	if s, ok := r.byName[name]; ok {
		return s.Tier
	}
	return 0
}

// Lookup returns the source by name.
func (r *Registry) Lookup(name string) (Source, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// defaultSources is the build-time catalog. L1 wire feeds score 1.0, L2
// aggregators 0.75-0.90, L3 supplemental APIs 0.60.
var defaultSources = []Source{
	// Layer 1 - wire feeds
	{
		Name:      "Reuters",
		Layer:     1,
		Tier:      1,
		Quality:   1.0,
		Kind:      KindRSS,
		FeedURL:   "https://feeds.reuters.com/reuters/businessNews",
		SearchURL: "https://news.google.com/rss/search?q=%s+site:reuters.com",
	},
	{
		Name:      "Associated Press",
		Layer:     1,
		Tier:      1,
		Quality:   1.0,
		Kind:      KindRSS,
		FeedURL:   "https://feeds.apnews.com/apnews/business",
		SearchURL: "https://news.google.com/rss/search?q=%s+site:apnews.com",
	},
	{
		Name:      "Bloomberg",
		Layer:     1,
		Tier:      1,
		Quality:   1.0,
		Kind:      KindRSS,
		FeedURL:   "https://feeds.bloomberg.com/markets/news.rss",
		SearchURL: "https://news.google.com/rss/search?q=%s+site:bloomberg.com",
	},

	// Layer 2 - aggregators
	{
		Name:      "Yahoo Finance",
		Layer:     2,
		Tier:      2,
		Quality:   0.85,
		Kind:      KindRSS,
		FeedURL:   "https://finance.yahoo.com/news/rssindex",
		SearchURL: "https://feeds.finance.yahoo.com/rss/2.0/headline?s=%s",
	},
	{
		Name:      "CNBC",
		Layer:     2,
		Tier:      2,
		Quality:   0.85,
		Kind:      KindRSS,
		FeedURL:   "https://www.cnbc.com/id/100003114/device/rss/rss.html",
		SearchURL: "https://news.google.com/rss/search?q=%s+site:cnbc.com",
	},
	{
		Name:      "MarketWatch",
		Layer:     2,
		Tier:      2,
		Quality:   0.80,
		Kind:      KindRSS,
		FeedURL:   "https://feeds.marketwatch.com/marketwatch/topstories/",
		SearchURL: "https://news.google.com/rss/search?q=%s+site:marketwatch.com",
	},
	{
		Name:    "Seeking Alpha",
		Layer:   2,
		Tier:    2,
		Quality: 0.75,
		Kind:    KindRSS,
		FeedURL: "https://seekingalpha.com/market_currents.xml",
	},

	// Layer 3 - supplemental APIs, used as fallback and for symbol search
	{
		Name:      "Benzinga",
		Layer:     3,
		Tier:      3,
		Quality:   0.60,
		Kind:      KindAPI,
		SearchURL: "https://api.benzinga.com/api/v2/news?tickers=%s",
	},
	{
		Name:      "Finnhub",
		Layer:     3,
		Tier:      3,
		Quality:   0.60,
		Kind:      KindAPI,
		SearchURL: "https://finnhub.io/api/v1/company-news?symbol=%s",
	},
}
