// Package cleaning implements the deterministic RawArticle -> CleanedArticle
// transform: markup stripping, date normalization, ticker extraction, and
// the low-information gate.
//
// Clean is a pure function of its input plus the static registry and
// vocabulary: no network, no errors. Malformed input yields empty fields,
// never a failure.
package cleaning

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/peterbitar/wealthyrabbit/internal/modules/fetching"
	"github.com/peterbitar/wealthyrabbit/internal/modules/sources"
)

// CleanedArticle is the normalized form of one RawArticle (1:1).
type CleanedArticle struct {
	ID               string
	RawArticleID     string
	URL              string // normalized
	CleanTitle       string
	CleanDescription string
	CleanBody        string
	CleanTickers     []string // uppercase, vocabulary-recognized, deduplicated
	Language         string
	SourceQuality    float64
	PublishedAt      time.Time // absolute instant
	Author           string
	Source           string
	SourceLayer      int
	SourceCategory   string
	IsHoldingsNews   bool
	IsLowInformation bool
}

const (
	lowInfoTitleLen = 30
	lowInfoBodyLen  = 120
)

// publishedAtFormats is the ordered ladder tried before the permissive
// parser: RFC 822 variants first (RSS convention), then ISO 8601 with and
// without fractional seconds.
var publishedAtFormats = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

var (
	whitespacePattern = regexp.MustCompile(`\s+`)
	tickerPattern     = regexp.MustCompile(`\b[A-Z]{1,5}\b`)
)

// boilerplateMarkers flag bodies that are navigation chrome or paywall stubs
// rather than reporting.
var boilerplateMarkers = []string{
	"click here to read",
	"sign up for our newsletter",
	"subscribe to continue reading",
	"this article is reserved for subscribers",
	"read the full story",
	"all rights reserved",
}

// englishStopwords drives the language gate: a couple of hits across the
// title, description and body is enough evidence for English.
var englishStopwords = []string{
	"the", "and", "for", "with", "that", "from", "this", "are", "was", "has",
	"will", "its", "after", "over", "into",
}

// Cleaner turns raw articles into cleaned ones.
type Cleaner struct {
	registry *sources.Registry
	vocab    *TickerVocabulary
	log      zerolog.Logger
}

// NewCleaner creates a cleaner over the source registry and ticker vocabulary.
func NewCleaner(registry *sources.Registry, vocab *TickerVocabulary, log zerolog.Logger) *Cleaner {
	return &Cleaner{
		registry: registry,
		vocab:    vocab,
		log:      log.With().Str("component", "cleaner").Logger(),
	}
}

// Clean transforms one raw article. Idempotent: cleaning already-clean text
// yields the same values.
func (c *Cleaner) Clean(raw fetching.RawArticle) CleanedArticle {
	title := StripMarkup(raw.Title)
	description := StripMarkup(raw.Description)
	body := StripMarkup(raw.RawBody)
	if body == "" {
		// Feeds routinely carry the article text in the description element.
		body = description
	}

	publishedAt := c.parsePublishedAt(raw.PublishedAt, raw.FetchTime)

	tickers := c.extractTickers(title + " " + description + " " + body)
	for _, t := range raw.InitialTickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" && !containsString(tickers, t) {
			tickers = append(tickers, t)
		}
	}

	return CleanedArticle{
		ID:               uuid.NewString(),
		RawArticleID:     raw.ID,
		URL:              fetching.NormalizeURL(raw.URL),
		CleanTitle:       title,
		CleanDescription: description,
		CleanBody:        body,
		CleanTickers:     tickers,
		Language:         detectLanguage(title + " " + description + " " + body),
		SourceQuality:    c.registry.Quality(raw.Source),
		PublishedAt:      publishedAt,
		Source:           raw.Source,
		SourceLayer:      raw.SourceLayer,
		SourceCategory:   raw.SourceTag,
		IsHoldingsNews:   raw.IsHoldingsNews,
		IsLowInformation: isLowInformation(title, body),
	}
}

// CleanAll cleans a batch, keeping only English articles.
func (c *Cleaner) CleanAll(raws []fetching.RawArticle) ([]CleanedArticle, int) {
	cleaned := make([]CleanedArticle, 0, len(raws))
	droppedNonEnglish := 0
	for _, raw := range raws {
		art := c.Clean(raw)
		if art.Language != "en" {
			droppedNonEnglish++
			continue
		}
		cleaned = append(cleaned, art)
	}
	return cleaned, droppedNonEnglish
}

// StripMarkup removes HTML, decodes entities and normalizes whitespace.
func StripMarkup(s string) string {
	if s == "" {
		return ""
	}

	text := s
	if strings.ContainsAny(s, "<>") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
		if err == nil {
			doc.Find("script, style").Remove()
			text = doc.Text()
		}
	}

	text = html.UnescapeString(text)
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}

// parsePublishedAt tries the explicit format ladder, then the permissive
// parser, then falls back to fetch time.
func (c *Cleaner) parsePublishedAt(raw string, fetchTime time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fetchTime.UTC()
	}

	for _, layout := range publishedAtFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}

	if t, err := dateparse.ParseAny(raw); err == nil {
		return t.UTC()
	}

	return fetchTime.UTC()
}

// extractTickers matches uppercase tokens of length 1-5 against the
// vocabulary, then sweeps lowercase words for company-name aliases. Only
// vocabulary members and alias targets survive, so common words like "CEO"
// never leak through unless someone lists them.
func (c *Cleaner) extractTickers(text string) []string {
	var out []string
	for _, token := range tickerPattern.FindAllString(text, -1) {
		if c.vocab.Contains(token) && !containsString(out, token) {
			out = append(out, token)
		}
	}

	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,:;!?'\"()")
		if ticker, ok := AliasTicker(word); ok && !containsString(out, ticker) {
			out = append(out, ticker)
		}
	}

	return out
}

func isLowInformation(title, body string) bool {
	if len(title) < lowInfoTitleLen {
		return true
	}
	if len(body) < lowInfoBodyLen {
		return true
	}
	lower := strings.ToLower(body)
	for _, marker := range boilerplateMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// detectLanguage is a stopword heuristic sufficient for the binary en-gate.
// Empty text defaults to en (the caller has nothing else to go on and the
// low-information gate handles empty bodies separately).
func detectLanguage(text string) string {
	if strings.TrimSpace(text) == "" {
		return "en"
	}
	lower := " " + strings.ToLower(text) + " "
	hits := 0
	for _, word := range englishStopwords {
		if strings.Contains(lower, " "+word+" ") {
			hits++
			if hits >= 2 {
				return "en"
			}
		}
	}
	return "unknown"
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
