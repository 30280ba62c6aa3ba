package clustering

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peterbitar/wealthyrabbit/internal/modules/cleaning"
	"github.com/peterbitar/wealthyrabbit/internal/modules/detection"
)

var testNow = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

func testEngine(llm SameEventChecker) *Engine {
	e := NewEngine(llm, zerolog.Nop())
	e.clock = func() time.Time { return testNow }
	return e
}

func art(id, title, url string, tickers []string, published time.Time) cleaning.CleanedArticle {
	return cleaning.CleanedArticle{
		ID:            id,
		CleanTitle:    title,
		URL:           url,
		CleanTickers:  tickers,
		SourceQuality: 0.8,
		PublishedAt:   published,
	}
}

func event(artID, ticker string, eventType detection.EventType) detection.DetectedEvent {
	return detection.DetectedEvent{
		ID:             "ev-" + artID,
		ArticleID:      artID,
		Type:           eventType,
		BaseScore:      eventType.BaseScore(),
		DominantTicker: ticker,
	}
}

func TestTitleJaccard(t *testing.T) {
	assert.Equal(t, 1.0, TitleJaccard("Apple beats earnings estimates", "Apple beats earnings estimates"))
	assert.Equal(t, 0.0, TitleJaccard("Apple beats earnings", "Completely unrelated story here"))

	sim := TitleJaccard("Apple beats quarterly earnings estimates", "Apple quarterly earnings beat estimates again")
	assert.Greater(t, sim, 0.5)
	assert.Less(t, sim, 1.0)
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "apple beats earnings", NormalizeTitle("Apple Beats Earnings!"))
	// Short words (<=2 chars) are dropped, punctuation stripped.
	assert.Equal(t, "apple beats the street", NormalizeTitle("Apple, beats THE street: it is so"))
}

func TestStage1DropsDuplicates(t *testing.T) {
	e := testEngine(nil)

	articles := []cleaning.CleanedArticle{
		art("a1", "Apple beats quarterly earnings estimates", "https://example.com/1", []string{"AAPL"}, testNow),
		// Same URL.
		art("a2", "A different headline entirely today folks", "https://example.com/1", []string{"AAPL"}, testNow),
		// Same normalized title.
		art("a3", "Apple beats quarterly earnings estimates!!!", "https://example.com/3", []string{"AAPL"}, testNow),
	}

	kept := e.filterDuplicates(articles)
	require.Len(t, kept, 1)
	assert.Equal(t, "a1", kept[0].ID)
}

func TestIntraTickerQuickAccept(t *testing.T) {
	e := testEngine(nil)

	a := art("a1", "Apple posts record services revenue in earnings", "https://example.com/1", []string{"AAPL"}, testNow)
	b := art("a2", "Strong iPhone demand drives the December quarter", "https://example.com/2", []string{"AAPL"}, testNow.Add(-6*time.Hour))

	events := map[string]detection.DetectedEvent{
		"a1": event("a1", "AAPL", detection.EventEarnings),
		"a2": event("a2", "AAPL", detection.EventEarnings),
	}

	clusters := e.Cluster(context.Background(), []cleaning.CleanedArticle{a, b}, events, nil)
	require.Len(t, clusters, 1, "same ticker + same type + within 48h merges without LLM")
	assert.Len(t, clusters[0].Articles, 2)
	assert.Equal(t, "AAPL", clusters[0].DominantTicker)
	assert.Contains(t, clusters[0].Similarities, 0.95)
}

func TestIntraTickerOutsideWindowStaysSplit(t *testing.T) {
	e := testEngine(nil)

	a := art("a1", "Apple posts record services revenue growth", "https://example.com/1", []string{"AAPL"}, testNow)
	b := art("a2", "Strong iPhone demand drives holiday quarter sales", "https://example.com/2", []string{"AAPL"}, testNow.Add(-80*time.Hour))

	events := map[string]detection.DetectedEvent{
		"a1": event("a1", "AAPL", detection.EventEarnings),
		"a2": event("a2", "AAPL", detection.EventEarnings),
	}

	// No LLM: ambiguous pairs fall back to similarity > 0.50, which these
	// dissimilar titles fail.
	clusters := e.Cluster(context.Background(), []cleaning.CleanedArticle{a, b}, events, nil)
	assert.Len(t, clusters, 2)
}

// yesChecker always answers "same event".
type yesChecker struct{ calls int }

func (y *yesChecker) SameEvent(_ context.Context, _, _ string) (bool, error) {
	y.calls++
	return true, nil
}

// errChecker always fails, forcing the similarity fallback.
type errChecker struct{}

func (errChecker) SameEvent(_ context.Context, _, _ string) (bool, error) {
	return false, fmt.Errorf("llm unavailable")
}

func TestCrossTickerMerge(t *testing.T) {
	// Scenario: two articles about one partnership, distinct dominant
	// tickers, published within 24h. Exactly one cluster must come out.
	e := testEngine(&yesChecker{})

	// Company-name aliasing in cleaning gives both articles both tickers,
	// so the mentioned-ticker overlap queues the LLM confirmation.
	a := art("a1", "Alphabet and Meta announce AI chip partnership", "https://example.com/1", []string{"GOOGL", "META"}, testNow)
	b := art("a2", "Meta, Google to co-develop custom AI silicon", "https://example.com/2", []string{"META", "GOOGL"}, testNow.Add(-20*time.Hour))

	events := map[string]detection.DetectedEvent{
		"a1": event("a1", "GOOGL", detection.EventProductLaunch),
		"a2": event("a2", "META", detection.EventProductLaunch),
	}

	holdings := map[string]bool{"META": true}
	clusters := e.Cluster(context.Background(), []cleaning.CleanedArticle{a, b}, events, holdings)

	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0].Articles, 2)
	assert.True(t, clusters[0].CrossTickerMerged)
	assert.Equal(t, "META", clusters[0].DominantTicker, "holdings-owned ticker wins the merge")
}

func TestCrossTickerMergeUnownedPicksMajority(t *testing.T) {
	e := testEngine(&yesChecker{})

	a := art("a1", "Alphabet and Meta announce AI chip partnership", "https://example.com/1", []string{"GOOGL", "META"}, testNow)
	b := art("a2", "Meta, Google to co-develop custom AI silicon", "https://example.com/2", []string{"META"}, testNow.Add(-20*time.Hour))

	events := map[string]detection.DetectedEvent{
		"a1": event("a1", "GOOGL", detection.EventProductLaunch),
		"a2": event("a2", "META", detection.EventProductLaunch),
	}

	clusters := e.Cluster(context.Background(), []cleaning.CleanedArticle{a, b}, events, nil)
	require.Len(t, clusters, 1)
	assert.Equal(t, "META", clusters[0].DominantTicker, "META appears in more member articles")
}

func TestLLMFailureDegradesToSimilarity(t *testing.T) {
	e := testEngine(errChecker{})

	a := art("a1", "Tesla delivery numbers crush analyst expectations globally", "https://example.com/1", []string{"TSLA"}, testNow)
	b := art("a2", "Quiet week for most European carmakers overall", "https://example.com/2", []string{"TSLA"}, testNow.Add(-1*time.Hour))

	events := map[string]detection.DetectedEvent{
		"a1": event("a1", "TSLA", detection.EventEarnings),
		"a2": event("a2", "TSLA", detection.EventMacro),
	}

	// Different event types, low title similarity: the failed LLM check
	// falls back to similarity > 0.50 and keeps them apart.
	clusters := e.Cluster(context.Background(), []cleaning.CleanedArticle{a, b}, events, nil)
	assert.Len(t, clusters, 2)
}

func TestCanonicalSelectionPrefersQualityAndBody(t *testing.T) {
	e := testEngine(nil)

	thin := art("a1", "Apple posts record quarterly services revenue", "https://example.com/1", []string{"AAPL"}, testNow)
	thin.SourceQuality = 0.6

	rich := art("a2", "Apple revenue hits record on strong services quarter", "https://example.com/2", []string{"AAPL"}, testNow)
	rich.SourceQuality = 1.0
	for i := 0; i < 40; i++ {
		rich.CleanBody += "substantial reporting text "
	}

	events := map[string]detection.DetectedEvent{
		"a1": event("a1", "AAPL", detection.EventEarnings),
		"a2": event("a2", "AAPL", detection.EventEarnings),
	}

	clusters := e.Cluster(context.Background(), []cleaning.CleanedArticle{thin, rich}, events, nil)
	require.Len(t, clusters, 1)
	assert.Equal(t, "a2", clusters[0].Canonical().ID)
}

func TestEmptyInputYieldsNoClusters(t *testing.T) {
	e := testEngine(nil)
	clusters := e.Cluster(context.Background(), nil, nil, nil)
	assert.Empty(t, clusters)
}

func TestClustersNeverEmpty(t *testing.T) {
	e := testEngine(nil)

	var articles []cleaning.CleanedArticle
	events := make(map[string]detection.DetectedEvent)
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("a%d", i)
		articles = append(articles, art(id,
			fmt.Sprintf("Completely distinct event headline number %d about markets", i),
			fmt.Sprintf("https://example.com/%d", i), nil, testNow))
		events[id] = event(id, "", detection.EventMacro)
	}

	for _, c := range e.Cluster(context.Background(), articles, events, nil) {
		assert.NotEmpty(t, c.Articles)
		assert.NotEmpty(t, c.ID)
	}
}
