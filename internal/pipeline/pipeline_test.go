package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peterbitar/wealthyrabbit/internal/domain"
	"github.com/peterbitar/wealthyrabbit/internal/modules/cleaning"
	"github.com/peterbitar/wealthyrabbit/internal/modules/clustering"
	"github.com/peterbitar/wealthyrabbit/internal/modules/detection"
	"github.com/peterbitar/wealthyrabbit/internal/modules/feed"
	"github.com/peterbitar/wealthyrabbit/internal/modules/fetching"
	"github.com/peterbitar/wealthyrabbit/internal/modules/scoring"
	"github.com/peterbitar/wealthyrabbit/internal/modules/sources"
)

func newPipeline(registry *sources.Registry) *Pipeline {
	log := zerolog.Nop()
	return New(
		fetching.NewFetcher(registry, nil, log),
		cleaning.NewCleaner(registry, cleaning.NewTickerVocabulary(), log),
		detection.NewDetector(nil, log),
		clustering.NewEngine(nil, log),
		scoring.NewEngine(log),
		feed.NewBuilder(nil, log),
		50,
		log,
	)
}

func beginnerUser() domain.UserSettings {
	return domain.UserSettings{UserID: "u1", Mode: domain.ModeBeginner}
}

func TestZeroSourcesYieldsZeroThemesNoError(t *testing.T) {
	p := newPipeline(sources.NewRegistryWith())

	result, err := p.Run(context.Background(), beginnerUser(), nil)
	require.NoError(t, err)

	assert.Empty(t, result.Themes)
	assert.Equal(t, 0, result.Diagnostics.Fetched)
}

const pipelineFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Wire</title>
<item>
<title>Apple reports record quarterly earnings and beats the street</title>
<link>https://example.com/apple-earnings</link>
<description>Apple posted results well ahead of expectations as services revenue kept climbing and iPhone demand held up better than analysts had forecast for the holiday quarter.</description>
<pubDate>Wed, 01 Jul 2026 10:00:00 +0000</pubDate>
</item>
<item>
<title>Nvidia unveils its next generation of AI accelerators</title>
<link>https://example.com/nvidia-launch</link>
<description>Nvidia introduced new datacenter chips aimed at keeping its lead in training hardware, with availability expected later in the year according to the company.</description>
<pubDate>Wed, 01 Jul 2026 09:00:00 +0000</pubDate>
</item>
</channel></rss>`

func feedServer(t *testing.T) *sources.Registry {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pipelineFeedXML)
	}))
	t.Cleanup(srv.Close)

	return sources.NewRegistryWith(sources.Source{
		Name: "Wire", Layer: 1, Tier: 1, Quality: 1.0,
		Kind: sources.KindRSS, FeedURL: srv.URL,
	})
}

func TestEndToEndRunProducesThemes(t *testing.T) {
	p := newPipeline(feedServer(t))

	result, err := p.Run(context.Background(), beginnerUser(), []domain.Holding{{UserID: "u1", Symbol: "AAPL"}})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Diagnostics.Fetched)
	assert.NotEmpty(t, result.Themes)
	for _, theme := range result.Themes {
		assert.NotEmpty(t, theme.Clusters)
		assert.NotEmpty(t, theme.Hook)
	}
}

func TestRunIsDeterministicOnIdenticalInputs(t *testing.T) {
	registry := feedServer(t)
	holdings := []domain.Holding{{UserID: "u1", Symbol: "AAPL"}}

	first, err := newPipeline(registry).Run(context.Background(), beginnerUser(), holdings)
	require.NoError(t, err)
	second, err := newPipeline(registry).Run(context.Background(), beginnerUser(), holdings)
	require.NoError(t, err)

	require.Equal(t, len(first.Themes), len(second.Themes))
	for i := range first.Themes {
		assert.Equal(t, first.Themes[i].Name, second.Themes[i].Name)
		assert.Equal(t, first.Themes[i].Hook, second.Themes[i].Hook)
		assert.Equal(t, len(first.Themes[i].Clusters), len(second.Themes[i].Clusters))
	}
}

func TestFocusModeWithEmptyHoldingsYieldsNothing(t *testing.T) {
	p := newPipeline(feedServer(t))

	result, err := p.Run(context.Background(), domain.UserSettings{UserID: "u1", Mode: domain.ModeFocus}, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Themes, "focus mode without holdings surfaces nothing")
}

func TestCancelledRunReturnsError(t *testing.T) {
	p := newPipeline(feedServer(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, beginnerUser(), nil)
	assert.Error(t, err)
}
