package scoring

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peterbitar/wealthyrabbit/internal/domain"
	"github.com/peterbitar/wealthyrabbit/internal/modules/cleaning"
	"github.com/peterbitar/wealthyrabbit/internal/modules/clustering"
	"github.com/peterbitar/wealthyrabbit/internal/modules/detection"
)

var testNow = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

func testEngine() *Engine {
	e := NewEngine(zerolog.Nop())
	e.clock = func() time.Time { return testNow }
	return e
}

func holding(symbol string) domain.Holding {
	return domain.Holding{UserID: "u1", Symbol: symbol}
}

func settings(mode domain.Mode) domain.UserSettings {
	return domain.UserSettings{UserID: "u1", Mode: mode, Sensitivity: domain.SensitivityCurious}
}

// makeCluster builds a one-article cluster plus its events map.
func makeCluster(ticker string, eventType detection.EventType, labels []detection.ImpactLabel, holdingsNews bool) (clustering.Cluster, map[string]detection.DetectedEvent) {
	art := cleaning.CleanedArticle{
		ID:             "art-1",
		CleanTitle:     fmt.Sprintf("%s makes a big well-covered market move today", ticker),
		CleanBody:      fmt.Sprintf("Extended coverage of what %s did and why it matters for shareholders watching the sector closely this quarter.", ticker),
		CleanTickers:   []string{ticker},
		SourceQuality:  1.0,
		PublishedAt:    testNow.Add(-30 * time.Minute),
		IsHoldingsNews: holdingsNews,
	}

	cluster := clustering.Cluster{
		ID:             "cl-1",
		Articles:       []cleaning.CleanedArticle{art},
		EventType:      eventType,
		DominantTicker: ticker,
		CreatedAt:      testNow.Add(-30 * time.Minute),
	}

	events := map[string]detection.DetectedEvent{
		"art-1": {
			ID:             "ev-1",
			ArticleID:      "art-1",
			Type:           eventType,
			BaseScore:      eventType.BaseScore(),
			DominantTicker: ticker,
			Labels:         labels,
		},
	}

	return cluster, events
}

func TestTotalScoreIsWeightedSum(t *testing.T) {
	e := testEngine()
	cluster, events := makeCluster("AAPL", detection.EventEarnings,
		[]detection.ImpactLabel{detection.LabelBigMoves}, true)

	score := e.Score(cluster, events, settings(domain.ModeSmart), []domain.Holding{holding("AAPL")})
	require.NotNil(t, score)

	expected := 0.55*score.HoldingsRelevance +
		0.20*score.ImpactLabelScore +
		0.15*score.EventTypeWeight +
		0.10*score.RecencyScore
	assert.InDelta(t, expected, score.Total, 1e-9)
	assert.GreaterOrEqual(t, score.Total, 0.0)
	assert.LessOrEqual(t, score.Total, 1.0)
}

func TestHoldingsRelevanceTiers(t *testing.T) {
	e := testEngine()

	t.Run("owned ticker in title scores 1.0", func(t *testing.T) {
		cluster, events := makeCluster("AAPL", detection.EventEarnings, nil, true)
		score := e.Score(cluster, events, settings(domain.ModeSmart), []domain.Holding{holding("AAPL")})
		require.NotNil(t, score)
		assert.Equal(t, 1.0, score.HoldingsRelevance)
	})

	t.Run("owned ticker only in body scores 0.6", func(t *testing.T) {
		cluster, events := makeCluster("AAPL", detection.EventEarnings, nil, true)
		cluster.Articles[0].CleanTitle = "Big tech supplier moves the whole market today"
		score := e.Score(cluster, events, settings(domain.ModeSmart), []domain.Holding{holding("AAPL")})
		require.NotNil(t, score)
		assert.Equal(t, 0.6, score.HoldingsRelevance)
	})

	t.Run("unowned ticker scores 0.0", func(t *testing.T) {
		cluster, events := makeCluster("NVDA", detection.EventEarnings, nil, false)
		score := e.Score(cluster, events, settings(domain.ModeSmart), []domain.Holding{holding("AAPL")})
		require.NotNil(t, score)
		assert.Equal(t, 0.0, score.HoldingsRelevance)
	})

	t.Run("sector match scores 0.3", func(t *testing.T) {
		cluster, events := makeCluster("", detection.EventMacro, nil, false)
		cluster.Articles[0].CleanTitle = "Semiconductor demand stays strong across the industry"
		cluster.Articles[0].CleanTickers = nil
		cluster.DominantTicker = ""
		score := e.Score(cluster, events, settings(domain.ModeSmart), []domain.Holding{holding("NVDA")})
		require.NotNil(t, score)
		assert.Equal(t, 0.3, score.HoldingsRelevance)
	})

	t.Run("no relation scores 0.15", func(t *testing.T) {
		cluster, events := makeCluster("", detection.EventMacro, nil, false)
		cluster.Articles[0].CleanTitle = "Treasury yields drift lower ahead of the jobs report"
		cluster.Articles[0].CleanBody = "A quiet session in rates markets with traders waiting for payroll figures due at the end of the week before taking positions."
		cluster.Articles[0].CleanTickers = nil
		cluster.DominantTicker = ""
		score := e.Score(cluster, events, settings(domain.ModeSmart), []domain.Holding{holding("NVDA")})
		require.NotNil(t, score)
		assert.Equal(t, 0.15, score.HoldingsRelevance)
	})
}

func TestFocusModeFilters(t *testing.T) {
	e := testEngine()
	user := settings(domain.ModeFocus)
	holdings := []domain.Holding{holding("TSLA")}

	t.Run("unowned dominant ticker is dropped", func(t *testing.T) {
		cluster, events := makeCluster("AAPL", detection.EventEarnings,
			[]detection.ImpactLabel{detection.LabelMostImpactful}, false)
		assert.Nil(t, e.Score(cluster, events, user, holdings))
	})

	t.Run("owned ticker survives", func(t *testing.T) {
		cluster, events := makeCluster("TSLA", detection.EventEarnings, nil, true)
		score := e.Score(cluster, events, user, holdings)
		require.NotNil(t, score)
	})

	t.Run("low total score is post-filtered", func(t *testing.T) {
		cluster, events := makeCluster("TSLA", detection.EventFluff, nil, true)
		cluster.Articles[0].CleanTitle = "Quiet day with nothing notable happening anywhere"
		cluster.Articles[0].CleanBody = "Nothing in particular happened to the company today and shareholders were left without anything new to consider going into the weekend."
		// Unowned-in-text fluff for an owned ticker in focus: relevance
		// path misses title and body, so the total falls under 0.5.
		assert.Nil(t, e.Score(cluster, events, user, holdings))
	})
}

func TestNoiseFiltersForBeginnerAndSmart(t *testing.T) {
	e := testEngine()

	for _, mode := range []domain.Mode{domain.ModeBeginner, domain.ModeSmart} {
		user := settings(mode)

		t.Run(string(mode)+" drops non-holdings rumor", func(t *testing.T) {
			cluster, events := makeCluster("NVDA", detection.EventRumor, nil, false)
			assert.Nil(t, e.Score(cluster, events, user, nil))
		})

		t.Run(string(mode)+" drops weak analyst note", func(t *testing.T) {
			cluster, events := makeCluster("NVDA", detection.EventAnalystNote, nil, false)
			assert.Nil(t, e.Score(cluster, events, user, nil))
		})

		t.Run(string(mode)+" keeps analyst note with strong label", func(t *testing.T) {
			cluster, events := makeCluster("NVDA", detection.EventAnalystNote,
				[]detection.ImpactLabel{detection.LabelBigMoves}, false)
			assert.NotNil(t, e.Score(cluster, events, user, nil))
		})

		t.Run(string(mode)+" keeps holdings rumor", func(t *testing.T) {
			cluster, events := makeCluster("NVDA", detection.EventRumor, nil, true)
			assert.NotNil(t, e.Score(cluster, events, user, []domain.Holding{holding("NVDA")}))
		})
	}
}

func TestLowInformationFilter(t *testing.T) {
	e := testEngine()

	cluster, events := makeCluster("AAPL", detection.EventEarnings, nil, false)
	cluster.Articles[0].IsLowInformation = true

	assert.Nil(t, e.Score(cluster, events, settings(domain.ModeSmart), []domain.Holding{holding("AAPL")}))

	// Focus mode keeps low-information holdings clusters.
	score := e.Score(cluster, events, settings(domain.ModeFocus), []domain.Holding{holding("AAPL")})
	assert.NotNil(t, score)
}

func TestRecencyTiers(t *testing.T) {
	cases := []struct {
		age  time.Duration
		want float64
	}{
		{30 * time.Minute, 1.0},
		{2 * time.Hour, 0.9},
		{6 * time.Hour, 0.75},
		{18 * time.Hour, 0.6},
		{48 * time.Hour, 0.4},
		{100 * time.Hour, 0.2},
		{200 * time.Hour, 0.1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, recencyScore(tc.age), tc.age.String())
	}
}

func TestImpactLabelScoreClamped(t *testing.T) {
	cluster, events := makeCluster("AAPL", detection.EventEarnings,
		[]detection.ImpactLabel{
			detection.LabelAllTimeHigh, detection.LabelBigMoves,
			detection.LabelMostImpactful, detection.LabelPriceAffectingAbnormal,
			detection.LabelSurprising, detection.LabelDrama,
			detection.LabelStockPopularity, detection.LabelAllTimeLow,
		}, true)

	score := impactLabelScore(cluster, events)
	assert.InDelta(t, 1.0, score, 1e-9, "all labels present saturates the score")
}

func TestEmptyHoldingsStillScoresForBeginner(t *testing.T) {
	e := testEngine()

	cluster, events := makeCluster("NVDA", detection.EventEarnings,
		[]detection.ImpactLabel{detection.LabelMostImpactful}, false)

	score := e.Score(cluster, events, settings(domain.ModeBeginner), nil)
	require.NotNil(t, score, "beginner mode surfaces impactful events without holdings")
	assert.Equal(t, 0.0, score.HoldingsRelevance)
}
