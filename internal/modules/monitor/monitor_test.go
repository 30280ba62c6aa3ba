package monitor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peterbitar/wealthyrabbit/internal/clients/push"
	"github.com/peterbitar/wealthyrabbit/internal/clients/quotes"
	"github.com/peterbitar/wealthyrabbit/internal/database"
	"github.com/peterbitar/wealthyrabbit/internal/domain"
	"github.com/peterbitar/wealthyrabbit/internal/modules/alerts"
	"github.com/peterbitar/wealthyrabbit/internal/modules/fetching"
	"github.com/peterbitar/wealthyrabbit/internal/modules/sources"
	"github.com/peterbitar/wealthyrabbit/internal/modules/users"
)

var monNow = time.Date(2026, 7, 1, 12, 14, 0, 0, time.UTC)

func openStore(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    fmt.Sprintf("file:monitor_%s?mode=memory&cache=shared", t.Name()),
		Profile: database.ProfileStandard,
		Name:    "test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

// fixture wires a store-backed monitor test bed with one user and holding.
type fixture struct {
	db         *database.DB
	userRepo   *users.Repository
	holdings   *users.HoldingRepository
	alertRepo  *alerts.Repository
	prices     *PricePointRepository
	news       *NewsItemRepository
	mentions   *SocialMentionRepository
	dispatcher *alerts.Dispatcher
}

func newFixture(t *testing.T, sensitivity domain.Sensitivity) *fixture {
	t.Helper()
	db := openStore(t)

	f := &fixture{
		db:        db,
		userRepo:  users.NewRepository(db.Conn(), zerolog.Nop()),
		holdings:  users.NewHoldingRepository(db.Conn(), zerolog.Nop()),
		alertRepo: alerts.NewRepository(db.Conn(), zerolog.Nop()),
		prices:    NewPricePointRepository(db.Conn(), zerolog.Nop()),
		news:      NewNewsItemRepository(db.Conn(), zerolog.Nop()),
		mentions:  NewSocialMentionRepository(db.Conn(), zerolog.Nop()),
	}
	f.dispatcher = alerts.NewDispatcher(f.alertRepo, push.NewClient(true, zerolog.Nop()), nil, nil, 5, zerolog.Nop())

	_, err := f.userRepo.Register("u1", "Pat", "SIM-token", 5)
	require.NoError(t, err)
	_, err = f.userRepo.UpdateSettings("u1", users.SettingsUpdate{Sensitivity: &sensitivity})
	require.NoError(t, err)
	_, err = f.holdings.Upsert(domain.Holding{UserID: "u1", Symbol: "AAPL"})
	require.NoError(t, err)

	return f
}

// fixedQuotes serves one quote per symbol.
type fixedQuotes struct {
	prices map[string]float64
}

func (f *fixedQuotes) Configured() bool { return true }

func (f *fixedQuotes) GetQuote(_ context.Context, symbol string) (*quotes.Quote, error) {
	price, ok := f.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("no quote for %s", symbol)
	}
	return &quotes.Quote{Symbol: symbol, Price: price, Timestamp: monNow}, nil
}

func TestPriceMonitorFiresOnThresholdMove(t *testing.T) {
	// user.sensitivity=curious (2%), holdings=[AAPL], 15-min change -2.1%.
	f := newFixture(t, domain.SensitivityCurious)

	require.NoError(t, f.prices.Insert(PricePoint{Symbol: "AAPL", Price: 100.0, Timestamp: monNow.Add(-14 * time.Minute)}))

	m := NewPriceMonitor(&fixedQuotes{prices: map[string]float64{"AAPL": 97.9}}, f.userRepo, f.holdings, f.prices, f.dispatcher, zerolog.Nop())
	m.clock = func() time.Time { return monNow }

	require.NoError(t, m.Run(context.Background()))

	logs, err := f.alertRepo.RecentByUser("u1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)

	assert.Equal(t, alerts.AlertPrice, logs[0].AlertType)
	assert.Equal(t, "AAPL ↓ 2.1%", logs[0].Title)
	assert.Equal(t, alerts.PriceHash("AAPL", monNow), logs[0].ContentHash)

	// A second run in the same hour produces zero additional rows.
	require.NoError(t, m.Run(context.Background()))
	logs, err = f.alertRepo.RecentByUser("u1", 10)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestPriceMonitorExactThresholdFires(t *testing.T) {
	// A move exactly at the threshold fires (>=, not >).
	f := newFixture(t, domain.SensitivityCurious)

	require.NoError(t, f.prices.Insert(PricePoint{Symbol: "AAPL", Price: 100.0, Timestamp: monNow.Add(-14 * time.Minute)}))

	m := NewPriceMonitor(&fixedQuotes{prices: map[string]float64{"AAPL": 98.0}}, f.userRepo, f.holdings, f.prices, f.dispatcher, zerolog.Nop())
	m.clock = func() time.Time { return monNow }

	require.NoError(t, m.Run(context.Background()))

	logs, err := f.alertRepo.RecentByUser("u1", 10)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestPriceMonitorBelowThresholdStaysQuiet(t *testing.T) {
	f := newFixture(t, domain.SensitivityCalm) // 3% threshold

	require.NoError(t, f.prices.Insert(PricePoint{Symbol: "AAPL", Price: 100.0, Timestamp: monNow.Add(-14 * time.Minute)}))

	m := NewPriceMonitor(&fixedQuotes{prices: map[string]float64{"AAPL": 97.9}}, f.userRepo, f.holdings, f.prices, f.dispatcher, zerolog.Nop())
	m.clock = func() time.Time { return monNow }

	require.NoError(t, m.Run(context.Background()))

	logs, err := f.alertRepo.RecentByUser("u1", 10)
	require.NoError(t, err)
	assert.Empty(t, logs, "a 2.1% move is under the calm 3% threshold")
}

func TestPriceMonitorSkipsYoungWindow(t *testing.T) {
	f := newFixture(t, domain.SensitivityAlert)

	// Only a 5-minute-old point exists: no 15-minute change yet.
	require.NoError(t, f.prices.Insert(PricePoint{Symbol: "AAPL", Price: 100.0, Timestamp: monNow.Add(-5 * time.Minute)}))

	m := NewPriceMonitor(&fixedQuotes{prices: map[string]float64{"AAPL": 90.0}}, f.userRepo, f.holdings, f.prices, f.dispatcher, zerolog.Nop())
	m.clock = func() time.Time { return monNow }

	require.NoError(t, m.Run(context.Background()))

	logs, err := f.alertRepo.RecentByUser("u1", 10)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

// fixedHeadlines serves canned raw articles.
type fixedHeadlines struct{ articles []fetching.RawArticle }

func (f *fixedHeadlines) FetchSymbolNews(_ context.Context, _ string) []fetching.RawArticle {
	return f.articles
}

func TestNewsMonitorTierGating(t *testing.T) {
	// calm only accepts tier 1: of Reuters (t1), CNBC (t2), Benzinga (t3),
	// only the Reuters headline may produce a push.
	f := newFixture(t, domain.SensitivityCalm)

	registry := sources.NewRegistryWith(
		sources.Source{Name: "Reuters", Layer: 1, Tier: 1, Quality: 1.0},
		sources.Source{Name: "CNBC", Layer: 2, Tier: 2, Quality: 0.85},
		sources.Source{Name: "Benzinga", Layer: 3, Tier: 3, Quality: 0.6},
	)

	headlines := &fixedHeadlines{articles: []fetching.RawArticle{
		{Source: "Reuters", Title: "Apple wins a major contract", URL: "https://example.com/reuters", FetchTime: monNow},
		{Source: "CNBC", Title: "Apple analysis segment airs", URL: "https://example.com/cnbc", FetchTime: monNow},
		{Source: "Benzinga", Title: "Apple chatter roundup", URL: "https://example.com/benzinga", FetchTime: monNow},
	}}

	m := NewNewsMonitor(headlines, registry, f.userRepo, f.holdings, f.news, f.dispatcher, zerolog.Nop())
	m.clock = func() time.Time { return monNow }

	require.NoError(t, m.Run(context.Background()))

	logs, err := f.alertRepo.RecentByUser("u1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, alerts.AlertNews, logs[0].AlertType)
	assert.Contains(t, logs[0].Message, "Reuters")
}

func TestNewsMonitorDeduplicatesByURL(t *testing.T) {
	f := newFixture(t, domain.SensitivityAlert)

	registry := sources.NewRegistryWith(
		sources.Source{Name: "Reuters", Layer: 1, Tier: 1, Quality: 1.0},
	)
	headlines := &fixedHeadlines{articles: []fetching.RawArticle{
		{Source: "Reuters", Title: "Apple wins a major contract", URL: "https://example.com/reuters", FetchTime: monNow},
	}}

	m := NewNewsMonitor(headlines, registry, f.userRepo, f.holdings, f.news, f.dispatcher, zerolog.Nop())
	m.clock = func() time.Time { return monNow }

	require.NoError(t, m.Run(context.Background()))
	require.NoError(t, m.Run(context.Background()), "second pass sees the cached URL")

	logs, err := f.alertRepo.RecentByUser("u1", 10)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

// fixedMentions serves one count per forum.
type fixedMentions struct{ count int }

func (f *fixedMentions) CountMentions(_ context.Context, _, _ string) (int, error) {
	return f.count, nil
}

func TestSocialMonitorZeroBaselineSpikes(t *testing.T) {
	// No history: baseline 0, spike = count. curious threshold is 2x.
	f := newFixture(t, domain.SensitivityCurious)

	m := NewSocialMonitor(&fixedMentions{count: 17}, []string{"wallstreetbets"}, f.userRepo, f.holdings, f.mentions, f.dispatcher, zerolog.Nop())
	m.clock = func() time.Time { return monNow }

	require.NoError(t, m.Run(context.Background()))

	logs, err := f.alertRepo.RecentByUser("u1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, alerts.AlertSocial, logs[0].AlertType)
	assert.Equal(t, alerts.SocialHash("AAPL", monNow), logs[0].ContentHash)
}

func TestSocialMonitorQuietBelowThreshold(t *testing.T) {
	f := newFixture(t, domain.SensitivityCalm) // 3x threshold

	// Seed a baseline of ~10/hour.
	for i := 1; i <= 5; i++ {
		require.NoError(t, f.mentions.Insert(SocialMention{
			Symbol: "AAPL", MentionCount: 10, Subreddit: "stocks",
			PeriodStart: monNow.Add(-time.Duration(i) * time.Hour),
			PeriodEnd:   monNow.Add(-time.Duration(i-1) * time.Hour),
		}))
	}

	m := NewSocialMonitor(&fixedMentions{count: 20}, []string{"stocks"}, f.userRepo, f.holdings, f.mentions, f.dispatcher, zerolog.Nop())
	m.clock = func() time.Time { return monNow }

	require.NoError(t, m.Run(context.Background()))

	logs, err := f.alertRepo.RecentByUser("u1", 10)
	require.NoError(t, err)
	assert.Empty(t, logs, "a 2x spike is under the calm 3x threshold")
}

func TestCleanupPrunesAgedPricePoints(t *testing.T) {
	f := newFixture(t, domain.SensitivityCurious)

	require.NoError(t, f.prices.Insert(PricePoint{Symbol: "AAPL", Price: 100, Timestamp: monNow.Add(-8 * 24 * time.Hour)}))
	require.NoError(t, f.prices.Insert(PricePoint{Symbol: "AAPL", Price: 101, Timestamp: monNow.Add(-time.Hour)}))

	j := NewCleanupJob(f.prices, f.news, f.mentions, zerolog.Nop())
	j.clock = func() time.Time { return monNow }

	require.NoError(t, j.Run(context.Background()))

	window, err := f.prices.WindowSince("AAPL", monNow.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, window, 1, "points older than 7 days are gone")
}

func TestDigestJobEmitsOncePerDay(t *testing.T) {
	f := newFixture(t, domain.SensitivityCurious)

	require.NoError(t, f.alertRepo.AddDigestItem(alerts.DigestItem{
		UserID: "u1", AlertType: alerts.AlertPrice, Symbol: "AAPL",
		Title: "AAPL ↓ 2.1%", Message: "m", CreatedAt: monNow,
	}))

	j := NewDigestJob(f.alertRepo, f.userRepo, f.dispatcher, zerolog.Nop())
	j.clock = func() time.Time { return monNow }

	require.NoError(t, j.Run(context.Background()))

	logs, err := f.alertRepo.RecentByUser("u1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, alerts.AlertDigest, logs[0].AlertType)

	// A second run the same day finds an empty queue and changes nothing.
	require.NoError(t, j.Run(context.Background()))
	logs, err = f.alertRepo.RecentByUser("u1", 10)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestDigestJobWeeklySummaryWaitsForWeeklyDay(t *testing.T) {
	f := newFixture(t, domain.SensitivityCurious)

	weekly := true
	_, err := f.userRepo.UpdateSettings("u1", users.SettingsUpdate{WeeklySummary: &weekly})
	require.NoError(t, err)

	require.NoError(t, f.alertRepo.AddDigestItem(alerts.DigestItem{
		UserID: "u1", AlertType: alerts.AlertPrice, Symbol: "AAPL",
		Title: "AAPL ↓ 2.1%", Message: "m", CreatedAt: monNow,
	}))

	j := NewDigestJob(f.alertRepo, f.userRepo, f.dispatcher, zerolog.Nop())

	// monNow is a Wednesday: the weekly user's items stay queued.
	j.clock = func() time.Time { return monNow }
	require.NoError(t, j.Run(context.Background()))

	logs, err := f.alertRepo.RecentByUser("u1", 10)
	require.NoError(t, err)
	assert.Empty(t, logs, "weekly users accumulate until the weekly day")

	userIDs, err := f.alertRepo.PendingDigestUserIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, userIDs)

	// The following Sunday the merged weekly summary goes out.
	sunday := time.Date(2026, 7, 5, 12, 0, 0, 0, time.Local)
	j.clock = func() time.Time { return sunday }
	require.NoError(t, j.Run(context.Background()))

	logs, err = f.alertRepo.RecentByUser("u1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, alerts.AlertDigest, logs[0].AlertType)
	assert.Equal(t, "Your week in review", logs[0].Title)

	userIDs, err = f.alertRepo.PendingDigestUserIDs()
	require.NoError(t, err)
	assert.Empty(t, userIDs)
}
