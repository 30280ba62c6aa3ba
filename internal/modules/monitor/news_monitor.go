package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/peterbitar/wealthyrabbit/internal/modules/alerts"
	"github.com/peterbitar/wealthyrabbit/internal/modules/fetching"
	"github.com/peterbitar/wealthyrabbit/internal/modules/sources"
)

// newsLookback bounds how old a headline may be to still alert.
const newsLookback = 24 * time.Hour

// NewsMonitor scans per-symbol headlines and raises tier-gated news alerts.
type NewsMonitor struct {
	fetcher  HeadlineFetcher
	registry *sources.Registry
	users    UserDirectory
	holdings HoldingsDirectory
	items    *NewsItemRepository
	sink     AlertSink
	clock    func() time.Time
	log      zerolog.Logger
}

// NewNewsMonitor creates the news monitor task.
func NewNewsMonitor(
	fetcher HeadlineFetcher,
	registry *sources.Registry,
	users UserDirectory,
	holdings HoldingsDirectory,
	items *NewsItemRepository,
	sink AlertSink,
	log zerolog.Logger,
) *NewsMonitor {
	return &NewsMonitor{
		fetcher:  fetcher,
		registry: registry,
		users:    users,
		holdings: holdings,
		items:    items,
		sink:     sink,
		clock:    time.Now,
		log:      log.With().Str("task", "news_monitor").Logger(),
	}
}

// Name implements the scheduler Job interface.
func (m *NewsMonitor) Name() string { return "news_monitor" }

// Run performs one monitoring pass.
func (m *NewsMonitor) Run(ctx context.Context) error {
	symbols, err := m.holdings.AllSymbols()
	if err != nil {
		return fmt.Errorf("failed to enumerate held symbols: %w", err)
	}

	for _, symbol := range symbols {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.checkSymbol(ctx, symbol)
	}

	return nil
}

func (m *NewsMonitor) checkSymbol(ctx context.Context, symbol string) {
	now := m.clock()

	for _, raw := range m.fetcher.FetchSymbolNews(ctx, symbol) {
		tier := m.registry.Tier(raw.Source)
		if tier == 0 {
			// Unknown-tier sources never alert.
			m.log.Debug().Str("source", raw.Source).Msg("Dropping headline from unknown-tier source")
			continue
		}

		item := NewsItem{
			Symbol:      symbol,
			Title:       raw.Title,
			Source:      raw.Source,
			SourceTier:  tier,
			URL:         fetching.NormalizeURL(raw.URL),
			ContentHash: alerts.NewsHash(fetching.NormalizeURL(raw.URL)),
			PublishedAt: parsePublished(raw.PublishedAt, raw.FetchTime),
			FetchedAt:   now,
		}

		fresh, err := m.items.InsertIfNew(item)
		if err != nil {
			m.log.Warn().Err(err).Str("url", item.URL).Msg("Failed to cache news item")
			continue
		}
		if !fresh {
			continue // already seen this URL
		}
		if now.Sub(item.PublishedAt) > newsLookback {
			continue
		}

		m.alertHolders(ctx, item)
	}
}

// alertHolders dispatches a fresh headline to every holder whose sensitivity
// admits the source tier.
func (m *NewsMonitor) alertHolders(ctx context.Context, item NewsItem) {
	holders, err := m.holdings.HolderIDs(item.Symbol)
	if err != nil {
		m.log.Warn().Err(err).Str("symbol", item.Symbol).Msg("Failed to enumerate holders")
		return
	}

	for _, userID := range holders {
		user, err := m.users.Get(userID)
		if err != nil || user == nil {
			continue
		}

		if !user.Sensitivity.AllowsNewsTier(item.SourceTier) {
			m.log.Debug().
				Str("user_id", userID).
				Str("source", item.Source).
				Int("tier", item.SourceTier).
				Str("reason", "tier_below_sensitivity").
				Msg("News alert dropped")
			continue
		}

		candidate := alerts.Candidate{
			UserID:      user.UserID,
			PushToken:   user.PushToken,
			Type:        alerts.AlertNews,
			Symbol:      item.Symbol,
			ContentHash: item.ContentHash,
			Title:       fmt.Sprintf("%s in the news", item.Symbol),
			Message:     fmt.Sprintf("%s: %s", item.Source, item.Title),
			URL:         item.URL,
			Metadata:    map[string]interface{}{"sourceTier": item.SourceTier},
		}

		if _, err := m.sink.Dispatch(ctx, candidate); err != nil {
			m.log.Warn().Err(err).Str("user_id", userID).Msg("News alert dispatch failed")
		}
	}
}

func parsePublished(raw string, fallback time.Time) time.Time {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return fallback.UTC()
}
