// Package monitor implements the real-time monitoring tasks: price moves,
// tiered news, social-buzz spikes, and the daily cleanup. Each task is an
// idempotent closed loop driven by the scheduler; two runs of the same task
// never overlap (the scheduler guarantees it) and all cross-task safety
// rests on the alert log's content-hash uniqueness.
package monitor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/peterbitar/wealthyrabbit/internal/modules/alerts"
)

const (
	// priceWindow is the lookback for the short-term change computation.
	priceWindow = 15 * time.Minute
	// priceMinAgeMinutes: without a point at least this old there is no
	// meaningful 15-minute change yet and the symbol is skipped.
	priceMinAgeMinutes = 10
)

// PriceMonitor polls quotes for every held symbol and raises alerts on
// threshold-crossing 15-minute moves.
type PriceMonitor struct {
	quotes   QuoteProvider
	users    UserDirectory
	holdings HoldingsDirectory
	prices   *PricePointRepository
	sink     AlertSink
	clock    func() time.Time
	log      zerolog.Logger
}

// NewPriceMonitor creates the price monitor task.
func NewPriceMonitor(
	quoteProvider QuoteProvider,
	users UserDirectory,
	holdings HoldingsDirectory,
	prices *PricePointRepository,
	sink AlertSink,
	log zerolog.Logger,
) *PriceMonitor {
	return &PriceMonitor{
		quotes:   quoteProvider,
		users:    users,
		holdings: holdings,
		prices:   prices,
		sink:     sink,
		clock:    time.Now,
		log:      log.With().Str("task", "price_monitor").Logger(),
	}
}

// Name implements the scheduler Job interface.
func (m *PriceMonitor) Name() string { return "price_monitor" }

// Run performs one monitoring pass.
func (m *PriceMonitor) Run(ctx context.Context) error {
	if !m.quotes.Configured() {
		m.log.Debug().Msg("Quote provider not configured, skipping price monitor run")
		return nil
	}

	symbols, err := m.holdings.AllSymbols()
	if err != nil {
		return fmt.Errorf("failed to enumerate held symbols: %w", err)
	}

	for _, symbol := range symbols {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := m.checkSymbol(ctx, symbol); err != nil {
			// Per-symbol failures are logged and the pass continues; the
			// next scheduled run retries.
			m.log.Warn().Err(err).Str("symbol", symbol).Msg("Price check failed")
		}
	}

	return nil
}

func (m *PriceMonitor) checkSymbol(ctx context.Context, symbol string) error {
	quote, err := m.quotes.GetQuote(ctx, symbol)
	if err != nil {
		return fmt.Errorf("failed to fetch quote: %w", err)
	}

	now := m.clock()
	if err := m.prices.Insert(PricePoint{
		Symbol:        symbol,
		Price:         quote.Price,
		ChangePercent: quote.ChangePercent,
		Volume:        quote.Volume,
		Timestamp:     now,
	}); err != nil {
		return err
	}

	window, err := m.prices.WindowSince(symbol, now.Add(-priceWindow))
	if err != nil {
		return err
	}

	change, ok := FifteenMinuteChange(window, priceMinAgeMinutes)
	if !ok {
		return nil
	}

	return m.alertHolders(ctx, symbol, change, window, now)
}

// alertHolders walks every holder of the symbol and dispatches where the
// user's sensitivity threshold is met (>=, an exactly-threshold move fires).
func (m *PriceMonitor) alertHolders(ctx context.Context, symbol string, change float64, window []PricePoint, now time.Time) error {
	holders, err := m.holdings.HolderIDs(symbol)
	if err != nil {
		return err
	}

	// The abnormal-move check looks at the whole retained history, not just
	// the 15-minute change window.
	history, err := m.prices.WindowSince(symbol, now.Add(-pricePointRetention))
	if err != nil {
		return err
	}
	var prices []float64
	for _, p := range history {
		prices = append(prices, p.Price)
	}
	abnormal := AbnormalMove(prices)

	for _, userID := range holders {
		user, err := m.users.Get(userID)
		if err != nil || user == nil {
			continue
		}

		threshold := user.Sensitivity.PriceThresholdPercent()
		if math.Abs(change) < threshold {
			continue
		}

		arrow := "↑"
		if change < 0 {
			arrow = "↓"
		}

		candidate := alerts.Candidate{
			UserID:      user.UserID,
			PushToken:   user.PushToken,
			Type:        alerts.AlertPrice,
			Symbol:      symbol,
			ContentHash: alerts.PriceHash(symbol, now),
			Title:       fmt.Sprintf("%s %s %.1f%%", symbol, arrow, math.Abs(change)),
			Message:     fmt.Sprintf("%s moved %.1f%% over the last 15 minutes.", symbol, change),
			Metadata: map[string]interface{}{
				"changePercent": change,
				"abnormalMove":  abnormal,
			},
		}

		if _, err := m.sink.Dispatch(ctx, candidate); err != nil {
			m.log.Warn().Err(err).Str("user_id", userID).Msg("Price alert dispatch failed")
		}
	}

	return nil
}
