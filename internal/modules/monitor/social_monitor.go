package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/peterbitar/wealthyrabbit/internal/modules/alerts"
)

// baselineWindow is the rolling window the spike baseline is computed over.
const baselineWindow = 7 * 24 * time.Hour

// SocialMonitor counts forum mentions per held symbol and raises alerts when
// the hourly count spikes against the rolling 7-day baseline.
type SocialMonitor struct {
	counter  MentionCounter
	forums   []string
	users    UserDirectory
	holdings HoldingsDirectory
	mentions *SocialMentionRepository
	sink     AlertSink
	clock    func() time.Time
	log      zerolog.Logger
}

// NewSocialMonitor creates the social monitor task.
func NewSocialMonitor(
	counter MentionCounter,
	forums []string,
	users UserDirectory,
	holdings HoldingsDirectory,
	mentions *SocialMentionRepository,
	sink AlertSink,
	log zerolog.Logger,
) *SocialMonitor {
	return &SocialMonitor{
		counter:  counter,
		forums:   forums,
		users:    users,
		holdings: holdings,
		mentions: mentions,
		sink:     sink,
		clock:    time.Now,
		log:      log.With().Str("task", "social_monitor").Logger(),
	}
}

// Name implements the scheduler Job interface.
func (m *SocialMonitor) Name() string { return "social_monitor" }

// Run performs one monitoring pass.
func (m *SocialMonitor) Run(ctx context.Context) error {
	symbols, err := m.holdings.AllSymbols()
	if err != nil {
		return fmt.Errorf("failed to enumerate held symbols: %w", err)
	}

	for _, symbol := range symbols {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := m.checkSymbol(ctx, symbol); err != nil {
			m.log.Warn().Err(err).Str("symbol", symbol).Msg("Social check failed")
		}
	}

	return nil
}

func (m *SocialMonitor) checkSymbol(ctx context.Context, symbol string) error {
	now := m.clock()
	periodStart := now.Add(-time.Hour)

	// Baseline from history before this hour's observations land.
	history, err := m.mentions.HourlyCountsSince(symbol, now.Add(-baselineWindow))
	if err != nil {
		return err
	}
	baseline := Baseline(history)

	total := 0
	for _, forum := range m.forums {
		count, err := m.counter.CountMentions(ctx, symbol, forum)
		if err != nil {
			m.log.Warn().Err(err).Str("forum", forum).Str("symbol", symbol).Msg("Mention count failed")
			continue
		}
		total += count

		if err := m.mentions.Insert(SocialMention{
			Symbol:       symbol,
			MentionCount: count,
			Subreddit:    forum,
			PeriodStart:  periodStart,
			PeriodEnd:    now,
			Baseline7Day: baseline,
		}); err != nil {
			m.log.Warn().Err(err).Str("forum", forum).Msg("Failed to store social mention")
		}
	}

	if total == 0 {
		return nil
	}

	spike := SpikeMultiple(float64(total), baseline)
	return m.alertHolders(ctx, symbol, total, baseline, spike, now)
}

func (m *SocialMonitor) alertHolders(ctx context.Context, symbol string, count int, baseline, spike float64, now time.Time) error {
	holders, err := m.holdings.HolderIDs(symbol)
	if err != nil {
		return err
	}

	for _, userID := range holders {
		user, err := m.users.Get(userID)
		if err != nil || user == nil {
			continue
		}

		if spike < user.Sensitivity.SocialSpikeMultiple() {
			continue
		}

		candidate := alerts.Candidate{
			UserID:      user.UserID,
			PushToken:   user.PushToken,
			Type:        alerts.AlertSocial,
			Symbol:      symbol,
			ContentHash: alerts.SocialHash(symbol, now),
			Title:       fmt.Sprintf("%s is buzzing", symbol),
			Message:     fmt.Sprintf("%s was mentioned %d times in the last hour, about %.1fx its usual level.", symbol, count, spike),
			Metadata: map[string]interface{}{
				"spikeMultiple": spike,
				"mentionCount":  count,
				"baseline":      baseline,
			},
		}

		if _, err := m.sink.Dispatch(ctx, candidate); err != nil {
			m.log.Warn().Err(err).Str("user_id", userID).Msg("Social alert dispatch failed")
		}
	}

	return nil
}
