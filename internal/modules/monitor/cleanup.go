package monitor

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	pricePointRetention = 7 * 24 * time.Hour
	newsItemRetention   = 7 * 24 * time.Hour
	socialRetention     = 14 * 24 * time.Hour // keep two baseline windows
)

// CleanupJob prunes aged monitor data. Scheduled daily at midnight.
type CleanupJob struct {
	prices   *PricePointRepository
	news     *NewsItemRepository
	mentions *SocialMentionRepository
	clock    func() time.Time
	log      zerolog.Logger
}

// NewCleanupJob creates the cleanup task.
func NewCleanupJob(prices *PricePointRepository, news *NewsItemRepository, mentions *SocialMentionRepository, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		prices:   prices,
		news:     news,
		mentions: mentions,
		clock:    time.Now,
		log:      log.With().Str("task", "cleanup").Logger(),
	}
}

// Name implements the scheduler Job interface.
func (j *CleanupJob) Name() string { return "cleanup" }

// Run prunes each table. Failures are independent; one table failing does
// not stop the others.
func (j *CleanupJob) Run(ctx context.Context) error {
	now := j.clock()

	if n, err := j.prices.DeleteOlderThan(now.Add(-pricePointRetention)); err != nil {
		j.log.Error().Err(err).Msg("Failed to prune price points")
	} else if n > 0 {
		j.log.Info().Int64("deleted", n).Msg("Pruned price points")
	}

	if n, err := j.news.DeleteOlderThan(now.Add(-newsItemRetention)); err != nil {
		j.log.Error().Err(err).Msg("Failed to prune news items")
	} else if n > 0 {
		j.log.Info().Int64("deleted", n).Msg("Pruned news items")
	}

	if n, err := j.mentions.DeleteOlderThan(now.Add(-socialRetention)); err != nil {
		j.log.Error().Err(err).Msg("Failed to prune social mentions")
	} else if n > 0 {
		j.log.Info().Int64("deleted", n).Msg("Pruned social mentions")
	}

	return nil
}
