package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/peterbitar/wealthyrabbit/internal/modules/alerts"
)

// maxDigestLines bounds how many suppressed items are itemized in the digest
// body; the remainder is summarized.
const maxDigestLines = 6

// weeklyDigestDay is when weeklySummary users get their merged summary.
const weeklyDigestDay = time.Sunday

// DigestJob bundles budget-suppressed candidates into at most one digest
// alert per user per period. Users run on a daily cadence by default; users
// with the weeklySummary flag keep accumulating until the weekly digest day
// and then get everything merged into one weekly summary.
type DigestJob struct {
	repo  *alerts.Repository
	users UserDirectory
	sink  AlertSink
	clock func() time.Time
	log   zerolog.Logger
}

// NewDigestJob creates the digest task.
func NewDigestJob(repo *alerts.Repository, users UserDirectory, sink AlertSink, log zerolog.Logger) *DigestJob {
	return &DigestJob{
		repo:  repo,
		users: users,
		sink:  sink,
		clock: time.Now,
		log:   log.With().Str("task", "digest").Logger(),
	}
}

// Name implements the scheduler Job interface.
func (j *DigestJob) Name() string { return "digest" }

// Run emits due digests. The content hash is period-scoped (day, or ISO
// week for weekly users), so re-running within the same period is a no-op:
// either the queue is already drained or the dedup path suppresses the
// second digest.
func (j *DigestJob) Run(ctx context.Context) error {
	userIDs, err := j.repo.PendingDigestUserIDs()
	if err != nil {
		return fmt.Errorf("failed to enumerate pending digest users: %w", err)
	}

	now := j.clock()

	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		user, err := j.users.Get(userID)
		if err != nil || user == nil {
			continue
		}

		// Weekly-summary users accumulate until their day comes around.
		if user.WeeklySummary && now.Local().Weekday() != weeklyDigestDay {
			continue
		}

		items, err := j.repo.DrainDigestItems(userID)
		if err != nil {
			j.log.Warn().Err(err).Str("user_id", userID).Msg("Failed to drain digest items")
			continue
		}
		if len(items) == 0 {
			continue
		}

		title := "While you were away"
		bucket := now.Local().Format("2006-01-02")
		if user.WeeklySummary {
			title = "Your week in review"
			year, week := now.Local().ISOWeek()
			bucket = fmt.Sprintf("week-%d-%02d", year, week)
		}

		candidate := alerts.Candidate{
			UserID:      userID,
			PushToken:   user.PushToken,
			Type:        alerts.AlertDigest,
			// A fixed zero time keeps the generic format's hour bucket
			// constant, so the period bucket alone scopes the hash.
			ContentHash: alerts.GenericHash("digest", bucket, userID, time.Time{}),
			Title:       title,
			Message:     digestBody(items, user.WeeklySummary),
			Metadata:    map[string]interface{}{"suppressedCount": len(items)},
		}

		outcome, err := j.sink.Dispatch(ctx, candidate)
		if err != nil {
			j.log.Warn().Err(err).Str("user_id", userID).Msg("Digest dispatch failed")
			continue
		}
		j.log.Info().
			Str("user_id", userID).
			Int("items", len(items)).
			Bool("weekly", user.WeeklySummary).
			Str("outcome", string(outcome)).
			Msg("Digest processed")
	}

	return nil
}

func digestBody(items []alerts.DigestItem, weekly bool) string {
	var b strings.Builder
	if weekly {
		fmt.Fprintf(&b, "Your week's quieter updates (%d in total):\n", len(items))
	} else {
		fmt.Fprintf(&b, "A few more things happened today (%d in total):\n", len(items))
	}

	for i, item := range items {
		if i >= maxDigestLines {
			fmt.Fprintf(&b, "...and %d more.", len(items)-maxDigestLines)
			break
		}
		fmt.Fprintf(&b, "- %s\n", item.Title)
	}

	return strings.TrimSpace(b.String())
}
