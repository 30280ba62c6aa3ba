package monitor

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// SocialMention is one observed mention count for a symbol on a forum over a
// period.
type SocialMention struct {
	Symbol       string
	MentionCount int
	Subreddit    string
	PeriodStart  time.Time
	PeriodEnd    time.Time
	Baseline7Day float64
}

// SocialMentionRepository handles the social_mention table.
type SocialMentionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSocialMentionRepository creates a social mention repository.
func NewSocialMentionRepository(db *sql.DB, log zerolog.Logger) *SocialMentionRepository {
	return &SocialMentionRepository{
		db:  db,
		log: log.With().Str("repo", "social_mentions").Logger(),
	}
}

// Insert appends one observation.
func (r *SocialMentionRepository) Insert(m SocialMention) error {
	_, err := r.db.Exec(`
		INSERT INTO social_mention (symbol, mention_count, subreddit, period_start, period_end, baseline_7day)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.Symbol, m.MentionCount, m.Subreddit,
		m.PeriodStart.UTC(), m.PeriodEnd.UTC(), m.Baseline7Day)
	if err != nil {
		return fmt.Errorf("failed to insert social mention for %s: %w", m.Symbol, err)
	}
	return nil
}

// HourlyCountsSince returns the symbol's per-period mention counts since the
// cutoff, summed across forums, oldest first. Feeds the rolling baseline.
func (r *SocialMentionRepository) HourlyCountsSince(symbol string, since time.Time) ([]float64, error) {
	rows, err := r.db.Query(`
		SELECT SUM(mention_count) FROM social_mention
		WHERE symbol = ? AND period_start >= ?
		GROUP BY period_start ORDER BY period_start ASC`,
		symbol, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query social counts for %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var n float64
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan social count: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// DeleteOlderThan prunes observations and returns the count removed.
func (r *SocialMentionRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec("DELETE FROM social_mention WHERE period_start < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old social mentions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
