package alerts

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/peterbitar/wealthyrabbit/internal/database"
)

// ErrDuplicate is returned when an alert's content hash is already logged.
var ErrDuplicate = fmt.Errorf("alert with this content hash already logged")

// ErrBudgetExhausted is returned when the user's daily push budget is spent.
var ErrBudgetExhausted = fmt.Errorf("daily push budget exhausted")

// Repository handles alert_log and digest_item database operations.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates an alert repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "alerts").Logger(),
	}
}

// InsertWithBudget atomically checks the content hash, checks the user's
// daily budget, and inserts the alert row. The whole check-then-insert runs
// in one transaction; the unique index on content_hash backstops concurrent
// writers that race past the existence check.
func (r *Repository) InsertWithBudget(a AlertLog, maxDaily int) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		// Dedup: existence check first for a clean ErrDuplicate...
		var n int
		if err := tx.QueryRow(
			"SELECT COUNT(*) FROM alert_log WHERE content_hash = ?", a.ContentHash,
		).Scan(&n); err != nil {
			return fmt.Errorf("failed to check content hash: %w", err)
		}
		if n > 0 {
			return ErrDuplicate
		}

		// Budget: today's delivered count, local day boundaries.
		dayStart := startOfDay(a.SentAt)
		if err := tx.QueryRow(
			"SELECT COUNT(*) FROM alert_log WHERE user_id = ? AND sent_at >= ? AND alert_type != ?",
			a.UserID, dayStart, string(AlertDigest),
		).Scan(&n); err != nil {
			return fmt.Errorf("failed to count today's alerts: %w", err)
		}
		if maxDaily > 0 && n >= maxDaily && a.AlertType != AlertDigest {
			return ErrBudgetExhausted
		}

		metadata, err := marshalMetadata(a.Metadata)
		if err != nil {
			return err
		}

		// ...and the unique index turns any remaining race into a
		// constraint error mapped back to ErrDuplicate.
		_, err = tx.Exec(`
			INSERT INTO alert_log (user_id, alert_type, symbol, content_hash, title, message, url, metadata, sent_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.UserID, string(a.AlertType), nullable(a.Symbol), a.ContentHash,
			a.Title, a.Message, nullable(a.URL), metadata, a.SentAt.UTC())
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("failed to insert alert log: %w", err)
		}
		return nil
	})
}

// CountToday returns the number of non-digest alerts delivered to the user
// since the start of the given day.
func (r *Repository) CountToday(userID string, now time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM alert_log WHERE user_id = ? AND sent_at >= ? AND alert_type != ?",
		userID, startOfDay(now), string(AlertDigest),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count today's alerts for %s: %w", userID, err)
	}
	return n, nil
}

// RecentByUser returns the user's most recent alerts.
func (r *Repository) RecentByUser(userID string, limit int) ([]AlertLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.db.Query(`
		SELECT id, user_id, alert_type, symbol, content_hash, title, message, url, metadata, sent_at
		FROM alert_log WHERE user_id = ? ORDER BY sent_at DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []AlertLog
	for rows.Next() {
		var a AlertLog
		var symbol, url, metadata sql.NullString
		var alertType string
		if err := rows.Scan(&a.ID, &a.UserID, &alertType, &symbol, &a.ContentHash,
			&a.Title, &a.Message, &url, &metadata, &a.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.AlertType = AlertType(alertType)
		a.Symbol = symbol.String
		a.URL = url.String
		if metadata.Valid && metadata.String != "" {
			_ = json.Unmarshal([]byte(metadata.String), &a.Metadata)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// HashExists reports whether a content hash is already logged.
func (r *Repository) HashExists(hash string) (bool, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM alert_log WHERE content_hash = ?", hash).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check content hash: %w", err)
	}
	return n > 0, nil
}

// ==========================================
// Digest bucket
// ==========================================

// AddDigestItem queues a suppressed candidate for the daily digest.
func (r *Repository) AddDigestItem(item DigestItem) error {
	_, err := r.db.Exec(`
		INSERT INTO digest_item (user_id, alert_type, symbol, title, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		item.UserID, string(item.AlertType), nullable(item.Symbol),
		item.Title, item.Message, item.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to queue digest item: %w", err)
	}
	return nil
}

// PendingDigestUserIDs returns the ids of users with queued digest items.
func (r *Repository) PendingDigestUserIDs() ([]string, error) {
	rows, err := r.db.Query("SELECT DISTINCT user_id FROM digest_item ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query pending digest users: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan digest user id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// DrainDigestItems returns one user's queued items, oldest first, and
// removes them. Read and delete run in one transaction so a crash between
// the two never drops or double-sends a bucket. Users whose digest is not
// due are simply not drained and keep accumulating.
func (r *Repository) DrainDigestItems(userID string) ([]DigestItem, error) {
	var items []DigestItem

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		rows, err := tx.Query(`
			SELECT user_id, alert_type, symbol, title, message, created_at
			FROM digest_item WHERE user_id = ? ORDER BY created_at`, userID)
		if err != nil {
			return fmt.Errorf("failed to query digest items: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var item DigestItem
			var symbol sql.NullString
			var alertType string
			if err := rows.Scan(&item.UserID, &alertType, &symbol, &item.Title, &item.Message, &item.CreatedAt); err != nil {
				return fmt.Errorf("failed to scan digest item: %w", err)
			}
			item.AlertType = AlertType(alertType)
			item.Symbol = symbol.String
			items = append(items, item)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		if _, err := tx.Exec("DELETE FROM digest_item WHERE user_id = ?", userID); err != nil {
			return fmt.Errorf("failed to clear digest items: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ==========================================
// Helpers
// ==========================================

func startOfDay(t time.Time) time.Time {
	local := t.Local()
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location()).UTC()
}

func marshalMetadata(m map[string]interface{}) (interface{}, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal alert metadata: %w", err)
	}
	return string(b), nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint violation")
}
