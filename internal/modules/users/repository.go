// Package users manages user settings and holdings.
package users

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/peterbitar/wealthyrabbit/internal/domain"
)

// userColumns is the app_user column list, kept explicit so schema changes
// fail loudly instead of misaligning scans.
const userColumns = `user_id, name, push_token, notification_frequency,
notification_sensitivity, weekly_summary, mode, max_daily_pushes, created_at, updated_at`

// Repository handles app_user database operations.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a user repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "users").Logger(),
	}
}

// Register inserts a user or updates the name/push token of an existing one.
func (r *Repository) Register(userID, name, pushToken string, maxDailyPushes int) (*domain.UserSettings, error) {
	now := time.Now().UTC()
	_, err := r.db.Exec(`
		INSERT INTO app_user (user_id, name, push_token, max_daily_pushes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE app_user.name END,
			push_token = CASE WHEN excluded.push_token != '' THEN excluded.push_token ELSE app_user.push_token END,
			updated_at = excluded.updated_at`,
		userID, name, pushToken, maxDailyPushes, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to register user %s: %w", userID, err)
	}
	return r.Get(userID)
}

// Get returns a user by id, or nil if unknown.
func (r *Repository) Get(userID string) (*domain.UserSettings, error) {
	row := r.db.QueryRow("SELECT "+userColumns+" FROM app_user WHERE user_id = ?", userID)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user %s: %w", userID, err)
	}
	return user, nil
}

// GetAll returns every registered user.
func (r *Repository) GetAll() ([]domain.UserSettings, error) {
	rows, err := r.db.Query("SELECT " + userColumns + " FROM app_user ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var out []domain.UserSettings
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, *user)
	}
	return out, rows.Err()
}

// UpdatePushToken replaces the user's push token.
func (r *Repository) UpdatePushToken(userID, pushToken string) error {
	res, err := r.db.Exec(
		"UPDATE app_user SET push_token = ?, updated_at = ? WHERE user_id = ?",
		pushToken, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to update push token for %s: %w", userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s not found", userID)
	}
	return nil
}

// SettingsUpdate is a partial settings change; nil fields are left untouched.
type SettingsUpdate struct {
	Frequency     *domain.Frequency
	Sensitivity   *domain.Sensitivity
	WeeklySummary *bool
	Mode          *domain.Mode
}

// UpdateSettings applies a partial settings update and returns the user.
func (r *Repository) UpdateSettings(userID string, update SettingsUpdate) (*domain.UserSettings, error) {
	user, err := r.Get(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s not found", userID)
	}

	if update.Frequency != nil {
		user.Frequency = *update.Frequency
	}
	if update.Sensitivity != nil {
		user.Sensitivity = *update.Sensitivity
	}
	if update.WeeklySummary != nil {
		user.WeeklySummary = *update.WeeklySummary
	}
	if update.Mode != nil {
		user.Mode = *update.Mode
	}

	_, err = r.db.Exec(`
		UPDATE app_user SET notification_frequency = ?, notification_sensitivity = ?,
			weekly_summary = ?, mode = ?, updated_at = ?
		WHERE user_id = ?`,
		string(user.Frequency), string(user.Sensitivity), user.WeeklySummary,
		string(user.Mode), time.Now().UTC(), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to update settings for %s: %w", userID, err)
	}

	return r.Get(userID)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*domain.UserSettings, error) {
	var u domain.UserSettings
	var frequency, sensitivity, mode string
	err := row.Scan(&u.UserID, &u.Name, &u.PushToken, &frequency, &sensitivity,
		&u.WeeklySummary, &mode, &u.MaxDailyPushes, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Frequency = domain.Frequency(frequency)
	u.Sensitivity = domain.Sensitivity(sensitivity)
	u.Mode = domain.Mode(mode)
	return &u, nil
}
