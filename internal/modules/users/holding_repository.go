package users

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/peterbitar/wealthyrabbit/internal/domain"
)

// HoldingRepository handles holding database operations. Symbols are
// normalized to uppercase at this boundary, so the rest of the system can
// assume canonical symbols.
type HoldingRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHoldingRepository creates a holding repository.
func NewHoldingRepository(db *sql.DB, log zerolog.Logger) *HoldingRepository {
	return &HoldingRepository{
		db:  db,
		log: log.With().Str("repo", "holdings").Logger(),
	}
}

// Upsert inserts or updates a holding, keyed by (user_id, symbol).
func (r *HoldingRepository) Upsert(h domain.Holding) (*domain.Holding, error) {
	symbol := domain.NormalizeSymbol(h.Symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	_, err := r.db.Exec(`
		INSERT INTO holding (user_id, symbol, name, allocation, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, symbol) DO UPDATE SET
			name = excluded.name,
			allocation = excluded.allocation,
			note = excluded.note`,
		h.UserID, symbol, h.Name, h.Allocation, h.Note, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to upsert holding %s/%s: %w", h.UserID, symbol, err)
	}

	return r.Get(h.UserID, symbol)
}

// Get returns one holding, or nil if absent.
func (r *HoldingRepository) Get(userID, symbol string) (*domain.Holding, error) {
	row := r.db.QueryRow(`
		SELECT user_id, symbol, name, allocation, note, created_at
		FROM holding WHERE user_id = ? AND symbol = ?`,
		userID, domain.NormalizeSymbol(symbol))

	var h domain.Holding
	err := row.Scan(&h.UserID, &h.Symbol, &h.Name, &h.Allocation, &h.Note, &h.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query holding %s/%s: %w", userID, symbol, err)
	}
	return &h, nil
}

// ListByUser returns the user's holdings ordered by symbol.
func (r *HoldingRepository) ListByUser(userID string) ([]domain.Holding, error) {
	rows, err := r.db.Query(`
		SELECT user_id, symbol, name, allocation, note, created_at
		FROM holding WHERE user_id = ? ORDER BY symbol`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []domain.Holding
	for rows.Next() {
		var h domain.Holding
		if err := rows.Scan(&h.UserID, &h.Symbol, &h.Name, &h.Allocation, &h.Note, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// Delete removes one holding. Returns whether a row existed.
func (r *HoldingRepository) Delete(userID, symbol string) (bool, error) {
	res, err := r.db.Exec(
		"DELETE FROM holding WHERE user_id = ? AND symbol = ?",
		userID, domain.NormalizeSymbol(symbol))
	if err != nil {
		return false, fmt.Errorf("failed to delete holding %s/%s: %w", userID, symbol, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// AllSymbols returns the distinct symbols held by any user, ordered.
func (r *HoldingRepository) AllSymbols() ([]string, error) {
	rows, err := r.db.Query("SELECT DISTINCT symbol FROM holding ORDER BY symbol")
	if err != nil {
		return nil, fmt.Errorf("failed to query distinct symbols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// HolderIDs returns the user ids holding a symbol.
func (r *HoldingRepository) HolderIDs(symbol string) ([]string, error) {
	rows, err := r.db.Query(
		"SELECT user_id FROM holding WHERE symbol = ? ORDER BY user_id",
		domain.NormalizeSymbol(symbol))
	if err != nil {
		return nil, fmt.Errorf("failed to query holders of %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan holder id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
