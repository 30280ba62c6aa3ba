package monitor

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// PricePoint is one appended price observation.
type PricePoint struct {
	Symbol        string
	Price         float64
	ChangePercent float64
	Volume        int64
	Timestamp     time.Time
}

// PricePointRepository handles the append-only price_point table.
type PricePointRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPricePointRepository creates a price point repository.
func NewPricePointRepository(db *sql.DB, log zerolog.Logger) *PricePointRepository {
	return &PricePointRepository{
		db:  db,
		log: log.With().Str("repo", "price_points").Logger(),
	}
}

// Insert appends one observation.
func (r *PricePointRepository) Insert(p PricePoint) error {
	_, err := r.db.Exec(`
		INSERT INTO price_point (symbol, price, change_percent, volume, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		p.Symbol, p.Price, p.ChangePercent, p.Volume, p.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert price point for %s: %w", p.Symbol, err)
	}
	return nil
}

// WindowSince returns the symbol's points with timestamp >= since, oldest
// first.
func (r *PricePointRepository) WindowSince(symbol string, since time.Time) ([]PricePoint, error) {
	rows, err := r.db.Query(`
		SELECT symbol, price, COALESCE(change_percent, 0), COALESCE(volume, 0), timestamp
		FROM price_point WHERE symbol = ? AND timestamp >= ?
		ORDER BY timestamp ASC`,
		symbol, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query price window for %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []PricePoint
	for rows.Next() {
		var p PricePoint
		if err := rows.Scan(&p.Symbol, &p.Price, &p.ChangePercent, &p.Volume, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan price point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteOlderThan removes points older than the cutoff and returns the count.
func (r *PricePointRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec("DELETE FROM price_point WHERE timestamp < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old price points: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
