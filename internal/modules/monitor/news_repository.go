package monitor

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewsItem is one cached headline, keyed by URL.
type NewsItem struct {
	Symbol      string
	Title       string
	Source      string
	SourceTier  int
	URL         string
	ContentHash string
	PublishedAt time.Time
	FetchedAt   time.Time
}

// NewsItemRepository handles the news_item cache.
type NewsItemRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewNewsItemRepository creates a news item repository.
func NewNewsItemRepository(db *sql.DB, log zerolog.Logger) *NewsItemRepository {
	return &NewsItemRepository{
		db:  db,
		log: log.With().Str("repo", "news_items").Logger(),
	}
}

// InsertIfNew caches the item. Returns false when the URL or content hash is
// already cached (the item is not new).
func (r *NewsItemRepository) InsertIfNew(item NewsItem) (bool, error) {
	res, err := r.db.Exec(`
		INSERT OR IGNORE INTO news_item (symbol, title, source, source_tier, url, content_hash, published_at, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.Symbol, item.Title, item.Source, item.SourceTier,
		item.URL, item.ContentHash, item.PublishedAt.UTC(), item.FetchedAt.UTC())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return false, nil
		}
		return false, fmt.Errorf("failed to cache news item %s: %w", item.URL, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteOlderThan prunes the cache and returns the count removed.
func (r *NewsItemRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec("DELETE FROM news_item WHERE fetched_at < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old news items: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
