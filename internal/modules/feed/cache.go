package feed

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// CachedTheme is the compact serialized form of one theme.
type CachedTheme struct {
	Name         string   `msgpack:"name"`
	Hook         string   `msgpack:"hook"`
	Context      string   `msgpack:"context"`
	WhyItMatters string   `msgpack:"why"`
	Headlines    []string `msgpack:"headlines"`
	Symbols      []string `msgpack:"symbols"`
	MaxScore     float64  `msgpack:"max_score"`
}

// CachedFeed is one user's stored feed.
type CachedFeed struct {
	Themes  []CachedTheme `msgpack:"themes"`
	BuiltAt time.Time     `msgpack:"built_at"`
}

// CacheRepository stores built feeds per user as msgpack blobs so repeat
// requests inside the TTL window skip the pipeline (and its LLM cost).
type CacheRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewCacheRepository creates a feed cache repository.
func NewCacheRepository(db *sql.DB, log zerolog.Logger) *CacheRepository {
	return &CacheRepository{
		db:  db,
		log: log.With().Str("repo", "feed_cache").Logger(),
	}
}

// Put stores the user's feed, replacing any previous one.
func (r *CacheRepository) Put(userID string, themes []Theme, builtAt time.Time) error {
	cached := CachedFeed{BuiltAt: builtAt.UTC(), Themes: make([]CachedTheme, 0, len(themes))}
	for _, t := range themes {
		ct := CachedTheme{
			Name:         t.Name,
			Hook:         t.Hook,
			Context:      t.Context,
			WhyItMatters: t.WhyItMatters,
			MaxScore:     t.MaxScore,
		}
		for _, c := range t.Clusters {
			ct.Headlines = append(ct.Headlines, c.Canonical().CleanTitle)
			if c.DominantTicker != "" {
				ct.Symbols = append(ct.Symbols, c.DominantTicker)
			}
		}
		cached.Themes = append(cached.Themes, ct)
	}

	payload, err := msgpack.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal feed cache: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO feed_cache (user_id, payload, built_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET payload = excluded.payload, built_at = excluded.built_at`,
		userID, payload, builtAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to store feed cache: %w", err)
	}
	return nil
}

// Get returns the user's cached feed, or nil when none exists.
func (r *CacheRepository) Get(userID string) (*CachedFeed, error) {
	var payload []byte
	err := r.db.QueryRow("SELECT payload FROM feed_cache WHERE user_id = ?", userID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read feed cache: %w", err)
	}

	var cached CachedFeed
	if err := msgpack.Unmarshal(payload, &cached); err != nil {
		// A corrupt blob is dropped rather than surfaced; the next build
		// overwrites it.
		r.log.Warn().Err(err).Str("user_id", userID).Msg("Dropping unreadable feed cache entry")
		_, _ = r.db.Exec("DELETE FROM feed_cache WHERE user_id = ?", userID)
		return nil, nil
	}
	cached.BuiltAt = cached.BuiltAt.UTC()

	return &cached, nil
}
