package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/peterbitar/wealthyrabbit/internal/domain"
	"github.com/peterbitar/wealthyrabbit/internal/modules/feed"
)

// feedCacheTTL is how long a built feed is served before a refresh is
// required.
const feedCacheTTL = 30 * time.Minute

// UserDirectory reads user settings. Implemented by the users repository.
type UserDirectory interface {
	Get(userID string) (*domain.UserSettings, error)
}

// HoldingsDirectory reads a user's holdings. Implemented by the holding
// repository.
type HoldingsDirectory interface {
	ListByUser(userID string) ([]domain.Holding, error)
}

// FeedService fronts the pipeline with the per-user feed cache.
type FeedService struct {
	pipeline *Pipeline
	cache    *feed.CacheRepository
	users    UserDirectory
	holdings HoldingsDirectory
	clock    func() time.Time
	log      zerolog.Logger
}

// NewFeedService creates the feed service.
func NewFeedService(p *Pipeline, cache *feed.CacheRepository, users UserDirectory, holdings HoldingsDirectory, log zerolog.Logger) *FeedService {
	return &FeedService{
		pipeline: p,
		cache:    cache,
		users:    users,
		holdings: holdings,
		clock:    time.Now,
		log:      log.With().Str("service", "feed").Logger(),
	}
}

// Cached returns the user's cached feed when it is still fresh, else nil.
func (s *FeedService) Cached(userID string) (*feed.CachedFeed, error) {
	cached, err := s.cache.Get(userID)
	if err != nil || cached == nil {
		return nil, err
	}
	if s.clock().Sub(cached.BuiltAt) > feedCacheTTL {
		return nil, nil
	}
	return cached, nil
}

// Refresh runs the pipeline for the user and stores the result.
func (s *FeedService) Refresh(ctx context.Context, userID string) (*Result, error) {
	user, err := s.users.Get(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s not found", userID)
	}

	holdings, err := s.holdings.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	result, err := s.pipeline.Run(ctx, *user, holdings)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Put(userID, result.Themes, s.clock()); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("Failed to cache feed")
	}

	return result, nil
}
