// Package scoring computes per-user relevance scores for event clusters.
//
// A score is a fixed weighted sum over four components; hard pre-filters
// keyed on the user's mode run first and return no score at all, and focus
// mode applies a post-filter on the total.
package scoring

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/peterbitar/wealthyrabbit/internal/domain"
	"github.com/peterbitar/wealthyrabbit/internal/modules/clustering"
	"github.com/peterbitar/wealthyrabbit/internal/modules/detection"
)

// Component weights of the total score.
const (
	weightHoldings = 0.55
	weightImpact   = 0.20
	weightType     = 0.15
	weightRecency  = 0.10
)

// focusScoreFloor is the focus-mode post-filter threshold.
const focusScoreFloor = 0.5

// UserEventScore is the scored relevance of one cluster for one user.
type UserEventScore struct {
	ClusterID string
	UserID    string
	Total     float64

	// Breakdown.
	HoldingsRelevance float64
	ImpactLabelScore  float64
	EventTypeWeight   float64
	RecencyScore      float64
}

// Engine scores clusters against user settings.
type Engine struct {
	clock func() time.Time
	log   zerolog.Logger
}

// NewEngine creates a scoring engine.
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{
		clock: time.Now,
		log:   log.With().Str("component", "scoring").Logger(),
	}
}

// Score computes the user's score for one cluster, or nil when a hard
// filter removes it. events maps article ID to its detection result.
func (e *Engine) Score(
	cluster clustering.Cluster,
	events map[string]detection.DetectedEvent,
	settings domain.UserSettings,
	holdings []domain.Holding,
) *UserEventScore {
	owned := domain.SymbolSet(holdings)
	holdingsCluster := cluster.IsHoldingsNews() || owned[cluster.DominantTicker]

	if filtered := e.preFilter(cluster, events, settings, owned, holdingsCluster); filtered {
		return nil
	}

	score := &UserEventScore{
		ClusterID:         cluster.ID,
		UserID:            settings.UserID,
		HoldingsRelevance: e.holdingsRelevance(cluster, owned),
		ImpactLabelScore:  impactLabelScore(cluster, events),
		EventTypeWeight:   cluster.EventType.BaseScore(),
		RecencyScore:      recencyScore(e.clock().Sub(cluster.CreatedAt)),
	}
	score.Total = weightHoldings*score.HoldingsRelevance +
		weightImpact*score.ImpactLabelScore +
		weightType*score.EventTypeWeight +
		weightRecency*score.RecencyScore

	if settings.Mode == domain.ModeFocus && score.Total < focusScoreFloor {
		return nil
	}

	return score
}

// preFilter applies the mode-keyed hard filters. Returns true to drop.
func (e *Engine) preFilter(
	cluster clustering.Cluster,
	events map[string]detection.DetectedEvent,
	settings domain.UserSettings,
	owned map[string]bool,
	holdingsCluster bool,
) bool {
	focusHoldings := settings.Mode == domain.ModeFocus && holdingsCluster

	// Focus mode only ever sees owned tickers.
	if settings.Mode == domain.ModeFocus && !owned[cluster.DominantTicker] {
		return true
	}

	// Low-information members poison the cluster, except holdings clusters
	// in focus mode.
	if cluster.HasLowInformation() && !focusHoldings {
		return true
	}

	// Fluff never surfaces, with the same focus-holdings exception.
	if cluster.EventType == detection.EventFluff && !focusHoldings {
		return true
	}

	// Beginner and smart drop noise event types unless the cluster is
	// holdings-related: fluff/rumor outright, analyst notes and social
	// sentiment without a strong impact label.
	if (settings.Mode == domain.ModeBeginner || settings.Mode == domain.ModeSmart) && !holdingsCluster {
		switch cluster.EventType {
		case detection.EventFluff, detection.EventRumor:
			return true
		case detection.EventAnalystNote, detection.EventSocialSentiment:
			if !clusterHasStrongLabel(cluster, events) {
				return true
			}
		}
	}

	return false
}

// holdingsRelevance: 1.0 when the dominant ticker is owned and named in the
// canonical title, 0.6 when owned and named in the body, 0.0 when a ticker
// is present but not owned, 0.3 on a sector match against an owned sector,
// 0.15 otherwise.
func (e *Engine) holdingsRelevance(cluster clustering.Cluster, owned map[string]bool) float64 {
	canonical := cluster.Canonical()
	ticker := cluster.DominantTicker

	if ticker != "" && owned[ticker] {
		if strings.Contains(canonical.CleanTitle, ticker) {
			return 1.0
		}
		if strings.Contains(canonical.CleanBody, ticker) {
			return 0.6
		}
	} else if ticker != "" {
		return 0.0
	}

	if sectorMatch(canonical.CleanTitle+" "+canonical.CleanBody, owned) {
		return 0.3
	}

	return 0.15
}

// impactLabelScore sums weight * occurrence count over the cluster's member
// events, normalized by the total label weight and clamped to [0,1].
func impactLabelScore(cluster clustering.Cluster, events map[string]detection.DetectedEvent) float64 {
	sum := 0.0
	for _, a := range cluster.Articles {
		ev, ok := events[a.ID]
		if !ok {
			continue
		}
		for _, label := range ev.Labels {
			sum += label.Weight()
		}
	}

	score := sum / detection.TotalLabelWeight()
	if score > 1 {
		return 1
	}
	if score < 0 {
		return 0
	}
	return score
}

// recencyScore decays with the cluster's age.
func recencyScore(age time.Duration) float64 {
	hours := age.Hours()
	switch {
	case hours < 1:
		return 1.0
	case hours < 3:
		return 0.9
	case hours < 12:
		return 0.75
	case hours < 24:
		return 0.6
	case hours < 72:
		return 0.4
	case hours < 168:
		return 0.2
	default:
		return 0.1
	}
}

func clusterHasStrongLabel(cluster clustering.Cluster, events map[string]detection.DetectedEvent) bool {
	for _, a := range cluster.Articles {
		if ev, ok := events[a.ID]; ok && ev.HasStrongLabel() {
			return true
		}
	}
	return false
}
