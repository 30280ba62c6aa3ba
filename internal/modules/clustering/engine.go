// Package clustering collapses articles about the same real-world event into
// clusters while preserving multi-company events.
//
// Three stages: an exact/near-duplicate filter, intra-ticker cluster growth
// (fast checks first, LLM tie-break for the ambiguous middle band), then a
// cross-ticker merge for shared events. LLM checks run sequentially inside
// the growth loops so call volume stays linear in practice, and every LLM
// failure degrades to a similarity-only decision. Clustering always
// terminates and never emits an empty cluster.
package clustering

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/peterbitar/wealthyrabbit/internal/modules/cleaning"
	"github.com/peterbitar/wealthyrabbit/internal/modules/detection"
)

const (
	// Stage-1 word-overlap duplicate threshold.
	duplicateJaccard = 0.85

	// Stage-2 thresholds.
	quickAcceptJaccard  = 0.70
	llmCandidateJaccard = 0.30
	llmFallbackJaccard  = 0.50
	sameEventWindow     = 48 * time.Hour

	// Stage-3 thresholds.
	autoMergeJaccard     = 0.50
	considerMergeJaccard = 0.35
	crossTickerWindow    = 72 * time.Hour

	noTickerGroup = "no-ticker"
)

// SameEventChecker asks whether two headlines describe the same event.
// Implemented by the LLM client; pacing lives behind the interface.
type SameEventChecker interface {
	SameEvent(ctx context.Context, titleA, titleB string) (bool, error)
}

// Engine groups articles into event clusters.
type Engine struct {
	llm   SameEventChecker // may be nil
	clock func() time.Time
	log   zerolog.Logger
}

// NewEngine creates a clustering engine. llm may be nil.
func NewEngine(llm SameEventChecker, log zerolog.Logger) *Engine {
	return &Engine{
		llm:   llm,
		clock: time.Now,
		log:   log.With().Str("component", "clustering").Logger(),
	}
}

// Cluster runs all three stages. events maps article ID to its detection
// result; holdings is the union of the run's user holdings, used to bias
// dominant-ticker selection on merges.
func (e *Engine) Cluster(
	ctx context.Context,
	articles []cleaning.CleanedArticle,
	events map[string]detection.DetectedEvent,
	holdings map[string]bool,
) []Cluster {
	survivors := e.filterDuplicates(articles)

	clusters := e.clusterWithinGroups(ctx, survivors, events)

	clusters = e.mergeCrossTicker(ctx, clusters, holdings)

	e.log.Info().
		Int("input", len(articles)).
		Int("after_dedup", len(survivors)).
		Int("clusters", len(clusters)).
		Msg("Clustering completed")

	return clusters
}

// filterDuplicates is stage 1: drop repeat URLs, exact normalized-title
// duplicates, near-duplicate titles, and titles whose word overlap with an
// already-kept title exceeds the duplicate threshold.
func (e *Engine) filterDuplicates(articles []cleaning.CleanedArticle) []cleaning.CleanedArticle {
	seenURL := make(map[string]bool, len(articles))
	seenTitle := make(map[string]bool, len(articles))
	var keptTitles []string
	var kept []cleaning.CleanedArticle

articleLoop:
	for _, a := range articles {
		if a.URL != "" && seenURL[a.URL] {
			continue
		}
		norm := NormalizeTitle(a.CleanTitle)
		if norm != "" && seenTitle[norm] {
			continue
		}
		for _, prev := range keptTitles {
			if nearDuplicateTitles(norm, prev) {
				continue articleLoop
			}
		}
		for _, prevArt := range kept {
			if TitleJaccard(a.CleanTitle, prevArt.CleanTitle) > duplicateJaccard {
				continue articleLoop
			}
		}

		seenURL[a.URL] = true
		seenTitle[norm] = true
		keptTitles = append(keptTitles, norm)
		kept = append(kept, a)
	}

	return kept
}

// clusterWithinGroups is stage 2: partition by dominant ticker and grow
// clusters greedily within each group.
func (e *Engine) clusterWithinGroups(
	ctx context.Context,
	articles []cleaning.CleanedArticle,
	events map[string]detection.DetectedEvent,
) []Cluster {
	groups := make(map[string][]cleaning.CleanedArticle)
	var groupOrder []string
	for _, a := range articles {
		key := noTickerGroup
		if ev, ok := events[a.ID]; ok && ev.DominantTicker != "" {
			key = ev.DominantTicker
		}
		if _, ok := groups[key]; !ok {
			groupOrder = append(groupOrder, key)
		}
		groups[key] = append(groups[key], a)
	}

	var clusters []Cluster
	for _, key := range groupOrder {
		clusters = append(clusters, e.growClusters(ctx, key, groups[key], events)...)
	}
	return clusters
}

// growClusters grows clusters from unseen seeds within one ticker group.
func (e *Engine) growClusters(
	ctx context.Context,
	ticker string,
	group []cleaning.CleanedArticle,
	events map[string]detection.DetectedEvent,
) []Cluster {
	used := make([]bool, len(group))
	var clusters []Cluster

	for i, seed := range group {
		if used[i] {
			continue
		}
		used[i] = true

		members := []cleaning.CleanedArticle{seed}
		var sims []float64

		for j := i + 1; j < len(group); j++ {
			if used[j] {
				continue
			}
			candidate := group[j]

			sim, same := e.sameEvent(ctx, seed, candidate, events)
			if !same {
				continue
			}
			used[j] = true
			members = append(members, candidate)
			sims = append(sims, sim)
		}

		dominant := ticker
		if dominant == noTickerGroup {
			dominant = ""
		}

		clusters = append(clusters, e.buildCluster(members, sims, dominant, events))
	}

	return clusters
}

// sameEvent decides whether two same-group articles describe one event,
// returning the recorded similarity. Quick accepts first, then the LLM for
// the ambiguous band, then the similarity-only fallback.
func (e *Engine) sameEvent(
	ctx context.Context,
	a, b cleaning.CleanedArticle,
	events map[string]detection.DetectedEvent,
) (float64, bool) {
	evA, evB := events[a.ID], events[b.ID]
	sameTicker := evA.DominantTicker != "" && evA.DominantTicker == evB.DominantTicker

	// Same ticker, same event type, published within the window.
	if sameTicker && evA.Type == evB.Type && absDuration(a.PublishedAt.Sub(b.PublishedAt)) <= sameEventWindow {
		return 0.95, true
	}

	jaccard := TitleJaccard(a.CleanTitle, b.CleanTitle)
	if jaccard > quickAcceptJaccard && sameTicker {
		return jaccard, true
	}

	if jaccard > llmCandidateJaccard || sameTicker {
		if e.llm != nil {
			same, err := e.llm.SameEvent(ctx, a.CleanTitle, b.CleanTitle)
			if err == nil {
				return jaccard, same
			}
			e.log.Debug().Err(err).Msg("LLM same-event check failed, falling back to similarity")
		}
		return jaccard, jaccard > llmFallbackJaccard
	}

	return jaccard, false
}

// mergeCrossTicker is stage 3: merge clusters with distinct dominant tickers
// that describe a shared event. Passes repeat until no merge happens so that
// chains (A joins B, AB joins C) converge.
func (e *Engine) mergeCrossTicker(ctx context.Context, clusters []Cluster, holdings map[string]bool) []Cluster {
	for {
		merged := false

	pairLoop:
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				a, b := &clusters[i], &clusters[j]
				if a.DominantTicker == "" || b.DominantTicker == "" || a.DominantTicker == b.DominantTicker {
					continue
				}

				sim := TitleJaccard(a.Canonical().CleanTitle, b.Canonical().CleanTitle)

				shouldMerge := false
				switch {
				case sim > autoMergeJaccard:
					shouldMerge = true
				case tickersOverlap(a.MentionedTickers(), b.MentionedTickers()),
					sim > considerMergeJaccard && absDuration(a.Canonical().PublishedAt.Sub(b.Canonical().PublishedAt)) <= crossTickerWindow:
					shouldMerge = e.confirmSameEvent(ctx, a.Canonical().CleanTitle, b.Canonical().CleanTitle, sim)
				}
				if !shouldMerge {
					continue
				}

				clusters[i] = e.mergeClusters(*a, *b, sim, holdings)
				clusters = append(clusters[:j], clusters[j+1:]...)
				merged = true
				break pairLoop
			}
		}

		if !merged {
			return clusters
		}
	}
}

// confirmSameEvent is the LLM confirmation with similarity fallback.
func (e *Engine) confirmSameEvent(ctx context.Context, titleA, titleB string, sim float64) bool {
	if e.llm != nil {
		same, err := e.llm.SameEvent(ctx, titleA, titleB)
		if err == nil {
			return same
		}
		e.log.Debug().Err(err).Msg("LLM cross-ticker check failed, falling back to similarity")
	}
	return sim > llmFallbackJaccard
}

// mergeClusters unions two clusters. The dominant ticker prefers a
// holdings-owned ticker, else the ticker appearing in most member articles;
// the event type is the higher-base-score of the two.
func (e *Engine) mergeClusters(a, b Cluster, sim float64, holdings map[string]bool) Cluster {
	articles := append(append([]cleaning.CleanedArticle{}, a.Articles...), b.Articles...)
	sims := append(append([]float64{}, a.Similarities...), b.Similarities...)
	sims = append(sims, sim)

	eventType := a.EventType
	if b.EventType.BaseScore() > a.EventType.BaseScore() {
		eventType = b.EventType
	}

	merged := Cluster{
		ID:                uuid.NewString(),
		Articles:          articles,
		Similarities:      sims,
		EventType:         eventType,
		DominantTicker:    mergedDominantTicker(articles, []string{a.DominantTicker, b.DominantTicker}, holdings),
		CreatedAt:         e.clock(),
		CrossTickerMerged: true,
		PairSimilarity:    sim,
	}
	merged.CanonicalIndex = e.selectCanonical(merged.Articles)
	return merged
}

// buildCluster assembles a stage-2 cluster with its canonical pick and
// event type (highest base score among members).
func (e *Engine) buildCluster(
	members []cleaning.CleanedArticle,
	sims []float64,
	dominant string,
	events map[string]detection.DetectedEvent,
) Cluster {
	eventType := detection.EventFluff
	for _, m := range members {
		if ev, ok := events[m.ID]; ok && ev.Type.BaseScore() > eventType.BaseScore() {
			eventType = ev.Type
		}
	}

	c := Cluster{
		ID:             uuid.NewString(),
		Articles:       members,
		Similarities:   sims,
		EventType:      eventType,
		DominantTicker: dominant,
		CreatedAt:      e.clock(),
	}
	c.CanonicalIndex = e.selectCanonical(c.Articles)
	return c
}

// selectCanonical scores every member and returns the index of the best:
// 0.4*quality + 0.3*min(1, bodyLen/1000) + 0.2*max(0, 1-ageDays/7) +
// 0.1*min(1, titleLen/100).
func (e *Engine) selectCanonical(articles []cleaning.CleanedArticle) int {
	now := e.clock()
	best, bestScore := 0, -1.0
	for i, a := range articles {
		bodyScore := float64(len(a.CleanBody)) / 1000.0
		if bodyScore > 1 {
			bodyScore = 1
		}
		ageDays := now.Sub(a.PublishedAt).Hours() / 24.0
		ageScore := 1 - ageDays/7.0
		if ageScore < 0 {
			ageScore = 0
		}
		titleScore := float64(len(a.CleanTitle)) / 100.0
		if titleScore > 1 {
			titleScore = 1
		}

		score := 0.4*a.SourceQuality + 0.3*bodyScore + 0.2*ageScore + 0.1*titleScore
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

func mergedDominantTicker(articles []cleaning.CleanedArticle, candidates []string, holdings map[string]bool) string {
	// A holdings-owned candidate wins outright.
	for _, c := range candidates {
		if c != "" && holdings[c] {
			return c
		}
	}

	// Else the ticker appearing in the most member articles.
	counts := make(map[string]int)
	for _, a := range articles {
		for _, t := range a.CleanTickers {
			counts[t]++
		}
	}

	best, bestCount := "", 0
	keys := make([]string, 0, len(counts))
	for t := range counts {
		keys = append(keys, t)
	}
	sort.Strings(keys) // deterministic tie-break
	for _, t := range keys {
		if counts[t] > bestCount {
			best, bestCount = t, counts[t]
		}
	}
	if best != "" {
		return best
	}
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}

func tickersOverlap(a, b map[string]bool) bool {
	for t := range a {
		if b[t] {
			return true
		}
	}
	return false
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
