// Package feed builds the bounded, themed briefing from scored clusters.
//
// The builder caps to the mode-dependent top K, groups clusters into themes
// (LLM grouping with a deterministic ticker/event-type fallback), and renders
// hook / context / why-it-matters copy. Rendered LLM text is checked against
// the no-invented-numbers rule; a violation falls back to templates.
package feed

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/peterbitar/wealthyrabbit/internal/clients/llm"
	"github.com/peterbitar/wealthyrabbit/internal/domain"
	"github.com/peterbitar/wealthyrabbit/internal/modules/clustering"
	"github.com/peterbitar/wealthyrabbit/internal/modules/scoring"
)

// ScoredCluster pairs a cluster with its per-user score.
type ScoredCluster struct {
	Cluster clustering.Cluster
	Score   scoring.UserEventScore
}

// Theme is one output unit of the feed.
type Theme struct {
	ID           string
	Name         string
	Clusters     []clustering.Cluster
	Hook         string
	Context      string
	WhyItMatters string
	MaxScore     float64
}

// ThemeWriter is the LLM capability surface the builder uses. May be nil.
type ThemeWriter interface {
	GroupThemes(ctx context.Context, headlines []string, maxThemes int) (map[string][]int, error)
	WriteThemeTexts(ctx context.Context, themeName string, headlines []string, ownedSymbols []string) (llm.ThemeTexts, error)
}

// Builder assembles feeds.
type Builder struct {
	llm ThemeWriter
	log zerolog.Logger
}

// NewBuilder creates a feed builder. themeWriter may be nil.
func NewBuilder(themeWriter ThemeWriter, log zerolog.Logger) *Builder {
	return &Builder{
		llm: themeWriter,
		log: log.With().Str("component", "feed").Logger(),
	}
}

// Build produces the ordered theme list for one user.
func (b *Builder) Build(
	ctx context.Context,
	scored []ScoredCluster,
	settings domain.UserSettings,
	holdings []domain.Holding,
) []Theme {
	if len(scored) == 0 {
		return nil
	}

	selected := topK(scored, settings.Mode.FeedCap())
	groups := b.groupIntoThemes(ctx, selected, settings.Mode.FeedCap())

	owned := ownedSymbols(holdings)

	themes := make([]Theme, 0, len(groups))
	for _, g := range groups {
		theme := Theme{
			ID:       uuid.NewString(),
			Name:     g.name,
			Clusters: make([]clustering.Cluster, 0, len(g.members)),
		}
		for _, m := range g.members {
			theme.Clusters = append(theme.Clusters, m.Cluster)
			if m.Score.Total > theme.MaxScore {
				theme.MaxScore = m.Score.Total
			}
		}
		b.writeTexts(ctx, &theme, owned)
		themes = append(themes, theme)
	}

	// Themes ordered by descending max cluster score.
	sort.SliceStable(themes, func(i, j int) bool { return themes[i].MaxScore > themes[j].MaxScore })

	return themes
}

// topK sorts by total score descending (recency, then canonical quality as
// tie-breaks) and keeps the first k.
func topK(scored []ScoredCluster, k int) []ScoredCluster {
	out := make([]ScoredCluster, len(scored))
	copy(out, scored)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score.Total != b.Score.Total {
			return a.Score.Total > b.Score.Total
		}
		if a.Score.RecencyScore != b.Score.RecencyScore {
			return a.Score.RecencyScore > b.Score.RecencyScore
		}
		return a.Cluster.Canonical().SourceQuality > b.Cluster.Canonical().SourceQuality
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

type themeGroup struct {
	name    string
	members []ScoredCluster
}

// groupIntoThemes asks the LLM to group the selected clusters, falling back
// to the deterministic grouping. Every selected cluster ends up in exactly
// one theme; clusters the LLM response misses are appended to a catch-all.
func (b *Builder) groupIntoThemes(ctx context.Context, selected []ScoredCluster, maxThemes int) []themeGroup {
	if b.llm != nil {
		headlines := make([]string, len(selected))
		for i, s := range selected {
			headlines[i] = s.Cluster.Canonical().CleanTitle
		}

		groups, err := b.llm.GroupThemes(ctx, headlines, maxThemes)
		if err == nil {
			if parsed := buildLLMGroups(groups, selected, maxThemes); len(parsed) > 0 {
				return parsed
			}
		} else {
			b.log.Debug().Err(err).Msg("LLM theme grouping failed, using deterministic grouping")
		}
	}
	return fallbackGroups(selected, maxThemes)
}

func buildLLMGroups(groups map[string][]int, selected []ScoredCluster, maxThemes int) []themeGroup {
	assigned := make([]bool, len(selected))

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > maxThemes {
		names = names[:maxThemes]
	}

	var out []themeGroup
	for _, name := range names {
		var members []ScoredCluster
		for _, idx := range groups[name] {
			if idx < 0 || idx >= len(selected) || assigned[idx] {
				continue
			}
			assigned[idx] = true
			members = append(members, selected[idx])
		}
		if len(members) > 0 {
			out = append(out, themeGroup{name: name, members: members})
		}
	}

	// Anything the model failed to place lands in the last group so no
	// selected cluster is silently lost.
	var leftovers []ScoredCluster
	for i, done := range assigned {
		if !done {
			leftovers = append(leftovers, selected[i])
		}
	}
	if len(leftovers) > 0 {
		if len(out) > 0 && len(out) >= maxThemes {
			out[len(out)-1].members = append(out[len(out)-1].members, leftovers...)
		} else {
			out = append(out, themeGroup{name: "Also on the radar", members: leftovers})
		}
	}

	return out
}

// fallbackGroups groups by dominant ticker, then by event type for clusters
// without a ticker.
func fallbackGroups(selected []ScoredCluster, maxThemes int) []themeGroup {
	byKey := make(map[string]*themeGroup)
	var order []string

	for _, s := range selected {
		key := s.Cluster.DominantTicker
		name := key
		if key == "" {
			key = "type:" + string(s.Cluster.EventType)
			name = themeNameForEventType(s.Cluster.EventType)
		}
		g, ok := byKey[key]
		if !ok {
			g = &themeGroup{name: name}
			byKey[key] = g
			order = append(order, key)
		}
		g.members = append(g.members, s)
	}

	out := make([]themeGroup, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}

	// Collapse overflow groups into the last allowed theme.
	if len(out) > maxThemes {
		for _, extra := range out[maxThemes:] {
			out[maxThemes-1].members = append(out[maxThemes-1].members, extra.members...)
		}
		out = out[:maxThemes]
	}

	return out
}

