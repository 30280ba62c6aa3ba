package feed

import (
	"context"
	"fmt"
	"strings"

	"github.com/peterbitar/wealthyrabbit/internal/clients/llm"
	"github.com/peterbitar/wealthyrabbit/internal/domain"
	"github.com/peterbitar/wealthyrabbit/internal/modules/detection"
)

// writeTexts fills the theme's hook / context / why-it-matters, preferring
// the LLM and enforcing the no-invented-numbers rule on its output. Any
// failure or violation falls back to deterministic templates.
func (b *Builder) writeTexts(ctx context.Context, theme *Theme, owned []string) {
	headlines := make([]string, 0, len(theme.Clusters))
	for _, c := range theme.Clusters {
		headlines = append(headlines, c.Canonical().CleanTitle)
	}

	if b.llm != nil {
		texts, err := b.llm.WriteThemeTexts(ctx, theme.Name, headlines, owned)
		if err == nil {
			inputs := append([]string{theme.Name}, headlines...)
			combined := texts.Hook + " " + texts.Context + " " + texts.WhyItMatters
			if llm.NumbersGrounded(combined, inputs...) {
				theme.Hook = texts.Hook
				theme.Context = texts.Context
				theme.WhyItMatters = texts.WhyItMatters
				return
			}
			b.log.Warn().Str("theme", theme.Name).Msg("LLM theme text invented numbers, using templates")
		} else {
			b.log.Debug().Err(err).Str("theme", theme.Name).Msg("LLM theme text failed, using templates")
		}
	}

	b.templateTexts(theme, owned)
}

// templateTexts is the deterministic fallback, built only from the canonical
// titles and the user's owned tickers.
func (b *Builder) templateTexts(theme *Theme, owned []string) {
	canonical := theme.Clusters[0].Canonical()

	theme.Hook = fmt.Sprintf("Here's what's moving: %s.", canonical.CleanTitle)
	if len(theme.Clusters) > 1 {
		theme.Context = fmt.Sprintf("Several outlets are covering this story; the fullest account comes from %s.", canonical.Source)
	} else {
		theme.Context = fmt.Sprintf("Reported by %s.", canonical.Source)
	}

	ownedInTheme := ownedTickersInTheme(theme, owned)
	switch {
	case len(ownedInTheme) > 0:
		theme.WhyItMatters = fmt.Sprintf("You own %s, so this story touches your portfolio directly.", strings.Join(ownedInTheme, ", "))
	case theme.Clusters[0].EventType == detection.EventMacro:
		theme.WhyItMatters = "Broad market news like this shapes the backdrop for everything you hold."
	default:
		theme.WhyItMatters = "Worth a glance to stay ahead of where the market's attention is going."
	}
}

func ownedTickersInTheme(theme *Theme, owned []string) []string {
	ownedSet := make(map[string]bool, len(owned))
	for _, s := range owned {
		ownedSet[s] = true
	}

	var out []string
	seen := make(map[string]bool)
	for _, c := range theme.Clusters {
		if c.DominantTicker != "" && ownedSet[c.DominantTicker] && !seen[c.DominantTicker] {
			seen[c.DominantTicker] = true
			out = append(out, c.DominantTicker)
		}
	}
	return out
}

func ownedSymbols(holdings []domain.Holding) []string {
	out := make([]string, 0, len(holdings))
	for _, h := range holdings {
		out = append(out, domain.NormalizeSymbol(h.Symbol))
	}
	return out
}

// themeNameForEventType names the fallback grouping buckets.
func themeNameForEventType(t detection.EventType) string {
	switch t {
	case detection.EventEarnings:
		return "Earnings season"
	case detection.EventGuidance:
		return "Company outlooks"
	case detection.EventProductLaunch:
		return "New launches"
	case detection.EventMergerAcquisition:
		return "Deals and mergers"
	case detection.EventRegulation:
		return "Regulators in focus"
	case detection.EventLitigation:
		return "Legal battles"
	case detection.EventAnalystNote:
		return "Analyst views"
	case detection.EventMacro:
		return "The big picture"
	case detection.EventSocialSentiment:
		return "Social buzz"
	case detection.EventRumor:
		return "Market chatter"
	default:
		return "Around the market"
	}
}
