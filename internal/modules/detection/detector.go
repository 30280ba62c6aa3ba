// Package detection classifies cleaned articles into event types and attaches
// impact labels.
//
// Classification is LLM-preferred with a deterministic keyword fallback; the
// rule pass for impact labels always runs and the LLM's label set, when
// available, is unioned in.
package detection

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/peterbitar/wealthyrabbit/internal/modules/cleaning"
)

// detectionBatchSize bounds how many articles are classified concurrently.
const detectionBatchSize = 10

// baseConfidence is the floor every classification starts from.
const baseConfidence = 0.7

// Classifier is the LLM capability surface the detector uses. A nil
// Classifier (or one whose calls fail) degrades to the rule pass.
type Classifier interface {
	ClassifyEventType(ctx context.Context, title, description string, known []string) (string, error)
	LabelImpacts(ctx context.Context, title, description string, known []string) ([]string, error)
}

// typeKeywords drives the rule fallback, checked in detectionOrder; the
// first matching type wins.
var typeKeywords = map[EventType][]string{
	EventEarnings: {
		"earnings", "quarterly results", "q1 results", "q2 results",
		"q3 results", "q4 results", "revenue beat", "revenue miss",
		"profit", "eps", "reports fourth quarter", "reports third quarter",
		"reports second quarter", "reports first quarter",
	},
	EventGuidance: {
		"guidance", "outlook", "forecast", "raises full-year", "cuts full-year",
		"expects revenue", "projections",
	},
	EventProductLaunch: {
		"launch", "launches", "unveils", "announces new", "introduces",
		"releases new", "debuts",
	},
	EventMergerAcquisition: {
		"acquisition", "acquires", "merger", "buyout", "takeover",
		"to acquire", "deal to buy", "agrees to buy",
	},
	EventRegulation: {
		"regulator", "regulation", "antitrust", "sec ", "ftc", "doj",
		"fine", "probe", "investigation", "compliance", "tariff", "sanction",
	},
	EventLitigation: {
		"lawsuit", "sues", "sued", "litigation", "court", "settlement",
		"class action", "verdict",
	},
	EventAnalystNote: {
		"upgrade", "downgrade", "price target", "analyst", "initiates coverage",
		"overweight", "underweight", "buy rating", "sell rating",
	},
	EventMacro: {
		"fed ", "federal reserve", "inflation", "interest rate", "cpi",
		"jobs report", "gdp", "unemployment", "treasury", "economy",
	},
	EventSocialSentiment: {
		"reddit", "wallstreetbets", "social media buzz", "trending on",
		"meme stock", "retail traders",
	},
	EventRumor: {
		"rumor", "rumour", "reportedly", "sources say", "speculation",
		"unconfirmed", "may be considering",
	},
	// Fluff is the terminal default; it needs no keywords.
}

// labelKeywords drives the always-on rule pass for impact labels.
var labelKeywords = map[ImpactLabel][]string{
	LabelMostImpactful: {
		"historic", "landmark", "biggest", "massive", "major",
	},
	LabelSurprising: {
		"surprise", "unexpected", "shock", "stuns", "defies expectations",
	},
	LabelDrama: {
		"feud", "clash", "scandal", "resigns", "fired", "ousted", "turmoil",
	},
	LabelPriceAffectingAbnormal: {
		"halted", "volatility", "abnormal", "unusual activity", "circuit breaker",
	},
	LabelBigMoves: {
		"surges", "plunges", "soars", "tumbles", "jumps", "sinks", "rallies",
	},
	LabelAllTimeHigh: {
		"all-time high", "record high", "highest ever", "new high",
	},
	LabelAllTimeLow: {
		"all-time low", "record low", "lowest ever", "52-week low",
	},
	LabelStockPopularity: {
		"most traded", "most searched", "most popular", "heavily traded",
	},
}

// Detector classifies articles.
type Detector struct {
	llm Classifier
	log zerolog.Logger
}

// NewDetector creates a detector. llm may be nil.
func NewDetector(llm Classifier, log zerolog.Logger) *Detector {
	return &Detector{
		llm: llm,
		log: log.With().Str("component", "detector").Logger(),
	}
}

// Detect classifies one article.
func (d *Detector) Detect(ctx context.Context, art cleaning.CleanedArticle) DetectedEvent {
	eventType := d.classify(ctx, art)

	labels := d.ruleLabels(art)
	if d.llm != nil {
		if llmLabels, err := d.llm.LabelImpacts(ctx, art.CleanTitle, art.CleanDescription, AllImpactLabels()); err == nil {
			labels = unionLabels(labels, llmLabels)
		} else {
			d.log.Debug().Err(err).Msg("LLM impact labeling failed, keeping rule labels")
		}
	}

	return DetectedEvent{
		ID:             uuid.NewString(),
		ArticleID:      art.ID,
		Type:           eventType,
		BaseScore:      eventType.BaseScore(),
		DominantTicker: dominantTicker(art),
		Confidence:     confidence(art),
		Labels:         labels,
	}
}

// DetectBatch classifies articles in batches of detectionBatchSize, each
// batch's articles running concurrently. Results keep input order.
func (d *Detector) DetectBatch(ctx context.Context, articles []cleaning.CleanedArticle) []DetectedEvent {
	events := make([]DetectedEvent, len(articles))

	for start := 0; start < len(articles); start += detectionBatchSize {
		end := start + detectionBatchSize
		if end > len(articles) {
			end = len(articles)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				events[i] = d.Detect(ctx, articles[i])
			}(i)
		}
		wg.Wait()

		if ctx.Err() != nil {
			break
		}
	}

	return events
}

// classify resolves the event type: LLM first, rule fallback on failure or
// unknown token.
func (d *Detector) classify(ctx context.Context, art cleaning.CleanedArticle) EventType {
	if d.llm != nil {
		token, err := d.llm.ClassifyEventType(ctx, art.CleanTitle, art.CleanDescription, AllEventTypes())
		if err == nil {
			if t := matchEventType(token); t.Valid() {
				return t
			}
			d.log.Debug().Str("token", token).Msg("LLM returned unknown event type, using rules")
		} else {
			d.log.Debug().Err(err).Msg("LLM classification failed, using rules")
		}
	}
	return ruleClassify(art)
}

// matchEventType maps an LLM token to a known type, case-insensitively.
func matchEventType(token string) EventType {
	token = strings.ToLower(strings.TrimSpace(token))
	for t := range baseScores {
		if strings.ToLower(string(t)) == token {
			return t
		}
	}
	return EventType(token)
}

// ruleClassify runs the keyword heuristics in priority order.
func ruleClassify(art cleaning.CleanedArticle) EventType {
	text := strings.ToLower(art.CleanTitle + " " + art.CleanDescription + " " + art.CleanBody)
	for _, t := range detectionOrder {
		for _, kw := range typeKeywords[t] {
			if strings.Contains(text, kw) {
				return t
			}
		}
	}
	return EventFluff
}

// ruleLabels runs the keyword dictionaries for impact labels.
func (d *Detector) ruleLabels(art cleaning.CleanedArticle) []ImpactLabel {
	text := strings.ToLower(art.CleanTitle + " " + art.CleanDescription + " " + art.CleanBody)
	var labels []ImpactLabel
	for label, keywords := range labelKeywords {
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				labels = append(labels, label)
				break
			}
		}
	}
	return labels
}

// confidence starts at 0.7 and earns +0.1 each for a substantial body, at
// least one ticker, and a high-quality source. Capped at 1.0.
func confidence(art cleaning.CleanedArticle) float64 {
	conf := baseConfidence
	if len(art.CleanBody) >= 200 {
		conf += 0.1
	}
	if len(art.CleanTickers) >= 1 {
		conf += 0.1
	}
	if art.SourceQuality >= 0.8 {
		conf += 0.1
	}
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}

// dominantTicker picks the ticker that best identifies the article: the
// first one named in the title, else the first extracted.
func dominantTicker(art cleaning.CleanedArticle) string {
	for _, t := range art.CleanTickers {
		if strings.Contains(art.CleanTitle, t) {
			return t
		}
	}
	if len(art.CleanTickers) > 0 {
		return art.CleanTickers[0]
	}
	return ""
}

func unionLabels(rule []ImpactLabel, llm []string) []ImpactLabel {
	seen := make(map[ImpactLabel]bool, len(rule))
	out := make([]ImpactLabel, 0, len(rule)+len(llm))
	for _, l := range rule {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	for _, raw := range llm {
		l := ImpactLabel(strings.TrimSpace(raw))
		if l.Valid() && !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}
