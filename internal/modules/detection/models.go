package detection

// EventType classifies what kind of market event an article describes.
type EventType string

const (
	EventEarnings          EventType = "earnings"
	EventGuidance          EventType = "guidance"
	EventProductLaunch     EventType = "productLaunch"
	EventMergerAcquisition EventType = "mergerAcquisition"
	EventRegulation        EventType = "regulation"
	EventLitigation        EventType = "litigation"
	EventAnalystNote       EventType = "analystNote"
	EventMacro             EventType = "macro"
	EventSocialSentiment   EventType = "socialSentiment"
	EventRumor             EventType = "rumor"
	EventFluff             EventType = "fluff"
)

// baseScores is the fixed event-type score table.
var baseScores = map[EventType]float64{
	EventEarnings:          1.00,
	EventGuidance:          0.95,
	EventRegulation:        0.90,
	EventMergerAcquisition: 0.85,
	EventProductLaunch:     0.80,
	EventMacro:             0.70,
	EventLitigation:        0.65,
	EventAnalystNote:       0.45,
	EventSocialSentiment:   0.35,
	EventRumor:             0.25,
	EventFluff:             0.10,
}

// BaseScore returns the fixed base score for the event type.
func (t EventType) BaseScore() float64 {
	return baseScores[t]
}

// Valid reports whether the type is one of the known values.
func (t EventType) Valid() bool {
	_, ok := baseScores[t]
	return ok
}

// detectionOrder is the rule-fallback priority: the first matching type wins.
var detectionOrder = []EventType{
	EventEarnings,
	EventGuidance,
	EventProductLaunch,
	EventMergerAcquisition,
	EventRegulation,
	EventLitigation,
	EventAnalystNote,
	EventMacro,
	EventSocialSentiment,
	EventRumor,
	EventFluff,
}

// AllEventTypes returns the known types in detection priority order.
func AllEventTypes() []string {
	out := make([]string, len(detectionOrder))
	for i, t := range detectionOrder {
		out[i] = string(t)
	}
	return out
}

// ImpactLabel is an orthogonal tag describing market-impact character.
type ImpactLabel string

const (
	LabelMostImpactful          ImpactLabel = "mostImpactful"
	LabelSurprising             ImpactLabel = "surprising"
	LabelDrama                  ImpactLabel = "drama"
	LabelPriceAffectingAbnormal ImpactLabel = "priceAffectingAbnormal"
	LabelBigMoves               ImpactLabel = "bigMoves"
	LabelAllTimeHigh            ImpactLabel = "allTimeHigh"
	LabelAllTimeLow             ImpactLabel = "allTimeLow"
	LabelStockPopularity        ImpactLabel = "stockPopularity"
)

// labelWeights normalizes impact labels into the score contribution.
var labelWeights = map[ImpactLabel]float64{
	LabelPriceAffectingAbnormal: 0.35,
	LabelAllTimeHigh:            0.40,
	LabelAllTimeLow:             0.40,
	LabelBigMoves:               0.30,
	LabelMostImpactful:          0.30,
	LabelSurprising:             0.25,
	LabelDrama:                  0.20,
	LabelStockPopularity:        0.15,
}

// Weight returns the normalization weight for the label.
func (l ImpactLabel) Weight() float64 {
	return labelWeights[l]
}

// Valid reports whether the label is one of the known values.
func (l ImpactLabel) Valid() bool {
	_, ok := labelWeights[l]
	return ok
}

// TotalLabelWeight is the sum of all label weights, the denominator of the
// impact-label score.
func TotalLabelWeight() float64 {
	total := 0.0
	for _, w := range labelWeights {
		total += w
	}
	return total
}

// strongLabels gate the analystNote/socialSentiment pre-filters in scoring.
var strongLabels = map[ImpactLabel]bool{
	LabelMostImpactful:          true,
	LabelBigMoves:               true,
	LabelAllTimeHigh:            true,
	LabelAllTimeLow:             true,
	LabelPriceAffectingAbnormal: true,
}

// Strong reports whether the label counts as a strong impact label.
func (l ImpactLabel) Strong() bool {
	return strongLabels[l]
}

// AllImpactLabels returns the known labels.
func AllImpactLabels() []string {
	return []string{
		string(LabelMostImpactful),
		string(LabelSurprising),
		string(LabelDrama),
		string(LabelPriceAffectingAbnormal),
		string(LabelBigMoves),
		string(LabelAllTimeHigh),
		string(LabelAllTimeLow),
		string(LabelStockPopularity),
	}
}

// DetectedEvent is the classification result for one cleaned article.
type DetectedEvent struct {
	ID             string
	ArticleID      string
	Type           EventType
	BaseScore      float64
	DominantTicker string
	Confidence     float64
	Labels         []ImpactLabel
}

// HasStrongLabel reports whether any attached label is strong.
func (e DetectedEvent) HasStrongLabel() bool {
	for _, l := range e.Labels {
		if l.Strong() {
			return true
		}
	}
	return false
}
