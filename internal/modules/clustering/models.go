package clustering

import (
	"time"

	"github.com/peterbitar/wealthyrabbit/internal/modules/cleaning"
	"github.com/peterbitar/wealthyrabbit/internal/modules/detection"
)

// Cluster is a non-empty set of articles judged to describe the same
// real-world event. The canonical article is an index into Articles, never a
// second owning handle.
type Cluster struct {
	ID             string
	Articles       []cleaning.CleanedArticle
	Similarities   []float64 // informational pairwise scores recorded during growth
	EventType      detection.EventType
	DominantTicker string
	CanonicalIndex int
	CreatedAt      time.Time

	// CrossTickerMerged marks clusters produced by a stage-3 merge;
	// PairSimilarity records the canonical-pair similarity of that merge.
	CrossTickerMerged bool
	PairSimilarity    float64
}

// Canonical returns the representative article.
func (c *Cluster) Canonical() cleaning.CleanedArticle {
	return c.Articles[c.CanonicalIndex]
}

// IsHoldingsNews reports whether any member article came from a
// holdings-targeted query.
func (c *Cluster) IsHoldingsNews() bool {
	for _, a := range c.Articles {
		if a.IsHoldingsNews {
			return true
		}
	}
	return false
}

// HasLowInformation reports whether any member article is low-information.
func (c *Cluster) HasLowInformation() bool {
	for _, a := range c.Articles {
		if a.IsLowInformation {
			return true
		}
	}
	return false
}

// MentionedTickers returns the union of member ticker sets.
func (c *Cluster) MentionedTickers() map[string]bool {
	set := make(map[string]bool)
	for _, a := range c.Articles {
		for _, t := range a.CleanTickers {
			set[t] = true
		}
	}
	return set
}
