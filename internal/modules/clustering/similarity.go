package clustering

import (
	"strings"

	edlib "github.com/hbollon/go-edlib"
)

// nearDuplicateThreshold is the edit-distance similarity above which two
// normalized titles are treated as the same headline reprinted.
const nearDuplicateThreshold = 0.92

// NormalizeTitle lowercases a title, strips punctuation and drops short
// words (<= 2 chars). Used for exact-duplicate detection and as the token
// source for Jaccard overlap.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}

	words := strings.Fields(b.String())
	kept := words[:0]
	for _, w := range words {
		if len(w) > 2 {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// titleWords returns the normalized word set of a title.
func titleWords(title string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(NormalizeTitle(title)) {
		set[w] = true
	}
	return set
}

// TitleJaccard is the word-overlap Jaccard similarity of two titles over
// their normalized word sets. Two empty titles score 0.
func TitleJaccard(a, b string) float64 {
	wa, wb := titleWords(a), titleWords(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}

	intersection := 0
	for w := range wa {
		if wb[w] {
			intersection++
		}
	}
	union := len(wa) + len(wb) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// nearDuplicateTitles reports whether two normalized titles are edit-distance
// near-duplicates (syndicated reprints with one word swapped).
func nearDuplicateTitles(normA, normB string) bool {
	if normA == "" || normB == "" {
		return false
	}
	sim, err := edlib.StringsSimilarity(normA, normB, edlib.Levenshtein)
	if err != nil {
		return false
	}
	return float64(sim) >= nearDuplicateThreshold
}
