package scoring

import "strings"

// sector groups symbols with the coverage keywords that identify the sector
// in article text. The map is intentionally small: it only has to catch the
// broad "user owns something in this space" signal.
type sector struct {
	symbols  []string
	keywords []string
}

var sectors = map[string]sector{
	"technology": {
		symbols:  []string{"AAPL", "MSFT", "GOOGL", "GOOG", "META", "NVDA", "AMD", "INTC", "CRM", "ADBE", "ORCL", "QCOM", "AVGO", "SNOW", "PLTR"},
		keywords: []string{"tech", "software", "chip", "semiconductor", "cloud", "artificial intelligence", " ai "},
	},
	"autos": {
		symbols:  []string{"TSLA", "F", "GM", "RIVN", "LCID", "TM"},
		keywords: []string{"automaker", "electric vehicle", " ev ", "car maker", "autos"},
	},
	"financials": {
		symbols:  []string{"JPM", "BAC", "WFC", "GS", "MS", "C", "V", "MA", "PYPL", "SCHW", "BLK"},
		keywords: []string{"bank", "lender", "payments", "wall street", "brokerage"},
	},
	"healthcare": {
		symbols:  []string{"UNH", "JNJ", "LLY", "PFE", "MRK", "ABBV", "AMGN", "MRNA", "CVS"},
		keywords: []string{"drug", "pharma", "biotech", "healthcare", "fda"},
	},
	"energy": {
		symbols:  []string{"XOM", "CVX", "COP", "SLB", "OXY"},
		keywords: []string{"oil", "gas", "crude", "energy", "opec"},
	},
	"retail": {
		symbols:  []string{"WMT", "COST", "TGT", "AMZN", "HD", "LOW", "NKE", "SBUX", "MCD"},
		keywords: []string{"retail", "consumer", "stores", "shoppers", "e-commerce"},
	},
	"media": {
		symbols:  []string{"DIS", "NFLX", "CMCSA", "WBD", "PARA", "SPOT"},
		keywords: []string{"streaming", "studio", "media", "entertainment", "box office"},
	},
}

// sectorMatch reports whether the text names a sector in which the user owns
// at least one symbol.
func sectorMatch(text string, owned map[string]bool) bool {
	lower := strings.ToLower(text)
	for _, sec := range sectors {
		ownsAny := false
		for _, s := range sec.symbols {
			if owned[s] {
				ownsAny = true
				break
			}
		}
		if !ownsAny {
			continue
		}
		for _, kw := range sec.keywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}
