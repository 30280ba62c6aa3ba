package cleaning

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// TickerVocabulary is the set of symbols the ticker extractor recognizes.
// Extraction only ever emits symbols present here, so a bad vocabulary can
// hide tickers but never invent them.
type TickerVocabulary struct {
	symbols map[string]bool
}

// NewTickerVocabulary returns the built-in default vocabulary.
func NewTickerVocabulary() *TickerVocabulary {
	v := &TickerVocabulary{symbols: make(map[string]bool, len(defaultTickers))}
	for _, s := range defaultTickers {
		v.symbols[s] = true
	}
	return v
}

// LoadTickerVocabulary reads one symbol per line from a file. Lines starting
// with # and blank lines are skipped.
func LoadTickerVocabulary(path string) (*TickerVocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ticker vocabulary %s: %w", path, err)
	}
	defer f.Close()

	v := &TickerVocabulary{symbols: make(map[string]bool)}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		v.symbols[strings.ToUpper(line)] = true
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ticker vocabulary %s: %w", path, err)
	}
	if len(v.symbols) == 0 {
		return nil, fmt.Errorf("ticker vocabulary %s is empty", path)
	}

	return v, nil
}

// Contains reports whether the symbol is in the vocabulary.
func (v *TickerVocabulary) Contains(symbol string) bool {
	return v.symbols[strings.ToUpper(symbol)]
}

// Size returns the number of known symbols.
func (v *TickerVocabulary) Size() int {
	return len(v.symbols)
}

// companyAliases maps lowercase company names to their tickers. Coverage
// routinely names the company without the symbol ("Alphabet and Meta
// announce..."), and cross-ticker clustering depends on those mentions
// landing in the ticker sets.
var companyAliases = map[string]string{
	"apple":      "AAPL",
	"microsoft":  "MSFT",
	"alphabet":   "GOOGL",
	"google":     "GOOGL",
	"amazon":     "AMZN",
	"meta":       "META",
	"facebook":   "META",
	"nvidia":     "NVDA",
	"tesla":      "TSLA",
	"netflix":    "NFLX",
	"intel":      "INTC",
	"oracle":     "ORCL",
	"salesforce": "CRM",
	"adobe":      "ADBE",
	"qualcomm":   "QCOM",
	"broadcom":   "AVGO",
	"boeing":     "BA",
	"disney":     "DIS",
	"walmart":    "WMT",
	"costco":     "COST",
	"starbucks":  "SBUX",
	"nike":       "NKE",
	"exxon":      "XOM",
	"chevron":    "CVX",
	"pfizer":     "PFE",
	"moderna":    "MRNA",
	"jpmorgan":   "JPM",
	"goldman":    "GS",
	"citigroup":  "C",
	"paypal":     "PYPL",
	"coinbase":   "COIN",
	"uber":       "UBER",
	"airbnb":     "ABNB",
	"shopify":    "SHOP",
	"spotify":    "SPOT",
	"palantir":   "PLTR",
	"ford":       "F",
	"rivian":     "RIVN",
	"toyota":     "TM",
}

// AliasTicker returns the ticker for a lowercase company name, if known.
func AliasTicker(name string) (string, bool) {
	t, ok := companyAliases[name]
	return t, ok
}

// defaultTickers is a static list of liquid US-listed symbols. It is a
// deliberately conservative default; deployments with broader universes
// supply their own list via TICKER_VOCAB_FILE.
var defaultTickers = []string{
	// Megacap tech
	"AAPL", "MSFT", "GOOGL", "GOOG", "AMZN", "META", "NVDA", "TSLA", "AVGO",
	"ORCL", "CRM", "ADBE", "NFLX", "AMD", "INTC", "QCOM", "TXN", "IBM", "NOW",
	"UBER", "ABNB", "SHOP", "SNOW", "PLTR", "MU", "SMCI", "ARM", "TSM", "ASML",
	// Financials
	"JPM", "BAC", "WFC", "GS", "MS", "C", "BLK", "SCHW", "AXP", "V", "MA",
	"PYPL", "COIN", "BRK.B",
	// Healthcare
	"UNH", "JNJ", "LLY", "PFE", "MRK", "ABBV", "TMO", "ABT", "BMY", "AMGN",
	"GILD", "CVS", "MRNA",
	// Consumer
	"WMT", "COST", "PG", "KO", "PEP", "MCD", "SBUX", "NKE", "TGT", "HD",
	"LOW", "DIS", "CMG", "LULU",
	// Industrials and energy
	"XOM", "CVX", "COP", "SLB", "OXY", "BA", "CAT", "DE", "GE", "HON", "LMT",
	"RTX", "UPS", "FDX", "UNP",
	// Autos
	"F", "GM", "RIVN", "LCID", "TM",
	// Telecom and media
	"T", "VZ", "TMUS", "CMCSA", "WBD", "PARA", "SPOT", "RBLX",
	// Semis and hardware
	"LRCX", "AMAT", "KLAC", "ADI", "NXPI", "ON", "MRVL", "DELL", "HPQ",
	// Indices and ETFs commonly named in coverage
	"SPY", "QQQ", "DIA", "IWM", "VTI",
}
