package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeedCapByMode(t *testing.T) {
	assert.Equal(t, 6, ModeBeginner.FeedCap())
	assert.Equal(t, 5, ModeSmart.FeedCap())
	assert.Equal(t, 4, ModeFocus.FeedCap())
}

func TestPriceThresholds(t *testing.T) {
	assert.Equal(t, 3.0, SensitivityCalm.PriceThresholdPercent())
	assert.Equal(t, 2.0, SensitivityCurious.PriceThresholdPercent())
	assert.Equal(t, 1.0, SensitivityAlert.PriceThresholdPercent())
}

func TestSocialSpikeThresholds(t *testing.T) {
	assert.Equal(t, 3.0, SensitivityCalm.SocialSpikeMultiple())
	assert.Equal(t, 2.0, SensitivityCurious.SocialSpikeMultiple())
	assert.Equal(t, 1.5, SensitivityAlert.SocialSpikeMultiple())
}

func TestNewsTierGating(t *testing.T) {
	assert.True(t, SensitivityCalm.AllowsNewsTier(1))
	assert.False(t, SensitivityCalm.AllowsNewsTier(2))
	assert.False(t, SensitivityCalm.AllowsNewsTier(3))

	assert.True(t, SensitivityCurious.AllowsNewsTier(1))
	assert.True(t, SensitivityCurious.AllowsNewsTier(2))
	assert.False(t, SensitivityCurious.AllowsNewsTier(3))

	assert.True(t, SensitivityAlert.AllowsNewsTier(1))
	assert.True(t, SensitivityAlert.AllowsNewsTier(2))
	assert.True(t, SensitivityAlert.AllowsNewsTier(3))

	assert.False(t, SensitivityAlert.AllowsNewsTier(0), "unknown tiers never alert")
}

func TestNormalizeSymbolIdempotent(t *testing.T) {
	assert.Equal(t, "AAPL", NormalizeSymbol(" aapl "))
	assert.Equal(t, NormalizeSymbol("AAPL"), NormalizeSymbol(NormalizeSymbol(" aapl ")))
}

func TestSymbolSet(t *testing.T) {
	set := SymbolSet([]Holding{{Symbol: "aapl"}, {Symbol: "TSLA"}})
	assert.True(t, set["AAPL"])
	assert.True(t, set["TSLA"])
	assert.False(t, set["NVDA"])
}
