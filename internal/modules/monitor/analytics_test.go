package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBaseline(t *testing.T) {
	assert.Equal(t, 0.0, Baseline(nil))
	assert.Equal(t, 4.0, Baseline([]float64{2, 4, 6}))
}

func TestSpikeMultiple(t *testing.T) {
	assert.Equal(t, 3.0, SpikeMultiple(12, 4))
	// Zero baseline with a positive count is the count itself.
	assert.Equal(t, 17.0, SpikeMultiple(17, 0))
}

func TestFifteenMinuteChange(t *testing.T) {
	base := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

	t.Run("computes newest vs oldest", func(t *testing.T) {
		window := []PricePoint{
			{Symbol: "AAPL", Price: 100.0, Timestamp: base},
			{Symbol: "AAPL", Price: 99.0, Timestamp: base.Add(7 * time.Minute)},
			{Symbol: "AAPL", Price: 97.9, Timestamp: base.Add(14 * time.Minute)},
		}
		change, ok := FifteenMinuteChange(window, 10)
		assert.True(t, ok)
		assert.InDelta(t, -2.1, change, 1e-9)
	})

	t.Run("too-young window is skipped", func(t *testing.T) {
		window := []PricePoint{
			{Symbol: "AAPL", Price: 100.0, Timestamp: base},
			{Symbol: "AAPL", Price: 98.0, Timestamp: base.Add(5 * time.Minute)},
		}
		_, ok := FifteenMinuteChange(window, 10)
		assert.False(t, ok, "no point at least 10 minutes old")
	})

	t.Run("single point is skipped", func(t *testing.T) {
		_, ok := FifteenMinuteChange([]PricePoint{{Price: 100, Timestamp: base}}, 10)
		assert.False(t, ok)
	})
}

func TestAbnormalMove(t *testing.T) {
	flat := []float64{100, 100.1, 99.9, 100, 100.2, 100.1, 100, 99.9, 100.1}
	assert.False(t, AbnormalMove(flat))

	jump := append(append([]float64{}, flat...), 140)
	assert.True(t, AbnormalMove(jump))

	assert.False(t, AbnormalMove([]float64{100, 101}), "short series never flags")
}
