package monitor

import (
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

// Baseline computes the mean of a series, 0 for an empty one.
func Baseline(counts []float64) float64 {
	if len(counts) == 0 {
		return 0
	}
	return stat.Mean(counts, nil)
}

// SpikeMultiple compares a count against its baseline. A zero baseline with
// a positive count is treated as a spike of the count itself (no division by
// zero).
func SpikeMultiple(count, baseline float64) float64 {
	if baseline <= 0 {
		return count
	}
	return count / baseline
}

// smoothingPeriod is the SMA window used to smooth a price series before the
// abnormal-move test. Short because price points land roughly hourly.
const smoothingPeriod = 5

// AbnormalMove reports whether the newest price sits more than two standard
// deviations (of the preceding raw prices) away from the mean of the
// smoothed series. Used to enrich alert metadata, not to gate alerts.
func AbnormalMove(prices []float64) bool {
	if len(prices) < smoothingPeriod+2 {
		return false
	}

	smoothed := talib.Sma(prices, smoothingPeriod)
	// talib pads the warm-up with zeros; score against the valid tail.
	valid := smoothed[smoothingPeriod-1 : len(smoothed)-1]
	if len(valid) < 2 {
		return false
	}

	mean := stat.Mean(valid, nil)
	std := stat.StdDev(prices[:len(prices)-1], nil)
	if std == 0 || math.IsNaN(std) {
		return false
	}

	latest := prices[len(prices)-1]
	return math.Abs(latest-mean) > 2*std
}

// FifteenMinuteChange computes the percent change between the oldest and
// newest point of the last 15 minutes. Points must be oldest-first and all
// within the window; returns ok=false when the oldest point is younger than
// 10 minutes (not enough history to call it a 15-minute move).
func FifteenMinuteChange(window []PricePoint, minAgeMinutes float64) (change float64, ok bool) {
	if len(window) < 2 {
		return 0, false
	}

	oldest, newest := window[0], window[len(window)-1]
	if newest.Timestamp.Sub(oldest.Timestamp).Minutes() < minAgeMinutes {
		return 0, false
	}
	if oldest.Price == 0 {
		return 0, false
	}

	return (newest.Price - oldest.Price) / oldest.Price * 100, true
}
