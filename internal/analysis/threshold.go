// Package analysis holds snapshot-level statistics that feed the pattern
// detector: the volatility-adaptive sensitivity threshold and the market
// regime classifier.
package analysis

import (
	"math"

	"contrarian-trading-bot/internal/exchange"
)

const currentVolWindow = 5

// AdaptiveThreshold scales the base sensitivity threshold by the ratio of
// recent volatility to baseline volatility. The threshold only ever scales
// upward: calmer markets keep the base, hotter markets require a larger
// anomaly before stop-hunt detection fires.
//
// Volatility is the standard deviation of candle (high-low) ranges, over the
// most recent 5 candles versus the full lookback window. With fewer than
// lookback candles the base is returned unchanged.
func AdaptiveThreshold(candles []exchange.Candle, base float64, lookback int) float64 {
	if lookback <= 0 || len(candles) < lookback {
		return base
	}

	window := candles[len(candles)-lookback:]
	ranges := make([]float64, len(window))
	for i, c := range window {
		ranges[i] = c.High - c.Low
	}

	start := len(ranges) - currentVolWindow
	if start < 0 {
		start = 0
	}
	current := stdDev(ranges[start:])
	baseline := stdDev(ranges)

	ratio := 1.0
	if baseline > 0 {
		ratio = current / baseline
	}

	return base * math.Max(1.0, ratio)
}

func stdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))

	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(xs)))
}
