package patterns

import (
	"math"

	"contrarian-trading-bot/internal/exchange"
)

const stopHuntWindow = 5

// detectStopHunting flags a sharp, abnormal price excursion: the latest
// bar's fractional high-low range against the mean of the prior four bars.
// The bar only qualifies when the ratio clears the volatility-adaptive
// threshold, so a hot market needs a proportionally larger spike.
func (d *Detector) detectStopHunting(snap *exchange.Snapshot, threshold float64) Signal {
	candles := snap.Candles
	if len(candles) < stopHuntWindow {
		return Signal{}
	}

	window := candles[len(candles)-stopHuntWindow:]
	movements := make([]float64, len(window))
	for i, c := range window {
		if c.Open == 0 {
			return Signal{}
		}
		movements[i] = (c.High - c.Low) / c.Open
	}

	var priorSum float64
	for _, m := range movements[:len(movements)-1] {
		priorSum += m
	}
	avgMovement := priorSum / float64(len(movements)-1)
	latest := movements[len(movements)-1]

	ratio := 0.0
	if avgMovement > 0 {
		ratio = latest / avgMovement
	}
	if ratio <= threshold {
		return Signal{}
	}

	last := window[len(window)-1]
	return Signal{
		Kind:              KindStopHunting,
		Direction:         sign(last.Close - last.Open),
		Confidence:        math.Min(1.0, ratio/5.0),
		ExpectedReversion: math.Min(0.015, ratio*0.003),
	}
}
