package patterns

import (
	"math"

	"contrarian-trading-bot/internal/exchange"
)

const (
	momentumMinTicks    = 100
	momentumVolumeRatio = 1.5
	momentumDirWindow   = 20
)

// detectMomentumChase flags a volume-driven directional push: absolute
// volume in the second half of the tick window exceeding the first half by
// more than 1.5x. Direction follows the price change over the most recent
// 20 ticks.
func (d *Detector) detectMomentumChase(snap *exchange.Snapshot, _ float64) Signal {
	ticks := snap.Ticks
	if len(ticks) < momentumMinTicks {
		return Signal{}
	}

	mid := len(ticks) / 2
	var firstVol, secondVol float64
	for _, t := range ticks[:mid] {
		firstVol += math.Abs(t.Volume)
	}
	for _, t := range ticks[mid:] {
		secondVol += math.Abs(t.Volume)
	}

	ratio := 0.0
	if firstVol > 0 {
		ratio = secondVol / firstVol
	}
	if ratio <= momentumVolumeRatio {
		return Signal{}
	}

	recent := ticks[len(ticks)-momentumDirWindow:]
	start, end := recent[0].Price, recent[len(recent)-1].Price
	if start == 0 {
		return Signal{}
	}

	return Signal{
		Kind:              KindMomentumChase,
		Direction:         sign(end - start),
		Confidence:        math.Min(1.0, ratio/3.0),
		ExpectedReversion: math.Min(0.02, ratio*0.005),
	}
}
