package patterns

import (
	"math"

	"contrarian-trading-bot/internal/exchange"
)

const (
	sweepMinTicks       = 30
	sweepLargeSizeRatio = 3.0
	sweepMinMovePct     = 0.2
	sweepMinImbalance   = 0.3
	sweepBookDepth      = 5
)

// detectLiquiditySweep flags a burst of large trades piercing resting
// liquidity: at least one trade over 3x the recent average size, a price
// move above 0.2% across the window, and a top-5 book imbalance above 30%
// leaning into the move.
func (d *Detector) detectLiquiditySweep(snap *exchange.Snapshot, _ float64) Signal {
	ticks := snap.Ticks
	if len(ticks) < sweepMinTicks || !snap.Book.HasBothSides(sweepBookDepth) {
		return Signal{}
	}

	recent := ticks[len(ticks)-sweepMinTicks:]
	var totalVol float64
	for _, t := range recent {
		totalVol += math.Abs(t.Volume)
	}
	avgSize := totalVol / float64(len(recent))

	largeTrades := 0
	for _, t := range recent {
		if math.Abs(t.Volume) > avgSize*sweepLargeSizeRatio {
			largeTrades++
		}
	}
	if largeTrades == 0 {
		return Signal{}
	}

	first, last := recent[0].Price, recent[len(recent)-1].Price
	if first == 0 {
		return Signal{}
	}
	movePct := math.Abs(last-first) / first * 100
	if movePct <= sweepMinMovePct {
		return Signal{}
	}

	imbalance := snap.Book.Imbalance(sweepBookDepth)
	if math.Abs(imbalance) <= sweepMinImbalance {
		return Signal{}
	}

	return Signal{
		Kind:              KindLiquiditySweep,
		Direction:         sign(last - first),
		Confidence:        math.Min(1.0, movePct/0.5),
		ExpectedReversion: movePct * 0.005,
	}
}
