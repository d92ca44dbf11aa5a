package patterns

import (
	"math"

	"contrarian-trading-bot/internal/exchange"
)

const (
	icebergMinTicks     = 50
	icebergGroupWindow  = 100
	icebergMinTrades    = 5
	icebergMaxDeviation = 0.3
	icebergMeanWindow   = 20
)

// detectIcebergOrders looks for a large order disguised as many small
// same-sized trades at one price level: a price level in the recent tick
// window with at least five trades whose sizes have a coefficient of
// variation below 0.3. Levels are scanned in first-seen order and the first
// qualifying one wins.
//
// The direction intentionally compares the latest price to the recent mean
// rather than to the level itself; that is how the strategy has always
// traded this pattern.
func (d *Detector) detectIcebergOrders(snap *exchange.Snapshot, _ float64) Signal {
	ticks := snap.Ticks
	if len(ticks) < icebergMinTicks {
		return Signal{}
	}

	window := ticks
	if len(window) > icebergGroupWindow {
		window = window[len(window)-icebergGroupWindow:]
	}

	levels := make(map[float64][]float64)
	order := make([]float64, 0, len(window))
	for _, t := range window {
		price := math.Round(t.Price*10) / 10
		if _, seen := levels[price]; !seen {
			order = append(order, price)
		}
		levels[price] = append(levels[price], math.Abs(t.Volume))
	}

	for _, price := range order {
		sizes := levels[price]
		if len(sizes) < icebergMinTrades {
			continue
		}

		var sum float64
		for _, s := range sizes {
			sum += s
		}
		meanSize := sum / float64(len(sizes))
		if meanSize <= 0 {
			continue
		}

		var sq float64
		for _, s := range sizes {
			diff := s - meanSize
			sq += diff * diff
		}
		deviation := math.Sqrt(sq/float64(len(sizes))) / meanSize
		if deviation >= icebergMaxDeviation {
			continue
		}

		recent := ticks[len(ticks)-icebergMeanWindow:]
		var priceSum float64
		for _, t := range recent {
			priceSum += t.Price
		}
		meanPrice := priceSum / float64(len(recent))
		last := ticks[len(ticks)-1].Price

		return Signal{
			Kind:              KindIcebergOrders,
			Direction:         sign(last - meanPrice),
			Confidence:        0.7 - deviation,
			ExpectedReversion: 0.01,
		}
	}

	return Signal{}
}
