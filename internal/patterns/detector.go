package patterns

import (
	"github.com/rs/zerolog"

	"contrarian-trading-bot/internal/exchange"
)

// heuristic evaluates one anomaly class against a snapshot. It returns the
// zero Signal when the pattern is absent or the sample is too small.
type heuristic struct {
	kind Kind
	eval func(d *Detector, snap *exchange.Snapshot, threshold float64) Signal
}

// Detector runs the heuristics in a fixed, documented priority order. When
// several fire in the same cycle the later one wins: the slice order below
// is the authoritative tie-break, momentum chase first, liquidity sweep
// last.
type Detector struct {
	heuristics []heuristic
	logger     zerolog.Logger
}

// NewDetector creates a detector with the standard heuristic ordering.
func NewDetector(logger zerolog.Logger) *Detector {
	return &Detector{
		heuristics: []heuristic{
			{KindMomentumChase, (*Detector).detectMomentumChase},
			{KindStopHunting, (*Detector).detectStopHunting},
			{KindIcebergOrders, (*Detector).detectIcebergOrders},
			{KindLiquiditySweep, (*Detector).detectLiquiditySweep},
		},
		logger: logger,
	}
}

// Detect evaluates every heuristic against the snapshot and returns the
// winning signal, or the zero Signal when nothing fires. threshold is the
// current adaptive sensitivity threshold from analysis.AdaptiveThreshold.
func (d *Detector) Detect(snap *exchange.Snapshot, threshold float64) Signal {
	var result Signal
	for _, h := range d.heuristics {
		sig := h.eval(d, snap, threshold)
		if sig.Fired() {
			d.logger.Debug().
				Str("kind", string(sig.Kind)).
				Int("direction", sig.Direction).
				Float64("confidence", sig.Confidence).
				Float64("expected_reversion", sig.ExpectedReversion).
				Msg("heuristic fired")
			result = sig
		}
	}
	return result
}

func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
