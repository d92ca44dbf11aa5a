package patterns

import (
	"math"

	"contrarian-trading-bot/internal/exchange"
)

// ValidatorConfig holds the confirmation thresholds. Zero values fall back
// to the defaults below.
type ValidatorConfig struct {
	MinConfidence  float64 `json:"min_confidence"`   // signal strength gate
	MinVolumeRatio float64 `json:"min_volume_ratio"` // recent vs mean per-tick volume
	MinImbalance   float64 `json:"min_imbalance"`    // top-5 book imbalance magnitude
}

const (
	defaultMinConfidence  = 0.6
	defaultMinVolumeRatio = 1.3
	defaultMinImbalance   = 0.2

	validatorVolumeWindow = 20
	validatorBookDepth    = 5
	requiredConfirmations = 2
)

// ValidationResult reports which independent checks corroborated the signal.
// Passed holds exactly when at least two of three confirmations are true.
type ValidationResult struct {
	Confirmations int  `json:"confirmations"`
	Passed        bool `json:"passed"`

	StrengthConfirmed  bool `json:"strength_confirmed"`
	VolumeConfirmed    bool `json:"volume_confirmed"`
	ImbalanceConfirmed bool `json:"imbalance_confirmed"`
}

// Validator re-derives up to three independent confirmations for a detected
// signal. It is a pure function of its inputs; the per-check flags exist
// only for observability.
type Validator struct {
	cfg ValidatorConfig
}

// NewValidator creates a validator, filling unset thresholds with defaults.
func NewValidator(cfg ValidatorConfig) *Validator {
	if cfg.MinConfidence == 0 {
		cfg.MinConfidence = defaultMinConfidence
	}
	if cfg.MinVolumeRatio == 0 {
		cfg.MinVolumeRatio = defaultMinVolumeRatio
	}
	if cfg.MinImbalance == 0 {
		cfg.MinImbalance = defaultMinImbalance
	}
	return &Validator{cfg: cfg}
}

// Validate checks the three confirmations against the snapshot.
func (v *Validator) Validate(sig Signal, snap *exchange.Snapshot) ValidationResult {
	var res ValidationResult

	// 1. Primary heuristic confidence.
	if sig.Confidence > v.cfg.MinConfidence {
		res.StrengthConfirmed = true
		res.Confirmations++
	}

	// 2. Volume surge: last 20 ticks against the mean per-tick volume over
	// the whole window.
	if len(snap.Ticks) >= validatorVolumeWindow {
		var total float64
		for _, t := range snap.Ticks {
			total += math.Abs(t.Volume)
		}
		avg := total / float64(len(snap.Ticks))

		var recent float64
		for _, t := range snap.Ticks[len(snap.Ticks)-validatorVolumeWindow:] {
			recent += math.Abs(t.Volume)
		}

		if avg > 0 && recent/avg > v.cfg.MinVolumeRatio {
			res.VolumeConfirmed = true
			res.Confirmations++
		}
	}

	// 3. Order-book imbalance magnitude, strict inequality at the boundary.
	if snap.Book.HasBothSides(validatorBookDepth) {
		if math.Abs(snap.Book.Imbalance(validatorBookDepth)) > v.cfg.MinImbalance {
			res.ImbalanceConfirmed = true
			res.Confirmations++
		}
	}

	res.Passed = res.Confirmations >= requiredConfirmations
	return res
}
