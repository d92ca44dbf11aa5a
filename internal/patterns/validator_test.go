package patterns

import (
	"testing"

	"contrarian-trading-bot/internal/exchange"
)

// surgeTicks builds a 100-tick window whose last 20 ticks carry enough
// volume to clear the 1.3 volume-ratio check.
func surgeTicks() []exchange.Tick {
	volumes := make([]float64, 100)
	for i := range volumes {
		volumes[i] = 1.0
	}
	return makeTicks([]float64{100}, volumes, 100)
}

// quietTicks builds a window whose last 20 ticks are near-zero volume, so
// the volume check fails.
func quietTicks() []exchange.Tick {
	volumes := make([]float64, 100)
	for i := range volumes {
		volumes[i] = 1.0
		if i >= 80 {
			volumes[i] = 0.001
		}
	}
	return makeTicks([]float64{100}, volumes, 100)
}

func TestValidate_AllThreeConfirmationsPass(t *testing.T) {
	v := NewValidator(ValidatorConfig{})
	sig := Signal{Kind: KindMomentumChase, Direction: 1, Confidence: 0.8}
	snap := &exchange.Snapshot{
		Ticks: surgeTicks(),
		Book:  makeBook([]float64{14, 14, 14, 14, 14}, []float64{6, 6, 6, 6, 6}),
	}

	res := v.Validate(sig, snap)
	if res.Confirmations != 3 {
		t.Errorf("expected 3 confirmations, got %d", res.Confirmations)
	}
	if !res.Passed {
		t.Error("expected validation to pass")
	}
	if !res.StrengthConfirmed || !res.VolumeConfirmed || !res.ImbalanceConfirmed {
		t.Errorf("expected all checks confirmed, got %+v", res)
	}
}

func TestValidate_TwoOfThreeSuffices(t *testing.T) {
	v := NewValidator(ValidatorConfig{})
	// weak signal, but volume and imbalance confirm
	sig := Signal{Kind: KindStopHunting, Direction: -1, Confidence: 0.4}
	snap := &exchange.Snapshot{
		Ticks: surgeTicks(),
		Book:  makeBook([]float64{14, 14, 14, 14, 14}, []float64{6, 6, 6, 6, 6}),
	}

	res := v.Validate(sig, snap)
	if res.StrengthConfirmed {
		t.Error("confidence 0.4 should not clear the 0.6 gate")
	}
	if res.Confirmations != 2 {
		t.Errorf("expected 2 confirmations, got %d", res.Confirmations)
	}
	if !res.Passed {
		t.Error("expected two confirmations to pass the quorum")
	}
}

func TestValidate_OneConfirmationFails(t *testing.T) {
	v := NewValidator(ValidatorConfig{})
	// strong signal, but quiet tail volume and a balanced book
	sig := Signal{Kind: KindIcebergOrders, Direction: 1, Confidence: 0.9}
	snap := &exchange.Snapshot{
		Ticks: quietTicks(),
		Book:  makeBook([]float64{10, 10, 10, 10, 10}, []float64{10, 10, 10, 10, 10}),
	}

	res := v.Validate(sig, snap)
	if res.Confirmations != 1 {
		t.Errorf("expected 1 confirmation, got %d", res.Confirmations)
	}
	if res.Passed {
		t.Error("expected a single confirmation to fail the quorum")
	}
}

func TestValidate_ConfidenceBoundaryIsStrict(t *testing.T) {
	v := NewValidator(ValidatorConfig{})
	snap := &exchange.Snapshot{Ticks: quietTicks()}

	res := v.Validate(Signal{Confidence: 0.6}, snap)
	if res.StrengthConfirmed {
		t.Error("confidence exactly at the threshold must not confirm")
	}

	res = v.Validate(Signal{Confidence: 0.61}, snap)
	if !res.StrengthConfirmed {
		t.Error("confidence just above the threshold must confirm")
	}
}

func TestValidate_ImbalanceBoundaryIsStrict(t *testing.T) {
	v := NewValidator(ValidatorConfig{})
	sig := Signal{Confidence: 0.1}

	// top-5 bid volume 60, ask volume 40: imbalance exactly 0.2
	snap := &exchange.Snapshot{
		Ticks: quietTicks(),
		Book:  makeBook([]float64{12, 12, 12, 12, 12}, []float64{8, 8, 8, 8, 8}),
	}
	if res := v.Validate(sig, snap); res.ImbalanceConfirmed {
		t.Error("imbalance exactly at the threshold must not confirm")
	}

	// 61 vs 39: imbalance 0.22
	snap.Book = makeBook([]float64{12.2, 12.2, 12.2, 12.2, 12.2}, []float64{7.8, 7.8, 7.8, 7.8, 7.8})
	if res := v.Validate(sig, snap); !res.ImbalanceConfirmed {
		t.Error("imbalance above the threshold must confirm")
	}
}

func TestValidate_VolumeCheckNeedsTwentyTicks(t *testing.T) {
	v := NewValidator(ValidatorConfig{})
	snap := &exchange.Snapshot{Ticks: flatTicks(100, 5.0, 19)}

	res := v.Validate(Signal{Confidence: 0.1}, snap)
	if res.VolumeConfirmed {
		t.Error("volume check must not run with fewer than 20 ticks")
	}
}

func TestValidate_ImbalanceCheckNeedsFullDepth(t *testing.T) {
	v := NewValidator(ValidatorConfig{})
	snap := &exchange.Snapshot{
		Ticks: quietTicks(),
		Book:  makeBook([]float64{50, 50, 50, 50}, []float64{1, 1, 1, 1}), // 4 levels only
	}

	res := v.Validate(Signal{Confidence: 0.1}, snap)
	if res.ImbalanceConfirmed {
		t.Error("imbalance check must not run without 5 levels per side")
	}
}

func TestNewValidator_AppliesDefaults(t *testing.T) {
	v := NewValidator(ValidatorConfig{})
	if v.cfg.MinConfidence != 0.6 || v.cfg.MinVolumeRatio != 1.3 || v.cfg.MinImbalance != 0.2 {
		t.Errorf("unexpected defaults: %+v", v.cfg)
	}

	custom := NewValidator(ValidatorConfig{MinConfidence: 0.75, MinVolumeRatio: 2.0, MinImbalance: 0.35})
	if custom.cfg.MinConfidence != 0.75 || custom.cfg.MinVolumeRatio != 2.0 || custom.cfg.MinImbalance != 0.35 {
		t.Errorf("explicit thresholds overridden: %+v", custom.cfg)
	}
}
