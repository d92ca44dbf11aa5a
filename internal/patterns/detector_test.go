package patterns

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"contrarian-trading-bot/internal/exchange"
)

func testDetector() *Detector {
	return NewDetector(zerolog.Nop())
}

// makeTicks builds n ticks at the given prices/volumes. When prices or
// volumes run out the last value is repeated.
func makeTicks(prices, volumes []float64, n int) []exchange.Tick {
	ticks := make([]exchange.Tick, n)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		p := prices[len(prices)-1]
		if i < len(prices) {
			p = prices[i]
		}
		v := volumes[len(volumes)-1]
		if i < len(volumes) {
			v = volumes[i]
		}
		ticks[i] = exchange.Tick{Price: p, Volume: v, Time: base.Add(time.Duration(i) * time.Second)}
	}
	return ticks
}

func flatTicks(price, volume float64, n int) []exchange.Tick {
	return makeTicks([]float64{price}, []float64{volume}, n)
}

func makeBook(bidSizes, askSizes []float64) exchange.OrderBook {
	var book exchange.OrderBook
	for i, s := range bidSizes {
		book.Bids = append(book.Bids, exchange.BookLevel{Price: 100 - float64(i+1)*0.1, Size: s})
	}
	for i, s := range askSizes {
		book.Asks = append(book.Asks, exchange.BookLevel{Price: 100 + float64(i+1)*0.1, Size: s})
	}
	return book
}

// ==================== MOMENTUM CHASE ====================

func TestMomentumChase_RequiresMinimumTicks(t *testing.T) {
	d := testDetector()
	snap := &exchange.Snapshot{Ticks: flatTicks(100, 1.0, 99)}

	sig := d.detectMomentumChase(snap, 1.5)
	if sig.Fired() {
		t.Errorf("expected no signal with 99 ticks, got %v", sig.Kind)
	}
}

func TestMomentumChase_FiresOnVolumeSurge(t *testing.T) {
	d := testDetector()

	// first half volume 1.0, second half 2.0 -> ratio 2.0 > 1.5
	volumes := make([]float64, 100)
	prices := make([]float64, 100)
	for i := range volumes {
		volumes[i] = 1.0
		if i >= 50 {
			volumes[i] = 2.0
		}
		prices[i] = 100.0 + float64(i)*0.01 // steadily rising
	}
	snap := &exchange.Snapshot{Ticks: makeTicks(prices, volumes, 100)}

	sig := d.detectMomentumChase(snap, 1.5)
	if sig.Kind != KindMomentumChase {
		t.Fatalf("expected momentum_chase, got %q", sig.Kind)
	}
	if sig.Direction != 1 {
		t.Errorf("expected upward direction, got %d", sig.Direction)
	}
	want := 2.0 / 3.0
	if diff := sig.Confidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected confidence %.4f, got %.4f", want, sig.Confidence)
	}
}

func TestMomentumChase_QuietVolumeStaysSilent(t *testing.T) {
	d := testDetector()
	snap := &exchange.Snapshot{Ticks: flatTicks(100, 1.0, 100)}

	sig := d.detectMomentumChase(snap, 1.5)
	if sig.Fired() {
		t.Errorf("expected no signal with flat volume, got %v", sig.Kind)
	}
}

// ==================== STOP HUNTING ====================

func makeCandles(ranges []float64, open float64) []exchange.Candle {
	candles := make([]exchange.Candle, len(ranges))
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, r := range ranges {
		candles[i] = exchange.Candle{
			Open:  open,
			High:  open + r,
			Low:   open,
			Close: open + r/2,
			Time:  base.Add(time.Duration(i) * time.Minute),
		}
	}
	return candles
}

func TestStopHunting_RequiresFiveCandles(t *testing.T) {
	d := testDetector()
	snap := &exchange.Snapshot{Candles: makeCandles([]float64{1, 1, 1, 5}, 100)}

	sig := d.detectStopHunting(snap, 1.5)
	if sig.Fired() {
		t.Errorf("expected no signal with 4 candles, got %v", sig.Kind)
	}
}

func TestStopHunting_FiresOnAbnormalRange(t *testing.T) {
	d := testDetector()
	// four quiet bars with range 1, then a bar with range 5: ratio 5 > 1.5
	snap := &exchange.Snapshot{Candles: makeCandles([]float64{1, 1, 1, 1, 5}, 100)}

	sig := d.detectStopHunting(snap, 1.5)
	if sig.Kind != KindStopHunting {
		t.Fatalf("expected stop_hunting, got %q", sig.Kind)
	}
	if sig.Direction != 1 {
		t.Errorf("expected direction from close>open, got %d", sig.Direction)
	}
	if sig.Confidence != 1.0 {
		t.Errorf("expected confidence capped at 1.0, got %.4f", sig.Confidence)
	}
}

func TestStopHunting_HigherThresholdSuppresses(t *testing.T) {
	d := testDetector()
	snap := &exchange.Snapshot{Candles: makeCandles([]float64{1, 1, 1, 1, 5}, 100)}

	// the same spike does not clear a threshold of 6
	sig := d.detectStopHunting(snap, 6.0)
	if sig.Fired() {
		t.Errorf("expected no signal above adaptive threshold, got %v", sig.Kind)
	}
}

// ==================== ICEBERG ORDERS ====================

func TestIcebergOrders_RequiresMinimumTicks(t *testing.T) {
	d := testDetector()
	snap := &exchange.Snapshot{Ticks: flatTicks(100, 1.0, 49)}

	sig := d.detectIcebergOrders(snap, 1.5)
	if sig.Fired() {
		t.Errorf("expected no signal with 49 ticks, got %v", sig.Kind)
	}
}

func TestIcebergOrders_FiresOnUniformSizesAtOneLevel(t *testing.T) {
	d := testDetector()
	// 50 identical trades at one price level: CV is 0, well under 0.3
	snap := &exchange.Snapshot{Ticks: flatTicks(100.0, 2.5, 50)}

	sig := d.detectIcebergOrders(snap, 1.5)
	if sig.Kind != KindIcebergOrders {
		t.Fatalf("expected iceberg_orders, got %q", sig.Kind)
	}
	if sig.Confidence != 0.7 {
		t.Errorf("expected confidence 0.7 for zero deviation, got %.4f", sig.Confidence)
	}
	if sig.ExpectedReversion != 0.01 {
		t.Errorf("expected fixed 0.01 reversion, got %.4f", sig.ExpectedReversion)
	}
}

func TestIcebergOrders_VariedSizesStaySilent(t *testing.T) {
	d := testDetector()
	// alternating 1 and 9 at the same level: CV well above 0.3
	volumes := make([]float64, 50)
	for i := range volumes {
		volumes[i] = 1.0
		if i%2 == 0 {
			volumes[i] = 9.0
		}
	}
	snap := &exchange.Snapshot{Ticks: makeTicks([]float64{100}, volumes, 50)}

	sig := d.detectIcebergOrders(snap, 1.5)
	if sig.Fired() {
		t.Errorf("expected no signal with varied trade sizes, got %v", sig.Kind)
	}
}

// ==================== LIQUIDITY SWEEP ====================

func sweepTicks() []exchange.Tick {
	// 30 ticks climbing from 100.0 to 100.6 (0.6% > 0.2%), one outsized trade
	prices := make([]float64, 30)
	volumes := make([]float64, 30)
	for i := range prices {
		prices[i] = 100.0 + float64(i)*0.02
		volumes[i] = 1.0
	}
	volumes[15] = 100.0
	return makeTicks(prices, volumes, 30)
}

func TestLiquiditySweep_RequiresBookDepth(t *testing.T) {
	d := testDetector()
	snap := &exchange.Snapshot{
		Ticks: sweepTicks(),
		Book:  makeBook([]float64{10, 10, 10}, []float64{1, 1, 1}), // only 3 levels
	}

	sig := d.detectLiquiditySweep(snap, 1.5)
	if sig.Fired() {
		t.Errorf("expected no signal with shallow book, got %v", sig.Kind)
	}
}

func TestLiquiditySweep_FiresOnLargeTradeWithImbalance(t *testing.T) {
	d := testDetector()
	snap := &exchange.Snapshot{
		Ticks: sweepTicks(),
		Book:  makeBook([]float64{14, 14, 14, 14, 14}, []float64{6, 6, 6, 6, 6}), // imbalance 0.4
	}

	sig := d.detectLiquiditySweep(snap, 1.5)
	if sig.Kind != KindLiquiditySweep {
		t.Fatalf("expected liquidity_sweep, got %q", sig.Kind)
	}
	if sig.Direction != 1 {
		t.Errorf("expected upward direction, got %d", sig.Direction)
	}
	if sig.Confidence != 1.0 {
		t.Errorf("expected confidence capped at 1.0 for 0.6%% move, got %.4f", sig.Confidence)
	}
}

func TestLiquiditySweep_BalancedBookStaysSilent(t *testing.T) {
	d := testDetector()
	snap := &exchange.Snapshot{
		Ticks: sweepTicks(),
		Book:  makeBook([]float64{10, 10, 10, 10, 10}, []float64{10, 10, 10, 10, 10}),
	}

	sig := d.detectLiquiditySweep(snap, 1.5)
	if sig.Fired() {
		t.Errorf("expected no signal with balanced book, got %v", sig.Kind)
	}
}

// ==================== PRIORITY ORDER ====================

func TestDetect_LaterHeuristicWinsWhenSeveralFire(t *testing.T) {
	d := testDetector()

	// 100 ticks: second-half volume surge (momentum fires) and a climbing
	// tail with an outsized trade plus a leaning book (sweep fires). Too few
	// candles for stop hunting.
	prices := make([]float64, 100)
	volumes := make([]float64, 100)
	for i := range prices {
		prices[i] = 100.0
		volumes[i] = 1.0
		if i >= 50 {
			volumes[i] = 3.0
		}
		if i >= 70 {
			prices[i] = 100.0 + float64(i-70)*0.02
		}
	}
	volumes[95] = 200.0
	snap := &exchange.Snapshot{
		Ticks: makeTicks(prices, volumes, 100),
		Book:  makeBook([]float64{14, 14, 14, 14, 14}, []float64{6, 6, 6, 6, 6}),
	}

	if got := d.detectMomentumChase(snap, 1.5); got.Kind != KindMomentumChase {
		t.Fatalf("setup: momentum should fire, got %q", got.Kind)
	}
	if got := d.detectLiquiditySweep(snap, 1.5); got.Kind != KindLiquiditySweep {
		t.Fatalf("setup: sweep should fire, got %q", got.Kind)
	}

	sig := d.Detect(snap, 1.5)
	if sig.Kind != KindLiquiditySweep {
		t.Errorf("expected the last firing heuristic to win, got %q", sig.Kind)
	}
}

func TestDetect_EmptySnapshotReturnsZeroSignal(t *testing.T) {
	d := testDetector()
	sig := d.Detect(&exchange.Snapshot{}, 1.5)
	if sig.Fired() {
		t.Errorf("expected zero signal on empty snapshot, got %v", sig.Kind)
	}
}
