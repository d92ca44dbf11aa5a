package analysis

import (
	"math"

	"contrarian-trading-bot/internal/exchange"
)

// Regime classifies the broad market state. It is logged for operator
// context each cycle; it never gates trading decisions.
type Regime string

const (
	RegimeTrend    Regime = "TREND"
	RegimeRange    Regime = "RANGE"
	RegimeVolatile Regime = "VOLATILE"
	RegimeUnknown  Regime = "UNKNOWN"
)

// DetectRegime classifies the last lookback candles as trending, ranging or
// volatile. Trend: fast MA diverges from slow MA by more than 1% with
// annualized volatility below 30%. Volatile: annualized volatility above
// 50%. Everything else is range-bound.
func DetectRegime(candles []exchange.Candle, lookback int) (Regime, float64) {
	if lookback <= 1 || len(candles) < lookback {
		return RegimeUnknown, 0
	}

	window := candles[len(candles)-lookback:]
	closes := make([]float64, len(window))
	for i, c := range window {
		closes[i] = c.Close
	}

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] != 0 {
			returns = append(returns, (closes[i]-closes[i-1])/closes[i-1])
		}
	}

	fastStart := len(closes) - 5
	if fastStart < 0 {
		fastStart = 0
	}
	maFast := mean(closes[fastStart:])
	maSlow := mean(closes)

	trending := maSlow != 0 && math.Abs(maFast/maSlow-1) > 0.01
	volatility := stdDev(returns) * math.Sqrt(252)

	switch {
	case trending && volatility < 0.3:
		return RegimeTrend, volatility
	case volatility > 0.5:
		return RegimeVolatile, volatility
	default:
		return RegimeRange, volatility
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
