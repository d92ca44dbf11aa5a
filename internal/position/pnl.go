package position

import (
	"sync"
	"time"
)

// CloseReason records which exit trigger ended a trade.
type CloseReason string

const (
	CloseTargetHit CloseReason = "target_hit"
	CloseStopLoss  CloseReason = "stop_loss"
	CloseTimeExit  CloseReason = "time_exit"
	CloseManual    CloseReason = "manual"
)

// ClosedTrade is the immutable record appended when a position closes.
type ClosedTrade struct {
	EntryTime     time.Time     `json:"entry_time"`
	ExitTime      time.Time     `json:"exit_time"`
	Direction     int           `json:"direction"`
	EntryPrice    float64       `json:"entry_price"`
	ExitPrice     float64       `json:"exit_price"`
	Notional      float64       `json:"notional"`
	Leverage      float64       `json:"leverage"`
	PnL           float64       `json:"pnl"`
	PeakPnL       float64       `json:"peak_pnl"`
	TargetReached bool          `json:"target_reached"`
	HoldDuration  time.Duration `json:"hold_duration"`
	CloseReason   CloseReason   `json:"close_reason"`
}

// Summary aggregates the session's closed trades. It is recomputed from the
// full history on every call rather than maintained incrementally, which
// keeps it trivially correct.
type Summary struct {
	Trades      int           `json:"trades"`
	Wins        int           `json:"wins"`
	WinRate     float64       `json:"win_rate"`
	TotalPnL    float64       `json:"total_pnl"`
	AveragePnL  float64       `json:"average_pnl"`
	AverageHold time.Duration `json:"average_hold"`
	BestTrade   float64       `json:"best_trade"`
	WorstTrade  float64       `json:"worst_trade"`
	Balance     float64       `json:"balance"`
}

// Tracker computes unrealized PnL, carries the running balance and
// materializes closed-trade records. Trades are session-scoped; nothing is
// persisted across restarts.
type Tracker struct {
	mu      sync.RWMutex
	balance float64
	trades  []ClosedTrade
}

// NewTracker creates a tracker seeded with the starting account balance.
func NewTracker(startingBalance float64) *Tracker {
	return &Tracker{balance: startingBalance}
}

// Unrealized returns the position's unrealized PnL at the current price:
// notional times the directional price-change fraction.
func Unrealized(pos *Position, currentPrice float64) float64 {
	if pos.State != StateOpen || pos.EntryPrice == 0 {
		return 0
	}
	var frac float64
	if pos.Direction > 0 {
		frac = (currentPrice - pos.EntryPrice) / pos.EntryPrice
	} else {
		frac = (pos.EntryPrice - currentPrice) / pos.EntryPrice
	}
	return pos.Notional * frac
}

// UpdatePeak raises the position's peak excursion to the current unrealized
// PnL when it is a new high. The peak never decreases while the position
// stays open.
func (t *Tracker) UpdatePeak(pos *Position, unrealized float64) {
	if unrealized > pos.PeakUnrealizedPnL {
		pos.PeakUnrealizedPnL = unrealized
	}
}

// RecordClose materializes the closed-trade record, applies the realized
// PnL to the running balance and returns the record.
func (t *Tracker) RecordClose(pos *Position, exitPrice float64, exitTime time.Time, reason CloseReason, takeProfit float64) ClosedTrade {
	var frac float64
	if pos.EntryPrice != 0 {
		if pos.Direction > 0 {
			frac = (exitPrice - pos.EntryPrice) / pos.EntryPrice
		} else {
			frac = (pos.EntryPrice - exitPrice) / pos.EntryPrice
		}
	}
	pnl := pos.Notional * frac

	trade := ClosedTrade{
		EntryTime:     pos.EntryTime,
		ExitTime:      exitTime,
		Direction:     pos.Direction,
		EntryPrice:    pos.EntryPrice,
		ExitPrice:     exitPrice,
		Notional:      pos.Notional,
		Leverage:      pos.Leverage,
		PnL:           pnl,
		PeakPnL:       pos.PeakUnrealizedPnL,
		TargetReached: pnl >= takeProfit,
		HoldDuration:  exitTime.Sub(pos.EntryTime),
		CloseReason:   reason,
	}

	t.mu.Lock()
	t.balance += pnl
	t.trades = append(t.trades, trade)
	t.mu.Unlock()

	return trade
}

// Balance returns the running account balance.
func (t *Tracker) Balance() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balance
}

// Trades returns a copy of the closed-trade history.
func (t *Tracker) Trades() []ClosedTrade {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]ClosedTrade, len(t.trades))
	copy(out, t.trades)
	return out
}

// Summarize recomputes the session summary from the full history.
func (t *Tracker) Summarize() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Summary{Trades: len(t.trades), Balance: t.balance}
	if len(t.trades) == 0 {
		return s
	}

	var totalHold time.Duration
	s.BestTrade = t.trades[0].PnL
	s.WorstTrade = t.trades[0].PnL
	for _, tr := range t.trades {
		if tr.PnL > 0 {
			s.Wins++
		}
		s.TotalPnL += tr.PnL
		totalHold += tr.HoldDuration
		if tr.PnL > s.BestTrade {
			s.BestTrade = tr.PnL
		}
		if tr.PnL < s.WorstTrade {
			s.WorstTrade = tr.PnL
		}
	}
	s.WinRate = float64(s.Wins) / float64(s.Trades)
	s.AveragePnL = s.TotalPnL / float64(s.Trades)
	s.AverageHold = totalHold / time.Duration(s.Trades)
	return s
}
