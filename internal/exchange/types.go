package exchange

import (
	"errors"
	"time"
)

// Tick represents a single executed trade.
type Tick struct {
	Price  float64   `json:"price"`
	Volume float64   `json:"volume"`
	Time   time.Time `json:"time"`
}

// Candle represents one OHLC bar.
type Candle struct {
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
	Time  time.Time `json:"time"`
}

// BookLevel is a single price level in the order book.
type BookLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderBook holds top-of-book depth. Bids are sorted descending by price,
// asks ascending, as delivered by the exchange depth endpoint.
type OrderBook struct {
	Bids []BookLevel `json:"bids"`
	Asks []BookLevel `json:"asks"`
}

// HasBothSides reports whether the book carries at least depth levels on
// each side. Imbalance checks require depth 5.
func (b *OrderBook) HasBothSides(depth int) bool {
	return b != nil && len(b.Bids) >= depth && len(b.Asks) >= depth
}

// Imbalance returns the signed top-N volume imbalance
// (bidVol - askVol) / (bidVol + askVol), or 0 for an empty book.
func (b *OrderBook) Imbalance(depth int) float64 {
	if b == nil {
		return 0
	}
	var bidVol, askVol float64
	for i := 0; i < depth && i < len(b.Bids); i++ {
		bidVol += b.Bids[i].Size
	}
	for i := 0; i < depth && i < len(b.Asks); i++ {
		askVol += b.Asks[i].Size
	}
	total := bidVol + askVol
	if total == 0 {
		return 0
	}
	return (bidVol - askVol) / total
}

// Snapshot is one cycle's view of the market: recent ticks (time-ascending),
// recent candles (time-ascending) and current depth. Any part may be missing
// when the exchange returns partial data; consumers guard on sample size.
type Snapshot struct {
	Symbol  string    `json:"symbol"`
	Ticks   []Tick    `json:"ticks"`
	Candles []Candle  `json:"candles"`
	Book    OrderBook `json:"book"`
	Taken   time.Time `json:"taken"`
}

// LastPrice returns the most recent traded price, falling back to the last
// candle close when no ticks are present. Returns 0 when the snapshot is
// empty.
func (s *Snapshot) LastPrice() float64 {
	if len(s.Ticks) > 0 {
		return s.Ticks[len(s.Ticks)-1].Price
	}
	if len(s.Candles) > 0 {
		return s.Candles[len(s.Candles)-1].Close
	}
	return 0
}

// Fill reports a filled market order.
type Fill struct {
	Ticket int64   `json:"ticket"`
	Price  float64 `json:"price"`
}

// BrokerPosition is the broker's view of an open position, used to reconcile
// local state. Direction is +1 for long, -1 for short.
type BrokerPosition struct {
	Ticket     int64   `json:"ticket"`
	Direction  int     `json:"direction"`
	Quantity   float64 `json:"quantity"`
	EntryPrice float64 `json:"entry_price"`
}

// RejectedError is returned when the exchange accepts the request but
// declines the order. Callers treat it differently from connectivity
// failures: an entry rejection starts a cooldown, a close rejection is
// retried next cycle.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return "order rejected: " + e.Reason
}

// IsRejection reports whether err is an order rejection rather than a
// transport fault.
func IsRejection(err error) bool {
	var rej *RejectedError
	return errors.As(err, &rej)
}
