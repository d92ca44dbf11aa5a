package exchange

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

// MockClient provides simulated market data and instant fills for dry runs
// and tests. The random walk is seeded so runs are reproducible.
type MockClient struct {
	mu         sync.RWMutex
	rng        *rand.Rand
	prices     map[string]float64
	position   *BrokerPosition
	nextTicket int64
	rejectNext string // when set, the next order is rejected with this reason
}

// NewMockClient creates a mock with realistic base prices.
func NewMockClient(seed int64) *MockClient {
	return &MockClient{
		rng: rand.New(rand.NewSource(seed)),
		prices: map[string]float64{
			"BTCUSDT": 104500.00,
			"ETHUSDT": 3900.00,
			"SOLUSDT": 220.00,
		},
		nextTicket: 1000,
	}
}

// RejectNextOrder makes the next PlaceMarketOrder or ClosePosition call fail
// with a rejection, for exercising cooldown and close-retry paths.
func (m *MockClient) RejectNextOrder(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectNext = reason
}

// SetPrice pins the simulated price, so tests can drive PnL deterministically.
func (m *MockClient) SetPrice(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[symbol] = price
}

func (m *MockClient) FetchSnapshot(symbol string, tickLookback, candleLookback int) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	base, ok := m.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("unknown symbol %q", symbol)
	}

	now := time.Now()
	snap := &Snapshot{Symbol: symbol, Taken: now}

	// random-walk ticks ending at the current price
	price := base
	snap.Ticks = make([]Tick, tickLookback)
	for i := tickLookback - 1; i >= 0; i-- {
		snap.Ticks[i] = Tick{
			Price:  price,
			Volume: 0.05 + m.rng.Float64()*0.5,
			Time:   now.Add(-time.Duration(tickLookback-1-i) * time.Second),
		}
		price *= 1 + (m.rng.Float64()-0.5)*0.0004
	}

	snap.Candles = make([]Candle, candleLookback)
	c := base
	for i := candleLookback - 1; i >= 0; i-- {
		o := c * (1 + (m.rng.Float64()-0.5)*0.002)
		cl := c
		h := math.Max(o, cl) * (1 + m.rng.Float64()*0.001)
		l := math.Min(o, cl) * (1 - m.rng.Float64()*0.001)
		snap.Candles[i] = Candle{
			Open: o, High: h, Low: l, Close: cl,
			Time: now.Add(-time.Duration(candleLookback-1-i) * time.Minute),
		}
		c = o
	}

	for i := 0; i < 10; i++ {
		spread := base * 0.0001
		snap.Book.Bids = append(snap.Book.Bids, BookLevel{
			Price: base - spread*float64(i+1),
			Size:  1 + m.rng.Float64()*10,
		})
		snap.Book.Asks = append(snap.Book.Asks, BookLevel{
			Price: base + spread*float64(i+1),
			Size:  1 + m.rng.Float64()*10,
		})
	}

	// drift the base price a little between snapshots
	m.prices[symbol] = base * (1 + (m.rng.Float64()-0.5)*0.001)

	return snap, nil
}

func (m *MockClient) PlaceMarketOrder(symbol, side string, quantity float64) (*Fill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rejectNext != "" {
		reason := m.rejectNext
		m.rejectNext = ""
		return nil, &RejectedError{Reason: reason}
	}

	price, ok := m.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("unknown symbol %q", symbol)
	}

	dir := 1
	if side == "SELL" {
		dir = -1
	}

	m.nextTicket++
	m.position = &BrokerPosition{
		Ticket:     m.nextTicket,
		Direction:  dir,
		Quantity:   quantity,
		EntryPrice: price,
	}
	return &Fill{Ticket: m.nextTicket, Price: price}, nil
}

func (m *MockClient) ClosePosition(symbol string, ticket int64, quantity float64) (*Fill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rejectNext != "" {
		reason := m.rejectNext
		m.rejectNext = ""
		return nil, &RejectedError{Reason: reason}
	}
	if m.position == nil {
		return nil, &RejectedError{Reason: "no open position"}
	}

	price := m.prices[symbol]
	m.position = nil
	return &Fill{Ticket: ticket, Price: price}, nil
}

func (m *MockClient) GetOpenPosition(symbol string) (*BrokerPosition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.position == nil {
		return nil, nil
	}
	pos := *m.position
	return &pos, nil
}

func (m *MockClient) GetAccountBalance() (float64, error) {
	return 10000, nil
}
