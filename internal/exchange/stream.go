package exchange

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// TickStream subscribes to the aggregate trade websocket stream and keeps a
// bounded rolling window of recent ticks so snapshots can be served without
// a REST round-trip per cycle. The stream is an optimization: when it is not
// connected or has too little history, the client falls back to REST.
type TickStream struct {
	mu       sync.RWMutex
	wsURL    string
	symbol   string
	capacity int
	ticks    []Tick
	conn     *websocket.Conn
	stopChan chan struct{}
	stopped  bool
	logger   zerolog.Logger
}

// NewTickStream creates a stream for one symbol. wsURL is the stream host,
// e.g. wss://fstream.binance.com.
func NewTickStream(wsURL, symbol string, capacity int, logger zerolog.Logger) *TickStream {
	if capacity <= 0 {
		capacity = 1000
	}
	return &TickStream{
		wsURL:    wsURL,
		symbol:   symbol,
		capacity: capacity,
		ticks:    make([]Tick, 0, capacity),
		stopChan: make(chan struct{}),
		logger:   logger,
	}
}

// Start connects and begins buffering ticks. Reconnects with a growing delay
// until Stop is called.
func (s *TickStream) Start() {
	go s.run()
}

// Stop terminates the stream.
func (s *TickStream) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.stopChan)
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()
}

// Recent returns up to n most recent ticks, time-ascending. The returned
// slice is a copy.
func (s *TickStream) Recent(n int) []Tick {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n > len(s.ticks) {
		n = len(s.ticks)
	}
	out := make([]Tick, n)
	copy(out, s.ticks[len(s.ticks)-n:])
	return out
}

func (s *TickStream) run() {
	delay := time.Second
	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		if err := s.connectAndRead(); err != nil {
			s.logger.Warn().Err(err).Dur("retry_in", delay).Msg("tick stream disconnected")
		}

		select {
		case <-s.stopChan:
			return
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
}

func (s *TickStream) connectAndRead() error {
	endpoint := fmt.Sprintf("%s/ws/%s@aggTrade", s.wsURL, strings.ToLower(s.symbol))
	conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", endpoint, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.logger.Info().Str("symbol", s.symbol).Msg("tick stream connected")

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return err
		}

		var trade struct {
			Price string `json:"p"`
			Qty   string `json:"q"`
			Time  int64  `json:"T"`
		}
		if err := json.Unmarshal(msg, &trade); err != nil {
			continue
		}

		s.append(Tick{
			Price:  parseFloat(trade.Price),
			Volume: parseFloat(trade.Qty),
			Time:   time.UnixMilli(trade.Time),
		})
	}
}

func (s *TickStream) append(t Tick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks = append(s.ticks, t)
	// trim in bulk so the copy cost is amortized over capacity appends
	if len(s.ticks) > 2*s.capacity {
		copy(s.ticks, s.ticks[len(s.ticks)-s.capacity:])
		s.ticks = s.ticks[:s.capacity]
	}
}
