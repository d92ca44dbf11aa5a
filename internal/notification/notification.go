// Package notification delivers lifecycle events (position opened, position
// closed, session summary) to external sinks. Delivery is best-effort: a
// failed send never affects trading, and a sink is disabled only after a
// definitive permanent failure.
package notification

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"contrarian-trading-bot/internal/position"
)

// Kind classifies a notification.
type Kind string

const (
	KindPositionOpened Kind = "position_opened"
	KindPositionClosed Kind = "position_closed"
	KindSummary        Kind = "session_summary"
	KindAlert          Kind = "alert"
)

// Message is one notification to deliver.
type Message struct {
	Kind      Kind
	Title     string
	Body      string
	Timestamp time.Time
}

// Notifier is a single delivery channel.
type Notifier interface {
	Send(msg Message) error
	Name() string
}

// PermanentError marks a delivery failure that will not recover (bad
// credentials, deleted webhook). The manager disables the notifier for the
// rest of the session; transient failures are only logged.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent delivery failure: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// IsPermanent reports whether err marks an unrecoverable delivery failure.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

// Manager fans messages out to all enabled notifiers.
type Manager struct {
	mu        sync.Mutex
	wg        sync.WaitGroup // in-flight dispatched sends
	notifiers []Notifier
	disabled  map[string]bool
	logger    zerolog.Logger
}

// NewManager creates an empty manager.
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{
		disabled: make(map[string]bool),
		logger:   logger,
	}
}

// AddNotifier registers a delivery channel.
func (m *Manager) AddNotifier(n Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifiers = append(m.notifiers, n)
}

// Send delivers the message to every channel still enabled.
func (m *Manager) Send(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifiers {
		if m.disabled[n.Name()] {
			continue
		}
		if err := n.Send(msg); err != nil {
			if IsPermanent(err) {
				m.disabled[n.Name()] = true
				m.logger.Error().Err(err).Str("notifier", n.Name()).
					Msg("disabling notifier after permanent failure")
			} else {
				m.logger.Warn().Err(err).Str("notifier", n.Name()).
					Msg("notification delivery failed")
			}
		}
	}
}

// SendPositionOpened formats and sends the entry notification.
func (m *Manager) SendPositionOpened(rep *position.OpenReport) {
	side := "LONG"
	if rep.Direction < 0 {
		side = "SHORT"
	}
	m.Send(Message{
		Kind:  KindPositionOpened,
		Title: fmt.Sprintf("New %s position opened", side),
		Body: fmt.Sprintf(
			"Position: %s %.4f units\nEntry: $%.2f\nNotional: $%.2f\nTarget profit: $%.2f\nPattern: %s",
			side, rep.Quantity, rep.EntryPrice, rep.Notional, rep.Target, rep.Signal.Kind),
	})
}

// SendPositionClosed formats and sends the close notification.
func (m *Manager) SendPositionClosed(trade position.ClosedTrade) {
	side := "LONG"
	if trade.Direction < 0 {
		side = "SHORT"
	}
	outcome := "Loss"
	if trade.PnL >= 0 {
		outcome = "Profit"
	}
	target := "missed"
	if trade.TargetReached {
		target = "reached"
	}
	m.Send(Message{
		Kind:  KindPositionClosed,
		Title: fmt.Sprintf("%s: position closed (%s)", outcome, trade.CloseReason),
		Body: fmt.Sprintf(
			"Direction: %s at %.0fx\nEntry: $%.2f\nExit: $%.2f\nPnL: $%.2f\nPeak PnL: $%.2f\nTarget: %s\nHeld: %s",
			side, trade.Leverage, trade.EntryPrice, trade.ExitPrice, trade.PnL,
			trade.PeakPnL, target, trade.HoldDuration.Round(time.Second)),
	})
}

// SendSummary formats and sends the session summary.
func (m *Manager) SendSummary(s position.Summary) {
	m.Send(Message{
		Kind:  KindSummary,
		Title: "Session summary",
		Body: fmt.Sprintf(
			"Trades: %d (wins %d, %.0f%%)\nTotal PnL: $%.2f\nAverage PnL: $%.2f\nAverage hold: %s\nBest: $%.2f | Worst: $%.2f\nBalance: $%.2f",
			s.Trades, s.Wins, s.WinRate*100, s.TotalPnL, s.AveragePnL,
			s.AverageHold.Round(time.Second), s.BestTrade, s.WorstTrade, s.Balance),
	})
}

// SendAlert delivers an operator alert (sustained connectivity loss, stuck
// close).
func (m *Manager) SendAlert(title, body string) {
	m.Send(Message{Kind: KindAlert, Title: title, Body: body})
}
