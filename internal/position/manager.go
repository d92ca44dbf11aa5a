// Package position owns the single allowed position's lifecycle: entry
// sizing and submission, continuous risk evaluation, exits and PnL
// accounting.
package position

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"contrarian-trading-bot/internal/exchange"
	"contrarian-trading-bot/internal/patterns"
	"contrarian-trading-bot/internal/risk"
	"contrarian-trading-bot/internal/scheduler"
)

// State is the position lifecycle state.
type State string

const (
	StateFlat    State = "FLAT"
	StateOpening State = "OPENING"
	StateOpen    State = "OPEN"
	StateClosing State = "CLOSING"
)

// Position holds the lifecycle state of the one allowed position.
// Direction is 0 exactly when State is FLAT.
type Position struct {
	State             State     `json:"state"`
	Direction         int       `json:"direction"`
	EntryPrice        float64   `json:"entry_price"`
	Notional          float64   `json:"notional"`
	SizeUnits         float64   `json:"size_units"`
	Leverage          float64   `json:"leverage"`
	EntryTime         time.Time `json:"entry_time"`
	Ticket            int64     `json:"ticket"`
	PeakUnrealizedPnL float64   `json:"peak_unrealized_pnl"`
}

// Config holds the lifecycle parameters.
type Config struct {
	Symbol             string        `json:"symbol"`
	TakeProfitUSD      float64       `json:"take_profit_usd"`
	MaxLossUSD         float64       `json:"max_loss_usd"`
	MaxHold            time.Duration `json:"max_hold"`       // time-based exit ceiling
	EntryHold          time.Duration `json:"entry_hold"`     // pause before submitting an entry
	EntryCooldown      time.Duration `json:"entry_cooldown"` // after an entry rejection
	ShortsOnly         bool          `json:"shorts_only"`    // contrarian one-direction policy
	MinEntryConfidence float64       `json:"min_entry_confidence"`
}

const (
	defaultMaxHold       = 1800 * time.Second
	defaultEntryHold     = 13 * time.Second
	defaultEntryCooldown = 60 * time.Second
	defaultMinEntryConf  = 0.5

	holdoffEntry = "entry"
)

// OpenReport describes a freshly opened position.
type OpenReport struct {
	Direction  int
	Quantity   float64
	EntryPrice float64
	Notional   float64
	Target     float64
	Signal     patterns.Signal
}

// CloseResult carries the finalized trade after a confirmed close.
type CloseResult struct {
	Trade ClosedTrade
}

// Manager is the position state machine. All methods are called from the
// single engine loop; there is deliberately no locking around the position
// itself, and that absence is a correctness invariant. Anyone introducing
// concurrent cycles must add mutual exclusion around Position mutation to
// preserve the single-position guarantee.
type Manager struct {
	cfg     Config
	client  exchange.Client
	sizer   *risk.Sizer
	tracker *Tracker
	clock   scheduler.Clock
	holdoff *scheduler.Holdoff
	logger  zerolog.Logger

	pos          Position
	pendingClose CloseReason // carried across cycles while a close is being retried
}

// NewManager creates the state machine, applying defaults for unset
// lifecycle durations.
func NewManager(cfg Config, client exchange.Client, sizer *risk.Sizer, tracker *Tracker, clock scheduler.Clock, logger zerolog.Logger) *Manager {
	if cfg.MaxHold <= 0 {
		cfg.MaxHold = defaultMaxHold
	}
	if cfg.EntryHold <= 0 {
		cfg.EntryHold = defaultEntryHold
	}
	if cfg.EntryCooldown <= 0 {
		cfg.EntryCooldown = defaultEntryCooldown
	}
	if cfg.MinEntryConfidence <= 0 {
		cfg.MinEntryConfidence = defaultMinEntryConf
	}
	return &Manager{
		cfg:     cfg,
		client:  client,
		sizer:   sizer,
		tracker: tracker,
		clock:   clock,
		holdoff: scheduler.NewHoldoff(clock),
		logger:  logger,
		pos:     Position{State: StateFlat},
	}
}

// Position returns a copy of the current position.
func (m *Manager) Position() Position {
	return m.pos
}

// Tracker exposes the PnL tracker for summaries.
func (m *Manager) Tracker() *Tracker {
	return m.tracker
}

// Reconcile aligns local state with the broker's ground truth. Called at
// startup and on any suspected desync: a position the broker holds that we
// do not is adopted; a position we hold that the broker does not is
// discarded.
func (m *Manager) Reconcile() error {
	broker, err := m.client.GetOpenPosition(m.cfg.Symbol)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	switch {
	case broker != nil && m.pos.State == StateFlat:
		m.logger.Warn().
			Int64("ticket", broker.Ticket).
			Int("direction", broker.Direction).
			Float64("quantity", broker.Quantity).
			Msg("adopting position found at broker")
		m.pos = Position{
			State:             StateOpen,
			Direction:         broker.Direction,
			EntryPrice:        broker.EntryPrice,
			Notional:          broker.Quantity * broker.EntryPrice,
			SizeUnits:         broker.Quantity,
			Leverage:          m.sizer.Leverage(),
			EntryTime:         m.clock.Now(),
			Ticket:            broker.Ticket,
			PeakUnrealizedPnL: 0,
		}
	case broker == nil && m.pos.State != StateFlat && m.pos.State != StateOpening:
		m.logger.Warn().Str("state", string(m.pos.State)).
			Msg("broker reports flat, discarding local position state")
		m.pos = Position{State: StateFlat}
		m.pendingClose = ""
	}
	return nil
}

// TryOpen runs the entry decision for a validated signal. refPrice is the
// last traded price from the snapshot, used to size the order. It returns a
// nil report when no entry happened, which is the common case: state gates,
// the policy flag, cooldowns and the patience pause all end the attempt
// quietly. A gateway rejection also returns nil but starts the entry
// cooldown.
func (m *Manager) TryOpen(ctx context.Context, sig patterns.Signal, refPrice float64) (*OpenReport, error) {
	if m.pos.State != StateFlat {
		return nil, nil
	}
	if !m.holdoff.Ready(holdoffEntry) {
		m.logger.Debug().Time("eligible_at", m.holdoff.EligibleAt(holdoffEntry)).
			Msg("entry cooldown active, skipping signal")
		return nil, nil
	}
	if sig.Confidence <= m.cfg.MinEntryConfidence {
		return nil, nil
	}

	// The strategy fades the anomaly: enter opposite the detected move.
	direction := -sig.Direction
	if m.cfg.ShortsOnly && direction > 0 {
		m.logger.Info().Str("kind", string(sig.Kind)).Msg("shorts-only policy, skipping long entry")
		return nil, nil
	}

	broker, err := m.client.GetOpenPosition(m.cfg.Symbol)
	if err != nil {
		return nil, fmt.Errorf("pre-entry position check: %w", err)
	}
	if broker != nil {
		m.logger.Warn().Msg("broker already holds a position, reconciling instead of entering")
		return nil, m.Reconcile()
	}

	// Patience pause before acting on what may be transient noise.
	m.logger.Info().Dur("hold", m.cfg.EntryHold).Str("kind", string(sig.Kind)).
		Msg("signal accepted, holding before entry")
	if err := m.holdoff.Wait(ctx, m.cfg.EntryHold); err != nil {
		return nil, err
	}

	// The pause is long enough for the world to change; abort if a position
	// appeared externally in the meantime.
	broker, err = m.client.GetOpenPosition(m.cfg.Symbol)
	if err != nil {
		return nil, fmt.Errorf("post-hold position check: %w", err)
	}
	if broker != nil {
		m.logger.Warn().Msg("position appeared during entry hold, aborting entry")
		return nil, m.Reconcile()
	}

	balance, err := m.client.GetAccountBalance()
	if err != nil {
		return nil, fmt.Errorf("balance fetch: %w", err)
	}
	exposure := m.sizer.Exposure(balance)

	side := "BUY"
	if direction < 0 {
		side = "SELL"
	}

	// Quantity is sized off the snapshot price; the actual fill price only
	// shifts the quantity rounding, not the exposure.
	quantity, err := m.sizer.Quantity(exposure, refPrice)
	if err != nil {
		return nil, err
	}

	m.pos = Position{State: StateOpening, Direction: direction}

	fill, err := m.client.PlaceMarketOrder(m.cfg.Symbol, side, quantity)
	if err != nil {
		m.pos = Position{State: StateFlat}
		if exchange.IsRejection(err) {
			m.holdoff.Set(holdoffEntry, m.cfg.EntryCooldown)
			m.logger.Warn().Err(err).Dur("cooldown", m.cfg.EntryCooldown).
				Msg("entry rejected by gateway, cooling down")
			return nil, nil
		}
		return nil, fmt.Errorf("entry order: %w", err)
	}

	notional := m.sizer.Notional(exposure)
	m.pos = Position{
		State:             StateOpen,
		Direction:         direction,
		EntryPrice:        fill.Price,
		Notional:          notional,
		SizeUnits:         quantity,
		Leverage:          m.sizer.Leverage(),
		EntryTime:         m.clock.Now(),
		Ticket:            fill.Ticket,
		PeakUnrealizedPnL: 0,
	}

	m.logger.Info().
		Int("direction", direction).
		Float64("entry_price", fill.Price).
		Float64("quantity", quantity).
		Float64("notional", notional).
		Msg("position opened")

	return &OpenReport{
		Direction:  direction,
		Quantity:   quantity,
		EntryPrice: fill.Price,
		Notional:   notional,
		Target:     m.cfg.TakeProfitUSD,
		Signal:     sig,
	}, nil
}

// Evaluate runs the per-cycle risk checks for an open position and closes
// it when a trigger fires, in priority order: take-profit, stop-loss, time
// exit. While a previous close is still unconfirmed (CLOSING) it is retried
// here; a stuck open position must never be silently abandoned.
func (m *Manager) Evaluate(currentPrice float64) (*CloseResult, error) {
	switch m.pos.State {
	case StateClosing:
		return m.submitClose(currentPrice, m.pendingClose)
	case StateOpen:
		// fall through to risk evaluation
	default:
		return nil, nil
	}

	unrealized := Unrealized(&m.pos, currentPrice)
	m.tracker.UpdatePeak(&m.pos, unrealized)

	var reason CloseReason
	switch {
	case unrealized >= m.cfg.TakeProfitUSD:
		reason = CloseTargetHit
	case unrealized <= -m.cfg.MaxLossUSD:
		reason = CloseStopLoss
	case m.clock.Now().Sub(m.pos.EntryTime) > m.cfg.MaxHold:
		reason = CloseTimeExit
	default:
		return nil, nil
	}

	m.logger.Info().
		Str("reason", string(reason)).
		Float64("unrealized", unrealized).
		Float64("peak", m.pos.PeakUnrealizedPnL).
		Msg("exit trigger fired")

	return m.submitClose(currentPrice, reason)
}

// CloseNow forces an orderly close, used at shutdown while a position is
// still open.
func (m *Manager) CloseNow(currentPrice float64) (*CloseResult, error) {
	if m.pos.State != StateOpen && m.pos.State != StateClosing {
		return nil, nil
	}
	reason := m.pendingClose
	if reason == "" {
		reason = CloseManual
	}
	return m.submitClose(currentPrice, reason)
}

func (m *Manager) submitClose(currentPrice float64, reason CloseReason) (*CloseResult, error) {
	if reason == "" {
		reason = CloseManual
	}
	m.pos.State = StateClosing
	m.pendingClose = reason

	fill, err := m.client.ClosePosition(m.cfg.Symbol, m.pos.Ticket, m.pos.SizeUnits)
	if err != nil {
		if exchange.IsRejection(err) {
			// A rejected close usually means the broker no longer holds the
			// position (liquidated or closed out of band). Defer to its view
			// instead of retrying an unwinnable order forever.
			m.logger.Warn().Err(err).Str("reason", string(reason)).
				Msg("close rejected, reconciling against broker state")
			if rerr := m.Reconcile(); rerr == nil && m.pos.State == StateFlat {
				return nil, nil
			}
		}
		// Stay in CLOSING; the next cycle retries. This is the single most
		// dangerous state and it must stay visible.
		m.logger.Error().Err(err).Str("reason", string(reason)).
			Msg("close failed, will retry next cycle")
		return nil, fmt.Errorf("close order: %w", err)
	}

	exitPrice := fill.Price
	if exitPrice == 0 {
		exitPrice = currentPrice
	}

	trade := m.tracker.RecordClose(&m.pos, exitPrice, m.clock.Now(), reason, m.cfg.TakeProfitUSD)
	m.pos = Position{State: StateFlat}
	m.pendingClose = ""

	m.logger.Info().
		Float64("exit_price", exitPrice).
		Float64("pnl", trade.PnL).
		Str("reason", string(reason)).
		Dur("held", trade.HoldDuration).
		Msg("position closed")

	return &CloseResult{Trade: trade}, nil
}
