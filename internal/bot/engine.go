// Package bot runs the trading engine: a single-threaded cooperative
// polling loop over fetch → detect → validate → act. No concurrent cycles
// ever execute; the position state is only touched from this loop.
package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"contrarian-trading-bot/internal/analysis"
	"contrarian-trading-bot/internal/events"
	"contrarian-trading-bot/internal/exchange"
	"contrarian-trading-bot/internal/patterns"
	"contrarian-trading-bot/internal/position"
	"contrarian-trading-bot/internal/scheduler"
)

// Params holds the engine's cycle parameters.
type Params struct {
	Symbol            string
	PollInterval      time.Duration
	TickLookback      int
	CandleLookback    int
	BaseThreshold     float64
	ThresholdLookback int
}

// alertAfterFailures is how many consecutive cycle faults pass before the
// operator is alerted about sustained connectivity loss.
const alertAfterFailures = 5

// Engine drives the strategy. It is constructed once with injected
// collaborators and owns no global state.
type Engine struct {
	params    Params
	client    exchange.Client
	detector  *patterns.Detector
	validator *patterns.Validator
	manager   *position.Manager
	bus       *events.Bus
	clock     scheduler.Clock
	holdoff   *scheduler.Holdoff
	logger    zerolog.Logger

	consecutiveFailures int
	alerted             bool
	lastSignal          patterns.Signal
	lastThreshold       float64
	lastRegime          analysis.Regime

	// status is the only engine state read from outside the loop goroutine
	statusMu sync.RWMutex
	status   Status
}

// NewEngine wires the engine together.
func NewEngine(
	params Params,
	client exchange.Client,
	detector *patterns.Detector,
	validator *patterns.Validator,
	manager *position.Manager,
	bus *events.Bus,
	clock scheduler.Clock,
	logger zerolog.Logger,
) *Engine {
	return &Engine{
		params:    params,
		client:    client,
		detector:  detector,
		validator: validator,
		manager:   manager,
		bus:       bus,
		clock:     clock,
		holdoff:   scheduler.NewHoldoff(clock),
		logger:    logger,
	}
}

// Run executes poll cycles until the context is cancelled, then attempts an
// orderly close of any open position and publishes the session summary. A
// fault inside one cycle never terminates the loop: it is caught here,
// logged and followed by a short backoff.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.reconcileAtStartup(ctx); err != nil {
		return err
	}
	e.bus.Publish(events.TypeReconciled, e.manager.Position())

	for {
		if ctx.Err() != nil {
			break
		}

		err := e.safeCycle(ctx)
		e.publishStatus()
		if ctx.Err() != nil {
			break
		}

		sleep := e.params.PollInterval
		if err != nil {
			e.consecutiveFailures++
			e.logger.Error().Err(err).Int("consecutive", e.consecutiveFailures).
				Msg("cycle failed")
			if e.consecutiveFailures == alertAfterFailures && !e.alerted {
				e.alerted = true
				e.bus.Publish(events.TypeEngineError, fmt.Sprintf(
					"%d consecutive cycle failures, last: %v", e.consecutiveFailures, err))
			}
			sleep = e.backoff()
		} else {
			e.consecutiveFailures = 0
			e.alerted = false
		}

		if err := e.holdoff.Wait(ctx, sleep); err != nil {
			break
		}
	}

	e.shutdown()
	return nil
}

// reconcileAtStartup retries reconciliation with the cycle backoff until it
// succeeds or the context ends. Connectivity loss at boot is transient like
// any other cycle fault and must not terminate the process.
func (e *Engine) reconcileAtStartup(ctx context.Context) error {
	for {
		err := e.manager.Reconcile()
		if err == nil {
			e.consecutiveFailures = 0
			return nil
		}
		e.consecutiveFailures++
		e.logger.Error().Err(err).Int("consecutive", e.consecutiveFailures).
			Msg("startup reconcile failed, retrying")
		if e.holdoff.Wait(ctx, e.backoff()) != nil {
			return fmt.Errorf("startup reconcile: %w", err)
		}
	}
}

// safeCycle runs one cycle, converting a panic into a cycle error so a
// single bad snapshot cannot take the loop down.
func (e *Engine) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()
	return e.cycle(ctx)
}

func (e *Engine) cycle(ctx context.Context) error {
	snap, err := e.client.FetchSnapshot(e.params.Symbol, e.params.TickLookback, e.params.CandleLookback)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	threshold := analysis.AdaptiveThreshold(snap.Candles, e.params.BaseThreshold, e.params.ThresholdLookback)
	regime, vol := analysis.DetectRegime(snap.Candles, e.params.ThresholdLookback)
	e.lastThreshold = threshold
	e.lastRegime = regime

	e.logger.Debug().
		Float64("threshold", threshold).
		Str("regime", string(regime)).
		Float64("volatility", vol).
		Int("ticks", len(snap.Ticks)).
		Int("candles", len(snap.Candles)).
		Msg("cycle snapshot")

	pos := e.manager.Position()
	if pos.State == position.StateOpen || pos.State == position.StateClosing {
		return e.managePosition(snap)
	}

	return e.huntForEntry(ctx, snap, threshold)
}

// managePosition runs the risk evaluation for the open position. A failed
// close is reported and retried next cycle rather than propagated as a
// connectivity fault.
func (e *Engine) managePosition(snap *exchange.Snapshot) error {
	price := snap.LastPrice()
	if price == 0 {
		return fmt.Errorf("no price in snapshot while position open")
	}

	result, err := e.manager.Evaluate(price)
	if err != nil {
		e.bus.Publish(events.TypeCloseRetry, err.Error())
		if !exchange.IsRejection(err) {
			return err
		}
		return nil
	}
	if result != nil {
		e.bus.Publish(events.TypePositionClosed, result.Trade)
	}
	return nil
}

// huntForEntry detects and validates a pattern, then hands it to the state
// machine. A pattern failing validation is dropped for the cycle; that is a
// normal no-trade outcome, not an error.
func (e *Engine) huntForEntry(ctx context.Context, snap *exchange.Snapshot, threshold float64) error {
	sig := e.detector.Detect(snap, threshold)
	e.lastSignal = sig
	if !sig.Fired() {
		return nil
	}

	res := e.validator.Validate(sig, snap)
	e.logger.Info().
		Str("kind", string(sig.Kind)).
		Int("direction", sig.Direction).
		Float64("confidence", sig.Confidence).
		Int("confirmations", res.Confirmations).
		Bool("passed", res.Passed).
		Msg("pattern detected")

	if !res.Passed {
		// validation failed: the cycle's output is forced to the null signal
		e.lastSignal = patterns.Signal{}
		e.bus.Publish(events.TypeSignalRejected, res)
		return nil
	}
	e.bus.Publish(events.TypeSignalDetected, sig)

	report, err := e.manager.TryOpen(ctx, sig, snap.LastPrice())
	if err != nil {
		return err
	}
	if report != nil {
		e.bus.Publish(events.TypePositionOpened, report)
	}
	return nil
}

// backoff grows with consecutive failures, capped at one minute.
func (e *Engine) backoff() time.Duration {
	d := time.Duration(e.consecutiveFailures) * 2 * time.Second
	if d > time.Minute {
		d = time.Minute
	}
	if d < time.Second {
		d = time.Second
	}
	return d
}

// shutdown attempts an orderly close of any open position, then publishes
// the session summary.
func (e *Engine) shutdown() {
	pos := e.manager.Position()
	if pos.State == position.StateOpen || pos.State == position.StateClosing {
		e.logger.Warn().Msg("shutdown with open position, attempting orderly close")

		price := pos.EntryPrice
		if snap, err := e.client.FetchSnapshot(e.params.Symbol, 1, 1); err == nil && snap.LastPrice() != 0 {
			price = snap.LastPrice()
		}

		result, err := e.manager.CloseNow(price)
		if err != nil {
			e.logger.Error().Err(err).Msg("orderly close failed, position may still be open")
			e.bus.Publish(events.TypeEngineError,
				fmt.Sprintf("shutdown close failed, manual intervention required: %v", err))
		} else if result != nil {
			e.bus.Publish(events.TypePositionClosed, result.Trade)
		}
	}

	e.bus.Publish(events.TypeSessionSummary, e.manager.Tracker().Summarize())
	e.logger.Info().Msg("engine stopped")
}

// Status is a read-only view for the API server.
type Status struct {
	Symbol        string            `json:"symbol"`
	Position      position.Position `json:"position"`
	LastSignal    patterns.Signal   `json:"last_signal"`
	LastThreshold float64           `json:"last_threshold"`
	LastRegime    analysis.Regime   `json:"last_regime"`
	Balance       float64           `json:"balance"`
}

// publishStatus refreshes the snapshot that Status serves. Called from the
// loop goroutine only.
func (e *Engine) publishStatus() {
	s := Status{
		Symbol:        e.params.Symbol,
		Position:      e.manager.Position(),
		LastSignal:    e.lastSignal,
		LastThreshold: e.lastThreshold,
		LastRegime:    e.lastRegime,
		Balance:       e.manager.Tracker().Balance(),
	}
	e.statusMu.Lock()
	e.status = s
	e.statusMu.Unlock()
}

// Status reports the engine's last published state. Safe to call from the
// API server's goroutines.
func (e *Engine) Status() Status {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.status
}
