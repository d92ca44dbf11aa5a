package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"contrarian-trading-bot/internal/events"
	"contrarian-trading-bot/internal/exchange"
	"contrarian-trading-bot/internal/patterns"
	"contrarian-trading-bot/internal/position"
	"contrarian-trading-bot/internal/risk"
	"contrarian-trading-bot/internal/scheduler"
)

func newTestEngine(t *testing.T, client exchange.Client) (*Engine, *events.Bus, *position.Manager) {
	t.Helper()

	sizer, err := risk.NewSizer(risk.Config{Method: risk.MethodFixed, FixedAmountUSD: 100, LotStep: 0.001})
	if err != nil {
		t.Fatal(err)
	}
	clock := scheduler.RealClock{}
	manager := position.NewManager(position.Config{
		Symbol:        "BTCUSDT",
		TakeProfitUSD: 1e9, // wide bounds so the random walk never triggers an exit
		MaxLossUSD:    1e9,
		EntryHold:     time.Millisecond,
	}, client, sizer, position.NewTracker(10000), clock, zerolog.Nop())

	bus := events.NewBus()
	engine := NewEngine(Params{
		Symbol:            "BTCUSDT",
		PollInterval:      5 * time.Millisecond,
		TickLookback:      200,
		CandleLookback:    30,
		BaseThreshold:     1.5,
		ThresholdLookback: 20,
	}, client, patterns.NewDetector(zerolog.Nop()), patterns.NewValidator(patterns.ValidatorConfig{}),
		manager, bus, clock, zerolog.Nop())

	return engine, bus, manager
}

// eventRecorder collects bus events thread-safely; subscribers run on the
// engine goroutine while assertions run on the test goroutine.
type eventRecorder struct {
	mu   sync.Mutex
	seen map[events.Type]int
}

func recordEvents(bus *events.Bus) *eventRecorder {
	r := &eventRecorder{seen: make(map[events.Type]int)}
	bus.SubscribeAll(func(ev events.Event) {
		r.mu.Lock()
		r.seen[ev.Type]++
		r.mu.Unlock()
	})
	return r
}

func (r *eventRecorder) count(t events.Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen[t]
}

func TestEngine_RunsAndStopsCleanly(t *testing.T) {
	client := exchange.NewMockClient(1)
	engine, bus, _ := newTestEngine(t, client)
	rec := recordEvents(bus)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := engine.Run(ctx); err != nil {
		t.Fatalf("Run returned %v", err)
	}

	if rec.count(events.TypeReconciled) != 1 {
		t.Error("expected a startup reconcile event")
	}
	if rec.count(events.TypeSessionSummary) != 1 {
		t.Error("expected a session summary on shutdown")
	}

	status := engine.Status()
	if status.Symbol != "BTCUSDT" {
		t.Errorf("unexpected status symbol %q", status.Symbol)
	}
	if status.Balance == 0 {
		t.Error("expected the status to carry the tracked balance")
	}
}

func TestEngine_ClosesOpenPositionOnShutdown(t *testing.T) {
	client := exchange.NewMockClient(1)
	client.SetPrice("BTCUSDT", 100)
	if _, err := client.PlaceMarketOrder("BTCUSDT", "SELL", 1); err != nil {
		t.Fatal(err)
	}

	engine, bus, manager := newTestEngine(t, client)
	rec := recordEvents(bus)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := engine.Run(ctx); err != nil {
		t.Fatalf("Run returned %v", err)
	}

	if manager.Position().State != position.StateFlat {
		t.Errorf("expected the adopted position closed at shutdown, got %v", manager.Position().State)
	}
	if rec.count(events.TypePositionClosed) != 1 {
		t.Error("expected a position-closed event from the shutdown close")
	}

	broker, _ := client.GetOpenPosition("BTCUSDT")
	if broker != nil {
		t.Errorf("broker should be flat after shutdown, got %+v", broker)
	}
}

// panicClient blows up on snapshot fetch to exercise the cycle recovery.
type panicClient struct{}

func (panicClient) FetchSnapshot(string, int, int) (*exchange.Snapshot, error) {
	panic("corrupt snapshot")
}
func (panicClient) PlaceMarketOrder(string, string, float64) (*exchange.Fill, error) {
	return nil, nil
}
func (panicClient) ClosePosition(string, int64, float64) (*exchange.Fill, error) {
	return nil, nil
}
func (panicClient) GetOpenPosition(string) (*exchange.BrokerPosition, error) { return nil, nil }
func (panicClient) GetAccountBalance() (float64, error)                      { return 0, nil }

func TestEngine_CyclePanicBecomesError(t *testing.T) {
	engine, _, _ := newTestEngine(t, panicClient{})

	err := engine.safeCycle(context.Background())
	if err == nil {
		t.Fatal("expected the panic converted into a cycle error")
	}
}

// flakyStartClient fails position lookups a fixed number of times before
// recovering, like a gateway that is briefly unreachable at boot.
type flakyStartClient struct {
	*exchange.MockClient
	failures int
	calls    int
}

func (c *flakyStartClient) GetOpenPosition(symbol string) (*exchange.BrokerPosition, error) {
	c.calls++
	if c.calls <= c.failures {
		return nil, errors.New("connection refused")
	}
	return c.MockClient.GetOpenPosition(symbol)
}

func TestEngine_StartupReconcileRetriesTransientFailure(t *testing.T) {
	client := &flakyStartClient{MockClient: exchange.NewMockClient(1), failures: 2}
	engine, _, _ := newTestEngine(t, client)

	fc := scheduler.NewFakeClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	engine.clock = fc
	engine.holdoff = scheduler.NewHoldoff(fc)

	done := make(chan error, 1)
	go func() { done <- engine.reconcileAtStartup(context.Background()) }()

	for i := 0; i < 10; i++ {
		time.Sleep(10 * time.Millisecond)
		fc.Advance(time.Minute)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected the retries to recover, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("startup reconcile did not finish")
	}
	if client.calls != 3 {
		t.Errorf("expected two failures then a success, got %d calls", client.calls)
	}
	if engine.consecutiveFailures != 0 {
		t.Error("failure counter must reset after a successful reconcile")
	}
}

func TestEngine_StartupReconcileStopsOnCancel(t *testing.T) {
	client := &flakyStartClient{MockClient: exchange.NewMockClient(1), failures: 1 << 30}
	engine, _, _ := newTestEngine(t, client)

	fc := scheduler.NewFakeClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	engine.clock = fc
	engine.holdoff = scheduler.NewHoldoff(fc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.reconcileAtStartup(ctx) }()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected an error once the context ends")
		}
	case <-time.After(time.Second):
		t.Fatal("startup reconcile did not stop on cancellation")
	}
}

func TestEngine_BackoffGrowsAndCaps(t *testing.T) {
	engine, _, _ := newTestEngine(t, exchange.NewMockClient(1))

	engine.consecutiveFailures = 1
	if got := engine.backoff(); got != 2*time.Second {
		t.Errorf("expected 2s after one failure, got %v", got)
	}
	engine.consecutiveFailures = 10
	if got := engine.backoff(); got != 20*time.Second {
		t.Errorf("expected 20s after ten failures, got %v", got)
	}
	engine.consecutiveFailures = 1000
	if got := engine.backoff(); got != time.Minute {
		t.Errorf("expected the one-minute cap, got %v", got)
	}
}
