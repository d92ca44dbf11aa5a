package notification

import (
	"contrarian-trading-bot/internal/events"
	"contrarian-trading-bot/internal/position"
)

// Observe subscribes the manager to the engine's lifecycle events. Bus
// subscribers run on the engine goroutine, so every send is dispatched on
// its own goroutine; a slow webhook must not delay the next risk cycle.
func (m *Manager) Observe(bus *events.Bus) {
	bus.Subscribe(events.TypePositionOpened, func(ev events.Event) {
		if rep, ok := ev.Data.(*position.OpenReport); ok {
			m.dispatch(func() { m.SendPositionOpened(rep) })
		}
	})
	bus.Subscribe(events.TypePositionClosed, func(ev events.Event) {
		if trade, ok := ev.Data.(position.ClosedTrade); ok {
			m.dispatch(func() { m.SendPositionClosed(trade) })
		}
	})
	bus.Subscribe(events.TypeSessionSummary, func(ev events.Event) {
		if summary, ok := ev.Data.(position.Summary); ok {
			m.dispatch(func() { m.SendSummary(summary) })
		}
	})
	bus.Subscribe(events.TypeEngineError, func(ev events.Event) {
		if msg, ok := ev.Data.(string); ok {
			m.dispatch(func() { m.SendAlert("Engine error", msg) })
		}
	})
}

func (m *Manager) dispatch(fn func()) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		fn()
	}()
}

// Wait blocks until every in-flight delivery has finished. Called once at
// shutdown so the session summary is not lost to process exit.
func (m *Manager) Wait() {
	m.wg.Wait()
}
