package exchange

// Client defines the exchange operations the engine depends on: the market
// snapshot feed and the execution gateway. Both the REST client and the mock
// implement it so the engine can run against simulated data in dry runs.
type Client interface {
	// FetchSnapshot returns recent ticks, candles and depth for the symbol.
	// Partial data (e.g. an empty book) is not an error; an unknown symbol is.
	FetchSnapshot(symbol string, tickLookback, candleLookback int) (*Snapshot, error)

	// PlaceMarketOrder submits a market order. side is "BUY" or "SELL".
	// Returns *RejectedError when the exchange declines the order.
	PlaceMarketOrder(symbol, side string, quantity float64) (*Fill, error)

	// ClosePosition submits an offsetting market order for an open ticket.
	ClosePosition(symbol string, ticket int64, quantity float64) (*Fill, error)

	// GetOpenPosition returns the broker's view of the open position for the
	// symbol, or nil when flat. The broker is the source of truth: local
	// state defers to this on any disagreement.
	GetOpenPosition(symbol string) (*BrokerPosition, error)

	// GetAccountBalance returns the free quote-currency balance.
	GetAccountBalance() (float64, error)
}

// Ensure both implementations satisfy the interface.
var _ Client = (*RESTClient)(nil)
var _ Client = (*MockClient)(nil)
