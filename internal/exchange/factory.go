package exchange

import (
	"github.com/rs/zerolog"
)

// Options selects which client implementation NewFromOptions returns.
type Options struct {
	APIKey    string
	SecretKey string
	BaseURL   string
	WSBaseURL string
	MockMode  bool
	MockSeed  int64
	UseStream bool
	Symbol    string
}

// NewFromOptions builds the exchange client for the configured mode. In mock
// mode no network access happens at all; otherwise a REST client is created
// and, when UseStream is set, a websocket tick stream is attached and
// started.
func NewFromOptions(opts Options, logger zerolog.Logger) Client {
	if opts.MockMode {
		seed := opts.MockSeed
		if seed == 0 {
			seed = 42
		}
		logger.Info().Int64("seed", seed).Msg("exchange running in mock mode")
		return NewMockClient(seed)
	}

	client := NewRESTClient(opts.APIKey, opts.SecretKey, opts.BaseURL, logger)
	if opts.UseStream && opts.WSBaseURL != "" {
		stream := NewTickStream(opts.WSBaseURL, opts.Symbol, 1000, logger)
		stream.Start()
		client.AttachStream(stream)
	}
	return client
}
