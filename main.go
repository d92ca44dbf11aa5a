package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contrarian-trading-bot/config"
	"contrarian-trading-bot/internal/api"
	"contrarian-trading-bot/internal/bot"
	"contrarian-trading-bot/internal/events"
	"contrarian-trading-bot/internal/exchange"
	"contrarian-trading-bot/internal/logging"
	"contrarian-trading-bot/internal/notification"
	"contrarian-trading-bot/internal/patterns"
	"contrarian-trading-bot/internal/position"
	"contrarian-trading-bot/internal/risk"
	"contrarian-trading-bot/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if err := logging.Setup(cfg.Logging); err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}
	logger := logging.Component("main")

	bus := events.NewBus()

	// Notification sinks observe the bus; delivery failures never reach the
	// trading path.
	notifier := notification.NewManager(logging.Component("notification"))
	if cfg.Notification.Enabled {
		if cfg.Notification.Telegram.Enabled {
			notifier.AddNotifier(notification.NewTelegramNotifier(cfg.Notification.Telegram))
		}
		if cfg.Notification.Discord.Enabled {
			notifier.AddNotifier(notification.NewDiscordNotifier(cfg.Notification.Discord))
		}
	}
	notifier.Observe(bus)

	client := exchange.NewFromOptions(exchange.Options{
		APIKey:    cfg.Exchange.APIKey,
		SecretKey: cfg.Exchange.SecretKey,
		BaseURL:   cfg.Exchange.BaseURL,
		WSBaseURL: cfg.Exchange.WSBaseURL,
		MockMode:  cfg.Exchange.MockMode,
		UseStream: cfg.Exchange.UseStream,
		Symbol:    cfg.Trading.Symbol,
	}, logging.Component("exchange"))

	sizer, err := risk.NewSizer(cfg.Risk)
	if err != nil {
		log.Fatalf("invalid risk configuration: %v", err)
	}

	balance, err := client.GetAccountBalance()
	if err != nil {
		logger.Warn().Err(err).Msg("could not fetch starting balance")
	}
	tracker := position.NewTracker(balance)

	clock := scheduler.RealClock{}
	manager := position.NewManager(position.Config{
		Symbol:             cfg.Trading.Symbol,
		TakeProfitUSD:      cfg.Trading.TakeProfitUSD,
		MaxLossUSD:         cfg.Trading.MaxLossUSD,
		MaxHold:            time.Duration(cfg.Trading.MaxHoldSeconds) * time.Second,
		EntryHold:          time.Duration(cfg.Trading.EntryHoldSeconds) * time.Second,
		EntryCooldown:      time.Duration(cfg.Trading.CooldownSeconds) * time.Second,
		ShortsOnly:         cfg.Trading.ShortsOnly,
		MinEntryConfidence: cfg.Trading.MinEntryConfidence,
	}, client, sizer, tracker, clock, logging.Component("position"))

	engine := bot.NewEngine(bot.Params{
		Symbol:            cfg.Trading.Symbol,
		PollInterval:      time.Duration(cfg.Trading.PollSeconds) * time.Second,
		TickLookback:      cfg.Trading.TickLookback,
		CandleLookback:    cfg.Trading.CandleLookback,
		BaseThreshold:     cfg.Detection.BaseThreshold,
		ThresholdLookback: cfg.Detection.ThresholdLookback,
	},
		client,
		patterns.NewDetector(logging.Component("patterns")),
		patterns.NewValidator(cfg.Validation),
		manager,
		bus,
		clock,
		logging.Component("engine"),
	)

	var server *api.Server
	if cfg.Server.Enabled {
		server = api.NewServer(api.Config{
			Host:           cfg.Server.Host,
			Port:           cfg.Server.Port,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		}, engine, tracker, bus, logging.Component("api"))
		server.Start()
	}

	// The interrupt is observed between cycles; the engine closes any open
	// position before returning.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("symbol", cfg.Trading.Symbol).
		Bool("mock", cfg.Exchange.MockMode).
		Bool("shorts_only", cfg.Trading.ShortsOnly).
		Float64("balance", balance).
		Msg("contrarian trading bot starting")

	if err := engine.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("engine terminated with error")
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		server.Stop(shutdownCtx)
		cancel()
	}
	notifier.Wait()
	logger.Info().Msg("shutdown complete")
}
