// Package config loads the bot configuration: config.json as the base,
// overridden by environment variables (loaded from .env when present).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"contrarian-trading-bot/internal/logging"
	"contrarian-trading-bot/internal/notification"
	"contrarian-trading-bot/internal/patterns"
	"contrarian-trading-bot/internal/risk"
)

// Config is the full configuration surface. The trading core consumes these
// values; it does not own them.
type Config struct {
	Exchange     ExchangeConfig           `json:"exchange"`
	Trading      TradingConfig            `json:"trading"`
	Detection    DetectionConfig          `json:"detection"`
	Validation   patterns.ValidatorConfig `json:"validation"`
	Risk         risk.Config              `json:"risk"`
	Notification NotificationConfig       `json:"notification"`
	Logging      logging.Config           `json:"logging"`
	Server       ServerConfig             `json:"server"`
}

// ExchangeConfig holds connection settings.
type ExchangeConfig struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
	BaseURL   string `json:"base_url"`
	WSBaseURL string `json:"ws_base_url"`
	TestNet   bool   `json:"testnet"`
	MockMode  bool   `json:"mock_mode"` // simulated data, no network access
	UseStream bool   `json:"use_stream"`
}

// TradingConfig holds the position lifecycle parameters.
type TradingConfig struct {
	Symbol             string  `json:"symbol"`
	TakeProfitUSD      float64 `json:"take_profit_usd"`
	MaxLossUSD         float64 `json:"max_loss_usd"`
	MaxHoldSeconds     int     `json:"max_hold_seconds"`   // time-based exit ceiling
	EntryHoldSeconds   int     `json:"entry_hold_seconds"` // patience pause before entry
	CooldownSeconds    int     `json:"cooldown_seconds"`   // after an entry rejection
	ShortsOnly         bool    `json:"shorts_only"`
	PollSeconds        int     `json:"poll_seconds"`
	TickLookback       int     `json:"tick_lookback"`
	CandleLookback     int     `json:"candle_lookback"`
	MinEntryConfidence float64 `json:"min_entry_confidence"`
}

// DetectionConfig holds the adaptive threshold settings.
type DetectionConfig struct {
	BaseThreshold     float64 `json:"base_threshold"`
	ThresholdLookback int     `json:"threshold_lookback"`
}

// NotificationConfig wires the delivery channels.
type NotificationConfig struct {
	Enabled  bool                        `json:"enabled"`
	Telegram notification.TelegramConfig `json:"telegram"`
	Discord  notification.DiscordConfig  `json:"discord"`
}

// ServerConfig holds the status API settings.
type ServerConfig struct {
	Enabled        bool   `json:"enabled"`
	Host           string `json:"host"`
	Port           int    `json:"port"`
	AllowedOrigins string `json:"allowed_origins"`
}

// Load reads config.json when present, then applies environment overrides.
// A missing config file is not an error; the environment plus defaults is a
// complete configuration.
func Load() (*Config, error) {
	// .env is a developer convenience; absence is fine
	_ = godotenv.Load()

	cfg, err := loadFromFile("config.json")
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// Exchange
	cfg.Exchange.APIKey = getEnvOrDefault("EXCHANGE_API_KEY", cfg.Exchange.APIKey)
	cfg.Exchange.SecretKey = getEnvOrDefault("EXCHANGE_SECRET_KEY", cfg.Exchange.SecretKey)
	cfg.Exchange.BaseURL = getEnvOrDefault("EXCHANGE_BASE_URL", cfg.Exchange.BaseURL)
	cfg.Exchange.WSBaseURL = getEnvOrDefault("EXCHANGE_WS_BASE_URL", cfg.Exchange.WSBaseURL)
	cfg.Exchange.TestNet = getEnvBool("EXCHANGE_TESTNET", cfg.Exchange.TestNet)
	cfg.Exchange.MockMode = getEnvBool("MOCK_MODE", cfg.Exchange.MockMode)
	cfg.Exchange.UseStream = getEnvBool("EXCHANGE_USE_STREAM", cfg.Exchange.UseStream)

	// Trading
	cfg.Trading.Symbol = getEnvOrDefault("TRADING_SYMBOL", cfg.Trading.Symbol)
	cfg.Trading.TakeProfitUSD = getEnvFloat("TRADING_TAKE_PROFIT_USD", cfg.Trading.TakeProfitUSD)
	cfg.Trading.MaxLossUSD = getEnvFloat("TRADING_MAX_LOSS_USD", cfg.Trading.MaxLossUSD)
	cfg.Trading.MaxHoldSeconds = getEnvInt("TRADING_MAX_HOLD_SECONDS", cfg.Trading.MaxHoldSeconds)
	cfg.Trading.EntryHoldSeconds = getEnvInt("TRADING_ENTRY_HOLD_SECONDS", cfg.Trading.EntryHoldSeconds)
	cfg.Trading.CooldownSeconds = getEnvInt("TRADING_COOLDOWN_SECONDS", cfg.Trading.CooldownSeconds)
	cfg.Trading.ShortsOnly = getEnvBool("TRADING_SHORTS_ONLY", cfg.Trading.ShortsOnly)
	cfg.Trading.PollSeconds = getEnvInt("TRADING_POLL_SECONDS", cfg.Trading.PollSeconds)
	cfg.Trading.TickLookback = getEnvInt("TRADING_TICK_LOOKBACK", cfg.Trading.TickLookback)
	cfg.Trading.CandleLookback = getEnvInt("TRADING_CANDLE_LOOKBACK", cfg.Trading.CandleLookback)
	cfg.Trading.MinEntryConfidence = getEnvFloat("TRADING_MIN_ENTRY_CONFIDENCE", cfg.Trading.MinEntryConfidence)

	// Detection
	cfg.Detection.BaseThreshold = getEnvFloat("DETECTION_BASE_THRESHOLD", cfg.Detection.BaseThreshold)
	cfg.Detection.ThresholdLookback = getEnvInt("DETECTION_THRESHOLD_LOOKBACK", cfg.Detection.ThresholdLookback)

	// Validation
	cfg.Validation.MinConfidence = getEnvFloat("VALIDATION_MIN_CONFIDENCE", cfg.Validation.MinConfidence)
	cfg.Validation.MinVolumeRatio = getEnvFloat("VALIDATION_MIN_VOLUME_RATIO", cfg.Validation.MinVolumeRatio)
	cfg.Validation.MinImbalance = getEnvFloat("VALIDATION_MIN_IMBALANCE", cfg.Validation.MinImbalance)

	// Risk
	cfg.Risk.Method = getEnvOrDefault("RISK_METHOD", cfg.Risk.Method)
	cfg.Risk.FixedAmountUSD = getEnvFloat("RISK_FIXED_AMOUNT_USD", cfg.Risk.FixedAmountUSD)
	cfg.Risk.BalanceFraction = getEnvFloat("RISK_BALANCE_FRACTION", cfg.Risk.BalanceFraction)
	cfg.Risk.Leverage = getEnvFloat("RISK_LEVERAGE", cfg.Risk.Leverage)

	// Notification
	cfg.Notification.Enabled = getEnvBool("NOTIFICATIONS_ENABLED", cfg.Notification.Enabled)
	cfg.Notification.Telegram.Enabled = getEnvBool("TELEGRAM_ENABLED", cfg.Notification.Telegram.Enabled)
	cfg.Notification.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.Notification.Telegram.BotToken)
	cfg.Notification.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.Notification.Telegram.ChatID)
	cfg.Notification.Discord.Enabled = getEnvBool("DISCORD_ENABLED", cfg.Notification.Discord.Enabled)
	cfg.Notification.Discord.WebhookURL = getEnvOrDefault("DISCORD_WEBHOOK_URL", cfg.Notification.Discord.WebhookURL)

	// Logging
	cfg.Logging.Level = getEnvOrDefault("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Output = getEnvOrDefault("LOG_OUTPUT", cfg.Logging.Output)
	cfg.Logging.JSONFormat = getEnvBool("LOG_JSON", cfg.Logging.JSONFormat)

	// Server
	cfg.Server.Enabled = getEnvBool("API_ENABLED", cfg.Server.Enabled)
	cfg.Server.Host = getEnvOrDefault("API_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("API_PORT", cfg.Server.Port)
	cfg.Server.AllowedOrigins = getEnvOrDefault("API_ALLOWED_ORIGINS", cfg.Server.AllowedOrigins)
}

func applyDefaults(cfg *Config) {
	if cfg.Exchange.BaseURL == "" {
		if cfg.Exchange.TestNet {
			cfg.Exchange.BaseURL = "https://testnet.binancefuture.com"
		} else {
			cfg.Exchange.BaseURL = "https://fapi.binance.com"
		}
	}
	if cfg.Exchange.WSBaseURL == "" {
		cfg.Exchange.WSBaseURL = "wss://fstream.binance.com"
	}

	if cfg.Trading.Symbol == "" {
		cfg.Trading.Symbol = "BTCUSDT"
	}
	if cfg.Trading.TakeProfitUSD <= 0 {
		cfg.Trading.TakeProfitUSD = 2.0
	}
	if cfg.Trading.MaxLossUSD <= 0 {
		cfg.Trading.MaxLossUSD = 10.0
	}
	if cfg.Trading.MaxHoldSeconds <= 0 {
		cfg.Trading.MaxHoldSeconds = 1800
	}
	if cfg.Trading.EntryHoldSeconds <= 0 {
		cfg.Trading.EntryHoldSeconds = 13
	}
	if cfg.Trading.CooldownSeconds <= 0 {
		cfg.Trading.CooldownSeconds = 60
	}
	if cfg.Trading.PollSeconds <= 0 {
		cfg.Trading.PollSeconds = 10
	}
	if cfg.Trading.TickLookback <= 0 {
		cfg.Trading.TickLookback = 200
	}
	if cfg.Trading.CandleLookback <= 0 {
		cfg.Trading.CandleLookback = 30
	}
	if cfg.Trading.MinEntryConfidence <= 0 {
		cfg.Trading.MinEntryConfidence = 0.5
	}

	if cfg.Detection.BaseThreshold <= 0 {
		cfg.Detection.BaseThreshold = 1.5
	}
	if cfg.Detection.ThresholdLookback <= 0 {
		cfg.Detection.ThresholdLookback = 20
	}

	if cfg.Risk.Method == "" {
		cfg.Risk.Method = risk.MethodFixed
	}
	if cfg.Risk.Method == risk.MethodFixed && cfg.Risk.FixedAmountUSD <= 0 {
		cfg.Risk.FixedAmountUSD = 100
	}
	if cfg.Risk.Leverage <= 0 {
		cfg.Risk.Leverage = 1
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.AllowedOrigins == "" {
		cfg.Server.AllowedOrigins = "*"
	}
}

func (c *Config) validate() error {
	if !c.Exchange.MockMode && (c.Exchange.APIKey == "" || c.Exchange.SecretKey == "") {
		return fmt.Errorf("config: exchange credentials required outside mock mode")
	}
	if c.Trading.CandleLookback < c.Detection.ThresholdLookback {
		return fmt.Errorf("config: candle_lookback (%d) must cover threshold_lookback (%d)",
			c.Trading.CandleLookback, c.Detection.ThresholdLookback)
	}
	return nil
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
