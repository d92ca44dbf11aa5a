package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// TelegramConfig holds Telegram bot credentials.
type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

// TelegramNotifier delivers messages via the Telegram bot API.
type TelegramNotifier struct {
	config     TelegramConfig
	httpClient *http.Client
}

// NewTelegramNotifier creates a Telegram channel.
func NewTelegramNotifier(config TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		config:     config,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Name() string { return "telegram" }

func (t *TelegramNotifier) Send(msg Message) error {
	text := fmt.Sprintf("*%s*\n%s", msg.Title, msg.Body)

	payload, err := json.Marshal(map[string]string{
		"chat_id":    t.config.ChatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.config.BotToken)
	resp, err := t.httpClient.Post(endpoint, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return classifyHTTPStatus(resp.StatusCode)
}

// classifyHTTPStatus maps an HTTP status to nil, a transient error or a
// permanent one. 4xx other than 429 will not recover by retrying.
func classifyHTTPStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("rate limited (status %d)", status)
	case status >= 400 && status < 500:
		return &PermanentError{Err: fmt.Errorf("status %d", status)}
	default:
		return fmt.Errorf("status %d", status)
	}
}
