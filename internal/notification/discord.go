package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DiscordConfig holds the webhook settings.
type DiscordConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

// DiscordNotifier delivers messages via a Discord webhook.
type DiscordNotifier struct {
	config     DiscordConfig
	httpClient *http.Client
}

// NewDiscordNotifier creates a Discord channel.
func NewDiscordNotifier(config DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		config:     config,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DiscordNotifier) Name() string { return "discord" }

func (d *DiscordNotifier) Send(msg Message) error {
	payload, err := json.Marshal(map[string]string{
		"content": fmt.Sprintf("**%s**\n%s", msg.Title, msg.Body),
	})
	if err != nil {
		return err
	}

	resp, err := d.httpClient.Post(d.config.WebhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return classifyHTTPStatus(resp.StatusCode)
}
