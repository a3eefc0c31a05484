package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// TelegramClient posts alerts to a Telegram chat through the Bot API sendMessage method.
type TelegramClient struct {
	BotToken   string
	ChatID     string
	BaseURL    string
	HTTPClient *http.Client
}

// NewTelegramClient returns a client for the given bot token and chat. baseURL defaults to https://api.telegram.org.
func NewTelegramClient(botToken, chatID, baseURL string) *TelegramClient {
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &TelegramClient{
		BotToken:   botToken,
		ChatID:     chatID,
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Send posts text (HTML parse mode) to the configured chat. Does not log the bot token.
func (c *TelegramClient) Send(ctx context.Context, text string) error {
	if c.BotToken == "" || c.ChatID == "" {
		return errors.New("telegram: bot token or chat id not configured")
	}
	body := map[string]interface{}{
		"chat_id":                  c.ChatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", c.BaseURL, c.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: %w", redact(err, c.BotToken))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}

// redact strips the bot token from transport errors, which embed the request URL.
func redact(err error, token string) error {
	if token == "" {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), token, "***"))
}
