// Package telegram is the chat transport adapter: an outbound Bot API
// client for notifications and the inbound translation of webhook
// updates into normalized commands.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/motorpool/motorpool/internal/ports"
	"github.com/motorpool/motorpool/internal/service/logger"
)

// Client sends messages through the Bot API. It implements
// ports.Notifier; recipient is a chat id.
type Client struct {
	baseURL    string
	token      string
	logger     logger.Logger
	httpClient *http.Client
}

// NewClient creates a Bot API client for the given bot token.
func NewClient(token string, timeout time.Duration, log logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: "https://api.telegram.org",
		token:   token,
		logger:  log,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// WithBaseURL overrides the API host. Used in tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = baseURL
	return c
}

type inlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type replyMarkup struct {
	InlineKeyboard [][]inlineKeyboardButton `json:"inline_keyboard"`
}

type sendMessageRequest struct {
	ChatID      string       `json:"chat_id"`
	Text        string       `json:"text"`
	ReplyMarkup *replyMarkup `json:"reply_markup,omitempty"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// SendMessage delivers text to a chat, with actions rendered as an
// inline keyboard.
func (c *Client) SendMessage(ctx context.Context, recipient, text string, actions [][]ports.Action) error {
	payload := sendMessageRequest{
		ChatID: recipient,
		Text:   text,
	}
	if len(actions) > 0 {
		markup := &replyMarkup{}
		for _, row := range actions {
			var buttons []inlineKeyboardButton
			for _, a := range row {
				buttons = append(buttons, inlineKeyboardButton{Text: a.Label, CallbackData: a.Data})
			}
			markup.InlineKeyboard = append(markup.InlineKeyboard, buttons)
		}
		payload.ReplyMarkup = markup
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request failed: %w", err)
	}
	defer resp.Body.Close()

	var result apiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode telegram response: %w", err)
	}
	if !result.OK {
		c.logger.Warn(ctx, "Telegram rejected a message", map[string]interface{}{
			"chat_id":     recipient,
			"error_code":  result.ErrorCode,
			"description": result.Description,
		})
		return fmt.Errorf("telegram error %d: %s", result.ErrorCode, result.Description)
	}

	return nil
}

// AnswerCallback acknowledges a pressed inline button so the client
// stops showing a spinner.
func (c *Client) AnswerCallback(ctx context.Context, callbackID string) error {
	body, err := json.Marshal(map[string]string{"callback_query_id": callbackID})
	if err != nil {
		return fmt.Errorf("failed to encode callback answer: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/answerCallbackQuery", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request failed: %w", err)
	}
	defer resp.Body.Close()

	return nil
}

// ChatID renders a numeric chat id the way SendMessage expects it.
func ChatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
