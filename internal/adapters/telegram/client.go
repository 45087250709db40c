package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	telegramAPIURL = "https://api.telegram.org"

	// MaxMessageLength is the longest text sent in one message. Telegram
	// allows 4096 characters; the margin leaves room for entities.
	MaxMessageLength = 4000
)

// ErrConflict is returned when Telegram reports that another process is
// already polling updates for the same bot token.
var ErrConflict = errors.New("another bot instance is polling this token")

// Client is a Telegram Bot API client
type Client struct {
	baseURL    string
	botToken   string
	httpClient *http.Client
}

// NewClient creates a client for the public Bot API.
func NewClient(botToken string) *Client {
	return NewClientWithBaseURL(telegramAPIURL, botToken)
}

// NewClientWithBaseURL creates a client against a custom API endpoint,
// such as a local Bot API server or a test server.
func NewClientWithBaseURL(baseURL, botToken string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		botToken: botToken,
		// Must stay above the longest getUpdates poll timeout.
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

// SendMessageRequest represents a Telegram sendMessage request
type SendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// Result represents the message result
type Result struct {
	MessageID int64 `json:"message_id"`
	Chat      *Chat `json:"chat,omitempty"`
}

// Update represents a Telegram update from getUpdates
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message represents a Telegram message
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      *Chat  `json:"chat"`
	Date      int64  `json:"date"`
	Text      string `json:"text,omitempty"`
}

// User represents a Telegram user
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Chat represents a Telegram chat
type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
}

// apiResponse is the envelope shared by all Bot API methods.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
}

// GetUpdates retrieves updates using long polling
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout int) ([]*Update, error) {
	params := url.Values{}
	params.Set("offset", strconv.FormatInt(offset, 10))
	params.Set("timeout", strconv.Itoa(timeout))
	params.Set("allowed_updates", `["message"]`)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.methodURL("getUpdates")+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var updates []*Update
	if err := c.do(httpReq, &updates); err != nil {
		return nil, fmt.Errorf("failed to get updates: %w", err)
	}
	return updates, nil
}

// SendMessage sends a message to a chat
func (c *Client) SendMessage(ctx context.Context, chatID int64, text, parseMode string) (*Result, error) {
	body, err := json.Marshal(SendMessageRequest{
		ChatID:    chatID,
		Text:      text,
		ParseMode: parseMode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var result Result
	if err := c.do(httpReq, &result); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	return &result, nil
}

// GetMe returns the bot's own user record.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.methodURL("getMe"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var me User
	if err := c.do(httpReq, &me); err != nil {
		return nil, fmt.Errorf("failed to get bot info: %w", err)
	}
	return &me, nil
}

// CheckSingleton issues a zero-timeout getUpdates call and returns
// ErrConflict when another instance holds the polling session.
func (c *Client) CheckSingleton(ctx context.Context) error {
	_, err := c.GetUpdates(ctx, 0, 0)
	if errors.Is(err, ErrConflict) {
		return ErrConflict
	}
	return err
}

func (c *Client) methodURL(method string) string {
	return c.baseURL + "/bot" + c.botToken + "/" + method
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}

	if !envelope.OK {
		if envelope.ErrorCode == http.StatusConflict || resp.StatusCode == http.StatusConflict {
			return fmt.Errorf("%w: %s", ErrConflict, envelope.Description)
		}
		return fmt.Errorf("telegram API error: %s (code: %d)", envelope.Description, envelope.ErrorCode)
	}

	if out == nil || len(envelope.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	return nil
}
