package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dtroode/anonrelay-server/internal/model"
)

var _ model.Transport = (*Client)(nil)

// Client is a Bot API client implementing the relay's transport. All state
// mutating calls go through the JSON POST endpoints; images are uploaded as
// multipart form data.
type Client struct {
	httpClient *http.Client
	baseURL    string
	operatorID int64
}

// NewClient builds a client for one bot token. The HTTP timeout leaves room
// for the long-poll timeout of getUpdates on top of network latency.
func NewClient(apiBaseURL, token string, operatorID int64, pollTimeout int) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(pollTimeout+30) * time.Second,
		},
		baseURL:    strings.TrimRight(apiBaseURL, "/") + "/bot" + token,
		operatorID: operatorID,
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

func (c *Client) call(ctx context.Context, method string, payload any, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, method, result)
}

func (c *Client) do(req *http.Request, method string, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", method, err)
	}
	defer resp.Body.Close()

	var api apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}

	if !api.OK {
		return fmt.Errorf("%s failed: %d %s", method, api.ErrorCode, api.Description)
	}

	if result != nil {
		if err := json.Unmarshal(api.Result, result); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}

	return nil
}

// SendMessage sends a plain text message to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	return c.call(ctx, "sendMessage", payload, nil)
}

// SendOptions sends a message with one inline button per row.
func (c *Client) SendOptions(ctx context.Context, chatID int64, text string, options []model.Option) error {
	rows := make([][]inlineKeyboardButton, 0, len(options))
	for _, o := range options {
		rows = append(rows, []inlineKeyboardButton{{Text: o.Label, CallbackData: o.Data}})
	}

	payload := map[string]any{
		"chat_id":      chatID,
		"text":         text,
		"reply_markup": inlineKeyboardMarkup{InlineKeyboard: rows},
	}
	return c.call(ctx, "sendMessage", payload, nil)
}

// SendImage uploads a PNG with a caption via sendPhoto.
func (c *Client) SendImage(ctx context.Context, chatID int64, caption string, png []byte) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return fmt.Errorf("failed to write sendPhoto field: %w", err)
	}
	if caption != "" {
		if err := writer.WriteField("caption", caption); err != nil {
			return fmt.Errorf("failed to write sendPhoto field: %w", err)
		}
	}

	part, err := writer.CreateFormFile("photo", "challenge.png")
	if err != nil {
		return fmt.Errorf("failed to build sendPhoto form: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(png)); err != nil {
		return fmt.Errorf("failed to write sendPhoto image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finish sendPhoto form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sendPhoto", &body)
	if err != nil {
		return fmt.Errorf("failed to build sendPhoto request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.do(req, "sendPhoto", nil)
}

// ForwardToOperator forwards a user's message to the operator chat, keeping
// the native forwarding header, and returns the forwarded copy's message id.
func (c *Client) ForwardToOperator(ctx context.Context, fromChatID, messageID int64) (int64, error) {
	payload := map[string]any{
		"chat_id":      c.operatorID,
		"from_chat_id": fromChatID,
		"message_id":   messageID,
	}

	var forwarded Message
	if err := c.call(ctx, "forwardMessage", payload, &forwarded); err != nil {
		return 0, err
	}
	return forwarded.MessageID, nil
}

// CopyToUser delivers a copy of an operator message to a user without the
// forwarding header, keeping the operator identity hidden.
func (c *Client) CopyToUser(ctx context.Context, userID, fromChatID, messageID int64) error {
	payload := map[string]any{
		"chat_id":      userID,
		"from_chat_id": fromChatID,
		"message_id":   messageID,
	}
	return c.call(ctx, "copyMessage", payload, nil)
}

// GetUpdates long-polls for events past offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSeconds int) ([]Update, error) {
	payload := map[string]any{
		"offset":          offset,
		"timeout":         timeoutSeconds,
		"allowed_updates": []string{"message", "callback_query"},
	}

	var updates []Update
	if err := c.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// AnswerCallbackQuery acknowledges a button press so the client stops
// showing a progress indicator.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID string) error {
	payload := map[string]any{
		"callback_query_id": callbackID,
	}
	return c.call(ctx, "answerCallbackQuery", payload, nil)
}
