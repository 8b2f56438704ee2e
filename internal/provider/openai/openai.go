package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	// DefaultBaseURL is the public OpenAI API root.
	DefaultBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout bounds each API call.
	DefaultTimeout = 120 * time.Second

	chatTemperature = 0.7
	userAgent       = "codex-replier/1.0"
	errorBodyLimit  = 400
)

// Result is a decoded model response. ErrorMessage is set when the body
// carried an application-level error object; Text is then empty.
type Result struct {
	Text         string
	ErrorMessage string
}

// APIError is a non-2xx HTTP response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Client calls the Responses and Chat Completions endpoints through the
// OpenAI SDK's raw request API, decoding bodies itself.
type Client struct {
	sdk sdk.Client
}

// NewClient creates a client. Empty baseURL and zero timeout take defaults.
// Requests are never retried.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{sdk: sdk.NewClient(
		option.WithBaseURL(baseURL+"/"),
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(timeout),
		option.WithMaxRetries(0),
		option.WithHeader("User-Agent", userAgent),
	)}
}

type responsesRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// Respond posts input to /responses and extracts the reply text.
func (c *Client) Respond(ctx context.Context, model, input string) (Result, error) {
	body, err := c.post(ctx, "responses", responsesRequest{Model: model, Input: input})
	if err != nil {
		return Result{}, err
	}
	if msg, ok := errorMessage(body.Error); ok {
		return Result{ErrorMessage: msg}, nil
	}
	return Result{Text: extractText(body, responseExtractors)}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

// Chat posts a system/user exchange to /chat/completions and returns the
// first choice's content. The system message is omitted when empty.
func (c *Client) Chat(ctx context.Context, model, system, user string) (Result, error) {
	req := chatRequest{Model: model, Temperature: chatTemperature}
	if system != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: system})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: user})

	body, err := c.post(ctx, "chat/completions", req)
	if err != nil {
		return Result{}, err
	}
	if msg, ok := errorMessage(body.Error); ok {
		return Result{ErrorMessage: msg}, nil
	}
	return Result{Text: extractText(body, chatExtractors)}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (*responseBody, error) {
	var raw []byte
	if err := c.sdk.Post(ctx, path, payload, &raw); err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			return nil, &APIError{StatusCode: apiErr.StatusCode, Message: failureMessage(errorBody(apiErr))}
		}
		return nil, fmt.Errorf("POST /%s: %w", path, err)
	}

	body, err := decodeBody(raw)
	if err != nil {
		return nil, fmt.Errorf("decode /%s response: %w", path, err)
	}
	return body, nil
}

// errorBody returns the raw body of a failed response.
func errorBody(e *sdk.Error) []byte {
	if e.Response != nil && e.Response.Body != nil {
		if raw, err := io.ReadAll(e.Response.Body); err == nil && len(raw) > 0 {
			return raw
		}
	}
	return []byte(e.RawJSON())
}

// failureMessage prefers the error object's message over the raw body.
func failureMessage(raw []byte) string {
	var body struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if msg, ok := errorMessage(body.Error); ok {
			return msg
		}
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > errorBodyLimit {
		msg = msg[:errorBodyLimit] + "..."
	}
	if msg == "" {
		msg = "empty response body"
	}
	return msg
}

// errorMessage reads an "error" field that may be an object with a message,
// a bare string, or null.
func errorMessage(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", false
	}

	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(trimmed, &obj); err == nil && obj.Message != "" {
		return obj.Message, true
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		if s == "" {
			return "", false
		}
		return s, true
	}

	return string(trimmed), true
}
