// Package complete is a minimal client for OpenAI-format chat completion
// endpoints (/v1/chat/completions), which covers OpenAI, vLLM, Ollama, and
// most gateways. It adds retry with exponential backoff on retryable
// statuses and a small inter-call pacer so bursts of per-element rewrites
// don't trip provider rate limits.
//
// The bearer credential lives only in the client struct for the lifetime of
// the process. It is never logged and never persisted here.
package complete

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Chatter is the completion seam the planner and engine depend on.
type Chatter interface {
	Chat(ctx context.Context, req Request) (string, error)
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion call.
type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Config configures a Client.
type Config struct {
	// Endpoint is the API base, e.g. "https://api.openai.com".
	Endpoint string
	Model    string
	// Credential is the bearer token. May be empty for local providers.
	Credential string

	Timeout    time.Duration // per-call HTTP timeout; default 60s
	MaxRetries int           // retries after the first attempt; default 3
	Backoff    time.Duration // initial retry backoff, doubled; default 1s
	Pace       time.Duration // minimum gap between calls; default 0

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Client calls an OpenAI-format completion endpoint.
type Client struct {
	endpoint   string
	model      string
	credential string
	client     *http.Client
	cfg        Config
	logger     *slog.Logger

	mu       sync.Mutex
	lastCall time.Time
}

// New creates a Client.
func New(cfg Config) *Client {
	cfg.defaults()
	return &Client{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		model:      cfg.Model,
		credential: cfg.Credential,
		client:     &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		logger:     cfg.Logger,
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// httpError carries the status so the retry loop can branch on it.
type httpError struct {
	status int
	body   string
	url    string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP %d from %s: %s", e.status, e.url, e.body)
}

func (e *httpError) retryable() bool {
	return e.status == http.StatusTooManyRequests || e.status >= 500
}

// Chat sends one completion request and returns the first choice's content.
// Rate-limit and server errors are retried with exponential backoff, honouring
// ctx cancellation between attempts.
func (c *Client) Chat(ctx context.Context, req Request) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := c.pace(ctx); err != nil {
			return "", err
		}
		content, err := c.call(ctx, req)
		if err == nil {
			return content, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", lastErr
		}
		he, ok := err.(*httpError)
		if ok && !he.retryable() {
			return "", fmt.Errorf("complete: chat: %w", err)
		}

		if attempt < c.cfg.MaxRetries {
			wait := c.cfg.Backoff * (1 << uint(attempt))
			c.logger.WarnContext(ctx, "complete: retrying",
				"attempt", attempt+1,
				"max_retries", c.cfg.MaxRetries,
				"backoff_ms", wait.Milliseconds(),
				"error", err)
			select {
			case <-ctx.Done():
				return "", lastErr
			case <-time.After(wait):
			}
		}
	}
	return "", fmt.Errorf("complete: chat: %w", lastErr)
}

func (c *Client) call(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := c.endpoint + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.credential != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.credential)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("HTTP POST %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &httpError{status: resp.StatusCode, body: string(respBody), url: url}
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from %s", url)
	}
	return result.Choices[0].Message.Content, nil
}

// pace enforces the minimum gap between consecutive calls.
func (c *Client) pace(ctx context.Context) error {
	if c.cfg.Pace <= 0 {
		return nil
	}
	c.mu.Lock()
	wait := c.cfg.Pace - time.Since(c.lastCall)
	if wait <= 0 {
		// First call, or the gap already elapsed; claim the slot now so
		// the next caller measures from here.
		c.lastCall = time.Now()
		c.mu.Unlock()
		return nil
	}
	c.lastCall = time.Now().Add(wait)
	c.mu.Unlock()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}
