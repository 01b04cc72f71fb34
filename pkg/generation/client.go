// Package generation calls the Anthropic Messages API with a compiled prompt.
//
// Every fault (missing credential, transport error, non-2xx status, undecodable body) collapses
// into a single Failure outcome. There is no retry and no partial-result handling.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	DefaultEndpoint = "https://api.anthropic.com/v1/messages"
	APIVersion      = "2023-06-01"

	// Model and MaxTokens are fixed per build; callers cannot change them.
	Model     = "claude-3-5-sonnet-20241022"
	MaxTokens = 1024

	DefaultTimeout = 60 * time.Second

	// maxResponseBytes bounds how much of an upstream body is read.
	maxResponseBytes = 4 << 20
)

var (
	ErrMissingCredential = errors.New("generation API key is not configured")
	ErrEmptyResponse     = errors.New("generation response has no content")
)

// Gateway turns a compiled prompt into generated text.
type Gateway interface {
	Generate(ctx context.Context, prompt string) Outcome
}

type GatewayFunc func(ctx context.Context, prompt string) Outcome

func (f GatewayFunc) Generate(ctx context.Context, prompt string) Outcome {
	return f(ctx, prompt)
}

// Settings configure a Client. APIKey is injected at startup, never read from the environment here.
type Settings struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
}

// Message is one entry of a Messages API request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the Messages API request body.
type Request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []Message `json:"messages"`
}

type response struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewRequest builds the single-message request for prompt.
func NewRequest(prompt string) Request {
	return Request{
		Model:     Model,
		MaxTokens: MaxTokens,
		Messages: []Message{
			{Role: "user", Content: prompt},
		},
	}
}

// Client is the Anthropic Messages implementation of Gateway.
type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	logger     zerolog.Logger
}

type ClientOption func(*Client)

func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithHTTPClient replaces the pooled client. A client without a timeout gets DefaultTimeout.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func NewClient(s Settings, opts ...ClientOption) *Client {
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = timeout

	c := &Client{
		apiKey:     s.APIKey,
		endpoint:   endpoint,
		httpClient: hc,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient.Timeout <= 0 {
		c.httpClient.Timeout = timeout
	}
	return c
}

// Enabled reports whether a credential is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

func (c *Client) Generate(ctx context.Context, prompt string) Outcome {
	text, err := c.complete(ctx, prompt)
	if err != nil {
		return Failure(err)
	}
	return Success(text)
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	if !c.Enabled() {
		return "", ErrMissingCredential
	}

	body, err := json.Marshal(NewRequest(prompt))
	if err != nil {
		return "", errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", APIVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "messages API call")
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", errors.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errors.Errorf("messages API status %d: %s", resp.StatusCode, truncate(respBody, 512))
	}

	var apiResp response
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", errors.Wrap(err, "decode response")
	}
	if len(apiResp.Content) == 0 {
		return "", ErrEmptyResponse
	}

	c.logger.Debug().
		Int("input_tokens", apiResp.Usage.InputTokens).
		Int("output_tokens", apiResp.Usage.OutputTokens).
		Msg("messages API call")

	return apiResp.Content[0].Text, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return fmt.Sprintf("%s... (%d bytes)", b[:n], len(b))
}

var _ Gateway = (*Client)(nil)
