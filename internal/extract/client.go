package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Client sends a single-turn prompt to a language model and returns the
// text of its reply.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
	Close()
}

const (
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
)

// Option customizes an HTTP-backed client.
type Option func(*httpOptions)

type httpOptions struct {
	baseURL    string
	httpClient *http.Client
	stats      *LLMStats
	maxTokens  int
}

// WithBaseURL points the client at a different API host.
func WithBaseURL(u string) Option {
	return func(o *httpOptions) { o.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default client (120s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(o *httpOptions) { o.httpClient = c }
}

// WithStats records every call, filed under the operation set with
// WithOperation.
func WithStats(s *LLMStats) Option {
	return func(o *httpOptions) { o.stats = s }
}

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int) Option {
	return func(o *httpOptions) { o.maxTokens = n }
}

func buildOptions(baseURL string, opts []Option) httpOptions {
	o := httpOptions{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		maxTokens:  4096,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewClient builds the client for a provider name. The API key and model are
// always explicit; nothing is read from the environment here.
func NewClient(provider, apiKey, model string, opts ...Option) (Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s: api key is required", provider)
	}
	switch strings.ToLower(provider) {
	case ProviderClaude, "anthropic":
		return NewClaudeClient(apiKey, model, opts...), nil
	case ProviderGemini, "google":
		return NewGeminiClient(apiKey, model, opts...), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}
}

// postJSON sends body to url and decodes a 200 reply into out. 429 and 5xx
// come back as *RetryableError.
func (o httpOptions) postJSON(ctx context.Context, api, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	err = o.do(req, api, out)
	if o.stats != nil {
		o.stats.Record(operationOf(ctx), time.Since(start).Milliseconds(), err)
	}
	return err
}

func (o httpOptions) do(req *http.Request, api string, out any) error {
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s api: %w", api, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return &RetryableError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s api status %d: %s", api, resp.StatusCode, truncate(string(respBody), 200))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json|JSON)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}
