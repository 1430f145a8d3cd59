package extract

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaudeClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-test", req.Model)
		assert.Equal(t, 256, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "hello", req.Messages[0].Content)

		_, _ = io.WriteString(w, `{"content":[{"type":"text","text":"yes|"},{"type":"text","text":"새 제목"}]}`)
	}))
	defer srv.Close()

	stats := NewLLMStats(time.Hour)
	c := NewClaudeClient("test-key", "claude-test", WithBaseURL(srv.URL+"/"), WithMaxTokens(256), WithStats(stats))
	defer c.Close()

	out, err := c.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "yes|새 제목", out)
	assert.Equal(t, "claude-test", c.Model())
	assert.Equal(t, 1, stats.Snapshot().Count)
}

func TestClaudeClient_RetryableStatus(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusBadGateway} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"error":{"type":"overloaded_error","message":"busy"}}`)
		}))

		stats := NewLLMStats(time.Hour)
		c := NewClaudeClient("k", "m", WithBaseURL(srv.URL), WithStats(stats))
		_, err := c.Complete(context.Background(), "x")
		srv.Close()

		var re *RetryableError
		require.True(t, errors.As(err, &re), "status %d should be retryable", status)
		assert.Equal(t, status, re.StatusCode)
		assert.Equal(t, 1, stats.Snapshot().Throttled)
	}
}

func TestClaudeClient_ClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"type":"invalid_request_error","message":"bad"}}`)
	}))
	defer srv.Close()

	_, err := NewClaudeClient("k", "m", WithBaseURL(srv.URL)).Complete(context.Background(), "x")
	require.Error(t, err)
	var re *RetryableError
	assert.False(t, errors.As(err, &re))
	assert.Contains(t, err.Error(), "status 400")
}

func TestGeminiClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "g-key", r.Header.Get("x-goog-api-key"))

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Equal(t, "prompt", req.Contents[0].Parts[0].Text)

		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"no"}]},"finishReason":"STOP"}]}`)
	}))
	defer srv.Close()

	c := NewGeminiClient("g-key", "gemini-2.5-flash", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	out, err := c.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "no", out)
}

func TestGeminiClient_BlockedPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"promptFeedback":{"blockReason":"SAFETY"}}`)
	}))
	defer srv.Close()

	_, err := NewGeminiClient("k", "m", WithBaseURL(srv.URL)).Complete(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SAFETY")
}

func TestNewClient(t *testing.T) {
	c, err := NewClient("Claude", "k", "m")
	require.NoError(t, err)
	assert.IsType(t, &ClaudeClient{}, c)

	c, err = NewClient("gemini", "k", "m")
	require.NoError(t, err)
	assert.IsType(t, &GeminiClient{}, c)

	_, err = NewClient("gemini", "", "m")
	assert.Error(t, err)

	_, err = NewClient("openai", "k", "m")
	assert.Error(t, err)
}

func TestStripCodeBlock(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeBlock("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeBlock("```\n{\"a\":1}\n```"))
	assert.Equal(t, "yes|제목", stripCodeBlock("  yes|제목 \n"))
}
