package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestAnthropicComplete(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("path = %q, want /messages", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "sk-test" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != anthropicVersion {
			t.Errorf("anthropic-version = %q", r.Header.Get("anthropic-version"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"  hello "},{"type":"tool_use"},{"type":"text","text":"world"}]}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient("sk-test", WithBaseURL(srv.URL), WithModel("test-model"), WithAnthropicMaxTokens(123))
	out, err := c.Complete(context.Background(), "prompt text")
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if out != "hello world" {
		t.Errorf("Complete() = %q, want %q", out, "hello world")
	}
	if got.Model != "test-model" || got.MaxTokens != 123 {
		t.Errorf("request = %+v", got)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "prompt text" || got.Messages[0].Role != "user" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestAnthropicWithMaxTokensCopies(t *testing.T) {
	c := NewAnthropicClient("k", WithAnthropicMaxTokens(2000))
	limited := WithMaxTokens(c, 100).(*AnthropicClient)
	if limited.maxTokens != 100 {
		t.Errorf("limited.maxTokens = %d, want 100", limited.maxTokens)
	}
	if c.maxTokens != 2000 {
		t.Errorf("original maxTokens changed to %d", c.maxTokens)
	}
}

func TestAnthropicErrors(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		_, err := NewAnthropicClient("").Complete(context.Background(), "x")
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("error = %v, want ErrUnavailable", err)
		}
	})

	t.Run("unauthorized is not retried", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
		}))
		defer srv.Close()

		c := NewAnthropicClient("k", WithBaseURL(srv.URL), WithMaxRetries(3), WithBackoff(func(int) time.Duration { return 0 }))
		_, err := c.Complete(context.Background(), "x")
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("error = %v, want ErrUnavailable", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("rate limit retried then succeeds", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
		}))
		defer srv.Close()

		c := NewAnthropicClient("k", WithBaseURL(srv.URL), WithMaxRetries(1), WithBackoff(func(int) time.Duration { return 0 }))
		out, err := c.Complete(context.Background(), "x")
		if err != nil || out != "ok" {
			t.Fatalf("Complete() = %q, %v; want ok, nil", out, err)
		}
		if calls != 2 {
			t.Errorf("calls = %d, want 2", calls)
		}
	})

	t.Run("no retries by default", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := NewAnthropicClient("k", WithBaseURL(srv.URL)).Complete(context.Background(), "x")
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("error = %v, want ErrUnavailable", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("context deadline", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := NewAnthropicClient("k", WithBaseURL(srv.URL)).Complete(ctx, "x")
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("error = %v, want ErrUnavailable", err)
		}
	})
}
