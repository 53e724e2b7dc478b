package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/moonz/pkg/retrylimit"
)

func completionServer(t *testing.T, status int, content string, seen *map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":"nope"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": content}},
			},
		})
	}))
}

func TestPollinationsProvider_Complete(t *testing.T) {
	var seen map[string]interface{}
	srv := completionServer(t, http.StatusOK, `"Mondays are a scam"`, &seen)
	defer srv.Close()

	p := NewPollinationsProvider("")
	p.url = srv.URL

	out, err := p.Complete(context.Background(), Request{
		System:      "persona",
		User:        "Create a funny observation about Monday mornings",
		MaxTokens:   80,
		Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, "Mondays are a scam", out)

	assert.Equal(t, "openai", seen["model"])
	assert.EqualValues(t, 80, seen["max_tokens"])
	assert.InDelta(t, 0.7, seen["temperature"], 0.0001)
	msgs, ok := seen["messages"].([]interface{})
	require.True(t, ok)
	assert.Len(t, msgs, 2)
}

func TestPollinationsProvider_StatusError(t *testing.T) {
	srv := completionServer(t, http.StatusTooManyRequests, "", nil)
	defer srv.Close()

	p := NewPollinationsProvider("")
	p.url = srv.URL

	_, err := p.Complete(context.Background(), Request{User: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGeneration)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode())
}

func TestG4FProvider_EngineParsing(t *testing.T) {
	p := NewG4FProvider("g4f:groq/qwen/qwen3-32b")
	assert.Equal(t, "https://g4f.dev/api/groq", p.baseURL)
	assert.Equal(t, "qwen/qwen3-32b", p.model)

	p = NewG4FProvider("g4f")
	assert.Equal(t, "gpt-oss-120b", p.model)
}

func TestCleanReply(t *testing.T) {
	assert.Equal(t, "hello there", cleanReply("<think>plan</think>\n\"hello there\""))
	assert.Equal(t, `"a" and "b"`, cleanReply(`"a" and "b"`))
	assert.Equal(t, "7", cleanReply(" 7 "))
}

type scriptedProvider struct {
	errs  []error
	calls int
}

func (s *scriptedProvider) Complete(_ context.Context, _ Request) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	return "ok", nil
}

func fastRetry() retrylimit.RetryConfig {
	return retrylimit.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

func TestIsGarbageResponse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"reply", "Pineapple is not allowed near pizza.", false},
		{"rating", "7", false},
		{"empty", "  \n", true},
		{"html page", "<!DOCTYPE html><title>502</title>", true},
		{"method error", "405 Method Not Allowed", true},
		{"proxy block", "Access denied. Request not allowed from your region.", true},
		{"rate limit page", "Too Many Requests", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isGarbageResponse(tt.in))
		})
	}
}

func TestLimited_RetriesTransient(t *testing.T) {
	next := &scriptedProvider{errs: []error{
		wrapErr("x", &StatusError{Provider: "x", Code: http.StatusBadGateway}),
	}}
	l := NewLimited(next, nil, fastRetry())

	out, err := l.Complete(context.Background(), Request{User: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 2, next.calls)
}

func TestLimited_DoesNotRetryAuthFailure(t *testing.T) {
	next := &scriptedProvider{errs: []error{
		wrapErr("x", &StatusError{Provider: "x", Code: http.StatusUnauthorized}),
	}}
	l := NewLimited(next, nil, fastRetry())

	_, err := l.Complete(context.Background(), Request{User: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGeneration)
	assert.Equal(t, 1, next.calls)
}

func TestLimited_ExhaustedIsGenerationError(t *testing.T) {
	boom := errors.New("connection reset")
	next := &scriptedProvider{errs: []error{boom, boom, boom}}
	l := NewLimited(next, nil, fastRetry())

	_, err := l.Complete(context.Background(), Request{User: "hi"})
	assert.ErrorIs(t, err, ErrGeneration)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, next.calls)
}

func TestNew_UnknownEngine(t *testing.T) {
	_, err := New(Options{Engine: "carrier-pigeon"})
	assert.Error(t, err)

	p, err := New(Options{Engine: "pollinations"})
	require.NoError(t, err)
	assert.IsType(t, &PollinationsProvider{}, p)
}
