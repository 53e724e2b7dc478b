package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrGeneration marks any failure to obtain a completion (transport, auth,
// empty or garbage response).
var ErrGeneration = errors.New("generation failed")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one completion call.
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Messages renders the request as a chat transcript.
func (r Request) Messages() []Message {
	msgs := make([]Message, 0, 2)
	if r.System != "" {
		msgs = append(msgs, Message{Role: "system", Content: r.System})
	}
	return append(msgs, Message{Role: "user", Content: r.User})
}

type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// StatusError is a non-2xx answer from an HTTP backend.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s http %d: %s", e.Provider, e.Code, e.Body)
}

func (e *StatusError) StatusCode() int { return e.Code }

func wrapErr(provider string, err error) error {
	if err == nil || errors.Is(err, ErrGeneration) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", provider, ErrGeneration, err)
}

// Options selects and configures a backend.
type Options struct {
	// Engine is one of pollinations, g4f[:model], openai, anthropic, ollama.
	Engine  string
	Model   string
	APIKey  string
	BaseURL string
}

// New builds the provider named by opts.Engine.
func New(opts Options) (Provider, error) {
	engine := strings.ToLower(strings.TrimSpace(opts.Engine))
	switch {
	case engine == "pollinations":
		return NewPollinationsProvider(opts.Model), nil
	case engine == "g4f" || strings.HasPrefix(engine, "g4f:"):
		return NewG4FProvider(opts.Engine), nil
	case engine == "openai", engine == "anthropic", engine == "ollama":
		return NewLangchainProvider(engine, opts)
	default:
		return nil, fmt.Errorf("unsupported AI provider: %q", opts.Engine)
	}
}
