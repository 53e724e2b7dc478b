package ai

import (
	"context"
	"net/http"
	"strings"
	"time"
)

const g4fBase = "https://g4f.dev/api/"

// G4FProvider routes through the g4f.dev gateways.
type G4FProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewG4FProvider parses engine strings such as "g4f", "g4f:gpt-oss-120b",
// "g4f:groq/qwen/qwen3-32b" or "g4f:ollama/gpt-oss:20b".
func NewG4FProvider(engine string) *G4FProvider {
	_, target, _ := strings.Cut(engine, ":")
	if target == "" {
		target = "gpt-oss-120b"
	}

	base, model := g4fBase+"gpt-oss-120b", target
	for _, gw := range []string{"groq", "ollama"} {
		if rest, ok := strings.CutPrefix(target, gw+"/"); ok {
			base, model = g4fBase+gw, rest
			break
		}
	}

	return &G4FProvider{
		baseURL: base,
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *G4FProvider) Complete(ctx context.Context, r Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	return postChat(ctx, p.client, "g4f", p.baseURL+"/chat/completions", chatPayload(p.model, r))
}
