package ai

import (
	"context"
	"net/http"
	"time"
)

const pollinationsURL = "https://text.pollinations.ai/openai"

// PollinationsProvider talks to the keyless pollinations.ai endpoint.
type PollinationsProvider struct {
	url    string
	model  string
	client *http.Client
}

func NewPollinationsProvider(model string) *PollinationsProvider {
	if model == "" {
		model = "openai"
	}
	return &PollinationsProvider{
		url:    pollinationsURL,
		model:  model,
		client: &http.Client{Timeout: 25 * time.Second},
	}
}

func (p *PollinationsProvider) Complete(ctx context.Context, r Request) (string, error) {
	payload := chatPayload(p.model, r)
	payload["private"] = true
	return postChat(ctx, p.client, "pollinations", p.url, payload)
}
