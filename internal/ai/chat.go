package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxResponseBytes = 64 * 1024

// postChat sends an OpenAI-style chat completion and returns the cleaned
// first choice. Every failure is wrapped for provider.
func postChat(ctx context.Context, client *http.Client, provider, url string, payload map[string]any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", wrapErr(provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", wrapErr(provider, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", wrapErr(provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", wrapErr(provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", wrapErr(provider, &StatusError{Provider: provider, Code: resp.StatusCode, Body: truncate(body)})
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return "", wrapErr(provider, fmt.Errorf("returned html"))
	}

	reply, err := parseChatCompletion(body)
	if err != nil {
		return "", wrapErr(provider, err)
	}
	if isGarbageResponse(reply) {
		return "", wrapErr(provider, fmt.Errorf("returned garbage: %q", truncate([]byte(reply))))
	}
	return reply, nil
}

func chatPayload(model string, r Request) map[string]any {
	payload := map[string]any{
		"model":       model,
		"messages":    r.Messages(),
		"temperature": r.Temperature,
	}
	if r.MaxTokens > 0 {
		payload["max_tokens"] = r.MaxTokens
	}
	return payload
}

// parseChatCompletion extracts the first choice of an OpenAI-style response.
func parseChatCompletion(body []byte) (string, error) {
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("unmarshal: %w body=%s", err, truncate(body))
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty choices")
	}
	return cleanReply(parsed.Choices[0].Message.Content), nil
}
