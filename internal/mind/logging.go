package mind

import (
	"github.com/rs/zerolog/log"

	"github.com/keshon/moonz/internal/ai"
	"github.com/keshon/moonz/internal/metrics"
)

// logLLMCall records a completion about to be requested. Call immediately
// before provider.Complete.
func logLLMCall(purpose string, req ai.Request) {
	metrics.RecordLLMCall(purpose)

	ev := log.Debug()
	if !ev.Enabled() {
		return
	}
	ev.Str("component", "mind").
		Str("purpose", purpose).
		Int("max_tokens", req.MaxTokens).
		Float64("temperature", req.Temperature).
		Int("system_len", len(req.System)).
		Str("system_preview", truncateForLog(req.System, 300)).
		Str("user_preview", truncateForLog(req.User, 200)).
		Msg("llm call")
}

func truncateForLog(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
