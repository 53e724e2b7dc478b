package mind

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/moonz/internal/ai"
)

func rejectAll(string, ContentType) Verdict {
	return Verdict{Rule: RuleQuality, Reason: "rated 2, need 4"}
}

func TestGenerate_FirstAttemptAccepted(t *testing.T) {
	llm := llmReturning("Mondays are a scam invented by alarm clocks")
	p := NewPipeline(llm, DefaultPersona(), NewValidator(DefaultPolicy(), nil), nil, DefaultGenerationConfig())

	out, err := p.Generate(context.Background(), GenerateRequest{Prompt: "Create a funny observation about Mondays.", Type: ContentTweet})
	require.NoError(t, err)
	assert.Equal(t, "Mondays are a scam invented by alarm clocks.", out)

	require.Equal(t, 1, llm.count())
	req := llm.calls[0]
	assert.Contains(t, req.System, "Baggy Moonz")
	assert.Contains(t, req.User, "Create a funny observation about Mondays.")
	assert.Contains(t, req.User, "No hashtags.")
	assert.Equal(t, 100, req.MaxTokens)
	assert.InDelta(t, 0.9, req.Temperature, 1e-9)
}

func TestGenerate_ExactlyMaxAttemptsCalls(t *testing.T) {
	llm := llmReturning("A perfectly fine sentence about nothing.")
	p := NewPipeline(llm, DefaultPersona(), gateFunc(rejectAll), nil, DefaultGenerationConfig())

	_, err := p.Generate(context.Background(), GenerateRequest{Prompt: "x", Type: ContentTweet, MaxAttempts: 5})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMaxAttemptsExceeded)
	assert.Equal(t, 5, llm.count())
}

func TestGenerate_DefaultAttemptBound(t *testing.T) {
	llm := llmReturning("A perfectly fine sentence about nothing.")
	p := NewPipeline(llm, DefaultPersona(), gateFunc(rejectAll), nil, DefaultGenerationConfig())

	_, err := p.Generate(context.Background(), GenerateRequest{Prompt: "x", Type: ContentTweet})
	assert.ErrorIs(t, err, ErrMaxAttemptsExceeded)
	assert.Equal(t, 8, llm.count())
}

func TestGenerate_ParametersNeverIncrease(t *testing.T) {
	llm := llmReturning("A perfectly fine sentence about nothing.")
	cfg := DefaultGenerationConfig()
	p := NewPipeline(llm, DefaultPersona(), gateFunc(rejectAll), nil, cfg)

	_, _ = p.Generate(context.Background(), GenerateRequest{Prompt: "x", Type: ContentTweet, MaxAttempts: 12})
	require.Equal(t, 12, llm.count())

	for i := 1; i < len(llm.calls); i++ {
		prev, cur := llm.calls[i-1], llm.calls[i]
		assert.LessOrEqual(t, cur.MaxTokens, prev.MaxTokens)
		assert.LessOrEqual(t, cur.Temperature, prev.Temperature)
		assert.GreaterOrEqual(t, cur.MaxTokens, cfg.MinTokens)
		assert.GreaterOrEqual(t, cur.Temperature, cfg.MinTemperature)
	}
	last := llm.calls[len(llm.calls)-1]
	assert.Equal(t, cfg.MinTokens, last.MaxTokens)
	assert.InDelta(t, cfg.MinTemperature, last.Temperature, 1e-9)
}

func TestGenerate_RetryPromptCarriesReason(t *testing.T) {
	llm := &fakeLLM{fn: func(n int, _ ai.Request) (string, error) {
		if n == 0 {
			return "Way too short", nil
		}
		return "Second try is long enough to pass every rule.", nil
	}}
	gate := gateFunc(func(text string, _ ContentType) Verdict {
		if text == "Way too short." {
			return Verdict{Rule: RuleLength, Reason: "length 14 outside [20, 200]"}
		}
		return Verdict{Accepted: true}
	})
	p := NewPipeline(llm, DefaultPersona(), gate, nil, DefaultGenerationConfig())

	out, err := p.Generate(context.Background(), GenerateRequest{Prompt: "x", Type: ContentTweet, MaxAttempts: 4})
	require.NoError(t, err)
	assert.Equal(t, "Second try is long enough to pass every rule.", out)

	require.Equal(t, 2, llm.count())
	assert.NotContains(t, llm.calls[0].User, "Attempt")
	assert.Contains(t, llm.calls[1].User, "Attempt 2 of 4")
	assert.Contains(t, llm.calls[1].User, "length 14 outside [20, 200]")
	assert.Contains(t, llm.calls[1].User, "shorter and cleaner")
}

func TestGenerate_LLMErrorConsumesAttempt(t *testing.T) {
	llm := &fakeLLM{fn: func(n int, _ ai.Request) (string, error) {
		if n < 2 {
			return "", ai.ErrGeneration
		}
		return "Third time is the charm, apparently.", nil
	}}
	p := NewPipeline(llm, DefaultPersona(), NewValidator(DefaultPolicy(), nil), nil, DefaultGenerationConfig())

	out, err := p.Generate(context.Background(), GenerateRequest{Prompt: "x", Type: ContentTweet, MaxAttempts: 3})
	require.NoError(t, err)
	assert.Equal(t, "Third time is the charm, apparently.", out)
	assert.Equal(t, 3, llm.count())
}

func TestGenerate_AllLLMErrorsWrapLastError(t *testing.T) {
	llm := llmFailing()
	p := NewPipeline(llm, DefaultPersona(), NewValidator(DefaultPolicy(), nil), nil, DefaultGenerationConfig())

	_, err := p.Generate(context.Background(), GenerateRequest{Prompt: "x", Type: ContentTweet, MaxAttempts: 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMaxAttemptsExceeded)
	assert.ErrorIs(t, err, ai.ErrGeneration)
	assert.Equal(t, 3, llm.count())
}

func TestGenerate_RelevanceRejects(t *testing.T) {
	llm := llmReturning("Totally unrelated thought about the weather.")
	var seen []RelevanceContext
	rel := relevanceFunc(func(rc RelevanceContext) bool {
		seen = append(seen, rc)
		return false
	})
	p := NewPipeline(llm, DefaultPersona(), NewValidator(DefaultPolicy(), nil), rel, DefaultGenerationConfig())

	_, err := p.Generate(context.Background(), GenerateRequest{
		Prompt:      "reply",
		Type:        ContentReply,
		MaxAttempts: 2,
		Relevance:   &RelevanceContext{Original: "pizza?", Target: "alice"},
	})
	assert.ErrorIs(t, err, ErrMaxAttemptsExceeded)
	require.Len(t, seen, 2)
	assert.Equal(t, "Totally unrelated thought about the weather.", seen[0].Candidate)
	assert.Equal(t, "alice", seen[0].Target)
	assert.Contains(t, llm.calls[1].User, "@alice")
}

func TestGenerate_RelevanceSkippedWithoutContext(t *testing.T) {
	rel := relevanceFunc(func(RelevanceContext) bool {
		t.Fatal("relevance must not run for a tweet")
		return false
	})
	p := NewPipeline(llmReturning("Tweets need no relevance check at all."), DefaultPersona(),
		NewValidator(DefaultPolicy(), nil), rel, DefaultGenerationConfig())

	_, err := p.Generate(context.Background(), GenerateRequest{Prompt: "x", Type: ContentTweet})
	assert.NoError(t, err)
}

func TestGenerate_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	llm := &fakeLLM{fn: func(int, ai.Request) (string, error) {
		cancel()
		return "", errors.Join(ai.ErrGeneration, context.Canceled)
	}}
	p := NewPipeline(llm, DefaultPersona(), gateFunc(rejectAll), nil, DefaultGenerationConfig())

	_, err := p.Generate(ctx, GenerateRequest{Prompt: "x", Type: ContentTweet})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, llm.count())
}
