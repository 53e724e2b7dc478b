package mind

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/keshon/moonz/internal/ai"
	"github.com/keshon/moonz/internal/metrics"
)

// ErrMaxAttemptsExceeded is returned when no attempt produced acceptable text.
var ErrMaxAttemptsExceeded = errors.New("generation attempts exhausted")

// Gate judges a candidate text.
type Gate interface {
	Validate(ctx context.Context, text string, t ContentType) Verdict
}

// RelevanceGate judges whether a reply fits the post it answers.
type RelevanceGate interface {
	IsRelevant(ctx context.Context, rc RelevanceContext) bool
}

// GenerationConfig bounds the attempt loop. Tokens and temperature step down
// after every failed attempt and never go below their floors.
type GenerationConfig struct {
	MaxAttempts     int
	MaxTokens       int
	MinTokens       int
	TokenStep       int
	Temperature     float64
	MinTemperature  float64
	TemperatureStep float64
}

func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		MaxAttempts:     8,
		MaxTokens:       100,
		MinTokens:       40,
		TokenStep:       10,
		Temperature:     0.9,
		MinTemperature:  0.3,
		TemperatureStep: 0.08,
	}
}

// tokensFor returns the token budget for the zero-based attempt i.
func (c GenerationConfig) tokensFor(i int) int {
	n := c.MaxTokens - i*c.TokenStep
	if n < c.MinTokens {
		n = c.MinTokens
	}
	return n
}

func (c GenerationConfig) temperatureFor(i int) float64 {
	t := c.Temperature - float64(i)*c.TemperatureStep
	if t < c.MinTemperature {
		t = c.MinTemperature
	}
	return t
}

// GenerateRequest describes one piece of content to produce. Relevance is
// set for replies only; MaxAttempts <= 0 uses the pipeline default.
type GenerateRequest struct {
	Prompt      string
	Type        ContentType
	MaxAttempts int
	Relevance   *RelevanceContext
}

// Pipeline turns a prompt into validated text.
type Pipeline struct {
	llm       ai.Provider
	persona   *Persona
	gate      Gate
	relevance RelevanceGate
	policy    ValidationPolicy
	cfg       GenerationConfig
}

// NewPipeline wires the loop. rel may be nil to skip relevance checks. When
// gate exposes its policy, prompts carry that policy's constraints.
func NewPipeline(llm ai.Provider, persona *Persona, gate Gate, rel RelevanceGate, cfg GenerationConfig) *Pipeline {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultGenerationConfig().MaxAttempts
	}
	policy := DefaultPolicy()
	if pp, ok := gate.(interface{ Policy() ValidationPolicy }); ok {
		policy = pp.Policy()
	}
	return &Pipeline{
		llm:       llm,
		persona:   persona,
		gate:      gate,
		relevance: rel,
		policy:    policy,
		cfg:       cfg,
	}
}

// Generate loops until a candidate passes every gate or attempts run out.
// A failed completion consumes an attempt like a rejected candidate.
func (p *Pipeline) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	attempts := req.MaxAttempts
	if attempts <= 0 {
		attempts = p.cfg.MaxAttempts
	}

	var (
		lastReason string
		lastErr    error
	)
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		cand := ContentCandidate{Prompt: p.userPrompt(req, i, attempts, lastReason), Type: req.Type}
		r := ai.Request{
			System:      p.persona.SystemPrompt(),
			User:        cand.Prompt,
			MaxTokens:   p.cfg.tokensFor(i),
			Temperature: p.cfg.temperatureFor(i),
		}
		logLLMCall(string(req.Type), r)

		out, err := p.llm.Complete(ctx, r)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			lastErr, lastReason = err, "the model returned nothing usable"
			metrics.RecordGenerationAttempt(string(req.Type), "llm_error")
			log.Warn().Err(err).Int("attempt", i+1).Str("type", string(req.Type)).Msg("completion failed")
			continue
		}
		cand.Text = CompleteSentence(out)

		verdict := p.gate.Validate(ctx, cand.Text, cand.Type)
		if !verdict.Accepted {
			lastErr = fmt.Errorf("%s: %s", verdict.Rule, verdict.Reason)
			lastReason = verdict.Reason
			metrics.RecordGenerationAttempt(string(req.Type), "rejected")
			log.Debug().Int("attempt", i+1).Str("rule", verdict.Rule).Str("reason", verdict.Reason).
				Str("text", truncateForLog(cand.Text, 120)).Msg("candidate rejected")
			continue
		}

		if req.Relevance != nil && p.relevance != nil {
			rc := *req.Relevance
			rc.Candidate = cand.Text
			if !p.relevance.IsRelevant(ctx, rc) {
				lastErr = errors.New("relevance: off topic or addresses someone else")
				lastReason = "the reply was off topic or addressed someone other than @" + rc.Target
				metrics.RecordGenerationAttempt(string(req.Type), "irrelevant")
				continue
			}
		}

		metrics.RecordGenerationAttempt(string(req.Type), "accepted")
		log.Debug().Int("attempt", i+1).Int("rating", verdict.Rating).Str("type", string(req.Type)).Msg("candidate accepted")
		return cand.Text, nil
	}

	if lastErr == nil {
		return "", fmt.Errorf("%w after %d attempts", ErrMaxAttemptsExceeded, attempts)
	}
	return "", fmt.Errorf("%w after %d attempts: %w", ErrMaxAttemptsExceeded, attempts, lastErr)
}

func (p *Pipeline) userPrompt(req GenerateRequest, i, attempts int, lastReason string) string {
	prompt := req.Prompt + "\n\n" + p.policy.Constraints(req.Type)
	if i == 0 {
		return prompt
	}
	return fmt.Sprintf("%s\n\nAttempt %d of %d. Previous attempt failed (%s). Write something shorter and cleaner.",
		prompt, i+1, attempts, lastReason)
}
