package ai

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangchainProvider completes requests through any langchaingo model.
type LangchainProvider struct {
	name string
	llm  llms.Model
}

// NewLangchainProvider builds an openai, anthropic or ollama backed provider.
func NewLangchainProvider(engine string, opts Options) (*LangchainProvider, error) {
	var (
		model llms.Model
		err   error
	)

	log.Debug().
		Str("provider", engine).
		Str("model", opts.Model).
		Str("base_url", opts.BaseURL).
		Msg("Creating langchain model")

	switch engine {
	case "openai":
		o := []openai.Option{openai.WithToken(opts.APIKey)}
		if opts.Model != "" {
			o = append(o, openai.WithModel(opts.Model))
		}
		if opts.BaseURL != "" {
			o = append(o, openai.WithBaseURL(opts.BaseURL))
		}
		model, err = openai.New(o...)
	case "anthropic":
		o := []anthropic.Option{anthropic.WithToken(opts.APIKey)}
		if opts.Model != "" {
			o = append(o, anthropic.WithModel(opts.Model))
		}
		model, err = anthropic.New(o...)
	case "ollama":
		if opts.BaseURL == "" {
			opts.BaseURL = "http://localhost:11434"
		}
		if opts.Model == "" {
			opts.Model = "llama3"
		}
		model, err = ollama.New(ollama.WithServerURL(opts.BaseURL), ollama.WithModel(opts.Model))
	default:
		return nil, fmt.Errorf("unsupported langchain provider: %s", engine)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create model for provider %s: %w", engine, err)
	}

	return &LangchainProvider{name: engine, llm: model}, nil
}

func (p *LangchainProvider) Complete(ctx context.Context, r Request) (string, error) {
	msgs := make([]llms.MessageContent, 0, 2)
	if r.System != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, r.System))
	}
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, r.User))

	callOptions := []llms.CallOption{llms.WithTemperature(r.Temperature)}
	if r.MaxTokens > 0 {
		callOptions = append(callOptions, llms.WithMaxTokens(r.MaxTokens))
	}

	resp, err := p.llm.GenerateContent(ctx, msgs, callOptions...)
	if err != nil {
		return "", wrapErr(p.name, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", wrapErr(p.name, fmt.Errorf("empty choices"))
	}

	reply := cleanReply(resp.Choices[0].Content)
	if isGarbageResponse(reply) {
		return "", wrapErr(p.name, fmt.Errorf("returned garbage: %q", truncate([]byte(reply))))
	}
	return reply, nil
}
