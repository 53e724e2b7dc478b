package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"

	"github.com/keshon/moonz/internal/ai"
	"github.com/keshon/moonz/internal/config"
	"github.com/keshon/moonz/internal/mind"
	"github.com/keshon/moonz/internal/social"
	"github.com/keshon/moonz/internal/social/discord"
	"github.com/keshon/moonz/internal/social/xweb"
	"github.com/keshon/moonz/pkg/retrylimit"
)

// loadConfig reads the environment and the policy file named by the global
// flag, which wins over POLICY_FILE.
func loadConfig(c *cli.Context) (*config.Config, *config.PolicyFile, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if p := c.String("policy"); p != "" {
		cfg.PolicyFile = p
	}
	pf, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pf, nil
}

func newLLM(cfg *config.Config) (ai.Provider, error) {
	base, err := ai.New(ai.Options{
		Engine:  cfg.AI.Engine,
		Model:   cfg.AI.Model,
		APIKey:  cfg.AI.APIKey,
		BaseURL: cfg.AI.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrSetup, err)
	}
	r := rate.Limit(cfg.AI.Rate)
	lim := retrylimit.NewAdaptiveLimiter(r, r/10, r*2, r/10, 0.5)
	rc := retrylimit.DefaultRetryConfig()
	if cfg.AI.Retries > 0 {
		rc.MaxAttempts = cfg.AI.Retries
	}
	return ai.NewLimited(base, lim, rc), nil
}

// brain is everything that turns prompts into accepted text.
type brain struct {
	persona   *mind.Persona
	validator *mind.Validator
	pipeline  *mind.Pipeline
}

func newBrain(cfg *config.Config, pf *config.PolicyFile, llm ai.Provider) (*brain, error) {
	policy, err := pf.ValidationPolicy()
	if err != nil {
		return nil, err
	}
	persona := mind.DefaultPersona()
	pf.Apply(persona)

	validator := mind.NewValidator(policy, llm)
	pipeline := mind.NewPipeline(llm, persona, validator, mind.NewRelevanceChecker(llm), cfg.GenerationConfig())
	return &brain{persona: persona, validator: validator, pipeline: pipeline}, nil
}

type closer func() error

// openPlatform connects to the configured platform and wraps it with retry
// and circuit breaking.
func openPlatform(ctx context.Context, cfg *config.Config) (social.Platform, closer, error) {
	var (
		p    social.Platform
		done closer
	)
	switch cfg.Platform {
	case "discord":
		d, err := discord.Open(discord.Config{
			Token:              cfg.Discord.Token,
			ChannelID:          cfg.Discord.ChannelID,
			FollowingChannelID: cfg.Discord.FollowingChannelID,
		})
		if err != nil {
			return nil, nil, err
		}
		p, done = d, d.Close
	case "x":
		x, err := xweb.Open(ctx, xweb.Config{
			Username:   cfg.X.Username,
			Password:   cfg.X.Password,
			Headless:   cfg.X.Headless,
			ControlURL: cfg.X.ControlURL,
			Timeout:    cfg.X.Timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		p, done = x, x.Close
	default:
		return nil, nil, fmt.Errorf("%w: unknown platform %q", config.ErrSetup, cfg.Platform)
	}
	self := p.Self()
	log.Info().Str("platform", cfg.Platform).Str("id", self.ID).Str("handle", self.Handle).Msg("platform connected")
	return social.NewGuarded(p, social.DefaultGuardConfig()), done, nil
}
