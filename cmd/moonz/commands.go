package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/keshon/moonz/internal/logging"
	"github.com/keshon/moonz/internal/metrics"
	"github.com/keshon/moonz/internal/mind"
	"github.com/keshon/moonz/internal/storage"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "Run the agent loop until interrupted",
		Action: runAgent,
	}
}

func runAgent(c *cli.Context) error {
	cfg, pf, err := loadConfig(c)
	if err != nil {
		return err
	}
	logFile := logging.Setup(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer logFile.Close()

	if err := cfg.Validate(); err != nil {
		return err
	}
	log.Info().Str("version", version).Str("platform", cfg.Platform).Str("engine", cfg.AI.Engine).Msg("starting " + appName)

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	llm, err := newLLM(cfg)
	if err != nil {
		return err
	}
	b, err := newBrain(cfg, pf, llm)
	if err != nil {
		return err
	}

	store, err := storage.New(cfg.StoragePath, cfg.Account())
	if err != nil {
		return err
	}
	defer store.Close()

	platform, closePlatform, err := openPlatform(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closePlatform(); err != nil {
			log.Warn().Err(err).Msg("platform close failed")
		}
	}()

	runner, err := mind.NewRunner(mind.Deps{
		Platform:  platform,
		Pipeline:  b.pipeline,
		Scheduler: mind.NewScheduler(cfg.SchedulerConfig(), mind.DefaultDice, llm, b.persona),
		Persona:   b.persona,
		Memory:    mind.NewEngagementMemory(cfg.Agent.MemorySize, cfg.Agent.MemoryTrim),
		Limiter:   mind.NewPostLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.PerHour),
		State:     store,
	}, cfg.RunnerConfig())
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				errCh <- fmt.Errorf("metrics: %w", err)
			}
		}()
	}
	go func() {
		errCh <- runner.Run(ctx)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutting down")
		cancel()
		<-errCh
	case err := <-errCh:
		cancel()
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	log.Info().Msg(appName + " exited cleanly")
	return nil
}

func composeCommand() *cli.Command {
	return &cli.Command{
		Name:  "compose",
		Usage: "Generate content without posting it",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Usage:   "Content type: tweet, reply, thread or bio",
				Value:   string(mind.ContentTweet),
			},
			&cli.StringFlag{
				Name:  "to",
				Usage: "Text being replied to (reply and thread only)",
			},
			&cli.StringFlag{
				Name:  "author",
				Usage: "Handle of the author being replied to",
				Value: "someone",
			},
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "How many pieces to generate",
				Value:   1,
			},
		},
		Action: compose,
	}
}

func compose(c *cli.Context) error {
	cfg, pf, err := loadConfig(c)
	if err != nil {
		return err
	}
	logging.Setup(logging.Options{Level: cfg.LogLevel})

	llm, err := newLLM(cfg)
	if err != nil {
		return err
	}
	b, err := newBrain(cfg, pf, llm)
	if err != nil {
		return err
	}

	req, err := composeRequest(b.persona, mind.ContentType(c.String("type")), c.String("to"), c.String("author"))
	if err != nil {
		return err
	}
	for i := 0; i < c.Int("count"); i++ {
		// each piece gets a fresh random prompt
		if req.Type == mind.ContentTweet {
			req.Prompt = b.persona.RandomTweetPrompt()
		}
		text, err := b.pipeline.Generate(c.Context, req)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, text)
	}
	return nil
}

func composeRequest(p *mind.Persona, t mind.ContentType, original, author string) (mind.GenerateRequest, error) {
	switch t {
	case mind.ContentTweet:
		return mind.GenerateRequest{Prompt: p.RandomTweetPrompt(), Type: t}, nil
	case mind.ContentBio:
		return mind.GenerateRequest{Prompt: p.BioPrompt(), Type: t}, nil
	case mind.ContentReply, mind.ContentThread:
		if original == "" {
			return mind.GenerateRequest{}, fmt.Errorf("--to is required for %s", t)
		}
		prompt := p.ReplyPrompt(original, author)
		if t == mind.ContentThread {
			prompt = p.EngagePrompt(original, author, true)
		}
		return mind.GenerateRequest{
			Prompt:    prompt,
			Type:      t,
			Relevance: &mind.RelevanceContext{Original: original, Target: author},
		}, nil
	default:
		return mind.GenerateRequest{}, fmt.Errorf("unknown content type %q", t)
	}
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Check text against the structural content rules",
		ArgsUsage: "TEXT",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Value:   string(mind.ContentTweet),
			},
		},
		Action: check,
	}
}

func check(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: TEXT")
	}
	_, pf, err := loadConfig(c)
	if err != nil {
		return err
	}
	policy, err := pf.ValidationPolicy()
	if err != nil {
		return err
	}

	v := mind.NewValidator(policy, nil)
	verdict := v.ValidateStructure(c.Args().First(), mind.ContentType(c.String("type")))
	if !verdict.Accepted {
		return cli.Exit(fmt.Sprintf("rejected (%s): %s", verdict.Rule, verdict.Reason), 2)
	}
	fmt.Fprintln(c.App.Writer, "ok")
	return nil
}
