package mind

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/keshon/moonz/internal/ai"
	"github.com/keshon/moonz/internal/social"
)

// SchedulerConfig holds the probability of each independent gate.
type SchedulerConfig struct {
	TweetProbability    float64
	MentionsProbability float64
	EngageProbability   float64
	// A bio update needs the outer roll, an elapsed cooldown and the inner
	// roll, in that order.
	BioOuterProbability float64
	BioProbability      float64
	BioCooldown         time.Duration
	Tabs                []social.Tab
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		TweetProbability:    0.05,
		MentionsProbability: 0.2,
		EngageProbability:   0.4,
		BioOuterProbability: 0.1,
		BioProbability:      0.3,
		BioCooldown:         6 * time.Hour,
		Tabs:                social.Tabs,
	}
}

// Scheduler decides what to do in a cycle. The only state it reads is the
// cooldowns passed in.
type Scheduler struct {
	cfg     SchedulerConfig
	dice    Dice
	llm     ai.Provider
	persona *Persona
}

// NewScheduler builds a scheduler. With a nil provider the tweet mood check
// is skipped and the base roll alone decides.
func NewScheduler(cfg SchedulerConfig, dice Dice, llm ai.Provider, persona *Persona) *Scheduler {
	if dice == nil {
		dice = DefaultDice
	}
	if len(cfg.Tabs) == 0 {
		cfg.Tabs = social.Tabs
	}
	return &Scheduler{cfg: cfg, dice: dice, llm: llm, persona: persona}
}

// Decide returns the actions for this cycle in execution order: tweet,
// mentions, engage, bio. An empty slice means do nothing.
func (s *Scheduler) Decide(ctx context.Context, now time.Time, cooldowns CooldownState) []ActionDecision {
	var out []ActionDecision

	if roll(s.dice, s.cfg.TweetProbability) && s.inTheMood(ctx) {
		out = append(out, ActionDecision{Kind: ActionTweet})
	}
	if roll(s.dice, s.cfg.MentionsProbability) {
		out = append(out, ActionDecision{Kind: ActionCheckMentions})
	}
	if roll(s.dice, s.cfg.EngageProbability) {
		tab := s.cfg.Tabs[s.dice.IntN(len(s.cfg.Tabs))]
		out = append(out, ActionDecision{Kind: ActionEngage, Tab: tab})
	}
	if roll(s.dice, s.cfg.BioOuterProbability) &&
		cooldowns.Elapsed(ActionUpdateBio, s.cfg.BioCooldown, now) &&
		roll(s.dice, s.cfg.BioProbability) {
		out = append(out, ActionDecision{Kind: ActionUpdateBio})
	}
	return out
}

// inTheMood asks the LLM whether to tweet. Without an answer the agent
// stays quiet.
func (s *Scheduler) inTheMood(ctx context.Context) bool {
	if s.llm == nil || s.persona == nil {
		return true
	}
	req := ai.Request{User: s.persona.MoodPrompt(), MaxTokens: 3, Temperature: 0.7}
	logLLMCall("mood", req)
	out, err := s.llm.Complete(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("component", "scheduler").Msg("mood check failed, skipping tweet")
		return false
	}
	return isAffirmative(out)
}

func isAffirmative(answer string) bool {
	a := strings.ToLower(strings.TrimSpace(answer))
	a = strings.TrimLeft(a, `"'*`)
	return strings.HasPrefix(a, "yes")
}
