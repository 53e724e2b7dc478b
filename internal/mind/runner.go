package mind

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/keshon/moonz/internal/ai"
	"github.com/keshon/moonz/internal/metrics"
	"github.com/keshon/moonz/internal/social"
)

var (
	errPostLimited = errors.New("post rate limit reached")
	errState       = errors.New("state persistence failed")
)

// StateStore persists what must survive a restart.
type StateStore interface {
	LastMentionID() (string, error)
	SetLastMentionID(id string) error
	Cooldowns() (CooldownState, error)
	SaveCooldowns(c CooldownState) error
	Followed(userID string) (bool, error)
	MarkFollowed(userID string) error
}

// Sleeper waits for d or until ctx is done, returning ctx.Err() in the
// latter case.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the production Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RunnerConfig holds loop timing and per-cycle caps.
type RunnerConfig struct {
	CycleMin       time.Duration
	CycleMax       time.Duration
	ActionPauseMin time.Duration
	ActionPauseMax time.Duration
	ItemPauseMin   time.Duration
	ItemPauseMax   time.Duration
	ErrorDelay     time.Duration

	MaxRepliesPerCycle     int
	MaxEngagementsPerCycle int
	LikeProbability        float64
	ReplyProbability       float64
	FollowProbability      float64

	// RecordOnSuccess marks content as engaged only after a successful
	// action. The default marks it before trying, so a failure is never
	// retried.
	RecordOnSuccess bool
	TweetOnStart    bool
}

func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		CycleMin:               5 * time.Minute,
		CycleMax:               15 * time.Minute,
		ActionPauseMin:         30 * time.Second,
		ActionPauseMax:         2 * time.Minute,
		ItemPauseMin:           5 * time.Second,
		ItemPauseMax:           20 * time.Second,
		ErrorDelay:             10 * time.Second,
		MaxRepliesPerCycle:     3,
		MaxEngagementsPerCycle: 3,
		LikeProbability:        0.6,
		ReplyProbability:       0.5,
		FollowProbability:      0.1,
	}
}

// Deps are the collaborators of a Runner. Platform, Pipeline, Scheduler and
// Persona are required; the rest default.
type Deps struct {
	Platform  social.Platform
	Pipeline  *Pipeline
	Scheduler *Scheduler
	Persona   *Persona
	Memory    *EngagementMemory
	Limiter   *PostLimiter
	State     StateStore
	Dice      Dice
	Sleep     Sleeper
	Now       func() time.Time
}

// Runner owns the agent loop. Memory and cooldowns are touched only from
// the goroutine running Run.
type Runner struct {
	platform  social.Platform
	pipeline  *Pipeline
	scheduler *Scheduler
	persona   *Persona
	memory    *EngagementMemory
	limiter   *PostLimiter
	state     StateStore
	dice      Dice
	sleep     Sleeper
	now       func() time.Time
	cfg       RunnerConfig
	cooldowns CooldownState
}

func NewRunner(d Deps, cfg RunnerConfig) (*Runner, error) {
	if d.Platform == nil || d.Pipeline == nil || d.Scheduler == nil || d.Persona == nil {
		return nil, errors.New("runner: platform, pipeline, scheduler and persona are required")
	}
	r := &Runner{
		platform:  d.Platform,
		pipeline:  d.Pipeline,
		scheduler: d.Scheduler,
		persona:   d.Persona,
		memory:    d.Memory,
		limiter:   d.Limiter,
		state:     d.State,
		dice:      d.Dice,
		sleep:     d.Sleep,
		now:       d.Now,
		cfg:       cfg,
	}
	if r.memory == nil {
		r.memory = NewEngagementMemory(0, 0)
	}
	if r.limiter == nil {
		r.limiter = DefaultPostLimiter()
	}
	if r.state == nil {
		r.state = NewMemoryState()
	}
	if r.dice == nil {
		r.dice = DefaultDice
	}
	if r.sleep == nil {
		r.sleep = SleepContext
	}
	if r.now == nil {
		r.now = time.Now
	}

	cd, err := r.state.Cooldowns()
	if err != nil {
		return nil, fmt.Errorf("load cooldowns: %w", err)
	}
	if cd == nil {
		cd = CooldownState{}
	}
	r.cooldowns = cd
	return r, nil
}

// Cooldowns returns a copy of the current cooldown state.
func (r *Runner) Cooldowns() CooldownState { return r.cooldowns.Clone() }

// Run loops until ctx is cancelled and then returns ctx.Err().
func (r *Runner) Run(ctx context.Context) error {
	log.Info().Str("persona", r.persona.Name).Str("as", r.platform.Self().Handle).Msg("agent loop started")

	if r.cfg.TweetOnStart {
		err := r.tweet(ctx)
		r.report(log.Logger, ActionDecision{Kind: ActionTweet}, err)
	}

	for {
		if err := r.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.RecordCycle("error")
			log.Error().Err(err).Dur("retry_in", r.cfg.ErrorDelay).Msg("cycle failed")
			if err := r.sleep(ctx, r.cfg.ErrorDelay); err != nil {
				return err
			}
			continue
		}
		metrics.RecordCycle("ok")

		wait := between(r.dice, r.cfg.CycleMin, r.cfg.CycleMax)
		log.Info().Dur("next_in", wait).Msg("cycle done")
		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// RunCycle performs one decide-and-execute pass. Per-action failures are
// logged and swallowed; the returned error is for failures of the cycle
// itself (state persistence, a panic, cancellation).
func (r *Runner) RunCycle(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("cycle panic: %v\n%s", p, debug.Stack())
		}
	}()

	logger := log.With().Str("cycle", uuid.NewString()).Logger()

	if r.memory.Compact() {
		logger.Debug().Int("size", r.memory.Len()).Msg("engagement memory compacted")
	}
	metrics.SetMemorySize(r.memory.Len())

	decisions := r.scheduler.Decide(ctx, r.now(), r.cooldowns)
	if len(decisions) == 0 {
		logger.Info().Msg("nothing to do this cycle")
		return nil
	}

	for _, d := range decisions {
		if err := ctx.Err(); err != nil {
			return err
		}
		actErr := r.execute(ctx, logger, d)
		if errors.Is(actErr, errState) {
			return actErr
		}
		r.report(logger, d, actErr)

		if err := r.sleep(ctx, between(r.dice, r.cfg.ActionPauseMin, r.cfg.ActionPauseMax)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) execute(ctx context.Context, logger zerolog.Logger, d ActionDecision) error {
	logger.Info().Str("action", string(d.Kind)).Str("tab", string(d.Tab)).Msg("executing action")
	switch d.Kind {
	case ActionTweet:
		return r.tweet(ctx)
	case ActionCheckMentions:
		return r.checkMentions(ctx, logger)
	case ActionEngage:
		return r.engage(ctx, logger, d.Tab)
	case ActionUpdateBio:
		return r.updateBio(ctx)
	default:
		return fmt.Errorf("unknown action %q", d.Kind)
	}
}

func (r *Runner) report(logger zerolog.Logger, d ActionDecision, err error) {
	outcome := classify(err)
	metrics.RecordAction(string(d.Kind), outcome)
	if err == nil {
		return
	}
	ev := logger.Warn()
	if outcome == "error" {
		ev = logger.Error()
	}
	ev.Err(err).Str("action", string(d.Kind)).Str("outcome", outcome).Msg("action abandoned")
}

func classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMaxAttemptsExceeded):
		return "validation_exhausted"
	case errors.Is(err, social.ErrTransport):
		return "transport"
	case errors.Is(err, ai.ErrGeneration):
		return "generation"
	case errors.Is(err, errPostLimited):
		return "rate_limited"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}

func (r *Runner) isSelf(id, handle string) bool {
	self := r.platform.Self()
	if id != "" && id == self.ID {
		return true
	}
	return handle != "" && sameIdentity(handle, self.Handle)
}

func (r *Runner) pause(ctx context.Context) error {
	return r.sleep(ctx, between(r.dice, r.cfg.ItemPauseMin, r.cfg.ItemPauseMax))
}

func (r *Runner) tweet(ctx context.Context) error {
	if !r.limiter.Allow(r.now()) {
		return errPostLimited
	}
	text, err := r.pipeline.Generate(ctx, GenerateRequest{
		Prompt: r.persona.RandomTweetPrompt(),
		Type:   ContentTweet,
	})
	if err != nil {
		return err
	}
	id, err := r.platform.PostContent(ctx, text)
	if err != nil {
		return err
	}
	r.limiter.Record(r.now())
	log.Info().Str("id", id).Str("text", text).Msg("posted")
	return nil
}

func (r *Runner) checkMentions(ctx context.Context, logger zerolog.Logger) error {
	since, err := r.state.LastMentionID()
	if err != nil {
		return fmt.Errorf("%w: read last mention id: %w", errState, err)
	}
	mentions, err := r.platform.FetchMentions(ctx, since)
	if err != nil {
		return err
	}
	logger.Debug().Int("count", len(mentions)).Str("since", since).Msg("mentions fetched")

	// With RecordOnSuccess the cursor stops before the first failed reply so
	// the next cycle fetches it again.
	last := since
	held := false
	advance := func(id string) {
		if !held {
			last = id
		}
	}
	replies := 0
	for _, m := range mentions {
		if ctx.Err() != nil {
			break
		}
		if replies >= r.cfg.MaxRepliesPerCycle || !r.limiter.Allow(r.now()) {
			break
		}
		if !r.cfg.RecordOnSuccess {
			last = m.ID
		}

		if r.isSelf(m.AuthorID, m.AuthorHandle) {
			advance(m.ID)
			continue
		}
		fp := NewFingerprint(m.AuthorHandle, m.Text)
		if r.memory.Has(fp) {
			advance(m.ID)
			continue
		}
		if !r.cfg.RecordOnSuccess {
			r.memory.Record(fp)
		}

		if err := r.replyTo(ctx, m.ID, m.Text, m.AuthorHandle, ContentReply, r.persona.ReplyPrompt(m.Text, m.AuthorHandle)); err != nil {
			logger.Warn().Err(err).Str("mention", m.ID).Str("outcome", classify(err)).Msg("mention skipped")
			if errors.Is(err, errPostLimited) {
				break
			}
			held = true
			continue
		}
		if r.cfg.RecordOnSuccess {
			r.memory.Record(fp)
			advance(m.ID)
		}
		replies++
		if err := r.pause(ctx); err != nil {
			break
		}
	}

	if last != since {
		if err := r.state.SetLastMentionID(last); err != nil {
			return fmt.Errorf("%w: save last mention id: %w", errState, err)
		}
	}
	logger.Info().Int("replies", replies).Msg("mentions handled")
	return ctx.Err()
}

func (r *Runner) replyTo(ctx context.Context, postID, original, author string, t ContentType, prompt string) error {
	if !r.limiter.Allow(r.now()) {
		return errPostLimited
	}
	text, err := r.pipeline.Generate(ctx, GenerateRequest{
		Prompt:    prompt,
		Type:      t,
		Relevance: &RelevanceContext{Original: original, Target: author},
	})
	if err != nil {
		return err
	}
	if _, err := r.platform.PostReply(ctx, postID, text); err != nil {
		return err
	}
	r.limiter.Record(r.now())
	log.Info().Str("in_reply_to", postID).Str("text", text).Msg("replied")
	return nil
}

func (r *Runner) engage(ctx context.Context, logger zerolog.Logger, tab social.Tab) error {
	posts, err := r.platform.FetchTimeline(ctx, tab)
	if err != nil {
		return err
	}

	engaged := 0
	for _, p := range posts {
		if ctx.Err() != nil {
			break
		}
		if engaged >= r.cfg.MaxEngagementsPerCycle {
			break
		}
		if r.isSelf(p.AuthorID, p.AuthorHandle) {
			continue
		}
		fp := NewFingerprint(p.AuthorHandle, p.Text)
		if r.memory.Has(fp) {
			continue
		}
		if !r.cfg.RecordOnSuccess {
			r.memory.Record(fp)
		}

		plog := logger.With().Str("post", p.ID).Str("author", p.AuthorHandle).Logger()
		acted := false

		if roll(r.dice, r.cfg.LikeProbability) {
			if err := r.platform.LikeContent(ctx, p.ID); err != nil {
				plog.Warn().Err(err).Msg("like failed")
			} else {
				acted = true
				metrics.RecordAction("like", "ok")
			}
		}

		if roll(r.dice, r.cfg.ReplyProbability) {
			t := ContentReply
			if p.IsThread {
				t = ContentThread
			}
			prompt := r.persona.EngagePrompt(p.Text, p.AuthorHandle, p.IsThread)
			if err := r.replyTo(ctx, p.ID, p.Text, p.AuthorHandle, t, prompt); err != nil {
				plog.Warn().Err(err).Str("outcome", classify(err)).Msg("reply skipped")
			} else {
				acted = true
				metrics.RecordAction("reply", "ok")
			}
		}

		if roll(r.dice, r.cfg.FollowProbability) && p.AuthorID != "" {
			if ok, err := r.follow(ctx, p.AuthorID); err != nil {
				if errors.Is(err, errState) {
					return err
				}
				plog.Warn().Err(err).Msg("follow failed")
			} else if ok {
				acted = true
				metrics.RecordAction("follow", "ok")
			}
		}

		if r.cfg.RecordOnSuccess && acted {
			r.memory.Record(fp)
		}
		engaged++
		if err := r.pause(ctx); err != nil {
			break
		}
	}
	logger.Info().Str("tab", string(tab)).Int("engaged", engaged).Msg("timeline engagement done")
	return ctx.Err()
}

// follow follows userID unless it already did. It reports whether a new
// follow happened.
func (r *Runner) follow(ctx context.Context, userID string) (bool, error) {
	done, err := r.state.Followed(userID)
	if err != nil {
		return false, fmt.Errorf("%w: read follow cache: %w", errState, err)
	}
	if done {
		return false, nil
	}
	if err := r.platform.FollowUser(ctx, userID); err != nil {
		return false, err
	}
	if err := r.state.MarkFollowed(userID); err != nil {
		return false, fmt.Errorf("%w: save follow cache: %w", errState, err)
	}
	return true, nil
}

func (r *Runner) updateBio(ctx context.Context) error {
	r.cooldowns.Mark(ActionUpdateBio, r.now())
	if err := r.state.SaveCooldowns(r.cooldowns.Clone()); err != nil {
		return fmt.Errorf("%w: save cooldowns: %w", errState, err)
	}

	text, err := r.pipeline.Generate(ctx, GenerateRequest{Prompt: r.persona.BioPrompt(), Type: ContentBio})
	if err != nil {
		return err
	}
	if err := r.platform.UpdateProfile(ctx, text); err != nil {
		return err
	}
	log.Info().Str("bio", text).Msg("profile updated")
	return nil
}

// memoryState is a StateStore that forgets everything on restart.
type memoryState struct {
	mu        sync.Mutex
	lastID    string
	cooldowns CooldownState
	followed  map[string]struct{}
}

func NewMemoryState() StateStore {
	return &memoryState{cooldowns: CooldownState{}, followed: make(map[string]struct{})}
}

func (m *memoryState) LastMentionID() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastID, nil
}

func (m *memoryState) SetLastMentionID(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastID = id
	return nil
}

func (m *memoryState) Cooldowns() (CooldownState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cooldowns.Clone(), nil
}

func (m *memoryState) SaveCooldowns(c CooldownState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cooldowns = c.Clone()
	return nil
}

func (m *memoryState) Followed(userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.followed[userID]
	return ok, nil
}

func (m *memoryState) MarkFollowed(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.followed[userID] = struct{}{}
	return nil
}
