package social

import (
	"context"
	"errors"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/rs/zerolog/log"

	"github.com/keshon/moonz/internal/metrics"
)

// GuardConfig configures retries and the circuit breaker around a Platform.
type GuardConfig struct {
	MaxRetries       int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	FailureThreshold uint          // consecutive failures that open the breaker
	BreakerDelay     time.Duration // how long the breaker stays open
}

func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		MaxRetries:       2,
		BaseDelay:        time.Second,
		MaxDelay:         10 * time.Second,
		FailureThreshold: 5,
		BreakerDelay:     2 * time.Minute,
	}
}

// Guarded decorates a Platform with retries and a circuit breaker. Reads and
// idempotent writes are retried; publishing is not, so a timeout never
// produces a duplicate post.
type Guarded struct {
	next    Platform
	reads   failsafe.Executor[any]
	writes  failsafe.Executor[any]
	breaker circuitbreaker.CircuitBreaker[any]
}

func NewGuarded(next Platform, cfg GuardConfig) *Guarded {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.BreakerDelay <= 0 {
		cfg.BreakerDelay = 2 * time.Minute
	}

	retry := retrypolicy.NewBuilder[any]().
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxRetries).
		WithJitterFactor(0.1).
		HandleIf(func(_ any, err error) bool {
			return shouldRetry(err)
		}).
		Build()

	breaker := circuitbreaker.NewBuilder[any]().
		WithFailureThreshold(cfg.FailureThreshold).
		WithDelay(cfg.BreakerDelay).
		WithSuccessThreshold(1).
		HandleIf(func(_ any, err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		}).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			from, to := stateName(e.OldState), stateName(e.NewState)
			log.Warn().Str("from", from).Str("to", to).Msg("platform circuit breaker state change")
			metrics.RecordBreakerTransition(from, to)
		}).
		Build()

	return &Guarded{
		next:    next,
		reads:   failsafe.With[any](retry, breaker),
		writes:  failsafe.With[any](breaker),
		breaker: breaker,
	}
}

func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, circuitbreaker.ErrOpen) || errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

func stateName(s circuitbreaker.State) string {
	switch s {
	case circuitbreaker.OpenState:
		return "open"
	case circuitbreaker.HalfOpenState:
		return "half-open"
	default:
		return "closed"
	}
}

// BreakerOpen reports whether calls are currently short-circuited.
func (g *Guarded) BreakerOpen() bool { return g.breaker.IsOpen() }

func guard[T any](ctx context.Context, ex failsafe.Executor[any], op string, fn func() (T, error)) (T, error) {
	v, err := ex.WithContext(ctx).Get(func() (any, error) {
		r, err := fn()
		return r, err
	})
	if err != nil {
		var zero T
		return zero, Transport(op, err)
	}
	t, _ := v.(T)
	return t, nil
}

var _ Platform = (*Guarded)(nil)

func (g *Guarded) Self() Identity { return g.next.Self() }

func (g *Guarded) PostContent(ctx context.Context, text string) (string, error) {
	return guard(ctx, g.writes, "post", func() (string, error) {
		return g.next.PostContent(ctx, text)
	})
}

func (g *Guarded) PostReply(ctx context.Context, inReplyTo, text string) (string, error) {
	return guard(ctx, g.writes, "reply", func() (string, error) {
		return g.next.PostReply(ctx, inReplyTo, text)
	})
}

func (g *Guarded) FetchMentions(ctx context.Context, sinceID string) ([]Mention, error) {
	return guard(ctx, g.reads, "fetch mentions", func() ([]Mention, error) {
		return g.next.FetchMentions(ctx, sinceID)
	})
}

func (g *Guarded) FetchTimeline(ctx context.Context, tab Tab) ([]Post, error) {
	return guard(ctx, g.reads, "fetch timeline", func() ([]Post, error) {
		return g.next.FetchTimeline(ctx, tab)
	})
}

func (g *Guarded) LikeContent(ctx context.Context, postID string) error {
	_, err := guard(ctx, g.reads, "like", func() (struct{}, error) {
		return struct{}{}, g.next.LikeContent(ctx, postID)
	})
	return err
}

func (g *Guarded) FollowUser(ctx context.Context, userID string) error {
	_, err := guard(ctx, g.reads, "follow", func() (struct{}, error) {
		return struct{}{}, g.next.FollowUser(ctx, userID)
	})
	return err
}

func (g *Guarded) UpdateProfile(ctx context.Context, bio string) error {
	_, err := guard(ctx, g.reads, "update profile", func() (struct{}, error) {
		return struct{}{}, g.next.UpdateProfile(ctx, bio)
	})
	return err
}
