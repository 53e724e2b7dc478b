package ai

import (
	"context"
	"errors"
	"net/http"

	"github.com/keshon/moonz/pkg/retrylimit"
)

// Limited paces calls to the wrapped provider and retries transient failures.
type Limited struct {
	next Provider
	lim  *retrylimit.AdaptiveLimiter
	cfg  retrylimit.RetryConfig
}

// NewLimited wraps next. lim may be nil to disable pacing.
func NewLimited(next Provider, lim *retrylimit.AdaptiveLimiter, cfg retrylimit.RetryConfig) *Limited {
	return &Limited{next: next, lim: lim, cfg: cfg}
}

func (l *Limited) Complete(ctx context.Context, r Request) (string, error) {
	var out string
	err := retrylimit.WithRetryConfig(ctx, func() error {
		s, err := l.next.Complete(ctx, r)
		if err != nil {
			if !retryable(err) {
				return retrylimit.Fatal(err)
			}
			return err
		}
		out = s
		return nil
	}, l.lim, l.cfg)
	if err != nil {
		return "", wrapErr("llm", err)
	}
	return out, nil
}

// retryable is false for client errors that will not fix themselves (bad
// key, bad request); everything else may be transient.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.Code == http.StatusTooManyRequests, se.Code == http.StatusRequestTimeout:
			return true
		case se.Code >= 400 && se.Code < 500:
			return false
		}
	}
	return !errors.Is(err, context.Canceled)
}
