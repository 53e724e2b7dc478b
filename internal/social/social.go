// Package social defines the platform surface the agent acts on.
package social

import (
	"context"
	"errors"
	"fmt"
)

// ErrTransport wraps every platform failure.
var ErrTransport = errors.New("platform transport failed")

// Tab is a timeline view.
type Tab string

const (
	TabHome      Tab = "home"
	TabFollowing Tab = "following"
)

// Tabs lists every timeline the agent may browse.
var Tabs = []Tab{TabHome, TabFollowing}

type Mention struct {
	ID           string
	Text         string
	AuthorID     string
	AuthorHandle string
}

type Post struct {
	ID           string
	Text         string
	AuthorID     string
	AuthorHandle string
	IsThread     bool
}

// Identity is the account the agent is logged in as.
type Identity struct {
	ID     string
	Handle string
}

// Platform is implemented by every transport adapter. Implementations wrap
// their failures with ErrTransport.
type Platform interface {
	Self() Identity
	PostContent(ctx context.Context, text string) (string, error)
	PostReply(ctx context.Context, inReplyTo, text string) (string, error)
	// FetchMentions returns mentions newer than sinceID, oldest first.
	FetchMentions(ctx context.Context, sinceID string) ([]Mention, error)
	FetchTimeline(ctx context.Context, tab Tab) ([]Post, error)
	LikeContent(ctx context.Context, postID string) error
	FollowUser(ctx context.Context, userID string) error
	UpdateProfile(ctx context.Context, bio string) error
}

// Transport wraps err with ErrTransport and the failed operation.
func Transport(op string, err error) error {
	if err == nil || errors.Is(err, ErrTransport) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrTransport, err)
}
