package mind

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/keshon/moonz/internal/ai"
	"github.com/keshon/moonz/internal/social"
)

// scriptedDice replays fixed values; once exhausted Float64 returns 0.99
// (every gate fails) and IntN returns 0.
type scriptedDice struct {
	floats []float64
	ints   []int
}

func (d *scriptedDice) Float64() float64 {
	if len(d.floats) == 0 {
		return 0.99
	}
	f := d.floats[0]
	d.floats = d.floats[1:]
	return f
}

func (d *scriptedDice) IntN(n int) int {
	if len(d.ints) == 0 {
		return 0
	}
	i := d.ints[0]
	d.ints = d.ints[1:]
	return i % n
}

// fixedDice always returns the same values.
type fixedDice struct{}

func (fixedDice) Float64() float64 { return 0.5 }
func (fixedDice) IntN(int) int     { return 0 }

// fakeLLM answers through fn and records every request.
type fakeLLM struct {
	mu    sync.Mutex
	fn    func(n int, req ai.Request) (string, error)
	calls []ai.Request
}

func llmReturning(answer string) *fakeLLM {
	return &fakeLLM{fn: func(int, ai.Request) (string, error) { return answer, nil }}
}

func llmFailing() *fakeLLM {
	return &fakeLLM{fn: func(int, ai.Request) (string, error) {
		return "", errors.Join(ai.ErrGeneration, errors.New("backend down"))
	}}
}

func (f *fakeLLM) Complete(_ context.Context, req ai.Request) (string, error) {
	f.mu.Lock()
	n := len(f.calls)
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	return f.fn(n, req)
}

func (f *fakeLLM) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type gateFunc func(text string, t ContentType) Verdict

func (g gateFunc) Validate(_ context.Context, text string, t ContentType) Verdict { return g(text, t) }

type relevanceFunc func(rc RelevanceContext) bool

func (f relevanceFunc) IsRelevant(_ context.Context, rc RelevanceContext) bool { return f(rc) }

type reply struct {
	to   string
	text string
}

// fakePlatform serves canned content and records what the agent did.
type fakePlatform struct {
	mu sync.Mutex

	self     social.Identity
	mentions []social.Mention
	timeline []social.Post

	postErr    error
	replyErr   error
	profileErr error
	panicOn    string

	sinceSeen []string
	posts     []string
	replies   []reply
	likes     []string
	follows   []string
	bios      []string
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{self: social.Identity{ID: "self-id", Handle: "moonz"}}
}

func (f *fakePlatform) Self() social.Identity { return f.self }

func (f *fakePlatform) PostContent(_ context.Context, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return "", f.postErr
	}
	f.posts = append(f.posts, text)
	return "p" + string(rune('0'+len(f.posts))), nil
}

func (f *fakePlatform) PostReply(_ context.Context, to, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replyErr != nil {
		return "", f.replyErr
	}
	f.replies = append(f.replies, reply{to: to, text: text})
	return "r-" + to, nil
}

func (f *fakePlatform) FetchMentions(_ context.Context, since string) ([]social.Mention, error) {
	if f.panicOn == "mentions" {
		panic("selector exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinceSeen = append(f.sinceSeen, since)
	// mentions are oldest first; only those after since come back
	start := 0
	for i, m := range f.mentions {
		if m.ID == since {
			start = i + 1
		}
	}
	return append([]social.Mention(nil), f.mentions[start:]...), nil
}

func (f *fakePlatform) FetchTimeline(context.Context, social.Tab) ([]social.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]social.Post(nil), f.timeline...), nil
}

func (f *fakePlatform) LikeContent(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.likes = append(f.likes, id)
	return nil
}

func (f *fakePlatform) FollowUser(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.follows = append(f.follows, id)
	return nil
}

func (f *fakePlatform) UpdateProfile(_ context.Context, bio string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profileErr != nil {
		return f.profileErr
	}
	f.bios = append(f.bios, bio)
	return nil
}

// failingState fails every write.
type failingState struct{ StateStore }

func (failingState) SaveCooldowns(CooldownState) error { return errors.New("disk full") }
func (failingState) SetLastMentionID(string) error     { return errors.New("disk full") }

func words(n int, w string) string {
	return strings.TrimSpace(strings.Repeat(w+" ", n))
}
