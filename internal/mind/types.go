package mind

import (
	"math/rand/v2"
	"time"

	"github.com/keshon/moonz/internal/social"
)

// ContentType is the kind of text being generated. It selects length bounds
// and prompt wording.
type ContentType string

const (
	ContentTweet  ContentType = "tweet"
	ContentReply  ContentType = "reply"
	ContentThread ContentType = "thread"
	ContentBio    ContentType = "bio"
)

// ContentCandidate is one generated text awaiting validation.
type ContentCandidate struct {
	Text   string
	Prompt string
	Type   ContentType
}

// ActionKind names something the agent can do in a cycle.
type ActionKind string

const (
	ActionTweet         ActionKind = "tweet"
	ActionCheckMentions ActionKind = "check_mentions"
	ActionEngage        ActionKind = "engage"
	ActionUpdateBio     ActionKind = "update_bio"
)

// ActionDecision is one scheduled action. Tab is set for ActionEngage only.
type ActionDecision struct {
	Kind ActionKind
	Tab  social.Tab
}

// CooldownState holds the last time each action ran. Only the action an
// entry gates writes to it.
type CooldownState map[ActionKind]time.Time

func (c CooldownState) Last(k ActionKind) time.Time { return c[k] }

// Elapsed reports whether at least d has passed since k last ran. An action
// that never ran has always elapsed.
func (c CooldownState) Elapsed(k ActionKind, d time.Duration, now time.Time) bool {
	last := c[k]
	return last.IsZero() || now.Sub(last) >= d
}

func (c CooldownState) Mark(k ActionKind, at time.Time) { c[k] = at }

// Clone returns an independent copy.
func (c CooldownState) Clone() CooldownState {
	out := make(CooldownState, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Dice is the randomness source for every probabilistic choice. Tests
// script it; production uses math/rand/v2.
type Dice interface {
	Float64() float64
	IntN(n int) int
}

type globalDice struct{}

func (globalDice) Float64() float64 { return rand.Float64() }
func (globalDice) IntN(n int) int   { return rand.IntN(n) }

// DefaultDice is backed by the global math/rand/v2 source.
var DefaultDice Dice = globalDice{}

// roll returns true with probability p.
func roll(d Dice, p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return d.Float64() < p
}

// between returns a uniform duration in [lo, hi].
func between(d Dice, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(d.Float64()*float64(hi-lo))
}
