package mind

import (
	"fmt"
	"regexp"
	"strings"
)

// LengthBounds is an inclusive rune-count range.
type LengthBounds struct {
	Min int
	Max int
}

// ValidationPolicy is the set of rules generated text must pass.
type ValidationPolicy struct {
	ForbiddenPatterns []*regexp.Regexp
	MinLength         int
	MaxLength         int
	LengthOverrides   map[ContentType]LengthBounds
	BannedPhrases     []string
	// QualityThreshold is the minimum LLM rating on a 1-10 scale.
	QualityThreshold int
}

// DefaultForbiddenPatterns reject hashtags and emoji.
var DefaultForbiddenPatterns = []string{
	`#`,
	`[\x{1F300}-\x{1FAFF}]`, // pictographs, emoticons, transport, supplemental
	`[\x{2600}-\x{27BF}]`,   // misc symbols and dingbats
	`[\x{1F1E6}-\x{1F1FF}]`, // regional indicators (flags)
}

// DefaultBannedPhrases are tells of machine-written text.
var DefaultBannedPhrases = []string{
	"as an ai",
	"language model",
	"delve",
	"tapestry",
	"in conclusion",
	"buckle up",
	"let's dive in",
	"game-changer",
}

func DefaultPolicy() ValidationPolicy {
	return ValidationPolicy{
		ForbiddenPatterns: MustCompilePatterns(DefaultForbiddenPatterns),
		MinLength:         10,
		MaxLength:         200,
		LengthOverrides: map[ContentType]LengthBounds{
			ContentBio: {Min: 10, Max: 160},
		},
		BannedPhrases:    DefaultBannedPhrases,
		QualityThreshold: 4,
	}
}

// CompilePatterns compiles every expression or reports the first bad one.
func CompilePatterns(exprs []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		re, err := regexp.Compile(e)
		if err != nil {
			return nil, fmt.Errorf("forbidden pattern %q: %w", e, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func MustCompilePatterns(exprs []string) []*regexp.Regexp {
	out, err := CompilePatterns(exprs)
	if err != nil {
		panic(err)
	}
	return out
}

// Bounds returns the length range for t.
func (p ValidationPolicy) Bounds(t ContentType) LengthBounds {
	if b, ok := p.LengthOverrides[t]; ok {
		return b
	}
	return LengthBounds{Min: p.MinLength, Max: p.MaxLength}
}

// Constraints renders the policy as instructions appended to every prompt.
func (p ValidationPolicy) Constraints(t ContentType) string {
	b := p.Bounds(t)
	lines := []string{
		fmt.Sprintf("Between %d and %d characters.", b.Min, b.Max),
		"No hashtags.",
		"No emojis.",
		"Write complete sentences and end with punctuation.",
		"Output only the text itself, no quotes or preamble.",
	}
	if len(p.BannedPhrases) > 0 {
		lines = append(lines, "Never use these phrases: "+strings.Join(p.BannedPhrases, ", ")+".")
	}
	return "HARD RULES:\n- " + strings.Join(lines, "\n- ")
}
