package mind

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/keshon/moonz/internal/ai"
	"github.com/keshon/moonz/internal/metrics"
)

// Rule names reported in a Verdict.
const (
	RuleForbiddenSymbol = "forbidden_symbol"
	RuleLength          = "length"
	RuleBannedPhrase    = "banned_phrase"
	RuleQuality         = "quality"
)

// Verdict is the outcome of validating one candidate. Rating is 0 when the
// quality gate was not consulted or could not be parsed.
type Verdict struct {
	Accepted bool
	Rule     string
	Reason   string
	Rating   int
}

func accept(rating int) Verdict { return Verdict{Accepted: true, Rating: rating} }

func reject(rule, reason string) Verdict {
	metrics.RecordRejection(rule)
	return Verdict{Rule: rule, Reason: reason}
}

const ratingPrompt = `Rate the following social media post for wit, clarity and naturalness on a scale from 1 to 10.
Answer with a single number only.

Post: %s`

var ratingRe = regexp.MustCompile(`\b(10|[1-9])\b`)

// Validator applies a ValidationPolicy. The quality gate asks an LLM; the
// other rules are local.
type Validator struct {
	policy ValidationPolicy
	llm    ai.Provider
}

// NewValidator builds a validator. With a nil provider the quality gate is
// skipped.
func NewValidator(policy ValidationPolicy, llm ai.Provider) *Validator {
	return &Validator{policy: policy, llm: llm}
}

func (v *Validator) Policy() ValidationPolicy { return v.policy }

// ValidateStructure runs the local rules only, in order, stopping at the
// first failure.
func (v *Validator) ValidateStructure(text string, t ContentType) Verdict {
	for _, re := range v.policy.ForbiddenPatterns {
		if loc := re.FindStringIndex(text); loc != nil {
			return reject(RuleForbiddenSymbol, fmt.Sprintf("contains forbidden %q", text[loc[0]:loc[1]]))
		}
	}

	b := v.policy.Bounds(t)
	n := utf8.RuneCountInString(text)
	if n < b.Min || n > b.Max {
		return reject(RuleLength, fmt.Sprintf("length %d outside [%d, %d]", n, b.Min, b.Max))
	}

	lower := strings.ToLower(text)
	for _, phrase := range v.policy.BannedPhrases {
		if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
			return reject(RuleBannedPhrase, fmt.Sprintf("contains banned phrase %q", phrase))
		}
	}
	return accept(0)
}

// Validate runs every rule. A failing or unparseable quality rating accepts
// the text: the gate filters bad output, it does not block the agent.
func (v *Validator) Validate(ctx context.Context, text string, t ContentType) Verdict {
	if verdict := v.ValidateStructure(text, t); !verdict.Accepted {
		return verdict
	}
	if v.llm == nil || v.policy.QualityThreshold <= 0 {
		return accept(0)
	}

	req := ai.Request{
		User:        fmt.Sprintf(ratingPrompt, text),
		MaxTokens:   5,
		Temperature: 0,
	}
	logLLMCall("rate", req)
	out, err := v.llm.Complete(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("component", "validator").Msg("quality rating failed, accepting")
		return accept(0)
	}
	rating, ok := parseRating(out)
	if !ok {
		log.Warn().Str("component", "validator").Str("answer", truncateForLog(out, 40)).Msg("unparseable rating, accepting")
		return accept(0)
	}
	if rating < v.policy.QualityThreshold {
		verdict := reject(RuleQuality, fmt.Sprintf("rated %d, need %d", rating, v.policy.QualityThreshold))
		verdict.Rating = rating
		return verdict
	}
	return accept(rating)
}

// parseRating takes the first integer 1-10 in s.
func parseRating(s string) (int, bool) {
	m := ratingRe.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}
