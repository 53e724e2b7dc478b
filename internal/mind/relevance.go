package mind

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"

	"github.com/keshon/moonz/internal/ai"
)

// RelevanceContext pairs a reply candidate with the post it answers. Target
// is the only identity the candidate may address.
type RelevanceContext struct {
	Original  string
	Candidate string
	Target    string
}

var (
	handleRe = regexp.MustCompile(`@([A-Za-z0-9_]{1,30})`)
	tickerRe = regexp.MustCompile(`\$[A-Z]{1,6}\b`)
)

const shortOriginalWords = 10

var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`a an the and or but if then so of to in on at by for with from
		about into over under is are was were be been being am do does did have has had
		i me my you your he she it its we our they them their this that these those
		what which who whom how why when where not no yes just very really too also
		can could will would should may might must shall get got like lol`) {
		stopWords[w] = struct{}{}
	}
}

const relevancePrompt = `Original post: %s
Reply: %s

Is the reply a reasonable response to the original post? Be lenient: jokes and tangents count if they connect to the post at all.
Answer yes or no.`

// RelevanceChecker decides whether a reply stays on topic and addresses only
// its target.
type RelevanceChecker struct {
	llm ai.Provider
}

// NewRelevanceChecker builds a checker. With a nil provider the final LLM
// check passes.
func NewRelevanceChecker(llm ai.Provider) *RelevanceChecker {
	return &RelevanceChecker{llm: llm}
}

// IsRelevant evaluates the checks in order; the first one that matches wins.
func (r *RelevanceChecker) IsRelevant(ctx context.Context, rc RelevanceContext) bool {
	if h, ok := foreignHandle(rc.Candidate, rc.Target); ok {
		log.Debug().Str("component", "relevance").Str("handle", h).Msg("candidate addresses another identity")
		return false
	}

	if overlap(rc.Original, rc.Candidate) >= 2 || sharesTicker(rc.Original, rc.Candidate) {
		return true
	}

	if len(strings.Fields(rc.Original)) <= shortOriginalWords {
		return true
	}

	if r.llm == nil {
		return true
	}
	req := ai.Request{
		User:        fmt.Sprintf(relevancePrompt, rc.Original, rc.Candidate),
		MaxTokens:   3,
		Temperature: 0,
	}
	logLLMCall("relevance", req)
	out, err := r.llm.Complete(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("component", "relevance").Msg("relevance check failed, accepting")
		return true
	}
	return isAffirmative(out)
}

func sameIdentity(a, b string) bool {
	a = strings.TrimPrefix(strings.TrimSpace(a), "@")
	b = strings.TrimPrefix(strings.TrimSpace(b), "@")
	// a Caser is stateful and must not be shared
	fold := cases.Fold()
	return fold.String(a) == fold.String(b)
}

// foreignHandle returns the first @handle in text that is not target.
func foreignHandle(text, target string) (string, bool) {
	for _, m := range handleRe.FindAllStringSubmatch(text, -1) {
		if target == "" || !sameIdentity(m[1], target) {
			return m[0], true
		}
	}
	return "", false
}

func contentWords(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	}) {
		w = strings.Trim(w, "'")
		if len([]rune(w)) < 3 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b string) int {
	wa, wb := contentWords(a), contentWords(b)
	n := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			n++
		}
	}
	return n
}

func sharesTicker(original, candidate string) bool {
	have := make(map[string]struct{})
	for _, t := range tickerRe.FindAllString(candidate, -1) {
		have[t] = struct{}{}
	}
	for _, t := range tickerRe.FindAllString(original, -1) {
		if _, ok := have[t]; ok {
			return true
		}
	}
	return false
}
