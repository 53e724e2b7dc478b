package mind

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStructure(t *testing.T) {
	v := NewValidator(DefaultPolicy(), nil)

	tests := []struct {
		name string
		text string
		typ  ContentType
		rule string
	}{
		{"clean", "Mondays should be illegal.", ContentTweet, ""},
		{"hashtag", "Mondays should be illegal #truth", ContentTweet, RuleForbiddenSymbol},
		{"emoji", "Mondays should be illegal 😂", ContentTweet, RuleForbiddenSymbol},
		{"dingbat", "Mondays should be illegal ✨", ContentTweet, RuleForbiddenSymbol},
		{"forbidden before length", "#", ContentTweet, RuleForbiddenSymbol},
		{"too short", "Too short", ContentTweet, RuleLength},
		{"exactly min", "Ten runes.", ContentTweet, ""},
		{"too long", strings.Repeat("a", 201), ContentTweet, RuleLength},
		{"multibyte counts runes", strings.Repeat("é", 200), ContentTweet, ""},
		{"bio is shorter", strings.Repeat("b", 170), ContentBio, RuleLength},
		{"tweet allows the same", strings.Repeat("b", 170), ContentTweet, ""},
		{"banned phrase any case", "As An AI, I find Mondays suspicious.", ContentTweet, RuleBannedPhrase},
		{"banned word inside", "Let me delve into pineapple pizza.", ContentReply, RuleBannedPhrase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.ValidateStructure(tt.text, tt.typ)
			if tt.rule == "" {
				assert.True(t, got.Accepted, got.Reason)
				return
			}
			assert.False(t, got.Accepted)
			assert.Equal(t, tt.rule, got.Rule)
			assert.NotEmpty(t, got.Reason)
		})
	}
}

func TestValidate_QualityGate(t *testing.T) {
	const text = "Pineapple on pizza is a cry for help."

	tests := []struct {
		name     string
		llm      *fakeLLM
		accepted bool
		rating   int
	}{
		{"good rating", llmReturning("7"), true, 7},
		{"exact threshold", llmReturning("4"), true, 4},
		{"low rating", llmReturning("2"), false, 2},
		{"first integer wins", llmReturning("Rating: 8/10"), true, 8},
		{"ten", llmReturning("10"), true, 10},
		{"malformed accepts", llmReturning("great stuff!"), true, 0},
		{"transport error accepts", llmFailing(), true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator(DefaultPolicy(), tt.llm)
			got := v.Validate(context.Background(), text, ContentTweet)
			assert.Equal(t, tt.accepted, got.Accepted)
			assert.Equal(t, tt.rating, got.Rating)
			if !tt.accepted {
				assert.Equal(t, RuleQuality, got.Rule)
			}
			require.Equal(t, 1, tt.llm.count())
			assert.Equal(t, 5, tt.llm.calls[0].MaxTokens)
			assert.Contains(t, tt.llm.calls[0].User, text)
		})
	}
}

func TestValidate_StructuralFailureSkipsLLM(t *testing.T) {
	llm := llmReturning("9")
	v := NewValidator(DefaultPolicy(), llm)

	got := v.Validate(context.Background(), "short", ContentTweet)
	assert.False(t, got.Accepted)
	assert.Equal(t, RuleLength, got.Rule)
	assert.Zero(t, llm.count())
}

func TestParseRating(t *testing.T) {
	n, ok := parseRating(" 6 ")
	assert.True(t, ok)
	assert.Equal(t, 6, n)

	_, ok = parseRating("0")
	assert.False(t, ok)

	_, ok = parseRating("eleven")
	assert.False(t, ok)
}

func TestCompilePatterns(t *testing.T) {
	_, err := CompilePatterns([]string{"ok", "(unclosed"})
	assert.Error(t, err)

	res, err := CompilePatterns([]string{`\bcrypto\b`})
	require.NoError(t, err)
	assert.True(t, res[0].MatchString("buy crypto now"))
}
