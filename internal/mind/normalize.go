package mind

import (
	"strings"
	"unicode/utf8"
)

const (
	doubleQuotes = "\"“”"
	terminals    = ".!?…"
	closers      = "\"”')"
)

// CompleteSentence repairs common truncation artifacts: unbalanced double
// quotes are stripped and a missing terminal punctuation mark is added.
// Apostrophes and single quotes are left as they are. Words are never
// removed.
func CompleteSentence(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return text
	}

	quotes := strings.Count(text, `"`) + strings.Count(text, "“") + strings.Count(text, "”")
	if quotes%2 == 1 {
		text = strings.TrimSpace(strings.Map(func(r rune) rune {
			if strings.ContainsRune(doubleQuotes, r) {
				return -1
			}
			return r
		}, text))
		if text == "" {
			return text
		}
	}

	core := strings.TrimRight(text, closers)
	if core == "" {
		return text
	}
	last, _ := utf8.DecodeLastRuneInString(core)
	if strings.ContainsRune(terminals, last) {
		return text
	}
	return text + "."
}
