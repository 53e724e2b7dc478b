package ai

import (
	"regexp"
	"strings"
)

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// errorPageMarkers are phrases gateway and proxy error pages use; a normal
// reply may say "not allowed", so the bare phrase is not one.
var errorPageMarkers = []string{
	"<html",
	"<!doctype",
	"method not allowed",
	"request not allowed",
	"403 forbidden",
	"access denied",
	"too many requests",
}

func isGarbageResponse(s string) bool {
	l := strings.ToLower(s)
	for _, m := range errorPageMarkers {
		if strings.Contains(l, m) {
			return true
		}
	}
	// ratings and yes/no answers are legitimately one or two characters
	return strings.TrimSpace(s) == ""
}

func truncate(b []byte) string {
	if len(b) > 200 {
		return string(b[:200]) + "..."
	}
	return string(b)
}

// cleanReply strips reasoning blocks and a single pair of wrapping quotes.
func cleanReply(reply string) string {
	reply = strings.TrimSpace(reply)
	reply = thinkBlock.ReplaceAllString(reply, "")
	reply = strings.TrimSpace(reply)

	if len(reply) >= 2 {
		quotes := []struct{ open, close string }{
			{`"`, `"`}, {`'`, `'`}, {"“", "”"}, {"‘", "’"},
		}
		for _, q := range quotes {
			if strings.HasPrefix(reply, q.open) && strings.HasSuffix(reply, q.close) {
				inner := strings.TrimSuffix(strings.TrimPrefix(reply, q.open), q.close)
				// leave `"a" and "b"` alone
				if !strings.Contains(inner, q.open) && !strings.Contains(inner, q.close) {
					reply = strings.TrimSpace(inner)
				}
				break
			}
		}
	}

	return reply
}
