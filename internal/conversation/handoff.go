package conversation

import (
	"strings"
	"unicode"
)

var handoffTriggers = map[string]struct{}{
	"human":          {},
	"agent":          {},
	"representative": {},
	"operator":       {},
	"person":         {},
}

// DetectHandoff reports the first trigger word in body. Matching is on
// whole words so "agents" or "personal" do not trigger.
func DetectHandoff(body string) (string, bool) {
	words := strings.FieldsFunc(strings.ToLower(body), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if _, ok := handoffTriggers[w]; ok {
			return w, true
		}
	}
	return "", false
}
