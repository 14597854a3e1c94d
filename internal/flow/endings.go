// Package flow implements the call session state machine.
package flow

import "strings"

// endingPhrases is the fixed closing-phrase set. A generated reply containing
// any of these moves the call to the ending state. Matching is a deliberate
// approximation: case-insensitive substring, even mid-sentence, so unrelated
// text containing "goodbye" will also end the call.
var endingPhrases = []string{
	"thanks for calling",
	"have a great day",
	"we'll be in touch",
	"goodbye",
}

// ContainsEndingPhrase reports whether reply contains any closing phrase.
func ContainsEndingPhrase(reply string) bool {
	lower := strings.ToLower(reply)
	for _, phrase := range endingPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
