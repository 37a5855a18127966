package transcribe

import "strings"

// TriggerPhrase is scanned for in every new transcript segment.
const TriggerPhrase = "unanimous consent"

const (
	contextWordsBefore = 10
	contextWordsAfter  = 12
)

// FindTrigger reports whether text mentions the trigger phrase and returns
// the surrounding words for the notification: a word containing "unanimous"
// immediately followed by one containing "consent", with up to 10 words of
// context before the match and 12 after.
func FindTrigger(text string) (string, bool) {
	if !strings.Contains(strings.ToLower(text), TriggerPhrase) {
		return "", false
	}

	words := strings.Fields(text)
	for i, word := range words {
		if !strings.Contains(strings.ToLower(word), "unanimous") {
			continue
		}
		if i+1 >= len(words) || !strings.Contains(strings.ToLower(words[i+1]), "consent") {
			continue
		}

		start := max(0, i-contextWordsBefore)
		end := min(len(words), i+contextWordsAfter)
		return strings.Join(words[start:end], " "), true
	}

	return "", false
}
