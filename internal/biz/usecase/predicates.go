package usecase

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Filter thresholds
const (
	SpamScoreThreshold   = 2
	DrawingCharThreshold = 3
	EmojiThreshold       = 1
	MinWordCount         = 2
	MinMessageRunes      = 3
	MaxMessageRunes      = 200
)

// DefaultSpamPhrases are the copy-pasta markers scored by the spam filter
var DefaultSpamPhrases = []string{
	"misty", "whitney", "milk", "guys", "we have to", "we need to", "beat",
}

// dongerRunes are the characters typical of text faces
var dongerRunes = map[rune]struct{}{
	3720: {}, 9685: {}, 664: {}, 8362: {}, 3232: {},
	176: {}, 8248: {}, 8226: {}, 7886: {}, 3237: {},
}

var urlPattern = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s<>"']+|\b(?:[a-z0-9-]+\.)+(?:com|net|org|tv|io|gg|co|me|ly|be|us|uk|de|ru|info|biz|xyz)\b(?:/[^\s<>"']*)?`)

// SpamScore counts how many distinct phrases occur in text
func SpamScore(text string, phrases []string) int {
	lower := strings.ToLower(text)
	score := 0
	for _, p := range phrases {
		if p != "" && strings.Contains(lower, p) {
			score++
		}
	}
	return score
}

// ExtractURLs returns the URL-like substrings of text
func ExtractURLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}

// URLAllowed reports whether url contains one of the allow-listed fragments
func URLAllowed(url string, allow []string) bool {
	lower := strings.ToLower(url)
	for _, a := range allow {
		if a != "" && strings.Contains(lower, a) {
			return true
		}
	}
	return false
}

// HasDisallowedURL reports whether any URL in text is off the allow-list
func HasDisallowedURL(text string, allow []string) bool {
	for _, u := range ExtractURLs(text) {
		if !URLAllowed(u, allow) {
			return true
		}
	}
	return false
}

// CountDrawing counts block-drawing and non-printable runes
func CountDrawing(text string) int {
	n := 0
	for _, r := range text {
		if (r >= 0x2580 && r <= 0x25A0) || (!unicode.IsPrint(r) && !unicode.IsSpace(r)) {
			n++
		}
	}
	return n
}

// CountEmojiLike counts text-face characters and pictographs
func CountEmojiLike(text string) int {
	n := 0
	for _, r := range text {
		if _, ok := dongerRunes[r]; ok {
			n++
			continue
		}
		if (r >= 0x1F300 && r <= 0x1FAFF) || (r >= 0x2600 && r <= 0x27BF) {
			n++
		}
	}
	return n
}

// IsTooSmall reports messages below the minimum word count or length
func IsTooSmall(text string) bool {
	if len(strings.Fields(text)) < MinWordCount {
		return true
	}
	visible := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			visible++
		}
	}
	return visible < MinMessageRunes
}

// IsTooLong reports messages at or above the maximum length
func IsTooLong(text string) bool {
	return utf8.RuneCountInString(text) >= MaxMessageRunes
}

// HasCyrillic reports any rune from the basic Cyrillic block
func HasCyrillic(text string) bool {
	for _, r := range text {
		if r >= 0x0400 && r <= 0x04FF {
			return true
		}
	}
	return false
}

// ContainsBannedPhrase reports a case-insensitive match of any phrase
func ContainsBannedPhrase(text string, phrases []string) bool {
	lower := strings.ToLower(text)
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" && strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// IsBotBroadcast reports bot messages that do not mention self
func IsBotBroadcast(sender, text string, bots map[string]struct{}, self string) bool {
	if sender == "" {
		return false
	}
	if _, ok := bots[strings.ToLower(sender)]; !ok {
		return false
	}
	return self == "" || !mentionsName(text, self)
}

// mentionsName reports a case-insensitive whole-word occurrence of name
func mentionsName(text, name string) bool {
	lower := strings.ToLower(text)
	name = strings.ToLower(name)
	for from := 0; from <= len(lower)-len(name); {
		i := strings.Index(lower[from:], name)
		if i < 0 {
			return false
		}
		start, end := from+i, from+i+len(name)
		before, _ := utf8.DecodeLastRuneInString(lower[:start])
		after, _ := utf8.DecodeRuneInString(lower[end:])
		if (start == 0 || !isNameRune(before)) && (end == len(lower) || !isNameRune(after)) {
			return true
		}
		from = start + 1
	}
	return false
}

func isNameRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
