package usecase

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// EditDistanceThreshold is the largest typo distance still counted as a command
const EditDistanceThreshold = 2

// DefaultMaxCommandRunes caps the message length considered for command detection
const DefaultMaxCommandRunes = 300

// DefaultCommandWords is the button vocabulary of the stream
var DefaultCommandWords = []string{
	"left", "right", "up", "down",
	"start", "select",
	"a", "b", "l", "r",
	"democracy", "anarchy", "wait",
}

// SeparatorPolicy selects which runes split a message into command segments
type SeparatorPolicy string

const (
	// SeparatorNonLetter splits on every run of non-letters
	SeparatorNonLetter SeparatorPolicy = "non_letter"
	// SeparatorWhitespacePlus splits on whitespace and '+', digits stay in segments
	SeparatorWhitespacePlus SeparatorPolicy = "whitespace_plus"
	// SeparatorWhitespace splits on whitespace only
	SeparatorWhitespace SeparatorPolicy = "whitespace"
)

// Valid reports whether p is a known policy
func (p SeparatorPolicy) Valid() bool {
	switch p {
	case SeparatorNonLetter, SeparatorWhitespacePlus, SeparatorWhitespace:
		return true
	}
	return false
}

// CommandConfig configures the command classifier
type CommandConfig struct {
	Words            []string
	Separators       SeparatorPolicy
	NumericIsCommand bool // Digit-only messages (board coordinates) count as commands
	FuzzyThreshold   int  // Max edit distance, 0 for exact matching only
	MaxMessageRunes  int  // Longer messages are never commands, 0 for no cap
}

// DefaultCommandConfig returns the stock classifier configuration
func DefaultCommandConfig() CommandConfig {
	words := make([]string, len(DefaultCommandWords))
	copy(words, DefaultCommandWords)
	return CommandConfig{
		Words:           words,
		Separators:      SeparatorNonLetter,
		FuzzyThreshold:  EditDistanceThreshold,
		MaxMessageRunes: DefaultMaxCommandRunes,
	}
}

// CommandClassifier decides whether a message consists only of game commands
type CommandClassifier struct {
	config   CommandConfig
	words    []string
	vocab    map[string]struct{}
	compound *regexp.Regexp
}

// NewCommandClassifier compiles the vocabulary into a classifier
func NewCommandClassifier(cfg CommandConfig) (*CommandClassifier, error) {
	if cfg.Separators == "" {
		cfg.Separators = SeparatorNonLetter
	}
	if !cfg.Separators.Valid() {
		return nil, fmt.Errorf("unknown separator policy %q", cfg.Separators)
	}
	if cfg.FuzzyThreshold < 0 {
		return nil, fmt.Errorf("fuzzy threshold must not be negative, got %d", cfg.FuzzyThreshold)
	}

	c := &CommandClassifier{
		config: cfg,
		vocab:  make(map[string]struct{}, len(cfg.Words)),
	}
	quoted := make([]string, 0, len(cfg.Words))
	for _, w := range cfg.Words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if strings.IndexFunc(w, unicode.IsSpace) >= 0 {
			return nil, fmt.Errorf("command word %q must be a single token", w)
		}
		if _, dup := c.vocab[w]; dup {
			continue
		}
		c.vocab[w] = struct{}{}
		c.words = append(c.words, w)
		quoted = append(quoted, regexp.QuoteMeta(w))
	}
	if len(c.words) == 0 {
		return nil, fmt.Errorf("command vocabulary is empty")
	}

	// One or more command words, each optionally followed by digits: up2left4
	pattern := `^(?:(?:` + strings.Join(quoted, "|") + `)\d*)+$`
	compound, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to compile command pattern: %w", err)
	}
	c.compound = compound
	return c, nil
}

// Words returns the normalized vocabulary
func (c *CommandClassifier) Words() []string {
	out := make([]string, len(c.words))
	copy(out, c.words)
	return out
}

// IsCommand reports whether every segment of message is a command word
func (c *CommandClassifier) IsCommand(message string) bool {
	if c.config.MaxMessageRunes > 0 && utf8.RuneCountInString(message) > c.config.MaxMessageRunes {
		return false
	}

	lower := strings.ToLower(message)
	if c.config.NumericIsCommand && isNumericOnly(lower) {
		return true
	}

	segments := strings.FieldsFunc(lower, c.isSeparator)
	if len(segments) == 0 {
		return false
	}
	for _, seg := range segments {
		if !c.IsCommandWord(seg) {
			return false
		}
	}
	return true
}

// IsCommandWord matches a single segment exactly, as a compound, or fuzzily
func (c *CommandClassifier) IsCommandWord(word string) bool {
	word = strings.ToLower(word)
	if _, ok := c.vocab[word]; ok {
		return true
	}
	if c.compound.MatchString(word) {
		return true
	}
	if c.config.FuzzyThreshold == 0 {
		return false
	}
	for _, w := range c.words {
		if WithinDistance(w, word, c.config.FuzzyThreshold) {
			return true
		}
	}
	return false
}

func (c *CommandClassifier) isSeparator(r rune) bool {
	switch c.config.Separators {
	case SeparatorWhitespace:
		return unicode.IsSpace(r)
	case SeparatorWhitespacePlus:
		return unicode.IsSpace(r) || r == '+'
	default:
		return !unicode.IsLetter(r)
	}
}

func isNumericOnly(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
		case unicode.IsSpace(r), unicode.IsPunct(r):
		default:
			return false
		}
	}
	return digits > 0
}
