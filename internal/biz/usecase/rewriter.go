package usecase

import (
	"fmt"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Transform rewrites message text. An empty result means no change.
type Transform func(text string) string

type rewriterSpec struct {
	name      string
	transform Transform
	isActive  func() bool
}

// RewriterPipeline applies active rewriters in registration order
type RewriterPipeline struct {
	mu        sync.RWMutex
	rewriters []rewriterSpec
	names     map[string]struct{}
}

// NewRewriterPipeline creates an empty pipeline
func NewRewriterPipeline() *RewriterPipeline {
	return &RewriterPipeline{names: make(map[string]struct{})}
}

// Register appends a rewriter. A nil isActive means always active.
func (p *RewriterPipeline) Register(name string, t Transform, isActive func() bool) error {
	if name == "" {
		return fmt.Errorf("rewriter name is required")
	}
	if t == nil {
		return fmt.Errorf("rewriter %s: transform is required", name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, dup := p.names[name]; dup {
		return fmt.Errorf("rewriter %s already registered", name)
	}
	p.names[name] = struct{}{}
	p.rewriters = append(p.rewriters, rewriterSpec{name: name, transform: t, isActive: isActive})
	return nil
}

// Names returns rewriter names in registration order
func (p *RewriterPipeline) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, len(p.rewriters))
	for i, r := range p.rewriters {
		names[i] = r.name
	}
	return names
}

// Rewrite runs text through every active stage
func (p *RewriterPipeline) Rewrite(text string) string {
	p.mu.RLock()
	stages := p.rewriters
	p.mu.RUnlock()

	for _, r := range stages {
		if r.isActive != nil && !r.isActive() {
			continue
		}
		if out := r.apply(text); out != "" {
			text = out
		}
	}
	return text
}

// apply is identity when the transform panics
func (r rewriterSpec) apply(text string) (out string) {
	defer func() {
		if rec := recover(); rec != nil {
			fmt.Printf("[Rewriter] %s panicked: %v\n", r.name, rec)
			out = text
		}
	}()
	return r.transform(text)
}

// ========== Repeat collapsing ==========

const minRepeatBlock = 4

// MaxCollapseRunes caps the input CollapseRepeats will scan; longer lines pass through
const MaxCollapseRunes = 4 * MaxMessageRunes

// CollapseRepeats replaces a block of at least four characters that is
// immediately repeated (optionally separated by whitespace) with one copy.
// Passes are repeated until nothing changes, so the result is a fixed point.
func CollapseRepeats(text string) string {
	rs := []rune(text)
	if len(rs) > MaxCollapseRunes {
		return text
	}
	changed := false
	for {
		out, ok := collapseOnce(rs)
		if !ok {
			break
		}
		rs, changed = out, true
	}
	if !changed {
		return text
	}
	return string(rs)
}

func collapseOnce(rs []rune) ([]rune, bool) {
	out := make([]rune, 0, len(rs))
	changed := false
	for i := 0; i < len(rs); {
		if end, block, ok := matchRepeat(rs, i); ok {
			out = append(out, rs[i:i+block]...)
			i = end
			changed = true
			continue
		}
		out = append(out, rs[i])
		i++
	}
	return out, changed
}

// matchRepeat finds the shortest block at i followed by one or more copies of itself
func matchRepeat(rs []rune, i int) (end, block int, ok bool) {
	for k := i; k < i+minRepeatBlock-1 && k < len(rs); k++ {
		if isLineBreak(rs[k]) {
			return 0, 0, false
		}
	}
	for l := minRepeatBlock; i+2*l <= len(rs); l++ {
		if isLineBreak(rs[i+l-1]) {
			return 0, 0, false
		}
		pattern := rs[i : i+l]
		pos, reps := i+l, 0
		for {
			next, found := repeatAt(rs, pos, pattern)
			if !found {
				break
			}
			pos = next
			reps++
		}
		if reps > 0 {
			return pos, l, true
		}
	}
	return 0, 0, false
}

// repeatAt matches optional whitespace followed by pattern, preferring the least whitespace
func repeatAt(rs []rune, pos int, pattern []rune) (int, bool) {
	for k := pos; ; k++ {
		if hasRunePrefix(rs[k:], pattern) {
			return k + len(pattern), true
		}
		if k >= len(rs) || !unicode.IsSpace(rs[k]) {
			return 0, false
		}
	}
}

func hasRunePrefix(rs, prefix []rune) bool {
	if len(rs) < len(prefix) {
		return false
	}
	for i := range prefix {
		if rs[i] != prefix[i] {
			return false
		}
	}
	return true
}

func isLineBreak(r rune) bool {
	return r == '\n' || r == '\r' || r == '\u2028' || r == '\u2029'
}

// ========== Combining marks ==========

var combiningMarks = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x0300, Hi: 0x036F, Stride: 1}, // Combining Diacritical Marks
		{Lo: 0x0483, Hi: 0x0489, Stride: 1}, // Cyrillic combining
		{Lo: 0x1AB0, Hi: 0x1AFF, Stride: 1}, // Extended
		{Lo: 0x1DC0, Hi: 0x1DFF, Stride: 1}, // Supplement
		{Lo: 0x20D0, Hi: 0x20FF, Stride: 1}, // For Symbols
		{Lo: 0xFE20, Hi: 0xFE2F, Stride: 1}, // Half Marks
	},
}

var stripMarks = runes.Remove(runes.In(combiningMarks))

// StripCombiningMarks removes stacked diacritics (zalgo text).
// Precomposed letters such as "é" are left alone.
func StripCombiningMarks(text string) string {
	out, _, err := transform.String(stripMarks, text)
	if err != nil {
		return text
	}
	return out
}

// ========== Lowercasing ==========

// LowercasePolicy selects which spans the lowercase rewriter touches
type LowercasePolicy string

const (
	// LowercaseSkipURLs lowercases everything except URL spans
	LowercaseSkipURLs LowercasePolicy = "skip_urls"
	// LowercaseAll lowercases the whole message
	LowercaseAll LowercasePolicy = "all"
	// LowercaseKeepWordInitial keeps the first character of each word
	LowercaseKeepWordInitial LowercasePolicy = "keep_word_initial"
)

// Valid reports whether p is a known policy
func (p LowercasePolicy) Valid() bool {
	switch p {
	case LowercaseSkipURLs, LowercaseAll, LowercaseKeepWordInitial:
		return true
	}
	return false
}

// Lowercase folds text according to policy
func Lowercase(text string, policy LowercasePolicy) string {
	// Casers are stateful, one per call
	lower := cases.Lower(language.Und)

	switch policy {
	case LowercaseAll:
		return lower.String(text)
	case LowercaseKeepWordInitial:
		return lowerKeepInitial(text, lower)
	default:
		return lowerSkipURLs(text, lower)
	}
}

func lowerSkipURLs(text string, lower cases.Caser) string {
	spans := urlPattern.FindAllStringIndex(text, -1)
	if len(spans) == 0 {
		return lower.String(text)
	}
	var out []byte
	last := 0
	for _, s := range spans {
		out = append(out, lower.String(text[last:s[0]])...)
		out = append(out, text[s[0]:s[1]]...)
		last = s[1]
	}
	out = append(out, lower.String(text[last:])...)
	return string(out)
}

func lowerKeepInitial(text string, lower cases.Caser) string {
	var out []byte
	wordStart := true
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case unicode.IsSpace(r):
			out = append(out, text[i:i+size]...)
			wordStart = true
			i += size
		case wordStart:
			out = append(out, text[i:i+size]...)
			wordStart = false
			i += size
		default:
			// Lowercase the rest of the word in one go
			j := i
			for j < len(text) {
				r2, s2 := utf8.DecodeRuneInString(text[j:])
				if unicode.IsSpace(r2) {
					break
				}
				j += s2
			}
			out = append(out, lower.String(text[i:j])...)
			i = j
		}
	}
	return string(out)
}
