package naming

// hangul.go implements deterministic transliteration of Hangul syllables
// into Latin identifier-safe text.
//
// A precomposed syllable in the block U+AC00..U+D7A3 encodes three jamo
// (lead consonant, vowel, trail consonant) positionally:
//
//	index = codepoint - 0xAC00
//	lead  = index / (21 * 28)
//	vowel = (index % (21 * 28)) / 28
//	trail = index % 28
//
// Each jamo index maps to a fixed Revised-Romanization transcription, so
// the same input always yields the same output with no locale or library
// dependence.

import "strings"

const (
	hangulBase = 0xAC00
	hangulLast = 0xD7A3

	vowelCount = 21
	trailCount = 28
)

// Lead consonants (19).
var hangulLeads = [19]string{
	"g", "kk", "n", "d", "tt", "r", "m", "b", "pp",
	"s", "ss", "", "j", "jj", "ch", "k", "t", "p", "h",
}

// Vowels (21).
var hangulVowels = [21]string{
	"a", "ae", "ya", "yae", "eo", "e", "yeo", "ye", "o",
	"wa", "wae", "oe", "yo", "u", "wo", "we", "wi", "yu",
	"eu", "ui", "i",
}

// Trail consonants (28, index 0 is the empty trail).
var hangulTrails = [28]string{
	"", "g", "kk", "gs", "n", "nj", "nh", "d", "l", "lg",
	"lm", "lb", "ls", "lt", "lp", "lh", "m", "b", "bs",
	"s", "ss", "ng", "j", "ch", "k", "t", "p", "h",
}

// Transliterate converts text into an ASCII-safe form:
//
//   - Hangul syllables are decomposed to jamo and written in Latin letters
//   - ASCII letters and digits pass through unchanged
//   - runs of whitespace collapse to a single space
//   - every other character is dropped
//
// The function is pure: identical input always produces identical output.
func Transliterate(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastWasSpace := false
	for _, r := range s {
		switch {
		case r >= hangulBase && r <= hangulLast:
			idx := int(r - hangulBase)
			b.WriteString(hangulLeads[idx/(vowelCount*trailCount)])
			b.WriteString(hangulVowels[(idx%(vowelCount*trailCount))/trailCount])
			b.WriteString(hangulTrails[idx%trailCount])
			lastWasSpace = false

		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastWasSpace = false

		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if !lastWasSpace && b.Len() > 0 {
				b.WriteByte(' ')
				lastWasSpace = true
			}

		default:
			// Dropped: punctuation, symbols, non-Hangul scripts.
		}
	}

	return strings.TrimRight(b.String(), " ")
}

// IsHangulSyllable reports whether r is a precomposed Hangul syllable.
func IsHangulSyllable(r rune) bool {
	return r >= hangulBase && r <= hangulLast
}
