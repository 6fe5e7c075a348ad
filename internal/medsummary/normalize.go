package medsummary

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	// Only lines that end in a line break are identifying headers. An
	// unterminated last line such as "Doctor: Smith" is kept: symbol removal
	// can turn "@Date x" into a header-shaped line, and stripping it on a
	// second pass would break idempotence.
	headerLinePattern     = regexp.MustCompile(`(?im)^[ \t]*(?:patient name|dob|date|report|physician|doctor)[^\n]*\n`)
	disallowedCharPattern = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?;:\-]`)
	numericCodePattern    = regexp.MustCompile(`\b\d{6,}\b`)
	whitespacePattern     = regexp.MustCompile(`\s+`)
)

// Normalize cleans raw report text: drops identifying header lines, stray
// symbols and long numeric identifiers, then collapses whitespace.
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	text = norm.NFC.String(text)
	text = headerLinePattern.ReplaceAllString(text, "")
	text = disallowedCharPattern.ReplaceAllString(text, "")
	text = numericCodePattern.ReplaceAllString(text, "")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

// truncateRunes returns the first n runes of s and whether anything was cut.
func truncateRunes(s string, n int) (string, bool) {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s, false
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], true
		}
		i++
	}
	return s, false
}
