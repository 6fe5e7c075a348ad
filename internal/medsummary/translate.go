package medsummary

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

type TranslationMode string

const (
	// TranslateLongestMatch replaces every term in a single pass, preferring
	// the longest term at each position. Replacements are never rescanned.
	TranslateLongestMatch TranslationMode = "longest_match"
	// TranslateOrdered replaces terms one after another in table order, as
	// case-insensitive substrings. Later terms can rewrite the output of
	// earlier ones ("pneumonia" -> "lung infection" -> "lung germ invasion").
	TranslateOrdered TranslationMode = "ordered"
)

func ParseTranslationMode(s string) (TranslationMode, error) {
	switch TranslationMode(strings.ToLower(strings.TrimSpace(s))) {
	case TranslateLongestMatch, "":
		return TranslateLongestMatch, nil
	case TranslateOrdered:
		return TranslateOrdered, nil
	default:
		return "", fmt.Errorf("unknown translation mode %q", s)
	}
}

type orderedTerm struct {
	pattern *regexp.Regexp
	plain   string
}

// Translator rewrites clinical terminology into plain language.
type Translator struct {
	mode     TranslationMode
	combined *regexp.Regexp
	lookup   map[string]string
	ordered  []orderedTerm
}

func NewTranslator(terms []Term, mode TranslationMode) *Translator {
	t := &Translator{mode: mode, lookup: make(map[string]string, len(terms))}
	if mode == TranslateOrdered {
		for _, term := range terms {
			t.ordered = append(t.ordered, orderedTerm{
				pattern: regexp.MustCompile(`(?i)` + regexp.QuoteMeta(term.Clinical)),
				plain:   term.Plain,
			})
		}
		return t
	}

	alts := make([]string, 0, len(terms))
	for _, term := range terms {
		key := termKey(term.Clinical)
		if _, dup := t.lookup[key]; dup {
			continue
		}
		t.lookup[key] = term.Plain
		alts = append(alts, term.Clinical)
		if plural, ok := pluralForms[key]; ok {
			if pkey := termKey(plural[0]); t.lookup[pkey] == "" {
				t.lookup[pkey] = plural[1]
				alts = append(alts, plural[0])
			}
		}
	}
	// RE2 alternation is leftmost-first, so longer terms must come first.
	sort.SliceStable(alts, func(i, j int) bool { return len(alts[i]) > len(alts[j]) })
	for i, a := range alts {
		alts[i] = termPattern(a)
	}
	if len(alts) > 0 {
		t.combined = regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
	}
	return t
}

func termPattern(clinical string) string {
	words := strings.Fields(clinical)
	for i, w := range words {
		parts := strings.Split(w, "'")
		for j, p := range parts {
			parts[j] = regexp.QuoteMeta(p)
		}
		words[i] = strings.Join(parts, "'?")
	}
	return strings.Join(words, `\s+`)
}

func (t *Translator) Mode() TranslationMode { return t.mode }

// Translate returns text with every known clinical term replaced by its
// plain-language equivalent. It is not idempotent: plain text may itself
// contain table terms.
func (t *Translator) Translate(text string) string {
	if t.mode == TranslateOrdered {
		for _, o := range t.ordered {
			text = o.pattern.ReplaceAllLiteralString(text, o.plain)
		}
		return text
	}
	if t.combined == nil {
		return text
	}
	return t.combined.ReplaceAllStringFunc(text, func(m string) string {
		if plain, ok := t.lookup[termKey(m)]; ok {
			return plain
		}
		return m
	})
}

var defaultTranslator = NewTranslator(clinicalTerms, TranslateLongestMatch)

// Translate applies the built-in table with longest-match semantics.
func Translate(text string) string { return defaultTranslator.Translate(text) }
