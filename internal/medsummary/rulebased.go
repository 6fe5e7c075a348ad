package medsummary

import (
	"context"
	"regexp"
	"strings"
)

const (
	maxQualifierFragments = 3
	maxFallbackSentences  = 3
	minFallbackSentence   = 20
)

var (
	impressionPattern = regexp.MustCompile(`(?i)impression[:\s]+([^.!?]+)`)
	diagnosisPattern  = regexp.MustCompile(`(?i)diagnosis[:\s]+([^.!?]+)`)
	// Qualifiers match at a word start: "lower" and "abnormalities" count,
	// "follow-up" does not.
	qualifierPattern  = regexp.MustCompile(`(?i)[^.!?]*\b(?:elevated|low|high|abnormal|positive|negative)[^.!?]*`)
	sentenceSplitter  = regexp.MustCompile(`[.!?]+`)
)

// Summarizer is one tier of summary production.
type Summarizer interface {
	Tier() Tier
	MinChars() int
	Summarize(ctx context.Context, text string) (string, error)
}

// RuleBasedSummarizer assembles a summary from labelled report sections. It
// needs no model and never fails.
type RuleBasedSummarizer struct {
	MinLength int
}

func NewRuleBasedSummarizer(minChars int) *RuleBasedSummarizer {
	if minChars <= 0 {
		minChars = DefaultRuleBasedMinChars
	}
	return &RuleBasedSummarizer{MinLength: minChars}
}

func (r *RuleBasedSummarizer) Tier() Tier { return TierRuleBased }
func (r *RuleBasedSummarizer) MinChars() int { return r.MinLength }

func (r *RuleBasedSummarizer) Summarize(_ context.Context, text string) (string, error) {
	return SummarizeRuleBased(text), nil
}

// SummarizeRuleBased builds "Main findings: ...", "Diagnosis: ..." and
// "Key results: ..." segments, falling back to the first substantive
// sentences. The result is never empty and ends in a single period.
func SummarizeRuleBased(text string) string {
	var parts []string
	if m := impressionPattern.FindStringSubmatch(text); m != nil {
		if s := strings.TrimSpace(m[1]); s != "" {
			parts = append(parts, "Main findings: "+s)
		}
	}
	if m := diagnosisPattern.FindStringSubmatch(text); m != nil {
		if s := strings.TrimSpace(m[1]); s != "" {
			parts = append(parts, "Diagnosis: "+s)
		}
	}
	var qualifiers []string
	for _, frag := range qualifierPattern.FindAllString(text, -1) {
		if s := strings.TrimSpace(frag); s != "" {
			qualifiers = append(qualifiers, s)
			if len(qualifiers) == maxQualifierFragments {
				break
			}
		}
	}
	if len(qualifiers) > 0 {
		parts = append(parts, "Key results: "+strings.Join(qualifiers, "; "))
	}

	// Short sentences are skipped rather than counted, so up to three
	// substantive sentences are kept even when a short one comes first.
	if len(parts) == 0 {
		for _, s := range sentenceSplitter.Split(text, -1) {
			s = strings.TrimSpace(s)
			if runeLen(s) > minFallbackSentence {
				parts = append(parts, s)
				if len(parts) == maxFallbackSentences {
					break
				}
			}
		}
	}
	if len(parts) == 0 {
		parts = append(parts, strings.TrimSpace(text))
	}

	summary := strings.TrimRight(strings.Join(parts, ". "), ".!? \t\n")
	return summary + "."
}
