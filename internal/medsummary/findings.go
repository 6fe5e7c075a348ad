package medsummary

import (
	"regexp"
	"strings"
)

// Families are applied in order; earlier families take precedence when the
// cap is reached.
var findingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:finding|result|shows?|reveals?|indicates?|demonstrates?)[:\s]+([^.!?]+)`),
	regexp.MustCompile(`(?i)(?:diagnosis|impression)[:\s]+([^.!?]+)`),
	regexp.MustCompile(`(?i)(?:abnormal|normal|positive|negative|elevated|reduced)[:\s]+([^.!?]+)`),
}

// ExtractFindings pulls up to MaxKeyFindings notable statements out of
// normalized report text. Every returned finding is longer than ten
// characters. Duplicates across families are kept.
func ExtractFindings(text string) []string {
	findings := []string{}
	for _, p := range findingPatterns {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			f := strings.TrimSpace(m[1])
			if runeLen(f) <= minFindingChars {
				continue
			}
			findings = append(findings, f)
			if len(findings) == MaxKeyFindings {
				return findings
			}
		}
	}
	return findings
}
