package medsummary

import (
	"fmt"
	"strings"
)

// BuildMarkdown renders a result as a printable report.
func BuildMarkdown(res SummaryResult, meta ReportMeta) string {
	var b strings.Builder
	b.WriteString("# Medical Report Summary\n\n")
	fmt.Fprintf(&b, "> %s\n\n", Disclaimer)

	b.WriteString("## What This Means For You\n\n")
	b.WriteString(orPlaceholder(res.PatientFriendly) + "\n\n")

	b.WriteString("## Key Findings\n\n")
	if len(res.KeyFindings) == 0 {
		b.WriteString("No specific findings were identified.\n\n")
	}
	for i, f := range res.KeyFindings {
		fmt.Fprintf(&b, "%d. %s\n", i+1, escapeMarkdown(f))
	}
	if len(res.KeyFindings) > 0 {
		b.WriteString("\n")
	}

	b.WriteString("## Technical Summary\n\n")
	b.WriteString(orPlaceholder(res.Summary) + "\n\n")

	b.WriteString("## Details\n\n")
	b.WriteString("| Field | Value |\n|---|---|\n")
	if meta.SourceFilename != "" {
		fmt.Fprintf(&b, "| Original file | %s |\n", escapeMarkdown(meta.SourceFilename))
	}
	if !meta.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "| Generated on | %s |\n", meta.GeneratedAt.Format(generatedAtLayout))
	}
	if meta.Tier != "" {
		fmt.Fprintf(&b, "| Summary method | %s |\n", tierLabel(meta.Tier))
	}
	return b.String()
}

func tierLabel(t Tier) string {
	switch t {
	case TierGenerative:
		return "AI model"
	case TierRuleBased:
		return "Rule-based extraction"
	default:
		return string(t)
	}
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return "_Not available._"
	}
	return escapeMarkdown(s)
}

var markdownEscaper = strings.NewReplacer("|", `\|`, "*", `\*`, "_", `\_`, "`", "\\`", "#", `\#`)

func escapeMarkdown(s string) string { return markdownEscaper.Replace(s) }
