package medsummary

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	OutputBanner        = "MEDLITE - AI-POWERED MEDICAL REPORT SUMMARY"
	generatedAtLayout   = "2006-01-02 15:04:05"
	outputFileTimestamp = "20060102_150405"

	headingPatientFriendly = "PATIENT-FRIENDLY SUMMARY:"
	headingKeyFindings     = "KEY FINDINGS:"
	headingTechnical       = "TECHNICAL SUMMARY:"
	labelGeneratedOn       = "Generated on: "
	labelOriginalFile      = "Original file: "
)

// ReportMeta describes where a result came from.
type ReportMeta struct {
	SourceFilename string    `json:"source_filename,omitempty"`
	GeneratedAt    time.Time `json:"generated_at"`
	Tier           Tier      `json:"tier,omitempty"`
}

var numberedLinePattern = regexp.MustCompile(`^\d+\.\s+(.*)$`)

// FormatSummaryFile renders a result in the plain-text download format.
func FormatSummaryFile(res SummaryResult, meta ReportMeta) string {
	var b strings.Builder
	b.WriteString(OutputBanner + "\n")
	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	b.WriteString(labelGeneratedOn + meta.GeneratedAt.Format(generatedAtLayout) + "\n")
	b.WriteString(labelOriginalFile + meta.SourceFilename + "\n\n")

	b.WriteString(headingPatientFriendly + "\n")
	b.WriteString(strings.Repeat("-", 30) + "\n")
	b.WriteString(res.PatientFriendly + "\n\n")

	b.WriteString(headingKeyFindings + "\n")
	b.WriteString(strings.Repeat("-", 15) + "\n")
	for i, f := range res.KeyFindings {
		fmt.Fprintf(&b, "%d. %s\n", i+1, f)
	}

	b.WriteString("\n" + headingTechnical + "\n")
	b.WriteString(strings.Repeat("-", 20) + "\n")
	b.WriteString(res.Summary)
	return b.String()
}

// SummaryFileName is summary_YYYYMMDD_HHMMSS_<source>.txt.
func SummaryFileName(source string, now time.Time) string {
	base := sanitizeFilename(source)
	if base == "" {
		base = "report"
	}
	if !strings.HasSuffix(strings.ToLower(base), ".txt") {
		base += ".txt"
	}
	return fmt.Sprintf("summary_%s_%s", now.Format(outputFileTimestamp), base)
}

// SaveSummaryFile writes the formatted result into dir and returns its path.
// The write is atomic: readers never observe a partial file.
func SaveSummaryFile(dir string, res SummaryResult, meta ReportMeta) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, SummaryFileName(meta.SourceFilename, meta.GeneratedAt))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(FormatSummaryFile(res, meta)), 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return path, nil
}

// ParseSummaryFile reconstructs a result from FormatSummaryFile output so a
// saved summary can be re-rendered without rerunning the engine.
func ParseSummaryFile(text string) (SummaryResult, ReportMeta, error) {
	var (
		res     SummaryResult
		meta    ReportMeta
		section string
		patient []string
		tech    []string
	)
	res.KeyFindings = []string{}
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	first := true
	for sc.Scan() {
		line := sc.Text()
		if first {
			if strings.TrimSpace(line) != OutputBanner {
				return SummaryResult{}, ReportMeta{}, errors.New("not a summary file: missing banner")
			}
			first = false
			continue
		}
		switch {
		case line == headingPatientFriendly, line == headingKeyFindings, line == headingTechnical:
			section = line
			continue
		case section == "" && strings.HasPrefix(line, labelGeneratedOn):
			ts, err := time.ParseInLocation(generatedAtLayout, strings.TrimPrefix(line, labelGeneratedOn), time.Local)
			if err != nil {
				return SummaryResult{}, ReportMeta{}, fmt.Errorf("generated on: %w", err)
			}
			meta.GeneratedAt = ts
			continue
		case section == "" && strings.HasPrefix(line, labelOriginalFile):
			meta.SourceFilename = strings.TrimPrefix(line, labelOriginalFile)
			continue
		}
		if section != headingTechnical && isRule(line) {
			continue
		}
		switch section {
		case headingPatientFriendly:
			patient = append(patient, line)
		case headingKeyFindings:
			if m := numberedLinePattern.FindStringSubmatch(line); m != nil {
				res.KeyFindings = append(res.KeyFindings, m[1])
			}
		case headingTechnical:
			if len(tech) == 0 && isRule(line) {
				continue
			}
			tech = append(tech, line)
		}
	}
	if err := sc.Err(); err != nil {
		return SummaryResult{}, ReportMeta{}, err
	}
	if first {
		return SummaryResult{}, ReportMeta{}, errors.New("not a summary file: empty")
	}
	res.PatientFriendly = strings.TrimSpace(strings.Join(patient, "\n"))
	res.Summary = strings.TrimSpace(strings.Join(tech, "\n"))
	return res, meta, nil
}

func isRule(line string) bool {
	t := strings.TrimSpace(line)
	return t != "" && (strings.Trim(t, "-") == "" || strings.Trim(t, "=") == "")
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), ".")
}
