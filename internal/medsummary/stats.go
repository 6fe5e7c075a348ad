package medsummary

import "strings"

const wordsPerMinute = 200

// ReportStats are simple size figures for a raw report.
type ReportStats struct {
	Words          int `json:"words"`
	Characters     int `json:"characters"`
	ReadingMinutes int `json:"reading_minutes"`
}

func ComputeStats(raw string) ReportStats {
	words := len(strings.Fields(raw))
	return ReportStats{
		Words:          words,
		Characters:     runeLen(raw),
		ReadingMinutes: words/wordsPerMinute + 1,
	}
}
