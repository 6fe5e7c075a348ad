package medsummary

import (
	"fmt"
	"time"

	"github.com/joelkehle/medlite/internal/generation"
)

const Disclaimer = "This summary is generated automatically for informational purposes only. " +
	"It is not medical advice. Discuss your results with your healthcare provider."

const (
	DefaultMaxLength          = 150
	DefaultMinLength          = 50
	DefaultMaxInputChars      = 1000
	DefaultGenerativeMinChars = 100
	DefaultRuleBasedMinChars  = 50
	MaxKeyFindings            = 5
	minFindingChars           = 10
)

const (
	ShortSummary         = "The report is too short to generate a meaningful summary."
	ShortPatientFriendly = "Please provide a longer medical report for analysis."
	ShortKeyFinding      = "Report length insufficient for analysis"

	ErrorSummaryPrefix   = "Error generating summary: "
	ErrorPatientFriendly = "Unable to process the medical report. Please try again."
	ErrorKeyFinding      = "Processing error occurred"
)

type Tier string

const (
	TierGenerative Tier = "generative"
	TierRuleBased  Tier = "rule_based"
)

// SummaryResult is the engine's output for one report.
type SummaryResult struct {
	Summary         string   `json:"summary"`
	PatientFriendly string   `json:"patientFriendly"`
	KeyFindings     []string `json:"keyFindings"`
}

// Outcome carries a SummaryResult plus how it was produced.
type Outcome struct {
	Result          SummaryResult `json:"result"`
	Tier            Tier          `json:"tier,omitempty"`
	Fallback        bool          `json:"fallback"`
	ShortCircuit    bool          `json:"short_circuit"`
	NormalizedChars int           `json:"normalized_chars"`
	Duration        time.Duration `json:"duration"`
	Err             error         `json:"-"`
}

// ErrModelUnavailable is returned by the generative tier when it cannot serve a call.
var ErrModelUnavailable = generation.ErrModelUnavailable

// GenerationError is a runtime failure of a loaded generation backend.
type GenerationError struct {
	Backend string
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (%s): %v", e.Backend, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func shortResult() SummaryResult {
	return SummaryResult{
		Summary:         ShortSummary,
		PatientFriendly: ShortPatientFriendly,
		KeyFindings:     []string{ShortKeyFinding},
	}
}

func errorResult(err error) SummaryResult {
	return SummaryResult{
		Summary:         ErrorSummaryPrefix + err.Error(),
		PatientFriendly: ErrorPatientFriendly,
		KeyFindings:     []string{ErrorKeyFinding},
	}
}
