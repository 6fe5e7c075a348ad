package medsummary

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestExtractFindingsChestXRay(t *testing.T) {
	got := ExtractFindings(Normalize(chestXRayReport))
	want := []string{"bilateral lower lobe consolidation consistent with pneumonia"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("findings mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractFindingsCapsAtFive(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 7; i++ {
		b.WriteString("Result: stable appearance of structure. ")
	}
	got := ExtractFindings(b.String())
	assert.Len(t, got, MaxKeyFindings)
}

func TestExtractFindingsLengthFilter(t *testing.T) {
	got := ExtractFindings("Shows: tiny. Shows: abcdefghij. Shows: abcdefghijk.")
	assert.Equal(t, []string{"abcdefghijk"}, got)
}

func TestExtractFindingsFamilyOrder(t *testing.T) {
	got := ExtractFindings("Impression: stable chest appearance. Result: mild effusion on left.")
	want := []string{"mild effusion on left", "stable chest appearance"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("findings mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractFindingsKeepsDuplicates(t *testing.T) {
	got := ExtractFindings("Result: pleural thickening. Diagnosis: pleural thickening.")
	assert.Equal(t, []string{"pleural thickening", "pleural thickening"}, got)
}

func TestExtractFindingsQualifierFamily(t *testing.T) {
	got := ExtractFindings("Elevated: troponin at admission! Negative for fracture lines")
	assert.Equal(t, []string{"troponin at admission", "for fracture lines"}, got)
}

func TestExtractFindingsEmpty(t *testing.T) {
	got := ExtractFindings("")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
