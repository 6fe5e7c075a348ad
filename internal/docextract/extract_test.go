package docextract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, blob []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, blob, 0o644))
	return path
}

func TestExtractTextFile(t *testing.T) {
	path := writeFile(t, "report.txt", []byte("  IMPRESSION: Mild anemia.\n"))
	res, err := ExtractFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "IMPRESSION: Mild anemia.", res.Text)
	assert.Equal(t, "text", res.Method)
	assert.False(t, res.Truncated)
}

func TestExtractTextReplacesInvalidBytes(t *testing.T) {
	path := writeFile(t, "bad.TXT", []byte("caf\xff result"))
	res, err := ExtractFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "caf\uFFFD result", res.Text)
}

func TestExtractTextStripsBOM(t *testing.T) {
	path := writeFile(t, "bom.txt", []byte("\xef\xbb\xbfFINDINGS: clear"))
	res, err := ExtractFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "FINDINGS: clear", res.Text)
}

func TestExtractEmptyText(t *testing.T) {
	path := writeFile(t, "empty.txt", []byte(" \n\t"))
	_, err := ExtractFile(context.Background(), path)
	assert.ErrorIs(t, err, ErrNoText)
}

func TestUnsupportedExtension(t *testing.T) {
	path := writeFile(t, "scan.docx", []byte("x"))
	_, err := ExtractFile(context.Background(), path)
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.False(t, Supported("image.png"))
	assert.True(t, Supported("REPORT.PDF"))
}

func TestTruncatesLongText(t *testing.T) {
	path := writeFile(t, "long.txt", []byte(strings.Repeat("é", MaxTextChars+10)))
	res, err := ExtractFile(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.True(t, strings.HasSuffix(res.Text, "\n\n"+TruncatedMarker))
	assert.Equal(t, strings.Repeat("é", MaxTextChars), strings.TrimSuffix(res.Text, "\n\n"+TruncatedMarker))
}

func TestExtractPDFFallsBackToPrintableRuns(t *testing.T) {
	orig := runPdfToText
	runPdfToText = func(context.Context, string) (string, error) { return "", errors.New("pdftotext missing") }
	t.Cleanup(func() { runPdfToText = orig })

	blob := []byte("%PDF-1.4\x00\x01short\x00FINDINGS: no acute abnormality in the chest\x02\x03")
	path := writeFile(t, "scan.pdf", blob)
	res, err := ExtractFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "byte-fallback", res.Method)
	assert.Equal(t, "FINDINGS: no acute abnormality in the chest", res.Text)
}

func TestExtractPDFPrefersPdftotext(t *testing.T) {
	orig := runPdfToText
	runPdfToText = func(context.Context, string) (string, error) { return "IMPRESSION: normal\n", nil }
	t.Cleanup(func() { runPdfToText = orig })

	path := writeFile(t, "scan.pdf", []byte("%PDF"))
	res, err := ExtractFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "pdftotext", res.Method)
	assert.Equal(t, "IMPRESSION: normal", res.Text)
}

func TestExtractPDFWithoutText(t *testing.T) {
	orig := runPdfToText
	runPdfToText = func(context.Context, string) (string, error) { return "", errors.New("fail") }
	t.Cleanup(func() { runPdfToText = orig })

	path := writeFile(t, "blank.pdf", []byte{0, 1, 2, 3})
	_, err := ExtractFile(context.Background(), path)
	assert.ErrorIs(t, err, ErrNoText)
}

func TestExtractUpload(t *testing.T) {
	res, err := ExtractUpload(context.Background(), "upload.txt", strings.NewReader("Diagnosis: sprain"))
	require.NoError(t, err)
	assert.Equal(t, "Diagnosis: sprain", res.Text)

	_, err = ExtractUpload(context.Background(), "upload.exe", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestExtractUploadTooLarge(t *testing.T) {
	big := strings.NewReader(strings.Repeat("a", MaxFileBytes+1))
	_, err := ExtractUpload(context.Background(), "big.txt", big)
	assert.ErrorIs(t, err, ErrTooLarge)
}
