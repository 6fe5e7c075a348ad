// Package docextract pulls raw report text out of uploaded or local files.
package docextract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	MaxFileBytes    = 20 * 1024 * 1024
	MaxTextChars    = 100000
	TruncatedMarker = "[TRUNCATED]"

	minPrintableRun = 24
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file too large")
	ErrNoText          = errors.New("no extractable text found")
)

type Result struct {
	Text      string
	Method    string
	Truncated bool
}

// Supported reports whether name has an extension ExtractFile handles.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".pdf":
		return true
	}
	return false
}

func ExtractFile(ctx context.Context, path string) (Result, error) {
	if !Supported(path) {
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedType, filepath.Ext(path))
	}
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, err
	}
	if info.Size() > MaxFileBytes {
		return Result{}, fmt.Errorf("%w: %d bytes", ErrTooLarge, info.Size())
	}
	if strings.EqualFold(filepath.Ext(path), ".txt") {
		return extractText(path)
	}
	return extractPDF(ctx, path)
}

// ExtractUpload spools r to a temporary file named after name's extension,
// extracts it and removes the file.
func ExtractUpload(ctx context.Context, name string, r io.Reader) (Result, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if !Supported(name) {
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	tmp, err := os.CreateTemp("", "medlite-upload-*"+ext)
	if err != nil {
		return Result{}, err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(r, MaxFileBytes+1))
	closeErr := tmp.Close()
	if err != nil {
		return Result{}, fmt.Errorf("spool upload: %w", err)
	}
	if closeErr != nil {
		return Result{}, closeErr
	}
	if n > MaxFileBytes {
		return Result{}, fmt.Errorf("%w: exceeds %d bytes", ErrTooLarge, MaxFileBytes)
	}
	return ExtractFile(ctx, tmp.Name())
}

func extractText(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	// BOMOverride honours UTF-16 byte order marks; everything else is read
	// as UTF-8 with invalid bytes replaced.
	dec := xunicode.BOMOverride(xunicode.UTF8.NewDecoder())
	blob, err := io.ReadAll(transform.NewReader(f, dec))
	if err != nil {
		return Result{}, fmt.Errorf("decode text: %w", err)
	}
	text := strings.ToValidUTF8(string(blob), string(utf8.RuneError))
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrNoText
	}
	return truncate(text, "text"), nil
}

func extractPDF(ctx context.Context, path string) (Result, error) {
	if text, err := runPdfToText(ctx, path); err == nil && strings.TrimSpace(text) != "" {
		return truncate(text, "pdftotext"), nil
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return Result{}, err
	}
	fallback := extractPrintableText(blob)
	if fallback == "" {
		return Result{}, ErrNoText
	}
	return truncate(fallback, "byte-fallback"), nil
}

var runPdfToText = func(ctx context.Context, path string) (string, error) {
	out, err := exec.CommandContext(ctx, "pdftotext", "-layout", path, "-").Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func extractPrintableText(blob []byte) string {
	var runs []string
	var b strings.Builder
	flush := func() {
		s := strings.TrimSpace(b.String())
		if len(s) >= minPrintableRun {
			runs = append(runs, s)
		}
		b.Reset()
	}
	for _, c := range blob {
		r := rune(c)
		if r < utf8.RuneSelf && (unicode.IsPrint(r) || r == '\n' || r == '\t' || r == '\r') {
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return strings.TrimSpace(strings.Join(runs, "\n"))
}

func truncate(text, method string) Result {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) <= MaxTextChars {
		return Result{Text: trimmed, Method: method}
	}
	runes := []rune(trimmed)
	return Result{
		Text:      string(runes[:MaxTextChars]) + "\n\n" + TruncatedMarker,
		Method:    method,
		Truncated: true,
	}
}
