// Package samples browses the bundled example reports.
package samples

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/joelkehle/medlite/internal/docextract"
)

var (
	ErrInvalidName = errors.New("invalid sample name")
	ErrNotFound    = errors.New("sample not found")
)

var catalog = []string{
	"chest_xray", "blood_test", "liver_scan", "heart_echo", "brain_mri",
	"kidney_function", "thyroid_test", "diabetes_report", "covid_test", "pregnancy_scan",
	"bone_density", "lung_function", "cardiac_stress", "endoscopy", "colonoscopy",
	"mammogram", "ultrasound", "ct_scan", "allergy_test", "vitamin_panel",
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-]*$`)

type Entry struct {
	Name      string `json:"name"`
	File      string `json:"file"`
	Title     string `json:"title"`
	Available bool   `json:"available"`
	Size      int64  `json:"size_bytes"`
	Catalog   bool   `json:"catalog"`
}

func Catalog() []string {
	return append([]string(nil), catalog...)
}

// List returns every catalog entry, present or not, followed by any other
// .txt reports found in dir, sorted by name.
func List(dir string) ([]Entry, error) {
	entries := make([]Entry, 0, len(catalog))
	known := make(map[string]bool, len(catalog))
	for _, name := range catalog {
		known[name] = true
		e := Entry{Name: name, File: name + ".txt", Title: Title(name), Catalog: true}
		if info, err := os.Stat(filepath.Join(dir, e.File)); err == nil && info.Mode().IsRegular() {
			e.Available = true
			e.Size = info.Size()
		}
		entries = append(entries, e)
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return entries, nil
		}
		return nil, fmt.Errorf("read samples dir: %w", err)
	}
	var extra []Entry
	for _, de := range dirEntries {
		if de.IsDir() || !strings.EqualFold(filepath.Ext(de.Name()), ".txt") {
			continue
		}
		name := strings.TrimSuffix(de.Name(), filepath.Ext(de.Name()))
		if known[name] || !namePattern.MatchString(name) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		extra = append(extra, Entry{Name: name, File: de.Name(), Title: Title(name), Available: true, Size: info.Size()})
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].Name < extra[j].Name })
	return append(entries, extra...), nil
}

// Load returns the text of a sample. name is a bare sample name, with or
// without the .txt extension; paths are rejected.
func Load(ctx context.Context, dir, name string) (string, error) {
	base, err := normalizeName(name)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, base+".txt")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, base)
		}
		return "", err
	}
	res, err := docextract.ExtractFile(ctx, path)
	if err != nil {
		return "", fmt.Errorf("load sample %s: %w", base, err)
	}
	return res.Text, nil
}

func normalizeName(name string) (string, error) {
	n := strings.TrimSpace(name)
	if strings.EqualFold(filepath.Ext(n), ".txt") {
		n = n[:len(n)-len(".txt")]
	}
	if !namePattern.MatchString(n) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return n, nil
}

// Title turns a sample name into a display title ("chest_xray" -> "Chest Xray").
func Title(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == '-' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
