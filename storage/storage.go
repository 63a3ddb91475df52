// Package storage persists the harvester's JSON documents: the timestamped
// listing file, the keyed abstract results, and the failed-item queue.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/aluiziolira/go-scrape-ssrn/models"
)

const (
	resultsSuffix = "_with_abstracts.json"
	failedSuffix  = "_failed_papers.json"
)

// ListingPath builds the timestamped listing filename for a
// classification code inside dir.
func ListingPath(dir, code string, now time.Time) string {
	name := fmt.Sprintf("ssrn_papers_jel_%s_%s.json", code, now.Format("20060102_150405"))
	return filepath.Join(dir, name)
}

// ResultsPath derives the abstract-results path from the listing input path.
func ResultsPath(inputPath string) string {
	return stem(inputPath) + resultsSuffix
}

// FailedPath derives the failed-queue path from the listing input path.
func FailedPath(inputPath string) string {
	return stem(inputPath) + failedSuffix
}

func stem(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// SaveListing writes the collected papers to the timestamped listing file
// and returns its path.
func SaveListing(dir, code string, papers []*models.PaperRecord, now time.Time) (string, error) {
	if papers == nil {
		papers = []*models.PaperRecord{}
	}
	path := ListingPath(dir, code, now)
	if err := SaveDocument(path, papers); err != nil {
		return "", err
	}
	return path, nil
}

// LoadListing reads a listing document produced by SaveListing.
func LoadListing(path string) ([]*models.PaperRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read listing %q: %w", path, err)
	}
	var papers []*models.PaperRecord
	if err := json.Unmarshal(data, &papers); err != nil {
		return nil, fmt.Errorf("decode listing %q: %w", path, err)
	}
	return papers, nil
}

// SaveResults writes the abstract results mapping.
func SaveResults(path string, results map[string]*models.AbstractRecord) error {
	return SaveDocument(path, results)
}

// SaveFailed writes the failed-item queue.
func SaveFailed(path string, papers []*models.PaperRecord) error {
	return SaveDocument(path, papers)
}

// LoadResultIDs reads a prior results document and returns its top-level
// keys as a set, used to seed the fetcher's resume set.
func LoadResultIDs(path string) (map[string]struct{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read resume file %q: %w", path, err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode resume file %q: %w", path, err)
	}
	ids := make(map[string]struct{}, len(doc))
	for id := range doc {
		ids[id] = struct{}{}
	}
	return ids, nil
}

// SaveDocument marshals v with indentation and writes it atomically. A
// failed write is retried once with non-ASCII runes escaped; if that also
// fails the original error is returned.
func SaveDocument(path string, v any) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document %q: %w", path, err)
	}

	if err := writeFileAtomic(path, data); err != nil {
		if fallbackErr := writeFileAtomic(path, escapeNonASCII(data)); fallbackErr != nil {
			return fmt.Errorf("write document %q: %w", path, err)
		}
	}
	return nil
}

// writeFileAtomic writes data to a temporary file in the target directory
// and renames it into place, so a crash mid-write never truncates a
// previous checkpoint.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".harvest-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// escapeNonASCII rewrites every rune above 0x7F as a \uXXXX escape.
// MarshalIndent only emits such runes inside string literals, so the
// result is equivalent JSON in pure ASCII.
func escapeNonASCII(data []byte) []byte {
	var out strings.Builder
	out.Grow(len(data))
	for _, r := range string(data) {
		switch {
		case r < 0x80:
			out.WriteRune(r)
		case r > 0xFFFF:
			r1, r2 := utf16.EncodeRune(r)
			fmt.Fprintf(&out, `\u%04x\u%04x`, r1, r2)
		default:
			fmt.Fprintf(&out, `\u%04x`, r)
		}
	}
	return []byte(out.String())
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
