package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-ssrn/models"
)

func TestListingRoundTrip(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 1, 17, 17, 57, 15, 0, time.UTC)

	papers := []*models.PaperRecord{
		{
			PaperID: "5100001",
			Title:   "Retirement Timing and Health",
			URL:     "https://papers.ssrn.com/sol3/papers.cfm?abstract_id=5100001",
			Authors: []models.Author{
				{Name: "Alice Chen", ProfileURL: "https://papers.ssrn.com/author=1", Affiliation: "Example University"},
				{Name: "Bob Diaz", ProfileURL: "https://papers.ssrn.com/author=2"},
			},
			Pages:      "34",
			PostedDate: "17 Jan 2025",
			Keywords:   "aging, retirement",
			Downloads:  "120",
		},
		{PaperID: "5100002", Title: "Pension Reform"},
	}

	path, err := SaveListing(dir, "J14", papers, now)
	if err != nil {
		t.Fatalf("save listing: %v", err)
	}
	if want := filepath.Join(dir, "ssrn_papers_jel_J14_20250117_175715.json"); path != want {
		t.Fatalf("path=%q, want %q", path, want)
	}

	loaded, err := LoadListing(path)
	if err != nil {
		t.Fatalf("load listing: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d papers, want 2", len(loaded))
	}
	if loaded[0].Title != papers[0].Title || loaded[0].URL != papers[0].URL {
		t.Fatalf("first paper = %+v, want %+v", loaded[0], papers[0])
	}
	if len(loaded[0].Authors) != 2 {
		t.Fatalf("authors=%d, want 2", len(loaded[0].Authors))
	}
	if loaded[0].Authors[1].Affiliation != "" {
		t.Fatalf("second author affiliation should be absent, got %q", loaded[0].Authors[1].Affiliation)
	}
}

func TestDerivedPaths(t *testing.T) {
	input := filepath.Join("output", "ssrn_papers_jel_J14_20250117_175715.json")
	if got, want := ResultsPath(input), filepath.Join("output", "ssrn_papers_jel_J14_20250117_175715_with_abstracts.json"); got != want {
		t.Fatalf("ResultsPath=%q, want %q", got, want)
	}
	if got, want := FailedPath(input), filepath.Join("output", "ssrn_papers_jel_J14_20250117_175715_failed_papers.json"); got != want {
		t.Fatalf("FailedPath=%q, want %q", got, want)
	}
}

func TestLoadResultIDs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prior_with_abstracts.json")

	results := map[string]*models.AbstractRecord{
		"111": {AbstractID: "111", Title: "A", URL: "u1", Abstract: "text"},
		"222": {AbstractID: "222", Title: "B", URL: "u2", Abstract: "text"},
	}
	if err := SaveResults(path, results); err != nil {
		t.Fatalf("save results: %v", err)
	}

	ids, err := LoadResultIDs(path)
	if err != nil {
		t.Fatalf("load result ids: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("ids=%d, want 2", len(ids))
	}
	for _, id := range []string{"111", "222"} {
		if _, ok := ids[id]; !ok {
			t.Fatalf("missing id %q", id)
		}
	}
}

func TestLoadResultIDsMissingFile(t *testing.T) {
	if _, err := LoadResultIDs(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatalf("expected error for missing resume file")
	}
}

func TestEscapeNonASCIIEquivalence(t *testing.T) {
	papers := []*models.PaperRecord{
		{
			Title: "Économie du vieillissement — 高齢化 🧓",
			URL:   "https://papers.ssrn.com/sol3/papers.cfm?abstract_id=42",
		},
	}

	data, err := json.MarshalIndent(papers, "", "  ")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	escaped := escapeNonASCII(data)
	for _, b := range escaped {
		if b > 0x7F {
			t.Fatalf("escaped output contains non-ASCII byte %#x", b)
		}
	}

	var decoded []*models.PaperRecord
	if err := json.Unmarshal(escaped, &decoded); err != nil {
		t.Fatalf("escaped output is not valid JSON: %v", err)
	}
	if decoded[0].Title != papers[0].Title {
		t.Fatalf("title=%q, want %q", decoded[0].Title, papers[0].Title)
	}
}

func TestSaveDocumentCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "doc.json")
	if err := SaveDocument(path, map[string]string{"k": "v"}); err != nil {
		t.Fatalf("save document: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("document not written: %v", err)
	}
}

func TestSaveDocumentOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "results.json")

	if err := SaveDocument(path, map[string]int{"first": 1}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := SaveDocument(path, map[string]int{"second": 2}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	var doc map[string]int
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if _, stale := doc["first"]; stale || doc["second"] != 2 {
		t.Fatalf("unexpected document contents: %v", doc)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}
