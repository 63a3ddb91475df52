// Package models defines data structures for the harvester.
package models

import "time"

// Author is a single listed author. Affiliation is paired positionally
// with the author list on the listing page and may be absent.
type Author struct {
	Name        string `json:"name"`
	ProfileURL  string `json:"profile_url"`
	Affiliation string `json:"affiliation,omitempty"`
}

// PaperRecord is one item extracted from a listing page. Every field
// except Title and URL is best-effort; a missing structural element on
// the page leaves the field empty rather than failing the item.
type PaperRecord struct {
	PaperID     string   `json:"paper_id,omitempty"`
	Title       string   `json:"title,omitempty"`
	URL         string   `json:"url,omitempty"`
	Authors     []Author `json:"authors,omitempty"`
	Pages       string   `json:"pages,omitempty"`
	PostedDate  string   `json:"posted_date,omitempty"`
	LastRevised string   `json:"last_revised,omitempty"`
	Keywords    string   `json:"keywords,omitempty"`
	Downloads   string   `json:"downloads,omitempty"`
}

// Fetchable reports whether the record carries enough data for a
// detail-page fetch. Records failing this are skipped, never queued.
func (p *PaperRecord) Fetchable() bool {
	return p != nil && p.Title != "" && p.URL != ""
}

// AbstractRecord is the result of fetching one paper's detail page.
type AbstractRecord struct {
	AbstractID string `json:"abstract_id"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	Abstract   string `json:"abstract"`
}

// CollectResult summarises a listing collection run.
type CollectResult struct {
	Papers       []*PaperRecord
	PageCount    int
	RequestCount int
	ErrorCount   int
	Duplicates   int
	OutputFile   string
	StartTime    time.Time
	EndTime      time.Time
}

// FetchResult summarises an abstract fetch run.
type FetchResult struct {
	Results    map[string]*AbstractRecord
	Succeeded  int
	Failed     int
	Skipped    int
	Resumed    int
	OutputFile string
	FailedFile string
	StartTime  time.Time
	EndTime    time.Time
}
