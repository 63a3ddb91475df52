package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"

	"github.com/aluiziolira/go-scrape-ssrn/config"
	"github.com/aluiziolira/go-scrape-ssrn/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.BaseURL = "http://example.test/sol3/jweljour_results.cfm"
	cfg.OutputDir = t.TempDir()
	cfg.PageDelay = 0
	return cfg
}

func pageURL(cfg *config.Config, page int) string {
	return fmt.Sprintf("%s?code=J14&page=%d", cfg.BaseURL, page)
}

func htmlResponder(body string) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(http.StatusOK, body)
		resp.Header.Set("Content-Type", "text/html; charset=utf-8")
		resp.Request = req
		return resp, nil
	}
}

type fixtureItem struct {
	id    int
	full  bool
	extra string
}

func listingPage(totalPages int, items ...fixtureItem) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	if totalPages > 0 {
		fmt.Fprintf(&b, `<div class="pagination"><ul><li class="total">%d</li></ul></div>`, totalPages)
	}
	for _, item := range items {
		fmt.Fprintf(&b, `<div class="trow" id="div_%d"><div class="description">`, item.id)
		fmt.Fprintf(&b, `<a class="title optClickTitle" href="/sol3/papers.cfm?abstract_id=%d">Paper %d</a>`, item.id, item.id)
		if item.full {
			b.WriteString(`<div class="note note-list">` +
				`<span>Number of pages: 34</span>` +
				`<span>Posted: 17 Jan 2025</span>` +
				`<span>Last Revised: 20 Feb 2025</span>` +
				`</div>`)
			b.WriteString(`<div class="authors-list">` +
				`<a href="/author=1">Alice Chen</a>` +
				`<a href="/author=2">Bob Diaz</a>` +
				`</div>`)
			b.WriteString(`<div class="afiliations">Example University</div>`)
			b.WriteString(`<div class="keywords">aging,` + "\n" + ` retirement</div>`)
		}
		b.WriteString(item.extra)
		b.WriteString(`</div>`)
		if item.full {
			b.WriteString(`<div class="downloads"><span>Downloads</span><span>120</span></div>`)
		}
		b.WriteString(`</div>`)
	}
	b.WriteString("</body></html>")
	return b.String()
}

const emptyPage = `<html><body><div class="noresults">No papers found</div></body></html>`

func newTestCollector(t *testing.T, cfg *config.Config, transport *httpmock.MockTransport) *Collector {
	t.Helper()
	c, err := NewCollector(cfg)
	if err != nil {
		t.Fatalf("new collector: %v", err)
	}
	c.collector.WithTransport(transport)
	return c
}

func TestCollectStopsOnEmptyPage(t *testing.T) {
	cfg := testConfig(t)

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", pageURL(cfg, 1),
		htmlResponder(listingPage(0, fixtureItem{id: 101}, fixtureItem{id: 102}, fixtureItem{id: 103})))
	transport.RegisterResponder("GET", pageURL(cfg, 2),
		htmlResponder(listingPage(0, fixtureItem{id: 104}, fixtureItem{id: 105})))
	transport.RegisterResponder("GET", pageURL(cfg, 3), htmlResponder(emptyPage))

	c := newTestCollector(t, cfg, transport)
	result, err := c.Collect(context.Background(), "J14", 0)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	if len(result.Papers) != 5 {
		t.Fatalf("papers=%d, want 5", len(result.Papers))
	}
	for i, wantID := range []string{"101", "102", "103", "104", "105"} {
		if result.Papers[i].PaperID != wantID {
			t.Fatalf("papers[%d].PaperID=%q, want %q", i, result.Papers[i].PaperID, wantID)
		}
	}
	if result.PageCount != 2 {
		t.Fatalf("pages=%d, want 2", result.PageCount)
	}
	if result.RequestCount != 3 {
		t.Fatalf("requests=%d, want 3", result.RequestCount)
	}
	if result.ErrorCount != 0 {
		t.Fatalf("errors=%d, want 0", result.ErrorCount)
	}
}

func TestCollectAdoptsDiscoveredTotal(t *testing.T) {
	cfg := testConfig(t)

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", pageURL(cfg, 1),
		htmlResponder(listingPage(2, fixtureItem{id: 201}, fixtureItem{id: 202}, fixtureItem{id: 203})))
	transport.RegisterResponder("GET", pageURL(cfg, 2),
		htmlResponder(listingPage(0, fixtureItem{id: 204}, fixtureItem{id: 205})))
	// No responder for page 3: requesting it would fail the run.

	c := newTestCollector(t, cfg, transport)
	result, err := c.Collect(context.Background(), "J14", 0)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	if result.ErrorCount != 0 {
		t.Fatalf("errors=%d, want 0 (collector went past the discovered total)", result.ErrorCount)
	}
	if len(result.Papers) != 5 {
		t.Fatalf("papers=%d, want 5", len(result.Papers))
	}
	if got := result.Papers[3].Title; got != "Paper 204" {
		t.Fatalf("title=%q, want %q", got, "Paper 204")
	}
	if got := result.Papers[3].URL; got != "http://example.test/sol3/papers.cfm?abstract_id=204" {
		t.Fatalf("url=%q", got)
	}

	papers, err := storage.LoadListing(result.OutputFile)
	if err != nil {
		t.Fatalf("load output document: %v", err)
	}
	if len(papers) != 5 {
		t.Fatalf("persisted papers=%d, want 5", len(papers))
	}
}

func TestCollectExplicitCapBeatsDiscoveredTotal(t *testing.T) {
	cfg := testConfig(t)

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", pageURL(cfg, 1),
		htmlResponder(listingPage(3, fixtureItem{id: 301}, fixtureItem{id: 302})))

	c := newTestCollector(t, cfg, transport)
	result, err := c.Collect(context.Background(), "J14", 1)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	if result.RequestCount != 1 {
		t.Fatalf("requests=%d, want 1 (explicit cap should win over total indicator)", result.RequestCount)
	}
	if len(result.Papers) != 2 {
		t.Fatalf("papers=%d, want 2", len(result.Papers))
	}
}

func TestCollectStopsOnTransportError(t *testing.T) {
	cfg := testConfig(t)

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", pageURL(cfg, 1),
		htmlResponder(listingPage(0, fixtureItem{id: 401}, fixtureItem{id: 402})))
	transport.RegisterResponder("GET", pageURL(cfg, 2),
		httpmock.NewErrorResponder(fmt.Errorf("connection reset")))

	c := newTestCollector(t, cfg, transport)
	result, err := c.Collect(context.Background(), "J14", 0)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	if len(result.Papers) != 2 {
		t.Fatalf("papers=%d, want 2 (only the successful page)", len(result.Papers))
	}
	if result.ErrorCount != 1 {
		t.Fatalf("errors=%d, want 1", result.ErrorCount)
	}
}

func TestCollectDropsRepeatedPaperID(t *testing.T) {
	cfg := testConfig(t)

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", pageURL(cfg, 1),
		htmlResponder(listingPage(2, fixtureItem{id: 501}, fixtureItem{id: 502})))
	transport.RegisterResponder("GET", pageURL(cfg, 2),
		htmlResponder(listingPage(0, fixtureItem{id: 502}, fixtureItem{id: 503})))

	c := newTestCollector(t, cfg, transport)
	result, err := c.Collect(context.Background(), "J14", 0)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	if len(result.Papers) != 3 {
		t.Fatalf("papers=%d, want 3 unique", len(result.Papers))
	}
	if result.Duplicates != 1 {
		t.Fatalf("duplicates=%d, want 1", result.Duplicates)
	}
}

func TestCollectExtractsAllFields(t *testing.T) {
	cfg := testConfig(t)

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", pageURL(cfg, 1),
		htmlResponder(listingPage(0, fixtureItem{id: 601, full: true})))
	transport.RegisterResponder("GET", pageURL(cfg, 2), htmlResponder(emptyPage))

	c := newTestCollector(t, cfg, transport)
	result, err := c.Collect(context.Background(), "J14", 0)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(result.Papers) != 1 {
		t.Fatalf("papers=%d, want 1", len(result.Papers))
	}

	paper := result.Papers[0]
	if paper.PaperID != "601" {
		t.Fatalf("paper_id=%q, want 601", paper.PaperID)
	}
	if paper.Title != "Paper 601" {
		t.Fatalf("title=%q", paper.Title)
	}
	if paper.URL != "http://example.test/sol3/papers.cfm?abstract_id=601" {
		t.Fatalf("url=%q", paper.URL)
	}
	if paper.Pages != "34" || paper.PostedDate != "17 Jan 2025" || paper.LastRevised != "20 Feb 2025" {
		t.Fatalf("details=%q/%q/%q", paper.Pages, paper.PostedDate, paper.LastRevised)
	}
	if len(paper.Authors) != 2 {
		t.Fatalf("authors=%d, want 2", len(paper.Authors))
	}
	if paper.Authors[0].Name != "Alice Chen" || paper.Authors[0].Affiliation != "Example University" {
		t.Fatalf("first author=%+v", paper.Authors[0])
	}
	if paper.Authors[0].ProfileURL != "http://example.test/author=1" {
		t.Fatalf("profile url=%q", paper.Authors[0].ProfileURL)
	}
	if paper.Authors[1].Affiliation != "" {
		t.Fatalf("second author should lack affiliation, got %q", paper.Authors[1].Affiliation)
	}
	if paper.Keywords != "aging, retirement" {
		t.Fatalf("keywords=%q", paper.Keywords)
	}
	if paper.Downloads != "120" {
		t.Fatalf("downloads=%q", paper.Downloads)
	}
}

func TestCollectTolerantOfSparseItems(t *testing.T) {
	cfg := testConfig(t)

	// One item with only an id, no description block at all.
	sparse := `<html><body><div class="trow" id="div_701"></div></body></html>`
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", pageURL(cfg, 1), htmlResponder(sparse))
	transport.RegisterResponder("GET", pageURL(cfg, 2), htmlResponder(emptyPage))

	c := newTestCollector(t, cfg, transport)
	result, err := c.Collect(context.Background(), "J14", 0)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(result.Papers) != 1 {
		t.Fatalf("papers=%d, want 1", len(result.Papers))
	}
	paper := result.Papers[0]
	if paper.PaperID != "701" || paper.Title != "" || paper.URL != "" {
		t.Fatalf("sparse paper=%+v", paper)
	}
	if paper.Fetchable() {
		t.Fatalf("sparse paper must not be fetchable")
	}
}
