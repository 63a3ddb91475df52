// Package scraper implements the listing collector: it walks the paginated
// results for a JEL classification code and extracts one PaperRecord per
// listed item.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-scrape-ssrn/config"
	"github.com/aluiziolira/go-scrape-ssrn/models"
	"github.com/aluiziolira/go-scrape-ssrn/parser"
	"github.com/aluiziolira/go-scrape-ssrn/storage"
)

// Collector walks listing pages for a classification code and accumulates
// paper records. It issues one request at a time; the site rate-limits
// aggressively and parallel listing requests get the crawler banned.
type Collector struct {
	cfg       *config.Config
	collector *colly.Collector
	Metrics   *Metrics

	// Cross-page duplicate guard: the site occasionally repeats the
	// trailing items of one page at the head of the next.
	seen *lru.Cache[string, struct{}]

	pageBuf    []*models.PaperRecord
	totalPages int
	duplicates int

	now func() time.Time
}

// NewCollector builds a listing collector configured from cfg.
func NewCollector(cfg *config.Config) (*Collector, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Host),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	seen, err := lru.New[string, struct{}](cfg.SeenCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create seen cache: %w", err)
	}

	c := &Collector{
		cfg:       cfg,
		collector: collector,
		Metrics:   NewMetrics(),
		seen:      seen,
		now:       time.Now,
	}
	c.configureHandlers()
	return c, nil
}

// Collect walks listing pages for code starting at page 1 and persists the
// accumulated records to a timestamped document in the output directory.
// maxPages of 0 means "all pages"; a total-page indicator discovered on
// the first page then becomes the effective cap. Pagination stops on the
// first empty page, on the cap, or on a transport error (logged, not
// retried).
func (c *Collector) Collect(ctx context.Context, code string, maxPages int) (*models.CollectResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if maxPages == 0 {
		maxPages = c.cfg.MaxPages
	}

	result := &models.CollectResult{StartTime: c.now()}
	explicitCap := maxPages > 0
	c.totalPages = 0
	c.duplicates = 0

	var papers []*models.PaperRecord
	for page := 1; ; page++ {
		if maxPages > 0 && page > maxPages {
			slog.Info("reached page cap", slog.Int("max_pages", maxPages))
			break
		}
		if ctx.Err() != nil {
			slog.Info("collection interrupted", slog.Int("page", page))
			break
		}

		slog.Info("fetching listing page", slog.Int("page", page), slog.String("code", code))
		c.pageBuf = nil
		start := c.now()
		err := c.collector.Visit(c.pageURL(code, page))
		result.RequestCount++
		c.Metrics.IncRequest("listing")
		c.Metrics.ObserveDuration(c.now().Sub(start))

		if err != nil {
			result.ErrorCount++
			c.Metrics.IncError(errorLabel(err))
			slog.Error("fetching listing page failed",
				slog.Int("page", page),
				slog.Any("error", err),
			)
			break
		}

		// First page may carry the total page count.
		if page == 1 && c.totalPages > 0 && !explicitCap {
			maxPages = c.totalPages
			slog.Info("total pages discovered", slog.Int("total_pages", c.totalPages))
		}

		if len(c.pageBuf) == 0 {
			slog.Info("no more papers found", slog.Int("page", page))
			break
		}

		papers = append(papers, c.pageBuf...)
		result.PageCount = page
		c.Metrics.IncPages()
		slog.Info("listing page processed",
			slog.Int("page", page),
			slog.Int("page_items", len(c.pageBuf)),
			slog.Int("total_items", len(papers)),
		)

		if maxPages > 0 && page >= maxPages {
			break
		}
		sleepFor(ctx, c.cfg.PageDelay)
	}

	result.Papers = papers
	result.Duplicates = c.duplicates
	result.EndTime = c.now()

	outputFile, err := storage.SaveListing(c.cfg.OutputDir, code, papers, result.StartTime)
	if err != nil {
		return result, fmt.Errorf("save listing: %w", err)
	}
	result.OutputFile = outputFile

	slog.Info("collection complete",
		slog.Int("pages", result.PageCount),
		slog.Int("papers", len(papers)),
		slog.String("output", outputFile),
	)
	return result, nil
}

func (c *Collector) pageURL(code string, page int) string {
	return fmt.Sprintf("%s?code=%s&page=%d", c.cfg.BaseURL, url.QueryEscape(code), page)
}

func (c *Collector) configureHandlers() {
	c.collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", c.cfg.Accept)
	})

	c.collector.OnResponse(func(r *colly.Response) {
		if r.StatusCode >= http.StatusBadRequest {
			slog.Error("non-200 response",
				slog.Int("status", r.StatusCode),
				slog.String("url", r.Request.URL.String()),
			)
		}
	})

	c.collector.OnHTML("div.pagination li.total", func(e *colly.HTMLElement) {
		if c.totalPages > 0 {
			return
		}
		if total, err := strconv.Atoi(strings.TrimSpace(e.Text)); err == nil && total > 0 {
			c.totalPages = total
		}
	})

	c.collector.OnHTML("div.trow", func(e *colly.HTMLElement) {
		paper := extractPaper(e)
		if paper == nil {
			return
		}
		if paper.PaperID != "" {
			if found, _ := c.seen.ContainsOrAdd(paper.PaperID, struct{}{}); found {
				c.duplicates++
				c.Metrics.IncDuplicates()
				slog.Debug("duplicate listing item dropped", slog.String("paper_id", paper.PaperID))
				return
			}
		}
		c.pageBuf = append(c.pageBuf, paper)
		c.Metrics.IncItems()
	})
}

// extractPaper builds a PaperRecord from one listing item element. Every
// field is best-effort: a missing structural element leaves the field
// empty, it never fails the item.
func extractPaper(e *colly.HTMLElement) *models.PaperRecord {
	paper := &models.PaperRecord{}

	if id := e.Attr("id"); id != "" {
		paper.PaperID = strings.TrimPrefix(id, "div_")
	}

	title := strings.TrimSpace(e.ChildText("div.description a.title.optClickTitle"))
	if title != "" {
		paper.Title = title
		if href := e.ChildAttr("div.description a.title.optClickTitle", "href"); href != "" {
			paper.URL = e.Request.AbsoluteURL(href)
		}
	}

	e.ForEach("div.description div.note.note-list span", func(_ int, span *colly.HTMLElement) {
		text := strings.TrimSpace(span.Text)
		switch {
		case strings.Contains(text, "Number of pages:"):
			paper.Pages = parser.StripCaption(text, "Number of pages:")
		case strings.Contains(text, "Posted:"):
			paper.PostedDate = parser.StripCaption(text, "Posted:")
		case strings.Contains(text, "Last Revised:"):
			paper.LastRevised = parser.StripCaption(text, "Last Revised:")
		}
	})

	// Affiliations pair with authors by position; authors past the end of
	// the affiliation list simply lack the field.
	affiliations := e.ChildTexts("div.description div.afiliations")
	e.ForEach("div.description div.authors-list a", func(i int, a *colly.HTMLElement) {
		author := models.Author{
			Name:       strings.TrimSpace(a.Text),
			ProfileURL: a.Request.AbsoluteURL(a.Attr("href")),
		}
		if i < len(affiliations) {
			author.Affiliation = strings.TrimSpace(affiliations[i])
		}
		paper.Authors = append(paper.Authors, author)
	})

	if keywords := strings.TrimSpace(e.ChildText("div.description div.keywords")); keywords != "" {
		paper.Keywords = parser.CollapseWhitespace(keywords)
	}

	if downloads := strings.TrimSpace(e.ChildText("div.downloads span:nth-child(2)")); downloads != "" {
		paper.Downloads = downloads
	}

	if paper.PaperID == "" && paper.Title == "" && paper.URL == "" {
		return nil
	}
	return paper
}

func errorLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "connection"
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Too Many Requests"):
		return "rate_limited"
	case strings.Contains(msg, "Forbidden"):
		return "forbidden"
	case strings.Contains(msg, "Not Found"):
		return "not_found"
	}
	return "other"
}

func sleepFor(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
