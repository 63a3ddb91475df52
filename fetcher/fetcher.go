// Package fetcher implements the abstract fetcher: it consumes a listing
// document, fetches each paper's detail page, and accumulates abstracts
// into a keyed results mapping with periodic checkpoints and a retry
// queue for items that fail after in-line retries.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-ssrn/config"
	"github.com/aluiziolira/go-scrape-ssrn/models"
	"github.com/aluiziolira/go-scrape-ssrn/parser"
	"github.com/aluiziolira/go-scrape-ssrn/storage"
)

// Fetcher downloads abstracts sequentially, one request in flight at a
// time. It owns the results mapping and the failed-item queue; the resume
// set is read-only after construction.
type Fetcher struct {
	cfg     *config.Config
	client  *http.Client
	Metrics *Metrics

	results map[string]*models.AbstractRecord
	failed  []*models.PaperRecord
	resume  map[string]struct{}
	resumed int

	resultsPath string
	failedPath  string

	retry retryPolicy

	// Test seams: tests shrink sleeps and pin the random source.
	sleep func(context.Context, time.Duration)
	rnd   *rand.Rand
	now   func() time.Time
}

// NewFetcher builds a fetcher configured from cfg. resume holds abstract
// ids already satisfied by a prior run; it may be nil.
func NewFetcher(cfg *config.Config, resume map[string]struct{}) (*Fetcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if resume == nil {
		resume = make(map[string]struct{})
	}

	client := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   cfg.Timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}

	return &Fetcher{
		cfg:     cfg,
		client:  client,
		Metrics: NewMetrics(),
		results: make(map[string]*models.AbstractRecord),
		resume:  resume,
		retry: retryPolicy{
			attempts: cfg.MaxAttempts,
			backoff:  cfg.RetryBackoff,
			cap:      cfg.RetryBackoffMax,
		},
		sleep: sleepFor,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		now:   time.Now,
	}, nil
}

// Run processes every paper in the listing document at inputPath. Items
// missing title or url are skipped silently; per-item failures after
// in-line retries land in the failed queue and never abort the run. The
// results mapping is checkpointed every cfg.CheckpointEvery successes and
// immediately after a failure.
func (f *Fetcher) Run(ctx context.Context, inputPath string) (*models.FetchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	papers, err := storage.LoadListing(inputPath)
	if err != nil {
		return nil, err
	}

	f.resultsPath = storage.ResultsPath(inputPath)
	f.failedPath = storage.FailedPath(inputPath)

	result := &models.FetchResult{StartTime: f.now()}
	total := len(papers)
	slog.Info("starting abstract fetch", slog.Int("papers", total), slog.String("input", inputPath))

	for i, paper := range papers {
		if ctx.Err() != nil {
			slog.Info("fetch interrupted", slog.Int("processed", i))
			break
		}
		if !paper.Fetchable() {
			result.Skipped++
			continue
		}

		record, err := f.fetchWithRetry(ctx, paper, false)
		if err != nil {
			slog.Error("paper failed after retries",
				slog.String("title", paper.Title),
				slog.Any("error", err),
			)
			// Preserve progress before moving on.
			f.checkpoint()
			f.failed = append(f.failed, paper)
			continue
		}
		if record == nil {
			result.Skipped++
			continue
		}

		f.upsert(record)
		if len(f.results)%f.cfg.CheckpointEvery == 0 {
			f.checkpoint()
		}
		slog.Info("paper processed",
			slog.Int("index", i+1),
			slog.Int("total", total),
			slog.String("abstract_id", record.AbstractID),
		)
	}

	f.retryFailed(ctx)

	if err := storage.SaveResults(f.resultsPath, f.results); err != nil {
		return result, fmt.Errorf("save results: %w", err)
	}
	result.OutputFile = f.resultsPath

	if len(f.failed) > 0 {
		if err := storage.SaveFailed(f.failedPath, f.failed); err != nil {
			return result, fmt.Errorf("save failed papers: %w", err)
		}
		result.FailedFile = f.failedPath
		slog.Info("failed papers saved",
			slog.Int("count", len(f.failed)),
			slog.String("path", f.failedPath),
		)
	}

	result.Results = f.results
	result.Succeeded = len(f.results)
	result.Failed = len(f.failed)
	result.Resumed = f.resumed
	result.EndTime = f.now()
	slog.Info("abstract fetch complete",
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", result.Failed),
		slog.String("output", f.resultsPath),
	)
	return result, nil
}

// fetchWithRetry wraps a single-item fetch in the in-line retry policy.
// Only the final failure propagates; intermediate attempts sleep with
// exponential backoff.
func (f *Fetcher) fetchWithRetry(ctx context.Context, paper *models.PaperRecord, isRetry bool) (*models.AbstractRecord, error) {
	var record *models.AbstractRecord
	attempt := 0
	err := f.retry.do(ctx, f.sleep, func() error {
		attempt++
		if attempt > 1 {
			f.Metrics.IncRetries()
		}
		var fetchErr error
		record, fetchErr = f.fetchOne(ctx, paper, isRetry)
		return fetchErr
	})
	return record, err
}

// fetchOne performs one courtesy-delayed detail-page request and extracts
// the abstract. A page without an abstract paragraph is not a failure:
// the item is skipped with a warning and never queued.
func (f *Fetcher) fetchOne(ctx context.Context, paper *models.PaperRecord, isRetry bool) (*models.AbstractRecord, error) {
	if isRetry {
		f.sleep(ctx, f.randomDelay(f.cfg.RetryFetchDelayMin, f.cfg.RetryFetchDelayMax))
	} else {
		f.sleep(ctx, f.randomDelay(f.cfg.FetchDelayMin, f.cfg.FetchDelayMax))
	}

	phase := "primary"
	if isRetry {
		phase = "retry"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, paper.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", f.cfg.Accept)

	start := f.now()
	resp, err := f.client.Do(req)
	f.Metrics.IncRequest(phase)
	f.Metrics.ObserveDuration(f.now().Sub(start))
	if err != nil {
		classified := classifyTransportError(err)
		f.Metrics.IncError(errorTypeLabel(classified))
		slog.Error("detail request failed",
			slog.String("title", paper.Title),
			slog.Any("error", classified),
		)
		return nil, classified
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		statusErr := classifyStatus(resp.StatusCode, paper.URL)
		f.Metrics.IncError(errorTypeLabel(statusErr))
		if resp.StatusCode == http.StatusTooManyRequests {
			slog.Error("rate limit exceeded", slog.String("title", paper.Title))
			// Back off hard before letting the retry layer see the failure.
			f.sleep(ctx, f.randomDelay(f.cfg.RateLimitDelayMin, f.cfg.RateLimitDelayMax))
		} else {
			slog.Error("detail request rejected",
				slog.String("title", paper.Title),
				slog.Int("status", resp.StatusCode),
			)
		}
		return nil, statusErr
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		f.Metrics.IncError("parse")
		slog.Error("parsing detail page failed",
			slog.String("title", paper.Title),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("parse detail page: %w", err)
	}

	paragraph := doc.Find("div.abstract-text p").First()
	if paragraph.Length() == 0 {
		slog.Warn("no abstract found", slog.String("title", paper.Title))
		return nil, nil
	}

	return &models.AbstractRecord{
		AbstractID: parser.AbstractIDFromURL(paper.URL),
		Title:      paper.Title,
		URL:        paper.URL,
		Abstract:   strings.TrimSpace(paragraph.Text()),
	}, nil
}

// retryFailed sweeps the failed queue once: snapshot, clear, refetch.
// Items whose id is already in the resume set are skipped; items that
// fail again land back in the rebuilt queue.
func (f *Fetcher) retryFailed(ctx context.Context) {
	if len(f.failed) == 0 {
		return
	}

	slog.Info("retrying failed papers", slog.Int("count", len(f.failed)))
	snapshot := f.failed
	f.failed = nil

	for _, paper := range snapshot {
		if ctx.Err() != nil {
			f.failed = append(f.failed, paper)
			continue
		}

		if _, done := f.resume[parser.AbstractIDFromURL(paper.URL)]; done {
			f.resumed++
			slog.Info("skipping already fetched paper", slog.String("title", paper.Title))
			continue
		}

		slog.Info("retrying paper", slog.String("title", paper.Title))
		record, err := f.fetchWithRetry(ctx, paper, true)
		if err != nil {
			slog.Error("retry failed", slog.String("title", paper.Title), slog.Any("error", err))
			f.failed = append(f.failed, paper)
		} else if record != nil {
			f.upsert(record)
			f.checkpoint()
		}

		f.sleep(ctx, f.randomDelay(f.cfg.SweepDelayMin, f.cfg.SweepDelayMax))
	}
}

// upsert records an abstract, overwriting any previous entry for the id.
func (f *Fetcher) upsert(record *models.AbstractRecord) {
	f.results[record.AbstractID] = record
	f.Metrics.IncAbstracts()
}

// checkpoint saves the results mapping; a failed checkpoint is logged and
// the run continues, only the finalization save surfaces its error.
func (f *Fetcher) checkpoint() {
	if err := storage.SaveResults(f.resultsPath, f.results); err != nil {
		slog.Error("checkpoint save failed", slog.Any("error", err))
		return
	}
	f.Metrics.IncCheckpoints()
	slog.Debug("checkpoint saved", slog.Int("results", len(f.results)))
}

func (f *Fetcher) randomDelay(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(f.rnd.Int63n(int64(max-min)))
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
