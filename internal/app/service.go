// Package service runs one batch: scrape every listing with a shared page
// driver, build the ledger, filter matches and write them out.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/micahco/sym/internal/adapters/output"
	"github.com/micahco/sym/internal/domain/ledger"
	"github.com/micahco/sym/internal/domain/listing"
	"github.com/micahco/sym/internal/domain/match"
	"github.com/micahco/sym/internal/domain/model"
	"github.com/micahco/sym/pkg/logger"
	"github.com/micahco/sym/pkg/metrics"
)

// DriverFactory opens the page driver shared by every listing of a run.
type DriverFactory func(ctx context.Context) (listing.PageDriver, error)

// Skip is one listing that produced no catalog.
type Skip struct {
	URL    string
	Reason listing.SkipReason
	Err    error
}

// Report summarises a finished run.
type Report struct {
	RunID         string
	StartedAt     time.Time
	Duration      time.Duration
	Listings      int // URLs requested
	Scraped       int
	Pages         int
	Dropped       int // rows removed by the score parse policy
	Skipped       []Skip
	Contributors  int
	Contributions int
	Replaced      int
	Matches       match.Set
	OutputPath    string
	Cancelled     bool
}

// Service implements a batch run.
type Service struct {
	mu sync.RWMutex

	newDriver  DriverFactory
	scraper    *listing.Scraper
	minCount   int
	op         match.Operator
	outputPath string

	// State
	running bool
	runID   string
	total   int
	done    int
	skipped int
	last    *Report

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		minCount: 1,
		op:       match.GreaterThan,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.scraper == nil {
		s.scraper = listing.NewScraper()
	}
	return s
}

// Run scrapes urls in order and returns the run report.
//
// A listing that fails is reported as skipped and the batch goes on. When
// ctx is cancelled the remaining listings are skipped, and what was
// scraped so far is still aggregated and written.
func (s *Service) Run(ctx context.Context, urls []string) (*Report, error) {
	if s.newDriver == nil {
		return nil, ErrNoDriver
	}
	if err := s.begin(len(urls)); err != nil {
		return nil, err
	}
	defer s.end()

	report := &Report{
		RunID:      s.runID,
		StartedAt:  time.Now(),
		Listings:   len(urls),
		Skipped:    []Skip{},
		OutputPath: s.outputPath,
	}
	s.logger.Info(ctx, "run started", logger.String("run_id", report.RunID), logger.Int("listings", len(urls)))

	catalogs, err := s.scrapeAll(ctx, urls, report)
	if err != nil {
		return nil, err
	}
	report.Cancelled = ctx.Err() != nil

	l := ledger.Build(catalogs)
	report.Contributors, report.Contributions, report.Replaced = l.Len(), l.Size(), l.Replaced()
	metrics.UpdateLedgerSize(l.Len(), l.Size())
	metrics.RecordDuplicateContributions(l.Replaced())

	set, err := match.Filter(l, s.minCount, s.op)
	if err != nil {
		s.reportSkips(ctx, report)
		return nil, err
	}
	report.Matches = set
	metrics.UpdateMatches(len(set))

	if s.outputPath != "" {
		if err := output.WriteFile(s.outputPath, set); err != nil {
			s.reportSkips(ctx, report)
			return nil, fmt.Errorf("%w: %w", ErrOutput, err)
		}
	}

	report.Duration = time.Since(report.StartedAt)
	s.finish(ctx, report)
	return report, nil
}

// scrapeAll runs every listing through one driver and closes it on return.
func (s *Service) scrapeAll(ctx context.Context, urls []string, report *Report) (catalogs []model.Catalog, err error) {
	d, err := s.newDriver(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDriverStart, err)
	}
	defer func() {
		if cerr := d.Close(); cerr != nil {
			s.logger.Warn(ctx, "closing page driver failed", logger.Error(cerr))
		}
	}()

	catalogs = make([]model.Catalog, 0, len(urls))
	for i, url := range urls {
		if cerr := ctx.Err(); cerr != nil {
			s.skip(report, Skip{URL: url, Reason: listing.ReasonCancelled, Err: cerr})
			continue
		}
		s.logger.Info(ctx, "scraping listing",
			logger.Int("n", i+1),
			logger.Int("of", len(urls)),
			logger.String("url", url),
		)

		res, err := s.scraper.Scrape(ctx, d, url)
		if err != nil {
			var skipErr *listing.SkipError
			if !errors.As(err, &skipErr) {
				skipErr = &listing.SkipError{URL: url, Reason: listing.ReasonExtraction, Err: err}
			}
			s.skip(report, Skip{URL: url, Reason: skipErr.Reason, Err: skipErr.Err})
			continue
		}

		catalogs = append(catalogs, res.Catalog)
		report.Scraped++
		report.Pages += res.Pages
		report.Dropped += res.Dropped
		s.progress(false)
	}
	return catalogs, nil
}

func (s *Service) skip(report *Report, sk Skip) {
	report.Skipped = append(report.Skipped, sk)
	s.progress(true)
}

// reportSkips logs every skipped listing. It runs on failed runs too.
func (s *Service) reportSkips(ctx context.Context, report *Report) {
	for _, sk := range report.Skipped {
		s.logger.Warn(ctx, "skipped listing",
			logger.String("url", sk.URL),
			logger.String("reason", string(sk.Reason)),
			logger.Error(sk.Err),
		)
	}
}

func (s *Service) finish(ctx context.Context, report *Report) {
	s.reportSkips(ctx, report)
	s.logger.Info(ctx, "run finished",
		logger.String("run_id", report.RunID),
		logger.Int("scraped", report.Scraped),
		logger.Int("skipped", len(report.Skipped)),
		logger.Int("pages", report.Pages),
		logger.Int("contributors", report.Contributors),
		logger.Int("matches", len(report.Matches)),
		logger.Bool("cancelled", report.Cancelled),
		logger.Duration("took", report.Duration),
	)

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()
}

func (s *Service) begin(total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunning
	}
	s.running = true
	s.runID = uuid.NewString()
	s.total, s.done, s.skipped = total, 0, 0
	return nil
}

func (s *Service) end() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *Service) progress(skipped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done++
	if skipped {
		s.skipped++
	}
}

// LastReport returns the report of the most recent finished run.
func (s *Service) LastReport() (*Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.last != nil
}

// LastMatches returns the match set of the most recent finished run.
func (s *Service) LastMatches() (match.Set, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil, false
	}
	return s.last.Matches, true
}

// GetStats returns run progress for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"running":   s.running,
		"runId":     s.runID,
		"listings":  s.total,
		"processed": s.done,
		"skipped":   s.skipped,
		"threshold": fmt.Sprintf("%s %d", s.op, s.minCount),
	}
	if s.last != nil {
		stats["lastRun"] = map[string]interface{}{
			"runId":        s.last.RunID,
			"scraped":      s.last.Scraped,
			"skipped":      len(s.last.Skipped),
			"contributors": s.last.Contributors,
			"matches":      len(s.last.Matches),
			"cancelled":    s.last.Cancelled,
			"durationMs":   s.last.Duration.Milliseconds(),
		}
	}
	return stats
}
