package listing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/micahco/sym/internal/domain/model"
	"github.com/micahco/sym/pkg/logger"
	"github.com/micahco/sym/pkg/metrics"
)

// Default scraper configuration constants.
const (
	DefaultPageLimit         = 10
	DefaultPageChangeTimeout = 10 * time.Second
	DefaultNavigationTimeout = 30 * time.Second
)

// Scraper turns one listing URL into a catalog.
type Scraper struct {
	pageLimit         int
	pageChangeTimeout time.Duration
	navigationTimeout time.Duration
	policy            ScoreParsePolicy
	logger            logger.Logger
	onTransition      func(State, int)
}

// Result is a scraped listing plus how its traversal ended.
type Result struct {
	Catalog model.Catalog
	Pages   int
	Stop    StopReason
	Dropped int
}

// NewScraper creates a Scraper with configuration options.
func NewScraper(opts ...Option) *Scraper {
	s := &Scraper{
		pageLimit:         DefaultPageLimit,
		pageChangeTimeout: DefaultPageChangeTimeout,
		navigationTimeout: DefaultNavigationTimeout,
		policy:            PolicyDrop,
		logger:            logger.Get().Named("listing"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PageLimit returns the configured page cap.
func (s *Scraper) PageLimit() int { return s.pageLimit }

// Scrape loads url in d, reads its release identity and traverses its pages.
// Every failure is returned as a *SkipError.
func (s *Scraper) Scrape(ctx context.Context, d PageDriver, url string) (Result, error) {
	start := time.Now()
	log := []logger.Field{logger.String("url", url)}

	res, err := s.scrape(ctx, d, url)
	metrics.RecordListingDuration(time.Since(start).Seconds())
	if err != nil {
		reason := reasonFor(err)
		if ctx.Err() != nil {
			reason = ReasonCancelled
		}
		metrics.RecordListing(string(reason))
		s.logger.Warn(ctx, "listing skipped", append(log,
			logger.String("reason", string(reason)),
			logger.Error(err),
		)...)
		return Result{}, &SkipError{URL: url, Reason: reason, Err: err}
	}

	metrics.RecordListing("ok")
	s.logger.Info(ctx, "listing scraped", append(log,
		logger.String("title", res.Catalog.Release.Title),
		logger.Int("pages", res.Pages),
		logger.Int("entries", len(res.Catalog.Entries)),
		logger.String("stop", string(res.Stop)),
	)...)
	return res, nil
}

func (s *Scraper) scrape(ctx context.Context, d PageDriver, url string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	s.logger.Debug(ctx, "navigating", logger.String("url", url))

	navCtx, cancel := context.WithTimeout(ctx, s.navigationTimeout)
	err := d.Navigate(navCtx, url)
	cancel()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrNavigation, err)
	}

	release, err := s.release(ctx, d, url)
	if err != nil {
		return Result{}, err
	}

	t, err := s.Traverse(ctx, d)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Catalog: model.Catalog{Release: release, Entries: t.Entries},
		Pages:   t.Pages,
		Stop:    t.Stop,
		Dropped: t.Dropped,
	}, nil
}

func (s *Scraper) release(ctx context.Context, d PageDriver, url string) (model.Release, error) {
	r, err := d.ExtractRelease(ctx)
	if err != nil {
		return model.Release{}, fmt.Errorf("%w: release: %w", ErrExtraction, err)
	}
	r.Title = strings.TrimSpace(r.Title)
	r.Artist = strings.TrimSpace(r.Artist)
	switch {
	case r.Title == "":
		return model.Release{}, fmt.Errorf("%w: %w", ErrExtraction, errMissingTitle)
	case r.Artist == "":
		return model.Release{}, fmt.Errorf("%w: %w", ErrExtraction, errMissingArtist)
	}
	if r.URL == "" {
		r.URL = url
	}
	return r, nil
}
