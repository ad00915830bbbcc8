package listing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/micahco/sym/internal/domain/model"
	"github.com/micahco/sym/pkg/logger"
	"github.com/micahco/sym/pkg/metrics"
)

// State is a step of the pagination traversal.
type State int

// Traversal states. Loading is initial, Done and Failed are terminal.
const (
	Loading State = iota
	Extracting
	CheckNext
	Advancing
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Extracting:
		return "extracting"
	case CheckNext:
		return "check_next"
	case Advancing:
		return "advancing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StopReason records why a traversal ended.
type StopReason string

// Stop reasons.
const (
	StopNoNextPage        StopReason = "no_next_page"
	StopPageLimit         StopReason = "page_limit"
	StopPageChangeTimeout StopReason = "page_change_timeout"
	StopFailed            StopReason = "failed"
)

// ScoreParsePolicy decides what a malformed rating label does.
type ScoreParsePolicy string

// Score parse policies.
const (
	// PolicyDrop drops the row and keeps going.
	PolicyDrop ScoreParsePolicy = "drop"
	// PolicyFail fails the whole listing.
	PolicyFail ScoreParsePolicy = "fail"
)

// Valid reports whether p is a known policy.
func (p ScoreParsePolicy) Valid() bool {
	return p == PolicyDrop || p == PolicyFail
}

// ParseScoreParsePolicy parses "drop" or "fail".
func ParseScoreParsePolicy(s string) (ScoreParsePolicy, error) {
	p := ScoreParsePolicy(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
	return p, nil
}

// Traversal is what one pass over a listing's pages produced.
type Traversal struct {
	Entries []model.Entry // page order, then on-page order
	Pages   int           // pages extracted
	Stop    StopReason
	Dropped int // rows removed by PolicyDrop
}

// Traverse walks the pages of the listing already loaded in d using a
// scraper configured by opts.
func Traverse(ctx context.Context, d PageDriver, opts ...Option) (Traversal, error) {
	return NewScraper(opts...).Traverse(ctx, d)
}

// Traverse walks the pages of the listing already loaded in d.
//
// Entries of every extracted page are kept even when the traversal stops
// early on a page change timeout. Any other driver error fails the
// traversal with an ErrExtraction-wrapped error.
func (s *Scraper) Traverse(ctx context.Context, d PageDriver) (Traversal, error) {
	var (
		res   = Traversal{Entries: []model.Entry{}}
		state = Loading
		page  = 1
		cause error
	)

	for {
		s.transition(ctx, state, page)

		switch state {
		case Loading:
			if err := ctx.Err(); err != nil {
				cause, state = err, Failed
				continue
			}
			state = Extracting

		case Extracting:
			raw, err := d.ExtractEntries(ctx)
			if err != nil {
				cause, state = err, Failed
				continue
			}
			entries, dropped, err := s.parseEntries(ctx, raw, page)
			if err != nil {
				cause, state = err, Failed
				continue
			}
			res.Entries = append(res.Entries, entries...)
			res.Pages = page
			res.Dropped += dropped
			metrics.RecordPageTraversed()
			metrics.RecordEntriesExtracted(len(entries))
			s.logger.Debug(ctx, "page extracted",
				logger.Int("page", page),
				logger.Int("entries", len(entries)),
				logger.Int("dropped", dropped),
			)
			state = CheckNext

		case CheckNext:
			more, err := d.HasNextPage(ctx)
			switch {
			case err != nil:
				cause, state = err, Failed
			case !more:
				res.Stop, state = StopNoNextPage, Done
			case page >= s.pageLimit:
				res.Stop, state = StopPageLimit, Done
			default:
				state = Advancing
			}

		case Advancing:
			if err := d.GoToNextPage(ctx); err != nil {
				cause, state = err, Failed
				continue
			}
			err := d.WaitForPageChange(ctx, s.pageChangeTimeout)
			switch {
			case err == nil:
				page++
				state = Loading
			case ctx.Err() != nil:
				cause, state = ctx.Err(), Failed
			case errors.Is(err, ErrPageChangeTimeout), errors.Is(err, context.DeadlineExceeded):
				s.logger.Warn(ctx, "page change timed out, keeping partial listing",
					logger.Int("page", page),
					logger.Duration("timeout", s.pageChangeTimeout),
					logger.Error(err),
				)
				res.Stop, state = StopPageChangeTimeout, Done
			default:
				cause, state = err, Failed
			}

		case Done:
			metrics.RecordTraversalStop(string(res.Stop))
			return res, nil

		case Failed:
			res.Stop = StopFailed
			metrics.RecordTraversalStop(string(res.Stop))
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(cause, ctxErr) {
				return res, fmt.Errorf("traversal stopped at page %d: %w", page, cause)
			}
			return res, fmt.Errorf("%w: page %d: %w", ErrExtraction, page, cause)
		}
	}
}

// parseEntries converts raw rows into entries under the configured policy.
func (s *Scraper) parseEntries(ctx context.Context, raw []model.RawEntry, page int) ([]model.Entry, int, error) {
	entries := make([]model.Entry, 0, len(raw))
	dropped := 0
	for i, r := range raw {
		score, err := model.ParseStars(r.RatingLabel)
		if err != nil {
			if s.policy == PolicyFail {
				return nil, 0, fmt.Errorf("row %d of %s: %w", i+1, r.ContributorID, err)
			}
			dropped++
			metrics.RecordEntryDropped()
			s.logger.Warn(ctx, "dropping row with malformed rating",
				logger.Int("page", page),
				logger.String("contributor", r.ContributorID),
				logger.String("label", r.RatingLabel),
			)
			continue
		}
		entries = append(entries, model.Entry{ContributorID: r.ContributorID, Score: score})
	}
	return entries, dropped, nil
}

func (s *Scraper) transition(ctx context.Context, state State, page int) {
	if s.onTransition != nil {
		s.onTransition(state, page)
	}
	s.logger.Debug(ctx, "traversal state", logger.String("state", state.String()), logger.Int("page", page))
}
