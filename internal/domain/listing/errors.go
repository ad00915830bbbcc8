package listing

import (
	"errors"
	"fmt"

	"github.com/micahco/sym/internal/domain/model"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrNavigation        = errors.New("navigation failed")
	ErrExtraction        = errors.New("extraction failed")
	ErrPageChangeTimeout = errors.New("page change timed out")
	ErrScoreParse        = model.ErrScoreParse
	ErrInvalidPolicy     = errors.New("invalid score parse policy")

	errMissingTitle  = errors.New("release title missing")
	errMissingArtist = errors.New("release artist missing")
)

// SkipReason classifies why a listing was left out of a run.
type SkipReason string

// Skip reasons.
const (
	ReasonNavigation SkipReason = "navigation"
	ReasonExtraction SkipReason = "extraction"
	ReasonScoreParse SkipReason = "score_parse"
	ReasonCancelled  SkipReason = "cancelled"
)

// SkipError is returned by Scrape for a listing that produced no catalog.
type SkipError struct {
	URL    string
	Reason SkipReason
	Err    error
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("skipped %s (%s): %v", e.URL, e.Reason, e.Err)
}

func (e *SkipError) Unwrap() error { return e.Err }

// reasonFor maps a scrape error onto a skip reason. Cancellation of the
// run is decided by the caller from its own context.
func reasonFor(err error) SkipReason {
	switch {
	case errors.Is(err, ErrScoreParse):
		return ReasonScoreParse
	case errors.Is(err, ErrNavigation):
		return ReasonNavigation
	default:
		return ReasonExtraction
	}
}
