package listing

import (
	"time"

	"github.com/micahco/sym/pkg/logger"
)

// Option applies a configuration option to the Scraper.
type Option func(*Scraper)

// WithPageLimit caps how many pages of one listing are extracted.
func WithPageLimit(n int) Option {
	return func(s *Scraper) {
		if n >= 1 {
			s.pageLimit = n
		}
	}
}

// WithPageChangeTimeout bounds each wait for the next page to appear.
func WithPageChangeTimeout(d time.Duration) Option {
	return func(s *Scraper) {
		if d > 0 {
			s.pageChangeTimeout = d
		}
	}
}

// WithNavigationTimeout bounds the initial navigation to a listing.
func WithNavigationTimeout(d time.Duration) Option {
	return func(s *Scraper) {
		if d > 0 {
			s.navigationTimeout = d
		}
	}
}

// WithScoreParsePolicy selects what happens to rows whose rating label
// cannot be parsed.
func WithScoreParsePolicy(p ScoreParsePolicy) Option {
	return func(s *Scraper) {
		if p.Valid() {
			s.policy = p
		}
	}
}

// WithLogger sets a custom logger for the scraper.
func WithLogger(l logger.Logger) Option {
	return func(s *Scraper) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTransitionHook registers fn to observe every traversal state change.
func WithTransitionHook(fn func(state State, page int)) Option {
	return func(s *Scraper) {
		s.onTransition = fn
	}
}
