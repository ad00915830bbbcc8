package service

import (
	"github.com/micahco/sym/internal/domain/listing"
	"github.com/micahco/sym/internal/domain/match"
	"github.com/micahco/sym/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDriverFactory sets how the run's page driver is opened.
func WithDriverFactory(f DriverFactory) Option {
	return func(s *Service) {
		s.newDriver = f
	}
}

// WithScraper sets the listing scraper.
func WithScraper(sc *listing.Scraper) Option {
	return func(s *Service) {
		if sc != nil {
			s.scraper = sc
		}
	}
}

// WithMatchThreshold sets the minimum bucket length and its comparison.
func WithMatchThreshold(minCount int, op match.Operator) Option {
	return func(s *Service) {
		s.minCount = minCount
		s.op = op
	}
}

// WithOutputPath sets where the match set is written. Empty disables it.
func WithOutputPath(path string) Option {
	return func(s *Service) {
		s.outputPath = path
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
