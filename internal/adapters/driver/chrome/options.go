package chrome

import (
	"github.com/chromedp/chromedp"

	"github.com/micahco/sym/pkg/logger"
)

// Option applies a configuration option to the Driver.
type Option func(*Driver)

// WithHeadless toggles headless Chrome.
func WithHeadless(headless bool) Option {
	return func(d *Driver) {
		d.headless = headless
	}
}

// WithAdBlock toggles request blocking for ad and tracker URLs.
func WithAdBlock(enabled bool) Option {
	return func(d *Driver) {
		d.blockAds = enabled
	}
}

// WithBlockedURLPatterns replaces the blocked URL patterns. Patterns use
// the DevTools wildcard syntax, e.g. "*doubleclick.net*".
func WithBlockedURLPatterns(patterns []string) Option {
	return func(d *Driver) {
		if len(patterns) > 0 {
			d.blocked = append([]string(nil), patterns...)
		}
	}
}

// WithUserAgent overrides the browser user agent.
func WithUserAgent(ua string) Option {
	return func(d *Driver) {
		if ua != "" {
			d.userAgent = ua
		}
	}
}

// WithExecPath points at a specific Chrome binary.
func WithExecPath(path string) Option {
	return func(d *Driver) {
		if path != "" {
			d.execPath = path
		}
	}
}

// WithAllocatorOptions appends raw chromedp allocator options.
func WithAllocatorOptions(opts ...chromedp.ExecAllocatorOption) Option {
	return func(d *Driver) {
		d.extra = append(d.extra, opts...)
	}
}

// WithLogger sets a custom logger for the driver.
func WithLogger(l logger.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}
