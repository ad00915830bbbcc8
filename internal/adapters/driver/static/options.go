package static

import (
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/micahco/sym/pkg/logger"
)

// Option applies a configuration option to the Driver.
type Option func(*Driver)

// WithUserAgent overrides the user agent header.
func WithUserAgent(ua string) Option {
	return func(d *Driver) {
		if ua != "" {
			d.userAgent = ua
		}
	}
}

// WithRequestTimeout bounds every HTTP request.
func WithRequestTimeout(t time.Duration) Option {
	return func(d *Driver) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// WithClient replaces the resty client, e.g. to point at a test server.
func WithClient(c *resty.Client) Option {
	return func(d *Driver) {
		if c != nil {
			d.http = c
		}
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
