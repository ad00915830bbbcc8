// Package static implements listing.PageDriver over plain HTTP. It follows
// the next-page links of the ratings catalog and never runs page scripts.
package static

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/micahco/sym/internal/adapters/driver/rym"
	"github.com/micahco/sym/internal/domain/listing"
	"github.com/micahco/sym/internal/domain/model"
	"github.com/micahco/sym/pkg/logger"
)

// Default driver configuration constants.
const (
	DefaultUserAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultRequestTimeout = 30 * time.Second
	maxRedirects          = 10
)

type fetched struct {
	url *url.URL
	doc *goquery.Document
	err error
}

// Driver is a listing.PageDriver that fetches every page with resty.
type Driver struct {
	http      *resty.Client
	userAgent string
	timeout   time.Duration
	logger    logger.Logger

	mu      sync.Mutex
	current *url.URL
	doc     *goquery.Document
	page    int
	prev    string
	prevURL string
	pending chan fetched
	abort   context.CancelFunc
	closed  bool
}

var _ listing.PageDriver = (*Driver)(nil)

// New creates a Driver with configuration options.
func New(opts ...Option) *Driver {
	d := &Driver{
		userAgent: DefaultUserAgent,
		timeout:   DefaultRequestTimeout,
		logger:    logger.Get().Named("static"),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.http == nil {
		d.http = resty.New()
	}
	d.http.SetHeader("User-Agent", d.userAgent)
	d.http.SetTimeout(d.timeout)
	d.http.SetRedirectPolicy(resty.FlexibleRedirectPolicy(maxRedirects))
	return d
}

// fetch GETs raw and parses the page.
func (d *Driver) fetch(ctx context.Context, raw string) (*url.URL, *goquery.Document, error) {
	res, err := d.http.R().SetContext(ctx).Get(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("get %s: %w", raw, err)
	}
	if res.IsError() {
		return nil, nil, fmt.Errorf("%w: %s returned %s", ErrStatus, raw, res.Status())
	}
	doc, err := rym.Parse(bytes.NewReader(res.Body()))
	if err != nil {
		return nil, nil, err
	}

	final, err := url.Parse(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("parse url %s: %w", raw, err)
	}
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		final = res.RawResponse.Request.URL
	}
	return final, doc, nil
}

// Navigate implements listing.PageDriver.
func (d *Driver) Navigate(ctx context.Context, raw string) error {
	if err := d.usable(); err != nil {
		return err
	}
	d.dropPending()

	u, doc, err := d.fetch(ctx, raw)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.current, d.doc = u, doc
	d.page = rym.CurrentPageNumber(doc)
	d.mu.Unlock()
	return nil
}

func (d *Driver) loaded(ctx context.Context) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	if d.doc == nil {
		return nil, ErrNoPage
	}
	return d.doc, nil
}

// ExtractEntries implements listing.PageDriver.
func (d *Driver) ExtractEntries(ctx context.Context) ([]model.RawEntry, error) {
	doc, err := d.loaded(ctx)
	if err != nil {
		return nil, err
	}
	return rym.ParseEntries(doc), nil
}

// ExtractRelease implements listing.PageDriver.
func (d *Driver) ExtractRelease(ctx context.Context) (model.Release, error) {
	doc, err := d.loaded(ctx)
	if err != nil {
		return model.Release{}, err
	}
	return rym.ParseRelease(doc), nil
}

// HasNextPage implements listing.PageDriver.
func (d *Driver) HasNextPage(ctx context.Context) (bool, error) {
	doc, err := d.loaded(ctx)
	if err != nil {
		return false, err
	}
	return rym.HasNextPage(doc), nil
}

// GoToNextPage implements listing.PageDriver. The next page is fetched in
// the background; WaitForPageChange collects it.
func (d *Driver) GoToNextPage(ctx context.Context) error {
	doc, err := d.loaded(ctx)
	if err != nil {
		return err
	}
	href, ok := rym.NextPageHref(doc)
	if !ok {
		return ErrNoNextLink
	}
	ref, err := url.Parse(href)
	if err != nil {
		return fmt.Errorf("parse next link %q: %w", href, err)
	}

	d.dropPending()

	d.mu.Lock()
	next := d.current.ResolveReference(ref)
	d.prev = rym.CurrentPage(doc)
	d.prevURL = d.current.String()
	fetchCtx, abort := context.WithCancel(ctx)
	ch := make(chan fetched, 1)
	d.pending, d.abort = ch, abort
	d.mu.Unlock()

	go func() {
		u, doc, err := d.fetch(fetchCtx, next.String())
		ch <- fetched{url: u, doc: doc, err: err}
	}()
	d.logger.Debug(ctx, "next page requested", logger.String("url", next.String()))
	return nil
}

// WaitForPageChange implements listing.PageDriver.
func (d *Driver) WaitForPageChange(ctx context.Context, timeout time.Duration) error {
	d.mu.Lock()
	ch, prev, prevURL := d.pending, d.prev, d.prevURL
	d.mu.Unlock()
	if ch == nil {
		return fmt.Errorf("%w: no page change requested", listing.ErrPageChangeTimeout)
	}
	defer d.dropPending()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var r fetched
	select {
	case r = <-ch:
	case <-timer.C:
		return fmt.Errorf("%w: next page not loaded after %s", listing.ErrPageChangeTimeout, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
	if r.err != nil {
		return fmt.Errorf("load next page: %w", r.err)
	}
	// Indicators are compared only when both pages carry one; otherwise
	// landing on a different URL is the page change.
	if cur := rym.CurrentPage(r.doc); cur != "" && prev != "" {
		if cur == prev {
			return fmt.Errorf("%w: indicator still %q", listing.ErrPageChangeTimeout, cur)
		}
	} else if r.url.String() == prevURL {
		return fmt.Errorf("%w: next link led back to %s", listing.ErrPageChangeTimeout, prevURL)
	}

	d.mu.Lock()
	d.current, d.doc = r.url, r.doc
	d.page++
	d.mu.Unlock()
	return nil
}

// Page returns the number of the loaded catalog page.
func (d *Driver) Page() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.page
}

// dropPending aborts any background page fetch.
func (d *Driver) dropPending() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.abort != nil {
		d.abort()
	}
	d.pending, d.abort = nil, nil
}

func (d *Driver) usable() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	return nil
}

// Close aborts pending work and drops idle connections.
func (d *Driver) Close() error {
	d.dropPending()
	d.mu.Lock()
	d.closed = true
	d.doc = nil
	d.mu.Unlock()
	d.http.GetClient().CloseIdleConnections()
	return nil
}
