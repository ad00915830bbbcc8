// Package listingtest provides an in-memory listing.PageDriver for tests.
package listingtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/micahco/sym/internal/domain/listing"
	"github.com/micahco/sym/internal/domain/model"
)

// ErrUnknownURL is returned by Navigate for a URL with no Listing.
var ErrUnknownURL = errors.New("listingtest: unknown url")

// Listing scripts what the fake driver serves for one URL.
type Listing struct {
	Release model.Release
	Pages   [][]model.RawEntry

	// TimeoutAfterPage makes the wait for the page after this one time out.
	TimeoutAfterPage int
	// ExtractErrOnPage makes ExtractEntries fail with ExtractErr on this page.
	ExtractErrOnPage int

	NavigateErr error
	ReleaseErr  error
	ExtractErr  error
}

// Driver is a scripted PageDriver. It is safe for concurrent use.
type Driver struct {
	mu       sync.Mutex
	listings map[string]Listing
	current  *Listing
	page     int
	pending  bool

	navigations []string
	waits       []time.Duration
	closed      int
}

var _ listing.PageDriver = (*Driver)(nil)

// New creates a Driver serving listings keyed by URL.
func New(listings map[string]Listing) *Driver {
	return &Driver{listings: listings}
}

// Navigate implements listing.PageDriver.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.navigations = append(d.navigations, url)
	if err := ctx.Err(); err != nil {
		return err
	}
	l, ok := d.listings[url]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownURL, url)
	}
	if l.NavigateErr != nil {
		return l.NavigateErr
	}
	d.current = &l
	d.page = 1
	d.pending = false
	return nil
}

// ExtractEntries implements listing.PageDriver.
func (d *Driver) ExtractEntries(ctx context.Context) ([]model.RawEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(ctx); err != nil {
		return nil, err
	}
	if d.current.ExtractErr != nil && (d.current.ExtractErrOnPage == 0 || d.current.ExtractErrOnPage == d.page) {
		return nil, d.current.ExtractErr
	}
	if d.page > len(d.current.Pages) {
		return []model.RawEntry{}, nil
	}
	rows := d.current.Pages[d.page-1]
	out := make([]model.RawEntry, len(rows))
	copy(out, rows)
	return out, nil
}

// ExtractRelease implements listing.PageDriver.
func (d *Driver) ExtractRelease(ctx context.Context) (model.Release, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(ctx); err != nil {
		return model.Release{}, err
	}
	if d.current.ReleaseErr != nil {
		return model.Release{}, d.current.ReleaseErr
	}
	return d.current.Release, nil
}

// HasNextPage implements listing.PageDriver.
func (d *Driver) HasNextPage(ctx context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(ctx); err != nil {
		return false, err
	}
	return d.page < len(d.current.Pages), nil
}

// GoToNextPage implements listing.PageDriver.
func (d *Driver) GoToNextPage(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(ctx); err != nil {
		return err
	}
	d.pending = true
	return nil
}

// WaitForPageChange implements listing.PageDriver.
func (d *Driver) WaitForPageChange(ctx context.Context, timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.waits = append(d.waits, timeout)
	if err := d.ready(ctx); err != nil {
		return err
	}
	if !d.pending || d.current.TimeoutAfterPage == d.page {
		d.pending = false
		return fmt.Errorf("after page %d: %w", d.page, listing.ErrPageChangeTimeout)
	}
	d.pending = false
	d.page++
	return nil
}

// Close implements listing.PageDriver.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed++
	return nil
}

// Navigations returns every URL passed to Navigate, in call order.
func (d *Driver) Navigations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]string(nil), d.navigations...)
}

// Waits returns the timeouts passed to WaitForPageChange.
func (d *Driver) Waits() []time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]time.Duration(nil), d.waits...)
}

// Closed returns how many times Close was called.
func (d *Driver) Closed() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.closed
}

func (d *Driver) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.current == nil {
		return errors.New("listingtest: no page loaded")
	}
	return nil
}

// Rows builds raw entries from alternating contributor id and label pairs.
func Rows(pairs ...string) []model.RawEntry {
	rows := make([]model.RawEntry, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		rows = append(rows, model.RawEntry{ContributorID: pairs[i], RatingLabel: pairs[i+1]})
	}
	return rows
}
