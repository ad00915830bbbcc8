// Package chrome implements listing.PageDriver on a headless Chrome tab
// driven through chromedp.
package chrome

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/micahco/sym/internal/adapters/driver/rym"
	"github.com/micahco/sym/internal/domain/listing"
	"github.com/micahco/sym/internal/domain/model"
	"github.com/micahco/sym/pkg/logger"
)

// DefaultUserAgent is sent unless WithUserAgent overrides it.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultBlockedURLPatterns covers the ad and tracking hosts seen on
// release pages.
var DefaultBlockedURLPatterns = []string{
	"*googlesyndication.com*",
	"*doubleclick.net*",
	"*google-analytics.com*",
	"*googletagmanager.com*",
	"*adservice.google.com*",
	"*amazon-adsystem.com*",
	"*scorecardresearch.com*",
	"*quantserve.com*",
	"*criteo.com*",
	"*taboola.com*",
	"*outbrain.com*",
	"*adnxs.com*",
	"*pubmatic.com*",
	"*rubiconproject.com*",
}

// Driver is a listing.PageDriver backed by one Chrome tab. It is meant for
// sequential use by a single traversal.
type Driver struct {
	headless  bool
	blockAds  bool
	blocked   []string
	userAgent string
	execPath  string
	extra     []chromedp.ExecAllocatorOption
	logger    logger.Logger

	allocCancel context.CancelFunc
	tab         context.Context
	tabCancel   context.CancelFunc

	mu     sync.Mutex
	id     string // shortcut id of the loaded release
	page   int
	prev   string // current-page indicator before GoToNextPage
	closed bool
}

var _ listing.PageDriver = (*Driver)(nil)

// New starts Chrome and opens one tab. Request blocking is installed before
// New returns, so it is active for the first navigation.
func New(ctx context.Context, opts ...Option) (*Driver, error) {
	d := &Driver{
		headless:  true,
		blockAds:  true,
		blocked:   DefaultBlockedURLPatterns,
		userAgent: DefaultUserAgent,
		logger:    logger.Get().Named("chrome"),
	}
	for _, opt := range opts {
		opt(d)
	}

	// The browser lives until Close, not until the caller's context ends.
	base := context.WithoutCancel(ctx)
	allocCtx, allocCancel := chromedp.NewExecAllocator(base, d.allocatorOptions()...)
	tab, tabCancel := chromedp.NewContext(allocCtx)
	d.allocCancel, d.tab, d.tabCancel = allocCancel, tab, tabCancel

	// The first Run starts the browser and must use the tab context itself.
	if err := chromedp.Run(tab, d.setupActions()...); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: %w", ErrStart, err)
	}

	d.logger.Info(ctx, "chrome started",
		logger.Bool("headless", d.headless),
		logger.Bool("block_ads", d.blockAds),
		logger.Int("blocked_patterns", len(d.blocked)),
	)
	return d, nil
}

func (d *Driver) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", d.headless),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.UserAgent(d.userAgent),
	)
	if d.execPath != "" {
		opts = append(opts, chromedp.ExecPath(d.execPath))
	}
	return append(opts, d.extra...)
}

func (d *Driver) setupActions() []chromedp.Action {
	if !d.blockAds || len(d.blocked) == 0 {
		return nil
	}
	return []chromedp.Action{
		network.Enable(),
		network.SetBlockedURLS(d.blocked),
	}
}

// run executes actions in the tab, bounded by ctx.
func (d *Driver) run(ctx context.Context, actions ...chromedp.Action) error {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return ErrClosed
	}

	runCtx, cancel := context.WithCancel(d.tab)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// snapshot parses the tab's current DOM.
func (d *Driver) snapshot(ctx context.Context) (*goquery.Document, error) {
	var page string
	if err := d.run(ctx, chromedp.OuterHTML("html", &page, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("read dom: %w", err)
	}
	return rym.ParseString(page)
}

// Navigate implements listing.PageDriver.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := d.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}

	doc, err := d.snapshot(ctx)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.id = rym.ShortcutID(doc)
	d.page = rym.CurrentPageNumber(doc)
	d.prev = ""
	d.mu.Unlock()
	return nil
}

// ExtractEntries implements listing.PageDriver.
func (d *Driver) ExtractEntries(ctx context.Context) ([]model.RawEntry, error) {
	doc, err := d.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return rym.ParseEntries(doc), nil
}

// ExtractRelease implements listing.PageDriver.
func (d *Driver) ExtractRelease(ctx context.Context) (model.Release, error) {
	doc, err := d.snapshot(ctx)
	if err != nil {
		return model.Release{}, err
	}
	return rym.ParseRelease(doc), nil
}

// HasNextPage implements listing.PageDriver.
func (d *Driver) HasNextPage(ctx context.Context) (bool, error) {
	doc, err := d.snapshot(ctx)
	if err != nil {
		return false, err
	}
	return rym.HasNextPage(doc), nil
}

// GoToNextPage implements listing.PageDriver. With a known shortcut id the
// page's own catalog navigation is called, otherwise the next link is
// clicked.
func (d *Driver) GoToNextPage(ctx context.Context) error {
	doc, err := d.snapshot(ctx)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.prev = rym.CurrentPage(doc)
	if d.prev == "" {
		d.prev = "1"
	}
	id, next := d.id, d.page+1
	d.mu.Unlock()

	var action chromedp.Action = chromedp.Click(rym.SelectorNext, chromedp.ByQuery)
	if id != "" {
		action = chromedp.Evaluate(NavCatalogScript(id, next), nil)
	}
	if err := d.run(ctx, action); err != nil {
		return fmt.Errorf("go to page %d: %w", next, err)
	}
	d.logger.Debug(ctx, "next page requested", logger.Int("page", next), logger.String("id", id))
	return nil
}

// WaitForPageChange implements listing.PageDriver by polling on DOM
// mutations until the current-page indicator differs from the one seen
// before GoToNextPage.
func (d *Driver) WaitForPageChange(ctx context.Context, timeout time.Duration) error {
	d.mu.Lock()
	prev := d.prev
	d.mu.Unlock()

	var changed bool
	err := d.run(ctx, chromedp.Poll(
		PageChangedExpr(rym.SelectorCurrentPage, prev),
		&changed,
		chromedp.WithPollingMutation(),
		chromedp.WithPollingTimeout(timeout),
	))
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, chromedp.ErrPollingTimeout), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: indicator still %q after %s", listing.ErrPageChangeTimeout, prev, timeout)
	default:
		return fmt.Errorf("wait for page change: %w", err)
	}

	d.mu.Lock()
	d.page++
	d.mu.Unlock()
	return nil
}

// Close shuts the tab and the browser.
func (d *Driver) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	err := chromedp.Cancel(d.tab)
	d.tabCancel()
	d.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close chrome: %w", err)
	}
	return nil
}

// NavCatalogScript returns the call that asks a release page to load
// ratings page n of release id.
func NavCatalogScript(id string, n int) string {
	return fmt.Sprintf("RYMmediaPage.navCatalog('l', %s, true, 'ratings', %s)", jsString(id), jsString(fmt.Sprintf("/%d", n)))
}

// PageChangedExpr returns an expression that is true once the element at
// selector exists and its text is no longer prev.
func PageChangedExpr(selector, prev string) string {
	return fmt.Sprintf("(el => el !== null && el.textContent.trim() !== %s)(document.querySelector(%s))",
		jsString(prev), jsString(selector))
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(b.String(), "\n")
}
