// Package rym extracts listing data from rateyourmusic.com release pages.
//
// Every function here is pure: it reads a parsed document and never talks to
// the network, so the page drivers share one tested extraction path.
package rym

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/micahco/sym/internal/domain/model"
)

// Page selectors.
const (
	SelectorShortcut    = "input.album_shortcut"
	SelectorTitle       = "div.album_title"
	SelectorArtist      = "a.artist"
	SelectorCatalogLine = ".catalog_line"
	SelectorUser        = "div.catalog_header > span.catalog_user > a"
	SelectorRating      = "div.catalog_header > span.catalog_rating > img"
	SelectorNext        = "a.navlinknext"
	SelectorCurrentPage = "#catalog_list > span > span.navlinkcurrent"
)

// Parse reads an HTML page.
func Parse(r io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return doc, nil
}

// ParseString reads an HTML page held in memory.
func ParseString(s string) (*goquery.Document, error) {
	return Parse(strings.NewReader(s))
}

// ParseRelease returns the release identity shown on the page. Missing
// parts are left empty; the caller decides what is required.
func ParseRelease(doc *goquery.Document) model.Release {
	return model.Release{
		Title:  ownText(doc.Find(SelectorTitle).First()),
		Artist: squash(doc.Find(SelectorArtist).First().Text()),
		ID:     ShortcutID(doc),
	}
}

// ShortcutID returns the digits of the album shortcut, e.g. "2014" for
// "[Album2014]".
func ShortcutID(doc *goquery.Document) string {
	v, _ := doc.Find(SelectorShortcut).First().Attr("value")
	return digits(v)
}

// ParseEntries returns the catalog rows of the page in on-page order.
// Rows without a username are skipped. A row without a rating image keeps
// an empty label.
func ParseEntries(doc *goquery.Document) []model.RawEntry {
	entries := []model.RawEntry{}
	doc.Find(SelectorCatalogLine).Each(func(_ int, line *goquery.Selection) {
		user := strings.TrimSpace(line.Find(SelectorUser).First().Text())
		if user == "" {
			return
		}
		label, _ := line.Find(SelectorRating).First().Attr("title")
		entries = append(entries, model.RawEntry{
			ContributorID: user,
			RatingLabel:   strings.TrimSpace(label),
		})
	})
	return entries
}

// HasNextPage reports whether the catalog links to a next page.
func HasNextPage(doc *goquery.Document) bool {
	return doc.Find(SelectorNext).Length() > 0
}

// NextPageHref returns the href of the next-page link.
func NextPageHref(doc *goquery.Document) (string, bool) {
	href, ok := doc.Find(SelectorNext).First().Attr("href")
	href = strings.TrimSpace(href)
	return href, ok && href != ""
}

// CurrentPage returns the text of the current page indicator, "" when the
// catalog has a single page.
func CurrentPage(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find(SelectorCurrentPage).First().Text())
}

// CurrentPageNumber returns CurrentPage as a number, 1 when absent.
func CurrentPageNumber(doc *goquery.Document) int {
	n, err := strconv.Atoi(CurrentPage(doc))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// ownText returns the text directly inside sel, ignoring nested elements
// such as badges, falling back to the full text.
func ownText(sel *goquery.Selection) string {
	var b strings.Builder
	sel.Contents().Each(func(_ int, c *goquery.Selection) {
		if n := c.Get(0); n != nil && n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
	})
	if s := squash(b.String()); s != "" {
		return s
	}
	return squash(sel.Text())
}

func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
