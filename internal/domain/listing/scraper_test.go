package listing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/micahco/sym/internal/domain/listing"
	"github.com/micahco/sym/internal/domain/listing/listingtest"
	"github.com/micahco/sym/internal/domain/model"
	"github.com/micahco/sym/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func skipOf(err error) *listing.SkipError {
	var skip *listing.SkipError
	if errors.As(err, &skip) {
		return skip
	}
	return nil
}

func TestScrape(t *testing.T) {
	Convey("Given a scraper and a driver serving several listings", t, func() {
		ctx := context.Background()
		scraper := listing.NewScraper(listing.WithLogger(logger.Nop()))
		boom := errors.New("net::ERR_NAME_NOT_RESOLVED")

		d := listingtest.New(map[string]listingtest.Listing{
			"ok": {
				Release: model.Release{Title: "  Loveless ", Artist: "My Bloody Valentine", ID: "2014"},
				Pages:   [][]model.RawEntry{listingtest.Rows("alice", "5.00 stars", "bob", "3.50 stars")},
			},
			"unreachable": {NavigateErr: boom},
			"untitled": {
				Release: model.Release{Artist: "Someone"},
				Pages:   [][]model.RawEntry{listingtest.Rows("alice", "5.00 stars")},
			},
			"anonymous": {
				Release: model.Release{Title: "Untitled"},
				Pages:   [][]model.RawEntry{listingtest.Rows("alice", "5.00 stars")},
			},
			"garbled": {
				Release: model.Release{Title: "T", Artist: "A"},
				Pages:   [][]model.RawEntry{listingtest.Rows("alice", "five")},
			},
		})

		Convey("When a healthy listing is scraped", func() {
			res, err := scraper.Scrape(ctx, d, "ok")

			Convey("Then the catalog carries the trimmed release identity and entries", func() {
				So(err, ShouldBeNil)
				So(res.Catalog.Release, ShouldResemble, model.Release{
					URL: "ok", Title: "Loveless", Artist: "My Bloody Valentine", ID: "2014",
				})
				So(res.Catalog.Entries, ShouldResemble, []model.Entry{
					{ContributorID: "alice", Score: 5},
					{ContributorID: "bob", Score: 3.5},
				})
				So(res.Pages, ShouldEqual, 1)
				So(res.Stop, ShouldEqual, listing.StopNoNextPage)
			})
		})

		Convey("When navigation fails", func() {
			_, err := scraper.Scrape(ctx, d, "unreachable")

			Convey("Then a navigation skip is returned", func() {
				skip := skipOf(err)
				So(skip, ShouldNotBeNil)
				So(skip.URL, ShouldEqual, "unreachable")
				So(skip.Reason, ShouldEqual, listing.ReasonNavigation)
				So(errors.Is(err, listing.ErrNavigation), ShouldBeTrue)
				So(errors.Is(err, boom), ShouldBeTrue)
			})
		})

		Convey("When the release has no title or no artist", func() {
			_, noTitle := scraper.Scrape(ctx, d, "untitled")
			_, noArtist := scraper.Scrape(ctx, d, "anonymous")

			Convey("Then both are extraction skips", func() {
				So(skipOf(noTitle).Reason, ShouldEqual, listing.ReasonExtraction)
				So(skipOf(noArtist).Reason, ShouldEqual, listing.ReasonExtraction)
				So(errors.Is(noTitle, listing.ErrExtraction), ShouldBeTrue)
			})
		})

		Convey("When a rating label is malformed under the fail policy", func() {
			strict := listing.NewScraper(
				listing.WithLogger(logger.Nop()),
				listing.WithScoreParsePolicy(listing.PolicyFail),
			)
			_, err := strict.Scrape(ctx, d, "garbled")

			Convey("Then the skip reason is score_parse", func() {
				So(skipOf(err).Reason, ShouldEqual, listing.ReasonScoreParse)
				So(errors.Is(err, listing.ErrScoreParse), ShouldBeTrue)
			})
		})

		Convey("When the same label is met under the drop policy", func() {
			res, err := scraper.Scrape(ctx, d, "garbled")

			Convey("Then the listing succeeds without the row", func() {
				So(err, ShouldBeNil)
				So(res.Catalog.Entries, ShouldBeEmpty)
				So(res.Dropped, ShouldEqual, 1)
			})
		})

		Convey("When the run is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := scraper.Scrape(cctx, d, "ok")

			Convey("Then the listing is skipped as cancelled without navigating", func() {
				So(skipOf(err).Reason, ShouldEqual, listing.ReasonCancelled)
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(d.Navigations(), ShouldBeEmpty)
			})
		})
	})

	Convey("Given scraper options", t, func() {
		Convey("Then invalid values keep the defaults", func() {
			s := listing.NewScraper(listing.WithPageLimit(0), listing.WithLogger(nil))
			So(s.PageLimit(), ShouldEqual, listing.DefaultPageLimit)
			So(listing.NewScraper(listing.WithPageLimit(3)).PageLimit(), ShouldEqual, 3)
		})
	})
}
