package listing_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/micahco/sym/internal/domain/listing"
	"github.com/micahco/sym/internal/domain/listing/listingtest"
	"github.com/micahco/sym/internal/domain/model"
	"github.com/micahco/sym/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.InitWithWriter(io.Discard); err != nil {
		panic(err)
	}
}

const testURL = "https://rateyourmusic.com/release/album/x/a/"

// pages builds n pages of two rows each, named p<page>u<row>.
func pages(n int) [][]model.RawEntry {
	out := make([][]model.RawEntry, 0, n)
	for p := 1; p <= n; p++ {
		out = append(out, listingtest.Rows(
			fmt.Sprintf("p%du1", p), "4.00 stars",
			fmt.Sprintf("p%du2", p), "2.50 stars",
		))
	}
	return out
}

func contributors(entries []model.Entry) []string {
	out := []string{}
	for _, e := range entries {
		out = append(out, e.ContributorID)
	}
	return out
}

func loaded(l listingtest.Listing) *listingtest.Driver {
	d := listingtest.New(map[string]listingtest.Listing{testURL: l})
	if err := d.Navigate(context.Background(), testURL); err != nil {
		panic(err)
	}
	return d
}

// cancelOnWait cancels the run while waiting for the next page.
type cancelOnWait struct {
	*listingtest.Driver
	cancel context.CancelFunc
}

func (c cancelOnWait) WaitForPageChange(ctx context.Context, timeout time.Duration) error {
	c.cancel()
	return c.Driver.WaitForPageChange(ctx, timeout)
}

func TestTraverseOrderingAndTermination(t *testing.T) {
	Convey("Given a listing with three pages", t, func() {
		ctx := context.Background()
		d := loaded(listingtest.Listing{Pages: pages(3)})

		Convey("When traversed under the default page limit", func() {
			var trace []string
			res, err := listing.Traverse(ctx, d, listing.WithTransitionHook(func(s listing.State, page int) {
				trace = append(trace, fmt.Sprintf("%s(%d)", s, page))
			}))

			Convey("Then entries come in page order, then on-page order", func() {
				So(err, ShouldBeNil)
				So(contributors(res.Entries), ShouldResemble, []string{
					"p1u1", "p1u2", "p2u1", "p2u2", "p3u1", "p3u2",
				})
				So(res.Entries[0].Score, ShouldEqual, 4.0)
				So(res.Entries[1].Score, ShouldEqual, 2.5)
			})

			Convey("Then it stops because there is no next page", func() {
				So(res.Pages, ShouldEqual, 3)
				So(res.Stop, ShouldEqual, listing.StopNoNextPage)
			})

			Convey("Then the state machine walks every page once", func() {
				So(trace, ShouldResemble, []string{
					"loading(1)", "extracting(1)", "check_next(1)", "advancing(1)",
					"loading(2)", "extracting(2)", "check_next(2)", "advancing(2)",
					"loading(3)", "extracting(3)", "check_next(3)", "done(3)",
				})
			})
		})
	})

	Convey("Given a listing with more pages than the limit", t, func() {
		ctx := context.Background()
		d := loaded(listingtest.Listing{Pages: pages(12)})

		Convey("When traversed with the default limit of 10", func() {
			res, err := listing.Traverse(ctx, d, listing.WithPageChangeTimeout(3*time.Second))

			Convey("Then exactly 10 pages are extracted and the limiter stops it", func() {
				So(err, ShouldBeNil)
				So(res.Pages, ShouldEqual, 10)
				So(res.Entries, ShouldHaveLength, 20)
				So(res.Stop, ShouldEqual, listing.StopPageLimit)
			})

			Convey("Then every page change waited with the configured timeout", func() {
				waits := d.Waits()
				So(waits, ShouldHaveLength, 9)
				for _, w := range waits {
					So(w, ShouldEqual, 3*time.Second)
				}
			})
		})

		Convey("When the limit is 1", func() {
			res, err := listing.Traverse(ctx, d, listing.WithPageLimit(1))

			Convey("Then only the first page is read and no page change happens", func() {
				So(err, ShouldBeNil)
				So(res.Pages, ShouldEqual, 1)
				So(res.Stop, ShouldEqual, listing.StopPageLimit)
				So(d.Waits(), ShouldBeEmpty)
			})
		})
	})

	Convey("Given a listing exactly as long as the limit", t, func() {
		d := loaded(listingtest.Listing{Pages: pages(2)})

		Convey("When traversed with limit 2", func() {
			res, err := listing.Traverse(context.Background(), d, listing.WithPageLimit(2))

			Convey("Then the missing next page takes precedence over the limiter", func() {
				So(err, ShouldBeNil)
				So(res.Pages, ShouldEqual, 2)
				So(res.Stop, ShouldEqual, listing.StopNoNextPage)
			})
		})
	})
}

func TestTraversePageChangeTimeout(t *testing.T) {
	Convey("Given a listing whose third page never appears", t, func() {
		d := loaded(listingtest.Listing{Pages: pages(5), TimeoutAfterPage: 2})

		Convey("When traversed", func() {
			res, err := listing.Traverse(context.Background(), d)

			Convey("Then pages 1 and 2 are kept and the listing still succeeds", func() {
				So(err, ShouldBeNil)
				So(res.Pages, ShouldEqual, 2)
				So(contributors(res.Entries), ShouldResemble, []string{"p1u1", "p1u2", "p2u1", "p2u2"})
				So(res.Stop, ShouldEqual, listing.StopPageChangeTimeout)
			})
		})
	})
}

func TestTraverseScoreParsePolicy(t *testing.T) {
	Convey("Given a page with one malformed rating label", t, func() {
		l := listingtest.Listing{Pages: [][]model.RawEntry{
			listingtest.Rows("good", "3.00 stars", "bad", "n/a", "fine", "0.5 stars"),
		}}

		Convey("When the drop policy is in force", func() {
			res, err := listing.Traverse(context.Background(), loaded(l))

			Convey("Then the row is dropped and counted", func() {
				So(err, ShouldBeNil)
				So(contributors(res.Entries), ShouldResemble, []string{"good", "fine"})
				So(res.Dropped, ShouldEqual, 1)
			})
		})

		Convey("When the fail policy is in force", func() {
			res, err := listing.Traverse(context.Background(), loaded(l),
				listing.WithScoreParsePolicy(listing.PolicyFail))

			Convey("Then the traversal fails with an extraction error caused by the label", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, listing.ErrExtraction), ShouldBeTrue)
				So(errors.Is(err, listing.ErrScoreParse), ShouldBeTrue)
				So(res.Stop, ShouldEqual, listing.StopFailed)
			})
		})
	})

	Convey("Given policy names", t, func() {
		Convey("Then drop and fail parse and anything else is rejected", func() {
			p, err := listing.ParseScoreParsePolicy(" FAIL ")
			So(err, ShouldBeNil)
			So(p, ShouldEqual, listing.PolicyFail)

			_, err = listing.ParseScoreParsePolicy("ignore")
			So(errors.Is(err, listing.ErrInvalidPolicy), ShouldBeTrue)
		})
	})
}

func TestTraverseFailures(t *testing.T) {
	Convey("Given a driver that fails extracting page 2", t, func() {
		boom := errors.New("node detached")
		d := loaded(listingtest.Listing{Pages: pages(3), ExtractErr: boom, ExtractErrOnPage: 2})

		Convey("When traversed", func() {
			res, err := listing.Traverse(context.Background(), d)

			Convey("Then the traversal fails with ErrExtraction wrapping the driver error", func() {
				So(errors.Is(err, listing.ErrExtraction), ShouldBeTrue)
				So(errors.Is(err, boom), ShouldBeTrue)
				So(res.Stop, ShouldEqual, listing.StopFailed)
				So(res.Pages, ShouldEqual, 1)
			})
		})
	})

	Convey("Given a run cancelled while waiting for page 2", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		d := cancelOnWait{Driver: loaded(listingtest.Listing{Pages: pages(3)}), cancel: cancel}

		Convey("When traversed", func() {
			res, err := listing.Traverse(ctx, d)

			Convey("Then it fails with the context error, not a timeout", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(errors.Is(err, listing.ErrExtraction), ShouldBeFalse)
				So(res.Stop, ShouldEqual, listing.StopFailed)
			})
		})
	})
}
