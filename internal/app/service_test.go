package service_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	service "github.com/micahco/sym/internal/app"
	"github.com/micahco/sym/internal/adapters/output"
	"github.com/micahco/sym/internal/domain/listing"
	"github.com/micahco/sym/internal/domain/listing/listingtest"
	"github.com/micahco/sym/internal/domain/match"
	"github.com/micahco/sym/internal/domain/model"
	"github.com/micahco/sym/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.InitWithWriter(io.Discard); err != nil {
		panic(err)
	}
}

const (
	urlA = "https://rateyourmusic.com/release/album/x/a/"
	urlB = "https://rateyourmusic.com/release/album/x/b/"
	urlC = "https://rateyourmusic.com/release/album/x/c/"
)

func listings() map[string]listingtest.Listing {
	return map[string]listingtest.Listing{
		urlA: {
			Release: model.Release{Title: "A", Artist: "X"},
			Pages: [][]model.RawEntry{
				listingtest.Rows("user1", "5.00 stars"),
				listingtest.Rows("user2", "3.00 stars"),
			},
		},
		urlB: {
			Release: model.Release{Title: "B", Artist: "X"},
			Pages:   [][]model.RawEntry{listingtest.Rows("user1", "4.00 stars")},
		},
		urlC: {
			Release: model.Release{Title: "C", Artist: "Y"},
			Pages:   [][]model.RawEntry{listingtest.Rows("user2", "2.00 stars", "user3", "1.00 stars")},
		},
	}
}

func factory(d listing.PageDriver) service.DriverFactory {
	return func(context.Context) (listing.PageDriver, error) { return d, nil }
}

func quietScraper() service.Option {
	return service.WithScraper(listing.NewScraper(listing.WithLogger(logger.Nop())))
}

// cancelOnNavigate cancels the run when the n-th listing is opened.
type cancelOnNavigate struct {
	*listingtest.Driver
	n      int
	seen   int
	cancel context.CancelFunc
}

func (c *cancelOnNavigate) Navigate(ctx context.Context, url string) error {
	c.seen++
	if c.seen == c.n {
		c.cancel()
	}
	return c.Driver.Navigate(ctx, url)
}

// warnings records the messages and urls of warnings.
type warnings struct {
	mu   sync.Mutex
	urls []string
}

func (w *warnings) Info(context.Context, string, ...logger.Field)  {}
func (w *warnings) Error(context.Context, string, ...logger.Field) {}
func (w *warnings) Debug(context.Context, string, ...logger.Field) {}
func (w *warnings) Named(string) logger.Logger                     { return w }

func (w *warnings) Warn(_ context.Context, msg string, fields ...logger.Field) {
	if msg != "skipped listing" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, f := range fields {
		if f.Key == "url" {
			w.urls = append(w.urls, f.Value.(string))
		}
	}
}

func (w *warnings) skipped() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.urls...)
}

func TestService_Run(t *testing.T) {
	Convey("Given a service over a scripted driver", t, func() {
		ctx := context.Background()
		d := listingtest.New(listings())
		out := filepath.Join(t.TempDir(), "matches.json")
		svc := service.New(
			service.WithLogger(logger.Nop()),
			service.WithDriverFactory(factory(d)),
			service.WithOutputPath(out),
			quietScraper(),
		)

		Convey("When releases A then B are scraped", func() {
			report, err := svc.Run(ctx, []string{urlA, urlB})

			Convey("Then only user1 matches with B before A", func() {
				So(err, ShouldBeNil)
				So(report.Matches, ShouldHaveLength, 1)
				So(report.Matches[0].ContributorID, ShouldEqual, "user1")
				So(report.Matches[0].Records[0].Release.Title, ShouldEqual, "B")
				So(report.Matches[0].Records[1].Release.Title, ShouldEqual, "A")
			})

			Convey("Then the report counts what happened", func() {
				So(report.RunID, ShouldNotBeEmpty)
				So(report.Listings, ShouldEqual, 2)
				So(report.Scraped, ShouldEqual, 2)
				So(report.Pages, ShouldEqual, 3)
				So(report.Skipped, ShouldBeEmpty)
				So(report.Contributors, ShouldEqual, 2)
				So(report.Contributions, ShouldEqual, 3)
				So(report.Cancelled, ShouldBeFalse)
			})

			Convey("Then the match set is written and the driver closed", func() {
				f, err := os.Open(out)
				So(err, ShouldBeNil)
				defer f.Close()
				pairs, err := output.Decode(f)
				So(err, ShouldBeNil)
				So(pairs, ShouldResemble, output.FromSet(report.Matches))
				So(d.Closed(), ShouldEqual, 1)
			})
		})

		Convey("When the same listing appears twice", func() {
			report, err := svc.Run(ctx, []string{urlA, urlA})

			Convey("Then dedup by title keeps one record per contributor", func() {
				So(err, ShouldBeNil)
				So(report.Scraped, ShouldEqual, 2)
				So(report.Replaced, ShouldEqual, 2)
				So(report.Matches, ShouldBeEmpty)
			})
		})

		Convey("When one listing cannot be opened", func() {
			missing := "https://rateyourmusic.com/release/album/x/missing/"
			report, err := svc.Run(ctx, []string{urlA, missing, urlB})

			Convey("Then it is skipped and the batch still finishes", func() {
				So(err, ShouldBeNil)
				So(report.Scraped, ShouldEqual, 2)
				So(report.Skipped, ShouldHaveLength, 1)
				So(report.Skipped[0].URL, ShouldEqual, missing)
				So(report.Skipped[0].Reason, ShouldEqual, listing.ReasonNavigation)
				So(report.Matches, ShouldHaveLength, 1)
				So(d.Closed(), ShouldEqual, 1)
			})
		})

		Convey("When the run finishes", func() {
			_, err := svc.Run(ctx, []string{urlA, urlB, urlC})
			So(err, ShouldBeNil)

			Convey("Then stats describe the last run", func() {
				stats := svc.GetStats()
				So(stats["running"], ShouldEqual, false)
				So(stats["processed"], ShouldEqual, 3)
				So(stats["threshold"], ShouldEqual, "> 1")
				last, ok := stats["lastRun"].(map[string]interface{})
				So(ok, ShouldBeTrue)
				So(last["matches"], ShouldEqual, 2)

				report, ok := svc.LastReport()
				So(ok, ShouldBeTrue)
				So(report.Contributors, ShouldEqual, 3)
			})
		})
	})

	Convey("Given a service with the >= operator", t, func() {
		svc := service.New(
			service.WithLogger(logger.Nop()),
			service.WithDriverFactory(factory(listingtest.New(listings()))),
			service.WithMatchThreshold(1, match.GreaterOrEqual),
			quietScraper(),
		)

		Convey("When A then B are scraped", func() {
			report, err := svc.Run(context.Background(), []string{urlA, urlB})

			Convey("Then both contributors match and no file is written", func() {
				So(err, ShouldBeNil)
				So(report.Matches, ShouldHaveLength, 2)
				So(report.OutputPath, ShouldBeEmpty)
			})
		})
	})
}

func TestService_RunCancelled(t *testing.T) {
	Convey("Given a run cancelled while opening the second listing", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		d := &cancelOnNavigate{Driver: listingtest.New(listings()), n: 2, cancel: cancel}
		out := filepath.Join(t.TempDir(), "matches.json")
		svc := service.New(
			service.WithLogger(logger.Nop()),
			service.WithDriverFactory(factory(d)),
			service.WithMatchThreshold(0, match.GreaterThan),
			service.WithOutputPath(out),
			quietScraper(),
		)

		Convey("When the batch runs", func() {
			report, err := svc.Run(ctx, []string{urlA, urlB, urlC})

			Convey("Then the rest is skipped as cancelled and the first listing is kept", func() {
				So(err, ShouldBeNil)
				So(report.Cancelled, ShouldBeTrue)
				So(report.Scraped, ShouldEqual, 1)
				So(report.Skipped, ShouldHaveLength, 2)
				for _, sk := range report.Skipped {
					So(sk.Reason, ShouldEqual, listing.ReasonCancelled)
				}
				So(report.Contributors, ShouldEqual, 2)
				So(d.Navigations(), ShouldResemble, []string{urlA, urlB})
				So(d.Closed(), ShouldEqual, 1)
			})

			Convey("Then the partial match set is still written", func() {
				b, err := os.ReadFile(out)
				So(err, ShouldBeNil)
				So(string(b), ShouldContainSubstring, `"user1"`)
			})
		})
	})
}

func TestService_RunErrors(t *testing.T) {
	Convey("Given a service without a driver factory", t, func() {
		svc := service.New(service.WithLogger(logger.Nop()))

		Convey("Then Run refuses to start", func() {
			_, err := svc.Run(context.Background(), []string{urlA})
			So(errors.Is(err, service.ErrNoDriver), ShouldBeTrue)
		})
	})

	Convey("Given a driver that cannot start", t, func() {
		boom := errors.New("chrome not found")
		svc := service.New(
			service.WithLogger(logger.Nop()),
			service.WithDriverFactory(func(context.Context) (listing.PageDriver, error) { return nil, boom }),
		)

		Convey("Then Run fails with ErrDriverStart", func() {
			_, err := svc.Run(context.Background(), []string{urlA})
			So(errors.Is(err, service.ErrDriverStart), ShouldBeTrue)
			So(errors.Is(err, boom), ShouldBeTrue)
			So(svc.GetStats()["running"], ShouldEqual, false)
		})
	})

	Convey("Given an invalid threshold operator", t, func() {
		d := listingtest.New(listings())
		warned := &warnings{}
		missing := "https://rateyourmusic.com/release/album/x/missing/"
		svc := service.New(
			service.WithLogger(warned),
			service.WithDriverFactory(factory(d)),
			service.WithMatchThreshold(1, match.Operator("<")),
			quietScraper(),
		)

		Convey("Then Run fails after closing the driver", func() {
			_, err := svc.Run(context.Background(), []string{urlA, missing})
			So(errors.Is(err, match.ErrInvalidOperator), ShouldBeTrue)
			So(d.Closed(), ShouldEqual, 1)
			So(warned.skipped(), ShouldResemble, []string{missing})
		})
	})

	Convey("Given an output path that cannot be written", t, func() {
		warned := &warnings{}
		missing := "https://rateyourmusic.com/release/album/x/missing/"
		svc := service.New(
			service.WithLogger(warned),
			service.WithDriverFactory(factory(listingtest.New(listings()))),
			service.WithOutputPath(filepath.Join(t.TempDir(), "missing", "matches.json")),
			quietScraper(),
		)

		Convey("Then Run fails with ErrOutput and still reports the skipped listing", func() {
			_, err := svc.Run(context.Background(), []string{urlA, missing, urlB})
			So(errors.Is(err, service.ErrOutput), ShouldBeTrue)
			So(errors.Is(err, output.ErrWrite), ShouldBeTrue)
			So(warned.skipped(), ShouldResemble, []string{missing})
		})
	})
}
