package config_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/micahco/sym/internal/config"
	"github.com/micahco/sym/internal/domain/listing"
	"github.com/micahco/sym/internal/domain/match"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.URLsFile, convey.ShouldEqual, "urls.txt")
			convey.So(cfg.OutputFile, convey.ShouldEqual, "matches.json")
			convey.So(cfg.PageLimit, convey.ShouldEqual, 10)
			convey.So(cfg.MatchThreshold, convey.ShouldEqual, 1)
			convey.So(cfg.ThresholdOperator, convey.ShouldEqual, ">")
			convey.So(cfg.PageChangeTimeout(), convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.NavigationTimeout(), convey.ShouldEqual, 30*time.Second)
			convey.So(cfg.ScoreParsePolicy, convey.ShouldEqual, "drop")
			convey.So(cfg.Driver, convey.ShouldEqual, config.DriverChrome)
			convey.So(cfg.Headless, convey.ShouldBeTrue)
			convey.So(cfg.BlockAds, convey.ShouldBeTrue)
			convey.So(cfg.MetricsAddr, convey.ShouldBeEmpty)
			convey.So(cfg.Serve, convey.ShouldBeFalse)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the typed accessors parse", func() {
			op, err := cfg.Operator()
			convey.So(err, convey.ShouldBeNil)
			convey.So(op, convey.ShouldEqual, match.GreaterThan)

			p, err := cfg.Policy()
			convey.So(err, convey.ShouldBeNil)
			convey.So(p, convey.ShouldEqual, listing.PolicyDrop)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with one bad setting each", t, func() {
		cases := map[string]func(c *config.Config){
			"urls_file":              func(c *config.Config) { c.URLsFile = " " },
			"output_file":            func(c *config.Config) { c.OutputFile = "" },
			"page_limit":             func(c *config.Config) { c.PageLimit = 0 },
			"match_threshold":        func(c *config.Config) { c.MatchThreshold = -1 },
			"page_change_timeout_ms": func(c *config.Config) { c.PageChangeTimeoutMS = 0 },
			"navigation_timeout_ms":  func(c *config.Config) { c.NavigationTimeoutMS = -5 },
			"threshold_operator":     func(c *config.Config) { c.ThresholdOperator = "<" },
			"score_parse_policy":     func(c *config.Config) { c.ScoreParsePolicy = "ignore" },
			"driver":                 func(c *config.Config) { c.Driver = "firefox" },
			"log_level":              func(c *config.Config) { c.LogLevel = "loud" },
			"serve":                  func(c *config.Config) { c.Serve = true },
		}

		for key, mutate := range cases {
			cfg := config.New(context.Background())
			mutate(cfg)
			err := cfg.Validate()

			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, key)
		}
	})

	convey.Convey("Given the >= operator and the http driver", t, func() {
		cfg := config.New(context.Background())
		cfg.ThresholdOperator = ">="
		cfg.Driver = "HTTP"

		convey.Convey("Then the config is valid", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
