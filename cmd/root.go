package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/micahco/sym/internal/adapters/driver/chrome"
	"github.com/micahco/sym/internal/adapters/driver/static"
	"github.com/micahco/sym/internal/adapters/http/api"
	"github.com/micahco/sym/internal/adapters/http/swagger"
	"github.com/micahco/sym/internal/adapters/source"
	service "github.com/micahco/sym/internal/app"
	"github.com/micahco/sym/internal/config"
	"github.com/micahco/sym/internal/domain/listing"
	"github.com/micahco/sym/pkg/logger"
	"github.com/micahco/sym/pkg/metrics"
)

// Process exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitConfig      = 2
	exitInterrupted = 130
)

var (
	// errInterrupted marks a run cut short by a signal. Partial results
	// were still written.
	errInterrupted = errors.New("run interrupted")
	errUsage       = errors.New("usage")
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sym",
		Short: "sym finds RateYourMusic users who rated several of the given releases.",
		Long: "sym reads release rating listings from a URL file, collects every user's ratings\n" +
			"across them and writes the users that clear the match threshold as JSON.",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.NoArgs(cmd, args); err != nil {
				return fmt.Errorf("%w: %w", errUsage, err)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSym(cmd.Context(), cmd.Flags())
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", errUsage, err)
	})
	bindFlags(cmd.Flags())
	return cmd
}

// bindFlags declares one flag per config key. Only flags set on the command
// line override the file and env layers.
func bindFlags(fs *pflag.FlagSet) {
	def := config.New(context.Background())

	fs.String("config", "", "YAML config file (also SYM_CONFIG)")
	fs.String("log-level", def.LogLevel, "log level: debug, info, warn, error")
	fs.String("urls-file", def.URLsFile, "file with one listing URL per line")
	fs.String("output-file", def.OutputFile, "where to write the matches JSON")
	fs.Int("page-limit", def.PageLimit, "maximum pages read per listing")
	fs.Int("match-threshold", def.MatchThreshold, "release count compared against the operator")
	fs.String("threshold-operator", def.ThresholdOperator, `threshold operator: ">" or ">="`)
	fs.Int("page-change-timeout-ms", def.PageChangeTimeoutMS, "wait for the next catalog page, in milliseconds")
	fs.Int("navigation-timeout-ms", def.NavigationTimeoutMS, "wait for the first page of a listing, in milliseconds")
	fs.String("score-parse-policy", def.ScoreParsePolicy, "unparseable ratings: drop or fail")
	fs.String("driver", def.Driver, "page driver: chrome or http")
	fs.Bool("headless", def.Headless, "run Chrome headless")
	fs.Bool("block-ads", def.BlockAds, "block ad and tracker requests in Chrome")
	fs.StringSlice("blocked-url-patterns", nil, "override the blocked URL patterns")
	fs.String("chrome-path", "", "Chrome executable")
	fs.String("user-agent", "", "override the driver user agent")
	fs.String("metrics-addr", "", "serve /healthz, /metrics, /stats and /matches on this address")
	fs.Bool("serve", false, "keep the status server up after the run until interrupted")
	fs.String("metrics-file", "", "write a Prometheus text dump here when the run ends")
}

func execute(ctx context.Context, cmd *cobra.Command, args []string) int {
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errInterrupted):
		fmt.Fprintln(os.Stderr, err)
		return exitInterrupted
	case errors.Is(err, errUsage), errors.Is(err, config.ErrLoadConfig), errors.Is(err, config.ErrInvalidConfig):
		fmt.Fprintln(os.Stderr, err)
		return exitConfig
	default:
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
}

func runSym(ctx context.Context, flags *pflag.FlagSet) error {
	cfg, err := config.Load(ctx, flags)
	if err != nil {
		return err
	}

	// Apply configured log level (validated by Load)
	_ = logger.SetLevelString(cfg.LogLevel)
	log := logger.Get().Named("sym")

	urls, err := source.ReadURLFile(cfg.URLsFile)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		log.Warn(ctx, "url file has no listings", logger.String("path", cfg.URLsFile))
	}

	svc, err := newService(cfg, log)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		srvCtx, cancel := context.WithCancel(ctx)
		done := serveStatus(srvCtx, cfg.MetricsAddr, svc, log)
		defer func() {
			cancel()
			if err := <-done; err != nil {
				log.Error(ctx, "status server failed", logger.Error(err))
			}
		}()
	}

	report, err := svc.Run(ctx, urls)

	if cfg.MetricsFile != "" {
		if werr := metrics.WriteTextfile(cfg.MetricsFile); werr != nil {
			log.Error(ctx, "failed to write metrics file", logger.String("path", cfg.MetricsFile), logger.Error(werr))
		}
	}

	if err != nil {
		return err
	}
	if report.Cancelled {
		return fmt.Errorf("%w: %d of %d listings scraped, partial matches in %s",
			errInterrupted, report.Scraped, report.Listings, report.OutputPath)
	}
	if cfg.Serve {
		log.Info(ctx, "run finished, serving status until interrupted", logger.String("addr", cfg.MetricsAddr))
		<-ctx.Done()
	}
	return nil
}

func newService(cfg *config.Config, log logger.Logger) (*service.Service, error) {
	op, err := cfg.Operator()
	if err != nil {
		return nil, err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}

	scraper := listing.NewScraper(
		listing.WithPageLimit(cfg.PageLimit),
		listing.WithPageChangeTimeout(cfg.PageChangeTimeout()),
		listing.WithNavigationTimeout(cfg.NavigationTimeout()),
		listing.WithScoreParsePolicy(policy),
		listing.WithLogger(log.Named("listing")),
	)

	return service.New(
		service.WithDriverFactory(driverFactory(cfg, log)),
		service.WithScraper(scraper),
		service.WithMatchThreshold(cfg.MatchThreshold, op),
		service.WithOutputPath(cfg.OutputFile),
		service.WithLogger(log.Named("service")),
	), nil
}

// driverFactory picks the page driver named by cfg.Driver.
func driverFactory(cfg *config.Config, log logger.Logger) service.DriverFactory {
	if strings.EqualFold(cfg.Driver, config.DriverHTTP) {
		return func(context.Context) (listing.PageDriver, error) {
			return static.New(
				static.WithUserAgent(cfg.UserAgent),
				static.WithRequestTimeout(cfg.NavigationTimeout()),
				static.WithLogger(log.Named("static")),
			), nil
		}
	}
	return func(ctx context.Context) (listing.PageDriver, error) {
		d, err := chrome.New(ctx,
			chrome.WithHeadless(cfg.Headless),
			chrome.WithAdBlock(cfg.BlockAds),
			chrome.WithBlockedURLPatterns(cfg.BlockedURLPatterns),
			chrome.WithUserAgent(cfg.UserAgent),
			chrome.WithExecPath(cfg.ChromePath),
			chrome.WithLogger(log.Named("chrome")),
		)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

// serveStatus runs the status server until ctx is done. The returned
// channel yields the server's exit error.
func serveStatus(ctx context.Context, addr string, svc *service.Service, log logger.Logger) <-chan error {
	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(ctx, mux)
	swagger.Register(ctx, mux)

	done := make(chan error, 1)
	go func() {
		done <- api.Run(ctx, api.NewHTTPServer(addr, mux), log.Named("status"))
	}()
	return done
}
