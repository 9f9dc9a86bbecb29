// Package cli implements the rentwatch command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/FranksOps/rentwatch/internal/classify"
	"github.com/FranksOps/rentwatch/internal/config"
	"github.com/FranksOps/rentwatch/internal/fingerprint"
	"github.com/FranksOps/rentwatch/internal/listing"
	"github.com/FranksOps/rentwatch/internal/logx"
	"github.com/FranksOps/rentwatch/internal/metrics"
	"github.com/FranksOps/rentwatch/internal/notify"
	"github.com/FranksOps/rentwatch/internal/pipeline"
	"github.com/FranksOps/rentwatch/internal/report"
	"github.com/FranksOps/rentwatch/internal/scraper"
	"github.com/FranksOps/rentwatch/pkg/ratelimit"
	"github.com/FranksOps/rentwatch/pkg/useragent"
)

type options struct {
	emailConfig string
	logLevel    string
	logFormat   string
	dryRun      bool
	summary     string
	envFile     string
}

// NewRootCommand builds the rentwatch command.
func NewRootCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "rentwatch <config-file>",
		Short: "Search homegate.ch for rentals matching keywords and report new ones",
		Long: `rentwatch runs one search: it walks the result pages for every
postcode/distance pair in the config file, checks each property page for
the configured search terms and remembers the outcome, so only properties
that newly match are reported.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, args[0], opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.emailConfig, "email-config", "", "SMTP settings file; without it new matches are only logged")
	f.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	f.StringVar(&opts.logFormat, "log-format", "text", "log format (text, json)")
	f.BoolVar(&opts.dryRun, "dry-run", false, "classify without notifying or saving state")
	f.StringVar(&opts.summary, "summary", "", "print a run summary to stdout (text, json)")
	f.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading configuration")
	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	cmd := NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "rentwatch: %v\n", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, configPath string, opts options, stdout, stderr io.Writer) error {
	switch opts.summary {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown summary format %q (want text or json)", opts.summary)
	}

	logger, err := logx.New(stderr, opts.logLevel, opts.logFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return err
	}
	search, err := config.Load(configPath)
	if err != nil {
		return err
	}
	email, err := config.LoadEmail(opts.emailConfig)
	if err != nil {
		return err
	}

	rec := metrics.New()
	p, closeFn, err := build(ctx, search, email, rec, logger)
	if err != nil {
		return err
	}
	defer closeFn()
	p.DryRun = opts.dryRun

	sum, runErr := p.Run(ctx)

	if search.MetricsTextfile != "" && sum != nil {
		if err := rec.WriteTextfile(search.MetricsTextfile); err != nil {
			logger.Error("failed to write metrics", "path", search.MetricsTextfile, "err", err)
		}
	}
	if sum != nil {
		if err := writeSummary(stdout, opts.summary, *sum); err != nil {
			logger.Error("failed to write summary", "err", err)
		}
	}
	return runErr
}

func writeSummary(w io.Writer, format string, sum report.Summary) error {
	switch format {
	case "text":
		return report.WriteText(w, sum)
	case "json":
		return report.WriteJSON(w, sum)
	}
	return nil
}

// build assembles the pipeline for one search. The returned func releases
// the state backend.
func build(ctx context.Context, search *config.Search, email *config.Email, rec *metrics.Recorder, logger *slog.Logger) (*pipeline.Pipeline, func(), error) {
	profile, err := fingerprint.ParseProfile(search.HTTP.TLSProfile)
	if err != nil {
		return nil, nil, err
	}
	policy, err := classify.ParsePolicy(search.PossiblePolicy)
	if err != nil {
		return nil, nil, err
	}

	fetcher, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:       search.HTTP.Timeout,
		UseCookieJar:  true,
		MaxBodyBytes:  search.HTTP.MaxBodyBytes,
		UAPool:        useragent.NewPool(search.HTTP.UserAgents),
		Fingerprint:   profile,
		Limiter:       ratelimit.NewLimiter(search.HTTP.RequestsPerSecond, search.HTTP.Jitter),
		RespectRobots: search.HTTP.RespectRobots,
		Metrics:       rec,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	extractor, err := listing.NewHTMLExtractor(search.ResultCountSelector, search.ResultCountPattern, search.LinkPattern)
	if err != nil {
		return nil, nil, err
	}

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if email != nil {
		n, err := notify.NewSMTPNotifier(notify.SMTPConfig{
			Server:    email.SMTPServer,
			Port:      email.SMTPPort,
			Username:  email.SMTPUsername,
			Password:  email.SMTPPassword,
			Sender:    email.EmailSender,
			Recipient: email.EmailRecipient,
			TLS:       email.SMTPTLS,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		notifier = n
	}

	// Opened last so nothing above can leak it.
	store, err := openBackend(ctx, search.Storage, search.PossibleFile, search.RejectedFile)
	if err != nil {
		return nil, nil, err
	}

	p := &pipeline.Pipeline{
		SearchName: search.SearchName,
		Postcodes:  search.Postcodes,
		Distances:  search.Distances,
		Enumerator: listing.NewEnumerator(search.URLTemplate, search.PageSize, fetcher, extractor, logger),
		Collector:  listing.NewCollector(fetcher, extractor, logger),
		Classifier: classify.NewClassifier(classify.Config{
			HostPrefix: search.HostPrefix,
			Terms:      search.SearchTerms,
			Policy:     policy,
			Metrics:    rec,
		}, fetcher, logger),
		Store:    store,
		Notifier: notifier,
		Metrics:  rec,
		Logger:   logger,
	}
	closeFn := func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close state backend", "err", err)
		}
	}
	return p, closeFn, nil
}
