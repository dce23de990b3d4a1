package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/N4S4/site-stats/internal/badge"
	"github.com/N4S4/site-stats/internal/cache"
	"github.com/N4S4/site-stats/internal/config"
	"github.com/N4S4/site-stats/internal/github"
	"github.com/N4S4/site-stats/internal/logging"
	"github.com/N4S4/site-stats/internal/output"
	"github.com/N4S4/site-stats/internal/stats"
)

// options are the command line flags shared by every command
type options struct {
	configPath    string
	token         string
	cacheProvider string
	cachePath     string
	format        string
	output        string
	verbose       bool
}

type commandFunc struct {
	name string
	run  func(ctx context.Context, a *app, w io.Writer) error
}

var (
	commandStars        = commandFunc{name: "stars", run: runStars}
	commandContributors = commandFunc{name: "contributors", run: runContributors}
	commandDownloads    = commandFunc{name: "downloads", run: runDownloads}
	commandReport       = commandFunc{name: "report", run: runReport}
	commandCache        = commandFunc{name: "cache", run: runCache}
)

// app holds the components wired from one configuration
type app struct {
	cfg     *config.Config
	format  string
	base    *logrus.Logger
	logger  logrus.FieldLogger
	store   *cache.Store
	service *stats.Service
	now     func() time.Time
}

func runCommand(command commandFunc, opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	format := opts.format
	if format == "" {
		format = config.FormatText
	}
	if format != config.FormatText && format != config.FormatJSON {
		return fmt.Errorf("unsupported format %q (use %s or %s)", format, config.FormatText, config.FormatJSON)
	}

	a, err := newApp(cfg, command.name)
	if err != nil {
		return err
	}
	defer a.Close()
	a.format = format

	writer := io.Writer(os.Stdout)
	if opts.output != "" {
		file, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("error creating output file: %w", err)
		}
		defer file.Close()
		writer = file
	}

	return command.run(context.Background(), a, writer)
}

// loadConfig reads the configuration file and applies flag overrides on top
func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	if opts.token != "" {
		cfg.GitHub.Token = opts.token
	}
	if opts.cacheProvider != "" {
		cfg.Cache.Provider = opts.cacheProvider
	}
	if opts.cachePath != "" {
		cfg.Cache.Path = opts.cachePath
	}
	if opts.verbose {
		cfg.Log.Level = logrus.DebugLevel.String()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newApp(cfg *config.Config, command string) (*app, error) {
	logger, err := logging.InitLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	entry := logger.WithFields(logging.CommandFields(command, cfg.Repository.FullName(), cfg.Cache.Provider))
	entry.Debugf("site-stats %s", getVersion())

	var storage cache.Storage
	switch cfg.Cache.Provider {
	case config.ProviderSQLite:
		sqliteStorage, err := cache.NewSQLiteStorage(cfg.Cache.Path)
		if err != nil {
			logging.Close(logger)
			return nil, fmt.Errorf("failed to open cache: %w", err)
		}
		entry.Debugf("Using SQLite cache at %s", cfg.Cache.Path)
		storage = sqliteStorage
	default:
		entry.Debug("Using in-memory cache")
		storage = cache.NewMemoryStorage()
	}

	store := cache.NewStoreWithConfig(storage, &cache.Config{
		DefaultTTL: cfg.Cache.DefaultTTL.DurationValue(),
		Logger:     entry,
	})

	githubClient, err := github.NewClientWithConfig(cfg.GitHub.Token, &github.Config{
		BaseURL:          cfg.GitHub.BaseURL,
		MaxRateLimitWait: cfg.GitHub.MaxRateLimitWait.DurationValue(),
		Logger:           entry,
	})
	if err != nil {
		if closeErr := store.Close(); closeErr != nil {
			entry.WithError(closeErr).Warn("Failed to close cache")
		}
		logging.Close(logger)
		return nil, err
	}
	if cfg.GitHub.Token == "" {
		entry.Debug("No GitHub token configured, using unauthenticated requests")
	}

	badgeClient := badge.NewClientWithConfig(&badge.Config{
		BaseURL: cfg.Downloads.BaseURL,
		Project: cfg.Downloads.Project,
		Timeout: cfg.Downloads.Timeout.DurationValue(),
		Logger:  entry,
	})

	service := stats.NewService(store, githubClient, badgeClient, &stats.Config{
		Owner:           cfg.Repository.Owner,
		Repo:            cfg.Repository.Name,
		StarsTTL:        cfg.TTL.Stars.DurationValue(),
		ContributorsTTL: cfg.TTL.Contributors.DurationValue(),
		DownloadsTTL:    cfg.TTL.Downloads.DurationValue(),
		Logger:          entry,
	})

	return &app{
		cfg:     cfg,
		format:  config.FormatText,
		base:    logger,
		logger:  entry,
		store:   store,
		service: service,
		now:     time.Now,
	}, nil
}

// Close releases the cache substrate and the log file. A cache that fails
// to close is logged before the log file goes away.
func (a *app) Close() error {
	storeErr := a.store.Close()
	if storeErr != nil {
		a.logger.WithError(storeErr).Warn("Failed to close cache")
	}
	logErr := logging.Close(a.base)
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", logErr)
	}
	return errors.Join(storeErr, logErr)
}

func (a *app) writeJSON(w io.Writer, v interface{}) error {
	if err := output.WriteJSON(v, w, true); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func runStars(ctx context.Context, a *app, w io.Writer) error {
	result := a.service.Stars(ctx)
	if a.format == config.FormatJSON {
		return a.writeJSON(w, output.FromResult(result))
	}
	_, err := fmt.Fprintf(w, "%s\n", humanize.Comma(int64(result.Value)))
	return err
}

func runContributors(ctx context.Context, a *app, w io.Writer) error {
	result := a.service.Contributors(ctx)
	if a.format == config.FormatJSON {
		return a.writeJSON(w, output.FromResult(result))
	}
	for _, c := range result.Value {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", c.Login, c.AvatarURL); err != nil {
			return err
		}
	}
	return nil
}

func runDownloads(ctx context.Context, a *app, w io.Writer) error {
	result := a.service.Downloads(ctx)
	if a.format == config.FormatJSON {
		return a.writeJSON(w, output.FromResult(result))
	}
	for _, period := range badge.Periods {
		count, ok := result.Value[period]
		if !ok {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s: %s\n", period, count); err != nil {
			return err
		}
	}
	return nil
}

func runReport(ctx context.Context, a *app, w io.Writer) error {
	snapshot := a.service.Snapshot(ctx)
	report := output.BuildReport(a.cfg.Repository.FullName(), snapshot, a.now())

	if !report.Summary.Complete {
		a.logger.Warnf("Report is degraded: %v", report.Summary.DegradedResources)
	}

	if a.format == config.FormatJSON {
		return a.writeJSON(w, report)
	}
	return output.FormatText(report, w)
}

func runCache(_ context.Context, a *app, w io.Writer) error {
	entries, err := a.store.Stats()
	if err != nil {
		return fmt.Errorf("failed to read cache statistics: %w", err)
	}

	if a.format == config.FormatJSON {
		return a.writeJSON(w, entries)
	}

	size := int64(-1)
	if a.cfg.Cache.Provider == config.ProviderSQLite {
		if info, err := os.Stat(a.cfg.Cache.Path); err == nil {
			size = info.Size()
		}
	}
	return output.FormatCacheStats(entries, size, w)
}
