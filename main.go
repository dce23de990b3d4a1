package main

import (
	"fmt"
	"os"

	"github.com/tucnak/climax"
)

func main() {
	cli := climax.New("site-stats")
	cli.Brief = "Project statistics for the synology-api documentation site"
	cli.Version = getVersion()

	cli.AddCommand(climax.Command{
		Name:   "stars",
		Brief:  "Show the repository stargazer count",
		Usage:  `stars [--config <file>] [--token <token>] [--format text|json]`,
		Help:   `Returns the cached stargazer count, refreshing it from the GitHub API once it has expired.`,
		Flags:  commonFlags(),
		Handle: handle(commandStars),
	})
	cli.AddCommand(climax.Command{
		Name:   "contributors",
		Brief:  "List repository contributors",
		Usage:  `contributors [--config <file>] [--token <token>] [--format text|json]`,
		Help:   `Returns the cached contributor list (login, avatar, id) in GitHub order, refreshing it once it has expired.`,
		Flags:  commonFlags(),
		Handle: handle(commandContributors),
	})
	cli.AddCommand(climax.Command{
		Name:   "downloads",
		Brief:  "Show weekly, monthly and all-time download counts",
		Usage:  `downloads [--config <file>] [--format text|json]`,
		Help:   `Reads the download counts from the pepy.tech badges for the configured project.`,
		Flags:  commonFlags(),
		Handle: handle(commandDownloads),
	})
	cli.AddCommand(climax.Command{
		Name:   "report",
		Brief:  "Show stars, contributors and downloads together",
		Usage:  `report [--config <file>] [--token <token>] [--format text|json] [--output <file>]`,
		Help:   `Fetches all statistics concurrently. Resources that could not be refreshed are served from stale cache entries or safe defaults and listed as degraded.`,
		Flags:  commonFlags(),
		Handle: handle(commandReport),
	})
	cli.AddCommand(climax.Command{
		Name:   "cache",
		Brief:  "Show cache statistics",
		Usage:  `cache [--config <file>] [--cache <provider>] [--cache-path <file>]`,
		Help:   `Counts valid, expired and corrupt cache entries.`,
		Flags:  commonFlags(),
		Handle: handle(commandCache),
	})

	cli.Run()
}

func commonFlags() []climax.Flag {
	return []climax.Flag{
		{
			Name:     "config",
			Short:    "c",
			Usage:    `--config <file>`,
			Help:     `YAML configuration file (default: built-in defaults)`,
			Variable: true,
		},
		{
			Name:     "token",
			Short:    "t",
			Usage:    `--token <token>`,
			Help:     `GitHub personal access token (or set GITHUB_TOKEN env var)`,
			Variable: true,
		},
		{
			Name:     "cache",
			Short:    "C",
			Usage:    `--cache <provider>`,
			Help:     `Cache provider to use: memory or sqlite (default: sqlite)`,
			Variable: true,
		},
		{
			Name:     "cache-path",
			Short:    "p",
			Usage:    `--cache-path <file>`,
			Help:     `SQLite cache database file`,
			Variable: true,
		},
		{
			Name:     "format",
			Short:    "f",
			Usage:    `--format <text|json>`,
			Help:     `Output format (default: text)`,
			Variable: true,
		},
		{
			Name:     "output",
			Short:    "o",
			Usage:    `--output <file>`,
			Help:     `Write output to a file instead of stdout`,
			Variable: true,
		},
		{
			Name:     "verbose",
			Short:    "v",
			Usage:    `--verbose`,
			Help:     `Enable verbose logging for debugging (shows API calls, cache hits and misses, and fallbacks)`,
			Variable: false,
		},
	}
}

func optionsFromContext(ctx climax.Context) options {
	var opts options
	opts.configPath, _ = ctx.Get("config")
	opts.token, _ = ctx.Get("token")
	opts.cacheProvider, _ = ctx.Get("cache")
	opts.cachePath, _ = ctx.Get("cache-path")
	opts.format, _ = ctx.Get("format")
	opts.output, _ = ctx.Get("output")
	opts.verbose = ctx.Is("verbose")
	return opts
}

func handle(command commandFunc) func(climax.Context) int {
	return func(ctx climax.Context) int {
		opts := optionsFromContext(ctx)
		if err := runCommand(command, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}
}
