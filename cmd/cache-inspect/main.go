package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/tucnak/climax"

	"github.com/N4S4/site-stats/internal/cache"
)

const previewLength = 60

func main() {
	cli := climax.New("cache-inspect")
	cli.Brief = "Inspect a site-stats SQLite cache"
	cli.Version = "0.1.0"

	cli.AddCommand(climax.Command{
		Name:  "dump",
		Brief: "Print every cache envelope with its expiry",
		Usage: `dump [--path <file>] [--raw]`,
		Help:  `Lists each key in the cache database with its state (valid, expired or corrupt), expiry time and payload.`,
		Flags: []climax.Flag{
			{
				Name:     "path",
				Short:    "p",
				Usage:    `--path <file>`,
				Help:     `SQLite cache database file (default: .site-stats-cache.db)`,
				Variable: true,
			},
			{
				Name:     "raw",
				Short:    "r",
				Usage:    `--raw`,
				Help:     `Print the full stored value instead of a preview`,
				Variable: false,
			},
		},
		Handle: func(ctx climax.Context) int {
			logger := logrus.New()
			path, _ := ctx.Get("path")
			if path == "" {
				path = ".site-stats-cache.db"
			}
			if _, err := os.Stat(path); err != nil {
				logger.WithError(err).Error("Cache database not found")
				return 1
			}

			storage, err := cache.NewSQLiteStorage(path)
			if err != nil {
				logger.WithError(err).WithField("path", path).Error("Failed to open cache")
				return 1
			}
			defer func() {
				if err := storage.Close(); err != nil {
					logger.WithError(err).Warn("Failed to close cache")
				}
			}()

			if err := dump(storage, os.Stdout, time.Now(), ctx.Is("raw")); err != nil {
				logger.WithError(err).Error("Failed to dump cache")
				return 1
			}
			return 0
		},
	})

	cli.Run()
}

// listingStorage is a substrate that can enumerate its keys
type listingStorage interface {
	cache.Storage
	cache.Lister
}

// dump writes one block per key describing the stored envelope
func dump(storage listingStorage, w io.Writer, now time.Time, raw bool) error {
	keys, err := storage.Keys()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Found %d cache entries:\n", len(keys))
	for _, key := range keys {
		value, ok, err := storage.Read(key)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		fmt.Fprintf(w, "- %s (%s, %s)\n", key, describe(value, now), humanize.Bytes(uint64(len(value))))

		if raw {
			fmt.Fprintf(w, "  %s\n", value)
		} else {
			fmt.Fprintf(w, "  %s\n", preview(value))
		}
	}

	return nil
}

// describe reports the state of a raw envelope relative to now
func describe(value string, now time.Time) string {
	var entry cache.Entry
	if err := json.Unmarshal([]byte(value), &entry); err != nil {
		return "corrupt"
	}
	if !entry.HasData() {
		return "corrupt: no data"
	}
	if entry.Expires == nil {
		return "expired: no expiry"
	}

	expires := time.UnixMilli(*entry.Expires)
	if expires.After(now) {
		return "valid, expires " + humanize.RelTime(expires, now, "ago", "from now")
	}
	return "expired " + humanize.RelTime(expires, now, "ago", "from now")
}

// preview shortens value to previewLength runes
func preview(value string) string {
	n := 0
	for i := range value {
		if n == previewLength {
			return value[:i] + "..."
		}
		n++
	}
	return value
}
