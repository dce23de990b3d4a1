package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/N4S4/site-stats/internal/badge"
	"github.com/N4S4/site-stats/internal/cache"
)

// FormatText writes a human readable summary of the report
func FormatText(report *Report, writer io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Statistics for %s\n", report.Repository)
	fmt.Fprintf(&b, "- Stars: %s%s\n", humanize.Comma(int64(report.Stars.Value)), annotate(report.Stars.Source, report.Stars.Kind))
	fmt.Fprintf(&b, "- Contributors: %s%s\n", humanize.Comma(int64(report.Summary.ContributorCount)), annotate(report.Contributors.Source, report.Contributors.Kind))
	for _, c := range report.Contributors.Value {
		fmt.Fprintf(&b, "  - %s\n", c.Login)
	}

	fmt.Fprintf(&b, "- Downloads:%s\n", annotate(report.Downloads.Source, report.Downloads.Kind))
	for _, period := range downloadPeriods(report.Downloads.Value) {
		fmt.Fprintf(&b, "  - %s: %s\n", period, report.Downloads.Value[period])
	}

	if !report.Summary.Complete {
		fmt.Fprintf(&b, "\nDegraded: %s\n", strings.Join(report.Summary.DegradedResources, ", "))
	}

	if _, err := io.WriteString(writer, b.String()); err != nil {
		return fmt.Errorf("failed to write text output: %w", err)
	}
	return nil
}

// FormatCacheStats writes cache entry counts. size is the substrate's size
// on disk in bytes, or negative when it has none.
func FormatCacheStats(entries cache.Stats, size int64, writer io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Cache entries: %s\n", humanize.Comma(int64(entries.TotalEntries)))
	fmt.Fprintf(&b, "- Valid: %s\n", humanize.Comma(int64(entries.ValidEntries)))
	fmt.Fprintf(&b, "- Expired: %s\n", humanize.Comma(int64(entries.ExpiredEntries)))
	fmt.Fprintf(&b, "- Corrupt: %s\n", humanize.Comma(int64(entries.CorruptEntries)))
	if size >= 0 {
		fmt.Fprintf(&b, "Size on disk: %s\n", humanize.Bytes(uint64(size)))
	}

	if _, err := io.WriteString(writer, b.String()); err != nil {
		return fmt.Errorf("failed to write cache stats: %w", err)
	}
	return nil
}

func annotate(source, kind string) string {
	switch {
	case kind != "":
		return fmt.Sprintf(" (%s, %s)", source, kind)
	case source != "":
		return fmt.Sprintf(" (%s)", source)
	default:
		return ""
	}
}

// downloadPeriods orders the known periods first, then anything else alphabetically
func downloadPeriods(downloads map[string]string) []string {
	periods := make([]string, 0, len(downloads))
	for _, p := range badge.Periods {
		if _, ok := downloads[p]; ok {
			periods = append(periods, p)
		}
	}

	var extra []string
	for p := range downloads {
		known := false
		for _, k := range badge.Periods {
			if p == k {
				known = true
				break
			}
		}
		if !known {
			extra = append(extra, p)
		}
	}
	sort.Strings(extra)

	return append(periods, extra...)
}
