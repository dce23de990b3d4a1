package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/N4S4/site-stats/internal/github"
	"github.com/N4S4/site-stats/internal/stats"
)

// Report represents the complete statistics for one repository
type Report struct {
	Repository   string                              `json:"repository"`
	GeneratedAt  time.Time                           `json:"generated_at"`
	Stars        ResourceResult[int]                 `json:"stars"`
	Contributors ResourceResult[[]ContributorResult] `json:"contributors"`
	Downloads    ResourceResult[map[string]string]   `json:"downloads"`
	Summary      Summary                             `json:"summary"`
}

// ResourceResult is one resource with the provenance of its value
type ResourceResult[T any] struct {
	Value  T      `json:"value"`
	Source string `json:"source"`          // "fresh", "cached", "stale", "default"
	Error  string `json:"error,omitempty"` // set when the upstream fetch failed
	Kind   string `json:"kind,omitempty"`  // "network", "rate_limited", "parse"
}

// ContributorResult represents a contributor as displayed on the site
type ContributorResult struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
	ID        int64  `json:"id"`
}

// Summary provides aggregate information about the report
type Summary struct {
	ContributorCount  int      `json:"contributor_count"`
	DegradedResources []string `json:"degraded_resources"`
	Complete          bool     `json:"complete"`
}

// FormatJSON outputs the report as JSON
func FormatJSON(report *Report, writer io.Writer, pretty bool) error {
	return WriteJSON(report, writer, pretty)
}

// WriteJSON marshals v to writer, indented when pretty is set
func WriteJSON(v interface{}, writer io.Writer, pretty bool) error {
	var data []byte
	var err error

	if pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	_, err = writer.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}

	return nil
}

// BuildReport constructs a report from a statistics snapshot
func BuildReport(repository string, snapshot stats.Snapshot, generatedAt time.Time) *Report {
	report := &Report{
		Repository:   repository,
		GeneratedAt:  generatedAt.UTC(),
		Stars:        resource(snapshot.Stars, snapshot.Stars.Value),
		Contributors: resource(snapshot.Contributors, convertContributors(snapshot.Contributors.Value)),
		Downloads:    resource(snapshot.Downloads, map[string]string(snapshot.Downloads.Value)),
	}
	if report.Downloads.Value == nil {
		report.Downloads.Value = map[string]string{}
	}

	report.Summary = calculateSummary(report)
	return report
}

// FromResult converts a single service result
func FromResult[T any](result stats.Result[T]) ResourceResult[T] {
	return resource(result, result.Value)
}

func resource[S, T any](result stats.Result[S], value T) ResourceResult[T] {
	r := ResourceResult[T]{
		Value:  value,
		Source: string(result.Source),
	}
	if result.Err != nil {
		r.Error = result.Err.Error()
		if kind := stats.KindOf(result.Err); kind != 0 {
			r.Kind = kind.String()
		}
	}
	return r
}

func convertContributors(contributors []github.Contributor) []ContributorResult {
	converted := make([]ContributorResult, 0, len(contributors))
	for _, c := range contributors {
		converted = append(converted, ContributorResult{
			Login:     c.Login,
			AvatarURL: c.AvatarURL,
			ID:        c.ID,
		})
	}
	return converted
}

// calculateSummary lists resources served after a failed fetch
func calculateSummary(report *Report) Summary {
	summary := Summary{
		ContributorCount:  len(report.Contributors.Value),
		DegradedResources: make([]string, 0, 3),
	}

	if report.Stars.Error != "" {
		summary.DegradedResources = append(summary.DegradedResources, stats.KeyStars)
	}
	if report.Contributors.Error != "" {
		summary.DegradedResources = append(summary.DegradedResources, stats.KeyContributors)
	}
	if report.Downloads.Error != "" {
		summary.DegradedResources = append(summary.DegradedResources, stats.KeyDownloads)
	}
	summary.Complete = len(summary.DegradedResources) == 0

	return summary
}
