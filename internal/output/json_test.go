package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/N4S4/site-stats/internal/cache"
	"github.com/N4S4/site-stats/internal/github"
	"github.com/N4S4/site-stats/internal/stats"
)

func sampleSnapshot() stats.Snapshot {
	return stats.Snapshot{
		Stars: stats.Result[int]{Value: 1234, Source: stats.SourceFresh},
		Contributors: stats.Result[[]github.Contributor]{
			Value: []github.Contributor{
				{ID: 1, Login: "N4S4", AvatarURL: "https://avatars.example/1"},
				{ID: 2, Login: "octocat", AvatarURL: "https://avatars.example/2"},
			},
			Source: stats.SourceCached,
		},
		Downloads: stats.Result[stats.Downloads]{
			Value:  stats.Downloads{"week": "1.2k", "month": "5k", "all": "120k"},
			Source: stats.SourceStale,
			Err: &stats.FetchError{
				Resource: stats.KeyDownloads,
				Kind:     stats.KindNetwork,
				Err:      errors.New("connection refused"),
			},
		},
	}
}

func TestBuildReport(t *testing.T) {
	generated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	report := BuildReport("N4S4/synology-api", sampleSnapshot(), generated)

	if report.Stars.Value != 1234 || report.Stars.Source != "fresh" || report.Stars.Error != "" {
		t.Errorf("Unexpected stars: %+v", report.Stars)
	}
	if len(report.Contributors.Value) != 2 || report.Contributors.Value[1].Login != "octocat" {
		t.Errorf("Unexpected contributors: %+v", report.Contributors.Value)
	}
	if report.Contributors.Source != "cached" {
		t.Errorf("Expected cached contributors, got %s", report.Contributors.Source)
	}
	if report.Downloads.Source != "stale" || report.Downloads.Kind != "network" {
		t.Errorf("Expected stale network-degraded downloads, got %+v", report.Downloads)
	}
	if !strings.Contains(report.Downloads.Error, "connection refused") {
		t.Errorf("Expected error message to be kept, got %q", report.Downloads.Error)
	}

	if report.Summary.ContributorCount != 2 {
		t.Errorf("Expected 2 contributors, got %d", report.Summary.ContributorCount)
	}
	if report.Summary.Complete {
		t.Error("Expected incomplete report")
	}
	if len(report.Summary.DegradedResources) != 1 || report.Summary.DegradedResources[0] != "downloads" {
		t.Errorf("Unexpected degraded resources: %v", report.Summary.DegradedResources)
	}
}

func TestBuildReport_Defaults(t *testing.T) {
	fetchErr := &stats.FetchError{Resource: "x", Kind: stats.KindRateLimited, Err: errors.New("quota")}
	snapshot := stats.Snapshot{
		Stars:        stats.Result[int]{Source: stats.SourceDefault, Err: fetchErr},
		Contributors: stats.Result[[]github.Contributor]{Source: stats.SourceDefault, Err: fetchErr},
		Downloads:    stats.Result[stats.Downloads]{Source: stats.SourceDefault, Err: fetchErr},
	}

	report := BuildReport("N4S4/synology-api", snapshot, time.Now())

	var buf bytes.Buffer
	if err := FormatJSON(report, &buf, false); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Failed to decode output: %v", err)
	}

	var stars struct {
		Kind string `json:"kind"`
	}
	var contributors, downloads struct {
		Value json.RawMessage `json:"value"`
	}
	for name, target := range map[string]interface{}{"stars": &stars, "contributors": &contributors, "downloads": &downloads} {
		if err := json.Unmarshal(decoded[name], target); err != nil {
			t.Fatalf("Failed to decode %s: %v", name, err)
		}
	}

	// defaults serialise as empty collections, never null
	if string(contributors.Value) != "[]" {
		t.Errorf("Expected contributors to be [], got %s", contributors.Value)
	}
	if string(downloads.Value) != "{}" {
		t.Errorf("Expected downloads to be {}, got %s", downloads.Value)
	}
	if stars.Kind != "rate_limited" {
		t.Errorf("Expected rate_limited kind, got %q", stars.Kind)
	}
	if len(report.Summary.DegradedResources) != 3 {
		t.Errorf("Expected all resources degraded, got %v", report.Summary.DegradedResources)
	}
}

func TestFormatJSON_Pretty(t *testing.T) {
	report := BuildReport("N4S4/synology-api", sampleSnapshot(), time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	var compact, pretty bytes.Buffer
	if err := FormatJSON(report, &compact, false); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := FormatJSON(report, &pretty, true); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if strings.Contains(compact.String(), "\n") {
		t.Error("Expected compact output on one line")
	}
	if !strings.Contains(pretty.String(), "\n  \"repository\": \"N4S4/synology-api\"") {
		t.Errorf("Expected indented output, got:\n%s", pretty.String())
	}
	if !strings.Contains(compact.String(), `"generated_at":"2026-03-01T12:00:00Z"`) {
		t.Errorf("Expected generated_at timestamp, got %s", compact.String())
	}
}

func TestFormatText(t *testing.T) {
	report := BuildReport("N4S4/synology-api", sampleSnapshot(), time.Now())

	var buf bytes.Buffer
	if err := FormatText(report, &buf); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	out := buf.String()

	expected := []string{
		"Statistics for N4S4/synology-api",
		"- Stars: 1,234 (fresh)",
		"- Contributors: 2 (cached)",
		"  - octocat",
		"- Downloads: (stale, network)",
		"Degraded: downloads",
	}
	for _, want := range expected {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}

	// periods are listed week, month, all
	week := strings.Index(out, "week: 1.2k")
	month := strings.Index(out, "month: 5k")
	all := strings.Index(out, "all: 120k")
	if week < 0 || month < week || all < month {
		t.Errorf("Expected periods in display order, got:\n%s", out)
	}
}

func TestFormatCacheStats(t *testing.T) {
	var buf bytes.Buffer
	entries := cache.Stats{TotalEntries: 1500, ValidEntries: 1000, ExpiredEntries: 499, CorruptEntries: 1}

	if err := FormatCacheStats(entries, 2048, &buf); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	out := buf.String()

	for _, want := range []string{"Cache entries: 1,500", "- Expired: 499", "- Corrupt: 1", "Size on disk: 2.0 kB"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}

	buf.Reset()
	FormatCacheStats(entries, -1, &buf)
	if strings.Contains(buf.String(), "Size on disk") {
		t.Error("Expected no size line for in-memory storage")
	}
}
