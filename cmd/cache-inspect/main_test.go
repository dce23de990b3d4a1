package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/N4S4/site-stats/internal/cache"
)

func TestDump(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	storage := cache.NewMemoryStorage()
	store := cache.NewStoreWithConfig(storage, &cache.Config{Now: func() time.Time { return now.Add(-time.Hour) }})
	store.SetWithTTL("downloads", map[string]string{"week": "1.2k"}, 2*time.Hour)
	store.SetWithTTL("stars", 42, time.Minute)
	storage.Write("contributors", "{not json")

	var buf bytes.Buffer
	if err := dump(storage, &buf, now, false); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	out := buf.String()

	expected := []string{
		"Found 3 cache entries:",
		"- contributors (corrupt,",
		"- downloads (valid, expires 1 hour from now,",
		"- stars (expired 59 minutes ago,",
		`{"data":42,`,
	}
	for _, want := range expected {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestDescribe(t *testing.T) {
	now := time.UnixMilli(1_000_000)

	tests := []struct {
		name  string
		value string
		want  string
	}{
		{name: "corrupt", value: "nope", want: "corrupt"},
		{name: "null data", value: `{"data":null,"expires":2000000}`, want: "corrupt: no data"},
		{name: "no expiry", value: `{"data":1}`, want: "expired: no expiry"},
		{name: "boundary is expired", value: `{"data":1,"expires":1000000}`, want: "expired now"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := describe(tt.value, now); got != tt.want {
				t.Errorf("describe(%q) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestDump_Preview(t *testing.T) {
	storage := cache.NewMemoryStorage()
	long := `{"data":"` + strings.Repeat("x", 100) + `","expires":1}`
	storage.Write("long", long)

	var buf bytes.Buffer
	dump(storage, &buf, time.Now(), false)
	if !strings.Contains(buf.String(), long[:previewLength]+"...") {
		t.Errorf("Expected truncated preview, got:\n%s", buf.String())
	}

	buf.Reset()
	dump(storage, &buf, time.Now(), true)
	if !strings.Contains(buf.String(), long) {
		t.Errorf("Expected full value with raw, got:\n%s", buf.String())
	}
}

func TestPreview_KeepsRunesWhole(t *testing.T) {
	value := strings.Repeat("é", previewLength+5)

	got := preview(value)
	if got != strings.Repeat("é", previewLength)+"..." {
		t.Errorf("Expected %d whole runes and an ellipsis, got %q", previewLength, got)
	}

	short := strings.Repeat("ü", previewLength)
	if got := preview(short); got != short {
		t.Errorf("Expected short value unchanged, got %q", got)
	}
}
