package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func intervalPtr(i Interval) *Interval { return &i }

func TestIntervalDuration(t *testing.T) {
	t.Parallel()

	require.Equal(t, 24*time.Hour, IntervalDaily.Duration())
	require.Equal(t, 7*24*time.Hour, IntervalWeekly.Duration())
	require.Equal(t, 30*24*time.Hour, IntervalMonthly.Duration())
	require.Equal(t, 24*time.Hour, Interval("hourly").Duration())
	require.Equal(t, 24*time.Hour, IntervalOrDefault(nil))
	require.Equal(t, 7*24*time.Hour, IntervalOrDefault(intervalPtr(IntervalWeekly)))
}

func TestMergePrefersNewFields(t *testing.T) {
	t.Parallel()

	old := Options{
		SiteURL:      strPtr("https://old.example.com"),
		Interval:     intervalPtr(IntervalMonthly),
		IncludePaths: []string{"/docs"},
		MaxDepth:     intPtr(3),
	}
	newer := Options{
		SiteURL:  strPtr("https://new.example.com"),
		Interval: intervalPtr(IntervalWeekly),
		Limit:    intPtr(500),
	}

	merged := newer.Merge(old)
	require.Equal(t, "https://new.example.com", *merged.SiteURL)
	require.Equal(t, IntervalWeekly, *merged.Interval)
	require.Equal(t, []string{"/docs"}, merged.IncludePaths)
	require.Equal(t, 3, *merged.MaxDepth)
	require.Equal(t, 500, *merged.Limit)
}

func TestMergeWithNoPriorReturnsNewUnchanged(t *testing.T) {
	t.Parallel()

	newer := Options{SiteURL: strPtr("https://site.example.com"), MaxDepth: intPtr(2)}
	require.Equal(t, newer, newer.Merge(Options{}))
}

func TestMergeIdempotentAtFixedPoint(t *testing.T) {
	t.Parallel()

	old := Options{
		SiteURL:     strPtr("https://old.example.com"),
		ExcludeTags: []string{"nav", "footer"},
		Scrape:      &ScrapeOptions{Provider: map[string]any{"wait_for": 1000}},
	}
	newer := Options{Interval: intervalPtr(IntervalDaily), Limit: intPtr(100)}

	once := newer.Merge(old)
	twice := once.Merge(old)
	require.Equal(t, once, twice)
}

func TestScrapeOptionsIsProductFeed(t *testing.T) {
	t.Parallel()

	var unset *ScrapeOptions
	require.False(t, unset.IsProductFeed())
	require.False(t, (&ScrapeOptions{}).IsProductFeed())
	require.True(t, (&ScrapeOptions{ProductFeed: &ProductFeedOptions{StoreURL: "https://shop.example.com"}}).IsProductFeed())
}
