package ingest

import "time"

// Interval names a recurrence period between successive crawl submissions.
type Interval string

// Supported recurrence intervals.
const (
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
)

// Duration converts the interval to its period. Unrecognized values fall
// back to daily, matching the submission default.
func (i Interval) Duration() time.Duration {
	switch i {
	case IntervalWeekly:
		return 7 * 24 * time.Hour
	case IntervalMonthly:
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// IntervalOrDefault resolves an optional interval to its period, defaulting
// to daily when unset.
func IntervalOrDefault(i *Interval) time.Duration {
	if i == nil {
		return IntervalDaily.Duration()
	}
	return i.Duration()
}

// Options is the crawl configuration for a dataset. All fields are optional;
// unset fields fall back to previously stored values on merge. Fields beyond
// site_url, interval and scrape_options are provider-specific configuration
// carried through to the submission payload.
type Options struct {
	SiteURL      *string        `json:"site_url,omitempty"`
	Interval     *Interval      `json:"interval,omitempty"`
	IncludePaths []string       `json:"include_paths,omitempty"`
	ExcludePaths []string       `json:"exclude_paths,omitempty"`
	IncludeTags  []string       `json:"include_tags,omitempty"`
	ExcludeTags  []string       `json:"exclude_tags,omitempty"`
	MaxDepth     *int           `json:"max_depth,omitempty"`
	Limit        *int           `json:"limit,omitempty"`
	BoostTitles  *bool          `json:"boost_titles,omitempty"`
	Scrape       *ScrapeOptions `json:"scrape_options,omitempty"`
}

// ScrapeOptions selects how pages are obtained. The product-feed case pulls
// a commerce-platform feed directly and bypasses the external crawler; the
// provider map is opaque configuration forwarded to the provider untouched.
type ScrapeOptions struct {
	ProductFeed *ProductFeedOptions `json:"product_feed,omitempty"`
	Provider    map[string]any      `json:"provider,omitempty"`
}

// ProductFeedOptions configures feed-based ingestion.
type ProductFeedOptions struct {
	StoreURL string `json:"store_url,omitempty"`
}

// IsProductFeed reports whether the options select the feed-based mode that
// needs no external crawl job.
func (s *ScrapeOptions) IsProductFeed() bool {
	return s != nil && s.ProductFeed != nil
}

// Merge combines o with previously stored options, field by field. Any field
// set in o wins; any field unset in o falls back to old. Neither receiver
// nor argument is mutated.
func (o Options) Merge(old Options) Options {
	merged := o
	if merged.SiteURL == nil {
		merged.SiteURL = old.SiteURL
	}
	if merged.Interval == nil {
		merged.Interval = old.Interval
	}
	if merged.IncludePaths == nil {
		merged.IncludePaths = old.IncludePaths
	}
	if merged.ExcludePaths == nil {
		merged.ExcludePaths = old.ExcludePaths
	}
	if merged.IncludeTags == nil {
		merged.IncludeTags = old.IncludeTags
	}
	if merged.ExcludeTags == nil {
		merged.ExcludeTags = old.ExcludeTags
	}
	if merged.MaxDepth == nil {
		merged.MaxDepth = old.MaxDepth
	}
	if merged.Limit == nil {
		merged.Limit = old.Limit
	}
	if merged.BoostTitles == nil {
		merged.BoostTitles = old.BoostTitles
	}
	if merged.Scrape == nil {
		merged.Scrape = old.Scrape
	}
	return merged
}
