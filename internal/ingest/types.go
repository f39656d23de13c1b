// Package ingest defines the core types for recurring dataset ingestion:
// crawl requests, their recurrence options, and the heading-anchored
// segmentation of fetched HTML.
package ingest

import (
	"time"

	"github.com/google/uuid"
)

// CrawlStatus represents the lifecycle state of a crawl request.
type CrawlStatus string

// Crawl statuses persisted in crawl_requests.status.
const (
	StatusPending   CrawlStatus = "pending"
	StatusScraping  CrawlStatus = "scraping"
	StatusCompleted CrawlStatus = "completed"
	StatusFailed    CrawlStatus = "failed"
	StatusCancelled CrawlStatus = "cancelled"
)

// CrawlRequest is the persisted record of one dataset's recurring ingestion
// job. At most one logically-current request exists per dataset; that
// property is enforced by the persistence layer, not in process.
type CrawlRequest struct {
	// ID is the primary key of the crawl_requests row.
	ID uuid.UUID `json:"id"`
	// URL is the site being ingested.
	URL string `json:"url"`
	// Status is the current lifecycle state.
	Status CrawlStatus `json:"status"`
	// Interval is the recurrence period between submissions.
	Interval time.Duration `json:"interval"`
	// NextCrawlAt marks the request due for re-submission once it is <= now.
	NextCrawlAt time.Time `json:"next_crawl_at"`
	// Options holds the full crawl configuration, stored as JSON.
	Options Options `json:"crawl_options"`
	// ScrapeID correlates the request with a job at the external provider.
	// It is absent (Valid == false) for feed-based requests that bypass the
	// provider entirely.
	ScrapeID uuid.NullUUID `json:"scrape_id"`
	// DatasetID identifies the owning dataset.
	DatasetID uuid.UUID `json:"dataset_id"`
	// CreatedAt is when the request row was inserted.
	CreatedAt time.Time `json:"created_at"`
	// AttemptNumber counts submissions of this logical request.
	AttemptNumber int `json:"attempt_number"`
}

// Due reports whether the request should be re-submitted as of now.
func (r CrawlRequest) Due(now time.Time) bool {
	return !r.NextCrawlAt.After(now)
}
