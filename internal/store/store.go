// Package store declares the persistence interface for crawl requests.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/seekforge/crawlsync/internal/ingest"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("crawl request not found")

// RequestRepository persists crawl requests. Implementations are expected to
// enforce the one-current-request-per-dataset property through their own
// transactional guarantees; callers do not coordinate it.
type RequestRepository interface {
	// Insert stores a new crawl request row.
	Insert(ctx context.Context, req ingest.CrawlRequest) error
	// GetByScrapeID loads the request correlated with an external job id, or
	// returns ErrNotFound.
	GetByScrapeID(ctx context.Context, scrapeID uuid.UUID) (ingest.CrawlRequest, error)
	// GetByDataset loads the dataset's current request, or returns
	// ErrNotFound. Absence is a normal outcome for callers like Reconfigure.
	GetByDataset(ctx context.Context, datasetID uuid.UUID) (ingest.CrawlRequest, error)
	// ListDue returns every request with next_crawl_at <= now.
	ListDue(ctx context.Context, now time.Time) ([]ingest.CrawlRequest, error)
	// UpdateStatus sets the status column for the request with the given
	// external job id.
	UpdateStatus(ctx context.Context, scrapeID uuid.UUID, status ingest.CrawlStatus) error
	// UpdateNextCrawlAt sets the next_crawl_at column for the request with
	// the given external job id. Status and next_crawl_at are written by
	// separate statements; readers must tolerate observing one without the
	// other.
	UpdateNextCrawlAt(ctx context.Context, scrapeID uuid.UUID, ts time.Time) error
	// UpdateNextCrawlAtByID sets the next_crawl_at column by request id.
	// Needed for feed-based requests, which carry no external job id.
	UpdateNextCrawlAtByID(ctx context.Context, id uuid.UUID, ts time.Time) error
	// UpdateURL overwrites the url column for the dataset's request.
	UpdateURL(ctx context.Context, datasetID uuid.UUID, url string) error
	// UpdateInterval overwrites the interval column (whole seconds) for the
	// dataset's request.
	UpdateInterval(ctx context.Context, datasetID uuid.UUID, seconds int64) error
	// UpdateOptions replaces the stored crawl options for the dataset's
	// request.
	UpdateOptions(ctx context.Context, datasetID uuid.UUID, opts ingest.Options) error
	// UpdateScrapeID repoints a request from one external job id to another
	// and returns the updated record.
	UpdateScrapeID(ctx context.Context, oldID, newID uuid.UUID) (ingest.CrawlRequest, error)
}
