// Package lifecycle owns crawl request records: submission, lookup,
// recurrence bookkeeping, and reconfiguration.
package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seekforge/crawlsync/internal/ingest"
	"github.com/seekforge/crawlsync/internal/metrics"
	"github.com/seekforge/crawlsync/internal/queue"
	"github.com/seekforge/crawlsync/internal/store"
)

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}

// Submitter obtains an external job id for a set of crawl options.
// *firecrawl.Client satisfies it.
type Submitter interface {
	Submit(ctx context.Context, opts ingest.Options) (uuid.UUID, error)
}

// Manager coordinates the crawl request lifecycle. Operations are short,
// independent units of work: failures surface to the caller and nothing is
// retried here. There is no in-process locking; the one-request-per-dataset
// property is the store's concern.
type Manager struct {
	store     store.RequestRepository
	publisher queue.Publisher
	submitter Submitter
	clock     Clock
	logger    *zap.Logger
}

// New constructs a Manager.
func New(
	repo store.RequestRepository,
	publisher queue.Publisher,
	submitter Submitter,
	clock Clock,
	logger *zap.Logger,
) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:     repo,
		publisher: publisher,
		submitter: submitter,
		clock:     clock,
		logger:    logger,
	}
}

// SubmitCrawl starts a new submission cycle for the dataset. Feed-based
// options bypass the external provider entirely and yield an absent job id;
// everything else is submitted to the provider first. The new request is
// persisted with status pending and next_crawl_at set to now, then pushed
// onto the work queue as JSON.
func (m *Manager) SubmitCrawl(ctx context.Context, opts ingest.Options, datasetID uuid.UUID) (uuid.NullUUID, error) {
	var scrapeID uuid.NullUUID
	if opts.Scrape.IsProductFeed() {
		metrics.ObserveSubmission("feed")
	} else {
		jobID, err := m.submitter.Submit(ctx, opts)
		if err != nil {
			return uuid.NullUUID{}, fmt.Errorf("submit crawl to provider: %w", err)
		}
		scrapeID = uuid.NullUUID{UUID: jobID, Valid: true}
		metrics.ObserveSubmission("provider")
	}

	now := m.clock.Now()
	req := ingest.CrawlRequest{
		ID:          uuid.New(),
		Status:      ingest.StatusPending,
		Interval:    ingest.IntervalOrDefault(opts.Interval),
		NextCrawlAt: now,
		Options:     opts,
		ScrapeID:    scrapeID,
		DatasetID:   datasetID,
		CreatedAt:   now,
	}
	if opts.SiteURL != nil {
		req.URL = *opts.SiteURL
	}

	if err := m.store.Insert(ctx, req); err != nil {
		return uuid.NullUUID{}, fmt.Errorf("persist crawl request: %w", err)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return uuid.NullUUID{}, fmt.Errorf("serialize crawl request: %w", err)
	}
	if err := m.publisher.Publish(ctx, payload); err != nil {
		return uuid.NullUUID{}, fmt.Errorf("enqueue crawl request: %w", err)
	}

	m.logger.Info("crawl submitted",
		zap.String("dataset_id", datasetID.String()),
		zap.Bool("external_job", scrapeID.Valid),
	)
	return scrapeID, nil
}

// GetByJobID loads the request correlated with an external job id, or
// returns store.ErrNotFound.
func (m *Manager) GetByJobID(ctx context.Context, jobID uuid.UUID) (ingest.CrawlRequest, error) {
	return m.store.GetByScrapeID(ctx, jobID)
}

// GetByDataset loads the dataset's current request, or returns
// store.ErrNotFound.
func (m *Manager) GetByDataset(ctx context.Context, datasetID uuid.UUID) (ingest.CrawlRequest, error) {
	return m.store.GetByDataset(ctx, datasetID)
}

// ListDue returns all requests with next_crawl_at <= now, for the external
// recurring-task driver.
func (m *Manager) ListDue(ctx context.Context, now time.Time) ([]ingest.CrawlRequest, error) {
	return m.store.ListDue(ctx, now)
}

// SetStatus updates only the status column of the request with the given
// job id.
func (m *Manager) SetStatus(ctx context.Context, jobID uuid.UUID, status ingest.CrawlStatus) error {
	return m.store.UpdateStatus(ctx, jobID, status)
}

// SetNextCrawlAt updates only the next_crawl_at column of the request with
// the given job id.
func (m *Manager) SetNextCrawlAt(ctx context.Context, jobID uuid.UUID, ts time.Time) error {
	return m.store.UpdateNextCrawlAt(ctx, jobID, ts)
}

// DeferRequest pushes a request's next_crawl_at forward by its id. Used for
// feed-based requests, which have no external job id to key on.
func (m *Manager) DeferRequest(ctx context.Context, requestID uuid.UUID, ts time.Time) error {
	return m.store.UpdateNextCrawlAtByID(ctx, requestID, ts)
}

// Reconfigure merges the given options over the dataset's previously stored
// ones (new fields win), persists the merged options, overwrites the url and
// interval columns when the new options set them, and then starts a new
// submission cycle with the merged options. Reconfiguration is never just a
// settings update.
func (m *Manager) Reconfigure(ctx context.Context, opts ingest.Options, datasetID uuid.UUID) error {
	var previous ingest.Options
	havePrevious := false
	prev, err := m.store.GetByDataset(ctx, datasetID)
	switch {
	case err == nil:
		previous = prev.Options
		havePrevious = true
	case errors.Is(err, store.ErrNotFound):
		// First configuration for this dataset.
	default:
		return fmt.Errorf("load previous crawl options: %w", err)
	}

	if opts.SiteURL != nil {
		if err := m.store.UpdateURL(ctx, datasetID, *opts.SiteURL); err != nil {
			return fmt.Errorf("update crawl url: %w", err)
		}
	}
	if opts.Interval != nil {
		seconds := int64(opts.Interval.Duration() / time.Second)
		if err := m.store.UpdateInterval(ctx, datasetID, seconds); err != nil {
			return fmt.Errorf("update crawl interval: %w", err)
		}
	}

	merged := opts
	if havePrevious {
		merged = opts.Merge(previous)
	}
	if err := m.store.UpdateOptions(ctx, datasetID, merged); err != nil {
		return fmt.Errorf("update crawl options: %w", err)
	}

	if _, err := m.SubmitCrawl(ctx, merged, datasetID); err != nil {
		return err
	}
	return nil
}

// RepointJob moves a request from one external job id to another, used when
// re-submission yields a new provider job. Returns the updated record.
func (m *Manager) RepointJob(ctx context.Context, oldJobID, newJobID uuid.UUID) (ingest.CrawlRequest, error) {
	req, err := m.store.UpdateScrapeID(ctx, oldJobID, newJobID)
	if err != nil {
		return ingest.CrawlRequest{}, err
	}
	m.logger.Info("crawl job repointed",
		zap.String("old_job_id", oldJobID.String()),
		zap.String("new_job_id", newJobID.String()),
	)
	return req, nil
}
