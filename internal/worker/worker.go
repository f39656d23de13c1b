// Package worker drives recurring crawl synchronization: it polls due
// requests, ingests finished provider jobs into chunk messages, and starts
// the next submission cycle.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/seekforge/crawlsync/internal/archive"
	"github.com/seekforge/crawlsync/internal/firecrawl"
	"github.com/seekforge/crawlsync/internal/ingest"
	"github.com/seekforge/crawlsync/internal/lifecycle"
	"github.com/seekforge/crawlsync/internal/metrics"
	"github.com/seekforge/crawlsync/internal/queue"
)

// runTimeout bounds a single scheduled pass over all due requests.
const runTimeout = 10 * time.Minute

// Fetcher is the provider surface the worker needs. *firecrawl.Client
// satisfies it.
type Fetcher interface {
	Submit(ctx context.Context, opts ingest.Options) (uuid.UUID, error)
	FetchAll(ctx context.Context, jobID uuid.UUID) (firecrawl.IngestResult, error)
}

// ChunkMessage is the unit published downstream for each segmented chunk.
type ChunkMessage struct {
	DatasetID uuid.UUID `json:"dataset_id"`
	RequestID uuid.UUID `json:"request_id"`
	SourceURL string    `json:"source_url,omitempty"`
	Title     string    `json:"title,omitempty"`
	Heading   string    `json:"heading,omitempty"`
	HTML      string    `json:"chunk_html"`
	Tags      []string  `json:"tags,omitempty"`
}

// Worker processes due crawl requests on a cron schedule.
type Worker struct {
	manager *lifecycle.Manager
	fetcher Fetcher
	archive archive.Store
	chunks  queue.Publisher
	clock   lifecycle.Clock
	logger  *zap.Logger
	cron    *cron.Cron
}

// New constructs a Worker.
func New(
	manager *lifecycle.Manager,
	fetcher Fetcher,
	snapshots archive.Store,
	chunks queue.Publisher,
	clock lifecycle.Clock,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		manager: manager,
		fetcher: fetcher,
		archive: snapshots,
		chunks:  chunks,
		clock:   clock,
		logger:  logger,
	}
}

// Start schedules RunOnce on the given cron expression ("@every 1m" style
// descriptors included). Overlapping runs are skipped, not queued.
func (w *Worker) Start(schedule string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if err := w.RunOnce(ctx); err != nil {
			w.logger.Error("crawl sync pass failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("parse worker schedule %q: %w", schedule, err)
	}
	w.cron = c
	c.Start()
	w.logger.Info("crawl sync worker started", zap.String("schedule", schedule))
	return nil
}

// Stop halts the schedule and waits for an in-flight run to finish.
func (w *Worker) Stop() {
	if w.cron == nil {
		return
	}
	<-w.cron.Stop().Done()
}

// RunOnce processes every request due as of now. Per-request failures are
// logged and counted; they do not abort the pass.
func (w *Worker) RunOnce(ctx context.Context) error {
	now := w.clock.Now()
	due, err := w.manager.ListDue(ctx, now)
	if err != nil {
		return fmt.Errorf("list due crawl requests: %w", err)
	}
	for _, req := range due {
		if err := w.sync(ctx, req, now); err != nil {
			metrics.ObserveSyncRun("error")
			w.logger.Error("crawl sync failed",
				zap.String("request_id", req.ID.String()),
				zap.String("dataset_id", req.DatasetID.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (w *Worker) sync(ctx context.Context, req ingest.CrawlRequest, now time.Time) error {
	// Feed-based requests have no provider job to poll. The feed is pulled
	// downstream; here they only advance to the next cycle.
	if req.Options.Scrape.IsProductFeed() || !req.ScrapeID.Valid {
		if err := w.manager.DeferRequest(ctx, req.ID, now.Add(req.Interval)); err != nil {
			return fmt.Errorf("defer feed request: %w", err)
		}
		metrics.ObserveSyncRun("feed")
		return nil
	}

	jobID := req.ScrapeID.UUID
	result, err := w.fetcher.FetchAll(ctx, jobID)
	if err != nil {
		return fmt.Errorf("fetch crawl results: %w", err)
	}
	metrics.ObserveDocuments(len(result.Data))

	switch result.Status {
	case firecrawl.StatusCompleted:
		if err := w.ingestResults(ctx, req, result); err != nil {
			return err
		}
		if err := w.rotate(ctx, req, now); err != nil {
			return err
		}
		metrics.ObserveSyncRun("completed")
		return nil
	case firecrawl.StatusFailed, firecrawl.StatusCancelled:
		if err := w.manager.SetStatus(ctx, jobID, ingest.CrawlStatus(result.Status)); err != nil {
			return fmt.Errorf("record terminal status: %w", err)
		}
		if err := w.manager.DeferRequest(ctx, req.ID, now.Add(req.Interval)); err != nil {
			return fmt.Errorf("defer terminal request: %w", err)
		}
		metrics.ObserveSyncRun(string(result.Status))
		return nil
	default:
		// Still running provider-side. Leave next_crawl_at alone so the
		// next pass polls again.
		if err := w.manager.SetStatus(ctx, jobID, ingest.StatusScraping); err != nil {
			return fmt.Errorf("record in-progress status: %w", err)
		}
		metrics.ObserveSyncRun("in_progress")
		return nil
	}
}

// ingestResults archives each document's snapshot and publishes one message
// per segmented chunk.
func (w *Worker) ingestResults(ctx context.Context, req ingest.CrawlRequest, result firecrawl.IngestResult) error {
	jobID := req.ScrapeID.UUID
	published := 0
	for i, doc := range result.Data {
		if doc == nil {
			continue
		}
		body := doc.Body()
		if body == "" {
			continue
		}

		key := fmt.Sprintf("%s/page-%05d.html", jobID, i)
		if err := w.archive.Put(ctx, key, []byte(body)); err != nil {
			return fmt.Errorf("archive page snapshot %s: %w", key, err)
		}

		tags := ingest.PathTags(doc.Metadata.SourceURL)
		for _, chunk := range ingest.SegmentHTML(body) {
			msg := ChunkMessage{
				DatasetID: req.DatasetID,
				RequestID: req.ID,
				SourceURL: doc.Metadata.SourceURL,
				Title:     doc.Metadata.Title,
				Heading:   chunk.Heading,
				HTML:      chunk.HTML,
				Tags:      tags,
			}
			payload, err := json.Marshal(msg)
			if err != nil {
				return fmt.Errorf("serialize chunk message: %w", err)
			}
			if err := w.chunks.Publish(ctx, payload); err != nil {
				return fmt.Errorf("publish chunk message: %w", err)
			}
			published++
		}
	}
	metrics.ObserveChunks(published)
	w.logger.Info("crawl results ingested",
		zap.String("job_id", jobID.String()),
		zap.Int("documents", len(result.Data)),
		zap.Int("chunks", published),
	)
	return nil
}

// rotate submits a fresh provider job with the request's current options,
// repoints the record to it, and schedules the next cycle.
func (w *Worker) rotate(ctx context.Context, req ingest.CrawlRequest, now time.Time) error {
	newID, err := w.fetcher.Submit(ctx, req.Options)
	if err != nil {
		return fmt.Errorf("resubmit crawl: %w", err)
	}
	if _, err := w.manager.RepointJob(ctx, req.ScrapeID.UUID, newID); err != nil {
		return fmt.Errorf("repoint crawl job: %w", err)
	}
	if err := w.manager.SetStatus(ctx, newID, ingest.StatusPending); err != nil {
		return fmt.Errorf("reset crawl status: %w", err)
	}
	if err := w.manager.SetNextCrawlAt(ctx, newID, now.Add(req.Interval)); err != nil {
		return fmt.Errorf("schedule next crawl: %w", err)
	}
	return nil
}
