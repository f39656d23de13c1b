package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	archivememory "github.com/seekforge/crawlsync/internal/archive/memory"
	"github.com/seekforge/crawlsync/internal/firecrawl"
	"github.com/seekforge/crawlsync/internal/ingest"
	"github.com/seekforge/crawlsync/internal/lifecycle"
	"github.com/seekforge/crawlsync/internal/metrics"
	queuememory "github.com/seekforge/crawlsync/internal/queue/memory"
	storememory "github.com/seekforge/crawlsync/internal/store/memory"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type fakeFetcher struct {
	results   map[uuid.UUID]firecrawl.IngestResult
	submitted []uuid.UUID
	fetched   []uuid.UUID
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{results: make(map[uuid.UUID]firecrawl.IngestResult)}
}

func (f *fakeFetcher) Submit(_ context.Context, _ ingest.Options) (uuid.UUID, error) {
	id := uuid.New()
	f.submitted = append(f.submitted, id)
	return id, nil
}

func (f *fakeFetcher) FetchAll(_ context.Context, jobID uuid.UUID) (firecrawl.IngestResult, error) {
	f.fetched = append(f.fetched, jobID)
	return f.results[jobID], nil
}

type testEnv struct {
	worker  *Worker
	manager *lifecycle.Manager
	repo    *storememory.RequestStore
	fetcher *fakeFetcher
	archive *archivememory.Store
	chunks  *queuememory.Queue
	now     time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	metrics.Init()

	repo := storememory.NewRequestStore()
	requests := queuememory.NewQueue(16)
	chunks := queuememory.NewQueue(64)
	t.Cleanup(func() {
		_ = requests.Close()
		_ = chunks.Close()
	})
	fetcher := newFakeFetcher()
	snapshots := archivememory.NewStore()
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	clock := fixedClock{now: now}

	manager := lifecycle.New(repo, requests, fetcher, clock, nil)
	w := New(manager, fetcher, snapshots, chunks, clock, nil)
	return &testEnv{
		worker:  w,
		manager: manager,
		repo:    repo,
		fetcher: fetcher,
		archive: snapshots,
		chunks:  chunks,
		now:     now,
	}
}

func (e *testEnv) submit(t *testing.T, opts ingest.Options) (uuid.NullUUID, uuid.UUID) {
	t.Helper()
	datasetID := uuid.New()
	jobID, err := e.manager.SubmitCrawl(context.Background(), opts, datasetID)
	require.NoError(t, err)
	return jobID, datasetID
}

func TestRunOnceIngestsCompletedJob(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	site := "https://docs.example.com"
	jobID, datasetID := env.submit(t, ingest.Options{SiteURL: &site})

	env.fetcher.results[jobID.UUID] = firecrawl.IngestResult{
		Status: firecrawl.StatusCompleted,
		Data: []*firecrawl.Document{
			{
				HTML: "<h1>Guide</h1>one two three four five six<h2>Install</h2>steps here",
				Metadata: firecrawl.Metadata{
					Title:     "Guide",
					SourceURL: "https://docs.example.com/guide/install",
				},
			},
		},
	}

	require.NoError(t, env.worker.RunOnce(context.Background()))

	// The raw page was archived before segmentation.
	require.Equal(t, 1, env.archive.Len())

	// Two heading-anchored chunks, each carrying the page's path tags.
	require.Equal(t, 2, env.chunks.Len())
	payload, err := env.chunks.Dequeue(context.Background())
	require.NoError(t, err)
	var msg ChunkMessage
	require.NoError(t, json.Unmarshal(payload, &msg))
	require.Equal(t, datasetID, msg.DatasetID)
	require.Equal(t, "Guide", msg.Heading)
	require.Equal(t, []string{"guide", "install"}, msg.Tags)
	require.Equal(t, "https://docs.example.com/guide/install", msg.SourceURL)

	payload, err = env.chunks.Dequeue(context.Background())
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(payload, &msg))
	require.Equal(t, "Install", msg.Heading)

	// The record now points at the fresh provider job and waits out the
	// interval.
	require.Len(t, env.fetcher.submitted, 2)
	newJobID := env.fetcher.submitted[1]
	req, err := env.repo.GetByScrapeID(context.Background(), newJobID)
	require.NoError(t, err)
	require.Equal(t, ingest.StatusPending, req.Status)
	require.Equal(t, env.now.Add(req.Interval), req.NextCrawlAt)

	_, err = env.repo.GetByScrapeID(context.Background(), jobID.UUID)
	require.Error(t, err)
}

func TestRunOnceLeavesInProgressJobDue(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	jobID, _ := env.submit(t, ingest.Options{})
	env.fetcher.results[jobID.UUID] = firecrawl.IngestResult{Status: firecrawl.StatusScraping}

	require.NoError(t, env.worker.RunOnce(context.Background()))

	require.Equal(t, 0, env.chunks.Len())
	require.Len(t, env.fetcher.submitted, 1)

	req, err := env.repo.GetByScrapeID(context.Background(), jobID.UUID)
	require.NoError(t, err)
	require.Equal(t, ingest.StatusScraping, req.Status)
	// Still due, so the next pass polls again.
	require.Equal(t, env.now, req.NextCrawlAt)
}

func TestRunOnceRecordsFailedJobAndDefers(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	jobID, _ := env.submit(t, ingest.Options{})
	env.fetcher.results[jobID.UUID] = firecrawl.IngestResult{Status: firecrawl.StatusFailed}

	require.NoError(t, env.worker.RunOnce(context.Background()))

	req, err := env.repo.GetByScrapeID(context.Background(), jobID.UUID)
	require.NoError(t, err)
	require.Equal(t, ingest.StatusFailed, req.Status)
	require.Equal(t, env.now.Add(req.Interval), req.NextCrawlAt)
	require.Equal(t, 0, env.chunks.Len())
}

func TestRunOnceDefersFeedBasedRequestWithoutFetching(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, datasetID := env.submit(t, ingest.Options{
		Scrape: &ingest.ScrapeOptions{ProductFeed: &ingest.ProductFeedOptions{StoreURL: "https://shop.example.com"}},
	})

	require.NoError(t, env.worker.RunOnce(context.Background()))

	require.Empty(t, env.fetcher.fetched)
	require.Equal(t, 0, env.chunks.Len())

	req, err := env.repo.GetByDataset(context.Background(), datasetID)
	require.NoError(t, err)
	require.Equal(t, ingest.StatusPending, req.Status)
	require.Equal(t, env.now.Add(req.Interval), req.NextCrawlAt)
}

func TestRunOnceSkipsEmptyDocumentSlots(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	jobID, _ := env.submit(t, ingest.Options{})
	env.fetcher.results[jobID.UUID] = firecrawl.IngestResult{
		Status: firecrawl.StatusCompleted,
		Data: []*firecrawl.Document{
			nil,
			{Markdown: "no html at all"},
		},
	}

	require.NoError(t, env.worker.RunOnce(context.Background()))

	require.Equal(t, 0, env.archive.Len())
	require.Equal(t, 0, env.chunks.Len())
	require.Len(t, env.fetcher.submitted, 2)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	err := env.worker.Start("not a schedule")
	require.Error(t, err)
}
