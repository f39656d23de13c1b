package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/seekforge/crawlsync/internal/ingest"
	"github.com/seekforge/crawlsync/internal/store"
)

func newMockStore(t *testing.T) (*RequestStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	s, err := NewRequestStoreWithPool(mock)
	require.NoError(t, err)
	return s, mock
}

func sampleRequest() ingest.CrawlRequest {
	now := time.Unix(1700000000, 0).UTC()
	return ingest.CrawlRequest{
		ID:          uuid.New(),
		URL:         "https://docs.example.com",
		Status:      ingest.StatusPending,
		Interval:    24 * time.Hour,
		NextCrawlAt: now,
		Options:     ingest.Options{},
		ScrapeID:    uuid.NullUUID{UUID: uuid.New(), Valid: true},
		DatasetID:   uuid.New(),
		CreatedAt:   now,
	}
}

func requestRow(req ingest.CrawlRequest) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "url", "status", "next_crawl_at", "interval", "crawl_options",
		"scrape_id", "dataset_id", "created_at", "attempt_number",
	}).AddRow(
		req.ID, req.URL, string(req.Status), req.NextCrawlAt,
		int64(req.Interval/time.Second), []byte(`{}`),
		req.ScrapeID, req.DatasetID, req.CreatedAt, req.AttemptNumber,
	)
}

func TestInsertStoresRow(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	req := sampleRequest()

	mock.ExpectExec("INSERT INTO crawl_requests").
		WithArgs(
			req.ID, req.URL, string(req.Status), req.NextCrawlAt,
			int64(86400), []byte(`{}`),
			req.ScrapeID, req.DatasetID, req.CreatedAt, req.AttemptNumber,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Insert(context.Background(), req))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByScrapeID(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	req := sampleRequest()

	mock.ExpectQuery("SELECT (.+) FROM crawl_requests WHERE scrape_id").
		WithArgs(req.ScrapeID.UUID).
		WillReturnRows(requestRow(req))

	got, err := s.GetByScrapeID(context.Background(), req.ScrapeID.UUID)
	require.NoError(t, err)
	require.Equal(t, req.ID, got.ID)
	require.Equal(t, ingest.StatusPending, got.Status)
	require.Equal(t, 24*time.Hour, got.Interval)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByScrapeIDNotFound(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	scrapeID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM crawl_requests WHERE scrape_id").
		WithArgs(scrapeID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "url", "status", "next_crawl_at", "interval", "crawl_options",
			"scrape_id", "dataset_id", "created_at", "attempt_number",
		}))

	_, err := s.GetByScrapeID(context.Background(), scrapeID)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListDue(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	req := sampleRequest()
	now := req.NextCrawlAt.Add(time.Minute)

	mock.ExpectQuery("SELECT (.+) FROM crawl_requests WHERE next_crawl_at").
		WithArgs(now).
		WillReturnRows(requestRow(req))

	due, err := s.ListDue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, req.ID, due[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	scrapeID := uuid.New()

	mock.ExpectExec("UPDATE crawl_requests SET status").
		WithArgs(string(ingest.StatusFailed), scrapeID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.UpdateStatus(context.Background(), scrapeID, ingest.StatusFailed))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateNextCrawlAt(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	scrapeID := uuid.New()
	ts := time.Unix(1700003600, 0).UTC()

	mock.ExpectExec("UPDATE crawl_requests SET next_crawl_at").
		WithArgs(ts, scrapeID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.UpdateNextCrawlAt(context.Background(), scrapeID, ts))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateNextCrawlAtByID(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	id := uuid.New()
	ts := time.Unix(1700003600, 0).UTC()

	mock.ExpectExec("UPDATE crawl_requests SET next_crawl_at").
		WithArgs(ts, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.UpdateNextCrawlAtByID(context.Background(), id, ts))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateScrapeIDReturnsUpdatedRow(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	req := sampleRequest()
	newID := uuid.New()

	updated := req
	updated.ScrapeID = uuid.NullUUID{UUID: newID, Valid: true}
	mock.ExpectQuery("UPDATE crawl_requests SET scrape_id").
		WithArgs(newID, req.ScrapeID.UUID).
		WillReturnRows(requestRow(updated))

	got, err := s.UpdateScrapeID(context.Background(), req.ScrapeID.UUID, newID)
	require.NoError(t, err)
	require.True(t, got.ScrapeID.Valid)
	require.Equal(t, newID, got.ScrapeID.UUID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOptionsMarshalsJSON(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	datasetID := uuid.New()
	site := "https://shop.example.com"
	opts := ingest.Options{SiteURL: &site}

	mock.ExpectExec("UPDATE crawl_requests SET crawl_options").
		WithArgs([]byte(`{"site_url":"https://shop.example.com"}`), datasetID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.UpdateOptions(context.Background(), datasetID, opts))
	require.NoError(t, mock.ExpectationsWereMet())
}
