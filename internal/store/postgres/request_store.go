// Package postgres provides the Postgres-backed crawl request repository.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seekforge/crawlsync/internal/ingest"
	"github.com/seekforge/crawlsync/internal/store"
)

const requestColumns = "id, url, status, next_crawl_at, interval, crawl_options, scrape_id, dataset_id, created_at, attempt_number"

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pool is the subset of pgxpool.Pool the store needs; pgxmock implements it.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// RequestStore implements store.RequestRepository on Postgres.
type RequestStore struct {
	pool pool
}

// NewRequestStore connects a pool using the provided config.
func NewRequestStore(ctx context.Context, cfg Config) (*RequestStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RequestStore{pool: p}, nil
}

// NewRequestStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewRequestStoreWithPool(p pool) (*RequestStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RequestStore{pool: p}, nil
}

// Close releases the underlying pool resources.
func (s *RequestStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Insert stores a new crawl request row.
func (s *RequestStore) Insert(ctx context.Context, req ingest.CrawlRequest) error {
	optsJSON, err := json.Marshal(req.Options)
	if err != nil {
		return fmt.Errorf("marshal crawl options: %w", err)
	}
	query := `
		INSERT INTO crawl_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.pool.Exec(ctx, query,
		req.ID,
		req.URL,
		string(req.Status),
		req.NextCrawlAt,
		int64(req.Interval/time.Second),
		optsJSON,
		req.ScrapeID,
		req.DatasetID,
		req.CreatedAt,
		req.AttemptNumber,
	)
	if err != nil {
		return fmt.Errorf("insert crawl request: %w", err)
	}
	return nil
}

// GetByScrapeID loads the request correlated with an external job id.
func (s *RequestStore) GetByScrapeID(ctx context.Context, scrapeID uuid.UUID) (ingest.CrawlRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM crawl_requests WHERE scrape_id = $1`
	return s.scanRequest(s.pool.QueryRow(ctx, query, scrapeID))
}

// GetByDataset loads the dataset's current request.
func (s *RequestStore) GetByDataset(ctx context.Context, datasetID uuid.UUID) (ingest.CrawlRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM crawl_requests WHERE dataset_id = $1`
	return s.scanRequest(s.pool.QueryRow(ctx, query, datasetID))
}

// ListDue returns every request due for re-submission as of now.
func (s *RequestStore) ListDue(ctx context.Context, now time.Time) ([]ingest.CrawlRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM crawl_requests WHERE next_crawl_at <= $1`
	rows, err := s.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list due crawl requests: %w", err)
	}
	defer rows.Close()

	var requests []ingest.CrawlRequest
	for rows.Next() {
		req, err := s.scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due crawl requests: %w", err)
	}
	return requests, nil
}

// UpdateStatus sets the status column by external job id.
func (s *RequestStore) UpdateStatus(ctx context.Context, scrapeID uuid.UUID, status ingest.CrawlStatus) error {
	query := `UPDATE crawl_requests SET status = $1 WHERE scrape_id = $2`
	if _, err := s.pool.Exec(ctx, query, string(status), scrapeID); err != nil {
		return fmt.Errorf("update crawl status: %w", err)
	}
	return nil
}

// UpdateNextCrawlAt sets the next_crawl_at column by external job id.
func (s *RequestStore) UpdateNextCrawlAt(ctx context.Context, scrapeID uuid.UUID, ts time.Time) error {
	query := `UPDATE crawl_requests SET next_crawl_at = $1 WHERE scrape_id = $2`
	if _, err := s.pool.Exec(ctx, query, ts, scrapeID); err != nil {
		return fmt.Errorf("update next crawl at: %w", err)
	}
	return nil
}

// UpdateNextCrawlAtByID sets the next_crawl_at column by request id.
func (s *RequestStore) UpdateNextCrawlAtByID(ctx context.Context, id uuid.UUID, ts time.Time) error {
	query := `UPDATE crawl_requests SET next_crawl_at = $1 WHERE id = $2`
	if _, err := s.pool.Exec(ctx, query, ts, id); err != nil {
		return fmt.Errorf("update next crawl at: %w", err)
	}
	return nil
}

// UpdateURL overwrites the url column for the dataset's request.
func (s *RequestStore) UpdateURL(ctx context.Context, datasetID uuid.UUID, url string) error {
	query := `UPDATE crawl_requests SET url = $1 WHERE dataset_id = $2`
	if _, err := s.pool.Exec(ctx, query, url, datasetID); err != nil {
		return fmt.Errorf("update crawl url: %w", err)
	}
	return nil
}

// UpdateInterval overwrites the interval column (whole seconds) for the
// dataset's request.
func (s *RequestStore) UpdateInterval(ctx context.Context, datasetID uuid.UUID, seconds int64) error {
	query := `UPDATE crawl_requests SET interval = $1 WHERE dataset_id = $2`
	if _, err := s.pool.Exec(ctx, query, seconds, datasetID); err != nil {
		return fmt.Errorf("update crawl interval: %w", err)
	}
	return nil
}

// UpdateOptions replaces the stored crawl options for the dataset's request.
func (s *RequestStore) UpdateOptions(ctx context.Context, datasetID uuid.UUID, opts ingest.Options) error {
	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return fmt.Errorf("marshal crawl options: %w", err)
	}
	query := `UPDATE crawl_requests SET crawl_options = $1 WHERE dataset_id = $2`
	if _, err := s.pool.Exec(ctx, query, optsJSON, datasetID); err != nil {
		return fmt.Errorf("update crawl options: %w", err)
	}
	return nil
}

// UpdateScrapeID repoints a request to a new external job id and returns the
// updated record.
func (s *RequestStore) UpdateScrapeID(ctx context.Context, oldID, newID uuid.UUID) (ingest.CrawlRequest, error) {
	query := `
		UPDATE crawl_requests SET scrape_id = $1 WHERE scrape_id = $2
		RETURNING ` + requestColumns
	return s.scanRequest(s.pool.QueryRow(ctx, query, newID, oldID))
}

func (s *RequestStore) scanRequest(row pgx.Row) (ingest.CrawlRequest, error) {
	var req ingest.CrawlRequest
	var status string
	var intervalSecs int64
	var optsJSON []byte
	err := row.Scan(
		&req.ID,
		&req.URL,
		&status,
		&req.NextCrawlAt,
		&intervalSecs,
		&optsJSON,
		&req.ScrapeID,
		&req.DatasetID,
		&req.CreatedAt,
		&req.AttemptNumber,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ingest.CrawlRequest{}, store.ErrNotFound
		}
		return ingest.CrawlRequest{}, fmt.Errorf("scan crawl request: %w", err)
	}
	req.Status = ingest.CrawlStatus(status)
	req.Interval = time.Duration(intervalSecs) * time.Second
	if len(optsJSON) > 0 {
		if err := json.Unmarshal(optsJSON, &req.Options); err != nil {
			return ingest.CrawlRequest{}, fmt.Errorf("unmarshal crawl options: %w", err)
		}
	}
	return req, nil
}
