// Package memory provides an in-memory crawl request repository for local
// development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/seekforge/crawlsync/internal/ingest"
	"github.com/seekforge/crawlsync/internal/store"
)

// RequestStore implements store.RequestRepository with a mutex-guarded map.
type RequestStore struct {
	mu       sync.RWMutex
	requests map[uuid.UUID]ingest.CrawlRequest
}

// NewRequestStore constructs an empty store.
func NewRequestStore() *RequestStore {
	return &RequestStore{requests: make(map[uuid.UUID]ingest.CrawlRequest)}
}

// Insert stores a new crawl request.
func (s *RequestStore) Insert(_ context.Context, req ingest.CrawlRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = req
	return nil
}

// GetByScrapeID loads the request correlated with an external job id.
func (s *RequestStore) GetByScrapeID(_ context.Context, scrapeID uuid.UUID) (ingest.CrawlRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, req := range s.requests {
		if req.ScrapeID.Valid && req.ScrapeID.UUID == scrapeID {
			return req, nil
		}
	}
	return ingest.CrawlRequest{}, store.ErrNotFound
}

// GetByDataset loads the dataset's current request.
func (s *RequestStore) GetByDataset(_ context.Context, datasetID uuid.UUID) (ingest.CrawlRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, req := range s.requests {
		if req.DatasetID == datasetID {
			return req, nil
		}
	}
	return ingest.CrawlRequest{}, store.ErrNotFound
}

// ListDue returns every request with next_crawl_at <= now.
func (s *RequestStore) ListDue(_ context.Context, now time.Time) ([]ingest.CrawlRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []ingest.CrawlRequest
	for _, req := range s.requests {
		if req.Due(now) {
			due = append(due, req)
		}
	}
	return due, nil
}

// UpdateStatus sets the status of the request with the given job id.
func (s *RequestStore) UpdateStatus(_ context.Context, scrapeID uuid.UUID, status ingest.CrawlStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, req := range s.requests {
		if req.ScrapeID.Valid && req.ScrapeID.UUID == scrapeID {
			req.Status = status
			s.requests[id] = req
		}
	}
	return nil
}

// UpdateNextCrawlAt sets next_crawl_at of the request with the given job id.
func (s *RequestStore) UpdateNextCrawlAt(_ context.Context, scrapeID uuid.UUID, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, req := range s.requests {
		if req.ScrapeID.Valid && req.ScrapeID.UUID == scrapeID {
			req.NextCrawlAt = ts
			s.requests[id] = req
		}
	}
	return nil
}

// UpdateNextCrawlAtByID sets next_crawl_at of the request with the given id.
func (s *RequestStore) UpdateNextCrawlAtByID(_ context.Context, id uuid.UUID, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return store.ErrNotFound
	}
	req.NextCrawlAt = ts
	s.requests[id] = req
	return nil
}

// UpdateURL overwrites the url of the dataset's request.
func (s *RequestStore) UpdateURL(_ context.Context, datasetID uuid.UUID, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, req := range s.requests {
		if req.DatasetID == datasetID {
			req.URL = url
			s.requests[id] = req
		}
	}
	return nil
}

// UpdateInterval overwrites the interval of the dataset's request.
func (s *RequestStore) UpdateInterval(_ context.Context, datasetID uuid.UUID, seconds int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, req := range s.requests {
		if req.DatasetID == datasetID {
			req.Interval = time.Duration(seconds) * time.Second
			s.requests[id] = req
		}
	}
	return nil
}

// UpdateOptions replaces the stored options of the dataset's request.
func (s *RequestStore) UpdateOptions(_ context.Context, datasetID uuid.UUID, opts ingest.Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, req := range s.requests {
		if req.DatasetID == datasetID {
			req.Options = opts
			s.requests[id] = req
		}
	}
	return nil
}

// UpdateScrapeID repoints a request to a new external job id.
func (s *RequestStore) UpdateScrapeID(_ context.Context, oldID, newID uuid.UUID) (ingest.CrawlRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, req := range s.requests {
		if req.ScrapeID.Valid && req.ScrapeID.UUID == oldID {
			req.ScrapeID = uuid.NullUUID{UUID: newID, Valid: true}
			s.requests[id] = req
			return req, nil
		}
	}
	return ingest.CrawlRequest{}, store.ErrNotFound
}
