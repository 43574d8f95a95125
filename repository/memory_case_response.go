package repository

import (
	"context"
	"sync"
	"time"

	"casebrief-backend/models"
)

type storedResponse struct {
	data      []byte
	createdAt time.Time
}

// MemoryCaseResponseStore keeps serialized analysis results in memory
type MemoryCaseResponseStore struct {
	mu      sync.RWMutex
	records map[string]storedResponse
}

// NewMemoryCaseResponseStore creates an empty store
func NewMemoryCaseResponseStore() *MemoryCaseResponseStore {
	return &MemoryCaseResponseStore{records: make(map[string]storedResponse)}
}

// Put stores the result under caseID, replacing any previous record
func (s *MemoryCaseResponseStore) Put(_ context.Context, caseID string, result *models.AnalysisResult) error {
	data, err := encodeResult(result)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.records[caseID] = storedResponse{data: data, createdAt: time.Now().UTC()}
	s.mu.Unlock()
	return nil
}

// GetRaw returns a copy of the stored bytes
func (s *MemoryCaseResponseStore) GetRaw(_ context.Context, caseID string) ([]byte, error) {
	s.mu.RLock()
	rec, ok := s.records[caseID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrCaseNotFound
	}
	out := make([]byte, len(rec.data))
	copy(out, rec.data)
	return out, nil
}

// Get returns the stored result for caseID or ErrCaseNotFound
func (s *MemoryCaseResponseStore) Get(ctx context.Context, caseID string) (*models.AnalysisResult, error) {
	data, err := s.GetRaw(ctx, caseID)
	if err != nil {
		return nil, err
	}
	return decodeResult(data)
}

// CreatedAt reports when caseID was last written
func (s *MemoryCaseResponseStore) CreatedAt(caseID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[caseID]
	return rec.createdAt, ok
}
