package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/crop-yield-analytics/internal/crop"
)

// MemoryStore is a concurrency-safe in-memory implementation of crop.Store.
type MemoryStore struct {
	mu sync.RWMutex

	// records in insertion order; byID indexes into it
	records []crop.Record
	byID    map[string]int

	// retention configuration
	maxRecords int // max number of records kept (0 = unlimited)
}

// NewMemoryStore creates a new MemoryStore.
// If maxRecords is <= 0, it is treated as unlimited.
func NewMemoryStore(maxRecords int) *MemoryStore {
	return &MemoryStore{
		byID:       make(map[string]int),
		maxRecords: maxRecords,
	}
}

// Save stores a copy of rec, replacing any record with the same id, and enforces retention.
func (s *MemoryStore) Save(_ context.Context, rec crop.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec = clone(rec)
	if i, ok := s.byID[rec.ID]; ok {
		s.records[i] = rec
		return nil
	}

	s.records = append(s.records, rec)
	s.byID[rec.ID] = len(s.records) - 1

	// Enforce retention by count, dropping the oldest inserts.
	if s.maxRecords > 0 && len(s.records) > s.maxRecords {
		over := len(s.records) - s.maxRecords
		s.records = append([]crop.Record(nil), s.records[over:]...)
		s.reindex()
	}
	return nil
}

// Get returns the record with the given id.
func (s *MemoryStore) Get(_ context.Context, id string) (crop.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byID[id]
	if !ok {
		return crop.Record{}, crop.ErrNotFound
	}
	return clone(s.records[i]), nil
}

// Find returns the records matching q. An empty result is not an error.
func (s *MemoryStore) Find(_ context.Context, q crop.Query) ([]crop.Record, error) {
	s.mu.RLock()
	result := make([]crop.Record, 0, len(s.records))
	for _, rec := range s.records {
		if q.Filter.Match(rec) {
			result = append(result, clone(rec))
		}
	}
	s.mu.RUnlock()

	switch q.Sort {
	case crop.SortNewest:
		sort.SliceStable(result, func(i, j int) bool {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		})
	case crop.SortYearDesc:
		sort.SliceStable(result, func(i, j int) bool {
			return result[i].CropYear > result[j].CropYear
		})
	}

	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

// DeleteBefore removes records created before cutoff.
func (s *MemoryStore) DeleteBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	for _, rec := range s.records {
		if rec.CreatedAt.Before(cutoff) {
			continue
		}
		kept = append(kept, rec)
	}
	removed := len(s.records) - len(kept)
	s.records = kept
	if removed > 0 {
		s.reindex()
	}
	return removed, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryStore) reindex() {
	s.byID = make(map[string]int, len(s.records))
	for i, rec := range s.records {
		s.byID[rec.ID] = i
	}
}

// clone detaches the optional and slice fields so callers cannot mutate stored state.
func clone(rec crop.Record) crop.Record {
	if rec.Production != nil {
		rec.Production = crop.Float(*rec.Production)
	}
	if rec.Yield != nil {
		rec.Yield = crop.Float(*rec.Yield)
	}
	if rec.Recommendations != nil {
		rec.Recommendations = append([]string(nil), rec.Recommendations...)
	}
	return rec
}
