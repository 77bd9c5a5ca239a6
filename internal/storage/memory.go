package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store with brute-force cosine search. It backs
// tests and offline runs.
type MemoryStore struct {
	mu        sync.RWMutex
	docs      map[string]*Document
	dimension int
}

// NewMemoryStore creates an empty store. A positive dimension makes Upsert
// and Nearest reject vectors of any other size.
func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{
		docs:      make(map[string]*Document),
		dimension: dimension,
	}
}

func (s *MemoryStore) checkDimension(v []float32) error {
	if s.dimension > 0 && len(v) != s.dimension {
		return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(v), s.dimension)
	}
	return nil
}

// Upsert implements Store.
func (s *MemoryStore) Upsert(ctx context.Context, doc *Document) error {
	if err := doc.validate(); err != nil {
		return err
	}
	if err := s.checkDimension(doc.Embedding); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc.clone()
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return doc.clone(), nil
}

// Nearest implements Store.
func (s *MemoryStore) Nearest(ctx context.Context, vector []float32, filter Filter, limit int) ([]ScoredDocument, error) {
	if err := s.checkDimension(vector); err != nil {
		return nil, err
	}

	s.mu.RLock()
	candidates := make([]*Document, 0, len(s.docs))
	for _, d := range s.docs {
		if filter.matches(d) {
			candidates = append(candidates, d.clone())
		}
	}
	s.mu.RUnlock()

	return rankBySimilarity(vector, candidates, limit), nil
}

// ListByPatient implements Store.
func (s *MemoryStore) ListByPatient(ctx context.Context, patientRef string, since time.Time) ([]*Document, error) {
	s.mu.RLock()
	var docs []*Document
	for _, d := range s.docs {
		if d.PatientRef == patientRef && !d.CreatedAt.Before(since) {
			docs = append(docs, d.clone())
		}
	}
	s.mu.RUnlock()

	sortNewestFirst(docs)
	return docs, nil
}

// Stats implements Store.
func (s *MemoryStore) Stats(ctx context.Context, since time.Time) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b := newStatsBuilder(since)
	for _, d := range s.docs {
		b.add(d.ReportType, d.PatientRef, d.CreatedAt)
	}
	return b.result(), nil
}

// Health implements Store.
func (s *MemoryStore) Health(ctx context.Context) error { return nil }

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// Len returns the number of stored documents.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
