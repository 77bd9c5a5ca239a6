// Package storage persists processed reports and answers nearest-neighbour
// and patient timeline queries. Qdrant, SQLite and in-memory backends share
// the Store contract.
package storage

import (
	"context"
	"math"
	"sort"
	"time"
)

// Store is the document store contract consumed by the pipeline and the
// case finder. Implementations must be safe for concurrent use. Documents
// returned by read methods may omit Embedding.
type Store interface {
	// Upsert inserts doc or replaces the document with the same ID.
	Upsert(ctx context.Context, doc *Document) error
	// Get returns ErrDocumentNotFound for unknown IDs.
	Get(ctx context.Context, id string) (*Document, error)
	// Nearest returns up to limit documents matching filter, ordered by
	// descending similarity. No similarity threshold is applied.
	Nearest(ctx context.Context, vector []float32, filter Filter, limit int) ([]ScoredDocument, error)
	// ListByPatient returns the patient's documents created at or after
	// since, newest first.
	ListByPatient(ctx context.Context, patientRef string, since time.Time) ([]*Document, error)
	Stats(ctx context.Context, since time.Time) (*Stats, error)
	Health(ctx context.Context) error
	Close() error
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 if
// either is a zero vector or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// rankBySimilarity scores candidates against vector and keeps the top limit.
// Ties are broken by ID for stable ordering.
func rankBySimilarity(vector []float32, candidates []*Document, limit int) []ScoredDocument {
	scored := make([]ScoredDocument, 0, len(candidates))
	for _, d := range candidates {
		scored = append(scored, ScoredDocument{Document: d, Similarity: CosineSimilarity(vector, d.Embedding)})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].Document.ID < scored[j].Document.ID
	})
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

func sortNewestFirst(docs []*Document) {
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
}
