package storage

import (
	"time"

	"github.com/bull/oncodoc/internal/report"
)

// Document is one processed report. It is written in a single upsert and
// replaced wholesale when the same source is processed again.
type Document struct {
	ID                string
	ReportType        report.ReportType
	RawContent        string
	NormalizedContent string
	Findings          report.Findings
	Flags             []string
	DoctorSummary     string
	PatientSummary    string
	Embedding         []float32
	EmbeddingSource   string // Provider that produced Embedding: "openai:<model>" or "fallback"
	PatientRef        string // Weak reference, lookup key only
	PatientID         string
	Source            string
	CreatedAt         time.Time
}

// ScoredDocument is a nearest-neighbour hit. Similarity is 1 - cosine distance.
type ScoredDocument struct {
	Document   *Document
	Similarity float64
}

// Filter restricts nearest-neighbour queries by equality. Empty fields match
// everything.
type Filter struct {
	PatientRef      string
	ReportType      report.ReportType
	EmbeddingSource string
}

// Stats summarises the store contents.
type Stats struct {
	Total            int
	ByType           map[report.ReportType]int
	CreatedSince     int // Documents created at or after the requested instant
	DistinctPatients int
}

// DefaultCollection is the Qdrant collection holding all reports.
const DefaultCollection = "medical_documents"

// validate checks the fields every backend relies on.
func (d *Document) validate() error {
	switch {
	case d == nil:
		return ErrInvalidDocument
	case d.ID == "":
		return ErrInvalidDocument
	case len(d.Embedding) == 0:
		return ErrInvalidDocument
	}
	return nil
}

func (d *Document) clone() *Document {
	c := *d
	c.Flags = append([]string(nil), d.Flags...)
	c.Embedding = append([]float32(nil), d.Embedding...)
	return &c
}

func (f Filter) matches(d *Document) bool {
	if f.PatientRef != "" && d.PatientRef != f.PatientRef {
		return false
	}
	if f.ReportType != "" && d.ReportType != f.ReportType {
		return false
	}
	if f.EmbeddingSource != "" && d.EmbeddingSource != f.EmbeddingSource {
		return false
	}
	return true
}

// statsBuilder accumulates Stats one document at a time.
type statsBuilder struct {
	stats    *Stats
	since    time.Time
	patients map[string]struct{}
}

func newStatsBuilder(since time.Time) *statsBuilder {
	return &statsBuilder{
		stats:    &Stats{ByType: make(map[report.ReportType]int)},
		since:    since,
		patients: make(map[string]struct{}),
	}
}

func (b *statsBuilder) add(t report.ReportType, patientRef string, createdAt time.Time) {
	b.stats.Total++
	b.stats.ByType[t]++
	if !createdAt.Before(b.since) {
		b.stats.CreatedSince++
	}
	if patientRef != "" {
		b.patients[patientRef] = struct{}{}
	}
}

func (b *statsBuilder) result() *Stats {
	b.stats.DistinctPatients = len(b.patients)
	return b.stats
}
