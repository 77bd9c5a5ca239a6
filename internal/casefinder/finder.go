// Package casefinder answers read-side questions over stored reports:
// patient timelines, semantic search and cross-patient similar cases.
package casefinder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/bull/oncodoc/internal/embedding"
	"github.com/bull/oncodoc/internal/enrich"
	"github.com/bull/oncodoc/internal/report"
	"github.com/bull/oncodoc/internal/storage"
	"github.com/bull/oncodoc/internal/summary"
)

var (
	// ErrNoReference is returned when a patient has no recent report to use
	// as the similar-case query.
	ErrNoReference = errors.New("no reference report for patient")
	// ErrPatientRequired is returned when a patient reference is empty.
	ErrPatientRequired = errors.New("patient reference required")
	// ErrEmptyQuery is returned for blank search text.
	ErrEmptyQuery = errors.New("search query is empty")
)

// Defaults for Config fields left zero.
const (
	DefaultThreshold       = 0.7
	DefaultSearchLimit     = 10
	DefaultSimilarLimit    = 5
	DefaultReferenceWindow = 90 * 24 * time.Hour
	DefaultTimelineDays    = 365
)

// Embedder produces query vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) (embedding.Result, error)
}

// Config tunes the finder.
type Config struct {
	// Threshold is the minimum similarity a match must reach. Zero selects
	// DefaultThreshold; a negative value admits every match.
	Threshold float64
	// ReferenceWindow bounds how old a patient's latest report may be to
	// serve as the similar-case query.
	ReferenceWindow time.Duration
	Now             func() time.Time
}

// Finder runs timeline and similarity queries against a store.
type Finder struct {
	store    storage.Store
	embedder Embedder
	enricher *enrich.Enricher
	cfg      Config
	logger   *slog.Logger
}

// New creates a finder. A nil enricher selects the default vocabulary.
func New(store storage.Store, embedder Embedder, enricher *enrich.Enricher, cfg Config, logger *slog.Logger) *Finder {
	if logger == nil {
		logger = slog.Default()
	}
	if enricher == nil {
		enricher = enrich.New(nil)
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.ReferenceWindow <= 0 {
		cfg.ReferenceWindow = DefaultReferenceWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Finder{store: store, embedder: embedder, enricher: enricher, cfg: cfg, logger: logger}
}

// Entry is a stored report as returned by queries.
type Entry struct {
	ID             string            `json:"id"`
	ReportType     report.ReportType `json:"report_type"`
	PatientRef     string            `json:"patient_ref,omitempty"`
	Source         string            `json:"source,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	Content        string            `json:"content"`
	Findings       report.Findings   `json:"structured_findings,omitempty"`
	Flags          []string          `json:"flags"`
	DoctorSummary  string            `json:"doctor_summary,omitempty"`
	PatientSummary string            `json:"patient_summary,omitempty"`
}

// Match is an Entry with its similarity to the query, rounded to 4 decimals.
type Match struct {
	Entry
	Similarity float64 `json:"similarity"`
}

func entryFrom(d *storage.Document) Entry {
	return Entry{
		ID:             d.ID,
		ReportType:     d.ReportType,
		PatientRef:     d.PatientRef,
		Source:         d.Source,
		CreatedAt:      d.CreatedAt,
		Content:        d.NormalizedContent,
		Findings:       d.Findings,
		Flags:          d.Flags,
		DoctorSummary:  d.DoctorSummary,
		PatientSummary: d.PatientSummary,
	}
}

// Timeline returns the patient's reports from the last daysBack days, newest
// first. A non-positive daysBack returns the whole history.
func (f *Finder) Timeline(ctx context.Context, patientRef string, daysBack int) ([]Entry, error) {
	patientRef = strings.TrimSpace(patientRef)
	if patientRef == "" {
		return nil, ErrPatientRequired
	}
	var since time.Time
	if daysBack > 0 {
		since = f.cfg.Now().AddDate(0, 0, -daysBack)
	}

	docs, err := f.store.ListByPatient(ctx, patientRef, since)
	if err != nil {
		return nil, fmt.Errorf("timeline: %w", err)
	}
	entries := make([]Entry, len(docs))
	for i, d := range docs {
		entries[i] = entryFrom(d)
	}
	f.logger.Debug("Retrieved timeline", "patient", patientRef, "reports", len(entries))
	return entries, nil
}

// SearchOptions narrows a semantic search.
type SearchOptions struct {
	PatientRef string
	ReportType report.ReportType
	Limit      int
	// Threshold overrides the configured minimum similarity when non-nil.
	Threshold *float64
}

// Search embeds query the way reports are embedded and returns the nearest
// reports at or above the similarity threshold. Only reports embedded by the
// same provider as the query are compared.
func (f *Finder) Search(ctx context.Context, query string, opts SearchOptions) ([]Match, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultSearchLimit
	}
	threshold := f.cfg.Threshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}

	emb, err := f.embedder.Embed(ctx, f.enricher.Enrich(enrich.Input{
		ReportType: opts.ReportType,
		Content:    query,
	}))
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits, err := f.store.Nearest(ctx, emb.Vector, storage.Filter{
		PatientRef:      strings.TrimSpace(opts.PatientRef),
		ReportType:      opts.ReportType,
		EmbeddingSource: emb.Source,
	}, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	matches := make([]Match, 0, len(hits))
	for _, h := range hits {
		if h.Similarity < threshold {
			continue
		}
		matches = append(matches, Match{Entry: entryFrom(h.Document), Similarity: round4(h.Similarity)})
	}
	f.logger.Info("Semantic search", "matches", len(matches), "query", preview(query, 50))
	return matches, nil
}

// SimilarCases uses the patient's most recent report as the query and
// returns the closest reports of other patients. Reports of the same
// patient are never returned, however close they are.
func (f *Finder) SimilarCases(ctx context.Context, patientRef string, reportType report.ReportType, limit int) ([]Match, error) {
	patientRef = strings.TrimSpace(patientRef)
	if patientRef == "" {
		return nil, ErrPatientRequired
	}
	if limit <= 0 {
		limit = DefaultSimilarLimit
	}

	history, err := f.store.ListByPatient(ctx, patientRef, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("similar cases: %w", err)
	}
	if len(history) == 0 || history[0].CreatedAt.Before(f.cfg.Now().Add(-f.cfg.ReferenceWindow)) {
		return nil, fmt.Errorf("%w: %s", ErrNoReference, patientRef)
	}
	ref := history[0]

	// Patient identity stays out of the query text.
	emb, err := f.embedder.Embed(ctx, f.enricher.Enrich(enrich.Input{
		ReportType: ref.ReportType,
		Content:    ref.NormalizedContent,
		Highlights: summary.Highlights(ref.DoctorSummary),
	}))
	if err != nil {
		return nil, fmt.Errorf("similar cases: %w", err)
	}

	// The patient's own reports are filtered out here, so widen the window
	// until enough other-patient matches remain or the store runs dry.
	filter := storage.Filter{ReportType: reportType, EmbeddingSource: emb.Source}
	var matches []Match
	for k := limit + len(history); ; k *= 2 {
		hits, err := f.store.Nearest(ctx, emb.Vector, filter, k)
		if err != nil {
			return nil, fmt.Errorf("similar cases: %w", err)
		}
		var exhausted bool
		matches, exhausted = f.otherPatients(hits, patientRef, limit)
		if len(matches) == limit || exhausted || len(hits) < k {
			break
		}
	}
	f.logger.Info("Found similar cases", "patient", patientRef, "reference", ref.ID, "matches", len(matches))
	return matches, nil
}

// otherPatients keeps up to limit hits above the threshold that belong to
// other patients. exhausted is set once a hit falls below the threshold,
// since hits arrive in descending similarity.
func (f *Finder) otherPatients(hits []storage.ScoredDocument, patientRef string, limit int) (matches []Match, exhausted bool) {
	matches = make([]Match, 0, limit)
	for _, h := range hits {
		if len(matches) == limit {
			break
		}
		if h.Similarity < f.cfg.Threshold {
			return matches, true
		}
		if samePatient(h.Document.PatientRef, patientRef) {
			continue
		}
		matches = append(matches, Match{Entry: entryFrom(h.Document), Similarity: round4(h.Similarity)})
	}
	return matches, false
}

func samePatient(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
