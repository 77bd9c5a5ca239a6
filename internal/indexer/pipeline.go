// Package indexer sequences report processing from raw text to a stored,
// embedded document, one report at a time or as an isolated batch.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bull/oncodoc/internal/clinical"
	"github.com/bull/oncodoc/internal/embedding"
	"github.com/bull/oncodoc/internal/enrich"
	"github.com/bull/oncodoc/internal/report"
	"github.com/bull/oncodoc/internal/storage"
	"github.com/bull/oncodoc/internal/summary"
)

var (
	// ErrEmptyInput is returned when the report has no text after normalization.
	ErrEmptyInput = errors.New("report text is empty")
	// ErrMissingEmbedding is returned when no vector could be produced, in
	// which case the document is not stored.
	ErrMissingEmbedding = errors.New("embedding missing")
)

// DefaultStoreTimeout bounds a single store upsert.
const DefaultStoreTimeout = 15 * time.Second

// documentNamespace derives document IDs from sources and content.
var documentNamespace = uuid.MustParse("0b6c7f8e-2d3a-5c41-8e9f-a1b2c3d4e5f6")

// Classifier assigns a report type to normalized text.
type Classifier interface {
	Classify(text string) report.ReportType
}

// FindingsExtractor extracts findings for a classified report.
type FindingsExtractor interface {
	Extract(t report.ReportType, text string) report.Findings
}

// Embedder produces the vector for enriched report text.
type Embedder interface {
	Embed(ctx context.Context, text string) (embedding.Result, error)
	Dimension() int
}

// Components are the collaborators a Pipeline sequences.
type Components struct {
	Classifier Classifier
	Extractors FindingsExtractor
	Rules      *clinical.Engine
	Enricher   *enrich.Enricher
	Embedder   Embedder
	Store      storage.Store
}

// Source is one report to process with its caller-supplied metadata.
type Source struct {
	// ID overrides the derived document ID.
	ID             string
	Text           string
	PatientName    string
	PatientID      string
	Source         string
	ReportTypeHint string
	// Timestamp is parsed leniently; unparseable values are dropped.
	Timestamp string
	// Sections are heading sections of a markdown report, keyed by heading
	// path. They are added to the labelled sections found in the text.
	Sections map[string]string
}

// Result is the outcome of processing one report.
type Result struct {
	DocumentID         string              `json:"document_id"`
	ReportType         report.ReportType   `json:"report_type"`
	Findings           report.Findings     `json:"structured_findings"`
	Flags              []string            `json:"flags"`
	Alerts             []report.Alert      `json:"alerts"`
	AlertLevel         clinical.AlertLevel `json:"alert_level"`
	DoctorSummary      string              `json:"doctor_summary"`
	PatientSummary     string              `json:"patient_summary"`
	EmbeddingDimension int                 `json:"embedding_dimension"`
	EmbeddingSource    string              `json:"embedding_source"`
	EmbeddingDegraded  bool                `json:"embedding_degraded,omitempty"`
	PatientRef         string              `json:"patient_ref,omitempty"`
	HintMismatch       bool                `json:"hint_mismatch,omitempty"`
	Patient            report.PatientInfo  `json:"patient"`
	Metadata           report.Metadata     `json:"metadata"`
	Sections           map[string]string   `json:"sections,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStoreTimeout bounds each store upsert.
func WithStoreTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.storeTimeout = d
		}
	}
}

// WithWorkers sets how many reports a batch processes concurrently.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithClock replaces time.Now for created_at stamping.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// Pipeline orchestrates normalization, classification, extraction, rules,
// summaries, enrichment, embedding and storage.
type Pipeline struct {
	classifier   Classifier
	extractors   FindingsExtractor
	rules        *clinical.Engine
	enricher     *enrich.Enricher
	embedder     Embedder
	store        storage.Store
	storeTimeout time.Duration
	workers      int
	now          func() time.Time
	logger       *slog.Logger
}

// NewPipeline creates a pipeline. Nil rules and enricher select the
// defaults; the classifier, extractors, embedder and store are required.
func NewPipeline(c Components, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if c.Rules == nil {
		c.Rules = clinical.NewEngine(clinical.DefaultThresholds())
	}
	if c.Enricher == nil {
		c.Enricher = enrich.New(nil)
	}
	p := &Pipeline{
		classifier:   c.Classifier,
		extractors:   c.Extractors,
		rules:        c.Rules,
		enricher:     c.Enricher,
		embedder:     c.Embedder,
		store:        c.Store,
		storeTimeout: DefaultStoreTimeout,
		workers:      DefaultWorkers,
		now:          time.Now,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DocumentID returns the ID a source is stored under. Sources with the same
// ID, or else the same location, or else the same normalized text, map to
// the same document.
func DocumentID(src Source, normalized string) string {
	switch {
	case strings.TrimSpace(src.ID) != "":
		return strings.TrimSpace(src.ID)
	case strings.TrimSpace(src.Source) != "":
		return uuid.NewSHA1(documentNamespace, []byte("source:"+strings.TrimSpace(src.Source))).String()
	default:
		return uuid.NewSHA1(documentNamespace, []byte("content:"+normalized)).String()
	}
}

// Process runs one report through the pipeline and upserts it. Extraction
// gaps and embedding failures degrade; only empty input, a missing vector
// or a store failure fail the report.
func (p *Pipeline) Process(ctx context.Context, src Source) (*Result, error) {
	normalized := report.Normalize(src.Text)
	if strings.TrimSpace(normalized) == "" {
		return nil, ErrEmptyInput
	}
	id := DocumentID(src, normalized)

	reportType := p.classifier.Classify(normalized)
	hintMismatch := false
	if hint := strings.TrimSpace(src.ReportTypeHint); hint != "" {
		if hinted := report.ParseReportType(strings.ToLower(hint)); hinted != reportType {
			hintMismatch = true
			p.logger.Warn("Report type hint disagrees with classifier",
				"id", id, "hint", hint, "classified", reportType)
		}
	}

	findings := p.extractors.Extract(reportType, normalized)
	assessment := p.rules.Evaluate(findings)
	summaries := summary.Generate(findings, assessment.Flags)
	p.logger.Debug("Extracted findings", "id", id, "type", reportType, "flags", len(assessment.Flags))

	patient := report.ExtractPatientInfo(normalized)
	meta := report.ExtractMetadata(normalized)
	patientRef := firstNonEmpty(src.PatientName, src.PatientID, patient.Name, patient.ID)

	createdAt := p.now().UTC()
	timestamp, ok := enrich.ParseTimestamp(src.Timestamp)
	if !ok && strings.TrimSpace(src.Timestamp) != "" {
		p.logger.Warn("Ignoring unparseable timestamp", "id", id, "timestamp", src.Timestamp)
	}
	if !ok {
		timestamp, ok = enrich.ParseTimestamp(meta.ReportDate)
	}
	if ok {
		createdAt = timestamp.UTC()
	}

	enriched := p.enricher.Enrich(enrich.Input{
		ReportType: reportType,
		PatientRef: patientRef,
		Timestamp:  timestamp,
		Content:    normalized,
		Highlights: summary.Highlights(summaries.Doctor),
	})
	emb, err := p.embedder.Embed(ctx, enriched)
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", id, err)
	}
	if len(emb.Vector) == 0 {
		return nil, fmt.Errorf("embed %s: %w", id, ErrMissingEmbedding)
	}

	doc := &storage.Document{
		ID:                id,
		ReportType:        reportType,
		RawContent:        src.Text,
		NormalizedContent: normalized,
		Findings:          findings,
		Flags:             assessment.Flags,
		DoctorSummary:     summaries.Doctor,
		PatientSummary:    summaries.Patient,
		Embedding:         emb.Vector,
		EmbeddingSource:   emb.Source,
		PatientRef:        patientRef,
		PatientID:         firstNonEmpty(src.PatientID, patient.ID),
		Source:            src.Source,
		CreatedAt:         createdAt,
	}

	storeCtx, cancel := context.WithTimeout(ctx, p.storeTimeout)
	defer cancel()
	if err := p.store.Upsert(storeCtx, doc); err != nil {
		return nil, fmt.Errorf("store %s: %w", id, err)
	}

	p.logger.Info("Processed report",
		"id", id,
		"type", reportType,
		"flags", len(assessment.Flags),
		"embedding_source", emb.Source,
	)

	return &Result{
		DocumentID:         id,
		ReportType:         reportType,
		Findings:           findings,
		Flags:              assessment.Flags,
		Alerts:             assessment.Alerts,
		AlertLevel:         assessment.AlertLevel,
		DoctorSummary:      summaries.Doctor,
		PatientSummary:     summaries.Patient,
		EmbeddingDimension: len(emb.Vector),
		EmbeddingSource:    emb.Source,
		EmbeddingDegraded:  emb.Degraded,
		PatientRef:         patientRef,
		HintMismatch:       hintMismatch,
		Patient:            patient,
		Metadata:           meta,
		Sections:           mergeSections(report.ExtractSections(normalized), src.Sections),
		CreatedAt:          createdAt,
	}, nil
}

// mergeSections adds heading sections to labelled ones. A labelled section
// keeps its body when both use the same key.
func mergeSections(labelled, headings map[string]string) map[string]string {
	for k, v := range headings {
		if _, ok := labelled[k]; ok || strings.TrimSpace(v) == "" {
			continue
		}
		labelled[k] = v
	}
	return labelled
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
