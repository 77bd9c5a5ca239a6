package casefinder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bull/oncodoc/internal/report"
)

// SummaryWindow is the recency window of ProcessingSummary.
const SummaryWindow = 7 * 24 * time.Hour

// Trends summarises one patient's timeline.
type Trends struct {
	PatientRef   string                    `json:"patient_ref"`
	TotalReports int                       `json:"total_reports"`
	ReportTypes  map[report.ReportType]int `json:"report_types"`
	LatestReport *Entry                    `json:"latest_report,omitempty"`
	SpanDays     int                       `json:"timeline_span_days"`
}

// TrendsFromTimeline computes trends from a newest-first timeline.
func TrendsFromTimeline(patientRef string, timeline []Entry) *Trends {
	t := &Trends{PatientRef: patientRef, ReportTypes: make(map[report.ReportType]int)}
	t.TotalReports = len(timeline)
	for _, e := range timeline {
		t.ReportTypes[e.ReportType]++
	}
	if len(timeline) > 0 {
		latest := timeline[0]
		t.LatestReport = &latest
	}
	if len(timeline) > 1 {
		span := timeline[0].CreatedAt.Sub(timeline[len(timeline)-1].CreatedAt)
		t.SpanDays = int(span / (24 * time.Hour))
	}
	return t
}

// Trends returns the patient's trends over the last daysBack days.
func (f *Finder) Trends(ctx context.Context, patientRef string, daysBack int) (*Trends, error) {
	timeline, err := f.Timeline(ctx, patientRef, daysBack)
	if err != nil {
		return nil, err
	}
	return TrendsFromTimeline(patientRef, timeline), nil
}

// PatientContext bundles what a reviewer needs about one patient.
type PatientContext struct {
	Trends       *Trends  `json:"patient_summary"`
	SimilarCases []Match  `json:"similar_cases"`
	Insights     []string `json:"medical_insights"`
}

// Context gathers trends, similar cases and insights for a patient. A
// patient without a recent reference report simply has no similar cases.
func (f *Finder) Context(ctx context.Context, patientRef string, daysBack int) (*PatientContext, error) {
	trends, err := f.Trends(ctx, patientRef, daysBack)
	if err != nil {
		return nil, err
	}
	similar, err := f.SimilarCases(ctx, patientRef, "", DefaultSimilarLimit)
	if err != nil && !errors.Is(err, ErrNoReference) {
		return nil, err
	}
	if similar == nil {
		similar = []Match{}
	}
	return &PatientContext{
		Trends:       trends,
		SimilarCases: similar,
		Insights:     Insights(trends, len(similar)),
	}, nil
}

// Insights derives review hints from trends and the number of similar cases.
func Insights(t *Trends, similarCases int) []string {
	insights := []string{}
	if t != nil && t.TotalReports > 0 {
		if t.TotalReports > 5 {
			insights = append(insights, fmt.Sprintf("Patient has extensive medical history with %d reports", t.TotalReports))
		}
		if t.ReportTypes[report.TypeBloodCount] > 0 {
			insights = append(insights, "Blood test monitoring indicates active treatment tracking")
		}
		if len(t.ReportTypes) > 2 {
			insights = append(insights, "Multi-modal monitoring suggests comprehensive care approach")
		}
	}
	if similarCases > 0 {
		insights = append(insights, fmt.Sprintf("Found %d similar patient cases for comparison", similarCases))
	}
	return insights
}

// ProcessingSummary describes the store contents.
type ProcessingSummary struct {
	TotalReports     int                       `json:"total_reports"`
	ReportsByType    map[report.ReportType]int `json:"reports_by_type"`
	RecentReports    int                       `json:"recent_reports_7_days"`
	DistinctPatients int                       `json:"distinct_patients"`
	GeneratedAt      time.Time                 `json:"generated_at"`
}

// Summary returns totals, per-type counts, reports created in the last seven
// days and the number of distinct patients.
func (f *Finder) Summary(ctx context.Context) (*ProcessingSummary, error) {
	now := f.cfg.Now()
	stats, err := f.store.Stats(ctx, now.Add(-SummaryWindow))
	if err != nil {
		return nil, fmt.Errorf("processing summary: %w", err)
	}
	return &ProcessingSummary{
		TotalReports:     stats.Total,
		ReportsByType:    stats.ByType,
		RecentReports:    stats.CreatedSince,
		DistinctPatients: stats.DistinctPatients,
		GeneratedAt:      now.UTC(),
	}, nil
}
