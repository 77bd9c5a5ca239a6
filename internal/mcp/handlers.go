package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/oncodoc/internal/casefinder"
	"github.com/bull/oncodoc/internal/indexer"
	"github.com/bull/oncodoc/internal/report"
	"github.com/bull/oncodoc/internal/storage"
)

const contentPreviewRunes = 300

// makeProcessHandler creates the process_report tool handler.
// The report is classified, extracted, checked, summarized, embedded and
// stored before the result is returned.
func makeProcessHandler(pipeline *indexer.Pipeline) func(
	context.Context, *mcp.CallToolRequest, ProcessReportInput,
) (*mcp.CallToolResult, ProcessReportOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ProcessReportInput) (
		*mcp.CallToolResult, ProcessReportOutput, error,
	) {
		res, err := pipeline.Process(ctx, indexer.Source{
			Text:           input.Text,
			PatientName:    input.PatientName,
			PatientID:      input.PatientID,
			Source:         input.Source,
			ReportTypeHint: input.ReportType,
			Timestamp:      input.Timestamp,
		})
		if err != nil {
			return nil, ProcessReportOutput{}, fmt.Errorf("failed to process report: %w", err)
		}

		alerts := make([]AlertOutput, 0, len(res.Alerts))
		for _, a := range res.Alerts {
			alerts = append(alerts, AlertOutput{
				Message:     a.Message,
				Severity:    string(a.Severity),
				SourceField: a.SourceField,
			})
		}

		return nil, ProcessReportOutput{
			DocumentID:        res.DocumentID,
			ReportType:        string(res.ReportType),
			Findings:          res.Findings,
			Flags:             report.OrEmpty(res.Flags),
			Alerts:            alerts,
			AlertLevel:        string(res.AlertLevel),
			DoctorSummary:     res.DoctorSummary,
			PatientSummary:    res.PatientSummary,
			PatientRef:        res.PatientRef,
			HintMismatch:      res.HintMismatch,
			EmbeddingSource:   res.EmbeddingSource,
			EmbeddingDegraded: res.EmbeddingDegraded,
			CreatedAt:         res.CreatedAt.Format(time.RFC3339),
		}, nil
	}
}

// makeSearchHandler creates the search_reports tool handler.
func makeSearchHandler(finder *casefinder.Finder) func(
	context.Context, *mcp.CallToolRequest, SearchReportsInput,
) (*mcp.CallToolResult, SearchReportsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchReportsInput) (
		*mcp.CallToolResult, SearchReportsOutput, error,
	) {
		reportType, err := parseReportTypeFilter(input.ReportType)
		if err != nil {
			return nil, SearchReportsOutput{}, err
		}

		opts := casefinder.SearchOptions{
			PatientRef: input.PatientRef,
			ReportType: reportType,
			Limit:      input.MaxResults,
		}
		if input.MinScore > 0 {
			minScore := input.MinScore
			opts.Threshold = &minScore
		}

		matches, err := finder.Search(ctx, input.Query, opts)
		if err != nil {
			return nil, SearchReportsOutput{}, fmt.Errorf("search failed: %w", err)
		}

		if len(matches) == 0 {
			return nil, SearchReportsOutput{
				Results: []ReportMatch{},
				Message: "No matching reports found. Try broader search terms.",
			}, nil
		}
		return nil, SearchReportsOutput{Results: toMatches(matches)}, nil
	}
}

// makeFetchHandler creates the fetch_report tool handler.
func makeFetchHandler(store storage.Store) func(
	context.Context, *mcp.CallToolRequest, FetchReportInput,
) (*mcp.CallToolResult, FetchReportOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input FetchReportInput) (
		*mcp.CallToolResult, FetchReportOutput, error,
	) {
		id := strings.TrimSpace(input.DocumentID)
		doc, err := store.Get(ctx, id)
		if err != nil {
			// Return helpful response for not found
			if errors.Is(err, storage.ErrDocumentNotFound) {
				return nil, FetchReportOutput{Found: false, DocumentID: id}, nil
			}
			return nil, FetchReportOutput{}, fmt.Errorf("failed to fetch report: %w", err)
		}

		entry := ReportEntry{
			DocumentID:    doc.ID,
			ReportType:    string(doc.ReportType),
			PatientRef:    doc.PatientRef,
			Source:        doc.Source,
			CreatedAt:     doc.CreatedAt.Format(time.RFC3339),
			Flags:         report.OrEmpty(doc.Flags),
			DoctorSummary: doc.DoctorSummary,
			Content:       doc.NormalizedContent,
		}
		return nil, FetchReportOutput{
			Found:          true,
			DocumentID:     doc.ID,
			Report:         &entry,
			Findings:       doc.Findings,
			PatientSummary: doc.PatientSummary,
		}, nil
	}
}

// makeTimelineHandler creates the patient_timeline tool handler.
func makeTimelineHandler(finder *casefinder.Finder) func(
	context.Context, *mcp.CallToolRequest, PatientTimelineInput,
) (*mcp.CallToolResult, PatientTimelineOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input PatientTimelineInput) (
		*mcp.CallToolResult, PatientTimelineOutput, error,
	) {
		entries, err := finder.Timeline(ctx, input.PatientRef, daysBack(input.DaysBack))
		if err != nil {
			return nil, PatientTimelineOutput{}, fmt.Errorf("failed to load timeline: %w", err)
		}

		reports := make([]ReportEntry, 0, len(entries))
		for _, e := range entries {
			reports = append(reports, toEntry(e))
		}
		return nil, PatientTimelineOutput{
			PatientRef: strings.TrimSpace(input.PatientRef),
			Reports:    reports,
			Count:      len(reports),
		}, nil
	}
}

// makeSimilarHandler creates the similar_cases tool handler. A patient
// without a recent reference report gets an empty result, not an error.
func makeSimilarHandler(finder *casefinder.Finder) func(
	context.Context, *mcp.CallToolRequest, SimilarCasesInput,
) (*mcp.CallToolResult, SimilarCasesOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SimilarCasesInput) (
		*mcp.CallToolResult, SimilarCasesOutput, error,
	) {
		reportType, err := parseReportTypeFilter(input.ReportType)
		if err != nil {
			return nil, SimilarCasesOutput{}, err
		}
		patientRef := strings.TrimSpace(input.PatientRef)

		matches, err := finder.SimilarCases(ctx, patientRef, reportType, input.Limit)
		switch {
		case errors.Is(err, casefinder.ErrNoReference):
			return nil, SimilarCasesOutput{
				PatientRef: patientRef,
				Cases:      []ReportMatch{},
				Message:    "No recent report found for this patient.",
			}, nil
		case err != nil:
			return nil, SimilarCasesOutput{}, fmt.Errorf("similar case search failed: %w", err)
		}

		out := SimilarCasesOutput{PatientRef: patientRef, Cases: toMatches(matches)}
		if len(matches) == 0 {
			out.Message = "No similar cases above the similarity threshold."
		}
		return nil, out, nil
	}
}

// makeContextHandler creates the patient_context tool handler.
func makeContextHandler(finder *casefinder.Finder) func(
	context.Context, *mcp.CallToolRequest, PatientContextInput,
) (*mcp.CallToolResult, PatientContextOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input PatientContextInput) (
		*mcp.CallToolResult, PatientContextOutput, error,
	) {
		pc, err := finder.Context(ctx, input.PatientRef, daysBack(input.DaysBack))
		if err != nil {
			return nil, PatientContextOutput{}, fmt.Errorf("failed to build patient context: %w", err)
		}

		out := PatientContextOutput{
			PatientRef:   pc.Trends.PatientRef,
			TotalReports: pc.Trends.TotalReports,
			ReportTypes:  countsByType(pc.Trends.ReportTypes),
			SpanDays:     pc.Trends.SpanDays,
			SimilarCases: toMatches(pc.SimilarCases),
			Insights:     report.OrEmpty(pc.Insights),
		}
		if pc.Trends.LatestReport != nil {
			latest := toEntry(*pc.Trends.LatestReport)
			out.LatestReport = &latest
		}
		return nil, out, nil
	}
}

// makeSummaryHandler creates the processing_summary tool handler.
func makeSummaryHandler(finder *casefinder.Finder, embeddingSource string) func(
	context.Context, *mcp.CallToolRequest, ProcessingSummaryInput,
) (*mcp.CallToolResult, ProcessingSummaryOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ProcessingSummaryInput) (
		*mcp.CallToolResult, ProcessingSummaryOutput, error,
	) {
		sum, err := finder.Summary(ctx)
		if err != nil {
			return nil, ProcessingSummaryOutput{}, fmt.Errorf("store_error: failed to summarize reports: %w", err)
		}
		return nil, ProcessingSummaryOutput{
			TotalReports:     sum.TotalReports,
			ReportsByType:    countsByType(sum.ReportsByType),
			RecentReports:    sum.RecentReports,
			DistinctPatients: sum.DistinctPatients,
			EmbeddingSource:  embeddingSource,
			GeneratedAt:      sum.GeneratedAt.Format(time.RFC3339),
		}, nil
	}
}

// parseReportTypeFilter maps an optional filter label to a report type.
// An empty label means no filter.
func parseReportTypeFilter(label string) (report.ReportType, error) {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return "", nil
	}
	rt := report.ParseReportType(label)
	if rt == report.TypeUnknown && label != string(report.TypeUnknown) {
		return "", fmt.Errorf("unknown report type %q", label)
	}
	return rt, nil
}

func daysBack(days int) int {
	if days <= 0 {
		return casefinder.DefaultTimelineDays
	}
	return days
}

func toEntry(e casefinder.Entry) ReportEntry {
	return ReportEntry{
		DocumentID:    e.ID,
		ReportType:    string(e.ReportType),
		PatientRef:    e.PatientRef,
		Source:        e.Source,
		CreatedAt:     e.CreatedAt.Format(time.RFC3339),
		Flags:         report.OrEmpty(e.Flags),
		DoctorSummary: e.DoctorSummary,
		Content:       contentPreview(e.Content),
	}
}

func toMatches(matches []casefinder.Match) []ReportMatch {
	out := make([]ReportMatch, 0, len(matches))
	for _, m := range matches {
		out = append(out, ReportMatch{Report: toEntry(m.Entry), Similarity: m.Similarity})
	}
	return out
}

func countsByType(counts map[report.ReportType]int) map[string]int {
	out := make(map[string]int, len(counts))
	for rt, n := range counts {
		out[string(rt)] = n
	}
	return out
}

func contentPreview(s string) string {
	r := []rune(s)
	if len(r) <= contentPreviewRunes {
		return s
	}
	return string(r[:contentPreviewRunes]) + "..."
}
