// Package mcp exposes report processing and the case finder as MCP tools.
package mcp

// ProcessReportInput defines the input parameters for the process_report tool.
type ProcessReportInput struct {
	// Text is the raw report text.
	Text string `json:"text" jsonschema:"The raw medical report text"`
	// PatientName takes precedence over the name found in the report header.
	PatientName string `json:"patient_name,omitempty" jsonschema:"Patient name, overrides the report header"`
	PatientID   string `json:"patient_id,omitempty" jsonschema:"Patient identifier, used when no name is given"`
	// Source records where the report came from (path or URL).
	Source string `json:"source,omitempty" jsonschema:"Where the report came from, e.g. a file path"`
	// ReportType is a hint. The classifier still decides.
	ReportType string `json:"report_type,omitempty" jsonschema:"Expected report type: blood_count, imaging or pathology"`
	Timestamp  string `json:"timestamp,omitempty" jsonschema:"Report date, e.g. 2024-03-01"`
}

// AlertOutput is one clinical alert.
type AlertOutput struct {
	Message     string `json:"message"`
	Severity    string `json:"severity"`
	SourceField string `json:"source_field"`
}

// ProcessReportOutput contains the processed report.
type ProcessReportOutput struct {
	DocumentID string `json:"document_id"`
	ReportType string `json:"report_type"`
	// Findings holds the type-specific structured values.
	Findings          any           `json:"structured_findings"`
	Flags             []string      `json:"flags"`
	Alerts            []AlertOutput `json:"alerts"`
	AlertLevel        string        `json:"alert_level"`
	DoctorSummary     string        `json:"doctor_summary"`
	PatientSummary    string        `json:"patient_summary"`
	PatientRef        string        `json:"patient_ref,omitempty"`
	HintMismatch      bool          `json:"hint_mismatch"`
	EmbeddingSource   string        `json:"embedding_source"`
	EmbeddingDegraded bool          `json:"embedding_degraded"`
	// CreatedAt is RFC 3339.
	CreatedAt string `json:"created_at"`
}

// SearchReportsInput defines the input parameters for the search_reports tool.
type SearchReportsInput struct {
	Query      string `json:"query" jsonschema:"Free-text clinical query, e.g. low white cell count"`
	PatientRef string `json:"patient_ref,omitempty" jsonschema:"Restrict results to one patient"`
	ReportType string `json:"report_type,omitempty" jsonschema:"Restrict results to blood_count, imaging or pathology"`
	// MaxResults is the maximum number of reports to return.
	MaxResults int `json:"max_results,omitempty" jsonschema:"Maximum number of reports to return (default 10)"`
	// MinScore is the minimum similarity (0-1). Zero keeps the server default.
	MinScore float64 `json:"min_score,omitempty" jsonschema:"Minimum similarity threshold (0-1)"`
}

// ReportEntry is a stored report as returned by the query tools.
type ReportEntry struct {
	DocumentID    string   `json:"document_id"`
	ReportType    string   `json:"report_type"`
	PatientRef    string   `json:"patient_ref"`
	Source        string   `json:"source"`
	CreatedAt     string   `json:"created_at"`
	Flags         []string `json:"flags"`
	DoctorSummary string   `json:"doctor_summary"`
	// Content is a preview of the normalized text.
	Content string `json:"content"`
}

// ReportMatch is a report with its similarity to the query.
type ReportMatch struct {
	Report     ReportEntry `json:"report"`
	Similarity float64     `json:"similarity"`
}

// SearchReportsOutput contains the search results.
type SearchReportsOutput struct {
	Results []ReportMatch `json:"results"`
	// Message provides informational context (e.g., "No matching reports found").
	Message string `json:"message,omitempty"`
}

// FetchReportInput defines the input parameters for the fetch_report tool.
type FetchReportInput struct {
	DocumentID string `json:"document_id" jsonschema:"The document ID returned by process_report or a search"`
}

// FetchReportOutput contains the stored report.
type FetchReportOutput struct {
	Found          bool         `json:"found"`
	DocumentID     string       `json:"document_id"`
	Report         *ReportEntry `json:"report,omitempty"`
	Findings       any          `json:"structured_findings,omitempty"`
	PatientSummary string       `json:"patient_summary,omitempty"`
}

// PatientTimelineInput defines the input parameters for the patient_timeline tool.
type PatientTimelineInput struct {
	PatientRef string `json:"patient_ref" jsonschema:"Patient name or identifier"`
	// DaysBack limits the window. Zero uses the default year.
	DaysBack int `json:"days_back,omitempty" jsonschema:"How many days of history to include (default 365)"`
}

// PatientTimelineOutput lists a patient's reports newest first.
type PatientTimelineOutput struct {
	PatientRef string        `json:"patient_ref"`
	Reports    []ReportEntry `json:"reports"`
	Count      int           `json:"count"`
}

// SimilarCasesInput defines the input parameters for the similar_cases tool.
type SimilarCasesInput struct {
	PatientRef string `json:"patient_ref" jsonschema:"Patient whose most recent report is the reference"`
	ReportType string `json:"report_type,omitempty" jsonschema:"Restrict matches to one report type"`
	Limit      int    `json:"limit,omitempty" jsonschema:"Maximum number of cases (default 5)"`
}

// SimilarCasesOutput contains reports of other patients close to the reference.
type SimilarCasesOutput struct {
	PatientRef string        `json:"patient_ref"`
	Cases      []ReportMatch `json:"similar_cases"`
	Message    string        `json:"message,omitempty"`
}

// PatientContextInput defines the input parameters for the patient_context tool.
type PatientContextInput struct {
	PatientRef string `json:"patient_ref" jsonschema:"Patient name or identifier"`
	DaysBack   int    `json:"days_back,omitempty" jsonschema:"How many days of history to summarize (default 365)"`
}

// PatientContextOutput combines trends, similar cases and insights.
type PatientContextOutput struct {
	PatientRef   string         `json:"patient_ref"`
	TotalReports int            `json:"total_reports"`
	ReportTypes  map[string]int `json:"report_types"`
	LatestReport *ReportEntry   `json:"latest_report,omitempty"`
	SpanDays     int            `json:"timeline_span_days"`
	SimilarCases []ReportMatch  `json:"similar_cases"`
	Insights     []string       `json:"medical_insights"`
}

// ProcessingSummaryInput takes no parameters.
type ProcessingSummaryInput struct{}

// ProcessingSummaryOutput describes the stored corpus.
type ProcessingSummaryOutput struct {
	TotalReports     int            `json:"total_reports"`
	ReportsByType    map[string]int `json:"reports_by_type"`
	RecentReports    int            `json:"recent_reports_7_days"`
	DistinctPatients int            `json:"distinct_patients"`
	EmbeddingSource  string         `json:"embedding_source"`
	GeneratedAt      string         `json:"generated_at"`
}
