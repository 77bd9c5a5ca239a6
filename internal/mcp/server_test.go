package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/oncodoc/internal/casefinder"
	"github.com/bull/oncodoc/internal/embedding"
	"github.com/bull/oncodoc/internal/extract"
	"github.com/bull/oncodoc/internal/indexer"
	"github.com/bull/oncodoc/internal/report"
	"github.com/bull/oncodoc/internal/storage"
)

const (
	testDimension = 16
	janeCBC       = "TLC 3650 HAEMOGLOBIN 9.5 PLATELET COUNT 120000"
	johnCBC       = "TLC 5200 HAEMOGLOBIN 13.1 PLATELET COUNT 240000"
)

type fixture struct {
	store    *storage.MemoryStore
	pipeline *indexer.Pipeline
	finder   *casefinder.Finder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewMemoryStore(testDimension)
	gen := embedding.NewGenerator(nil, testDimension, 0, nil)
	pipeline := indexer.NewPipeline(indexer.Components{
		Classifier: report.NewClassifier(),
		Extractors: extract.NewRegistry(),
		Embedder:   gen,
		Store:      store,
	}, nil)
	// Negative threshold admits every match.
	finder := casefinder.New(store, gen, nil, casefinder.Config{Threshold: -1}, nil)
	return &fixture{store: store, pipeline: pipeline, finder: finder}
}

func (f *fixture) process(t *testing.T, text, patient string) ProcessReportOutput {
	t.Helper()
	_, out, err := makeProcessHandler(f.pipeline)(context.Background(), nil, ProcessReportInput{
		Text:        text,
		PatientName: patient,
	})
	require.NoError(t, err)
	return out
}

func TestProcessHandler(t *testing.T) {
	f := newFixture(t)
	out := f.process(t, janeCBC, "Jane Doe")

	assert.NotEmpty(t, out.DocumentID)
	assert.Equal(t, "blood_count", out.ReportType)
	assert.Equal(t, "high", out.AlertLevel)
	assert.Len(t, out.Flags, 3)
	require.Len(t, out.Alerts, 3)
	assert.NotEmpty(t, out.Alerts[0].Severity)
	assert.Equal(t, "Jane Doe", out.PatientRef)
	assert.Equal(t, embedding.FallbackName, out.EmbeddingSource)
	assert.IsType(t, report.BloodCount{}, out.Findings)
	assert.Equal(t, 1, f.store.Len())

	_, _, err := makeProcessHandler(f.pipeline)(context.Background(), nil, ProcessReportInput{Text: "  "})
	assert.ErrorIs(t, err, indexer.ErrEmptyInput)
}

func TestFetchHandler(t *testing.T) {
	f := newFixture(t)
	processed := f.process(t, janeCBC, "Jane Doe")
	fetch := makeFetchHandler(f.store)

	_, out, err := fetch(context.Background(), nil, FetchReportInput{DocumentID: processed.DocumentID})
	require.NoError(t, err)
	assert.True(t, out.Found)
	require.NotNil(t, out.Report)
	assert.Equal(t, janeCBC, out.Report.Content)
	assert.Equal(t, processed.DoctorSummary, out.Report.DoctorSummary)
	assert.Equal(t, processed.PatientSummary, out.PatientSummary)

	_, out, err = fetch(context.Background(), nil, FetchReportInput{DocumentID: "missing"})
	require.NoError(t, err)
	assert.False(t, out.Found)
	assert.Nil(t, out.Report)
}

func TestSearchHandler(t *testing.T) {
	f := newFixture(t)
	f.process(t, janeCBC, "Jane Doe")
	f.process(t, johnCBC, "John Roe")
	search := makeSearchHandler(f.finder)
	ctx := context.Background()

	_, out, err := search(ctx, nil, SearchReportsInput{Query: "low haemoglobin"})
	require.NoError(t, err)
	assert.Len(t, out.Results, 2)
	assert.Empty(t, out.Message)

	_, out, err = search(ctx, nil, SearchReportsInput{Query: "low haemoglobin", PatientRef: "John Roe"})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "John Roe", out.Results[0].Report.PatientRef)

	_, out, err = search(ctx, nil, SearchReportsInput{Query: "low haemoglobin", ReportType: "imaging"})
	require.NoError(t, err)
	assert.Empty(t, out.Results)
	assert.NotEmpty(t, out.Message)

	_, _, err = search(ctx, nil, SearchReportsInput{Query: "x", ReportType: "ultrasound"})
	assert.Error(t, err)
}

func TestTimelineHandler(t *testing.T) {
	f := newFixture(t)
	f.process(t, janeCBC, "Jane Doe")
	f.process(t, johnCBC, "John Roe")

	_, out, err := makeTimelineHandler(f.finder)(context.Background(), nil, PatientTimelineInput{PatientRef: "Jane Doe"})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Count)
	require.Len(t, out.Reports, 1)
	assert.Equal(t, "Jane Doe", out.Reports[0].PatientRef)

	_, _, err = makeTimelineHandler(f.finder)(context.Background(), nil, PatientTimelineInput{})
	assert.ErrorIs(t, err, casefinder.ErrPatientRequired)
}

func TestSimilarHandler(t *testing.T) {
	f := newFixture(t)
	f.process(t, janeCBC, "Jane Doe")
	f.process(t, johnCBC, "John Roe")
	similar := makeSimilarHandler(f.finder)
	ctx := context.Background()

	_, out, err := similar(ctx, nil, SimilarCasesInput{PatientRef: "Jane Doe"})
	require.NoError(t, err)
	require.Len(t, out.Cases, 1)
	assert.Equal(t, "John Roe", out.Cases[0].Report.PatientRef)

	_, out, err = similar(ctx, nil, SimilarCasesInput{PatientRef: "Nobody"})
	require.NoError(t, err)
	assert.Empty(t, out.Cases)
	assert.NotEmpty(t, out.Message)
}

func TestContextAndSummaryHandlers(t *testing.T) {
	f := newFixture(t)
	f.process(t, janeCBC, "Jane Doe")
	f.process(t, johnCBC, "John Roe")
	ctx := context.Background()

	_, pc, err := makeContextHandler(f.finder)(ctx, nil, PatientContextInput{PatientRef: "Jane Doe"})
	require.NoError(t, err)
	assert.Equal(t, 1, pc.TotalReports)
	assert.Equal(t, 1, pc.ReportTypes["blood_count"])
	require.NotNil(t, pc.LatestReport)
	assert.Len(t, pc.SimilarCases, 1)
	assert.Contains(t, pc.Insights, "Blood test monitoring indicates active treatment tracking")

	_, sum, err := makeSummaryHandler(f.finder, embedding.FallbackName)(ctx, nil, ProcessingSummaryInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.TotalReports)
	assert.Equal(t, 2, sum.ReportsByType["blood_count"])
	assert.Equal(t, 2, sum.DistinctPatients)
	assert.Equal(t, embedding.FallbackName, sum.EmbeddingSource)
}

func TestServer_InMemorySession(t *testing.T) {
	f := newFixture(t)
	server := NewServer(&Config{Pipeline: f.pipeline, Finder: f.finder, Store: f.store})
	ctx := context.Background()

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"process_report", "search_reports", "fetch_report", "patient_timeline",
		"similar_cases", "patient_context", "processing_summary",
	}, names)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "process_report",
		Arguments: map[string]any{"text": janeCBC, "patient_name": "Jane Doe"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	var out ProcessReportOutput
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "blood_count", out.ReportType)
	assert.Equal(t, 1, f.store.Len())
}

type healthStub struct{ err error }

func (h healthStub) Health(context.Context) error { return h.err }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   int
		status string
	}{
		{"healthy", nil, http.StatusOK, "healthy"},
		{"unhealthy", errors.New("connection refused"), http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthHandler(healthStub{err: tt.err})(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var body HealthResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.status, body.Status)
			assert.NotEmpty(t, body.Timestamp)
		})
	}
}
