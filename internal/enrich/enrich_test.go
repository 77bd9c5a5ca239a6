package enrich

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/oncodoc/internal/report"
)

func TestEnrich_AllParts(t *testing.T) {
	e := New(nil)

	got := e.Enrich(Input{
		ReportType: report.TypeBloodCount,
		PatientRef: "Jane Doe",
		Timestamp:  time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC),
		Content:    "TLC 3650 HAEMOGLOBIN 9.5 PLATELET COUNT 120000",
		Highlights: "CBC: WBC 3650/µL.",
	})

	expected := "MEDICAL REPORT: | " +
		"REPORT TYPE: Complete Blood Count - White Blood Cells, Red Blood Cells, Platelets, Hemoglobin | " +
		"PATIENT: Jane Doe | " +
		"DATE: 2024-03-12T00:00:00Z | " +
		"CONTENT: TLC 3650 HAEMOGLOBIN 9.5 PLATELET COUNT 120000 | " +
		"FINDINGS: CBC: WBC 3650/µL. | " +
		"MEDICAL TERMS: haemoglobin, tlc, platelet count"
	assert.Equal(t, expected, got)
}

func TestEnrich_OmitsUnknownParts(t *testing.T) {
	got := New(nil).Enrich(Input{ReportType: report.TypeUnknown, Content: "discharge note"})
	assert.Equal(t, "MEDICAL REPORT: | CONTENT: discharge note", got)
}

func TestKeywords_WholeWordsOnly(t *testing.T) {
	e := New(nil)

	// "er" must not match inside "never", "ct" not inside "act".
	assert.Empty(t, e.Keywords("never act"))
	assert.Equal(t, []string{"her2", "ki67"}, e.Keywords("HER2 3+, Ki-67 30%"))
}

func TestKeywords_Capped(t *testing.T) {
	e := New(nil)
	text := "hemoglobin wbc rbc platelets hematocrit mcv mch mchc neutrophils lymphocytes monocytes eosinophils"

	kw := e.Keywords(text)
	assert.Len(t, kw, MaxKeywords)
	assert.Equal(t, "hemoglobin", kw[0])
	assert.NotContains(t, kw, "eosinophils")
}

func TestLoadVocabulary(t *testing.T) {
	v, err := LoadVocabulary("")
	require.NoError(t, err)
	assert.NotEmpty(t, v.Terms)

	path := filepath.Join(t.TempDir(), "vocab.yaml")
	require.NoError(t, os.WriteFile(path, []byte("report_contexts:\n  cbc: Blood\nterms:\n  - Anemia\n  - anemia\n"), 0o644))

	v, err = LoadVocabulary(path)
	require.NoError(t, err)
	e := New(v)
	assert.Equal(t, []string{"anemia"}, e.Keywords("Mild anemia noted"))
	assert.Equal(t, "MEDICAL REPORT: | REPORT TYPE: Blood | CONTENT: x", e.Enrich(Input{ReportType: report.TypeBloodCount, Content: "x"}))

	require.NoError(t, os.WriteFile(path, []byte("terms: []\n"), 0o644))
	_, err = LoadVocabulary(path)
	assert.Error(t, err)

	_, err = LoadVocabulary(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseTimestamp(t *testing.T) {
	ts, ok := ParseTimestamp("2024-03-12T10:15:00Z")
	require.True(t, ok)
	assert.Equal(t, 2024, ts.Year())

	_, ok = ParseTimestamp("2024-03-12")
	assert.True(t, ok)

	_, ok = ParseTimestamp("yesterday-ish")
	assert.False(t, ok)

	_, ok = ParseTimestamp("")
	assert.False(t, ok)
}
