package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const janeReport = "Patient Name: Jane Doe\nPatient ID: MRN-0042\nTLC 3650 HAEMOGLOBIN 9.5 PLATELET COUNT 120000\n"

func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "oncodoc.db"))
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("EMBEDDING_DIMENSION", "16")
	t.Setenv("LOG_LEVEL", "error")
}

func execute(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	return out.String()
}

func TestIngestThenQuery(t *testing.T) {
	setupEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jane.txt"), []byte(janeReport), 0o644))

	out := execute(t, "", "ingest", dir)
	assert.Contains(t, out, "Reports: 1/1")

	var timeline []map[string]any
	require.NoError(t, json.Unmarshal([]byte(execute(t, "", "timeline", "Jane Doe")), &timeline))
	require.Len(t, timeline, 1)
	assert.Equal(t, "blood_count", timeline[0]["report_type"])
	assert.True(t, strings.HasSuffix(timeline[0]["source"].(string), "jane.txt"))

	var summary map[string]any
	require.NoError(t, json.Unmarshal([]byte(execute(t, "", "summary")), &summary))
	assert.EqualValues(t, 1, summary["total_reports"])
	assert.EqualValues(t, 1, summary["distinct_patients"])
}

func TestProcessFromStdin(t *testing.T) {
	setupEnv(t)

	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(execute(t, janeReport, "process", "-")), &res))
	assert.Equal(t, "blood_count", res["report_type"])
	assert.Equal(t, "high", res["alert_level"])
	assert.Equal(t, "Jane Doe", res["patient_ref"])
}

func TestReportTypeFlag(t *testing.T) {
	queryFlags.reportType = "PET_CT"
	rt, err := reportTypeFlag()
	require.NoError(t, err)
	assert.Equal(t, "imaging", string(rt))

	queryFlags.reportType = "ultrasound"
	_, err = reportTypeFlag()
	assert.Error(t, err)

	queryFlags.reportType = ""
}
