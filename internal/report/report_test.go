package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	raw := "HAEMATOLOGY TEST REPORT\r\n" +
		"Patient Name :   Jane   Doe\r\n" +
		"Page No: 1 of 2\r\n" +
		"\r\n\r\n\r\n" +
		"TLC\t\t3650   /cumm\n" +
		"Report Released on : 12/03/2024 10:15\n" +
		"   \n" +
		"Page 2 of 2\n" +
		"HAEMOGLOBIN 9.5 g/dL  \n"

	got := Normalize(raw)

	expected := "HAEMATOLOGY TEST REPORT\n" +
		"Patient Name : Jane Doe\n" +
		"\n" +
		"TLC 3650 /cumm\n" +
		"\n" +
		"HAEMOGLOBIN 9.5 g/dL"
	assert.Equal(t, expected, got)
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"a\n\nPage No: 1\n\nb",
		"line one \t two\r\n\r\n\r\nline three\n\n",
		"Report Released on : x\nTLC 3650\n\n\nPage 1 of 3\n\n",
		"  WBC  5000",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestNormalize_NoPatterns(t *testing.T) {
	assert.Equal(t, "plain text", Normalize("plain text"))
}

func TestClassifier(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		name string
		text string
		want ReportType
	}{
		{"blood count by TLC", "TLC 3650 HAEMOGLOBIN 9.5 PLATELET COUNT 120000", TypeBloodCount},
		{"blood count header", "COMPLETE BLOOD COUNT\nsome values", TypeBloodCount},
		{"imaging by PET/CT", "Whole body PET/CT study", TypeImaging},
		{"imaging by SUVmax", "lesion with SUVmax 6.2", TypeImaging},
		{"pathology by IHC", "Immunohistochemistry: ER positive", TypePathology},
		{"pathology by Ki-67", "Ki-67 index 30%", TypePathology},
		{"unknown", "Discharge summary with no markers", TypeUnknown},
		{"empty", "", TypeUnknown},
		// Imaging wins over blood count markers quoted in clinical history.
		{"imaging before blood count", "PET/CT\nClinical history: hemoglobin 9.1", TypeImaging},
		// Imaging wins over pathology markers.
		{"imaging before pathology", "FDG PET/CT after biopsy showing HER2 positive disease", TypeImaging},
		// Pathology wins over blood count.
		{"pathology before blood count", "Biopsy report. WBC 5000 noted", TypePathology},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.text))
		})
	}
}

func TestParseReportType(t *testing.T) {
	assert.Equal(t, TypeBloodCount, ParseReportType("cbc"))
	assert.Equal(t, TypeImaging, ParseReportType("pet_ct"))
	assert.Equal(t, TypePathology, ParseReportType("biopsy"))
	assert.Equal(t, TypePathology, ParseReportType("pathology"))
	assert.Equal(t, TypeUnknown, ParseReportType("ecg"))
	assert.False(t, TypeUnknown.Known())
	assert.True(t, TypeImaging.Known())
}

func TestExtractPatientInfo(t *testing.T) {
	text := "Patient Name : Jane Doe\nPatient ID MRN-00123\nSex / Age : F / 52 Y\nMobile : +91 98765 43210\n"
	info := ExtractPatientInfo(text)

	assert.Equal(t, "Jane Doe", info.Name)
	assert.Equal(t, "MRN-00123", info.ID)
	assert.Equal(t, "F / 52 Y", info.SexAge)
	assert.Equal(t, "+91 98765 43210", info.Contact)

	assert.Equal(t, PatientInfo{}, ExtractPatientInfo("no header here"))
}

func TestExtractMetadata(t *testing.T) {
	text := "Report Date : 12-Mar-2024\nCollection Date : 11-Mar-2024\nReferred by : Dr. Rao\nHospital : City Cancer Centre\nLaboratory : Central Lab\n"
	meta := ExtractMetadata(text)

	assert.Equal(t, "12-Mar-2024", meta.ReportDate)
	assert.Equal(t, "11-Mar-2024", meta.CollectionDate)
	assert.Equal(t, "Dr. Rao", meta.Doctor)
	assert.Equal(t, "City Cancer Centre", meta.Hospital)
	assert.Equal(t, "Central Lab", meta.Lab)
}

func TestExtractSections(t *testing.T) {
	text := "Clinical History: Known case of carcinoma breast.\n" +
		"Findings: Right breast mass.\n" +
		"Impression: Suspicious for malignancy.\n"

	sections := ExtractSections(text)
	require.Len(t, sections, 3)
	assert.Equal(t, "Known case of carcinoma breast.", sections[SectionClinicalHistory])
	assert.Equal(t, "Right breast mass.", sections[SectionFindings])
	assert.Equal(t, "Suspicious for malignancy.", sections[SectionOpinion])

	assert.Empty(t, ExtractSections("no labelled sections"))
}

func TestFindingsRoundTripByTag(t *testing.T) {
	wbc := 3650.0
	data, err := MarshalFindings(BloodCount{WBC: &wbc})
	require.NoError(t, err)

	decoded, err := UnmarshalFindings(TypeBloodCount, data)
	require.NoError(t, err)

	bc, ok := decoded.(BloodCount)
	require.True(t, ok)
	require.NotNil(t, bc.WBC)
	assert.Equal(t, 3650.0, *bc.WBC)
	assert.Nil(t, bc.Hemoglobin)

	unknown, err := UnmarshalFindings(TypeUnknown, []byte(`{"anything":1}`))
	require.NoError(t, err)
	assert.Equal(t, Unknown{}, unknown)
}

func TestOrEmpty(t *testing.T) {
	assert.Equal(t, []string{}, OrEmpty(nil))
	assert.Equal(t, []string{"a"}, OrEmpty([]string{"a"}))
}
