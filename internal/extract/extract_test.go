package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/oncodoc/internal/clinical"
	"github.com/bull/oncodoc/internal/report"
)

func bloodCount(t *testing.T, text string) report.BloodCount {
	t.Helper()
	f, ok := NewBloodCountExtractor().Extract(text).(report.BloodCount)
	require.True(t, ok)
	return f
}

func requireValue(t *testing.T, want float64, got *float64) {
	t.Helper()
	require.NotNil(t, got)
	assert.Equal(t, want, *got)
}

func TestBloodCount_InlineLabels(t *testing.T) {
	f := bloodCount(t, "TLC 3650 HAEMOGLOBIN 9.5 PLATELET COUNT 120000")

	requireValue(t, 3650, f.WBC)
	requireValue(t, 9.5, f.Hemoglobin)
	requireValue(t, 120000, f.Platelets)
	assert.Nil(t, f.NeutrophilPercent)
	assert.Nil(t, f.ANC)
}

func TestBloodCount_BeforeLabelWins(t *testing.T) {
	f := bloodCount(t, "3650 TLC\nTLC reference range 4000-11000")
	requireValue(t, 3650, f.WBC)

	f = bloodCount(t, "3650TLC")
	requireValue(t, 3650, f.WBC)

	f = bloodCount(t, "9.5 Hb | 3650 TLC")
	requireValue(t, 9.5, f.Hemoglobin)
	requireValue(t, 3650, f.WBC)

	for _, text := range []string{
		"Result: 3650 TLC\nTLC reference range 4000-11000",
		"Counts - 3650 TLC\nTLC range 4000",
		"Count = 3650 TLC\nTLC range 4000",
	} {
		f = bloodCount(t, text)
		requireValue(t, 3650, f.WBC)
		a := clinical.NewEngine(clinical.Thresholds{}).Evaluate(f)
		require.Len(t, a.Alerts, 1, text)
		assert.Equal(t, "wbc", a.Alerts[0].SourceField)
	}
}

func TestBloodCount_LabelledValueIsNotReadByNextLabel(t *testing.T) {
	f := bloodCount(t, "TLC: 3650 HAEMOGLOBIN: 9.5")
	requireValue(t, 3650, f.WBC)
	requireValue(t, 9.5, f.Hemoglobin)

	f = bloodCount(t, "Neutrophils - 62 TLC 4100")
	requireValue(t, 62, f.NeutrophilPercent)
	requireValue(t, 4100, f.WBC)
}

func TestBloodCount_Separated(t *testing.T) {
	f := bloodCount(t, "WBC: 5200\nNeutrophils: 60 %\nHemoglobin - 12.1 g/dL\nPlatelets = 2,50,000")

	requireValue(t, 5200, f.WBC)
	requireValue(t, 60, f.NeutrophilPercent)
	requireValue(t, 3120, f.ANC)
	requireValue(t, 12.1, f.Hemoglobin)
	requireValue(t, 250000, f.Platelets)
}

func TestBloodCount_ANCIsDerivedOnly(t *testing.T) {
	f := bloodCount(t, "TLC 5000\nNeutrophils 60 %\nAbsolute Neutrophil Count 2000 /cumm")
	requireValue(t, 60, f.NeutrophilPercent)
	requireValue(t, 3000, f.ANC)

	f = bloodCount(t, "TLC 5000\nAbsolute Neutrophil Count 3000 /cumm")
	assert.Nil(t, f.NeutrophilPercent)
	assert.Nil(t, f.ANC)
}

func TestBloodCount_NothingFound(t *testing.T) {
	assert.Equal(t, report.BloodCount{}, bloodCount(t, "complete blood count pending"))
}

func TestChain_ReportsStrategy(t *testing.T) {
	c := LabelChain(wbcLabel, nil, panelClaims)

	_, name, ok := c.FindWith("3650 TLC")
	require.True(t, ok)
	assert.Equal(t, "before_label", name)

	_, name, ok = c.FindWith("TLC: 3650")
	require.True(t, ok)
	assert.Equal(t, "separated", name)

	_, name, ok = c.FindWith("TLC (cumm) 3650")
	require.True(t, ok)
	assert.Equal(t, "loose", name)

	_, _, ok = c.FindWith("no counts")
	assert.False(t, ok)
}

const petct = `PET/CT WHOLE BODY
Findings: Ill-defined hypermetabolic mass in the right breast upper outer quadrant, size ~ 2.8 x 2.1 cm, SUVmax 9.4.
Few enlarged left axillary lymph nodes, largest ~ 1.2 x 0.9 cm, SUVmax 3.1.
Internal mammary lymph node with SUVmax 1.8.
No other abnormal hypermetabolic lesion noted.`

func TestImaging_Extract(t *testing.T) {
	f, ok := NewImagingExtractor().Extract(petct).(report.Imaging)
	require.True(t, ok)

	require.NotNil(t, f.PrimaryLesion)
	assert.Equal(t, [2]float64{2.8, 2.1}, f.PrimaryLesion.SizeCM)
	assert.Equal(t, 9.4, f.PrimaryLesion.SUVmax)

	require.NotNil(t, f.AxillaryNode)
	assert.Equal(t, [2]float64{1.2, 0.9}, f.AxillaryNode.SizeCM)
	assert.Equal(t, 3.1, f.AxillaryNode.SUVmax)

	require.NotNil(t, f.InternalMammaryNode)
	assert.Equal(t, 1.8, f.InternalMammaryNode.SUVmax)

	assert.False(t, f.Metastasis.DistantSuspected)
	assert.True(t, f.Metastasis.LungsClear)
	assert.Equal(t, report.TNM{T: clinical.T2, N: clinical.N1, M: clinical.M0, StageGroup: clinical.StageIIB}, f.Staging)
}

func TestImaging_NoNegativePhraseMeansSuspected(t *testing.T) {
	text := "PET/CT: Left breast lesion size 1.5 x 1.0 cm SUVmax 4.2. Multiple hepatic lesions."
	f, ok := NewImagingExtractor().Extract(text).(report.Imaging)
	require.True(t, ok)

	require.NotNil(t, f.PrimaryLesion)
	assert.Nil(t, f.AxillaryNode)
	assert.True(t, f.Metastasis.DistantSuspected)
	assert.Equal(t, clinical.T1, f.Staging.T)
	assert.Equal(t, clinical.M1, f.Staging.M)
	assert.Equal(t, clinical.StageIV, f.Staging.StageGroup)
}

func TestImaging_NoLesion(t *testing.T) {
	f, ok := NewImagingExtractor().Extract("FDG PET/CT. No evidence of distant metastasis.").(report.Imaging)
	require.True(t, ok)
	assert.Nil(t, f.PrimaryLesion)
	assert.Equal(t, "", f.Staging.T)
	assert.Equal(t, clinical.StageIndeterminate, f.Staging.StageGroup)
}

const biopsy = `HISTOPATHOLOGY REPORT
Diagnosis: Invasive ductal carcinoma, no special type. Nottingham grade 2 (score 6/9).
ER: Positive (90%), Allred score 8; PR: Positive (60%); HER2/neu (IHC): 3+. FISH: HER2 amplified, ratio 4.5.
Ki-67: 30%
Lymphovascular invasion: Present. Perineural invasion: Not identified.`

func TestPathology_Extract(t *testing.T) {
	f, ok := NewPathologyExtractor().Extract(biopsy).(report.Pathology)
	require.True(t, ok)

	require.NotNil(t, f.Histology)
	assert.Equal(t, "Invasive ductal carcinoma", *f.Histology)
	require.NotNil(t, f.Grade)
	assert.Equal(t, 2, *f.Grade)

	require.NotNil(t, f.ER.Status)
	assert.Equal(t, "Positive", *f.ER.Status)
	require.NotNil(t, f.ER.Percent)
	assert.Equal(t, 90, *f.ER.Percent)
	require.NotNil(t, f.ER.AllredScore)
	assert.Equal(t, 8, *f.ER.AllredScore)

	require.NotNil(t, f.PR.Status)
	assert.Equal(t, "Positive", *f.PR.Status)
	require.NotNil(t, f.PR.Percent)
	assert.Equal(t, 60, *f.PR.Percent)
	assert.Nil(t, f.PR.AllredScore)

	require.NotNil(t, f.HER2.IHC)
	assert.Equal(t, "3+", *f.HER2.IHC)
	require.NotNil(t, f.HER2.FISHStatus)
	assert.Equal(t, "Amplified", *f.HER2.FISHStatus)
	require.NotNil(t, f.HER2.FISHRatio)
	assert.Equal(t, 4.5, *f.HER2.FISHRatio)

	require.NotNil(t, f.Ki67Percent)
	assert.Equal(t, 30, *f.Ki67Percent)
	require.NotNil(t, f.LymphovascularInvasion)
	assert.Equal(t, "Present", *f.LymphovascularInvasion)
	require.NotNil(t, f.PerineuralInvasion)
	assert.Equal(t, "Not identified", *f.PerineuralInvasion)
}

func TestPathology_Grade(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"qualified beats bare", "Tumour grade 3 focal areas. Modified Bloom-Richardson grade 2", 2},
		{"bare", "Carcinoma, grade 1", 1},
		{"roman", "Nottingham histologic grade III", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewPathologyExtractor().Extract(tt.text).(report.Pathology)
			require.NotNil(t, f.Grade)
			assert.Equal(t, tt.want, *f.Grade)
		})
	}
}

func TestPathology_HER2Equivocal(t *testing.T) {
	f := NewPathologyExtractor().Extract("HER2 score 2+ (equivocal). FISH: not amplified.").(report.Pathology)
	require.NotNil(t, f.HER2.IHC)
	assert.Equal(t, "2+", *f.HER2.IHC)
	require.NotNil(t, f.HER2.FISHStatus)
	assert.Equal(t, "Not amplified", *f.HER2.FISHStatus)
}

func TestPathology_NothingFound(t *testing.T) {
	assert.Equal(t, report.Pathology{}, NewPathologyExtractor().Extract("Biopsy received in formalin"))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, report.Unknown{}, r.Extract(report.TypeUnknown, "anything"))

	f := r.Extract(report.TypeBloodCount, "WBC 3500")
	bc, ok := f.(report.BloodCount)
	require.True(t, ok)
	requireValue(t, 3500, bc.WBC)
}
