package clinical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/oncodoc/internal/report"
)

func ptr(v float64) *float64 { return &v }

func TestEvaluate_WBCThreshold(t *testing.T) {
	e := NewEngine(DefaultThresholds())

	low := e.Evaluate(report.BloodCount{WBC: ptr(3500)})
	require.Len(t, low.Flags, 1)
	assert.Equal(t, "WBC low (3500/µL, normal ≥4000)", low.Flags[0])
	assert.Equal(t, AlertHigh, low.AlertLevel)
	require.Len(t, low.Alerts, 1)
	assert.Equal(t, "wbc", low.Alerts[0].SourceField)
	assert.Equal(t, report.SeverityHigh, low.Alerts[0].Severity)

	ok := e.Evaluate(report.BloodCount{WBC: ptr(4500)})
	assert.Empty(t, ok.Flags)
	assert.Equal(t, AlertNormal, ok.AlertLevel)
}

func TestEvaluate_AllFlagsInOrder(t *testing.T) {
	e := NewEngine(DefaultThresholds())
	a := e.Evaluate(report.BloodCount{
		WBC:        ptr(2000),
		ANC:        ptr(600),
		Hemoglobin: ptr(9.5),
		Platelets:  ptr(120000),
	})

	assert.Equal(t, []string{
		"WBC low (2000/µL, normal ≥4000)",
		"ANC low (600/µL, normal ≥1000)",
		"Hemoglobin low (9.5 g/dL, normal ≥10)",
		"Platelets low (120000/µL, normal ≥150000)",
	}, a.Flags)
	assert.Equal(t, AlertHigh, a.AlertLevel)
}

func TestEvaluate_BoundaryIsNotLow(t *testing.T) {
	e := NewEngine(DefaultThresholds())
	a := e.Evaluate(report.BloodCount{WBC: ptr(4000), Hemoglobin: ptr(10), Platelets: ptr(150000), ANC: ptr(1000)})
	assert.Empty(t, a.Flags)
}

func TestEvaluate_CustomThresholds(t *testing.T) {
	e := NewEngine(Thresholds{WBC: 3000})
	assert.Empty(t, e.Evaluate(report.BloodCount{WBC: ptr(3500)}).Flags)
	assert.Equal(t, 1000.0, e.Thresholds().ANC)
}

func TestEvaluate_NonBloodCount(t *testing.T) {
	e := NewEngine(DefaultThresholds())
	for _, f := range []report.Findings{report.Imaging{}, report.Pathology{}, report.Unknown{}} {
		a := e.Evaluate(f)
		assert.Empty(t, a.Flags)
		assert.Equal(t, AlertNormal, a.AlertLevel)
	}
}

func TestAbsoluteNeutrophilCount(t *testing.T) {
	anc := AbsoluteNeutrophilCount(ptr(5000), ptr(60))
	require.NotNil(t, anc)
	assert.Equal(t, 3000.0, *anc)

	anc = AbsoluteNeutrophilCount(ptr(3650), ptr(45.5))
	require.NotNil(t, anc)
	assert.Equal(t, 1661.0, *anc)

	assert.Nil(t, AbsoluteNeutrophilCount(nil, ptr(60)))
	assert.Nil(t, AbsoluteNeutrophilCount(ptr(5000), nil))
}

func TestStageGroup(t *testing.T) {
	tests := []struct {
		t, n, m string
		want    string
	}{
		{T1, N0, M0, StageI},
		{T0, N1, M0, StageIIA},
		{T1, N1, M0, StageIIA},
		{T2, N0, M0, StageIIA},
		{T2, N1, M0, StageIIB},
		{T3, N0, M0, StageIIB},
		{T3, N1, M0, StageIndeterminate},
		{T4, N0, M0, StageIII},
		{T2, N2, M0, StageIII},
		{T1, N3, M0, StageIII},
		{T1, N0, M1, StageIV},
		{"", N0, M1, StageIV},
		{"", N0, M0, StageIndeterminate},
	}
	for _, tt := range tests {
		t.Run(tt.t+tt.n+tt.m, func(t *testing.T) {
			assert.Equal(t, tt.want, StageGroup(tt.t, tt.n, tt.m))
		})
	}
}

func TestDeriveTNM(t *testing.T) {
	img := report.Imaging{
		PrimaryLesion: &report.Lesion{SizeCM: [2]float64{2.8, 2.1}, SUVmax: 9.4},
		AxillaryNode:  &report.Lesion{SizeCM: [2]float64{1.2, 0.9}, SUVmax: 3.1},
	}
	tnm := DeriveTNM(img)
	assert.Equal(t, report.TNM{T: T2, N: N1, M: M0, StageGroup: StageIIB}, tnm)

	img.PrimaryLesion.SizeCM = [2]float64{1.5, 2.0}
	img.AxillaryNode.SUVmax = 2.4
	assert.Equal(t, report.TNM{T: T1, N: N0, M: M0, StageGroup: StageI}, DeriveTNM(img))

	img.PrimaryLesion.SizeCM = [2]float64{5.1, 3}
	assert.Equal(t, T3, DeriveTNM(img).T)

	img.Metastasis.DistantSuspected = true
	assert.Equal(t, StageIV, DeriveTNM(img).StageGroup)

	empty := DeriveTNM(report.Imaging{})
	assert.Equal(t, "", empty.T)
	assert.Equal(t, StageIndeterminate, empty.StageGroup)
}
