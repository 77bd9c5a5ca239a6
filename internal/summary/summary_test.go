package summary

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bull/oncodoc/internal/report"
)

func f64(v float64) *float64 { return &v }
func str(v string) *string   { return &v }
func i(v int) *int           { return &v }

func TestGenerate_BloodCount(t *testing.T) {
	f := report.BloodCount{WBC: f64(3650), Hemoglobin: f64(9.5), Platelets: f64(120000)}
	flags := []string{"WBC low (3650/µL, normal ≥4000)"}

	s := Generate(f, flags)

	assert.Equal(t, "CBC: WBC 3650/µL, Hb 9.5 g/dL, platelets 120000/µL. Flags: WBC low (3650/µL, normal ≥4000).", s.Doctor)
	assert.Equal(t, "Your blood test shows WBC 3650/µL, neutrophils n/a, ANC n/a, hemoglobin 9.5 g/dL, and platelets 120000/µL."+
		" Some values are outside normal ranges and may need attention.", s.Patient)
}

func TestGenerate_BloodCountEmpty(t *testing.T) {
	s := Generate(report.BloodCount{}, nil)
	assert.Equal(t, "Blood count details extracted", s.Doctor)
	assert.NotContains(t, s.Patient, "attention")
}

func TestGenerate_Imaging(t *testing.T) {
	f := report.Imaging{
		PrimaryLesion: &report.Lesion{SizeCM: [2]float64{2.8, 2.1}, SUVmax: 9.4},
		AxillaryNode:  &report.Lesion{SizeCM: [2]float64{1.2, 0.9}, SUVmax: 3.1},
		Metastasis:    report.Metastasis{LungsClear: true},
		Staging:       report.TNM{T: "cT2", N: "cN1", M: "cM0", StageGroup: "Stage IIB"},
	}
	s := Generate(f, nil)

	assert.Equal(t, "FDG-avid breast lesion (2.8 cm), SUVmax 9.4. Axillary node 1.2×0.9 cm, SUVmax 3.1. Radiologic TNM: cT2 cN1 cM0. Stage IIB.", s.Doctor)
	assert.Equal(t, "Your scan shows a cancer area in the breast measuring about 2.8 cm."+
		" A nearby lymph node also shows activity, suggesting cancer may have spread there."+
		" The lungs appear clear. These findings help guide your treatment plan.", s.Patient)
}

func TestGenerate_ImagingWithoutPrimary(t *testing.T) {
	f := report.Imaging{Staging: report.TNM{N: "cN0", M: "cM0", StageGroup: "Indeterminate"}}
	s := Generate(f, nil)
	assert.Equal(t, "FDG-avid breast lesion (size not determined). Radiologic TNM: ? cN0 cM0. Indeterminate.", s.Doctor)
}

func TestGenerate_Pathology(t *testing.T) {
	f := report.Pathology{
		Histology:   str("Invasive ductal carcinoma"),
		Grade:       i(2),
		ER:          report.Receptor{Status: str("Positive"), Percent: i(90)},
		PR:          report.Receptor{Status: str("Negative")},
		HER2:        report.HER2{IHC: str("3+"), FISHStatus: str("Amplified")},
		Ki67Percent: i(30),
	}
	s := Generate(f, nil)

	assert.Equal(t, "Invasive ductal carcinoma; Nottingham grade 2; ER Positive (90%); PR Negative; HER2 IHC 3+, FISH Amplified; Ki-67 30%", s.Doctor)
	assert.Equal(t, "Your biopsy confirms the type of cancer and important markers that guide treatment. "+
		"The report shows ER positive, PR negative, HER2 3+. Ki-67 is about 30%. "+
		"These results help your doctors choose the most effective treatments for you.", s.Patient)
}

func TestGenerate_Unknown(t *testing.T) {
	s := Generate(report.Unknown{}, nil)
	assert.Equal(t, Unavailable, s.Doctor)
	assert.Equal(t, Unavailable, s.Patient)
}

func TestGenerate_Deterministic(t *testing.T) {
	f := report.Pathology{Histology: str("DCIS"), Ki67Percent: i(5)}
	assert.Equal(t, Generate(f, nil), Generate(f, nil))
}

func TestHighlights(t *testing.T) {
	assert.Equal(t, "", Highlights(Unavailable))
	assert.Equal(t, "CBC: WBC 3650/µL. Flags: low", Highlights("CBC: WBC 3650/µL.\n Flags:  low"))
}
