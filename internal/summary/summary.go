// Package summary renders findings as clinician and patient summaries.
// Rendering is template based and deterministic.
package summary

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bull/oncodoc/internal/report"
)

// Unavailable is returned for report types without a template.
const Unavailable = "Report processed but specific analysis not available for this type."

const missing = "n/a"

// Summaries holds both renderings of one report.
type Summaries struct {
	Doctor  string `json:"doctor_summary"`
	Patient string `json:"patient_summary"`
}

// Generate renders findings. flags are the rule engine flags for the same
// report and only affect blood count summaries.
func Generate(f report.Findings, flags []string) Summaries {
	switch v := f.(type) {
	case report.BloodCount:
		return Summaries{Doctor: bloodCountDoctor(v, flags), Patient: bloodCountPatient(v, flags)}
	case report.Imaging:
		return Summaries{Doctor: imagingDoctor(v), Patient: imagingPatient(v)}
	case report.Pathology:
		return Summaries{Doctor: pathologyDoctor(v), Patient: pathologyPatient(v)}
	default:
		return Summaries{Doctor: Unavailable, Patient: Unavailable}
	}
}

// Highlights returns the doctor summary as a one-line findings rendering for
// embedding context, or "" when no template applied.
func Highlights(doctorSummary string) string {
	if doctorSummary == Unavailable {
		return ""
	}
	return strings.Join(strings.Fields(doctorSummary), " ")
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func orMissing(v *float64, unit string) string {
	if v == nil {
		return missing
	}
	return num(*v) + unit
}

func bloodCountDoctor(f report.BloodCount, flags []string) string {
	var parts []string
	if f.WBC != nil {
		parts = append(parts, "WBC "+num(*f.WBC)+"/µL")
	}
	if f.NeutrophilPercent != nil {
		parts = append(parts, "neutrophils "+num(*f.NeutrophilPercent)+"%")
	}
	if f.ANC != nil {
		parts = append(parts, "ANC "+num(*f.ANC)+"/µL")
	}
	if f.Hemoglobin != nil {
		parts = append(parts, "Hb "+num(*f.Hemoglobin)+" g/dL")
	}
	if f.Platelets != nil {
		parts = append(parts, "platelets "+num(*f.Platelets)+"/µL")
	}
	if len(parts) == 0 {
		return "Blood count details extracted"
	}

	s := "CBC: " + strings.Join(parts, ", ") + "."
	if len(flags) > 0 {
		s += " Flags: " + strings.Join(flags, "; ") + "."
	}
	return s
}

func bloodCountPatient(f report.BloodCount, flags []string) string {
	s := fmt.Sprintf(
		"Your blood test shows WBC %s, neutrophils %s, ANC %s, hemoglobin %s, and platelets %s.",
		orMissing(f.WBC, "/µL"),
		orMissing(f.NeutrophilPercent, "%"),
		orMissing(f.ANC, "/µL"),
		orMissing(f.Hemoglobin, " g/dL"),
		orMissing(f.Platelets, "/µL"),
	)
	if len(flags) > 0 {
		s += " Some values are outside normal ranges and may need attention."
	}
	return s
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}

func imagingDoctor(f report.Imaging) string {
	size := "size not determined"
	if f.PrimaryLesion != nil {
		size = fmt.Sprintf("%.1f cm", f.PrimaryLesion.MaxDimension())
	}

	var b strings.Builder
	fmt.Fprintf(&b, "FDG-avid breast lesion (%s)", size)
	if f.PrimaryLesion != nil {
		fmt.Fprintf(&b, ", SUVmax %s", num(f.PrimaryLesion.SUVmax))
	}
	if ax := f.AxillaryNode; ax != nil {
		fmt.Fprintf(&b, ". Axillary node %s×%s cm, SUVmax %s", num(ax.SizeCM[0]), num(ax.SizeCM[1]), num(ax.SUVmax))
	}
	if imn := f.InternalMammaryNode; imn != nil {
		fmt.Fprintf(&b, ". Internal mammary node SUVmax %s", num(imn.SUVmax))
	}
	tnm := f.Staging
	fmt.Fprintf(&b, ". Radiologic TNM: %s %s %s", orUnknown(tnm.T), orUnknown(tnm.N), orUnknown(tnm.M))
	stage := tnm.StageGroup
	if stage == "" {
		stage = "Stage indeterminate"
	}
	fmt.Fprintf(&b, ". %s.", stage)
	return b.String()
}

func imagingPatient(f report.Imaging) string {
	var b strings.Builder
	b.WriteString("Your scan shows a cancer area in the breast")
	if f.PrimaryLesion != nil {
		fmt.Fprintf(&b, " measuring about %.1f cm", f.PrimaryLesion.MaxDimension())
	}
	if f.AxillaryNode != nil {
		b.WriteString(". A nearby lymph node also shows activity, suggesting cancer may have spread there")
	}
	if f.Metastasis.LungsClear {
		b.WriteString(". The lungs appear clear")
	}
	b.WriteString(". These findings help guide your treatment plan.")
	return b.String()
}

func receptorText(name string, r report.Receptor) string {
	if r.Status == nil {
		return ""
	}
	s := name + " " + *r.Status
	if r.Percent != nil {
		s += fmt.Sprintf(" (%d%%)", *r.Percent)
	}
	return s
}

func pathologyDoctor(f report.Pathology) string {
	var parts []string
	if f.Histology != nil {
		parts = append(parts, *f.Histology)
	}
	if f.Grade != nil {
		parts = append(parts, fmt.Sprintf("Nottingham grade %d", *f.Grade))
	}

	var receptors []string
	if s := receptorText("ER", f.ER); s != "" {
		receptors = append(receptors, s)
	}
	if s := receptorText("PR", f.PR); s != "" {
		receptors = append(receptors, s)
	}
	if len(receptors) > 0 {
		parts = append(parts, strings.Join(receptors, "; "))
	}

	if f.HER2.IHC != nil {
		s := "HER2 IHC " + *f.HER2.IHC
		if f.HER2.FISHStatus != nil {
			s += ", FISH " + *f.HER2.FISHStatus
		}
		parts = append(parts, s)
	}
	if f.Ki67Percent != nil {
		parts = append(parts, fmt.Sprintf("Ki-67 %d%%", *f.Ki67Percent))
	}
	if f.LymphovascularInvasion != nil {
		parts = append(parts, "LVI "+strings.ToLower(*f.LymphovascularInvasion))
	}
	if f.PerineuralInvasion != nil {
		parts = append(parts, "PNI "+strings.ToLower(*f.PerineuralInvasion))
	}

	if len(parts) == 0 {
		return "Biopsy details extracted"
	}
	return strings.Join(parts, "; ")
}

func pathologyPatient(f report.Pathology) string {
	var b strings.Builder
	b.WriteString("Your biopsy confirms the type of cancer and important markers that guide treatment. ")

	var status []string
	if f.ER.Status != nil {
		status = append(status, "ER "+strings.ToLower(*f.ER.Status))
	}
	if f.PR.Status != nil {
		status = append(status, "PR "+strings.ToLower(*f.PR.Status))
	}
	if f.HER2.IHC != nil {
		status = append(status, "HER2 "+*f.HER2.IHC)
	}
	if len(status) > 0 {
		fmt.Fprintf(&b, "The report shows %s. ", strings.Join(status, ", "))
	}
	if f.Ki67Percent != nil {
		fmt.Fprintf(&b, "Ki-67 is about %d%%. ", *f.Ki67Percent)
	}
	b.WriteString("These results help your doctors choose the most effective treatments for you.")
	return b.String()
}
