package extract

import (
	"regexp"

	"github.com/bull/oncodoc/internal/clinical"
	"github.com/bull/oncodoc/internal/report"
)

const (
	wbcLabel        = `TLC\b|WBC\b|total\s+leu[kc]ocyte\s+count\b|white\s+blood\s+cells?(?:\s+count)?\b`
	hemoglobinLabel = `ha?emoglobin\b|hgb\b|hb\b`
	plateletLabel   = `platelet\s+count(?:\s*\(optical\))?|platelets?\b|plt\b`
	neutrophilLabel = `neutrophils?\b`
)

// Absolute neutrophil counts share the "neutrophil" label but are never
// extracted; ANC is always derived.
var absoluteNeutrophilLine = regexp.MustCompile(`(?i)\babsolute\s+neutrophils?\s+count\b[^\n]*|\bANC\b[^\n]*`)

// panelClaims marks numbers that already belong to a panel label.
var panelClaims = Claims(wbcLabel, hemoglobinLabel, plateletLabel, neutrophilLabel)

func percentage(v float64) bool { return v >= 0 && v <= 100 }

// BloodCountExtractor extracts complete blood count values.
type BloodCountExtractor struct {
	wbc         Chain
	hemoglobin  Chain
	platelets   Chain
	neutrophils Chain
}

// NewBloodCountExtractor builds the blood count extractor with the default
// label chains.
func NewBloodCountExtractor() *BloodCountExtractor {
	return &BloodCountExtractor{
		wbc:         LabelChain(wbcLabel, nil, panelClaims),
		hemoglobin:  LabelChain(hemoglobinLabel, nil, panelClaims),
		platelets:   LabelChain(plateletLabel, nil, panelClaims),
		neutrophils: LabelChain(neutrophilLabel, percentage, panelClaims),
	}
}

// Extract returns BloodCount findings. Missing values stay nil.
func (e *BloodCountExtractor) Extract(text string) report.Findings {
	var f report.BloodCount
	f.WBC = find(e.wbc, text)
	f.Hemoglobin = find(e.hemoglobin, text)
	f.Platelets = find(e.platelets, text)
	f.NeutrophilPercent = find(e.neutrophils, absoluteNeutrophilLine.ReplaceAllString(text, ""))
	f.ANC = clinical.AbsoluteNeutrophilCount(f.WBC, f.NeutrophilPercent)
	return f
}

func find(c Chain, text string) *float64 {
	v, ok := c.Find(text)
	if !ok {
		return nil
	}
	return &v
}
