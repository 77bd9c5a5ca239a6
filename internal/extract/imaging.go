package extract

import (
	"regexp"
	"strconv"

	"github.com/bull/oncodoc/internal/clinical"
	"github.com/bull/oncodoc/internal/report"
)

const (
	dim     = `(\d+(?:\.\d+)?)`
	sizeCM  = `~?\s*` + dim + `\s*[x×*]\s*` + dim + `\s*cm`
	suvmax  = `suv\s*max[:\s]*` + dim
	window  = `.{0,200}?`
	dotAll  = `(?is)`
)

var (
	primaryLesionRe = regexp.MustCompile(dotAll + `\b(?:right|left)\s+breast\b` + window + `size\s*` + sizeCM + window + suvmax)
	axillaryNodeRe  = regexp.MustCompile(dotAll + `\baxillary\s+lymph\s+nodes?\b` + window + sizeCM + window + suvmax)
	internalMammRe  = regexp.MustCompile(dotAll + `\binternal\s+mammary\s+(?:lymph\s+)?nodes?\b` + window + suvmax)

	// Any of these phrases marks the study as free of distant disease.
	// Without one, distant metastasis is assumed suspected.
	negativeFindingRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)no\s+other\s+abnormal\s+hypermetabolic\s+lesion`),
		regexp.MustCompile(`(?is)no\s+focal\s+abnormal\s+fdg\s+uptake.{0,200}?lung\s+parenchyma`),
		regexp.MustCompile(`(?i)no\s+evidence\s+of\s+distant\s+metastas[ie]s`),
	}
)

// ImagingExtractor extracts PET/CT lesion metrics and derives TNM staging.
type ImagingExtractor struct{}

// NewImagingExtractor creates an imaging extractor.
func NewImagingExtractor() *ImagingExtractor {
	return &ImagingExtractor{}
}

// Extract returns Imaging findings with staging filled in.
func (e *ImagingExtractor) Extract(text string) report.Findings {
	flat := report.Flatten(text)

	var f report.Imaging
	if m := primaryLesionRe.FindStringSubmatch(flat); m != nil {
		f.PrimaryLesion = lesion(m)
	}
	if m := axillaryNodeRe.FindStringSubmatch(flat); m != nil {
		f.AxillaryNode = lesion(m)
	}
	if m := internalMammRe.FindStringSubmatch(flat); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			f.InternalMammaryNode = &report.NodeUptake{SUVmax: v}
		}
	}

	negative := false
	for _, re := range negativeFindingRes {
		if re.MatchString(flat) {
			negative = true
			break
		}
	}
	f.Metastasis = report.Metastasis{DistantSuspected: !negative, LungsClear: negative}
	f.Staging = clinical.DeriveTNM(f)
	return f
}

func lesion(m []string) *report.Lesion {
	a, errA := strconv.ParseFloat(m[1], 64)
	b, errB := strconv.ParseFloat(m[2], 64)
	s, errS := strconv.ParseFloat(m[3], 64)
	if errA != nil || errB != nil || errS != nil {
		return nil
	}
	return &report.Lesion{SizeCM: [2]float64{a, b}, SUVmax: s}
}
