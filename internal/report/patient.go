package report

import (
	"regexp"
	"sort"
	"strings"
)

// PatientInfo is patient identity as printed on the report header.
type PatientInfo struct {
	Name    string `json:"name,omitempty"`
	ID      string `json:"id,omitempty"`
	SexAge  string `json:"sex_age,omitempty"`
	Contact string `json:"contact,omitempty"`
}

// Metadata is report provenance as printed on the report header.
type Metadata struct {
	ReportDate     string `json:"report_date,omitempty"`
	CollectionDate string `json:"collection_date,omitempty"`
	Doctor         string `json:"doctor,omitempty"`
	Hospital       string `json:"hospital,omitempty"`
	Lab            string `json:"lab,omitempty"`
}

var (
	patientNameRe    = regexp.MustCompile(`(?i)patient\s+name\s*:\s*([^\n]+)`)
	patientIDRe      = regexp.MustCompile(`(?i)patient\s+id\s*[:#]?\s*([\w-]+)`)
	sexAgeRe         = regexp.MustCompile(`(?i)sex\s*/\s*age\s*:\s*([^\n]+)`)
	contactRe        = regexp.MustCompile(`(?i)(?:phone|mobile|contact)\s*:\s*([+\d][\d \-()]*\d)`)
	reportDateRe     = regexp.MustCompile(`(?i)report\s+date\s*:\s*([^\n]+)`)
	collectionDateRe = regexp.MustCompile(`(?i)collection\s+date\s*:\s*([^\n]+)`)
	doctorRe         = regexp.MustCompile(`(?i)referred\s+by\s*:\s*([^\n]+)`)
	hospitalRe       = regexp.MustCompile(`(?i)hospital\s*:\s*([^\n]+)`)
	labRe            = regexp.MustCompile(`(?i)laboratory\s*:\s*([^\n]+)`)
)

// ExtractPatientInfo pulls patient identity fields from a report header.
// Missing fields are left empty.
func ExtractPatientInfo(text string) PatientInfo {
	return PatientInfo{
		Name:    firstGroup(patientNameRe, text),
		ID:      firstGroup(patientIDRe, text),
		SexAge:  firstGroup(sexAgeRe, text),
		Contact: firstGroup(contactRe, text),
	}
}

// ExtractMetadata pulls report dates and issuing parties from a report header.
func ExtractMetadata(text string) Metadata {
	return Metadata{
		ReportDate:     firstGroup(reportDateRe, text),
		CollectionDate: firstGroup(collectionDateRe, text),
		Doctor:         firstGroup(doctorRe, text),
		Hospital:       firstGroup(hospitalRe, text),
		Lab:            firstGroup(labRe, text),
	}
}

func firstGroup(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// Section names recognised in labelled report bodies.
const (
	SectionClinicalHistory = "clinical_history"
	SectionProcedure       = "procedure"
	SectionObservations    = "observations"
	SectionFindings        = "findings"
	SectionOpinion         = "opinion"
	SectionConclusion      = "conclusion"
	SectionRecommendations = "recommendations"
)

var sectionHeaders = []struct {
	name string
	re   *regexp.Regexp
}{
	{SectionClinicalHistory, regexp.MustCompile(`(?i)clinical\s+history\s*:\s*`)},
	{SectionProcedure, regexp.MustCompile(`(?i)procedure\s*:\s*`)},
	{SectionObservations, regexp.MustCompile(`(?i)observations\s*:\s*`)},
	{SectionFindings, regexp.MustCompile(`(?i)findings\s*:\s*`)},
	{SectionOpinion, regexp.MustCompile(`(?i)(?:opinion|impression)\s*:\s*`)},
	{SectionConclusion, regexp.MustCompile(`(?i)conclusion\s*:\s*`)},
	{SectionRecommendations, regexp.MustCompile(`(?i)recommendations?\s*:\s*`)},
}

// ExtractSections splits a labelled report body ("Findings: ...") into named
// sections. Each section runs until the next recognised header.
func ExtractSections(text string) map[string]string {
	type span struct {
		name       string
		start, end int
	}
	var spans []span
	for _, h := range sectionHeaders {
		loc := h.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		spans = append(spans, span{name: h.name, start: loc[0], end: loc[1]})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	sections := make(map[string]string, len(spans))
	for i, s := range spans {
		stop := len(text)
		if i+1 < len(spans) {
			stop = spans[i+1].start
		}
		if s.end > stop {
			continue
		}
		sections[s.name] = strings.TrimSpace(text[s.end:stop])
	}
	return sections
}
