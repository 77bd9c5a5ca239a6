// Package report holds the medical report domain model, the text normalizer and
// the report classifier.
package report

import (
	"encoding/json"
	"fmt"
)

// ReportType is the closed set of report labels produced by the classifier.
type ReportType string

const (
	TypeBloodCount ReportType = "blood_count"
	TypeImaging    ReportType = "imaging"
	TypePathology  ReportType = "pathology"
	TypeUnknown    ReportType = "unknown"
)

// ParseReportType maps a stored or caller-supplied label to a ReportType.
// Legacy labels (cbc, pet_ct, biopsy) are accepted. Anything else is unknown.
func ParseReportType(s string) ReportType {
	switch s {
	case "blood_count", "cbc", "blood_test":
		return TypeBloodCount
	case "imaging", "pet_ct", "petct", "radiology":
		return TypeImaging
	case "pathology", "biopsy", "histopathology":
		return TypePathology
	default:
		return TypeUnknown
	}
}

// Known reports whether t is one of the three analysable report types.
func (t ReportType) Known() bool {
	return t == TypeBloodCount || t == TypeImaging || t == TypePathology
}

// Findings is the structured result of a field extractor. It is a closed sum
// type with one variant per report type.
type Findings interface {
	ReportType() ReportType
	isFindings()
}

// BloodCount holds complete blood count values. Every field is independently
// nullable. ANC is only ever derived from WBC and NeutrophilPercent.
type BloodCount struct {
	WBC               *float64 `json:"wbc"`
	Hemoglobin        *float64 `json:"hemoglobin"`
	Platelets         *float64 `json:"platelets"`
	NeutrophilPercent *float64 `json:"neutrophils_percent"`
	ANC               *float64 `json:"anc"`
}

func (BloodCount) ReportType() ReportType { return TypeBloodCount }
func (BloodCount) isFindings()            {}

// Lesion is a measured focus of uptake.
type Lesion struct {
	SizeCM [2]float64 `json:"size_cm"`
	SUVmax float64    `json:"suvmax"`
}

// MaxDimension returns the larger of the two measured dimensions.
func (l Lesion) MaxDimension() float64 {
	return max(l.SizeCM[0], l.SizeCM[1])
}

// NodeUptake is a lymph node reported with uptake only.
type NodeUptake struct {
	SUVmax float64 `json:"suvmax"`
}

// Metastasis records the closed-world distant disease inference.
type Metastasis struct {
	DistantSuspected bool `json:"distant_metastasis_suspected"`
	LungsClear       bool `json:"lungs_clear"`
}

// TNM is the radiologic staging. An empty T means the primary was not measured.
type TNM struct {
	T          string `json:"T"`
	N          string `json:"N"`
	M          string `json:"M"`
	StageGroup string `json:"stage_group"`
}

// Imaging holds PET/CT findings and the derived staging.
type Imaging struct {
	PrimaryLesion       *Lesion     `json:"primary_lesion"`
	AxillaryNode        *Lesion     `json:"axillary_node"`
	InternalMammaryNode *NodeUptake `json:"internal_mammary_node"`
	Metastasis          Metastasis  `json:"metastasis"`
	Staging             TNM         `json:"tnm_staging"`
}

func (Imaging) ReportType() ReportType { return TypeImaging }
func (Imaging) isFindings()            {}

// Receptor is a hormone receptor result.
type Receptor struct {
	Status      *string `json:"status"`
	Percent     *int    `json:"percent"`
	AllredScore *int    `json:"allred_score"`
}

// HER2 holds IHC and FISH results.
type HER2 struct {
	IHC        *string  `json:"ihc_result"`
	FISHStatus *string  `json:"fish_status"`
	FISHRatio  *float64 `json:"fish_ratio"`
}

// Pathology holds biopsy / histopathology findings.
type Pathology struct {
	Histology              *string  `json:"histology"`
	Grade                  *int     `json:"grade"`
	ER                     Receptor `json:"er"`
	PR                     Receptor `json:"pr"`
	HER2                   HER2     `json:"her2"`
	Ki67Percent            *int     `json:"ki67_percent"`
	LymphovascularInvasion *string  `json:"lymphovascular_invasion"`
	PerineuralInvasion     *string  `json:"perineural_invasion"`
}

func (Pathology) ReportType() ReportType { return TypePathology }
func (Pathology) isFindings()            {}

// Unknown is the empty variant for unclassified reports.
type Unknown struct{}

func (Unknown) ReportType() ReportType { return TypeUnknown }
func (Unknown) isFindings()            {}

// Severity of an alert.
type Severity string

// SeverityHigh is the only severity the rule engine raises.
const SeverityHigh Severity = "high"

// Alert is a non-persistent clinical alert derived from findings.
type Alert struct {
	Message     string   `json:"message"`
	Severity    Severity `json:"severity"`
	SourceField string   `json:"source_field"`
}

// MarshalFindings encodes findings as JSON for storage payloads.
func MarshalFindings(f Findings) ([]byte, error) {
	if f == nil {
		f = Unknown{}
	}
	return json.Marshal(f)
}

// UnmarshalFindings decodes stored findings using the report type as the tag.
func UnmarshalFindings(t ReportType, data []byte) (Findings, error) {
	if len(data) == 0 {
		return EmptyFindings(t), nil
	}
	switch t {
	case TypeBloodCount:
		var f BloodCount
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decode blood count findings: %w", err)
		}
		return f, nil
	case TypeImaging:
		var f Imaging
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decode imaging findings: %w", err)
		}
		return f, nil
	case TypePathology:
		var f Pathology
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decode pathology findings: %w", err)
		}
		return f, nil
	default:
		return Unknown{}, nil
	}
}

// OrEmpty returns s, or an empty slice when s is nil, so lists encode as [].
func OrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// EmptyFindings returns the zero variant for t.
func EmptyFindings(t ReportType) Findings {
	switch t {
	case TypeBloodCount:
		return BloodCount{}
	case TypeImaging:
		return Imaging{}
	case TypePathology:
		return Pathology{}
	default:
		return Unknown{}
	}
}
