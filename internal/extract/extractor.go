package extract

import "github.com/bull/oncodoc/internal/report"

// Extractor turns normalized text of one report type into findings. It never
// fails; fields it cannot find are left nil.
type Extractor interface {
	Extract(text string) report.Findings
}

// Registry selects the extractor for a report type.
type Registry struct {
	byType map[report.ReportType]Extractor
}

// NewRegistry returns a registry with the blood count, imaging and
// pathology extractors.
func NewRegistry() *Registry {
	return &Registry{
		byType: map[report.ReportType]Extractor{
			report.TypeBloodCount: NewBloodCountExtractor(),
			report.TypeImaging:    NewImagingExtractor(),
			report.TypePathology:  NewPathologyExtractor(),
		},
	}
}

// Register replaces the extractor for t.
func (r *Registry) Register(t report.ReportType, e Extractor) {
	r.byType[t] = e
}

// Extract runs the extractor registered for t. Types without an extractor
// yield empty findings of that type.
func (r *Registry) Extract(t report.ReportType, text string) report.Findings {
	e, ok := r.byType[t]
	if !ok {
		return report.EmptyFindings(t)
	}
	return e.Extract(text)
}
