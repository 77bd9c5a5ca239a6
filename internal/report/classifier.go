package report

import "regexp"

// Classifier assigns a ReportType to normalized text.
//
// Marker sets are checked in a fixed priority order: imaging, then pathology,
// then blood count. Imaging reports routinely quote lab values in their
// clinical history, so imaging markers must win. The first set with any
// matching marker decides; no match yields TypeUnknown. This order is part of
// the contract because it selects which extractor runs.
type Classifier struct {
	rules []classifierRule
}

type classifierRule struct {
	reportType ReportType
	markers    []*regexp.Regexp
}

var (
	imagingMarkers = []string{
		`\bpet\s*/?\s*ct\b`,
		`\bfdg\b`,
		`\bsuv\s*max\b`,
		`\bwhole[- ]?body\b`,
		`positron emission tomography`,
	}
	pathologyMarkers = []string{
		`\bhistopatholog(?:y|ical)\b`,
		`\bbiopsy\b`,
		`\bimmunohistochemistry\b`,
		`\bihc\b`,
		`\ber\b.*\bpr\b`,
		`\bher2\b`,
		`\bki[- ]?67\b`,
		`\bnottingham\b`,
		`\bbloom[- ]?richardson\b`,
	}
	bloodCountMarkers = []string{
		`\bcomplete\s+blood\s+count\b`,
		`\bc\.?b\.?c\.?\b`,
		`\bha?ematology\s+test\s+report\b`,
		`\bwbc\b`,
		`\btlc\b`,
		`\bha?emoglobin\b`,
		`\bplatelet\s+count\b`,
	}
)

// NewClassifier builds the default classifier.
func NewClassifier() *Classifier {
	return &Classifier{
		rules: []classifierRule{
			{TypeImaging, compileAll(imagingMarkers)},
			{TypePathology, compileAll(pathologyMarkers)},
			{TypeBloodCount, compileAll(bloodCountMarkers)},
		},
	}
}

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

// Classify returns the report type for normalized text.
func (c *Classifier) Classify(text string) ReportType {
	for _, rule := range c.rules {
		for _, re := range rule.markers {
			if re.MatchString(text) {
				return rule.reportType
			}
		}
	}
	return TypeUnknown
}
