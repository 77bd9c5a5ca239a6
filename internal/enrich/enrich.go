// Package enrich builds the text that is sent to the embedding provider.
package enrich

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bull/oncodoc/internal/report"
)

// MaxKeywords caps the MEDICAL TERMS part.
const MaxKeywords = 10

const separator = " | "

//go:embed vocabulary.yaml
var defaultVocabulary []byte

// Vocabulary holds the report-type context table and the keyword list.
type Vocabulary struct {
	ReportContexts map[string]string `yaml:"report_contexts"`
	Terms          []string          `yaml:"terms"`
}

// DefaultVocabulary returns the vocabulary compiled into the binary.
func DefaultVocabulary() *Vocabulary {
	v, err := parseVocabulary(defaultVocabulary)
	if err != nil {
		panic(fmt.Sprintf("embedded vocabulary: %v", err))
	}
	return v
}

// LoadVocabulary reads a vocabulary file. An empty path yields the default.
func LoadVocabulary(path string) (*Vocabulary, error) {
	if path == "" {
		return DefaultVocabulary(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	return parseVocabulary(data)
}

func parseVocabulary(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	if len(v.Terms) == 0 {
		return nil, fmt.Errorf("parse vocabulary: no terms")
	}
	return &v, nil
}

// Input is everything the enricher may prefix to a report.
type Input struct {
	ReportType report.ReportType
	PatientRef string
	Timestamp  time.Time // zero means unknown
	Content    string
	// Highlights is a one-line rendering of the structured findings.
	Highlights string
}

// Enricher builds embedding input text. It is safe for concurrent use.
type Enricher struct {
	contexts map[report.ReportType]string
	terms    []string
}

// New creates an enricher over vocab. nil selects the default vocabulary.
func New(vocab *Vocabulary) *Enricher {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	e := &Enricher{contexts: make(map[report.ReportType]string, len(vocab.ReportContexts))}
	for k, v := range vocab.ReportContexts {
		e.contexts[report.ParseReportType(k)] = v
	}
	seen := make(map[string]bool, len(vocab.Terms))
	for _, t := range vocab.Terms {
		t = strings.ToLower(strings.Join(strings.Fields(t), " "))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		e.terms = append(e.terms, t)
	}
	return e
}

// Enrich joins the context parts with " | ":
//
//	MEDICAL REPORT: | REPORT TYPE: ... | PATIENT: ... | DATE: ... | CONTENT: ... | FINDINGS: ... | MEDICAL TERMS: ...
//
// Parts whose input is unknown are omitted.
func (e *Enricher) Enrich(in Input) string {
	parts := []string{"MEDICAL REPORT:"}
	if ctx, ok := e.contexts[in.ReportType]; ok {
		parts = append(parts, "REPORT TYPE: "+ctx)
	}
	if p := strings.TrimSpace(in.PatientRef); p != "" {
		parts = append(parts, "PATIENT: "+p)
	}
	if !in.Timestamp.IsZero() {
		parts = append(parts, "DATE: "+in.Timestamp.UTC().Format(time.RFC3339))
	}
	parts = append(parts, "CONTENT: "+in.Content)
	if h := strings.TrimSpace(in.Highlights); h != "" {
		parts = append(parts, "FINDINGS: "+h)
	}
	if kw := e.Keywords(in.Content); len(kw) > 0 {
		parts = append(parts, "MEDICAL TERMS: "+strings.Join(kw, ", "))
	}
	return strings.Join(parts, separator)
}

var wordRe = regexp.MustCompile(`[a-z0-9]+`)

// Keywords returns up to MaxKeywords vocabulary terms found in content as
// whole words, in vocabulary order. Hyphenated spellings also match their
// joined form, so "Ki-67" matches "ki67".
func (e *Enricher) Keywords(content string) []string {
	lower := strings.ToLower(content)
	haystack := " " + strings.Join(wordRe.FindAllString(lower, -1), " ") + " " +
		strings.Join(wordRe.FindAllString(strings.ReplaceAll(lower, "-", ""), -1), " ") + " "

	var found []string
	for _, t := range e.terms {
		if strings.Contains(haystack, " "+t+" ") {
			found = append(found, t)
			if len(found) == MaxKeywords {
				break
			}
		}
	}
	return found
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
	"02-Jan-2006",
}

// ParseTimestamp parses a caller-supplied timestamp. ok is false for empty or
// unrecognised values, which callers drop from the enrichment context.
func ParseTimestamp(s string) (t time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
