package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/bull/oncodoc/internal/report"
)

// Histologic types, most specific first. The first match wins.
var histologyRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\binvasive\s+(?:ductal|lobular)\s+carcinoma[^.,;]*`),
	regexp.MustCompile(`(?i)\bcarcinoma\s+(?:of\s+)?no\s+special\s+type\b`),
	regexp.MustCompile(`(?i)\bductal\s+carcinoma\s+in\s+situ\b`),
	regexp.MustCompile(`(?i)\bdcis\b`),
	regexp.MustCompile(`(?i)\binfiltrating\s+ductal\s+carcinoma\b`),
	regexp.MustCompile(`(?i)\bidc\b`),
	regexp.MustCompile(`(?i)\bilc\b`),
}

const gradeValue = `([1-3]|iii|ii|i)\b`

// A grade qualified by its grading system beats a bare "grade N".
var gradeRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:nottingham|bloom[- ]?richardson|sbr)[^.]{0,50}?\bgrade\s*:?\s*` + gradeValue),
	regexp.MustCompile(`(?i)\bgrade\s*:?\s*` + gradeValue),
}

var (
	her2IHCRe    = regexp.MustCompile(`(?i)\bher-?2(?:/neu)?[^.;]{0,40}?\b([0-3]\+|(?:0|positive|negative|equivocal)\b)`)
	fishStatusRe = regexp.MustCompile(`(?i)\b(?:fish|sish|cish|ish)\b[^.;]{0,60}?\b(not\s+amplified|non-amplified|amplified|positive|negative)\b`)
	fishRatioRe  = regexp.MustCompile(`(?i)\b(?:fish|sish|cish|ish)\b[^.;]{0,80}?\bratio\s*[:=]?\s*(\d+(?:\.\d+)?)`)
	ki67Re       = regexp.MustCompile(`(?i)\bki[- ]?67\b[^%]{0,30}?(\d{1,3})\s*%`)
	lviRe        = regexp.MustCompile(`(?i)\blympho-?vascular\s*(?:space\s+)?invasion\b[^.;]{0,40}?\b(present|absent|not\s+identified|not\s+seen)\b`)
	pniRe        = regexp.MustCompile(`(?i)\bperineural\s*invasion\b[^.;]{0,40}?\b(present|absent|not\s+identified|not\s+seen)\b`)
)

type receptorPatterns struct {
	status  *regexp.Regexp
	percent *regexp.Regexp
	allred  *regexp.Regexp
}

func newReceptorPatterns(marker string) receptorPatterns {
	return receptorPatterns{
		status:  regexp.MustCompile(`(?i)\b` + marker + `\b[^.;]{0,60}?\b(positive|negative)\b`),
		percent: regexp.MustCompile(`(?i)\b` + marker + `\b[^%.;]{0,60}?(\d{1,3})\s*%`),
		allred:  regexp.MustCompile(`(?i)\b` + marker + `\b[^.;]{0,80}?\ballred\s*(?:score)?\s*[:=]?\s*(\d{1,2})\b`),
	}
}

var (
	erPatterns = newReceptorPatterns(`(?:er|estrogen\s+receptor|oestrogen\s+receptor)`)
	prPatterns = newReceptorPatterns(`(?:pr|pgr|progesterone\s+receptor)`)
)

// PathologyExtractor extracts histopathology and immunohistochemistry
// findings. Every field is an independent best-effort search.
type PathologyExtractor struct{}

// NewPathologyExtractor creates a pathology extractor.
func NewPathologyExtractor() *PathologyExtractor {
	return &PathologyExtractor{}
}

// Extract returns Pathology findings. Missing values stay nil.
func (e *PathologyExtractor) Extract(text string) report.Findings {
	flat := report.Flatten(text)

	var f report.Pathology
	for _, re := range histologyRes {
		if m := re.FindString(flat); m != "" {
			h := strings.TrimSpace(m)
			f.Histology = &h
			break
		}
	}
	for _, re := range gradeRes {
		if m := re.FindStringSubmatch(flat); m != nil {
			if g, ok := parseGrade(m[1]); ok {
				f.Grade = &g
				break
			}
		}
	}

	f.ER = receptor(erPatterns, flat)
	f.PR = receptor(prPatterns, flat)

	if m := her2IHCRe.FindStringSubmatch(flat); m != nil {
		v := m[1]
		if !strings.Contains(v, "+") {
			v = capitalize(v)
		}
		f.HER2.IHC = &v
	}
	f.HER2.FISHStatus = capture(fishStatusRe, flat, capitalize)
	if m := fishRatioRe.FindStringSubmatch(flat); m != nil {
		if r, err := strconv.ParseFloat(m[1], 64); err == nil {
			f.HER2.FISHRatio = &r
		}
	}

	f.Ki67Percent = captureInt(ki67Re, flat, 100)
	f.LymphovascularInvasion = capture(lviRe, flat, capitalize)
	f.PerineuralInvasion = capture(pniRe, flat, capitalize)
	return f
}

func receptor(p receptorPatterns, text string) report.Receptor {
	return report.Receptor{
		Status:      capture(p.status, text, capitalize),
		Percent:     captureInt(p.percent, text, 100),
		AllredScore: captureInt(p.allred, text, 8),
	}
}

func parseGrade(s string) (int, bool) {
	switch strings.ToLower(s) {
	case "1", "i":
		return 1, true
	case "2", "ii":
		return 2, true
	case "3", "iii":
		return 3, true
	}
	return 0, false
}

func capture(re *regexp.Regexp, text string, transform func(string) string) *string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v := transform(m[1])
	return &v
}

func captureInt(re *regexp.Regexp, text string, maxValue int) *int {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v, err := strconv.Atoi(m[1])
	if err != nil || v < 0 || v > maxValue {
		return nil
	}
	return &v
}

// capitalize lowercases s, collapses inner whitespace and upper-cases the
// first letter: "NOT  AMPLIFIED" becomes "Not amplified".
func capitalize(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
