package report

import (
	"regexp"
	"strings"
)

var (
	horizontalSpace = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)

	// Lines dropped entirely: page counters and release stamps printed by
	// lab information systems on every page.
	boilerplateLines = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^page\s*no\s*[:.]`),
		regexp.MustCompile(`(?i)^page\s+\d+\s*(?:of|/)\s*\d+$`),
		regexp.MustCompile(`(?i)^-*\s*page\s+\d+\s*-*$`),
		regexp.MustCompile(`(?i)^report\s+released\s+on\s*:`),
		regexp.MustCompile(`(?i)^printed\s+on\s*:`),
	}
)

// Normalize cleans extracted document text into the canonical form used by
// every downstream step: carriage returns stripped, horizontal whitespace
// collapsed, boilerplate lines removed and runs of blank lines collapsed to
// one. Normalize is idempotent.
func Normalize(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
		if isBoilerplate(line) {
			continue
		}
		if line == "" {
			if blank || len(out) == 0 {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, line)
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}

func isBoilerplate(line string) bool {
	for _, re := range boilerplateLines {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// Flatten joins all lines with single spaces. Some extractors match across
// line breaks and expect a single-line input.
func Flatten(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
