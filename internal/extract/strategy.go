// Package extract pulls structured findings out of normalized report text.
//
// Numeric fields are resolved by an ordered chain of strategies. The first
// strategy that yields a value wins and later strategies are not consulted.
package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// number matches plain decimals and grouped thousands ("1,50,000", "150,000").
const number = `(\d{1,3}(?:,\d{2,3})+(?:\.\d+)?|\d+(?:\.\d+)?)`

// Strategy finds one numeric value in text.
type Strategy interface {
	Name() string
	Find(text string) (float64, bool)
}

// Chain evaluates strategies in order and stops at the first hit.
type Chain []Strategy

// Find returns the first value produced by any strategy in the chain.
func (c Chain) Find(text string) (float64, bool) {
	v, _, ok := c.FindWith(text)
	return v, ok
}

// FindWith is Find that also reports which strategy produced the value.
func (c Chain) FindWith(text string) (float64, string, bool) {
	for _, s := range c {
		if v, ok := s.Find(text); ok {
			return v, s.Name(), true
		}
	}
	return 0, "", false
}

// LabelChain builds the standard three-tier chain for a label pattern: value
// before label, label with separator, then label followed loosely by a value.
// Labels carry their own trailing word boundary; the after-label strategies
// add the leading one. valid and claims may be nil.
func LabelChain(label string, valid func(float64) bool, claims *regexp.Regexp) Chain {
	return Chain{
		BeforeLabel(label, valid, claims),
		Separated(label, valid),
		Loose(label, valid),
	}
}

type regexStrategy struct {
	name  string
	re    *regexp.Regexp
	valid func(float64) bool
	// owned reports whether the match starting at start may be taken.
	owned func(text string, start int) bool
}

func (s *regexStrategy) Name() string { return s.name }

func (s *regexStrategy) Find(text string) (float64, bool) {
	for _, m := range s.re.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[2], m[3]
		if s.owned != nil && !s.owned(text, start) {
			continue
		}
		v, ok := parseNumber(text[start:end])
		if !ok {
			continue
		}
		if s.valid != nil && !s.valid(v) {
			continue
		}
		return v, true
	}
	return 0, false
}

// BeforeLabel matches a value printed immediately before its label, as in
// "3650 TLC" or "3650TLC". A value that is itself the value of a preceding
// label is skipped: claims (see Claims) decides that from the text between
// the line start and the value.
// In "TLC 3650 HAEMOGLOBIN 9.5" the 3650 belongs to TLC and is not read as
// a haemoglobin value, while "Result: 3650 TLC" still reads 3650 as TLC.
func BeforeLabel(label string, valid func(float64) bool, claims *regexp.Regexp) Strategy {
	s := &regexStrategy{
		name:  "before_label",
		re:    regexp.MustCompile(`(?i)` + number + `[ \t]*(?:` + label + `)`),
		valid: valid,
	}
	if claims != nil {
		s.owned = func(text string, start int) bool {
			lineStart := strings.LastIndexByte(text[:start], '\n') + 1
			return !claims.MatchString(text[lineStart:start])
		}
	}
	return s
}

// Claims builds the matcher for values owned by one of labels: a label at
// the end of the preceding text, optionally followed by ':', '-' or '='.
func Claims(labels ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(labels, "|") + `)[ \t]*[:\-=]?[ \t]*$`)
}

// Separated matches "label: value", "label - value" and "label = value".
func Separated(label string, valid func(float64) bool) Strategy {
	return &regexStrategy{
		name:  "separated",
		re:    regexp.MustCompile(`(?i)\b(?:` + label + `)[ \t]*[:\-=][ \t]*` + number),
		valid: valid,
	}
}

// Loose matches a label followed on the same line by a value, allowing a
// short run of non-digit text (units, method names) in between.
func Loose(label string, valid func(float64) bool) Strategy {
	return &regexStrategy{
		name:  "loose",
		re:    regexp.MustCompile(`(?i)\b(?:` + label + `)[^0-9\n]{0,24}?` + number),
		valid: valid,
	}
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
