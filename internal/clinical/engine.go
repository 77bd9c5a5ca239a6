// Package clinical applies threshold and staging rules to extracted findings.
package clinical

import (
	"fmt"
	"math"
	"strconv"

	"github.com/bull/oncodoc/internal/report"
)

// Thresholds are the blood-count alert cutoffs. A value strictly below its
// cutoff raises a flag.
type Thresholds struct {
	WBC        float64 // /µL
	ANC        float64 // /µL
	Hemoglobin float64 // g/dL
	Platelets  float64 // /µL
}

// DefaultThresholds returns the standard oncology alert cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		WBC:        4000,
		ANC:        1000,
		Hemoglobin: 10.0,
		Platelets:  150000,
	}
}

// AlertLevel summarises whether a report needs attention.
type AlertLevel string

const (
	AlertHigh   AlertLevel = "high"
	AlertNormal AlertLevel = "normal"
)

// Assessment is the rule engine output for one report.
type Assessment struct {
	Flags      []string       `json:"flags"`
	Alerts     []report.Alert `json:"alerts"`
	AlertLevel AlertLevel     `json:"alert_level"`
}

// Engine evaluates findings against configured thresholds. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	thresholds Thresholds
}

// NewEngine creates an engine. Zero-valued cutoffs fall back to defaults.
func NewEngine(t Thresholds) *Engine {
	def := DefaultThresholds()
	if t.WBC <= 0 {
		t.WBC = def.WBC
	}
	if t.ANC <= 0 {
		t.ANC = def.ANC
	}
	if t.Hemoglobin <= 0 {
		t.Hemoglobin = def.Hemoglobin
	}
	if t.Platelets <= 0 {
		t.Platelets = def.Platelets
	}
	return &Engine{thresholds: t}
}

// Thresholds returns the cutoffs in effect.
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// Evaluate produces flags, alerts and the alert level for findings. Only
// blood counts carry threshold rules; imaging staging is derived by the
// extractor and pathology has no rules.
func (e *Engine) Evaluate(f report.Findings) Assessment {
	a := Assessment{Flags: []string{}, Alerts: []report.Alert{}, AlertLevel: AlertNormal}

	bc, ok := f.(report.BloodCount)
	if !ok {
		return a
	}

	add := func(field, msg string) {
		a.Flags = append(a.Flags, msg)
		a.Alerts = append(a.Alerts, report.Alert{
			Message:     msg,
			Severity:    report.SeverityHigh,
			SourceField: field,
		})
	}

	t := e.thresholds
	if bc.WBC != nil && *bc.WBC < t.WBC {
		add("wbc", fmt.Sprintf("WBC low (%s/µL, normal ≥%s)", num(*bc.WBC), num(t.WBC)))
	}
	if bc.ANC != nil && *bc.ANC < t.ANC {
		add("anc", fmt.Sprintf("ANC low (%s/µL, normal ≥%s)", num(*bc.ANC), num(t.ANC)))
	}
	if bc.Hemoglobin != nil && *bc.Hemoglobin < t.Hemoglobin {
		add("hemoglobin", fmt.Sprintf("Hemoglobin low (%s g/dL, normal ≥%s)", num(*bc.Hemoglobin), num(t.Hemoglobin)))
	}
	if bc.Platelets != nil && *bc.Platelets < t.Platelets {
		add("platelets", fmt.Sprintf("Platelets low (%s/µL, normal ≥%s)", num(*bc.Platelets), num(t.Platelets)))
	}

	if len(a.Flags) > 0 {
		a.AlertLevel = AlertHigh
	}
	return a
}

// AbsoluteNeutrophilCount derives ANC as round(wbc × percent / 100). It
// returns nil unless both inputs are present.
func AbsoluteNeutrophilCount(wbc, neutrophilPercent *float64) *float64 {
	if wbc == nil || neutrophilPercent == nil {
		return nil
	}
	anc := math.Round(*wbc * *neutrophilPercent / 100)
	return &anc
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
