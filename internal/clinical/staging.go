package clinical

import "github.com/bull/oncodoc/internal/report"

// Radiologic TNM categories.
const (
	T0 = "cT0"
	T1 = "cT1"
	T2 = "cT2"
	T3 = "cT3"
	T4 = "cT4"

	N0 = "cN0"
	N1 = "cN1"
	N2 = "cN2"
	N3 = "cN3"

	M0 = "cM0"
	M1 = "cM1"
)

// Stage groups.
const (
	StageI             = "Stage I"
	StageIIA           = "Stage IIA"
	StageIIB           = "Stage IIB"
	StageIII           = "Stage III"
	StageIV            = "Stage IV"
	StageIndeterminate = "Indeterminate"
)

// Cutoffs used by DeriveTNM.
const (
	t1MaxCM             = 2.0
	t2MaxCM             = 5.0
	nodalSUVmaxPositive = 2.5
)

// DeriveTNM computes radiologic staging from imaging findings.
//
// T comes from the primary lesion's largest dimension and is empty when no
// primary was measured. N is N1 when the axillary node SUVmax is at least
// 2.5. M follows the distant metastasis inference. T4, N2 and N3 are never
// produced here.
func DeriveTNM(img report.Imaging) report.TNM {
	var tnm report.TNM

	if img.PrimaryLesion != nil {
		switch size := img.PrimaryLesion.MaxDimension(); {
		case size <= t1MaxCM:
			tnm.T = T1
		case size <= t2MaxCM:
			tnm.T = T2
		default:
			tnm.T = T3
		}
	}

	tnm.N = N0
	if img.AxillaryNode != nil && img.AxillaryNode.SUVmax >= nodalSUVmaxPositive {
		tnm.N = N1
	}

	tnm.M = M0
	if img.Metastasis.DistantSuspected {
		tnm.M = M1
	}

	tnm.StageGroup = StageGroup(tnm.T, tnm.N, tnm.M)
	return tnm
}

// StageGroup maps a (T, N, M) combination to a simplified AJCC stage group.
// Combinations the table does not cover yield StageIndeterminate.
func StageGroup(t, n, m string) string {
	switch {
	case m == M1:
		return StageIV
	case t == T1 && n == N0 && m == M0:
		return StageI
	case ((t == T0 || t == T1) && n == N1 || t == T2 && n == N0) && m == M0:
		return StageIIA
	case (t == T2 && n == N1 || t == T3 && n == N0) && m == M0:
		return StageIIB
	case t == T4 || n == N2 || n == N3:
		return StageIII
	default:
		return StageIndeterminate
	}
}
