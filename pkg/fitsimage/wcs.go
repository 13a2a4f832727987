package fitsimage

import (
	"errors"
	"fmt"
	"math"

	"github.com/astrogo/fitsio"
	"gonum.org/v1/gonum/floats/scalar"
)

// ErrCoordinateSystemMismatch classifies epoch images whose pixel grids
// cannot be compared directly.
var ErrCoordinateSystemMismatch = errors.New("fitsimage: coordinate systems differ")

// WCS holds the keywords of a FITS world coordinate system that define the
// pixel-to-world transformation.
//
// The linear part is kept as the effective CD matrix, diag(CDELT) * PC or
// CDi_j when present, so the two header conventions compare equal when
// they describe the same mapping.
type WCS struct {
	NAxis int
	CType []string
	CUnit []string
	CRVal []float64
	CRPix []float64
	CD    [][]float64
	// LonPole and LatPole are NaN when the header omits them.
	LonPole float64
	LatPole float64
	RadeSys string
}

// ParseWCS extracts the primary WCS from a header. Missing keywords take
// their FITS defaults (CDELT 1, PC identity, CRPIX/CRVAL 0).
func ParseWCS(hdr *fitsio.Header) WCS {
	n := 0
	if v, ok := cardFloat(hdr, "WCSAXES"); ok {
		n = int(v)
	} else {
		n = len(hdr.Axes())
	}

	w := WCS{
		NAxis:   n,
		CType:   make([]string, n),
		CUnit:   make([]string, n),
		CRVal:   make([]float64, n),
		CRPix:   make([]float64, n),
		CD:      make([][]float64, n),
		LonPole: math.NaN(),
		LatPole: math.NaN(),
	}

	hasCD := false
	for i := 1; i <= n; i++ {
		for j := 1; j <= n; j++ {
			if _, ok := cardFloat(hdr, fmt.Sprintf("CD%d_%d", i, j)); ok {
				hasCD = true
			}
		}
	}

	for i := 0; i < n; i++ {
		k := i + 1
		w.CType[i], _ = cardString(hdr, fmt.Sprintf("CTYPE%d", k))
		w.CUnit[i], _ = cardString(hdr, fmt.Sprintf("CUNIT%d", k))
		w.CRVal[i], _ = cardFloat(hdr, fmt.Sprintf("CRVAL%d", k))
		w.CRPix[i], _ = cardFloat(hdr, fmt.Sprintf("CRPIX%d", k))

		cdelt := 1.0
		if v, ok := cardFloat(hdr, fmt.Sprintf("CDELT%d", k)); ok && !hasCD {
			cdelt = v
		}

		w.CD[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if hasCD {
				w.CD[i][j], _ = cardFloat(hdr, fmt.Sprintf("CD%d_%d", k, j+1))
				continue
			}
			pc := 0.0
			if i == j {
				pc = 1.0
			}
			if v, ok := cardFloat(hdr, fmt.Sprintf("PC%d_%d", k, j+1)); ok {
				pc = v
			}
			w.CD[i][j] = cdelt * pc
		}
	}

	if v, ok := cardFloat(hdr, "LONPOLE"); ok {
		w.LonPole = v
	}
	if v, ok := cardFloat(hdr, "LATPOLE"); ok {
		w.LatPole = v
	}
	if s, ok := cardString(hdr, "RADESYS"); ok {
		w.RadeSys = s
	} else if s, ok := cardString(hdr, "RADECSYS"); ok {
		w.RadeSys = s
	}

	return w
}

// CoordinateSystemMismatchError names the first WCS keyword on which two
// images disagree.
type CoordinateSystemMismatchError struct {
	Key string
	A   string
	B   string
}

func (e *CoordinateSystemMismatchError) Error() string {
	return fmt.Sprintf("fitsimage: coordinate systems differ in %s (%s vs %s)", e.Key, e.A, e.B)
}

func (e *CoordinateSystemMismatchError) Is(target error) bool {
	return target == ErrCoordinateSystemMismatch
}

// CompareWCS checks that a and b describe the same pixel-to-world mapping.
// Ancillary metadata (observation date, equinox, observer) is ignored.
// Numeric keywords compare within tol, absolute or relative; tol 0 demands
// exact equality.
func CompareWCS(a, b WCS, tol float64) error {
	if a.NAxis != b.NAxis {
		return mismatch("NAXIS", a.NAxis, b.NAxis)
	}
	for i := 0; i < a.NAxis; i++ {
		k := i + 1
		if a.CType[i] != b.CType[i] {
			return mismatch(fmt.Sprintf("CTYPE%d", k), a.CType[i], b.CType[i])
		}
		if a.CUnit[i] != b.CUnit[i] {
			return mismatch(fmt.Sprintf("CUNIT%d", k), a.CUnit[i], b.CUnit[i])
		}
		if !equal(a.CRVal[i], b.CRVal[i], tol) {
			return mismatch(fmt.Sprintf("CRVAL%d", k), a.CRVal[i], b.CRVal[i])
		}
		if !equal(a.CRPix[i], b.CRPix[i], tol) {
			return mismatch(fmt.Sprintf("CRPIX%d", k), a.CRPix[i], b.CRPix[i])
		}
		for j := 0; j < a.NAxis; j++ {
			if !equal(a.CD[i][j], b.CD[i][j], tol) {
				return mismatch(fmt.Sprintf("CD%d_%d", k, j+1), a.CD[i][j], b.CD[i][j])
			}
		}
	}
	if !poleEqual(a.LonPole, b.LonPole, tol) {
		return mismatch("LONPOLE", a.LonPole, b.LonPole)
	}
	if !poleEqual(a.LatPole, b.LatPole, tol) {
		return mismatch("LATPOLE", a.LatPole, b.LatPole)
	}
	if a.RadeSys != b.RadeSys {
		return mismatch("RADESYS", a.RadeSys, b.RadeSys)
	}
	return nil
}

// poleEqual compares LONPOLE or LATPOLE only when both headers set it; an
// absent pole takes a projection-dependent default.
func poleEqual(a, b, tol float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return equal(a, b, tol)
}

func equal(a, b, tol float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	if tol == 0 {
		return a == b
	}
	return scalar.EqualWithinAbsOrRel(a, b, tol, tol)
}

func mismatch(key string, a, b interface{}) error {
	return &CoordinateSystemMismatchError{Key: key, A: fmt.Sprint(a), B: fmt.Sprint(b)}
}
