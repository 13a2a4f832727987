package models

import (
	"orionjets/pkg/fitting"
	"orionjets/pkg/regions"
	"orionjets/pkg/xcorr"
)

// Measurement is the proper-motion result for one region
type Measurement struct {
	// Label names the region, from the region file or "Box NNN"
	Label string `yaml:"label"`

	// Box is the pixel bounding box both cutouts were taken from
	Box Bounds `yaml:"bbox"`

	// Method is the estimator that produced the result
	Method string `yaml:"method"`

	// Integer is the whole-pixel displacement, when measured
	Integer *xcorr.Displacement `yaml:"integer,omitempty"`

	// Gaussian is the sub-pixel displacement from the fitted peak
	Gaussian *xcorr.Displacement `yaml:"gaussian,omitempty"`

	// Fit is the fitted peak model in surface coordinates
	Fit *fitting.Gaussian2D `yaml:"fit,omitempty"`

	// Iterations is the number of fit iterations used
	Iterations int `yaml:"iterations,omitempty"`

	// Fallback is set when the fit failed and Integer stands in for it
	Fallback bool `yaml:"fallback,omitempty"`

	// Surfaces lists diagnostic images written for this region
	Surfaces []string `yaml:"surfaces,omitempty"`

	// Error is the message of Err, kept for the results file
	Error string `yaml:"error,omitempty"`

	// Err is the failure that stopped this region, if any
	Err error `yaml:"-"`
}

// Shift returns the best displacement available: the sub-pixel one when a
// fit succeeded, otherwise the integer one.
func (m Measurement) Shift() (xcorr.Displacement, bool) {
	if m.Gaussian != nil {
		return *m.Gaussian, true
	}
	if m.Integer != nil {
		return *m.Integer, true
	}
	return xcorr.Displacement{}, false
}

// Failed reports whether the region produced no usable displacement.
func (m Measurement) Failed() bool {
	_, ok := m.Shift()
	return !ok || m.Err != nil
}

// Bounds is a 0-based half-open pixel range, as in regions.BBox.
type Bounds struct {
	XMin int `yaml:"xmin"`
	XMax int `yaml:"xmax"`
	YMin int `yaml:"ymin"`
	YMax int `yaml:"ymax"`
}

// BoundsOf converts a region bounding box.
func BoundsOf(b regions.BBox) Bounds {
	return Bounds{XMin: b.XMin, XMax: b.XMax, YMin: b.YMin, YMax: b.YMax}
}

// Run is one comparison of two epochs over a set of regions
type Run struct {
	Epoch1  string        `yaml:"epoch1"`
	Epoch2  string        `yaml:"epoch2"`
	Regions string        `yaml:"regions"`
	Method  string        `yaml:"method"`
	Results []Measurement `yaml:"results"`
}

// Failures counts the regions that produced no usable displacement.
func (r *Run) Failures() int {
	n := 0
	for _, m := range r.Results {
		if m.Failed() {
			n++
		}
	}
	return n
}
