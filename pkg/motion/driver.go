// Package motion measures proper motions between two epoch images over a
// set of rectangular regions.
//
// For each region the Driver cuts the same pixel box out of both epochs,
// estimates the displacement of the second cutout relative to the first
// with the xcorr estimators, and records the result. Regions are measured
// concurrently; results come back in region order.
package motion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"orionjets/internal/models"
	"orionjets/pkg/fitsimage"
	"orionjets/pkg/grid"
	"orionjets/pkg/regions"
	"orionjets/pkg/visualization"
	"orionjets/pkg/xcorr"
)

// Method selects which estimators run for each region.
type Method string

const (
	// MethodInteger measures whole-pixel shifts only.
	MethodInteger Method = "integer"
	// MethodGaussian fits the correlation peak; a failed fit fails the region.
	MethodGaussian Method = "gfit"
	// MethodBoth measures both and keeps the integer shift when the fit
	// does not converge.
	MethodBoth Method = "both"
)

// ParseMethod accepts "integer", "gfit" or "both".
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodInteger, MethodGaussian, MethodBoth:
		return m, nil
	case "":
		return MethodInteger, nil
	}
	return "", fmt.Errorf("motion: unknown method %q (want integer, gfit or both)", s)
}

// Params holds the driver configuration.
type Params struct {
	// NumCores bounds how many regions are measured at once.
	NumCores int

	// Method selects the estimators.
	Method Method

	// Estimator carries the correlation and fit settings.
	Estimator xcorr.Estimator

	// WCSTolerance is passed to fitsimage.CompareWCS.
	WCSTolerance float64

	// SkipWCSCheck measures even when the coordinate systems differ.
	SkipWCSCheck bool

	// SurfacesDir, when set, receives diagnostic images of each region's
	// correlation surface.
	SurfacesDir string

	// Logger receives progress; nil discards it.
	Logger logrus.FieldLogger
}

// Driver runs a proper-motion measurement.
type Driver struct {
	params Params
	log    logrus.FieldLogger
}

// NewDriver creates a driver, filling unset parameters with defaults.
// Zero Estimator fields fall back to the xcorr defaults when measuring.
func NewDriver(params Params) *Driver {
	if params.NumCores <= 0 {
		params.NumCores = runtime.NumCPU()
	}
	if params.Method == "" {
		params.Method = MethodInteger
	}
	log := params.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Driver{params: params, log: log}
}

// Run measures every box. The coordinate systems of the two epochs are
// compared first; a mismatch aborts the run before any region is measured.
// Failures confined to one region are recorded on its Measurement and do
// not stop the others.
func (d *Driver) Run(ctx context.Context, epoch1, epoch2 *fitsimage.Image, boxes []regions.Box) (*models.Run, error) {
	if !d.params.SkipWCSCheck {
		if err := fitsimage.CompareWCS(epoch1.WCS, epoch2.WCS, d.params.WCSTolerance); err != nil {
			return nil, err
		}
	}

	img1, err := epoch1.Plane()
	if err != nil {
		return nil, err
	}
	img2, err := epoch2.Plane()
	if err != nil {
		return nil, err
	}

	for _, b := range boxes {
		d.log.WithFields(logrus.Fields{"region": b.Label, "bbox": b.BoundingBox()}).Debug("region")
	}

	run := &models.Run{
		Epoch1:  epoch1.Path,
		Epoch2:  epoch2.Path,
		Method:  string(d.params.Method),
		Results: make([]models.Measurement, len(boxes)),
	}

	type measurementResult struct {
		index int
		m     models.Measurement
	}
	jobs := make(chan int)
	resultChan := make(chan measurementResult)

	workers := d.params.NumCores
	if workers > len(boxes) {
		workers = len(boxes)
	}
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				resultChan <- measurementResult{index: i, m: d.measure(img1, img2, i, boxes[i])}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range boxes {
			if ctx.Err() != nil {
				return
			}
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	done := make([]bool, len(boxes))
	for res := range resultChan {
		run.Results[res.index] = res.m
		done[res.index] = true
		d.logMeasurement(res.m)
	}

	// Regions never dispatched before cancellation.
	var cancelled error
	for i, ok := range done {
		if !ok {
			cancelled = ctx.Err()
			run.Results[i] = models.Measurement{Label: boxes[i].Label, Err: cancelled, Error: cancelled.Error()}
		}
	}
	if cancelled != nil {
		return run, cancelled
	}

	return run, nil
}

// measure runs the configured estimators on one region.
func (d *Driver) measure(img1, img2 grid.Array, index int, box regions.Box) models.Measurement {
	m := models.Measurement{
		Label:  box.Label,
		Box:    models.BoundsOf(box.BoundingBox()),
		Method: string(d.params.Method),
	}
	fail := func(err error) models.Measurement {
		m.Err = err
		m.Error = err.Error()
		return m
	}

	cut1, err := box.Cutout(img1)
	if err != nil {
		return fail(err)
	}
	cut2, err := box.Cutout(img2)
	if err != nil {
		return fail(err)
	}

	est := d.params.Estimator
	if d.params.Method == MethodInteger {
		shift, surface, err := est.IntegerSurface(cut1, cut2)
		if err != nil {
			return fail(err)
		}
		m.Integer = &shift
		if d.params.SurfacesDir != "" {
			m.Surfaces = d.saveSurfaces(index, box.Label, surface, grid.Array{})
		}
		return m
	}

	g, err := est.Gaussian(cut1, cut2)
	if g.Surface.Len() > 0 {
		peak := g.Peak
		m.Integer = &peak
		if d.params.SurfacesDir != "" {
			m.Surfaces = d.saveSurfaces(index, box.Label, g.Surface, g.Fitted)
		}
	}
	if err != nil {
		var fe *xcorr.FitConvergenceError
		if errors.As(err, &fe) {
			m.Iterations = fe.Iterations
			if d.params.Method == MethodBoth {
				m.Fallback = true
				d.log.WithField("region", box.Label).WithError(err).Warn("fit did not converge, keeping integer shift")
				return m
			}
		}
		return fail(err)
	}

	shift := g.Displacement
	model := g.Model
	m.Gaussian = &shift
	m.Fit = &model
	m.Iterations = g.Iterations
	return m
}

// saveSurfaces names the images after the region's position in the run as
// well as its label; distinct labels may share a slug.
func (d *Driver) saveSurfaces(index int, label string, surface, fitted grid.Array) []string {
	name := fmt.Sprintf("%03d_%s", index+1, visualization.Slug(label))
	files, err := visualization.SaveDiagnostics(d.params.SurfacesDir, name, surface, fitted)
	if err != nil {
		d.log.WithField("region", label).WithError(err).Warn("failed to save surface images")
	}
	return files
}

func (d *Driver) logMeasurement(m models.Measurement) {
	entry := d.log.WithField("region", m.Label)
	if m.Err != nil {
		entry.WithError(m.Err).Error("region failed")
		return
	}
	shift, _ := m.Shift()
	entry.WithFields(logrus.Fields{"dy": shift.DY, "dx": shift.DX, "fallback": m.Fallback}).Info("shift")
}
