// Package visualization renders correlation surfaces and fitted peak models
// as grayscale images for inspection.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"orionjets/pkg/grid"
)

// Viewer renders one 2-D array.
type Viewer struct {
	// data holds the array being rendered
	data grid.Array

	// lo and hi bound the gray scale; values outside are clipped
	lo float64
	hi float64
}

// NewViewer creates a viewer stretched linearly between the finite minimum
// and maximum of a.
func NewViewer(a grid.Array) (*Viewer, error) {
	if a.NDim() != 2 {
		return nil, fmt.Errorf("visualization: need a 2-d array, got shape %v", a.Shape)
	}
	lo, hi := a.MinMax()
	return &Viewer{data: a, lo: lo, hi: hi}, nil
}

// SetRange overrides the gray scale limits.
func (v *Viewer) SetRange(lo, hi float64) {
	v.lo, v.hi = lo, hi
}

// Image converts the array to 16-bit gray. Row 0 of the array is drawn at
// the bottom, matching the FITS convention that y increases upward.
// Non-finite values are black.
func (v *Viewer) Image() image.Image {
	rows, cols := v.data.Rows(), v.data.Cols()
	img := image.NewGray16(image.Rect(0, 0, cols, rows))

	span := v.hi - v.lo
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			val := v.data.At(y, x)
			var level float64
			switch {
			case math.IsNaN(val) || math.IsInf(val, 0):
				level = 0
			case span <= 0:
				level = 0.5
			default:
				level = (val - v.lo) / span
			}
			g := uint16(math.Max(0, math.Min(65535, level*65535)))
			img.SetGray16(x, rows-1-y, color.Gray16{Y: g})
		}
	}
	return img
}

// Save writes the rendered array as a PNG file.
func (v *Viewer) Save(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := png.Encode(file, v.Image()); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// SaveDiagnostics writes the correlation surface of one region to dir, and
// when fitted is non-empty also the fitted model and the residual
// surface - fitted. It returns the files written. The surface and model
// share one gray scale so they can be compared by eye.
func SaveDiagnostics(dir, label string, surface, fitted grid.Array) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	base := filepath.Join(dir, Slug(label))

	sv, err := NewViewer(surface)
	if err != nil {
		return nil, err
	}
	written := []string{base + "_surface.png"}
	if err := sv.Save(written[0]); err != nil {
		return nil, err
	}
	if fitted.Len() == 0 {
		return written, nil
	}

	mv, err := NewViewer(fitted)
	if err != nil {
		return written, err
	}
	mv.SetRange(sv.lo, sv.hi)
	if err := mv.Save(base + "_model.png"); err != nil {
		return written, err
	}
	written = append(written, base+"_model.png")

	resid, err := grid.Sub(surface, fitted)
	if err != nil {
		return written, err
	}
	rv, err := NewViewer(resid)
	if err != nil {
		return written, err
	}
	if err := rv.Save(base + "_residual.png"); err != nil {
		return written, err
	}
	return append(written, base+"_residual.png"), nil
}

// Slug turns a region label into a file name stem: "HH 529" -> "hh_529".
func Slug(label string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(label)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "region"
	}
	return b.String()
}
