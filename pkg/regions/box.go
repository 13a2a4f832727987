// Package regions reads the rectangular sub-regions in which proper motions
// are measured.
//
// Two file formats are accepted: DS9 region files in the image coordinate
// system, and a YAML list of boxes. Both use DS9 pixel conventions, where the
// center of the first pixel is (1, 1).
package regions

import (
	"errors"
	"fmt"
	"math"

	"orionjets/pkg/grid"
)

var (
	// ErrDuplicateLabel is returned when two boxes in a set share a label.
	ErrDuplicateLabel = errors.New("regions: duplicate label")
	// ErrOutsideImage is returned by Cutout when a box misses the image.
	ErrOutsideImage = errors.New("regions: box lies outside the image")
)

// Box is a rectangle in image pixel coordinates, rotated counter-clockwise
// by Angle degrees about its center.
type Box struct {
	Label  string  `yaml:"label,omitempty"`
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
	Angle  float64 `yaml:"angle,omitempty"`
}

// BBox is a pixel bounding box with 0-based, half-open ranges
// [YMin, YMax) x [XMin, XMax).
type BBox struct {
	YMin, YMax int
	XMin, XMax int
}

// Shape returns the (rows, cols) size of the box.
func (b BBox) Shape() (int, int) {
	return b.YMax - b.YMin, b.XMax - b.XMin
}

func (b BBox) String() string {
	return fmt.Sprintf("BBox(ixmin=%d, ixmax=%d, iymin=%d, iymax=%d)", b.XMin, b.XMax, b.YMin, b.YMax)
}

// BoundingBox returns the smallest whole-pixel box containing the rectangle.
// Pixel i covers [i-0.5, i+0.5) in 0-based coordinates.
func (b Box) BoundingBox() BBox {
	cx, cy := b.X-1, b.Y-1
	hw, hh := b.Width/2, b.Height/2
	sin, cos := math.Sincos(b.Angle * math.Pi / 180)

	xmin, xmax := math.Inf(1), math.Inf(-1)
	ymin, ymax := math.Inf(1), math.Inf(-1)
	for _, c := range [4][2]float64{{-hw, -hh}, {hw, -hh}, {hw, hh}, {-hw, hh}} {
		x := cx + c[0]*cos - c[1]*sin
		y := cy + c[0]*sin + c[1]*cos
		xmin, xmax = math.Min(xmin, x), math.Max(xmax, x)
		ymin, ymax = math.Min(ymin, y), math.Max(ymax, y)
	}

	return BBox{
		XMin: int(math.Floor(xmin + 0.5)),
		XMax: int(math.Ceil(xmax + 0.5)),
		YMin: int(math.Floor(ymin + 0.5)),
		YMax: int(math.Ceil(ymax + 0.5)),
	}
}

// Cutout returns the pixels of the 2-D image a under the bounding box.
// Parts of the box beyond the image edge are zero, so cutouts of two
// equally sized images always have the same shape.
func (b Box) Cutout(a grid.Array) (grid.Array, error) {
	bb := b.BoundingBox()
	if a.NDim() == 2 && (bb.YMax <= 0 || bb.XMax <= 0 || bb.YMin >= a.Rows() || bb.XMin >= a.Cols()) {
		return grid.Array{}, fmt.Errorf("%w: %q %v, image %v", ErrOutsideImage, b.Label, bb, a.Shape)
	}
	out, err := a.Window(bb.YMin, bb.YMax, bb.XMin, bb.XMax)
	if err != nil {
		return grid.Array{}, fmt.Errorf("regions: cutout %q: %w", b.Label, err)
	}
	return out, nil
}

// assignLabels names unlabeled boxes "Box 001", "Box 002", ... in order
// and rejects duplicate labels.
func assignLabels(boxes []Box) error {
	seen := make(map[string]bool, len(boxes))
	next := 1
	for i := range boxes {
		if boxes[i].Label == "" {
			boxes[i].Label = fmt.Sprintf("Box %03d", next)
			next++
		}
		if seen[boxes[i].Label] {
			return fmt.Errorf("%w %q", ErrDuplicateLabel, boxes[i].Label)
		}
		seen[boxes[i].Label] = true
	}
	return nil
}
