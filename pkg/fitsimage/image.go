// Package fitsimage reads epoch images from FITS files and compares their
// world coordinate systems.
package fitsimage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/astrogo/fitsio"

	"orionjets/pkg/grid"
)

// ErrNoImageData is returned when no HDU of a file carries an image array.
var ErrNoImageData = errors.New("fitsimage: no image data found")

// Image is one epoch image: the first HDU of a FITS file that holds data.
type Image struct {
	Path string
	// HDU is the index of the data unit within the file.
	HDU  int
	Name string
	// Data is ordered (NAXISn, ..., NAXIS2, NAXIS1), so a 2-D image is
	// indexed (y, x).
	Data grid.Array
	WCS  WCS
}

// Open reads the first HDU of path that holds an image array, trying each
// HDU in turn.
func Open(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fitsimage: %w", err)
	}
	defer f.Close()

	ff, err := fitsio.Open(f)
	if err != nil {
		return nil, fmt.Errorf("fitsimage: reading %s: %w", path, err)
	}
	defer ff.Close()

	for i, hdu := range ff.HDUs() {
		img, ok := hdu.(fitsio.Image)
		if !ok {
			continue
		}
		hdr := img.Header()
		if !hasData(hdr.Axes()) {
			continue
		}

		data, err := decode(hdr, img.Raw())
		if err != nil {
			return nil, fmt.Errorf("fitsimage: %s HDU %d: %w", filepath.Base(path), i, err)
		}
		return &Image{
			Path: path,
			HDU:  i,
			Name: hdu.Name(),
			Data: data,
			WCS:  ParseWCS(hdr),
		}, nil
	}

	return nil, fmt.Errorf("%w in %s", ErrNoImageData, filepath.Base(path))
}

// Plane returns the image as a 2-D array, dropping leading axes of length
// one (a 1 x ny x nx cube is a plain image).
func (im *Image) Plane() (grid.Array, error) {
	a := im.Data
	for a.NDim() > 2 && a.Shape[0] == 1 {
		a = grid.Array{Shape: a.Shape[1:], Data: a.Data}
	}
	if a.NDim() != 2 {
		return grid.Array{}, fmt.Errorf("fitsimage: %s is not a 2-d image (shape %v)", filepath.Base(im.Path), im.Data.Shape)
	}
	return a, nil
}

func hasData(axes []int) bool {
	if len(axes) == 0 {
		return false
	}
	for _, n := range axes {
		if n <= 0 {
			return false
		}
	}
	return true
}

// decode converts the big-endian data unit to float64, applying BSCALE and
// BZERO and mapping BLANK integers to NaN.
func decode(hdr *fitsio.Header, raw []byte) (grid.Array, error) {
	axes := hdr.Axes()
	shape := make([]int, len(axes))
	n := 1
	for i, d := range axes {
		shape[len(axes)-1-i] = d
		n *= d
	}

	bitpix := hdr.Bitpix()
	width := abs(bitpix) / 8
	if len(raw) < n*width {
		return grid.Array{}, fmt.Errorf("data unit holds %d bytes, want %d", len(raw), n*width)
	}

	scale, zero := 1.0, 0.0
	if v, ok := cardFloat(hdr, "BSCALE"); ok {
		scale = v
	}
	if v, ok := cardFloat(hdr, "BZERO"); ok {
		zero = v
	}
	blank, hasBlank := cardFloat(hdr, "BLANK")

	out := make([]float64, n)
	be := binary.BigEndian
	for i := 0; i < n; i++ {
		b := raw[i*width:]
		var v float64
		isInt := true
		switch bitpix {
		case 8:
			v = float64(b[0])
		case 16:
			v = float64(int16(be.Uint16(b)))
		case 32:
			v = float64(int32(be.Uint32(b)))
		case 64:
			v = float64(int64(be.Uint64(b)))
		case -32:
			v = float64(math.Float32frombits(be.Uint32(b)))
			isInt = false
		case -64:
			v = math.Float64frombits(be.Uint64(b))
			isInt = false
		default:
			return grid.Array{}, fmt.Errorf("unsupported BITPIX %d", bitpix)
		}
		if isInt && hasBlank && v == blank {
			out[i] = math.NaN()
			continue
		}
		out[i] = zero + scale*v
	}

	return grid.New(out, shape...)
}

// cardFloat returns the numeric value of keyword name.
func cardFloat(hdr *fitsio.Header, name string) (float64, bool) {
	c := hdr.Get(name)
	if c == nil {
		return 0, false
	}
	switch v := c.Value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

// cardString returns the trimmed string value of keyword name.
func cardString(hdr *fitsio.Header, name string) (string, bool) {
	c := hdr.Get(name)
	if c == nil {
		return "", false
	}
	if s, ok := c.Value.(string); ok {
		return strings.TrimSpace(s), true
	}
	return strings.TrimSpace(fmt.Sprint(c.Value)), true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
