package regions

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ErrCoordinateSystem is returned for DS9 regions outside the image frame.
var ErrCoordinateSystem = errors.New("regions: only image coordinates are supported")

// Load reads a region file. Files ending in .yaml or .yml are read as YAML,
// anything else as DS9. Shapes other than boxes are skipped with a warning
// on log, which may be nil.
func Load(path string, log logrus.FieldLogger) ([]Box, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("regions: %w", err)
	}
	defer f.Close()

	var boxes []Box
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		boxes, err = ReadYAML(f)
	default:
		boxes, err = ReadDS9(f, log)
	}
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, filepath.Base(path))
	}
	return boxes, nil
}

// yamlFile is the document layout of a YAML region file.
type yamlFile struct {
	Regions []Box `yaml:"regions"`
}

// ReadYAML decodes a YAML region list.
func ReadYAML(r io.Reader) ([]Box, error) {
	var doc yamlFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("regions: decoding yaml: %w", err)
	}
	for i, b := range doc.Regions {
		if b.Width <= 0 || b.Height <= 0 {
			return nil, fmt.Errorf("regions: region %d has non-positive size %gx%g", i+1, b.Width, b.Height)
		}
	}
	if err := assignLabels(doc.Regions); err != nil {
		return nil, err
	}
	return doc.Regions, nil
}

// ReadDS9 parses a DS9 region file. Only the image coordinate system is
// accepted; the first shape seen under any other system is an error.
func ReadDS9(r io.Reader, log logrus.FieldLogger) ([]Box, error) {
	if log == nil {
		log = discard()
	}

	var boxes []Box
	sc := bufio.NewScanner(r)
	coordsys := "physical"
	line := 0
	for sc.Scan() {
		line++
		for _, stmt := range splitStatements(sc.Text()) {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" || strings.HasPrefix(stmt, "#") {
				continue
			}

			shape, rest := splitShape(stmt)
			switch shape {
			case "global":
				continue
			case "image", "physical", "fk4", "b1950", "fk5", "j2000", "icrs",
				"galactic", "ecliptic", "wcs", "linear", "amplifier", "detector":
				coordsys = shape
				continue
			}
			if strings.HasPrefix(shape, "wcs") && len(shape) == 4 {
				coordsys = shape
				continue
			}

			if coordsys != "image" {
				return nil, fmt.Errorf("%w: line %d uses %s", ErrCoordinateSystem, line, coordsys)
			}
			if shape != "box" {
				log.WithField("line", line).Warnf("skipping %s region", shape)
				continue
			}

			b, err := parseBox(rest)
			if err != nil {
				return nil, fmt.Errorf("regions: line %d: %w", line, err)
			}
			boxes = append(boxes, b)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("regions: %w", err)
	}

	if err := assignLabels(boxes); err != nil {
		return nil, err
	}
	return boxes, nil
}

// splitStatements splits a line on the ';' separators that lie outside
// braces and quotes, so text={a; b} stays whole.
func splitStatements(line string) []string {
	var stmts []string
	depth := 0
	var quote rune
	start := 0
	for i, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '{':
			depth++
		case r == '}':
			if depth > 0 {
				depth--
			}
		case r == ';' && depth == 0:
			stmts = append(stmts, line[start:i])
			start = i + 1
		}
	}
	return append(stmts, line[start:])
}

// splitShape separates "box(1,2,3,4) # text={a}" into "box" and the rest.
// Include/exclude prefixes are dropped.
func splitShape(stmt string) (string, string) {
	stmt = strings.TrimLeft(stmt, "+-")
	i := strings.IndexAny(stmt, "( \t#")
	if i < 0 {
		return strings.ToLower(stmt), ""
	}
	return strings.ToLower(stmt[:i]), stmt[i:]
}

// parseBox reads "(x, y, w, h[, angle]) # text={label}".
func parseBox(rest string) (Box, error) {
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "(") {
		return Box{}, fmt.Errorf("box without parameters")
	}
	end := strings.Index(rest, ")")
	if end < 0 {
		return Box{}, fmt.Errorf("unterminated box parameters")
	}

	fields := strings.FieldsFunc(rest[1:end], func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	if len(fields) < 4 {
		return Box{}, fmt.Errorf("box needs 4 parameters, got %d", len(fields))
	}
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Box{}, fmt.Errorf("box parameter %q: %w", f, err)
		}
		vals[i] = v
	}

	b := Box{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}
	// box(x, y, w, h, angle); annulus boxes carry more sizes before the angle.
	if len(vals) >= 5 {
		b.Angle = vals[len(vals)-1]
	}
	if b.Width <= 0 || b.Height <= 0 {
		return Box{}, fmt.Errorf("box has non-positive size %gx%g", b.Width, b.Height)
	}
	b.Label = textProperty(rest[end+1:])
	return b, nil
}

// textProperty returns the value of text={...}, text="..." or text='...'.
func textProperty(props string) string {
	i := strings.Index(props, "text=")
	if i < 0 {
		return ""
	}
	v := props[i+len("text="):]
	if v == "" {
		return ""
	}
	delim := map[byte]byte{'{': '}', '"': '"', '\'': '\''}[v[0]]
	if delim == 0 {
		return ""
	}
	j := strings.IndexByte(v[1:], delim)
	if j < 0 {
		return ""
	}
	return strings.TrimSpace(v[1 : j+1])
}

func discard() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
