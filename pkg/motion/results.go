package motion

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"orionjets/internal/models"
)

// WriteResults saves a run as YAML.
func WriteResults(run *models.Run, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating results directory: %w", err)
		}
	}

	data, err := yaml.Marshal(run)
	if err != nil {
		return fmt.Errorf("error marshaling results: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing results file: %w", err)
	}
	return nil
}

// ReadResults loads a run written by WriteResults.
func ReadResults(path string) (*models.Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading results file: %w", err)
	}
	run := &models.Run{}
	if err := yaml.Unmarshal(data, run); err != nil {
		return nil, fmt.Errorf("error parsing results file: %w", err)
	}
	return run, nil
}

// WriteTable prints one line per region: label, shift and notes.
func WriteTable(w io.Writer, run *models.Run) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REGION\tDY\tDX\tNOTE")
	for _, m := range run.Results {
		shift, ok := m.Shift()
		note := ""
		switch {
		case m.Err != nil || m.Error != "":
			note = m.Error
		case m.Fallback:
			note = "fit failed, integer shift"
		}
		if !ok {
			fmt.Fprintf(tw, "%s\t-\t-\t%s\n", m.Label, note)
			continue
		}
		fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%s\n", m.Label, shift.DY, shift.DX, note)
	}
	return tw.Flush()
}
