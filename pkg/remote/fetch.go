package remote

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Downloader is the part of Client that Fetch needs.
type Downloader interface {
	Download(ctx context.Context, src, dest string) error
}

// Options controls Fetch.
type Options struct {
	// Dest is the local directory files are written to.
	Dest string
	// Force downloads files that already exist locally.
	Force bool
	// DryRun reports what would be downloaded without touching the
	// network or the filesystem.
	DryRun bool
}

// FileError records a file that could not be fetched.
type FileError struct {
	File File
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.File.Name, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Report summarizes a Fetch. Each file appears in exactly one list.
type Report struct {
	Downloaded []string
	Skipped    []string
	// Planned holds the files a dry run would have downloaded.
	Planned []string
	Failed  []*FileError
}

// Err joins the per-file failures, or returns nil.
func (r Report) Err() error {
	errs := make([]error, len(r.Failed))
	for i, fe := range r.Failed {
		errs[i] = fe
	}
	return errors.Join(errs...)
}

// Fetch downloads files into opts.Dest. Existing files are skipped unless
// opts.Force is set. A file that fails is recorded and the rest continue.
func Fetch(ctx context.Context, d Downloader, files []File, opts Options) Report {
	var r Report
	for _, f := range files {
		dest := filepath.Join(opts.Dest, filepath.Base(f.Name))

		if !opts.Force {
			if _, err := os.Stat(dest); err == nil {
				r.Skipped = append(r.Skipped, dest)
				continue
			}
		}
		if opts.DryRun {
			r.Planned = append(r.Planned, dest)
			continue
		}
		if err := ctx.Err(); err != nil {
			r.Failed = append(r.Failed, &FileError{File: f, Err: err})
			continue
		}

		if err := d.Download(ctx, f.URL, dest); err != nil {
			r.Failed = append(r.Failed, &FileError{File: f, Err: err})
			continue
		}
		r.Downloaded = append(r.Downloaded, dest)
	}
	return r
}
