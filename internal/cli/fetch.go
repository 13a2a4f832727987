package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"orionjets/internal/logger"
	"orionjets/pkg/remote"
)

func fetchCmd(g *globals) *cobra.Command {
	var dest string
	var force bool
	var dryRun bool

	c := &cobra.Command{
		Use:   "fetch",
		Short: "Download the example FITS files from the data repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			abs, err := filepath.Abs(dest)
			if err != nil {
				abs = dest
			}
			fmt.Fprintln(out, "Destination directory:", abs)

			client := remote.NewClient(g.cfg.RemoteConfig(), logger.Logger)
			files, err := client.ListFITS(cmd.Context())
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintln(out, "No FITS files found in remote folder.")
				return nil
			}
			fmt.Fprintf(out, "Found %d FITS file(s) in remote folder.\n", len(files))
			if dryRun {
				fmt.Fprintln(out, "Dry run: no files will be downloaded.")
			}

			report := remote.Fetch(cmd.Context(), client, files, remote.Options{
				Dest:   dest,
				Force:  force,
				DryRun: dryRun,
			})
			printReport(out, report)
			return report.Err()
		},
	}

	c.Flags().StringVar(&dest, "dest", "data", "destination directory for downloaded files")
	c.Flags().BoolVar(&force, "force", false, "re-download files even if they already exist")
	c.Flags().BoolVar(&dryRun, "dry-run", false, "do not download; just print what would be done")
	return c
}

func printReport(w io.Writer, r remote.Report) {
	for _, p := range r.Skipped {
		fmt.Fprintf(w, "Skipping %s (already exists).\n", filepath.Base(p))
	}
	for _, p := range r.Planned {
		fmt.Fprintf(w, "Would download %s\n", p)
	}
	for _, p := range r.Downloaded {
		fmt.Fprintf(w, "Downloaded %s\n", p)
	}
	for _, fe := range r.Failed {
		fmt.Fprintf(w, "Failed to download %s: %v\n", fe.File.Name, fe.Err)
	}
}
