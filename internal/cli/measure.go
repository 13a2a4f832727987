package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"orionjets/internal/logger"
	"orionjets/pkg/fitsimage"
	"orionjets/pkg/motion"
	"orionjets/pkg/regions"
)

func measureCmd(g *globals) *cobra.Command {
	var method string
	var correlation string
	var cores int
	var resultsFile string
	var surfacesDir string

	c := &cobra.Command{
		Use:   "measure EPOCH1 EPOCH2 REGIONS",
		Short: "Measure the shift of each region between two epoch images",
		Long: `Measure proper motions by the cross-correlation method.

EPOCH1 and EPOCH2 are FITS images of the same field with equivalent world
coordinate systems. REGIONS is a DS9 region file of boxes in image
coordinates, or a YAML list of boxes. For each box the peak of the spatial
cross-correlation between the epochs gives the displacement (dy, dx) in
pixels: epoch2(y+dy, x+dx) matches epoch1(y, x).`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := g.cfg
			flags := cmd.Flags()
			if flags.Changed("method") {
				cfg.Processing.Method = method
			}
			if flags.Changed("correlation") {
				cfg.Processing.Correlation = correlation
			}
			if flags.Changed("cores") {
				cfg.Processing.NumCores = cores
			}
			if flags.Changed("results") {
				cfg.Output.ResultsFile = resultsFile
			}
			if flags.Changed("surfaces") {
				cfg.Output.SurfacesDir = surfacesDir
			}

			m, err := motion.ParseMethod(cfg.Processing.Method)
			if err != nil {
				return err
			}
			est, err := cfg.Estimator()
			if err != nil {
				return err
			}

			epoch1, err := fitsimage.Open(args[0])
			if err != nil {
				return err
			}
			epoch2, err := fitsimage.Open(args[1])
			if err != nil {
				return err
			}
			boxes, err := regions.Load(args[2], logger.Logger)
			if err != nil {
				return err
			}
			logger.WithFields(logrus.Fields{"regions": len(boxes), "method": m}).Info("measuring")

			d := motion.NewDriver(motion.Params{
				NumCores:     cfg.Processing.NumCores,
				Method:       m,
				Estimator:    est,
				WCSTolerance: cfg.WCS.Tolerance,
				SkipWCSCheck: cfg.WCS.SkipCheck,
				SurfacesDir:  cfg.Output.SurfacesDir,
				Logger:       logger.Logger,
			})
			run, err := d.Run(cmd.Context(), epoch1, epoch2, boxes)
			if err != nil && run == nil {
				return err
			}
			run.Regions = args[2]

			if werr := motion.WriteTable(cmd.OutOrStdout(), run); werr != nil {
				return werr
			}
			if cfg.Output.ResultsFile != "" {
				if werr := motion.WriteResults(run, cfg.Output.ResultsFile); werr != nil {
					return werr
				}
				logger.WithField("file", cfg.Output.ResultsFile).Info("results saved")
			}
			if err != nil {
				return err
			}

			if n := run.Failures(); n > 0 {
				return fmt.Errorf("%d of %d region(s) failed", n, len(run.Results))
			}
			return nil
		},
	}

	c.Flags().StringVarP(&method, "method", "m", "integer", "estimator: integer|gfit|both")
	c.Flags().StringVar(&correlation, "correlation", "auto", "correlation: auto|direct|fft")
	c.Flags().IntVarP(&cores, "cores", "j", 0, "regions measured in parallel (default: all CPUs)")
	c.Flags().StringVarP(&resultsFile, "results", "o", "", "write measurements to this YAML file")
	c.Flags().StringVar(&surfacesDir, "surfaces", "", "write correlation surface images to this directory")
	return c
}
