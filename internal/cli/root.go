package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"orionjets/internal/logger"
	"orionjets/pkg/config"
)

// shutdownSignals cancel the running command.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, shutdownSignals...)
}

func Execute() {
	ctx, stop := signalContext(context.Background())
	defer stop()

	cmd := newRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// globals are the persistent flags and the config they resolve to.
type globals struct {
	configPath string
	verbose    bool
	logFormat  string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:          "orionjets",
		Short:        "Proper motions of jets and knots by 2-D cross-correlation",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(g.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("verbose") {
				cfg.Output.Verbose = g.verbose
			}
			if cmd.Flags().Changed("log-format") {
				cfg.Output.LogFormat = g.logFormat
			}
			g.cfg = cfg
			return logger.Configure(cfg.Output.Verbose, cfg.Output.LogFormat, cmd.ErrOrStderr())
		},
	}

	cmd.PersistentFlags().StringVar(&g.configPath, "config", "orionjets.yaml", "config file (defaults apply when missing)")
	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "print region boxes and per-region progress")
	cmd.PersistentFlags().StringVar(&g.logFormat, "log-format", "text", "log format: text|json")

	cmd.AddCommand(measureCmd(g))
	cmd.AddCommand(fetchCmd(g))
	cmd.AddCommand(configCmd(g))
	return cmd
}
