package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/nvandessel/cvep/internal/config"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cvep",
		Short: "Code-modulated visual evoked potential stimulation",
		Long: `cvep drives a grid of flickering cells, each following the same binary
code at a different phase offset, through a training (calibration) phase and
a testing (free spelling) phase.

Stimulation markers are logged and recorded to a local SQLite database so
they can be aligned with EEG recordings.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.cvep/config.yaml)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newConfigCmd(),
		newCodeCmd(),
		newRunCmd(),
		newMCPServerCmd(),
		newRenderCmd(),
		newEventsCmd(),
	)
	return rootCmd
}

// loadConfig loads the --config file, or the default locations, with
// environment overrides applied.
func loadConfig(cmd *cobra.Command) (*config.CvepConfig, error) {
	path, _ := cmd.Flags().GetString("config")

	var (
		cfg *config.CvepConfig
		err error
	)
	if path != "" {
		cfg, err = config.LoadPath(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}
