package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/cvep/internal/speller"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a headless training and testing session",
		Long: `Run the training phase over the configured targets, then the testing
phase until it is stopped.

While the session runs, commands are read from stdin, one per line:
  3            predict cell 3
  predict 3    predict cell 3
  K            predict the cell labelled K
  stop         end the testing phase

Numbers are always read as cell ids. Interrupt (Ctrl+C) aborts the session.

Examples:
  cvep run
  cvep run --targets HELLO --test-duration 30s
  classifier | cvep run --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")
			targetsFlag, _ := cmd.Flags().GetString("targets")
			trainOnly, _ := cmd.Flags().GetBool("train-only")
			testFor, _ := cmd.Flags().GetDuration("test-duration")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if targetsFlag != "" {
				cfg.Training.Targets = targetsFlag
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			sess, err := openSession(ctx, cfg, root, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			targets, err := cfg.TrainingTargets()
			if err != nil {
				sess.Close()
				return fmt.Errorf("invalid training targets: %w", err)
			}

			go readCommands(cmd.InOrStdin(), sess.engine, cfg.Symbols, cmd.ErrOrStderr())

			runErr := runProtocol(ctx, sess.engine, targets, trainOnly, testFor)
			interrupted := errors.Is(runErr, context.Canceled)
			if interrupted {
				runErr = nil
			}
			status := sess.engine.Status().String()
			closeErr := sess.Close()

			out := cmd.OutOrStdout()
			summary := map[string]interface{}{
				"session":     sess.sessionID(),
				"targets":     targets,
				"status":      status,
				"interrupted": interrupted,
			}
			if sess.recorder != nil {
				summary["recorded"] = sess.recorder.Written()
				summary["dropped"] = sess.recorder.Dropped()
			}
			if jsonOut {
				json.NewEncoder(out).Encode(summary)
			} else {
				fmt.Fprintf(out, "Session %s finished in status %s", valueOrDefault(sess.sessionID(), "(not recorded)"), status)
				if interrupted {
					fmt.Fprint(out, " (interrupted)")
				}
				fmt.Fprintln(out)
				if sess.recorder != nil {
					fmt.Fprintf(out, "Recorded %d events, dropped %d\n", sess.recorder.Written(), sess.recorder.Dropped())
				}
			}

			return errors.Join(runErr, closeErr)
		},
	}

	cmd.Flags().String("targets", "", "Training targets: a count or a string of symbols (overrides config)")
	cmd.Flags().Bool("train-only", false, "Stop after the training phase")
	cmd.Flags().Duration("test-duration", 0, "Stop the testing phase after this long (0 waits for stop)")

	return cmd
}

// runProtocol trains on targets, then tests until stopped, testFor elapses
// or ctx is cancelled.
func runProtocol(ctx context.Context, e *speller.Engine, targets []int, trainOnly bool, testFor time.Duration) error {
	if err := e.Train(ctx, targets); err != nil {
		return fmt.Errorf("training: %w", err)
	}
	if trainOnly {
		return nil
	}

	if testFor > 0 {
		timer := time.AfterFunc(testFor, func() { e.Stop() })
		defer timer.Stop()
	}
	if err := e.Test(ctx); err != nil {
		return fmt.Errorf("testing: %w", err)
	}
	return nil
}

// controller is the part of the engine driven from stdin.
type controller interface {
	Predict(target int) bool
	Stop() bool
}

// readCommands applies stdin commands to c until r is exhausted.
func readCommands(r io.Reader, c controller, symbols string, out io.Writer) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if line == "stop" {
			if c.Stop() {
				fmt.Fprintln(out, "testing stopped")
			} else {
				fmt.Fprintln(out, "nothing to stop")
			}
			continue
		}

		target, err := parsePrediction(line, symbols)
		if err != nil {
			fmt.Fprintf(out, "ignored %q: %v\n", line, err)
			continue
		}
		if c.Predict(target) {
			fmt.Fprintf(out, "predicted %d %s\n", target, speller.Symbol(symbols, target))
		} else {
			fmt.Fprintf(out, "prediction %d dropped\n", target)
		}
	}
	return scanner.Err()
}

// parsePrediction reads "N", "predict N" or a single symbol.
func parsePrediction(line, symbols string) (int, error) {
	fields := strings.Fields(line)
	if len(fields) == 2 && fields[0] == "predict" {
		fields = fields[1:]
	}
	if len(fields) != 1 {
		return 0, errors.New("expected a cell id or symbol")
	}

	arg := fields[0]
	if n, err := strconv.Atoi(arg); err == nil {
		return n, nil
	}
	if len([]rune(arg)) != 1 {
		return 0, fmt.Errorf("unknown command %q", arg)
	}
	ids, err := speller.TargetsFromSymbols(symbols, arg)
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// valueOrDefault returns the value if non-empty, otherwise the default.
func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
