package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/cvep/internal/code"
	"github.com/nvandessel/cvep/internal/speller"
)

func newCodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "code",
		Short: "Print the stimulation code and cell offsets",
		Long: `Print the configured stimulation code, its epoch length at the configured
frame rate, and the phase offset of every cell.

With --nbits, a maximal-length sequence is generated from a register state
drawn with --seed (or the configured seed) instead.

Examples:
  cvep code
  cvep code --nbits 6 --seed 42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("nbits") {
				cfg.NBits, _ = cmd.Flags().GetInt("nbits")
				cfg.Pattern = ""
			}
			if cmd.Flags().Changed("seed") {
				cfg.Seed, _ = cmd.Flags().GetUint64("seed")
			}

			c, err := cfg.Code()
			if err != nil {
				return fmt.Errorf("invalid code: %w", err)
			}
			opts, err := cfg.Options()
			if err != nil {
				return err
			}
			epoch := code.EpochLength(c.Len(), cfg.Rate)
			offsets := opts.Offsets()
			valid := opts.Validate()

			out := cmd.OutOrStdout()
			if jsonOut {
				result := map[string]interface{}{
					"pattern":      c.String(),
					"length":       c.Len(),
					"ones":         c.Ones(),
					"rate":         cfg.Rate,
					"epoch_length": epoch,
					"step":         cfg.Step,
					"offsets":      offsets,
				}
				if valid != nil {
					result["error"] = valid.Error()
				}
				return json.NewEncoder(out).Encode(result)
			}

			fmt.Fprintf(out, "Pattern:      %s\n", c)
			fmt.Fprintf(out, "Length:       %d (%d on)\n", c.Len(), c.Ones())
			fmt.Fprintf(out, "Epoch length: %.3fs at %v Hz\n", epoch, cfg.Rate)
			fmt.Fprintf(out, "Offsets:      step %d\n", cfg.Step)
			for id, offset := range offsets {
				symbol := speller.Symbol(cfg.Symbols, id)
				if symbol == "" {
					symbol = "-"
				}
				fmt.Fprintf(out, "  %s  cell %-3d offset %d\n", symbol, id, offset)
			}
			if valid != nil {
				fmt.Fprintf(out, "\nWarning: %v\n", valid)
			}
			return nil
		},
	}

	cmd.Flags().Int("nbits", 0, "Generate a maximal-length sequence of 2^nbits-1 bits")
	cmd.Flags().Uint64("seed", 0, "Seed for the generated register state")

	return cmd
}
