package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/cvep/internal/config"
)

// configKeys lists the settable keys in display order.
var configKeys = []string{
	"symbols",
	"pattern",
	"nbits",
	"seed",
	"step",
	"training.targets",
	"training.cycles",
	"durations.focus_on",
	"durations.focus_off",
	"durations.rest",
	"rate",
	"poll_interval",
	"grid.columns",
	"logging.level",
	"store.path",
	"store.disabled",
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage cvep configuration",
		Long: `View and modify cvep configuration settings.

Configuration is stored in ~/.cvep/config.yaml unless --config is given.
CVEP_* environment variables and a .env file override it at load time.

Examples:
  cvep config list                       # Show all settings
  cvep config get durations.focus_on     # Get a specific setting
  cvep config set rate 144               # Set a setting
  cvep config set training.targets HELLO`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(cfg)
			}

			for _, key := range configKeys {
				value, _ := getConfigValue(cfg, key)
				fmt.Fprintf(out, "  %-20s %v\n", key+":", value)
			}
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			value, found := getConfigValue(cfg, key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"key":   key,
					"value": value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key, value := args[0], args[1]

			path, err := configFilePath(cmd)
			if err != nil {
				return err
			}

			// Environment overrides are not persisted.
			cfg := config.Default()
			if _, statErr := os.Stat(path); statErr == nil {
				cfg, err = config.LoadFromFile(path)
				if err != nil {
					return err
				}
			}

			if err := setConfigValue(cfg, key, value); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("refusing to save invalid config: %w", err)
			}
			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"status": "updated",
					"key":    key,
					"value":  value,
					"path":   path,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
			return nil
		},
	}
}

// configFilePath returns the --config file or ~/.cvep/config.yaml.
func configFilePath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path, nil
	}
	return config.Path()
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.CvepConfig, key string) (interface{}, bool) {
	switch key {
	case "symbols":
		return cfg.Symbols, true
	case "pattern":
		return cfg.Pattern, true
	case "nbits":
		return cfg.NBits, true
	case "seed":
		return cfg.Seed, true
	case "step":
		return cfg.Step, true
	case "training.targets":
		return cfg.Training.Targets, true
	case "training.cycles":
		return cfg.Training.Cycles, true
	case "durations.focus_on":
		return cfg.Durations.FocusOn.String(), true
	case "durations.focus_off":
		return cfg.Durations.FocusOff.String(), true
	case "durations.rest":
		return cfg.Durations.Rest.String(), true
	case "rate":
		return cfg.Rate, true
	case "poll_interval":
		return cfg.PollInterval.String(), true
	case "grid.columns":
		return cfg.Grid.Columns, true
	case "logging.level":
		return cfg.Logging.Level, true
	case "store.path":
		return cfg.Store.Path, true
	case "store.disabled":
		return cfg.Store.Disabled, true
	default:
		return nil, false
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.CvepConfig, key, value string) error {
	var err error
	switch key {
	case "symbols":
		cfg.Symbols = value
	case "pattern":
		cfg.Pattern = value
	case "nbits":
		cfg.NBits, err = strconv.Atoi(value)
	case "seed":
		cfg.Seed, err = strconv.ParseUint(value, 10, 64)
	case "step":
		cfg.Step, err = strconv.Atoi(value)
	case "training.targets":
		cfg.Training.Targets = value
	case "training.cycles":
		cfg.Training.Cycles, err = strconv.Atoi(value)
	case "durations.focus_on":
		cfg.Durations.FocusOn, err = time.ParseDuration(value)
	case "durations.focus_off":
		cfg.Durations.FocusOff, err = time.ParseDuration(value)
	case "durations.rest":
		cfg.Durations.Rest, err = time.ParseDuration(value)
	case "rate":
		cfg.Rate, err = strconv.ParseFloat(value, 64)
	case "poll_interval":
		cfg.PollInterval, err = time.ParseDuration(value)
	case "grid.columns":
		cfg.Grid.Columns, err = strconv.Atoi(value)
	case "logging.level":
		cfg.Logging.Level = value
	case "store.path":
		cfg.Store.Path = value
	case "store.disabled":
		cfg.Store.Disabled, err = strconv.ParseBool(value)
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %q", key, value)
	}
	return nil
}
