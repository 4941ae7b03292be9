// Package config provides unified configuration loading for cvep.
// It supports loading from YAML files, a .env file and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/cvep/internal/code"
	"github.com/nvandessel/cvep/internal/speller"
)

// Speller defaults.
const (
	DefaultSymbols  = "ABCDEFGHIJKLMNOP"
	DefaultStep     = 2
	DefaultTargets  = "8"
	DefaultCycles   = 10
	DefaultFocusOn  = 1500 * time.Millisecond
	DefaultFocusOff = 500 * time.Millisecond
	DefaultRest     = 5000 * time.Millisecond
	DefaultRate     = 60
	DefaultColumns  = 4
)

// CvepConfig contains all cvep configuration settings.
type CvepConfig struct {
	// Symbols labels the cells, one rune per cell. Its length is the cell count.
	Symbols string `json:"symbols" yaml:"symbols"`

	// Pattern is the stimulation code as a bit string. When empty, a
	// maximal-length sequence of NBits is generated from Seed, or the
	// default pattern is used if NBits is zero.
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty"`

	// NBits is the register size for generated codes (2-20).
	NBits int `json:"nbits,omitempty" yaml:"nbits,omitempty"`

	// Seed makes generated codes and drawn training targets reproducible.
	Seed uint64 `json:"seed" yaml:"seed"`

	// Step is the phase offset between adjacent cells, in code positions.
	Step int `json:"step" yaml:"step"`

	Training  TrainingConfig  `json:"training" yaml:"training"`
	Durations DurationsConfig `json:"durations" yaml:"durations"`

	// Rate is the display refresh rate in Hz. Zero means measured.
	Rate float64 `json:"rate" yaml:"rate"`

	// PollInterval is how often the testing loop checks for predictions.
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`

	Grid    GridConfig    `json:"grid" yaml:"grid"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Store   StoreConfig   `json:"store" yaml:"store"`
}

// TrainingConfig configures the calibration phase.
type TrainingConfig struct {
	// Targets is either a count ("8") of randomly drawn targets or a string
	// of symbols ("HELLO") trained in order.
	Targets string `json:"targets" yaml:"targets"`

	// Cycles is the number of code cycles recorded per target.
	Cycles int `json:"cycles" yaml:"cycles"`
}

// DurationsConfig holds the focus cue and rest timings.
type DurationsConfig struct {
	FocusOn  time.Duration `json:"focus_on" yaml:"focus_on"`
	FocusOff time.Duration `json:"focus_off" yaml:"focus_off"`
	Rest     time.Duration `json:"rest" yaml:"rest"`
}

// GridConfig configures the snapshot layout.
type GridConfig struct {
	Columns int `json:"columns" yaml:"columns"`
}

// LoggingConfig configures cvep's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables the event log in .cvep/events.jsonl.
	// "trace" additionally writes every sequence marker to stderr.
	Level string `json:"level" yaml:"level"`
}

// StoreConfig configures event recording.
type StoreConfig struct {
	// Path is the SQLite database file. Empty means <root>/.cvep/cvep.db.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Disabled turns off event recording.
	Disabled bool `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// Default returns a CvepConfig with the speller defaults.
func Default() *CvepConfig {
	return &CvepConfig{
		Symbols:      DefaultSymbols,
		Step:         DefaultStep,
		Training:     TrainingConfig{Targets: DefaultTargets, Cycles: DefaultCycles},
		Durations:    DurationsConfig{FocusOn: DefaultFocusOn, FocusOff: DefaultFocusOff, Rest: DefaultRest},
		Rate:         DefaultRate,
		PollInterval: speller.DefaultPollInterval,
		Grid:         GridConfig{Columns: DefaultColumns},
		Logging:      LoggingConfig{Level: "info"},
	}
}

// Path returns the default config file location, ~/.cvep/config.yaml.
func Path() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, ".cvep", "config.yaml"), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.cvep/config.yaml -> .env -> environment variables
func Load() (*CvepConfig, error) {
	config := Default()

	if configPath, err := Path(); err == nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	return withEnv(config)
}

// LoadPath is Load with an explicit config file in place of
// ~/.cvep/config.yaml. The file must exist.
func LoadPath(path string) (*CvepConfig, error) {
	config, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	return withEnv(config)
}

func withEnv(config *CvepConfig) (*CvepConfig, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Keys missing
// from the file keep their defaults.
func LoadFromFile(path string) (*CvepConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return config, nil
}

// Save writes the configuration to path, creating parent directories.
func (c *CvepConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration describes a runnable session.
func (c *CvepConfig) Validate() error {
	if len([]rune(c.Symbols)) == 0 {
		return errors.New("symbols must not be empty")
	}
	if c.Training.Cycles < 0 {
		return fmt.Errorf("training.cycles must be non-negative, got %d", c.Training.Cycles)
	}
	if c.Durations.FocusOn < 0 || c.Durations.FocusOff < 0 || c.Durations.Rest < 0 {
		return errors.New("durations must be non-negative")
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("poll_interval must be non-negative, got %v", c.PollInterval)
	}
	if c.Grid.Columns <= 0 {
		return fmt.Errorf("grid.columns must be positive, got %d", c.Grid.Columns)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	opts, err := c.Options()
	if err != nil {
		return err
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	if _, err := c.TrainingTargets(); err != nil {
		return fmt.Errorf("training.targets: %w", err)
	}
	return nil
}

// Code returns the configured stimulation code: the explicit pattern when
// set, else a seeded maximal-length sequence when nbits is set, else the
// default pattern.
func (c *CvepConfig) Code() (code.Code, error) {
	switch {
	case c.Pattern != "":
		return code.Parse(c.Pattern)
	case c.NBits > 0:
		return code.MaxLenSeq(c.NBits, code.RandomState(c.NBits, c.Seed))
	default:
		return code.Parse(code.DefaultPattern)
	}
}

// Options builds the engine options.
func (c *CvepConfig) Options() (speller.Options, error) {
	cd, err := c.Code()
	if err != nil {
		return speller.Options{}, err
	}
	return speller.Options{
		Code:           cd,
		Step:           c.Step,
		TargetCount:    c.Cells(),
		TrainingCycles: c.Training.Cycles,
		FocusOn:        c.Durations.FocusOn,
		FocusOff:       c.Durations.FocusOff,
		Rest:           c.Durations.Rest,
		FrameRate:      c.Rate,
		PollInterval:   c.PollInterval,
		Symbols:        c.Symbols,
	}, nil
}

// Cells is the number of stimulation cells: every inner grid position,
// including the padding of a partial last row, which flickers without a
// symbol.
func (c *CvepConfig) Cells() int {
	n := len([]rune(c.Symbols))
	cols := c.Grid.Columns
	if cols <= 0 {
		return n
	}
	return (n + cols - 1) / cols * cols
}

// TrainingTargets resolves training.targets into cell ids: a count draws
// that many cells with the configured seed, anything else is read as symbols.
func (c *CvepConfig) TrainingTargets() ([]int, error) {
	return speller.ResolveTargets(c.Training.Targets, c.Symbols, c.Seed)
}

// loadDotEnv populates the environment from path if it exists. Variables
// already set take precedence.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies CVEP_* environment variable overrides to the config.
func applyEnvOverrides(config *CvepConfig) error {
	if v := os.Getenv("CVEP_SYMBOLS"); v != "" {
		config.Symbols = v
	}
	if v := os.Getenv("CVEP_NBITS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CVEP_NBITS: %w", err)
		}
		config.NBits = n
	}
	if v := os.Getenv("CVEP_PATTERN"); v != "" {
		config.Pattern = v
	}
	if v := os.Getenv("CVEP_SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("CVEP_SEED: %w", err)
		}
		config.Seed = n
	}
	if v := os.Getenv("CVEP_STEP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CVEP_STEP: %w", err)
		}
		config.Step = n
	}
	if v := os.Getenv("CVEP_TARGETS"); v != "" {
		config.Training.Targets = v
	}
	if v := os.Getenv("CVEP_CYCLES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CVEP_CYCLES: %w", err)
		}
		config.Training.Cycles = n
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{"CVEP_FOCUS_ON", &config.Durations.FocusOn},
		{"CVEP_FOCUS_OFF", &config.Durations.FocusOff},
		{"CVEP_REST", &config.Durations.Rest},
		{"CVEP_POLL_INTERVAL", &config.PollInterval},
	}
	for _, d := range durations {
		v := os.Getenv(d.env)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.env, err)
		}
		*d.dst = parsed
	}

	if v := os.Getenv("CVEP_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("CVEP_RATE: %w", err)
		}
		config.Rate = f
	}
	if v := os.Getenv("CVEP_COLUMNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CVEP_COLUMNS: %w", err)
		}
		config.Grid.Columns = n
	}
	if v := os.Getenv("CVEP_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("CVEP_STORE_PATH"); v != "" {
		config.Store.Path = v
	}
	return nil
}
