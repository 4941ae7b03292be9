package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvandessel/cvep/internal/code"
	"github.com/nvandessel/cvep/internal/display"
	"github.com/nvandessel/cvep/internal/speller"
)

func TestDefault(t *testing.T) {
	config := Default()

	if config.Symbols != "ABCDEFGHIJKLMNOP" {
		t.Errorf("expected default symbols, got %q", config.Symbols)
	}
	if config.Step != 2 {
		t.Errorf("expected Step 2, got %d", config.Step)
	}
	if config.Training.Targets != "8" || config.Training.Cycles != 10 {
		t.Errorf("unexpected training defaults: %+v", config.Training)
	}
	if config.Durations.FocusOn != 1500*time.Millisecond {
		t.Errorf("expected FocusOn 1.5s, got %v", config.Durations.FocusOn)
	}
	if config.Durations.FocusOff != 500*time.Millisecond {
		t.Errorf("expected FocusOff 500ms, got %v", config.Durations.FocusOff)
	}
	if config.Durations.Rest != 5*time.Second {
		t.Errorf("expected Rest 5s, got %v", config.Durations.Rest)
	}
	if config.Rate != 60 {
		t.Errorf("expected Rate 60, got %v", config.Rate)
	}
	if config.Grid.Columns != 4 {
		t.Errorf("expected 4 columns, got %d", config.Grid.Columns)
	}
	if config.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got '%s'", config.Logging.Level)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}

	cd, err := config.Code()
	if err != nil {
		t.Fatalf("Code() failed: %v", err)
	}
	if cd.String() != code.DefaultPattern {
		t.Errorf("expected default pattern, got %s", cd)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
symbols: ABCDEFGH
pattern: "0110"
step: 1
seed: 42
training:
  targets: 12
  cycles: 3
durations:
  focus_on: 1s
  focus_off: 250ms
rate: 120
poll_interval: 5ms
grid:
  columns: 2
logging:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Symbols != "ABCDEFGH" {
		t.Errorf("expected symbols ABCDEFGH, got %q", config.Symbols)
	}
	if config.Pattern != "0110" {
		t.Errorf("expected pattern 0110, got %q", config.Pattern)
	}
	if config.Step != 1 || config.Seed != 42 {
		t.Errorf("expected step 1 seed 42, got %d %d", config.Step, config.Seed)
	}
	if config.Training.Targets != "12" {
		t.Errorf("expected unquoted count to load as \"12\", got %q", config.Training.Targets)
	}
	if config.Training.Cycles != 3 {
		t.Errorf("expected 3 cycles, got %d", config.Training.Cycles)
	}
	if config.Durations.FocusOn != time.Second || config.Durations.FocusOff != 250*time.Millisecond {
		t.Errorf("unexpected durations: %+v", config.Durations)
	}
	// Missing keys keep their defaults.
	if config.Durations.Rest != DefaultRest {
		t.Errorf("expected default rest, got %v", config.Durations.Rest)
	}
	if config.Rate != 120 {
		t.Errorf("expected rate 120, got %v", config.Rate)
	}
	if config.PollInterval != 5*time.Millisecond {
		t.Errorf("expected poll interval 5ms, got %v", config.PollInterval)
	}
	if config.Grid.Columns != 2 {
		t.Errorf("expected 2 columns, got %d", config.Grid.Columns)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %q", config.Logging.Level)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("step: [unterminated"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadFromFile(path); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	config := Default()
	config.Symbols = "XYZW"
	config.Durations.Rest = 750 * time.Millisecond
	if err := config.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if loaded.Symbols != "XYZW" {
		t.Errorf("symbols = %q, want XYZW", loaded.Symbols)
	}
	if loaded.Durations.Rest != 750*time.Millisecond {
		t.Errorf("rest = %v, want 750ms", loaded.Durations.Rest)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *CvepConfig)
		wantErr error
		errText bool
	}{
		{"valid default", func(c *CvepConfig) {}, nil, false},
		{"empty symbols", func(c *CvepConfig) { c.Symbols = "" }, nil, true},
		{"negative cycles", func(c *CvepConfig) { c.Training.Cycles = -1 }, nil, true},
		{"negative rest", func(c *CvepConfig) { c.Durations.Rest = -time.Second }, nil, true},
		{"zero columns", func(c *CvepConfig) { c.Grid.Columns = 0 }, nil, true},
		{"invalid log level", func(c *CvepConfig) { c.Logging.Level = "verbose" }, nil, true},
		{"empty log level", func(c *CvepConfig) { c.Logging.Level = "" }, nil, false},
		{"bad pattern", func(c *CvepConfig) { c.Pattern = "01a1" }, code.ErrInvalidCode, true},
		{"short pattern", func(c *CvepConfig) { c.Pattern = "1" }, code.ErrInvalidCode, true},
		{"zero step", func(c *CvepConfig) { c.Step = 0 }, nil, true},
		{"duplicate offsets", func(c *CvepConfig) { c.Pattern = "0110"; c.Step = 1 }, speller.ErrDuplicateOffset, true},
		{"unknown target symbol", func(c *CvepConfig) { c.Training.Targets = "AZ" }, speller.ErrInvalidTarget, true},
		{"zero target count", func(c *CvepConfig) { c.Training.Targets = "0" }, speller.ErrNoTargets, true},
		{"negative rate", func(c *CvepConfig) { c.Rate = -1 }, nil, true},
		{"measured rate", func(c *CvepConfig) { c.Rate = 0 }, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.modify(config)
			err := config.Validate()
			if (err != nil) != tt.errText {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.errText)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCode_Generated(t *testing.T) {
	config := Default()
	config.NBits = 6
	config.Seed = 7

	a, err := config.Code()
	if err != nil {
		t.Fatalf("Code() failed: %v", err)
	}
	if a.Len() != 63 {
		t.Errorf("expected 63-bit m-sequence, got %d", a.Len())
	}

	b, _ := config.Code()
	if a.String() != b.String() {
		t.Error("same seed should generate the same code")
	}

	config.Pattern = "0011"
	c, err := config.Code()
	if err != nil {
		t.Fatal(err)
	}
	if c.String() != "0011" {
		t.Errorf("explicit pattern should win over nbits, got %s", c)
	}
}

func TestOptions(t *testing.T) {
	config := Default()
	opts, err := config.Options()
	if err != nil {
		t.Fatalf("Options() failed: %v", err)
	}
	if opts.TargetCount != 16 {
		t.Errorf("TargetCount = %d, want 16", opts.TargetCount)
	}
	if opts.Step != 2 || opts.TrainingCycles != 10 {
		t.Errorf("unexpected options: %+v", opts)
	}
	if opts.FrameRate != 60 {
		t.Errorf("FrameRate = %v, want 60", opts.FrameRate)
	}
	if opts.Code.Len() != 31 {
		t.Errorf("code length = %d, want 31", opts.Code.Len())
	}
}

func TestCells_MatchesGrid(t *testing.T) {
	tests := []struct {
		symbols string
		columns int
		want    int
	}{
		{"ABCDEFGHIJKLMNOP", 4, 16},
		{"ABCDEFGHIJKLMNO", 4, 16},
		{"ABCDE", 4, 8},
		{"ABC", 5, 5},
	}
	for _, tt := range tests {
		config := Default()
		config.Symbols = tt.symbols
		config.Grid.Columns = tt.columns

		if got := config.Cells(); got != tt.want {
			t.Errorf("Cells(%q, %d) = %d, want %d", tt.symbols, tt.columns, got, tt.want)
		}
		layout, err := display.NewLayout(tt.symbols, tt.columns)
		if err != nil {
			t.Fatal(err)
		}
		opts, err := config.Options()
		if err != nil {
			t.Fatal(err)
		}
		// Padding cells without a symbol are driven too.
		if opts.TargetCount != layout.Cells {
			t.Errorf("%q in %d columns: TargetCount = %d, grid has %d cells", tt.symbols, tt.columns, opts.TargetCount, layout.Cells)
		}
	}
}

func TestTrainingTargets(t *testing.T) {
	t.Run("count", func(t *testing.T) {
		config := Default()
		config.Training.Targets = "20"
		targets, err := config.TrainingTargets()
		if err != nil {
			t.Fatal(err)
		}
		if len(targets) != 20 {
			t.Fatalf("got %d targets, want 20", len(targets))
		}
		seen := map[int]bool{}
		for _, id := range targets[:16] {
			if seen[id] {
				t.Errorf("cell %d drawn twice before the pool was exhausted", id)
			}
			seen[id] = true
		}
	})

	t.Run("symbols", func(t *testing.T) {
		config := Default()
		config.Training.Targets = "PAD"
		targets, err := config.TrainingTargets()
		if err != nil {
			t.Fatal(err)
		}
		want := []int{15, 0, 3}
		for i := range want {
			if targets[i] != want[i] {
				t.Fatalf("targets = %v, want %v", targets, want)
			}
		}
	})
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("CVEP_SYMBOLS", "ABCD")
	t.Setenv("CVEP_STEP", "3")
	t.Setenv("CVEP_TARGETS", "DCBA")
	t.Setenv("CVEP_CYCLES", "4")
	t.Setenv("CVEP_FOCUS_ON", "2s")
	t.Setenv("CVEP_POLL_INTERVAL", "10ms")
	t.Setenv("CVEP_RATE", "144")
	t.Setenv("CVEP_LOG_LEVEL", "trace")
	t.Setenv("CVEP_STORE_PATH", "/tmp/cvep.db")
	t.Setenv("CVEP_SEED", "99")

	config := Default()
	if err := applyEnvOverrides(config); err != nil {
		t.Fatalf("applyEnvOverrides failed: %v", err)
	}

	if config.Symbols != "ABCD" || config.Step != 3 {
		t.Errorf("unexpected symbols/step: %q %d", config.Symbols, config.Step)
	}
	if config.Training.Targets != "DCBA" || config.Training.Cycles != 4 {
		t.Errorf("unexpected training: %+v", config.Training)
	}
	if config.Durations.FocusOn != 2*time.Second {
		t.Errorf("FocusOn = %v, want 2s", config.Durations.FocusOn)
	}
	if config.PollInterval != 10*time.Millisecond {
		t.Errorf("PollInterval = %v, want 10ms", config.PollInterval)
	}
	if config.Rate != 144 {
		t.Errorf("Rate = %v, want 144", config.Rate)
	}
	if config.Logging.Level != "trace" {
		t.Errorf("Level = %q, want trace", config.Logging.Level)
	}
	if config.Store.Path != "/tmp/cvep.db" {
		t.Errorf("Store.Path = %q", config.Store.Path)
	}
	if config.Seed != 99 {
		t.Errorf("Seed = %d, want 99", config.Seed)
	}
}

func TestApplyEnvOverrides_Invalid(t *testing.T) {
	tests := []struct {
		env   string
		value string
	}{
		{"CVEP_STEP", "two"},
		{"CVEP_SEED", "-1"},
		{"CVEP_REST", "soon"},
		{"CVEP_RATE", "fast"},
		{"CVEP_NBITS", "x"},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)
			if err := applyEnvOverrides(Default()); err == nil {
				t.Errorf("expected error for %s=%s", tt.env, tt.value)
			}
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	work := t.TempDir()
	t.Chdir(work)
	if err := os.WriteFile(".env", []byte("CVEP_COLUMNS=8\n"), 0600); err != nil {
		t.Fatal(err)
	}
	// Registered so the variable godotenv sets is restored after the test.
	t.Setenv("CVEP_COLUMNS", "")
	os.Unsetenv("CVEP_COLUMNS")

	config, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Grid.Columns != 8 {
		t.Errorf("Columns = %d, want 8 from .env", config.Grid.Columns)
	}
}

func TestLoad_HomeConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Chdir(t.TempDir())

	path := filepath.Join(home, ".cvep", "config.yaml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("symbols: QRST\n"), 0600); err != nil {
		t.Fatal(err)
	}

	config, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Symbols != "QRST" {
		t.Errorf("Symbols = %q, want QRST", config.Symbols)
	}
}

func TestLoadPath(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CVEP_RATE", "120")

	path := filepath.Join(t.TempDir(), "session.yaml")
	if err := os.WriteFile(path, []byte("symbols: WXYZ\nrate: 75\n"), 0600); err != nil {
		t.Fatal(err)
	}

	config, err := LoadPath(path)
	if err != nil {
		t.Fatalf("LoadPath failed: %v", err)
	}
	if config.Symbols != "WXYZ" {
		t.Errorf("Symbols = %q, want WXYZ", config.Symbols)
	}
	if config.Rate != 120 {
		t.Errorf("Rate = %v, want 120 from environment", config.Rate)
	}

	if _, err := LoadPath(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
