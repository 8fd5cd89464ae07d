// Package config collects the settings of a simulation run.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sarchlab/pagewalk/mem/vm"
	"github.com/sarchlab/pagewalk/report"
)

// EnvPrefix prefixes every environment variable read by FromEnv.
const EnvPrefix = "PAGEWALK_"

// Errors reported by Validate.
var (
	ErrMissingTraceFile   = errors.New("missing trace file argument")
	ErrNegativeCapacity   = errors.New("TLB capacity must be a number, greater than or equal to 0")
	ErrInvalidAccessCount = errors.New("number of memory accesses must be a number, greater than 0")
	ErrInvalidLevelBits   = errors.New("level bits must be numbers, greater than 0")
	ErrInvalidPageShift   = errors.New("TLB page shift must be between 0 and 31")
)

// Config is the full set of settings of a run.
type Config struct {
	TraceFile string
	LevelBits vm.LevelConfig

	// TLBCapacity is the number of TLB entries. 0 disables the TLB.
	TLBCapacity int

	// NumAccesses limits how many addresses are processed. -1 processes
	// the whole trace.
	NumAccesses int

	OutputMode report.Mode

	// TLBPageShift fixes how far addresses are shifted to form TLB keys.
	// -1 derives it from the level bits.
	TLBPageShift int

	LogLevel  string
	LogFormat string
	LogOutput string

	// RecordDB names the SQLite database that receives translations and
	// the summary, without the .sqlite3 suffix. Empty disables recording.
	RecordDB string

	// MonitorPort enables the monitoring server. 0 disables it, -1 picks a
	// free port.
	MonitorPort int
	OpenBrowser bool
}

// Default returns the settings used when nothing else is given.
func Default() Config {
	return Config{
		NumAccesses:  -1,
		OutputMode:   report.DefaultMode,
		TLBPageShift: -1,
		LogLevel:     "warn",
		LogFormat:    "console",
		LogOutput:    "stderr",
	}
}

// FromEnv returns the defaults overridden by PAGEWALK_* variables. Variables
// found in envFile are used unless the process environment sets them too. A
// missing envFile is not an error.
func FromEnv(envFile string) (Config, error) {
	c := Default()

	vars := map[string]string{}
	if envFile != "" {
		fileVars, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return c, fmt.Errorf("read %s: %w", envFile, err)
		}

		for k, v := range fileVars {
			vars[k] = v
		}
	}

	for _, kv := range os.Environ() {
		k, v, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(k, EnvPrefix) {
			vars[k] = v
		}
	}

	return c, c.apply(vars)
}

func (c *Config) apply(vars map[string]string) error {
	var err error

	for key, value := range vars {
		name, ok := strings.CutPrefix(key, EnvPrefix)
		if !ok {
			continue
		}

		switch name {
		case "TRACE_FILE":
			c.TraceFile = value
		case "LEVEL_BITS":
			c.LevelBits, err = ParseLevelBits(strings.FieldsFunc(value,
				func(r rune) bool { return r == ',' || r == ' ' }))
		case "TLB_CAPACITY":
			c.TLBCapacity, err = strconv.Atoi(value)
		case "NUM_ACCESSES":
			c.NumAccesses, err = strconv.Atoi(value)
		case "OUTPUT_MODE":
			c.OutputMode, err = report.ParseMode(value)
		case "TLB_PAGE_SHIFT":
			c.TLBPageShift, err = strconv.Atoi(value)
		case "LOG_LEVEL":
			c.LogLevel = value
		case "LOG_FORMAT":
			c.LogFormat = value
		case "LOG_OUTPUT":
			c.LogOutput = value
		case "RECORD_DB":
			c.RecordDB = value
		case "MONITOR_PORT":
			c.MonitorPort, err = strconv.Atoi(value)
		case "OPEN_BROWSER":
			c.OpenBrowser, err = strconv.ParseBool(value)
		}

		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}

	return nil
}

// ParseLevelBits converts command-line words into level widths.
func ParseLevelBits(args []string) (vm.LevelConfig, error) {
	levels := make(vm.LevelConfig, 0, len(args))

	for _, a := range args {
		bits, err := strconv.Atoi(a)
		if err != nil || bits <= 0 {
			return nil, fmt.Errorf("%q: %w", a, ErrInvalidLevelBits)
		}

		levels = append(levels, uint(bits))
	}

	return levels, nil
}

// Validate checks the settings before any component is built.
func (c Config) Validate() error {
	if c.TraceFile == "" {
		return ErrMissingTraceFile
	}

	if c.TLBCapacity < 0 {
		return ErrNegativeCapacity
	}

	if c.NumAccesses < -1 {
		return ErrInvalidAccessCount
	}

	if _, err := report.ParseMode(string(c.OutputMode)); err != nil {
		return err
	}

	if c.TLBPageShift < -1 || c.TLBPageShift >= vm.AddressBits {
		return ErrInvalidPageShift
	}

	return c.LevelBits.Validate()
}
