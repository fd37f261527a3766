package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/robert-malhotra/nxsplit/internal/config"
	"github.com/robert-malhotra/nxsplit/split"
)

// ExitError is an error carrying the process exit code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...any) *ExitError {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

// Config is the resolved configuration of one run.
type Config struct {
	Input      string
	Partitions int
	Workers    int
	FillValue  int64
	DryRun     bool
	LogFormat  string
	LogLevel   string
	Layout     split.Layout
}

// Parse processes command-line arguments. Values from the -config file
// apply first and explicit flags override them. It returns the resolved
// Config, whether the program should exit cleanly (help was printed), or
// an *ExitError.
func Parse(args []string, output io.Writer, env map[string]string) (*Config, bool, error) {
	flagSet := flag.NewFlagSet("nxsplit", flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprint(output, `
nxsplit - split a NeXus/HDF5 master file into partitions of equal frame count.

Usage:
  nxsplit [options] INPUT N

Arguments:
  INPUT  master file; outputs are written next to it as INPUT_1 ... INPUT_N
  N      number of partitions; must divide the total frame count

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "HCL configuration file. Flags override its values.")
	workersFlag := flagSet.Int("workers", 1, "Number of partitions written at once.")
	fillFlag := flagSet.Int64("fill", split.DefaultFillValue, "Fill value of the virtual dataset.")
	dryRunFlag := flagSet.Bool("dry-run", false, "Print the plan without writing any output.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, usageError("%s", err)
	}

	cfg := &Config{
		Workers:   1,
		FillValue: split.DefaultFillValue,
		LogFormat: "text",
		LogLevel:  "info",
		Layout:    split.DefaultLayout(),
	}
	if *configFlag != "" {
		file, err := config.Load(*configFlag, env)
		if err != nil {
			return nil, false, usageError("%s", err)
		}
		cfg.apply(file)
	}

	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "workers":
			cfg.Workers = *workersFlag
		case "fill":
			cfg.FillValue = *fillFlag
		case "dry-run":
			cfg.DryRun = *dryRunFlag
		case "log-format":
			cfg.LogFormat = *logFormatFlag
		case "log-level":
			cfg.LogLevel = *logLevelFlag
		}
	})

	// a count of zero or less is the splitter's to reject
	countSet := cfg.Partitions != 0
	switch flagSet.NArg() {
	case 0:
	case 1:
		cfg.Input = flagSet.Arg(0)
	case 2:
		cfg.Input = flagSet.Arg(0)
		n, err := strconv.Atoi(flagSet.Arg(1))
		if err != nil {
			return nil, false, usageError("invalid partition count %q", flagSet.Arg(1))
		}
		cfg.Partitions = n
		countSet = true
	default:
		return nil, false, usageError("too many arguments: %s", strings.Join(flagSet.Args()[2:], " "))
	}

	if cfg.Input == "" {
		flagSet.Usage()
		return nil, true, nil
	}
	if !countSet {
		return nil, false, usageError("missing partition count")
	}
	if cfg.Workers < 1 {
		return nil, false, usageError("invalid workers %d: must be at least 1", cfg.Workers)
	}
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	if err := config.ValidateLogFormat(cfg.LogFormat); err != nil {
		return nil, false, usageError("%s", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if err := config.ValidateLogLevel(cfg.LogLevel); err != nil {
		return nil, false, usageError("%s", err)
	}
	return cfg, false, nil
}

// apply copies the values set in a configuration file.
func (c *Config) apply(f *config.File) {
	if f.Input != "" {
		c.Input = f.Input
	}
	if f.Partitions != 0 {
		c.Partitions = f.Partitions
	}
	if f.Workers != 0 {
		c.Workers = f.Workers
	}
	if f.FillValue != nil {
		c.FillValue = *f.FillValue
	}
	c.DryRun = f.DryRun
	if f.Log != nil {
		if f.Log.Format != "" {
			c.LogFormat = f.Log.Format
		}
		if f.Log.Level != "" {
			c.LogLevel = f.Log.Level
		}
	}
	c.Layout = f.SplitLayout()
}

// Logger builds the logger the configuration asks for, writing to w.
func (c *Config) Logger(w io.Writer) *split.Logger {
	var level slog.Level
	switch c.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return split.NewLogger(slog.NewJSONHandler(w, opts))
	}
	return split.NewLogger(slog.NewTextHandler(w, opts))
}

// SplitOptions returns the splitter options of the configuration.
func (c *Config) SplitOptions(log *split.Logger) []split.Option {
	return []split.Option{
		split.WithWorkers(c.Workers),
		split.WithFillValue(c.FillValue),
		split.WithLayout(c.Layout),
		split.WithDryRun(c.DryRun),
		split.WithLogger(log),
	}
}
