// Package config loads nxsplit configuration files. The files are HCL;
// expressions can read environment variables through the env object, as in
//
//	input      = "${env.DATA_DIR}/scan.nxs"
//	partitions = 4
//
//	layout {
//	  data_group = "/entry/data"
//	}
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/robert-malhotra/nxsplit/split"
)

// File is a decoded configuration file. Unset attributes hold their zero
// values; FillValue is nil when unset.
type File struct {
	Input      string  `hcl:"input,optional"`
	Partitions int     `hcl:"partitions,optional"`
	Workers    int     `hcl:"workers,optional"`
	FillValue  *int64  `hcl:"fill_value,optional"`
	DryRun     bool    `hcl:"dry_run,optional"`
	Layout     *Layout `hcl:"layout,block"`
	Log        *Log    `hcl:"log,block"`
}

// Layout overrides parts of the master file layout.
type Layout struct {
	DataGroup   string   `hcl:"data_group,optional"`
	BlockPrefix string   `hcl:"block_prefix,optional"`
	DataName    string   `hcl:"data_name,optional"`
	AuxArrays   []string `hcl:"aux_arrays,optional"`
}

// Log configures logging output.
type Log struct {
	Format string `hcl:"format,optional"`
	Level  string `hcl:"level,optional"`
}

// Load parses and decodes the file at path. env is exposed to expressions
// as the env object.
func Load(path string, env map[string]string) (*File, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(src, path, env)
}

// Parse decodes configuration source. filename is used in diagnostics.
func Parse(src []byte, filename string, env map[string]string) (*File, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config file %s: %s", filename, diags.Error())
	}

	var cfg File
	diags = gohcl.DecodeBody(file.Body, evalContext(env), &cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config file %s: %s", filename, diags.Error())
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", filename, err)
	}
	return &cfg, nil
}

func evalContext(env map[string]string) *hcl.EvalContext {
	vars := make(map[string]cty.Value, len(env))
	for k, v := range env {
		vars[k] = cty.StringVal(v)
	}
	obj := cty.EmptyObjectVal
	if len(vars) > 0 {
		obj = cty.ObjectVal(vars)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": obj},
	}
}

// Environ returns the process environment as a map.
func Environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			env[k] = v
		}
	}
	return env
}

func (f *File) validate() error {
	if f.Partitions < 0 {
		return fmt.Errorf("partitions must not be negative, got %d", f.Partitions)
	}
	if f.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", f.Workers)
	}
	if f.Log == nil {
		return nil
	}
	if f.Log.Format != "" {
		if err := ValidateLogFormat(f.Log.Format); err != nil {
			return err
		}
	}
	if f.Log.Level != "" {
		return ValidateLogLevel(f.Log.Level)
	}
	return nil
}

// ValidateLogFormat checks a log format name.
func ValidateLogFormat(format string) error {
	switch strings.ToLower(format) {
	case "text", "json":
		return nil
	}
	return fmt.Errorf("invalid log format %q: must be 'text' or 'json'", format)
}

// ValidateLogLevel checks a log level name.
func ValidateLogLevel(level string) error {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("invalid log level %q: must be 'debug', 'info', 'warn', or 'error'", level)
}

// SplitLayout returns the default master file layout with the fields set
// in the layout block replaced.
func (f *File) SplitLayout() split.Layout {
	l := split.DefaultLayout()
	if f.Layout == nil {
		return l
	}
	if f.Layout.DataGroup != "" {
		l.DataGroup = f.Layout.DataGroup
	}
	if f.Layout.BlockPrefix != "" {
		l.BlockPrefix = f.Layout.BlockPrefix
	}
	if f.Layout.DataName != "" {
		l.DataName = f.Layout.DataName
	}
	if f.Layout.AuxArrays != nil {
		l.AuxArrays = f.Layout.AuxArrays
	}
	return l
}
