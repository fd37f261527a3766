package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/nxsplit/split"
)

func TestParse(t *testing.T) {
	src := `
input      = "${env.DATA_DIR}/scan.nxs"
partitions = 4
workers    = 2
fill_value = 0
dry_run    = true

layout {
  data_group = "/entry/detector"
  aux_arrays = ["/entry/detector/angle"]
}

log {
  format = "json"
  level  = "debug"
}
`
	cfg, err := Parse([]byte(src), "nxsplit.hcl", map[string]string{"DATA_DIR": "/data/run1"})
	require.NoError(t, err)

	assert.Equal(t, "/data/run1/scan.nxs", cfg.Input)
	assert.Equal(t, 4, cfg.Partitions)
	assert.Equal(t, 2, cfg.Workers)
	require.NotNil(t, cfg.FillValue)
	assert.Equal(t, int64(0), *cfg.FillValue)
	assert.True(t, cfg.DryRun)
	require.NotNil(t, cfg.Log)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "debug", cfg.Log.Level)

	l := cfg.SplitLayout()
	def := split.DefaultLayout()
	assert.Equal(t, "/entry/detector", l.DataGroup)
	assert.Equal(t, def.BlockPrefix, l.BlockPrefix)
	assert.Equal(t, def.DataName, l.DataName)
	assert.Equal(t, []string{"/entry/detector/angle"}, l.AuxArrays)
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil, "empty.hcl", nil)
	require.NoError(t, err)
	assert.Empty(t, cfg.Input)
	assert.Nil(t, cfg.FillValue)
	assert.Nil(t, cfg.Layout)
	assert.Equal(t, split.DefaultLayout(), cfg.SplitLayout())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"syntax", `partitions = `, "failed to parse"},
		{"unknown attribute", `frames = 3`, "failed to decode"},
		{"wrong type", `partitions = "four"`, "failed to decode"},
		{"unset variable", `input = env.MISSING`, "failed to decode"},
		{"negative partitions", `partitions = -1`, "partitions must not be negative"},
		{"negative workers", `workers = -3`, "workers must not be negative"},
		{"log format", "log {\n  format = \"xml\"\n}", "invalid log format"},
		{"log level", "log {\n  level = \"loud\"\n}", "invalid log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "bad.hcl", nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nxsplit.hcl")
	require.NoError(t, os.WriteFile(path, []byte("partitions = 3\n"), 0o600))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Partitions)

	_, err = Load(filepath.Join(t.TempDir(), "none.hcl"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEnviron(t *testing.T) {
	t.Setenv("NXSPLIT_TEST_DIR", "/tmp/a=b")
	env := Environ()
	assert.Equal(t, "/tmp/a=b", env["NXSPLIT_TEST_DIR"])
}
