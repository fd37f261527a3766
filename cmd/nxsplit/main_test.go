package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/nxsplit/hdf5"
)

// writeMaster writes a master file with one external block per size.
func writeMaster(t *testing.T, sizes ...int) string {
	t.Helper()
	dir := t.TempDir()
	total := 0
	master, err := hdf5.Create(filepath.Join(dir, "scan.nxs"))
	require.NoError(t, err)
	data, err := master.Root().RequireGroup("entry/data")
	require.NoError(t, err)

	for i, size := range sizes {
		name := fmt.Sprintf("scan_%06d.h5", i+1)
		f, err := hdf5.Create(filepath.Join(dir, name))
		require.NoError(t, err)
		g, err := f.Root().RequireGroup("entry/data")
		require.NoError(t, err)
		_, err = hdf5.CreateNumeric(g, "data", []uint64{uint64(size), 2}, make([]uint16, size*2))
		require.NoError(t, err)
		require.NoError(t, f.Close())
		require.NoError(t, data.CreateExternalLink(fmt.Sprintf("data_%06d", i+1), name, "/entry/data/data"))
		total += size
	}

	omega := make([]float64, total)
	_, err = hdf5.CreateNumeric(data, "omega", []uint64{uint64(total)}, omega)
	require.NoError(t, err)
	tr, err := master.Root().RequireGroup("entry/sample/transformations")
	require.NoError(t, err)
	require.NoError(t, tr.CreateHardLink("omega", "/entry/data/omega"))
	_, err = hdf5.CreateNumeric(tr, "omega_increment_set", []uint64{uint64(total)}, omega)
	require.NoError(t, err)
	require.NoError(t, master.Close())
	return filepath.Join(dir, "scan.nxs")
}

func TestRun(t *testing.T) {
	input := writeMaster(t, 3, 5)
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-workers", "2", input, "2"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	dir := filepath.Dir(input)
	want := filepath.Join(dir, "scan_1.nxs") + "\n" + filepath.Join(dir, "scan_2.nxs") + "\n"
	assert.Equal(t, want, stdout.String())
	assert.FileExists(t, filepath.Join(dir, "scan_2.nxs"))
	assert.Contains(t, stderr.String(), "partition written")
}

func TestRunDryRun(t *testing.T) {
	input := writeMaster(t, 3, 5)
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-dry-run", input, "2"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	out := stdout.String()
	assert.Contains(t, out, "8 frames in 2 blocks")
	assert.Contains(t, out, "scan_1.nxs  frames [0, 4)")
	assert.Contains(t, out, "  scan_000002.h5:/entry/data/data [0, 1)")
	assert.Contains(t, out, "  scan_000002.h5:/entry/data/data [1, 5)")
	assert.NoFileExists(t, filepath.Join(filepath.Dir(input), "scan_1.nxs"))
}

func TestRunExitCodes(t *testing.T) {
	input := writeMaster(t, 4, 3, 3)

	tests := []struct {
		name string
		args []string
		code int
		msg  string
	}{
		{"help", []string{"-h"}, 0, "Usage:"},
		{"usage", []string{input, "x"}, 2, "invalid partition count"},
		{"indivisible", []string{input, "3"}, 1, "not divisible"},
		{"zero partitions", []string{input, "0"}, 1, "partition count must be at least 1"},
		{"negative partitions", []string{input, "-2"}, 1, "(total frames 10, partitions -2)"},
		{"missing input", []string{filepath.Join(t.TempDir(), "none.nxs"), "2"}, 1, "opening master file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), tt.args, &stdout, &stderr)
			assert.Equal(t, tt.code, code)
			assert.Contains(t, stderr.String(), tt.msg)
		})
	}
}

func TestRunConfigFile(t *testing.T) {
	input := writeMaster(t, 2, 2)
	path := filepath.Join(t.TempDir(), "nxsplit.hcl")
	src := fmt.Sprintf("input = %q\npartitions = 4\n\nlog {\n  format = \"json\"\n}\n", input)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o600))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", path}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.FileExists(t, filepath.Join(filepath.Dir(input), "scan_4.nxs"))
	assert.Contains(t, stderr.String(), `"msg":"partition written"`)
}
