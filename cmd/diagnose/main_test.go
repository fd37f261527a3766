package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/nxsplit/hdf5"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()
	block, err := hdf5.Create(filepath.Join(dir, "block.h5"))
	require.NoError(t, err)
	bg, err := block.Root().RequireGroup("entry/data")
	require.NoError(t, err)
	_, err = hdf5.CreateNumeric(bg, "data", []uint64{2, 2}, []int32{1, 2, 3, 4}, hdf5.WithChunks(1, 2))
	require.NoError(t, err)
	require.NoError(t, block.Close())

	path := filepath.Join(dir, "view.nxs")
	f, err := hdf5.Create(path)
	require.NoError(t, err)
	g, err := f.Root().RequireGroup("entry/data")
	require.NoError(t, err)
	require.NoError(t, g.SetAttr("signal", "data"))
	require.NoError(t, g.CreateExternalLink("data_000001", "block.h5", "/entry/data/data"))
	_, err = g.CreateVirtualDataset("data", &hdf5.VirtualLayout{
		Datatype: hdf5.TypeOf[int32](),
		Dims:     []uint64{1, 2},
		Sources: []hdf5.VirtualSource{{
			File: "block.h5", Dataset: "/entry/data/data",
			SrcStart: []uint64{1, 0}, DstStart: []uint64{0, 0}, Count: []uint64{1, 2},
		}},
	})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	var out bytes.Buffer
	require.Equal(t, 0, run([]string{path}, &out), out.String())
	s := out.String()
	assert.Contains(t, s, `Group "/entry/data":`)
	assert.Contains(t, s, "@signal = data")
	assert.Contains(t, s, `External link "/entry/data/data_000001" -> block.h5:/entry/data/data`)
	assert.Contains(t, s, `Dataset "/entry/data/data":`)
	assert.Contains(t, s, "Mappings: 1")
	assert.Contains(t, s, "block.h5:/entry/data/data start [1 0] -> start [0 0] count [1 2]")
}

func TestRunErrors(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, 2, run(nil, &out))
	assert.Contains(t, out.String(), "Usage:")

	out.Reset()
	assert.Equal(t, 1, run([]string{filepath.Join(t.TempDir(), "none.h5")}, &out))
	assert.Contains(t, out.String(), "Failed to open file")
}
