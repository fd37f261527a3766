package split

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/nxsplit/hdf5"
)

func TestScanBlocks(t *testing.T) {
	for name, opts := range map[string][]hdf5.Option{
		"v3":     nil,
		"legacy": {hdf5.WithLegacyFormat()},
	} {
		t.Run(name, func(t *testing.T) {
			m := writeMaster(t, []int{3, 5}, opts...)
			table, _ := scan(t, m.path)

			require.Len(t, table.Blocks, 2)
			assert.Equal(t, 8, table.TotalFrames())
			assert.Equal(t, []int{3, 5}, table.Sizes())
			assert.Equal(t, frameShape, table.FrameShape)
			assert.Equal(t, 4, table.ElementSize)
			assert.True(t, table.Datatype.Equal(hdf5.TypeOf[int32]()))

			for i, b := range table.Blocks {
				assert.Equal(t, m.blocks[i], b.File)
				assert.Equal(t, "/entry/data/data", b.Dataset)
				assert.Equal(t, frameShape, b.FrameShape)
			}
			assert.Equal(t, "data_000001", table.Blocks[0].Name)
		})
	}
}

func TestScanBlocksOrdersByFile(t *testing.T) {
	dir := t.TempDir()
	writeBlockFile(t, filepath.Join(dir, "blk_1.h5"), 0, 2)
	writeBlockFile(t, filepath.Join(dir, "blk_2.h5"), 2, 3)

	path := filepath.Join(dir, "scan.nxs")
	f, err := hdf5.Create(path)
	require.NoError(t, err)
	g, err := f.Root().RequireGroup("entry/data")
	require.NoError(t, err)
	require.NoError(t, g.CreateExternalLink("data_a", "blk_2.h5", "/entry/data/data"))
	require.NoError(t, g.CreateExternalLink("data_b", "blk_1.h5", "/entry/data/data"))
	require.NoError(t, g.SetAttr("signal", "data"))
	require.NoError(t, f.Close())

	f, err = hdf5.Open(path)
	require.NoError(t, err)
	defer f.Close()
	table, err := ScanBlocks(f, DefaultLayout())
	require.NoError(t, err)

	require.Len(t, table.Blocks, 2)
	assert.Equal(t, "data_b", table.Blocks[0].Name)
	assert.Equal(t, "blk_1.h5", table.Blocks[0].File)
	assert.Equal(t, 2, table.Blocks[0].Frames)
	assert.Equal(t, "data_a", table.Blocks[1].Name)
	assert.Equal(t, 3, table.Blocks[1].Frames)
}

func TestScanBlocksMixedFormats(t *testing.T) {
	dir := t.TempDir()
	writeBlockFile(t, filepath.Join(dir, "blk_1.h5"), 0, 2, hdf5.WithLegacyFormat())
	writeBlockFile(t, filepath.Join(dir, "blk_2.h5"), 2, 2)

	path := filepath.Join(dir, "scan.nxs")
	f, err := hdf5.Create(path)
	require.NoError(t, err)
	g, err := f.Root().RequireGroup("entry/data")
	require.NoError(t, err)
	require.NoError(t, g.CreateExternalLink("data_000001", "blk_1.h5", "/entry/data/data"))
	require.NoError(t, g.CreateExternalLink("data_000002", "blk_2.h5", "/entry/data/data"))
	require.NoError(t, f.Close())

	f, err = hdf5.Open(path)
	require.NoError(t, err)
	defer f.Close()
	table, err := ScanBlocks(f, DefaultLayout())
	require.NoError(t, err)

	require.Len(t, table.Blocks, 2)
	assert.Equal(t, 4, table.TotalFrames())
	assert.Equal(t, frameShape, table.FrameShape)
}

func TestScanBlocksInMaster(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.nxs")
	f, err := hdf5.Create(path)
	require.NoError(t, err)
	g, err := f.Root().RequireGroup("entry/data")
	require.NoError(t, err)
	_, err = hdf5.CreateNumeric(g, "data_000001", []uint64{2, 1, 2}, []uint16{1, 2, 3, 4})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f, err = hdf5.Open(path)
	require.NoError(t, err)
	defer f.Close()
	table, err := ScanBlocks(f, DefaultLayout())
	require.NoError(t, err)

	require.Len(t, table.Blocks, 1)
	b := table.Blocks[0]
	assert.Equal(t, "scan.nxs", b.File)
	assert.Equal(t, "/entry/data/data_000001", b.Dataset)
	assert.Equal(t, 2, b.Frames)
	assert.Equal(t, []uint64{1, 2}, b.FrameShape)
	assert.Equal(t, 2, b.ElementSize)
}

func TestScanBlocksErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func(t *testing.T, dir string, g *hdf5.Group)
		check func(t *testing.T, err error)
	}{
		{
			name: "frame shape mismatch",
			build: func(t *testing.T, dir string, g *hdf5.Group) {
				writeBlockFile(t, filepath.Join(dir, "b1.h5"), 0, 2)
				writeRaw(t, filepath.Join(dir, "b2.h5"), []uint64{2, 3, 2}, make([]int32, 12))
				require.NoError(t, g.CreateExternalLink("data_000001", "b1.h5", "/entry/data/data"))
				require.NoError(t, g.CreateExternalLink("data_000002", "b2.h5", "/entry/data/data"))
			},
			check: func(t *testing.T, err error) {
				var se *SourceFormatError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, "b2.h5", se.Path)
				assert.Contains(t, se.Reason, "frame shape")
			},
		},
		{
			name: "element type mismatch",
			build: func(t *testing.T, dir string, g *hdf5.Group) {
				writeBlockFile(t, filepath.Join(dir, "b1.h5"), 0, 2)
				writeRaw(t, filepath.Join(dir, "b2.h5"), []uint64{1, 2, 3}, make([]uint16, 6))
				require.NoError(t, g.CreateExternalLink("data_000001", "b1.h5", "/entry/data/data"))
				require.NoError(t, g.CreateExternalLink("data_000002", "b2.h5", "/entry/data/data"))
			},
			check: func(t *testing.T, err error) {
				var se *SourceFormatError
				require.ErrorAs(t, err, &se)
				assert.Contains(t, se.Reason, "element type")
			},
		},
		{
			name: "missing block file",
			build: func(t *testing.T, dir string, g *hdf5.Group) {
				require.NoError(t, g.CreateExternalLink("data_000001", "gone.h5", "/entry/data/data"))
			},
			check: func(t *testing.T, err error) {
				var se *SourceFormatError
				require.ErrorAs(t, err, &se)
				assert.Contains(t, se.Reason, "data_000001")
			},
		},
		{
			name: "empty block",
			build: func(t *testing.T, dir string, g *hdf5.Group) {
				_, err := hdf5.CreateNumeric(g, "data_000001", []uint64{0, 2}, []int32{})
				require.NoError(t, err)
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrEmptyBlock)
				var pe *PreconditionError
				assert.ErrorAs(t, err, &pe)
			},
		},
		{
			name: "empty block after frames",
			build: func(t *testing.T, dir string, g *hdf5.Group) {
				_, err := hdf5.CreateNumeric(g, "data_000001", []uint64{3, 2}, make([]int32, 6))
				require.NoError(t, err)
				_, err = hdf5.CreateNumeric(g, "data_000002", []uint64{0, 2}, []int32{})
				require.NoError(t, err)
			},
			check: func(t *testing.T, err error) {
				var pe *PreconditionError
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, 3, pe.TotalFrames)
				assert.Contains(t, err.Error(), "data_000002")
				assert.Contains(t, err.Error(), "(total frames 3)")
			},
		},
		{
			name: "scalar block",
			build: func(t *testing.T, dir string, g *hdf5.Group) {
				_, err := hdf5.CreateNumeric(g, "data_000001", nil, []int32{7})
				require.NoError(t, err)
			},
			check: func(t *testing.T, err error) {
				var se *SourceFormatError
				require.ErrorAs(t, err, &se)
				assert.Contains(t, se.Reason, "scalar")
			},
		},
		{
			name: "no blocks",
			build: func(t *testing.T, dir string, g *hdf5.Group) {
				_, err := hdf5.CreateNumeric(g, "omega", []uint64{2}, []float64{0, 1})
				require.NoError(t, err)
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNoBlocks)
				assert.NotContains(t, err.Error(), "total frames")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "scan.nxs")
			f, err := hdf5.Create(path)
			require.NoError(t, err)
			g, err := f.Root().RequireGroup("entry/data")
			require.NoError(t, err)
			tt.build(t, dir, g)
			require.NoError(t, f.Close())

			f, err = hdf5.Open(path)
			require.NoError(t, err)
			defer f.Close()
			table, err := ScanBlocks(f, DefaultLayout())
			require.Error(t, err)
			assert.Nil(t, table)
			tt.check(t, err)
		})
	}
}

func TestScanBlocksMissingGroup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.nxs")
	f, err := hdf5.Create(path)
	require.NoError(t, err)
	_, err = f.Root().RequireGroup("entry")
	require.NoError(t, err)

	_, err = ScanBlocks(f, DefaultLayout())
	var se *SourceFormatError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, hdf5.ErrNotFound)
	require.NoError(t, f.Close())
}

// writeRaw writes a block file holding values as /entry/data/data.
func writeRaw[T hdf5.Number](t *testing.T, path string, dims []uint64, values []T) {
	t.Helper()
	f, err := hdf5.Create(path)
	require.NoError(t, err)
	g, err := f.Root().RequireGroup("entry/data")
	require.NoError(t, err)
	_, err = hdf5.CreateNumeric(g, "data", dims, values)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}
