package split

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/nxsplit/hdf5"
)

// frameShape is the shape of one detector frame in fixtures.
var frameShape = []uint64{2, 3}

// pixel is the value of element k of global frame g in fixtures.
func pixel(g, k int) int32 { return int32(g*100 + k) }

func omegaAt(g int) float64 { return 0.1 * float64(g) }

// master is a master file with external block files written by writeMaster.
type master struct {
	dir    string
	path   string
	blocks []string
}

// writeMaster writes one block file per size and a master file linking
// them from /entry/data, with omega arrays as an NXmx master has them.
func writeMaster(t *testing.T, sizes []int, opts ...hdf5.Option) *master {
	t.Helper()
	m := &master{dir: t.TempDir()}
	m.path = filepath.Join(m.dir, "scan.nxs")

	first := 0
	for i, size := range sizes {
		name := fmt.Sprintf("scan_%06d.h5", i+1)
		writeBlockFile(t, filepath.Join(m.dir, name), first, size, opts...)
		m.blocks = append(m.blocks, name)
		first += size
	}
	total := first

	f, err := hdf5.Create(m.path, opts...)
	require.NoError(t, err)
	data, err := f.Root().RequireGroup("entry/data")
	require.NoError(t, err)
	for i, name := range m.blocks {
		require.NoError(t, data.CreateExternalLink(fmt.Sprintf("data_%06d", i+1), name, "/entry/data/data"))
	}

	omega := make([]float64, total)
	incr := make([]float64, total)
	for g := 0; g < total; g++ {
		omega[g] = omegaAt(g)
		incr[g] = 0.1
	}
	_, err = hdf5.CreateNumeric(data, "omega", []uint64{uint64(total)}, omega,
		hdf5.WithChunks(4), hdf5.WithMaxDims(hdf5.Unlimited), hdf5.WithAttribute("units", "deg"))
	require.NoError(t, err)
	require.NoError(t, data.SetAttr("signal", "data"))

	tr, err := f.Root().RequireGroup("entry/sample/transformations")
	require.NoError(t, err)
	require.NoError(t, tr.CreateHardLink("omega", "/entry/data/omega"))
	_, err = hdf5.CreateNumeric(tr, "omega_increment_set", []uint64{uint64(total)}, incr)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return m
}

func writeBlockFile(t *testing.T, path string, first, frames int, opts ...hdf5.Option) {
	t.Helper()
	f, err := hdf5.Create(path, opts...)
	require.NoError(t, err)
	g, err := f.Root().RequireGroup("entry/data")
	require.NoError(t, err)
	per := int(frameShape[0] * frameShape[1])
	values := make([]int32, frames*per)
	for i := 0; i < frames; i++ {
		for k := 0; k < per; k++ {
			values[i*per+k] = pixel(first+i, k)
		}
	}
	dims := append([]uint64{uint64(frames)}, frameShape...)
	_, err = hdf5.CreateNumeric(g, "data", dims, values, hdf5.WithChunks(1, 2, 3), hdf5.WithDeflate(1))
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

// scan opens a master and returns its block table and aux arrays.
func scan(t *testing.T, path string) (*BlockTable, []*AuxArray) {
	t.Helper()
	f, err := hdf5.Open(path)
	require.NoError(t, err)
	defer f.Close()
	table, err := ScanBlocks(f, DefaultLayout())
	require.NoError(t, err)
	aux, err := LoadAuxArrays(f, DefaultLayout().AuxArrays, table.TotalFrames())
	require.NoError(t, err)
	return table, aux
}
