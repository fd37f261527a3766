package hdf5

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "master.h5")
	f, err := Create(src)
	require.NoError(t, err)
	_, err = CreateNumeric(f.Root(), "omega", []uint64{3}, []float64{1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, os.Chmod(src, 0o640))

	dst := filepath.Join(dir, "copy.h5")
	require.NoError(t, os.WriteFile(dst, make([]byte, 1<<16), 0o600))
	require.NoError(t, CopyFile(src, dst))

	want, err := os.ReadFile(src)
	require.NoError(t, err)
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())

	fresh := filepath.Join(dir, "fresh.h5")
	require.NoError(t, CopyFile(src, fresh))
	info, err = os.Stat(fresh)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())

	r, err := Open(fresh)
	require.NoError(t, err)
	defer r.Close()
	ds, err := r.OpenDataset("omega")
	require.NoError(t, err)
	omega, err := ReadNumeric[float64](ds)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, omega)

	assert.Error(t, CopyFile(filepath.Join(dir, "missing.h5"), fresh))
}
