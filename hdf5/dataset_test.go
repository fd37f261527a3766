package hdf5

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frames(n, h, w int) []uint16 {
	out := make([]uint16, n*h*w)
	for i := range out {
		out[i] = uint16(i)
	}
	return out
}

func TestDatasetStorage(t *testing.T) {
	values := frames(4, 3, 5)
	cases := []struct {
		name   string
		opts   []DatasetOption
		layout string
		chunks []uint64
	}{
		{"contiguous", nil, "contiguous", nil},
		{"compact", []DatasetOption{WithCompact()}, "compact", nil},
		{"chunked", []DatasetOption{WithChunks(1, 3, 5)}, "chunked", []uint64{1, 3, 5}},
		{"partial edge", []DatasetOption{WithChunks(3, 2, 2)}, "chunked", []uint64{3, 2, 2}},
		{"deflate", []DatasetOption{WithChunks(2, 3, 5), WithShuffle(), WithDeflate(4)}, "chunked", []uint64{2, 3, 5}},
		{"lz4", []DatasetOption{WithChunks(1, 3, 5), WithLZ4()}, "chunked", []uint64{1, 3, 5}},
		{"zstd", []DatasetOption{WithChunks(1, 3, 5), WithZstd(3), WithFletcher32()}, "chunked", []uint64{1, 3, 5}},
		{"fixed array", []DatasetOption{WithChunks(1, 3, 5), WithFixedArrayIndex()}, "chunked", []uint64{1, 3, 5}},
		{"fixed array filtered", []DatasetOption{WithChunks(1, 3, 5), WithFixedArrayIndex(), WithDeflate(1)}, "chunked", []uint64{1, 3, 5}},
		{"unlimited", []DatasetOption{WithChunks(1, 3, 5), WithMaxDims(Unlimited, 3, 5)}, "chunked", []uint64{1, 3, 5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, p := newTestFile(t, "data.h5")
			_, err := CreateNumeric(f.Root(), "data", []uint64{4, 3, 5}, values, tc.opts...)
			require.NoError(t, err)
			require.NoError(t, f.Close())

			r, err := Open(p)
			require.NoError(t, err)
			defer r.Close()
			ds, err := r.OpenDataset("data")
			require.NoError(t, err)
			assert.Equal(t, tc.layout, ds.Layout())
			assert.Equal(t, tc.chunks, ds.ChunkShape())
			assert.Equal(t, 2, ds.ElementSize())
			assert.Equal(t, uint64(60), ds.NumElements())

			got, err := ReadNumeric[uint16](ds)
			require.NoError(t, err)
			assert.Equal(t, values, got)

			// frame 2, rows 1-2, columns 3-4
			part, err := ds.ReadSlice([]uint64{2, 1, 3}, []uint64{1, 2, 2})
			require.NoError(t, err)
			want := []byte{
				byte(values[2*15+1*5+3]), 0, byte(values[2*15+1*5+4]), 0,
				byte(values[2*15+2*5+3]), 0, byte(values[2*15+2*5+4]), 0,
			}
			assert.Equal(t, want, part)
		})
	}
}

func TestDatasetErrors(t *testing.T) {
	f, _ := newTestFile(t, "data.h5")
	root := f.Root()

	_, err := CreateNumeric(root, "short", []uint64{3}, []int32{1, 2})
	assert.Error(t, err)
	_, err = CreateNumeric(root, "filtered", []uint64{2}, []int32{1, 2}, WithDeflate(1))
	assert.Error(t, err)
	_, err = CreateNumeric(root, "grow", []uint64{2}, []int32{1, 2}, WithMaxDims(Unlimited))
	assert.Error(t, err)
	_, err = CreateNumeric(root, "fa", []uint64{2}, []int32{1, 2}, WithChunks(1), WithMaxDims(Unlimited), WithFixedArrayIndex())
	assert.ErrorIs(t, err, ErrUnsupported)

	ds, err := CreateNumeric(root, "ok", []uint64{2}, []int32{1, 2})
	require.NoError(t, err)
	_, err = ds.ReadSlice([]uint64{1}, []uint64{2})
	assert.Error(t, err)
	var s []complex64
	assert.ErrorIs(t, ds.Read(&s), ErrUnsupported)
}

func TestDatasetScalarAndStrings(t *testing.T) {
	f, _ := newTestFile(t, "data.h5")
	root := f.Root()

	ds, err := CreateNumeric(root, "count", nil, []int64{42})
	require.NoError(t, err)
	assert.Equal(t, 0, ds.Rank())
	got, err := ReadNumeric[int64](ds)
	require.NoError(t, err)
	assert.Equal(t, []int64{42}, got)

	st := StringType(8)
	names, err := root.CreateDataset("names", st, []uint64{2}, []byte("omega\x00\x00\x00phi\x00\x00\x00\x00\x00"))
	require.NoError(t, err)
	var out []string
	require.NoError(t, names.Read(&out))
	assert.Equal(t, []string{"omega", "phi"}, out)
}

func TestDatasetFillValue(t *testing.T) {
	f, _ := newTestFile(t, "data.h5")
	dt := IntType(4, true)
	fill, err := dt.EncodeInt(-1)
	require.NoError(t, err)

	ds, err := CreateNumeric(f.Root(), "data", []uint64{2}, []int32{3, 4}, WithFill(fill))
	require.NoError(t, err)
	assert.Equal(t, fill, ds.FillValue())

	u := IntType(2, false)
	top, err := u.EncodeInt(-1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xff}, top)

	_, err = StringType(4).EncodeInt(1)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestDatasetAttributes(t *testing.T) {
	f, _ := newTestFile(t, "data.h5", WithLegacyFormat())
	ds, err := CreateNumeric(f.Root(), "omega", []uint64{2}, []float64{0.1, 0.2},
		WithAttribute("units", "deg"), WithAttribute("offset", 0.5))
	require.NoError(t, err)

	units, err := ds.Attr("units")
	require.NoError(t, err)
	s, err := units.String()
	require.NoError(t, err)
	assert.Equal(t, "deg", s)

	off, err := ds.Attr("offset")
	require.NoError(t, err)
	assert.Nil(t, off.Shape())
	v, err := off.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5}, v)

	_, err = ds.Attr("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRewrite(t *testing.T) {
	cases := []struct {
		name string
		opts []DatasetOption
	}{
		{"contiguous", nil},
		{"chunked", []DatasetOption{WithChunks(2)}},
		{"deflate", []DatasetOption{WithChunks(2), WithDeflate(6)}},
		{"fixed array", []DatasetOption{WithChunks(2), WithFixedArrayIndex()}},
	}
	for _, format := range formats {
		for _, tc := range cases {
			t.Run(format.name+"/"+tc.name, func(t *testing.T) {
				f, p := newTestFile(t, "master.h5", format.opts...)
				data, err := f.Root().RequireGroup("entry/data")
				require.NoError(t, err)
				opts := append(tc.opts, WithAttribute("units", "deg"))
				ds, err := CreateNumeric(data, "omega", []uint64{6}, []float64{0, 1, 2, 3, 4, 5}, opts...)
				require.NoError(t, err)
				tr, err := f.Root().RequireGroup("entry/sample/transformations")
				require.NoError(t, err)
				require.NoError(t, tr.CreateHardLink("omega", "/entry/data/omega"))

				raw, err := ds.ReadSlice([]uint64{2}, []uint64{3})
				require.NoError(t, err)
				require.NoError(t, ds.Rewrite(raw, []uint64{3}))
				assert.Equal(t, []uint64{3}, ds.Shape())

				assert.Error(t, ds.Rewrite(raw, []uint64{4}))
				assert.Error(t, ds.Rewrite(raw, []uint64{1, 3}))
				require.NoError(t, f.Close())

				r, err := Open(p)
				require.NoError(t, err)
				defer r.Close()
				a, err := r.OpenDataset("/entry/data/omega")
				require.NoError(t, err)
				b, err := r.OpenDataset("/entry/sample/transformations/omega")
				require.NoError(t, err)
				assert.Equal(t, a.Address(), b.Address())
				for _, d := range []*Dataset{a, b} {
					got, err := ReadNumeric[float64](d)
					require.NoError(t, err)
					assert.Equal(t, []float64{2, 3, 4}, got)
				}
				units, err := a.Attr("units")
				require.NoError(t, err)
				s, err := units.String()
				require.NoError(t, err)
				assert.Equal(t, "deg", s)
				assert.Equal(t, a.Layout() == "chunked", tc.opts != nil)
			})
		}
	}
}

func TestRewriteToEmpty(t *testing.T) {
	f, _ := newTestFile(t, "master.h5")
	ds, err := CreateNumeric(f.Root(), "omega", []uint64{2}, []float32{1, 2})
	require.NoError(t, err)
	require.NoError(t, ds.Rewrite(nil, []uint64{0}))
	got, err := ReadNumeric[float32](ds)
	require.NoError(t, err)
	assert.Empty(t, got)
}
