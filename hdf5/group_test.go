package hdf5

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupLinks(t *testing.T) {
	for _, tc := range formats {
		t.Run(tc.name, func(t *testing.T) {
			f, p := newTestFile(t, "master.h5", tc.opts...)
			data, err := f.Root().RequireGroup("/entry/data")
			require.NoError(t, err)
			_, err = CreateNumeric(data, "data", []uint64{4}, []uint16{1, 2, 3, 4})
			require.NoError(t, err)

			require.NoError(t, data.CreateHardLink("alias", "/entry/data/data"))
			require.NoError(t, data.CreateSoftLink("soft", "/entry/data/data"))

			sample, err := f.Root().RequireGroup("entry/sample")
			require.NoError(t, err)
			require.NoError(t, sample.CreateSoftLink("up", "/entry/data"))

			err = data.CreateSoftLink("soft", "/nowhere")
			assert.ErrorIs(t, err, ErrExists)
			_, err = data.CreateGroup("a/b")
			assert.ErrorIs(t, err, ErrInvalidPath)
			require.NoError(t, f.Close())

			r, err := Open(p)
			require.NoError(t, err)
			defer r.Close()
			g, err := r.OpenGroup("/entry/data")
			require.NoError(t, err)

			links, err := g.Links()
			require.NoError(t, err)
			require.Len(t, links, 3)
			assert.Equal(t, "alias", links[0].Name)
			assert.Equal(t, HardLink, links[0].Kind)
			assert.Equal(t, "data", links[1].Name)
			assert.Equal(t, links[0].Address, links[1].Address)
			assert.Equal(t, SoftLink, links[2].Kind)
			assert.Equal(t, "/entry/data/data", links[2].Target)

			for _, name := range []string{"data", "alias", "soft", "/entry/sample/up/data"} {
				ds, err := g.OpenDataset(name)
				require.NoError(t, err, name)
				got, err := ReadNumeric[uint16](ds)
				require.NoError(t, err)
				assert.Equal(t, []uint16{1, 2, 3, 4}, got)
			}

			_, err = g.OpenGroup("data")
			assert.ErrorIs(t, err, ErrNotGroup)
			_, err = g.OpenDataset("missing")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.True(t, g.Has("soft"))
			assert.False(t, g.Has("missing"))
		})
	}
}

func TestExternalLink(t *testing.T) {
	for _, tc := range formats {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			block, err := Create(filepath.Join(dir, "scan_000001.h5"), tc.opts...)
			require.NoError(t, err)
			bg, err := block.Root().RequireGroup("entry/data")
			require.NoError(t, err)
			_, err = CreateNumeric(bg, "data", []uint64{2, 2}, []int32{5, 6, 7, 8})
			require.NoError(t, err)
			require.NoError(t, block.Close())

			master, err := Create(filepath.Join(dir, "scan_master.h5"), tc.opts...)
			require.NoError(t, err)
			data, err := master.Root().RequireGroup("entry/data")
			require.NoError(t, err)
			require.NoError(t, data.CreateExternalLink("data_000001", "scan_000001.h5", "/entry/data/data"))
			require.NoError(t, master.Close())

			r, err := Open(filepath.Join(dir, "scan_master.h5"))
			require.NoError(t, err)
			defer r.Close()
			l, err := r.Root().OpenGroup("entry/data")
			require.NoError(t, err)
			link, err := l.Link("data_000001")
			require.NoError(t, err)
			assert.Equal(t, ExternalLink, link.Kind)
			assert.Equal(t, "scan_000001.h5", link.File)
			assert.Equal(t, "/entry/data/data", link.Target)

			ds, err := r.OpenDataset("/entry/data/data_000001")
			require.NoError(t, err)
			assert.Equal(t, []uint64{2, 2}, ds.Shape())
			got, err := ReadNumeric[int32](ds)
			require.NoError(t, err)
			assert.Equal(t, []int32{5, 6, 7, 8}, got)
		})
	}
}

func TestSoftLinkLoop(t *testing.T) {
	f, _ := newTestFile(t, "loop.h5")
	root := f.Root()
	require.NoError(t, root.CreateSoftLink("a", "/b"))
	require.NoError(t, root.CreateSoftLink("b", "/a"))
	_, err := f.OpenDataset("/a")
	assert.ErrorIs(t, err, ErrLinkDepth)
}

func TestRemoveLinks(t *testing.T) {
	for _, tc := range formats {
		t.Run(tc.name, func(t *testing.T) {
			f, p := newTestFile(t, "master.h5", tc.opts...)
			data, err := f.Root().RequireGroup("entry/data")
			require.NoError(t, err)
			for i := 1; i <= 3; i++ {
				require.NoError(t, data.CreateExternalLink(fmt.Sprintf("data_%06d", i), fmt.Sprintf("b_%06d.h5", i), "/entry/data/data"))
			}
			_, err = CreateNumeric(data, "omega", []uint64{1}, []float64{1})
			require.NoError(t, err)

			n, err := data.RemoveLinks(func(name string) bool { return strings.HasPrefix(name, "data_") })
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			n, err = data.RemoveLinks(func(name string) bool { return strings.HasPrefix(name, "data_") })
			require.NoError(t, err)
			assert.Zero(t, n)

			assert.ErrorIs(t, data.Unlink("data_000001"), ErrNotFound)
			require.NoError(t, f.Close())

			r, err := Open(p)
			require.NoError(t, err)
			defer r.Close()
			g, err := r.OpenGroup("/entry/data")
			require.NoError(t, err)
			members, err := g.Members()
			require.NoError(t, err)
			assert.Equal(t, []string{"omega"}, members)
		})
	}
}

func TestLegacySymbolTableSizes(t *testing.T) {
	// 40 links span several symbol table nodes; 130 exceed a single
	// B-tree node and fall back to link messages.
	for _, n := range []int{1, 40, 130} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			f, p := newTestFile(t, "legacy.h5", WithLegacyFormat())
			g, err := f.Root().CreateGroup("many")
			require.NoError(t, err)
			want := make([]string, n)
			for i := 0; i < n; i++ {
				want[i] = fmt.Sprintf("g%03d", i)
				_, err := g.CreateGroup(want[i])
				require.NoError(t, err)
			}
			require.NoError(t, f.Close())

			r, err := Open(p)
			require.NoError(t, err)
			defer r.Close()
			g, err = r.OpenGroup("many")
			require.NoError(t, err)
			members, err := g.Members()
			require.NoError(t, err)
			assert.Equal(t, want, members)
			_, err = g.OpenGroup(want[n-1])
			require.NoError(t, err)
		})
	}
}

func TestGroupSetAttrReplaces(t *testing.T) {
	for _, tc := range formats {
		t.Run(tc.name, func(t *testing.T) {
			f, _ := newTestFile(t, "attrs.h5", tc.opts...)
			g, err := f.Root().CreateGroup("entry")
			require.NoError(t, err)
			_, err = g.CreateGroup("data")
			require.NoError(t, err)

			require.NoError(t, g.SetAttr("NX_class", "NXentry"))
			require.NoError(t, g.SetAttr("count", []int32{1, 2}))
			require.NoError(t, g.SetAttr("NX_class", "NXsubentry"))

			attrs, err := g.Attrs()
			require.NoError(t, err)
			assert.Len(t, attrs, 2)
			a, err := g.Attr("NX_class")
			require.NoError(t, err)
			s, err := a.String()
			require.NoError(t, err)
			assert.Equal(t, "NXsubentry", s)

			c, err := g.Attr("count")
			require.NoError(t, err)
			v, err := c.Value()
			require.NoError(t, err)
			assert.Equal(t, []int64{1, 2}, v)
			assert.True(t, g.Has("data"))
		})
	}
}

func TestWalk(t *testing.T) {
	f, _ := newTestFile(t, "walk.h5")
	data, err := f.Root().RequireGroup("entry/data")
	require.NoError(t, err)
	_, err = CreateNumeric(data, "data", []uint64{1}, []int8{1})
	require.NoError(t, err)
	require.NoError(t, data.CreateHardLink("alias", "/entry/data/data"))
	require.NoError(t, data.CreateExternalLink("ext", "other.h5", "/x"))
	_, err = f.Root().RequireGroup("skip/me")
	require.NoError(t, err)

	var seen []string
	err = Walk(f.Root(), func(p string, obj any, err error) error {
		require.NoError(t, err)
		seen = append(seen, p)
		if g, ok := obj.(*Group); ok && g.Name() == "skip" {
			return SkipGroup
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/", "/entry", "/entry/data", "/entry/data/alias", "/entry/data/ext", "/skip"}, seen)
}
