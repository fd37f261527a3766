package split

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/robert-malhotra/nxsplit/hdf5"
)

// MaterializeOptions configures Materialize.
type MaterializeOptions struct {
	Layout    Layout
	FillValue int64
}

// Materialize edits out, a copy of the master file, into the output of
// partition p: the auxiliary arrays are cut to the partition's frames, the
// block links are removed, and a virtual dataset assembling the partition
// from the original block files is installed. Running it again on the same
// output gives the same result.
func Materialize(p Partition, table *BlockTable, aux []*AuxArray, out *hdf5.File, opts MaterializeOptions) error {
	fail := func(op string, err error) error {
		return &MaterializationError{Partition: p.Index, Output: out.Path(), Op: op, Err: err}
	}
	layout := opts.Layout

	// Check every referenced block before the first edit.
	for _, s := range p.Segments {
		if s.Block < 0 || s.Block >= len(table.Blocks) {
			return fail("locate block", fmt.Errorf("block %d not in table of %d", s.Block, len(table.Blocks)))
		}
		b := table.Blocks[s.Block]
		if err := table.compatible(b); err != nil {
			return fail("check block", err)
		}
		if s.End > b.Frames {
			return fail("locate block", fmt.Errorf("block %s has %d frames, segment ends at %d", b.Name, b.Frames, s.End))
		}
		if err := sourceExists(out, b); err != nil {
			return fail("locate block", err)
		}
	}

	frames := uint64(p.Len())
	for _, a := range aux {
		ds, err := out.OpenDataset(a.Path)
		if err != nil {
			return fail("open "+a.Path, err)
		}
		if err := ds.Rewrite(a.Slice(p.Start, p.End), []uint64{frames}); err != nil {
			return fail("resize "+a.Path, err)
		}
	}

	g, err := out.OpenGroup(layout.DataGroup)
	if err != nil {
		return fail("open "+layout.DataGroup, err)
	}
	if _, err := g.RemoveLinks(func(name string) bool {
		return strings.HasPrefix(name, layout.BlockPrefix) || name == layout.DataName
	}); err != nil {
		return fail("remove block links", err)
	}

	fill, err := table.Datatype.EncodeInt(opts.FillValue)
	if err != nil {
		return fail("encode fill value", err)
	}
	vl := &hdf5.VirtualLayout{
		Datatype: table.Datatype,
		Dims:     append([]uint64{frames}, table.FrameShape...),
		Fill:     fill,
	}
	rank := len(vl.Dims)
	var cursor uint64
	for _, s := range p.Segments {
		b := table.Blocks[s.Block]
		src := make([]uint64, rank)
		dst := make([]uint64, rank)
		src[0], dst[0] = uint64(s.Start), cursor
		count := append([]uint64{uint64(s.Len())}, table.FrameShape...)
		vl.Sources = append(vl.Sources, hdf5.VirtualSource{
			File:     b.File,
			Dataset:  b.Dataset,
			SrcStart: src,
			DstStart: dst,
			Count:    count,
		})
		cursor += uint64(s.Len())
	}
	if _, err := g.CreateVirtualDataset(layout.DataName, vl); err != nil {
		return fail("install "+layout.DataName, err)
	}
	return nil
}

// sourceExists checks that the file of a block can be found from the
// output's directory, where the virtual dataset resolves it.
func sourceExists(out *hdf5.File, b Block) error {
	p := b.File
	if !filepath.IsAbs(p) {
		p = filepath.Join(filepath.Dir(out.Path()), p)
	}
	if _, err := os.Stat(p); err != nil {
		return fmt.Errorf("block %s: %w", b.Name, err)
	}
	return nil
}
