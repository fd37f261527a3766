package hdf5

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"

	"github.com/robert-malhotra/nxsplit/internal/heap"
	"github.com/robert-malhotra/nxsplit/internal/layout"
	"github.com/robert-malhotra/nxsplit/internal/message"
	"github.com/robert-malhotra/nxsplit/internal/object"
)

// SameFile is the source file name of a mapping into the file holding the
// virtual dataset.
const SameFile = message.SameFile

// VirtualSource maps a box of a source dataset onto a box of the same
// shape in a virtual dataset.
type VirtualSource struct {
	File     string // relative names resolve against the virtual dataset's directory
	Dataset  string
	SrcStart []uint64
	DstStart []uint64
	Count    []uint64
}

// VirtualLayout describes a virtual dataset to create.
type VirtualLayout struct {
	Datatype *Datatype
	Dims     []uint64
	MaxDims  []uint64 // nil when equal to Dims
	Fill     []byte   // one encoded element, nil for zeros
	Sources  []VirtualSource
}

// CreateVirtualDataset creates a dataset whose elements are read from the
// source regions of vl. Elements no source covers read as the fill value.
//
// Example:
//
//	vl := &hdf5.VirtualLayout{
//	    Datatype: hdf5.IntType(4, false),
//	    Dims:     []uint64{10, 512, 512},
//	    Sources: []hdf5.VirtualSource{{
//	        File: "scan_data_000001.h5", Dataset: "/entry/data/data",
//	        SrcStart: []uint64{0, 0, 0}, DstStart: []uint64{0, 0, 0},
//	        Count: []uint64{10, 512, 512},
//	    }},
//	}
//	ds, err := g.CreateVirtualDataset("data", vl)
func (g *Group) CreateVirtualDataset(name string, vl *VirtualLayout) (*Dataset, error) {
	if !validName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	if err := g.writable(); err != nil {
		return nil, err
	}
	addr, err := g.file.writeVirtual(vl)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", JoinPath(g.path, name), err)
	}
	if err := g.addLink(message.NewHardLink(name, addr)); err != nil {
		return nil, err
	}
	return g.file.openDataset(addr, JoinPath(g.path, name))
}

func (f *File) writeVirtual(vl *VirtualLayout) (uint64, error) {
	cfg := f.cfg
	rank := len(vl.Dims)
	if vl.Datatype == nil || rank == 0 {
		return 0, fmt.Errorf("virtual dataset needs a datatype and a rank of at least 1")
	}
	space := message.NewDataspace(append([]uint64(nil), vl.Dims...), nil)
	if vl.MaxDims != nil {
		if len(vl.MaxDims) != rank {
			return 0, fmt.Errorf("max dims %v do not match rank %d", vl.MaxDims, rank)
		}
		space.MaxDims = append([]uint64(nil), vl.MaxDims...)
	}
	maxDims := space.MaxShape()

	mappings := make([]message.VirtualMapping, len(vl.Sources))
	for i, s := range vl.Sources {
		if len(s.SrcStart) != rank || len(s.DstStart) != rank || len(s.Count) != rank {
			return 0, fmt.Errorf("source %d: selection rank does not match %d", i, rank)
		}
		for d := 0; d < rank; d++ {
			if s.Count[d] == 0 {
				return 0, fmt.Errorf("source %d: empty selection", i)
			}
			if maxDims[d] != Unlimited && s.DstStart[d]+s.Count[d] > maxDims[d] {
				return 0, fmt.Errorf("source %d: selection exceeds dimension %d", i, d)
			}
		}
		if s.File == "" || s.Dataset == "" {
			return 0, fmt.Errorf("source %d: missing file or dataset name", i)
		}
		mappings[i] = message.VirtualMapping{
			SourceFile:    s.File,
			SourceDataset: s.Dataset,
			SourceSelect:  message.NewBoxSelection(s.SrcStart, s.Count),
			VirtualSelect: message.NewBoxSelection(s.DstStart, s.Count),
		}
	}

	var fill *message.FillValue
	if vl.Fill != nil {
		if len(vl.Fill) != vl.Datatype.Size() {
			return 0, fmt.Errorf("fill value of %d bytes for %d byte elements", len(vl.Fill), vl.Datatype.Size())
		}
		fill = message.NewFillValue(vl.Fill)
	} else {
		fill = &message.FillValue{Version: 3, AllocTime: message.AllocTimeIncremental, FillTime: message.FillTimeIfSet}
	}

	blob := message.EncodeVirtualMappings(mappings, cfg)
	collection, err := f.append(heap.EncodeCollection([][]byte{blob}, cfg), "global heap")
	if err != nil {
		return 0, err
	}

	bodies := []object.Body{
		object.BodyOf(space, cfg),
		object.BodyOf(vl.Datatype.msg, cfg),
		object.BodyOf(fill, cfg),
		object.BodyOf(message.NewVirtualLayout(collection, 1), cfg),
	}
	return f.append(object.Encode(f.headerVersion(), bodies, cfg), "dataset header")
}

func (d *Dataset) virtualMappings() ([]message.VirtualMapping, error) {
	lay := d.header.DataLayout()
	if !lay.IsVirtual() {
		return nil, fmt.Errorf("%s: %w: not a virtual dataset", d.path, ErrUnsupported)
	}
	data, err := heap.ReadGlobalObject(d.file.reader, heap.GlobalHeapID{Collection: lay.HeapAddress, Index: lay.HeapIndex})
	if err != nil {
		return nil, fmt.Errorf("%s: mapping list: %w", d.path, err)
	}
	return message.DecodeVirtualMappings(data, d.file.cfg)
}

// VirtualSources returns the mappings of a virtual dataset as boxes. Only
// mappings whose selections pair up into boxes of equal shape can be
// listed.
func (d *Dataset) VirtualSources() ([]VirtualSource, error) {
	mappings, err := d.virtualMappings()
	if err != nil {
		return nil, err
	}
	dims := d.Shape()
	var out []VirtualSource
	for i, m := range mappings {
		vboxes := m.VirtualSelect.Boxes(dims)
		var sboxes []message.Box
		if m.SourceSelect.Kind == message.SelectAll {
			for _, b := range vboxes {
				sboxes = append(sboxes, message.Box{Start: make([]uint64, len(b.Size)), Size: b.Size})
			}
		} else {
			sboxes = m.SourceSelect.Boxes(nil)
		}
		if len(vboxes) != len(sboxes) {
			return nil, fmt.Errorf("%s: mapping %d: %w: %d source boxes for %d virtual boxes", d.path, i, ErrUnsupported, len(sboxes), len(vboxes))
		}
		for j := range vboxes {
			if !slices.Equal(vboxes[j].Size, sboxes[j].Size) {
				return nil, fmt.Errorf("%s: mapping %d: %w: box shapes differ", d.path, i, ErrUnsupported)
			}
			out = append(out, VirtualSource{
				File:     m.SourceFile,
				Dataset:  m.SourceDataset,
				SrcStart: sboxes[j].Start,
				DstStart: vboxes[j].Start,
				Count:    vboxes[j].Size,
			})
		}
	}
	return out, nil
}

// readVirtual reads the box [start, start+count) of a virtual dataset.
func (d *Dataset) readVirtual(start, count []uint64) ([]byte, error) {
	dims := d.Shape()
	if len(start) != len(dims) || len(count) != len(dims) {
		return nil, fmt.Errorf("selection rank %d does not match dataset rank %d", len(start), len(dims))
	}
	for i := range dims {
		if start[i]+count[i] > dims[i] {
			return nil, fmt.Errorf("selection [%d,%d) exceeds dimension %d of size %d", start[i], start[i]+count[i], i, dims[i])
		}
	}
	esz := d.ElementSize()
	out := make([]byte, numElements(count)*uint64(esz))
	if len(out) == 0 {
		return out, nil
	}
	if fv := d.FillValue(); fv != nil {
		for i := 0; i < len(out); i += esz {
			copy(out[i:i+esz], fv)
		}
	}

	mappings, err := d.virtualMappings()
	if err != nil {
		return nil, err
	}
	for i, m := range mappings {
		if err := d.readMapping(m, start, count, out); err != nil {
			return nil, fmt.Errorf("mapping %d (%s %s): %w", i, m.SourceFile, m.SourceDataset, err)
		}
	}
	return out, nil
}

// openSource opens the source dataset of a mapping. A missing source file
// or dataset gives nil, and its region reads as the fill value.
func (d *Dataset) openSource(m message.VirtualMapping) (*Dataset, error) {
	f := d.file
	if m.SourceFile != message.SameFile {
		ext, err := f.external(m.SourceFile)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		f = ext
	}
	src, err := f.OpenDataset(m.SourceDataset)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if src.IsVirtual() {
		return nil, fmt.Errorf("%w: source %s is itself virtual", ErrUnsupported, m.SourceDataset)
	}
	if src.ElementSize() != d.ElementSize() {
		return nil, fmt.Errorf("source element size %d differs from %d", src.ElementSize(), d.ElementSize())
	}
	return src, nil
}

// readMapping copies the part of one mapping inside the window
// [start, start+count) into out.
func (d *Dataset) readMapping(m message.VirtualMapping, start, count []uint64, out []byte) error {
	src, err := d.openSource(m)
	if err != nil || src == nil {
		return err
	}
	esz := d.ElementSize()
	vboxes := m.VirtualSelect.Boxes(d.Shape())
	sboxes := m.SourceSelect.Boxes(src.Shape())

	// One box onto one box of the same shape: read only the part in the window.
	if len(vboxes) == 1 && len(sboxes) == 1 && slices.Equal(vboxes[0].Size, sboxes[0].Size) {
		vb, sb := vboxes[0], sboxes[0]
		rank := len(start)
		lo := make([]uint64, rank)
		cnt := make([]uint64, rank)
		srcStart := make([]uint64, rank)
		for i := 0; i < rank; i++ {
			a := max(vb.Start[i], start[i])
			b := min(vb.Start[i]+vb.Size[i], start[i]+count[i])
			if a >= b {
				return nil
			}
			lo[i], cnt[i] = a, b-a
			srcStart[i] = sb.Start[i] + a - vb.Start[i]
		}
		data, err := src.ReadSlice(srcStart, cnt)
		if err != nil {
			return err
		}
		return layout.CopyBox(out, count, start, data, cnt, lo, esz)
	}
	return pairRuns(src, vboxes, sboxes, start, count, out, esz)
}

// run is a stretch of elements along the last axis.
type run struct {
	pos []uint64
	n   uint64
}

// boxRuns lists the runs of boxes in row-major order.
func boxRuns(boxes []message.Box) []run {
	var out []run
	for _, b := range boxes {
		rank := len(b.Start)
		if rank == 0 || b.NumElements() == 0 {
			continue
		}
		pos := append([]uint64(nil), b.Start...)
		for {
			out = append(out, run{pos: append([]uint64(nil), pos...), n: b.Size[rank-1]})
			d := rank - 2
			for ; d >= 0; d-- {
				pos[d]++
				if pos[d] < b.Start[d]+b.Size[d] {
					break
				}
				pos[d] = b.Start[d]
			}
			if d < 0 {
				break
			}
		}
	}
	slices.SortFunc(out, func(a, b run) int { return slices.Compare(a.pos, b.pos) })
	return out
}

// pairRuns copies elements of the source selection to the virtual
// selection, pairing them in row-major order of each selection.
func pairRuns(src *Dataset, vboxes, sboxes []message.Box, start, count []uint64, out []byte, esz int) error {
	vruns, sruns := boxRuns(vboxes), boxRuns(sboxes)
	if len(sruns) == 0 || len(vruns) == 0 {
		return nil
	}

	// Read the bounding box of the source selection once.
	rank := len(sruns[0].pos)
	lo := append([]uint64(nil), sruns[0].pos...)
	hi := make([]uint64, rank)
	for _, r := range sruns {
		for i := 0; i < rank; i++ {
			end := r.pos[i] + 1
			if i == rank-1 {
				end = r.pos[i] + r.n
			}
			lo[i], hi[i] = min(lo[i], r.pos[i]), max(hi[i], end)
		}
	}
	ext := make([]uint64, rank)
	for i := range ext {
		ext[i] = hi[i] - lo[i]
	}
	data, err := src.ReadSlice(lo, ext)
	if err != nil {
		return err
	}

	e := uint64(esz)
	var si, vi, so, vo uint64
	for si < uint64(len(sruns)) && vi < uint64(len(vruns)) {
		s, v := sruns[si], vruns[vi]
		n := min(s.n-so, v.n-vo)

		// Clip the virtual stretch to the window.
		vpos := append([]uint64(nil), v.pos...)
		vpos[len(vpos)-1] += vo
		a, b, ok := clipRun(vpos, n, start, count)
		if ok {
			spos := append([]uint64(nil), s.pos...)
			spos[rank-1] += so + (a - vpos[len(vpos)-1])
			from := offsetIn(spos, lo, ext) * e
			vpos[len(vpos)-1] = a
			to := offsetIn(vpos, start, count) * e
			copy(out[to:to+(b-a)*e], data[from:from+(b-a)*e])
		}

		so += n
		vo += n
		if so == s.n {
			si, so = si+1, 0
		}
		if vo == v.n {
			vi, vo = vi+1, 0
		}
	}
	return nil
}

// clipRun intersects the run of n elements at pos with the window and
// returns the bounds of the intersection on the last axis.
func clipRun(pos []uint64, n uint64, start, count []uint64) (uint64, uint64, bool) {
	last := len(pos) - 1
	for i := 0; i < last; i++ {
		if pos[i] < start[i] || pos[i] >= start[i]+count[i] {
			return 0, 0, false
		}
	}
	a := max(pos[last], start[last])
	b := min(pos[last]+n, start[last]+count[last])
	return a, b, a < b
}

// offsetIn returns the row-major element offset of pos in the box.
func offsetIn(pos, boxStart, boxCount []uint64) uint64 {
	var off uint64
	for i := range pos {
		off = off*boxCount[i] + pos[i] - boxStart[i]
	}
	return off
}
