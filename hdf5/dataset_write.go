package hdf5

import (
	"fmt"

	"github.com/robert-malhotra/nxsplit/internal/btree"
	"github.com/robert-malhotra/nxsplit/internal/filter"
	"github.com/robert-malhotra/nxsplit/internal/layout"
	"github.com/robert-malhotra/nxsplit/internal/message"
	"github.com/robert-malhotra/nxsplit/internal/object"
)

// maxCompactSize bounds data stored inside an object header.
const maxCompactSize = 64000

// chunkPlan describes how chunked data is written.
type chunkPlan struct {
	shape    []uint64
	index    message.ChunkIndexType
	pipeline *message.FilterPipeline
	fill     []byte
}

func numElements(dims []uint64) uint64 {
	n := uint64(1)
	for _, d := range dims {
		n *= d
	}
	return n
}

// writeDataset writes the data and header of a new dataset and returns the
// header address.
func (f *File) writeDataset(dt *message.Datatype, dims []uint64, data []byte, o *datasetOptions) (uint64, error) {
	cfg := f.cfg
	esz := int(dt.Size)
	if want := numElements(dims) * uint64(esz); uint64(len(data)) != want {
		return 0, fmt.Errorf("data holds %d bytes, shape %v needs %d", len(data), dims, want)
	}

	space := message.NewScalarDataspace()
	if len(dims) > 0 {
		space = message.NewDataspace(append([]uint64(nil), dims...), nil)
	}
	if o.maxDims != nil {
		if len(o.maxDims) != len(dims) {
			return 0, fmt.Errorf("max dims %v do not match rank %d", o.maxDims, len(dims))
		}
		for i, m := range o.maxDims {
			if m == Unlimited && o.chunks == nil {
				return 0, fmt.Errorf("unlimited dimension %d requires chunking", i)
			}
			if m < dims[i] {
				return 0, fmt.Errorf("dimension %d of %d exceeds maximum %d", i, dims[i], m)
			}
		}
		space.MaxDims = append([]uint64(nil), o.maxDims...)
	}

	fill := &message.FillValue{Version: 3, AllocTime: message.AllocTimeEarly, FillTime: message.FillTimeIfSet}
	if o.fill != nil {
		if len(o.fill) != esz {
			return 0, fmt.Errorf("fill value of %d bytes for %d byte elements", len(o.fill), esz)
		}
		fill = message.NewFillValue(o.fill)
	}

	var pipeline *message.FilterPipeline
	if len(o.filters) > 0 {
		if o.chunks == nil {
			return 0, fmt.Errorf("filters require chunking")
		}
		pipeline = &message.FilterPipeline{Version: 2, Filters: o.filters}
	}

	var (
		lay *message.DataLayout
		err error
	)
	switch {
	case o.chunks != nil:
		if o.chunkIndex == message.ChunkIndexFixedArray {
			for _, m := range space.MaxShape() {
				if m == Unlimited {
					return 0, fmt.Errorf("%w: fixed array index with unlimited dimensions", ErrUnsupported)
				}
			}
		}
		lay, err = f.writeChunks(data, dims, space.MaxShape(), esz, chunkPlan{
			shape:    o.chunks,
			index:    o.chunkIndex,
			pipeline: pipeline,
			fill:     o.fill,
		})
	case o.compact:
		if len(data) > maxCompactSize {
			return 0, fmt.Errorf("%d bytes too large for compact storage", len(data))
		}
		lay = message.NewCompactLayout(data)
	default:
		lay, err = f.writeContiguous(data)
	}
	if err != nil {
		return 0, err
	}

	bodies := []object.Body{
		object.BodyOf(space, cfg),
		object.BodyOf(dt, cfg),
		object.BodyOf(fill, cfg),
		object.BodyOf(lay, cfg),
	}
	if pipeline != nil {
		bodies = append(bodies, object.BodyOf(pipeline, cfg))
	}
	for _, a := range o.attributes {
		attr, err := encodeAttribute(a.name, a.value)
		if err != nil {
			return 0, err
		}
		bodies = append(bodies, object.BodyOf(attr, cfg))
	}
	return f.append(object.Encode(f.headerVersion(), bodies, cfg), "dataset header")
}

func (f *File) writeContiguous(data []byte) (*message.DataLayout, error) {
	if len(data) == 0 {
		return message.NewContiguousLayout(f.cfg.Undefined(), 0), nil
	}
	addr, err := f.append(data, "contiguous data")
	if err != nil {
		return nil, err
	}
	return message.NewContiguousLayout(addr, uint64(len(data))), nil
}

// writeChunks stores data of extent dims in chunks and writes their index.
func (f *File) writeChunks(data []byte, dims, maxDims []uint64, esz int, plan chunkPlan) (*message.DataLayout, error) {
	cfg := f.cfg
	if len(plan.shape) != len(dims) {
		return nil, fmt.Errorf("chunk shape %v does not match rank %d", plan.shape, len(dims))
	}
	for i, c := range plan.shape {
		if c == 0 || c > 0xFFFFFFFF {
			return nil, fmt.Errorf("invalid chunk dimension %d: %d", i, c)
		}
	}
	chunkBytes := numElements(plan.shape) * uint64(esz)
	if chunkBytes > 0xFFFFFFFF {
		return nil, fmt.Errorf("chunk of %d bytes exceeds 4 GiB", chunkBytes)
	}

	p, err := filter.NewPipeline(plan.pipeline, esz)
	if err != nil {
		return nil, err
	}
	chunks, err := layout.SplitChunks(data, dims, plan.shape, esz, plan.fill, p)
	if err != nil {
		return nil, err
	}

	lay := message.NewChunkedLayout(plan.shape, uint32(esz), plan.index)
	lay.IndexAddress = cfg.Undefined()
	if len(chunks) == 0 {
		return lay, nil
	}

	entries := make([]btree.ChunkEntry, len(chunks))
	for i, c := range chunks {
		addr, err := f.append(c.Data, "chunk")
		if err != nil {
			return nil, err
		}
		entries[i] = btree.ChunkEntry{Offset: c.Offset, Size: uint64(len(c.Data)), Address: addr}
	}

	switch plan.index {
	case message.ChunkIndexBTreeV1:
		k := f.superblock.ChunkBTreeK()
		if len(entries) > 2*k {
			return nil, fmt.Errorf("%w: %d chunks exceed one B-tree node of %d", ErrUnsupported, len(entries), 2*k)
		}
		node, err := btree.EncodeChunkLeaf(entries, lay.ChunkDims, k, cfg)
		if err != nil {
			return nil, err
		}
		if lay.IndexAddress, err = f.append(node, "chunk B-tree"); err != nil {
			return nil, err
		}

	case message.ChunkIndexFixedArray:
		grid := layout.NewGrid(maxDims, plan.shape)
		var sizeLen int
		if !p.Empty() {
			sizeLen = layout.FilteredSizeLen(chunkBytes)
		}
		probe, _ := layout.EncodeFixedArray(entries, grid, sizeLen, 0, cfg)
		addr, err := f.reserve(len(probe), "fixed array")
		if err != nil {
			return nil, err
		}
		buf, pageBits := layout.EncodeFixedArray(entries, grid, sizeLen, addr, cfg)
		if err := f.writeAt(addr, buf); err != nil {
			return nil, err
		}
		lay.IndexAddress = addr
		lay.PageBits = pageBits

	default:
		return nil, fmt.Errorf("%w: writing chunk index %d", ErrUnsupported, plan.index)
	}
	return lay, nil
}

// Rewrite replaces the contents of the dataset with data of shape dims.
// The rank and datatype are kept, and dims must fit the maximum
// dimensions. Every other message of the header, attributes included, is
// carried over. The filter pipeline is kept when all its filters can be
// encoded and dropped otherwise. Every hard link to the dataset is pointed
// at the new header, so aliases see the new contents.
func (d *Dataset) Rewrite(data []byte, dims []uint64) error {
	f := d.file
	if f.closed {
		return ErrClosed
	}
	if !f.writable {
		return ErrReadOnly
	}
	if d.IsVirtual() {
		return fmt.Errorf("%s: %w: rewriting a virtual dataset", d.path, ErrUnsupported)
	}
	h := d.header
	ds := h.Dataspace()
	if len(dims) != ds.Rank() {
		return fmt.Errorf("%s: rank %d cannot change to %d", d.path, ds.Rank(), len(dims))
	}
	maxDims := ds.MaxShape()
	for i := range dims {
		if maxDims[i] != Unlimited && dims[i] > maxDims[i] {
			return fmt.Errorf("%s: dimension %d of %d exceeds maximum %d", d.path, i, dims[i], maxDims[i])
		}
	}
	esz := d.ElementSize()
	if want := numElements(dims) * uint64(esz); uint64(len(data)) != want {
		return fmt.Errorf("%s: data holds %d bytes, shape %v needs %d", d.path, len(data), dims, want)
	}

	cfg := f.cfg
	space := ds.WithDims(append([]uint64(nil), dims...))
	old := h.DataLayout()
	except := []message.Type{message.TypeDataspace, message.TypeDataLayout, message.TypeFilterPipeline}

	var (
		lay *message.DataLayout
		err error
	)
	if old.Class == message.LayoutChunked {
		fp := h.FilterPipeline()
		if fp != nil && filter.Supported(fp) {
			except = except[:2]
		} else {
			fp = nil
		}
		plan := chunkPlan{shape: old.ChunkShape(), index: message.ChunkIndexBTreeV1, pipeline: fp, fill: d.FillValue()}
		switch {
		case old.ChunkIndex == message.ChunkIndexFixedArray && !hasUnlimited(maxDims):
			plan.index = message.ChunkIndexFixedArray
		case layout.NewGrid(dims, plan.shape).Len() > uint64(2*f.superblock.ChunkBTreeK()):
			plan.shape = make([]uint64, len(dims))
			for i, n := range dims {
				plan.shape[i] = max(n, 1)
			}
		}
		lay, err = f.writeChunks(data, dims, space.MaxShape(), esz, plan)
	} else {
		lay, err = f.writeContiguous(data)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", d.path, err)
	}

	bodies := []object.Body{object.BodyOf(space, cfg)}
	bodies = append(bodies, h.Bodies(except...)...)
	bodies = append(bodies, object.BodyOf(lay, cfg))

	addr, err := f.append(object.Encode(h.Version, bodies, cfg), "dataset header")
	if err != nil {
		return err
	}
	if err := f.relink(d.addr, addr); err != nil {
		return fmt.Errorf("%s: %w", d.path, err)
	}
	f.release(h, "dataset header")

	nh, err := f.header(addr)
	if err != nil {
		return err
	}
	d.addr, d.header = addr, nh
	return nil
}

func hasUnlimited(dims []uint64) bool {
	for _, d := range dims {
		if d == Unlimited {
			return true
		}
	}
	return false
}
