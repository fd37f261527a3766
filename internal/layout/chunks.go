package layout

import (
	"fmt"

	"github.com/robert-malhotra/nxsplit/internal/binary"
	"github.com/robert-malhotra/nxsplit/internal/btree"
	"github.com/robert-malhotra/nxsplit/internal/filter"
	"github.com/robert-malhotra/nxsplit/internal/message"
)

// ChunkIndex reads the chunk index of a chunked dataset. Chunks that were
// never written are not listed.
func ChunkIndex(r *binary.Reader, s Storage) (*btree.ChunkIndex, error) {
	l := s.Layout
	shape := l.ChunkShape()
	if len(shape) != len(s.Dims) {
		return nil, fmt.Errorf("chunk rank %d does not match dataset rank %d", len(shape), len(s.Dims))
	}
	for d, c := range shape {
		if c == 0 {
			return nil, fmt.Errorf("chunk dimension %d is zero", d)
		}
	}
	if r.IsUndefinedOffset(l.IndexAddress) {
		return &btree.ChunkIndex{}, nil
	}

	switch l.ChunkIndex {
	case message.ChunkIndexBTreeV1:
		return btree.ReadChunkIndexV1(r, l.IndexAddress, len(shape))
	case message.ChunkIndexBTreeV2:
		return btree.ReadChunkIndexV2(r, l.IndexAddress, shape)
	case message.ChunkIndexSingleChunk:
		e := btree.ChunkEntry{Offset: make([]uint64, len(shape)), Address: l.IndexAddress}
		if l.ChunkFlags&message.ChunkSingleIndexFiltered != 0 {
			e.Size = l.FilteredChunkSize
			e.FilterMask = l.FilterMask
		}
		return &btree.ChunkIndex{Entries: []btree.ChunkEntry{e}}, nil
	case message.ChunkIndexImplicit:
		return implicitIndex(s, shape), nil
	case message.ChunkIndexFixedArray:
		return readFixedArray(r, l.IndexAddress, s, shape)
	case message.ChunkIndexExtensibleArray:
		return readExtensibleArray(r, l.IndexAddress, s, shape)
	}
	return nil, fmt.Errorf("unsupported chunk index type %d", l.ChunkIndex)
}

// Grid describes how a dataset is cut into chunks.
type Grid struct {
	Shape []uint64 // chunk shape
	Count []uint64 // chunks per dimension
	down  []uint64
}

// NewGrid returns the chunk grid over extent. Chunk indexes number chunks
// over the maximum extent, so callers pass max dims where they are fixed.
func NewGrid(extent, shape []uint64) Grid {
	g := Grid{Shape: shape, Count: make([]uint64, len(shape)), down: make([]uint64, len(shape))}
	acc := uint64(1)
	for d := len(shape) - 1; d >= 0; d-- {
		g.Count[d] = (extent[d] + shape[d] - 1) / shape[d]
		g.down[d] = acc
		acc *= g.Count[d]
	}
	return g
}

// Len returns the number of chunks in the grid.
func (g Grid) Len() uint64 {
	n := uint64(1)
	for _, c := range g.Count {
		n *= c
	}
	return n
}

// Offset returns the element origin of the chunk with row-major index i.
func (g Grid) Offset(i uint64) []uint64 {
	off := make([]uint64, len(g.Shape))
	for d := range off {
		off[d] = i / g.down[d] * g.Shape[d]
		i %= g.down[d]
	}
	return off
}

// Index returns the row-major index of the chunk with origin off.
func (g Grid) Index(off []uint64) uint64 {
	var i uint64
	for d := range off {
		i += off[d] / g.Shape[d] * g.down[d]
	}
	return i
}

// indexExtent returns the extent chunk indexes are laid out over: max dims,
// except unlimited dimensions which use the current size.
func indexExtent(s Storage) []uint64 {
	if len(s.MaxDims) != len(s.Dims) {
		return s.Dims
	}
	ext := make([]uint64, len(s.Dims))
	for d := range ext {
		ext[d] = s.MaxDims[d]
		if ext[d] == message.Unlimited || ext[d] < s.Dims[d] {
			ext[d] = s.Dims[d]
		}
	}
	return ext
}

// chunkBytes returns the unfiltered size of one chunk.
func chunkBytes(shape []uint64, esz int) uint64 {
	n := uint64(esz)
	for _, c := range shape {
		n *= c
	}
	return n
}

func implicitIndex(s Storage, shape []uint64) *btree.ChunkIndex {
	g := NewGrid(indexExtent(s), shape)
	size := chunkBytes(shape, s.ElemSize)
	idx := &btree.ChunkIndex{}
	cur := NewGrid(s.Dims, shape)
	for i := uint64(0); i < cur.Len(); i++ {
		off := cur.Offset(i)
		idx.Entries = append(idx.Entries, btree.ChunkEntry{
			Offset:  off,
			Address: s.Layout.IndexAddress + g.Index(off)*size,
		})
	}
	return idx
}

func readChunked(r *binary.Reader, s Storage, start, count []uint64, out []byte) error {
	idx, err := ChunkIndex(r, s)
	if err != nil {
		return err
	}
	pipeline, err := filter.NewPipeline(s.Filters, s.ElemSize)
	if err != nil {
		return err
	}
	shape := s.Layout.ChunkShape()
	full := chunkBytes(shape, s.ElemSize)
	skipEdge := s.Layout.ChunkFlags&message.ChunkDontFilterPartialEdge != 0

	for _, e := range idx.Entries {
		if !overlaps(e.Offset, shape, start, count) {
			continue
		}
		size := e.Size
		if size == 0 {
			size = full
		}
		data, err := r.At(int64(e.Address)).ReadBytes(int(size))
		if err != nil {
			return fmt.Errorf("reading chunk %v: %w", e.Offset, err)
		}
		if !pipeline.Empty() && !(skipEdge && isPartialEdge(e.Offset, shape, s.Dims)) {
			if data, err = pipeline.Decode(data, e.FilterMask); err != nil {
				return fmt.Errorf("chunk %v: %w", e.Offset, err)
			}
		}
		if uint64(len(data)) < full {
			return fmt.Errorf("chunk %v holds %d bytes, want %d", e.Offset, len(data), full)
		}
		if err := CopyBox(out, count, start, data, shape, e.Offset, s.ElemSize); err != nil {
			return err
		}
	}
	return nil
}

func overlaps(off, shape, start, count []uint64) bool {
	for d := range off {
		if off[d] >= start[d]+count[d] || off[d]+shape[d] <= start[d] {
			return false
		}
	}
	return true
}

func isPartialEdge(off, shape, dims []uint64) bool {
	for d := range off {
		if off[d]+shape[d] > dims[d] {
			return true
		}
	}
	return false
}
