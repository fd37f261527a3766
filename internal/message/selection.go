package message

import (
	"fmt"

	"github.com/robert-malhotra/nxsplit/internal/binary"
)

// SelectionKind is the serialized dataspace selection type.
type SelectionKind uint32

const (
	SelectNone      SelectionKind = 0
	SelectPoints    SelectionKind = 1
	SelectHyperslab SelectionKind = 2
	SelectAll       SelectionKind = 3
)

const hyperslabRegular = 0x01

// Hyperslab is a regular hyperslab: Count blocks of Block elements, Stride
// apart, from Start. Count and Block may be Unlimited.
type Hyperslab struct {
	Start  []uint64
	Stride []uint64
	Count  []uint64
	Block  []uint64
}

// Box is an n-dimensional rectangle.
type Box struct {
	Start []uint64
	Size  []uint64
}

// NumElements returns the number of elements in the box.
func (b Box) NumElements() uint64 {
	n := uint64(1)
	for _, s := range b.Size {
		n *= s
	}
	return n
}

// Selection is a serialized dataspace selection as stored in virtual
// dataset mappings.
type Selection struct {
	Kind   SelectionKind
	Rank   int
	Slab   *Hyperslab  // regular hyperslab
	Blocks []Box       // irregular hyperslab
	Points [][]uint64 // point selection
}

// NewAllSelection selects the whole dataspace.
func NewAllSelection() *Selection {
	return &Selection{Kind: SelectAll}
}

// NewBoxSelection selects a single rectangle.
func NewBoxSelection(start, size []uint64) *Selection {
	rank := len(start)
	s := &Hyperslab{
		Start:  append([]uint64(nil), start...),
		Stride: make([]uint64, rank),
		Count:  make([]uint64, rank),
		Block:  append([]uint64(nil), size...),
	}
	for i := range s.Stride {
		s.Stride[i] = 1
		s.Count[i] = 1
	}
	return &Selection{Kind: SelectHyperslab, Rank: rank, Slab: s}
}

// Boxes expands the selection into rectangles in row-major order, clamping
// unlimited counts and blocks to extent.
func (s *Selection) Boxes(extent []uint64) []Box {
	switch s.Kind {
	case SelectAll:
		return []Box{{Start: make([]uint64, len(extent)), Size: append([]uint64(nil), extent...)}}
	case SelectPoints:
		out := make([]Box, len(s.Points))
		for i, p := range s.Points {
			size := make([]uint64, len(p))
			for j := range size {
				size[j] = 1
			}
			out[i] = Box{Start: p, Size: size}
		}
		return out
	case SelectHyperslab:
		if s.Slab == nil {
			return s.Blocks
		}
		return s.Slab.boxes(extent)
	}
	return nil
}

// NumElements returns the number of selected elements within extent.
func (s *Selection) NumElements(extent []uint64) uint64 {
	var n uint64
	for _, b := range s.Boxes(extent) {
		n += b.NumElements()
	}
	return n
}

func (h *Hyperslab) boxes(extent []uint64) []Box {
	rank := len(h.Start)
	count := make([]uint64, rank)
	block := make([]uint64, rank)
	for i := 0; i < rank; i++ {
		count[i], block[i] = h.Count[i], h.Block[i]
		var ext uint64
		if i < len(extent) {
			ext = extent[i]
		}
		if block[i] == Unlimited {
			block[i] = 0
			if ext > h.Start[i] {
				block[i] = ext - h.Start[i]
			}
		}
		if count[i] == Unlimited {
			count[i] = 0
			if ext > h.Start[i] && h.Stride[i] > 0 {
				count[i] = (ext - h.Start[i] - block[i] + h.Stride[i]) / h.Stride[i]
			}
		}
		if count[i] == 0 || block[i] == 0 {
			return nil
		}
	}

	var out []Box
	idx := make([]uint64, rank)
	for {
		b := Box{Start: make([]uint64, rank), Size: append([]uint64(nil), block...)}
		for i := range idx {
			b.Start[i] = h.Start[i] + idx[i]*h.Stride[i]
		}
		out = append(out, b)

		i := rank - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < count[i] {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return out
		}
	}
}

// Encode serializes the selection. Hyperslabs use version 2 for regular
// selections and version 1 for block lists.
func (s *Selection) Encode(b *binary.Buffer) {
	b.PutUint32(uint32(s.Kind))
	switch s.Kind {
	case SelectAll, SelectNone:
		b.PutUint32(1)
		b.PutUint32(0)
		b.PutUint32(0)

	case SelectHyperslab:
		if s.Slab != nil {
			b.PutUint32(2)
			b.PutUint8(hyperslabRegular)
			b.PutUint32(uint32(4 + s.Rank*32))
			b.PutUint32(uint32(s.Rank))
			for i := 0; i < s.Rank; i++ {
				b.PutUint64(s.Slab.Start[i])
				b.PutUint64(s.Slab.Stride[i])
				b.PutUint64(s.Slab.Count[i])
				b.PutUint64(s.Slab.Block[i])
			}
			return
		}
		b.PutUint32(1)
		b.PutUint32(0)
		b.PutUint32(uint32(8 + len(s.Blocks)*s.Rank*8))
		b.PutUint32(uint32(s.Rank))
		b.PutUint32(uint32(len(s.Blocks)))
		for _, blk := range s.Blocks {
			for _, v := range blk.Start {
				b.PutUint32(uint32(v))
			}
			for i, v := range blk.Start {
				b.PutUint32(uint32(v + blk.Size[i] - 1))
			}
		}

	case SelectPoints:
		b.PutUint32(1)
		b.PutUint32(0)
		b.PutUint32(uint32(8 + len(s.Points)*s.Rank*4))
		b.PutUint32(uint32(s.Rank))
		b.PutUint32(uint32(len(s.Points)))
		for _, p := range s.Points {
			for _, v := range p {
				b.PutUint32(uint32(v))
			}
		}
	}
}

// DecodeSelection reads a serialized selection.
func DecodeSelection(r *binary.Reader) (*Selection, error) {
	kind, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	version, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	s := &Selection{Kind: SelectionKind(kind)}

	switch s.Kind {
	case SelectAll, SelectNone:
		r.Skip(8)
		return s, nil
	case SelectHyperslab:
		switch version {
		case 1:
			return s, s.decodeBlocksV1(r)
		case 2:
			return s, s.decodeHyperslabV2(r)
		case 3:
			return s, s.decodeHyperslabV3(r)
		}
	case SelectPoints:
		switch version {
		case 1:
			return s, s.decodePointsV1(r)
		case 2:
			return s, s.decodePointsV2(r)
		}
	default:
		return nil, fmt.Errorf("unknown selection type %d", kind)
	}
	return nil, fmt.Errorf("unsupported %s selection version %d", s.Kind, version)
}

func (k SelectionKind) String() string {
	switch k {
	case SelectNone:
		return "none"
	case SelectPoints:
		return "point"
	case SelectHyperslab:
		return "hyperslab"
	case SelectAll:
		return "all"
	}
	return fmt.Sprintf("selection(%d)", uint32(k))
}

func readN(r *binary.Reader, n, size int) ([]uint64, error) {
	out := make([]uint64, n)
	for i := range out {
		v, err := r.ReadUintN(size)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// widen maps an all-ones value of a narrow encoding to Unlimited.
func widen(v uint64, size int) uint64 {
	if size < 8 && v == 1<<(8*size)-1 {
		return Unlimited
	}
	return v
}

func (s *Selection) decodeBlocksV1(r *binary.Reader) error {
	r.Skip(8) // reserved, length
	rank, err := r.ReadUint32()
	if err != nil {
		return err
	}
	n, err := r.ReadUint32()
	if err != nil {
		return err
	}
	s.Rank = int(rank)
	return s.readBlocks(r, int(n), 4)
}

func (s *Selection) readBlocks(r *binary.Reader, n, size int) error {
	s.Blocks = make([]Box, n)
	for i := range s.Blocks {
		start, err := readN(r, s.Rank, size)
		if err != nil {
			return err
		}
		end, err := readN(r, s.Rank, size)
		if err != nil {
			return err
		}
		sz := make([]uint64, s.Rank)
		for j := range sz {
			sz[j] = end[j] - start[j] + 1
		}
		s.Blocks[i] = Box{Start: start, Size: sz}
	}
	return nil
}

func (s *Selection) readRegular(r *binary.Reader, size int) error {
	h := &Hyperslab{
		Start:  make([]uint64, s.Rank),
		Stride: make([]uint64, s.Rank),
		Count:  make([]uint64, s.Rank),
		Block:  make([]uint64, s.Rank),
	}
	for i := 0; i < s.Rank; i++ {
		v, err := readN(r, 4, size)
		if err != nil {
			return err
		}
		h.Start[i], h.Stride[i] = v[0], v[1]
		h.Count[i], h.Block[i] = widen(v[2], size), widen(v[3], size)
	}
	s.Slab = h
	return nil
}

func (s *Selection) decodeHyperslabV2(r *binary.Reader) error {
	flags, err := r.ReadUint8()
	if err != nil {
		return err
	}
	r.Skip(4) // length
	rank, err := r.ReadUint32()
	if err != nil {
		return err
	}
	s.Rank = int(rank)
	if flags&hyperslabRegular == 0 {
		return fmt.Errorf("irregular version 2 hyperslab")
	}
	return s.readRegular(r, 8)
}

func (s *Selection) decodeHyperslabV3(r *binary.Reader) error {
	flags, err := r.ReadUint8()
	if err != nil {
		return err
	}
	size, err := r.ReadUint8()
	if err != nil {
		return err
	}
	rank, err := r.ReadUint32()
	if err != nil {
		return err
	}
	s.Rank = int(rank)
	if flags&hyperslabRegular != 0 {
		return s.readRegular(r, int(size))
	}
	n, err := r.ReadUintN(int(size))
	if err != nil {
		return err
	}
	return s.readBlocks(r, int(n), int(size))
}

func (s *Selection) decodePointsV1(r *binary.Reader) error {
	r.Skip(8)
	rank, err := r.ReadUint32()
	if err != nil {
		return err
	}
	n, err := r.ReadUint32()
	if err != nil {
		return err
	}
	s.Rank = int(rank)
	return s.readPoints(r, int(n), 4)
}

func (s *Selection) decodePointsV2(r *binary.Reader) error {
	size, err := r.ReadUint8()
	if err != nil {
		return err
	}
	rank, err := r.ReadUint32()
	if err != nil {
		return err
	}
	s.Rank = int(rank)
	n, err := r.ReadUintN(int(size))
	if err != nil {
		return err
	}
	return s.readPoints(r, int(n), int(size))
}

func (s *Selection) readPoints(r *binary.Reader, n, size int) error {
	s.Points = make([][]uint64, n)
	for i := range s.Points {
		p, err := readN(r, s.Rank, size)
		if err != nil {
			return err
		}
		s.Points[i] = p
	}
	return nil
}
