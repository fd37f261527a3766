package message

import (
	"fmt"

	"github.com/robert-malhotra/nxsplit/internal/binary"
)

// LayoutClass represents the storage layout class.
type LayoutClass uint8

const (
	LayoutCompact    LayoutClass = 0
	LayoutContiguous LayoutClass = 1
	LayoutChunked    LayoutClass = 2
	LayoutVirtual    LayoutClass = 3
)

func (c LayoutClass) String() string {
	switch c {
	case LayoutCompact:
		return "compact"
	case LayoutContiguous:
		return "contiguous"
	case LayoutChunked:
		return "chunked"
	case LayoutVirtual:
		return "virtual"
	}
	return fmt.Sprintf("layout(%d)", uint8(c))
}

// ChunkIndexType identifies the chunk index of a version 4 chunked layout.
// Layouts before version 4 always use a version 1 B-tree.
type ChunkIndexType uint8

const (
	ChunkIndexBTreeV1         ChunkIndexType = 0 // implied by layout versions 1-3
	ChunkIndexSingleChunk     ChunkIndexType = 1
	ChunkIndexImplicit        ChunkIndexType = 2
	ChunkIndexFixedArray      ChunkIndexType = 3
	ChunkIndexExtensibleArray ChunkIndexType = 4
	ChunkIndexBTreeV2         ChunkIndexType = 5
)

// Chunked layout flags (version 4).
const (
	ChunkDontFilterPartialEdge = 0x01
	ChunkSingleIndexFiltered   = 0x02
)

// DataLayout represents a data layout message (type 0x0008).
type DataLayout struct {
	Version uint8
	Class   LayoutClass

	// Compact
	CompactData []byte

	// Contiguous
	Address uint64
	Size    uint64 // not stored by versions 1-2

	// Chunked. ChunkDims has one more entry than the dataspace rank; the
	// last one is the element size in bytes.
	ChunkDims    []uint64
	ChunkFlags   uint8
	ChunkIndex   ChunkIndexType
	IndexAddress uint64

	// Single chunk index with filters.
	FilteredChunkSize uint64
	FilterMask        uint32

	// Fixed and extensible array parameters.
	PageBits      uint8
	MaxBits       uint8
	IndexElements uint8
	MinPointers   uint8
	MinElements   uint8

	// Version 2 B-tree parameters.
	NodeSize     uint32
	SplitPercent uint8
	MergePercent uint8

	// Virtual: global heap ID of the mapping list.
	HeapAddress uint64
	HeapIndex   uint32
}

func (m *DataLayout) Type() Type { return TypeDataLayout }

// IsVirtual reports whether this is a virtual dataset layout.
func (m *DataLayout) IsVirtual() bool { return m.Class == LayoutVirtual }

// ChunkShape returns the chunk dimensions without the element size entry.
func (m *DataLayout) ChunkShape() []uint64 {
	if len(m.ChunkDims) == 0 {
		return nil
	}
	return m.ChunkDims[:len(m.ChunkDims)-1]
}

func parseDataLayout(data []byte, cfg binary.Config) (*DataLayout, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("data layout message too short")
	}
	l := &DataLayout{Version: data[0]}
	r := binary.NewBytesReader(data, cfg)
	r.Skip(1)

	var err error
	switch l.Version {
	case 1, 2:
		err = l.parseV1V2(r)
	case 3, 4:
		err = l.parseV3V4(r)
	default:
		return nil, fmt.Errorf("unsupported data layout version %d", l.Version)
	}
	if err != nil {
		return nil, fmt.Errorf("data layout v%d: %w", l.Version, err)
	}
	return l, nil
}

/*
Versions 1 and 2:
version, dimensionality, class, reserved(5), [address], dims (4 bytes each),
[compact size(4), compact data]
*/
func (l *DataLayout) parseV1V2(r *binary.Reader) error {
	ndims, err := r.ReadUint8()
	if err != nil {
		return err
	}
	class, err := r.ReadUint8()
	if err != nil {
		return err
	}
	l.Class = LayoutClass(class)
	r.Skip(5)

	if l.Class == LayoutContiguous || l.Class == LayoutChunked {
		addr, err := r.ReadOffset()
		if err != nil {
			return err
		}
		if l.Class == LayoutContiguous {
			l.Address = addr
		} else {
			l.IndexAddress = addr
		}
	}

	dims := make([]uint64, ndims)
	for i := range dims {
		v, err := r.ReadUint32()
		if err != nil {
			return err
		}
		dims[i] = uint64(v)
	}
	switch l.Class {
	case LayoutChunked:
		l.ChunkDims = dims
	case LayoutCompact:
		size, err := r.ReadUint32()
		if err != nil {
			return err
		}
		if l.CompactData, err = r.ReadBytes(int(size)); err != nil {
			return err
		}
	}
	return nil
}

func (l *DataLayout) parseV3V4(r *binary.Reader) error {
	class, err := r.ReadUint8()
	if err != nil {
		return err
	}
	l.Class = LayoutClass(class)

	switch l.Class {
	case LayoutCompact:
		size, err := r.ReadUint16()
		if err != nil {
			return err
		}
		l.CompactData, err = r.ReadBytes(int(size))
		return err

	case LayoutContiguous:
		if l.Address, err = r.ReadOffset(); err != nil {
			return err
		}
		l.Size, err = r.ReadLength()
		return err

	case LayoutChunked:
		if l.Version == 3 {
			return l.parseChunkedV3(r)
		}
		return l.parseChunkedV4(r)

	case LayoutVirtual:
		if l.Version < 4 {
			return fmt.Errorf("virtual layout requires version 4")
		}
		if l.HeapAddress, err = r.ReadOffset(); err != nil {
			return err
		}
		l.HeapIndex, err = r.ReadUint32()
		return err
	}
	return fmt.Errorf("unknown layout class %d", class)
}

// version 3: dimensionality, address, dims (4 bytes each)
func (l *DataLayout) parseChunkedV3(r *binary.Reader) error {
	ndims, err := r.ReadUint8()
	if err != nil {
		return err
	}
	if l.IndexAddress, err = r.ReadOffset(); err != nil {
		return err
	}
	l.ChunkDims = make([]uint64, ndims)
	for i := range l.ChunkDims {
		v, err := r.ReadUint32()
		if err != nil {
			return err
		}
		l.ChunkDims[i] = uint64(v)
	}
	l.ChunkIndex = ChunkIndexBTreeV1
	return nil
}

// version 4: flags, dimensionality, dim encoded size, dims, index type,
// index parameters, address
func (l *DataLayout) parseChunkedV4(r *binary.Reader) error {
	var err error
	if l.ChunkFlags, err = r.ReadUint8(); err != nil {
		return err
	}
	ndims, err := r.ReadUint8()
	if err != nil {
		return err
	}
	encSize, err := r.ReadUint8()
	if err != nil {
		return err
	}
	l.ChunkDims = make([]uint64, ndims)
	for i := range l.ChunkDims {
		if l.ChunkDims[i], err = r.ReadUintN(int(encSize)); err != nil {
			return err
		}
	}
	idx, err := r.ReadUint8()
	if err != nil {
		return err
	}
	l.ChunkIndex = ChunkIndexType(idx)

	params := func(dst ...*uint8) error {
		for _, p := range dst {
			v, err := r.ReadUint8()
			if err != nil {
				return err
			}
			*p = v
		}
		return nil
	}

	switch l.ChunkIndex {
	case ChunkIndexSingleChunk:
		if l.ChunkFlags&ChunkSingleIndexFiltered != 0 {
			if l.FilteredChunkSize, err = r.ReadLength(); err != nil {
				return err
			}
			if l.FilterMask, err = r.ReadUint32(); err != nil {
				return err
			}
		}
	case ChunkIndexImplicit:
	case ChunkIndexFixedArray:
		err = params(&l.PageBits)
	case ChunkIndexExtensibleArray:
		err = params(&l.MaxBits, &l.IndexElements, &l.MinPointers, &l.MinElements, &l.PageBits)
	case ChunkIndexBTreeV2:
		if l.NodeSize, err = r.ReadUint32(); err != nil {
			return err
		}
		err = params(&l.SplitPercent, &l.MergePercent)
	default:
		return fmt.Errorf("unknown chunk index type %d", idx)
	}
	if err != nil {
		return err
	}
	l.IndexAddress, err = r.ReadOffset()
	return err
}

// Encode writes the layout. Chunked layouts indexed by a version 1 B-tree are
// written as version 3; every other chunk index and the virtual class need
// version 4.
func (l *DataLayout) Encode(b *binary.Buffer) {
	version := uint8(3)
	if l.Class == LayoutVirtual || (l.Class == LayoutChunked && l.ChunkIndex != ChunkIndexBTreeV1) {
		version = 4
	}
	b.PutUint8(version)
	b.PutUint8(uint8(l.Class))

	switch l.Class {
	case LayoutCompact:
		b.PutUint16(uint16(len(l.CompactData)))
		b.PutBytes(l.CompactData)

	case LayoutContiguous:
		b.PutOffset(l.Address)
		b.PutLength(l.Size)

	case LayoutChunked:
		if version == 3 {
			b.PutUint8(uint8(len(l.ChunkDims)))
			b.PutOffset(l.IndexAddress)
			for _, d := range l.ChunkDims {
				b.PutUint32(uint32(d))
			}
			return
		}
		l.encodeChunkedV4(b)

	case LayoutVirtual:
		b.PutOffset(l.HeapAddress)
		b.PutUint32(l.HeapIndex)
	}
}

func (l *DataLayout) encodeChunkedV4(b *binary.Buffer) {
	var largest uint64
	for _, d := range l.ChunkDims {
		if d > largest {
			largest = d
		}
	}
	enc := binary.MinBytes(largest)

	b.PutUint8(l.ChunkFlags)
	b.PutUint8(uint8(len(l.ChunkDims)))
	b.PutUint8(uint8(enc))
	for _, d := range l.ChunkDims {
		b.PutUintN(d, enc)
	}
	b.PutUint8(uint8(l.ChunkIndex))

	switch l.ChunkIndex {
	case ChunkIndexSingleChunk:
		if l.ChunkFlags&ChunkSingleIndexFiltered != 0 {
			b.PutLength(l.FilteredChunkSize)
			b.PutUint32(l.FilterMask)
		}
	case ChunkIndexFixedArray:
		b.PutUint8(l.PageBits)
	case ChunkIndexExtensibleArray:
		b.PutBytes([]byte{l.MaxBits, l.IndexElements, l.MinPointers, l.MinElements, l.PageBits})
	case ChunkIndexBTreeV2:
		b.PutUint32(l.NodeSize)
		b.PutUint8(l.SplitPercent)
		b.PutUint8(l.MergePercent)
	}
	b.PutOffset(l.IndexAddress)
}

// NewContiguousLayout creates a contiguous layout.
func NewContiguousLayout(addr, size uint64) *DataLayout {
	return &DataLayout{Version: 3, Class: LayoutContiguous, Address: addr, Size: size}
}

// NewCompactLayout creates a compact layout holding data in the header.
func NewCompactLayout(data []byte) *DataLayout {
	return &DataLayout{Version: 3, Class: LayoutCompact, CompactData: data}
}

// NewChunkedLayout creates a chunked layout. chunk holds the chunk shape
// without the element size, which is appended.
func NewChunkedLayout(chunk []uint64, elementSize uint32, index ChunkIndexType) *DataLayout {
	dims := make([]uint64, len(chunk)+1)
	copy(dims, chunk)
	dims[len(chunk)] = uint64(elementSize)
	l := &DataLayout{Version: 3, Class: LayoutChunked, ChunkDims: dims, ChunkIndex: index}
	if index != ChunkIndexBTreeV1 {
		l.Version = 4
	}
	if index == ChunkIndexFixedArray {
		l.PageBits = 10
	}
	return l
}

// NewVirtualLayout creates a virtual layout referencing a global heap object.
func NewVirtualLayout(heapAddr uint64, index uint32) *DataLayout {
	return &DataLayout{Version: 4, Class: LayoutVirtual, HeapAddress: heapAddr, HeapIndex: index}
}
