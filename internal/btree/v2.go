package btree

import (
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/nxsplit/internal/binary"
)

const (
	signatureV2Header   = "BTHD"
	signatureV2Internal = "BTIN"
	signatureV2Leaf     = "BTLF"

	// signature, version, type and checksum
	v2NodeOverhead = 10
)

// Version 2 B-tree record types used here.
const (
	TypeLinkName        = 5
	TypeChunkNoFilter   = 10
	TypeChunkWithFilter = 11
)

// V2Header is a version 2 B-tree header.
type V2Header struct {
	Type         uint8
	NodeSize     uint32
	RecordSize   uint16
	Depth        uint16
	SplitPercent uint8
	MergePercent uint8
	RootAddr     uint64
	RootRecords  uint16
	TotalRecords uint64

	// per depth: max records and encoded sizes of child counts
	maxRecords    []uint64
	cumMaxRecords []uint64
	cumSize       []int
	countSize     int
}

// ReadV2Header reads the header of a version 2 B-tree.
func ReadV2Header(r *binary.Reader, address uint64) (*V2Header, error) {
	nr := r.At(int64(address))
	start := nr.Pos()
	ok, err := nr.ExpectSignature(signatureV2Header)
	if err != nil {
		return nil, fmt.Errorf("reading B-tree v2 header at %d: %w", address, err)
	}
	if !ok {
		return nil, fmt.Errorf("invalid B-tree v2 header signature at %d", address)
	}
	version, err := nr.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != 0 {
		return nil, fmt.Errorf("unsupported B-tree v2 version %d", version)
	}

	h := &V2Header{}
	fields := []func() error{
		func() (err error) { h.Type, err = nr.ReadUint8(); return },
		func() (err error) { h.NodeSize, err = nr.ReadUint32(); return },
		func() (err error) { h.RecordSize, err = nr.ReadUint16(); return },
		func() (err error) { h.Depth, err = nr.ReadUint16(); return },
		func() (err error) { h.SplitPercent, err = nr.ReadUint8(); return },
		func() (err error) { h.MergePercent, err = nr.ReadUint8(); return },
		func() (err error) { h.RootAddr, err = nr.ReadOffset(); return },
		func() (err error) { h.RootRecords, err = nr.ReadUint16(); return },
		func() (err error) { h.TotalRecords, err = nr.ReadLength(); return },
	}
	for _, f := range fields {
		if err := f(); err != nil {
			return nil, err
		}
	}
	body, err := r.AtAbs(start).ReadBytes(int(nr.Pos() - start))
	if err != nil {
		return nil, err
	}
	sum, err := nr.ReadUint32()
	if err != nil {
		return nil, err
	}
	if !binary.VerifyLookup3(body, sum) {
		return nil, fmt.Errorf("B-tree v2 header checksum mismatch at %d", address)
	}
	if h.RecordSize == 0 || h.NodeSize <= v2NodeOverhead {
		return nil, fmt.Errorf("invalid B-tree v2 node geometry")
	}
	h.init(r.OffsetSize())
	return h, nil
}

// limitEncSize is the number of bytes needed to encode values up to v.
func limitEncSize(v uint64) int {
	if v == 0 {
		return 1
	}
	return (bits.Len64(v)-1)/8 + 1
}

func (h *V2Header) init(offsetSize int) {
	depth := int(h.Depth)
	h.maxRecords = make([]uint64, depth+1)
	h.cumMaxRecords = make([]uint64, depth+1)
	h.cumSize = make([]int, depth+1)

	h.maxRecords[0] = uint64(h.NodeSize-v2NodeOverhead) / uint64(h.RecordSize)
	h.cumMaxRecords[0] = h.maxRecords[0]
	h.countSize = limitEncSize(h.maxRecords[0])

	for d := 1; d <= depth; d++ {
		ptr := uint64(h.pointerSize(d, offsetSize))
		h.maxRecords[d] = (uint64(h.NodeSize) - v2NodeOverhead - ptr) / (uint64(h.RecordSize) + ptr)
		h.cumMaxRecords[d] = (h.maxRecords[d]+1)*h.cumMaxRecords[d-1] + h.maxRecords[d]
		h.cumSize[d] = limitEncSize(h.cumMaxRecords[d])
	}
}

// pointerSize is the size of a child pointer in an internal node at depth d.
func (h *V2Header) pointerSize(d, offsetSize int) int {
	n := offsetSize + h.countSize
	if d > 1 {
		n += h.cumSize[d-1]
	}
	return n
}

// Records calls fn for every record in key order.
func (h *V2Header) Records(r *binary.Reader, fn func(rec []byte) error) error {
	if h.TotalRecords == 0 || r.IsUndefinedOffset(h.RootAddr) {
		return nil
	}
	return h.visit(r, h.RootAddr, int(h.RootRecords), int(h.Depth), fn)
}

/*
Leaf: "BTLF", version, type, records, checksum
Internal: "BTIN", version, type, records, child pointers, checksum
Child pointer: address(O), record count, [total records if depth > 1]
*/
func (h *V2Header) visit(r *binary.Reader, address uint64, n, depth int, fn func([]byte) error) error {
	if depth > maxDepth {
		return fmt.Errorf("B-tree v2 deeper than %d levels", maxDepth)
	}
	sig := signatureV2Leaf
	if depth > 0 {
		sig = signatureV2Internal
	}
	nr := r.At(int64(address))
	ok, err := nr.ExpectSignature(sig)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("invalid B-tree v2 node signature at %d, expected %s", address, sig)
	}
	nr.Skip(2)

	recs := make([][]byte, n)
	for i := range recs {
		if recs[i], err = nr.ReadBytes(int(h.RecordSize)); err != nil {
			return err
		}
	}
	if depth == 0 {
		for _, rec := range recs {
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	}

	type child struct {
		addr uint64
		n    int
	}
	children := make([]child, n+1)
	for i := range children {
		if children[i].addr, err = nr.ReadOffset(); err != nil {
			return err
		}
		cnt, err := nr.ReadUintN(h.countSize)
		if err != nil {
			return err
		}
		children[i].n = int(cnt)
		if depth > 1 {
			nr.Skip(int64(h.cumSize[depth-1]))
		}
	}

	for i, c := range children {
		if err := h.visit(r, c.addr, c.n, depth-1, fn); err != nil {
			return err
		}
		if i < n {
			if err := fn(recs[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// LinkNameRecord is a type 5 record of a dense group's name index.
type LinkNameRecord struct {
	Hash   uint32
	HeapID []byte
}

// ReadLinkNames returns the records of a dense group's name index.
func ReadLinkNames(r *binary.Reader, address uint64) ([]LinkNameRecord, error) {
	h, err := ReadV2Header(r, address)
	if err != nil {
		return nil, err
	}
	if h.Type != TypeLinkName {
		return nil, fmt.Errorf("B-tree v2 type %d is not a link name index", h.Type)
	}
	var out []LinkNameRecord
	err = h.Records(r, func(rec []byte) error {
		out = append(out, LinkNameRecord{
			Hash:   uint32(r.Config().Uint(rec, 4)),
			HeapID: append([]byte(nil), rec[4:]...),
		})
		return nil
	})
	return out, err
}

// ReadChunkIndexV2 reads a version 2 B-tree chunk index. chunkShape gives the
// chunk dimensions used to scale the stored offsets.
func ReadChunkIndexV2(r *binary.Reader, address uint64, chunkShape []uint64) (*ChunkIndex, error) {
	h, err := ReadV2Header(r, address)
	if err != nil {
		return nil, err
	}
	if h.Type != TypeChunkNoFilter && h.Type != TypeChunkWithFilter {
		return nil, fmt.Errorf("B-tree v2 type %d is not a chunk index", h.Type)
	}

	cfg := r.Config()
	rank := len(chunkShape)
	sizeLen := int(h.RecordSize) - cfg.OffsetSize - 8*rank
	if h.Type == TypeChunkWithFilter {
		sizeLen -= 4
	}
	if sizeLen < 0 {
		return nil, fmt.Errorf("B-tree v2 chunk record of %d bytes too small for rank %d", h.RecordSize, rank)
	}

	idx := &ChunkIndex{}
	err = h.Records(r, func(rec []byte) error {
		e := ChunkEntry{Address: cfg.Offset(rec), Offset: make([]uint64, rank)}
		pos := cfg.OffsetSize
		if h.Type == TypeChunkWithFilter {
			e.Size = cfg.Uint(rec[pos:], sizeLen)
			pos += sizeLen
			e.FilterMask = uint32(cfg.Uint(rec[pos:], 4))
			pos += 4
		}
		for d := range e.Offset {
			e.Offset[d] = cfg.Uint(rec[pos:], 8) * chunkShape[d]
			pos += 8
		}
		if !cfg.IsUndefined(e.Address) {
			idx.Entries = append(idx.Entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return idx, nil
}
