package superblock

import (
	"fmt"
	"io"

	binpkg "github.com/robert-malhotra/nxsplit/internal/binary"
)

/*
Version 0/1 Superblock Layout (O = size of offsets):
0       8     Signature
8       1     Version
9       1     Free-space storage version
10      1     Root group symbol table entry version
11      1     Reserved
12      1     Shared header message format version
13      1     Size of offsets
14      1     Size of lengths
15      1     Reserved
16      2     Group leaf node K
18      2     Group internal node K
20      4     File consistency flags
24      2     Indexed storage K (v1 only, followed by 2 reserved bytes)
F       O     Base address                      (F = 24, or 28 for v1)
F+O     O     Free-space info address
F+2O    O     EOF address
F+3O    O     Driver info block address
F+4O    var   Root group symbol table entry:
              O link name offset, O object header address,
              4 cache type, 4 reserved, 16 scratch pad
*/

func fieldsStart(version uint8) int {
	if version == 1 {
		return 28
	}
	return 24
}

func readV0V1(r io.ReaderAt, off int64, version uint8) (*Superblock, error) {
	head := make([]byte, 16)
	if _, err := r.ReadAt(head, off+8); err != nil {
		return nil, err
	}
	osize := int(head[5])
	if osize != 2 && osize != 4 && osize != 8 {
		return nil, fmt.Errorf("%w: offset size %d", ErrInvalidSuperblock, osize)
	}

	f := fieldsStart(version)
	total := f + 4*osize + 2*osize + 8 + 16
	raw := make([]byte, total)
	if _, err := r.ReadAt(raw, off); err != nil {
		return nil, err
	}

	cfg := binpkg.Config{OffsetSize: osize, LengthSize: int(head[6])}
	cfg.ByteOrder = binpkg.DefaultConfig().ByteOrder

	sb := &Superblock{
		Version:            version,
		OffsetSize:         head[5],
		LengthSize:         head[6],
		GroupLeafNodeK:     uint16(cfg.Uint(raw[16:], 2)),
		GroupInternalNodeK: uint16(cfg.Uint(raw[18:], 2)),
		raw:                raw,
	}
	if version == 1 {
		sb.IndexedStorageK = uint16(cfg.Uint(raw[24:], 2))
	}

	sb.BaseAddress = cfg.Offset(raw[f:])
	sb.EOFAddress = cfg.Offset(raw[f+2*osize:])
	sb.ExtensionAddress = cfg.Undefined()

	entry := raw[f+4*osize:]
	sb.RootGroupAddress = cfg.Offset(entry[osize:])
	sb.RootCacheType = uint32(cfg.Uint(entry[2*osize:], 4))
	if sb.RootCacheType == CacheSymbolTable {
		scratch := entry[2*osize+8:]
		sb.RootBTreeAddress = cfg.Offset(scratch)
		sb.RootHeapAddress = cfg.Offset(scratch[osize:])
	}
	return sb, nil
}

func (sb *Superblock) encodeV0V1() []byte {
	out := make([]byte, len(sb.raw))
	copy(out, sb.raw)

	cfg := sb.Config()
	osize := int(sb.OffsetSize)
	f := fieldsStart(sb.Version)
	cfg.PutUint(out[f+2*osize:], sb.EOFAddress, osize)

	entry := out[f+4*osize:]
	cfg.PutUint(entry[osize:], sb.RootGroupAddress, osize)
	cfg.PutUint(entry[2*osize:], uint64(sb.RootCacheType), 4)
	scratch := entry[2*osize+8 : 2*osize+8+16]
	for i := range scratch {
		scratch[i] = 0
	}
	if sb.RootCacheType == CacheSymbolTable {
		cfg.PutUint(scratch, sb.RootBTreeAddress, osize)
		cfg.PutUint(scratch[osize:], sb.RootHeapAddress, osize)
	}
	return out
}

// NewV0 returns a version 0 superblock with the library's default B-tree
// parameters. The root entry is filled in with SetRoot.
func NewV0(offsetSize, lengthSize uint8) *Superblock {
	osize := int(offsetSize)
	raw := make([]byte, fieldsStart(0)+6*osize+24)
	copy(raw, Signature)
	raw[13] = offsetSize
	raw[14] = lengthSize

	sb := &Superblock{
		OffsetSize:         offsetSize,
		LengthSize:         lengthSize,
		GroupLeafNodeK:     4,
		GroupInternalNodeK: 16,
		raw:                raw,
	}
	cfg := sb.Config()
	cfg.PutUint(raw[16:], uint64(sb.GroupLeafNodeK), 2)
	cfg.PutUint(raw[18:], uint64(sb.GroupInternalNodeK), 2)
	f := fieldsStart(0)
	cfg.PutUint(raw[f+osize:], cfg.Undefined(), osize)
	cfg.PutUint(raw[f+3*osize:], cfg.Undefined(), osize)
	sb.ExtensionAddress = cfg.Undefined()
	return sb
}

// ChunkBTreeK returns the K of version 1 chunk B-trees: half the entries a
// node holds.
func (sb *Superblock) ChunkBTreeK() int {
	if sb.IndexedStorageK > 0 {
		return int(sb.IndexedStorageK)
	}
	return 32
}
