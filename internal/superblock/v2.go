package superblock

import (
	"io"

	binpkg "github.com/robert-malhotra/nxsplit/internal/binary"
)

/*
Version 2/3 Superblock Layout (O = size of offsets):
0       8     Signature
8       1     Version (2 or 3)
9       1     Size of offsets
10      1     Size of lengths
11      1     File consistency flags
12      O     Base address
12+O    O     Superblock extension address
12+2O   O     EOF address
12+3O   O     Root group object header address
12+4O   4     Checksum (lookup3)
*/

func readV2V3(r io.ReaderAt, off int64) (*Superblock, error) {
	head := make([]byte, 12)
	if _, err := r.ReadAt(head, off); err != nil {
		return nil, err
	}
	osize := int(head[9])
	if osize != 2 && osize != 4 && osize != 8 {
		return nil, ErrInvalidSuperblock
	}

	body := make([]byte, 12+4*osize+4)
	if _, err := r.ReadAt(body, off); err != nil {
		return nil, err
	}
	n := len(body) - 4

	cfg := binpkg.DefaultConfig()
	stored := uint32(cfg.Uint(body[n:], 4))
	if !binpkg.VerifyLookup3(body[:n], stored) {
		return nil, ErrInvalidSuperblock
	}

	sb := &Superblock{
		Version:    head[8],
		OffsetSize: head[9],
		LengthSize: head[10],
		Flags:      head[11],
	}
	p := body[12:]
	sb.BaseAddress = cfg.Uint(p, osize)
	sb.ExtensionAddress = cfg.Uint(p[osize:], osize)
	sb.EOFAddress = cfg.Uint(p[2*osize:], osize)
	sb.RootGroupAddress = cfg.Uint(p[3*osize:], osize)
	return sb, nil
}

func (sb *Superblock) encodeV2V3() []byte {
	b := binpkg.NewBuffer(sb.Config())
	b.PutBytes(Signature)
	b.PutUint8(sb.Version)
	b.PutUint8(sb.OffsetSize)
	b.PutUint8(sb.LengthSize)
	b.PutUint8(sb.Flags)
	b.PutOffset(sb.BaseAddress)
	b.PutOffset(sb.ExtensionAddress)
	b.PutOffset(sb.EOFAddress)
	b.PutOffset(sb.RootGroupAddress)
	b.AppendChecksum()
	return b.Bytes()
}
