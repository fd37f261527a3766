package superblock

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	binpkg "github.com/robert-malhotra/nxsplit/internal/binary"
)

// Signature is the HDF5 file signature.
var Signature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

var searchOffsets = []int64{0, 512, 1024, 2048}

var (
	ErrNotHDF5            = errors.New("not an HDF5 file: signature not found")
	ErrUnsupportedVersion = errors.New("unsupported superblock version")
	ErrInvalidSuperblock  = errors.New("invalid superblock structure")
)

// Cache types of a symbol table entry.
const (
	CacheNone        = 0
	CacheSymbolTable = 1
	CacheSoftLink    = 2
)

// Superblock holds the fields of any superblock version.
type Superblock struct {
	Version    uint8
	OffsetSize uint8
	LengthSize uint8
	Flags      uint8

	BaseAddress      uint64
	ExtensionAddress uint64
	EOFAddress       uint64
	RootGroupAddress uint64

	// v0/v1 only.
	GroupLeafNodeK     uint16
	GroupInternalNodeK uint16
	IndexedStorageK    uint16
	RootCacheType      uint32
	RootBTreeAddress   uint64 // from the root entry scratch pad
	RootHeapAddress    uint64

	// FileOffset is the absolute position of the signature.
	FileOffset int64

	raw []byte // original v0/v1 bytes through the end of the root entry
}

// Read locates and parses the superblock.
func Read(r io.ReaderAt) (*Superblock, error) {
	sig := make([]byte, 9)
	for _, off := range searchOffsets {
		if _, err := r.ReadAt(sig, off); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		if !bytes.Equal(sig[:8], Signature) {
			continue
		}

		var (
			sb  *Superblock
			err error
		)
		switch sig[8] {
		case 0, 1:
			sb, err = readV0V1(r, off, sig[8])
		case 2, 3:
			sb, err = readV2V3(r, off)
		default:
			return nil, ErrUnsupportedVersion
		}
		if err != nil {
			return nil, err
		}
		sb.FileOffset = off
		return sb, nil
	}
	return nil, ErrNotHDF5
}

// Config returns the binary configuration for the rest of the file.
func (sb *Superblock) Config() binpkg.Config {
	return binpkg.Config{
		ByteOrder:  binary.LittleEndian,
		OffsetSize: int(sb.OffsetSize),
		LengthSize: int(sb.LengthSize),
		Base:       int64(sb.BaseAddress),
	}
}

// HasRootEntry reports whether the root group is described by a symbol table entry.
func (sb *Superblock) HasRootEntry() bool { return sb.Version < 2 }

// SetRoot points the superblock at a new root object header. For v0/v1 the
// root entry's scratch pad is cleared, since the new header carries its own
// group messages.
func (sb *Superblock) SetRoot(addr uint64) {
	sb.RootGroupAddress = addr
	if sb.HasRootEntry() {
		sb.RootCacheType = CacheNone
		sb.RootBTreeAddress = 0
		sb.RootHeapAddress = 0
	}
}

// Encode returns the superblock bytes to be written at FileOffset.
func (sb *Superblock) Encode() []byte {
	if sb.HasRootEntry() {
		return sb.encodeV0V1()
	}
	return sb.encodeV2V3()
}

// New returns a version 3 superblock for a freshly created file.
func New(offsetSize, lengthSize uint8) *Superblock {
	return &Superblock{
		Version:          3,
		OffsetSize:       offsetSize,
		LengthSize:       lengthSize,
		ExtensionAddress: ^uint64(0),
	}
}

// Size returns the encoded size in bytes.
func (sb *Superblock) Size() int {
	if sb.HasRootEntry() {
		return len(sb.raw)
	}
	return 12 + 4*int(sb.OffsetSize) + 4
}
