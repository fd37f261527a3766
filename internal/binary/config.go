// Package binary provides low-level binary I/O for HDF5 files: cursors over
// an io.ReaderAt, an append-only encoder, and the checksums HDF5 uses.
package binary

import (
	"encoding/binary"
	"errors"
)

// ErrInvalidSize is returned when an invalid offset or length size is specified.
var ErrInvalidSize = errors.New("invalid offset/length size: must be 2, 4, or 8")

// Config describes the variable-width fields of a file, as declared by its superblock.
type Config struct {
	ByteOrder  binary.ByteOrder
	OffsetSize int // 2, 4, or 8 bytes
	LengthSize int // 2, 4, or 8 bytes

	// Base is the absolute position that file addresses are relative to.
	// It is non-zero only for files with a user block.
	Base int64
}

// DefaultConfig returns the configuration used before the superblock is known.
func DefaultConfig() Config {
	return Config{
		ByteOrder:  binary.LittleEndian,
		OffsetSize: 8,
		LengthSize: 8,
	}
}

// Validate checks that offset and length sizes are supported.
func (c Config) Validate() error {
	for _, n := range []int{c.OffsetSize, c.LengthSize} {
		if n != 2 && n != 4 && n != 8 {
			return ErrInvalidSize
		}
	}
	return nil
}

// Undefined returns the all-ones "undefined address" value for the offset size.
func (c Config) Undefined() uint64 {
	if c.OffsetSize >= 8 {
		return ^uint64(0)
	}
	return uint64(1)<<(uint(c.OffsetSize)*8) - 1
}

// IsUndefined reports whether addr is the undefined address.
func (c Config) IsUndefined(addr uint64) bool {
	return addr == c.Undefined()
}

// Uint decodes an n-byte unsigned integer from buf.
func (c Config) Uint(buf []byte, n int) uint64 {
	switch n {
	case 1:
		return uint64(buf[0])
	case 2:
		return uint64(c.ByteOrder.Uint16(buf))
	case 4:
		return uint64(c.ByteOrder.Uint32(buf))
	case 8:
		return c.ByteOrder.Uint64(buf)
	}
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(buf[i])
	}
	return v
}

// PutUint encodes v into the first n bytes of buf.
func (c Config) PutUint(buf []byte, v uint64, n int) {
	switch n {
	case 1:
		buf[0] = uint8(v)
	case 2:
		c.ByteOrder.PutUint16(buf, uint16(v))
	case 4:
		c.ByteOrder.PutUint32(buf, uint32(v))
	case 8:
		c.ByteOrder.PutUint64(buf, v)
	default:
		for i := 0; i < n; i++ {
			buf[i] = uint8(v >> (8 * uint(i)))
		}
	}
}

// Offset decodes a file address from the start of buf.
func (c Config) Offset(buf []byte) uint64 { return c.Uint(buf, c.OffsetSize) }

// Length decodes a length from the start of buf.
func (c Config) Length(buf []byte) uint64 { return c.Uint(buf, c.LengthSize) }

// BytesNeeded returns the smallest of 1, 2, 4 or 8 bytes that can hold v.
func BytesNeeded(v uint64) int {
	switch {
	case v <= 0xFF:
		return 1
	case v <= 0xFFFF:
		return 2
	case v <= 0xFFFFFFFF:
		return 4
	}
	return 8
}

// MinBytes returns the minimum number of bytes (1..8) that can hold v.
// Used by variable-width fields such as fractal heap offsets.
func MinBytes(v uint64) int {
	n := 1
	for v > 0xFF {
		v >>= 8
		n++
	}
	return n
}
