package filter

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/robert-malhotra/nxsplit/internal/message"
)

const defaultLZ4Block = 1 << 30

// LZ4 is the registered LZ4 filter. The chunk is framed as the original size
// (8 bytes, big-endian), the block size (4 bytes) and a sequence of blocks
// each prefixed by its compressed size. A block whose compressed size equals
// its original size is stored raw.
type LZ4 struct {
	blockSize int
}

// NewLZ4 reads the block size from the client data.
func NewLZ4(cd []uint32) *LZ4 {
	size := defaultLZ4Block
	if len(cd) > 0 && cd[0] > 0 {
		size = int(cd[0])
	}
	return &LZ4{blockSize: size}
}

func (f *LZ4) ID() message.FilterID { return message.FilterLZ4 }

func (f *LZ4) Decode(input []byte) ([]byte, error) {
	if len(input) < 12 {
		return nil, fmt.Errorf("lz4: chunk too short")
	}
	total := binary.BigEndian.Uint64(input)
	block := int(binary.BigEndian.Uint32(input[8:]))
	if block <= 0 {
		return nil, fmt.Errorf("lz4: invalid block size %d", block)
	}
	out := make([]byte, total)
	src := input[12:]
	for pos := 0; pos < len(out); {
		if len(src) < 4 {
			return nil, fmt.Errorf("lz4: truncated block header")
		}
		n := int(binary.BigEndian.Uint32(src))
		src = src[4:]
		if n > len(src) {
			return nil, fmt.Errorf("lz4: truncated block")
		}
		want := min(block, len(out)-pos)
		if n == want {
			copy(out[pos:], src[:n])
		} else {
			got, err := lz4.UncompressBlock(src[:n], out[pos:pos+want])
			if err != nil {
				return nil, fmt.Errorf("lz4: %w", err)
			}
			if got != want {
				return nil, fmt.Errorf("lz4: block decoded to %d bytes, want %d", got, want)
			}
		}
		src = src[n:]
		pos += want
	}
	return out, nil
}

func (f *LZ4) Encode(input []byte) ([]byte, error) {
	out := make([]byte, 12, 12+lz4.CompressBlockBound(len(input)))
	binary.BigEndian.PutUint64(out, uint64(len(input)))
	binary.BigEndian.PutUint32(out[8:], uint32(f.blockSize))

	var c lz4.Compressor
	buf := make([]byte, lz4.CompressBlockBound(min(f.blockSize, len(input))))
	for pos := 0; pos < len(input); {
		blk := input[pos:min(pos+f.blockSize, len(input))]
		n, err := c.CompressBlock(blk, buf)
		if err != nil {
			return nil, fmt.Errorf("lz4: %w", err)
		}
		var hdr [4]byte
		if n == 0 || n >= len(blk) {
			binary.BigEndian.PutUint32(hdr[:], uint32(len(blk)))
			out = append(out, hdr[:]...)
			out = append(out, blk...)
		} else {
			binary.BigEndian.PutUint32(hdr[:], uint32(n))
			out = append(out, hdr[:]...)
			out = append(out, buf[:n]...)
		}
		pos += len(blk)
	}
	return out, nil
}
