package filter

import (
	"errors"

	"github.com/robert-malhotra/nxsplit/internal/binary"
	"github.com/robert-malhotra/nxsplit/internal/message"
)

var ErrChecksum = errors.New("fletcher32 checksum mismatch")

// Fletcher32 appends a checksum to each chunk.
type Fletcher32 struct{}

func (Fletcher32) ID() message.FilterID { return message.FilterFletcher32 }

func (Fletcher32) Decode(input []byte) ([]byte, error) {
	if len(input) < 4 {
		return nil, errors.New("fletcher32: chunk too short")
	}
	data := input[:len(input)-4]
	stored := le32(input[len(input)-4:])
	sum := binary.Fletcher32(data)
	// files written by early library versions stored the sum byte-swapped
	if stored != sum && stored != swapHalves(sum) {
		return nil, ErrChecksum
	}
	return data, nil
}

func (Fletcher32) Encode(input []byte) ([]byte, error) {
	sum := binary.Fletcher32(input)
	out := make([]byte, len(input)+4)
	copy(out, input)
	binary.DefaultConfig().PutUint(out[len(input):], uint64(sum), 4)
	return out, nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func swapHalves(v uint32) uint32 {
	return (v&0xFF00FF00)>>8 | (v&0x00FF00FF)<<8
}
