package filter

import (
	"github.com/robert-malhotra/nxsplit/internal/message"
)

// Shuffle groups the bytes of each element position together. Trailing
// bytes that do not form a whole element are left in place.
type Shuffle struct {
	elemSize int
}

// NewShuffle uses the element size from the client data, or elemSize.
func NewShuffle(cd []uint32, elemSize int) *Shuffle {
	if len(cd) > 0 && cd[0] > 0 {
		elemSize = int(cd[0])
	}
	if elemSize < 1 {
		elemSize = 1
	}
	return &Shuffle{elemSize: elemSize}
}

func (f *Shuffle) ID() message.FilterID { return message.FilterShuffle }

func (f *Shuffle) Decode(input []byte) ([]byte, error) {
	n := len(input) / f.elemSize
	if f.elemSize == 1 || n <= 1 {
		return input, nil
	}
	out := make([]byte, len(input))
	for i := 0; i < n; i++ {
		for j := 0; j < f.elemSize; j++ {
			out[i*f.elemSize+j] = input[j*n+i]
		}
	}
	copy(out[n*f.elemSize:], input[n*f.elemSize:])
	return out, nil
}

func (f *Shuffle) Encode(input []byte) ([]byte, error) {
	n := len(input) / f.elemSize
	if f.elemSize == 1 || n <= 1 {
		return input, nil
	}
	out := make([]byte, len(input))
	for i := 0; i < n; i++ {
		for j := 0; j < f.elemSize; j++ {
			out[j*n+i] = input[i*f.elemSize+j]
		}
	}
	copy(out[n*f.elemSize:], input[n*f.elemSize:])
	return out, nil
}
