package filter

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/robert-malhotra/nxsplit/internal/message"
)

var zstdDecoders = sync.Pool{
	New: func() any {
		d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			panic(fmt.Sprintf("zstd decoder: %v", err))
		}
		return d
	},
}

// Zstd is the registered Zstandard filter. Client data: [level].
type Zstd struct {
	level zstd.EncoderLevel
}

func NewZstd(cd []uint32) *Zstd {
	level := zstd.SpeedDefault
	if len(cd) > 0 && cd[0] > 0 {
		level = zstd.EncoderLevelFromZstd(int(cd[0]))
	}
	return &Zstd{level: level}
}

func (f *Zstd) ID() message.FilterID { return message.FilterZstd }

func (f *Zstd) Decode(input []byte) ([]byte, error) {
	d := zstdDecoders.Get().(*zstd.Decoder)
	defer zstdDecoders.Put(d)
	out, err := d.DecodeAll(input, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	return out, nil
}

func (f *Zstd) Encode(input []byte) ([]byte, error) {
	e, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(f.level), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	defer e.Close()
	return e.EncodeAll(input, nil), nil
}
