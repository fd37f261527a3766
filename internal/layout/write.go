package layout

import (
	"fmt"

	"github.com/robert-malhotra/nxsplit/internal/filter"
)

// Chunk is an encoded chunk ready to be stored.
type Chunk struct {
	Offset []uint64
	Data   []byte
}

// SplitChunks cuts the row-major array data of extent dims into chunks of
// shape and runs each through the pipeline. Edge chunks are padded to the
// full chunk shape with fill, or zeros when fill is nil.
func SplitChunks(data []byte, dims, shape []uint64, esz int, fillValue []byte, p *filter.Pipeline) ([]Chunk, error) {
	if len(dims) != len(shape) {
		return nil, fmt.Errorf("chunk rank %d does not match rank %d", len(shape), len(dims))
	}
	total := chunkBytes(dims, esz)
	if uint64(len(data)) != total {
		return nil, fmt.Errorf("data holds %d bytes, want %d", len(data), total)
	}
	grid := NewGrid(dims, shape)
	full := chunkBytes(shape, esz)
	zero := make([]uint64, len(dims))

	chunks := make([]Chunk, 0, grid.Len())
	for i := uint64(0); i < grid.Len(); i++ {
		off := grid.Offset(i)
		buf := make([]byte, full)
		fill(buf, fillValue)
		if err := CopyBox(buf, shape, off, data, dims, zero, esz); err != nil {
			return nil, err
		}
		if p != nil && !p.Empty() {
			var err error
			if buf, err = p.Encode(buf); err != nil {
				return nil, fmt.Errorf("chunk %v: %w", off, err)
			}
		}
		chunks = append(chunks, Chunk{Offset: off, Data: buf})
	}
	return chunks, nil
}
