package btree

import (
	"fmt"

	"github.com/robert-malhotra/nxsplit/internal/binary"
)

// ChunkEntry is one stored chunk.
type ChunkEntry struct {
	// Offset is the chunk origin in dataset element coordinates.
	Offset     []uint64
	FilterMask uint32
	Size       uint64 // bytes on disk, 0 when not recorded by the index
	Address    uint64
}

// ChunkIndex holds every stored chunk of a dataset.
type ChunkIndex struct {
	Entries []ChunkEntry
}

// FindChunk returns the entry whose chunk contains offset, or nil.
func (idx *ChunkIndex) FindChunk(offset, chunkShape []uint64) *ChunkEntry {
	for i := range idx.Entries {
		e := &idx.Entries[i]
		match := true
		for d := 0; d < len(offset) && d < len(e.Offset); d++ {
			if offset[d] < e.Offset[d] || offset[d] >= e.Offset[d]+chunkShape[d] {
				match = false
				break
			}
		}
		if match {
			return e
		}
	}
	return nil
}

func chunkKeySize(rank int) int { return 8 + 8*(rank+1) }

// ReadChunkIndexV1 reads a version 1 B-tree chunk index of a dataset of the
// given rank.
func ReadChunkIndexV1(r *binary.Reader, address uint64, rank int) (*ChunkIndex, error) {
	idx := &ChunkIndex{}
	if r.IsUndefinedOffset(address) {
		return idx, nil
	}
	cfg := r.Config()
	err := walkV1(r, address, nodeRawChunk, chunkKeySize(rank), 0, func(key []byte, child uint64) error {
		e := ChunkEntry{
			Size:       cfg.Uint(key[0:], 4),
			FilterMask: uint32(cfg.Uint(key[4:], 4)),
			Offset:     make([]uint64, rank),
			Address:    child,
		}
		for d := range e.Offset {
			e.Offset[d] = cfg.Uint(key[8+8*d:], 8)
		}
		idx.Entries = append(idx.Entries, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("chunk B-tree: %w", err)
	}
	return idx, nil
}

// EncodeChunkLeaf encodes a single leaf node indexing entries. The node is
// sized for 2k entries as readers expect; k is the superblock's indexed
// storage K. chunkDims includes the trailing element size.
func EncodeChunkLeaf(entries []ChunkEntry, chunkDims []uint64, k int, cfg binary.Config) ([]byte, error) {
	if len(entries) == 0 || len(entries) > 2*k {
		return nil, fmt.Errorf("chunk leaf holds 1 to %d entries, got %d", 2*k, len(entries))
	}
	rank := len(chunkDims) - 1
	keySize := chunkKeySize(rank)

	b := binary.NewBuffer(cfg)
	b.PutString(signatureV1)
	b.PutUint8(nodeRawChunk)
	b.PutUint8(0)
	b.PutUint16(uint16(len(entries)))
	b.PutUndefined()
	b.PutUndefined()

	putKey := func(size uint64, mask uint32, offset []uint64) {
		b.PutUint32(uint32(size))
		b.PutUint32(mask)
		for _, o := range offset {
			b.PutUint64(o)
		}
		b.PutUint64(0)
	}
	for _, e := range entries {
		putKey(e.Size, e.FilterMask, e.Offset)
		b.PutOffset(e.Address)
	}

	last := entries[len(entries)-1]
	right := make([]uint64, rank)
	for d := range right {
		right[d] = last.Offset[d] + chunkDims[d]
	}
	putKey(0, 0, right)

	full := 8 + 2*cfg.OffsetSize + 2*k*(keySize+cfg.OffsetSize) + keySize
	b.PutZeros(full - b.Len())
	return b.Bytes(), nil
}
