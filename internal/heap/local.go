package heap

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/nxsplit/internal/binary"
)

const signatureLocal = "HEAP"

// LocalHeap is a local heap with its data segment loaded.
type LocalHeap struct {
	DataSize    uint64
	FreeOffset  uint64
	DataAddress uint64
	data        []byte
}

/*
Local heap:
"HEAP", version(1), reserved(3), data segment size(L), free list head(L),
data segment address(O)
*/
func ReadLocalHeap(r *binary.Reader, address uint64) (*LocalHeap, error) {
	hr := r.At(int64(address))
	ok, err := hr.ExpectSignature(signatureLocal)
	if err != nil {
		return nil, fmt.Errorf("reading local heap at %d: %w", address, err)
	}
	if !ok {
		return nil, fmt.Errorf("invalid local heap signature at %d", address)
	}
	version, err := hr.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != 0 {
		return nil, fmt.Errorf("unsupported local heap version %d", version)
	}
	hr.Skip(3)

	h := &LocalHeap{}
	if h.DataSize, err = hr.ReadLength(); err != nil {
		return nil, err
	}
	if h.FreeOffset, err = hr.ReadLength(); err != nil {
		return nil, err
	}
	if h.DataAddress, err = hr.ReadOffset(); err != nil {
		return nil, err
	}
	if h.data, err = r.At(int64(h.DataAddress)).ReadBytes(int(h.DataSize)); err != nil {
		return nil, fmt.Errorf("reading local heap data: %w", err)
	}
	return h, nil
}

// String returns the NUL-terminated string at offset.
func (h *LocalHeap) String(offset uint64) (string, error) {
	if offset >= uint64(len(h.data)) {
		return "", fmt.Errorf("local heap offset %d out of range %d", offset, len(h.data))
	}
	s := h.data[offset:]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s), nil
}

// LocalHeapHeaderSize returns the size of a local heap header.
func LocalHeapHeaderSize(cfg binary.Config) int { return 8 + 2*cfg.LengthSize + cfg.OffsetSize }

// EncodeLocalHeap encodes a local heap holding strs, with its data segment
// directly after the header. Offset 0 holds the empty string. The offsets
// of strs are returned in order.
func EncodeLocalHeap(strs []string, address uint64, cfg binary.Config) ([]byte, []uint64) {
	data := binary.NewBuffer(cfg)
	data.PutZeros(8)
	offsets := make([]uint64, len(strs))
	for i, s := range strs {
		offsets[i] = uint64(data.Len())
		data.PutCString(s)
		data.Pad(8)
	}

	b := binary.NewBuffer(cfg)
	b.PutString(signatureLocal)
	b.PutUint8(0)
	b.PutZeros(3)
	b.PutLength(uint64(data.Len()))
	b.PutUndefined()
	b.PutOffset(address + uint64(LocalHeapHeaderSize(cfg)))
	b.PutBytes(data.Bytes())
	return b.Bytes(), offsets
}
