package heap

import (
	"fmt"

	"github.com/robert-malhotra/nxsplit/internal/binary"
)

const signatureGlobal = "GCOL"

// MinCollectionSize is the smallest global heap collection readers accept.
const MinCollectionSize = 4096

// GlobalHeapID references an object in a global heap collection.
type GlobalHeapID struct {
	Collection uint64
	Index      uint32
}

// ParseGlobalHeapID decodes an ID stored as collection address and index.
func ParseGlobalHeapID(data []byte, cfg binary.Config) (GlobalHeapID, error) {
	if len(data) < cfg.OffsetSize+4 {
		return GlobalHeapID{}, fmt.Errorf("global heap ID too short: %d bytes", len(data))
	}
	return GlobalHeapID{
		Collection: cfg.Offset(data),
		Index:      uint32(cfg.Uint(data[cfg.OffsetSize:], 4)),
	}, nil
}

// GlobalHeap is a global heap collection.
type GlobalHeap struct {
	Size    uint64
	objects map[uint32][]byte
}

/*
Collection: "GCOL", version(1), reserved(3), collection size(L), objects.
Object: index(2), reference count(2), reserved(4), size(L), data padded to 8.
Index 0 is the free space object and ends the list.
*/
func ReadGlobalHeap(r *binary.Reader, address uint64) (*GlobalHeap, error) {
	if address == 0 || r.IsUndefinedOffset(address) {
		return nil, fmt.Errorf("invalid global heap address %d", address)
	}
	hr := r.At(int64(address))
	ok, err := hr.ExpectSignature(signatureGlobal)
	if err != nil {
		return nil, fmt.Errorf("reading global heap at %d: %w", address, err)
	}
	if !ok {
		return nil, fmt.Errorf("invalid global heap signature at %d", address)
	}
	version, err := hr.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != 1 {
		return nil, fmt.Errorf("unsupported global heap version %d", version)
	}
	hr.Skip(3)
	size, err := hr.ReadLength()
	if err != nil {
		return nil, err
	}

	h := &GlobalHeap{Size: size, objects: make(map[uint32][]byte)}
	objHeader := uint64(8 + r.LengthSize())
	remaining := size - objHeader
	for remaining >= objHeader {
		index, err := hr.ReadUint16()
		if err != nil {
			return nil, err
		}
		if index == 0 {
			break
		}
		hr.Skip(6)
		n, err := hr.ReadLength()
		if err != nil {
			return nil, err
		}
		padded := (n + 7) &^ 7
		if objHeader+padded > remaining {
			return nil, fmt.Errorf("global heap object %d overruns collection", index)
		}
		data, err := hr.ReadBytes(int(n))
		if err != nil {
			return nil, err
		}
		hr.Skip(int64(padded - n))
		h.objects[uint32(index)] = data
		remaining -= objHeader + padded
	}
	return h, nil
}

// Object returns the object with the given index.
func (h *GlobalHeap) Object(index uint32) ([]byte, error) {
	data, ok := h.objects[index]
	if !ok {
		return nil, fmt.Errorf("object %d not found in global heap", index)
	}
	return data, nil
}

// ReadGlobalObject reads the object referenced by id.
func ReadGlobalObject(r *binary.Reader, id GlobalHeapID) ([]byte, error) {
	h, err := ReadGlobalHeap(r, id.Collection)
	if err != nil {
		return nil, err
	}
	return h.Object(id.Index)
}

// EncodeCollection builds a collection holding objects with indexes 1..n.
// The collection is padded with a free space object to MinCollectionSize.
func EncodeCollection(objects [][]byte, cfg binary.Config) []byte {
	objHeader := 8 + cfg.LengthSize
	size := 8 + cfg.LengthSize
	for _, o := range objects {
		size += objHeader + (len(o)+7)&^7
	}
	total := size + objHeader
	if total < MinCollectionSize {
		total = MinCollectionSize
	}
	total = (total + 7) &^ 7

	b := binary.NewBuffer(cfg)
	b.PutString(signatureGlobal)
	b.PutUint8(1)
	b.PutZeros(3)
	b.PutLength(uint64(total))
	for i, o := range objects {
		b.PutUint16(uint16(i + 1))
		b.PutUint16(1)
		b.PutZeros(4)
		b.PutLength(uint64(len(o)))
		b.PutBytes(o)
		b.Pad(8)
	}
	free := total - b.Len()
	b.PutUint16(0)
	b.PutUint16(0)
	b.PutZeros(4)
	b.PutLength(uint64(free))
	b.PutZeros(total - b.Len())
	return b.Bytes()
}
