package object

import (
	"github.com/robert-malhotra/nxsplit/internal/binary"
)

// Encode builds a single-chunk object header of the given version holding
// bodies. The result is written by the caller at an address of its choice.
func Encode(version uint8, bodies []Body, cfg binary.Config) []byte {
	if version == 1 {
		return encodeV1(bodies, cfg)
	}
	return encodeV2(bodies, cfg)
}

func encodeV1(bodies []Body, cfg binary.Config) []byte {
	var size int
	for _, m := range bodies {
		size += 8 + pad8(len(m.Data))
	}

	b := binary.NewBuffer(cfg)
	b.PutUint8(1)
	b.PutUint8(0)
	b.PutUint16(uint16(len(bodies)))
	b.PutUint32(1)
	b.PutUint32(uint32(size))
	b.PutZeros(4)
	for _, m := range bodies {
		n := pad8(len(m.Data))
		b.PutUint16(uint16(m.Type))
		b.PutUint16(uint16(n))
		b.PutUint8(m.Flags)
		b.PutZeros(3)
		b.PutBytes(m.Data)
		b.PutZeros(n - len(m.Data))
	}
	return b.Bytes()
}

func encodeV2(bodies []Body, cfg binary.Config) []byte {
	var size int
	for _, m := range bodies {
		size += 4 + len(m.Data)
	}
	width := binary.BytesNeeded(uint64(size))
	var sizeBits uint8
	for 1<<sizeBits < width {
		sizeBits++
	}

	b := binary.NewBuffer(cfg)
	b.PutString(signatureHeader)
	b.PutUint8(2)
	b.PutUint8(sizeBits)
	b.PutUintN(uint64(size), 1<<sizeBits)
	for _, m := range bodies {
		b.PutUint8(uint8(m.Type))
		b.PutUint16(uint16(len(m.Data)))
		b.PutUint8(m.Flags)
		b.PutBytes(m.Data)
	}
	b.AppendChecksum()
	return b.Bytes()
}

func pad8(n int) int { return (n + 7) &^ 7 }
