package message

import (
	"fmt"

	"github.com/robert-malhotra/nxsplit/internal/binary"
)

// Fill value allocation and write times.
const (
	AllocTimeEarly       = 1
	AllocTimeLate        = 2
	AllocTimeIncremental = 3

	FillTimeAlloc = 0
	FillTimeNever = 1
	FillTimeIfSet = 2
)

// FillValue represents a fill value message (type 0x0005).
type FillValue struct {
	Version   uint8
	AllocTime uint8
	FillTime  uint8
	Defined   bool
	Value     []byte
}

func (m *FillValue) Type() Type { return TypeFillValue }

func parseFillValue(data []byte) (*FillValue, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("fill value message too short")
	}
	m := &FillValue{Version: data[0]}

	var pos int
	switch m.Version {
	case 1, 2:
		if len(data) < 4 {
			return nil, fmt.Errorf("fill value message too short")
		}
		m.AllocTime = data[1]
		m.FillTime = data[2]
		m.Defined = data[3] != 0
		pos = 4
		if m.Version == 2 && !m.Defined {
			return m, nil
		}
	case 3:
		flags := data[1]
		m.AllocTime = flags & 0x03
		m.FillTime = (flags >> 2) & 0x03
		if flags&0x10 != 0 {
			// undefined fill value
			return m, nil
		}
		m.Defined = flags&0x20 != 0
		if !m.Defined {
			return m, nil
		}
		pos = 2
	default:
		return nil, fmt.Errorf("unsupported fill value version %d", m.Version)
	}

	if len(data) < pos+4 {
		return m, nil
	}
	size := int(le32(data[pos:]))
	pos += 4
	if size > 0 {
		if len(data) < pos+size {
			return nil, fmt.Errorf("fill value truncated")
		}
		m.Value = append([]byte(nil), data[pos:pos+size]...)
		m.Defined = true
	}
	return m, nil
}

// Encode writes a version 3 message.
func (m *FillValue) Encode(b *binary.Buffer) {
	flags := m.AllocTime&0x03 | (m.FillTime&0x03)<<2
	if m.Defined && len(m.Value) > 0 {
		flags |= 0x20
	}
	b.PutUint8(3)
	b.PutUint8(flags)
	if flags&0x20 != 0 {
		b.PutUint32(uint32(len(m.Value)))
		b.PutBytes(m.Value)
	}
}

// NewFillValue creates a fill value written on demand for chunks and virtual
// regions not covered by any source.
func NewFillValue(value []byte) *FillValue {
	return &FillValue{
		Version:   3,
		AllocTime: AllocTimeLate,
		FillTime:  FillTimeIfSet,
		Defined:   true,
		Value:     value,
	}
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
