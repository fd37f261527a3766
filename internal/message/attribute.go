package message

import (
	"fmt"

	"github.com/robert-malhotra/nxsplit/internal/binary"
)

// Attribute represents an attribute message (type 0x000C).
type Attribute struct {
	Version   uint8
	Name      string
	Datatype  *Datatype
	Dataspace *Dataspace
	Data      []byte
}

func (m *Attribute) Type() Type { return TypeAttribute }

func parseAttribute(data []byte, cfg binary.Config) (*Attribute, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("attribute message too short")
	}
	m := &Attribute{Version: data[0]}
	if m.Version < 1 || m.Version > 3 {
		return nil, fmt.Errorf("unsupported attribute version %d", m.Version)
	}
	if m.Version >= 2 && data[1]&0x03 != 0 {
		return nil, fmt.Errorf("shared attribute components are not supported")
	}

	nameSize := int(uint16(data[2]) | uint16(data[3])<<8)
	typeSize := int(uint16(data[4]) | uint16(data[5])<<8)
	spaceSize := int(uint16(data[6]) | uint16(data[7])<<8)
	pos := 8
	if m.Version == 3 {
		pos++ // name charset
	}

	pad := func(n int) int {
		if m.Version == 1 {
			return (n + 7) &^ 7
		}
		return n
	}
	field := func(n int) ([]byte, error) {
		if pos+n > len(data) {
			return nil, fmt.Errorf("attribute truncated")
		}
		out := data[pos : pos+n]
		pos += pad(n)
		return out, nil
	}

	name, err := field(nameSize)
	if err != nil {
		return nil, err
	}
	if n := len(name); n > 0 && name[n-1] == 0 {
		name = name[:n-1]
	}
	m.Name = string(name)

	dt, err := field(typeSize)
	if err != nil {
		return nil, err
	}
	if m.Datatype, err = parseDatatype(dt); err != nil {
		return nil, fmt.Errorf("attribute %q: %w", m.Name, err)
	}
	ds, err := field(spaceSize)
	if err != nil {
		return nil, err
	}
	if m.Dataspace, err = parseDataspace(ds, cfg); err != nil {
		return nil, fmt.Errorf("attribute %q: %w", m.Name, err)
	}
	n := int(m.Dataspace.NumElements()) * int(m.Datatype.Size)
	if pos+n > len(data) {
		return nil, fmt.Errorf("attribute %q: %d data bytes, want %d", m.Name, max(len(data)-pos, 0), n)
	}
	if n > 0 {
		m.Data = data[pos : pos+n]
	}
	return m, nil
}

// Encode writes a version 3 attribute.
func (m *Attribute) Encode(b *binary.Buffer) {
	cfg := b.Config()
	dt := EncodeBytes(m.Datatype, cfg)
	ds := EncodeBytes(m.Dataspace, cfg)

	b.PutUint8(3)
	b.PutUint8(0)
	b.PutUint16(uint16(len(m.Name) + 1))
	b.PutUint16(uint16(len(dt)))
	b.PutUint16(uint16(len(ds)))
	b.PutUint8(0)
	b.PutCString(m.Name)
	b.PutBytes(dt)
	b.PutBytes(ds)
	b.PutBytes(m.Data)
}
