package message

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/nxsplit/internal/binary"
)

// DatatypeClass is the HDF5 datatype class.
type DatatypeClass uint8

const (
	ClassFixedPoint DatatypeClass = 0
	ClassFloatPoint DatatypeClass = 1
	ClassTime       DatatypeClass = 2
	ClassString     DatatypeClass = 3
	ClassBitfield   DatatypeClass = 4
	ClassOpaque     DatatypeClass = 5
	ClassCompound   DatatypeClass = 6
	ClassReference  DatatypeClass = 7
	ClassEnum       DatatypeClass = 8
	ClassVarLen     DatatypeClass = 9
	ClassArray      DatatypeClass = 10
)

func (c DatatypeClass) String() string {
	names := [...]string{"integer", "float", "time", "string", "bitfield", "opaque",
		"compound", "reference", "enum", "vlen", "array"}
	if int(c) < len(names) {
		return names[c]
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

// ByteOrder of numeric types.
type ByteOrder uint8

const (
	LittleEndian ByteOrder = 0
	BigEndian    ByteOrder = 1
)

// StringPadding of fixed-length strings.
type StringPadding uint8

const (
	PadNullTerm StringPadding = 0
	PadNull     StringPadding = 1
	PadSpace    StringPadding = 2
)

// CharacterSet of strings.
type CharacterSet uint8

const (
	CharsetASCII CharacterSet = 0
	CharsetUTF8  CharacterSet = 1
)

// Datatype represents a datatype message (type 0x0003). Class-specific
// properties are kept encoded so any type can be written back unchanged.
type Datatype struct {
	Version    uint8
	Class      DatatypeClass
	ClassBits  uint32
	Size       uint32
	Properties []byte
}

func (m *Datatype) Type() Type { return TypeDatatype }

// ByteOrder returns the byte order of integer, float, bitfield and enum types.
func (m *Datatype) ByteOrder() ByteOrder {
	return ByteOrder(m.ClassBits & 0x01)
}

// Signed reports whether an integer type is signed.
func (m *Datatype) Signed() bool {
	return m.Class == ClassFixedPoint && m.ClassBits&0x08 != 0
}

// IsVarLenString reports whether this is a variable-length string.
func (m *Datatype) IsVarLenString() bool {
	return m.Class == ClassVarLen && m.ClassBits&0x0F == 1
}

// Padding returns the string padding of a fixed-length string.
func (m *Datatype) Padding() StringPadding { return StringPadding(m.ClassBits & 0x0F) }

// Charset returns the character set of a string type.
func (m *Datatype) Charset() CharacterSet { return CharacterSet((m.ClassBits >> 4) & 0x0F) }

// Equal reports whether two datatypes describe the same element encoding.
func (m *Datatype) Equal(o *Datatype) bool {
	if m == nil || o == nil {
		return m == o
	}
	return m.Class == o.Class && m.ClassBits == o.ClassBits && m.Size == o.Size &&
		bytes.Equal(m.Properties, o.Properties)
}

func (m *Datatype) String() string {
	switch m.Class {
	case ClassFixedPoint:
		if m.Signed() {
			return fmt.Sprintf("int%d", m.Size*8)
		}
		return fmt.Sprintf("uint%d", m.Size*8)
	case ClassFloatPoint:
		return fmt.Sprintf("float%d", m.Size*8)
	case ClassString:
		return fmt.Sprintf("string[%d]", m.Size)
	}
	if m.IsVarLenString() {
		return "vlen string"
	}
	return m.Class.String()
}

// Encode writes the datatype with its original properties.
func (m *Datatype) Encode(b *binary.Buffer) {
	version := m.Version
	if version == 0 {
		version = 1
	}
	b.PutUint8(uint8(m.Class) | version<<4)
	b.PutUint8(uint8(m.ClassBits))
	b.PutUint8(uint8(m.ClassBits >> 8))
	b.PutUint8(uint8(m.ClassBits >> 16))
	b.PutUint32(m.Size)
	b.PutBytes(m.Properties)
}

func parseDatatype(data []byte) (*Datatype, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("datatype message too short")
	}
	// v1 object headers pad message bodies to 8 bytes
	n, err := datatypeLen(data)
	if err != nil {
		return nil, err
	}
	props := make([]byte, n-8)
	copy(props, data[8:n])
	return &Datatype{
		Version:    data[0] >> 4,
		Class:      DatatypeClass(data[0] & 0x0F),
		ClassBits:  uint32(data[1]) | uint32(data[2])<<8 | uint32(data[3])<<16,
		Size:       uint32(data[4]) | uint32(data[5])<<8 | uint32(data[6])<<16 | uint32(data[7])<<24,
		Properties: props,
	}, nil
}

// datatypeLen returns the encoded length of the datatype at the start of
// data, nested member and base types included.
func datatypeLen(data []byte) (int, error) {
	if len(data) < 8 {
		return 0, fmt.Errorf("datatype truncated")
	}
	version := data[0] >> 4
	class := DatatypeClass(data[0] & 0x0F)
	bits := int(data[1]) | int(data[2])<<8
	size := uint32(data[4]) | uint32(data[5])<<8 | uint32(data[6])<<16 | uint32(data[7])<<24
	pos := 8

	need := func(n int) error {
		if pos+n > len(data) {
			return fmt.Errorf("%s datatype truncated", class)
		}
		pos += n
		return nil
	}
	nested := func() (uint32, error) {
		n, err := datatypeLen(data[pos:])
		if err != nil {
			return 0, err
		}
		sub := data[pos:]
		pos += n
		return uint32(sub[4]) | uint32(sub[5])<<8 | uint32(sub[6])<<16 | uint32(sub[7])<<24, nil
	}
	name := func(padded bool) error {
		end := bytes.IndexByte(data[pos:], 0)
		if end < 0 {
			return fmt.Errorf("%s datatype: unterminated name", class)
		}
		n := end + 1
		if padded {
			n = (n + 7) &^ 7
		}
		return need(n)
	}

	var err error
	switch class {
	case ClassFixedPoint, ClassBitfield:
		err = need(4)
	case ClassFloatPoint:
		err = need(12)
	case ClassTime:
		err = need(2)
	case ClassString, ClassReference:
	case ClassOpaque:
		err = need(bits & 0xFF)
	case ClassCompound:
		for i := 0; i < bits; i++ {
			if err = name(version < 3); err != nil {
				break
			}
			switch version {
			case 1:
				err = need(4 + 1 + 3 + 4 + 4 + 16)
			case 2:
				err = need(4)
			default:
				err = need(offsetWidth(size))
			}
			if err != nil {
				break
			}
			if _, err = nested(); err != nil {
				break
			}
		}
	case ClassEnum:
		var base uint32
		if base, err = nested(); err != nil {
			break
		}
		for i := 0; i < bits; i++ {
			if err = name(version < 3); err != nil {
				break
			}
		}
		if err == nil {
			err = need(bits * int(base))
		}
	case ClassVarLen:
		_, err = nested()
	case ClassArray:
		if err = need(1); err != nil {
			break
		}
		rank := int(data[pos-1])
		if version < 3 {
			err = need(3 + 8*rank)
		} else {
			err = need(4 * rank)
		}
		if err == nil {
			_, err = nested()
		}
	default:
		// unknown class: keep everything
		pos = len(data)
	}
	if err != nil {
		return 0, err
	}
	return pos, nil
}

// offsetWidth is the byte width of member offsets in version 3 compound
// types: the fewest bytes that hold size.
func offsetWidth(size uint32) int {
	switch {
	case size < 1<<8:
		return 1
	case size < 1<<16:
		return 2
	case size < 1<<24:
		return 3
	}
	return 4
}

// NewFixedPointDatatype creates an integer datatype.
func NewFixedPointDatatype(size uint32, signed bool, order ByteOrder) *Datatype {
	bits := uint32(order)
	if signed {
		bits |= 0x08
	}
	// bit offset 0, precision size*8
	props := []byte{0, 0, byte(size * 8), byte(size * 8 >> 8)}
	return &Datatype{Version: 1, Class: ClassFixedPoint, ClassBits: bits, Size: size, Properties: props}
}

// NewFloatDatatype creates an IEEE 754 float datatype of 4 or 8 bytes.
func NewFloatDatatype(size uint32, order ByteOrder) *Datatype {
	// bit offset(2) precision(2) exp location(1) exp size(1)
	// mantissa location(1) mantissa size(1) exp bias(4)
	var props []byte
	var signBit uint32
	if size == 4 {
		signBit = 31
		props = []byte{0, 0, 32, 0, 23, 8, 0, 23, 127, 0, 0, 0}
	} else {
		signBit = 63
		props = []byte{0, 0, 64, 0, 52, 11, 0, 52, 0xFF, 0x03, 0, 0}
	}
	// mantissa normalization "implied" (2) in bits 4-5, sign location in bits 8-15
	bits := uint32(order) | 2<<4 | signBit<<8
	return &Datatype{Version: 1, Class: ClassFloatPoint, ClassBits: bits, Size: size, Properties: props}
}

// NewStringDatatype creates a fixed-length string datatype.
func NewStringDatatype(size uint32, padding StringPadding, charset CharacterSet) *Datatype {
	return &Datatype{
		Version:   1,
		Class:     ClassString,
		ClassBits: uint32(padding) | uint32(charset)<<4,
		Size:      size,
	}
}
