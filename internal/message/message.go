package message

import (
	"fmt"

	"github.com/robert-malhotra/nxsplit/internal/binary"
)

// Type represents an HDF5 header message type.
type Type uint16

// Header message types
const (
	TypeNIL                      Type = 0x0000
	TypeDataspace                Type = 0x0001
	TypeLinkInfo                 Type = 0x0002
	TypeDatatype                 Type = 0x0003
	TypeFillValueOld             Type = 0x0004
	TypeFillValue                Type = 0x0005
	TypeLink                     Type = 0x0006
	TypeExternalDataFiles        Type = 0x0007
	TypeDataLayout               Type = 0x0008
	TypeBogus                    Type = 0x0009
	TypeGroupInfo                Type = 0x000A
	TypeFilterPipeline           Type = 0x000B
	TypeAttribute                Type = 0x000C
	TypeObjectComment            Type = 0x000D
	TypeObjectModTimeOld         Type = 0x000E
	TypeSharedMessageTable       Type = 0x000F
	TypeObjectHeaderContinuation Type = 0x0010
	TypeSymbolTable              Type = 0x0011
	TypeObjectModTime            Type = 0x0012
	TypeBTreeKValues             Type = 0x0013
	TypeDriverInfo               Type = 0x0014
	TypeAttributeInfo            Type = 0x0015
	TypeObjectRefCount           Type = 0x0016
)

// Message flag bits.
const (
	FlagConstant = 0x01
	FlagShared   = 0x02
)

// Message is the interface implemented by all header messages.
type Message interface {
	Type() Type
}

// Encoder is implemented by messages that can be written.
type Encoder interface {
	Message
	Encode(b *binary.Buffer)
}

// EncodeBytes encodes m into a fresh slice.
func EncodeBytes(m Encoder, cfg binary.Config) []byte {
	b := binary.NewBuffer(cfg)
	m.Encode(b)
	return b.Bytes()
}

// Parse decodes a message body. Types without a decoder are returned as *Raw.
// Shared messages are never decoded since their body is a reference.
func Parse(typ Type, data []byte, flags uint8, cfg binary.Config) (Message, error) {
	if flags&FlagShared != 0 {
		return &Raw{MsgType: typ, Data: data}, nil
	}

	var (
		m   Message
		err error
	)
	switch typ {
	case TypeDataspace:
		m, err = parseDataspace(data, cfg)
	case TypeDatatype:
		m, err = parseDatatype(data)
	case TypeDataLayout:
		m, err = parseDataLayout(data, cfg)
	case TypeFilterPipeline:
		m, err = parseFilterPipeline(data)
	case TypeFillValue:
		m, err = parseFillValue(data)
	case TypeAttribute:
		m, err = parseAttribute(data, cfg)
	case TypeLink:
		m, err = parseLink(data, cfg)
	case TypeLinkInfo:
		m, err = parseLinkInfo(data, cfg)
	case TypeSymbolTable:
		m, err = parseSymbolTable(data, cfg)
	case TypeObjectHeaderContinuation:
		m, err = parseContinuation(data, cfg)
	default:
		return &Raw{MsgType: typ, Data: data}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("message type 0x%04x: %w", uint16(typ), err)
	}
	return m, nil
}

// Raw is a message kept as its encoded body.
type Raw struct {
	MsgType Type
	Data    []byte
}

func (m *Raw) Type() Type { return m.MsgType }

func (m *Raw) Encode(b *binary.Buffer) { b.PutBytes(m.Data) }

// Continuation points to another block of header messages.
type Continuation struct {
	Offset uint64
	Length uint64
}

func (m *Continuation) Type() Type { return TypeObjectHeaderContinuation }

func (m *Continuation) Encode(b *binary.Buffer) {
	b.PutOffset(m.Offset)
	b.PutLength(m.Length)
}

func parseContinuation(data []byte, cfg binary.Config) (*Continuation, error) {
	r := binary.NewBytesReader(data, cfg)
	off, err := r.ReadOffset()
	if err != nil {
		return nil, fmt.Errorf("continuation message too short")
	}
	length, err := r.ReadLength()
	if err != nil {
		return nil, fmt.Errorf("continuation message too short")
	}
	return &Continuation{Offset: off, Length: length}, nil
}
