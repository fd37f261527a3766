package object

import (
	"errors"

	"github.com/robert-malhotra/nxsplit/internal/binary"
	"github.com/robert-malhotra/nxsplit/internal/message"
)

var (
	ErrInvalidHeader      = errors.New("invalid object header")
	ErrUnsupportedVersion = errors.New("unsupported object header version")
	ErrChecksumMismatch   = errors.New("object header checksum mismatch")
)

const (
	signatureHeader       = "OHDR"
	signatureContinuation = "OCHK"
)

// Body is an encoded header message.
type Body struct {
	Type  message.Type
	Flags uint8
	Data  []byte
}

// BodyOf encodes m.
func BodyOf(m message.Encoder, cfg binary.Config) Body {
	return Body{Type: m.Type(), Data: message.EncodeBytes(m, cfg)}
}

// Entry is a message read from a header.
type Entry struct {
	Body
	Msg   message.Message
	Pos   int64 // absolute file position of Data
	Chunk int   // index into Header.Chunks
}

// Chunk is a contiguous block of header messages. For version 2 headers the
// Size bytes starting at Pos are followed by their checksum.
type Chunk struct {
	Pos         int64
	Size        int64
	Checksummed bool
}

// Header is a parsed object header.
type Header struct {
	Version  uint8
	Address  uint64
	Flags    uint8
	RefCount uint32
	Entries  []Entry
	Chunks   []Chunk
}

// Message returns the first message of the given type, or nil.
func (h *Header) Message(typ message.Type) message.Message {
	for _, e := range h.Entries {
		if e.Type == typ {
			return e.Msg
		}
	}
	return nil
}

// Messages returns all messages of the given type.
func (h *Header) Messages(typ message.Type) []message.Message {
	var out []message.Message
	for _, e := range h.Entries {
		if e.Type == typ {
			out = append(out, e.Msg)
		}
	}
	return out
}

// Bodies returns the encoded messages except those of the listed types.
// Continuations and NIL messages are always dropped.
func (h *Header) Bodies(except ...message.Type) []Body {
	var out []Body
next:
	for _, e := range h.Entries {
		if e.Type == message.TypeObjectHeaderContinuation || e.Type == message.TypeNIL {
			continue
		}
		for _, t := range except {
			if e.Type == t {
				continue next
			}
		}
		out = append(out, e.Body)
	}
	return out
}

func (h *Header) Dataspace() *message.Dataspace {
	m, _ := h.Message(message.TypeDataspace).(*message.Dataspace)
	return m
}

func (h *Header) Datatype() *message.Datatype {
	m, _ := h.Message(message.TypeDatatype).(*message.Datatype)
	return m
}

func (h *Header) DataLayout() *message.DataLayout {
	m, _ := h.Message(message.TypeDataLayout).(*message.DataLayout)
	return m
}

func (h *Header) FilterPipeline() *message.FilterPipeline {
	m, _ := h.Message(message.TypeFilterPipeline).(*message.FilterPipeline)
	return m
}

func (h *Header) FillValue() *message.FillValue {
	m, _ := h.Message(message.TypeFillValue).(*message.FillValue)
	return m
}

func (h *Header) LinkInfo() *message.LinkInfo {
	m, _ := h.Message(message.TypeLinkInfo).(*message.LinkInfo)
	return m
}

func (h *Header) SymbolTable() *message.SymbolTable {
	m, _ := h.Message(message.TypeSymbolTable).(*message.SymbolTable)
	return m
}

// Links returns the link messages of a compact group with the index of each
// in Entries.
func (h *Header) Links() ([]*message.Link, []int) {
	var (
		links []*message.Link
		idx   []int
	)
	for i, e := range h.Entries {
		if l, ok := e.Msg.(*message.Link); ok {
			links = append(links, l)
			idx = append(idx, i)
		}
	}
	return links, idx
}

// Attributes returns the decoded attribute messages.
func (h *Header) Attributes() []*message.Attribute {
	var out []*message.Attribute
	for _, e := range h.Entries {
		if a, ok := e.Msg.(*message.Attribute); ok {
			out = append(out, a)
		}
	}
	return out
}

// IsGroup reports whether the header describes a group.
func (h *Header) IsGroup() bool {
	return h.Message(message.TypeSymbolTable) != nil ||
		h.Message(message.TypeLinkInfo) != nil ||
		h.Message(message.TypeLink) != nil
}

// IsDataset reports whether the header describes a dataset.
func (h *Header) IsDataset() bool {
	return h.Message(message.TypeDataLayout) != nil
}
