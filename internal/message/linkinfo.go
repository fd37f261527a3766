package message

import (
	"fmt"

	"github.com/robert-malhotra/nxsplit/internal/binary"
)

// LinkInfo represents a link info message (type 0x0002). A group with a
// defined FractalHeapAddress stores its links densely.
type LinkInfo struct {
	MaxCreationIndex   int64
	HasMaxIndex        bool
	IndexedOrder       bool
	FractalHeapAddress uint64
	NameIndexAddress   uint64
	OrderIndexAddress  uint64
}

func (m *LinkInfo) Type() Type { return TypeLinkInfo }

// Dense reports whether links are stored in a fractal heap.
func (m *LinkInfo) Dense(cfg binary.Config) bool {
	return !cfg.IsUndefined(m.FractalHeapAddress)
}

func parseLinkInfo(data []byte, cfg binary.Config) (*LinkInfo, error) {
	r := binary.NewBytesReader(data, cfg)
	version, err := r.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("link info message too short")
	}
	if version != 0 {
		return nil, fmt.Errorf("unsupported link info version %d", version)
	}
	flags, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	m := &LinkInfo{}
	if flags&0x01 != 0 {
		v, err := r.ReadUint64()
		if err != nil {
			return nil, err
		}
		m.MaxCreationIndex = int64(v)
		m.HasMaxIndex = true
	}
	if m.FractalHeapAddress, err = r.ReadOffset(); err != nil {
		return nil, err
	}
	if m.NameIndexAddress, err = r.ReadOffset(); err != nil {
		return nil, err
	}
	if flags&0x02 != 0 {
		m.IndexedOrder = true
		if m.OrderIndexAddress, err = r.ReadOffset(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *LinkInfo) Encode(b *binary.Buffer) {
	var flags uint8
	if m.HasMaxIndex {
		flags |= 0x01
	}
	if m.IndexedOrder {
		flags |= 0x02
	}
	b.PutUint8(0)
	b.PutUint8(flags)
	if m.HasMaxIndex {
		b.PutUint64(uint64(m.MaxCreationIndex))
	}
	b.PutOffset(m.FractalHeapAddress)
	b.PutOffset(m.NameIndexAddress)
	if m.IndexedOrder {
		b.PutOffset(m.OrderIndexAddress)
	}
}

// NewCompactLinkInfo creates link info for a group whose links live in its
// object header.
func NewCompactLinkInfo(cfg binary.Config) *LinkInfo {
	return &LinkInfo{
		FractalHeapAddress: cfg.Undefined(),
		NameIndexAddress:   cfg.Undefined(),
	}
}

// GroupInfo represents an empty group info message (type 0x000A) using the
// library defaults for link storage thresholds.
type GroupInfo struct{}

func (m *GroupInfo) Type() Type { return TypeGroupInfo }

func (m *GroupInfo) Encode(b *binary.Buffer) {
	b.PutUint8(0)
	b.PutUint8(0)
}

// SymbolTable represents a symbol table message (type 0x0011) of an old
// style group.
type SymbolTable struct {
	BTreeAddress uint64
	HeapAddress  uint64
}

func (m *SymbolTable) Type() Type { return TypeSymbolTable }

func (m *SymbolTable) Encode(b *binary.Buffer) {
	b.PutOffset(m.BTreeAddress)
	b.PutOffset(m.HeapAddress)
}

func parseSymbolTable(data []byte, cfg binary.Config) (*SymbolTable, error) {
	r := binary.NewBytesReader(data, cfg)
	bt, err := r.ReadOffset()
	if err != nil {
		return nil, fmt.Errorf("symbol table message too short")
	}
	heap, err := r.ReadOffset()
	if err != nil {
		return nil, fmt.Errorf("symbol table message too short")
	}
	return &SymbolTable{BTreeAddress: bt, HeapAddress: heap}, nil
}
