package message

import (
	"fmt"

	"github.com/robert-malhotra/nxsplit/internal/binary"
)

// FilterID identifies a filter in a pipeline.
type FilterID uint16

const (
	FilterDeflate     FilterID = 1
	FilterShuffle     FilterID = 2
	FilterFletcher32  FilterID = 3
	FilterSZIP        FilterID = 4
	FilterNBit        FilterID = 5
	FilterScaleOffset FilterID = 6
	FilterLZ4         FilterID = 32004
	FilterZstd        FilterID = 32015
)

// FilterOptional marks a filter whose failure does not fail the write.
const FilterOptional = 0x0001

// Filter is one stage of a pipeline.
type Filter struct {
	ID         FilterID
	Name       string
	Flags      uint16
	ClientData []uint32
}

// Optional reports whether the filter may be skipped.
func (f Filter) Optional() bool { return f.Flags&FilterOptional != 0 }

// FilterPipeline represents a filter pipeline message (type 0x000B).
type FilterPipeline struct {
	Version uint8
	Filters []Filter
}

func (m *FilterPipeline) Type() Type { return TypeFilterPipeline }

// Has reports whether the pipeline contains the filter.
func (m *FilterPipeline) Has(id FilterID) bool {
	for _, f := range m.Filters {
		if f.ID == id {
			return true
		}
	}
	return false
}

func parseFilterPipeline(data []byte) (*FilterPipeline, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("filter pipeline message too short")
	}
	m := &FilterPipeline{Version: data[0]}
	n := int(data[1])
	r := binary.NewBytesReader(data, binary.DefaultConfig())

	switch m.Version {
	case 1:
		r.Skip(8)
	case 2:
		r.Skip(2)
	default:
		return nil, fmt.Errorf("unsupported filter pipeline version %d", m.Version)
	}

	for i := 0; i < n; i++ {
		f, err := m.parseFilter(r)
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
		m.Filters = append(m.Filters, f)
	}
	return m, nil
}

func (m *FilterPipeline) parseFilter(r *binary.Reader) (Filter, error) {
	var f Filter
	id, err := r.ReadUint16()
	if err != nil {
		return f, err
	}
	f.ID = FilterID(id)

	var nameLen uint16
	if m.Version == 1 || id >= 256 {
		if nameLen, err = r.ReadUint16(); err != nil {
			return f, err
		}
	}
	if f.Flags, err = r.ReadUint16(); err != nil {
		return f, err
	}
	nvals, err := r.ReadUint16()
	if err != nil {
		return f, err
	}
	if nameLen > 0 {
		name, err := r.ReadBytes(int(nameLen))
		if err != nil {
			return f, err
		}
		for i, c := range name {
			if c == 0 {
				name = name[:i]
				break
			}
		}
		f.Name = string(name)
	}

	f.ClientData = make([]uint32, nvals)
	for i := range f.ClientData {
		if f.ClientData[i], err = r.ReadUint32(); err != nil {
			return f, err
		}
	}
	if m.Version == 1 && nvals%2 == 1 {
		r.Skip(4)
	}
	return f, nil
}

// Encode writes a version 2 pipeline.
func (m *FilterPipeline) Encode(b *binary.Buffer) {
	b.PutUint8(2)
	b.PutUint8(uint8(len(m.Filters)))
	for _, f := range m.Filters {
		b.PutUint16(uint16(f.ID))
		name := f.Name
		if f.ID >= 256 {
			if name != "" {
				name += "\x00"
			}
			b.PutUint16(uint16(len(name)))
		}
		b.PutUint16(f.Flags)
		b.PutUint16(uint16(len(f.ClientData)))
		if f.ID >= 256 {
			b.PutString(name)
		}
		for _, v := range f.ClientData {
			b.PutUint32(v)
		}
	}
}
