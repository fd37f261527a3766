package message

import (
	"fmt"

	"github.com/robert-malhotra/nxsplit/internal/binary"
)

// Unlimited is the max dimension value of an extendible axis.
const Unlimited = ^uint64(0)

// DataspaceType distinguishes scalar, simple and null dataspaces.
type DataspaceType uint8

const (
	DataspaceScalar DataspaceType = 0
	DataspaceSimple DataspaceType = 1
	DataspaceNull   DataspaceType = 2
)

// Dataspace represents a dataspace message (type 0x0001).
type Dataspace struct {
	Version    uint8
	SpaceType  DataspaceType
	Dimensions []uint64
	MaxDims    []uint64 // nil means equal to Dimensions
}

func (m *Dataspace) Type() Type { return TypeDataspace }

// Rank returns the number of dimensions.
func (m *Dataspace) Rank() int { return len(m.Dimensions) }

// NumElements returns the number of elements in the dataspace.
func (m *Dataspace) NumElements() uint64 {
	switch m.SpaceType {
	case DataspaceNull:
		return 0
	case DataspaceScalar:
		return 1
	}
	n := uint64(1)
	for _, d := range m.Dimensions {
		n *= d
	}
	return n
}

// MaxShape returns the max dimensions, defaulting to the current ones.
func (m *Dataspace) MaxShape() []uint64 {
	if m.MaxDims != nil {
		return m.MaxDims
	}
	return m.Dimensions
}

// WithDims returns a copy with new current dimensions and the same max dims.
func (m *Dataspace) WithDims(dims []uint64) *Dataspace {
	out := &Dataspace{Version: 2, SpaceType: m.SpaceType, Dimensions: dims}
	if m.MaxDims != nil {
		out.MaxDims = append([]uint64(nil), m.MaxDims...)
	}
	return out
}

// NewDataspace creates a simple dataspace. maxDims may be nil.
func NewDataspace(dims, maxDims []uint64) *Dataspace {
	return &Dataspace{
		Version:    2,
		SpaceType:  DataspaceSimple,
		Dimensions: dims,
		MaxDims:    maxDims,
	}
}

// NewScalarDataspace creates a scalar dataspace.
func NewScalarDataspace() *Dataspace {
	return &Dataspace{Version: 2, SpaceType: DataspaceScalar}
}

// Encode writes a version 2 dataspace message.
func (m *Dataspace) Encode(b *binary.Buffer) {
	b.PutUint8(2)
	b.PutUint8(uint8(len(m.Dimensions)))
	var flags uint8
	if m.MaxDims != nil {
		flags |= 0x01
	}
	b.PutUint8(flags)
	b.PutUint8(uint8(m.SpaceType))
	for _, d := range m.Dimensions {
		b.PutLength(d)
	}
	if m.MaxDims != nil {
		for _, d := range m.MaxDims {
			b.PutLength(d)
		}
	}
}

/*
Version 1: version, rank, flags, reserved(5), dims, [maxdims], [permutation]
Version 2: version, rank, flags, type, dims, [maxdims]
*/
func parseDataspace(data []byte, cfg binary.Config) (*Dataspace, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("dataspace message too short")
	}
	ds := &Dataspace{Version: data[0]}
	rank := int(data[1])
	flags := data[2]

	var start int
	switch ds.Version {
	case 1:
		start = 8
		ds.SpaceType = DataspaceSimple
		if rank == 0 {
			ds.SpaceType = DataspaceScalar
		}
	case 2:
		start = 4
		ds.SpaceType = DataspaceType(data[3])
	default:
		return nil, fmt.Errorf("unsupported dataspace version %d", ds.Version)
	}
	if ds.SpaceType != DataspaceSimple {
		return ds, nil
	}

	r := binary.NewBytesReader(data, cfg)
	r.Skip(int64(start))
	read := func() ([]uint64, error) {
		dims := make([]uint64, rank)
		for i := range dims {
			v, err := r.ReadLength()
			if err != nil {
				return nil, fmt.Errorf("dataspace message truncated")
			}
			dims[i] = v
		}
		return dims, nil
	}

	var err error
	if ds.Dimensions, err = read(); err != nil {
		return nil, err
	}
	if flags&0x01 != 0 {
		if ds.MaxDims, err = read(); err != nil {
			return nil, err
		}
	}
	return ds, nil
}
