package filter

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/nxsplit/internal/message"
)

// ErrUnsupported reports a filter with no implementation.
var ErrUnsupported = errors.New("unsupported filter")

// Filter transforms chunk data.
type Filter interface {
	ID() message.FilterID
	Decode(input []byte) ([]byte, error)
	Encode(input []byte) ([]byte, error)
}

// Registry maps filter IDs to constructors taking the client data and the
// dataset element size.
var Registry = map[message.FilterID]func(cd []uint32, elemSize int) Filter{
	message.FilterDeflate:    func(cd []uint32, _ int) Filter { return NewDeflate(cd) },
	message.FilterShuffle:    func(cd []uint32, size int) Filter { return NewShuffle(cd, size) },
	message.FilterFletcher32: func([]uint32, int) Filter { return Fletcher32{} },
	message.FilterLZ4:        func(cd []uint32, _ int) Filter { return NewLZ4(cd) },
	message.FilterZstd:       func(cd []uint32, _ int) Filter { return NewZstd(cd) },
}

var names = map[message.FilterID]string{
	message.FilterSZIP:        "szip",
	message.FilterNBit:        "n-bit",
	message.FilterScaleOffset: "scale-offset",
}

// New creates a filter. Optional filters without an implementation return
// nil and no error.
func New(info message.Filter, elemSize int) (Filter, error) {
	ctor, ok := Registry[info.ID]
	if !ok {
		if info.Optional() {
			return nil, nil
		}
		name := names[info.ID]
		if name == "" {
			name = info.Name
		}
		return nil, fmt.Errorf("%w: %d %s", ErrUnsupported, info.ID, name)
	}
	return ctor(info.ClientData, elemSize), nil
}

// Supported reports whether every filter of the pipeline can be encoded.
func Supported(fp *message.FilterPipeline) bool {
	if fp == nil {
		return true
	}
	for _, f := range fp.Filters {
		if _, ok := Registry[f.ID]; !ok {
			return false
		}
	}
	return true
}
