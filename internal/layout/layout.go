package layout

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/nxsplit/internal/binary"
	"github.com/robert-malhotra/nxsplit/internal/message"
)

// ErrVirtual is returned for virtual layouts, which have no raw storage.
var ErrVirtual = errors.New("virtual layout has no raw storage")

// Storage describes the raw data of a dataset.
type Storage struct {
	Layout   *message.DataLayout
	Dims     []uint64
	MaxDims  []uint64
	ElemSize int
	Filters  *message.FilterPipeline
	Fill     []byte // one element, nil for zeros
}

// NumElements returns the number of elements in the dataset.
func (s Storage) NumElements() uint64 {
	n := uint64(1)
	for _, d := range s.Dims {
		n *= d
	}
	return n
}

// ReadAll reads the whole dataset.
func ReadAll(r *binary.Reader, s Storage) ([]byte, error) {
	return ReadSlice(r, s, make([]uint64, len(s.Dims)), s.Dims)
}

// ReadSlice reads the box [start, start+count) into a row-major buffer.
// Positions with no stored data hold the fill value.
func ReadSlice(r *binary.Reader, s Storage, start, count []uint64) ([]byte, error) {
	if s.Layout == nil {
		return nil, fmt.Errorf("dataset has no layout")
	}
	if len(s.Dims) == 0 && len(start) == 0 && len(count) == 0 {
		// scalar
		s.Dims, s.MaxDims = []uint64{1}, []uint64{1}
		start, count = []uint64{0}, []uint64{1}
	}
	if len(start) != len(s.Dims) || len(count) != len(s.Dims) {
		return nil, fmt.Errorf("selection rank %d does not match dataset rank %d", len(start), len(s.Dims))
	}
	for d := range s.Dims {
		if start[d]+count[d] > s.Dims[d] {
			return nil, fmt.Errorf("selection [%d,%d) exceeds dimension %d of size %d", start[d], start[d]+count[d], d, s.Dims[d])
		}
	}

	n := uint64(1)
	for _, c := range count {
		n *= c
	}
	out := make([]byte, n*uint64(s.ElemSize))
	if n == 0 {
		return out, nil
	}

	switch s.Layout.Class {
	case message.LayoutCompact:
		return out, CopyBox(out, count, start, s.Layout.CompactData, s.Dims, make([]uint64, len(s.Dims)), s.ElemSize)
	case message.LayoutContiguous:
		fill(out, s.Fill)
		return out, readContiguous(r, s, start, count, out)
	case message.LayoutChunked:
		fill(out, s.Fill)
		return out, readChunked(r, s, start, count, out)
	case message.LayoutVirtual:
		return nil, ErrVirtual
	}
	return nil, fmt.Errorf("unsupported layout class %s", s.Layout.Class)
}

func fill(buf, value []byte) {
	if len(value) == 0 {
		return
	}
	for i := 0; i+len(value) <= len(buf); i += len(value) {
		copy(buf[i:], value)
	}
}

func readContiguous(r *binary.Reader, s Storage, start, count []uint64, out []byte) error {
	if r.IsUndefinedOffset(s.Layout.Address) {
		// never written
		return nil
	}
	rank := len(s.Dims)
	esz := uint64(s.ElemSize)
	stride := strides(s.Dims, esz)
	rowBytes := int(count[rank-1] * esz)

	var dst uint64
	return eachRow(start, count, func(pos []uint64) error {
		var off uint64
		for d := range pos {
			off += pos[d] * stride[d]
		}
		data, err := r.At(int64(s.Layout.Address + off)).ReadBytes(rowBytes)
		if err != nil {
			return fmt.Errorf("reading contiguous data: %w", err)
		}
		copy(out[dst:], data)
		dst += uint64(rowBytes)
		return nil
	})
}

// strides returns the byte strides of a row-major array.
func strides(dims []uint64, esz uint64) []uint64 {
	s := make([]uint64, len(dims))
	acc := esz
	for d := len(dims) - 1; d >= 0; d-- {
		s[d] = acc
		acc *= dims[d]
	}
	return s
}

// eachRow calls fn with the origin of every row (run along the last axis) of
// the box, in row-major order.
func eachRow(start, count []uint64, fn func(pos []uint64) error) error {
	rank := len(start)
	pos := append([]uint64(nil), start...)
	for {
		if err := fn(pos); err != nil {
			return err
		}
		d := rank - 2
		for ; d >= 0; d-- {
			pos[d]++
			if pos[d] < start[d]+count[d] {
				break
			}
			pos[d] = start[d]
		}
		if d < 0 {
			return nil
		}
	}
}

// CopyBox copies the intersection of two boxes. dst holds the box
// [dstStart, dstStart+dstCount) and src the box [srcStart, srcStart+srcCount),
// both in the same coordinate space.
func CopyBox(dst []byte, dstCount, dstStart []uint64, src []byte, srcCount, srcStart []uint64, esz int) error {
	rank := len(dstCount)
	lo := make([]uint64, rank)
	cnt := make([]uint64, rank)
	for d := 0; d < rank; d++ {
		a := max(dstStart[d], srcStart[d])
		b := min(dstStart[d]+dstCount[d], srcStart[d]+srcCount[d])
		if a >= b {
			return nil
		}
		lo[d], cnt[d] = a, b-a
	}
	e := uint64(esz)
	ds := strides(dstCount, e)
	ss := strides(srcCount, e)
	row := cnt[rank-1] * e
	return eachRow(lo, cnt, func(pos []uint64) error {
		var di, si uint64
		for d := range pos {
			di += (pos[d] - dstStart[d]) * ds[d]
			si += (pos[d] - srcStart[d]) * ss[d]
		}
		if si+row > uint64(len(src)) || di+row > uint64(len(dst)) {
			return fmt.Errorf("data shorter than its dataspace")
		}
		copy(dst[di:di+row], src[si:si+row])
		return nil
	})
}
