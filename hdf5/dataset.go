package hdf5

import (
	"fmt"
	"path"

	"github.com/robert-malhotra/nxsplit/internal/dtype"
	"github.com/robert-malhotra/nxsplit/internal/layout"
	"github.com/robert-malhotra/nxsplit/internal/message"
	"github.com/robert-malhotra/nxsplit/internal/object"
)

// Dataset is an HDF5 dataset.
type Dataset struct {
	file   *File
	path   string
	addr   uint64
	header *object.Header
}

func (f *File) openDataset(addr uint64, p string) (*Dataset, error) {
	h, err := f.header(addr)
	if err != nil {
		return nil, err
	}
	if !h.IsDataset() {
		return nil, fmt.Errorf("%s: %w", p, ErrNotDataset)
	}
	if h.Dataspace() == nil || h.Datatype() == nil {
		return nil, fmt.Errorf("%s: dataset header lacks dataspace or datatype", p)
	}
	return &Dataset{file: f, path: p, addr: addr, header: h}, nil
}

// Name returns the last component of the dataset path.
func (d *Dataset) Name() string {
	return path.Base(d.path)
}

// Path returns the path the dataset was opened with.
func (d *Dataset) Path() string {
	return d.path
}

// Address returns the address of the dataset's object header. Links that
// are aliases of one dataset share it.
func (d *Dataset) Address() uint64 {
	return d.addr
}

// File returns the file holding the dataset.
func (d *Dataset) File() *File {
	return d.file
}

// Shape returns the current dimensions.
func (d *Dataset) Shape() []uint64 {
	return append([]uint64(nil), d.header.Dataspace().Dimensions...)
}

// MaxShape returns the maximum dimensions. Unlimited axes are Unlimited.
func (d *Dataset) MaxShape() []uint64 {
	return append([]uint64(nil), d.header.Dataspace().MaxShape()...)
}

// Rank returns the number of dimensions.
func (d *Dataset) Rank() int {
	return d.header.Dataspace().Rank()
}

// NumElements returns the number of elements.
func (d *Dataset) NumElements() uint64 {
	return d.header.Dataspace().NumElements()
}

// ElementSize returns the size of one element in bytes.
func (d *Dataset) ElementSize() int {
	return int(d.header.Datatype().Size)
}

// Datatype returns the element type.
func (d *Dataset) Datatype() *Datatype {
	return &Datatype{msg: d.header.Datatype()}
}

// DatatypeBytes returns the encoded datatype message.
func (d *Dataset) DatatypeBytes() []byte {
	return d.Datatype().Bytes()
}

// Layout returns the storage layout class: "compact", "contiguous",
// "chunked" or "virtual".
func (d *Dataset) Layout() string {
	return d.header.DataLayout().Class.String()
}

// ChunkShape returns the chunk dimensions, nil unless chunked.
func (d *Dataset) ChunkShape() []uint64 {
	l := d.header.DataLayout()
	if l.Class != message.LayoutChunked {
		return nil
	}
	return append([]uint64(nil), l.ChunkShape()...)
}

// IsVirtual reports whether the dataset maps regions of other datasets.
func (d *Dataset) IsVirtual() bool {
	return d.header.DataLayout().IsVirtual()
}

// FillValue returns the encoded fill value, nil when none is defined.
func (d *Dataset) FillValue() []byte {
	if fv := d.header.FillValue(); fv != nil && fv.Defined {
		return fv.Value
	}
	return nil
}

func (d *Dataset) storage() layout.Storage {
	ds := d.header.Dataspace()
	return layout.Storage{
		Layout:   d.header.DataLayout(),
		Dims:     ds.Dimensions,
		MaxDims:  ds.MaxShape(),
		ElemSize: d.ElementSize(),
		Filters:  d.header.FilterPipeline(),
		Fill:     d.FillValue(),
	}
}

// ReadRaw reads every element in row-major order without conversion.
func (d *Dataset) ReadRaw() ([]byte, error) {
	return d.ReadSlice(make([]uint64, d.Rank()), d.Shape())
}

// ReadSlice reads the hyperslab of count elements from start.
func (d *Dataset) ReadSlice(start, count []uint64) ([]byte, error) {
	if d.file.closed {
		return nil, ErrClosed
	}
	var (
		data []byte
		err  error
	)
	if d.IsVirtual() {
		data, err = d.readVirtual(start, count)
	} else {
		data, err = layout.ReadSlice(d.file.reader, d.storage(), start, count)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.path, err)
	}
	return data, nil
}

// Read reads the whole dataset into dest, a pointer to a slice of a numeric
// type or to []string.
func (d *Dataset) Read(dest any) error {
	raw, err := d.ReadRaw()
	if err != nil {
		return err
	}
	dt := d.header.Datatype()
	switch v := dest.(type) {
	case *[]float64:
		return decodeInto(dt, raw, v)
	case *[]float32:
		return decodeInto(dt, raw, v)
	case *[]int64:
		return decodeInto(dt, raw, v)
	case *[]int32:
		return decodeInto(dt, raw, v)
	case *[]int16:
		return decodeInto(dt, raw, v)
	case *[]int8:
		return decodeInto(dt, raw, v)
	case *[]uint64:
		return decodeInto(dt, raw, v)
	case *[]uint32:
		return decodeInto(dt, raw, v)
	case *[]uint16:
		return decodeInto(dt, raw, v)
	case *[]uint8:
		return decodeInto(dt, raw, v)
	case *[]string:
		s, err := dtype.Strings(dt, raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.path, err)
		}
		*v = s
		return nil
	}
	return fmt.Errorf("%w: read into %T", ErrUnsupported, dest)
}

// ReadNumeric reads the whole dataset converted to T.
func ReadNumeric[T Number](d *Dataset) ([]T, error) {
	var out []T
	raw, err := d.ReadRaw()
	if err != nil {
		return nil, err
	}
	if err := decodeInto(d.header.Datatype(), raw, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", d.path, err)
	}
	return out, nil
}

func decodeInto[T Number](dt *message.Datatype, raw []byte, dest *[]T) error {
	v, err := dtype.Decode[T](dt, raw)
	if err != nil {
		return err
	}
	*dest = v
	return nil
}

// Attrs returns the attributes of the dataset.
func (d *Dataset) Attrs() []*Attribute {
	return d.file.attributes(d.header)
}

// Attr returns the attribute called name.
func (d *Dataset) Attr(name string) (*Attribute, error) {
	return findAttr(d.Attrs(), d.path, name)
}
