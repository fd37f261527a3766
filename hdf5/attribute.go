package hdf5

import (
	"fmt"
	"reflect"

	"github.com/robert-malhotra/nxsplit/internal/dtype"
	"github.com/robert-malhotra/nxsplit/internal/heap"
	"github.com/robert-malhotra/nxsplit/internal/message"
	"github.com/robert-malhotra/nxsplit/internal/object"
)

// Attribute is an attribute attached to a group or dataset.
type Attribute struct {
	msg  *message.Attribute
	file *File // resolves variable-length strings
}

// Name returns the attribute name.
func (a *Attribute) Name() string {
	return a.msg.Name
}

// Shape returns the dimensions of the value, nil for scalars.
func (a *Attribute) Shape() []uint64 {
	if a.msg.Dataspace == nil || a.msg.Dataspace.SpaceType != message.DataspaceSimple {
		return nil
	}
	return append([]uint64(nil), a.msg.Dataspace.Dimensions...)
}

// Datatype returns the element type.
func (a *Attribute) Datatype() *Datatype {
	return &Datatype{msg: a.msg.Datatype}
}

// Raw returns the encoded value.
func (a *Attribute) Raw() []byte {
	return a.msg.Data
}

func (a *Attribute) numElements() uint64 {
	if a.msg.Dataspace == nil {
		return 1
	}
	return a.msg.Dataspace.NumElements()
}

// Strings returns the value of a fixed or variable-length string attribute.
func (a *Attribute) Strings() ([]string, error) {
	dt := a.msg.Datatype
	if !dt.IsVarLenString() {
		return dtype.Strings(dt, a.msg.Data)
	}

	// Each element is a length followed by a global heap ID.
	cfg := a.file.cfg
	n := int(a.numElements())
	elem := 4 + cfg.OffsetSize + 4
	if len(a.msg.Data) < n*elem {
		return nil, fmt.Errorf("attribute %s: variable-length data truncated", a.msg.Name)
	}
	out := make([]string, n)
	for i := range out {
		b := a.msg.Data[i*elem:]
		size := cfg.Uint(b, 4)
		if size == 0 {
			continue
		}
		id, err := heap.ParseGlobalHeapID(b[4:], cfg)
		if err != nil {
			return nil, err
		}
		obj, err := heap.ReadGlobalObject(a.file.reader, id)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", a.msg.Name, err)
		}
		out[i] = string(obj[:min(uint64(len(obj)), size)])
	}
	return out, nil
}

// String returns the first element of a string attribute.
func (a *Attribute) String() (string, error) {
	s, err := a.Strings()
	if err != nil {
		return "", err
	}
	if len(s) == 0 {
		return "", nil
	}
	return s[0], nil
}

// Float64s converts a numeric value to float64.
func (a *Attribute) Float64s() ([]float64, error) {
	return dtype.Decode[float64](a.msg.Datatype, a.msg.Data)
}

// Int64s converts a numeric value to int64.
func (a *Attribute) Int64s() ([]int64, error) {
	return dtype.Decode[int64](a.msg.Datatype, a.msg.Data)
}

// Value returns the value as []string, []int64 or []float64.
func (a *Attribute) Value() (any, error) {
	dt := a.msg.Datatype
	switch {
	case dt.Class == message.ClassString || dt.IsVarLenString():
		return a.Strings()
	case dt.Class == message.ClassFixedPoint:
		return a.Int64s()
	case dt.Class == message.ClassFloatPoint:
		return a.Float64s()
	}
	return nil, fmt.Errorf("%w: attribute %s of type %s", ErrUnsupported, a.msg.Name, dt)
}

func (f *File) attributes(h *object.Header) []*Attribute {
	msgs := h.Attributes()
	out := make([]*Attribute, len(msgs))
	for i, m := range msgs {
		out[i] = &Attribute{msg: m, file: f}
	}
	return out
}

func findAttr(attrs []*Attribute, path, name string) (*Attribute, error) {
	for _, a := range attrs {
		if a.Name() == name {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%s: attribute %s: %w", path, name, ErrNotFound)
}

// encodeAttribute builds an attribute message from a string, a []string, or
// a numeric scalar or slice.
func encodeAttribute(name string, value any) (*message.Attribute, error) {
	switch v := value.(type) {
	case string:
		return &message.Attribute{
			Name:      name,
			Datatype:  StringType(len(v) + 1).msg,
			Dataspace: message.NewScalarDataspace(),
			Data:      append([]byte(v), 0),
		}, nil
	case []string:
		var size int
		for _, s := range v {
			size = max(size, len(s)+1)
		}
		data := make([]byte, size*len(v))
		for i, s := range v {
			copy(data[i*size:], s)
		}
		return &message.Attribute{
			Name:      name,
			Datatype:  StringType(size).msg,
			Dataspace: message.NewDataspace([]uint64{uint64(len(v))}, nil),
			Data:      data,
		}, nil
	}

	rv := reflect.ValueOf(value)
	scalar := rv.Kind() != reflect.Slice
	if scalar {
		slice := reflect.MakeSlice(reflect.SliceOf(rv.Type()), 1, 1)
		slice.Index(0).Set(rv)
		rv = slice
	}
	var (
		dt   *Datatype
		data []byte
		err  error
	)
	switch v := rv.Interface().(type) {
	case []int8:
		dt, data, err = encodeNumeric(v)
	case []int16:
		dt, data, err = encodeNumeric(v)
	case []int32:
		dt, data, err = encodeNumeric(v)
	case []int64:
		dt, data, err = encodeNumeric(v)
	case []int:
		dt, data, err = encodeNumeric(v)
	case []uint8:
		dt, data, err = encodeNumeric(v)
	case []uint16:
		dt, data, err = encodeNumeric(v)
	case []uint32:
		dt, data, err = encodeNumeric(v)
	case []uint64:
		dt, data, err = encodeNumeric(v)
	case []float32:
		dt, data, err = encodeNumeric(v)
	case []float64:
		dt, data, err = encodeNumeric(v)
	default:
		return nil, fmt.Errorf("%w: attribute %s of Go type %T", ErrUnsupported, name, value)
	}
	if err != nil {
		return nil, err
	}
	space := message.NewScalarDataspace()
	if !scalar {
		space = message.NewDataspace([]uint64{uint64(rv.Len())}, nil)
	}
	return &message.Attribute{Name: name, Datatype: dt.msg, Dataspace: space, Data: data}, nil
}

func encodeNumeric[T Number](values []T) (*Datatype, []byte, error) {
	dt := TypeOf[T]()
	data, err := dtype.Encode(dt.msg, values)
	return dt, data, err
}
