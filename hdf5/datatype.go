package hdf5

import (
	"fmt"
	"reflect"

	"github.com/robert-malhotra/nxsplit/internal/binary"
	"github.com/robert-malhotra/nxsplit/internal/dtype"
	"github.com/robert-malhotra/nxsplit/internal/message"
)

// Number is the set of Go types numeric data converts to.
type Number interface {
	dtype.Number
}

// Datatype is the element type of a dataset or attribute.
type Datatype struct {
	msg *message.Datatype
}

// IntType returns a little-endian integer type of 1, 2, 4 or 8 bytes.
func IntType(size int, signed bool) *Datatype {
	return &Datatype{msg: message.NewFixedPointDatatype(uint32(size), signed, message.LittleEndian)}
}

// FloatType returns a little-endian IEEE float type of 4 or 8 bytes.
func FloatType(size int) *Datatype {
	return &Datatype{msg: message.NewFloatDatatype(uint32(size), message.LittleEndian)}
}

// StringType returns a null-terminated fixed-length ASCII string type.
func StringType(size int) *Datatype {
	return &Datatype{msg: message.NewStringDatatype(uint32(size), message.PadNullTerm, message.CharsetASCII)}
}

// TypeOf returns the datatype matching T.
func TypeOf[T Number]() *Datatype {
	t := reflect.TypeOf((*T)(nil)).Elem()
	switch t.Kind() {
	case reflect.Float32, reflect.Float64:
		return FloatType(int(t.Size()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return IntType(int(t.Size()), true)
	}
	return IntType(int(t.Size()), false)
}

// Size returns the element size in bytes.
func (t *Datatype) Size() int {
	return int(t.msg.Size)
}

// Class returns the datatype class name, e.g. "integer" or "float".
func (t *Datatype) Class() string {
	return t.msg.Class.String()
}

// IsNumeric reports whether elements are integers or floats.
func (t *Datatype) IsNumeric() bool {
	return dtype.IsNumeric(t.msg)
}

// Equal reports whether both types encode elements identically.
func (t *Datatype) Equal(o *Datatype) bool {
	if t == nil || o == nil {
		return t == o
	}
	return t.msg.Equal(o.msg)
}

func (t *Datatype) String() string {
	return t.msg.String()
}

// Bytes returns the encoded datatype message.
func (t *Datatype) Bytes() []byte {
	return message.EncodeBytes(t.msg, binary.DefaultConfig())
}

// EncodeInt encodes v as one element. Negative values wrap for unsigned
// types, so -1 becomes the largest value.
func (t *Datatype) EncodeInt(v int64) ([]byte, error) {
	if !t.IsNumeric() {
		return nil, fmt.Errorf("%w: cannot encode an integer as %s", ErrUnsupported, t)
	}
	return dtype.Encode(t.msg, []int64{v})
}

// Parse encodes the text of one value as an element. "max" and "min" name
// the extremes of integer types.
func (t *Datatype) Parse(text string) ([]byte, error) {
	return dtype.ParseValue(t.msg, text)
}
