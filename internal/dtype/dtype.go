package dtype

import (
	"encoding/binary"
	"fmt"

	"github.com/robert-malhotra/nxsplit/internal/message"
)

// Number is the set of Go types numeric data converts to.
type Number interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~int |
		~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uint |
		~float32 | ~float64
}

// ByteOrder returns the byte order of the datatype.
func ByteOrder(dt *message.Datatype) binary.ByteOrder {
	if dt.ByteOrder() == message.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// IsNumeric reports whether the datatype is an integer or a float.
func IsNumeric(dt *message.Datatype) bool {
	return dt.Class == message.ClassFixedPoint || dt.Class == message.ClassFloatPoint
}

func checkNumeric(dt *message.Datatype) error {
	if dt == nil {
		return fmt.Errorf("nil datatype")
	}
	switch {
	case dt.Class == message.ClassFixedPoint && (dt.Size == 1 || dt.Size == 2 || dt.Size == 4 || dt.Size == 8):
		return nil
	case dt.Class == message.ClassFloatPoint && (dt.Size == 4 || dt.Size == 8):
		return nil
	}
	return fmt.Errorf("unsupported datatype %s for numeric conversion", dt)
}
