package dtype

import (
	"bytes"
	"fmt"
	"math"

	"github.com/robert-malhotra/nxsplit/internal/message"
)

// Decode converts packed elements of a numeric datatype.
func Decode[T Number](dt *message.Datatype, data []byte) ([]T, error) {
	if err := checkNumeric(dt); err != nil {
		return nil, err
	}
	size := int(dt.Size)
	if len(data)%size != 0 {
		return nil, fmt.Errorf("%d bytes is not a whole number of %d byte elements", len(data), size)
	}
	out := make([]T, len(data)/size)
	for i := range out {
		elem := data[i*size : (i+1)*size]
		if dt.Class == message.ClassFloatPoint {
			out[i] = T(decodeFloat(dt, elem))
		} else if dt.Signed() {
			out[i] = T(decodeInt(dt, elem))
		} else {
			out[i] = T(decodeUint(dt, elem))
		}
	}
	return out, nil
}

func decodeUint(dt *message.Datatype, b []byte) uint64 {
	order := ByteOrder(dt)
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(order.Uint16(b))
	case 4:
		return uint64(order.Uint32(b))
	}
	return order.Uint64(b)
}

func decodeInt(dt *message.Datatype, b []byte) int64 {
	v := decodeUint(dt, b)
	shift := 64 - 8*uint(len(b))
	return int64(v<<shift) >> shift
}

func decodeFloat(dt *message.Datatype, b []byte) float64 {
	if len(b) == 4 {
		return float64(math.Float32frombits(uint32(decodeUint(dt, b))))
	}
	return math.Float64frombits(decodeUint(dt, b))
}

// Strings converts fixed-length string elements, dropping padding.
func Strings(dt *message.Datatype, data []byte) ([]string, error) {
	if dt == nil || dt.Class != message.ClassString {
		return nil, fmt.Errorf("datatype is not a fixed-length string")
	}
	size := int(dt.Size)
	if size == 0 || len(data)%size != 0 {
		return nil, fmt.Errorf("%d bytes is not a whole number of %d byte strings", len(data), size)
	}
	out := make([]string, len(data)/size)
	for i := range out {
		s := data[i*size : (i+1)*size]
		if dt.Padding() == message.PadSpace {
			s = bytes.TrimRight(s, " ")
		} else if j := bytes.IndexByte(s, 0); j >= 0 {
			s = s[:j]
		}
		out[i] = string(s)
	}
	return out, nil
}
