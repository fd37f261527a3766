package dtype

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/robert-malhotra/nxsplit/internal/message"
)

// Encode converts values to packed elements of a numeric datatype.
func Encode[T Number](dt *message.Datatype, values []T) ([]byte, error) {
	if err := checkNumeric(dt); err != nil {
		return nil, err
	}
	size := int(dt.Size)
	out := make([]byte, len(values)*size)
	for i, v := range values {
		elem := out[i*size : (i+1)*size]
		switch {
		case dt.Class == message.ClassFloatPoint && size == 4:
			putUint(dt, elem, uint64(math.Float32bits(float32(v))))
		case dt.Class == message.ClassFloatPoint:
			putUint(dt, elem, math.Float64bits(float64(v)))
		case dt.Signed():
			putUint(dt, elem, uint64(int64(v)))
		default:
			putUint(dt, elem, uint64(v))
		}
	}
	return out, nil
}

func putUint(dt *message.Datatype, b []byte, v uint64) {
	order := ByteOrder(dt)
	switch len(b) {
	case 1:
		b[0] = uint8(v)
	case 2:
		order.PutUint16(b, uint16(v))
	case 4:
		order.PutUint32(b, uint32(v))
	default:
		order.PutUint64(b, v)
	}
}

// ParseValue encodes the text of one value as an element of dt. Integers
// must fit the type; "max" and "min" name its extremes, which detectors use
// as the fill for missing pixels.
func ParseValue(dt *message.Datatype, text string) ([]byte, error) {
	if err := checkNumeric(dt); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	bitSize := int(dt.Size) * 8

	switch {
	case dt.Class == message.ClassFloatPoint:
		f, err := strconv.ParseFloat(text, bitSize)
		if err != nil {
			return nil, fmt.Errorf("parsing %q as %s: %w", text, dt, err)
		}
		return Encode(dt, []float64{f})
	case dt.Signed():
		switch text {
		case "max":
			return Encode(dt, []int64{1<<(bitSize-1) - 1})
		case "min":
			return Encode(dt, []int64{-1 << (bitSize - 1)})
		}
		v, err := strconv.ParseInt(text, 0, bitSize)
		if err != nil {
			return nil, fmt.Errorf("parsing %q as %s: %w", text, dt, err)
		}
		return Encode(dt, []int64{v})
	default:
		switch text {
		case "max":
			return Encode(dt, []uint64{math.MaxUint64 >> (64 - bitSize)})
		case "min":
			return Encode(dt, []uint64{0})
		}
		v, err := strconv.ParseUint(text, 0, bitSize)
		if err != nil {
			return nil, fmt.Errorf("parsing %q as %s: %w", text, dt, err)
		}
		return Encode(dt, []uint64{v})
	}
}
