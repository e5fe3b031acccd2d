package fabric

import (
	"encoding/binary"
	"math"
)

// Scalar is the set of operand types fabric atomics express natively.
type Scalar interface {
	int32 | int64 | uint32 | uint64 | float32 | float64
}

// BitwiseScalar is the subset valid for band/bor/bxor.
type BitwiseScalar interface {
	uint32 | uint64
}

// CompareScalar is the subset valid for compare-and-swap.
type CompareScalar interface {
	int32 | int64 | uint32 | uint64
}

// ScalarType reports the wire datatype code for T.
func ScalarType[T Scalar]() AtomicType {
	var v T
	switch any(v).(type) {
	case int32:
		return TypeInt32
	case int64:
		return TypeInt64
	case uint32:
		return TypeUint32
	case uint64:
		return TypeUint64
	case float32:
		return TypeFloat
	default:
		return TypeDouble
	}
}

// EncodeScalar writes v into b in the operand wire encoding
// (little-endian, IEEE 754 bits for floats). b must hold ScalarType[T]().Size() bytes.
func EncodeScalar[T Scalar](b []byte, v T) {
	switch val := any(v).(type) {
	case int32:
		binary.LittleEndian.PutUint32(b, uint32(val))
	case int64:
		binary.LittleEndian.PutUint64(b, uint64(val))
	case uint32:
		binary.LittleEndian.PutUint32(b, val)
	case uint64:
		binary.LittleEndian.PutUint64(b, val)
	case float32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(val))
	case float64:
		binary.LittleEndian.PutUint64(b, math.Float64bits(val))
	}
}

// MarshalScalar allocates and encodes the operand for v.
func MarshalScalar[T Scalar](v T) []byte {
	b := make([]byte, ScalarType[T]().Size())
	EncodeScalar(b, v)
	return b
}

// DecodeScalar reads a T from the operand wire encoding.
func DecodeScalar[T Scalar](b []byte) T {
	var v T
	switch p := any(&v).(type) {
	case *int32:
		*p = int32(binary.LittleEndian.Uint32(b))
	case *int64:
		*p = int64(binary.LittleEndian.Uint64(b))
	case *uint32:
		*p = binary.LittleEndian.Uint32(b)
	case *uint64:
		*p = binary.LittleEndian.Uint64(b)
	case *float32:
		*p = math.Float32frombits(binary.LittleEndian.Uint32(b))
	case *float64:
		*p = math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
	return v
}
