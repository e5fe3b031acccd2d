package fabric

// AtomicOp enumerates the fabric atomic operations the engine emits.
type AtomicOp int

const (
	OpAtomicWrite AtomicOp = iota
	OpAtomicRead
	OpSum
	OpMin
	OpMax
	OpBand
	OpBor
	OpBxor
	OpCswap
)

func (o AtomicOp) String() string {
	switch o {
	case OpAtomicWrite:
		return "atomic_write"
	case OpAtomicRead:
		return "atomic_read"
	case OpSum:
		return "sum"
	case OpMin:
		return "min"
	case OpMax:
		return "max"
	case OpBand:
		return "band"
	case OpBor:
		return "bor"
	case OpBxor:
		return "bxor"
	case OpCswap:
		return "cswap"
	default:
		return "unknown"
	}
}

// AtomicType enumerates the operand datatypes of fabric atomics.
type AtomicType int

const (
	TypeInt32 AtomicType = iota
	TypeInt64
	TypeUint32
	TypeUint64
	TypeFloat
	TypeDouble
)

func (t AtomicType) String() string {
	switch t {
	case TypeInt32:
		return "int32"
	case TypeInt64:
		return "int64"
	case TypeUint32:
		return "uint32"
	case TypeUint64:
		return "uint64"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	default:
		return "unknown"
	}
}

// Size reports the operand width in bytes.
func (t AtomicType) Size() int {
	switch t {
	case TypeInt32, TypeUint32, TypeFloat:
		return 4
	case TypeInt64, TypeUint64, TypeDouble:
		return 8
	default:
		return 0
	}
}
