package shm

import (
	"github.com/rocketbitz/fam-go/fabric"
)

// The atomic interpreter plays the role of the target NIC: it decodes the
// wire (op, datatype) pair and applies the update under the node's atomic
// mutex. Operand encoding follows the fabric scalar codec.

func applyScalar[T fabric.Scalar](mem []byte, op fabric.AtomicOp, operand, result []byte) error {
	cur := fabric.DecodeScalar[T](mem)
	if result != nil {
		fabric.EncodeScalar(result, cur)
	}
	switch op {
	case fabric.OpAtomicRead:
		return nil
	case fabric.OpAtomicWrite:
		fabric.EncodeScalar(mem, fabric.DecodeScalar[T](operand))
	case fabric.OpSum:
		fabric.EncodeScalar(mem, cur+fabric.DecodeScalar[T](operand))
	case fabric.OpMin:
		if v := fabric.DecodeScalar[T](operand); v < cur {
			fabric.EncodeScalar(mem, v)
		}
	case fabric.OpMax:
		if v := fabric.DecodeScalar[T](operand); v > cur {
			fabric.EncodeScalar(mem, v)
		}
	default:
		return fabric.EOPNOTSUP
	}
	return nil
}

func applyBitwise[T fabric.BitwiseScalar](mem []byte, op fabric.AtomicOp, operand, result []byte) error {
	cur := fabric.DecodeScalar[T](mem)
	if result != nil {
		fabric.EncodeScalar(result, cur)
	}
	v := fabric.DecodeScalar[T](operand)
	switch op {
	case fabric.OpBand:
		fabric.EncodeScalar(mem, cur&v)
	case fabric.OpBor:
		fabric.EncodeScalar(mem, cur|v)
	case fabric.OpBxor:
		fabric.EncodeScalar(mem, cur^v)
	default:
		return fabric.EOPNOTSUP
	}
	return nil
}

func applyCswap[T fabric.CompareScalar](mem []byte, compare, desired, result []byte) error {
	cur := fabric.DecodeScalar[T](mem)
	if result != nil {
		fabric.EncodeScalar(result, cur)
	}
	if cur == fabric.DecodeScalar[T](compare) {
		fabric.EncodeScalar(mem, fabric.DecodeScalar[T](desired))
	}
	return nil
}

func (n *node) applyAtomic(key, offset uint64, op fabric.AtomicOp, typ fabric.AtomicType, operand, compare, desired, result []byte) error {
	size := typ.Size()
	if size == 0 {
		return fabric.EINVAL
	}
	n.atomicMu.Lock()
	defer n.atomicMu.Unlock()

	mem, err := access(n, key, offset, uint64(size))
	if err != nil {
		return err
	}

	switch op {
	case fabric.OpBand, fabric.OpBor, fabric.OpBxor:
		switch typ {
		case fabric.TypeUint32:
			return applyBitwise[uint32](mem, op, operand, result)
		case fabric.TypeUint64:
			return applyBitwise[uint64](mem, op, operand, result)
		default:
			return fabric.EOPNOTSUP
		}
	case fabric.OpCswap:
		switch typ {
		case fabric.TypeInt32:
			return applyCswap[int32](mem, compare, desired, result)
		case fabric.TypeInt64:
			return applyCswap[int64](mem, compare, desired, result)
		case fabric.TypeUint32:
			return applyCswap[uint32](mem, compare, desired, result)
		case fabric.TypeUint64:
			return applyCswap[uint64](mem, compare, desired, result)
		default:
			return fabric.EOPNOTSUP
		}
	default:
		switch typ {
		case fabric.TypeInt32:
			return applyScalar[int32](mem, op, operand, result)
		case fabric.TypeInt64:
			return applyScalar[int64](mem, op, operand, result)
		case fabric.TypeUint32:
			return applyScalar[uint32](mem, op, operand, result)
		case fabric.TypeUint64:
			return applyScalar[uint64](mem, op, operand, result)
		case fabric.TypeFloat:
			return applyScalar[float32](mem, op, operand, result)
		case fabric.TypeDouble:
			return applyScalar[float64](mem, op, operand, result)
		default:
			return fabric.EINVAL
		}
	}
}
