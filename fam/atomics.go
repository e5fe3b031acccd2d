package fam

import (
	"github.com/rocketbitz/fam-go/fabric"
)

// Atomic dispatch. The original API surface is a cartesian product of
// operation and operand width; here each arity has one generic body and
// the (op, datatype) pair is resolved from the type parameter:
//
//	set            -> OpAtomicWrite      fetch        -> OpAtomicRead
//	add, subtract  -> OpSum              swap         -> fetch + OpAtomicWrite
//	min / max      -> OpMin / OpMax      compare_swap -> OpCswap
//	and / or / xor -> OpBand/OpBor/OpBxor
//
// Subtract is add of the negated operand; for unsigned types the
// negation wraps modulo 2^w, which callers rely on.

func atomicPost[T fabric.Scalar](o *Ops, d *Descriptor, offset uint64, value T, op fabric.AtomicOp, call string) error {
	ctx, addr, err := o.route(d)
	if err != nil {
		return o.finishOp(call, err)
	}
	operand := fabric.MarshalScalar(value)
	if err := ctx.ep.Atomic(d.AccessKey, operand, offset, op, fabric.ScalarType[T](), addr); err != nil {
		return o.finishOp(call, datapathError("fabric_atomic", err))
	}
	return o.finishOp(call, nil)
}

func fetchAtomic[T fabric.Scalar](o *Ops, d *Descriptor, offset uint64, value T, op fabric.AtomicOp, call string) (T, error) {
	var zero T
	ctx, addr, err := o.route(d)
	if err != nil {
		return zero, o.finishOp(call, err)
	}
	operand := fabric.MarshalScalar(value)
	result := make([]byte, fabric.ScalarType[T]().Size())
	if err := ctx.ep.FetchAtomic(d.AccessKey, operand, result, offset, op, fabric.ScalarType[T](), addr); err != nil {
		return zero, o.finishOp(call, datapathError("fabric_fetch_atomic", err))
	}
	return fabric.DecodeScalar[T](result), o.finishOp(call, nil)
}

// AtomicSet atomically stores value into the item at offset.
func AtomicSet[T fabric.Scalar](o *Ops, d *Descriptor, offset uint64, value T) error {
	return atomicPost(o, d, offset, value, fabric.OpAtomicWrite, "atomic_set")
}

// AtomicAdd atomically adds value to the item at offset.
func AtomicAdd[T fabric.Scalar](o *Ops, d *Descriptor, offset uint64, value T) error {
	return atomicPost(o, d, offset, value, fabric.OpSum, "atomic_add")
}

// AtomicSubtract atomically subtracts value from the item at offset.
func AtomicSubtract[T fabric.Scalar](o *Ops, d *Descriptor, offset uint64, value T) error {
	return atomicPost(o, d, offset, -value, fabric.OpSum, "atomic_subtract")
}

// AtomicMin atomically stores min(current, value).
func AtomicMin[T fabric.Scalar](o *Ops, d *Descriptor, offset uint64, value T) error {
	return atomicPost(o, d, offset, value, fabric.OpMin, "atomic_min")
}

// AtomicMax atomically stores max(current, value).
func AtomicMax[T fabric.Scalar](o *Ops, d *Descriptor, offset uint64, value T) error {
	return atomicPost(o, d, offset, value, fabric.OpMax, "atomic_max")
}

// AtomicAnd atomically ANDs value into the item at offset.
func AtomicAnd[T fabric.BitwiseScalar](o *Ops, d *Descriptor, offset uint64, value T) error {
	return atomicPost(o, d, offset, value, fabric.OpBand, "atomic_and")
}

// AtomicOr atomically ORs value into the item at offset.
func AtomicOr[T fabric.BitwiseScalar](o *Ops, d *Descriptor, offset uint64, value T) error {
	return atomicPost(o, d, offset, value, fabric.OpBor, "atomic_or")
}

// AtomicXor atomically XORs value into the item at offset.
func AtomicXor[T fabric.BitwiseScalar](o *Ops, d *Descriptor, offset uint64, value T) error {
	return atomicPost(o, d, offset, value, fabric.OpBxor, "atomic_xor")
}

// AtomicFetch atomically reads the item at offset.
func AtomicFetch[T fabric.Scalar](o *Ops, d *Descriptor, offset uint64) (T, error) {
	var zero T
	return fetchAtomic(o, d, offset, zero, fabric.OpAtomicRead, "atomic_fetch")
}

// Swap atomically stores value and returns the prior value.
func Swap[T fabric.Scalar](o *Ops, d *Descriptor, offset uint64, value T) (T, error) {
	return fetchAtomic(o, d, offset, value, fabric.OpAtomicWrite, "swap")
}

// AtomicFetchAdd atomically adds value and returns the prior value.
func AtomicFetchAdd[T fabric.Scalar](o *Ops, d *Descriptor, offset uint64, value T) (T, error) {
	return fetchAtomic(o, d, offset, value, fabric.OpSum, "atomic_fetch_add")
}

// AtomicFetchSubtract atomically subtracts value and returns the prior
// value.
func AtomicFetchSubtract[T fabric.Scalar](o *Ops, d *Descriptor, offset uint64, value T) (T, error) {
	return fetchAtomic(o, d, offset, -value, fabric.OpSum, "atomic_fetch_subtract")
}

// AtomicFetchMin atomically applies min and returns the prior value.
func AtomicFetchMin[T fabric.Scalar](o *Ops, d *Descriptor, offset uint64, value T) (T, error) {
	return fetchAtomic(o, d, offset, value, fabric.OpMin, "atomic_fetch_min")
}

// AtomicFetchMax atomically applies max and returns the prior value.
func AtomicFetchMax[T fabric.Scalar](o *Ops, d *Descriptor, offset uint64, value T) (T, error) {
	return fetchAtomic(o, d, offset, value, fabric.OpMax, "atomic_fetch_max")
}

// AtomicFetchAnd atomically ANDs value and returns the prior value.
func AtomicFetchAnd[T fabric.BitwiseScalar](o *Ops, d *Descriptor, offset uint64, value T) (T, error) {
	return fetchAtomic(o, d, offset, value, fabric.OpBand, "atomic_fetch_and")
}

// AtomicFetchOr atomically ORs value and returns the prior value.
func AtomicFetchOr[T fabric.BitwiseScalar](o *Ops, d *Descriptor, offset uint64, value T) (T, error) {
	return fetchAtomic(o, d, offset, value, fabric.OpBor, "atomic_fetch_or")
}

// AtomicFetchXor atomically XORs value and returns the prior value.
func AtomicFetchXor[T fabric.BitwiseScalar](o *Ops, d *Descriptor, offset uint64, value T) (T, error) {
	return fetchAtomic(o, d, offset, value, fabric.OpBxor, "atomic_fetch_xor")
}

// CompareSwap atomically replaces the item at offset with newValue when
// it equals oldValue, returning the prior value either way.
func CompareSwap[T fabric.CompareScalar](o *Ops, d *Descriptor, offset uint64, oldValue, newValue T) (T, error) {
	var zero T
	const call = "compare_swap"
	ctx, addr, err := o.route(d)
	if err != nil {
		return zero, o.finishOp(call, err)
	}
	compare := fabric.MarshalScalar(oldValue)
	desired := fabric.MarshalScalar(newValue)
	result := make([]byte, fabric.ScalarType[T]().Size())
	if err := ctx.ep.CompareAtomic(d.AccessKey, compare, result, desired, offset, fabric.OpCswap, fabric.ScalarType[T](), addr); err != nil {
		return zero, o.finishOp(call, datapathError("fabric_compare_atomic", err))
	}
	return fabric.DecodeScalar[T](result), o.finishOp(call, nil)
}
