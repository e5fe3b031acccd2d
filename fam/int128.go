package fam

// Int128 is a 16-byte operand, treated as an opaque little-endian blob.
// Endianness of the contents is the caller's responsibility.
type Int128 [16]byte

// The fabric cannot express 128-bit atomicity natively, so the wide
// operations are synthesised: take the server-side CAS-lock for the item,
// move the 16 bytes with plain blocking RMA, release the lock. The lock
// is released exactly once per acquisition, on every path.

func (o *Ops) withCASLock(d *Descriptor, call string, fn func() error) (err error) {
	if o.allocator == nil {
		return invalidConfigf("allocator required for 128-bit atomics")
	}
	if lockErr := o.allocator.AcquireCASLock(d); lockErr != nil {
		return allocatorError("acquire_CAS_lock", lockErr)
	}
	defer func() {
		if relErr := o.allocator.ReleaseCASLock(d); relErr != nil && err == nil {
			err = allocatorError("release_CAS_lock", relErr)
		}
	}()

	span := o.startSpan("fam-atomic-int128",
		TraceAttribute{Key: labelOperation, Value: call},
		TraceAttribute{Key: "region_id", Value: d.RegionID},
	)
	err = fn()
	span.End(err)
	return err
}

// AtomicSetInt128 atomically stores the 16-byte value at offset.
func (o *Ops) AtomicSetInt128(d *Descriptor, offset uint64, value Int128) error {
	const call = "atomic_set_int128"
	ctx, addr, err := o.route(d)
	if err != nil {
		return o.finishOp(call, err)
	}
	err = o.withCASLock(d, call, func() error {
		if err := ctx.ep.Write(d.AccessKey, value[:], offset, addr); err != nil {
			return datapathError("fabric_write", err)
		}
		return nil
	})
	return o.finishOp(call, err)
}

// AtomicFetchInt128 atomically reads the 16-byte value at offset.
func (o *Ops) AtomicFetchInt128(d *Descriptor, offset uint64) (Int128, error) {
	const call = "atomic_fetch_int128"
	var local Int128
	ctx, addr, err := o.route(d)
	if err != nil {
		return local, o.finishOp(call, err)
	}
	err = o.withCASLock(d, call, func() error {
		if err := ctx.ep.Read(d.AccessKey, local[:], offset, addr); err != nil {
			return datapathError("fabric_read", err)
		}
		return nil
	})
	return local, o.finishOp(call, err)
}

// CompareSwapInt128 atomically replaces the 16 bytes at offset with
// newValue when they equal oldValue, returning the prior value either
// way.
func (o *Ops) CompareSwapInt128(d *Descriptor, offset uint64, oldValue, newValue Int128) (Int128, error) {
	const call = "compare_swap_int128"
	var local Int128
	ctx, addr, err := o.route(d)
	if err != nil {
		return local, o.finishOp(call, err)
	}
	err = o.withCASLock(d, call, func() error {
		if err := ctx.ep.Read(d.AccessKey, local[:], offset, addr); err != nil {
			return datapathError("fabric_read", err)
		}
		if local == oldValue {
			if err := ctx.ep.Write(d.AccessKey, newValue[:], offset, addr); err != nil {
				return datapathError("fabric_write", err)
			}
		}
		return nil
	})
	return local, o.finishOp(call, err)
}
