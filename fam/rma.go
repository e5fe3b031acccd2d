package fam

import (
	"github.com/rocketbitz/fam-go/fabric"
)

// Bulk transfer and gather/scatter dispatch. Every operation resolves the
// descriptor's access key, destination address, and fabric context, then
// emits the corresponding verb. Blocking flavours return after remote
// completion; nonblocking flavours post and return, with runtime errors
// deferred to the next Quiet of their scope.

func (o *Ops) finishOp(op string, err error) error {
	if err != nil {
		o.metricOperationFailed(op, err)
		return err
	}
	o.metricOperationCompleted(op)
	return nil
}

// PutBlocking writes len(local) bytes into the item at offset and waits
// for remote completion.
func (o *Ops) PutBlocking(local []byte, d *Descriptor, offset uint64) error {
	ctx, addr, err := o.route(d)
	if err != nil {
		return o.finishOp("put_blocking", err)
	}
	if err := ctx.ep.Write(d.AccessKey, local, offset, addr); err != nil {
		return o.finishOp("put_blocking", datapathError("fabric_write", err))
	}
	return o.finishOp("put_blocking", nil)
}

// GetBlocking fills local from the item at offset and waits for
// completion.
func (o *Ops) GetBlocking(local []byte, d *Descriptor, offset uint64) error {
	ctx, addr, err := o.route(d)
	if err != nil {
		return o.finishOp("get_blocking", err)
	}
	if err := ctx.ep.Read(d.AccessKey, local, offset, addr); err != nil {
		return o.finishOp("get_blocking", datapathError("fabric_read", err))
	}
	return o.finishOp("get_blocking", nil)
}

// PutNonblocking posts a write and returns. Posting failures surface
// here; completion errors surface at the next Quiet.
func (o *Ops) PutNonblocking(local []byte, d *Descriptor, offset uint64) error {
	ctx, addr, err := o.route(d)
	if err != nil {
		return o.finishOp("put_nonblocking", err)
	}
	if err := ctx.ep.WriteNonblocking(d.AccessKey, local, offset, addr); err != nil {
		return o.finishOp("put_nonblocking", datapathError("fabric_write_nonblocking", err))
	}
	return o.finishOp("put_nonblocking", nil)
}

// GetNonblocking posts a read and returns.
func (o *Ops) GetNonblocking(local []byte, d *Descriptor, offset uint64) error {
	ctx, addr, err := o.route(d)
	if err != nil {
		return o.finishOp("get_nonblocking", err)
	}
	if err := ctx.ep.ReadNonblocking(d.AccessKey, local, offset, addr); err != nil {
		return o.finishOp("get_nonblocking", datapathError("fabric_read_nonblocking", err))
	}
	return o.finishOp("get_nonblocking", nil)
}

// GatherBlocking reads nElements strided elements into local and waits
// for all chunks to complete.
func (o *Ops) GatherBlocking(local []byte, d *Descriptor, nElements, firstElement, stride, elementSize uint64) error {
	ctx, addr, err := o.route(d)
	if err != nil {
		return o.finishOp("gather_blocking", err)
	}
	err = fabric.GatherStride(ctx.ep, d.AccessKey, local, elementSize, firstElement, nElements, stride, addr, o.iovLimit, true)
	if err != nil {
		return o.finishOp("gather_blocking", datapathError("fabric_gather_stride", err))
	}
	return o.finishOp("gather_blocking", nil)
}

// GatherIndexBlocking reads the indexed elements into local and waits.
func (o *Ops) GatherIndexBlocking(local []byte, d *Descriptor, elementIndex []uint64, elementSize uint64) error {
	ctx, addr, err := o.route(d)
	if err != nil {
		return o.finishOp("gather_blocking", err)
	}
	err = fabric.GatherIndex(ctx.ep, d.AccessKey, local, elementSize, elementIndex, addr, o.iovLimit, true)
	if err != nil {
		return o.finishOp("gather_blocking", datapathError("fabric_gather_index", err))
	}
	return o.finishOp("gather_blocking", nil)
}

// ScatterBlocking writes local out to nElements strided elements and
// waits for all chunks to complete.
func (o *Ops) ScatterBlocking(local []byte, d *Descriptor, nElements, firstElement, stride, elementSize uint64) error {
	ctx, addr, err := o.route(d)
	if err != nil {
		return o.finishOp("scatter_blocking", err)
	}
	err = fabric.ScatterStride(ctx.ep, d.AccessKey, local, elementSize, firstElement, nElements, stride, addr, o.iovLimit, true)
	if err != nil {
		return o.finishOp("scatter_blocking", datapathError("fabric_scatter_stride", err))
	}
	return o.finishOp("scatter_blocking", nil)
}

// ScatterIndexBlocking writes local out to the indexed elements and
// waits.
func (o *Ops) ScatterIndexBlocking(local []byte, d *Descriptor, elementIndex []uint64, elementSize uint64) error {
	ctx, addr, err := o.route(d)
	if err != nil {
		return o.finishOp("scatter_blocking", err)
	}
	err = fabric.ScatterIndex(ctx.ep, d.AccessKey, local, elementSize, elementIndex, addr, o.iovLimit, true)
	if err != nil {
		return o.finishOp("scatter_blocking", datapathError("fabric_scatter_index", err))
	}
	return o.finishOp("scatter_blocking", nil)
}

// GatherNonblocking posts all chunks of a strided gather and returns.
func (o *Ops) GatherNonblocking(local []byte, d *Descriptor, nElements, firstElement, stride, elementSize uint64) error {
	ctx, addr, err := o.route(d)
	if err != nil {
		return o.finishOp("gather_nonblocking", err)
	}
	err = fabric.GatherStride(ctx.ep, d.AccessKey, local, elementSize, firstElement, nElements, stride, addr, o.iovLimit, false)
	if err != nil {
		return o.finishOp("gather_nonblocking", datapathError("fabric_gather_stride", err))
	}
	return o.finishOp("gather_nonblocking", nil)
}

// GatherIndexNonblocking posts all chunks of an indexed gather.
func (o *Ops) GatherIndexNonblocking(local []byte, d *Descriptor, elementIndex []uint64, elementSize uint64) error {
	ctx, addr, err := o.route(d)
	if err != nil {
		return o.finishOp("gather_nonblocking", err)
	}
	err = fabric.GatherIndex(ctx.ep, d.AccessKey, local, elementSize, elementIndex, addr, o.iovLimit, false)
	if err != nil {
		return o.finishOp("gather_nonblocking", datapathError("fabric_gather_index", err))
	}
	return o.finishOp("gather_nonblocking", nil)
}

// ScatterNonblocking posts all chunks of a strided scatter and returns.
func (o *Ops) ScatterNonblocking(local []byte, d *Descriptor, nElements, firstElement, stride, elementSize uint64) error {
	ctx, addr, err := o.route(d)
	if err != nil {
		return o.finishOp("scatter_nonblocking", err)
	}
	err = fabric.ScatterStride(ctx.ep, d.AccessKey, local, elementSize, firstElement, nElements, stride, addr, o.iovLimit, false)
	if err != nil {
		return o.finishOp("scatter_nonblocking", datapathError("fabric_scatter_stride", err))
	}
	return o.finishOp("scatter_nonblocking", nil)
}

// ScatterIndexNonblocking posts all chunks of an indexed scatter.
func (o *Ops) ScatterIndexNonblocking(local []byte, d *Descriptor, elementIndex []uint64, elementSize uint64) error {
	ctx, addr, err := o.route(d)
	if err != nil {
		return o.finishOp("scatter_nonblocking", err)
	}
	err = fabric.ScatterIndex(ctx.ep, d.AccessKey, local, elementSize, elementIndex, addr, o.iovLimit, false)
	if err != nil {
		return o.finishOp("scatter_nonblocking", datapathError("fabric_scatter_index", err))
	}
	return o.finishOp("scatter_nonblocking", nil)
}
