package shm

import (
	"sync"

	"github.com/rocketbitz/fam-go/fabric"
)

// endpoint implements the verb surface. Blocking verbs execute and
// complete inline. Nonblocking verbs validate their target, then queue a
// deferred application; Quiet drains the queue and reports the first
// failure, matching the binding contract that runtime errors of
// nonblocking operations surface at the next synchronization point.
type endpoint struct {
	domain *domain
	name   []byte

	mu      sync.Mutex
	av      *addressVector
	enabled bool
	closed  bool
	pending []deferredOp
}

type deferredOp func() error

func (e *endpoint) EnableBind(av fabric.AddressVector) error {
	shmAV, ok := av.(*addressVector)
	if !ok || shmAV == nil {
		return fabric.ErrInvalidHandle{Resource: "address vector"}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return fabric.ErrInvalidHandle{Resource: "endpoint"}
	}
	if e.enabled {
		return fabric.EBUSY
	}
	e.av = shmAV
	e.enabled = true
	namespace.Store(string(e.name), e.domain.node)
	return nil
}

func (e *endpoint) Name() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, fabric.ErrInvalidHandle{Resource: "endpoint"}
	}
	name := make([]byte, len(e.name))
	copy(name, e.name)
	return name, nil
}

func (e *endpoint) target(addr fabric.Address) (*node, error) {
	e.mu.Lock()
	av, enabled, closed := e.av, e.enabled, e.closed
	e.mu.Unlock()
	if closed || !enabled || av == nil {
		return nil, fabric.ErrInvalidHandle{Resource: "endpoint"}
	}
	return av.resolve(addr)
}

func access(n *node, key uint64, offset, nbytes uint64) ([]byte, error) {
	buf, ok := n.region(key)
	if !ok {
		return nil, fabric.ErrKeyUnknown
	}
	if offset+nbytes > uint64(len(buf)) {
		return nil, fabric.EMSGSIZE
	}
	return buf[offset : offset+nbytes], nil
}

func (e *endpoint) Write(key uint64, local []byte, offset uint64, addr fabric.Address) error {
	n, err := e.target(addr)
	if err != nil {
		return err
	}
	dst, err := access(n, key, offset, uint64(len(local)))
	if err != nil {
		return err
	}
	copy(dst, local)
	return nil
}

func (e *endpoint) Read(key uint64, local []byte, offset uint64, addr fabric.Address) error {
	n, err := e.target(addr)
	if err != nil {
		return err
	}
	src, err := access(n, key, offset, uint64(len(local)))
	if err != nil {
		return err
	}
	copy(local, src)
	return nil
}

func (e *endpoint) post(op deferredOp) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || !e.enabled {
		return fabric.ErrInvalidHandle{Resource: "endpoint"}
	}
	e.pending = append(e.pending, op)
	return nil
}

func (e *endpoint) WriteNonblocking(key uint64, local []byte, offset uint64, addr fabric.Address) error {
	n, err := e.target(addr)
	if err != nil {
		return err
	}
	return e.post(func() error {
		dst, err := access(n, key, offset, uint64(len(local)))
		if err != nil {
			return err
		}
		copy(dst, local)
		return nil
	})
}

func (e *endpoint) ReadNonblocking(key uint64, local []byte, offset uint64, addr fabric.Address) error {
	n, err := e.target(addr)
	if err != nil {
		return err
	}
	return e.post(func() error {
		src, err := access(n, key, offset, uint64(len(local)))
		if err != nil {
			return err
		}
		copy(local, src)
		return nil
	})
}

func (e *endpoint) vectored(key uint64, local []byte, iov []fabric.RMAIov, addr fabric.Address, block, write bool) error {
	if len(iov) > iovLimit {
		return fabric.ErrIOVLimit
	}
	n, err := e.target(addr)
	if err != nil {
		return err
	}
	apply := func() error {
		consumed := uint64(0)
		for _, ext := range iov {
			remote, err := access(n, key, ext.Offset, ext.Len)
			if err != nil {
				return err
			}
			if consumed+ext.Len > uint64(len(local)) {
				return fabric.EMSGSIZE
			}
			seg := local[consumed : consumed+ext.Len]
			if write {
				copy(remote, seg)
			} else {
				copy(seg, remote)
			}
			consumed += ext.Len
		}
		return nil
	}
	if block {
		return apply()
	}
	return e.post(apply)
}

func (e *endpoint) WriteV(key uint64, local []byte, iov []fabric.RMAIov, addr fabric.Address, block bool) error {
	return e.vectored(key, local, iov, addr, block, true)
}

func (e *endpoint) ReadV(key uint64, local []byte, iov []fabric.RMAIov, addr fabric.Address, block bool) error {
	return e.vectored(key, local, iov, addr, block, false)
}

func (e *endpoint) Atomic(key uint64, operand []byte, offset uint64, op fabric.AtomicOp, typ fabric.AtomicType, addr fabric.Address) error {
	n, err := e.target(addr)
	if err != nil {
		return err
	}
	return n.applyAtomic(key, offset, op, typ, operand, nil, nil, nil)
}

func (e *endpoint) FetchAtomic(key uint64, operand, result []byte, offset uint64, op fabric.AtomicOp, typ fabric.AtomicType, addr fabric.Address) error {
	n, err := e.target(addr)
	if err != nil {
		return err
	}
	return n.applyAtomic(key, offset, op, typ, operand, nil, nil, result)
}

func (e *endpoint) CompareAtomic(key uint64, compare, result, desired []byte, offset uint64, op fabric.AtomicOp, typ fabric.AtomicType, addr fabric.Address) error {
	if op != fabric.OpCswap {
		return fabric.EOPNOTSUP
	}
	n, err := e.target(addr)
	if err != nil {
		return err
	}
	return n.applyAtomic(key, offset, op, typ, nil, compare, desired, result)
}

// drain applies queued operations in posting order and returns the first
// failure. The queue is cleared either way.
func (e *endpoint) drain() error {
	e.mu.Lock()
	pending := e.pending
	e.pending = nil
	e.mu.Unlock()

	var first error
	for _, op := range pending {
		if err := op(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Fence orders subsequent writes after prior ones without completing
// them. The pending queue is applied strictly in posting order at Quiet,
// so the ordering guarantee already holds; pending operations and their
// deferred errors are left for Quiet to reap.
func (e *endpoint) Fence(addr fabric.Address) error {
	_, err := e.target(addr)
	return err
}

func (e *endpoint) Quiet() error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return fabric.ErrInvalidHandle{Resource: "endpoint"}
	}
	return e.drain()
}

func (e *endpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.pending = nil
	name := string(e.name)
	e.mu.Unlock()
	namespace.Delete(name)
	return nil
}
