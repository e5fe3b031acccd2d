package fam

import (
	"fmt"
	"sync"

	"github.com/rocketbitz/fam-go/fabric"
)

// fakeProvider is a minimal transport for engine unit tests: verbs
// succeed (or fail with injected errors) without moving any bytes.
type fakeProvider struct {
	openErr error
	domain  *fakeDomain
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{domain: &fakeDomain{iov: 4}}
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Open(fabric.OpenConfig) (fabric.Domain, error) {
	if p.openErr != nil {
		return nil, p.openErr
	}
	return p.domain, nil
}

type fakeDomain struct {
	mu       sync.Mutex
	iov      int
	epOpened int

	enableErr error
	readErr   error
	writeErr  error
	atomicErr error
	quietErr  error
	fenceErr  error
}

func (d *fakeDomain) OpenAddressVector() (fabric.AddressVector, error) {
	return &fakeAV{}, nil
}

func (d *fakeDomain) OpenEndpoint() (fabric.Endpoint, error) {
	d.mu.Lock()
	d.epOpened++
	id := d.epOpened
	d.mu.Unlock()
	return &fakeEndpoint{domain: d, id: id}, nil
}

func (d *fakeDomain) RegisterMemory(key uint64, _ []byte) (fabric.MemoryRegion, error) {
	return &fakeMR{key: key}, nil
}

func (d *fakeDomain) IOVLimit() int                     { return d.iov }
func (d *fakeDomain) EndpointType() fabric.EndpointType { return fabric.EndpointRDM }
func (d *fakeDomain) Close() error                      { return nil }

func (d *fakeDomain) endpointsOpened() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.epOpened
}

type fakeAV struct {
	mu    sync.Mutex
	count int
}

func (a *fakeAV) InsertRaw(raw []byte) (fabric.Address, error) {
	if len(raw) == 0 {
		return fabric.AddressUnspecified, fabric.EINVAL
	}
	a.mu.Lock()
	addr := fabric.Address(a.count)
	a.count++
	a.mu.Unlock()
	return addr, nil
}

func (a *fakeAV) Close() error { return nil }

type fakeMR struct{ key uint64 }

func (m *fakeMR) Key() uint64 { return m.key }
func (m *fakeMR) Close() error { return nil }

type fakeEndpoint struct {
	domain *fakeDomain
	id     int

	mu      sync.Mutex
	quiets  int
	fences  int
	writes  int
	reads   int
	enabled bool
}

func (e *fakeEndpoint) EnableBind(fabric.AddressVector) error {
	if e.domain.enableErr != nil {
		return e.domain.enableErr
	}
	e.mu.Lock()
	e.enabled = true
	e.mu.Unlock()
	return nil
}

func (e *fakeEndpoint) Name() ([]byte, error) {
	return []byte(fmt.Sprintf("fake-ep-%d", e.id)), nil
}

func (e *fakeEndpoint) Write(uint64, []byte, uint64, fabric.Address) error {
	e.mu.Lock()
	e.writes++
	e.mu.Unlock()
	return e.domain.writeErr
}

func (e *fakeEndpoint) Read(uint64, []byte, uint64, fabric.Address) error {
	e.mu.Lock()
	e.reads++
	e.mu.Unlock()
	return e.domain.readErr
}

func (e *fakeEndpoint) WriteNonblocking(uint64, []byte, uint64, fabric.Address) error {
	return e.domain.writeErr
}

func (e *fakeEndpoint) ReadNonblocking(uint64, []byte, uint64, fabric.Address) error {
	return e.domain.readErr
}

func (e *fakeEndpoint) WriteV(uint64, []byte, []fabric.RMAIov, fabric.Address, bool) error {
	return e.domain.writeErr
}

func (e *fakeEndpoint) ReadV(uint64, []byte, []fabric.RMAIov, fabric.Address, bool) error {
	return e.domain.readErr
}

func (e *fakeEndpoint) Atomic(uint64, []byte, uint64, fabric.AtomicOp, fabric.AtomicType, fabric.Address) error {
	return e.domain.atomicErr
}

func (e *fakeEndpoint) FetchAtomic(uint64, []byte, []byte, uint64, fabric.AtomicOp, fabric.AtomicType, fabric.Address) error {
	return e.domain.atomicErr
}

func (e *fakeEndpoint) CompareAtomic(uint64, []byte, []byte, []byte, uint64, fabric.AtomicOp, fabric.AtomicType, fabric.Address) error {
	return e.domain.atomicErr
}

func (e *fakeEndpoint) Fence(fabric.Address) error {
	e.mu.Lock()
	e.fences++
	e.mu.Unlock()
	return e.domain.fenceErr
}

func (e *fakeEndpoint) Quiet() error {
	e.mu.Lock()
	e.quiets++
	e.mu.Unlock()
	return e.domain.quietErr
}

func (e *fakeEndpoint) Close() error { return nil }

// fakeAllocator serves a fixed address and counts CAS-lock traffic.
type fakeAllocator struct {
	mu       sync.Mutex
	addr     []byte
	acquires int
	releases int

	acquireErr error
	releaseErr error
}

func newFakeAllocator() *fakeAllocator {
	return &fakeAllocator{addr: []byte("fake-server-addr")}
}

func (a *fakeAllocator) GetAddrSize(uint64) (int, error) {
	return len(a.addr), nil
}

func (a *fakeAllocator) GetAddr(buf []byte, _ uint64) error {
	copy(buf, a.addr)
	return nil
}

func (a *fakeAllocator) Copy(*Descriptor, uint64, *Descriptor, uint64, uint64) (CopyHandle, error) {
	return "fake-copy", nil
}

func (a *fakeAllocator) WaitForCopy(CopyHandle) error { return nil }

func (a *fakeAllocator) AcquireCASLock(*Descriptor) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.acquireErr != nil {
		return a.acquireErr
	}
	a.acquires++
	return nil
}

func (a *fakeAllocator) ReleaseCASLock(*Descriptor) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.releaseErr != nil {
		return a.releaseErr
	}
	a.releases++
	return nil
}

func (a *fakeAllocator) counts() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acquires, a.releases
}
