// Package shm implements the fabric binding over process-local memory.
// Every opened domain owns a node with registered memory keyed by access
// key; endpoint names are process-unique tokens resolvable through a
// shared namespace, so a client domain and a server domain in the same
// process wire up exactly like two fabric peers. The provider exists for
// loopback development and tests; it honors the binding's completion and
// ordering contract, including deferred errors for nonblocking posts.
package shm

import (
	"sync"

	"github.com/google/uuid"

	"github.com/rocketbitz/fam-go/fabric"
)

// ProviderName is the name reported and matched by this provider.
const ProviderName = "shm"

// iovLimit is the per-operation IOV limit the provider advertises. Kept
// deliberately small so chunked gather/scatter paths are exercised.
const iovLimit = 4

// namespace maps endpoint names to their owning nodes, process-wide.
var namespace sync.Map // string -> *node

// node is the remotely addressable side of a domain: its registered
// memory and the mutex that serializes atomics against it.
type node struct {
	mu      sync.RWMutex
	regions map[uint64][]byte

	// atomicMu makes read-modify-write verbs atomic per node, the same
	// granularity a NIC's atomic unit provides.
	atomicMu sync.Mutex
}

func (n *node) region(key uint64) ([]byte, bool) {
	n.mu.RLock()
	buf, ok := n.regions[key]
	n.mu.RUnlock()
	return buf, ok
}

// Provider opens shm domains.
type Provider struct{}

// New returns the shm provider.
func New() *Provider {
	return &Provider{}
}

// Name reports the provider name.
func (p *Provider) Name() string { return ProviderName }

// Open initializes a domain. Node and Service are accepted for interface
// symmetry; shm peers rendezvous through endpoint names instead.
func (p *Provider) Open(cfg fabric.OpenConfig) (fabric.Domain, error) {
	if p == nil {
		return nil, fabric.ErrInvalidHandle{Resource: "provider"}
	}
	if cfg.Provider != "" && cfg.Provider != ProviderName {
		return nil, fabric.ENOPROTO
	}
	return &domain{
		cfg:  cfg,
		node: &node{regions: make(map[uint64][]byte)},
	}, nil
}

type domain struct {
	cfg  fabric.OpenConfig
	node *node

	mu        sync.Mutex
	closed    bool
	endpoints []*endpoint
	mrs       []*memoryRegion
}

func (d *domain) OpenAddressVector() (fabric.AddressVector, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	return &addressVector{}, nil
}

func (d *domain) OpenEndpoint() (fabric.Endpoint, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	name := uuid.New()
	ep := &endpoint{domain: d, name: name[:]}
	d.mu.Lock()
	d.endpoints = append(d.endpoints, ep)
	d.mu.Unlock()
	return ep, nil
}

func (d *domain) RegisterMemory(key uint64, buf []byte) (fabric.MemoryRegion, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	d.node.mu.Lock()
	if _, exists := d.node.regions[key]; exists {
		d.node.mu.Unlock()
		return nil, fabric.EBUSY
	}
	d.node.regions[key] = buf
	d.node.mu.Unlock()

	mr := &memoryRegion{node: d.node, key: key}
	d.mu.Lock()
	d.mrs = append(d.mrs, mr)
	d.mu.Unlock()
	return mr, nil
}

func (d *domain) IOVLimit() int { return iovLimit }

func (d *domain) EndpointType() fabric.EndpointType { return fabric.EndpointRDM }

func (d *domain) check() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fabric.ErrInvalidHandle{Resource: "domain"}
	}
	return nil
}

func (d *domain) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	endpoints := d.endpoints
	mrs := d.mrs
	d.endpoints = nil
	d.mrs = nil
	d.mu.Unlock()

	for i := len(endpoints) - 1; i >= 0; i-- {
		_ = endpoints[i].Close()
	}
	for i := len(mrs) - 1; i >= 0; i-- {
		_ = mrs[i].Close()
	}
	return nil
}

type memoryRegion struct {
	node *node
	key  uint64

	mu     sync.Mutex
	closed bool
}

func (m *memoryRegion) Key() uint64 { return m.key }

func (m *memoryRegion) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.node.mu.Lock()
	delete(m.node.regions, m.key)
	m.node.mu.Unlock()
	return nil
}

// addressVector resolves raw endpoint names through the process namespace
// and hands out dense Address tokens.
type addressVector struct {
	mu    sync.RWMutex
	peers []*node
}

func (a *addressVector) InsertRaw(raw []byte) (fabric.Address, error) {
	if len(raw) == 0 {
		return fabric.AddressUnspecified, fabric.EINVAL
	}
	value, ok := namespace.Load(string(raw))
	if !ok {
		return fabric.AddressUnspecified, fabric.ErrAddressUnknown
	}
	a.mu.Lock()
	a.peers = append(a.peers, value.(*node))
	addr := fabric.Address(len(a.peers) - 1)
	a.mu.Unlock()
	return addr, nil
}

func (a *addressVector) resolve(addr fabric.Address) (*node, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if int(addr) < 0 || int(addr) >= len(a.peers) {
		return nil, fabric.ErrAddressUnknown
	}
	return a.peers[addr], nil
}

func (a *addressVector) Close() error {
	a.mu.Lock()
	a.peers = nil
	a.mu.Unlock()
	return nil
}
