// Package fabric defines the narrow, portable surface the FAM engine
// consumes from an RDMA-style transport: provider discovery and setup,
// address vectors, endpoints with one-sided read/write and atomic verbs,
// and the fence/quiet ordering primitives. Implementations live in
// sub-packages; fabric/shm provides an in-process provider.
package fabric

// ThreadMode selects the locking discipline a provider applies to its
// internal state. It is forwarded verbatim from the engine configuration.
type ThreadMode int

const (
	// ThreadSingle assumes a single application thread drives the domain.
	ThreadSingle ThreadMode = iota
	// ThreadSafe requires the provider to serialize all verb access.
	ThreadSafe
)

func (m ThreadMode) String() string {
	switch m {
	case ThreadSingle:
		return "single"
	case ThreadSafe:
		return "safe"
	default:
		return "unknown"
	}
}

// EndpointType mirrors the transport's endpoint classes. The engine only
// drives reliable-datagram endpoints; the type exists so providers can
// report what they opened.
type EndpointType int

const (
	EndpointUnspec EndpointType = iota
	EndpointRDM
	EndpointMsg
)

func (t EndpointType) String() string {
	switch t {
	case EndpointRDM:
		return "rdm"
	case EndpointMsg:
		return "msg"
	default:
		return "unspec"
	}
}

// Address is a provider-assigned token for a remote node, valid only with
// the address vector that produced it.
type Address uint64

// AddressUnspecified is an invalid or unset remote address.
const AddressUnspecified = Address(^uint64(0))

// OpenConfig carries the parameters of provider initialization.
type OpenConfig struct {
	// Node is the hostname or provider-specific locator of the first
	// memory server, used to steer provider selection.
	Node string
	// Service is the transport service identifier (a port, typically).
	Service string
	// Provider names the transport provider ("shm", "sockets", "verbs").
	Provider string
	// IsSource is true when the opening process is itself a memory server.
	IsSource bool
	// ThreadMode is the locking discipline forwarded to the provider.
	ThreadMode ThreadMode
}

// Provider opens transport domains. It is the root of the binding.
type Provider interface {
	// Open initializes the fabric and returns a domain bound to the
	// configured node and service.
	Open(cfg OpenConfig) (Domain, error)
	// Name reports the provider name.
	Name() string
}

// Domain owns the provider resources an engine instance needs: address
// vectors, endpoints, and registered memory. Close releases everything the
// domain handed out, in reverse order of creation.
type Domain interface {
	// OpenAddressVector opens the domain's address vector. Required for
	// reliable-datagram endpoints.
	OpenAddressVector() (AddressVector, error)
	// OpenEndpoint creates a new endpoint with its completion queue pair.
	// The endpoint is unusable until EnableBind.
	OpenEndpoint() (Endpoint, error)
	// RegisterMemory registers a local buffer for remote access under the
	// given key. Only memory servers register.
	RegisterMemory(key uint64, buf []byte) (MemoryRegion, error)
	// IOVLimit reports the provider's per-operation IOV limit.
	IOVLimit() int
	// EndpointType reports the class of endpoints this domain opens.
	EndpointType() EndpointType
	Close() error
}

// AddressVector translates raw provider addresses into Address tokens.
type AddressVector interface {
	// InsertRaw inserts a provider-specific raw address and returns its
	// token. Tokens are stable for the lifetime of the vector.
	InsertRaw(raw []byte) (Address, error)
	Close() error
}

// MemoryRegion is a registered local buffer.
type MemoryRegion interface {
	Key() uint64
	Close() error
}

// RMAIov names one remote extent of a vectored RMA operation. The local
// side is always a contiguous buffer slice.
type RMAIov struct {
	Offset uint64
	Len    uint64
}

// Endpoint is one transmit/receive context: an endpoint plus its
// completion queues. It is the unit of ordering on the fabric. Concurrent
// use requires the domain to have been opened with ThreadSafe.
type Endpoint interface {
	// EnableBind binds the endpoint to the address vector and the
	// domain's event queue and transitions it to the active state.
	EnableBind(av AddressVector) error
	// Name returns the provider-specific raw address of the endpoint,
	// suitable for AddressVector.InsertRaw on a peer.
	Name() ([]byte, error)

	// Write copies local into remote memory (key, offset) and blocks
	// until remote completion.
	Write(key uint64, local []byte, offset uint64, addr Address) error
	// Read fills local from remote memory (key, offset) and blocks until
	// completion.
	Read(key uint64, local []byte, offset uint64, addr Address) error
	// WriteNonblocking posts a write and returns without waiting. The
	// local buffer must stay untouched until the next Quiet.
	WriteNonblocking(key uint64, local []byte, offset uint64, addr Address) error
	// ReadNonblocking posts a read and returns without waiting.
	ReadNonblocking(key uint64, local []byte, offset uint64, addr Address) error

	// WriteV scatters the contiguous local buffer into the remote
	// extents. len(iov) must not exceed the domain IOV limit.
	WriteV(key uint64, local []byte, iov []RMAIov, addr Address, block bool) error
	// ReadV gathers the remote extents into the contiguous local buffer.
	ReadV(key uint64, local []byte, iov []RMAIov, addr Address, block bool) error

	// Atomic applies op to remote memory using the operand encoding of
	// typ. It blocks until completion.
	Atomic(key uint64, operand []byte, offset uint64, op AtomicOp, typ AtomicType, addr Address) error
	// FetchAtomic applies op and returns the prior remote value in
	// result. With OpAtomicRead the operand is ignored.
	FetchAtomic(key uint64, operand, result []byte, offset uint64, op AtomicOp, typ AtomicType, addr Address) error
	// CompareAtomic conditionally replaces remote memory with desired
	// when it equals compare, always returning the prior value in result.
	CompareAtomic(key uint64, compare, result, desired []byte, offset uint64, op AtomicOp, typ AtomicType, addr Address) error

	// Fence orders subsequent writes on this endpoint after all prior
	// ones. It does not wait for completions.
	Fence(addr Address) error
	// Quiet blocks until every operation previously posted on this
	// endpoint has completed, returning the first deferred error.
	Quiet() error

	Close() error
}
