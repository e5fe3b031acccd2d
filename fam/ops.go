// Package fam implements the client-side datapath engine of a
// fabric-attached-memory library: bulk transfers, gather/scatter, native
// and emulated atomics, and the fence/quiet ordering primitives, all
// dispatched over a pluggable fabric binding. Region and item allocation
// live behind the Allocator interface; the memserver package provides an
// in-process implementation for loopback use.
package fam

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rocketbitz/fam-go/fabric"
	"github.com/rocketbitz/fam-go/fabric/shm"
)

// Ops is the operation dispatcher and transport-context manager. It is
// safe for concurrent use by multiple goroutines when constructed with
// fabric.ThreadSafe.
type Ops struct {
	cfg       Config
	allocator Allocator

	provider fabric.Provider
	domain   fabric.Domain
	av       fabric.AddressVector

	// fiAddrs is the address registry: memserver id to fabric address
	// token. Frozen after initialisation.
	fiAddrs []fabric.Address

	iovLimit int

	// serverCtx backs serverAddrName in source mode: the published name
	// is resolvable only while its endpoint is live, so the context is
	// held open until teardown.
	serverCtx      *FabricContext
	serverAddrName []byte

	// defContexts is populated eagerly under ContextDefault; contexts is
	// populated lazily under ContextRegion, guarded by ctxLock.
	defContexts map[uint64]*FabricContext
	contexts    map[uint64]*FabricContext
	ctxLock     sync.Mutex

	// fiMrs holds server-mode memory registrations, append-only during a
	// session.
	fiMrs    map[uint64]fabric.MemoryRegion
	fiMrLock sync.Mutex

	closed atomic.Bool

	logger           Logger
	structuredLogger StructuredLogger
	tracer           Tracer
	metrics          MetricHook
}

// New validates the configuration, initialises the transport, populates
// the address registry, and (under ContextDefault) creates the per-node
// default contexts. The returned engine is ready for dispatch.
func New(cfg Config) (*Ops, error) {
	servers := cfg.servers()
	if len(servers) == 0 {
		return nil, invalidConfigf("no memory servers configured")
	}
	if !cfg.IsSource && cfg.Allocator == nil {
		return nil, invalidConfigf("allocator required in client mode")
	}
	switch cfg.ContextModel {
	case ContextDefault, ContextRegion:
	default:
		return nil, invalidConfigf("unrecognised context model %d", cfg.ContextModel)
	}
	ids := make([]uint64, 0, len(servers))
	for id := range servers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for i, id := range ids {
		if id != uint64(i) {
			return nil, invalidConfigf("memory server ids must be dense starting at zero, got %d", id)
		}
	}

	transport := cfg.Transport
	if transport == nil {
		transport = shm.New()
	}

	o := &Ops{
		cfg:              cfg,
		allocator:        cfg.Allocator,
		provider:         transport,
		defContexts:      make(map[uint64]*FabricContext),
		contexts:         make(map[uint64]*FabricContext),
		fiMrs:            make(map[uint64]fabric.MemoryRegion),
		logger:           cfg.Logger,
		structuredLogger: cfg.StructuredLogger,
		tracer:           cfg.Tracer,
		metrics:          cfg.Metrics,
	}

	if err := o.initialize(servers, ids); err != nil {
		_ = o.Close()
		return nil, err
	}
	return o, nil
}

func (o *Ops) initialize(servers map[uint64]string, ids []uint64) error {
	domain, err := o.provider.Open(fabric.OpenConfig{
		Node:       servers[0],
		Service:    o.cfg.Service,
		Provider:   o.cfg.Provider,
		IsSource:   o.cfg.IsSource,
		ThreadMode: o.cfg.ThreadMode,
	})
	if err != nil {
		return datapathError("fabric_initialize", err)
	}
	o.domain = domain

	if domain.EndpointType() == fabric.EndpointRDM {
		av, err := domain.OpenAddressVector()
		if err != nil {
			return datapathError("fabric_initialize_av", err)
		}
		o.av = av
	}

	for _, nodeID := range ids {
		if !o.cfg.IsSource {
			size, err := o.allocator.GetAddrSize(nodeID)
			if err != nil || size <= 0 {
				if err == nil {
					err = invalidConfigf("allocator reported empty address for server %d", nodeID)
				}
				return allocatorError("get_addr_size", err)
			}
			raw := make([]byte, size)
			if err := o.allocator.GetAddr(raw, nodeID); err != nil {
				return allocatorError("get_addr", err)
			}
			addr, err := o.av.InsertRaw(raw)
			if err != nil {
				return datapathError("fabric_insert_av", err)
			}
			o.fiAddrs = append(o.fiAddrs, addr)
		} else if o.serverAddrName == nil {
			// Publish this server's own endpoint name for peers. The
			// introspection context stays open for the engine's
			// lifetime: closing it would unregister the name.
			ctx, err := o.newContext()
			if err != nil {
				return err
			}
			name, nameErr := ctx.ep.Name()
			if nameErr != nil || len(name) == 0 {
				_ = ctx.close()
				if nameErr == nil {
					nameErr = fabric.ErrInvalidHandle{Resource: "endpoint name"}
				}
				return datapathError("fabric_getname", nameErr)
			}
			o.serverCtx = ctx
			o.serverAddrName = name
		}

		if o.cfg.ContextModel == ContextDefault {
			ctx, err := o.newContext()
			if err != nil {
				return err
			}
			o.defContexts[nodeID] = ctx
			o.metricContextCreated(logKV("memserver_id", nodeID))
		}
	}

	o.iovLimit = domain.IOVLimit()
	o.logEvent("initialized",
		logKV("servers", len(ids)),
		logKV("iov_limit", o.iovLimit),
	)
	return nil
}

// ServerAddress returns the raw fabric address name published in source
// mode, nil otherwise.
func (o *Ops) ServerAddress() []byte {
	if o == nil || o.serverAddrName == nil {
		return nil
	}
	name := make([]byte, len(o.serverAddrName))
	copy(name, o.serverAddrName)
	return name
}

// IOVLimit reports the provider's per-operation IOV limit cached at
// initialisation.
func (o *Ops) IOVLimit() int {
	return o.iovLimit
}

// RegisterMemory registers a local buffer for remote access under key.
// Only meaningful in source mode; the mapping is append-only for the
// session.
func (o *Ops) RegisterMemory(key uint64, buf []byte) error {
	if o.closed.Load() {
		return datapathError("fabric_register_mr", fabric.ErrInvalidHandle{Resource: "engine"})
	}
	o.fiMrLock.Lock()
	defer o.fiMrLock.Unlock()
	if _, exists := o.fiMrs[key]; exists {
		return datapathError("fabric_register_mr", fabric.EBUSY)
	}
	mr, err := o.domain.RegisterMemory(key, buf)
	if err != nil {
		return datapathError("fabric_register_mr", err)
	}
	o.fiMrs[key] = mr
	return nil
}

// address resolves a memserver id through the address registry.
func (o *Ops) address(memserverID uint64) (fabric.Address, error) {
	if memserverID >= uint64(len(o.fiAddrs)) {
		return fabric.AddressUnspecified, datapathError("address_lookup", fabric.ErrAddressUnknown)
	}
	return o.fiAddrs[memserverID], nil
}

// route resolves the context and destination address of a descriptor.
func (o *Ops) route(d *Descriptor) (*FabricContext, fabric.Address, error) {
	addr, err := o.address(d.MemserverID)
	if err != nil {
		return nil, fabric.AddressUnspecified, err
	}
	ctx, err := o.getContext(d)
	if err != nil {
		return nil, fabric.AddressUnspecified, err
	}
	return ctx, addr, nil
}

// Copy starts a server-offloaded copy through the allocator.
func (o *Ops) Copy(src *Descriptor, srcOffset uint64, dest *Descriptor, destOffset, nbytes uint64) (CopyHandle, error) {
	if o.allocator == nil {
		return nil, invalidConfigf("allocator required for copy")
	}
	h, err := o.allocator.Copy(src, srcOffset, dest, destOffset, nbytes)
	if err != nil {
		return nil, allocatorError("copy", err)
	}
	return h, nil
}

// WaitForCopy blocks until the offloaded copy behind h completes.
func (o *Ops) WaitForCopy(h CopyHandle) error {
	if o.allocator == nil {
		return invalidConfigf("allocator required for copy")
	}
	if err := o.allocator.WaitForCopy(h); err != nil {
		return allocatorError("wait_for_copy", err)
	}
	return nil
}

// Abort is declared for interface parity with the original API surface
// and is not supported.
func (o *Ops) Abort(status int) error {
	return unimplemented("abort")
}

// Fence orders subsequent writes after prior writes on every context in
// scope. A nil scope covers all contexts of the configured policy. Fence
// does not wait for completions.
func (o *Ops) Fence(scope *RegionDescriptor) error {
	err := o.forScope(scope, func(addr fabric.Address, ctx *FabricContext) error {
		if err := ctx.ep.Fence(addr); err != nil {
			return datapathError("fabric_fence", err)
		}
		return nil
	}, true)
	if err != nil {
		o.metricOperationFailed("fence", err)
		return err
	}
	o.metricFenceCompleted()
	return nil
}

// Quiet blocks until every operation previously posted on the scope has
// completed. A nil scope covers all contexts of the configured policy.
func (o *Ops) Quiet(scope *RegionDescriptor) error {
	span := o.startSpan("fam-quiet")
	err := o.forScope(scope, func(_ fabric.Address, ctx *FabricContext) error {
		if err := ctx.ep.Quiet(); err != nil {
			return datapathError("fabric_quiet", err)
		}
		return nil
	}, false)
	span.End(err)
	if err != nil {
		o.metricOperationFailed("quiet", err)
		return err
	}
	o.metricQuietCompleted()
	return nil
}

// forScope applies fn to every context selected by scope. Under
// ContextRegion the region table is walked with ctxLock held; the scoped
// path resolves the context from the descriptor cache or the table
// directly, never through getContext, so the lock is taken exactly once.
func (o *Ops) forScope(scope *RegionDescriptor, fn func(fabric.Address, *FabricContext) error, needAddr bool) error {
	switch o.cfg.ContextModel {
	case ContextDefault:
		for nodeID, ctx := range o.defContexts {
			addr := fabric.AddressUnspecified
			if needAddr {
				var err error
				if addr, err = o.address(nodeID); err != nil {
					// Source-mode engines have no registry entry for
					// themselves; there is nothing to order against.
					continue
				}
			}
			if err := fn(addr, ctx); err != nil {
				return err
			}
		}
		return nil

	case ContextRegion:
		o.ctxLock.Lock()
		defer o.ctxLock.Unlock()

		if scope != nil {
			ctx := scope.ctx.Load()
			if ctx == nil {
				var ok bool
				ctx, ok = o.contexts[scope.RegionID]
				if !ok {
					// No context yet means nothing outstanding.
					return nil
				}
				scope.setContext(ctx)
			}
			addr := fabric.AddressUnspecified
			if needAddr {
				var err error
				if addr, err = o.address(scope.MemserverID); err != nil {
					return err
				}
			}
			return fn(addr, ctx)
		}

		for regionID, ctx := range o.contexts {
			addr := fabric.AddressUnspecified
			if needAddr {
				var err error
				if addr, err = o.address(RegionMemserver(regionID)); err != nil {
					return err
				}
			}
			if err := fn(addr, ctx); err != nil {
				return err
			}
		}
		return nil

	default:
		return invalidConfigf("unrecognised context model %d", o.cfg.ContextModel)
	}
}

// Close releases contexts, registered memory, the address vector, and the
// domain, in reverse order of acquisition. Descriptor-cached context
// pointers are not followed; the context tables are authoritative.
func (o *Ops) Close() error {
	if !o.closed.CompareAndSwap(false, true) {
		return nil
	}

	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}

	o.ctxLock.Lock()
	for _, ctx := range o.contexts {
		keep(ctx.close())
	}
	o.contexts = map[uint64]*FabricContext{}
	o.ctxLock.Unlock()

	for _, ctx := range o.defContexts {
		keep(ctx.close())
	}
	o.defContexts = map[uint64]*FabricContext{}

	if o.serverCtx != nil {
		keep(o.serverCtx.close())
		o.serverCtx = nil
	}

	o.fiMrLock.Lock()
	for _, mr := range o.fiMrs {
		keep(mr.Close())
	}
	o.fiMrs = map[uint64]fabric.MemoryRegion{}
	o.fiMrLock.Unlock()

	if o.av != nil {
		keep(o.av.Close())
		o.av = nil
	}
	if o.domain != nil {
		keep(o.domain.Close())
		o.domain = nil
	}

	o.logEvent("finalized")
	return first
}
