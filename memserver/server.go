// Package memserver hosts FAM regions and items in-process and implements
// the engine's Allocator interface: fabric address discovery, offloaded
// copies, and the per-item CAS-lock service. It runs the engine in source
// mode over the shm provider, so a client engine in the same process
// reaches its memory exactly as it would reach a remote server. It is a
// loopback collaborator for development and tests, not the production
// memory manager.
package memserver

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/google/uuid"

	"github.com/rocketbitz/fam-go/fabric"
	"github.com/rocketbitz/fam-go/fam"
)

// ErrUnknownHandle indicates a wait handle this server never issued.
var ErrUnknownHandle = errors.New("memserver: unknown copy handle")

// itemAlign keeps every item 16-byte aligned so wide atomics never
// straddle an alignment boundary.
const itemAlign = 16

// Config controls New.
type Config struct {
	// MemserverID is the id this server's regions and descriptors carry.
	MemserverID uint64
	// Service is the transport service identifier.
	Service string
	// ThreadMode is forwarded to the engine and provider.
	ThreadMode fabric.ThreadMode
	// Transport overrides the fabric binding; defaults to shm.
	Transport fabric.Provider
}

type item struct {
	name   string
	id     uint64
	key    uint64
	size   uint64
	region *region
	buf    []byte
}

type region struct {
	name  string
	id    uint64
	size  uint64
	perm  fs.FileMode
	buf   []byte
	used  uint64
	items map[string]*item
}

type lockKey struct {
	regionID uint64
	itemID   uint64
}

// Server is one in-process memory server.
type Server struct {
	cfg Config
	ops *fam.Ops

	mu         sync.Mutex
	regions    map[string]*region
	itemsByKey map[uint64]*item
	nextRegion uint64
	nextKey    uint64

	lockMu sync.Mutex
	locks  map[lockKey]*sync.Mutex

	copyMu  sync.Mutex
	pending map[uuid.UUID]struct{}
}

// New starts a memory server: a source-mode engine whose published
// endpoint name peers discover through the Allocator interface.
func New(cfg Config) (*Server, error) {
	ops, err := fam.New(fam.Config{
		MemoryServer: "local",
		Service:      cfg.Service,
		ThreadMode:   cfg.ThreadMode,
		IsSource:     true,
		Transport:    cfg.Transport,
	})
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:        cfg,
		ops:        ops,
		regions:    make(map[string]*region),
		itemsByKey: make(map[uint64]*item),
		nextRegion: 1,
		nextKey:    1,
		locks:      make(map[lockKey]*sync.Mutex),
		pending:    make(map[uuid.UUID]struct{}),
	}, nil
}

// MemserverID reports the id this server was configured with.
func (s *Server) MemserverID() uint64 { return s.cfg.MemserverID }

// Close tears the server down, releasing registered memory and fabric
// resources.
func (s *Server) Close() error { return s.ops.Close() }

// CreateRegion creates a named region of the given size and permissions.
func (s *Server) CreateRegion(name string, size uint64, perm fs.FileMode) (*fam.RegionDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.regions[name]; exists {
		return nil, fmt.Errorf("memserver: region %q already exists", name)
	}
	r := &region{
		name:  name,
		id:    fam.MakeRegionID(s.cfg.MemserverID, s.nextRegion),
		size:  size,
		perm:  perm,
		buf:   make([]byte, size),
		items: make(map[string]*item),
	}
	s.nextRegion++
	s.regions[name] = r
	return &fam.RegionDescriptor{MemserverID: s.cfg.MemserverID, RegionID: r.id}, nil
}

// AllocateItem allocates a named item inside a region, registers it for
// remote access, and returns its descriptor.
func (s *Server) AllocateItem(regionName, itemName string, size uint64) (*fam.Descriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.regions[regionName]
	if !ok {
		return nil, fmt.Errorf("memserver: region %q not found", regionName)
	}
	if _, exists := r.items[itemName]; exists {
		return nil, fmt.Errorf("memserver: item %q already exists in region %q", itemName, regionName)
	}
	offset := (r.used + itemAlign - 1) &^ uint64(itemAlign-1)
	if offset+size > r.size {
		return nil, fmt.Errorf("memserver: region %q exhausted: %d of %d bytes used", regionName, offset, r.size)
	}
	it := &item{
		name:   itemName,
		id:     uint64(len(r.items)) + 1,
		key:    s.nextKey,
		size:   size,
		region: r,
		buf:    r.buf[offset : offset+size],
	}
	if err := s.ops.RegisterMemory(it.key, it.buf); err != nil {
		return nil, err
	}
	s.nextKey++
	r.used = offset + size
	r.items[itemName] = it
	s.itemsByKey[it.key] = it
	return s.describe(it), nil
}

func (s *Server) describe(it *item) *fam.Descriptor {
	return &fam.Descriptor{
		MemserverID: s.cfg.MemserverID,
		RegionID:    it.region.id,
		ItemID:      it.id,
		AccessKey:   it.key,
	}
}

// LookupRegion returns the descriptor and size of a named region.
func (s *Server) LookupRegion(name string) (*fam.RegionDescriptor, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.regions[name]
	if !ok {
		return nil, 0, fmt.Errorf("memserver: region %q not found", name)
	}
	return &fam.RegionDescriptor{MemserverID: s.cfg.MemserverID, RegionID: r.id}, r.size, nil
}

// Lookup returns a fresh descriptor and the size of a named item.
func (s *Server) Lookup(regionName, itemName string) (*fam.Descriptor, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.regions[regionName]
	if !ok {
		return nil, 0, fmt.Errorf("memserver: region %q not found", regionName)
	}
	it, ok := r.items[itemName]
	if !ok {
		return nil, 0, fmt.Errorf("memserver: item %q not found in region %q", itemName, regionName)
	}
	return s.describe(it), it.size, nil
}
