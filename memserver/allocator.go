package memserver

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/rocketbitz/fam-go/fam"
)

var _ fam.Allocator = (*Server)(nil)

// GetAddrSize reports the length of this server's raw fabric address.
func (s *Server) GetAddrSize(memserverID uint64) (int, error) {
	if memserverID != s.cfg.MemserverID {
		return 0, fmt.Errorf("memserver: unknown memory server %d", memserverID)
	}
	return len(s.ops.ServerAddress()), nil
}

// GetAddr fills buf with this server's raw fabric address.
func (s *Server) GetAddr(buf []byte, memserverID uint64) error {
	if memserverID != s.cfg.MemserverID {
		return fmt.Errorf("memserver: unknown memory server %d", memserverID)
	}
	addr := s.ops.ServerAddress()
	if len(buf) < len(addr) {
		return fmt.Errorf("memserver: address buffer too short: %d < %d", len(buf), len(addr))
	}
	copy(buf, addr)
	return nil
}

// Copy performs a server-side copy between two items and returns a wait
// handle. The copy is complete when Copy returns; the handle exists to
// preserve the asynchronous interface contract.
func (s *Server) Copy(src *fam.Descriptor, srcOffset uint64, dest *fam.Descriptor, destOffset, nbytes uint64) (fam.CopyHandle, error) {
	s.mu.Lock()
	srcItem, srcOK := s.itemsByKey[src.AccessKey]
	destItem, destOK := s.itemsByKey[dest.AccessKey]
	s.mu.Unlock()
	if !srcOK || !destOK {
		return nil, fmt.Errorf("memserver: copy with unknown access key")
	}
	if srcOffset+nbytes > srcItem.size || destOffset+nbytes > destItem.size {
		return nil, fmt.Errorf("memserver: copy of %d bytes out of bounds", nbytes)
	}
	copy(destItem.buf[destOffset:destOffset+nbytes], srcItem.buf[srcOffset:srcOffset+nbytes])

	handle := uuid.New()
	s.copyMu.Lock()
	s.pending[handle] = struct{}{}
	s.copyMu.Unlock()
	return handle, nil
}

// WaitForCopy blocks until the copy behind the handle completes.
func (s *Server) WaitForCopy(h fam.CopyHandle) error {
	handle, ok := h.(uuid.UUID)
	if !ok {
		return ErrUnknownHandle
	}
	s.copyMu.Lock()
	defer s.copyMu.Unlock()
	if _, ok := s.pending[handle]; !ok {
		return ErrUnknownHandle
	}
	delete(s.pending, handle)
	return nil
}

func (s *Server) lockFor(d *fam.Descriptor) *sync.Mutex {
	key := lockKey{regionID: d.RegionID, itemID: d.ItemID}
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	mu, ok := s.locks[key]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[key] = mu
	}
	return mu
}

// AcquireCASLock takes the per-item mutual exclusion lease backing
// emulated wide atomics.
func (s *Server) AcquireCASLock(d *fam.Descriptor) error {
	s.lockFor(d).Lock()
	return nil
}

// ReleaseCASLock drops the lease taken by AcquireCASLock.
func (s *Server) ReleaseCASLock(d *fam.Descriptor) error {
	s.lockFor(d).Unlock()
	return nil
}
