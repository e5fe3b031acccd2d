package memserver

import (
	"fmt"

	"github.com/rocketbitz/fam-go/fam"
)

var _ fam.Allocator = (*Cluster)(nil)

// Cluster aggregates several servers behind one Allocator, routing each
// call to the server owning the target memserver id. Servers must be
// configured with dense ids starting at zero, matching their position.
type Cluster struct {
	servers []*Server
}

// NewCluster builds a cluster allocator over the given servers.
func NewCluster(servers ...*Server) (*Cluster, error) {
	for i, srv := range servers {
		if srv.MemserverID() != uint64(i) {
			return nil, fmt.Errorf("memserver: server %d configured with id %d", i, srv.MemserverID())
		}
	}
	return &Cluster{servers: servers}, nil
}

func (c *Cluster) server(memserverID uint64) (*Server, error) {
	if memserverID >= uint64(len(c.servers)) {
		return nil, fmt.Errorf("memserver: unknown memory server %d", memserverID)
	}
	return c.servers[memserverID], nil
}

func (c *Cluster) GetAddrSize(memserverID uint64) (int, error) {
	srv, err := c.server(memserverID)
	if err != nil {
		return 0, err
	}
	return srv.GetAddrSize(memserverID)
}

func (c *Cluster) GetAddr(buf []byte, memserverID uint64) error {
	srv, err := c.server(memserverID)
	if err != nil {
		return err
	}
	return srv.GetAddr(buf, memserverID)
}

func (c *Cluster) Copy(src *fam.Descriptor, srcOffset uint64, dest *fam.Descriptor, destOffset, nbytes uint64) (fam.CopyHandle, error) {
	if src.MemserverID != dest.MemserverID {
		return nil, fmt.Errorf("memserver: cross-server copy not supported")
	}
	srv, err := c.server(src.MemserverID)
	if err != nil {
		return nil, err
	}
	return srv.Copy(src, srcOffset, dest, destOffset, nbytes)
}

func (c *Cluster) WaitForCopy(h fam.CopyHandle) error {
	for _, srv := range c.servers {
		if err := srv.WaitForCopy(h); err == nil {
			return nil
		}
	}
	return ErrUnknownHandle
}

func (c *Cluster) AcquireCASLock(d *fam.Descriptor) error {
	srv, err := c.server(d.MemserverID)
	if err != nil {
		return err
	}
	return srv.AcquireCASLock(d)
}

func (c *Cluster) ReleaseCASLock(d *fam.Descriptor) error {
	srv, err := c.server(d.MemserverID)
	if err != nil {
		return err
	}
	return srv.ReleaseCASLock(d)
}
