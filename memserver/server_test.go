package memserver

import (
	"testing"

	"github.com/rocketbitz/fam-go/fam"
)

func newServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(Config{Service: "7700"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRegionAndItemLifecycle(t *testing.T) {
	s := newServer(t)

	region, err := s.CreateRegion("data", 8192, 0o777)
	if err != nil {
		t.Fatalf("CreateRegion: %v", err)
	}
	if fam.RegionMemserver(region.RegionID) != 0 {
		t.Fatalf("region id encodes wrong server: %#x", region.RegionID)
	}
	if _, err := s.CreateRegion("data", 4096, 0o777); err == nil {
		t.Fatalf("duplicate region should fail")
	}

	item, err := s.AllocateItem("data", "block", 1024)
	if err != nil {
		t.Fatalf("AllocateItem: %v", err)
	}
	if item.RegionID != region.RegionID {
		t.Fatalf("item region mismatch")
	}
	if item.AccessKey == 0 {
		t.Fatalf("item missing access key")
	}
	if _, err := s.AllocateItem("data", "block", 64); err == nil {
		t.Fatalf("duplicate item should fail")
	}

	desc, size, err := s.Lookup("data", "block")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if size != 1024 || desc.AccessKey != item.AccessKey {
		t.Fatalf("lookup returned size=%d key=%d", size, desc.AccessKey)
	}
}

func TestRegionExhaustion(t *testing.T) {
	s := newServer(t)
	if _, err := s.CreateRegion("small", 128, 0o700); err != nil {
		t.Fatalf("CreateRegion: %v", err)
	}
	if _, err := s.AllocateItem("small", "a", 100); err != nil {
		t.Fatalf("first item: %v", err)
	}
	if _, err := s.AllocateItem("small", "b", 100); err == nil {
		t.Fatalf("allocation past region size should fail")
	}
}

func TestAddressDiscovery(t *testing.T) {
	s := newServer(t)

	size, err := s.GetAddrSize(0)
	if err != nil {
		t.Fatalf("GetAddrSize: %v", err)
	}
	if size == 0 {
		t.Fatalf("server published empty address")
	}
	buf := make([]byte, size)
	if err := s.GetAddr(buf, 0); err != nil {
		t.Fatalf("GetAddr: %v", err)
	}
	if _, err := s.GetAddrSize(3); err == nil {
		t.Fatalf("foreign memserver id should fail")
	}
	if err := s.GetAddr(make([]byte, 1), 0); err == nil {
		t.Fatalf("short buffer should fail")
	}
}

func TestCASLockPerItem(t *testing.T) {
	s := newServer(t)
	if _, err := s.CreateRegion("locks", 4096, 0o700); err != nil {
		t.Fatalf("CreateRegion: %v", err)
	}
	a, err := s.AllocateItem("locks", "a", 64)
	if err != nil {
		t.Fatalf("AllocateItem: %v", err)
	}
	b, err := s.AllocateItem("locks", "b", 64)
	if err != nil {
		t.Fatalf("AllocateItem: %v", err)
	}

	// Locks on distinct items are independent: holding a must not block b.
	if err := s.AcquireCASLock(a); err != nil {
		t.Fatalf("acquire a: %v", err)
	}
	acquired := make(chan struct{})
	go func() {
		_ = s.AcquireCASLock(b)
		close(acquired)
	}()
	<-acquired
	if err := s.ReleaseCASLock(b); err != nil {
		t.Fatalf("release b: %v", err)
	}
	if err := s.ReleaseCASLock(a); err != nil {
		t.Fatalf("release a: %v", err)
	}
}

func TestCopyHandleSingleUse(t *testing.T) {
	s := newServer(t)
	if _, err := s.CreateRegion("copy", 4096, 0o700); err != nil {
		t.Fatalf("CreateRegion: %v", err)
	}
	src, err := s.AllocateItem("copy", "src", 64)
	if err != nil {
		t.Fatalf("AllocateItem: %v", err)
	}
	dst, err := s.AllocateItem("copy", "dst", 64)
	if err != nil {
		t.Fatalf("AllocateItem: %v", err)
	}

	handle, err := s.Copy(src, 0, dst, 0, 32)
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if err := s.WaitForCopy(handle); err != nil {
		t.Fatalf("WaitForCopy: %v", err)
	}
	if err := s.WaitForCopy(handle); err == nil {
		t.Fatalf("consumed handle should fail")
	}
	if err := s.WaitForCopy("bogus"); err == nil {
		t.Fatalf("foreign handle should fail")
	}
	if _, err := s.Copy(src, 40, dst, 0, 32); err == nil {
		t.Fatalf("out-of-bounds copy should fail")
	}
}
