package fam

import (
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/rocketbitz/fam-go/fabric"
)

func newTestEngine(t *testing.T, mutate func(*Config)) (*Ops, *fakeProvider) {
	t.Helper()
	provider := newFakeProvider()
	cfg := Config{
		MemoryServers: map[uint64]string{0: "node0", 1: "node1"},
		Service:       "7500",
		ThreadMode:    fabric.ThreadSafe,
		Allocator:     newFakeAllocator(),
		Transport:     provider,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	ops, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = ops.Close() })
	return ops, provider
}

func TestNewRequiresMemoryServers(t *testing.T) {
	_, err := New(Config{Allocator: newFakeAllocator(), Transport: newFakeProvider()})
	if KindOf(err) != KindInvalidConfig {
		t.Fatalf("expected invalid config, got %v", err)
	}
}

func TestNewRequiresAllocatorInClientMode(t *testing.T) {
	_, err := New(Config{
		MemoryServer: "node0",
		Transport:    newFakeProvider(),
	})
	if KindOf(err) != KindInvalidConfig {
		t.Fatalf("expected invalid config, got %v", err)
	}
}

func TestNewRejectsSparseServerIDs(t *testing.T) {
	_, err := New(Config{
		MemoryServers: map[uint64]string{0: "node0", 2: "node2"},
		Allocator:     newFakeAllocator(),
		Transport:     newFakeProvider(),
	})
	if KindOf(err) != KindInvalidConfig {
		t.Fatalf("expected invalid config, got %v", err)
	}
}

func TestNewRejectsUnknownContextModel(t *testing.T) {
	_, err := New(Config{
		MemoryServer: "node0",
		ContextModel: ContextModel(7),
		Allocator:    newFakeAllocator(),
		Transport:    newFakeProvider(),
	})
	if KindOf(err) != KindInvalidConfig {
		t.Fatalf("expected invalid config, got %v", err)
	}
}

func TestDefaultModelCreatesContextPerNode(t *testing.T) {
	ops, provider := newTestEngine(t, nil)

	if got := provider.domain.endpointsOpened(); got != 2 {
		t.Fatalf("expected 2 eager contexts, got %d endpoints", got)
	}

	d0 := &Descriptor{MemserverID: 0, RegionID: MakeRegionID(0, 1), AccessKey: 1}
	d1 := &Descriptor{MemserverID: 1, RegionID: MakeRegionID(1, 1), AccessKey: 2}

	first, err := ops.getContext(d0)
	if err != nil {
		t.Fatalf("getContext: %v", err)
	}
	second, err := ops.getContext(d0)
	if err != nil {
		t.Fatalf("getContext: %v", err)
	}
	if first != second {
		t.Fatalf("repeated getContext returned different contexts")
	}
	other, err := ops.getContext(d1)
	if err != nil {
		t.Fatalf("getContext: %v", err)
	}
	if other == first {
		t.Fatalf("distinct servers share a default context")
	}
}

func TestRegionModelConcurrentCreateIsUnique(t *testing.T) {
	ops, provider := newTestEngine(t, func(cfg *Config) {
		cfg.ContextModel = ContextRegion
	})

	regionID := MakeRegionID(0, 9)
	const callers = 16
	contexts := make([]*FabricContext, callers)

	var g errgroup.Group
	for i := 0; i < callers; i++ {
		i := i
		g.Go(func() error {
			// A fresh descriptor per caller so nobody hits a warmed
			// cache; every one must land on the same region context.
			d := &Descriptor{MemserverID: 0, RegionID: regionID, AccessKey: 1}
			ctx, err := ops.getContext(d)
			if err != nil {
				return err
			}
			contexts[i] = ctx
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent getContext: %v", err)
	}

	for i := 1; i < callers; i++ {
		if contexts[i] != contexts[0] {
			t.Fatalf("caller %d received a different context", i)
		}
	}
	if got := provider.domain.endpointsOpened(); got != 1 {
		t.Fatalf("expected exactly 1 endpoint for the region, got %d", got)
	}
}

func TestRegionModelCachesContextOnDescriptor(t *testing.T) {
	ops, _ := newTestEngine(t, func(cfg *Config) {
		cfg.ContextModel = ContextRegion
	})

	d := &Descriptor{MemserverID: 0, RegionID: MakeRegionID(0, 3), AccessKey: 1}
	if d.Context() != nil {
		t.Fatalf("descriptor cache should start empty")
	}
	ctx, err := ops.getContext(d)
	if err != nil {
		t.Fatalf("getContext: %v", err)
	}
	if d.Context() != ctx {
		t.Fatalf("context not cached on descriptor")
	}
}

func TestRegionModelEnableFailureIsDatapath(t *testing.T) {
	ops, provider := newTestEngine(t, func(cfg *Config) {
		cfg.ContextModel = ContextRegion
	})
	provider.domain.enableErr = fabric.EINVAL

	d := &Descriptor{MemserverID: 0, RegionID: MakeRegionID(0, 4), AccessKey: 1}
	_, err := ops.getContext(d)
	if KindOf(err) != KindDatapath {
		t.Fatalf("expected datapath error, got %v", err)
	}
	if d.Context() != nil {
		t.Fatalf("failed creation must not cache a context")
	}
}

func TestRegionIDEncoding(t *testing.T) {
	id := MakeRegionID(3, 42)
	if RegionMemserver(id) != 3 {
		t.Fatalf("RegionMemserver(%#x) = %d, want 3", id, RegionMemserver(id))
	}
	if id&(1<<MemserverIDShift-1) != 42 {
		t.Fatalf("local region bits lost: %#x", id)
	}
}
