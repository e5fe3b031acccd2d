package fam

import (
	"github.com/rocketbitz/fam-go/fabric"
)

// ContextModel selects how the engine maps operations onto fabric
// contexts.
type ContextModel int

const (
	// ContextDefault keeps one context per memory server, created
	// eagerly at initialisation.
	ContextDefault ContextModel = iota
	// ContextRegion keeps one context per region, created lazily on
	// first access.
	ContextRegion
)

func (m ContextModel) String() string {
	switch m {
	case ContextDefault:
		return "default"
	case ContextRegion:
		return "region"
	default:
		return "unknown"
	}
}

// Config controls construction of an Ops engine.
type Config struct {
	// MemoryServers maps memserver id to hostname. Ids must be dense,
	// starting at zero.
	MemoryServers map[uint64]string
	// MemoryServer is a single-server shorthand for MemoryServers;
	// ignored when MemoryServers is set.
	MemoryServer string
	// Service is the transport service identifier (a port, typically).
	Service string
	// Provider names the transport provider; forwarded to the binding.
	Provider string
	// ThreadMode is the transport locking discipline, forwarded verbatim.
	ThreadMode fabric.ThreadMode
	// ContextModel selects the context policy.
	ContextModel ContextModel
	// IsSource is true when this process is itself a memory server.
	IsSource bool
	// Allocator is the metadata service; required unless IsSource.
	Allocator Allocator
	// Transport is the fabric binding to drive. Defaults to the
	// in-process shm provider.
	Transport fabric.Provider

	// Logger receives printf-style debug logging.
	Logger Logger
	// StructuredLogger receives key/value debug logging and takes
	// precedence over Logger.
	StructuredLogger StructuredLogger
	// Tracer wraps selected engine activity in spans.
	Tracer Tracer
	// Metrics receives datapath telemetry events.
	Metrics MetricHook
}

func (c *Config) servers() map[uint64]string {
	if len(c.MemoryServers) > 0 {
		return c.MemoryServers
	}
	if c.MemoryServer != "" {
		return map[uint64]string{0: c.MemoryServer}
	}
	return nil
}
