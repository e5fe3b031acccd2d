package fam

import (
	"github.com/rocketbitz/fam-go/fabric"
)

// FabricContext owns one endpoint with its completion queue pair. Its
// address-vector and event-queue bindings are immutable once enabled. A
// context lives from first use until engine teardown; descriptors cache a
// back-reference but never own it.
type FabricContext struct {
	ep fabric.Endpoint
}

// Endpoint exposes the underlying fabric endpoint.
func (c *FabricContext) Endpoint() fabric.Endpoint {
	if c == nil {
		return nil
	}
	return c.ep
}

func (c *FabricContext) close() error {
	if c == nil || c.ep == nil {
		return nil
	}
	return c.ep.Close()
}

// newContext opens, enables, and binds a fresh endpoint.
func (o *Ops) newContext() (*FabricContext, error) {
	ep, err := o.domain.OpenEndpoint()
	if err != nil {
		return nil, datapathError("open_endpoint", err)
	}
	if err := ep.EnableBind(o.av); err != nil {
		_ = ep.Close()
		return nil, datapathError("fabric_enable_bind_ep", err)
	}
	return &FabricContext{ep: ep}, nil
}

// getContext supplies the context for the descriptor according to the
// configured policy. The returned context is always enabled and bound.
func (o *Ops) getContext(d *Descriptor) (*FabricContext, error) {
	switch o.cfg.ContextModel {
	case ContextDefault:
		ctx, ok := o.defContexts[d.MemserverID]
		if !ok {
			return nil, datapathError("get_context", fabric.ErrAddressUnknown)
		}
		return ctx, nil

	case ContextRegion:
		// Fast path: the descriptor field is written at most once, under
		// ctxLock, with the context published in the region table.
		if ctx := d.ctx.Load(); ctx != nil {
			return ctx, nil
		}

		o.ctxLock.Lock()
		defer o.ctxLock.Unlock()

		ctx, ok := o.contexts[d.RegionID]
		if !ok {
			var err error
			ctx, err = o.newContext()
			if err != nil {
				return nil, err
			}
			o.contexts[d.RegionID] = ctx
			o.metricContextCreated(logKV("region_id", d.RegionID))
			o.logEvent("context_created", logKV("region_id", d.RegionID))
		}
		d.setContext(ctx)
		return ctx, nil

	default:
		return nil, invalidConfigf("unrecognised context model %d", o.cfg.ContextModel)
	}
}
