// Package router implements the Handle & Value Router: given the
// runtime graph's precomputed sink tables, it fans a worker's emitted
// output out to every downstream input store and/or flow output.
package router

import (
	"sync"

	"github.com/oocana-go/oocana/internal/domain/flow"
	"github.com/oocana-go/oocana/internal/domain/inputstore"
)

// Router owns the per-(node,output) sink table and the flow-level
// output accumulator. It holds no goroutine of its own: Route is called
// synchronously by whatever owns linearizability (the scheduler actor).
type Router struct {
	tos   map[flow.NodeId]flow.HandlesTos
	store *inputstore.Store

	mu          sync.Mutex
	flowOutputs map[flow.HandleName]interface{}
}

// New builds a router over a composed graph's sink tables and the
// session's Node Input Store.
func New(tos map[flow.NodeId]flow.HandlesTos, store *inputstore.Store) *Router {
	return &Router{
		tos:         tos,
		store:       store,
		flowOutputs: make(map[flow.HandleName]interface{}),
	}
}

// Route delivers one output emission from (fromNode, fromHandle) to
// every sink it precomputed for that handle. done=true additionally
// propagates a "no more values" signal to each ToNodeInput sink's store.
func (r *Router) Route(fromNode flow.NodeId, fromHandle flow.HandleName, value interface{}, done bool) {
	sinks := r.tos[fromNode][fromHandle]
	for _, sink := range sinks {
		switch sink.Kind {
		case flow.ToNodeInputKind, flow.ToSlotInputKind:
			// ToSlotInput sinks that survive to runtime (the composer
			// normally rewrites them to ToNodeInput against the
			// resolved slot provider during slot resolution) are routed
			// identically: Node already names the resolved target.
			if ns := r.store.Get(sink.Node); ns != nil {
				ns.Push(sink.Input, value, false)
				if done {
					ns.PushDone(sink.Input)
				}
			}
		case flow.ToFlowOutputKind:
			r.mu.Lock()
			// Last write wins per handle when more than one upstream
			// writes to the same flow output.
			r.flowOutputs[sink.Output] = value
			r.mu.Unlock()
		}
	}
}

// FlowOutputs returns a snapshot of the merged flow-level outputs
// accumulated so far.
func (r *Router) FlowOutputs() map[flow.HandleName]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[flow.HandleName]interface{}, len(r.flowOutputs))
	for k, v := range r.flowOutputs {
		out[k] = v
	}
	return out
}
