// Package runtimegraph implements the Flow Runtime Graph and its
// composition algorithm: flattening subflows and slots into one
// concrete graph for a session.
package runtimegraph

import (
	"fmt"

	"github.com/oocana-go/oocana/internal/domain/flow"
	"github.com/oocana-go/oocana/internal/domain/signal"
)

// Graph is the fully-resolved runtime graph for one session. After
// Compose returns, the only change made to it is the session setting
// node Ignore flags for run-to-node / run-from-node before the scheduler
// starts; the scheduler and router only read from it.
type Graph struct {
	Nodes   map[flow.NodeId]*flow.Node
	Signals *signal.Center

	// RootInputDefs describes the top-level flow's own declared inputs
	// (the root block's InputDefs, or an empty map when it has none).
	RootInputDefs map[flow.HandleName]flow.InputHandle
}

// Tos returns the precomputed sink table keyed by node, the shape the
// Handle & Value Router consumes directly.
func (g *Graph) Tos() map[flow.NodeId]flow.HandlesTos {
	out := make(map[flow.NodeId]flow.HandlesTos, len(g.Nodes))
	for id, n := range g.Nodes {
		out[id] = n.To
	}
	return out
}

// TerminalNodes returns the nodes whose outputs only sink to
// ToFlowOutput or to nothing at all.
func (g *Graph) TerminalNodes() []flow.NodeId {
	var out []flow.NodeId
	for id, n := range g.Nodes {
		if isTerminal(n) {
			out = append(out, id)
		}
	}
	return out
}

func isTerminal(n *flow.Node) bool {
	for _, sinks := range n.To {
		for _, s := range sinks {
			if s.Kind == flow.ToNodeInputKind || s.Kind == flow.ToSlotInputKind {
				return false
			}
		}
	}
	return true
}

// Validate checks the runtime graph's structural invariants.
func (g *Graph) Validate() error {
	if err := g.validateEdgeTargets(); err != nil {
		return err
	}
	if err := g.validateInputCoverage(); err != nil {
		return err
	}
	if g.Signals.HasCycle() {
		return fmt.Errorf("runtimegraph: run_after graph contains a cycle")
	}
	if err := g.validateDataCycles(); err != nil {
		return err
	}
	for id, n := range g.Nodes {
		if n.Kind == flow.SlotKind || n.Kind == flow.SubflowKind {
			return fmt.Errorf("runtimegraph: node %s of kind %s survived composition", id, n.Kind)
		}
	}
	return nil
}

func (g *Graph) validateEdgeTargets() error {
	for id, n := range g.Nodes {
		for handle, sources := range n.From {
			for _, src := range sources {
				if src.Kind != flow.FromNodeOutputKind {
					continue
				}
				target, ok := g.Nodes[src.Node]
				if !ok {
					return fmt.Errorf("runtimegraph: node %s input %s references missing node %s", id, handle, src.Node)
				}
				if _, ok := target.OutputDefs[src.Output]; !ok && !hasAdditionalOutputs(target) {
					return fmt.Errorf("runtimegraph: node %s input %s references undeclared output %s.%s", id, handle, src.Node, src.Output)
				}
			}
		}
	}
	return nil
}

func hasAdditionalOutputs(n *flow.Node) bool {
	for _, o := range n.OutputDefs {
		if o.IsAdditional {
			return true
		}
	}
	return false
}

func (g *Graph) validateInputCoverage() error {
	for id, n := range g.Nodes {
		if n.Ignore {
			continue
		}
		for _, handle := range n.RequiredInputs() {
			if len(n.From[handle]) == 0 {
				return fmt.Errorf("runtimegraph: node %s required input %s has no source", id, handle)
			}
		}
	}
	return nil
}

// validateDataCycles rejects cycles among FromNodeOutput edges unless
// at least one edge on the cycle has a literal default that can
// bootstrap it.
func (g *Graph) validateDataCycles() error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[flow.NodeId]int, len(g.Nodes))
	var cyclePath []flow.NodeId

	var visit func(id flow.NodeId) bool
	visit = func(id flow.NodeId) bool {
		color[id] = gray
		cyclePath = append(cyclePath, id)
		n := g.Nodes[id]
		for _, sources := range n.From {
			for _, src := range sources {
				if src.Kind != flow.FromNodeOutputKind {
					continue
				}
				switch color[src.Node] {
				case white:
					if visit(src.Node) {
						return true
					}
				case gray:
					cyclePath = append(cyclePath, src.Node)
					return true
				}
			}
		}
		color[id] = black
		cyclePath = cyclePath[:len(cyclePath)-1]
		return false
	}

	for id := range g.Nodes {
		if color[id] == white {
			cyclePath = nil
			if visit(id) {
				if !cycleHasBootstrap(g, cyclePath) {
					return fmt.Errorf("runtimegraph: data-edge cycle with no bootstrapping default: %v", cyclePath)
				}
			}
		}
	}
	return nil
}

func cycleHasBootstrap(g *Graph, path []flow.NodeId) bool {
	for _, id := range path {
		n, ok := g.Nodes[id]
		if !ok {
			continue
		}
		for _, h := range n.InputDefs {
			if h.HasDefault() {
				return true
			}
		}
	}
	return false
}
