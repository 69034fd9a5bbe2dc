// Package signal implements the Signal Center: explicit run_after
// ordering constraints, independent of data edges.
package signal

import "github.com/oocana-go/oocana/internal/domain/flow"

// Center maintains two inverse maps over run_after constraints. after[n]
// is who n must wait for; notify[p] is who to re-check once p finishes,
// so the scheduler doesn't have to scan every node on every transition.
type Center struct {
	after  map[flow.NodeId][]flow.NodeId
	notify map[flow.NodeId][]flow.NodeId
}

// New builds an empty Center; each run_after constraint is recorded
// with Add.
func New() *Center {
	return &Center{
		after:  make(map[flow.NodeId][]flow.NodeId),
		notify: make(map[flow.NodeId][]flow.NodeId),
	}
}

// Add records that node depends on predecessor via run_after.
func (c *Center) Add(node, predecessor flow.NodeId) {
	c.after[node] = append(c.after[node], predecessor)
	c.notify[predecessor] = append(c.notify[predecessor], node)
}

// Predecessors returns the run_after predecessors of a node.
func (c *Center) Predecessors(node flow.NodeId) []flow.NodeId {
	return c.after[node]
}

// Successors returns the nodes to re-check once predecessor reaches a
// terminal state.
func (c *Center) Successors(predecessor flow.NodeId) []flow.NodeId {
	return c.notify[predecessor]
}

// Satisfied reports whether every run_after predecessor of node has
// reached a terminal state, per isTerminal. A node with no predecessors
// is trivially satisfied.
func (c *Center) Satisfied(node flow.NodeId, isTerminal func(flow.NodeId) bool) bool {
	for _, p := range c.after[node] {
		if !isTerminal(p) {
			return false
		}
	}
	return true
}

// HasCycle detects a cycle in the run_after graph via recursive DFS.
// Composition must reject the graph if this returns true.
func (c *Center) HasCycle() bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[flow.NodeId]int)

	var nodes []flow.NodeId
	seen := make(map[flow.NodeId]bool)
	for n := range c.after {
		if !seen[n] {
			seen[n] = true
			nodes = append(nodes, n)
		}
	}
	for n := range c.notify {
		if !seen[n] {
			seen[n] = true
			nodes = append(nodes, n)
		}
	}

	var visit func(flow.NodeId) bool
	visit = func(n flow.NodeId) bool {
		color[n] = gray
		for _, p := range c.after[n] {
			switch color[p] {
			case gray:
				return true
			case white:
				if visit(p) {
					return true
				}
			}
		}
		color[n] = black
		return false
	}

	for _, n := range nodes {
		if color[n] == white {
			if visit(n) {
				return true
			}
		}
	}
	return false
}
