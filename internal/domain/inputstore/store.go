// Package inputstore implements the Node Input Store: per node, it
// accumulates incoming values per input handle across multiple upstream
// emissions and answers "is this node ready to fire?".
package inputstore

import (
	"sync"

	"github.com/oocana-go/oocana/internal/domain/flow"
)

// NodeStore holds one node's accumulated input state.
type NodeStore struct {
	node *flow.Node

	mu           sync.Mutex
	pending      map[flow.HandleName][]interface{}
	sticky       map[flow.HandleName]interface{}
	satisfied    map[flow.HandleName]bool
	doneSources  map[flow.HandleName]int
	totalSources map[flow.HandleName]int
}

// NewNodeStore seeds a store from a node's declared inputs: defaults
// and FromValue literals are installed as sticky values immediately,
// since they are available by construction rather than streamed in.
func NewNodeStore(node *flow.Node) *NodeStore {
	s := &NodeStore{
		node:         node,
		pending:      make(map[flow.HandleName][]interface{}),
		sticky:       make(map[flow.HandleName]interface{}),
		satisfied:    make(map[flow.HandleName]bool),
		doneSources:  make(map[flow.HandleName]int),
		totalSources: make(map[flow.HandleName]int),
	}

	for handle, sources := range node.From {
		s.totalSources[handle] = len(sources)
		for _, src := range sources {
			if src.Kind == flow.FromValueKind {
				if v, ok := src.Literal.Value(); ok {
					s.sticky[handle] = v
					s.satisfied[handle] = true
				} else if src.Literal.IsExplicitNull() {
					s.sticky[handle] = nil
					s.satisfied[handle] = true
				}
			}
		}
	}

	for handle, def := range node.InputDefs {
		if _, ok := s.satisfied[handle]; ok {
			continue
		}
		if def.Default.IsPresent() {
			v, _ := def.Default.Value()
			s.sticky[handle] = v
			s.satisfied[handle] = true
		} else if def.Default.IsExplicitNull() && def.Nullable {
			s.sticky[handle] = nil
			s.satisfied[handle] = true
		}
	}

	return s
}

// hasStickyCapableSource reports whether handle can be satisfied
// without a fresh streamed value every fire: a literal/default source,
// or simply no upstream edges at all (nullable-only handle).
func (s *NodeStore) hasStickyCapableSource(handle flow.HandleName) bool {
	if def, ok := s.node.InputDefs[handle]; ok && def.HasDefault() {
		return true
	}
	for _, src := range s.node.From[handle] {
		if src.Kind == flow.FromValueKind {
			return true
		}
	}
	return s.totalSources[handle] == 0
}

// Push delivers one emitted value to an input handle. sticky marks the
// value as literal/default-sourced and therefore sticky by construction;
// streamed worker outputs are transient unless the caller says otherwise.
func (s *NodeStore) Push(handle flow.HandleName, value interface{}, sticky bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sticky {
		s.sticky[handle] = value
	} else {
		s.pending[handle] = append(s.pending[handle], value)
	}
	s.satisfied[handle] = true
}

// PushDone records that one of handle's upstream sources has finished
// emitting. Once every declared source for a handle has reported done,
// the handle will receive no further values.
func (s *NodeStore) PushDone(handle flow.HandleName) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doneSources[handle]++
}

// Ready reports whether the node can fire: every required input is
// satisfied, and every handle whose only sources are streamed has at
// least one value actually queued (freshness).
func (s *NodeStore) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, handle := range s.node.RequiredInputs() {
		if !s.satisfied[handle] {
			return false
		}
		if !s.hasStickyCapableSource(handle) && len(s.pending[handle]) == 0 {
			return false
		}
	}
	return true
}

// Fire composes the input bundle for one firing: for each declared
// handle, pop the next transient value if one is queued, else fall
// back to the sticky value. Handles with neither are omitted (nullable
// with nothing supplied).
func (s *NodeStore) Fire() map[flow.HandleName]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	bundle := make(map[flow.HandleName]interface{}, len(s.node.InputDefs))
	for handle := range s.node.InputDefs {
		if q := s.pending[handle]; len(q) > 0 {
			bundle[handle] = q[0]
			s.pending[handle] = q[1:]
			continue
		}
		if v, ok := s.sticky[handle]; ok {
			bundle[handle] = v
		}
	}
	return bundle
}

// IsEmpty reports whether every pending queue has been drained — the
// invariant required of a node in the Done state.
func (s *NodeStore) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.pending {
		if len(q) > 0 {
			return false
		}
	}
	return true
}

// Exhausted reports whether every handle fed by upstream edges has had
// all of its sources report done, and nothing is left queued — i.e. no
// further input bundle will ever arrive for this node.
func (s *NodeStore) Exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for handle, total := range s.totalSources {
		if total == 0 {
			continue
		}
		if s.doneSources[handle] < total {
			return false
		}
		if len(s.pending[handle]) > 0 {
			return false
		}
	}
	return true
}

// HasPending reports whether at least one handle has a queued transient
// value ready to be consumed by another Fire.
func (s *NodeStore) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.pending {
		if len(q) > 0 {
			return true
		}
	}
	return false
}

// Store is the collection of NodeStores for one runtime graph.
type Store struct {
	mu     sync.RWMutex
	stores map[flow.NodeId]*NodeStore
}

// New builds a Store with one NodeStore per node in the graph.
func New(nodes map[flow.NodeId]*flow.Node) *Store {
	st := &Store{stores: make(map[flow.NodeId]*NodeStore, len(nodes))}
	for id, n := range nodes {
		st.stores[id] = NewNodeStore(n)
	}
	return st
}

// Get returns the NodeStore for a node, or nil if unknown.
func (s *Store) Get(id flow.NodeId) *NodeStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stores[id]
}
