package inputstore

import (
	"context"
	"encoding/json"

	"github.com/oocana-go/oocana/internal/domain/flow"
	apperrors "github.com/oocana-go/oocana/internal/pkg/errors"
)

// CacheBackend persists a flow's serialized Node Input Store state,
// keyed by flow identity (session-independent, so a later run_from_node
// invocation can find it): a small key→file index plus one blob per
// flow identity. The local file backend (internal/infrastructure/cache)
// and the optional Redis-backed one both satisfy this interface.
type CacheBackend interface {
	Save(ctx context.Context, flowIdentity string, data []byte) error
	Load(ctx context.Context, flowIdentity string) ([]byte, bool, error)
	Delete(ctx context.Context, flowIdentity string) error
}

// nodeSnapshot is the JSON-serializable form of one NodeStore.
type nodeSnapshot struct {
	Pending      map[flow.HandleName][]interface{} `json:"pending"`
	Sticky       map[flow.HandleName]interface{}   `json:"sticky"`
	Satisfied    map[flow.HandleName]bool          `json:"satisfied"`
	DoneSources  map[flow.HandleName]int           `json:"done_sources"`
	TotalSources map[flow.HandleName]int           `json:"total_sources"`
}

// snapshot is the JSON-serializable form of an entire Store.
type snapshot struct {
	Nodes map[flow.NodeId]nodeSnapshot `json:"nodes"`
}

// Snapshot serializes the full store to JSON, verbatim per node
// (satisfied/sticky/pending/done-tracking all round-trip).
func (s *Store) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot{Nodes: make(map[flow.NodeId]nodeSnapshot, len(s.stores))}
	for id, ns := range s.stores {
		ns.mu.Lock()
		snap.Nodes[id] = nodeSnapshot{
			Pending:      cloneSlice(ns.pending),
			Sticky:       cloneMap(ns.sticky),
			Satisfied:    cloneBoolMap(ns.satisfied),
			DoneSources:  cloneIntMap(ns.doneSources),
			TotalSources: cloneIntMap(ns.totalSources),
		}
		ns.mu.Unlock()
	}
	return json.Marshal(snap)
}

// Restore loads a previously saved snapshot into this store's existing
// NodeStores, restoring satisfied/sticky/pending maps verbatim: saving
// and reloading a store yields one that fires the same sequence of
// bundles. Values come back as encoding/json decodes them into an
// interface{} (numbers as float64, objects as map[string]interface{}).
// Nodes present in the snapshot but absent from this graph (e.g. the
// flow changed) are silently skipped.
func (s *Store) Restore(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return apperrors.CacheError("decode cache snapshot", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for id, ns := range snap.Nodes {
		target, ok := s.stores[id]
		if !ok {
			continue
		}
		target.mu.Lock()
		target.pending = cloneSlice(ns.Pending)
		target.sticky = cloneMap(ns.Sticky)
		target.satisfied = cloneBoolMap(ns.Satisfied)
		target.doneSources = cloneIntMap(ns.DoneSources)
		target.totalSources = cloneIntMap(ns.TotalSources)
		target.mu.Unlock()
	}
	return nil
}

func cloneSlice(m map[flow.HandleName][]interface{}) map[flow.HandleName][]interface{} {
	out := make(map[flow.HandleName][]interface{}, len(m))
	for k, v := range m {
		cp := make([]interface{}, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

func cloneMap(m map[flow.HandleName]interface{}) map[flow.HandleName]interface{} {
	out := make(map[flow.HandleName]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneBoolMap(m map[flow.HandleName]bool) map[flow.HandleName]bool {
	out := make(map[flow.HandleName]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneIntMap(m map[flow.HandleName]int) map[flow.HandleName]int {
	out := make(map[flow.HandleName]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
