// Package flow holds the static data model: handles, nodes, blocks, and
// the tagged-union edge types that describe one flow as read off its
// manifests, before a session turns it into a runtime graph.
package flow

// NodeId identifies a node within a single flow. It is unique only
// within the flow that declares it; a subflow's nodes get re-keyed by
// internal/domain/runtimegraph when they are spliced into the parent.
type NodeId string

// HandleName names an input or output port on a node.
type HandleName string

// SessionId identifies one invocation of run end to end.
type SessionId string

// JobId identifies one firing of a node. A node may produce many JobIds
// over its lifetime (concurrency > 1, or re-entry via streamed inputs).
type JobId string

// BlockTaskId is the broker-assigned, monotonically increasing sequence
// number for one dispatch over a worker connection. It is distinct from
// JobId and is assigned once, when the broker dispatches the job.
type BlockTaskId uint64
