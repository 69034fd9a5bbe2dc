package execution

import (
	"time"

	"github.com/oocana-go/oocana/internal/domain/flow"
)

// Event type tags consumed by the Reporter Interface.
const (
	EventTypeBlockStarted  = "execution.block_started"
	EventTypeBlockOutput   = "execution.block_output"
	EventTypeBlockFinished = "execution.block_finished"
	EventTypeBlockError    = "execution.block_error"
	EventTypeNodeIgnored   = "execution.node_ignored"
	EventTypeFlowStarted   = "execution.flow_started"
	EventTypeFlowFinished  = "execution.flow_finished"
)

// BlockStarted reports that a job began firing.
type BlockStarted struct {
	SessionID  flow.SessionId `json:"session_id"`
	JobID      flow.JobId     `json:"job_id"`
	NodeID     flow.NodeId    `json:"node_id"`
	NodeKind   string         `json:"node_kind"`
	Stack      []flow.NodeId  `json:"stack,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func (e BlockStarted) EventType() string     { return EventTypeBlockStarted }
func (e BlockStarted) AggregateID() string   { return string(e.SessionID) }
func (e BlockStarted) AggregateType() string { return "session" }

// BlockOutput reports one value emitted on one output handle — an
// opt-in, per-output sample.
type BlockOutput struct {
	SessionID  flow.SessionId   `json:"session_id"`
	JobID      flow.JobId       `json:"job_id"`
	NodeID     flow.NodeId      `json:"node_id"`
	Handle     flow.HandleName  `json:"handle"`
	Done       bool             `json:"done"`
	Stack      []flow.NodeId    `json:"stack,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

func (e BlockOutput) EventType() string     { return EventTypeBlockOutput }
func (e BlockOutput) AggregateID() string   { return string(e.SessionID) }
func (e BlockOutput) AggregateType() string { return "session" }

// BlockFinished reports that a job reached BlockDone.
type BlockFinished struct {
	SessionID  flow.SessionId `json:"session_id"`
	JobID      flow.JobId     `json:"job_id"`
	NodeID     flow.NodeId    `json:"node_id"`
	DurationMs int64          `json:"duration_ms"`
	Stack      []flow.NodeId  `json:"stack,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func (e BlockFinished) EventType() string     { return EventTypeBlockFinished }
func (e BlockFinished) AggregateID() string   { return string(e.SessionID) }
func (e BlockFinished) AggregateType() string { return "session" }

// BlockError reports a fatal or policy-handled job failure.
type BlockError struct {
	SessionID  flow.SessionId `json:"session_id"`
	JobID      flow.JobId     `json:"job_id"`
	NodeID     flow.NodeId    `json:"node_id"`
	Kind       string         `json:"kind"`
	Message    string         `json:"message"`
	Stack      []flow.NodeId  `json:"stack,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func (e BlockError) EventType() string     { return EventTypeBlockError }
func (e BlockError) AggregateID() string   { return string(e.SessionID) }
func (e BlockError) AggregateType() string { return "session" }

// NodeIgnored reports a node that structurally can never fire (e.g. a
// condition branch not taken with nothing else feeding it).
type NodeIgnored struct {
	SessionID  flow.SessionId `json:"session_id"`
	NodeID     flow.NodeId    `json:"node_id"`
	Reason     string         `json:"reason"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func (e NodeIgnored) EventType() string     { return EventTypeNodeIgnored }
func (e NodeIgnored) AggregateID() string   { return string(e.SessionID) }
func (e NodeIgnored) AggregateType() string { return "session" }

// FlowStarted reports the beginning of a session.
type FlowStarted struct {
	SessionID  flow.SessionId `json:"session_id"`
	FlowPath   string         `json:"flow_path"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func (e FlowStarted) EventType() string     { return EventTypeFlowStarted }
func (e FlowStarted) AggregateID() string   { return string(e.SessionID) }
func (e FlowStarted) AggregateType() string { return "session" }

// FlowFinished reports flow-level completion, carrying the merged
// outputs the Handle & Value Router accumulated.
type FlowFinished struct {
	SessionID  flow.SessionId                 `json:"session_id"`
	Outputs    map[flow.HandleName]interface{} `json:"outputs,omitempty"`
	Err        string                         `json:"error,omitempty"`
	OccurredAt time.Time                      `json:"occurred_at"`
}

func (e FlowFinished) EventType() string     { return EventTypeFlowFinished }
func (e FlowFinished) AggregateID() string   { return string(e.SessionID) }
func (e FlowFinished) AggregateType() string { return "session" }
