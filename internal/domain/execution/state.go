// Package execution holds the Scheduler Core's per-node state machine:
// the six node states, their valid transitions, and the bookkeeping of
// which jobs are currently running for a node.
package execution

import (
	"fmt"

	"github.com/oocana-go/oocana/internal/domain/flow"
)

// NodeState is one of the six states a node can be in.
type NodeState string

const (
	Pending NodeState = "pending"
	Ready   NodeState = "ready"
	Running NodeState = "running"
	Done    NodeState = "done"
	Errored NodeState = "errored"
	Ignored NodeState = "ignored"
)

// IsTerminal reports whether a state is one a node never leaves: no
// node transitions out of a terminal state.
func (s NodeState) IsTerminal() bool {
	return s == Done || s == Errored || s == Ignored
}

var validTransitions = map[NodeState]map[NodeState]bool{
	Pending: {Ready: true, Ignored: true},
	Ready:   {Running: true, Ignored: true, Errored: true},
	Running: {Running: true, Done: true, Errored: true},
}

// CanTransitionTo reports whether moving from s to next is a legal
// Scheduler Core transition.
func (s NodeState) CanTransitionTo(next NodeState) bool {
	if s.IsTerminal() {
		return false
	}
	return validTransitions[s][next]
}

// NodeRuntime tracks one node's live scheduling state: its current
// NodeState, the set of jobs currently running for it, and the
// concurrency ceiling drawn from its Task definition (non-Task nodes,
// and Task nodes without a positive Concurrency, use 1).
type NodeRuntime struct {
	Node        *flow.Node
	State       NodeState
	RunningJobs map[flow.JobId]struct{}
	concurrency int
}

// NewNodeRuntime builds the initial runtime state for a node: Pending,
// unless it is marked ignore, in which case it starts Ignored
// (Pending → Ignored happens when ignore=true).
func NewNodeRuntime(n *flow.Node) *NodeRuntime {
	state := Pending
	if n.Ignore {
		state = Ignored
	}
	concurrency := 1
	if n.Kind == flow.TaskKind && n.Task != nil && n.Task.Concurrency > 0 {
		concurrency = n.Task.Concurrency
	}
	return &NodeRuntime{
		Node:        n,
		State:       state,
		RunningJobs: make(map[flow.JobId]struct{}),
		concurrency: concurrency,
	}
}

// Transition moves the node to a new state, validating legality.
func (r *NodeRuntime) Transition(next NodeState) error {
	if !r.State.CanTransitionTo(next) {
		return fmt.Errorf("illegal transition for node %s: %s -> %s", r.Node.ID, r.State, next)
	}
	r.State = next
	return nil
}

// CanDispatchMore reports whether another firing can be started without
// exceeding the node's declared concurrency.
func (r *NodeRuntime) CanDispatchMore() bool {
	return len(r.RunningJobs) < r.concurrency
}

// Dispatch records a newly started job and moves the node to Running.
func (r *NodeRuntime) Dispatch(job flow.JobId) error {
	if r.State != Ready && r.State != Running {
		return fmt.Errorf("cannot dispatch job for node %s in state %s", r.Node.ID, r.State)
	}
	r.RunningJobs[job] = struct{}{}
	r.State = Running
	return nil
}

// CompleteJob removes a finished job from the running set. Callers
// decide the resulting node state (Running, if more bundles remain or
// jobs are active; Done, once the input store reports exhaustion and no
// jobs remain) using the input store's Exhausted/HasPending signals
// alongside this.
func (r *NodeRuntime) CompleteJob(job flow.JobId) {
	delete(r.RunningJobs, job)
}

// Concurrency returns the node's configured concurrency ceiling.
func (r *NodeRuntime) Concurrency() int { return r.concurrency }
