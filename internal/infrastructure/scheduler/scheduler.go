// Package scheduler implements the Scheduler Core: the single logical
// actor that owns a runtime graph's ready/running state and drives it
// to completion. It processes one event at a time; all state
// transitions are linearizable.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oocana-go/oocana/internal/domain/condition"
	"github.com/oocana-go/oocana/internal/domain/execution"
	"github.com/oocana-go/oocana/internal/domain/flow"
	"github.com/oocana-go/oocana/internal/domain/inputstore"
	"github.com/oocana-go/oocana/internal/domain/router"
	"github.com/oocana-go/oocana/internal/domain/runtimegraph"
	"github.com/oocana-go/oocana/internal/domain/session"
	"github.com/oocana-go/oocana/internal/infrastructure/cancel"
	apperrors "github.com/oocana-go/oocana/internal/pkg/errors"
)

// Dispatcher hands a job to whatever fires it: a spawned worker process,
// the remote task API, or a registered service connection. Dispatch
// must not block past submission — outputs/done/error arrive later
// through the Scheduler's Callbacks methods.
type Dispatcher interface {
	Dispatch(ctx context.Context, scope session.Scope, node *flow.Node, jobID flow.JobId, bundle map[flow.HandleName]interface{}) error
	Cancel(jobID flow.JobId)
}

// Reporter is the tag-discriminated event sink.
type Reporter interface {
	Report(event interface{})
}

type eventKind int

const (
	evOutput eventKind = iota
	evDone
	evError
	evCancel
)

type event struct {
	kind   eventKind
	node   flow.NodeId
	job    flow.JobId
	handle flow.HandleName
	value  interface{}
	done   bool
	err    error
}

// Scheduler drives one session's runtime graph to completion.
type Scheduler struct {
	sessionID flow.SessionId
	graph     *runtimegraph.Graph
	store     *inputstore.Store
	router    *router.Router
	runtimes  map[flow.NodeId]*execution.NodeRuntime

	dispatcher Dispatcher
	reporter   Reporter
	scope      session.Scope

	events chan event

	// cancelToken and dispatchCtx implement §4.8's delay-abort: dispatchCtx
	// bounds every Dispatch call (hence the spawned worker process's
	// exec.CommandContext) but, unlike the session ctx passed to Run, it is
	// derived from context.Background() rather than that ctx, so a SIGINT
	// only soft-cancels immediately (Cancel sent to every running job) and
	// does not hard-kill the worker process until cancelToken's delay
	// window elapses. Do not skip the delay.
	cancelToken   *cancel.Token
	dispatchCtx   context.Context
	dispatchAbort context.CancelFunc

	mu        sync.Mutex
	jobSeq    uint64
	fatalErr  error
	// stack carries the enclosing subflow instance prefix for reporter
	// correlation; flat in this engine's single-process model, so it is
	// always empty past the root — kept for Reporter event shape parity.
	stack []flow.NodeId
}

// New builds a Scheduler over an already-composed, validated graph.
func New(sessionID flow.SessionId, graph *runtimegraph.Graph, dispatcher Dispatcher, reporter Reporter, scope session.Scope) *Scheduler {
	s := &Scheduler{
		sessionID:  sessionID,
		graph:      graph,
		store:      inputstore.New(graph.Nodes),
		runtimes:   make(map[flow.NodeId]*execution.NodeRuntime, len(graph.Nodes)),
		dispatcher: dispatcher,
		reporter:   reporter,
		scope:      scope,
		events:     make(chan event, 256),
	}
	for id, n := range graph.Nodes {
		s.runtimes[id] = execution.NewNodeRuntime(n)
	}
	s.router = router.New(graph.Tos(), s.store)
	s.cancelToken = cancel.New(cancel.DefaultDelay)
	s.dispatchCtx, s.dispatchAbort = s.cancelToken.Context(context.Background())
	return s
}

// Snapshot serializes the session's Node Input Store, for the local/
// Redis cache backend to persist between runs.
func (s *Scheduler) Snapshot() ([]byte, error) {
	return s.store.Snapshot()
}

// Restore loads a previously saved Node Input Store snapshot. Must be
// called before Run.
func (s *Scheduler) Restore(data []byte) error {
	return s.store.Restore(data)
}

func (s *Scheduler) isNodeTerminalState(id flow.NodeId) bool {
	rt, ok := s.runtimes[id]
	return ok && rt.State.IsTerminal()
}

func (s *Scheduler) report(ev interface{}) {
	if s.reporter != nil {
		s.reporter.Report(ev)
	}
}

func (s *Scheduler) newJobID() flow.JobId {
	s.mu.Lock()
	s.jobSeq++
	id := s.jobSeq
	s.mu.Unlock()
	return flow.JobId(fmt.Sprintf("%s-job-%d", s.sessionID, id))
}

// Run drives the graph to completion, returning the merged flow outputs
// or the first fatal error under a stop-flow policy.
func (s *Scheduler) Run(ctx context.Context) (map[flow.HandleName]interface{}, error) {
	defer s.dispatchAbort()
	s.report(execution.FlowStarted{SessionID: s.sessionID, OccurredAt: time.Now()})

	for id := range s.graph.Nodes {
		s.advance(ctx, id)
	}
	if done, outputs, err := s.checkCompletion(); done {
		return s.finish(outputs, err)
	}

	for {
		select {
		case <-ctx.Done():
			s.abort(apperrors.CancellationError("context cancelled"))
			_, outputs, err := s.checkCompletion()
			return s.finish(outputs, err)
		case ev := <-s.events:
			s.handleEvent(ctx, ev)
			if done, outputs, err := s.checkCompletion(); done {
				return s.finish(outputs, err)
			}
		}
	}
}

// abort implements §4.8 steps 1-3 of Run Control & Cancellation: the
// caller has already stopped dispatching new jobs by the time abort is
// called (it runs on the scheduler's single event-loop goroutine), so
// this sends a best-effort Cancel to every node's currently running
// jobs — not just the one that triggered the abort — then blocks until
// cancelToken's delay window elapses, at which point dispatchCtx is
// cancelled and every spawned worker process still bound to it is
// hard-killed by exec.CommandContext.
func (s *Scheduler) abort(reason error) {
	s.mu.Lock()
	if s.fatalErr == nil {
		s.fatalErr = reason
	}
	s.mu.Unlock()

	for _, rt := range s.runtimes {
		for job := range rt.RunningJobs {
			s.dispatcher.Cancel(job)
		}
	}
	s.cancelToken.Trigger()
	<-s.cancelToken.Hard()
}

func (s *Scheduler) finish(outputs map[flow.HandleName]interface{}, err error) (map[flow.HandleName]interface{}, error) {
	s.report(execution.FlowFinished{SessionID: s.sessionID, Outputs: outputs, OccurredAt: time.Now(), Err: errString(err)})
	return outputs, err
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (s *Scheduler) handleEvent(ctx context.Context, ev event) {
	switch ev.kind {
	case evOutput:
		s.router.Route(ev.node, ev.handle, ev.value, ev.done)
		s.report(execution.BlockOutput{SessionID: s.sessionID, JobID: ev.job, NodeID: ev.node, Handle: ev.handle, Done: ev.done, OccurredAt: time.Now()})
		for sinkNode := range s.sinkNodesOf(ev.node, ev.handle) {
			s.advance(ctx, sinkNode)
		}
	case evDone:
		rt := s.runtimes[ev.node]
		if rt != nil {
			rt.CompleteJob(ev.job)
		}
		s.report(execution.BlockFinished{SessionID: s.sessionID, JobID: ev.job, NodeID: ev.node, OccurredAt: time.Now()})
		s.advance(ctx, ev.node)
	case evError:
		s.onNodeError(ctx, ev.node, ev.job, ev.err)
	case evCancel:
		s.abort(apperrors.CancellationError("session aborted"))
	}
}

// sinkNodesOf returns the distinct node ids that receive (node, handle)'s
// output, so the scheduler only re-checks readiness for nodes that could
// plausibly have changed.
func (s *Scheduler) sinkNodesOf(node flow.NodeId, handle flow.HandleName) map[flow.NodeId]struct{} {
	out := make(map[flow.NodeId]struct{})
	n := s.graph.Nodes[node]
	if n == nil {
		return out
	}
	for _, sink := range n.To[handle] {
		if sink.Kind == flow.ToNodeInputKind || sink.Kind == flow.ToSlotInputKind {
			out[sink.Node] = struct{}{}
		}
	}
	return out
}

func (s *Scheduler) onNodeError(ctx context.Context, node flow.NodeId, job flow.JobId, err error) {
	rt := s.runtimes[node]
	if rt == nil {
		return
	}
	rt.CompleteJob(job)
	policy := flow.PolicyStopFlow
	if rt.Node.Kind == flow.TaskKind && rt.Node.Task != nil && rt.Node.Task.ErrorPolicy != "" {
		policy = rt.Node.Task.ErrorPolicy
	}
	_ = rt.Transition(execution.Errored)
	s.report(execution.BlockError{SessionID: s.sessionID, JobID: job, NodeID: node, Kind: "worker_runtime", Message: errString(err), OccurredAt: time.Now()})

	if policy == flow.PolicyStopFlow {
		s.abort(apperrors.WorkerRuntimeError(string(node), err))
		return
	}
	for succ := range s.allSinksOf(node) {
		s.advance(ctx, succ)
	}
}

func (s *Scheduler) allSinksOf(node flow.NodeId) map[flow.NodeId]struct{} {
	out := make(map[flow.NodeId]struct{})
	n := s.graph.Nodes[node]
	if n == nil {
		return out
	}
	for _, sinks := range n.To {
		for _, sink := range sinks {
			if sink.Kind == flow.ToNodeInputKind || sink.Kind == flow.ToSlotInputKind {
				out[sink.Node] = struct{}{}
			}
		}
	}
	for _, succ := range s.graph.Signals.Successors(node) {
		out[succ] = struct{}{}
	}
	return out
}

// advance re-evaluates one node: Pending→Ready, then dispatches as many
// firings as concurrency allows, then checks for Done.
func (s *Scheduler) advance(ctx context.Context, id flow.NodeId) {
	s.mu.Lock()
	fatal := s.fatalErr
	s.mu.Unlock()
	if fatal != nil {
		return
	}

	rt := s.runtimes[id]
	if rt == nil || rt.State.IsTerminal() {
		return
	}
	ns := s.store.Get(id)
	if ns == nil {
		return
	}

	if rt.State == execution.Pending {
		if !ns.Ready() || !s.graph.Signals.Satisfied(id, s.isNodeTerminalState) {
			return
		}
		if err := rt.Transition(execution.Ready); err != nil {
			return
		}
	}

	// After its first firing a node fires again only for a freshly queued
	// value; sticky literals and defaults alone never re-trigger it.
	for rt.CanDispatchMore() && ns.Ready() && (rt.State == execution.Ready || ns.HasPending()) {
		bundle := ns.Fire()
		jobID := s.newJobID()
		if err := rt.Dispatch(jobID); err != nil {
			break
		}
		s.report(execution.BlockStarted{SessionID: s.sessionID, JobID: jobID, NodeID: id, NodeKind: rt.Node.Kind.String(), OccurredAt: time.Now()})
		s.fire(id, jobID, bundle)
	}

	if len(rt.RunningJobs) == 0 && ns.Exhausted() && !ns.HasPending() &&
		(rt.State == execution.Ready || rt.State == execution.Running) {
		_ = rt.Transition(execution.Done)
		for _, succ := range s.graph.Signals.Successors(id) {
			s.advance(ctx, succ)
		}
	}
}

// fire dispatches one firing of a node according to its kind. Value and
// Condition nodes resolve synchronously in-process; everything else goes
// through the Dispatcher and completes later via Callbacks.
//
// The default case dispatches on s.dispatchCtx rather than Run's ctx
// argument: the two only diverge during cancellation, where dispatchCtx
// must keep spawned worker processes alive through the delay window
// instead of dying the instant the session ctx is cancelled (see
// abort and the cancelToken field doc).
func (s *Scheduler) fire(id flow.NodeId, jobID flow.JobId, bundle map[flow.HandleName]interface{}) {
	n := s.runtimes[id].Node
	switch n.Kind {
	case flow.ValueKind:
		for handle, literals := range n.Value.Outputs {
			for i, lit := range literals {
				v, _ := lit.Value()
				done := i == len(literals)-1
				s.events <- event{kind: evOutput, node: id, job: jobID, handle: handle, value: v, done: done}
			}
		}
		s.events <- event{kind: evDone, node: id, job: jobID}

	case flow.ConditionKind:
		cb := condition.Bundle(bundle)
		if handle, ok := condition.Evaluate(n.Condition, cb); ok {
			s.events <- event{kind: evOutput, node: id, job: jobID, handle: handle, value: bundle, done: true}
		}
		s.events <- event{kind: evDone, node: id, job: jobID}

	default:
		scope := s.scope.WithNode(id, "", "", n.Kind.String())
		if err := s.dispatcher.Dispatch(s.dispatchCtx, scope, n, jobID, bundle); err != nil {
			s.events <- event{kind: evError, node: id, job: jobID, err: err}
		}
	}
}

// checkCompletion reports whether the flow is done: every terminal node
// reached a terminal state and nothing is running anywhere.
func (s *Scheduler) checkCompletion() (bool, map[flow.HandleName]interface{}, error) {
	s.mu.Lock()
	fatal := s.fatalErr
	s.mu.Unlock()
	if fatal != nil {
		return true, nil, fatal
	}

	for _, rt := range s.runtimes {
		if len(rt.RunningJobs) > 0 {
			return false, nil, nil
		}
	}
	for _, id := range s.graph.TerminalNodes() {
		if !s.runtimes[id].State.IsTerminal() {
			return false, nil, nil
		}
	}
	return true, s.router.FlowOutputs(), nil
}

// Output implements the broker Callbacks contract: a worker emitted one
// value on one output handle.
func (s *Scheduler) Output(node flow.NodeId, job flow.JobId, handle flow.HandleName, value interface{}, done bool) {
	s.events <- event{kind: evOutput, node: node, job: job, handle: handle, value: value, done: done}
}

// Done implements the broker Callbacks contract: a firing finished.
func (s *Scheduler) Done(node flow.NodeId, job flow.JobId) {
	s.events <- event{kind: evDone, node: node, job: job}
}

// Error implements the broker Callbacks contract: a firing reported a
// fatal error (including a broker-synthesized timeout).
func (s *Scheduler) Error(node flow.NodeId, job flow.JobId, err error) {
	s.events <- event{kind: evError, node: node, job: job, err: err}
}

// Abort requests cancellation; see internal/infrastructure/cancel for
// the delay-window hard-kill behavior this feeds into.
func (s *Scheduler) Abort() {
	s.events <- event{kind: evCancel}
}
