package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oocana-go/oocana/internal/domain/flow"
	"github.com/oocana-go/oocana/internal/domain/runtimegraph"
	"github.com/oocana-go/oocana/internal/domain/session"
	"github.com/oocana-go/oocana/internal/domain/signal"
)

// fakeDispatcher stands in for the Worker Broker / remote task client: it
// calls the scheduler's Callbacks methods back synchronously (or via the
// optional onDispatch hook), the way an in-process builtin worker would.
type fakeDispatcher struct {
	sched *Scheduler

	mu         sync.Mutex
	dispatched []flow.NodeId
	cancelled  []flow.JobId
	onDispatch func(node *flow.Node, jobID flow.JobId, bundle map[flow.HandleName]interface{}) error
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, scope session.Scope, node *flow.Node, jobID flow.JobId, bundle map[flow.HandleName]interface{}) error {
	d.mu.Lock()
	d.dispatched = append(d.dispatched, node.ID)
	d.mu.Unlock()

	if d.onDispatch != nil {
		return d.onDispatch(node, jobID, bundle)
	}
	d.sched.Output(node.ID, jobID, "out", bundle["in"], true)
	d.sched.Done(node.ID, jobID)
	return nil
}

func (d *fakeDispatcher) Cancel(jobID flow.JobId) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelled = append(d.cancelled, jobID)
}

type fakeReporter struct {
	mu     sync.Mutex
	events []interface{}
}

func (r *fakeReporter) Report(ev interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func runCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestScheduler_SingleTaskNodeFiresAndProducesFlowOutput(t *testing.T) {
	node := &flow.Node{
		ID:         "t1",
		Kind:       flow.TaskKind,
		Task:       &flow.TaskNode{BlockRef: "b"},
		InputDefs:  map[flow.HandleName]flow.InputHandle{"in": {Name: "in", Default: flow.Present(7)}},
		OutputDefs: map[flow.HandleName]flow.OutputHandle{"out": {Name: "out"}},
		To:         flow.HandlesTos{"out": {flow.ToFlowOutput("result")}},
	}
	graph := &runtimegraph.Graph{Nodes: map[flow.NodeId]*flow.Node{"t1": node}, Signals: signal.New()}
	disp := &fakeDispatcher{}
	sched := New("sess1", graph, disp, &fakeReporter{}, session.New("sess1", "/data"))
	disp.sched = sched

	outputs, err := sched.Run(runCtx(t))
	require.NoError(t, err)
	assert.Equal(t, 7, outputs["result"])
}

func TestScheduler_IncrementChain_ValueNodeFeedsTaskNode(t *testing.T) {
	value := &flow.Node{
		ID:   "v1",
		Kind: flow.ValueKind,
		Value: &flow.ValueNode{
			Outputs: map[flow.HandleName][]flow.ValueLiteral{"out": {flow.Present(1)}},
		},
		To: flow.HandlesTos{"out": {flow.ToNodeInput("t1", "in")}},
	}
	task := &flow.Node{
		ID:         "t1",
		Kind:       flow.TaskKind,
		Task:       &flow.TaskNode{BlockRef: "b"},
		InputDefs:  map[flow.HandleName]flow.InputHandle{"in": {Name: "in"}},
		From:       flow.HandlesFroms{"in": {flow.FromNodeOutput("v1", "out")}},
		OutputDefs: map[flow.HandleName]flow.OutputHandle{"out": {Name: "out"}},
		To:         flow.HandlesTos{"out": {flow.ToFlowOutput("result")}},
	}
	graph := &runtimegraph.Graph{Nodes: map[flow.NodeId]*flow.Node{"v1": value, "t1": task}, Signals: signal.New()}
	disp := &fakeDispatcher{}
	sched := New("sess2", graph, disp, &fakeReporter{}, session.New("sess2", "/data"))
	disp.sched = sched

	outputs, err := sched.Run(runCtx(t))
	require.NoError(t, err)
	assert.Equal(t, 1, outputs["result"])
}

func TestScheduler_ConditionNodeRoutesOnlyMatchingCase(t *testing.T) {
	task := &flow.Node{
		ID:         "src",
		Kind:       flow.TaskKind,
		Task:       &flow.TaskNode{BlockRef: "b"},
		InputDefs:  map[flow.HandleName]flow.InputHandle{"in": {Name: "in", Default: flow.Present(float64(10))}},
		OutputDefs: map[flow.HandleName]flow.OutputHandle{"n": {Name: "n"}},
		To:         flow.HandlesTos{"n": {flow.ToNodeInput("cond", "n")}},
	}
	cond := &flow.Node{
		ID:        "cond",
		Kind:      flow.ConditionKind,
		InputDefs: map[flow.HandleName]flow.InputHandle{"n": {Name: "n"}},
		From:      flow.HandlesFroms{"n": {flow.FromNodeOutput("src", "n")}},
		Condition: &flow.ConditionNode{
			Cases: []flow.ConditionCase{
				{Handle: "big", Predicate: flow.Predicate{Op: flow.OpGte, Handle: "n", Operand: float64(5)}},
			},
			Default: &flow.ConditionCase{Handle: "small"},
		},
		To: flow.HandlesTos{
			"big":   {flow.ToFlowOutput("big_branch")},
			"small": {flow.ToFlowOutput("small_branch")},
		},
	}
	// fakeDispatcher's default behavior emits on handle "out", but the
	// src node declares output "n" — override onDispatch to match it.
	disp := &fakeDispatcher{}
	disp.onDispatch = func(node *flow.Node, jobID flow.JobId, bundle map[flow.HandleName]interface{}) error {
		disp.sched.Output(node.ID, jobID, "n", bundle["in"], true)
		disp.sched.Done(node.ID, jobID)
		return nil
	}

	graph := &runtimegraph.Graph{Nodes: map[flow.NodeId]*flow.Node{"src": task, "cond": cond}, Signals: signal.New()}
	sched := New("sess3", graph, disp, &fakeReporter{}, session.New("sess3", "/data"))
	disp.sched = sched

	outputs, err := sched.Run(runCtx(t))
	require.NoError(t, err)
	assert.Contains(t, outputs, flow.HandleName("big_branch"))
	assert.NotContains(t, outputs, flow.HandleName("small_branch"))
}

func TestScheduler_WorkerErrorWithStopFlowPolicyIsFatal(t *testing.T) {
	node := &flow.Node{
		ID:   "t1",
		Kind: flow.TaskKind,
		Task: &flow.TaskNode{BlockRef: "b", ErrorPolicy: flow.PolicyStopFlow},
	}
	disp := &fakeDispatcher{}
	disp.onDispatch = func(node *flow.Node, jobID flow.JobId, bundle map[flow.HandleName]interface{}) error {
		disp.sched.Error(node.ID, jobID, errors.New("boom"))
		return nil
	}
	graph := &runtimegraph.Graph{Nodes: map[flow.NodeId]*flow.Node{"t1": node}, Signals: signal.New()}
	sched := New("sess4", graph, disp, &fakeReporter{}, session.New("sess4", "/data"))
	disp.sched = sched

	_, err := sched.Run(runCtx(t))
	assert.Error(t, err)
}

// TestScheduler_StopFlowPolicyCancelsSiblingRunningJobs covers §4.8 step
// 2 ("Broker sends cancel to all active workers") for the multi-node
// case: a stop-flow error on one node must best-effort Cancel every
// other node's currently running jobs too, not just the job that
// failed.
func TestScheduler_StopFlowPolicyCancelsSiblingRunningJobs(t *testing.T) {
	failing := &flow.Node{
		ID:   "fail",
		Kind: flow.TaskKind,
		Task: &flow.TaskNode{BlockRef: "b", ErrorPolicy: flow.PolicyStopFlow},
	}
	sibling := &flow.Node{
		ID:   "sib",
		Kind: flow.TaskKind,
		Task: &flow.TaskNode{BlockRef: "b"},
	}

	sibJobCh := make(chan flow.JobId, 1)
	disp := &fakeDispatcher{}
	disp.onDispatch = func(node *flow.Node, jobID flow.JobId, bundle map[flow.HandleName]interface{}) error {
		if node.ID == "fail" {
			disp.sched.Error(node.ID, jobID, errors.New("boom"))
			return nil
		}
		// sib never reports Output/Done: it is still Running when the
		// sibling "fail" node's stop-flow error aborts the session.
		sibJobCh <- jobID
		return nil
	}
	graph := &runtimegraph.Graph{
		Nodes:   map[flow.NodeId]*flow.Node{"fail": failing, "sib": sibling},
		Signals: signal.New(),
	}
	sched := New("sess-siblings", graph, disp, &fakeReporter{}, session.New("sess-siblings", "/data"))
	disp.sched = sched

	_, err := sched.Run(runCtx(t))
	require.Error(t, err)

	var sibJob flow.JobId
	select {
	case sibJob = <-sibJobCh:
	default:
		t.Fatal("sibling node was never dispatched")
	}

	disp.mu.Lock()
	defer disp.mu.Unlock()
	assert.Contains(t, disp.cancelled, sibJob, "stop-flow abort must cancel every other node's running jobs, not just the failing one")
}

func TestScheduler_WorkerErrorWithSkipNodePolicyLetsSuccessorsAdvance(t *testing.T) {
	failing := &flow.Node{
		ID:   "fail",
		Kind: flow.TaskKind,
		Task: &flow.TaskNode{BlockRef: "b", ErrorPolicy: flow.PolicySkipNode},
	}
	downstream := &flow.Node{
		ID:         "down",
		Kind:       flow.TaskKind,
		Task:       &flow.TaskNode{BlockRef: "b"},
		RunAfter:   []flow.NodeId{"fail"},
		OutputDefs: map[flow.HandleName]flow.OutputHandle{"out": {Name: "out"}},
		To:         flow.HandlesTos{"out": {flow.ToFlowOutput("result")}},
	}
	signals := signal.New()
	signals.Add("down", "fail")

	disp := &fakeDispatcher{}
	disp.onDispatch = func(node *flow.Node, jobID flow.JobId, bundle map[flow.HandleName]interface{}) error {
		if node.ID == "fail" {
			disp.sched.Error(node.ID, jobID, errors.New("boom"))
			return nil
		}
		disp.sched.Output(node.ID, jobID, "out", "ok", true)
		disp.sched.Done(node.ID, jobID)
		return nil
	}
	graph := &runtimegraph.Graph{Nodes: map[flow.NodeId]*flow.Node{"fail": failing, "down": downstream}, Signals: signals}
	sched := New("sess5", graph, disp, &fakeReporter{}, session.New("sess5", "/data"))
	disp.sched = sched

	outputs, err := sched.Run(runCtx(t))
	require.NoError(t, err, "skip-node policy must not stop the rest of the flow")
	assert.Equal(t, "ok", outputs["result"])
}

func TestScheduler_SnapshotRestoreResumesAPartiallyFedNode(t *testing.T) {
	node := &flow.Node{
		ID:         "t1",
		Kind:       flow.TaskKind,
		Task:       &flow.TaskNode{BlockRef: "b"},
		InputDefs:  map[flow.HandleName]flow.InputHandle{"in": {Name: "in"}},
		From:       flow.HandlesFroms{"in": {flow.FromNodeOutput("upstream", "out")}},
		OutputDefs: map[flow.HandleName]flow.OutputHandle{"out": {Name: "out"}},
		To:         flow.HandlesTos{"out": {flow.ToFlowOutput("result")}},
	}
	graph := &runtimegraph.Graph{Nodes: map[flow.NodeId]*flow.Node{"t1": node}, Signals: signal.New()}

	disp := &fakeDispatcher{}
	original := New("sess6", graph, disp, &fakeReporter{}, session.New("sess6", "/data"))
	disp.sched = original

	// Feed the node's only input directly via the store, then snapshot
	// before ever running — simulating a cached prior-run state being
	// loaded ahead of a run_from_node invocation.
	original.store.Get("t1").Push("in", 99, false)
	original.store.Get("t1").PushDone("in")

	data, err := original.Snapshot()
	require.NoError(t, err)

	fresh := New("sess6", graph, disp, &fakeReporter{}, session.New("sess6", "/data"))
	disp.sched = fresh
	require.NoError(t, fresh.Restore(data))

	outputs, err := fresh.Run(runCtx(t))
	require.NoError(t, err)
	assert.Equal(t, 99, outputs["result"])
}

// TestScheduler_ContextCancellationSendsBestEffortCancelBeforeReturning
// covers §4.8: a session ctx cancellation (SIGINT in the CLI) must send
// a best-effort Cancel to every running job before Run returns, rather
// than Run returning the instant ctx.Done() fires and leaving the
// dispatcher's caller to notice orphaned jobs on its own.
func TestScheduler_ContextCancellationSendsBestEffortCancelBeforeReturning(t *testing.T) {
	node := &flow.Node{
		ID:   "t1",
		Kind: flow.TaskKind,
		Task: &flow.TaskNode{BlockRef: "b"},
	}

	jobCh := make(chan flow.JobId, 1)
	disp := &fakeDispatcher{}
	disp.onDispatch = func(node *flow.Node, jobID flow.JobId, bundle map[flow.HandleName]interface{}) error {
		jobCh <- jobID
		return nil // never reports Output/Done: stays Running until cancelled.
	}
	graph := &runtimegraph.Graph{Nodes: map[flow.NodeId]*flow.Node{"t1": node}, Signals: signal.New()}
	sched := New("sess-cancel", graph, disp, &fakeReporter{}, session.New("sess-cancel", "/data"))
	disp.sched = sched

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	runErr := make(chan error, 1)
	go func() {
		_, err := sched.Run(ctx)
		runErr <- err
	}()

	var job flow.JobId
	select {
	case job = <-jobCh:
	case <-time.After(time.Second):
		t.Fatal("node was never dispatched")
	}
	cancel()

	select {
	case err := <-runErr:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run never returned after ctx cancellation")
	}

	disp.mu.Lock()
	defer disp.mu.Unlock()
	assert.Contains(t, disp.cancelled, job, "ctx cancellation must best-effort Cancel every running job")
}
