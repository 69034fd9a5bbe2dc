package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/oocana-go/oocana/internal/domain/flow"
	"github.com/oocana-go/oocana/internal/domain/session"
	"github.com/oocana-go/oocana/internal/domain/workerpool"
	apperrors "github.com/oocana-go/oocana/internal/pkg/errors"
)

// Callbacks is the scheduler-side contract the Broker reports job
// progress through. internal/infrastructure/scheduler.Scheduler
// satisfies this.
type Callbacks interface {
	Output(node flow.NodeId, job flow.JobId, handle flow.HandleName, value interface{}, done bool)
	Done(node flow.NodeId, job flow.JobId)
	Error(node flow.NodeId, job flow.JobId, err error)
}

// BuiltinWorker runs a block in-process rather than over the wire (an
// "llm" Service executor, wrapping internal/infrastructure/llm).
type BuiltinWorker interface {
	Run(ctx context.Context, bundle map[flow.HandleName]interface{}) (map[flow.HandleName]interface{}, error)
}

// Spawner launches the external worker process for a Task firing. The
// default implementation execs the node's configured runtime; tests
// substitute a fake that just connects back immediately.
type Spawner func(ctx context.Context, scope session.Scope, node *flow.Node, addr string, jobID flow.JobId) (*exec.Cmd, error)

type pendingJob struct {
	node       flow.NodeId
	job        flow.JobId
	bundle     map[flow.HandleName]interface{}
	taskID     flow.BlockTaskId
	timer      *time.Timer
	conn       net.Conn
	replied    bool
	heldSlot   bool // whether this job acquired the spawn semaphore below
}

// Broker is the Worker Broker: it accepts worker connections, replies to
// BlockReady with the job's input, and forwards BlockOutput/BlockError/
// BlockDone to the Scheduler's Callbacks.
type Broker struct {
	listener  net.Listener
	callbacks Callbacks
	spawn     Spawner
	registry  *workerpool.Registry
	builtins  map[string]BuiltinWorker

	mu      sync.Mutex
	pending map[flow.JobId]*pendingJob
	taskSeq flow.BlockTaskId

	spawnSlots *semaphore.Weighted
}

// New starts listening on addr (host:port, port 0 picks a free one).
func New(addr string, callbacks Callbacks, spawn Spawner, registry *workerpool.Registry) (*Broker, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("broker: listen %s: %w", addr, err)
	}
	b := &Broker{
		listener:  ln,
		callbacks: callbacks,
		spawn:     spawn,
		registry:  registry,
		builtins:  make(map[string]BuiltinWorker),
		pending:   make(map[flow.JobId]*pendingJob),
	}
	go b.acceptLoop()
	return b, nil
}

// Addr returns the broker's listening address, for passing to spawned
// workers via environment variable.
func (b *Broker) Addr() string { return b.listener.Addr().String() }

// SetCallbacks wires the scheduler after construction, for the common
// case where the Scheduler itself needs the Broker as its Dispatcher
// before it can exist (internal/application/session.Run resolves the
// cycle this way). Must be called before any job is dispatched.
func (b *Broker) SetCallbacks(callbacks Callbacks) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callbacks = callbacks
}

// SetMaxConcurrentSpawns bounds how many worker processes the Broker will
// have in flight at once; 0 (the default) leaves spawning unbounded. A
// long-running session over many Task nodes can otherwise fork more OS
// processes than the host has cores for.
func (b *Broker) SetMaxConcurrentSpawns(n int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= 0 {
		b.spawnSlots = nil
		return
	}
	b.spawnSlots = semaphore.NewWeighted(n)
}

// RegisterBuiltin wires an in-process executor name (e.g. "llm") to a
// BuiltinWorker implementation.
func (b *Broker) RegisterBuiltin(executor string, w BuiltinWorker) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.builtins[executor] = w
}

func (b *Broker) Close() error { return b.listener.Close() }

func (b *Broker) acceptLoop() {
	for {
		conn, err := b.listener.Accept()
		if err != nil {
			return
		}
		go b.handleConn(conn)
	}
}

func (b *Broker) handleConn(conn net.Conn) {
	defer conn.Close()
	for {
		env, err := readFrame(conn)
		if err != nil {
			return
		}
		switch env.Type {
		case TypeBlockReady:
			b.onReady(conn, env)
		case TypeBlockOutput:
			b.onOutput(env)
		case TypeBlockError:
			b.onError(env)
		case TypeBlockDone:
			b.onDone(env)
		}
	}
}

func (b *Broker) onReady(conn net.Conn, env Envelope) {
	var msg BlockReady
	if err := decodePayload(env, &msg); err != nil {
		return
	}
	b.mu.Lock()
	pj, ok := b.pending[msg.JobID]
	if ok {
		pj.conn = conn
		pj.replied = true
	}
	b.mu.Unlock()
	if !ok {
		return
	}
	_ = writeFrame(conn, TypeBlockInput, BlockInput{JobID: pj.job, BlockTaskID: pj.taskID, Input: pj.bundle})
}

func (b *Broker) onOutput(env Envelope) {
	var msg BlockOutput
	if err := decodePayload(env, &msg); err != nil {
		return
	}
	pj := b.lookup(msg.JobID)
	if pj == nil {
		return
	}
	b.callbacks.Output(pj.node, pj.job, msg.Handle, msg.Output, msg.Done)
}

func (b *Broker) onError(env Envelope) {
	var msg BlockError
	if err := decodePayload(env, &msg); err != nil {
		return
	}
	pj := b.remove(msg.JobID)
	if pj == nil {
		return
	}
	b.callbacks.Error(pj.node, pj.job, apperrors.WorkerRuntimeError(string(pj.node), fmt.Errorf("%s", msg.Error)))
}

func (b *Broker) onDone(env Envelope) {
	var msg BlockDone
	if err := decodePayload(env, &msg); err != nil {
		return
	}
	pj := b.remove(msg.JobID)
	if pj == nil {
		return
	}
	b.callbacks.Done(pj.node, pj.job)
}

func (b *Broker) lookup(job flow.JobId) *pendingJob {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending[job]
}

func (b *Broker) remove(job flow.JobId) *pendingJob {
	b.mu.Lock()
	pj, ok := b.pending[job]
	if !ok {
		b.mu.Unlock()
		return nil
	}
	if pj.timer != nil {
		pj.timer.Stop()
	}
	delete(b.pending, job)
	slots := b.spawnSlots
	b.mu.Unlock()

	if pj.heldSlot && slots != nil {
		slots.Release(1)
	}
	return pj
}

// Dispatch implements internal/infrastructure/scheduler.Dispatcher.
func (b *Broker) Dispatch(ctx context.Context, scope session.Scope, node *flow.Node, jobID flow.JobId, bundle map[flow.HandleName]interface{}) error {
	executor := executorOf(node)

	if w, ok := b.builtinFor(executor); ok {
		go b.runBuiltin(ctx, w, node.ID, jobID, bundle)
		return nil
	}

	b.mu.Lock()
	b.taskSeq++
	taskID := b.taskSeq
	pj := &pendingJob{node: node.ID, job: jobID, bundle: bundle, taskID: taskID}
	b.pending[jobID] = pj
	if timeout := timeoutOf(node); timeout > 0 {
		pj.timer = time.AfterFunc(timeout, func() { b.timeoutJob(jobID) })
	}
	b.mu.Unlock()

	if node.Kind == flow.ServiceKind {
		return b.dispatchService(node, jobID)
	}
	return b.dispatchTask(ctx, scope, node, jobID)
}

func (b *Broker) dispatchTask(ctx context.Context, scope session.Scope, node *flow.Node, jobID flow.JobId) error {
	if b.spawn == nil {
		return apperrors.WorkerSpawnError(string(node.ID), fmt.Errorf("no spawner configured"))
	}

	b.mu.Lock()
	slots := b.spawnSlots
	b.mu.Unlock()
	if slots != nil {
		if err := slots.Acquire(ctx, 1); err != nil {
			b.remove(jobID)
			return apperrors.WorkerSpawnError(string(node.ID), err)
		}
		b.mu.Lock()
		if pj, ok := b.pending[jobID]; ok {
			pj.heldSlot = true
		}
		b.mu.Unlock()
	}

	if _, err := b.spawn(ctx, scope, node, b.Addr(), jobID); err != nil {
		b.remove(jobID)
		return apperrors.WorkerSpawnError(string(node.ID), err)
	}
	return nil
}

func (b *Broker) dispatchService(node *flow.Node, jobID flow.JobId) error {
	if b.registry == nil || node.Service == nil {
		return apperrors.WorkerSpawnError(string(node.ID), fmt.Errorf("no service registry configured"))
	}
	w, ok := b.registry.FindByService(node.Service.ServiceName, 30*time.Second)
	if !ok {
		b.remove(jobID)
		return apperrors.WorkerSpawnError(string(node.ID), fmt.Errorf("no healthy worker for service %q", node.Service.ServiceName))
	}
	b.registry.MarkDispatched(w.ID)
	// The service connection is expected to already be accepted by
	// acceptLoop and will send BlockReady carrying this job id once it
	// dequeues the assignment from its own inbox (out of scope here:
	// service workers poll or are pushed work over the same socket).
	return nil
}

func (b *Broker) runBuiltin(ctx context.Context, w BuiltinWorker, node flow.NodeId, job flow.JobId, bundle map[flow.HandleName]interface{}) {
	out, err := w.Run(ctx, bundle)
	if err != nil {
		b.callbacks.Error(node, job, apperrors.WorkerRuntimeError(string(node), err))
		return
	}
	for handle, value := range out {
		b.callbacks.Output(node, job, handle, value, true)
	}
	b.callbacks.Done(node, job)
}

func (b *Broker) builtinFor(executor string) (BuiltinWorker, bool) {
	if executor == "" {
		return nil, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.builtins[executor]
	return w, ok
}

func (b *Broker) timeoutJob(jobID flow.JobId) {
	pj := b.remove(jobID)
	if pj == nil {
		return
	}
	b.callbacks.Error(pj.node, pj.job, apperrors.TimeoutError(string(pj.node), 0))
}

// Cancel implements internal/infrastructure/scheduler.Dispatcher: a
// best-effort notification to the worker holding this job.
func (b *Broker) Cancel(jobID flow.JobId) {
	pj := b.lookup(jobID)
	if pj == nil || pj.conn == nil {
		return
	}
	_ = writeFrame(pj.conn, TypeCancel, CancelMessage{JobID: jobID})
}

func executorOf(n *flow.Node) string {
	if n.Kind == flow.TaskKind && n.Task != nil {
		return n.Task.Executor
	}
	return ""
}

func timeoutOf(n *flow.Node) time.Duration {
	switch n.Kind {
	case flow.TaskKind:
		if n.Task != nil && n.Task.TimeoutSeconds > 0 {
			return time.Duration(n.Task.TimeoutSeconds) * time.Second
		}
	case flow.ServiceKind:
		if n.Service != nil && n.Service.TimeoutSeconds > 0 {
			return time.Duration(n.Service.TimeoutSeconds) * time.Second
		}
	}
	return 0
}

func decodePayload(env Envelope, v interface{}) error {
	return json.Unmarshal(env.Payload, v)
}
