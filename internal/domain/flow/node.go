package flow

// NodeKind discriminates the six node variants: task, subflow, slot,
// service, condition, and value.
type NodeKind int

const (
	TaskKind NodeKind = iota
	SubflowKind
	SlotKind
	ServiceKind
	ConditionKind
	ValueKind
)

func (k NodeKind) String() string {
	switch k {
	case TaskKind:
		return "task"
	case SubflowKind:
		return "subflow"
	case SlotKind:
		return "slot"
	case ServiceKind:
		return "service"
	case ConditionKind:
		return "condition"
	case ValueKind:
		return "value"
	default:
		return "unknown"
	}
}

// InputsDefPatch overrides a handle declaration supplied by an
// enclosing flow (e.g. a subflow tightening a default or nullability).
// Patches apply innermost-first: the deepest enclosing flow's patch
// wins over an outer one.
type InputsDefPatch struct {
	Handle   HandleName
	Nullable *bool
	Default  *ValueLiteral
}

// ErrorPolicy governs what a node's error does to the rest of the
// session when one of its firings reports a WorkerRuntimeError.
type ErrorPolicy string

const (
	PolicyStopFlow  ErrorPolicy = "stop-flow"
	PolicySkipNode  ErrorPolicy = "skip-node"
)

// Node is one instance of a block placed in a flow, carrying its own
// id, edges, and variant-specific payload. Exactly one of the *Kind
// fields below is populated, selected by Kind — a flat discriminated
// struct rather than an interface hierarchy, matching HandleFrom/HandleTo.
type Node struct {
	ID   NodeId
	Kind NodeKind

	From HandlesFroms
	To   HandlesTos

	RunAfter       []NodeId
	InputsDefPatch []InputsDefPatch
	Ignore         bool
	ProgressWeight float64

	InputDefs  map[HandleName]InputHandle
	OutputDefs map[HandleName]OutputHandle

	Task      *TaskNode
	Subflow   *SubflowNode
	Slot      *SlotNode
	Service   *ServiceNode
	Condition *ConditionNode
	Value     *ValueNode
}

// RequiredInputs returns the handles that must be satisfied before the
// node can become Ready: declared, not nullable, and without a default.
func (n *Node) RequiredInputs() []HandleName {
	var out []HandleName
	for name, h := range n.InputDefs {
		if !h.Nullable && !h.HasDefault() {
			out = append(out, name)
		}
	}
	return out
}

// TaskNode spawns an external worker process (or, via Executor, an
// in-process BuiltinWorker) per firing.
type TaskNode struct {
	BlockRef       string
	Concurrency    int
	TimeoutSeconds int
	Spawn          SpawnOptions
	// Executor names a specific worker implementation (language runtime
	// or a registered built-in like "llm") rather than letting the
	// block's own manifest decide.
	Executor    string
	ErrorPolicy ErrorPolicy
	// IsApplet marks a richer, UI-facing manifest variant of a task
	// block. It schedules identically to a plain task; only the
	// manifest reader treats it differently.
	IsApplet bool
}

// SpawnOptions controls how a Task node's jobs are dispatched.
type SpawnOptions struct {
	// Remote routes the job to the remote task HTTP API instead of
	// spawning a local process.
	Remote bool
}

// SubflowNode references another flow, expanded at compose time by
// internal/domain/runtimegraph. After composition no Subflow node
// survives in the runtime graph — its inner nodes are spliced in.
type SubflowNode struct {
	FlowRef string
}

// SlotNode is a placeholder filled by the enclosing subflow's slot
// provider. After composition no Slot node survives either.
type SlotNode struct {
	// ProviderRef, when non-empty, names a block reference supplied
	// out of line; otherwise the provider is an inline block attached
	// by the composer directly.
	ProviderRef string
}

// ServiceNode invokes a long-running shared worker identified by name,
// dispatched through internal/domain/workerpool rather than spawning a
// fresh process per firing.
type ServiceNode struct {
	ServiceName string
	TimeoutSeconds int
}

// ConditionNode owns an ordered list of cases and an optional default.
type ConditionNode struct {
	Cases   []ConditionCase
	Default *ConditionCase
}

// ConditionCase pairs a branch handle with a predicate over the node's
// input bundle.
type ConditionCase struct {
	Handle    HandleName
	Predicate Predicate
}

// ValueNode produces constant values on its outputs at startup. Each
// output handle carries an ordered sequence of literals so a single
// Value node can emit a stream (the last emission is marked done).
type ValueNode struct {
	Outputs map[HandleName][]ValueLiteral
}
