package flow

// BlockKind discriminates the manifest-level definitions a node can
// reference: flow, block, service, applet, or package.
type BlockKind int

const (
	TaskBlockKind BlockKind = iota
	ServiceBlockKind
	SubflowBlockKind
	SlotBlockKind
	// AppletBlockKind is a richer, UI-facing manifest variant. For
	// scheduling purposes the core treats it identically to a plain
	// task block; only the manifest reader distinguishes them.
	AppletBlockKind
)

// Block is a reusable unit of work: the definition, not an instance.
// Resolved by the path finder + manifest reader collaborators and
// consumed opaquely by composition.
type Block struct {
	Kind BlockKind
	// Ref is the block reference string as written in a manifest
	// (package-qualified path), used as the identity for injection
	// lookups.
	Ref string
	// Path is the resolved filesystem path to the block's manifest.
	Path string

	InputDefs  map[HandleName]InputHandle
	OutputDefs map[HandleName]OutputHandle

	// Executor, when set, is the default worker executor for task/applet
	// blocks (overridable per node).
	Executor string

	// Subflow-specific: the nested node manifests making up this
	// block's graph, populated only when Kind == SubflowBlockKind. Left
	// as opaque data (internal/infrastructure/manifest's concern); the
	// runtimegraph composer reads it positionally via the collaborator
	// interface, not this field directly, except in tests that build a
	// Block by hand.
	SubflowNodes map[NodeId]*Node
	// InputsFrom/OutputsFrom mirror the subflow's own declared edges:
	// how its inputs map onto its inner nodes' froms, and how its
	// outputs collect from its inner nodes' tos.
	InputsFrom HandlesFroms
	OutputsTo  HandlesTos
}
