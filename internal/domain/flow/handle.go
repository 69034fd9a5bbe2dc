package flow

import "encoding/json"

// InputHandle declares one input port on a node or block.
type InputHandle struct {
	Name     HandleName
	Nullable bool
	Default  ValueLiteral
	// Schema is the declared type schema, opaque to the core. When
	// present it is validated best-effort at composition time by the
	// manifest collaborator; the scheduler never inspects it.
	Schema json.RawMessage
}

// HasDefault reports whether a static default was declared.
func (h InputHandle) HasDefault() bool { return h.Default.IsPresent() || h.Default.IsExplicitNull() }

// OutputHandle declares one output port on a node or block.
type OutputHandle struct {
	Name HandleName
	// IsAdditional marks a handle that isn't part of the block's
	// declared contract but may still emit values dynamically (used by
	// blocks whose output shape isn't fully static).
	IsAdditional bool
}

// HandleFromKind discriminates the origin of an edge.
type HandleFromKind int

const (
	// FromFlowInputKind sources a value from the enclosing flow's own input.
	FromFlowInputKind HandleFromKind = iota
	// FromNodeOutputKind sources a value from another node's output handle.
	FromNodeOutputKind
	// FromValueKind sources a constant literal baked into the manifest.
	FromValueKind
)

// HandleFrom is a tagged union over a data edge's origin. Kept as a
// flat struct with a discriminator rather than an interface hierarchy,
// per the single invariant that matters here: callers switch on Kind
// and read only the fields that kind defines.
type HandleFrom struct {
	Kind HandleFromKind

	// valid when Kind == FromFlowInputKind
	Input HandleName

	// valid when Kind == FromNodeOutputKind
	Node   NodeId
	Output HandleName

	// valid when Kind == FromValueKind
	Literal ValueLiteral
}

func FromFlowInput(input HandleName) HandleFrom {
	return HandleFrom{Kind: FromFlowInputKind, Input: input}
}

func FromNodeOutput(node NodeId, output HandleName) HandleFrom {
	return HandleFrom{Kind: FromNodeOutputKind, Node: node, Output: output}
}

func FromValue(literal ValueLiteral) HandleFrom {
	return HandleFrom{Kind: FromValueKind, Literal: literal}
}

// HandleToKind discriminates the sink of an edge.
type HandleToKind int

const (
	// ToFlowOutputKind sinks a value into the enclosing flow's own output.
	ToFlowOutputKind HandleToKind = iota
	// ToNodeInputKind sinks a value into another node's input handle.
	ToNodeInputKind
	// ToSlotInputKind sinks a value into the input of the block a slot was filled with.
	ToSlotInputKind
)

// HandleTo is a tagged union over a data edge's sink, mirroring HandleFrom.
type HandleTo struct {
	Kind HandleToKind

	// valid when Kind == ToFlowOutputKind
	Output HandleName

	// valid when Kind == ToNodeInputKind or ToSlotInputKind
	Node  NodeId
	Input HandleName

	// valid when Kind == ToSlotInputKind: HostNode is the subflow
	// instance that owns the slot, SlotNode is the slot node id being
	// filled (kept for diagnostics; resolution already replaced it by
	// composition time).
	HostNode NodeId
	SlotNode NodeId
}

func ToFlowOutput(output HandleName) HandleTo {
	return HandleTo{Kind: ToFlowOutputKind, Output: output}
}

func ToNodeInput(node NodeId, input HandleName) HandleTo {
	return HandleTo{Kind: ToNodeInputKind, Node: node, Input: input}
}

func ToSlotInput(hostNode, slotNode NodeId, input HandleName) HandleTo {
	return HandleTo{Kind: ToSlotInputKind, HostNode: hostNode, SlotNode: slotNode, Node: slotNode, Input: input}
}

// HandlesFroms maps an input handle to its (possibly multiple) sources.
type HandlesFroms map[HandleName][]HandleFrom

// HandlesTos maps an output handle to its (possibly multiple) sinks.
type HandlesTos map[HandleName][]HandleTo
