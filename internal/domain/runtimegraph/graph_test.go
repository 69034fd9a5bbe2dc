package runtimegraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oocana-go/oocana/internal/domain/flow"
	"github.com/oocana-go/oocana/internal/domain/signal"
)

func nodeWithOutputDefs(id flow.NodeId, outputs ...flow.HandleName) *flow.Node {
	defs := make(map[flow.HandleName]flow.OutputHandle, len(outputs))
	for _, o := range outputs {
		defs[o] = flow.OutputHandle{Name: o}
	}
	return &flow.Node{ID: id, Kind: flow.TaskKind, OutputDefs: defs, Task: &flow.TaskNode{BlockRef: "b"}}
}

func TestGraph_TerminalNodes(t *testing.T) {
	a := nodeWithOutputDefs("a", "out")
	a.To = flow.HandlesTos{"out": {flow.ToNodeInput("b", "in")}}
	b := nodeWithOutputDefs("b", "out")
	b.To = flow.HandlesTos{"out": {flow.ToFlowOutput("result")}}

	g := &Graph{Nodes: map[flow.NodeId]*flow.Node{"a": a, "b": b}, Signals: signal.New()}
	assert.ElementsMatch(t, []flow.NodeId{"b"}, g.TerminalNodes())
}

func TestGraph_Validate_RejectsMissingEdgeTarget(t *testing.T) {
	a := &flow.Node{
		ID:   "a",
		Kind: flow.TaskKind,
		From: flow.HandlesFroms{"in": {flow.FromNodeOutput("missing", "out")}},
		Task: &flow.TaskNode{BlockRef: "b"},
	}
	g := &Graph{Nodes: map[flow.NodeId]*flow.Node{"a": a}, Signals: signal.New()}
	assert.Error(t, g.Validate())
}

func TestGraph_Validate_RejectsUndeclaredOutput(t *testing.T) {
	upstream := nodeWithOutputDefs("up", "out")
	down := &flow.Node{
		ID:   "down",
		Kind: flow.TaskKind,
		From: flow.HandlesFroms{"in": {flow.FromNodeOutput("up", "nonexistent")}},
		Task: &flow.TaskNode{BlockRef: "b"},
	}
	g := &Graph{Nodes: map[flow.NodeId]*flow.Node{"up": upstream, "down": down}, Signals: signal.New()}
	assert.Error(t, g.Validate())
}

func TestGraph_Validate_RejectsMissingRequiredInputSource(t *testing.T) {
	a := &flow.Node{
		ID:        "a",
		Kind:      flow.TaskKind,
		InputDefs: map[flow.HandleName]flow.InputHandle{"in": {Name: "in"}},
		Task:      &flow.TaskNode{BlockRef: "b"},
	}
	g := &Graph{Nodes: map[flow.NodeId]*flow.Node{"a": a}, Signals: signal.New()}
	assert.Error(t, g.Validate())
}

func TestGraph_Validate_IgnoredNodeSkipsInputCoverage(t *testing.T) {
	a := &flow.Node{
		ID:        "a",
		Kind:      flow.TaskKind,
		Ignore:    true,
		InputDefs: map[flow.HandleName]flow.InputHandle{"in": {Name: "in"}},
		Task:      &flow.TaskNode{BlockRef: "b"},
	}
	g := &Graph{Nodes: map[flow.NodeId]*flow.Node{"a": a}, Signals: signal.New()}
	require.NoError(t, g.Validate())
}

func TestGraph_Validate_RejectsRunAfterCycle(t *testing.T) {
	a := nodeWithOutputDefs("a")
	b := nodeWithOutputDefs("b")
	center := signal.New()
	center.Add("a", "b")
	center.Add("b", "a")
	g := &Graph{Nodes: map[flow.NodeId]*flow.Node{"a": a, "b": b}, Signals: center}
	assert.Error(t, g.Validate())
}

func TestGraph_Validate_RejectsDataCycleWithoutBootstrap(t *testing.T) {
	a := &flow.Node{
		ID:        "a",
		Kind:      flow.TaskKind,
		From:      flow.HandlesFroms{"in": {flow.FromNodeOutput("b", "out")}},
		OutputDefs: map[flow.HandleName]flow.OutputHandle{"out": {Name: "out"}},
		Task:      &flow.TaskNode{BlockRef: "b"},
	}
	b := &flow.Node{
		ID:        "b",
		Kind:      flow.TaskKind,
		From:      flow.HandlesFroms{"in": {flow.FromNodeOutput("a", "out")}},
		OutputDefs: map[flow.HandleName]flow.OutputHandle{"out": {Name: "out"}},
		Task:      &flow.TaskNode{BlockRef: "b"},
	}
	g := &Graph{Nodes: map[flow.NodeId]*flow.Node{"a": a, "b": b}, Signals: signal.New()}
	assert.Error(t, g.Validate())
}

func TestGraph_Validate_AllowsDataCycleWithBootstrapDefault(t *testing.T) {
	a := &flow.Node{
		ID:         "a",
		Kind:       flow.TaskKind,
		From:       flow.HandlesFroms{"in": {flow.FromNodeOutput("b", "out")}},
		InputDefs:  map[flow.HandleName]flow.InputHandle{"in": {Name: "in", Default: flow.Present(0)}},
		OutputDefs: map[flow.HandleName]flow.OutputHandle{"out": {Name: "out"}},
		Task:       &flow.TaskNode{BlockRef: "b"},
	}
	b := &flow.Node{
		ID:         "b",
		Kind:       flow.TaskKind,
		From:       flow.HandlesFroms{"in": {flow.FromNodeOutput("a", "out")}},
		InputDefs:  map[flow.HandleName]flow.InputHandle{"in": {Name: "in"}},
		OutputDefs: map[flow.HandleName]flow.OutputHandle{"out": {Name: "out"}},
		Task:       &flow.TaskNode{BlockRef: "b"},
	}
	g := &Graph{Nodes: map[flow.NodeId]*flow.Node{"a": a, "b": b}, Signals: signal.New()}
	require.NoError(t, g.Validate())
}

func TestGraph_Validate_RejectsSurvivingSlotOrSubflowNode(t *testing.T) {
	slot := &flow.Node{ID: "s", Kind: flow.SlotKind}
	g := &Graph{Nodes: map[flow.NodeId]*flow.Node{"s": slot}, Signals: signal.New()}
	assert.Error(t, g.Validate())
}
