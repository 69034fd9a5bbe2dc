package runtimegraph

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oocana-go/oocana/internal/domain/flow"
)

// fakeResolver resolves block refs from an in-memory map, the test
// stand-in for internal/infrastructure/manifest + pathfinder.
type fakeResolver struct {
	blocks map[string]*flow.Block
}

func (r *fakeResolver) ResolveBlock(ref, pkgRoot string) (*flow.Block, error) {
	b, ok := r.blocks[ref]
	if !ok {
		return nil, fmt.Errorf("no such block %q", ref)
	}
	return b, nil
}

func taskBlock(outputs ...flow.HandleName) *flow.Block {
	outDefs := make(map[flow.HandleName]flow.OutputHandle, len(outputs))
	for _, o := range outputs {
		outDefs[o] = flow.OutputHandle{Name: o}
	}
	return &flow.Block{
		Kind:       flow.TaskBlockKind,
		InputDefs:  map[flow.HandleName]flow.InputHandle{"in": {Name: "in"}},
		OutputDefs: outDefs,
	}
}

func TestCompose_SingleTaskNode(t *testing.T) {
	root := &flow.Block{
		Kind: flow.SubflowBlockKind,
		SubflowNodes: map[flow.NodeId]*flow.Node{
			"a": {
				ID:   "a",
				Kind: flow.TaskKind,
				From: flow.HandlesFroms{"in": {flow.FromValue(flow.Present(1))}},
				Task: &flow.TaskNode{BlockRef: "block-a"},
			},
		},
	}
	resolver := &fakeResolver{blocks: map[string]*flow.Block{"block-a": taskBlock("out")}}

	g, err := Compose(root, "/pkg", resolver, nil)
	require.NoError(t, err)
	require.Contains(t, g.Nodes, flow.NodeId("a"))
	assert.Equal(t, flow.OutputHandle{Name: "out"}, g.Nodes["a"].OutputDefs["out"])
}

func TestCompose_SubflowSplicingRekeysNodesAndRewritesEdges(t *testing.T) {
	inner := &flow.Block{
		Kind: flow.SubflowBlockKind,
		SubflowNodes: map[flow.NodeId]*flow.Node{
			"inner-task": {
				ID:   "inner-task",
				Kind: flow.TaskKind,
				From: flow.HandlesFroms{"in": {flow.FromFlowInput("x")}},
				To:   flow.HandlesTos{"out": {flow.ToFlowOutput("y")}},
				Task: &flow.TaskNode{BlockRef: "block-a"},
			},
		},
	}
	root := &flow.Block{
		Kind: flow.SubflowBlockKind,
		SubflowNodes: map[flow.NodeId]*flow.Node{
			"sub": {
				ID:      "sub",
				Kind:    flow.SubflowKind,
				From:    flow.HandlesFroms{"x": {flow.FromValue(flow.Present(99))}},
				To:      flow.HandlesTos{"y": {flow.ToNodeInput("consumer", "in")}},
				Subflow: &flow.SubflowNode{FlowRef: "sub-flow"},
			},
			"consumer": {
				ID:   "consumer",
				Kind: flow.TaskKind,
				Task: &flow.TaskNode{BlockRef: "block-a"},
			},
		},
	}
	resolver := &fakeResolver{blocks: map[string]*flow.Block{
		"sub-flow": inner,
		"block-a":  taskBlock("out"),
	}}

	g, err := Compose(root, "/pkg", resolver, nil)
	require.NoError(t, err)

	require.NotContains(t, g.Nodes, flow.NodeId("sub"), "subflow node must not survive composition")
	require.Contains(t, g.Nodes, flow.NodeId("sub/inner-task"), "inner node should be rekeyed under the instance prefix")

	splicedIn := g.Nodes["sub/inner-task"]
	require.Len(t, splicedIn.From["in"], 1)
	assert.Equal(t, flow.FromValueKind, splicedIn.From["in"][0].Kind, "FromFlowInput should be rewritten to the instance's own source")

	require.Len(t, splicedIn.To["out"], 1)
	assert.Equal(t, flow.NodeId("consumer"), splicedIn.To["out"][0].Node, "ToFlowOutput should be rewritten to the instance's own sink")
}

func TestCompose_UnknownNodeKindErrors(t *testing.T) {
	root := &flow.Block{
		Kind: flow.SubflowBlockKind,
		SubflowNodes: map[flow.NodeId]*flow.Node{
			"a": {ID: "a", Kind: flow.NodeKind(99)},
		},
	}
	_, err := Compose(root, "/pkg", &fakeResolver{blocks: map[string]*flow.Block{}}, nil)
	assert.Error(t, err)
}

func TestCompose_InjectionSubstitutesBlockRef(t *testing.T) {
	root := &flow.Block{
		Kind: flow.SubflowBlockKind,
		SubflowNodes: map[flow.NodeId]*flow.Node{
			"a": {ID: "a", Kind: flow.TaskKind, Task: &flow.TaskNode{BlockRef: "block-a"}},
		},
	}
	resolver := &fakeResolver{blocks: map[string]*flow.Block{
		"block-a":     taskBlock("out"),
		"block-a-dev": taskBlock("out", "extra"),
	}}

	g, err := Compose(root, "/pkg", resolver, Injections{"block-a": "block-a-dev"})
	require.NoError(t, err)
	assert.Contains(t, g.Nodes["a"].OutputDefs, flow.HandleName("extra"), "injected dev block should have replaced the original")
}

func TestApplyPatches_OverridesNullable(t *testing.T) {
	defs := map[flow.HandleName]flow.InputHandle{
		"x": {Name: "x", Nullable: false},
	}
	nullableTrue := true
	patches := []flow.InputsDefPatch{
		{Handle: "x", Nullable: &nullableTrue},
	}
	out := applyPatches(defs, patches)
	assert.True(t, out["x"].Nullable)
}
