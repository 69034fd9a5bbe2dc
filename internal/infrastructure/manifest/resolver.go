package manifest

import (
	"fmt"

	"github.com/oocana-go/oocana/internal/domain/flow"
	"github.com/oocana-go/oocana/internal/domain/runtimegraph"
	"github.com/oocana-go/oocana/internal/infrastructure/pathfinder"
)

// finder is the subset of pathfinder.Finder the resolver needs, kept
// narrow so tests can supply a fake search path without touching disk.
type finder interface {
	ResolveBlock(ref, pkgRoot string) (string, error)
	ResolveFlow(ref, pkgRoot string) (string, error)
}

// Resolver implements runtimegraph.BlockResolver against real manifest
// files on disk: a reference resolves to a block manifest (task/service/
// slot/applet) or a flow manifest (subflow), tried in that order since a
// package root holds at most one of block.oo.yaml / flow.oo.yaml.
type Resolver struct {
	finder finder
}

// NewResolver builds a manifest-backed resolver over the given path finder.
func NewResolver(f *pathfinder.Finder) *Resolver {
	return &Resolver{finder: f}
}

var _ runtimegraph.BlockResolver = (*Resolver)(nil)

// ResolveBlock implements runtimegraph.BlockResolver.
func (r *Resolver) ResolveBlock(ref, pkgRoot string) (*flow.Block, error) {
	if path, err := r.finder.ResolveBlock(ref, pkgRoot); err == nil {
		return r.resolveBlockManifest(path, ref)
	}
	path, err := r.finder.ResolveFlow(ref, pkgRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: not a block or flow manifest: %w", ref, err)
	}
	return r.resolveFlowManifest(path, ref)
}

func (r *Resolver) resolveBlockManifest(path, ref string) (*flow.Block, error) {
	m, err := ReadBlock(path)
	if err != nil {
		return nil, err
	}
	kind, err := ToBlockKind(m.Kind)
	if err != nil {
		return nil, fmt.Errorf("block %s: %w", path, err)
	}

	inputDefs := make(map[flow.HandleName]flow.InputHandle, len(m.InputsDef))
	for _, h := range m.InputsDef {
		ih := ToInputHandle(h)
		if v, ok := ih.Default.Value(); ok {
			if err := validateLiteral(ih.Schema, v); err != nil {
				return nil, fmt.Errorf("block %s: input %q: %w", path, h.Name, err)
			}
		}
		inputDefs[flow.HandleName(h.Name)] = ih
	}
	outputDefs := make(map[flow.HandleName]flow.OutputHandle, len(m.Outputs))
	for _, o := range m.Outputs {
		outputDefs[flow.HandleName(o.Name)] = flow.OutputHandle{
			Name:         flow.HandleName(o.Name),
			IsAdditional: o.IsAdditional,
		}
	}

	return &flow.Block{
		Kind:       kind,
		Ref:        ref,
		Path:       path,
		InputDefs:  inputDefs,
		OutputDefs: outputDefs,
		Executor:   m.Executor,
	}, nil
}

// ResolveFlowEntry reads a flow manifest at an exact file path, for the
// `oocana run <flow-path>` entry point where the CLI names a file
// directly rather than a package-qualified reference the path finder
// would need to search for.
func (r *Resolver) ResolveFlowEntry(path string) (*flow.Block, error) {
	return r.resolveFlowManifest(path, path)
}

// resolveFlowManifest builds a SubflowBlockKind Block whose SubflowNodes
// carry each inner node's own from/to, including the reverse edges a
// flow manifest only states once (a node declares its own `from`; the
// producer's `to` is derived here) and the flow's outputs_from table
// turned into ToFlowOutput sinks on the producing node.
func (r *Resolver) resolveFlowManifest(path, ref string) (*flow.Block, error) {
	m, err := ReadFlow(path)
	if err != nil {
		return nil, err
	}

	nodes := make(map[flow.NodeId]*flow.Node, len(m.Nodes))
	for _, nm := range m.Nodes {
		n, err := toNode(nm)
		if err != nil {
			return nil, fmt.Errorf("flow %s: node %s: %w", path, nm.NodeID, err)
		}
		nodes[n.ID] = n
	}

	for _, n := range nodes {
		for handle, sources := range n.From {
			for _, src := range sources {
				if src.Kind != flow.FromNodeOutputKind {
					continue
				}
				producer, ok := nodes[src.Node]
				if !ok {
					continue
				}
				producer.To[src.Output] = append(producer.To[src.Output], flow.ToNodeInput(n.ID, handle))
			}
		}
	}

	for _, of := range m.OutputsFrom {
		producer, ok := nodes[flow.NodeId(of.Node)]
		if !ok {
			return nil, fmt.Errorf("flow %s: outputs_from references unknown node %q", path, of.Node)
		}
		producer.To[flow.HandleName(of.From)] = append(producer.To[flow.HandleName(of.From)], flow.ToFlowOutput(flow.HandleName(of.Output)))
	}

	inputDefs := make(map[flow.HandleName]flow.InputHandle, len(m.InputsDef))
	for _, h := range m.InputsDef {
		inputDefs[flow.HandleName(h.Name)] = ToInputHandle(h)
	}

	return &flow.Block{
		Kind:         flow.SubflowBlockKind,
		Ref:          ref,
		Path:         pathfinder.PackageRoot(path),
		InputDefs:    inputDefs,
		SubflowNodes: nodes,
	}, nil
}

func toNode(nm NodeManifest) (*flow.Node, error) {
	kind, err := toNodeKind(nm.Kind)
	if err != nil {
		return nil, err
	}

	runAfter := make([]flow.NodeId, len(nm.RunAfter))
	for i, r := range nm.RunAfter {
		runAfter[i] = flow.NodeId(r)
	}

	n := &flow.Node{
		ID:             flow.NodeId(nm.NodeID),
		Kind:           kind,
		From:           buildFrom(nm.From),
		To:             flow.HandlesTos{},
		RunAfter:       runAfter,
		InputsDefPatch: toPatches(nm.InputsDefPatch),
		Ignore:         nm.Ignore,
	}
	if nm.ProgressWeight != nil {
		n.ProgressWeight = *nm.ProgressWeight
	}

	switch kind {
	case flow.TaskKind:
		n.Task = &flow.TaskNode{
			BlockRef:       nm.BlockRef,
			Concurrency:    nm.Concurrency,
			TimeoutSeconds: nm.TimeoutSeconds,
			Spawn:          flow.SpawnOptions{Remote: nm.SpawnRemote},
			Executor:       nm.Executor,
			ErrorPolicy:    flow.ErrorPolicy(nm.ErrorPolicy),
			IsApplet:       nm.IsApplet,
		}
	case flow.SubflowKind:
		n.Subflow = &flow.SubflowNode{FlowRef: nm.FlowRef}
	case flow.SlotKind:
		n.Slot = &flow.SlotNode{ProviderRef: nm.ProviderRef}
	case flow.ServiceKind:
		n.Service = &flow.ServiceNode{ServiceName: nm.ServiceName, TimeoutSeconds: nm.TimeoutSeconds}
	case flow.ConditionKind:
		n.Condition = toConditionNode(nm)
	case flow.ValueKind:
		n.Value = toValueNode(nm)
	}
	return n, nil
}

func toNodeKind(s string) (flow.NodeKind, error) {
	switch s {
	case "task":
		return flow.TaskKind, nil
	case "subflow":
		return flow.SubflowKind, nil
	case "slot":
		return flow.SlotKind, nil
	case "service":
		return flow.ServiceKind, nil
	case "condition":
		return flow.ConditionKind, nil
	case "value":
		return flow.ValueKind, nil
	default:
		return 0, fmt.Errorf("unknown node kind %q", s)
	}
}

func toConditionNode(nm NodeManifest) *flow.ConditionNode {
	cond := &flow.ConditionNode{}
	for _, c := range nm.Cases {
		cond.Cases = append(cond.Cases, flow.ConditionCase{
			Handle: flow.HandleName(c.Handle),
			Predicate: flow.Predicate{
				Op:      flow.PredicateOp(c.Op),
				Handle:  flow.HandleName(c.OnHandle),
				Operand: c.Operand,
			},
		})
	}
	if nm.Default != "" {
		cond.Default = &flow.ConditionCase{Handle: flow.HandleName(nm.Default), Predicate: flow.Always()}
	}
	return cond
}

func toValueNode(nm NodeManifest) *flow.ValueNode {
	outputs := make(map[flow.HandleName][]flow.ValueLiteral, len(nm.Outputs))
	for name, vals := range nm.Outputs {
		lits := make([]flow.ValueLiteral, len(vals))
		for i, v := range vals {
			if v == nil {
				lits[i] = flow.ExplicitNull()
			} else {
				lits[i] = flow.Present(v)
			}
		}
		outputs[flow.HandleName(name)] = lits
	}
	return &flow.ValueNode{Outputs: outputs}
}

func toPatches(entries []InputsPatchEntry) []flow.InputsDefPatch {
	if len(entries) == 0 {
		return nil
	}
	out := make([]flow.InputsDefPatch, len(entries))
	for i, e := range entries {
		out[i] = flow.InputsDefPatch{Handle: flow.HandleName(e.Handle), Nullable: e.Nullable}
	}
	return out
}

func buildFrom(edges []EdgeFromManifest) flow.HandlesFroms {
	out := flow.HandlesFroms{}
	for _, e := range edges {
		h := flow.HandleName(e.Input)
		var hf flow.HandleFrom
		switch {
		case e.FlowInput != "":
			hf = flow.FromFlowInput(flow.HandleName(e.FlowInput))
		case e.FromNode != "":
			hf = flow.FromNodeOutput(flow.NodeId(e.FromNode), flow.HandleName(e.FromOut))
		case e.Literal != nil && *e.Literal == nil:
			hf = flow.FromValue(flow.ExplicitNull())
		case e.Literal != nil:
			hf = flow.FromValue(flow.Present(*e.Literal))
		default:
			hf = flow.FromValue(flow.Unset())
		}
		out[h] = append(out[h], hf)
	}
	return out
}
