package runtimegraph

import (
	"fmt"

	"github.com/oocana-go/oocana/internal/domain/flow"
	"github.com/oocana-go/oocana/internal/domain/signal"
)

// Compose flattens a root subflow block into a Graph: block
// resolution and slot/subflow splicing happen together in a single
// top-down walk, since a subflow's FromFlowInput/ToFlowOutput edges can
// only be rewritten once the outer instance's own from/to are known.
func Compose(root *flow.Block, rootPkgRoot string, resolver BlockResolver, injections Injections) (*Graph, error) {
	out := make(map[flow.NodeId]*flow.Node)
	center := signal.New()

	rootFrom := flow.HandlesFroms{}
	rootTo := flow.HandlesTos{}
	if err := spliceSubflow(root, rootPkgRoot, "", rootFrom, rootTo, resolver, injections, out, center); err != nil {
		return nil, err
	}

	g := &Graph{Nodes: out, Signals: center, RootInputDefs: inputDefsOf(root)}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func inputDefsOf(b *flow.Block) map[flow.HandleName]flow.InputHandle {
	if b.InputDefs != nil {
		return b.InputDefs
	}
	return map[flow.HandleName]flow.InputHandle{}
}

// rekey qualifies an inner node id with the instance prefix it was
// spliced under, so two instances of the same subflow don't collide.
func rekey(prefix string, id flow.NodeId) flow.NodeId {
	if prefix == "" {
		return id
	}
	return flow.NodeId(prefix + "/" + string(id))
}

// spliceSubflow recursively inlines block's inner nodes into out,
// rewriting FromFlowInput/ToFlowOutput edges against the instance's own
// outerFrom/outerTo (the Subflow node's own from/to, already expressed
// in the parent's namespace).
func spliceSubflow(
	block *flow.Block,
	pkgRoot string,
	prefix string,
	outerFrom flow.HandlesFroms,
	outerTo flow.HandlesTos,
	resolver BlockResolver,
	injections Injections,
	out map[flow.NodeId]*flow.Node,
	center *signal.Center,
) error {
	for innerID, inner := range block.SubflowNodes {
		clone := *inner
		newID := rekey(prefix, innerID)
		clone.ID = newID

		clone.From = rewriteFroms(inner.From, prefix, outerFrom)
		clone.To = rewriteTos(inner.To, prefix, outerTo)
		clone.RunAfter = make([]flow.NodeId, len(inner.RunAfter))
		for i, r := range inner.RunAfter {
			clone.RunAfter[i] = rekey(prefix, r)
		}
		for _, pred := range clone.RunAfter {
			center.Add(newID, pred)
		}

		switch inner.Kind {
		case flow.TaskKind, flow.ServiceKind:
			ref := blockRefOf(inner)
			if sub, ok := injections[ref]; ok {
				ref = sub
			}
			rb, err := resolver.ResolveBlock(ref, pkgRoot)
			if err != nil {
				return fmt.Errorf("resolving block %q for node %s: %w", ref, newID, err)
			}
			clone.InputDefs = applyPatches(rb.InputDefs, inner.InputsDefPatch)
			clone.OutputDefs = rb.OutputDefs
			out[newID] = &clone

		case flow.ConditionKind, flow.ValueKind:
			clone.InputDefs = applyPatches(inner.InputDefs, inner.InputsDefPatch)
			out[newID] = &clone

		case flow.SubflowKind:
			ref := inner.Subflow.FlowRef
			if sub, ok := injections[ref]; ok {
				ref = sub
			}
			rb, err := resolver.ResolveBlock(ref, pkgRoot)
			if err != nil {
				return fmt.Errorf("resolving subflow %q for node %s: %w", ref, newID, err)
			}
			if err := spliceSubflow(rb, packageRootOf(rb, pkgRoot), newID, clone.From, clone.To, resolver, injections, out, center); err != nil {
				return err
			}

		case flow.SlotKind:
			ref := inner.Slot.ProviderRef
			if sub, ok := injections[ref]; ok {
				ref = sub
			}
			if ref == "" {
				return fmt.Errorf("slot node %s has no provider", newID)
			}
			rb, err := resolver.ResolveBlock(ref, pkgRoot)
			if err != nil {
				return fmt.Errorf("resolving slot provider %q for node %s: %w", ref, newID, err)
			}
			if rb.Kind == flow.SubflowBlockKind {
				if err := spliceSubflow(rb, packageRootOf(rb, pkgRoot), newID, clone.From, clone.To, resolver, injections, out, center); err != nil {
					return err
				}
				continue
			}
			providerNode := clone
			providerNode.Kind = flow.TaskKind
			providerNode.Task = &flow.TaskNode{BlockRef: ref}
			providerNode.InputDefs = applyPatches(rb.InputDefs, inner.InputsDefPatch)
			providerNode.OutputDefs = rb.OutputDefs
			out[newID] = &providerNode

		default:
			return fmt.Errorf("node %s has unknown kind %v", newID, inner.Kind)
		}
	}
	return nil
}

func blockRefOf(n *flow.Node) string {
	switch n.Kind {
	case flow.TaskKind:
		if n.Task != nil {
			return n.Task.BlockRef
		}
	case flow.ServiceKind:
		if n.Service != nil {
			return n.Service.ServiceName
		}
	}
	return ""
}

func packageRootOf(b *flow.Block, fallback string) string {
	if b.Path != "" {
		return b.Path
	}
	return fallback
}

// applyPatches applies inputs_def_patch entries over a block's declared
// defs, innermost-first — the caller already walks outer-to-inner, so
// patches on the current node are applied last.
func applyPatches(defs map[flow.HandleName]flow.InputHandle, patches []flow.InputsDefPatch) map[flow.HandleName]flow.InputHandle {
	out := make(map[flow.HandleName]flow.InputHandle, len(defs))
	for k, v := range defs {
		out[k] = v
	}
	for _, p := range patches {
		h, ok := out[p.Handle]
		if !ok {
			h = flow.InputHandle{Name: p.Handle}
		}
		if p.Nullable != nil {
			h.Nullable = *p.Nullable
		}
		if p.Default != nil {
			h.Default = *p.Default
		}
		out[p.Handle] = h
	}
	return out
}

// rewriteFroms rekeys sibling node references and expands any
// FromFlowInput source into whatever feeds the enclosing instance's own
// input of that name.
func rewriteFroms(in flow.HandlesFroms, prefix string, outerFrom flow.HandlesFroms) flow.HandlesFroms {
	out := make(flow.HandlesFroms, len(in))
	for handle, sources := range in {
		var rewritten []flow.HandleFrom
		for _, src := range sources {
			switch src.Kind {
			case flow.FromFlowInputKind:
				rewritten = append(rewritten, outerFrom[src.Input]...)
			case flow.FromNodeOutputKind:
				s := src
				s.Node = rekey(prefix, src.Node)
				rewritten = append(rewritten, s)
			default: // FromValueKind
				rewritten = append(rewritten, src)
			}
		}
		out[handle] = rewritten
	}
	return out
}

// rewriteTos rekeys sibling node references and expands any
// ToFlowOutput sink into whatever consumes the enclosing instance's own
// output of that name.
func rewriteTos(in flow.HandlesTos, prefix string, outerTo flow.HandlesTos) flow.HandlesTos {
	out := make(flow.HandlesTos, len(in))
	for handle, sinks := range in {
		var rewritten []flow.HandleTo
		for _, sink := range sinks {
			switch sink.Kind {
			case flow.ToFlowOutputKind:
				rewritten = append(rewritten, outerTo[sink.Output]...)
			case flow.ToNodeInputKind:
				s := sink
				s.Node = rekey(prefix, sink.Node)
				rewritten = append(rewritten, s)
			case flow.ToSlotInputKind:
				s := sink
				s.Node = rekey(prefix, sink.Node)
				s.HostNode = rekey(prefix, sink.HostNode)
				s.SlotNode = rekey(prefix, sink.SlotNode)
				rewritten = append(rewritten, s)
			}
		}
		out[handle] = rewritten
	}
	return out
}
