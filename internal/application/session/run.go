// Package session implements the RunSession use case: resolve a flow
// manifest, compose it into a runtime graph, wire the
// broker/scheduler/cache/reporter collaborators, and drive one run to
// completion. This is the glue `oocana run` sits on top of.
package session

import (
	"context"
	"os"
	"path/filepath"

	"github.com/oocana-go/oocana/internal/domain/flow"
	"github.com/oocana-go/oocana/internal/domain/inputstore"
	"github.com/oocana-go/oocana/internal/domain/runtimegraph"
	domscope "github.com/oocana-go/oocana/internal/domain/session"
	"github.com/oocana-go/oocana/internal/domain/workerpool"
	"github.com/oocana-go/oocana/internal/infrastructure/broker"
	"github.com/oocana-go/oocana/internal/infrastructure/manifest"
	"github.com/oocana-go/oocana/internal/infrastructure/pathfinder"
	"github.com/oocana-go/oocana/internal/infrastructure/reporter"
	"github.com/oocana-go/oocana/internal/infrastructure/scheduler"
	"github.com/oocana-go/oocana/internal/infrastructure/tracing"
	apperrors "github.com/oocana-go/oocana/internal/pkg/errors"
)

// Config configures one `oocana run` invocation.
type Config struct {
	FlowPath    string
	SearchPaths []string
	Injections  runtimegraph.Injections

	RunToNode   flow.NodeId
	RunFromNode flow.NodeId

	Cache    inputstore.CacheBackend
	UseCache bool

	BrokerAddr         string
	Spawn              broker.Spawner
	Registry           *workerpool.Registry
	Builtins           map[string]broker.BuiltinWorker
	MaxConcurrentSpawn int64

	Reporter scheduler.Reporter

	// SessionID overrides the generated session id, for a caller (e.g.
	// the CLI's Postgres session-store bracket) that needs to know the
	// id before Run returns. Left zero, Run mints a fresh one.
	SessionID flow.SessionId
}

// Result is what one run produces.
type Result struct {
	SessionID flow.SessionId
	Outputs   map[flow.HandleName]interface{}
}

// Run executes Config end to end: resolve, compose, apply any
// run-to/from-node boundary, restore a cached snapshot if requested,
// and drive the scheduler to completion.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	absPath, err := filepath.Abs(cfg.FlowPath)
	if err != nil {
		return nil, apperrors.ComposeError("resolving flow path", err)
	}
	pkgRoot := pathfinder.PackageRoot(absPath)
	finder := pathfinder.New(cfg.SearchPaths...)
	resolver := manifest.NewResolver(finder)

	root, err := resolver.ResolveFlowEntry(absPath)
	if err != nil {
		return nil, apperrors.ComposeError("resolving root flow "+cfg.FlowPath, err)
	}

	graph, err := runtimegraph.Compose(root, pkgRoot, resolver, cfg.Injections)
	if err != nil {
		return nil, apperrors.ComposeError("composing runtime graph", err)
	}

	flowIdentity := absPath
	var cachedSnapshot []byte
	if cfg.RunFromNode != "" {
		snapshot, ok := applyRunFromNode(graph, cfg.RunFromNode, cfg.Cache, flowIdentity)
		if ok {
			cachedSnapshot = snapshot
		} else {
			// Unknown or stale cache: fall back to a full run.
			cfg.RunFromNode = ""
		}
	}
	if cfg.RunToNode != "" {
		applyRunToNode(graph, cfg.RunToNode)
	}

	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = domscope.NewSessionID()
	}
	scope := domscope.New(sessionID, "")

	rep := cfg.Reporter
	if rep == nil {
		rep = reporter.NewConsole(os.Stdout)
	}

	br, err := broker.New(cfg.BrokerAddr, nil, cfg.Spawn, cfg.Registry)
	if err != nil {
		return nil, apperrors.ComposeError("starting worker broker", err)
	}
	defer br.Close()
	if cfg.MaxConcurrentSpawn > 0 {
		br.SetMaxConcurrentSpawns(cfg.MaxConcurrentSpawn)
	}
	for executor, w := range cfg.Builtins {
		br.RegisterBuiltin(executor, w)
	}

	// Wrapping unconditionally is safe even when no tracing.Provider was
	// configured: otel falls back to a no-op TracerProvider, so this adds
	// no overhead beyond an empty span when nothing is listening.
	dispatcher := tracing.NewTracedDispatcher(br, "oocana.broker")
	sched := scheduler.New(sessionID, graph, dispatcher, rep, scope)
	br.SetCallbacks(sched)

	switch {
	case cachedSnapshot != nil:
		_ = sched.Restore(cachedSnapshot)
	case cfg.UseCache && cfg.Cache != nil:
		if data, ok, err := cfg.Cache.Load(ctx, flowIdentity); err == nil && ok {
			_ = sched.Restore(data)
		}
	}

	outputs, runErr := sched.Run(ctx)

	if cfg.UseCache && cfg.Cache != nil {
		if data, err := sched.Snapshot(); err == nil {
			_ = cfg.Cache.Save(ctx, flowIdentity, data)
		}
	}

	if runErr != nil {
		return nil, runErr
	}
	return &Result{SessionID: sessionID, Outputs: outputs}, nil
}

// applyRunToNode restricts the runnable set to target and its
// transitive upstream (reverse BFS over FromNodeOutput data edges and
// run_after signal edges), marking everything else Ignored.
func applyRunToNode(graph *runtimegraph.Graph, target flow.NodeId) {
	keep := upstreamClosure(graph, target)
	for id, n := range graph.Nodes {
		if !keep[id] {
			n.Ignore = true
		}
	}
}

// applyRunFromNode loads target's cached input bundle and marks every
// strict upstream node Ignored so the scheduler starts from target
// directly. Returns the validated snapshot and true on success, or
// (nil, false) when no usable cache entry exists, per the
// "unknown or stale cache falls back to full run" rule.
func applyRunFromNode(graph *runtimegraph.Graph, target flow.NodeId, cache inputstore.CacheBackend, flowIdentity string) ([]byte, bool) {
	if cache == nil {
		return nil, false
	}
	if _, ok := graph.Nodes[target]; !ok {
		return nil, false
	}
	data, ok, err := cache.Load(context.Background(), flowIdentity)
	if err != nil || !ok {
		return nil, false
	}

	store := inputstore.New(graph.Nodes)
	if err := store.Restore(data); err != nil {
		return nil, false
	}
	ns := store.Get(target)
	if ns == nil || !ns.Ready() {
		return nil, false
	}

	upstream := upstreamClosure(graph, target)
	delete(upstream, target)
	for id := range upstream {
		graph.Nodes[id].Ignore = true
	}
	return data, true
}

func upstreamClosure(graph *runtimegraph.Graph, target flow.NodeId) map[flow.NodeId]bool {
	keep := map[flow.NodeId]bool{target: true}
	queue := []flow.NodeId{target}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		n := graph.Nodes[id]
		if n == nil {
			continue
		}
		for _, sources := range n.From {
			for _, src := range sources {
				if src.Kind == flow.FromNodeOutputKind && !keep[src.Node] {
					keep[src.Node] = true
					queue = append(queue, src.Node)
				}
			}
		}
		for _, pred := range graph.Signals.Predecessors(id) {
			if !keep[pred] {
				keep[pred] = true
				queue = append(queue, pred)
			}
		}
	}
	return keep
}
