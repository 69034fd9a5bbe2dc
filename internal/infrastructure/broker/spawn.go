package broker

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/oocana-go/oocana/internal/domain/flow"
	"github.com/oocana-go/oocana/internal/domain/session"
)

// DefaultSpawner launches a Task node's worker as a plain OS process,
// the local (non-remote) half of the spawn.remote switch. The broker
// address, job id, and node id are
// passed as environment variables; the worker dials back and speaks
// the length-prefixed BlockReady/BlockInput/BlockOutput/BlockDone
// protocol defined in internal/infrastructure/broker/protocol.go.
func DefaultSpawner(ctx context.Context, scope session.Scope, node *flow.Node, brokerAddr string, jobID flow.JobId) (*exec.Cmd, error) {
	if node.Task == nil {
		return nil, fmt.Errorf("default spawner: node %s is not a task", node.ID)
	}
	return SpawnProcess(ctx, scope.PkgRoot, node.Task.BlockRef, node.Task.Executor, brokerAddr, jobID, node.ID, scope.SessionID)
}

// SpawnProcess is the process-launch half of DefaultSpawner, factored
// out so the remote task API server (cmd/oocanad) can spawn the exact
// same worker process on the remote host for a job submitted by a
// caller's RemoteClient, without needing a *flow.Node of its own.
func SpawnProcess(ctx context.Context, pkgRoot, blockRef, executor, brokerAddr string, jobID flow.JobId, nodeID flow.NodeId, sessionID flow.SessionId) (*exec.Cmd, error) {
	cmd := exec.CommandContext(ctx, runtimeCommand(executor), blockRef)
	if pkgRoot != "" {
		cmd.Dir = pkgRoot
	}
	cmd.Env = append(os.Environ(),
		"OOCANA_BROKER_ADDR="+brokerAddr,
		"OOCANA_JOB_ID="+string(jobID),
		"OOCANA_NODE_ID="+string(nodeID),
		"OOCANA_SESSION_ID="+string(sessionID),
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// runtimeCommand maps a block's declared executor to the interpreter
// that runs it: "python"/"python3" run under python3, an empty executor
// or "node" under node, and any other executor name is used as the
// command itself.
func runtimeCommand(executor string) string {
	switch executor {
	case "python", "python3":
		return "python3"
	case "node", "":
		return "node"
	default:
		return executor
	}
}
