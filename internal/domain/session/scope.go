// Package session supplements the data model with RuntimeScope, the
// identity every job fires inside: which session, which package, which
// node, used to derive a deterministic broker job id and a per-package
// working directory handed to spawned workers.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/oocana-go/oocana/internal/domain/flow"
	"github.com/oocana-go/oocana/internal/pkg/uuid"
)

// Scope identifies the execution context one job fires inside.
type Scope struct {
	SessionID flow.SessionId
	PkgName   string // empty when the node's block isn't package-scoped
	DataDir   string
	PkgRoot   string
	Path      string
	NodeID    flow.NodeId
	// IsInject marks a scope created for a dev-override injected block
	// rather than the manifest's original reference.
	IsInject bool
	// EnableLayer controls whether the sandboxing collaborator (out of
	// scope for this engine) should apply package layering for this job.
	EnableLayer bool
}

// New builds a root Scope for a session, before any node has been
// entered.
func New(sessionID flow.SessionId, dataDir string) Scope {
	return Scope{SessionID: sessionID, DataDir: dataDir}
}

// WithNode returns a copy of the scope entered into a specific node,
// package root, and manifest path.
func (s Scope) WithNode(nodeID flow.NodeId, pkgName, pkgRoot, path string) Scope {
	next := s
	next.NodeID = nodeID
	next.PkgName = pkgName
	next.PkgRoot = pkgRoot
	next.Path = path
	return next
}

// Identifier returns a deterministic identity string for this scope,
// used as the broker's job id seed and as a cache sub-key: the session
// id prefixed onto a short hash of path+node id, so the same node fired
// twice within a session (concurrency, re-entry) gets distinct but
// reproducible identities only when path+node also differ.
func (s Scope) Identifier() string {
	h := sha256.Sum256([]byte(s.Path + "\x00" + string(s.NodeID)))
	return fmt.Sprintf("%s-%s", s.SessionID, hex.EncodeToString(h[:])[:12])
}

// NewSessionID mints a fresh SessionId for one `run` invocation.
func NewSessionID() flow.SessionId {
	return flow.SessionId(uuid.New())
}

// NewJobID mints a fresh JobId for one node firing.
func NewJobID() flow.JobId {
	return flow.JobId(uuid.New())
}
