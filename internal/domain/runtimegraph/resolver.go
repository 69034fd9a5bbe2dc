package runtimegraph

import "github.com/oocana-go/oocana/internal/domain/flow"

// BlockResolver is the composer's view of the manifest reader + path
// finder collaborators: given a block
// reference as written in a manifest and the package root it was
// written relative to, produce the resolved Block. Implemented by
// internal/infrastructure/manifest against real files; tests supply an
// in-memory fake.
type BlockResolver interface {
	ResolveBlock(ref, pkgRoot string) (*flow.Block, error)
}

// Injections maps a block reference to a substitute block reference,
// applied at composition step 5 (dev overrides).
type Injections map[string]string
