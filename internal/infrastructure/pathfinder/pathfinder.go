// Package pathfinder resolves block and flow references written in a
// manifest (package-qualified paths) to concrete filesystem locations.
// A minimal, real collaborator, not a stub: it walks a configured search
// path list and the node's own package root, exactly as
// internal/infrastructure/manifest needs to feed the composer real data
// end to end. Ambiguity across search paths resolves to the first match
// in declaration order rather than an exhaustive robustness check.
package pathfinder

import (
	"fmt"
	"os"
	"path/filepath"
)

// Finder resolves block/flow/service references against a fixed set of
// search roots, checked in order.
type Finder struct {
	searchPaths []string
}

// New builds a Finder over the given search roots, in priority order.
func New(searchPaths ...string) *Finder {
	return &Finder{searchPaths: searchPaths}
}

// ResolveBlock finds a block manifest file for a reference. A reference
// is either an absolute/relative path (tried first, resolved against
// pkgRoot) or a package-qualified name looked up under each search path
// as "<root>/<ref>/block.oo.yaml".
func (f *Finder) ResolveBlock(ref, pkgRoot string) (string, error) {
	return f.resolve(ref, pkgRoot, "block.oo.yaml")
}

// ResolveFlow finds a flow manifest file for a subflow reference.
func (f *Finder) ResolveFlow(ref, pkgRoot string) (string, error) {
	return f.resolve(ref, pkgRoot, "flow.oo.yaml")
}

func (f *Finder) resolve(ref, pkgRoot, filename string) (string, error) {
	if filepath.IsAbs(ref) {
		if p := existingOr(ref, filename); p != "" {
			return p, nil
		}
		return "", fmt.Errorf("pathfinder: %s not found at %s", filename, ref)
	}

	candidates := make([]string, 0, len(f.searchPaths)+1)
	if pkgRoot != "" {
		candidates = append(candidates, filepath.Join(pkgRoot, ref))
	}
	for _, root := range f.searchPaths {
		candidates = append(candidates, filepath.Join(root, ref))
	}

	for _, c := range candidates {
		if p := existingOr(c, filename); p != "" {
			return p, nil
		}
	}
	return "", fmt.Errorf("pathfinder: could not resolve %q (tried %d locations)", ref, len(candidates))
}

// existingOr returns dir itself if it is already a manifest file named
// filename, or dir/filename if that exists, or "" if neither does. The
// basename check keeps ResolveBlock and ResolveFlow from both matching
// the same bare file path when a package root holds both kinds.
func existingOr(dir, filename string) string {
	if info, err := os.Stat(dir); err == nil && !info.IsDir() && filepath.Base(dir) == filename {
		return dir
	}
	joined := filepath.Join(dir, filename)
	if _, err := os.Stat(joined); err == nil {
		return joined
	}
	return ""
}

// PackageRoot returns the directory a manifest file lives in, used to
// seed the next level of resolution when a subflow or block references
// others relative to itself.
func PackageRoot(manifestPath string) string {
	return filepath.Dir(manifestPath)
}
