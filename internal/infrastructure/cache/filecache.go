package cache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/oocana-go/oocana/internal/pkg/uuid"
)

// FileBackend is the local-file Node Input Store cache: a
// cache_meta.json index mapping
// flow identity to a per-flow blob file, named by a fresh uuid the first
// time a flow is cached.
type FileBackend struct {
	dir      string
	metaPath string

	mu sync.Mutex
}

// NewFileBackend roots the cache at dir (created if missing); the CLI
// passes ~/.oocana/cache by default.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileBackend{dir: dir, metaPath: filepath.Join(dir, "cache_meta.json")}, nil
}

func (f *FileBackend) loadMeta() (map[string]string, error) {
	data, err := os.ReadFile(f.metaPath)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	var meta map[string]string
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func (f *FileBackend) saveMeta(meta map[string]string) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.metaPath, data, 0o644)
}

// Save writes a flow's snapshot blob, allocating a fresh uuid-named file
// the first time this flow identity is cached.
func (f *FileBackend) Save(ctx context.Context, flowIdentity string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	meta, err := f.loadMeta()
	if err != nil {
		return err
	}
	path, ok := meta[flowIdentity]
	if !ok {
		path = filepath.Join(f.dir, uuid.New()+".json")
		meta[flowIdentity] = path
		if err := f.saveMeta(meta); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads a flow's previously saved snapshot blob, if any.
func (f *FileBackend) Load(ctx context.Context, flowIdentity string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	meta, err := f.loadMeta()
	if err != nil {
		return nil, false, err
	}
	path, ok := meta[flowIdentity]
	if !ok {
		return nil, false, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Delete removes a flow's cached blob and its meta entry.
func (f *FileBackend) Delete(ctx context.Context, flowIdentity string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	meta, err := f.loadMeta()
	if err != nil {
		return err
	}
	path, ok := meta[flowIdentity]
	if !ok {
		return nil
	}
	delete(meta, flowIdentity)
	if err := f.saveMeta(meta); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Clear removes every blob listed in cache_meta.json and then the meta
// file itself, backing `oocana cache clear`. Other files in the cache
// directory are left in place.
func (f *FileBackend) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	meta, err := f.loadMeta()
	if err != nil {
		return err
	}
	for _, path := range meta {
		_ = os.Remove(path)
	}
	return os.Remove(f.metaPath)
}
