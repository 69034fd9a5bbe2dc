package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheClearCmd_RemovesCacheMeta(t *testing.T) {
	origDir := cacheDir
	defer func() { cacheDir = origDir }()
	cacheDir = t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(cacheDir, "cache_meta.json"), []byte(`{}`), 0o644))

	err := cacheClearCmd.RunE(cacheClearCmd, nil)
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(cacheDir, "cache_meta.json"))
	assert.True(t, os.IsNotExist(statErr))
}
