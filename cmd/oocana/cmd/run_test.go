package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInjections_EmptyFlagsReturnsNil(t *testing.T) {
	out, err := parseInjections(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestParseInjections_ParsesNameEqualsPathPairs(t *testing.T) {
	out, err := parseInjections([]string{"blockA=/tmp/a.py", "blockB=/tmp/b.py"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/a.py", out["blockA"])
	assert.Equal(t, "/tmp/b.py", out["blockB"])
}

func TestParseInjections_MissingEqualsErrors(t *testing.T) {
	_, err := parseInjections([]string{"no-equals-sign"})
	assert.Error(t, err)
}

func TestOpenCacheBackend_DefaultsToFileBackend(t *testing.T) {
	origKind, origDir := cacheBackendKind, cacheDir
	defer func() { cacheBackendKind, cacheDir = origKind, origDir }()

	cacheBackendKind = ""
	cacheDir = t.TempDir()

	backend, err := openCacheBackend()
	require.NoError(t, err)
	assert.NotNil(t, backend)
}

func TestOpenCacheBackend_UnknownBackendErrors(t *testing.T) {
	origKind := cacheBackendKind
	defer func() { cacheBackendKind = origKind }()

	cacheBackendKind = "carrier-pigeon"
	_, err := openCacheBackend()
	assert.Error(t, err)
}

func TestOpenCacheBackend_RedisWithUnreachableAddrErrors(t *testing.T) {
	origKind, origAddr := cacheBackendKind, redisAddr
	defer func() { cacheBackendKind, redisAddr = origKind, origAddr }()

	cacheBackendKind = "redis"
	redisAddr = "127.0.0.1:1"
	_, err := openCacheBackend()
	assert.Error(t, err)
}
