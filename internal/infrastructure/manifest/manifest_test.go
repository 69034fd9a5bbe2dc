package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oocana-go/oocana/internal/domain/flow"
)

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "flow.oo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadFlow_DecodesNodesAndEdges(t *testing.T) {
	path := writeYAML(t, `
name: demo
nodes:
  - node_id: a
    kind: task
    block: blocks/a
    from:
      - input: x
        literal: 1
`)
	m, err := ReadFlow(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", m.Name)
	require.Len(t, m.Nodes, 1)
	assert.Equal(t, "a", m.Nodes[0].NodeID)
	assert.Equal(t, "blocks/a", m.Nodes[0].BlockRef)
	require.Len(t, m.Nodes[0].From, 1)
	assert.Equal(t, "x", m.Nodes[0].From[0].Input)
}

func TestReadFlow_MissingFileErrors(t *testing.T) {
	_, err := ReadFlow(filepath.Join(t.TempDir(), "nope.oo.yaml"))
	assert.Error(t, err)
}

func TestEdgeFromManifest_LiteralTriState(t *testing.T) {
	path := writeYAML(t, `
name: demo
nodes:
  - node_id: a
    kind: value
    from:
      - input: no_literal_key
      - input: explicit_null
        literal: null
      - input: has_value
        literal: 5
`)
	m, err := ReadFlow(path)
	require.NoError(t, err)
	froms := m.Nodes[0].From

	assert.Nil(t, froms[0].Literal, "no literal key at all decodes to a nil pointer")

	require.NotNil(t, froms[1].Literal, "literal: null decodes to a non-nil pointer to a nil interface")
	assert.Nil(t, *froms[1].Literal)

	require.NotNil(t, froms[2].Literal)
	assert.EqualValues(t, 5, *froms[2].Literal)
}

func TestToInputHandle_TriState(t *testing.T) {
	noDefault := HandleManifest{Name: "a"}
	h := ToInputHandle(noDefault)
	assert.True(t, h.Default.IsUnset())

	var nullPtr interface{}
	explicitNull := HandleManifest{Name: "b", Default: &nullPtr}
	h = ToInputHandle(explicitNull)
	assert.True(t, h.Default.IsExplicitNull())

	var val interface{} = "hello"
	present := HandleManifest{Name: "c", Default: &val}
	h = ToInputHandle(present)
	require.True(t, h.Default.IsPresent())
	v, ok := h.Default.Value()
	assert.True(t, ok)
	assert.Equal(t, "hello", v)
}

func TestToBlockKind(t *testing.T) {
	k, err := ToBlockKind("task")
	require.NoError(t, err)
	assert.Equal(t, flow.TaskBlockKind, k)

	_, err = ToBlockKind("nonsense")
	assert.Error(t, err)
}
