package graph

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/matzehuels/graphstate/pkg/errors"
	"github.com/matzehuels/graphstate/pkg/node"
)

func sampleModel() *foo {
	kernel := node.NewVar(node.TagParam, []float64{1, 2}, map[string]any{"axis": 0, "name": "kernel"})
	m := &foo{
		A: kernel,
		B: map[string]any{
			"layers": node.NewList(kernel, 1.5, nil),
			"mode":   "train",
			"bias":   []float64{0},
		},
	}
	m.Ref = m
	return m
}

func TestMarshalRoundTrip(t *testing.T) {
	m := sampleModel()
	def, parts, err := Split(m)
	require.NoError(t, err)

	b, err := Marshal(def)
	require.NoError(t, err)
	got, err := UnmarshalGraphDef(b)
	require.NoError(t, err)

	assert.True(t, def.Equal(got), "want:\n%s\ngot:\n%s", def, got)
	assert.Equal(t, def.Hash(), got.Hash())
	assert.Equal(t, def.LeafPaths(), got.LeafPaths())

	merged, err := MergeAs[*foo](got, parts[0])
	require.NoError(t, err)
	assert.Same(t, merged, merged.Ref)
	kernel := merged.A.(node.Variable)
	assert.Equal(t, []float64{1, 2}, kernel.Value())
	assert.Equal(t, map[string]any{"axis": 0, "name": "kernel"}, kernel.Metadata())
	layers := merged.B.(map[string]any)["layers"].(*node.List)
	assert.Same(t, kernel, layers.Get(0))
	assert.Equal(t, 1.5, layers.Get(1))
}

func TestMarshalIsDeterministic(t *testing.T) {
	def, _, err := Flatten(sampleModel())
	require.NoError(t, err)

	b1, err := Marshal(def)
	require.NoError(t, err)
	b2, err := Marshal(def)
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
}

func TestUnmarshalErrors(t *testing.T) {
	_, err := UnmarshalGraphDef([]byte("not msgpack"))
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	b, err := msgpack.Marshal(&wireDef{Version: wireVersion + 1})
	require.NoError(t, err)
	_, err = UnmarshalGraphDef(b)
	assert.ErrorIs(t, err, ErrUnsupported)

	b, err = msgpack.Marshal(&wireDef{Version: wireVersion, Nodes: []wireNode{{Kind: "?"}}})
	require.NoError(t, err)
	_, err = UnmarshalGraphDef(b)
	assert.ErrorIs(t, err, ErrStructureMismatch)

	// a cycle through attribute positions must be rejected, not followed
	b, err = msgpack.Marshal(&wireDef{Version: wireVersion, Nodes: []wireNode{
		{Kind: "c", Type: "list", Attrs: []wireAttr{{Key: 0, Kind: AttrNode, Node: 0}}},
	}})
	require.NoError(t, err)
	_, err = UnmarshalGraphDef(b)
	assert.ErrorIs(t, err, ErrStructureMismatch)

	_, err = Marshal(nil)
	assert.Error(t, err)
}

func TestWriteReadFile(t *testing.T) {
	def, _, err := Flatten(sampleModel())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.graphdef")
	require.NoError(t, WriteFile(def, path))
	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.True(t, def.Equal(got))

	var buf bytes.Buffer
	require.NoError(t, Write(def, &buf))
	got, err = Read(&buf)
	require.NoError(t, err)
	assert.True(t, def.Equal(got))

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing"))
	assert.True(t, errors.Is(err, errors.ErrCodeFileNotFound))
}
