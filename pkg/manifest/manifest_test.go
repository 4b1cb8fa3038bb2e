package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/graphstate/pkg/errors"
	"github.com/matzehuels/graphstate/pkg/node"
)

const mlp = `
root = "model"

[nodes.model]
type = "object"
[nodes.model.attrs]
name    = "mlp"
encoder = "@enc"
decoder = "@enc"
layers  = "@layers"
self    = "@model"
email   = "@@home"
extra   = { lr = 0.1, w = "@w" }

[nodes.enc]
type = "object"
[nodes.enc.attrs]
kernel = "@w"
bias   = [0.0, 0.5]
steps  = [1, 2, 3]
mask   = [true, false]

[nodes.layers]
type  = "list"
items = ["@enc", 3, "@stats"]

[vars.w]
type  = "param"
value = [1.0, 2.0]
meta  = { axis = 0 }

[vars.stats]
type  = "batch_stat"
value = 0.5
`

func TestParseAndBuild(t *testing.T) {
	m, err := Parse([]byte(mlp))
	require.NoError(t, err)
	assert.Equal(t, "model", m.Root)
	assert.Len(t, m.Nodes, 3)
	assert.Len(t, m.Vars, 2)

	g, err := m.Build()
	require.NoError(t, err)

	model, ok := g.Root.(*node.Object)
	require.True(t, ok)
	assert.Equal(t, []string{"name", "encoder", "decoder", "layers", "self", "email", "extra"}, model.Keys())
	assert.Equal(t, "mlp", model.Get("name"))
	assert.Equal(t, "@home", model.Get("email"))
	assert.Same(t, model.Get("encoder"), model.Get("decoder"))
	assert.Same(t, model, model.Get("self"))

	enc := model.Get("encoder").(*node.Object)
	assert.Equal(t, []float64{0, 0.5}, enc.Get("bias"))
	assert.Equal(t, []int{1, 2, 3}, enc.Get("steps"))
	assert.Equal(t, []bool{true, false}, enc.Get("mask"))

	w := enc.Get("kernel").(node.Variable)
	assert.Same(t, g.Named["w"], w)
	assert.Equal(t, node.TagParam, w.Type())
	assert.Equal(t, []float64{1, 2}, w.Value())
	assert.Equal(t, map[string]any{"axis": 0}, w.Metadata())

	layers := model.Get("layers").(*node.List)
	require.Equal(t, 3, layers.Len())
	assert.Same(t, enc, layers.Get(0))
	assert.Equal(t, 3, layers.Get(1))
	assert.Equal(t, node.TagBatchStat, layers.Get(2).(node.Variable).Type())

	extra := model.Get("extra").(map[string]any)
	assert.Equal(t, 0.1, extra["lr"])
	assert.Same(t, w, extra["w"])
}

func TestVariableRoot(t *testing.T) {
	g, err := Parse([]byte(`
root = "v"
[vars.v]
value = 3
`))
	require.NoError(t, err)
	built, err := g.Build()
	require.NoError(t, err)

	v := built.Root.(node.Variable)
	assert.Equal(t, node.TagVariable, v.Type())
	assert.Equal(t, 3, v.Value())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		code errors.Code
	}{
		{"syntax", `root = `, errors.ErrCodeInvalidFile},
		{"no root", `[nodes.a]
type = "object"`, errors.ErrCodeInvalidInput},
		{"undefined root", `root = "x"`, errors.ErrCodeInvalidInput},
		{"unknown type", `root = "a"
[nodes.a]
type = "nope"`, errors.ErrCodeInvalidInput},
		{"unknown key", `root = "a"
colour = "red"
[nodes.a]
type = "object"`, errors.ErrCodeInvalidInput},
		{"duplicate name", `root = "a"
[nodes.a]
type = "object"
[vars.a]
value = 1`, errors.ErrCodeInvalidInput},
		{"items and attrs", `root = "a"
[nodes.a]
type = "list"
items = [1]
attrs = { x = 1 }`, errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))
		})
	}
}

func TestBuildUnknownReference(t *testing.T) {
	m, err := Parse([]byte(`
root = "a"
[nodes.a]
type = "object"
attrs = { child = "@missing" }
`))
	require.NoError(t, err)
	_, err = m.Build()
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestBuildBadKey(t *testing.T) {
	m, err := Parse([]byte(`
root = "a"
[nodes.a]
type = "dict"
items = [1]
`))
	require.NoError(t, err)
	_, err = m.Build()
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput), "dict keys must be strings")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.toml")
	require.NoError(t, os.WriteFile(path, []byte(mlp), 0o644))

	g, err := Load(path)
	require.NoError(t, err)
	assert.IsType(t, &node.Object{}, g.Root)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.True(t, errors.Is(err, errors.ErrCodeFileNotFound))

	_, err = Load("")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidFile))
}
