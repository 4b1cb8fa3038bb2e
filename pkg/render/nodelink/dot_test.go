package nodelink

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/graphstate/pkg/graph"
	"github.com/matzehuels/graphstate/pkg/node"
)

func sampleDef(t *testing.T) *graph.GraphDef {
	t.Helper()
	w := node.NewVar(node.TagParam, []float64{1}, map[string]any{"axis": 0})
	root := node.NewObject().
		Set("w", w).
		Set("name", "model").
		Set("bias", []float64{0}).
		Set("shared", node.NewList(w))
	root.Set("self", root)

	def, _, err := graph.Flatten(root)
	require.NoError(t, err)
	return def
}

func TestToDOT(t *testing.T) {
	dot := ToDOT(sampleDef(t), Options{})

	assert.True(t, strings.HasPrefix(dot, "digraph G {"))
	assert.Contains(t, dot, `"n0" [label="object #0"]`)
	assert.Contains(t, dot, `label="param #1\nleaf[0]", shape=ellipse`)
	assert.Contains(t, dot, `"n0" -> "n1" [label="w"]`)
	assert.Contains(t, dot, `"n0" -> "n0_leaf1" [label="bias"]`)
	assert.Contains(t, dot, `"n0" -> "n0" [label="self", style=dashed`, "cycle to the root")
	assert.NotContains(t, dot, "name: model")
}

func TestToDOTDetailed(t *testing.T) {
	dot := ToDOT(sampleDef(t), Options{Detailed: true})

	assert.Contains(t, dot, `name: model`)
	assert.Contains(t, dot, `axis: 0`)
}

func TestToDOTExternalReference(t *testing.T) {
	m := node.NewObject().Set("w", node.NewParam(1))
	holder := node.NewObject().Set("m", m)

	sc, err := graph.NewSplitContext(context.Background(), "")
	require.NoError(t, err)
	_, _, err = sc.Split(m)
	require.NoError(t, err)
	def, _, err := sc.Split(holder)
	require.NoError(t, err)
	require.NoError(t, sc.Close())

	dot := ToDOT(def, Options{})
	assert.Contains(t, dot, `"ext0" [label="object #0"`)
	assert.Contains(t, dot, `-> "ext0" [label="m", style=dashed`)
}

func TestToDOTEmpty(t *testing.T) {
	assert.Equal(t, "digraph G {", strings.SplitN(ToDOT(nil, Options{}), "\n", 2)[0])
}

func TestRenderSVG(t *testing.T) {
	svg, err := RenderSVG(context.Background(), ToDOT(sampleDef(t), Options{}))
	require.NoError(t, err)
	assert.Contains(t, string(svg), "<svg")
	assert.Contains(t, string(svg), `viewBox="0 0 `)
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="10pt" height="20pt" viewBox="0.00 0.00 10.00 20.00"><g/></svg>`)
	out := string(normalizeViewBox(in))
	assert.Contains(t, out, `viewBox="0 0 10.00 20.00" width="10" height="20"`)

	assert.Equal(t, "<svg/>", string(normalizeViewBox([]byte("<svg/>"))))
}
