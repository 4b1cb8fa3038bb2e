package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/graphstate/pkg/graph"
)

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed includes static attributes, variable metadata and outer
	// indices in node labels. When false, only type and index are shown.
	Detailed bool
}

// ToDOT converts a graph definition to Graphviz DOT format.
// The resulting DOT string can be rendered using [RenderSVG].
//
// Composites are rounded boxes, variables are filled ellipses and opaque
// values are dashed boxes. Back references, including cycles, are drawn as
// dashed edges to the node they refer to. References to nodes defined by an
// earlier call of a shared split context get a dotted placeholder node.
func ToDOT(def *graph.GraphDef, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	if def == nil || len(def.Nodes) == 0 {
		buf.WriteString("}\n")
		return buf.String()
	}

	d := &dotWriter{buf: &buf, def: def, opts: opts, defined: definedAt(def)}
	d.nodes()
	buf.WriteString("\n")
	d.edges()
	buf.WriteString("}\n")
	return buf.String()
}

// definedAt maps identity indices to the position of their definition.
func definedAt(def *graph.GraphDef) map[int]int {
	out := make(map[int]int)
	for pos, n := range def.Nodes {
		switch d := n.(type) {
		case *graph.CompositeDef:
			out[d.Index] = pos
		case *graph.VariableDef:
			out[d.Index] = pos
		}
	}
	return out
}

type dotWriter struct {
	buf     *bytes.Buffer
	def     *graph.GraphDef
	opts    Options
	defined map[int]int
}

func nodeID(pos int) string { return "n" + strconv.Itoa(pos) }

func leafID(pos, slot int) string { return fmt.Sprintf("n%d_leaf%d", pos, slot) }

func externalID(index int) string { return "ext" + strconv.Itoa(index) }

func (d *dotWriter) node(id, label string, attrs ...string) {
	attrs = append([]string{fmt.Sprintf("label=%q", label)}, attrs...)
	fmt.Fprintf(d.buf, "  %q [%s];\n", id, strings.Join(attrs, ", "))
}

func (d *dotWriter) nodes() {
	external := make(map[int]bool)
	for pos, n := range d.def.Nodes {
		switch n := n.(type) {
		case *graph.CompositeDef:
			d.node(nodeID(pos), d.compositeLabel(n))
			d.leaves(pos, n.Attrs)
		case *graph.VariableDef:
			d.node(nodeID(pos), d.variableLabel(n), "shape=ellipse", "fillcolor=lightyellow")
		case *graph.PytreeDef:
			d.node(nodeID(pos), d.pytreeLabel(n), "style=\"rounded,dashed\"")
			d.leaves(pos, n.Attrs)
		case *graph.LeafDef:
			d.node(nodeID(pos), fmt.Sprintf("leaf[%d]", n.Slot), "shape=note", "fillcolor=lightblue")
		case *graph.StaticDef:
			d.node(nodeID(pos), fmt.Sprintf("%v", n.Value), "shape=plaintext")
		case *graph.NodeRef:
			if _, ok := d.defined[n.Index]; !ok && !external[n.Index] {
				external[n.Index] = true
				d.node(externalID(n.Index), fmt.Sprintf("%s #%d", n.Type, n.Index),
					"style=\"rounded,dotted\"", "fontcolor=grey40")
			}
			if pos == 0 {
				d.node(nodeID(pos), "ref", "shape=point")
			}
		}
	}
}

// leaves emits one small node per array leaf attribute.
func (d *dotWriter) leaves(pos int, attrs []graph.Attr) {
	for _, a := range attrs {
		if a.Kind == graph.AttrLeaf {
			d.node(leafID(pos, a.Slot), fmt.Sprintf("leaf[%d]", a.Slot), "shape=note", "fillcolor=lightblue", "fontsize=10")
		}
	}
}

func (d *dotWriter) compositeLabel(n *graph.CompositeDef) string {
	label := fmt.Sprintf("%s #%d", n.Type, n.Index)
	if !d.opts.Detailed {
		return label
	}
	parts := []string{label + outer(n.OuterIndex)}
	for _, a := range n.Attrs {
		if a.Kind == graph.AttrStatic {
			parts = append(parts, fmt.Sprintf("%v: %v", a.Key, a.Value))
		}
	}
	return strings.Join(parts, "\n")
}

func (d *dotWriter) variableLabel(n *graph.VariableDef) string {
	label := fmt.Sprintf("%s #%d\nleaf[%d]", n.Type, n.Index, n.Slot)
	if !d.opts.Detailed {
		return label
	}
	parts := []string{label + outer(n.OuterIndex)}
	for _, k := range slices.Sorted(maps.Keys(n.Meta)) {
		parts = append(parts, fmt.Sprintf("%s: %v", k, n.Meta[k]))
	}
	return strings.Join(parts, "\n")
}

func (d *dotWriter) pytreeLabel(n *graph.PytreeDef) string {
	if !d.opts.Detailed {
		return n.Type
	}
	parts := []string{n.Type}
	for _, a := range n.Attrs {
		if a.Kind == graph.AttrStatic {
			parts = append(parts, fmt.Sprintf("%v: %v", a.Key, a.Value))
		}
	}
	return strings.Join(parts, "\n")
}

func outer(i int) string {
	if i == graph.NoOuterIndex {
		return ""
	}
	return fmt.Sprintf(" (outer #%d)", i)
}

func (d *dotWriter) edges() {
	for pos, n := range d.def.Nodes {
		var attrs []graph.Attr
		switch n := n.(type) {
		case *graph.CompositeDef:
			attrs = n.Attrs
		case *graph.PytreeDef:
			attrs = n.Attrs
		case *graph.NodeRef:
			if pos == 0 {
				d.edge(nodeID(pos), d.target(n), "", true)
			}
		}
		for _, a := range attrs {
			label := fmt.Sprintf("%v", a.Key)
			switch a.Kind {
			case graph.AttrLeaf:
				d.edge(nodeID(pos), leafID(pos, a.Slot), label, false)
			case graph.AttrNode:
				if ref, ok := d.def.Nodes[a.Node].(*graph.NodeRef); ok {
					d.edge(nodeID(pos), d.target(ref), label, true)
				} else {
					d.edge(nodeID(pos), nodeID(a.Node), label, false)
				}
			}
		}
	}
}

// target returns the node a back reference points to.
func (d *dotWriter) target(ref *graph.NodeRef) string {
	if pos, ok := d.defined[ref.Index]; ok {
		return nodeID(pos)
	}
	return externalID(ref.Index)
}

func (d *dotWriter) edge(from, to, label string, ref bool) {
	var attrs []string
	if label != "" {
		attrs = append(attrs, fmt.Sprintf("label=%q", label))
	}
	if ref {
		attrs = append(attrs, "style=dashed", "color=grey40", "constraint=false")
	}
	if len(attrs) == 0 {
		fmt.Fprintf(d.buf, "  %q -> %q;\n", from, to)
		return
	}
	fmt.Fprintf(d.buf, "  %q -> %q [%s];\n", from, to, strings.Join(attrs, ", "))
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
