package graph

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/matzehuels/graphstate/pkg/state"
)

// NoOuterIndex marks a node that was not known to an outer scope.
const NoOuterIndex = -1

// =============================================================================
// Node Definitions
// =============================================================================

// NodeDef is one entry of a [GraphDef]. It is implemented by [*CompositeDef],
// [*NodeRef], [*VariableDef], [*PytreeDef], [*LeafDef] and [*StaticDef].
type NodeDef interface {
	nodeDef()
}

// CompositeDef describes the first occurrence of a composite node.
type CompositeDef struct {
	Type string
	// Index is the identity index the node was assigned during flatten.
	Index int
	// OuterIndex is the node's index in an outer scope, or NoOuterIndex.
	OuterIndex int
	Attrs      []Attr
}

// NodeRef is a back reference to a composite or variable already defined
// under Index, possibly an ancestor or a node from an earlier call that
// shared the same identity map.
type NodeRef struct {
	Type       string
	Index      int
	OuterIndex int
}

// VariableDef describes the first occurrence of a variable. Its value lives
// in state slot Slot.
type VariableDef struct {
	Type       string
	Index      int
	OuterIndex int
	Slot       int
	Meta       map[string]any
}

// PytreeDef describes an opaque value rebuilt from Attrs and Aux.
type PytreeDef struct {
	Type  string
	Aux   any
	Attrs []Attr
}

// LeafDef describes a root that is a plain array leaf.
type LeafDef struct {
	Slot int
}

// StaticDef describes a root that is a static value.
type StaticDef struct {
	Value any
}

func (*CompositeDef) nodeDef() {}
func (*NodeRef) nodeDef()      {}
func (*VariableDef) nodeDef()  {}
func (*PytreeDef) nodeDef()    {}
func (*LeafDef) nodeDef()      {}
func (*StaticDef) nodeDef()    {}

// AttrKind says how an attribute's value is stored.
type AttrKind uint8

const (
	// AttrNode children are node definitions at position Node.
	AttrNode AttrKind = iota
	// AttrLeaf children are array leaves stored in state slot Slot.
	AttrLeaf
	// AttrStatic children are stored verbatim in Value.
	AttrStatic
)

func (k AttrKind) String() string {
	switch k {
	case AttrNode:
		return "node"
	case AttrLeaf:
		return "leaf"
	case AttrStatic:
		return "static"
	default:
		return "unknown"
	}
}

// Attr is one (key, child) pair of a composite or opaque node.
type Attr struct {
	Key   state.Key
	Kind  AttrKind
	Node  int
	Slot  int
	Value any
}

// =============================================================================
// GraphDef
// =============================================================================

// GraphDef is the structure of an object graph without its leaf values.
// Nodes are listed in pre-order; the root is always Nodes[0].
type GraphDef struct {
	Nodes []NodeDef
	// Leaves is the number of state slots the definition expects.
	Leaves int
}

// Root returns the root node definition.
func (g *GraphDef) Root() NodeDef {
	if g == nil || len(g.Nodes) == 0 {
		return nil
	}
	return g.Nodes[0]
}

// RootType returns the type tag of the root, "leaf" or "static" for non-node roots.
func (g *GraphDef) RootType() string {
	switch d := g.Root().(type) {
	case *CompositeDef:
		return d.Type
	case *NodeRef:
		return d.Type
	case *VariableDef:
		return d.Type
	case *PytreeDef:
		return d.Type
	case *LeafDef:
		return "leaf"
	default:
		return "static"
	}
}

// LeafPaths returns, for every state slot, the path the slot is stored under.
func (g *GraphDef) LeafPaths() []state.Path {
	paths := make([]state.Path, g.Leaves)
	if len(g.Nodes) == 0 {
		return paths
	}
	var walk func(pos int, path state.Path)
	attrs := func(as []Attr, path state.Path) {
		for _, a := range as {
			switch a.Kind {
			case AttrNode:
				walk(a.Node, path.Append(a.Key))
			case AttrLeaf:
				paths[a.Slot] = path.Append(a.Key)
			}
		}
	}
	walk = func(pos int, path state.Path) {
		switch d := g.Nodes[pos].(type) {
		case *CompositeDef:
			attrs(d.Attrs, path)
		case *PytreeDef:
			attrs(d.Attrs, path)
		case *VariableDef:
			paths[d.Slot] = path
		case *LeafDef:
			paths[d.Slot] = path
		}
	}
	walk(0, state.Path{})
	return paths
}

// Validate checks that g is well formed: every attribute points forward to
// an existing node, and every slot is in range and used once. Definitions
// built by Flatten are always valid; decoded ones may not be.
func (g *GraphDef) Validate() error {
	if g == nil || len(g.Nodes) == 0 {
		return mismatch("empty graph definition")
	}
	used := make([]bool, g.Leaves)
	slot := func(s int) error {
		if s < 0 || s >= g.Leaves {
			return mismatch("leaf slot %d out of range [0, %d)", s, g.Leaves)
		}
		if used[s] {
			return mismatch("leaf slot %d used twice", s)
		}
		used[s] = true
		return nil
	}
	targeted := make([]bool, len(g.Nodes))
	attrs := func(pos int, as []Attr) error {
		for _, a := range as {
			switch a.Kind {
			case AttrNode:
				if a.Node <= pos || a.Node >= len(g.Nodes) {
					return mismatch("node %d: attribute %v points to node %d", pos, a.Key, a.Node)
				}
				// Shared nodes are written once and referenced through NodeRef.
				if targeted[a.Node] {
					return mismatch("node %d: attribute %v points to node %d, already in use", pos, a.Key, a.Node)
				}
				targeted[a.Node] = true
			case AttrLeaf:
				if err := slot(a.Slot); err != nil {
					return err
				}
			}
		}
		return nil
	}
	for pos, n := range g.Nodes {
		var err error
		switch d := n.(type) {
		case *CompositeDef:
			err = attrs(pos, d.Attrs)
		case *PytreeDef:
			err = attrs(pos, d.Attrs)
		case *VariableDef:
			err = slot(d.Slot)
		case *LeafDef:
			err = slot(d.Slot)
		case *NodeRef, *StaticDef:
		default:
			err = mismatch("node %d: unknown definition %T", pos, n)
		}
		if err != nil {
			return err
		}
	}
	for s, ok := range used {
		if !ok {
			return mismatch("leaf slot %d is never used", s)
		}
	}
	return nil
}

// Equal reports whether two definitions describe the same structure,
// including identity and outer indices.
func (g *GraphDef) Equal(o *GraphDef) bool {
	if g == nil || o == nil {
		return g == o
	}
	var a, b bytes.Buffer
	g.canonical(&a)
	o.canonical(&b)
	return bytes.Equal(a.Bytes(), b.Bytes())
}

// Hash returns a 64-bit digest of the definition. Equal definitions hash equal.
func (g *GraphDef) Hash() uint64 {
	d := xxhash.New()
	g.canonical(d)
	return d.Sum64()
}

// canonical writes an unambiguous token stream describing g.
func (g *GraphDef) canonical(w io.Writer) {
	t := tokenWriter{w: w}
	t.int(g.Leaves)
	t.int(len(g.Nodes))
	for _, n := range g.Nodes {
		switch d := n.(type) {
		case *CompositeDef:
			t.str("C")
			t.str(d.Type)
			t.int(d.Index)
			t.int(d.OuterIndex)
			t.attrs(d.Attrs)
		case *NodeRef:
			t.str("R")
			t.str(d.Type)
			t.int(d.Index)
			t.int(d.OuterIndex)
		case *VariableDef:
			t.str("V")
			t.str(d.Type)
			t.int(d.Index)
			t.int(d.OuterIndex)
			t.int(d.Slot)
			t.meta(d.Meta)
		case *PytreeDef:
			t.str("P")
			t.str(d.Type)
			t.value(d.Aux)
			t.attrs(d.Attrs)
		case *LeafDef:
			t.str("L")
			t.int(d.Slot)
		case *StaticDef:
			t.str("S")
			t.value(d.Value)
		}
	}
}

type tokenWriter struct {
	w io.Writer
}

func (t tokenWriter) str(s string) {
	io.WriteString(t.w, strconv.Itoa(len(s)))
	io.WriteString(t.w, ":")
	io.WriteString(t.w, s)
}

func (t tokenWriter) int(i int) {
	t.str(strconv.Itoa(i))
}

func (t tokenWriter) uint(u uint64) {
	t.str(strconv.FormatUint(u, 10))
}

func (t tokenWriter) key(k state.Key) {
	t.str(state.Path{k}.Key())
}

func (t tokenWriter) value(v any) {
	t.str(fmt.Sprintf("%T:%v", v, v))
}

func (t tokenWriter) meta(m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	t.int(len(keys))
	for _, k := range keys {
		t.str(k)
		t.value(m[k])
	}
}

func (t tokenWriter) attrs(as []Attr) {
	t.int(len(as))
	for _, a := range as {
		t.key(a.Key)
		t.int(int(a.Kind))
		switch a.Kind {
		case AttrNode:
			t.int(a.Node)
		case AttrLeaf:
			t.int(a.Slot)
		case AttrStatic:
			t.value(a.Value)
		}
	}
}

// String renders the definition as an indented tree.
func (g *GraphDef) String() string {
	if g == nil || len(g.Nodes) == 0 {
		return "GraphDef{}"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "GraphDef(nodes=%d, leaves=%d)\n", len(g.Nodes), g.Leaves)
	g.writeNode(&b, 0, "", 1)
	return b.String()
}

func (g *GraphDef) writeNode(b *strings.Builder, pos int, label string, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(b, "%s%s%s\n", indent, label, describe(g.Nodes[pos]))
	var as []Attr
	switch d := g.Nodes[pos].(type) {
	case *CompositeDef:
		as = d.Attrs
	case *PytreeDef:
		as = d.Attrs
	}
	for _, a := range as {
		l := fmt.Sprintf("%v: ", a.Key)
		switch a.Kind {
		case AttrNode:
			g.writeNode(b, a.Node, l, depth+1)
		case AttrLeaf:
			fmt.Fprintf(b, "%s  %sleaf[%d]\n", indent, l, a.Slot)
		case AttrStatic:
			fmt.Fprintf(b, "%s  %s%#v\n", indent, l, a.Value)
		}
	}
}

func describe(n NodeDef) string {
	switch d := n.(type) {
	case *CompositeDef:
		return fmt.Sprintf("%s#%d%s", d.Type, d.Index, outerSuffix(d.OuterIndex))
	case *NodeRef:
		return fmt.Sprintf("ref %s#%d%s", d.Type, d.Index, outerSuffix(d.OuterIndex))
	case *VariableDef:
		return fmt.Sprintf("%s#%d%s leaf[%d]", d.Type, d.Index, outerSuffix(d.OuterIndex), d.Slot)
	case *PytreeDef:
		return fmt.Sprintf("pytree %s", d.Type)
	case *LeafDef:
		return fmt.Sprintf("leaf[%d]", d.Slot)
	case *StaticDef:
		return fmt.Sprintf("static %#v", d.Value)
	}
	return "?"
}

func outerSuffix(i int) string {
	if i == NoOuterIndex {
		return ""
	}
	return fmt.Sprintf(" (outer #%d)", i)
}
