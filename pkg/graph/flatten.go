package graph

import (
	"context"
	"time"

	"github.com/matzehuels/graphstate/pkg/errors"
	"github.com/matzehuels/graphstate/pkg/node"
	"github.com/matzehuels/graphstate/pkg/observability"
	"github.com/matzehuels/graphstate/pkg/state"
)

type flattenOptions struct {
	refIndex      *RefMap
	refOuterIndex *RefMap
}

// FlattenOption configures [Flatten].
type FlattenOption func(*flattenOptions)

// WithRefIndex makes Flatten register identities in m instead of a fresh
// map. Flatten calls sharing m assign disjoint indices, and an object already
// present in m is emitted as a [NodeRef].
func WithRefIndex(m *RefMap) FlattenOption {
	return func(o *flattenOptions) { o.refIndex = m }
}

// WithRefOuterIndex tags every node found in m with its index there, so a
// later cache-aware unflatten can reuse the live outer object.
func WithRefOuterIndex(m *RefMap) FlattenOption {
	return func(o *flattenOptions) { o.refOuterIndex = m }
}

// Flatten separates the structure of the graph reachable from root from its
// leaf values. Each distinct composite or variable identity is defined once;
// every further occurrence, including cycles back to an ancestor, becomes a
// [NodeRef]. The returned state holds one entry per distinct variable or
// array leaf, keyed by the path that first reached it, and contains the live
// variables themselves.
func Flatten(root any, opts ...FlattenOption) (*GraphDef, state.FlatState, error) {
	return flatten(context.Background(), root, opts...)
}

func flatten(ctx context.Context, root any, opts ...FlattenOption) (*GraphDef, state.FlatState, error) {
	var o flattenOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.refIndex == nil {
		o.refIndex = NewRefMap()
	}

	start := time.Now()
	f := &flattener{refIndex: o.refIndex, outer: o.refOuterIndex, def: &GraphDef{}}
	err := f.root(root)
	def := f.def
	def.Leaves = len(f.flat)
	observability.Graph().OnFlatten(ctx, node.TypeTag(root), len(def.Nodes), def.Leaves, time.Since(start), err)
	if err != nil {
		return nil, nil, err
	}
	return def, f.flat, nil
}

// collectLeaves gathers the state of root exactly as flatten would, without
// building node definitions.
func collectLeaves(root any) (state.FlatState, error) {
	f := &flattener{refIndex: NewRefMap(), leavesOnly: true}
	if err := f.root(root); err != nil {
		return nil, err
	}
	return f.flat, nil
}

type flattener struct {
	refIndex   *RefMap
	outer      *RefMap
	def        *GraphDef
	flat       state.FlatState
	leavesOnly bool
}

func (f *flattener) root(v any) error {
	path := state.Path{}
	switch node.Classify(v) {
	case node.KindStatic:
		f.push(&StaticDef{Value: v})
	case node.KindLeaf:
		f.push(&LeafDef{Slot: f.addLeaf(path, v)})
	default:
		if _, err := f.node(v, path); err != nil {
			return err
		}
	}
	return nil
}

func (f *flattener) push(d NodeDef) int {
	if f.leavesOnly {
		return -1
	}
	f.def.Nodes = append(f.def.Nodes, d)
	return len(f.def.Nodes) - 1
}

func (f *flattener) addLeaf(path state.Path, v any) int {
	f.flat = append(f.flat, state.Entry{Path: path, Value: v})
	return len(f.flat) - 1
}

func (f *flattener) outerIndex(v any) int {
	if i, ok := f.outer.Get(v); ok {
		return i
	}
	return NoOuterIndex
}

// node emits the definition of a variable, composite or pytree and returns
// its position in the node list.
func (f *flattener) node(v any, path state.Path) (int, error) {
	kind := node.Classify(v)
	if kind == node.KindVariable || kind == node.KindGraph {
		if idx, seen := f.refIndex.Get(v); seen {
			return f.push(&NodeRef{Type: node.TypeTag(v), Index: idx, OuterIndex: f.outerIndex(v)}), nil
		}
	}

	switch kind {
	case node.KindVariable:
		vr := v.(node.Variable)
		idx := f.refIndex.Len()
		f.refIndex.Set(v, idx)
		return f.push(&VariableDef{
			Type:       vr.Type(),
			Index:      idx,
			OuterIndex: f.outerIndex(v),
			Slot:       f.addLeaf(path, v),
			Meta:       vr.Metadata(),
		}), nil

	case node.KindGraph:
		impl, _ := node.LookupGraph(v)
		idx := f.refIndex.Len()
		f.refIndex.Set(v, idx)
		d := &CompositeDef{Type: impl.Tag, Index: idx, OuterIndex: f.outerIndex(v)}
		pos := f.push(d)
		for _, c := range impl.Children(v) {
			a, err := f.attr(c, path)
			if err != nil {
				return 0, err
			}
			d.Attrs = append(d.Attrs, a)
		}
		return pos, nil

	case node.KindPytree:
		impl, _ := node.LookupPytree(v)
		children, aux, err := impl.Decompose(v)
		if err != nil {
			return 0, errors.Wrap(errors.ErrCodeRecompose, err, "decompose %s at %s", impl.Tag, path)
		}
		d := &PytreeDef{Type: impl.Tag, Aux: aux}
		pos := f.push(d)
		for _, c := range children {
			a, err := f.attr(c, path)
			if err != nil {
				return 0, err
			}
			d.Attrs = append(d.Attrs, a)
		}
		return pos, nil
	}
	return 0, errors.New(errors.ErrCodeInternal, "value of kind %s at %s is not a node", kind, path)
}

func (f *flattener) attr(c node.Field, parent state.Path) (Attr, error) {
	path := parent.Append(c.Key)
	switch node.Classify(c.Value) {
	case node.KindStatic:
		return Attr{Key: c.Key, Kind: AttrStatic, Value: c.Value}, nil
	case node.KindLeaf:
		return Attr{Key: c.Key, Kind: AttrLeaf, Slot: f.addLeaf(path, c.Value)}, nil
	default:
		pos, err := f.node(c.Value, path)
		if err != nil {
			return Attr{}, err
		}
		return Attr{Key: c.Key, Kind: AttrNode, Node: pos}, nil
	}
}
