package graph

import (
	"context"
	"reflect"

	"github.com/matzehuels/graphstate/pkg/errors"
	"github.com/matzehuels/graphstate/pkg/node"
	"github.com/matzehuels/graphstate/pkg/state"
)

// NodeStates is the split form of one graph node found inside a plain tree.
type NodeStates struct {
	GraphDef *GraphDef
	States   []*state.State
	// Prefix is the prefix value the node was reached under.
	Prefix any
}

// Flattened returns the states as flatteners, ready for [Merge].
func (n NodeStates) Flattened() []state.Flattener {
	out := make([]state.Flattener, len(n.States))
	for i, s := range n.States {
		out[i] = s
	}
	return out
}

// SplitFunc splits one node of a tree. path is the node's position in the
// tree and prefix the prefix value it was reached under.
type SplitFunc func(sc *SplitContext, path state.Path, prefix any, x any) (NodeStates, error)

// DefaultSplit splits x with no filters.
func DefaultSplit(sc *SplitContext, _ state.Path, prefix any, x any) (NodeStates, error) {
	def, states, err := sc.Split(x)
	if err != nil {
		return NodeStates{}, err
	}
	return NodeStates{GraphDef: def, States: states, Prefix: prefix}, nil
}

// ToTreeOptions configures [ToTree].
type ToTreeOptions struct {
	// Tag joins the split context to an update context. Empty for none.
	Tag string
	// Prefix is a tree prefix of the input. Where it has the same opaque
	// type as the tree it is matched child by child; anywhere else its value
	// applies to the whole subtree.
	Prefix any
	// SplitFn splits each node. Defaults to DefaultSplit.
	SplitFn SplitFunc
}

// ToTree replaces every graph node and variable inside a plain tree of
// slices, maps and registered opaque values with its [NodeStates]. All nodes
// share one split context, so nodes aliased across the tree stay aliased. A
// node reached under two different prefixes is an aliasing error.
func ToTree(ctx context.Context, tree any, opts ToTreeOptions) (any, error) {
	if opts.SplitFn == nil {
		opts.SplitFn = DefaultSplit
	}
	var out any
	err := WithSplitContext(ctx, opts.Tag, func(sc *SplitContext) error {
		t := &treeSplitter{sc: sc, fn: opts.SplitFn, prefixes: NewRefMap()}
		var err error
		out, err = t.walk(tree, opts.Prefix, state.Path{})
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type treeSplitter struct {
	sc       *SplitContext
	fn       SplitFunc
	prefixes *RefMap
	seen     []any
}

func (t *treeSplitter) walk(x, prefix any, path state.Path) (any, error) {
	switch node.Classify(x) {
	case node.KindGraph, node.KindVariable:
		if i, ok := t.prefixes.Get(x); ok {
			if !reflect.DeepEqual(t.seen[i], prefix) {
				return nil, errors.New(errors.ErrCodeInconsistentAliasing,
					"node %s at %s reached with prefix %v, previously %v", node.TypeTag(x), path, prefix, t.seen[i])
			}
		} else {
			t.prefixes.Set(x, len(t.seen))
			t.seen = append(t.seen, prefix)
		}
		return t.fn(t.sc, path, prefix, x)

	case node.KindPytree:
		impl, _ := node.LookupPytree(x)
		children, aux, err := impl.Decompose(x)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeRecompose, err, "decompose %s at %s", impl.Tag, path)
		}
		prefixOf, err := matchPrefix(impl, prefix, path)
		if err != nil {
			return nil, err
		}
		for i, c := range children {
			v, err := t.walk(c.Value, prefixOf(c.Key), path.Append(c.Key))
			if err != nil {
				return nil, err
			}
			children[i].Value = v
		}
		v, err := impl.Recompose(aux, children)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeRecompose, err, "recompose %s at %s", impl.Tag, path)
		}
		return v, nil
	}
	return x, nil
}

// matchPrefix returns the prefix of each child of an opaque value. A prefix
// of the same opaque type is matched by key; any other prefix is broadcast.
func matchPrefix(impl *node.PytreeImpl, prefix any, path state.Path) (func(state.Key) any, error) {
	pimpl, ok := node.LookupPytree(prefix)
	if !ok || pimpl.Tag != impl.Tag {
		return func(state.Key) any { return prefix }, nil
	}
	fields, _, err := pimpl.Decompose(prefix)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRecompose, err, "decompose prefix at %s", path)
	}
	byKey := make(map[string]any, len(fields))
	for _, f := range fields {
		byKey[state.Path{f.Key}.Key()] = f.Value
	}
	return func(k state.Key) any { return byKey[state.Path{k}.Key()] }, nil
}

// FromTree is the inverse of [ToTree]: every [NodeStates] inside tree is
// merged back into a node, all through one shared merge context.
func FromTree(ctx context.Context, tree any, tag string, inner bool) (any, error) {
	var out any
	err := WithMergeContext(ctx, tag, inner, func(mc *MergeContext) error {
		var err error
		out, err = fromTree(mc, tree, state.Path{})
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func fromTree(mc *MergeContext, x any, path state.Path) (any, error) {
	switch ns := x.(type) {
	case NodeStates:
		return mc.Merge(ns.GraphDef, ns.Flattened()...)
	case *NodeStates:
		return mc.Merge(ns.GraphDef, ns.Flattened()...)
	}
	impl, ok := node.LookupPytree(x)
	if !ok {
		return x, nil
	}
	children, aux, err := impl.Decompose(x)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRecompose, err, "decompose %s at %s", impl.Tag, path)
	}
	for i, c := range children {
		v, err := fromTree(mc, c.Value, path.Append(c.Key))
		if err != nil {
			return nil, err
		}
		children[i].Value = v
	}
	v, err := impl.Recompose(aux, children)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRecompose, err, "recompose %s at %s", impl.Tag, path)
	}
	return v, nil
}
