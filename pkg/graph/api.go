package graph

import (
	"context"

	"github.com/matzehuels/graphstate/pkg/errors"
	"github.com/matzehuels/graphstate/pkg/node"
	"github.com/matzehuels/graphstate/pkg/state"
)

// =============================================================================
// Split / Merge
// =============================================================================

// Split flattens root and partitions its state by filters. The result always
// holds len(filters)+1 states: leaves go to the first filter that accepts
// them, and the last state holds the leaves no filter accepted.
//
//	def, parts, err := graph.Split(model, state.OfType(node.TagParam))
//	params, rest := parts[0], parts[1]
func Split(root any, filters ...state.Filter) (*GraphDef, []*state.State, error) {
	return split(context.Background(), root, nil, filters...)
}

func split(ctx context.Context, root any, opts []FlattenOption, filters ...state.Filter) (*GraphDef, []*state.State, error) {
	def, flat, err := flatten(ctx, root, opts...)
	if err != nil {
		return nil, nil, err
	}
	parts, err := flat.Split(filters...)
	if err != nil {
		return nil, nil, err
	}
	states := make([]*state.State, len(parts))
	for i, p := range parts {
		states[i] = p.Nested()
	}
	return def, states, nil
}

// Merge recombines state partitions and rebuilds the graph described by def.
// The partitions must be disjoint and together cover every leaf of def.
func Merge(def *GraphDef, parts ...state.Flattener) (any, error) {
	return merge(context.Background(), def, nil, parts...)
}

func merge(ctx context.Context, def *GraphDef, opts []UnflattenOption, parts ...state.Flattener) (any, error) {
	flat, err := state.MergeFlat(parts...)
	if err != nil {
		return nil, err
	}
	return unflatten(ctx, def, flat, opts...)
}

// MergeAs is [Merge] with the root asserted to T.
func MergeAs[T any](def *GraphDef, parts ...state.Flattener) (T, error) {
	var zero T
	v, err := Merge(def, parts...)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, mismatch("merged root is %T, want %T", v, zero)
	}
	return t, nil
}

// Clone returns a deep copy of root with the same topology and aliasing.
// Variables are copied; static values are shared.
func Clone[T any](root T) (T, error) {
	var zero T
	def, parts, err := Split(root)
	if err != nil {
		return zero, err
	}
	return MergeAs[T](def, parts[0])
}

// State returns the state of root, restricted to the leaves accepted by any
// of filters when filters are given.
func State(root any, filters ...state.Filter) (*state.State, error) {
	flat, err := collectLeaves(root)
	if err != nil {
		return nil, err
	}
	if len(filters) > 0 {
		flat = flat.Filter(filters...)
	}
	return flat.Nested(), nil
}

// =============================================================================
// Update
// =============================================================================

// Update writes the leaves of parts into the live graph rooted at root
// without allocating new nodes. Variables receive the new value through
// SetValue; array leaves are assigned into their parent composite. Parts may
// cover any subset of the graph's leaves, but every path must name a leaf
// that root actually has.
func Update(root any, parts ...state.Flattener) error {
	flat, err := state.MergeFlat(parts...)
	if err != nil {
		return err
	}
	targets, err := collectTargets(root)
	if err != nil {
		return err
	}
	for _, e := range flat {
		t, ok := targets[e.Path.Key()]
		if !ok {
			return errors.New(errors.ErrCodeUnknownPath, "path %s not in graph", e.Path)
		}
		if err := t.assign(e.Value); err != nil {
			return wrapAs(err, errors.ErrCodeStructureMismatch, "update %s", e.Path)
		}
	}
	return nil
}

// leafTarget is a writable location in a live graph.
type leafTarget struct {
	variable node.Variable
	parent   any
	impl     *node.GraphImpl
	key      state.Key
	// reason is set for leaves that cannot be written in place.
	reason string
}

func (t leafTarget) assign(v any) error {
	switch {
	case t.variable != nil:
		t.variable.SetValue(leafValue(v))
		return nil
	case t.impl != nil:
		return t.impl.Set(t.parent, t.key, leafValue(v))
	default:
		return errors.New(errors.ErrCodeUnsupported, "%s", t.reason)
	}
}

// collectTargets walks root in flatten order and returns the writable
// location of every state leaf keyed by canonical path.
func collectTargets(root any) (map[string]leafTarget, error) {
	targets := make(map[string]leafTarget)
	seen := NewRefMap()

	var walk func(v any, path state.Path) error
	child := func(parent any, impl *node.GraphImpl, c node.Field, path state.Path, inPytree string) error {
		p := path.Append(c.Key)
		switch node.Classify(c.Value) {
		case node.KindStatic:
			return nil
		case node.KindLeaf:
			if impl != nil {
				targets[p.Key()] = leafTarget{parent: parent, impl: impl, key: c.Key}
			} else {
				targets[p.Key()] = leafTarget{reason: "array leaf inside opaque value " + inPytree + " cannot be updated in place"}
			}
			return nil
		default:
			return walk(c.Value, p)
		}
	}
	walk = func(v any, path state.Path) error {
		switch node.Classify(v) {
		case node.KindVariable:
			if seen.Contains(v) {
				return nil
			}
			seen.Set(v, seen.Len())
			targets[path.Key()] = leafTarget{variable: v.(node.Variable)}
		case node.KindGraph:
			if seen.Contains(v) {
				return nil
			}
			seen.Set(v, seen.Len())
			impl, _ := node.LookupGraph(v)
			for _, c := range impl.Children(v) {
				if err := child(v, impl, c, path, ""); err != nil {
					return err
				}
			}
		case node.KindPytree:
			impl, _ := node.LookupPytree(v)
			children, _, err := impl.Decompose(v)
			if err != nil {
				return errors.Wrap(errors.ErrCodeRecompose, err, "decompose %s at %s", impl.Tag, path)
			}
			for _, c := range children {
				if err := child(v, nil, c, path, impl.Tag); err != nil {
					return err
				}
			}
		case node.KindLeaf:
			targets[path.Key()] = leafTarget{reason: "root array leaf cannot be updated in place"}
		}
		return nil
	}
	if err := walk(root, state.Path{}); err != nil {
		return nil, err
	}
	return targets, nil
}
