package graph

import (
	"context"
	"reflect"
	"time"

	"github.com/matzehuels/graphstate/pkg/errors"
	"github.com/matzehuels/graphstate/pkg/node"
	"github.com/matzehuels/graphstate/pkg/observability"
	"github.com/matzehuels/graphstate/pkg/state"
)

type unflattenOptions struct {
	indexRef        *IndexMap
	outerIndexOuter *IndexMap
}

// UnflattenOption configures [Unflatten].
type UnflattenOption func(*unflattenOptions)

// WithIndexRef makes Unflatten register every rebuilt node in m. Unflatten
// calls sharing m resolve each other's [NodeRef] entries.
func WithIndexRef(m *IndexMap) UnflattenOption {
	return func(o *unflattenOptions) { o.indexRef = m }
}

// WithOuterIndexRef supplies live objects by outer index. A node tagged with
// an outer index found in m reuses that object: composites are cleared and
// repopulated in place, variables receive the new value.
func WithOuterIndexRef(m *IndexMap) UnflattenOption {
	return func(o *unflattenOptions) { o.outerIndexOuter = m }
}

// Unflatten rebuilds a graph from its definition and state. The state must
// hold exactly one entry per leaf slot; entries are matched to slots by path.
func Unflatten(def *GraphDef, st state.Flattener, opts ...UnflattenOption) (any, error) {
	return unflatten(context.Background(), def, st, opts...)
}

func unflatten(ctx context.Context, def *GraphDef, st state.Flattener, opts ...UnflattenOption) (any, error) {
	var o unflattenOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.indexRef == nil {
		o.indexRef = NewIndexMap()
	}

	start := time.Now()
	u := &unflattener{def: def, indexRef: o.indexRef, outer: o.outerIndexOuter}
	v, err := u.run(st)
	nodes := 0
	if def != nil {
		nodes = len(def.Nodes)
	}
	observability.Graph().OnUnflatten(ctx, def.RootType(), nodes, len(u.leaves), u.reused, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return v, nil
}

type unflattener struct {
	def      *GraphDef
	leaves   []any
	indexRef *IndexMap
	outer    *IndexMap
	reused   int

	// undo restores reused outer objects when the build fails.
	undo []func()
}

func (u *unflattener) run(st state.Flattener) (any, error) {
	if err := u.def.Validate(); err != nil {
		return nil, err
	}
	var flat state.FlatState
	if st != nil {
		flat = st.Flat()
	}
	if len(flat) != u.def.Leaves {
		return nil, mismatch("incorrect number of leaves: got %d, want %d", len(flat), u.def.Leaves)
	}

	slots := make(map[string]int, u.def.Leaves)
	for i, p := range u.def.LeafPaths() {
		slots[p.Key()] = i
	}
	u.leaves = make([]any, u.def.Leaves)
	filled := make([]bool, u.def.Leaves)
	for _, e := range flat {
		slot, ok := slots[e.Path.Key()]
		if !ok {
			return nil, errors.New(errors.ErrCodeUnknownPath, "state path %s not in graph definition", e.Path)
		}
		if filled[slot] {
			return nil, mismatch("duplicate state path %s", e.Path)
		}
		u.leaves[slot] = e.Value
		filled[slot] = true
	}

	if err := u.checkOuter(); err != nil {
		return nil, err
	}
	v, err := u.build(0)
	if err != nil {
		for i := len(u.undo) - 1; i >= 0; i-- {
			u.undo[i]()
		}
		return nil, err
	}
	return v, nil
}

// checkOuter matches every outer object the definition reuses against the
// node it stands for, so a mismatch fails before anything is modified.
func (u *unflattener) checkOuter() error {
	for _, n := range u.def.Nodes {
		switch d := n.(type) {
		case *CompositeDef:
			live, ok := u.live(d.OuterIndex)
			if !ok {
				continue
			}
			impl, ok := node.LookupGraphTag(d.Type)
			if !ok {
				return mismatch("unregistered graph type %q", d.Type)
			}
			if reflect.TypeOf(live) != impl.Type {
				return mismatch("outer object #%d is %s, want %s", d.OuterIndex, node.TypeTag(live), d.Type)
			}
		case *VariableDef:
			live, ok := u.live(d.OuterIndex)
			if !ok {
				continue
			}
			if vr, isVar := live.(node.Variable); !isVar || vr.Type() != d.Type {
				return mismatch("outer object #%d is %s, want variable %s", d.OuterIndex, node.TypeTag(live), d.Type)
			}
		}
	}
	return nil
}

func (u *unflattener) live(outerIndex int) (any, bool) {
	if outerIndex == NoOuterIndex || u.outer == nil {
		return nil, false
	}
	return u.outer.Get(outerIndex)
}

func (u *unflattener) build(pos int) (any, error) {
	if pos < 0 || pos >= len(u.def.Nodes) {
		return nil, mismatch("node position %d out of range", pos)
	}
	switch d := u.def.Nodes[pos].(type) {
	case *StaticDef:
		return d.Value, nil

	case *LeafDef:
		return u.leaves[d.Slot], nil

	case *NodeRef:
		obj, ok := u.indexRef.Get(d.Index)
		if !ok {
			return nil, mismatch("reference to unknown node #%d (%s)", d.Index, d.Type)
		}
		return obj, nil

	case *VariableDef:
		return u.variable(d)

	case *CompositeDef:
		return u.composite(d)

	case *PytreeDef:
		impl, ok := node.LookupPytreeTag(d.Type)
		if !ok {
			return nil, mismatch("unregistered pytree type %q", d.Type)
		}
		children := make([]node.Field, len(d.Attrs))
		for i, a := range d.Attrs {
			v, err := u.attr(a)
			if err != nil {
				return nil, err
			}
			children[i] = node.Field{Key: a.Key, Value: v}
		}
		v, err := impl.Recompose(d.Aux, children)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeRecompose, err, "recompose %s", d.Type)
		}
		return v, nil
	}
	return nil, mismatch("unknown node definition %T", u.def.Nodes[pos])
}

func (u *unflattener) variable(d *VariableDef) (any, error) {
	leaf := u.leaves[d.Slot]
	if obj, ok := u.live(d.OuterIndex); ok {
		vr, isVar := obj.(node.Variable)
		if !isVar || vr.Type() != d.Type {
			return nil, mismatch("outer object #%d is %s, want variable %s", d.OuterIndex, node.TypeTag(obj), d.Type)
		}
		old := vr.Value()
		u.undo = append(u.undo, func() { vr.SetValue(old) })
		vr.SetValue(leafValue(leaf))
		u.indexRef.Set(d.Index, vr)
		u.reused++
		return vr, nil
	}

	var vr node.Variable
	if sv, ok := leaf.(node.Variable); ok {
		meta := sv.Metadata()
		if meta == nil {
			meta = d.Meta
		}
		vr = node.NewVariableOf(d.Type, sv.Value(), meta)
	} else {
		vr = node.NewVariableOf(d.Type, leaf, d.Meta)
	}
	u.indexRef.Set(d.Index, vr)
	return vr, nil
}

func (u *unflattener) composite(d *CompositeDef) (any, error) {
	impl, ok := node.LookupGraphTag(d.Type)
	if !ok {
		return nil, mismatch("unregistered graph type %q", d.Type)
	}

	var obj any
	if live, ok := u.live(d.OuterIndex); ok {
		if reflect.TypeOf(live) != impl.Type {
			return nil, mismatch("outer object #%d is %s, want %s", d.OuterIndex, node.TypeTag(live), d.Type)
		}
		prev := impl.Children(live)
		u.undo = append(u.undo, func() {
			impl.Clear(live)
			for _, f := range prev {
				_ = impl.Set(live, f.Key, f.Value)
			}
		})
		impl.Clear(live)
		obj = live
		u.reused++
	} else {
		obj = impl.New()
	}
	// Register before populating so cycles resolve to this shell.
	u.indexRef.Set(d.Index, obj)

	for _, a := range d.Attrs {
		child, err := u.attr(a)
		if err != nil {
			return nil, err
		}
		if err := impl.Set(obj, a.Key, child); err != nil {
			return nil, wrapAs(err, errors.ErrCodeStructureMismatch, "set %s.%v", d.Type, a.Key)
		}
	}
	return obj, nil
}

func (u *unflattener) attr(a Attr) (any, error) {
	switch a.Kind {
	case AttrStatic:
		return a.Value, nil
	case AttrLeaf:
		if a.Slot < 0 || a.Slot >= len(u.leaves) {
			return nil, mismatch("leaf slot %d out of range", a.Slot)
		}
		return leafValue(u.leaves[a.Slot]), nil
	default:
		return u.build(a.Node)
	}
}

// leafValue unwraps a variable handed in where a plain value is expected.
func leafValue(v any) any {
	if vr, ok := v.(node.Variable); ok {
		return vr.Value()
	}
	return v
}
