package state

import (
	"slices"

	"github.com/matzehuels/graphstate/pkg/errors"
	"github.com/matzehuels/graphstate/pkg/node"
)

// State is an ordered nested mapping from keys to sub-states or leaves.
// A State produced from a graph whose root is itself a leaf holds that
// leaf at the empty path.
type State struct {
	keys    []Key
	index   map[string]int
	values  []any
	root    any
	hasRoot bool
}

// New returns an empty State.
func New() *State {
	return &State{index: make(map[string]int)}
}

// Keys returns the direct child keys in insertion order.
func (s *State) Keys() []Key {
	if s == nil {
		return nil
	}
	return slices.Clone(s.keys)
}

// Len returns the number of leaves in s, at any depth.
func (s *State) Len() int {
	if s == nil {
		return 0
	}
	n := 0
	if s.hasRoot {
		n++
	}
	for _, v := range s.values {
		if sub, ok := v.(*State); ok {
			n += sub.Len()
		} else {
			n++
		}
	}
	return n
}

// Get returns the direct child stored under k: a *State or a leaf.
func (s *State) Get(k Key) (any, bool) {
	if s == nil {
		return nil, false
	}
	i, ok := s.index[keyString(k)]
	if !ok {
		return nil, false
	}
	return s.values[i], true
}

// Sub returns the sub-state stored under k, or nil.
func (s *State) Sub(k Key) *State {
	v, _ := s.Get(k)
	sub, _ := v.(*State)
	return sub
}

// At returns the value stored at path. The empty path addresses the root leaf.
func (s *State) At(path Path) (any, bool) {
	if s == nil {
		return nil, false
	}
	if len(path) == 0 {
		return s.root, s.hasRoot
	}
	cur := s
	for i, k := range path {
		v, ok := cur.Get(k)
		if !ok {
			return nil, false
		}
		if i == len(path)-1 {
			return v, true
		}
		if cur, ok = v.(*State); !ok {
			return nil, false
		}
	}
	return nil, false
}

// Set stores v at path, creating intermediate sub-states as needed.
// A leaf found where a sub-state is needed is replaced.
func (s *State) Set(path Path, v any) {
	if len(path) == 0 {
		s.root, s.hasRoot = v, true
		return
	}
	cur := s
	for _, k := range path[:len(path)-1] {
		next, ok := cur.Get(k)
		sub, isState := next.(*State)
		if !ok || !isState {
			sub = New()
			cur.put(k, sub)
		}
		cur = sub
	}
	cur.put(path[len(path)-1], v)
}

func (s *State) put(k Key, v any) {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	k = NormalizeKey(k)
	ks := keyString(k)
	if i, ok := s.index[ks]; ok {
		s.values[i] = v
		return
	}
	s.index[ks] = len(s.keys)
	s.keys = append(s.keys, k)
	s.values = append(s.values, v)
}

// Flat flattens s into path order: the root leaf first, then children in
// insertion order, depth first.
func (s *State) Flat() FlatState {
	if s == nil {
		return nil
	}
	var out FlatState
	if s.hasRoot {
		out = append(out, Entry{Path: Path{}, Value: s.root})
	}
	s.flatten(nil, &out)
	return out
}

func (s *State) flatten(prefix Path, out *FlatState) {
	for i, k := range s.keys {
		p := prefix.Append(k)
		if sub, ok := s.values[i].(*State); ok {
			sub.flatten(p, out)
			continue
		}
		*out = append(*out, Entry{Path: p, Value: s.values[i]})
	}
}

// Split partitions s like [FlatState.Split] and re-nests each partition.
func (s *State) Split(filters ...Filter) ([]*State, error) {
	parts, err := s.Flat().Split(filters...)
	if err != nil {
		return nil, err
	}
	out := make([]*State, len(parts))
	for i, p := range parts {
		out[i] = p.Nested()
	}
	return out, nil
}

// Filter returns the leaves accepted by at least one of filters.
func (s *State) Filter(filters ...Filter) *State {
	return s.Flat().Filter(filters...).Nested()
}

// Pure returns s as nested maps with variables replaced by their values.
// A root leaf is returned as is.
func (s *State) Pure() any {
	if s == nil {
		return map[Key]any{}
	}
	if s.hasRoot && len(s.keys) == 0 {
		return pureValue(s.root)
	}
	out := make(map[Key]any, len(s.keys))
	for i, k := range s.keys {
		if sub, ok := s.values[i].(*State); ok {
			out[k] = sub.Pure()
		} else {
			out[k] = pureValue(s.values[i])
		}
	}
	return out
}

func pureValue(v any) any {
	if vr, ok := v.(node.Variable); ok {
		return vr.Value()
	}
	return v
}

// ReplaceByPure overwrites leaves with the values of a pure mapping as
// produced by [State.Pure]. Variable leaves are replaced by copies holding
// the new value; the original variables are not modified. A pure path with
// no leaf in s is reported as an unknown path.
func (s *State) ReplaceByPure(pure any) error {
	src, err := FromPure(pure)
	if err != nil {
		return err
	}
	for _, e := range src.Flat() {
		cur, ok := s.At(e.Path)
		if !ok {
			return errors.New(errors.ErrCodeUnknownPath, "path %s not in state", e.Path)
		}
		if _, isSub := cur.(*State); isSub {
			return errors.New(errors.ErrCodeStructureMismatch, "path %s addresses a sub-state, not a leaf", e.Path)
		}
		if vr, ok := cur.(node.Variable); ok {
			cp := node.CopyVariable(vr)
			cp.SetValue(e.Value)
			s.Set(e.Path, cp)
			continue
		}
		s.Set(e.Path, e.Value)
	}
	return nil
}

// FromPure builds a State from nested maps. Maps may be keyed by Key or by
// string; sibling keys are ordered ints first, then strings. Non-map values
// are stored as leaves unchanged. A non-map pure value becomes the root leaf.
func FromPure(pure any) (*State, error) {
	switch p := pure.(type) {
	case *State:
		return p, nil
	case map[Key]any, map[string]any:
		s := New()
		if err := s.fillPure(nil, p); err != nil {
			return nil, err
		}
		return s, nil
	default:
		s := New()
		s.Set(Path{}, p)
		return s, nil
	}
}

func (s *State) fillPure(prefix Path, v any) error {
	var keys []Key
	var get func(Key) any
	switch m := v.(type) {
	case map[Key]any:
		for k := range m {
			switch NormalizeKey(k).(type) {
			case string, int:
			default:
				return errors.New(errors.ErrCodeInvalidInput, "key %v (%T) under %s is neither string nor int", k, k, prefix)
			}
			keys = append(keys, k)
		}
		get = func(k Key) any { return m[k] }
	case map[string]any:
		for k := range m {
			keys = append(keys, k)
		}
		get = func(k Key) any { return m[k.(string)] }
	default:
		s.Set(prefix, v)
		return nil
	}
	slices.SortFunc(keys, compareKeys)
	if len(keys) == 0 && len(prefix) > 0 {
		s.Set(prefix, New())
		return nil
	}
	for _, k := range keys {
		if err := s.fillPure(prefix.Append(NormalizeKey(k)), get(k)); err != nil {
			return err
		}
	}
	return nil
}
