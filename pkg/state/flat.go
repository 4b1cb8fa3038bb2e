package state

import (
	"github.com/matzehuels/graphstate/pkg/errors"
)

// Entry is a single (path, leaf) pair.
type Entry struct {
	Path  Path
	Value any
}

// FlatState is an ordered list of leaves keyed by path. Paths are unique.
type FlatState []Entry

// Flattener is implemented by every state representation the engine accepts.
type Flattener interface {
	Flat() FlatState
}

// Flat returns f itself.
func (f FlatState) Flat() FlatState { return f }

func (f FlatState) Len() int { return len(f) }

// Paths returns the entry paths in order.
func (f FlatState) Paths() []Path {
	out := make([]Path, len(f))
	for i, e := range f {
		out[i] = e.Path
	}
	return out
}

// Leaves returns the entry values in order.
func (f FlatState) Leaves() []any {
	out := make([]any, len(f))
	for i, e := range f {
		out[i] = e.Value
	}
	return out
}

// Get returns the leaf stored at path.
func (f FlatState) Get(path Path) (any, bool) {
	key := path.Key()
	for _, e := range f {
		if e.Path.Key() == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Index returns a lookup table from canonical path key to entry position.
// A duplicate path is reported as a structure mismatch.
func (f FlatState) Index() (map[string]int, error) {
	idx := make(map[string]int, len(f))
	for i, e := range f {
		k := e.Path.Key()
		if _, dup := idx[k]; dup {
			return nil, errors.New(errors.ErrCodeStructureMismatch, "duplicate state path %s", e.Path)
		}
		idx[k] = i
	}
	return idx, nil
}

// Filter returns the entries accepted by at least one of filters, in order.
func (f FlatState) Filter(filters ...Filter) FlatState {
	m := Any(filters...)
	var out FlatState
	for _, e := range f {
		if m.Match(e.Path, e.Value) {
			out = append(out, e)
		}
	}
	return out
}

// Split partitions f by filters. Each leaf goes to the first filter that
// accepts it; leaves accepted by none go to a trailing rest partition, so
// the result always has len(filters)+1 elements. [Everything] may only
// appear as the last filter.
func (f FlatState) Split(filters ...Filter) ([]FlatState, error) {
	for i, flt := range filters {
		if _, ok := flt.(everything); ok && i != len(filters)-1 {
			return nil, errors.New(errors.ErrCodeInvalidInput, "Everything must be the last filter, found at position %d of %d", i, len(filters))
		}
	}
	parts := make([]FlatState, len(filters)+1)
	for i := range parts {
		parts[i] = FlatState{}
	}
outer:
	for _, e := range f {
		for i, flt := range filters {
			if flt.Match(e.Path, e.Value) {
				parts[i] = append(parts[i], e)
				continue outer
			}
		}
		parts[len(filters)] = append(parts[len(filters)], e)
	}
	return parts, nil
}

// Nested re-nests the entries into a State.
func (f FlatState) Nested() *State {
	s := New()
	for _, e := range f {
		s.Set(e.Path, e.Value)
	}
	return s
}

// MergeFlat concatenates partitions back into a single FlatState.
// A path present in more than one partition is a structure mismatch.
func MergeFlat(parts ...Flattener) (FlatState, error) {
	var out FlatState
	seen := make(map[string]struct{})
	for _, p := range parts {
		if p == nil {
			continue
		}
		for _, e := range p.Flat() {
			k := e.Path.Key()
			if _, dup := seen[k]; dup {
				return nil, errors.New(errors.ErrCodeStructureMismatch, "path %s present in more than one partition", e.Path)
			}
			seen[k] = struct{}{}
			out = append(out, e)
		}
	}
	return out, nil
}
