package graph

import (
	"iter"

	"github.com/matzehuels/graphstate/pkg/node"
)

// RefMap maps object identities to indices, remembering insertion order.
// Objects are keyed by identity, never by content, and are not owned.
// Values without reference identity are ignored.
type RefMap struct {
	index map[node.Handle]int
	objs  []any
}

// NewRefMap returns an empty RefMap.
func NewRefMap() *RefMap {
	return &RefMap{index: make(map[node.Handle]int)}
}

// Get returns the index assigned to obj.
func (m *RefMap) Get(obj any) (int, bool) {
	if m == nil {
		return 0, false
	}
	h, ok := node.Identity(obj)
	if !ok {
		return 0, false
	}
	i, ok := m.index[h]
	return i, ok
}

// Contains reports whether obj has an index.
func (m *RefMap) Contains(obj any) bool {
	_, ok := m.Get(obj)
	return ok
}

// Set assigns index i to obj. Reassigning keeps the original insertion position.
func (m *RefMap) Set(obj any, i int) {
	h, ok := node.Identity(obj)
	if !ok {
		return
	}
	if m.index == nil {
		m.index = make(map[node.Handle]int)
	}
	if _, exists := m.index[h]; !exists {
		m.objs = append(m.objs, obj)
	}
	m.index[h] = i
}

// Len returns the number of registered objects.
func (m *RefMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.objs)
}

// Keys returns the registered objects in insertion order.
func (m *RefMap) Keys() []any {
	if m == nil {
		return nil
	}
	out := make([]any, len(m.objs))
	copy(out, m.objs)
	return out
}

// All iterates over (object, index) pairs in insertion order.
func (m *RefMap) All() iter.Seq2[any, int] {
	return func(yield func(any, int) bool) {
		if m == nil {
			return
		}
		for _, obj := range m.objs {
			h, _ := node.Identity(obj)
			if !yield(obj, m.index[h]) {
				return
			}
		}
	}
}

// IndexMap maps indices to objects, the unflatten-side counterpart of RefMap.
type IndexMap struct {
	objs  map[int]any
	order []int
}

// NewIndexMap returns an empty IndexMap.
func NewIndexMap() *IndexMap {
	return &IndexMap{objs: make(map[int]any)}
}

// Get returns the object registered under i.
func (m *IndexMap) Get(i int) (any, bool) {
	if m == nil {
		return nil, false
	}
	obj, ok := m.objs[i]
	return obj, ok
}

// Set registers obj under i.
func (m *IndexMap) Set(i int, obj any) {
	if m.objs == nil {
		m.objs = make(map[int]any)
	}
	if _, exists := m.objs[i]; !exists {
		m.order = append(m.order, i)
	}
	m.objs[i] = obj
}

// Len returns the number of registered indices.
func (m *IndexMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// All iterates over (index, object) pairs in insertion order.
func (m *IndexMap) All() iter.Seq2[int, any] {
	return func(yield func(int, any) bool) {
		if m == nil {
			return
		}
		for _, i := range m.order {
			if !yield(i, m.objs[i]) {
				return
			}
		}
	}
}

// IndexMapFromRefMap inverts a RefMap.
func IndexMapFromRefMap(r *RefMap) *IndexMap {
	m := NewIndexMap()
	for obj, i := range r.All() {
		m.Set(i, obj)
	}
	return m
}

// RefMapFromIndexMap inverts an IndexMap.
func RefMapFromIndexMap(m *IndexMap) *RefMap {
	r := NewRefMap()
	for i, obj := range m.All() {
		r.Set(obj, i)
	}
	return r
}
