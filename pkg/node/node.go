package node

import (
	"reflect"
	"unsafe"
)

// Kind classifies a value for the graph engine.
type Kind int

const (
	// KindStatic values are stored verbatim in the graph definition.
	KindStatic Kind = iota
	// KindLeaf values are array-like leaves stored in the state.
	KindLeaf
	// KindVariable values are identity-tracked single-value cells.
	KindVariable
	// KindGraph values are identity-tracked composite containers.
	KindGraph
	// KindPytree values are opaque structured values rebuilt from their parts.
	KindPytree
)

func (k Kind) String() string {
	switch k {
	case KindStatic:
		return "static"
	case KindLeaf:
		return "leaf"
	case KindVariable:
		return "variable"
	case KindGraph:
		return "graph"
	case KindPytree:
		return "pytree"
	default:
		return "unknown"
	}
}

// Field is an ordered (key, child) pair of a composite or opaque value.
// Keys are strings for attributes and mapping entries, ints for sequence positions.
type Field struct {
	Key   any
	Value any
}

// Array marks a value as an array-like state leaf.
// Types that cannot implement it can be registered with [RegisterArrayType].
type Array interface {
	ArrayLeaf()
}

// Classify resolves the kind of v. The tests run in a fixed order:
// nil, variable, registered graph type, registered pytree type, array, static.
func Classify(v any) Kind {
	if v == nil {
		return KindStatic
	}
	if _, ok := v.(Variable); ok {
		return KindVariable
	}
	t := reflect.TypeOf(v)

	defaultRegistry.mu.RLock()
	_, isGraph := defaultRegistry.graphs[t]
	_, isPytree := defaultRegistry.pytrees[t]
	isArray := defaultRegistry.arrays[t]
	defaultRegistry.mu.RUnlock()

	switch {
	case isGraph:
		return KindGraph
	case isPytree:
		return KindPytree
	case isArray:
		return KindLeaf
	}
	if _, ok := v.(Array); ok {
		return KindLeaf
	}
	return KindStatic
}

// IsNode reports whether v is a graph node or a variable, the two kinds the
// engine tracks by identity.
func IsNode(v any) bool {
	k := Classify(v)
	return k == KindGraph || k == KindVariable
}

// Handle is a comparable identity handle for a value.
// Two handles are equal exactly when they refer to the same object.
type Handle struct {
	typ reflect.Type
	ptr unsafe.Pointer
}

// Identity returns the identity handle of v. It reports false for values
// without reference identity (nil, scalars, structs held by value).
func Identity(v any) (Handle, bool) {
	if v == nil {
		return Handle{}, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.UnsafePointer:
		if rv.IsNil() {
			return Handle{}, false
		}
		return Handle{typ: rv.Type(), ptr: rv.UnsafePointer()}, true
	default:
		return Handle{}, false
	}
}

// TypeTag returns the registered tag for graph nodes, pytrees and variables,
// and the Go type name for anything else.
func TypeTag(v any) string {
	if v == nil {
		return "nil"
	}
	if vr, ok := v.(Variable); ok {
		return vr.Type()
	}
	if impl, ok := LookupGraph(v); ok {
		return impl.Tag
	}
	if impl, ok := LookupPytree(v); ok {
		return impl.Tag
	}
	return reflect.TypeOf(v).String()
}
