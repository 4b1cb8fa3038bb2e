package node

import (
	"reflect"
	"sync"

	"github.com/matzehuels/graphstate/pkg/errors"
)

// GraphImpl describes how the engine takes a composite node apart and builds
// it back. Composites are tracked by identity, so Type must be a reference
// type (in practice a pointer).
type GraphImpl struct {
	// Tag names the type in graph definitions. It must be unique.
	Tag  string
	Type reflect.Type

	// Children returns the node's (key, child) pairs in a deterministic order.
	Children func(v any) []Field
	// New returns an empty shell that Set can populate.
	New func() any
	// Set assigns child under key. It is called in Children order.
	Set func(v any, key, child any) error
	// Clear removes every child so a live node can be repopulated.
	Clear func(v any)
}

// PytreeImpl describes an opaque value that is rebuilt from its children.
// Pytrees are not tracked by identity.
type PytreeImpl struct {
	Tag  string
	Type reflect.Type

	// Decompose splits v into ordered children plus auxiliary data that is
	// stored verbatim in the graph definition.
	Decompose func(v any) ([]Field, any, error)
	// Recompose rebuilds the value. aux may have passed through a codec, so
	// implementations should accept its decoded generic form.
	Recompose func(aux any, children []Field) (any, error)
}

type registry struct {
	mu         sync.RWMutex
	graphs     map[reflect.Type]*GraphImpl
	graphTags  map[string]*GraphImpl
	pytrees    map[reflect.Type]*PytreeImpl
	pytreeTags map[string]*PytreeImpl
	arrays     map[reflect.Type]bool
	variables  map[string]VariableFactory
}

var defaultRegistry = &registry{
	graphs:     make(map[reflect.Type]*GraphImpl),
	graphTags:  make(map[string]*GraphImpl),
	pytrees:    make(map[reflect.Type]*PytreeImpl),
	pytreeTags: make(map[string]*PytreeImpl),
	arrays:     make(map[reflect.Type]bool),
	variables:  make(map[string]VariableFactory),
}

// RegisterGraph registers a composite node type.
func RegisterGraph(impl GraphImpl) error {
	if err := errors.ValidateTypeTag(impl.Tag); err != nil {
		return err
	}
	if impl.Type == nil || impl.Children == nil || impl.New == nil || impl.Set == nil || impl.Clear == nil {
		return errors.New(errors.ErrCodeInvalidInput, "graph type %q: incomplete implementation", impl.Tag)
	}
	if !isRefKind(impl.Type) {
		return errors.New(errors.ErrCodeInvalidInput, "graph type %q: %s has no reference identity", impl.Tag, impl.Type)
	}

	r := defaultRegistry
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkFree(impl.Type, impl.Tag); err != nil {
		return err
	}
	r.graphs[impl.Type] = &impl
	r.graphTags[impl.Tag] = &impl
	return nil
}

// RegisterPytree registers an opaque decomposable type.
func RegisterPytree(impl PytreeImpl) error {
	if err := errors.ValidateTypeTag(impl.Tag); err != nil {
		return err
	}
	if impl.Type == nil || impl.Decompose == nil || impl.Recompose == nil {
		return errors.New(errors.ErrCodeInvalidInput, "pytree type %q: incomplete implementation", impl.Tag)
	}

	r := defaultRegistry
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkFree(impl.Type, impl.Tag); err != nil {
		return err
	}
	r.pytrees[impl.Type] = &impl
	r.pytreeTags[impl.Tag] = &impl
	return nil
}

// RegisterArrayType marks t as an array-like leaf type.
func RegisterArrayType(t reflect.Type) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.arrays[t] = true
}

// LookupArrayType returns the registered array leaf type whose Go type name is name.
func LookupArrayType(name string) (reflect.Type, bool) {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()
	for t := range defaultRegistry.arrays {
		if t.String() == name {
			return t, true
		}
	}
	return nil, false
}

// RegisterVariable registers the factory used to re-create variables of the
// given type tag. Registering the same tag twice is an error.
func RegisterVariable(tag string, f VariableFactory) error {
	if err := errors.ValidateTypeTag(tag); err != nil {
		return err
	}
	if f == nil {
		return errors.New(errors.ErrCodeInvalidInput, "variable type %q: nil factory", tag)
	}
	r := defaultRegistry
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.variables[tag]; ok {
		return errors.New(errors.ErrCodeInvalidInput, "variable type %q already registered", tag)
	}
	r.variables[tag] = f
	return nil
}

func (r *registry) checkFree(t reflect.Type, tag string) error {
	if _, ok := r.graphs[t]; ok {
		return errors.New(errors.ErrCodeInvalidInput, "type %s already registered as graph node", t)
	}
	if _, ok := r.pytrees[t]; ok {
		return errors.New(errors.ErrCodeInvalidInput, "type %s already registered as pytree", t)
	}
	if _, ok := r.graphTags[tag]; ok {
		return errors.New(errors.ErrCodeInvalidInput, "type tag %q already registered", tag)
	}
	if _, ok := r.pytreeTags[tag]; ok {
		return errors.New(errors.ErrCodeInvalidInput, "type tag %q already registered", tag)
	}
	return nil
}

// LookupGraph returns the composite implementation for v's type.
func LookupGraph(v any) (*GraphImpl, bool) {
	if v == nil {
		return nil, false
	}
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()
	impl, ok := defaultRegistry.graphs[reflect.TypeOf(v)]
	return impl, ok
}

// LookupGraphTag returns the composite implementation registered under tag.
func LookupGraphTag(tag string) (*GraphImpl, bool) {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()
	impl, ok := defaultRegistry.graphTags[tag]
	return impl, ok
}

// LookupPytree returns the pytree implementation for v's type.
func LookupPytree(v any) (*PytreeImpl, bool) {
	if v == nil {
		return nil, false
	}
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()
	impl, ok := defaultRegistry.pytrees[reflect.TypeOf(v)]
	return impl, ok
}

// LookupPytreeTag returns the pytree implementation registered under tag.
func LookupPytreeTag(tag string) (*PytreeImpl, bool) {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()
	impl, ok := defaultRegistry.pytreeTags[tag]
	return impl, ok
}

// LookupVariable returns the factory registered for a variable type tag.
func LookupVariable(tag string) (VariableFactory, bool) {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()
	f, ok := defaultRegistry.variables[tag]
	return f, ok
}

func isRefKind(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan:
		return true
	}
	return false
}

func mustRegister(err error) {
	if err != nil {
		panic(err)
	}
}

func init() {
	for _, tag := range []string{TagVariable, TagParam, TagBatchStat, TagCache, TagIntermediate} {
		mustRegister(RegisterVariable(tag, varFactory(tag)))
	}
	for _, v := range []any{[]float64(nil), []float32(nil), []int(nil), []int64(nil), []int32(nil), []bool(nil), []byte(nil)} {
		RegisterArrayType(reflect.TypeOf(v))
	}
	mustRegister(RegisterGraph(objectImpl()))
	mustRegister(RegisterGraph(listImpl()))
	mustRegister(RegisterGraph(dictImpl()))
	mustRegister(RegisterPytree(slicePytree()))
	mustRegister(RegisterPytree(mapPytree()))
}
