package node

import (
	"fmt"
	"maps"
	"sync/atomic"
)

// Built-in variable type tags.
const (
	TagVariable     = "variable"
	TagParam        = "param"
	TagBatchStat    = "batch_stat"
	TagCache        = "cache"
	TagIntermediate = "intermediate"
)

// Variable is a mutable single-value cell. Every variable reachable from a
// root becomes exactly one state leaf, no matter how many paths reach it.
type Variable interface {
	// Type returns the variable's type tag, used for filtering and to pick the
	// factory that re-creates the variable during merge.
	Type() string
	Value() any
	SetValue(v any)
	// ID is unique within the process and never reused.
	ID() uint64
	// Metadata is stored in the graph definition, not in the state.
	Metadata() map[string]any
}

// VariableFactory creates a fresh variable holding value.
type VariableFactory func(value any, meta map[string]any) Variable

var lastVarID atomic.Uint64

// Var is the built-in Variable implementation.
type Var struct {
	id    uint64
	tag   string
	value any
	meta  map[string]any
}

// NewVar returns a variable of the given type tag. Metadata maps are merged in order.
func NewVar(tag string, value any, meta ...map[string]any) *Var {
	v := &Var{
		id:    lastVarID.Add(1),
		tag:   tag,
		value: value,
	}
	for _, m := range meta {
		if v.meta == nil {
			v.meta = make(map[string]any, len(m))
		}
		maps.Copy(v.meta, m)
	}
	return v
}

func NewVariable(value any) *Var     { return NewVar(TagVariable, value) }
func NewParam(value any) *Var        { return NewVar(TagParam, value) }
func NewBatchStat(value any) *Var    { return NewVar(TagBatchStat, value) }
func NewCache(value any) *Var        { return NewVar(TagCache, value) }
func NewIntermediate(value any) *Var { return NewVar(TagIntermediate, value) }

func (v *Var) Type() string       { return v.tag }
func (v *Var) Value() any         { return v.value }
func (v *Var) SetValue(value any) { v.value = value }
func (v *Var) ID() uint64         { return v.id }

// Metadata returns the variable's metadata. The map is shared, not copied.
func (v *Var) Metadata() map[string]any { return v.meta }

// SetMeta sets a single metadata entry.
func (v *Var) SetMeta(key string, value any) {
	if v.meta == nil {
		v.meta = make(map[string]any)
	}
	v.meta[key] = value
}

func (v *Var) String() string {
	return fmt.Sprintf("%s(%v)", v.tag, v.value)
}

// NewVariableOf creates a variable through the factory registered for tag.
// Unregistered tags fall back to a [*Var] carrying that tag.
func NewVariableOf(tag string, value any, meta map[string]any) Variable {
	if f, ok := LookupVariable(tag); ok {
		return f(value, cloneMeta(meta))
	}
	return NewVar(tag, value, meta)
}

// CopyVariable returns a fresh variable with the same type tag, value and a
// shallow copy of the metadata of v.
func CopyVariable(v Variable) Variable {
	return NewVariableOf(v.Type(), v.Value(), v.Metadata())
}

func cloneMeta(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}

func varFactory(tag string) VariableFactory {
	return func(value any, meta map[string]any) Variable {
		return NewVar(tag, value, meta)
	}
}
