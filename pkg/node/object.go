package node

import (
	"fmt"
	"reflect"
	"slices"
	"sort"

	"github.com/matzehuels/graphstate/pkg/errors"
)

// =============================================================================
// Object
// =============================================================================

// Object is an ordered attribute bag. Attributes keep insertion order;
// overwriting an attribute keeps its original position.
type Object struct {
	keys   []string
	values map[string]any
}

// NewObject returns an empty Object.
func NewObject() *Object {
	return &Object{values: make(map[string]any)}
}

// Get returns the attribute stored under name.
func (o *Object) Get(name string) any {
	return o.values[name]
}

// Lookup returns the attribute stored under name and whether it exists.
func (o *Object) Lookup(name string) (any, bool) {
	v, ok := o.values[name]
	return v, ok
}

// Set stores value under name and returns o for chaining.
func (o *Object) Set(name string, value any) *Object {
	if o.values == nil {
		o.values = make(map[string]any)
	}
	if _, ok := o.values[name]; !ok {
		o.keys = append(o.keys, name)
	}
	o.values[name] = value
	return o
}

// Delete removes an attribute.
func (o *Object) Delete(name string) {
	if _, ok := o.values[name]; !ok {
		return
	}
	delete(o.values, name)
	o.keys = slices.DeleteFunc(o.keys, func(k string) bool { return k == name })
}

// Keys returns the attribute names in insertion order.
func (o *Object) Keys() []string { return slices.Clone(o.keys) }

func (o *Object) Len() int { return len(o.keys) }

func (o *Object) fields() []Field {
	out := make([]Field, len(o.keys))
	for i, k := range o.keys {
		out[i] = Field{Key: k, Value: o.values[k]}
	}
	return out
}

func (o *Object) clear() {
	o.keys = nil
	o.values = make(map[string]any)
}

func objectImpl() GraphImpl {
	return GraphImpl{
		Tag:      "object",
		Type:     reflect.TypeOf((*Object)(nil)),
		Children: func(v any) []Field { return v.(*Object).fields() },
		New:      func() any { return NewObject() },
		Set: func(v any, key, child any) error {
			name, ok := key.(string)
			if !ok {
				return errors.New(errors.ErrCodeStructureMismatch, "object attribute key must be a string, got %T", key)
			}
			v.(*Object).Set(name, child)
			return nil
		},
		Clear: func(v any) { v.(*Object).clear() },
	}
}

// =============================================================================
// List
// =============================================================================

// List is an identity-tracked sequence node.
type List struct {
	items []any
}

// NewList returns a List holding items.
func NewList(items ...any) *List {
	return &List{items: slices.Clone(items)}
}

func (l *List) Get(i int) any    { return l.items[i] }
func (l *List) Set(i int, v any) { l.items[i] = v }
func (l *List) Append(v ...any)  { l.items = append(l.items, v...) }
func (l *List) Len() int         { return len(l.items) }
func (l *List) Items() []any     { return slices.Clone(l.items) }

func listImpl() GraphImpl {
	return GraphImpl{
		Tag:  "list",
		Type: reflect.TypeOf((*List)(nil)),
		Children: func(v any) []Field {
			l := v.(*List)
			out := make([]Field, len(l.items))
			for i, item := range l.items {
				out[i] = Field{Key: i, Value: item}
			}
			return out
		},
		New: func() any { return &List{} },
		Set: func(v any, key, child any) error {
			l := v.(*List)
			i, ok := key.(int)
			if !ok {
				return errors.New(errors.ErrCodeStructureMismatch, "list index must be an int, got %T", key)
			}
			switch {
			case i >= 0 && i < len(l.items):
				l.items[i] = child
			case i == len(l.items):
				l.items = append(l.items, child)
			default:
				return errors.New(errors.ErrCodeStructureMismatch, "list index %d out of range (len %d)", i, len(l.items))
			}
			return nil
		},
		Clear: func(v any) { v.(*List).items = nil },
	}
}

// =============================================================================
// Dict
// =============================================================================

// Dict is an identity-tracked string-keyed mapping that keeps insertion order.
type Dict struct {
	obj Object
}

// NewDict returns an empty Dict.
func NewDict() *Dict {
	return &Dict{obj: Object{values: make(map[string]any)}}
}

// DictOf builds a Dict from alternating key, value arguments.
func DictOf(kv ...any) *Dict {
	if len(kv)%2 != 0 {
		panic("node: DictOf requires key/value pairs")
	}
	d := NewDict()
	for i := 0; i < len(kv); i += 2 {
		d.Set(kv[i].(string), kv[i+1])
	}
	return d
}

func (d *Dict) Get(key string) any            { return d.obj.Get(key) }
func (d *Dict) Lookup(key string) (any, bool) { return d.obj.Lookup(key) }
func (d *Dict) Set(key string, value any)     { d.obj.Set(key, value) }
func (d *Dict) Delete(key string)             { d.obj.Delete(key) }
func (d *Dict) Keys() []string                { return d.obj.Keys() }
func (d *Dict) Len() int                      { return d.obj.Len() }

func dictImpl() GraphImpl {
	return GraphImpl{
		Tag:      "dict",
		Type:     reflect.TypeOf((*Dict)(nil)),
		Children: func(v any) []Field { return v.(*Dict).obj.fields() },
		New:      func() any { return NewDict() },
		Set: func(v any, key, child any) error {
			k, ok := key.(string)
			if !ok {
				return errors.New(errors.ErrCodeStructureMismatch, "dict key must be a string, got %T", key)
			}
			v.(*Dict).Set(k, child)
			return nil
		},
		Clear: func(v any) { v.(*Dict).obj.clear() },
	}
}

// =============================================================================
// Plain slices and maps
// =============================================================================

func slicePytree() PytreeImpl {
	return PytreeImpl{
		Tag:  "slice",
		Type: reflect.TypeOf([]any(nil)),
		Decompose: func(v any) ([]Field, any, error) {
			s := v.([]any)
			out := make([]Field, len(s))
			for i, item := range s {
				out[i] = Field{Key: i, Value: item}
			}
			return out, len(s), nil
		},
		Recompose: func(aux any, children []Field) (any, error) {
			n, ok := toInt(aux)
			if !ok {
				return nil, fmt.Errorf("slice aux: want length, got %T", aux)
			}
			if n != len(children) {
				return nil, fmt.Errorf("slice of length %d rebuilt from %d children", n, len(children))
			}
			out := make([]any, n)
			for i, c := range children {
				out[i] = c.Value
			}
			return out, nil
		},
	}
}

func mapPytree() PytreeImpl {
	return PytreeImpl{
		Tag:  "map",
		Type: reflect.TypeOf(map[string]any(nil)),
		Decompose: func(v any) ([]Field, any, error) {
			m := v.(map[string]any)
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			// Aux holds the keys as []any, the shape they decode back to.
			out := make([]Field, len(keys))
			aux := make([]any, len(keys))
			for i, k := range keys {
				out[i] = Field{Key: k, Value: m[k]}
				aux[i] = k
			}
			return out, aux, nil
		},
		Recompose: func(aux any, children []Field) (any, error) {
			keys, err := toStrings(aux)
			if err != nil {
				return nil, fmt.Errorf("map aux: %w", err)
			}
			if len(keys) != len(children) {
				return nil, fmt.Errorf("map with %d keys rebuilt from %d children", len(keys), len(children))
			}
			out := make(map[string]any, len(keys))
			for i, c := range children {
				if c.Key != keys[i] {
					return nil, fmt.Errorf("map key %v does not match %q", c.Key, keys[i])
				}
				out[keys[i]] = c.Value
			}
			return out, nil
		},
	}
}

func toInt(v any) (int, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(rv.Uint()), true
	}
	return 0, false
}

func toStrings(v any) ([]string, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, len(v))
		for i, s := range v {
			str, ok := s.(string)
			if !ok {
				return nil, fmt.Errorf("key %d is %T, not string", i, s)
			}
			out[i] = str
		}
		return out, nil
	}
	return nil, fmt.Errorf("want key list, got %T", v)
}
