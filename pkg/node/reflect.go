package node

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/matzehuels/graphstate/pkg/errors"
)

var typeInfoCache sync.Map

type structField struct {
	name   string
	index  []int
	static bool
}

type structInfo struct {
	typ     reflect.Type
	fields  []structField
	byName  map[string]*structField
	dynamic int
}

func reflectStruct(typ reflect.Type) *structInfo {
	if v, ok := typeInfoCache.Load(typ); ok {
		return v.(*structInfo)
	}
	info := reflectStructWithoutCache(typ)
	actual, _ := typeInfoCache.LoadOrStore(typ, info)
	return actual.(*structInfo)
}

func reflectStructWithoutCache(typ reflect.Type) *structInfo {
	si := &structInfo{
		typ:    typ,
		byName: make(map[string]*structField),
	}
	for _, f := range reflect.VisibleFields(typ) {
		if !f.IsExported() || f.Anonymous || len(f.Index) != 1 {
			continue
		}
		tag := f.Tag.Get("graph")
		if tag == "-" {
			continue
		}
		si.fields = append(si.fields, structField{
			name:   f.Name,
			index:  f.Index,
			static: tag == "static",
		})
		if tag != "static" {
			si.dynamic++
		}
	}
	for i := range si.fields {
		si.byName[si.fields[i].name] = &si.fields[i]
	}
	return si
}

// fieldValue returns the field as an interface, mapping typed nils to nil so
// an unset *Var field is not mistaken for a variable.
func fieldValue(fv reflect.Value) any {
	switch fv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		if fv.IsNil() {
			return nil
		}
	}
	return fv.Interface()
}

func assignField(fv reflect.Value, name string, value any) error {
	if value == nil {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}
	rv := reflect.ValueOf(value)
	switch {
	case rv.Type().AssignableTo(fv.Type()):
		fv.Set(rv)
	case isNumeric(rv.Kind()) && isNumeric(fv.Kind()) && rv.Type().ConvertibleTo(fv.Type()):
		fv.Set(rv.Convert(fv.Type()))
	default:
		return errors.New(errors.ErrCodeStructureMismatch, "field %s: cannot assign %T to %s", name, value, fv.Type())
	}
	return nil
}

func isNumeric(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Float64
}

// RegisterStruct registers *T as a composite node. Exported fields are
// visited in declaration order; fields tagged `graph:"-"` are ignored.
// An empty tag defaults to the Go type name.
func RegisterStruct[T any](tag string) error {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Struct {
		return errors.New(errors.ErrCodeInvalidInput, "RegisterStruct: %s is not a struct", t)
	}
	if tag == "" {
		tag = t.String()
	}
	si := reflectStruct(t)

	return RegisterGraph(GraphImpl{
		Tag:  tag,
		Type: reflect.PointerTo(t),
		Children: func(v any) []Field {
			rv := reflect.ValueOf(v).Elem()
			out := make([]Field, len(si.fields))
			for i, f := range si.fields {
				out[i] = Field{Key: f.name, Value: fieldValue(rv.FieldByIndex(f.index))}
			}
			return out
		},
		New: func() any { return reflect.New(t).Interface() },
		Set: func(v any, key, child any) error {
			name, _ := key.(string)
			f, ok := si.byName[name]
			if !ok {
				return errors.New(errors.ErrCodeStructureMismatch, "%s has no field %v", t, key)
			}
			return assignField(reflect.ValueOf(v).Elem().FieldByIndex(f.index), name, child)
		},
		Clear: func(v any) {
			rv := reflect.ValueOf(v).Elem()
			for _, f := range si.fields {
				fv := rv.FieldByIndex(f.index)
				fv.Set(reflect.Zero(fv.Type()))
			}
		},
	})
}

// MustRegisterStruct is like RegisterStruct but panics on error.
func MustRegisterStruct[T any](tag string) {
	mustRegister(RegisterStruct[T](tag))
}

// RegisterStructPytree registers the value type T as an opaque node.
// Fields tagged `graph:"static"` are kept in the auxiliary data; the rest
// become children.
func RegisterStructPytree[T any](tag string) error {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Struct {
		return errors.New(errors.ErrCodeInvalidInput, "RegisterStructPytree: %s is not a struct", t)
	}
	if tag == "" {
		tag = t.String()
	}
	si := reflectStruct(t)

	return RegisterPytree(PytreeImpl{
		Tag:  tag,
		Type: t,
		Decompose: func(v any) ([]Field, any, error) {
			rv := reflect.ValueOf(v)
			children := make([]Field, 0, si.dynamic)
			aux := make(map[string]any)
			for _, f := range si.fields {
				fv := fieldValue(rv.FieldByIndex(f.index))
				if f.static {
					aux[f.name] = fv
				} else {
					children = append(children, Field{Key: f.name, Value: fv})
				}
			}
			return children, aux, nil
		},
		Recompose: func(aux any, children []Field) (any, error) {
			rv := reflect.New(t).Elem()
			statics, ok := aux.(map[string]any)
			if aux != nil && !ok {
				return nil, fmt.Errorf("%s aux: want field map, got %T", t, aux)
			}
			for name, value := range statics {
				f, ok := si.byName[name]
				if !ok || !f.static {
					return nil, fmt.Errorf("%s has no static field %q", t, name)
				}
				if err := assignField(rv.FieldByIndex(f.index), name, value); err != nil {
					return nil, err
				}
			}
			if len(children) != si.dynamic {
				return nil, fmt.Errorf("%s rebuilt from %d children, want %d", t, len(children), si.dynamic)
			}
			for _, c := range children {
				name, _ := c.Key.(string)
				f, ok := si.byName[name]
				if !ok || f.static {
					return nil, fmt.Errorf("%s has no field %v", t, c.Key)
				}
				if err := assignField(rv.FieldByIndex(f.index), name, c.Value); err != nil {
					return nil, err
				}
			}
			return rv.Interface(), nil
		},
	})
}

// MustRegisterStructPytree is like RegisterStructPytree but panics on error.
func MustRegisterStructPytree[T any](tag string) {
	mustRegister(RegisterStructPytree[T](tag))
}
