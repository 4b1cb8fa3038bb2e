package state

import (
	"bytes"
	"math"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/matzehuels/graphstate/pkg/errors"
	"github.com/matzehuels/graphstate/pkg/node"
)

// wireVersion is bumped whenever the encoded layout changes incompatibly.
const wireVersion = 1

type wireState struct {
	Version int        `msgpack:"version"`
	Leaves  []wireLeaf `msgpack:"leaves"`
}

type wireLeaf struct {
	Path     []any          `msgpack:"p"`
	Variable string         `msgpack:"var,omitempty"`
	Array    string         `msgpack:"arr,omitempty"`
	Value    any            `msgpack:"v"`
	Meta     map[string]any `msgpack:"m,omitempty"`
}

// EncodeFlat encodes a FlatState with msgpack. Variables are written as
// their type tag, value and metadata and are re-created through the variable
// registry on decode, so decoded variables are new instances.
func EncodeFlat(f FlatState) ([]byte, error) {
	ws := wireState{Version: wireVersion, Leaves: make([]wireLeaf, len(f))}
	for i, e := range f {
		wl := wireLeaf{Path: []any(e.Path), Value: e.Value}
		if vr, ok := e.Value.(node.Variable); ok {
			wl.Variable = vr.Type()
			wl.Value = vr.Value()
			wl.Meta = vr.Metadata()
		}
		if node.Classify(wl.Value) == node.KindLeaf {
			wl.Array = reflect.TypeOf(wl.Value).String()
		}
		ws.Leaves[i] = wl
	}

	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	enc.Reset(&buf)
	enc.SetSortMapKeys(true)
	err := enc.Encode(&ws)
	msgpack.PutEncoder(enc)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "failed to encode state using MsgPack")
	}
	return buf.Bytes(), nil
}

// DecodeFlat decodes a FlatState written by [EncodeFlat].
func DecodeFlat(b []byte) (FlatState, error) {
	var ws wireState
	dec := msgpack.GetDecoder()
	dec.Reset(bytes.NewReader(b))
	dec.UseLooseInterfaceDecoding(true)
	err := dec.Decode(&ws)
	msgpack.PutDecoder(dec)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "failed to decode msgpack state")
	}
	if ws.Version != wireVersion {
		return nil, errors.New(errors.ErrCodeUnsupported, "state wire version %d, want %d", ws.Version, wireVersion)
	}

	out := make(FlatState, len(ws.Leaves))
	for i, wl := range ws.Leaves {
		path := make(Path, len(wl.Path))
		for j, k := range wl.Path {
			path[j] = NormalizeKey(k)
		}
		value := Normalize(wl.Value)
		if wl.Array != "" {
			if value, err = restoreArray(wl.Array, value); err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "leaf %s", path)
			}
		}
		if wl.Variable != "" {
			meta, _ := Normalize(wl.Meta).(map[string]any)
			value = node.NewVariableOf(wl.Variable, value, meta)
		}
		out[i] = Entry{Path: path, Value: value}
	}
	return out, nil
}

// Normalize rewrites values decoded with loose interface decoding into their
// usual Go shapes: integers become int, recursively through slices and maps.
func Normalize(v any) any {
	switch v := v.(type) {
	case int64:
		return int(v)
	case uint64:
		if v <= math.MaxInt {
			return int(v)
		}
		return v
	case []any:
		out := make([]any, len(v))
		for i, x := range v {
			out[i] = Normalize(x)
		}
		return out
	case map[string]any:
		if v == nil {
			return v
		}
		out := make(map[string]any, len(v))
		for k, x := range v {
			out[k] = Normalize(x)
		}
		return out
	}
	return v
}

func restoreArray(typeName string, v any) (any, error) {
	t, ok := node.LookupArrayType(typeName)
	if !ok {
		return v, nil
	}
	if v == nil {
		return reflect.Zero(t).Interface(), nil
	}
	if reflect.TypeOf(v) == t {
		return v, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidInput, "cannot restore %s from %T", typeName, v)
	}
	elem := t.Elem()
	out := reflect.MakeSlice(t, len(items), len(items))
	for i, item := range items {
		iv := reflect.ValueOf(item)
		if !iv.IsValid() || !convertible(iv.Type(), elem) {
			return nil, errors.New(errors.ErrCodeInvalidInput, "cannot restore %s element %d from %T", typeName, i, item)
		}
		out.Index(i).Set(iv.Convert(elem))
	}
	return out.Interface(), nil
}

func convertible(from, to reflect.Type) bool {
	if from.Kind() == to.Kind() {
		return from.ConvertibleTo(to)
	}
	numeric := func(k reflect.Kind) bool { return k >= reflect.Int && k <= reflect.Float64 }
	return numeric(from.Kind()) && numeric(to.Kind())
}
