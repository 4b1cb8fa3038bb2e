package graph

import (
	"bytes"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/matzehuels/graphstate/pkg/errors"
	"github.com/matzehuels/graphstate/pkg/state"
)

// =============================================================================
// GraphDef Serialization API
// =============================================================================

// Marshal encodes a GraphDef with msgpack. Map keys are sorted, so equal
// definitions encode to equal bytes.
func Marshal(def *GraphDef) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeDefTo(def, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalGraphDef decodes a GraphDef written by [Marshal] and validates it.
func UnmarshalGraphDef(b []byte) (*GraphDef, error) {
	return readDefFrom(bytes.NewReader(b))
}

// WriteFile writes an encoded GraphDef to path.
func WriteFile(def *GraphDef, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidFile, err, "create %s", path)
	}
	defer f.Close()
	return writeDefTo(def, f)
}

// Write writes an encoded GraphDef to w.
func Write(def *GraphDef, w io.Writer) error {
	return writeDefTo(def, w)
}

// ReadFile reads a GraphDef written by [WriteFile].
func ReadFile(path string) (*GraphDef, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidFile, err, "open %s", path)
	}
	defer f.Close()
	return readDefFrom(f)
}

// Read decodes a GraphDef from r.
func Read(r io.Reader) (*GraphDef, error) {
	return readDefFrom(r)
}

// =============================================================================
// Wire Format
// =============================================================================

const wireVersion = 1

type wireDef struct {
	Version int        `msgpack:"version"`
	Leaves  int        `msgpack:"leaves"`
	Nodes   []wireNode `msgpack:"nodes"`
}

// wireNode is the union of all node definitions, discriminated by Kind.
type wireNode struct {
	Kind  string         `msgpack:"k"`
	Type  string         `msgpack:"t,omitempty"`
	Index int            `msgpack:"i"`
	Outer int            `msgpack:"o"`
	Slot  int            `msgpack:"s"`
	Meta  map[string]any `msgpack:"m,omitempty"`
	Aux   any            `msgpack:"aux,omitempty"`
	Value any            `msgpack:"v,omitempty"`
	Attrs []wireAttr     `msgpack:"a,omitempty"`
}

type wireAttr struct {
	Key   any      `msgpack:"k"`
	Kind  AttrKind `msgpack:"t"`
	Node  int      `msgpack:"n,omitempty"`
	Slot  int      `msgpack:"s,omitempty"`
	Value any      `msgpack:"v,omitempty"`
}

func toWireAttrs(as []Attr) []wireAttr {
	out := make([]wireAttr, len(as))
	for i, a := range as {
		out[i] = wireAttr{Key: a.Key, Kind: a.Kind, Node: a.Node, Slot: a.Slot, Value: a.Value}
	}
	return out
}

func fromWireAttrs(ws []wireAttr) ([]Attr, error) {
	out := make([]Attr, len(ws))
	for i, w := range ws {
		if w.Kind > AttrStatic {
			return nil, mismatch("attribute %v has unknown kind %d", w.Key, w.Kind)
		}
		out[i] = Attr{
			Key:   state.NormalizeKey(w.Key),
			Kind:  w.Kind,
			Node:  w.Node,
			Slot:  w.Slot,
			Value: state.Normalize(w.Value),
		}
	}
	return out, nil
}

func writeDefTo(def *GraphDef, w io.Writer) error {
	if def == nil {
		return errors.New(errors.ErrCodeInvalidInput, "nil graph definition")
	}
	wd := wireDef{Version: wireVersion, Leaves: def.Leaves, Nodes: make([]wireNode, len(def.Nodes))}
	for i, n := range def.Nodes {
		var wn wireNode
		switch d := n.(type) {
		case *CompositeDef:
			wn = wireNode{Kind: "c", Type: d.Type, Index: d.Index, Outer: d.OuterIndex, Attrs: toWireAttrs(d.Attrs)}
		case *NodeRef:
			wn = wireNode{Kind: "r", Type: d.Type, Index: d.Index, Outer: d.OuterIndex}
		case *VariableDef:
			wn = wireNode{Kind: "v", Type: d.Type, Index: d.Index, Outer: d.OuterIndex, Slot: d.Slot, Meta: d.Meta}
		case *PytreeDef:
			wn = wireNode{Kind: "p", Type: d.Type, Aux: d.Aux, Attrs: toWireAttrs(d.Attrs)}
		case *LeafDef:
			wn = wireNode{Kind: "l", Slot: d.Slot}
		case *StaticDef:
			wn = wireNode{Kind: "s", Value: d.Value}
		default:
			return errors.New(errors.ErrCodeInternal, "unknown node definition %T", n)
		}
		wd.Nodes[i] = wn
	}

	enc := msgpack.GetEncoder()
	defer msgpack.PutEncoder(enc)
	enc.Reset(w)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(&wd); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "failed to encode graph definition using MsgPack")
	}
	return nil
}

func readDefFrom(r io.Reader) (*GraphDef, error) {
	var wd wireDef
	dec := msgpack.GetDecoder()
	defer msgpack.PutDecoder(dec)
	dec.Reset(r)
	dec.UseLooseInterfaceDecoding(true)
	if err := dec.Decode(&wd); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "failed to decode msgpack graph definition")
	}
	if wd.Version != wireVersion {
		return nil, errors.New(errors.ErrCodeUnsupported, "graph definition wire version %d, want %d", wd.Version, wireVersion)
	}

	def := &GraphDef{Leaves: wd.Leaves, Nodes: make([]NodeDef, len(wd.Nodes))}
	for i, wn := range wd.Nodes {
		var err error
		switch wn.Kind {
		case "c":
			d := &CompositeDef{Type: wn.Type, Index: wn.Index, OuterIndex: wn.Outer}
			d.Attrs, err = fromWireAttrs(wn.Attrs)
			def.Nodes[i] = d
		case "r":
			def.Nodes[i] = &NodeRef{Type: wn.Type, Index: wn.Index, OuterIndex: wn.Outer}
		case "v":
			meta, _ := state.Normalize(wn.Meta).(map[string]any)
			def.Nodes[i] = &VariableDef{Type: wn.Type, Index: wn.Index, OuterIndex: wn.Outer, Slot: wn.Slot, Meta: meta}
		case "p":
			d := &PytreeDef{Type: wn.Type, Aux: state.Normalize(wn.Aux)}
			d.Attrs, err = fromWireAttrs(wn.Attrs)
			def.Nodes[i] = d
		case "l":
			def.Nodes[i] = &LeafDef{Slot: wn.Slot}
		case "s":
			def.Nodes[i] = &StaticDef{Value: state.Normalize(wn.Value)}
		default:
			err = mismatch("node %d has unknown kind %q", i, wn.Kind)
		}
		if err != nil {
			return nil, err
		}
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}
