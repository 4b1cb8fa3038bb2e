package manifest

import (
	"bytes"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/graphstate/pkg/errors"
	"github.com/matzehuels/graphstate/pkg/node"
	"github.com/matzehuels/graphstate/pkg/state"
)

// Manifest is a parsed graph description.
type Manifest struct {
	// Root names the node or variable returned by [Manifest.Build].
	Root  string              `toml:"root"`
	Nodes map[string]NodeSpec `toml:"nodes"`
	Vars  map[string]VarSpec  `toml:"vars"`

	// attrOrder keeps the document order of each node's attributes.
	attrOrder map[string][]string
}

// NodeSpec describes one composite node. Sequence types use Items; all
// other types use Attrs.
type NodeSpec struct {
	Type  string         `toml:"type"`
	Attrs map[string]any `toml:"attrs"`
	Items []any          `toml:"items"`
}

// VarSpec describes one variable.
type VarSpec struct {
	Type  string         `toml:"type"`
	Value any            `toml:"value"`
	Meta  map[string]any `toml:"meta"`
}

// Graph is a built manifest: the root plus every named node and variable.
type Graph struct {
	Root  any
	Named map[string]any
}

// Parse decodes a manifest from TOML.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&m)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFile, err, "parse manifest")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown manifest key %q", undecoded[0].String())
	}

	m.attrOrder = make(map[string][]string)
	for _, key := range md.Keys() {
		if len(key) == 4 && key[0] == "nodes" && key[2] == "attrs" {
			m.attrOrder[key[1]] = append(m.attrOrder[key[1]], key[3])
		}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// ParseFile reads and decodes a manifest file.
func ParseFile(path string) (*Manifest, error) {
	if err := errors.ValidateFilePath(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "read %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidFile, err, "read %s", path)
	}
	return Parse(data)
}

// Load parses the manifest at path and builds it.
func Load(path string) (*Graph, error) {
	m, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return m.Build()
}

// Validate checks names, types and the root reference.
func (m *Manifest) Validate() error {
	if m.Root == "" {
		return errors.New(errors.ErrCodeInvalidInput, "manifest has no root")
	}
	for name := range m.Vars {
		if _, dup := m.Nodes[name]; dup {
			return errors.New(errors.ErrCodeInvalidInput, "%q is both a node and a variable", name)
		}
	}
	if _, ok := m.Nodes[m.Root]; !ok {
		if _, ok := m.Vars[m.Root]; !ok {
			return errors.New(errors.ErrCodeInvalidInput, "root %q is not defined", m.Root)
		}
	}
	for name, n := range m.Nodes {
		if _, ok := node.LookupGraphTag(n.Type); !ok {
			return errors.New(errors.ErrCodeInvalidInput, "node %q: unknown type %q", name, n.Type)
		}
		if len(n.Items) > 0 && len(n.Attrs) > 0 {
			return errors.New(errors.ErrCodeInvalidInput, "node %q: both items and attrs given", name)
		}
	}
	return nil
}

// attrNames returns the attribute names of a node in document order.
// Names the decoder did not report are appended in sorted order.
func (m *Manifest) attrNames(name string) []string {
	spec := m.Nodes[name]
	out := slices.Clone(m.attrOrder[name])
	var rest []string
	for k := range spec.Attrs {
		if !slices.Contains(out, k) {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}

// Build creates the live graph. Nodes and variables are created before any
// attribute is set, so references may point anywhere, including back at
// the referring node.
func (m *Manifest) Build() (*Graph, error) {
	b := &builder{m: m, named: make(map[string]any, len(m.Nodes)+len(m.Vars))}

	for _, name := range sortedKeys(m.Vars) {
		spec := m.Vars[name]
		tag := spec.Type
		if tag == "" {
			tag = node.TagVariable
		}
		value, err := b.value(spec.Value, "vars."+name)
		if err != nil {
			return nil, err
		}
		b.named[name] = node.NewVariableOf(tag, value, b.meta(spec.Meta))
	}
	for _, name := range sortedKeys(m.Nodes) {
		impl, _ := node.LookupGraphTag(m.Nodes[name].Type)
		b.named[name] = impl.New()
	}
	for _, name := range sortedKeys(m.Nodes) {
		if err := b.populate(name); err != nil {
			return nil, err
		}
	}
	return &Graph{Root: b.named[m.Root], Named: b.named}, nil
}

type builder struct {
	m     *Manifest
	named map[string]any
}

func (b *builder) populate(name string) error {
	spec := b.m.Nodes[name]
	impl, _ := node.LookupGraphTag(spec.Type)
	obj := b.named[name]

	set := func(key any, raw any, where string) error {
		v, err := b.value(raw, where)
		if err != nil {
			return err
		}
		if err := impl.Set(obj, key, v); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "%s", where)
		}
		return nil
	}
	for i, item := range spec.Items {
		if err := set(i, item, "nodes."+name+".items"); err != nil {
			return err
		}
	}
	for _, k := range b.m.attrNames(name) {
		if err := set(k, spec.Attrs[k], "nodes."+name+".attrs."+k); err != nil {
			return err
		}
	}
	return nil
}

// value converts a decoded TOML value. Strings starting with "@" refer to a
// named node or variable; "@@" escapes a literal "@". Numeric arrays become
// array leaves, tables become plain maps.
func (b *builder) value(v any, where string) (any, error) {
	switch v := v.(type) {
	case string:
		if strings.HasPrefix(v, "@@") {
			return v[1:], nil
		}
		if name, ok := strings.CutPrefix(v, "@"); ok {
			target, found := b.named[name]
			if !found {
				return nil, errors.New(errors.ErrCodeInvalidInput, "%s: unknown reference %q", where, v)
			}
			return target, nil
		}
		return v, nil
	case int64:
		return int(v), nil
	case []any:
		return b.array(v, where)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, x := range v {
			cv, err := b.value(x, where+"."+k)
			if err != nil {
				return nil, err
			}
			out[k] = cv
		}
		return out, nil
	}
	return v, nil
}

func (b *builder) array(v []any, where string) (any, error) {
	if len(v) > 0 {
		switch {
		case all[int64](v):
			out := make([]int, len(v))
			for i, x := range v {
				out[i] = int(x.(int64))
			}
			return out, nil
		case numeric(v):
			out := make([]float64, len(v))
			for i, x := range v {
				switch x := x.(type) {
				case int64:
					out[i] = float64(x)
				case float64:
					out[i] = x
				}
			}
			return out, nil
		case all[bool](v):
			out := make([]bool, len(v))
			for i, x := range v {
				out[i] = x.(bool)
			}
			return out, nil
		}
	}
	out := make([]any, len(v))
	for i, x := range v {
		cv, err := b.value(x, where)
		if err != nil {
			return nil, err
		}
		out[i] = cv
	}
	return out, nil
}

// meta normalizes decoded metadata to the shapes it takes after an encode
// round trip.
func (b *builder) meta(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	return state.Normalize(m).(map[string]any)
}

func all[T any](v []any) bool {
	for _, x := range v {
		if _, ok := x.(T); !ok {
			return false
		}
	}
	return true
}

func numeric(v []any) bool {
	for _, x := range v {
		switch x.(type) {
		case int64, float64:
		default:
			return false
		}
	}
	return true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
