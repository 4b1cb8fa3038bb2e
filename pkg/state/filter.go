package state

import (
	"fmt"
	"slices"
	"strings"

	"github.com/matzehuels/graphstate/pkg/node"
)

// Filter selects leaves by path and value.
type Filter interface {
	Match(path Path, value any) bool
}

// FilterFunc adapts a function to the Filter interface.
type FilterFunc func(path Path, value any) bool

func (f FilterFunc) Match(path Path, value any) bool { return f(path, value) }

type everything struct{}

func (everything) Match(Path, any) bool { return true }
func (everything) String() string       { return "..." }

type nothing struct{}

func (nothing) Match(Path, any) bool { return false }
func (nothing) String() string       { return "nothing" }

var (
	// Everything matches every leaf. As the last filter of a split it
	// collects the rest explicitly.
	Everything Filter = everything{}
	// Nothing matches no leaf.
	Nothing Filter = nothing{}
	// Variables matches leaves held by a variable, regardless of type tag.
	Variables Filter = FilterFunc(func(_ Path, v any) bool {
		_, ok := v.(node.Variable)
		return ok
	})
)

type ofType []string

// OfType matches variables whose type tag is one of tags, and plain leaves
// whose Go type name is one of tags.
func OfType(tags ...string) Filter { return ofType(tags) }

func (f ofType) Match(_ Path, v any) bool {
	return slices.Contains(f, node.TypeTag(v))
}

func (f ofType) String() string { return strings.Join(f, "|") }

// PathContains matches leaves whose path contains key.
func PathContains(key Key) Filter {
	return FilterFunc(func(p Path, _ any) bool { return p.Contains(key) })
}

type anyOf []Filter

// Any matches when at least one of filters matches.
func Any(filters ...Filter) Filter { return anyOf(filters) }

func (f anyOf) Match(p Path, v any) bool {
	for _, x := range f {
		if x.Match(p, v) {
			return true
		}
	}
	return false
}

type allOf []Filter

// All matches when every filter matches.
func All(filters ...Filter) Filter { return allOf(filters) }

func (f allOf) Match(p Path, v any) bool {
	for _, x := range f {
		if !x.Match(p, v) {
			return false
		}
	}
	return true
}

type not struct{ f Filter }

// Not inverts a filter.
func Not(f Filter) Filter { return not{f} }

func (n not) Match(p Path, v any) bool { return !n.f.Match(p, v) }

// FilterString describes a filter for display.
func FilterString(f Filter) string {
	if s, ok := f.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", f)
}

// ParseFilter turns a command-line filter expression into a Filter.
// "..." selects everything, "variables" any variable, "path:KEY" leaves under
// KEY, and anything else is a comma-separated list of type tags.
func ParseFilter(expr string) Filter {
	switch {
	case expr == "..." || expr == "*":
		return Everything
	case expr == "variables":
		return Variables
	case strings.HasPrefix(expr, "path:"):
		return PathContains(strings.TrimPrefix(expr, "path:"))
	}
	return OfType(strings.Split(expr, ",")...)
}
