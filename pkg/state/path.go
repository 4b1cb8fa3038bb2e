package state

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Key is a single path element: a string for attributes and mapping
// entries, an int for sequence positions.
type Key = any

// Path is the sequence of keys leading from the root to a leaf.
type Path []Key

// String renders the path as slash-separated keys, e.g. "layers/0/kernel".
// The empty path renders as "/".
func (p Path) String() string {
	if len(p) == 0 {
		return "/"
	}
	parts := make([]string, len(p))
	for i, k := range p {
		parts[i] = fmt.Sprint(k)
	}
	return strings.Join(parts, "/")
}

// Equal reports whether two paths have identical keys. String and int keys
// never compare equal, so "0" and 0 are different paths.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if keyString(p[i]) != keyString(o[i]) {
			return false
		}
	}
	return true
}

// Append returns a new path with keys appended. p is never modified.
func (p Path) Append(keys ...Key) Path {
	out := make(Path, len(p), len(p)+len(keys))
	copy(out, p)
	return append(out, keys...)
}

// Contains reports whether k appears anywhere in the path.
func (p Path) Contains(k Key) bool {
	ks := keyString(k)
	for _, pk := range p {
		if keyString(pk) == ks {
			return true
		}
	}
	return false
}

// HasPrefix reports whether prefix is a leading subsequence of p.
func (p Path) HasPrefix(prefix Path) bool {
	return len(prefix) <= len(p) && p[:len(prefix)].Equal(prefix)
}

// Key returns a canonical string form of the path for use as a map key.
func (p Path) Key() string {
	var b strings.Builder
	for _, k := range p {
		b.WriteString(keyString(k))
		b.WriteByte(0)
	}
	return b.String()
}

// NormalizeKey converts any integer key to int and leaves other keys as they
// are. Keys decoded from a wire format arrive as int64 or uint64.
func NormalizeKey(k Key) Key {
	rv := reflect.ValueOf(k)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(rv.Uint())
	}
	return k
}

func keyString(k Key) string {
	switch k := NormalizeKey(k).(type) {
	case string:
		return "s" + k
	case int:
		return "i" + strconv.Itoa(k)
	default:
		return fmt.Sprintf("o%T:%v", k, k)
	}
}

// compareKeys orders ints before strings, each group in natural order.
func compareKeys(a, b Key) int {
	a, b = NormalizeKey(a), NormalizeKey(b)
	ai, aInt := a.(int)
	bi, bInt := b.(int)
	switch {
	case aInt && bInt:
		return ai - bi
	case aInt:
		return -1
	case bInt:
		return 1
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
