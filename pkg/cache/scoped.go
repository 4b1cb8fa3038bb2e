package cache

// ScopedKeyer wraps a Keyer with a prefix, so callers sharing one backend
// keep separate namespaces.
//
// Example usage:
//
//	// Per-run keys for a CLI session
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "run:"+tag+":")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// GraphDefKey generates a prefixed key for graph definition caching.
func (k *ScopedKeyer) GraphDefKey(fingerprint string, opts GraphDefKeyOpts) string {
	return k.prefix + k.inner.GraphDefKey(fingerprint, opts)
}
