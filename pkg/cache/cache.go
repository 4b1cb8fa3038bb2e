// Package cache provides byte caches for encoded graph definitions.
//
// A [Cache] stores opaque byte slices under string keys with an optional
// TTL. [Keyer] builds those keys, so key layout lives in one place and can be
// scoped per tenant with [NewScopedKeyer].
//
// # Backends
//
//   - [NullCache]: stores nothing; caching disabled
//   - [MemoryCache]: in-process LRU bounded by entry count
//   - [FileCache]: one file per entry below a directory, for CLI runs
//   - [RedisCache]: shared cache backed by Redis
//
// All backends are safe for concurrent use.
package cache

import (
	"context"
	"time"
)

// Cache is a byte cache with per-entry TTL.
type Cache interface {
	// Get returns the entry for key. A miss is reported as ok == false with
	// a nil error.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	// Set stores data under key. A zero ttl means the backend default.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// Keyer builds cache keys.
type Keyer interface {
	// GraphDefKey returns the key of the encoded graph definition of a graph
	// with the given fingerprint.
	GraphDefKey(fingerprint string, opts GraphDefKeyOpts) string
}

// GraphDefKeyOpts holds the inputs besides the fingerprint that change the
// cached definition.
type GraphDefKeyOpts struct {
	// WireVersion is the encoding version of the cached bytes.
	WireVersion int `json:"wire_version"`
}

// DefaultKeyer lays keys out as "graphdef:<sha256>".
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// GraphDefKey implements Keyer.
func (DefaultKeyer) GraphDefKey(fingerprint string, opts GraphDefKeyOpts) string {
	return hashKey("graphdef", fingerprint, opts)
}
