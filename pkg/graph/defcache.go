package graph

import (
	"context"
	"reflect"
	"time"

	"github.com/matzehuels/graphstate/pkg/cache"
	"github.com/matzehuels/graphstate/pkg/observability"
	"github.com/matzehuels/graphstate/pkg/state"
)

const keyTypeGraphDef = "graphdef"

// DefCache stores encoded graph definitions keyed by fingerprint. A graph
// whose fingerprint is already cached only has its leaves collected; the
// definition is decoded from the cache instead of rebuilt.
//
// Cache failures never fail a split: the definition is rebuilt and the
// failure reported through the cache hooks.
type DefCache struct {
	cache cache.Cache
	keyer cache.Keyer
	ttl   time.Duration
}

// NewDefCache wraps c. A nil keyer selects the default key layout.
func NewDefCache(c cache.Cache, keyer cache.Keyer, ttl time.Duration) *DefCache {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	return &DefCache{cache: c, keyer: keyer, ttl: ttl}
}

// Split is [Split] through the cache.
func (dc *DefCache) Split(ctx context.Context, root any, filters ...state.Filter) (*GraphDef, []*state.State, error) {
	def, flat, err := dc.Flatten(ctx, root)
	if err != nil {
		return nil, nil, err
	}
	parts, err := flat.Split(filters...)
	if err != nil {
		return nil, nil, err
	}
	states := make([]*state.State, len(parts))
	for i, p := range parts {
		states[i] = p.Nested()
	}
	return def, states, nil
}

// Flatten is [Flatten] through the cache.
func (dc *DefCache) Flatten(ctx context.Context, root any) (*GraphDef, state.FlatState, error) {
	fp, err := ComputeFingerprint(root)
	if err != nil {
		return nil, nil, err
	}
	key := dc.keyer.GraphDefKey(fp.String(), cache.GraphDefKeyOpts{WireVersion: wireVersion})

	if def, ok := dc.lookup(ctx, key); ok {
		flat, err := collectLeaves(root)
		if err != nil {
			return nil, nil, err
		}
		if len(flat) == def.Leaves {
			observability.Cache().OnCacheHit(ctx, keyTypeGraphDef)
			return def, flat, nil
		}
	}
	observability.Cache().OnCacheMiss(ctx, keyTypeGraphDef)

	def, flat, err := flatten(ctx, root)
	if err != nil {
		return nil, nil, err
	}
	dc.store(ctx, key, def)
	return def, flat, nil
}

func (dc *DefCache) lookup(ctx context.Context, key string) (*GraphDef, bool) {
	var data []byte
	var hit bool
	err := cache.RetryWithBackoff(ctx, func() error {
		var err error
		data, hit, err = dc.cache.Get(ctx, key)
		return err
	})
	if err != nil {
		observability.Cache().OnCacheError(ctx, keyTypeGraphDef, err)
		return nil, false
	}
	if !hit {
		return nil, false
	}
	def, err := UnmarshalGraphDef(data)
	if err != nil {
		observability.Cache().OnCacheError(ctx, keyTypeGraphDef, err)
		_ = dc.cache.Delete(ctx, key)
		return nil, false
	}
	return def, true
}

func (dc *DefCache) store(ctx context.Context, key string, def *GraphDef) {
	data, err := Marshal(def)
	if err != nil {
		observability.Cache().OnCacheError(ctx, keyTypeGraphDef, err)
		return
	}
	// Static values whose Go types the wire format cannot restore, such as
	// []string or time.Duration, would come back changed on a hit.
	if decoded, err := UnmarshalGraphDef(data); err != nil || !survivesEncoding(def, decoded) {
		return
	}
	err = cache.RetryWithBackoff(ctx, func() error {
		return dc.cache.Set(ctx, key, data, dc.ttl)
	})
	if err != nil {
		observability.Cache().OnCacheError(ctx, keyTypeGraphDef, err)
		return
	}
	observability.Cache().OnCacheSet(ctx, keyTypeGraphDef, len(data))
}

// survivesEncoding reports whether decoded carries the same static values,
// metadata and aux data as def, down to their Go types.
func survivesEncoding(def, decoded *GraphDef) bool {
	if !def.Equal(decoded) {
		return false
	}
	for i, n := range def.Nodes {
		switch d := n.(type) {
		case *CompositeDef:
			o, ok := decoded.Nodes[i].(*CompositeDef)
			if !ok || !sameAttrs(d.Attrs, o.Attrs) {
				return false
			}
		case *PytreeDef:
			o, ok := decoded.Nodes[i].(*PytreeDef)
			if !ok || !sameValue(d.Aux, o.Aux) || !sameAttrs(d.Attrs, o.Attrs) {
				return false
			}
		case *VariableDef:
			o, ok := decoded.Nodes[i].(*VariableDef)
			if !ok || !sameValue(d.Meta, o.Meta) {
				return false
			}
		case *StaticDef:
			o, ok := decoded.Nodes[i].(*StaticDef)
			if !ok || !sameValue(d.Value, o.Value) {
				return false
			}
		}
	}
	return true
}

func sameAttrs(a, b []Attr) bool {
	for i := range a {
		if a[i].Kind == AttrStatic && !sameValue(a[i].Value, b[i].Value) {
			return false
		}
	}
	return true
}

// sameValue is reflect.DeepEqual except that nil and empty maps match, since
// empty metadata is omitted on the wire.
func sameValue(a, b any) bool {
	ma, aok := a.(map[string]any)
	mb, bok := b.(map[string]any)
	if aok && bok {
		if len(ma) != len(mb) {
			return false
		}
		for k, v := range ma {
			w, ok := mb[k]
			if !ok || !sameValue(v, w) {
				return false
			}
		}
		return true
	}
	sa, aok := a.([]any)
	sb, bok := b.([]any)
	if aok && bok {
		if len(sa) != len(sb) {
			return false
		}
		for i := range sa {
			if !sameValue(sa[i], sb[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}
