// Package state holds the leaf values of an object graph.
//
// A [FlatState] is an ordered list of (path, leaf) pairs as produced by
// flattening a graph: one entry per distinct variable or array leaf, keyed by
// the path of keys that first reached it. A [State] is the same data nested
// into a tree of ordered mappings, which is easier to navigate by hand:
//
//	params := st.Sub("encoder").Sub("kernel")
//
// Both implement [Flattener], the interface every engine entry point accepts.
//
// # Filtering
//
// Leaves are partitioned by [Filter] values. Split with N filters always
// returns N+1 partitions; each leaf lands in the partition of the first filter
// that accepts it and leaves accepted by none land in the last one. The
// partitions are disjoint and [MergeFlat] recombines them losslessly.
//
// # Pure values
//
// [State.Pure] strips variables down to their values, producing plain nested
// maps suitable for external serialization. [FromPure] and
// [State.ReplaceByPure] go the other way.
//
// # Encoding
//
// [EncodeFlat] and [DecodeFlat] use msgpack. Registered array leaf types are
// restored to their Go slice types; other leaf values come back in their
// generic decoded form.
package state
