// Package graph separates object graphs into structure and state.
//
// A graph is anything reachable from a root through registered composite
// nodes (see package node): objects, lists, dicts, registered structs, plus
// variables at the leaves. The graph may share nodes and may contain cycles.
//
// # Flatten and Unflatten
//
// [Flatten] walks the graph in a deterministic pre-order and returns a
// [GraphDef], the structure free of leaf values, and a state.FlatState, the
// leaf values keyed by path:
//
//	def, flat, err := graph.Flatten(model)
//	clone, err := graph.Unflatten(def, flat)
//
// Each distinct node is defined once. Every later occurrence, including a
// cycle back to an ancestor, becomes a [NodeRef] to the first definition,
// and a variable reached through two paths contributes one state entry.
// Unflatten rebuilds the graph with the same aliasing: composites are
// allocated as empty shells and registered before their children are
// filled, so references to an ancestor resolve to the shell.
//
// # Split, Merge and Update
//
// [Split] is Flatten followed by partitioning the state with filters; [Merge]
// recombines partitions and unflattens. [Update] writes a state back into a
// live graph in place:
//
//	def, parts, _ := graph.Split(model, state.OfType(node.TagParam))
//	params, rest := parts[0], parts[1]
//	// ... transform params ...
//	graph.Update(model, params)
//
// # Contexts
//
// [SplitContext] and [MergeContext] share one identity map across several
// calls, so separately split roots that alias each other stay aliased when
// merged through one merge context.
//
// An [UpdateContext] correlates contexts opened with the same tag on both
// sides of a boundary. The outer merge reuses the live objects seen by the
// outer split, so changes made to a copy inside the boundary are applied to
// the caller's own objects:
//
//	ctx, uc := graph.WithUpdateContext(ctx, tag)
//	defer uc.Close()
//	// outer split → inner merge → inner split → outer merge
//
// Update contexts travel in a context.Context, never in global state, so
// independent call chains never observe each other's contexts.
//
// # Fingerprints and Caching
//
// [ComputeFingerprint] hashes the structure of a graph and the identity of
// its variables. [DefCache] uses it to skip rebuilding a GraphDef for a
// graph whose shape is unchanged since the last split.
//
// # Errors
//
// Errors carry a code from package errors. Engine failures match one of the
// sentinels in this package under errors.Is: [ErrStructureMismatch],
// [ErrInconsistentAliasing], [ErrUnknownPath], [ErrContextProtocol],
// [ErrRecompose] or [ErrUnsupported].
//
// # Concurrency
//
// Calls that do not share a RefMap, IndexMap or context may run concurrently
// on disjoint graphs. Contexts serialize their own calls.
package graph
