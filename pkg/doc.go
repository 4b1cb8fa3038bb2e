// Package pkg provides the core libraries for Graphstate.
//
// # Overview
//
// Graphstate splits arbitrary object graphs, cycles and shared nodes
// included, into an immutable structural description and a flat mapping from
// paths to leaf values, and rebuilds equivalent graphs from the two halves.
// The pkg directory is organized into four main areas:
//
//  1. Object model ([node], [state]) - node classification and state containers
//  2. Engine ([graph]) - flatten, unflatten, split/merge and update contexts
//  3. Infrastructure ([cache], [observability], [errors]) - caching, hooks, errors
//  4. Tooling ([manifest], [render/nodelink]) - graph descriptions and diagrams
//
// # Architecture
//
// The typical data flow through Graphstate:
//
//	Live object graph (or a [manifest] file)
//	         ↓
//	    [graph.Flatten] (GraphDef + FlatState)
//	         ↓
//	    [state] filters (partition the leaves)
//	         ↓
//	    transform leaves, encode, cache
//	         ↓
//	    [graph.Merge] / [graph.Update] (rebuilt or updated graph)
//
// # Quick Start
//
// Split a model into its parameters and everything else, then merge a copy:
//
//	import (
//	    "github.com/matzehuels/graphstate/pkg/graph"
//	    "github.com/matzehuels/graphstate/pkg/node"
//	    "github.com/matzehuels/graphstate/pkg/state"
//	)
//
//	model := node.NewObject().
//	    Set("kernel", node.NewParam([]float64{1, 2})).
//	    Set("count", node.NewBatchStat(0))
//
//	def, parts, _ := graph.Split(model, state.OfType(node.TagParam))
//	params, rest := parts[0], parts[1]
//	clone, _ := graph.Merge(def, params, rest)
//
// # Main Packages
//
// [node] - Classification of values into static, leaf, variable, graph node
// and pytree kinds, the registries for custom node types, and the built-in
// Object, List, Dict and Var types.
//
// [state] - Paths, the nested State and the ordered FlatState, leaf filters
// and the msgpack state codec.
//
// [graph] - The flatten/unflatten engine, GraphDef, the split, merge and
// update contexts, fingerprints, the GraphDef wire format and DefCache.
//
// [cache] - Byte caches (null, memory, file, Redis) and key layout.
//
// [observability] - Hooks for flatten, unflatten, context and cache events,
// with an OpenTelemetry implementation in observability/otelhooks.
//
// [errors] - Structured errors with machine-readable codes.
//
// [manifest] - TOML descriptions of object graphs for the CLI and tests.
//
// [render/nodelink] - Graphviz diagrams of graph definitions.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...          # All tests
//	go test ./pkg/graph/...    # Specific package
//	go test -run Example ./... # Examples only
//
// [node]: https://pkg.go.dev/github.com/matzehuels/graphstate/pkg/node
// [state]: https://pkg.go.dev/github.com/matzehuels/graphstate/pkg/state
// [graph]: https://pkg.go.dev/github.com/matzehuels/graphstate/pkg/graph
// [graph.Flatten]: https://pkg.go.dev/github.com/matzehuels/graphstate/pkg/graph#Flatten
// [graph.Merge]: https://pkg.go.dev/github.com/matzehuels/graphstate/pkg/graph#Merge
// [graph.Update]: https://pkg.go.dev/github.com/matzehuels/graphstate/pkg/graph#Update
// [cache]: https://pkg.go.dev/github.com/matzehuels/graphstate/pkg/cache
// [observability]: https://pkg.go.dev/github.com/matzehuels/graphstate/pkg/observability
// [errors]: https://pkg.go.dev/github.com/matzehuels/graphstate/pkg/errors
// [manifest]: https://pkg.go.dev/github.com/matzehuels/graphstate/pkg/manifest
// [render/nodelink]: https://pkg.go.dev/github.com/matzehuels/graphstate/pkg/render/nodelink
package pkg
